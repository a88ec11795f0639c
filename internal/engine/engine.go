package engine

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	doublestar "github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/redactyl/promptscan/internal/cache"
	"github.com/redactyl/promptscan/internal/detectors"
	"github.com/redactyl/promptscan/internal/ignore"
	"github.com/redactyl/promptscan/internal/report"
	"github.com/redactyl/promptscan/internal/types"
)

// Config controls scanning behavior including scope, performance, and filters.
type Config struct {
	Root string
	// Paths lists explicit files or directories. When empty Root is walked.
	Paths           []string
	IncludeGlobs    string
	ExcludeGlobs    string
	MaxBytes        int64
	Threads         int
	DefaultExcludes bool
	NoCache         bool
	DryRun          bool
	// Category restricts matching to one category when set.
	Category types.Category
	Detector *detectors.PatternDetector
	Progress func()
}

func (cfg Config) withDefaults() Config {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.GOMAXPROCS(0)
	}
	if cfg.Detector == nil {
		cfg.Detector = detectors.Default()
	}
	return cfg
}

// Result contains findings and basic scan statistics.
type Result struct {
	Findings     []types.Finding
	FilesScanned int
	CacheHits    int
	Duration     time.Duration
	// FileErrors holds per-file match failures; those files are not cached.
	FileErrors []error
}

// Scan runs a scan and returns only findings (without stats).
func Scan(ctx context.Context, cfg Config) ([]types.Finding, error) {
	res, err := ScanWithStats(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return res.Findings, nil
}

// ScanWithStats walks the configured paths and runs the detector on every
// eligible file, Threads at a time. Findings are ordered by path and offset.
func ScanWithStats(ctx context.Context, cfg Config) (Result, error) {
	var result Result
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.withDefaults()
	if cfg.Category != "" {
		if _, err := cfg.Detector.DetectCategory(cfg.Category, ""); err != nil {
			return result, err
		}
	}

	rules := cfg.Detector.RulesHash() + "/" + string(cfg.Category)
	db := cache.DB{Rules: rules, Entries: map[string]cache.Entry{}}
	if !cfg.NoCache && !cfg.DryRun {
		var err error
		if db, err = cache.Load(cfg.Root, rules); err != nil {
			log.Debug().Err(err).Msg("Starting with an empty cache")
		}
	}
	ign, _ := ignore.Load(filepath.Join(cfg.Root, ignore.FileName))

	var (
		mu      sync.Mutex
		out     []types.Finding
		updated = map[string]cache.Entry{}
	)
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Threads)
	walkErr := Walk(gctx, cfg, ign, func(rel string, data []byte) {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			fs, hit, err := scanFile(cfg, db, rel, data)

			mu.Lock()
			defer mu.Unlock()
			result.FilesScanned++
			if cfg.Progress != nil {
				cfg.Progress()
			}
			if err != nil {
				result.FileErrors = append(result.FileErrors, fmt.Errorf("%s: %w", rel, err))
				return nil
			}
			if hit {
				result.CacheHits++
			} else if !cfg.DryRun {
				updated[rel] = cache.Entry{Hash: cache.Hash(data), Findings: fs}
			}
			out = append(out, fs...)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return result, err
	}
	if walkErr != nil {
		return result, walkErr
	}

	report.SortFindings(out)
	if out == nil {
		out = []types.Finding{}
	}
	result.Findings = out
	result.Duration = time.Since(started)

	if !cfg.NoCache && !cfg.DryRun && len(updated) > 0 {
		for k, v := range updated {
			db.Entries[k] = v
		}
		if err := cache.Save(cfg.Root, db); err != nil {
			log.Debug().Err(err).Msg("Could not save scan cache")
		}
	}
	return result, nil
}

// scanFile returns findings for one file, from cache when its content hash is
// unchanged.
func scanFile(cfg Config, db cache.DB, rel string, data []byte) ([]types.Finding, bool, error) {
	if cfg.DryRun {
		return nil, false, nil
	}
	if !cfg.NoCache {
		if fs, ok := db.Lookup(rel, data); ok {
			return fs, true, nil
		}
	}
	text := string(data)
	var (
		fs  []types.Finding
		err error
	)
	if cfg.Category != "" {
		fs, err = cfg.Detector.DetectCategoryFindings(cfg.Category, text)
	} else {
		fs, err = cfg.Detector.DetectFindings(text)
	}
	if err != nil {
		return nil, false, err
	}
	Annotate(fs, rel, data)
	return fs, false, nil
}

// Annotate sets Path, Line and Fingerprint on findings detected in data.
func Annotate(fs []types.Finding, path string, data []byte) {
	for i := range fs {
		fs[i].Path = path
		fs[i].Line = lineAt(data, fs[i].Start)
		fs[i].Fingerprint = report.Fingerprint(fs[i])
	}
}

// lineAt returns the 1-based line containing byte offset off.
func lineAt(data []byte, off int) int {
	if off > len(data) {
		off = len(data)
	}
	return bytes.Count(data[:off], []byte{'\n'}) + 1
}

func allowedByGlobs(relPath string, cfg Config) bool {
	rp := strings.ReplaceAll(relPath, "\\", "/")
	includes := parseGlobsList(cfg.IncludeGlobs)
	excludes := parseGlobsList(cfg.ExcludeGlobs)
	if len(includes) > 0 && !matchAnyGlob(rp, includes) {
		return false
	}
	if len(excludes) > 0 && matchAnyGlob(rp, excludes) {
		return false
	}
	return true
}

func parseGlobsList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p, trimGlobPrefix(p))
		}
	}
	return out
}

func matchAnyGlob(pathToMatch string, globs []string) bool {
	base := filepath.Base(pathToMatch)
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, pathToMatch); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, base); ok {
			return true
		}
	}
	return false
}

func trimGlobPrefix(g string) string {
	s := strings.TrimPrefix(g, "./")
	for strings.HasPrefix(s, "**/") {
		s = strings.TrimPrefix(s, "**/")
	}
	return s
}

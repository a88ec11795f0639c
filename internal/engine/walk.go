package engine

import (
	"bytes"
	"context"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/redactyl/promptscan/internal/audit"
	"github.com/redactyl/promptscan/internal/cache"
	"github.com/redactyl/promptscan/internal/ignore"
)

// IgnoreFileDirective skips a whole file when present anywhere in it.
const IgnoreFileDirective = "promptscan:ignore-file"

// stateFiles are written by promptscan itself and never scanned.
var stateFiles = map[string]bool{cache.FileName: true, audit.FileName: true}

// target is a file selected for scanning.
type target struct {
	abs string
	rel string
}

// Walk traverses cfg.Paths (or cfg.Root) and invokes handle for each eligible
// text file with its slash-separated display path and contents.
func Walk(ctx context.Context, cfg Config, ign ignore.Matcher, handle func(rel string, data []byte)) error {
	return selectTargets(ctx, cfg, ign, func(t target) error {
		b, err := os.ReadFile(t.abs)
		if err != nil {
			return nil
		}
		if bytes.Contains(b, []byte(IgnoreFileDirective)) {
			return nil
		}
		if looksBinary(b) || looksNonTextMIME(t.rel, b) {
			return nil
		}
		handle(t.rel, b)
		return nil
	})
}

// CountTargets counts the files a scan would open, without reading them.
func CountTargets(cfg Config) (int, error) {
	cfg = cfg.withDefaults()
	ign, _ := ignore.Load(filepath.Join(cfg.Root, ignore.FileName))
	n := 0
	err := selectTargets(context.Background(), cfg, ign, func(target) error {
		n++
		return nil
	})
	return n, err
}

// selectTargets applies directory excludes, globs, the ignore file and the
// size limit. It stops early only when ctx is cancelled or visit fails.
func selectTargets(ctx context.Context, cfg Config, ign ignore.Matcher, visit func(target) error) error {
	roots := cfg.Paths
	if len(roots) == 0 {
		roots = []string{cfg.Root}
	}
	for _, root := range roots {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		info, err := os.Stat(root)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			// Explicit files bypass globs and default excludes but still
			// honour the size limit.
			if cfg.MaxBytes > 0 && info.Size() > cfg.MaxBytes {
				continue
			}
			if err := visit(target{abs: root, rel: displayPath(cfg.Root, root)}); err != nil {
				return err
			}
			continue
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctx != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				if p != root && cfg.DefaultExcludes && isDefaultDirExcluded(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || stateFiles[d.Name()] {
				return nil
			}
			rel := displayPath(cfg.Root, p)
			if !allowedByGlobs(rel, cfg) {
				return nil
			}
			if ign.Match(rel) {
				return nil
			}
			if cfg.DefaultExcludes && isDefaultFileExcluded(strings.ToLower(rel)) {
				return nil
			}
			if info, _ := d.Info(); info != nil && cfg.MaxBytes > 0 && info.Size() > cfg.MaxBytes {
				return nil
			}
			return visit(target{abs: p, rel: rel})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// displayPath is p relative to root when p lies under it, else p as given.
func displayPath(root, p string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(p)
}

func looksBinary(b []byte) bool {
	const sniff = 800
	n := sniff
	if len(b) < n {
		n = len(b)
	}
	return bytes.IndexByte(b[:n], 0) >= 0
}

// looksNonTextMIME uses the file extension and a tiny content sniff to skip
// clearly non-text content (e.g., images) in addition to NUL-byte detection.
func looksNonTextMIME(path string, b []byte) bool {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		if strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "video/") || strings.HasPrefix(ct, "audio/") {
			return true
		}
		if strings.Contains(ct, "zip") || strings.Contains(ct, "tar") || strings.Contains(ct, "gzip") {
			return true
		}
	}
	if len(b) >= 8 && string(b[:8]) == "\x89PNG\r\n\x1a\n" {
		return true
	}
	if len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 3 && b[3] == 4 {
		return true
	}
	return false
}

package promptscan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/redactyl/promptscan/internal/audit"
	"github.com/redactyl/promptscan/internal/detectors"
	"github.com/redactyl/promptscan/internal/engine"
	"github.com/redactyl/promptscan/internal/report"
	"github.com/redactyl/promptscan/internal/service"
	"github.com/redactyl/promptscan/internal/types"
)

// DefaultBaseline is the baseline file name looked up at the scan root.
const DefaultBaseline = "promptscan.baseline.json"

var (
	flagScanText        string
	flagCategory        string
	flagInclude         string
	flagExclude         string
	flagMaxBytes        int64
	flagNoCache         bool
	flagDryRun          bool
	flagDefaultExcludes bool
	flagTable           bool
	flagPlain           bool
	flagSARIF           bool
	flagShowValues      bool
	flagBaseline        string
	flagWriteBaseline   bool
	flagFail            bool
	flagFailOn          string
	flagNoAudit         bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan [files or dirs...]",
		Short: "Scan prompt text, files or stdin for secrets",
		Long: "Scan prompt text (--text), files and directories, or stdin when it is not a terminal.\n" +
			"With no arguments and an interactive stdin the working directory is scanned.",
		RunE: runScan,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVarP(&flagScanText, "text", "t", "", "scan this prompt text instead of files")
	cmd.Flags().StringVarP(&flagCategory, "category", "c", "", "only run rules of this category (e.g. API_KEY)")
	cmd.Flags().StringVar(&flagInclude, "include", "", "comma-separated include globs")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "comma-separated exclude globs")
	cmd.Flags().Int64Var(&flagMaxBytes, "max-bytes", 1<<20, "skip files larger than this")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "disable incremental scan cache")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "list what would be scanned without matching")
	cmd.Flags().BoolVar(&flagDefaultExcludes, "default-excludes", true, "apply built-in exclude list (node_modules, dist, images, etc.)")
	cmd.Flags().BoolVar(&flagTable, "table", false, "output in table format with borders (default)")
	cmd.Flags().BoolVar(&flagPlain, "plain", false, "output in plain text columnar format")
	cmd.Flags().BoolVar(&flagSARIF, "sarif", false, "emit SARIF 2.1.0 (file scans)")
	cmd.Flags().BoolVar(&flagShowValues, "show-values", false, "print matched values unmasked")
	cmd.Flags().StringVar(&flagBaseline, "baseline", "", "baseline file (default: "+DefaultBaseline+" at the scan root)")
	cmd.Flags().BoolVar(&flagWriteBaseline, "write-baseline", false, "record current findings as the baseline")
	cmd.Flags().BoolVar(&flagFail, "fail", false, "exit 1 when findings remain")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "", "comma-separated categories that trigger --fail (default: any)")
	cmd.Flags().BoolVar(&flagNoAudit, "no-audit", false, "do not append this scan to the audit history")
}

func runScan(cmd *cobra.Command, args []string) error {
	category := types.Category(strings.ToUpper(strings.TrimSpace(flagCategory)))
	textMode := cmd.Flags().Changed("text") || (len(args) == 0 && !stdinIsTerminal(cmd))

	root, paths, err := scanRoot(args, textMode)
	if err != nil {
		return err
	}
	l, err := loadLayers(root)
	if err != nil {
		return err
	}
	det, err := newDetector(cmd, l)
	if err != nil {
		return err
	}

	if textMode {
		text, source := flagScanText, "<text>"
		if !cmd.Flags().Changed("text") {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			text, source = string(b), "<stdin>"
		}
		return scanText(cmd, det, l, category, source, text)
	}
	return scanFiles(cmd, det, l, category, root, paths)
}

// scanRoot picks the engine root. A single directory argument becomes the
// root; otherwise the working directory is the root and arguments are
// explicit paths.
func scanRoot(args []string, textMode bool) (string, []string, error) {
	cwd, err := filepath.Abs(".")
	if err != nil {
		return "", nil, err
	}
	if textMode || len(args) == 0 {
		return cwd, nil, nil
	}
	paths := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return "", nil, err
		}
		paths = append(paths, abs)
	}
	if len(paths) == 1 {
		if info, err := os.Stat(paths[0]); err == nil && info.IsDir() {
			return paths[0], nil, nil
		}
	}
	return cwd, paths, nil
}

func scanText(cmd *cobra.Command, det *detectors.PatternDetector, l layers, category types.Category, source, text string) error {
	var outcome types.Outcome
	if category == "" {
		opts, closeFn, err := serviceOptions(l, 0, classifierFlags{})
		if err != nil {
			return err
		}
		defer closeFn()
		outcome = service.New(det, opts...).Scan(cmd.Context(), text)
	} else {
		matches, err := det.DetectCategory(category, text)
		switch {
		case errors.Is(err, detectors.ErrUnknownCategory):
			return err
		case err != nil:
			outcome = types.Failure(err.Error())
		default:
			outcome = types.Success(matches)
		}
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		if err := report.WriteJSON(out, outcome); err != nil {
			return err
		}
		if !outcome.OK() {
			return exitError{code: 2}
		}
		return failIfFound(outcome.FoundLength() > 0)
	}
	if !outcome.OK() {
		return errors.New(outcome.Message)
	}

	var findings []types.Finding
	var err error
	if category == "" {
		findings, err = det.DetectFindings(text)
	} else {
		findings, err = det.DetectCategoryFindings(category, text)
	}
	if err != nil {
		return err
	}
	engine.Annotate(findings, source, []byte(text))
	printFindings(out, findings, report.PrintOptions{NoColor: flagNoColor, ShowValues: flagShowValues})
	for _, s := range outcome.Spans {
		fmt.Fprintf(out, "classifier: %q (%.2f)\n", s.Text, s.Confidence)
	}
	return failIfFound(outcome.FoundLength() > 0)
}

func scanFiles(cmd *cobra.Command, det *detectors.PatternDetector, l layers, category types.Category, root string, paths []string) error {
	maxBytes := flagMaxBytes
	if !cmd.Flags().Changed("max-bytes") {
		if v := pickInt64(0, l.local.MaxBytes, l.global.MaxBytes); v != 0 {
			maxBytes = v
		}
	}
	cfg := engine.Config{
		Root:            root,
		Paths:           paths,
		IncludeGlobs:    pickString(flagInclude, l.local.Include, l.global.Include),
		ExcludeGlobs:    pickString(flagExclude, l.local.Exclude, l.global.Exclude),
		MaxBytes:        maxBytes,
		Threads:         pickInt(flagThreads, l.local.Threads, l.global.Threads),
		DefaultExcludes: pickFlagBool(cmd, "default-excludes", flagDefaultExcludes, l.local.DefaultExcludes, l.global.DefaultExcludes),
		NoCache:         flagNoCache,
		DryRun:          flagDryRun,
		Category:        category,
		Detector:        det,
	}
	noColor := pickBool(flagNoColor, l.local.NoColor, l.global.NoColor)
	quiet := flagJSON || flagSARIF
	stderr := cmd.ErrOrStderr()

	if !quiet {
		_, _ = fmt.Fprintf(stderr, "Scanning %s with %d categories...\n", root, len(det.Categories()))
	}
	total, _ := engine.CountTargets(cfg)
	progressed := 0
	if total > 0 && !quiet && isTerminalWriter(stderr) {
		cfg.Progress = func() {
			progressed++
			if progressed%10 == 0 || progressed == total {
				pct := float64(progressed) / float64(total) * 100
				_, _ = fmt.Fprintf(stderr, "\r[%d/%d] %.0f%%", progressed, total, pct)
			}
		}
	}
	res, err := engine.ScanWithStats(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("scan error: %w", err)
	}
	if cfg.Progress != nil {
		_, _ = fmt.Fprintln(stderr)
	}
	for _, fe := range res.FileErrors {
		log.Warn().Err(fe).Msg("File not scanned")
	}
	if flagDryRun {
		_, _ = fmt.Fprintf(stderr, "Dry run: %d files would be scanned\n", res.FilesScanned)
		return nil
	}

	baselinePath := flagBaseline
	if baselinePath == "" {
		baselinePath = filepath.Join(root, DefaultBaseline)
	}
	if flagWriteBaseline {
		if err := report.SaveBaseline(baselinePath, res.Findings); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stderr, "Baseline updated.")
	}
	baseline, err := report.LoadBaseline(baselinePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		baselinePath = ""
	case err != nil:
		return err
	}
	newFindings := report.FilterNewFindings(res.Findings, baseline)

	if !flagNoAudit {
		rec := audit.CreateScanRecord(root, res.Findings, newFindings, res.FilesScanned, res.Duration, baselinePath)
		if err := audit.NewAuditLog(root).LogScan(rec); err != nil {
			log.Warn().Err(err).Msg("Could not write audit record")
		}
	}

	out := cmd.OutOrStdout()
	opts := report.PrintOptions{NoColor: noColor, Duration: res.Duration, FilesScanned: res.FilesScanned, ShowValues: flagShowValues}
	switch {
	case flagSARIF:
		if err := report.WriteSARIF(out, newFindings, version); err != nil {
			return fmt.Errorf("sarif error: %w", err)
		}
	case flagJSON:
		if err := report.WriteJSON(out, newFindings); err != nil {
			return err
		}
	default:
		printFindings(out, newFindings, opts)
	}

	var failOn []types.Category
	for _, c := range splitList(flagFailOn) {
		failOn = append(failOn, types.Category(strings.ToUpper(c)))
	}
	return failIfFound(report.ShouldFail(newFindings, failOn))
}

func printFindings(w io.Writer, findings []types.Finding, opts report.PrintOptions) {
	if flagPlain && !flagTable {
		report.PrintText(w, findings, opts)
		return
	}
	report.PrintTable(w, findings, opts)
}

func failIfFound(found bool) error {
	if flagFail && found {
		return exitError{code: 1}
	}
	return nil
}

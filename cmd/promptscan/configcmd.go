package promptscan

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/redactyl/promptscan/internal/config"
	"github.com/redactyl/promptscan/internal/files"
)

var (
	cfgOutput          string
	cfgListen          string
	cfgInclude         string
	cfgExclude         string
	cfgThreads         int
	cfgMaxBytes        int64
	cfgMaxPromptBytes  int
	cfgMatchTimeout    string
	cfgLogLevel        string
	cfgClassifierURL   string
	cfgNoColor         bool
	cfgDefaultExcludes bool
	cfgGitignore       bool
)

func init() {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	rootCmd.AddCommand(cfgCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a .promptscan.yml with the selected options",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	cfgCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&cfgOutput, "output", config.LocalNames[0], "output file path")
	initCmd.Flags().StringVar(&cfgListen, "listen", "", "service listen address")
	initCmd.Flags().StringVar(&cfgInclude, "include", "", "comma-separated include globs")
	initCmd.Flags().StringVar(&cfgExclude, "exclude", "", "comma-separated exclude globs")
	initCmd.Flags().IntVar(&cfgThreads, "threads", 0, "worker threads (0=GOMAXPROCS)")
	initCmd.Flags().Int64Var(&cfgMaxBytes, "max-bytes", 1<<20, "skip files larger than this")
	initCmd.Flags().IntVar(&cfgMaxPromptBytes, "max-prompt-bytes", 0, "service prompt size limit (0 = default)")
	initCmd.Flags().StringVar(&cfgMatchTimeout, "match-timeout", "", "per-rule match timeout (e.g. 250ms)")
	initCmd.Flags().StringVar(&cfgLogLevel, "log-level", "", "default log level")
	initCmd.Flags().StringVar(&cfgClassifierURL, "classifier-url", "", "model classifier endpoint")
	initCmd.Flags().BoolVar(&cfgNoColor, "no-color", false, "disable color output by default")
	initCmd.Flags().BoolVar(&cfgDefaultExcludes, "default-excludes", true, "enable default ignore patterns")
	initCmd.Flags().BoolVar(&cfgGitignore, "gitignore", false, "add promptscan state files to .gitignore")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if cfgMatchTimeout != "" {
		if _, err := config.Duration(&cfgMatchTimeout); err != nil {
			return err
		}
	}
	fc := config.FileConfig{
		Listen:          optStrPtr(cfgListen),
		MaxPromptBytes:  intPtr(cfgMaxPromptBytes),
		LogLevel:        optStrPtr(cfgLogLevel),
		MatchTimeout:    optStrPtr(cfgMatchTimeout),
		ClassifierURL:   optStrPtr(cfgClassifierURL),
		Include:         optStrPtr(cfgInclude),
		Exclude:         optStrPtr(cfgExclude),
		MaxBytes:        int64Ptr(cfgMaxBytes),
		Threads:         intPtr(cfgThreads),
		NoColor:         boolPtr(cfgNoColor),
		DefaultExcludes: boolPtr(cfgDefaultExcludes),
	}
	if err := config.Write(cfgOutput, fc); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Wrote", cfgOutput)

	if cfgGitignore {
		dir := filepath.Dir(cfgOutput)
		for _, p := range files.StateIgnores() {
			added, err := files.AppendIgnore(dir, p)
			if err != nil {
				return err
			}
			if added {
				fmt.Fprintln(cmd.OutOrStdout(), "Added", p, "to .gitignore")
			}
		}
	}
	return nil
}

func optStrPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
func intPtr(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
func int64Ptr(v int64) *int64 { return &v }
func boolPtr(v bool) *bool    { return &v }

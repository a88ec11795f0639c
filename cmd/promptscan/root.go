package promptscan

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/redactyl/promptscan/internal/config"
	"github.com/redactyl/promptscan/internal/detectors"
	"github.com/redactyl/promptscan/internal/logging"
)

var (
	flagJSON         bool
	flagNoColor      bool
	flagThreads      int
	flagLogLevel     string
	flagLogJSON      bool
	flagConfig       string
	flagEnvFile      string
	flagMatchTimeout = detectors.DefaultMatchTimeout

	version = "0.1.0"
)

// rootCmd is the base Cobra command for the promptscan CLI.
var rootCmd = &cobra.Command{
	Use:               "promptscan",
	Short:             "Find secrets in LLM prompts",
	Long:              "promptscan detects API keys, cloud credentials, connection strings, tokens and private keys in prompt text, files, or over HTTP.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

// exitError ends the process with code and no message.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Execute runs the promptscan CLI. It should be called by the main package.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	rootCmd.PersistentFlags().IntVar(&flagThreads, "threads", 0, "worker count (0 = GOMAXPROCS)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (default info)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "write logs as JSON lines")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .promptscan.yml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().DurationVar(&flagMatchTimeout, "match-timeout", detectors.DefaultMatchTimeout, "per-rule regex match timeout (0 = unbounded)")
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(flagEnvFile); err != nil {
		return err
	}
	l, err := loadLayers(".")
	if err != nil {
		return err
	}
	_, err = logging.Setup(logging.Options{
		Level: pickString(flagLogLevel, l.env.LogLevel, l.local.LogLevel, l.global.LogLevel),
		JSON:  pickBool(flagLogJSON, l.local.LogJSON, l.global.LogJSON),
		Out:   cmd.ErrOrStderr(),
	})
	return err
}

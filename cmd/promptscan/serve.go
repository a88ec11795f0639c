package promptscan

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/redactyl/promptscan/internal/classifier"
	"github.com/redactyl/promptscan/internal/server"
	"github.com/redactyl/promptscan/internal/service"
)

var (
	flagListen         string
	flagCertFile       string
	flagKeyFile        string
	flagCORSOrigins    string
	flagMaxPromptBytes int
	flagClassifier     classifierFlags
)

// classifierFlags are the CLI values for the optional model classifier.
type classifierFlags struct {
	url           string
	timeout       time.Duration
	minConfidence float64
}

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP scan service",
		Long:  "Serve POST /scan and GET /healthz until interrupted.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&flagListen, "listen", "", "listen address (default 0.0.0.0:8000)")
	cmd.Flags().StringVar(&flagCertFile, "tls-cert", "", "TLS certificate file")
	cmd.Flags().StringVar(&flagKeyFile, "tls-key", "", "TLS key file")
	cmd.Flags().StringVar(&flagCORSOrigins, "cors-origins", "", "comma-separated allowed CORS origins (default *)")
	cmd.Flags().IntVar(&flagMaxPromptBytes, "max-prompt-bytes", 0, "reject prompts larger than this (0 = default 1 MiB, <0 = unlimited)")
	cmd.Flags().StringVar(&flagClassifier.url, "classifier-url", "", "model classifier endpoint (optional)")
	cmd.Flags().DurationVar(&flagClassifier.timeout, "classifier-timeout", 0, "classifier request timeout (default 5s)")
	cmd.Flags().Float64Var(&flagClassifier.minConfidence, "classifier-min-confidence", 0, "drop classifier spans below this confidence (0-1)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Debug().Msgf(format, args...)
	}))
	defer undo()
	if err != nil {
		log.Warn().Err(err).Msg("Could not set GOMAXPROCS")
	}

	l, err := loadLayers(".")
	if err != nil {
		return err
	}
	det, err := newDetector(cmd, l)
	if err != nil {
		return err
	}
	opts, closeFn, err := serviceOptions(l, flagMaxPromptBytes, flagClassifier)
	if err != nil {
		return err
	}
	defer closeFn()

	cfg := server.DefaultConfig()
	cfg.Build = version
	if addr := pickString(flagListen, l.env.Listen, l.local.Listen, l.global.Listen); addr != "" {
		cfg.Addr = addr
	}
	cfg.TLSCertFile = pickString(flagCertFile, l.env.TLSCertFile, l.local.TLSCertFile, l.global.TLSCertFile)
	cfg.TLSKeyFile = pickString(flagKeyFile, l.env.TLSKeyFile, l.local.TLSKeyFile, l.global.TLSKeyFile)
	switch {
	case flagCORSOrigins != "":
		cfg.CORSOrigins = splitList(flagCORSOrigins)
	case l.local.CORSOrigins != nil:
		cfg.CORSOrigins = *l.local.CORSOrigins
	case l.global.CORSOrigins != nil:
		cfg.CORSOrigins = *l.global.CORSOrigins
	}
	if n := pickInt(flagMaxPromptBytes, l.env.MaxPromptBytes, l.local.MaxPromptBytes, l.global.MaxPromptBytes); n > 0 && int64(n) >= cfg.MaxBodyBytes {
		// The JSON envelope and escaping must fit too.
		cfg.MaxBodyBytes = 2 * int64(n)
	}

	// Classifier retries must finish inside the response deadline.
	opts = append(opts, service.WithClassifierBudget(classifierBudget(cfg.WriteTimeout)))
	svc := service.New(det, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("addr", cfg.Addr).
		Str("build", version).
		Bool("tls", cfg.TLSCertFile != "").
		Dur("match_timeout", det.MatchTimeout()).
		Msg("Starting promptscan service")
	if err := server.New(cfg, svc, log.Logger).Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("Service stopped")
	return nil
}

// serviceOptions resolves the prompt size limit and the optional classifier
// from CLI values and config layers. closeFn releases the classifier.
func serviceOptions(l layers, maxPrompt int, cf classifierFlags) ([]service.Option, func(), error) {
	opts := []service.Option{service.WithLogger(log.Logger)}
	closeFn := func() {}
	if n := pickInt(maxPrompt, l.env.MaxPromptBytes, l.local.MaxPromptBytes, l.global.MaxPromptBytes); n != 0 {
		opts = append(opts, service.WithMaxPromptBytes(n))
	}

	url := pickString(cf.url, l.env.ClassifierURL, l.local.ClassifierURL, l.global.ClassifierURL)
	if url == "" {
		return opts, closeFn, nil
	}
	timeout, err := pickDuration(cf.timeout, l.local.ClassifierTimeout, l.global.ClassifierTimeout)
	if err != nil {
		return nil, closeFn, err
	}
	c, err := classifier.NewHTTP(classifier.HTTPConfig{
		URL:           url,
		Timeout:       timeout,
		Retries:       1,
		MinConfidence: pickFloat(cf.minConfidence, l.local.ClassifierMinConfidence, l.global.ClassifierMinConfidence),
	})
	if err != nil {
		return nil, closeFn, err
	}
	closeFn = func() { _ = c.Close() }
	log.Debug().Str("url", url).Msg("Classifier enabled")
	return append(opts, service.WithClassifier(c)), closeFn, nil
}

// classifierBudget is the share of the response deadline a classifier call
// may use, leaving the rest for matching and writing the response.
func classifierBudget(writeTimeout time.Duration) time.Duration {
	if writeTimeout <= 0 {
		return 0
	}
	return writeTimeout / 2
}

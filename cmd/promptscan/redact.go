package promptscan

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/redactyl/promptscan/internal/redact"
	"github.com/redactyl/promptscan/internal/service"
)

var (
	flagRedactText string
	flagInPlace    bool
	flagCopy       bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "redact [file]",
		Short: "Replace secrets with category placeholders",
		Long:  "Print text with every detected secret replaced by a placeholder such as [API-KEY]. Reads --text, a file, or stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRedact,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVarP(&flagRedactText, "text", "t", "", "redact this text")
	cmd.Flags().BoolVarP(&flagInPlace, "in-place", "i", false, "rewrite the file instead of printing")
	cmd.Flags().BoolVar(&flagCopy, "copy", false, "also copy the redacted text to the clipboard")
}

func runRedact(cmd *cobra.Command, args []string) error {
	l, err := loadLayers(".")
	if err != nil {
		return err
	}
	det, err := newDetector(cmd, l)
	if err != nil {
		return err
	}

	if flagInPlace {
		if len(args) == 0 {
			return errors.New("--in-place needs a file argument")
		}
		changed, err := redact.Apply(args[0], det)
		if err != nil {
			return err
		}
		if changed {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Redacted", args[0])
		} else {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No secrets in", args[0])
		}
		return nil
	}

	var text string
	switch {
	case cmd.Flags().Changed("text"):
		text = flagRedactText
	case len(args) == 1:
		b, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		text = string(b)
	default:
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(b)
	}

	opts, closeFn, err := serviceOptions(l, 0, classifierFlags{})
	if err != nil {
		return err
	}
	defer closeFn()
	redacted, outcome := service.New(det, opts...).Redact(cmd.Context(), text)
	if !outcome.OK() {
		return errors.New(outcome.Message)
	}
	if _, err := io.WriteString(cmd.OutOrStdout(), redacted); err != nil {
		return err
	}
	log.Debug().Int("found_length", outcome.FoundLength()).Msg("Redacted text")
	if flagCopy {
		if err := clipboard.WriteAll(redacted); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Copied redacted text to clipboard")
	}
	return nil
}

package promptscan

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/redactyl/promptscan/internal/config"
	"github.com/redactyl/promptscan/internal/detectors"
)

// layers holds the non-CLI configuration sources in precedence order.
type layers struct {
	env    config.FileConfig
	local  config.FileConfig
	global config.FileConfig
}

// loadLayers reads env, local and global config. Missing files are not
// errors; a malformed file or an explicit --config that cannot be read is.
func loadLayers(root string) (layers, error) {
	var l layers
	var err error
	if l.env, err = config.FromEnv(); err != nil {
		return l, err
	}
	if flagConfig != "" {
		if l.local, err = config.LoadFile(flagConfig); err != nil {
			return l, err
		}
	} else if c, err := config.LoadLocal(root); err == nil {
		l.local = c
	} else if !errors.Is(err, config.ErrNotFound) {
		return l, err
	}
	if c, err := config.LoadGlobal(); err == nil {
		l.global = c
	} else if !errors.Is(err, config.ErrNotFound) {
		return l, err
	}
	return l, nil
}

// newDetector builds the pattern detector with the match timeout from
// --match-timeout, else local, else global config.
func newDetector(cmd *cobra.Command, l layers) (*detectors.PatternDetector, error) {
	timeout := flagMatchTimeout
	if !cmd.Flags().Changed("match-timeout") {
		d, err := config.Duration(firstString(l.local.MatchTimeout, l.global.MatchTimeout))
		if err != nil {
			return nil, err
		}
		if d > 0 {
			timeout = d
		}
	}
	return detectors.New(detectors.WithMatchTimeout(timeout))
}

func pickString(cli string, layers ...*string) string {
	if cli != "" {
		return cli
	}
	for _, v := range layers {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func pickInt(cli int, layers ...*int) int {
	if cli != 0 {
		return cli
	}
	for _, v := range layers {
		if v != nil && *v != 0 {
			return *v
		}
	}
	return 0
}

func pickInt64(cli int64, layers ...*int64) int64 {
	if cli != 0 {
		return cli
	}
	for _, v := range layers {
		if v != nil && *v != 0 {
			return *v
		}
	}
	return 0
}

func pickFloat(cli float64, layers ...*float64) float64 {
	if cli != 0 {
		return cli
	}
	for _, v := range layers {
		if v != nil && *v != 0 {
			return *v
		}
	}
	return 0
}

func pickBool(cli bool, layers ...*bool) bool {
	if cli {
		return true
	}
	for _, v := range layers {
		if v != nil {
			return *v
		}
	}
	return false
}

// pickFlagBool is pickBool for flags whose default is true: an explicit
// flag wins, then the first set layer, then the flag default.
func pickFlagBool(cmd *cobra.Command, name string, cli bool, layers ...*bool) bool {
	if cmd.Flags().Changed(name) {
		return cli
	}
	for _, v := range layers {
		if v != nil {
			return *v
		}
	}
	return cli
}

func pickDuration(cli time.Duration, layers ...*string) (time.Duration, error) {
	if cli != 0 {
		return cli, nil
	}
	return config.Duration(firstString(layers...))
}

func firstString(layers ...*string) *string {
	for _, v := range layers {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

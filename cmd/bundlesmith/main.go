package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

type rootFlags struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	rf := &rootFlags{}
	root := &cobra.Command{
		Use:           "bundlesmith",
		Short:         "Scaffold and extend iDempiere plugin bundles, with optional AI-assisted generation",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&rf.configFile, "config", "", "Config file (default ~/.bundlesmith/config.yaml)")
	root.PersistentFlags().BoolVar(&rf.verbose, "verbose", false, "Log pipeline steps to stderr")

	root.AddCommand(
		newAddCmd(rf),
		newTypesCmd(),
		newConfigCmd(rf),
		newAICmd(rf),
		newAnalyzeCmd(),
		newSessionsCmd(rf),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger writes structured logs to w: debug level when verbose,
// warnings otherwise.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// isTerminal reports whether w is an interactive terminal. Styled output is
// only produced for terminals.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Exit codes.
const (
	exitFailure  = 1
	exitInput    = 3
	exitProvider = 4
)

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func exitError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

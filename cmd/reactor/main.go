package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vango-dev/reactor/internal/config"
	"github.com/vango-dev/reactor/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		format, _ := rootCmd.PersistentFlags().GetString("log-format")
		reportError(os.Stderr, err, format, os.Getenv)
		os.Exit(1)
	}
}

// reportError prints err the way the output can take it: JSON when logs are
// JSON, one line when w is not a terminal, the full colored block otherwise.
func reportError(w io.Writer, err error, format string, getenv func(string) string) {
	e := errors.FromError(err, "R503")
	switch {
	case format == config.FormatJSON:
		fmt.Fprintln(w, e.FormatJSON())
	case !isTerminal(w):
		fmt.Fprintln(w, e.FormatCompact())
	default:
		if getenv("NO_COLOR") != "" {
			errors.DisableColors()
		}
		errors.Fprint(w, e)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// globalFlags are shared by every command.
type globalFlags struct {
	configDir string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "reactor",
		Short: "Serve and inspect reactive state",
		Long: `Reactor hosts a reactive state container.

Every key of the state is observable: readers that ran inside an
evaluation are notified when the key changes. The reactor command
serves a state over HTTP and websockets, watches changes locally,
persists snapshots and resolves routes.

Configuration is read from reactor.json in the config directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configDir, "config", "c", ".", "Directory containing reactor.json")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(
		serveCmd(flags),
		watchCmd(flags),
		snapshotCmd(flags),
		routesCmd(flags),
		errorsCmd(),
		versionCmd(),
	)

	return rootCmd
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

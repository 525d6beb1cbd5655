// Package main holds the mops command-line entrypoint: a thin cobra
// wrapper dispatching to the resolve/fetch/packages subcommands. The
// heavy lifting lives in internal/depgraph, internal/resolve, and
// internal/fetch; this package only wires flags, config, and output.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mops-lang/mops/internal/depgraph"
	"github.com/mops-lang/mops/internal/logging"
	"github.com/mops-lang/mops/internal/mopsconfig"
	"github.com/mops-lang/mops/internal/registry"
	"github.com/mops-lang/mops/internal/resolve"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps the typed error classes raised across this codebase to
// distinct process exit codes, so scripting against mops can distinguish
// a version conflict from a missing registry package from a programmer
// error without scraping stderr text.
func exitCode(err error) int {
	switch {
	case errors.Is(err, resolve.ErrConflict):
		return 3
	case errors.Is(err, registry.ErrNotFound):
		return 4
	case errors.Is(err, depgraph.ErrLocalViaRepo):
		return 5
	case errors.Is(err, depgraph.ErrInvariant):
		return 70 // EX_SOFTWARE: programmer error, never expected in normal operation
	default:
		return 1
	}
}

type rootOpts struct {
	verbosity int
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}

	cmd := &cobra.Command{
		Use:           "mops",
		Short:         "Resolve, lock, and fetch mops package dependencies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().CountVarP(&opts.verbosity, "verbose", "v", "increase log verbosity (repeatable)")

	cmd.AddCommand(newResolveCmd(opts))
	cmd.AddCommand(newFetchCmd(opts))
	cmd.AddCommand(newPackagesCmd(opts))
	return cmd
}

func (o *rootOpts) logLevel() hclog.Level {
	switch o.verbosity {
	case 0:
		return hclog.Warn
	case 1:
		return hclog.Info
	default:
		return hclog.Debug
	}
}

func (o *rootOpts) logger(name string) hclog.Logger {
	return logging.NewHCLog(name, o.logLevel())
}

package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mops-lang/mops/internal/depgraph"
	"github.com/mops-lang/mops/internal/lockfile"
	"github.com/mops-lang/mops/internal/logging"
	"github.com/mops-lang/mops/internal/manifest"
	"github.com/mops-lang/mops/internal/mopsconfig"
	"github.com/mops-lang/mops/internal/resolve"
)

func newResolveCmd(root *rootOpts) *cobra.Command {
	var update []string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Walk mops.toml's dependency graph and write mops.lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), root, update)
		},
	}
	cmd.Flags().StringSliceVar(&update, "update", nil, "look up the highest registry version of each named library before resolving")
	return cmd
}

func runResolve(ctx context.Context, root *rootOpts, update []string) error {
	cfg, err := mopsconfig.Load()
	if err != nil {
		return err
	}
	logger := root.logger("resolve")
	c := newClients(cfg, logger)
	status := logging.New()

	for _, lib := range update {
		version, err := c.registry.GetHighestVersion(ctx, lib)
		if err != nil {
			return errors.Wrapf(err, "looking up highest version of %s", lib)
		}
		status.Printf("%s: highest published version is %s (edit mops.toml to pin it)", lib, version)
	}

	m, found, err := manifest.ReadFile(manifest.FileName, manifest.Classifier{IsRepoURL: c.sourceHost.HasPrefix})
	if err != nil {
		return err
	}
	if !found {
		return errors.Errorf("%s not found in the current directory", manifest.FileName)
	}

	existing, err := lockfile.Read(lockfile.FileName)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("resolving"),
		progressbar.OptionSetVisibility(logging.IsTTY),
	)
	walker := &depgraph.Walker{
		Registry:   c.registry,
		SourceHost: c.sourceHost,
		Logger:     logger.Named("walk"),
		OnVisit:    func(string) { _ = bar.Add(1) },
	}
	walked, err := walker.Walk(ctx, m.Deps, existing)
	if err != nil {
		return err
	}

	resolved, err := resolve.Resolve(walked)
	if err != nil {
		return err
	}

	if err := lockfile.Write(lockfile.FileName, resolved); err != nil {
		return err
	}
	status.Success("resolved %d package(s) into %s", len(resolved), lockfile.FileName)
	return nil
}

package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	fetchpkg "github.com/mops-lang/mops/internal/fetch"
	"github.com/mops-lang/mops/internal/lockfile"
	"github.com/mops-lang/mops/internal/logging"
	"github.com/mops-lang/mops/internal/mopsconfig"
)

func newFetchCmd(root *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download every package in mops.lock into the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), root)
		},
	}
}

func runFetch(ctx context.Context, root *rootOpts) error {
	cfg, err := mopsconfig.Load()
	if err != nil {
		return err
	}
	logger := root.logger("fetch")
	c := newClients(cfg, logger)
	status := logging.New()

	pkgs, err := lockfile.Read(lockfile.FileName)
	if err != nil {
		return err
	}
	if pkgs == nil {
		return errors.Errorf("%s not found; run `mops resolve` first", lockfile.FileName)
	}

	bar := progressbar.NewOptions(len(pkgs),
		progressbar.OptionSetDescription("fetching"),
		progressbar.OptionSetVisibility(logging.IsTTY),
	)
	fetcher := &fetchpkg.Fetcher{
		Registry:    c.registry,
		StorageFor:  c.storageFor,
		CacheRoot:   cfg.CacheDir,
		Logger:      logger.Named("fetch"),
		Concurrency: cfg.FetchConcurrency,
		OnComplete:  func(string) { _ = bar.Add(1) },
	}
	if err := fetcher.FetchAll(ctx, pkgs); err != nil {
		return err
	}
	status.Success("fetched %d package(s) into %s", len(pkgs), cfg.CacheDir)
	return nil
}

package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mops-lang/mops/internal/cache"
	"github.com/mops-lang/mops/internal/lockfile"
	"github.com/mops-lang/mops/internal/mopsconfig"
)

func newPackagesCmd(root *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "packages",
		Short: "Print name and cache path for every locked package, for build drivers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPackages()
		},
	}
}

func runPackages() error {
	cfg, err := mopsconfig.Load()
	if err != nil {
		return err
	}

	pkgs, err := lockfile.Read(lockfile.FileName)
	if err != nil {
		return err
	}
	if pkgs == nil {
		return errors.Errorf("%s not found; run `mops resolve` first", lockfile.FileName)
	}

	for _, entry := range cache.BuildDriverEntries(cfg.CacheDir, pkgs) {
		fmt.Printf("%s\t%s\n", entry.Name, entry.Path)
	}
	return nil
}

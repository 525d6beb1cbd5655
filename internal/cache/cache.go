// Package cache implements the deterministic on-disk cache layout (C7):
// where each locked Package's content lands under the cache root, and how
// a completed fetch is marked so a later run can skip it.
package cache

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mops-lang/mops/internal/lockfile"
)

// doneSentinel is the completion marker for Registry packages. Repo
// packages use a repo-fetcher-specific marker (see repoMarker in package
// fetch);
// Local packages have no sentinel and are always considered complete.
const doneSentinel = "DONE"

// Subpath computes a Package's deterministic location under the cache
// root.
func Subpath(pkg lockfile.Package) string {
	switch pkg.Kind() {
	case lockfile.KindRegistry:
		return filepath.Join("mops", pkg.Name+"-"+pkg.Version)
	case lockfile.KindRepo:
		repoSlug := strings.ReplaceAll(pkg.Repo.Repo, "/", "-")
		commit := pkg.Repo.Commit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		return filepath.Join("git", repoSlug, commit)
	case lockfile.KindLocal:
		return pkg.LocalPath()
	default:
		panic("unreachable package kind")
	}
}

// Dir resolves a Package's on-disk location. Local packages are never
// copied into the cache: Subpath already returns their canonical
// absolute path, so Dir returns it unchanged instead of nesting it under
// root — filepath.Join would otherwise concatenate-and-clean it into a
// path under root that is never created, rather than replacing root the
// way an absolute join does.
func Dir(root string, pkg lockfile.Package) string {
	if pkg.Kind() == lockfile.KindLocal {
		return pkg.LocalPath()
	}
	return filepath.Join(root, Subpath(pkg))
}

// IsComplete reports whether pkg's cache directory is already fully
// populated: Local packages are always complete, Registry packages are
// complete when their DONE sentinel exists, Repo packages are complete
// when repoMarkerExists reports so.
func IsComplete(root string, pkg lockfile.Package, repoMarkerExists func(dir string) bool) bool {
	switch pkg.Kind() {
	case lockfile.KindLocal:
		return true
	case lockfile.KindRegistry:
		_, err := os.Stat(filepath.Join(Dir(root, pkg), doneSentinel))
		return err == nil
	case lockfile.KindRepo:
		return repoMarkerExists(Dir(root, pkg))
	default:
		panic("unreachable package kind")
	}
}

// MarkRegistryComplete creates the DONE sentinel for a Registry package,
// the sole resume marker the fetcher consults.
func MarkRegistryComplete(root string, pkg lockfile.Package) error {
	dir := Dir(root, pkg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating cache dir %s", dir)
	}
	f, err := os.Create(filepath.Join(dir, doneSentinel))
	if err != nil {
		return errors.Wrapf(err, "writing completion sentinel for %s", pkg.Name)
	}
	return f.Close()
}

// BuildDriverEntry is one (name, path) pair of the derived query exposed
// to external build drivers.
type BuildDriverEntry struct {
	Name string
	Path string
}

// BuildDriverEntries emits (name, cache-root/subpath/base_dir) for every
// locked package, in lockfile order.
func BuildDriverEntries(root string, pkgs []lockfile.Package) []BuildDriverEntry {
	entries := make([]BuildDriverEntry, len(pkgs))
	for i, pkg := range pkgs {
		entries[i] = BuildDriverEntry{
			Name: pkg.Name,
			Path: filepath.Join(Dir(root, pkg), pkg.BaseDir),
		}
	}
	return entries
}

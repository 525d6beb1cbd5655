// Package fetch implements the concurrent fetcher (C6): given a resolved
// lockfile, it downloads every package's content into the content-
// addressed cache, skipping anything already marked complete.
package fetch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	mapset "github.com/deckarep/golang-set"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mops-lang/mops/internal/cache"
	"github.com/mops-lang/mops/internal/lockfile"
	"github.com/mops-lang/mops/internal/registry"
)

// repoMarker is the Repo-kind completion sentinel: a plain clone-and-
// checkout has no natural analogue to the registry's DONE file, so the
// fetcher writes its own once `git checkout` succeeds.
const repoMarker = ".mops-complete"

// StorageFor resolves the Storage handle serving a Registry package, keyed
// by the opaque storage-service id recorded in Package.Source.
type StorageFor func(storageID string) registry.Storage

// Fetcher downloads every Package in a resolved lockfile into CacheRoot.
type Fetcher struct {
	Registry   registry.Registry
	StorageFor StorageFor
	CacheRoot  string
	Logger     hclog.Logger

	// Concurrency bounds how many packages are fetched at once. Zero
	// means unbounded (errgroup.Group's default).
	Concurrency int

	// OnComplete, if set, is called once per package after it either
	// becomes complete or was already complete — used to drive a
	// progress bar.
	OnComplete func(name string)
}

func (f *Fetcher) logger() hclog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return hclog.NewNullLogger()
}

// FetchAll fetches every package concurrently, short-circuiting any
// already marked complete. It returns the first error encountered; that
// error cancels the context shared by the other in-flight fetches, and
// FetchAll waits for them to return before it returns.
func (f *Fetcher) FetchAll(ctx context.Context, pkgs []lockfile.Package) error {
	group, ctx := errgroup.WithContext(ctx)
	if f.Concurrency > 0 {
		group.SetLimit(f.Concurrency)
	}

	seen := mapset.NewSet()
	for _, pkg := range pkgs {
		pkg := pkg
		if !seen.Add(pkg.DedupKey()) {
			continue
		}
		group.Go(func() error {
			if err := f.fetchOne(ctx, pkg); err != nil {
				return errors.Wrapf(err, "fetching %s@%s", pkg.Name, pkg.Version)
			}
			if f.OnComplete != nil {
				f.OnComplete(pkg.Name)
			}
			return nil
		})
	}
	return group.Wait()
}

func (f *Fetcher) fetchOne(ctx context.Context, pkg lockfile.Package) error {
	if cache.IsComplete(f.CacheRoot, pkg, f.repoMarkerExists) {
		return nil
	}
	switch pkg.Kind() {
	case lockfile.KindRegistry:
		return f.fetchRegistry(ctx, pkg)
	case lockfile.KindRepo:
		return f.fetchRepo(ctx, pkg)
	case lockfile.KindLocal:
		return nil
	default:
		panic("unreachable package kind")
	}
}

// fetchRegistry downloads every file of a Registry package concurrently,
// one chunk sequence per file, then marks the package complete.
func (f *Fetcher) fetchRegistry(ctx context.Context, pkg lockfile.Package) error {
	ids, err := f.Registry.GetFileIDs(ctx, pkg.Name, pkg.Version)
	if err != nil {
		return err
	}
	storage := f.StorageFor(pkg.Source)
	dir := cache.Dir(f.CacheRoot, pkg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating cache dir %s", dir)
	}

	group, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		group.Go(func() error {
			return f.downloadFile(ctx, storage, dir, id)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return cache.MarkRegistryComplete(f.CacheRoot, pkg)
}

func (f *Fetcher) downloadFile(ctx context.Context, storage registry.Storage, dir, id string) error {
	meta, err := storage.GetFileMeta(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "file meta for %s", id)
	}

	blob := make([]byte, 0)
	for i := 0; i < meta.ChunkCount; i++ {
		chunk, err := storage.DownloadChunk(ctx, id, i)
		if err != nil {
			return errors.Wrapf(err, "downloading chunk %d of %s", i, meta.Path)
		}
		blob = append(blob, chunk...)
	}

	dest := filepath.Join(dir, meta.Path)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent dir for %s", dest)
	}
	if err := os.WriteFile(dest, blob, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", dest)
	}
	return nil
}

// fetchRepo clones a Repo package's pinned commit via the system git
// binary, mirroring the way the checked-in example CLI shells out to git
// rather than linking a Go git implementation.
func (f *Fetcher) fetchRepo(ctx context.Context, pkg lockfile.Package) error {
	dir := cache.Dir(f.CacheRoot, pkg)
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "clearing stale clone at %s", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating cache dir %s", dir)
	}

	url := "https://github.com/" + pkg.Repo.Repo + ".git"
	if err := runGit(ctx, dir, "init", "-q"); err != nil {
		return err
	}
	if err := runGit(ctx, dir, "remote", "add", "origin", url); err != nil {
		return err
	}
	if err := runGit(ctx, dir, "fetch", "--depth=1", "-q", "origin", pkg.Repo.Commit); err != nil {
		return errors.Wrapf(err, "fetching commit %s of %s", pkg.Repo.Commit, pkg.Repo.Repo)
	}
	if err := runGit(ctx, dir, "checkout", "-q", "FETCH_HEAD"); err != nil {
		return err
	}

	f.logger().Debug("cloned repo package", "name", pkg.Name, "commit", pkg.Repo.Commit)
	return os.WriteFile(filepath.Join(dir, repoMarker), nil, 0o644)
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "git %v: %s", args, string(out))
	}
	return nil
}

func (f *Fetcher) repoMarkerExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, repoMarker))
	return err == nil
}

// Package depgraph implements the graph walker (C4): a sequential,
// breadth-first traversal that turns a manifest's dependency references
// into a map from DedupKey to resolved Package, terminating on cyclic or
// diamond graphs by deduplicating on first sight.
package depgraph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/mops-lang/mops/internal/depref"
	"github.com/mops-lang/mops/internal/lockfile"
	"github.com/mops-lang/mops/internal/manifest"
	"github.com/mops-lang/mops/internal/registry"
	"github.com/mops-lang/mops/internal/sourcehost"
)

// ErrLocalViaRepo is returned when a Repo package's transitive manifest
// declares a Local dependency. The anchor a relative path would be
// resolved against (repo root on disk? the invoking process's cwd?) is
// undefined, so this chain is rejected rather than guessed at.
var ErrLocalViaRepo = errors.New("local dependency declared inside a repo-hosted manifest is not supported")

// ErrInvariant marks a programmer-error invariant violation: the dedup
// check runs before any work for a DedupKey, so a duplicate insert can
// only mean the walker computed two different prospective keys for what
// turned out to be the same node.
var ErrInvariant = errors.New("invariant violation: duplicate insert into graph walker map")

// Walker performs the breadth-first graph traversal.
type Walker struct {
	Registry   registry.Registry
	SourceHost *sourcehost.Client
	Logger     hclog.Logger

	// OnVisit, if set, is called once per dequeued DepRef that was not
	// already resolved — used to drive a progress bar.
	OnVisit func(name string)
}

func (w *Walker) logger() hclog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return hclog.NewNullLogger()
}

func (w *Walker) classifier() manifest.Classifier {
	return manifest.Classifier{IsRepoURL: w.SourceHost.HasPrefix}
}

// Walk seeds the queue with rootDeps and the visited map with existing
// (an already-parsed lockfile, or nil), then drains the queue
// sequentially until empty. It returns every resolved Package, including
// those carried over unchanged from existing.
func (w *Walker) Walk(ctx context.Context, rootDeps []depref.DepRef, existing []lockfile.Package) ([]lockfile.Package, error) {
	visited := lockfile.ByDedupKey(existing)
	queue := append([]depref.DepRef(nil), rootDeps...)

	for len(queue) > 0 {
		dep := queue[0]
		queue = queue[1:]

		switch d := dep.(type) {
		case depref.RegistryRef:
			more, err := w.visitRegistry(ctx, d, visited)
			if err != nil {
				return nil, err
			}
			queue = append(queue, more...)

		case depref.RepoRef:
			more, err := w.visitRepo(ctx, d, visited)
			if err != nil {
				return nil, err
			}
			queue = append(queue, more...)

		case depref.LocalRef:
			more, err := w.visitLocal(d, visited)
			if err != nil {
				return nil, err
			}
			queue = append(queue, more...)

		default:
			return nil, errors.Errorf("unrecognized dependency reference type %T", dep)
		}
	}

	out := make([]lockfile.Package, 0, len(visited))
	for _, pkg := range visited {
		out = append(out, pkg)
	}
	return out, nil
}

func insert(visited map[string]lockfile.Package, pkg lockfile.Package) error {
	key := pkg.DedupKey()
	if _, exists := visited[key]; exists {
		return errors.Wrapf(ErrInvariant, "key %s", key)
	}
	visited[key] = pkg
	return nil
}

func (w *Walker) visitRegistry(ctx context.Context, d depref.RegistryRef, visited map[string]lockfile.Package) ([]depref.DepRef, error) {
	key := fmt.Sprintf("%s-%s", d.Name, d.Version)
	if _, ok := visited[key]; ok {
		return nil, nil
	}
	if w.OnVisit != nil {
		w.OnVisit(d.Name)
	}

	details, err := w.Registry.GetPackageDetails(ctx, d.Name, d.Version)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, errors.Wrapf(err, "%s@%s is not on the registry; add it to mops.toml manually", d.Name, d.Version)
		}
		return nil, errors.Wrapf(err, "resolving %s@%s", d.Name, d.Version)
	}

	deps := make([]string, 0, len(details.Dependencies))
	enqueued := make([]depref.DepRef, 0, len(details.Dependencies))
	for _, sd := range details.Dependencies {
		var sub depref.DepRef
		if sd.Version == "" {
			sub = depref.RepoRef{Name: sd.Name, URL: sd.Repo}
		} else {
			sub = depref.RegistryRef{Name: sd.Name, Version: sd.Version}
		}
		deps = append(deps, sub.DisplayKey())
		enqueued = append(enqueued, sub)
	}

	pkg := lockfile.Package{
		Name:         d.Name,
		Version:      d.Version,
		Source:       details.Storage,
		BaseDir:      details.BaseDir,
		Dependencies: deps,
	}
	if err := insert(visited, pkg); err != nil {
		return nil, err
	}
	return enqueued, nil
}

func (w *Walker) visitRepo(ctx context.Context, d depref.RepoRef, visited map[string]lockfile.Package) ([]depref.DepRef, error) {
	info, err := w.SourceHost.ParseURL(ctx, d.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing repo url for %s", d.Name)
	}

	key := fmt.Sprintf("%s-%s", d.Name, info.Commit)
	if _, ok := visited[key]; ok {
		return nil, nil
	}
	if w.OnVisit != nil {
		w.OnVisit(d.Name)
	}

	var (
		deps     []string
		enqueued []depref.DepRef
		version  string
	)
	text, err := w.SourceHost.FetchFile(ctx, info, manifest.FileName)
	switch {
	case err == nil:
		m, perr := manifest.Parse(text, w.classifier())
		if perr != nil {
			return nil, errors.Wrapf(perr, "parsing %s from %s", manifest.FileName, d.Name)
		}
		if lerr := rejectLocalDeps(m.Deps); lerr != nil {
			return nil, errors.Wrapf(lerr, "in %s's manifest", d.Name)
		}
		version = m.Version
		if m.BaseDir != "" {
			info.BaseDir = m.BaseDir
		}
		deps = make([]string, 0, len(m.Deps))
		enqueued = make([]depref.DepRef, 0, len(m.Deps))
		for _, sub := range m.Deps {
			deps = append(deps, sub.DisplayKey())
			enqueued = append(enqueued, sub)
		}
	case errors.Is(err, sourcehost.ErrNotFound):
		// Absence of the repo's manifest is recoverable: record the
		// package with an empty dependency list.
	default:
		return nil, errors.Wrapf(err, "fetching %s from %s", manifest.FileName, d.Name)
	}

	if version == "" {
		version = sourcehost.GuessVersion(info.Ref)
	}

	repoInfo := info
	pkg := lockfile.Package{
		Name:         d.Name,
		Version:      version,
		Source:       "github",
		BaseDir:      repoInfo.BaseDir,
		Repo:         &repoInfo,
		Dependencies: deps,
	}
	if err := insert(visited, pkg); err != nil {
		return nil, err
	}
	return enqueued, nil
}

func (w *Walker) visitLocal(d depref.LocalRef, visited map[string]lockfile.Package) ([]depref.DepRef, error) {
	canonical, err := canonicalize(d.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "canonicalizing local dependency %s", d.Name)
	}

	key := fmt.Sprintf("%s-%s", d.Name, canonical)
	if _, ok := visited[key]; ok {
		return nil, nil
	}
	if w.OnVisit != nil {
		w.OnVisit(d.Name)
	}

	var (
		deps     []string
		enqueued []depref.DepRef
		version  string
	)
	manifestPath := filepath.Join(d.Path, manifest.FileName)
	m, found, err := manifest.ReadFile(manifestPath, w.classifier())
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest for local dependency %s", d.Name)
	}
	if found {
		version = m.Version
		deps = make([]string, 0, len(m.Deps))
		enqueued = make([]depref.DepRef, 0, len(m.Deps))
		for _, sub := range m.Deps {
			deps = append(deps, sub.DisplayKey())
			enqueued = append(enqueued, sub)
		}
	}

	pkg := lockfile.Package{
		Name:         d.Name,
		Version:      version,
		Source:       "file://" + canonical,
		BaseDir:      sourcehost.DefaultBaseDir,
		Dependencies: deps,
	}
	if err := insert(visited, pkg); err != nil {
		return nil, err
	}
	return enqueued, nil
}

func rejectLocalDeps(deps []depref.DepRef) error {
	for _, dep := range deps {
		if local, ok := dep.(depref.LocalRef); ok {
			return errors.Wrapf(ErrLocalViaRepo, "dependency %q -> %q", local.Name, local.Path)
		}
	}
	return nil
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", err
	}
	return resolved, nil
}

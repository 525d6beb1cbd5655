// Package manifest reads mops.toml, the human-edited dependency manifest
// (C2 in the design). It never touches the network — classification of a
// dependency value into a DepRef variant is purely syntactic plus a
// filesystem-existence check.
package manifest

import (
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/mops-lang/mops/internal/depref"
)

// FileName is the manifest's fixed filename.
const FileName = "mops.toml"

// Manifest is the parsed content of mops.toml.
type Manifest struct {
	// Version is package.version, if declared.
	Version string
	// BaseDir is package.base_dir, if declared — lets a repo override
	// C1's "src" default for where its sources live.
	BaseDir string
	// Deps is the ordered list of dependency references, in manifest
	// iteration order.
	Deps []depref.DepRef
}

// doc mirrors the raw TOML shape: [package] version, [dependencies] table.
type doc struct {
	Package struct {
		Version string `toml:"version"`
		BaseDir string `toml:"base_dir"`
	} `toml:"package"`
	Dependencies map[string]toml.Primitive `toml:"dependencies"`
}

// Classifier decides whether a dependency value is a Repo reference
// (URL-shaped) independent of any particular filesystem or host.
type Classifier struct {
	// IsRepoURL returns true when v is shaped like a source-host URL.
	// Backed by sourcehost.Client.HasPrefix.
	IsRepoURL func(v string) bool
	// PathExists returns true when v refers to an existing filesystem
	// path. Defaults to os.Stat if left nil.
	PathExists func(v string) bool
}

func (c Classifier) pathExists(v string) bool {
	if c.PathExists != nil {
		return c.PathExists(v)
	}
	_, err := os.Stat(v)
	return err == nil
}

// Parse reads and classifies mops.toml text into a Manifest.
//
// Classification order is fixed: URL prefix test first,
// filesystem-existence test second, otherwise Registry.
func Parse(text string, classify Classifier) (Manifest, error) {
	var raw doc
	meta, err := toml.Decode(text, &raw)
	if err != nil {
		return Manifest{}, errors.Wrap(err, "invalid mops.toml")
	}

	// BurntSushi/toml decodes [dependencies] into a map keyed by
	// whatever order the underlying table iterates; recover manifest
	// declaration order from the raw key list it tracked while parsing,
	// so lockfile output stays deterministic across runs.
	names := meta.Keys()
	order := make([]string, 0, len(raw.Dependencies))
	seen := make(map[string]bool, len(raw.Dependencies))
	for _, k := range names {
		if len(k) == 2 && k[0] == "dependencies" {
			name := k[1]
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
		}
	}
	// Fall back to a sorted key list if the decoder didn't preserve key
	// events in a way we can recover from (defensive; BurntSushi/toml
	// always does, but sorting keeps output deterministic regardless).
	if len(order) != len(raw.Dependencies) {
		order = order[:0]
		for name := range raw.Dependencies {
			order = append(order, name)
		}
		sort.Strings(order)
	}

	deps := make([]depref.DepRef, 0, len(raw.Dependencies))
	for _, name := range order {
		prim := raw.Dependencies[name]
		var value string
		if err := meta.PrimitiveDecode(prim, &value); err != nil {
			return Manifest{}, errors.Wrapf(err, "dependencies.%s: version must be a string", name)
		}
		deps = append(deps, classify.classify(name, value))
	}

	return Manifest{
		Version: raw.Package.Version,
		BaseDir: raw.Package.BaseDir,
		Deps:    deps,
	}, nil
}

func (c Classifier) classify(name, value string) depref.DepRef {
	if c.IsRepoURL != nil && c.IsRepoURL(value) {
		return depref.RepoRef{Name: name, URL: value}
	}
	if c.pathExists(value) {
		return depref.LocalRef{Name: name, Path: value}
	}
	return depref.RegistryRef{Name: name, Version: value}
}

// ReadFile reads and parses a manifest file, returning (Manifest{}, false,
// nil) when the file does not exist — manifest absence is recoverable at
// every call site that uses it.
func ReadFile(path string, classify Classifier) (Manifest, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, false, nil
		}
		return Manifest{}, false, errors.Wrapf(err, "reading %s", path)
	}
	m, err := Parse(string(data), classify)
	if err != nil {
		return Manifest{}, false, err
	}
	return m, true, nil
}

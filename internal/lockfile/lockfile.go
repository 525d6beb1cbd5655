// Package lockfile defines Package, the lockfile's record type, and the
// codec (C3) that serializes a slice of Package to mops.lock and back.
package lockfile

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/mops-lang/mops/internal/sourcehost"
)

// FileName is the lockfile's fixed filename.
const FileName = "mops.lock"

// header is prepended to every generated lockfile.
const header = "# This file is auto-generated by mops.\n# It is not intended for manual editing.\n\n"

// Kind discriminates a Package's source.
type Kind int

const (
	// KindRegistry packages are served by the registry under an opaque
	// storage-service id.
	KindRegistry Kind = iota
	// KindRepo packages are pinned to a source-host commit.
	KindRepo
	// KindLocal packages are a filesystem path, never fetched.
	KindLocal
)

// localSourcePrefix marks a Package's Source field as a Local-kind path.
const localSourcePrefix = "file://"

// repoSource is the literal Source value for Repo-kind packages.
const repoSource = "github"

// Package is a record in the lockfile. Version is empty
// when absent (Repo packages may have no declared version before a
// guess is made; Local packages may have none at all).
type Package struct {
	Name         string               `toml:"name"`
	Version      string               `toml:"version,omitempty"`
	Source       string               `toml:"source"`
	BaseDir      string               `toml:"base_dir"`
	Repo         *sourcehost.RepoInfo `toml:"repo,omitempty"`
	Dependencies []string             `toml:"dependencies"`
}

// Kind classifies a Package by its Source field, the sole discriminator.
func (p Package) Kind() Kind {
	switch {
	case len(p.Source) >= len(localSourcePrefix) && p.Source[:len(localSourcePrefix)] == localSourcePrefix:
		return KindLocal
	case p.Source == repoSource:
		return KindRepo
	default:
		return KindRegistry
	}
}

// LocalPath returns the canonical path embedded in a Local package's
// Source field. Only meaningful when Kind() == KindLocal.
func (p Package) LocalPath() string {
	return p.Source[len(localSourcePrefix):]
}

// DedupKey is the graph walker's node identity for this Package. It
// must match the DedupKey a DepRef resolves to before the walker will
// recognize the two as the same node.
func (p Package) DedupKey() string {
	switch p.Kind() {
	case KindRegistry:
		return fmt.Sprintf("%s-%s", p.Name, p.Version)
	case KindRepo:
		return fmt.Sprintf("%s-%s", p.Name, p.Repo.Commit)
	case KindLocal:
		return fmt.Sprintf("%s-%s", p.Name, p.LocalPath())
	default:
		panic("unreachable package kind")
	}
}

// packages is the on-disk shape: a single top-level array-of-tables under
// the key "package".
type packages struct {
	Package []Package `toml:"package"`
}

// Encode writes the header comment followed by the TOML array-of-tables
// encoding of pkgs, sorted by DedupKey for deterministic output.
func Encode(pkgs []Package) ([]byte, error) {
	sorted := make([]Package, len(pkgs))
	copy(sorted, pkgs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DedupKey() < sorted[j].DedupKey()
	})

	var body bytes.Buffer
	enc := toml.NewEncoder(&body)
	if err := enc.Encode(packages{Package: sorted}); err != nil {
		return nil, errors.Wrap(err, "encoding lockfile")
	}

	out := make([]byte, 0, len(header)+body.Len())
	out = append(out, []byte(header)...)
	out = append(out, body.Bytes()...)
	return out, nil
}

// Decode parses lockfile TOML text into its Package records.
func Decode(text []byte) ([]Package, error) {
	var parsed packages
	if _, err := toml.Decode(string(text), &parsed); err != nil {
		return nil, errors.Wrap(err, "corrupt lockfile")
	}
	return parsed.Package, nil
}

// Write encodes pkgs and writes them to path.
func Write(path string, pkgs []Package) error {
	data, err := Encode(pkgs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// Read loads path, tolerating a missing file as an empty lockfile: a corrupt file is fatal, absence is not.
func Read(path string) ([]Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return Decode(data)
}

// ByDedupKey indexes pkgs by DedupKey, the shape the graph walker (C4)
// seeds its visited-map from when an existing lockfile is present.
func ByDedupKey(pkgs []Package) map[string]Package {
	out := make(map[string]Package, len(pkgs))
	for _, p := range pkgs {
		out[p.DedupKey()] = p
	}
	return out
}

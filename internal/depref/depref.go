// Package depref defines DepRef, the tagged-variant dependency reference
// parsed from a manifest line, before any resolution has happened.
//
// DepRef is modeled as an interface with one concrete type per variant
// (RegistryRef, RepoRef, LocalRef) rather than a single struct with a
// kind tag and unused fields — a pattern-matched sum type, not
// inheritance.
package depref

import "fmt"

// DepRef is a dependency reference as written in a manifest.
type DepRef interface {
	// DepName is the manifest-local dependency name (the map key it was
	// declared under).
	DepName() string
	// DisplayKey is the pre-resolution identity recorded in a Package's
	// dependencies list. It is deliberately distinct from the resolved
	// DedupKey: the same DedupKey can be reached through two DepRefs with
	// different DisplayKeys (e.g. an unpinned repo URL and a commit-pinned
	// URL that resolve to the same commit), and unifying them would lose information a
	// reader of the lockfile relies on to see what was actually declared.
	DisplayKey() string

	isDepRef()
}

// RegistryRef is an exact-version dependency served by the registry.
type RegistryRef struct {
	Name    string
	Version string
}

func (r RegistryRef) DepName() string    { return r.Name }
func (r RegistryRef) DisplayKey() string { return fmt.Sprintf("%s-%s", r.Name, r.Version) }
func (RegistryRef) isDepRef()            {}

// RepoRef is a dependency pinned to a source-host repository URL.
type RepoRef struct {
	Name string
	URL  string
}

func (r RepoRef) DepName() string    { return r.Name }
func (r RepoRef) DisplayKey() string { return fmt.Sprintf("%s-%s", r.Name, r.URL) }
func (RepoRef) isDepRef()            {}

// LocalRef is a dependency at a filesystem path.
type LocalRef struct {
	Name string
	Path string
}

func (r LocalRef) DepName() string    { return r.Name }
func (r LocalRef) DisplayKey() string { return fmt.Sprintf("%s-%s", r.Name, r.Path) }
func (LocalRef) isDepRef()            {}

var (
	_ DepRef = RegistryRef{}
	_ DepRef = RepoRef{}
	_ DepRef = LocalRef{}
)

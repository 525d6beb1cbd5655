// Package resolve implements the version resolver (C5): collapsing every
// Package sharing a logical name down to a single winner, or failing
// with a diagnostic naming both offending records.
package resolve

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"

	"github.com/mops-lang/mops/internal/lockfile"
)

// ErrConflict marks a version conflict the resolver could not settle
// automatically: either record is missing a version, either fails to
// parse as semver, or both carry the same version under different
// DedupKeys. Exact pinning is the norm in this ecosystem, so
// conflicts are rare and the policy stays conservative — only a cleanly
// parseable newer version silently wins.
var ErrConflict = errors.New("version conflict")

// Resolve collapses pkgs down to one record per Name. Packages that
// appear only once pass through unchanged. For a name seen more than
// once, the record with the higher parseable semver version wins;
// anything else is a fatal conflict.
func Resolve(pkgs []lockfile.Package) ([]lockfile.Package, error) {
	byName := make(map[string][]lockfile.Package, len(pkgs))
	order := make([]string, 0, len(pkgs))
	for _, pkg := range pkgs {
		if _, ok := byName[pkg.Name]; !ok {
			order = append(order, pkg.Name)
		}
		byName[pkg.Name] = append(byName[pkg.Name], pkg)
	}

	out := make([]lockfile.Package, 0, len(order))
	for _, name := range order {
		group := byName[name]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		winner, err := pickWinner(group)
		if err != nil {
			return nil, err
		}
		out = append(out, winner)
	}
	return out, nil
}

func pickWinner(group []lockfile.Package) (lockfile.Package, error) {
	winner := group[0]
	winnerVer, winnerErr := semver.NewVersion(winner.Version)

	for _, candidate := range group[1:] {
		candidateVer, candidateErr := semver.NewVersion(candidate.Version)
		if winnerErr != nil || candidateErr != nil {
			return lockfile.Package{}, conflictError(winner, candidate)
		}
		if candidateVer.GreaterThan(winnerVer) {
			winner, winnerVer = candidate, candidateVer
		} else if winnerVer.Equal(candidateVer) && winner.DedupKey() != candidate.DedupKey() {
			// Same logical version through two different identities
			// (e.g. a repo pin and a registry pin both landing on
			// "1.0.0") is still a conflict: there is no principled way
			// to prefer one source over the other.
			return lockfile.Package{}, conflictError(winner, candidate)
		}
	}
	return winner, nil
}

func conflictError(a, b lockfile.Package) error {
	return errors.Wrapf(ErrConflict, "%s: %s\n%s", a.Name, describe(a), describe(b))
}

func describe(pkg lockfile.Package) string {
	return fmt.Sprintf("{name: %s, version: %q, source: %s, base_dir: %s}", pkg.Name, pkg.Version, pkg.Source, pkg.BaseDir)
}

// Names returns the sorted set of logical names present in pkgs, useful
// for presenting a deterministic diagnostic or summary.
func Names(pkgs []lockfile.Package) []string {
	seen := make(map[string]bool, len(pkgs))
	names := make([]string, 0, len(pkgs))
	for _, pkg := range pkgs {
		if !seen[pkg.Name] {
			seen[pkg.Name] = true
			names = append(names, pkg.Name)
		}
	}
	sort.Strings(names)
	return names
}

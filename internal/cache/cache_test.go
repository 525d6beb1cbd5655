package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mops-lang/mops/internal/lockfile"
	"github.com/mops-lang/mops/internal/sourcehost"
)

func TestSubpathPerKind(t *testing.T) {
	registryPkg := lockfile.Package{Name: "base", Version: "0.11.0", Source: "storage-id"}
	assert.Equal(t, filepath.Join("mops", "base-0.11.0"), Subpath(registryPkg))

	repoPkg := lockfile.Package{
		Name:   "matchers",
		Source: "github",
		Repo:   &sourcehost.RepoInfo{Repo: "dfinity/motoko-matchers", Commit: "deadbeefcafe1234"},
	}
	assert.Equal(t, filepath.Join("git", "dfinity-motoko-matchers", "deadbeef"), Subpath(repoPkg))

	localPkg := lockfile.Package{Name: "sibling", Source: "file:///abs/sibling"}
	assert.Equal(t, "/abs/sibling", Subpath(localPkg))
}

func TestDirLocalIsAbsolutePathUnchanged(t *testing.T) {
	localPkg := lockfile.Package{Name: "sibling", Source: "file:///abs/sibling"}
	assert.Equal(t, "/abs/sibling", Dir("/cache", localPkg))
}

func TestIsCompleteLocalAlwaysTrue(t *testing.T) {
	localPkg := lockfile.Package{Name: "sibling", Source: "file:///abs/sibling"}
	assert.True(t, IsComplete("/cache", localPkg, func(string) bool { return false }))
}

func TestIsCompleteRegistryChecksSentinel(t *testing.T) {
	root := t.TempDir()
	pkg := lockfile.Package{Name: "base", Version: "0.11.0", Source: "storage-id"}
	assert.False(t, IsComplete(root, pkg, nil))

	require.NoError(t, MarkRegistryComplete(root, pkg))
	assert.True(t, IsComplete(root, pkg, nil))
}

func TestIsCompleteRepoDelegatesToMarker(t *testing.T) {
	pkg := lockfile.Package{Name: "matchers", Source: "github", Repo: &sourcehost.RepoInfo{Repo: "o/r", Commit: "abc123"}}
	var queried string
	IsComplete("/cache", pkg, func(dir string) bool {
		queried = dir
		return true
	})
	assert.Equal(t, filepath.Join("/cache", "git", "o-r", "abc123"), queried)
}

func TestBuildDriverEntries(t *testing.T) {
	pkgs := []lockfile.Package{
		{Name: "base", Version: "0.11.0", Source: "storage-id", BaseDir: "src"},
	}
	entries := BuildDriverEntries("/cache", pkgs)
	require.Len(t, entries, 1)
	assert.Equal(t, "base", entries[0].Name)
	assert.Equal(t, filepath.Join("/cache", "mops", "base-0.11.0", "src"), entries[0].Path)
}

func TestBuildDriverEntriesLocalIsAbsoluteNotNestedUnderRoot(t *testing.T) {
	pkgs := []lockfile.Package{
		{Name: "sibling", Source: "file:///home/u/vendor/foo", BaseDir: "src"},
	}
	entries := BuildDriverEntries("/cache", pkgs)
	require.Len(t, entries, 1)
	assert.Equal(t, "sibling", entries[0].Name)
	assert.Equal(t, filepath.Join("/home/u/vendor/foo", "src"), entries[0].Path)
}

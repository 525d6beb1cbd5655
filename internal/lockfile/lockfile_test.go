package lockfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mops-lang/mops/internal/sourcehost"
)

func TestKindDiscrimination(t *testing.T) {
	cases := []struct {
		name string
		pkg  Package
		want Kind
	}{
		{"registry", Package{Name: "base", Version: "0.11.0", Source: "storage-canister-id"}, KindRegistry},
		{"repo", Package{Name: "matchers", Source: "github", Repo: &sourcehost.RepoInfo{Repo: "dfinity/motoko-matchers", Commit: "abc123"}}, KindRepo},
		{"local", Package{Name: "sibling", Source: "file:///home/user/sibling"}, KindLocal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.pkg.Kind())
		})
	}
}

func TestDedupKeyPerKind(t *testing.T) {
	registryPkg := Package{Name: "base", Version: "0.11.0", Source: "storage-id"}
	assert.Equal(t, "base-0.11.0", registryPkg.DedupKey())

	repoPkg := Package{Name: "matchers", Source: "github", Repo: &sourcehost.RepoInfo{Commit: "deadbeef"}}
	assert.Equal(t, "matchers-deadbeef", repoPkg.DedupKey())

	localPkg := Package{Name: "sibling", Source: "file:///abs/sibling"}
	assert.Equal(t, "sibling-/abs/sibling", localPkg.DedupKey())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pkgs := []Package{
		{Name: "b", Version: "1.0.0", Source: "storage-id", BaseDir: "src", Dependencies: []string{"a-1.0.0"}},
		{Name: "a", Version: "1.0.0", Source: "storage-id", BaseDir: "src"},
		{Name: "c", Source: "github", BaseDir: "src", Repo: &sourcehost.RepoInfo{Repo: "o/c", Ref: "main", Commit: "cafebabe"}},
	}

	encoded, err := Encode(pkgs)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), "This file is auto-generated by mops")

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 3)

	byName := ByDedupKey(decoded)
	assert.Len(t, byName, 3)
}

func TestEncodeIsDeterministicallySorted(t *testing.T) {
	pkgs := []Package{
		{Name: "zeta", Version: "1.0.0", Source: "s"},
		{Name: "alpha", Version: "1.0.0", Source: "s"},
	}
	first, err := Encode(pkgs)
	require.NoError(t, err)

	reversed := []Package{pkgs[1], pkgs[0]}
	second, err := Encode(reversed)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReadMissingLockfileIsEmpty(t *testing.T) {
	pkgs, err := Read("/nonexistent/mops.lock")
	require.NoError(t, err)
	assert.Nil(t, pkgs)
}

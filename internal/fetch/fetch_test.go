package fetch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mops-lang/mops/internal/cache"
	"github.com/mops-lang/mops/internal/lockfile"
	"github.com/mops-lang/mops/internal/registry"
)

type fakeRegistry struct {
	fileIDs map[string][]string
}

func (f *fakeRegistry) GetHighestVersion(ctx context.Context, name string) (string, error) {
	return "", nil
}

func (f *fakeRegistry) GetPackageDetails(ctx context.Context, name, version string) (registry.PackageDetails, error) {
	return registry.PackageDetails{}, nil
}

func (f *fakeRegistry) GetFileIDs(ctx context.Context, name, version string) ([]string, error) {
	return f.fileIDs[name+"@"+version], nil
}

type fakeStorage struct {
	files      map[string]registry.FileMeta
	chunks     map[string][]string
	downloaded int64
}

func (s *fakeStorage) GetFileMeta(ctx context.Context, id string) (registry.FileMeta, error) {
	return s.files[id], nil
}

func (s *fakeStorage) DownloadChunk(ctx context.Context, id string, i int) ([]byte, error) {
	atomic.AddInt64(&s.downloaded, 1)
	return []byte(s.chunks[id][i]), nil
}

func TestFetchAllDownloadsAndMarksComplete(t *testing.T) {
	root := t.TempDir()
	pkg := lockfile.Package{Name: "base", Version: "0.11.0", Source: "storage-1", BaseDir: "src"}

	reg := &fakeRegistry{fileIDs: map[string][]string{"base@0.11.0": {"f1"}}}
	storage := &fakeStorage{
		files:  map[string]registry.FileMeta{"f1": {Path: "lib.mo", ChunkCount: 2}},
		chunks: map[string][]string{"f1": {"hello ", "world"}},
	}

	f := &Fetcher{
		Registry:  reg,
		StorageFor: func(id string) registry.Storage {
			assert.Equal(t, "storage-1", id)
			return storage
		},
		CacheRoot: root,
	}
	err := f.FetchAll(context.Background(), []lockfile.Package{pkg})
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(cache.Dir(root, pkg), "lib.mo"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(written))
	assert.True(t, cache.IsComplete(root, pkg, nil))
}

func TestFetchAllSkipsAlreadyCompletePackages(t *testing.T) {
	root := t.TempDir()
	pkg := lockfile.Package{Name: "base", Version: "0.11.0", Source: "storage-1", BaseDir: "src"}
	require.NoError(t, cache.MarkRegistryComplete(root, pkg))

	reg := &fakeRegistry{fileIDs: map[string][]string{"base@0.11.0": {"f1"}}}
	f := &Fetcher{
		Registry: reg,
		StorageFor: func(id string) registry.Storage {
			t.Fatalf("storage should not be consulted for an already-complete package")
			return nil
		},
		CacheRoot: root,
	}
	require.NoError(t, f.FetchAll(context.Background(), []lockfile.Package{pkg}))
}

func TestFetchAllDedupsRepeatedDedupKeys(t *testing.T) {
	root := t.TempDir()
	pkg := lockfile.Package{Name: "base", Version: "0.11.0", Source: "storage-1", BaseDir: "src"}

	reg := &fakeRegistry{fileIDs: map[string][]string{"base@0.11.0": {"f1"}}}
	storage := &fakeStorage{
		files:  map[string]registry.FileMeta{"f1": {Path: "lib.mo", ChunkCount: 1}},
		chunks: map[string][]string{"f1": {"x"}},
	}
	f := &Fetcher{
		Registry:   reg,
		StorageFor: func(id string) registry.Storage { return storage },
		CacheRoot:  root,
	}
	require.NoError(t, f.FetchAll(context.Background(), []lockfile.Package{pkg, pkg}))
	assert.EqualValues(t, 1, storage.downloaded)
}

func TestFetchAllSkipsLocalPackages(t *testing.T) {
	root := t.TempDir()
	pkg := lockfile.Package{Name: "sibling", Source: "file:///abs/sibling"}
	f := &Fetcher{
		Registry: &fakeRegistry{},
		StorageFor: func(id string) registry.Storage {
			t.Fatalf("storage should never be consulted for a local package")
			return nil
		},
		CacheRoot: root,
	}
	require.NoError(t, f.FetchAll(context.Background(), []lockfile.Package{pkg}))
}

// fetchRepo shells out to the system git binary (see runGit); exercising it
// for real would require network access and a writable git identity, so it
// is left to manual/integration testing rather than this unit suite.

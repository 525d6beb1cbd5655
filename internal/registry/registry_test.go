package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRegistryGetPackageDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_package_details", r.URL.Path)
		fmt.Fprint(w, `{"publication":{"storage":"storage-canister-1"},"config":{"base_dir":"src","dependencies":[{"name":"matchers","version":"","repo":"https://github.com/dfinity/motoko-matchers"},{"name":"base","version":"0.11.0","repo":""}]}}`)
	}))
	defer srv.Close()

	reg := NewHTTPRegistry(srv.URL, "", nil)
	details, err := reg.GetPackageDetails(context.Background(), "mylib", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "storage-canister-1", details.Storage)
	assert.Equal(t, "src", details.BaseDir)
	require.Len(t, details.Dependencies, 2)
	assert.Equal(t, SubDependency{Name: "matchers", Repo: "https://github.com/dfinity/motoko-matchers"}, details.Dependencies[0])
	assert.Equal(t, SubDependency{Name: "base", Version: "0.11.0"}, details.Dependencies[1])
}

func TestHTTPRegistryNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"no such package"}`)
	}))
	defer srv.Close()

	reg := NewHTTPRegistry(srv.URL, "", nil)
	_, err := reg.GetPackageDetails(context.Background(), "missing", "1.0.0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPStorageDownloadChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sid/files/file-1/chunks/2", r.URL.Path)
		fmt.Fprint(w, "chunk-bytes")
	}))
	defer srv.Close()

	storage := NewHTTPStorage(srv.URL, "sid", "", nil)
	body, err := storage.DownloadChunk(context.Background(), "file-1", 2)
	require.NoError(t, err)
	assert.Equal(t, "chunk-bytes", string(body))
}

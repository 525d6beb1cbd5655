package sourcehost

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, api, raw *httptest.Server) *Client {
	t.Helper()
	return New(Options{
		Host:    "github.com",
		APIBase: api.URL,
		RawBase: raw.URL,
	})
}

func TestParseURLFullyPinned(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected API call to %s: both ref and commit were already pinned", r.URL.Path)
	}))
	defer api.Close()
	raw := httptest.NewServer(http.NotFoundHandler())
	defer raw.Close()

	c := newTestClient(t, api, raw)
	info, err := c.ParseURL(context.Background(), "https://github.com/dfinity/motoko-base#master@deadbeefcafe")
	require.NoError(t, err)
	assert.Equal(t, RepoInfo{Repo: "dfinity/motoko-base", Ref: "master", Commit: "deadbeefcafe", BaseDir: DefaultBaseDir}, info)
}

func TestParseURLResolvesUnpinnedRefAndCommit(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/dfinity/motoko-base":
			fmt.Fprint(w, `{"default_branch":"main"}`)
		case "/repos/dfinity/motoko-base/commits/main":
			fmt.Fprint(w, `{"sha":"abc123"}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer api.Close()
	raw := httptest.NewServer(http.NotFoundHandler())
	defer raw.Close()

	c := newTestClient(t, api, raw)
	info, err := c.ParseURL(context.Background(), "https://github.com/dfinity/motoko-base.git")
	require.NoError(t, err)
	assert.Equal(t, RepoInfo{Repo: "dfinity/motoko-base", Ref: "main", Commit: "abc123", BaseDir: DefaultBaseDir}, info)
}

func TestParseURLRejectsWrongHost(t *testing.T) {
	c := New(Options{Host: "github.com"})
	_, err := c.ParseURL(context.Background(), "https://gitlab.com/owner/repo")
	assert.Error(t, err)
}

func TestFetchFileNotFound(t *testing.T) {
	raw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "404: Not Found")
	}))
	defer raw.Close()
	api := httptest.NewServer(http.NotFoundHandler())
	defer api.Close()

	c := newTestClient(t, api, raw)
	_, err := c.FetchFile(context.Background(), RepoInfo{Repo: "o/r", Commit: "c"}, "mops.toml")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGuessVersion(t *testing.T) {
	cases := map[string]string{
		"v1.2.3":    "1.2.3",
		"1.2.3":     "1.2.3",
		"main":      "main",
		"v1.2":      "v1.2",
		"v1.2.3rc1": "v1.2.3rc1",
	}
	for ref, want := range cases {
		assert.Equal(t, want, GuessVersion(ref))
	}
}

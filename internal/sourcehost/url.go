// Package sourcehost parses source-host repository URLs and resolves the
// unpinned parts (default branch, latest commit) against the host's HTTP
// API. It is C1 in the design: the only component that talks to the
// source-host's HTTP API (the fetcher clones repo packages with git).
package sourcehost

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/mops-lang/mops/internal/httpclient"
)

// DefaultBaseDir is the subdirectory assumed to hold package sources when
// a repo's own manifest does not declare otherwise.
const DefaultBaseDir = "src"

// RepoInfo is a fully resolved repository pin. Commit is never a symbolic
// ref: it is either the commit pinned in the URL, taken as given, or the
// sha the host's commits endpoint returned.
type RepoInfo struct {
	Repo    string `json:"repo"`
	Ref     string `json:"tag"`
	Commit  string `json:"commit"`
	BaseDir string `json:"base_dir"`
}

// Client resolves source-host URLs, querying the host's HTTP API only for
// the parts a URL leaves unpinned.
type Client struct {
	// urlPrefix is the literal prefix every accepted URL must start with,
	// e.g. "https://github.com/".
	urlPrefix string
	// apiBase is the host's repository-metadata/commits API, e.g.
	// "https://api.github.com".
	apiBase string
	// rawBase is the host's raw-file-fetch origin, e.g.
	// "https://raw.githubusercontent.com".
	rawBase string

	http *httpclient.Client
}

// Options configures a Client for a specific source host. The zero value
// is github.com.
type Options struct {
	Host    string // e.g. "github.com"
	APIBase string // e.g. "https://api.github.com"
	RawBase string // e.g. "https://raw.githubusercontent.com"
	Token   string
	Logger  hclog.Logger
}

// New constructs a Client, defaulting every unset option to GitHub.
func New(opts Options) *Client {
	host := opts.Host
	if host == "" {
		host = "github.com"
	}
	apiBase := opts.APIBase
	if apiBase == "" {
		apiBase = "https://api." + host
	}
	rawBase := opts.RawBase
	if rawBase == "" {
		rawBase = "https://raw." + strings.Replace(host, "github.com", "githubusercontent.com", 1)
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Client{
		urlPrefix: "https://" + host + "/",
		apiBase:   apiBase,
		rawBase:   rawBase,
		http: httpclient.New(httpclient.Opts{
			Token: opts.Token,
		}, logger),
	}
}

// HasPrefix reports whether v looks like a URL this client accepts — the
// syntactic test the manifest parser (C2) uses to classify a dependency
// value as Repo before ever resolving it.
func (c *Client) HasPrefix(v string) bool {
	return strings.HasPrefix(v, c.urlPrefix)
}

// ParseURL parses and, where necessary, resolves a source-host URL of the
// form:
//
//	https://<host>/<owner>/<repo>[.git][#<ref>[@<commit>]]
//
// Missing ref resolves via the default-branch endpoint; missing commit
// resolves via the commits endpoint. When both are present in the URL, no
// network calls are made. BaseDir defaults to DefaultBaseDir; callers
// overwrite it once they've read the repo's own manifest.
func (c *Client) ParseURL(ctx context.Context, rawURL string) (RepoInfo, error) {
	rest := strings.TrimPrefix(rawURL, c.urlPrefix)
	if rest == rawURL {
		return RepoInfo{}, errors.Errorf("invalid source-host url %q: missing %q prefix", rawURL, c.urlPrefix)
	}

	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoInfo{}, errors.Errorf("invalid source-host url %q: expected <owner>/<repo>", rawURL)
	}
	owner := parts[0]
	repoPart := parts[1]

	repoAndFragment := strings.SplitN(repoPart, "#", 2)
	repoName := strings.TrimSuffix(repoAndFragment[0], ".git")
	if repoName == "" {
		return RepoInfo{}, errors.Errorf("invalid source-host url %q: empty repo name", rawURL)
	}
	repo := owner + "/" + repoName

	var ref, commit string
	if len(repoAndFragment) > 1 {
		refAndCommit := strings.SplitN(repoAndFragment[1], "@", 2)
		ref = refAndCommit[0]
		if len(refAndCommit) > 1 {
			commit = refAndCommit[1]
		}
	}

	if ref == "" {
		branch, err := c.defaultBranch(ctx, repo)
		if err != nil {
			return RepoInfo{}, errors.Wrapf(err, "resolving default branch for %s", repo)
		}
		ref = branch
	}
	if commit == "" {
		sha, err := c.latestCommit(ctx, repo, ref)
		if err != nil {
			return RepoInfo{}, errors.Wrapf(err, "resolving commit for %s@%s", repo, ref)
		}
		commit = sha
	}

	return RepoInfo{
		Repo:    repo,
		Ref:     ref,
		Commit:  commit,
		BaseDir: DefaultBaseDir,
	}, nil
}

func (c *Client) defaultBranch(ctx context.Context, repo string) (string, error) {
	body, err := c.http.Get(ctx, c.apiBase+"/repos/"+repo)
	if err != nil {
		return "", err
	}
	var decoded struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", errors.Errorf("%s", string(body))
	}
	if decoded.DefaultBranch == "" {
		return "", errors.Errorf("%s", string(body))
	}
	return decoded.DefaultBranch, nil
}

func (c *Client) latestCommit(ctx context.Context, repo, ref string) (string, error) {
	body, err := c.http.Get(ctx, c.apiBase+"/repos/"+repo+"/commits/"+ref)
	if err != nil {
		return "", err
	}
	var decoded struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", errors.Errorf("%s", string(body))
	}
	if decoded.SHA == "" {
		return "", errors.Errorf("%s", string(body))
	}
	return decoded.SHA, nil
}

// FetchFile fetches a single file from the pinned commit, returning
// ErrNotFound when the host reports the path as absent.
func (c *Client) FetchFile(ctx context.Context, repo RepoInfo, path string) (string, error) {
	url := fmt.Sprintf("%s/%s/%s/%s", c.rawBase, repo.Repo, repo.Commit, path)
	body, err := c.http.Get(ctx, url)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(string(body), "404: Not Found") {
		return "", ErrNotFound
	}
	return string(body), nil
}

// ErrNotFound is returned by FetchFile when the raw-file endpoint reports
// the path does not exist at the pinned commit.
var ErrNotFound = errors.New("file not found")

// GuessVersion derives a semver-looking version string from a ref by
// stripping a leading "v" when the remainder parses as a dotted numeric
// triple (e.g. "v0.3.0" -> "0.3.0"). Refs that don't fit this shape are
// returned unchanged.
func GuessVersion(ref string) string {
	trimmed := strings.TrimPrefix(ref, "v")
	parts := strings.SplitN(trimmed, ".", 3)
	if len(parts) != 3 {
		return ref
	}
	for _, p := range parts {
		if p == "" {
			return ref
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return ref
			}
		}
	}
	return trimmed
}

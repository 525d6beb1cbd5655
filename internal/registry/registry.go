// Package registry defines the Registry and Storage RPC interfaces
// consumed by the graph walker (C4) and the fetcher (C6), plus an HTTP
// implementation of their wire contract. The wire contract is in scope;
// the concrete transport behind it is not — callers may substitute any
// Registry/Storage implementation that satisfies the interfaces, e.g. a
// fake for tests.
package registry

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/mops-lang/mops/internal/httpclient"
)

// SubDependency is one entry in a package's declared dependency list, as
// returned by get_package_details. An empty Version means the
// dependency is pinned via Repo instead.
type SubDependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Repo    string `json:"repo"`
}

// PackageDetails is the decoded response of get_package_details.
type PackageDetails struct {
	Storage      string          `json:"storage"`
	BaseDir      string          `json:"base_dir"`
	Dependencies []SubDependency `json:"dependencies"`
}

// FileMeta is the decoded response of get_file_meta.
type FileMeta struct {
	Path       string `json:"path"`
	ChunkCount int    `json:"chunk_count"`
}

// ErrNotFound is returned when a registry lookup names a package that
// does not exist. This aborts the run with an instruction to add the
// dependency manually; it is typed so callers can distinguish it from
// transport failures.
var ErrNotFound = errors.New("package not found in registry")

// Registry is the RPC surface served by the registry.
type Registry interface {
	// GetHighestVersion returns the newest published version of name.
	GetHighestVersion(ctx context.Context, name string) (string, error)
	// GetPackageDetails returns the metadata needed to build a Package
	// record and enqueue its sub-dependencies.
	GetPackageDetails(ctx context.Context, name, version string) (PackageDetails, error)
	// GetFileIDs returns the opaque storage file ids making up a
	// package's content.
	GetFileIDs(ctx context.Context, name, version string) ([]string, error)
}

// Storage is the RPC surface served by a package's storage-service
// handle. A Storage handle is cheap to share read-only across
// concurrent fetch tasks.
type Storage interface {
	// GetFileMeta returns a file's path and chunk count.
	GetFileMeta(ctx context.Context, id string) (FileMeta, error)
	// DownloadChunk returns chunk i of file id.
	DownloadChunk(ctx context.Context, id string, i int) ([]byte, error)
}

// HTTPRegistry is an HTTP+JSON implementation of Registry.
type HTTPRegistry struct {
	http *httpclient.Client
}

// NewHTTPRegistry constructs an HTTPRegistry against baseURL (e.g.
// "https://registry.mops.one/api").
func NewHTTPRegistry(baseURL, token string, logger hclog.Logger) *HTTPRegistry {
	return &HTTPRegistry{
		http: httpclient.New(httpclient.Opts{BaseURL: baseURL, Token: token}, logger),
	}
}

func (r *HTTPRegistry) call(ctx context.Context, rpc string, req, resp interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrapf(err, "encoding %s request", rpc)
	}
	raw, err := r.http.PostJSON(ctx, "/"+rpc, body)
	if err != nil {
		return errors.Wrapf(err, "%s", rpc)
	}
	if err := json.Unmarshal(raw, resp); err != nil {
		return errors.Wrapf(err, "decoding %s response: %s", rpc, string(raw))
	}
	return nil
}

// GetHighestVersion implements Registry.
func (r *HTTPRegistry) GetHighestVersion(ctx context.Context, name string) (string, error) {
	var resp struct {
		Version string `json:"version"`
		Error   string `json:"error"`
	}
	if err := r.call(ctx, "get_highest_version", map[string]string{"name": name}, &resp); err != nil {
		return "", err
	}
	if resp.Version == "" {
		return "", errors.Wrapf(ErrNotFound, "%s", name)
	}
	return resp.Version, nil
}

// GetPackageDetails implements Registry. The response nests storage under
// "publication" and base_dir/dependencies under "config", mirroring the
// registry's own record shape (publication record + package config)
// rather than flattening it onto the wire.
func (r *HTTPRegistry) GetPackageDetails(ctx context.Context, name, version string) (PackageDetails, error) {
	var resp struct {
		Publication struct {
			Storage string `json:"storage"`
		} `json:"publication"`
		Config struct {
			BaseDir      string          `json:"base_dir"`
			Dependencies []SubDependency `json:"dependencies"`
		} `json:"config"`
		Error string `json:"error"`
	}
	if err := r.call(ctx, "get_package_details", map[string]string{"name": name, "version": version}, &resp); err != nil {
		return PackageDetails{}, err
	}
	if resp.Error != "" {
		return PackageDetails{}, errors.Wrapf(ErrNotFound, "%s@%s: %s", name, version, resp.Error)
	}
	return PackageDetails{
		Storage:      resp.Publication.Storage,
		BaseDir:      resp.Config.BaseDir,
		Dependencies: resp.Config.Dependencies,
	}, nil
}

// GetFileIDs implements Registry.
func (r *HTTPRegistry) GetFileIDs(ctx context.Context, name, version string) ([]string, error) {
	var resp struct {
		IDs   []string `json:"ids"`
		Error string   `json:"error"`
	}
	if err := r.call(ctx, "get_file_ids", map[string]string{"name": name, "version": version}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.Wrapf(ErrNotFound, "%s@%s: %s", name, version, resp.Error)
	}
	return resp.IDs, nil
}

// HTTPStorage is an HTTP+JSON implementation of Storage, addressed by the
// storage-service id returned in a Package's Source field.
type HTTPStorage struct {
	http *httpclient.Client
}

// NewHTTPStorage constructs an HTTPStorage handle for a single storage
// service id. Cloning is cheap: it is just a *httpclient.Client pointer,
// safe to share read-only across the concurrent fetch tasks of C6.
func NewHTTPStorage(baseURL, storageID, token string, logger hclog.Logger) *HTTPStorage {
	return &HTTPStorage{
		http: httpclient.New(httpclient.Opts{BaseURL: baseURL + "/" + storageID, Token: token}, logger),
	}
}

// GetFileMeta implements Storage.
func (s *HTTPStorage) GetFileMeta(ctx context.Context, id string) (FileMeta, error) {
	body, err := s.http.Get(ctx, "/files/"+id+"/meta")
	if err != nil {
		return FileMeta{}, err
	}
	var meta FileMeta
	if err := json.Unmarshal(body, &meta); err != nil {
		return FileMeta{}, errors.Wrapf(err, "decoding file meta for %s: %s", id, string(body))
	}
	return meta, nil
}

// DownloadChunk implements Storage.
func (s *HTTPStorage) DownloadChunk(ctx context.Context, id string, i int) ([]byte, error) {
	body, err := s.http.Get(ctx, "/files/"+id+"/chunks/"+strconv.Itoa(i))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Package mopsconfig binds the environment and default values that
// configure a run: cache location, source-host identity, registry
// endpoint and tokens, and fetch concurrency.
package mopsconfig

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "MOPS"

// Config holds every value a run needs beyond the manifest/lockfile
// themselves. Precedence is env var > default; there is no config file,
// since every value here also has a sensible machine default.
type Config struct {
	// CacheDir is the root of the content-addressed cache.
	CacheDir string
	// Host is the source-host identity repo URLs are parsed against.
	Host string
	// GitHubToken authenticates source-host API requests, if set.
	GitHubToken string
	// RegistryURL is the registry/storage service's base URL.
	RegistryURL string
	// RegistryToken authenticates registry/storage RPCs, if set.
	RegistryToken string
	// FetchConcurrency bounds how many packages the fetcher downloads at
	// once.
	FetchConcurrency int
}

// Load reads MOPS_* environment variables (and the unprefixed
// GITHUB_TOKEN, the conventional name for a source-host credential) over
// a set of hardcoded defaults.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	for _, key := range []string{"cache_dir", "host", "registry_url", "registry_token", "fetch_concurrency"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, errors.Wrapf(err, "binding MOPS_%s", key)
		}
	}
	if err := v.BindEnv("github_token", "GITHUB_TOKEN"); err != nil {
		return Config{}, errors.Wrap(err, "binding GITHUB_TOKEN")
	}

	defaultCacheDir, err := defaultCacheDir()
	if err != nil {
		return Config{}, err
	}
	v.SetDefault("cache_dir", defaultCacheDir)
	v.SetDefault("host", "github.com")
	v.SetDefault("registry_url", "https://registry.mops.one/api")
	v.SetDefault("fetch_concurrency", 8)

	return Config{
		CacheDir:         v.GetString("cache_dir"),
		Host:             v.GetString("host"),
		GitHubToken:      v.GetString("github_token"),
		RegistryURL:      v.GetString("registry_url"),
		RegistryToken:    v.GetString("registry_token"),
		FetchConcurrency: v.GetInt("fetch_concurrency"),
	}, nil
}

func defaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory for default cache dir")
	}
	return filepath.Join(home, ".cache", "mops"), nil
}

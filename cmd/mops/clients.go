package main

import (
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/mops-lang/mops/internal/mopsconfig"
	"github.com/mops-lang/mops/internal/registry"
	"github.com/mops-lang/mops/internal/sourcehost"
)

// clients bundles the long-lived handles a resolve or fetch run shares
// across the whole operation: one source-host client, one registry
// client, and a memoizing factory for the per-package storage handles
// the fetcher opens on demand.
type clients struct {
	cfg        mopsconfig.Config
	sourceHost *sourcehost.Client
	registry   registry.Registry

	storageMu sync.Mutex
	storage   map[string]registry.Storage
}

func newClients(cfg mopsconfig.Config, logger hclog.Logger) *clients {
	return &clients{
		cfg:        cfg,
		sourceHost: sourcehost.New(sourcehost.Options{Host: cfg.Host, Token: cfg.GitHubToken, Logger: logger.Named("sourcehost")}),
		registry:   registry.NewHTTPRegistry(cfg.RegistryURL, cfg.RegistryToken, logger.Named("registry")),
		storage:    make(map[string]registry.Storage),
	}
}

// storageFor memoizes a Storage handle per storage-service id so the
// fetcher's concurrent downloads share one retryable HTTP client per id
// instead of dialing a fresh one per file.
func (c *clients) storageFor(storageID string) registry.Storage {
	c.storageMu.Lock()
	defer c.storageMu.Unlock()
	if s, ok := c.storage[storageID]; ok {
		return s
	}
	s := registry.NewHTTPStorage(c.cfg.RegistryURL, storageID, c.cfg.RegistryToken, hclog.NewNullLogger())
	c.storage[storageID] = s
	return s
}

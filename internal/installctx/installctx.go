// Package installctx carries the ambient install scope: the artifact cache
// handle, an accumulator of artifacts discovered so far, dry-run status,
// and the shared HTTP client, passed explicitly into every installer and
// resolver rather than reached for through a package-level global.
package installctx

import (
	"net/http"
	"sync"

	"github.com/mcdex/installcore/internal/cache"
	"github.com/mcdex/installcore/internal/core"
	"github.com/mcdex/installcore/internal/download"
	"github.com/mcdex/installcore/internal/progress"
)

// Ctx is bound once per Install call and threaded through every
// helper by value of its pointer.
type Ctx struct {
	Spec     core.InstallSpec
	Reporter progress.Reporter
	Client   *http.Client
	Cache    *cache.Cache
	DryRun   bool

	mu        sync.Mutex
	artifacts []cache.ArtifactRef
}

// New builds a Ctx for one install.
func New(spec core.InstallSpec, reporter progress.Reporter, client *http.Client, c *cache.Cache) *Ctx {
	return &Ctx{
		Spec:     spec,
		Reporter: reporter,
		Client:   client,
		Cache:    c,
		DryRun:   spec.DryRun,
	}
}

// Track records that label now points at sha1, for the cache's install
// record and refcounting at commit. It is a no-op during a dry run since nothing was actually
// ingested into the cache.
func (c *Ctx) Track(label, sha1 string) {
	if c.DryRun || label == "" || sha1 == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifacts = append(c.artifacts, cache.ArtifactRef{Label: label, Sha1: sha1})
}

// TrackFromCache looks up label's current blob in the cache and tracks it,
// used after a batch download completes so the accumulator records the
// actual ingested SHA-1 rather than whatever (possibly empty) hash the
// artifact was submitted with.
func (c *Ctx) TrackFromCache(label string) {
	if c.DryRun || label == "" {
		return
	}
	if sha1, ok := c.Cache.FindComponent(label); ok {
		c.Track(label, sha1)
	}
}

// Artifacts returns every artifact tracked so far.
func (c *Ctx) Artifacts() []cache.ArtifactRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]cache.ArtifactRef, len(c.artifacts))
	copy(out, c.artifacts)
	return out
}

// NewBatch builds a download.Batch sharing this Ctx's HTTP client and
// pointed at this Ctx's cache, sized to the InstallSpec's concurrency.
func (c *Ctx) NewBatch() *download.Batch {
	return &download.Batch{
		Client:      c.Client,
		Cache:       c.Cache,
		Concurrency: c.Spec.ResolvedConcurrency(),
	}
}

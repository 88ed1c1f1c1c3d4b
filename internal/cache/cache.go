// ***************************************************************************
//
//  Copyright 2017 David (Dizzy) Smith, dizzyd@dizzyd.com
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
//   Unless required by applicable law or agreed to in writing, software
//   distributed under the License is distributed on an "AS IS" BASIS,
//   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//   See the License for the specific language governing permissions and
//   limitations under the License.
// ***************************************************************************

// Package cache implements the content-addressed artifact store: blobs
// keyed by SHA-1, a label index pointing semantic names at blobs, and
// per-install reference counting so unused blobs can be pruned safely. The
// index is a single JSON document persisted by write-rename; durable
// install bookkeeping lives in internal/history instead.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mcdex/installcore/internal/hashfs"
)

// Entry is the persisted record of one blob.
type Entry struct {
	Sha1      string `json:"sha1"`
	Size      int64  `json:"size"`
	Signature string `json:"signature,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`
	Refs      int    `json:"refs"`
}

// ArtifactRef is one (label, sha1) pair recorded as part of an install.
type ArtifactRef struct {
	Label string `json:"label"`
	Sha1  string `json:"sha1"`
}

// InstallRecord is the set of artifacts a single install produced, used to
// recompute refcounts.
type InstallRecord struct {
	InstallID string        `json:"installId"`
	Loader    string        `json:"loader,omitempty"`
	Artifacts []ArtifactRef `json:"artifacts"`
}

type index struct {
	Entries  map[string]*Entry         `json:"entries"`
	Labels   map[string]string         `json:"labels"`
	Installs map[string]*InstallRecord `json:"installs"`
}

// Cache is the content-addressed artifact store rooted at <data_dir>/cache.
// All mutation is serialized under mu; it is never held across network I/O.
type Cache struct {
	dir  string
	path string

	mu  sync.Mutex
	idx index
}

// Open loads the cache index from <dir>/artifacts.json, creating an empty
// one if it doesn't exist yet.
func Open(dir string) (*Cache, error) {
	c := &Cache{
		dir:  dir,
		path: filepath.Join(dir, "artifacts.json"),
		idx: index{
			Entries:  map[string]*Entry{},
			Labels:   map[string]string{},
			Installs: map[string]*InstallRecord{},
		},
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("cache: read %s: %w", c.path, err)
	}

	if err := json.Unmarshal(data, &c.idx); err != nil {
		return nil, fmt.Errorf("cache: parse %s: %w", c.path, err)
	}
	if c.idx.Entries == nil {
		c.idx.Entries = map[string]*Entry{}
	}
	if c.idx.Labels == nil {
		c.idx.Labels = map[string]string{}
	}
	if c.idx.Installs == nil {
		c.idx.Installs = map[string]*InstallRecord{}
	}
	return c, nil
}

func (c *Cache) blobPath(sha1 string) string {
	return filepath.Join(c.dir, "blobs", sha1[:2], sha1)
}

// IngestFile streams-hashes path, moves it into the blob store if the blob
// is new, and otherwise ensures path still exists pointing at identical
// bytes (hard-link or copy). It returns the blob's SHA-1.
func (c *Cache) IngestFile(path, signature, sourceURL string) (string, error) {
	sha1, err := hashfs.Sha1Stream(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cache: stat %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	blob := c.blobPath(sha1)

	if path == blob {
		c.ensureEntryLocked(sha1, info.Size(), signature, sourceURL)
		return sha1, nil
	}

	if _, err := os.Stat(blob); err == nil {
		// Blob already present; restore caller's path from it so it keeps
		// existing with identical bytes.
		if err := hashfs.LinkOrCopy(blob, path); err != nil {
			return "", fmt.Errorf("cache: restore %s from blob: %w", path, err)
		}
		c.ensureEntryLocked(sha1, info.Size(), signature, sourceURL)
		return sha1, nil
	}

	if err := os.MkdirAll(filepath.Dir(blob), 0755); err != nil {
		return "", fmt.Errorf("cache: mkdir for blob %s: %w", sha1, err)
	}
	if err := hashfs.MoveDir(path, blob); err != nil {
		return "", fmt.Errorf("cache: move %s into blob store: %w", path, err)
	}
	// The source path must still exist with identical bytes after ingest.
	if err := hashfs.LinkOrCopy(blob, path); err != nil {
		return "", fmt.Errorf("cache: restore %s after ingest: %w", path, err)
	}

	c.ensureEntryLocked(sha1, info.Size(), signature, sourceURL)
	return sha1, nil
}

func (c *Cache) ensureEntryLocked(sha1 string, size int64, signature, sourceURL string) {
	e, ok := c.idx.Entries[sha1]
	if !ok {
		e = &Entry{Sha1: sha1, Size: size}
		c.idx.Entries[sha1] = e
	}
	if signature != "" {
		e.Signature = signature
	}
	if sourceURL != "" {
		e.SourceURL = sourceURL
	}
}

// SetLabel binds label to sha1, overwriting any previous binding.
func (c *Cache) SetLabel(label, sha1 string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idx.Labels[label] = sha1
}

// FindComponent returns the SHA-1 currently bound to label, if any.
func (c *Cache) FindComponent(label string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sha1, ok := c.idx.Labels[label]
	return sha1, ok
}

// RestoreArtifact materializes the blob for sha1 at destination, creating
// parent directories as needed. It reports false (not an error) if the blob
// is absent, so callers can fall back to a network fetch.
func (c *Cache) RestoreArtifact(sha1, destination string) (bool, error) {
	c.mu.Lock()
	blob := c.blobPath(sha1)
	_, exists := c.idx.Entries[sha1]
	c.mu.Unlock()

	if !exists {
		return false, nil
	}
	if _, err := os.Stat(blob); err != nil {
		return false, nil
	}

	if err := hashfs.LinkOrCopy(blob, destination); err != nil {
		return false, fmt.Errorf("cache: restore %s: %w", destination, err)
	}
	return true, nil
}

// RecordInstall replaces any prior record for installID, then recomputes
// every affected blob's refcount as the number of (installID, label) pairs
// across all records that point at it.
func (c *Cache) RecordInstall(installID, loader string, artifacts []ArtifactRef) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.idx.Installs[installID] = &InstallRecord{
		InstallID: installID,
		Loader:    loader,
		Artifacts: append([]ArtifactRef(nil), artifacts...),
	}

	c.recomputeRefcountsLocked()
}

func (c *Cache) recomputeRefcountsLocked() {
	counts := map[string]int{}
	for _, rec := range c.idx.Installs {
		for _, ref := range rec.Artifacts {
			counts[ref.Sha1]++
		}
	}
	for sha1, e := range c.idx.Entries {
		e.Refs = counts[sha1]
	}
}

// PruneUnused deletes every blob with zero references that no label
// currently binds, and is idempotent: calling it twice in a row has the same
// effect as calling it once.
func (c *Cache) PruneUnused() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := map[string]struct{}{}
	for _, sha1 := range c.idx.Labels {
		live[sha1] = struct{}{}
	}

	removed := 0
	for sha1, e := range c.idx.Entries {
		if e.Refs > 0 {
			continue
		}
		if _, ok := live[sha1]; ok {
			continue
		}
		if err := os.Remove(c.blobPath(sha1)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("cache: prune blob %s: %w", sha1, err)
		}
		delete(c.idx.Entries, sha1)
		removed++
	}
	return removed, nil
}

// Save atomically persists the index to disk.
func (c *Cache) Save() error {
	c.mu.Lock()
	data, err := json.MarshalIndent(c.idx, "", "  ")
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("cache: marshal index: %w", err)
	}
	return hashfs.AtomicWrite(c.path, data)
}

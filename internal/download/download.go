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

package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mcdex/installcore/internal/core"
	"github.com/mcdex/installcore/internal/hashfs"
	"github.com/mcdex/installcore/internal/progress"
)

// Artifact is one unit of work for the batch downloader.
type Artifact struct {
	Name  string
	URL   string
	Path  string
	Sha1  string // expected, optional
	Size  int64  // expected byte size, optional; used only for progress totals
	Label string // optional cache label
}

// Cache is the subset of internal/cache.Cache the downloader needs; kept as
// an interface so tests can substitute a fake without touching disk.
type Cache interface {
	FindComponent(label string) (string, bool)
	RestoreArtifact(sha1, destination string) (bool, error)
	IngestFile(path, signature, sourceURL string) (string, error)
	SetLabel(label, sha1 string)
}

// Batch runs a bounded-concurrency download of artifacts, reporting
// aggregate progress in the percent band [basePct, basePct+weight].
type Batch struct {
	Client      *http.Client
	Cache       Cache
	Concurrency int
}

// NewBatch builds a Batch with a fresh HTTP client at the given timeout.
func NewBatch(cache Cache, concurrency int, timeout time.Duration) *Batch {
	if concurrency <= 0 {
		concurrency = core.DefaultConcurrency
	}
	return &Batch{
		Client:      NewHTTPClient(timeout),
		Cache:       cache,
		Concurrency: concurrency,
	}
}

// Run executes the batch. Failure is fail-fast: the first failing unit
// cancels the rest and Run returns that error. Successfully completed files
// are left in place (they're content-addressed and safe to reuse); partial
// temp files are removed.
func (b *Batch) Run(ctx context.Context, reporter progress.Reporter, artifacts []Artifact, basePct, weight int) error {
	dedup := make(map[string]Artifact, len(artifacts))
	for _, a := range artifacts {
		dedup[a.Path] = a
	}
	units := make([]Artifact, 0, len(dedup))
	for _, a := range dedup {
		units = append(units, a)
	}

	total := len(units)
	if total == 0 {
		reporter.SetPercent(basePct + weight)
		return nil
	}

	var totalBytes int64
	for _, a := range units {
		totalBytes += a.Size
	}
	var transferred atomic.Int64

	sem := semaphore.NewWeighted(int64(b.Concurrency))
	g, gctx := errgroup.WithContext(ctx)

	var completed progress.MaxPercent // damps percent so out-of-order completions never report backwards
	doneCount := make(chan struct{}, total)

	go func() {
		n := 0
		for range doneCount {
			n++
			pct := basePct + (weight * n / total)
			reporter.SetPercent(completed.Next(pct))
		}
	}()

	for _, unit := range units {
		unit := unit
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			defer func() { doneCount <- struct{}{} }()

			if reporter.IsCancelled() {
				return core.ErrCancelled
			}
			for reporter.IsPaused() {
				if reporter.IsCancelled() {
					return core.ErrCancelled
				}
				time.Sleep(200 * time.Millisecond)
			}

			return b.fetchOne(gctx, reporter, unit, &transferred, totalBytes)
		})
	}

	err := g.Wait()
	close(doneCount)
	if err != nil {
		return err
	}
	reporter.SetPercent(basePct + weight)
	return nil
}

func (b *Batch) fetchOne(ctx context.Context, reporter progress.Reporter, a Artifact, transferred *atomic.Int64, totalBytes int64) error {
	if a.Label != "" {
		if sha1, ok := b.Cache.FindComponent(a.Label); ok {
			restored, err := b.Cache.RestoreArtifact(sha1, a.Path)
			if err != nil {
				return fmt.Errorf("download: restore %s from cache: %w", a.Name, err)
			}
			if restored {
				return nil
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(a.Path), 0755); err != nil {
		return &core.IOError{Path: a.Path, Op: "mkdir", Err: err}
	}

	req, err := newRequest(a.URL)
	if err != nil {
		return &core.NetworkError{URL: a.URL, Err: err}
	}
	req = req.WithContext(ctx)

	resp, err := b.Client.Do(req)
	if err != nil {
		return &core.NetworkError{URL: a.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &core.NetworkError{URL: a.URL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	tmp := a.Path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return &core.IOError{Path: tmp, Op: "create", Err: err}
	}

	body := &cancelableReader{ctx: ctx, r: resp.Body}
	counted := &progressWriter{
		w:           f,
		reporter:    reporter,
		transferred: transferred,
		total:       totalBytes,
	}
	digest, _, copyErr := hashfs.Sha1Reader(counted, body)
	closeErr := f.Close()

	if copyErr != nil {
		os.Remove(tmp)
		if copyErr == context.Canceled || ctx.Err() != nil {
			return core.ErrCancelled
		}
		return &core.NetworkError{URL: a.URL, Err: copyErr}
	}
	if closeErr != nil {
		os.Remove(tmp)
		return &core.IOError{Path: tmp, Op: "close", Err: closeErr}
	}

	if a.Sha1 != "" && digest != a.Sha1 {
		os.Remove(tmp)
		return &core.HashMismatchError{Path: a.Path, Expected: a.Sha1, Actual: digest}
	}

	if err := os.Rename(tmp, a.Path); err != nil {
		os.Remove(tmp)
		return &core.IOError{Path: a.Path, Op: "rename", Err: err}
	}

	if a.Label != "" {
		sha1, err := b.Cache.IngestFile(a.Path, "", a.URL)
		if err != nil {
			return fmt.Errorf("download: ingest %s: %w", a.Path, err)
		}
		b.Cache.SetLabel(a.Label, sha1)
	}

	return nil
}

// progressWriter reports batch-aggregate bytes through the Reporter at a
// 256 KiB granularity so a handful of big jars still produce visible
// movement without flooding the reporter from every 32 KiB copy chunk.
type progressWriter struct {
	w           io.Writer
	reporter    progress.Reporter
	transferred *atomic.Int64
	total       int64
	acc         int64
}

func (p *progressWriter) Write(buf []byte) (int, error) {
	n, err := p.w.Write(buf)
	if n > 0 {
		cur := p.transferred.Add(int64(n))
		p.acc += int64(n)
		if p.acc >= 256<<10 {
			p.acc = 0
			p.reporter.UpdateBytes(cur, p.total)
		}
	}
	return n, err
}

// cancelableReader checks ctx between chunks so a cancelled context unwinds
// a long streaming read instead of running to completion.
type cancelableReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *cancelableReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

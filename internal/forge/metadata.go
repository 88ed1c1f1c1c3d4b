package forge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mcdex/installcore/internal/core"
	"github.com/mcdex/installcore/internal/gav"
)

// ResolveLatestVersion picks the newest published loader version for
// mcVersion from the loader's maven-metadata.xml when the caller left
// ModloaderVersion blank. Forge publishes versions as
// "<mc>-<forge>" so the match is a plain prefix; NeoForge versions carry the
// Minecraft minor/patch pair ("20.4.237" for 1.20.4) instead.
func ResolveLatestVersion(ctx context.Context, client *http.Client, p Profile, mcVersion string) (string, error) {
	url := gav.MetadataURL(p.MavenBaseURL, "net."+p.Namespace, p.Loader)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &core.NetworkError{URL: url, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &core.NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &core.NetworkError{URL: url, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &core.NetworkError{URL: url, Err: err}
	}

	meta, err := gav.ParseMetadata(data)
	if err != nil {
		return "", &core.BadManifestError{Source: url, Err: err}
	}

	prefix := versionPrefix(p.Loader, mcVersion)
	latest := ""
	for _, v := range meta.Versioning.Versions {
		if strings.HasPrefix(v, prefix) {
			latest = v
		}
	}
	if latest == "" {
		return "", &core.UnsupportedComboError{Loader: p.Loader, MinecraftVsn: mcVersion}
	}
	return latest, nil
}

func versionPrefix(loader, mcVersion string) string {
	if loader != "neoforge" {
		return mcVersion + "-"
	}
	// NeoForge drops the leading "1." and zero-pads a missing patch
	// component: 1.20.4 -> "20.4.", 1.21 -> "21.0.".
	v := strings.TrimPrefix(mcVersion, "1.")
	if !strings.Contains(v, ".") {
		v += ".0"
	}
	return v + "."
}

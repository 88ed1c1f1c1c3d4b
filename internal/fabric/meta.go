package fabric

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Jeffail/gabs"

	"github.com/mcdex/installcore/internal/core"
)

// ResolveLatestLoader picks the newest stable loader version the meta API
// publishes for mcVersion when the caller left ModloaderVersion blank. The
// endpoint returns entries newest-first; an unstable build is only chosen if
// no stable one exists for this Minecraft version.
func ResolveLatestLoader(ctx context.Context, client *http.Client, p Profile, mcVersion string) (string, error) {
	url := fmt.Sprintf("%s/%s", p.MetaBaseURL, mcVersion)

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

	doc, err := gabs.ParseJSONBuffer(resp.Body)
	if err != nil {
		return "", &core.BadManifestError{Source: url, Err: err}
	}

	entries, _ := doc.Children()
	first := ""
	for _, e := range entries {
		vsn, _ := e.Path("loader.version").Data().(string)
		if vsn == "" {
			continue
		}
		if first == "" {
			first = vsn
		}
		if stable, _ := e.Path("loader.stable").Data().(bool); stable {
			return vsn, nil
		}
	}
	if first == "" {
		return "", &core.UnsupportedComboError{Loader: p.Name, MinecraftVsn: mcVersion}
	}
	return first, nil
}

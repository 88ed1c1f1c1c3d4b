package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mcdex/installcore/internal/hashfs"
	"github.com/mcdex/installcore/internal/manifest"
)

const indexFresh = 24 * time.Hour

// cachedAssetIndexFetch mirrors manifest's TTL-banded fetch (fresh copy used
// as-is; network failure falls back to whatever is on disk) for the asset
// index document.
func cachedAssetIndexFetch(ctx context.Context, client *http.Client, metaDir string, ref manifest.AssetIndexRef) ([]byte, error) {
	path := filepath.Join(metaDir, ref.ID+".json")

	info, statErr := os.Stat(path)
	if statErr == nil && time.Since(info.ModTime()) < indexFresh {
		return os.ReadFile(path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("assets: build request for %s: %w", ref.URL, err)
	}
	req.Header.Set("User-Agent", "installcore/1.0 (+https://github.com/mcdex/installcore)")

	resp, err := client.Do(req)
	if err != nil {
		if statErr == nil {
			return os.ReadFile(path)
		}
		return nil, fmt.Errorf("assets: fetch index %s: %w", ref.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if statErr == nil {
			return os.ReadFile(path)
		}
		return nil, fmt.Errorf("assets: HTTP %d fetching index %s", resp.StatusCode, ref.ID)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("assets: read index %s body: %w", ref.ID, err)
	}

	if err := os.MkdirAll(metaDir, 0755); err == nil {
		_ = hashfs.AtomicWrite(path, data)
	}
	return data, nil
}

package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mcdex/installcore/internal/hashfs"
)

// Metadata TTLs: a cached metadata document (version manifest index,
// version JSON, asset index) younger than metadataFresh is used as-is;
// otherwise it is refetched, and if the fetch fails for any reason the
// on-disk copy is used whatever its age, so a Mojang outage does not block
// a reinstall. cachedFetch does not consult metadataStale, and neither
// value can be set by a caller.
const (
	metadataFresh = 24 * time.Hour
	metadataStale = 7 * 24 * time.Hour
)

// cachedFetch retrieves url, preferring metaDir/filename on disk according
// to the TTL bands above.
func cachedFetch(ctx context.Context, client *http.Client, metaDir, filename, url string) ([]byte, error) {
	path := filepath.Join(metaDir, filename)

	info, statErr := os.Stat(path)
	if statErr == nil {
		age := time.Since(info.ModTime())
		if age < metadataFresh {
			return os.ReadFile(path)
		}
	}

	data, err := fetchURL(ctx, client, url)
	if err != nil {
		if statErr == nil {
			// Network failed; fall back to whatever is on disk regardless of
			// age rather than fail the install outright.
			return os.ReadFile(path)
		}
		return nil, fmt.Errorf("manifest: fetch %s: %w", url, err)
	}

	if err := os.MkdirAll(metaDir, 0755); err == nil {
		_ = hashfs.AtomicWrite(path, data)
	}
	return data, nil
}

func fetchURL(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "installcore/1.0 (+https://github.com/mcdex/installcore)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

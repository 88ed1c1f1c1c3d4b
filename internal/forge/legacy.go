// Legacy Forge support (MC <=1.12.2). Libraries for these releases are
// published as pack200+xz rather than plain jars: the stream is
// decompressed with github.com/xi2/xz, the trailing Forge signature block
// stripped, and the JDK's unpack200 tool reinflates the pack200 stream
// into a normal JAR.

package forge

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/xi2/xz"

	"github.com/mcdex/installcore/internal/core"
	"github.com/mcdex/installcore/internal/gav"
	"github.com/mcdex/installcore/internal/installctx"
	"github.com/mcdex/installcore/internal/manifest"
)

// installLegacyLibraries downloads every library a legacy (MC <=1.12.2)
// Forge install declares, preferring the pack200+xz form Forge published
// for that era and falling back to a plain jar GET when a library has no
// packed variant.
func installLegacyLibraries(ctx context.Context, ic *installctx.Ctx, libs []manifest.Library) error {
	javaDir := ic.Spec.JREDir()
	librariesDir := ic.Spec.LibrariesDir()

	for _, l := range libs {
		dest := filepath.Join(librariesDir, filepath.FromSlash(l.Coord.Path()))
		if _, err := os.Stat(dest); err == nil {
			continue
		}

		url := l.URL
		if url == "" {
			url = "https://libraries.minecraft.net"
		}
		fullURL := gav.RepositoryURL(url, l.Coord)

		if err := downloadLegacyLibrary(ctx, ic.Client, javaDir, fullURL, dest); err != nil {
			if derr := downloadToPath(ctx, ic.Client, fullURL, dest); derr != nil {
				return fmt.Errorf("forge: legacy library %s: %w", l.Name, derr)
			}
		}

		label := "libraries/" + l.Coord.Path()
		sha1, err := ic.Cache.IngestFile(dest, "", fullURL)
		if err != nil {
			return fmt.Errorf("forge: ingest legacy library %s: %w", l.Name, err)
		}
		ic.Cache.SetLabel(label, sha1)
		ic.Track(label, sha1)
	}
	return nil
}

// legacySignatureSuffix is the trailing marker Forge's old build pipeline
// appends to a pack200 stream ("SIGN" + a little-endian uint32 signature
// length) that must be stripped before unpack200 will accept the data.
const legacySignatureSuffix = "SIGN"

// downloadLegacyLibrary fetches url+".pack.xz", decompresses it, strips the
// trailing Forge signature block, and runs unpack200 to produce dest. It is
// the legacy-era equivalent of a plain jar download for Forge libraries
// hosted before Mojang's modern Maven layout.
func downloadLegacyLibrary(ctx context.Context, client *http.Client, javaDir, url, dest string) error {
	packURL := url + ".pack.xz"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, packURL, nil)
	if err != nil {
		return &core.NetworkError{URL: packURL, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return &core.NetworkError{URL: packURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &core.NetworkError{URL: packURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	xzReader, err := xz.NewReader(resp.Body, 0)
	if err != nil {
		return fmt.Errorf("forge: open xz stream %s: %w", packURL, err)
	}

	var packData bytes.Buffer
	if _, err := packData.ReadFrom(xzReader); err != nil {
		return fmt.Errorf("forge: decompress %s: %w", packURL, err)
	}

	data := packData.Bytes()
	sigLen, err := signatureLen(data)
	if err != nil {
		return fmt.Errorf("forge: strip signature from %s: %w", packURL, err)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &core.IOError{Path: dir, Op: "mkdir", Err: err}
	}

	packPath := filepath.Join(dir, filepath.Base(dest)+".pack")
	if err := os.WriteFile(packPath, data[:int64(len(data))-sigLen], 0644); err != nil {
		return &core.IOError{Path: packPath, Op: "write", Err: err}
	}
	defer os.Remove(packPath)

	if err := exec.CommandContext(ctx, unpack200Cmd(javaDir), "-r", packPath, dest).Run(); err != nil {
		return fmt.Errorf("forge: unpack200 %s: %w", dest, err)
	}
	return nil
}

// signatureLen reads the trailing "SIGN" + little-endian uint32 length
// marker Forge's old build pipeline appends to a pack200 stream.
func signatureLen(data []byte) (int64, error) {
	n := len(data)
	if n < 8 || string(data[n-4:n]) != legacySignatureSuffix {
		return 0, fmt.Errorf("missing trailing %q marker", legacySignatureSuffix)
	}
	var sigLen uint32
	if err := binary.Read(bytes.NewReader(data[n-8:n-4]), binary.LittleEndian, &sigLen); err != nil {
		return 0, fmt.Errorf("invalid signature length: %w", err)
	}
	return int64(sigLen) + 8, nil
}

func unpack200Cmd(javaDir string) string {
	name := "unpack200"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(javaDir, "bin", name)
}

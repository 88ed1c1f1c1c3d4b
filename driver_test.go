package installcore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mcdex/installcore/internal/hashfs"
	"github.com/mcdex/installcore/internal/progress"
)

func sum(data []byte) string {
	s := sha1.Sum(data)
	return hex.EncodeToString(s[:])
}

// fixture is a local stand-in for the Mojang endpoints: a version index, one
// version manifest, a client jar, one library, and one asset object, with
// per-path hit counting.
type fixture struct {
	srv  *httptest.Server
	hits sync.Map // path -> *atomic.Int64

	clientJar []byte
	assetObj  []byte
	library   []byte
}

func newFixture(t *testing.T, corruptClientJar bool) *fixture {
	t.Helper()
	f := &fixture{
		clientJar: []byte("vanilla client jar bytes"),
		assetObj:  []byte("an asset object"),
		library:   []byte("a library jar"),
	}
	assetHash := sum(f.assetObj)

	mux := http.NewServeMux()
	var srv *httptest.Server

	count := func(path string) {
		v, _ := f.hits.LoadOrStore(path, &atomic.Int64{})
		v.(*atomic.Int64).Add(1)
	}

	mux.HandleFunc("/index.json", func(w http.ResponseWriter, r *http.Request) {
		count("/index.json")
		fmt.Fprintf(w, `{"versions": [{"id": "1.20.1", "url": "%s/1.20.1.json"}]}`, srv.URL)
	})
	mux.HandleFunc("/1.20.1.json", func(w http.ResponseWriter, r *http.Request) {
		count("/1.20.1.json")
		fmt.Fprintf(w, `{
			"id": "1.20.1",
			"mainClass": "net.minecraft.client.main.Main",
			"assets": "5",
			"assetIndex": {"id": "5", "url": "%s/assets/5.json"},
			"downloads": {"client": {"url": "%s/client.jar", "sha1": "%s", "size": %d}},
			"libraries": [{
				"name": "com.example:lib:1.0",
				"downloads": {"artifact": {
					"path": "com/example/lib/1.0/lib-1.0.jar",
					"url": "%s/lib.jar",
					"sha1": "%s",
					"size": %d
				}}
			}]
		}`, srv.URL, srv.URL, sum(f.clientJar), len(f.clientJar), srv.URL, sum(f.library), len(f.library))
	})
	mux.HandleFunc("/assets/5.json", func(w http.ResponseWriter, r *http.Request) {
		count("/assets/5.json")
		fmt.Fprintf(w, `{"objects": {"minecraft/thing.json": {"hash": "%s", "size": %d}}}`, assetHash, len(f.assetObj))
	})
	mux.HandleFunc("/objects/", func(w http.ResponseWriter, r *http.Request) {
		count("/objects")
		w.Write(f.assetObj)
	})
	mux.HandleFunc("/client.jar", func(w http.ResponseWriter, r *http.Request) {
		count("/client.jar")
		if corruptClientJar {
			tampered := append([]byte{}, f.clientJar...)
			tampered[0] ^= 0xff
			w.Write(tampered)
			return
		}
		w.Write(f.clientJar)
	})
	mux.HandleFunc("/lib.jar", func(w http.ResponseWriter, r *http.Request) {
		count("/lib.jar")
		w.Write(f.library)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	f.srv = srv
	return f
}

func (f *fixture) hitCount(path string) int64 {
	v, ok := f.hits.Load(path)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

func (f *fixture) spec(dataDir string) InstallSpec {
	return InstallSpec{
		VersionID:    "1.20.1",
		Modloader:    Vanilla,
		DataDir:      dataDir,
		Concurrency:  4,
		MetaIndexURL: f.srv.URL + "/index.json",
		AssetBaseURL: f.srv.URL + "/objects/",
	}
}

func TestInstallVanillaFresh(t *testing.T) {
	f := newFixture(t, false)
	dataDir := t.TempDir()

	result, err := Install(context.Background(), f.spec(dataDir), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.InstalledVersionID != "1.20.1" {
		t.Errorf("installed id = %q", result.InstalledVersionID)
	}

	jar := filepath.Join(dataDir, "versions", "1.20.1", "1.20.1.jar")
	gotSha, err := hashfs.Sha1Stream(jar)
	if err != nil {
		t.Fatal(err)
	}
	if gotSha != sum(f.clientJar) {
		t.Errorf("client jar sha = %q, want %q", gotSha, sum(f.clientJar))
	}

	if _, err := os.Stat(filepath.Join(dataDir, "versions", "1.20.1", "1.20.1.json")); err != nil {
		t.Errorf("manifest not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "assets", "indexes", "5.json")); err != nil {
		t.Errorf("asset index not written: %v", err)
	}
	assetHash := sum(f.assetObj)
	if _, err := os.Stat(filepath.Join(dataDir, "assets", "objects", assetHash[:2], assetHash)); err != nil {
		t.Errorf("asset object not at content-addressed path: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "libraries", "com", "example", "lib", "1.0", "lib-1.0.jar")); err != nil {
		t.Errorf("library not installed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "backups")); !os.IsNotExist(err) {
		t.Error("backup root left behind after commit")
	}
}

func TestInstallReinstallUsesCache(t *testing.T) {
	f := newFixture(t, false)
	dataDir := t.TempDir()
	spec := f.spec(dataDir)

	if _, err := Install(context.Background(), spec, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Join(dataDir, "versions", "1.20.1")); err != nil {
		t.Fatal(err)
	}

	if _, err := Install(context.Background(), spec, nil); err != nil {
		t.Fatal(err)
	}

	if got := f.hitCount("/client.jar"); got != 1 {
		t.Errorf("client jar fetched %d times across two installs, want 1 (cache restore)", got)
	}
	if got := f.hitCount("/objects"); got != 1 {
		t.Errorf("asset object fetched %d times across two installs, want 1", got)
	}

	jar := filepath.Join(dataDir, "versions", "1.20.1", "1.20.1.jar")
	gotSha, err := hashfs.Sha1Stream(jar)
	if err != nil {
		t.Fatal(err)
	}
	if gotSha != sum(f.clientJar) {
		t.Errorf("restored client jar sha = %q", gotSha)
	}
}

func TestInstallHashMismatchRollsBack(t *testing.T) {
	f := newFixture(t, true)
	dataDir := t.TempDir()

	_, err := Install(context.Background(), f.spec(dataDir), nil)
	var mismatch *HashMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected HashMismatchError, got %v", err)
	}

	if _, statErr := os.Stat(filepath.Join(dataDir, "versions", "1.20.1")); !os.IsNotExist(statErr) {
		t.Error("failed install left versions/1.20.1 behind")
	}

	// The cache must not contain a blob keyed by the expected-but-wrong hash.
	blob := filepath.Join(dataDir, "cache", "blobs", sum(f.clientJar)[:2], sum(f.clientJar))
	if _, statErr := os.Stat(blob); !os.IsNotExist(statErr) {
		t.Error("cache holds a blob for the mismatched download")
	}
}

// cancelAtPercent flips its cancel flag once percent reaches the threshold.
type cancelAtPercent struct {
	progress.Null
	progress.Signal
	threshold int
}

func (c *cancelAtPercent) SetPercent(pct int) {
	if pct >= c.threshold {
		c.Cancel()
	}
}
func (c *cancelAtPercent) IsCancelled() bool { return c.Signal.IsCancelled() }
func (c *cancelAtPercent) IsPaused() bool    { return c.Signal.IsPaused() }

func TestInstallCancelRestoresPriorState(t *testing.T) {
	f := newFixture(t, false)
	dataDir := t.TempDir()
	spec := f.spec(dataDir)

	if _, err := Install(context.Background(), spec, nil); err != nil {
		t.Fatal(err)
	}
	priorJar, err := hashfs.Sha1Stream(filepath.Join(dataDir, "versions", "1.20.1", "1.20.1.jar"))
	if err != nil {
		t.Fatal(err)
	}

	rep := &cancelAtPercent{threshold: 20}
	_, err = Install(context.Background(), spec, rep)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}

	restored, err := hashfs.Sha1Stream(filepath.Join(dataDir, "versions", "1.20.1", "1.20.1.jar"))
	if err != nil {
		t.Fatalf("prior install not restored: %v", err)
	}
	if restored != priorJar {
		t.Errorf("restored jar sha = %q, want pre-cancel %q", restored, priorJar)
	}
}

func TestInstallDryRun(t *testing.T) {
	f := newFixture(t, false)
	dataDir := t.TempDir()
	spec := f.spec(dataDir)
	spec.DryRun = true

	result, err := Install(context.Background(), spec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Artifacts != 0 {
		t.Errorf("dry run recorded %d artifacts", result.Artifacts)
	}
	if _, statErr := os.Stat(filepath.Join(dataDir, "versions", "1.20.1")); !os.IsNotExist(statErr) {
		t.Error("dry run created a version directory")
	}
	// The resolve path must still have been exercised for real.
	if f.hitCount("/1.20.1.json") == 0 {
		t.Error("dry run skipped manifest resolution")
	}
}

func TestInstallRejectsBlacklistedCombo(t *testing.T) {
	spec := InstallSpec{
		VersionID:        "1.12.2",
		Modloader:        Forge,
		ModloaderVersion: "14.23.5.2851",
		DataDir:          t.TempDir(),
	}
	_, err := Install(context.Background(), spec, nil)
	var blk *BlacklistedVersionError
	if !errors.As(err, &blk) {
		t.Fatalf("expected BlacklistedVersionError, got %v", err)
	}
	// Fail-fast: nothing may have been created.
	entries, readErr := os.ReadDir(spec.DataDir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Errorf("blacklisted install created %d entries before failing", len(entries))
	}
}

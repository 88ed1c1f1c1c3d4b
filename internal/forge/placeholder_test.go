package forge

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mcdex/installcore/internal/ziputil"
)

func testArchive(t *testing.T, entries map[string]string) *ziputil.Archive {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	a, err := ziputil.New(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func testResolver(t *testing.T, data map[string]dataEntry, archive *ziputil.Archive) *placeholderResolver {
	t.Helper()
	return &placeholderResolver{
		env: processorEnv{
			side:         "client",
			minecraftJar: "/data/versions/1.20.1/1.20.1.jar",
			installerJar: "/data/cache/forge_installers/forge-1.20.1-47.2.0-installer.jar",
			root:         "/data",
			libraryDir:   "/data/libraries",
		},
		data:      data,
		archive:   archive,
		tmpDir:    t.TempDir(),
		extracted: map[string]string{},
	}
}

func TestSubstituteHardcodedIdents(t *testing.T) {
	r := testResolver(t, nil, nil)

	tests := []struct{ in, want string }{
		{"{SIDE}", "client"},
		{"{MINECRAFT_JAR}", "/data/versions/1.20.1/1.20.1.jar"},
		{"{ROOT}", "/data"},
		{"{LIBRARY_DIR}", "/data/libraries"},
		{"--side={SIDE}", "--side=client"},
	}
	for _, tt := range tests {
		got, err := r.substitute(tt.in)
		if err != nil {
			t.Fatalf("substitute(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("substitute(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSubstituteGAVToken(t *testing.T) {
	r := testResolver(t, nil, nil)
	got, err := r.substitute("[net.minecraftforge:binarypatcher:1.1.1:fatjar]")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join("/data/libraries", "net", "minecraftforge", "binarypatcher", "1.1.1", "binarypatcher-1.1.1-fatjar.jar")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSubstituteDataLiteral(t *testing.T) {
	r := testResolver(t, map[string]dataEntry{
		"MAPPINGS": {Client: "'official'"},
	}, nil)
	got, err := r.substitute("{MAPPINGS}")
	if err != nil {
		t.Fatal(err)
	}
	if got != "official" {
		t.Errorf("got %q", got)
	}
}

func TestSubstituteDataGAVReference(t *testing.T) {
	r := testResolver(t, map[string]dataEntry{
		"PATCHED": {Client: "[net.minecraftforge:forge:1.20.1-47.2.0:client]"},
	}, nil)
	got, err := r.substitute("{PATCHED}")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(got, filepath.Join("forge", "1.20.1-47.2.0", "forge-1.20.1-47.2.0-client.jar")) {
		t.Errorf("data GAV reference not resolved to a library path: %q", got)
	}
}

func TestSubstituteDataEmbeddedFile(t *testing.T) {
	archive := testArchive(t, map[string]string{
		"data/client.lzma": "patch bytes",
	})
	r := testResolver(t, map[string]dataEntry{
		"BINPATCH": {Client: "/data/client.lzma"},
	}, archive)

	got, err := r.substitute("{BINPATCH}")
	if err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "patch bytes" {
		t.Errorf("extracted content = %q", content)
	}

	// A second reference reuses the already-extracted file.
	again, err := r.substitute("{BINPATCH}")
	if err != nil {
		t.Fatal(err)
	}
	if again != got {
		t.Errorf("repeated reference re-extracted: %q vs %q", again, got)
	}
}

func TestSubstituteUnresolvedIsFatal(t *testing.T) {
	r := testResolver(t, nil, nil)
	if _, err := r.substitute("{NO_SUCH_KEY}"); err == nil {
		t.Fatal("unresolved placeholder must be an error, not passed through")
	}
}

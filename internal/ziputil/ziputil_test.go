package ziputil

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
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
	return buf.Bytes()
}

func TestReadJSON(t *testing.T) {
	data := buildZip(t, map[string]string{
		"install_profile.json": `{"spec": 1, "profile": "forge"}`,
	})
	a, err := New(data)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := a.ReadJSON("install_profile.json")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := doc.Path("profile").Data().(string); got != "forge" {
		t.Errorf("profile = %q", got)
	}
}

func TestHasAndOpenMissing(t *testing.T) {
	a, err := New(buildZip(t, map[string]string{"present": "x"}))
	if err != nil {
		t.Fatal(err)
	}
	if !a.Has("present") || a.Has("absent") {
		t.Error("Has gave wrong answers")
	}
	if _, err := a.Open("absent"); err == nil {
		t.Error("Open of a missing entry must fail")
	}
}

func TestWriteFileToDirPreservesPath(t *testing.T) {
	a, err := New(buildZip(t, map[string]string{"maven/com/example/foo-1.0.jar": "jar"}))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	written, err := a.WriteFileToDir("maven/com/example/foo-1.0.jar", dir)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "maven", "com", "example", "foo-1.0.jar")
	if written != want {
		t.Errorf("written = %q, want %q", written, want)
	}
	if got, _ := os.ReadFile(want); string(got) != "jar" {
		t.Errorf("content = %q", got)
	}
}

func TestExtractFlat(t *testing.T) {
	a, err := New(buildZip(t, map[string]string{
		"libfoo.so":            "native1",
		"nested/libbar.so":     "native2",
		"META-INF/MANIFEST.MF": "manifest",
	}))
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	if err := a.ExtractFlat(dir, []string{"META-INF/*"}); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"libfoo.so", "libbar.so"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not extracted: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "MANIFEST.MF")); !os.IsNotExist(err) {
		t.Error("excluded META-INF entry was extracted")
	}
	if _, err := os.Stat(filepath.Join(dir, "nested")); !os.IsNotExist(err) {
		t.Error("extraction must flatten, not recreate subdirectories")
	}
}

func TestExtractFlatDirectoryPrefixExclude(t *testing.T) {
	a, err := New(buildZip(t, map[string]string{
		"META-INF/sig/FORGE.SF": "sig",
		"ok.dll":                "native",
	}))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := a.ExtractFlat(dir, []string{"META-INF/"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "FORGE.SF")); !os.IsNotExist(err) {
		t.Error("bare directory-prefix exclude not honored")
	}
	if _, err := os.Stat(filepath.Join(dir, "ok.dll")); err != nil {
		t.Error("non-excluded entry missing")
	}
}

// Package ziputil wraps archive/zip for random-access reads and directory
// extraction: entries are indexed by name once at open, and extraction
// supports the glob-exclude lists native libraries declare and the
// path-preserving copies Forge/NeoForge's embedded maven/ tree needs.
package ziputil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/Jeffail/gabs"
)

// Archive is an in-memory zip whose entry names are indexed once, so Has
// and Names don't re-walk the central directory; Open re-parses it from the
// in-memory bytes on each call.
type Archive struct {
	data  []byte
	size  int64
	files map[string]int
}

// Open reads an entire zip file into memory and indexes its entries.
func Open(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ziputil: read %s: %w", path, err)
	}
	return New(data)
}

// New indexes zip data already in memory.
func New(data []byte) (*Archive, error) {
	var a Archive
	a.data = data
	a.size = int64(len(data))

	r, err := zip.NewReader(bytes.NewReader(a.data), a.size)
	if err != nil {
		return nil, fmt.Errorf("ziputil: open zip: %w", err)
	}

	a.files = make(map[string]int, len(r.File))
	for i, f := range r.File {
		a.files[f.Name] = i
	}
	return &a, nil
}

// Has reports whether name exists in the archive.
func (a *Archive) Has(name string) bool {
	_, ok := a.files[name]
	return ok
}

// Names returns every entry name in the archive.
func (a *Archive) Names() []string {
	out := make([]string, 0, len(a.files))
	for name := range a.files {
		out = append(out, name)
	}
	return out
}

// Open returns a reader for a single entry.
func (a *Archive) Open(name string) (io.ReadCloser, error) {
	index, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("ziputil: file not found in archive: %s", name)
	}
	r, _ := zip.NewReader(bytes.NewReader(a.data), a.size)
	return r.File[index].Open()
}

// ReadJSON parses an entry as JSON via gabs.
func (a *Archive) ReadJSON(name string) (*gabs.Container, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc, err := gabs.ParseJSONBuffer(r)
	if err != nil {
		return nil, fmt.Errorf("ziputil: parse %s as JSON: %w", name, err)
	}
	return doc, nil
}

// WriteFileToDir extracts one entry underneath targetDir, preserving its
// path within the archive, and returns the final path written.
func (a *Archive) WriteFileToDir(entryName, targetDir string) (string, error) {
	return a.WriteFile(entryName, filepath.Join(targetDir, filepath.FromSlash(entryName)))
}

// WriteFile extracts one entry to an explicit destination path.
func (a *Archive) WriteFile(entryName, dest string) (string, error) {
	r, err := a.Open(entryName)
	if err != nil {
		return "", err
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("ziputil: mkdir for %s: %w", dest, err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("ziputil: create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return "", fmt.Errorf("ziputil: write %s: %w", dest, err)
	}
	return dest, out.Close()
}

// ExtractFlat extracts every non-directory entry into destDir under its
// basename alone, skipping any entry matching one of the exclude glob
// patterns (native library "extract.exclude" lists like "META-INF/*"). The
// flattening is deliberate: the game's native loader does not reliably
// recurse into subdirectories, so the natives dir must hold leaf files only.
func (a *Archive) ExtractFlat(destDir string, exclude []string) error {
	for name := range a.files {
		if len(name) > 0 && name[len(name)-1] == '/' {
			continue
		}
		if matchesAny(name, exclude) {
			continue
		}
		if _, err := a.WriteFile(name, filepath.Join(destDir, path.Base(name))); err != nil {
			return err
		}
	}
	return nil
}

func matchesAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
		// Forge/Mojang exclude globs are often a bare directory prefix
		// ("META-INF/") rather than a valid path.Match pattern.
		if len(pattern) > 0 && pattern[len(pattern)-1] == '/' && len(name) >= len(pattern) && name[:len(pattern)] == pattern {
			return true
		}
	}
	return false
}

// Package manifest resolves vanilla Minecraft version manifests: fetch the
// upstream version index, fetch and merge an inheritsFrom chain, apply
// OS/arch/feature rules, and compute on-disk library paths. JSON is
// traversed with github.com/Jeffail/gabs rather than hand-written structs:
// a manifest's shape varies release to release (new fields appear,
// `minecraftArguments` became `arguments`, etc.) and gabs lets this code
// reach for exactly the field it needs without a brittle struct tree that
// breaks on every Mojang schema tweak.
package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/Jeffail/gabs"

	"github.com/mcdex/installcore/internal/gav"
)

// Manifest wraps a parsed version JSON document (vanilla, or one already
// merged with its inheritsFrom parent).
type Manifest struct {
	doc *gabs.Container
}

// Parse parses raw version JSON.
func Parse(data []byte) (*Manifest, error) {
	doc, err := gabs.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("manifest: parse: %w", err)
	}
	return &Manifest{doc: doc}, nil
}

// FromContainer wraps an already-parsed gabs document as a Manifest,
// avoiding a re-serialize/re-parse round trip when the caller fetched the
// document with gabs directly (e.g. a Fabric/Quilt loader profile).
func FromContainer(doc *gabs.Container) *Manifest {
	return &Manifest{doc: doc}
}

// ID returns the "id" field.
func (m *Manifest) ID() string { return stringAt(m.doc, "id") }

// InheritsFrom returns the "inheritsFrom" field, or "" if this manifest is
// self-contained.
func (m *Manifest) InheritsFrom() string { return stringAt(m.doc, "inheritsFrom") }

// MainClass returns the "mainClass" field.
func (m *Manifest) MainClass() string { return stringAt(m.doc, "mainClass") }

// SetID overwrites the "id" field, used when writing a modloader's merged
// manifest out under its installed_version_id.
func (m *Manifest) SetID(id string) {
	m.doc.SetP(id, "id")
}

// SetInheritsFrom sets "inheritsFrom", used by the Fabric/Quilt/Forge/
// NeoForge installers to point the written manifest at the vanilla version
// it layers onto.
func (m *Manifest) SetInheritsFrom(id string) {
	m.doc.SetP(id, "inheritsFrom")
}

// AssetIndexRef describes the "assetIndex" section.
type AssetIndexRef struct {
	ID   string
	URL  string
	Sha1 string
	Size int64
}

// AssetIndex returns the asset index reference, if present.
func (m *Manifest) AssetIndex() (AssetIndexRef, bool) {
	if !m.doc.ExistsP("assetIndex") {
		return AssetIndexRef{}, false
	}
	c := m.doc.Path("assetIndex")
	return AssetIndexRef{
		ID:   stringAt(c, "id"),
		URL:  stringAt(c, "url"),
		Sha1: stringAt(c, "sha1"),
		Size: intAt(c, "size"),
	}, true
}

// HasClientDownload reports whether "downloads.client" is present (a
// modloader manifest that only inheritsFrom vanilla typically omits it).
func (m *Manifest) HasClientDownload() bool {
	return m.doc.ExistsP("downloads.client")
}

// ClientDownload returns the client jar's download URL, expected SHA-1, and
// size.
func (m *Manifest) ClientDownload() (url, sha1 string, size int64) {
	c := m.doc.Path("downloads.client")
	return stringAt(c, "url"), stringAt(c, "sha1"), intAt(c, "size")
}

// Library is one entry from the manifest's "libraries" array.
type Library struct {
	Name    string
	Coord   gav.Coordinate
	URL     string // optional maven base override
	Rules   []Rule
	Natives map[string]string // os -> classifier-with-${arch}
	Exclude []string          // extract.exclude globs

	Artifact   *ArtifactRef // downloads.artifact
	Classifier map[string]ArtifactRef
}

// ArtifactRef is a downloadable file: url/sha1/size, and optionally an
// explicit on-disk path (Mojang manifests give one; Fabric/Forge/legacy
// Forge libraries are GAV-derived instead).
type ArtifactRef struct {
	Path string
	URL  string
	Sha1 string
	Size int64
}

// Libraries returns the manifest's library list, parsed into typed form.
func (m *Manifest) Libraries() []Library {
	children, _ := m.doc.Path("libraries").Children()
	out := make([]Library, 0, len(children))
	for _, c := range children {
		out = append(out, parseLibrary(c))
	}
	return out
}

// SetLibraries overwrites the "libraries" array, used after merge/rule
// filtering to persist the resolved set.
func (m *Manifest) SetLibraries(libs []Library) {
	arr := make([]interface{}, 0, len(libs))
	for _, l := range libs {
		arr = append(arr, libraryToMap(l))
	}
	m.doc.Set(arr, "libraries")
}

func parseLibrary(c *gabs.Container) Library {
	name := stringAt(c, "name")
	coord, _ := gav.Parse(name)

	lib := Library{
		Name:  name,
		Coord: coord,
		URL:   stringAt(c, "url"),
	}

	if c.ExistsP("downloads.artifact") {
		a := c.Path("downloads.artifact")
		lib.Artifact = &ArtifactRef{
			Path: stringAt(a, "path"),
			URL:  stringAt(a, "url"),
			Sha1: stringAt(a, "sha1"),
			Size: intAt(a, "size"),
		}
	}

	if c.ExistsP("downloads.classifiers") {
		m, _ := c.Path("downloads.classifiers").ChildrenMap()
		if len(m) > 0 {
			lib.Classifier = make(map[string]ArtifactRef, len(m))
			for key, a := range m {
				lib.Classifier[key] = ArtifactRef{
					Path: stringAt(a, "path"),
					URL:  stringAt(a, "url"),
					Sha1: stringAt(a, "sha1"),
					Size: intAt(a, "size"),
				}
			}
		}
	}

	if c.ExistsP("natives") {
		m, _ := c.Path("natives").ChildrenMap()
		lib.Natives = make(map[string]string, len(m))
		for k, v := range m {
			s, _ := v.Data().(string)
			lib.Natives[k] = s
		}
	}

	if c.ExistsP("extract.exclude") {
		children, _ := c.Path("extract.exclude").Children()
		for _, e := range children {
			if s, ok := e.Data().(string); ok {
				lib.Exclude = append(lib.Exclude, s)
			}
		}
	}

	lib.Rules = parseRules(c)

	return lib
}

func libraryToMap(l Library) map[string]interface{} {
	out := map[string]interface{}{"name": l.Name}
	if l.URL != "" {
		out["url"] = l.URL
	}
	downloads := map[string]interface{}{}
	if l.Artifact != nil {
		downloads["artifact"] = map[string]interface{}{
			"path": l.Artifact.Path,
			"url":  l.Artifact.URL,
			"sha1": l.Artifact.Sha1,
			"size": l.Artifact.Size,
		}
	}
	if len(l.Classifier) > 0 {
		cls := map[string]interface{}{}
		for k, a := range l.Classifier {
			cls[k] = map[string]interface{}{"path": a.Path, "url": a.URL, "sha1": a.Sha1, "size": a.Size}
		}
		downloads["classifiers"] = cls
	}
	if len(downloads) > 0 {
		out["downloads"] = downloads
	}
	if l.Natives != nil {
		natives := map[string]interface{}{}
		for k, v := range l.Natives {
			natives[k] = v
		}
		out["natives"] = natives
	}
	if len(l.Exclude) > 0 {
		out["extract"] = map[string]interface{}{"exclude": l.Exclude}
	}
	return out
}

// RawJSON returns the manifest re-serialized with indentation.
func (m *Manifest) RawJSON() ([]byte, error) {
	return json.MarshalIndent(m.doc.Data(), "", "  ")
}

func stringAt(c *gabs.Container, path string) string {
	if !c.ExistsP(path) {
		return ""
	}
	s, _ := c.Path(path).Data().(string)
	return s
}

func intAt(c *gabs.Container, path string) int64 {
	if !c.ExistsP(path) {
		return 0
	}
	switch v := c.Path(path).Data().(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

package manifest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"

	"github.com/Jeffail/gabs"

	"github.com/mcdex/installcore/internal/core"
)

// DefaultIndexURL is Mojang's version manifest index.
const DefaultIndexURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

// Resolver fetches and merges vanilla version manifests.
type Resolver struct {
	Client   *http.Client
	MetaDir  string
	IndexURL string
}

// NewResolver builds a Resolver backed by metaDir (normally
// InstallSpec.CacheDir()/metadata).
func NewResolver(client *http.Client, metaDir string) *Resolver {
	return &Resolver{Client: client, MetaDir: metaDir, IndexURL: DefaultIndexURL}
}

// Resolve fetches the version identified by versionID and walks its
// inheritsFrom chain, merging parent into child at each step, returning a
// single self-contained Manifest.
func (r *Resolver) Resolve(ctx context.Context, versionID string) (*Manifest, error) {
	m, err := r.fetchOne(ctx, versionID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{versionID: true}
	for m.InheritsFrom() != "" {
		parentID := m.InheritsFrom()
		if seen[parentID] {
			return nil, &core.BadManifestError{Source: versionID, Pointer: "inheritsFrom", Err: errCycle(parentID)}
		}
		seen[parentID] = true

		parent, err := r.fetchOne(ctx, parentID)
		if err != nil {
			return nil, err
		}
		m = Merge(parent, m)
	}

	return m, nil
}

func (r *Resolver) fetchOne(ctx context.Context, versionID string) (*Manifest, error) {
	url, expectedSha1, err := r.lookupVersionURL(ctx, versionID)
	if err != nil {
		return nil, err
	}

	data, err := cachedFetch(ctx, r.Client, r.MetaDir, versionID+".json", url)
	if err != nil {
		return nil, &core.BadManifestError{Source: versionID, Pointer: "", Err: err}
	}

	if expectedSha1 != "" {
		sum := sha1.Sum(data)
		if actual := hex.EncodeToString(sum[:]); actual != expectedSha1 {
			return nil, &core.HashMismatchError{Path: versionID + ".json", Expected: expectedSha1, Actual: actual}
		}
	}

	m, err := Parse(data)
	if err != nil {
		return nil, &core.BadManifestError{Source: versionID, Pointer: "", Err: err}
	}
	return m, nil
}

func (r *Resolver) lookupVersionURL(ctx context.Context, versionID string) (url, expected string, err error) {
	data, err := cachedFetch(ctx, r.Client, r.MetaDir, "version_manifest_v2.json", r.IndexURL)
	if err != nil {
		return "", "", &core.BadManifestError{Source: "version_manifest_v2.json", Pointer: "", Err: err}
	}

	doc, err := gabs.ParseJSON(data)
	if err != nil {
		return "", "", &core.BadManifestError{Source: "version_manifest_v2.json", Pointer: "", Err: err}
	}

	children, _ := doc.Path("versions").Children()
	for _, c := range children {
		if stringAt(c, "id") == versionID {
			return stringAt(c, "url"), stringAt(c, "sha1"), nil
		}
	}
	return "", "", &core.BadManifestError{Source: "version_manifest_v2.json", Pointer: "versions", Err: errUnknownVersion(versionID)}
}

type errUnknownVersion string

func (e errUnknownVersion) Error() string { return "unknown version id: " + string(e) }

type errCycle string

func (e errCycle) Error() string { return "inheritsFrom cycle detected at: " + string(e) }

// Package assets resolves and fetches the Minecraft asset index: download
// the index named by the version manifest, then fan out one download per
// referenced object into the content-addressed assets tree, reusing the
// same batch downloader as libraries and the client jar.
package assets

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"path"
	"path/filepath"

	"github.com/Jeffail/gabs"

	"github.com/mcdex/installcore/internal/core"
	"github.com/mcdex/installcore/internal/download"
	"github.com/mcdex/installcore/internal/manifest"
	"github.com/mcdex/installcore/internal/progress"
)

// Object is one entry from an asset index's "objects" map.
type Object struct {
	Name string
	Hash string
	Size int64
}

// Index is a parsed asset index document.
type Index struct {
	ID      string
	Objects []Object
}

// FetchIndex downloads and parses the asset index referenced by ref,
// caching it the same way manifest.Resolver caches version JSON and
// verifying the manifest-declared SHA-1 when one was given.
func FetchIndex(ctx context.Context, client *http.Client, metaDir string, ref manifest.AssetIndexRef) (Index, error) {
	data, err := cachedAssetIndexFetch(ctx, client, metaDir, ref)
	if err != nil {
		return Index{}, err
	}

	if ref.Sha1 != "" {
		sum := sha1.Sum(data)
		if actual := hex.EncodeToString(sum[:]); actual != ref.Sha1 {
			return Index{}, &core.HashMismatchError{Path: ref.ID + ".json", Expected: ref.Sha1, Actual: actual}
		}
	}

	doc, err := gabs.ParseJSON(data)
	if err != nil {
		return Index{}, fmt.Errorf("assets: parse index %s: %w", ref.ID, err)
	}

	objMap, _ := doc.Path("objects").ChildrenMap()
	objects := make([]Object, 0, len(objMap))
	for name, o := range objMap {
		hash, _ := o.Path("hash").Data().(string)
		size, _ := o.Path("size").Data().(float64)
		objects = append(objects, Object{Name: name, Hash: hash, Size: int64(size)})
	}

	return Index{ID: ref.ID, Objects: objects}, nil
}

// DefaultObjectBaseURL is Mojang's asset-object CDN.
const DefaultObjectBaseURL = "https://resources.download.minecraft.net/"

// Plan turns an asset Index into download.Artifact units rooted at
// assetsDir/objects/xx/xxxxx, fetched from baseURL (the Mojang CDN when
// empty). The pre-1.7 "virtual" asset layout is not supported.
func Plan(idx Index, assetsDir, baseURL string) []download.Artifact {
	if baseURL == "" {
		baseURL = DefaultObjectBaseURL
	} else if baseURL[len(baseURL)-1] != '/' {
		baseURL += "/"
	}
	out := make([]download.Artifact, 0, len(idx.Objects))
	for _, o := range idx.Objects {
		if len(o.Hash) < 2 {
			continue
		}
		rel := path.Join(o.Hash[:2], o.Hash)
		out = append(out, download.Artifact{
			Name:  o.Name,
			URL:   baseURL + rel,
			Path:  filepath.Join(assetsDir, "objects", filepath.FromSlash(rel)),
			Sha1:  o.Hash,
			Size:  o.Size,
			Label: "assets/objects/" + o.Hash,
		})
	}
	return out
}

// FetchObjects runs the batch downloader over an asset index's objects.
func FetchObjects(ctx context.Context, batch *download.Batch, reporter progress.Reporter, idx Index, assetsDir, baseURL string, basePct, weight int) error {
	return batch.Run(ctx, reporter, Plan(idx, assetsDir, baseURL), basePct, weight)
}

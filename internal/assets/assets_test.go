package assets

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mcdex/installcore/internal/manifest"
)

func TestFetchIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"objects": {
			"minecraft/sounds/ambient/cave/cave1.ogg": {"hash": "c040b4d6ab9e6c6c843b8be9e0d6ab0b6a38e3b0", "size": 55173},
			"minecraft/lang/en_us.json": {"hash": "9e8d2bb9bcbf63646073ac7bd8ce0c19bdd5eb68", "size": 441517}
		}}`)
	}))
	defer srv.Close()

	ref := manifest.AssetIndexRef{ID: "5", URL: srv.URL + "/5.json", Sha1: "", Size: 0}
	idx, err := FetchIndex(context.Background(), srv.Client(), t.TempDir(), ref)
	if err != nil {
		t.Fatal(err)
	}
	if idx.ID != "5" {
		t.Errorf("id = %q", idx.ID)
	}
	if len(idx.Objects) != 2 {
		t.Fatalf("objects = %d", len(idx.Objects))
	}
}

func TestPlanContentAddressedPaths(t *testing.T) {
	idx := Index{
		ID: "5",
		Objects: []Object{
			{Name: "minecraft/lang/en_us.json", Hash: "9e8d2bb9bcbf63646073ac7bd8ce0c19bdd5eb68", Size: 441517},
		},
	}

	plan := Plan(idx, "/data/assets", "")
	if len(plan) != 1 {
		t.Fatalf("plan = %d units", len(plan))
	}
	a := plan[0]

	wantPath := filepath.Join("/data/assets", "objects", "9e", "9e8d2bb9bcbf63646073ac7bd8ce0c19bdd5eb68")
	if a.Path != wantPath {
		t.Errorf("path = %q, want %q", a.Path, wantPath)
	}
	wantURL := "https://resources.download.minecraft.net/9e/9e8d2bb9bcbf63646073ac7bd8ce0c19bdd5eb68"
	if a.URL != wantURL {
		t.Errorf("url = %q, want %q", a.URL, wantURL)
	}
	if a.Sha1 != idx.Objects[0].Hash {
		t.Errorf("expected sha1 to equal the object hash")
	}
	if a.Size != 441517 {
		t.Errorf("size = %d", a.Size)
	}
}

func TestPlanSkipsMalformedHashes(t *testing.T) {
	idx := Index{Objects: []Object{{Name: "bad", Hash: "x"}}}
	if got := Plan(idx, "/data/assets", ""); len(got) != 0 {
		t.Fatalf("plan = %d units for a malformed hash", len(got))
	}
}

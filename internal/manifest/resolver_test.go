package manifest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	var srv *httptest.Server
	mux.HandleFunc("/index.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"versions": [
			{"id": "1.20.1", "url": "%s/1.20.1.json"},
			{"id": "loader-on-1.20.1", "url": "%s/loader-on-1.20.1.json"}
		]}`, srv.URL, srv.URL)
	})
	mux.HandleFunc("/1.20.1.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"id": "1.20.1",
			"mainClass": "net.minecraft.client.main.Main",
			"assets": "5",
			"libraries": [
				{"name": "com.example:base:1.0"},
				{"name": "com.example:shared:1.0"}
			]
		}`)
	})
	mux.HandleFunc("/loader-on-1.20.1.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"id": "loader-on-1.20.1",
			"inheritsFrom": "1.20.1",
			"mainClass": "org.example.loader.Main",
			"libraries": [
				{"name": "com.example:shared:2.0"},
				{"name": "org.example:loader:0.1"}
			]
		}`)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveSelfContained(t *testing.T) {
	srv := fixtureServer(t)
	r := &Resolver{Client: srv.Client(), MetaDir: t.TempDir(), IndexURL: srv.URL + "/index.json"}

	m, err := r.Resolve(context.Background(), "1.20.1")
	if err != nil {
		t.Fatal(err)
	}
	if m.ID() != "1.20.1" {
		t.Errorf("id = %q", m.ID())
	}
	if m.MainClass() != "net.minecraft.client.main.Main" {
		t.Errorf("mainClass = %q", m.MainClass())
	}
	if len(m.Libraries()) != 2 {
		t.Errorf("libraries = %d", len(m.Libraries()))
	}
}

func TestResolveMergesInheritsChain(t *testing.T) {
	srv := fixtureServer(t)
	r := &Resolver{Client: srv.Client(), MetaDir: t.TempDir(), IndexURL: srv.URL + "/index.json"}

	m, err := r.Resolve(context.Background(), "loader-on-1.20.1")
	if err != nil {
		t.Fatal(err)
	}
	if m.MainClass() != "org.example.loader.Main" {
		t.Errorf("child mainClass must win, got %q", m.MainClass())
	}

	libs := m.Libraries()
	if len(libs) != 3 {
		t.Fatalf("merged libraries = %d, want 3 (base + shared deduped + loader)", len(libs))
	}
	for _, l := range libs {
		if l.Coord.Artifact == "shared" && l.Coord.Version != "2.0" {
			t.Errorf("child's shared:2.0 must override parent's, got %q", l.Coord.Version)
		}
	}
}

func TestResolveUnknownVersion(t *testing.T) {
	srv := fixtureServer(t)
	r := &Resolver{Client: srv.Client(), MetaDir: t.TempDir(), IndexURL: srv.URL + "/index.json"}

	if _, err := r.Resolve(context.Background(), "0.0.0"); err == nil {
		t.Fatal("expected an error for an unknown version id")
	}
}

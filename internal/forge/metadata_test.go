package forge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcdex/installcore/internal/core"
)

func TestVersionPrefix(t *testing.T) {
	tests := []struct {
		loader, mc, want string
	}{
		{"forge", "1.20.1", "1.20.1-"},
		{"neoforge", "1.20.4", "20.4."},
		{"neoforge", "1.21", "21.0."},
	}
	for _, tt := range tests {
		if got := versionPrefix(tt.loader, tt.mc); got != tt.want {
			t.Errorf("versionPrefix(%q, %q) = %q, want %q", tt.loader, tt.mc, got, tt.want)
		}
	}
}

func metadataFixture(t *testing.T, versions ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><metadata><versioning><versions>`)
		for _, v := range versions {
			fmt.Fprintf(w, "<version>%s</version>", v)
		}
		fmt.Fprint(w, `</versions></versioning></metadata>`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveLatestVersionForge(t *testing.T) {
	srv := metadataFixture(t, "1.19.2-43.1.1", "1.20.1-47.1.0", "1.20.1-47.2.0", "1.20.2-48.0.1")
	p := Profile{Loader: "forge", Namespace: "minecraftforge", MavenBaseURL: srv.URL + "/"}

	got, err := ResolveLatestVersion(context.Background(), srv.Client(), p, "1.20.1")
	if err != nil {
		t.Fatal(err)
	}
	if got != "1.20.1-47.2.0" {
		t.Errorf("latest = %q", got)
	}
}

func TestResolveLatestVersionNeoForge(t *testing.T) {
	srv := metadataFixture(t, "20.2.88", "20.4.100", "20.4.237", "21.0.3")
	p := Profile{Loader: "neoforge", Namespace: "neoforged", MavenBaseURL: srv.URL + "/"}

	got, err := ResolveLatestVersion(context.Background(), srv.Client(), p, "1.20.4")
	if err != nil {
		t.Fatal(err)
	}
	if got != "20.4.237" {
		t.Errorf("latest = %q", got)
	}
}

func TestResolveLatestVersionUnsupported(t *testing.T) {
	srv := metadataFixture(t, "1.19.2-43.1.1")
	p := Profile{Loader: "forge", Namespace: "minecraftforge", MavenBaseURL: srv.URL + "/"}

	_, err := ResolveLatestVersion(context.Background(), srv.Client(), p, "1.20.1")
	var combo *core.UnsupportedComboError
	if !errors.As(err, &combo) {
		t.Fatalf("expected UnsupportedComboError, got %v", err)
	}
}

func TestCheckBlacklist(t *testing.T) {
	if err := CheckBlacklist("forge", "1.12.2", "14.23.5.2851"); err == nil {
		t.Fatal("known-broken triple must be rejected")
	}
	var blk *core.BlacklistedVersionError
	err := CheckBlacklist("forge", "1.12.2", "14.23.5.2851")
	if !errors.As(err, &blk) {
		t.Fatalf("expected BlacklistedVersionError, got %v", err)
	}
	if err := CheckBlacklist("forge", "1.20.1", "47.2.0"); err != nil {
		t.Fatalf("healthy triple rejected: %v", err)
	}
}

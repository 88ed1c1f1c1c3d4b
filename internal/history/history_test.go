package history

import (
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndLast(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{InstallID: "forge:forge-loader-47.2.0-1.20.1", Loader: "forge", VersionID: "1.20.1", InstalledVersionID: "forge-loader-47.2.0-1.20.1", Outcome: "failed", When: base},
		{InstallID: "forge:forge-loader-47.2.0-1.20.1", Loader: "forge", VersionID: "1.20.1", InstalledVersionID: "forge-loader-47.2.0-1.20.1", Outcome: "ok", When: base.Add(time.Hour)},
	}
	for _, e := range entries {
		if err := h.Record(e); err != nil {
			t.Fatal(err)
		}
	}

	last, ok, err := h.Last("forge-loader-47.2.0-1.20.1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("no entry found")
	}
	if last.Outcome != "ok" {
		t.Errorf("last outcome = %q, want the newer record", last.Outcome)
	}
	if !last.When.Equal(base.Add(time.Hour)) {
		t.Errorf("last timestamp = %v", last.When)
	}
}

func TestLastUnknownVersion(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	_, ok, err := h.Last("never-installed")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("found an entry for a version never recorded")
	}
}

func TestInstalled(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	if err := h.Record(Entry{InstalledVersionID: "1.20.1", Outcome: "failed", When: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatal(err)
	}
	installed, err := h.Installed("1.20.1")
	if err != nil {
		t.Fatal(err)
	}
	if installed {
		t.Error("a failed last attempt must not report installed")
	}

	if err := h.Record(Entry{InstalledVersionID: "1.20.1", Outcome: "ok", When: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatal(err)
	}
	installed, err = h.Installed("1.20.1")
	if err != nil {
		t.Fatal(err)
	}
	if !installed {
		t.Error("a successful last attempt must report installed")
	}
}

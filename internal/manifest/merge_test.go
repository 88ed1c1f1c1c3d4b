package manifest

import (
	"testing"

	"github.com/mcdex/installcore/internal/gav"
)

func TestMergeLibrariesLastWins(t *testing.T) {
	parent := []Library{
		{Name: "com.example:foo:1.0"},
		{Name: "com.example:bar:2.0"},
	}
	child := []Library{
		{Name: "com.example:foo:2.0"},
		{Name: "com.example:baz:1.0"},
	}
	for i := range parent {
		parent[i].Coord, _ = gav.Parse(parent[i].Name)
	}
	for i := range child {
		child[i].Coord, _ = gav.Parse(child[i].Name)
	}

	merged := MergeLibraries(parent, child)
	if len(merged) != 3 {
		t.Fatalf("expected 3 libraries after dedup, got %d", len(merged))
	}

	var fooVersion string
	for _, l := range merged {
		if l.Coord.Artifact == "foo" {
			fooVersion = l.Coord.Version
		}
	}
	if fooVersion != "2.0" {
		t.Fatalf("expected child foo:2.0 to win over parent foo:1.0, got %q", fooVersion)
	}
}

func TestEvaluateRulesNoRulesIncludes(t *testing.T) {
	if !EvaluateRules(nil) {
		t.Fatal("a library with no rules must be included")
	}
}

func TestEvaluateRulesOSXAliasesMacOS(t *testing.T) {
	rules := []Rule{
		{Allow: true, OSName: "macos"},
	}
	got := matchOS(rules[0].OSName, "osx")
	if !got {
		t.Fatal("rule naming macos must match current os osx")
	}
}

func TestEvaluateRulesUnknownFeatureIgnored(t *testing.T) {
	rules := []Rule{
		{Allow: true, Feature: map[string]bool{"some_future_feature_nobody_knows_yet": true}},
	}
	if !EvaluateRules(rules) {
		t.Fatal("a rule referencing an unknown feature key must not cause exclusion")
	}
}

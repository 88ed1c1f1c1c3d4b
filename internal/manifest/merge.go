package manifest

import "github.com/Jeffail/gabs"

// Merge combines a parent (inheritsFrom target) and child manifest: scalar
// fields are child-wins-else-parent, and libraries are concatenated
// parent-then-child and deduplicated by GAV key with the later occurrence
// winning, so a modloader's copy of a library overrides the vanilla one.
// inheritsFrom is taken from the parent, so the merged manifest points at
// the next link of the chain (or at nothing once the root is merged).
// The parent document is deep-copied (re-parsed) so merging never mutates
// a manifest a caller still holds.
func Merge(parent, child *Manifest) *Manifest {
	doc, err := gabs.ParseJSON(parent.doc.Bytes())
	if err != nil {
		doc = gabs.New()
	}
	merged := &Manifest{doc: doc}

	for _, field := range []string{"mainClass", "minecraftArguments", "arguments", "assetIndex", "assets", "type", "releaseTime", "time", "javaVersion", "id"} {
		if child.doc.ExistsP(field) {
			merged.doc.Set(child.doc.Path(field).Data(), field)
		}
	}

	merged.SetLibraries(MergeLibraries(parent.Libraries(), child.Libraries()))
	return merged
}

// MergeLibraries concatenates two library lists, keeping insertion order
// but letting a later entry with the same GAV key (group:artifact
// [:classifier], version excluded) replace an earlier one in place.
func MergeLibraries(parent, child []Library) []Library {
	order := make([]string, 0, len(parent)+len(child))
	byKey := make(map[string]Library, len(parent)+len(child))

	add := func(libs []Library) {
		for _, l := range libs {
			key := l.Coord.Key()
			if key == ":" || key == "" {
				key = l.Name
			}
			if _, exists := byKey[key]; !exists {
				order = append(order, key)
			}
			byKey[key] = l
		}
	}
	add(parent)
	add(child)

	out := make([]Library, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}

// FilterByRules returns only the libraries whose rules (if any) evaluate to
// include on the current platform.
func FilterByRules(libs []Library) []Library {
	out := make([]Library, 0, len(libs))
	for _, l := range libs {
		if EvaluateRules(l.Rules) {
			out = append(out, l)
		}
	}
	return out
}

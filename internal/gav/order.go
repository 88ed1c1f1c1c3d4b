// Ordered de-duplication for GAV coordinates: install_profile libraries
// and version.json libraries merge into one list deduped by GAV, and a
// processor classpath must list each entry once in the order it was first
// requested.

package gav

// DedupOrdered returns coords with duplicate GAV keys removed, keeping each
// key's first occurrence and its original relative order. Used to merge
// install_profile.json's "libraries" with version.json's "libraries" and to
// build a processor's classpath without repeating a dependency already
// present earlier in the list.
func DedupOrdered(coords []Coordinate) []Coordinate {
	seen := make(map[string]struct{}, len(coords))
	out := make([]Coordinate, 0, len(coords))
	for _, c := range coords {
		key := c.Key()
		if key == ":" || key == "" {
			key = c.String()
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

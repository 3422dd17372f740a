package binding

import "sort"

// Dependencies maps a dashboard input name to the binding keys whose queries
// read that input. It is metadata supplied by the loader.
type Dependencies map[string][]string

// KeysFor returns the distinct keys depending on input, sorted.
func (d Dependencies) KeysFor(input string) []string {
	raw := d[input]
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Inputs returns the sorted input names that have dependents.
func (d Dependencies) Inputs() []string {
	names := make([]string, 0, len(d))
	for name, keys := range d {
		if len(keys) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

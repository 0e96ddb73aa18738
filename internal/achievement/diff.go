package achievement

import "sort"

// Diff returns the records unlocked in next that were locked or absent in
// prev, ordered by API name. Records are matched by API name; a name that
// appears more than once in next is reported at most once.
func Diff(prev, next Snapshot) []Record {
	wasUnlocked := make(map[string]bool, len(prev))
	for _, r := range prev {
		if r.Unlocked {
			wasUnlocked[r.APIName] = true
		}
	}

	seen := make(map[string]bool)
	var out []Record
	for _, r := range next {
		if !r.Unlocked || wasUnlocked[r.APIName] || seen[r.APIName] {
			continue
		}
		seen[r.APIName] = true
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].APIName < out[j].APIName })
	return out
}

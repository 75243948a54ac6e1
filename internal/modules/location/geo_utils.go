// README: Pure geo helpers shared by the proximity strategies.
package location

import (
	"sort"
	"strings"
)

// NormalizeLocality trims and lower-cases a locality name for comparison.
func NormalizeLocality(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SameLocality compares two locality names case-insensitively after trimming.
// Empty names never match.
func SameLocality(a, b string) bool {
	na, nb := NormalizeLocality(a), NormalizeLocality(b)
	return na != "" && na == nb
}

// SortByDistance orders items by ascending distance. Items without a distance keep
// their relative order after the measured ones.
func SortByDistance[T any](items []T, dist func(T) (int, bool)) {
	sort.SliceStable(items, func(i, j int) bool {
		di, oki := dist(items[i])
		dj, okj := dist(items[j])
		switch {
		case oki && okj:
			return di < dj
		case oki:
			return true
		default:
			return false
		}
	})
}

package hierarchy

import (
	"cmp"
	"slices"
	"strings"

	"github.com/phrazzld/scry-concepts/internal/domain"
)

// Compare orders two siblings naturally:
//  1. display order, concepts without one last;
//  2. numeric name prefix ("3. Scales" before "10. Chords"), a missing prefix counting as 0;
//  3. case-folded name, then the exact name;
//  4. id, so the order is total.
func Compare(a, b *domain.Concept) int {
	if c := compareOrder(a.DisplayOrder, b.DisplayOrder); c != 0 {
		return c
	}
	if c := compareDigits(numericPrefix(a.Name), numericPrefix(b.Name)); c != 0 {
		return c
	}
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

// SortConcepts sorts concepts in place in natural order.
func SortConcepts(concepts []*domain.Concept) {
	slices.SortStableFunc(concepts, Compare)
}

func compareOrder(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*a, *b)
	}
}

// numericPrefix returns the leading ASCII digits of name without leading
// zeros, "0" when there are none.
func numericPrefix(name string) string {
	name = strings.TrimSpace(name)
	end := 0
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}
	digits := strings.TrimLeft(name[:end], "0")
	if digits == "" {
		return "0"
	}
	return digits
}

// compareDigits compares two normalized digit strings as integers of any length.
func compareDigits(a, b string) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

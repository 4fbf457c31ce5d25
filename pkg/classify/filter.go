package classify

import "github.com/grubwheel/grubwheel/pkg/overpass"

// KindFilter holds the coarse structural toggles. Both default to included.
type KindFilter struct {
	IncludeFastFood bool `json:"include_fast_food"`
	IncludeBars     bool `json:"include_bars"`
}

// DefaultKindFilter includes every structural subtype.
func DefaultKindFilter() KindFilter {
	return KindFilter{IncludeFastFood: true, IncludeBars: true}
}

func (f KindFilter) excludesKind(kind string) bool {
	switch kind {
	case "fast_food":
		return !f.IncludeFastFood
	case "bar", "pub":
		return !f.IncludeBars
	}
	return false
}

// ApplyFilters builds the filtered candidate list from annotated venues:
//
//  1. Coarse kind toggles remove records of an excluded structural subtype
//     before category filtering.
//  2. A categorized record is kept iff at least one of its categories is
//     not excluded — exclusion removes a record only when every one of its
//     categories is excluded, so a multi-category venue does not vanish
//     because a single category was toggled off.
//  3. Records with no categories are kept unconditionally; absence of
//     classification is not exclusion-worthy.
//
// The input is never mutated and the result preserves input order, so
// applying the same filters twice yields the same list.
func ApplyFilters(venues []overpass.Venue, excluded map[string]bool, kinds KindFilter) []overpass.Venue {
	out := make([]overpass.Venue, 0, len(venues))
	for _, v := range venues {
		if kinds.excludesKind(v.Kind) {
			continue
		}
		if len(v.Categories) > 0 && !anySurvives(v.Categories, excluded) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func anySurvives(categories []string, excluded map[string]bool) bool {
	for _, c := range categories {
		if !excluded[c] {
			return true
		}
	}
	return false
}

// Package classify derives category labels for venues from structured tags
// and name heuristics, and applies the user's exclusion filters.
package classify

import (
	"regexp"
	"sort"
	"strings"

	"github.com/grubwheel/grubwheel/pkg/overpass"
)

// SpecialtyBrewery is the additive maker category. It never replaces a
// venue's other categories.
const SpecialtyBrewery = "brewery"

// borderlineKinds are drinking establishments that only earn a category when
// a secondary signal affirms they serve food. Structured tagging coverage in
// OpenStreetMap is incomplete, so the name heuristic trades precision for
// recall.
var borderlineKinds = map[string]bool{
	"bar": true,
	"pub": true,
}

// foodTagAliases are the tag names checked for an explicit food-affirming
// value on borderline venues.
var foodTagAliases = []string{"food", "food:menu", "restaurant"}

// foodNamePattern matches dining vocabulary in venue names.
var foodNamePattern = regexp.MustCompile(`(?i)\b(grill|grille|kitchen|diner|eatery|bistro|cantina|pizz\w*|taco|burger|bbq|barbecue|smokehouse|steak|sushi|noodle|pho|ramen|wings?)\b`)

// breweryNamePattern matches maker vocabulary in venue names.
var breweryNamePattern = regexp.MustCompile(`(?i)\b(brew\w*|taproom|tap house|ale house|beer (co|works|garden))\b`)

// Categories derives the category set for one venue:
//
//   - direct categories from the cuisine tag, split on ";", lower-cased;
//   - the structural kind itself for borderline bar/pub records when a
//     food tag alias or the name vocabulary affirms relevance;
//   - the additive brewery specialty from its own tag family or name match.
//
// The result is de-duplicated and sorted; it may be empty.
func Categories(v overpass.Venue) []string {
	set := make(map[string]struct{})

	if cuisine := v.Tags["cuisine"]; cuisine != "" {
		for _, part := range strings.Split(cuisine, ";") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				set[part] = struct{}{}
			}
		}
	}

	if borderlineKinds[v.Kind] && (hasFoodTag(v.Tags) || foodNamePattern.MatchString(v.Name)) {
		set[v.Kind] = struct{}{}
	}

	if breweryTagged(v.Tags) || breweryNamePattern.MatchString(v.Name) {
		set[SpecialtyBrewery] = struct{}{}
	}

	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func hasFoodTag(tags map[string]string) bool {
	for _, alias := range foodTagAliases {
		if v := tags[alias]; v != "" && v != "no" {
			return true
		}
	}
	return false
}

func breweryTagged(tags map[string]string) bool {
	if tags["craft"] == "brewery" {
		return true
	}
	if v := tags["microbrewery"]; v != "" && v != "no" {
		return true
	}
	return tags["brewery"] != ""
}

// Annotate returns a copy of venues with Categories populated. Venues are
// never mutated in place.
func Annotate(venues []overpass.Venue) []overpass.Venue {
	out := make([]overpass.Venue, len(venues))
	for i, v := range venues {
		v.Categories = Categories(v)
		out[i] = v
	}
	return out
}

// CategorySet is the de-duplicated union of every venue's categories, sorted
// lexicographically. It drives the user-facing exclusion toggles.
func CategorySet(venues []overpass.Venue) []string {
	set := make(map[string]struct{})
	for _, v := range venues {
		for _, c := range v.Categories {
			set[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

package overpass

import (
	"fmt"
	"strings"
)

// queryTimeoutSeconds is the bounded execution timeout requested from the
// mirror per call.
const queryTimeoutSeconds = 25

// coreKindPattern matches the unambiguous food amenity kinds.
const coreKindPattern = "^(restaurant|fast_food)$"

// broadKindPattern additionally covers cafes, food courts and ice cream
// parlours.
const broadKindPattern = "^(restaurant|fast_food|cafe|food_court|ice_cream)$"

// borderlineKindPattern covers drinking establishments that only qualify
// with a supporting food or cuisine tag.
const borderlineKindPattern = "^(bar|pub)$"

// BroadQuery builds the full venue query: every food amenity kind, bars and
// pubs carrying food-affirming tags, and maker venues (breweries) regardless
// of amenity tagging. `nwr` unions nodes, ways and relations; `out center`
// makes composite geometries expose a precomputed centre coordinate.
func BroadQuery(lat, lon, radiusMeters float64) string {
	around := fmt.Sprintf("(around:%.0f,%.6f,%.6f)", radiusMeters, lat, lon)

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", queryTimeoutSeconds)
	fmt.Fprintf(&b, "  nwr[\"amenity\"~\"%s\"]%s;\n", broadKindPattern, around)
	fmt.Fprintf(&b, "  nwr[\"amenity\"~\"%s\"][\"food\"=\"yes\"]%s;\n", borderlineKindPattern, around)
	fmt.Fprintf(&b, "  nwr[\"amenity\"~\"%s\"][\"cuisine\"]%s;\n", borderlineKindPattern, around)
	fmt.Fprintf(&b, "  nwr[\"craft\"=\"brewery\"]%s;\n", around)
	fmt.Fprintf(&b, "  nwr[\"microbrewery\"]%s;\n", around)
	b.WriteString(");\nout center;")
	return b.String()
}

// CoreQuery builds the narrower fallback shape used when the broad query
// exhausts every mirror. Some mirrors reject the broad union on complexity
// grounds while accepting this one.
func CoreQuery(lat, lon, radiusMeters float64) string {
	around := fmt.Sprintf("(around:%.0f,%.6f,%.6f)", radiusMeters, lat, lon)
	return fmt.Sprintf("[out:json][timeout:%d];\nnwr[\"amenity\"~\"%s\"]%s;\nout center;",
		queryTimeoutSeconds, coreKindPattern, around)
}

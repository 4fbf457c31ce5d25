package overpass

import (
	"fmt"
)

// center holds the computed centre of a way or relation element.
type center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// element represents one raw record from the Overpass API: either a point
// record with direct coordinates or a composite (way/relation) exposing a
// precomputed centre.
type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *center           `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

type response struct {
	Elements []element `json:"elements"`
}

// Venue is a normalized point-of-interest record. Venues are immutable after
// creation; re-filtering produces new lists, never mutated venues.
type Venue struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Kind       string            `json:"kind"`
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
	Website    string            `json:"website,omitempty"`
	Phone      string            `json:"phone,omitempty"`
	Street     string            `json:"street,omitempty"`
	City       string            `json:"city,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	Categories []string          `json:"categories,omitempty"`
}

// foodKinds is the amenity enumeration a record may carry to qualify
// directly.
var foodKinds = map[string]bool{
	"restaurant": true,
	"fast_food":  true,
	"cafe":       true,
	"food_court": true,
	"ice_cream":  true,
	"bar":        true,
	"pub":        true,
}

// normalize converts raw elements into venues: resolves coordinates,
// discards nameless or untagged records, forms the composite id, and drops
// later duplicates in a single first-seen-order pass. Duplicates are
// expected, not an error: the broad query unions several tag clauses that
// legitimately return the same physical venue more than once.
func normalize(elements []element) []Venue {
	seen := make(map[string]struct{}, len(elements))
	venues := make([]Venue, 0, len(elements))

	for _, e := range elements {
		lat, lon := e.Lat, e.Lon
		if e.Center != nil {
			lat, lon = e.Center.Lat, e.Center.Lon
		}
		if lat == 0 && lon == 0 {
			continue
		}

		name := e.Tags["name"]
		if name == "" {
			continue
		}

		kind := e.Tags["amenity"]
		if !foodKinds[kind] && !makerTagged(e.Tags) {
			continue
		}
		if !foodKinds[kind] {
			kind = ""
		}

		id := fmt.Sprintf("%s/%d", e.Type, e.ID)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		venues = append(venues, Venue{
			ID:      id,
			Name:    name,
			Kind:    kind,
			Lat:     lat,
			Lon:     lon,
			Website: firstTag(e.Tags, "website", "contact:website"),
			Phone:   firstTag(e.Tags, "phone", "contact:phone"),
			Street:  e.Tags["addr:street"],
			City:    e.Tags["addr:city"],
			Tags:    e.Tags,
		})
	}

	return venues
}

// makerTagged reports whether a record carries any brewery-family tag, which
// qualifies it even without a food amenity kind.
func makerTagged(tags map[string]string) bool {
	if tags["craft"] == "brewery" {
		return true
	}
	if v := tags["microbrewery"]; v != "" && v != "no" {
		return true
	}
	if tags["brewery"] != "" {
		return true
	}
	return false
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := tags[k]; v != "" {
			return v
		}
	}
	return ""
}

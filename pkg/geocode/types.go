package geocode

import (
	"fmt"

	"github.com/grubwheel/grubwheel/pkg/geo"
)

// Location is a committed place pick: the centroid and bounding box the rest
// of the pipeline works from. Immutable once created; a new pick replaces it
// wholesale.
type Location struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Lat         float64         `json:"lat"`
	Lon         float64         `json:"lon"`
	Box         geo.BoundingBox `json:"bbox"`
}

// Candidate is one geocoding result offered to the user. Label is the short
// human form ("Lafayette, IN" when derivable, otherwise the raw display
// string).
type Candidate struct {
	Source      string          `json:"source"`
	Class       string          `json:"class"`
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Label       string          `json:"label"`
	Lat         float64         `json:"lat"`
	Lon         float64         `json:"lon"`
	Box         geo.BoundingBox `json:"bbox"`
}

// key is the dedup key across both geocoding sources.
func (c Candidate) key() string {
	return fmt.Sprintf("%s:%d", c.Class, c.ID)
}

// Location converts a chosen candidate into the committed Location.
func (c Candidate) Location() Location {
	return Location{
		Name:        c.Name,
		DisplayName: c.DisplayName,
		Lat:         c.Lat,
		Lon:         c.Lon,
		Box:         c.Box,
	}
}

// cityPlaceTypes is the fixed taxonomy of place and administrative-boundary
// subtypes treated as city-like search results.
var cityPlaceTypes = map[string]bool{
	"city":          true,
	"town":          true,
	"village":       true,
	"hamlet":        true,
	"borough":       true,
	"suburb":        true,
	"neighbourhood": true,
	"quarter":       true,
	"municipality":  true,
}

// stateCodes maps full US state names to their two-letter codes for the
// short candidate labels. Photon responses carry only the full name.
var stateCodes = map[string]string{
	"Alabama":              "AL",
	"Alaska":               "AK",
	"Arizona":              "AZ",
	"Arkansas":             "AR",
	"California":           "CA",
	"Colorado":             "CO",
	"Connecticut":          "CT",
	"Delaware":             "DE",
	"District of Columbia": "DC",
	"Florida":              "FL",
	"Georgia":              "GA",
	"Hawaii":               "HI",
	"Idaho":                "ID",
	"Illinois":             "IL",
	"Indiana":              "IN",
	"Iowa":                 "IA",
	"Kansas":               "KS",
	"Kentucky":             "KY",
	"Louisiana":            "LA",
	"Maine":                "ME",
	"Maryland":             "MD",
	"Massachusetts":        "MA",
	"Michigan":             "MI",
	"Minnesota":            "MN",
	"Mississippi":          "MS",
	"Missouri":             "MO",
	"Montana":              "MT",
	"Nebraska":             "NE",
	"Nevada":               "NV",
	"New Hampshire":        "NH",
	"New Jersey":           "NJ",
	"New Mexico":           "NM",
	"New York":             "NY",
	"North Carolina":       "NC",
	"North Dakota":         "ND",
	"Ohio":                 "OH",
	"Oklahoma":             "OK",
	"Oregon":               "OR",
	"Pennsylvania":         "PA",
	"Rhode Island":         "RI",
	"South Carolina":       "SC",
	"South Dakota":         "SD",
	"Tennessee":            "TN",
	"Texas":                "TX",
	"Utah":                 "UT",
	"Vermont":              "VT",
	"Virginia":             "VA",
	"Washington":           "WA",
	"West Virginia":        "WV",
	"Wisconsin":            "WI",
	"Wyoming":              "WY",
}

// shortLabel builds "City, ST" when both parts are known.
func shortLabel(city, stateCode, fallback string) string {
	if city != "" && stateCode != "" {
		return city + ", " + stateCode
	}
	return fallback
}

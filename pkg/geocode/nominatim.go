package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/grubwheel/grubwheel/pkg/geo"
)

// nominatimResult represents one result from the Nominatim search API.
// The bounding box arrives as an ordered [south, north, west, east] tuple of
// strings.
type nominatimResult struct {
	PlaceID     int64    `json:"place_id"`
	OsmType     string   `json:"osm_type"`
	OsmID       int64    `json:"osm_id"`
	Class       string   `json:"category"`
	Type        string   `json:"type"`
	AddressType string   `json:"addresstype"`
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	BoundingBox []string `json:"boundingbox"`
	Address     struct {
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		Hamlet        string `json:"hamlet"`
		Borough       string `json:"borough"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		Municipality  string `json:"municipality"`
		State         string `json:"state"`
		StateISO      string `json:"ISO3166-2-lvl4"`
		CountryCode   string `json:"country_code"`
	} `json:"address"`
}

// searchNominatim issues one Nominatim search request. params carries either
// the free-form q= shape or the structured city= shape; the country
// constraint, result cap and address detail flags are added here.
func searchNominatim(ctx context.Context, params url.Values) ([]nominatimResult, error) {
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("countrycodes", countryCode)
	params.Set("limit", strconv.Itoa(resultCap))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, nominatimEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to parse nominatim response: %w", err)
	}

	return results, nil
}

// cityLike reports whether a Nominatim result denotes a city-scale place:
// either a place record with an allowed subtype, or an administrative
// boundary whose address type or structured address breakdown confirms a
// settlement.
func cityLike(r nominatimResult) bool {
	if r.Class == "place" && cityPlaceTypes[r.Type] {
		return true
	}
	if r.Class == "boundary" && r.Type == "administrative" {
		if cityPlaceTypes[r.AddressType] {
			return true
		}
		a := r.Address
		return a.City != "" || a.Town != "" || a.Village != "" || a.Borough != "" || a.Municipality != ""
	}
	return false
}

// settlementName picks the most specific settlement field from the address
// breakdown, falling back to the record's own name.
func settlementName(r nominatimResult) string {
	a := r.Address
	for _, name := range []string{a.City, a.Town, a.Village, a.Borough, a.Suburb, a.Neighbourhood, a.Municipality} {
		if name != "" {
			return name
		}
	}
	return r.Name
}

// stateCode derives a two-letter region code, preferring the ISO3166-2 field
// ("US-IN") and falling back to the full state name lookup.
func stateCode(iso, state string) string {
	if idx := strings.LastIndex(iso, "-"); idx >= 0 && len(iso)-idx == 3 {
		return iso[idx+1:]
	}
	return stateCodes[state]
}

// candidateFromNominatim normalizes one result. A malformed coordinate or
// bounding box disqualifies the record rather than failing resolution.
func candidateFromNominatim(r nominatimResult) (Candidate, bool) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Candidate{}, false
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Candidate{}, false
	}

	box, ok := parseNominatimBox(r.BoundingBox)
	if !ok {
		return Candidate{}, false
	}

	name := settlementName(r)
	label := shortLabel(name, stateCode(r.Address.StateISO, r.Address.State), r.DisplayName)

	return Candidate{
		Source:      "nominatim",
		Class:       r.Class,
		ID:          r.PlaceID,
		Name:        name,
		DisplayName: r.DisplayName,
		Label:       label,
		Lat:         lat,
		Lon:         lon,
		Box:         box,
	}, true
}

func parseNominatimBox(raw []string) (box geo.BoundingBox, ok bool) {
	if len(raw) != 4 {
		return box, false
	}
	vals := make([]float64, 4)
	for i, s := range raw {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return box, false
		}
		vals[i] = f
	}
	// Nominatim order: south, north, west, east.
	box.South, box.North, box.West, box.East = vals[0], vals[1], vals[2], vals[3]
	return box, box.Valid()
}

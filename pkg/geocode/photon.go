package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/grubwheel/grubwheel/pkg/geo"
)

// US bounding envelope for the fallback source (approximate, continental).
const (
	usSouth = 24.396308
	usNorth = 49.384358
	usWest  = -125.0
	usEast  = -66.93457
)

// pointExtentDegrees synthesizes a small bounding box around point features
// that arrive without an extent.
const pointExtentDegrees = 0.02

// photonResponse is the feature collection returned by the Photon API.
type photonResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			OsmID       int64     `json:"osm_id"`
			OsmKey      string    `json:"osm_key"`
			OsmValue    string    `json:"osm_value"`
			Name        string    `json:"name"`
			City        string    `json:"city"`
			State       string    `json:"state"`
			CountryCode string    `json:"countrycode"`
			Extent      []float64 `json:"extent"`
		} `json:"properties"`
	} `json:"features"`
}

// searchPhoton queries the fallback geocoding source, constrained to the US
// envelope, and re-applies the same city-like allow-list used for the
// primary source.
func searchPhoton(ctx context.Context, query string) ([]Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", resultCap))
	params.Set("bbox", fmt.Sprintf("%g,%g,%g,%g", usWest, usSouth, usEast, usNorth))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photonEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("photon request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photon returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed photonResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse photon response: %w", err)
	}

	var candidates []Candidate
	for _, f := range parsed.Features {
		p := f.Properties
		if p.OsmKey != "place" || !cityPlaceTypes[p.OsmValue] {
			continue
		}
		if len(f.Geometry.Coordinates) != 2 {
			continue
		}

		lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]

		box := geo.BoundingBox{
			South: lat - pointExtentDegrees,
			West:  lon - pointExtentDegrees,
			North: lat + pointExtentDegrees,
			East:  lon + pointExtentDegrees,
		}
		// Extent order: west, south, east, north.
		if len(p.Extent) == 4 {
			box = geo.BoundingBox{West: p.Extent[0], South: p.Extent[1], East: p.Extent[2], North: p.Extent[3]}
		}
		if !box.Valid() {
			continue
		}

		name := p.Name
		if name == "" {
			name = p.City
		}

		candidates = append(candidates, Candidate{
			Source:      "photon",
			Class:       p.OsmKey,
			ID:          p.OsmID,
			Name:        name,
			DisplayName: displayNamePhoton(name, p.State),
			Label:       shortLabel(name, stateCodes[p.State], displayNamePhoton(name, p.State)),
			Lat:         lat,
			Lon:         lon,
			Box:         box,
		})
	}

	return candidates, nil
}

func displayNamePhoton(name, state string) string {
	if state != "" {
		return name + ", " + state
	}
	return name
}

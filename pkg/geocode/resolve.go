// Package geocode resolves free-text place queries into ranked city
// candidates with centroid and bounding box, using Nominatim as the primary
// source and Photon as the fallback.
package geocode

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Making the endpoints and client package-level variables allows us to
// mock them during testing without changing function signatures.
var (
	nominatimEndpoint = "https://nominatim.openstreetmap.org/search"
	photonEndpoint    = "https://photon.komoot.io/api"
	httpClient        = &http.Client{Timeout: 15 * time.Second}
)

const (
	countryCode = "us"
	resultCap   = 15
	userAgent   = "grubwheel/1.0 (+https://github.com/grubwheel/grubwheel)"
)

// ResolveLocations turns a free-text query into at most 15 city-like
// candidates. Two Nominatim request shapes are issued sequentially (free-form
// and structured-by-city), merged, filtered to city-scale places and deduped
// by class + numeric id; only when both shapes produce nothing does the
// Photon fallback run. A transport failure on any single source is swallowed
// and treated as an empty result for that source, so resolution degrades to
// an empty candidate list rather than failing outright. The returned error is
// non-nil only when ctx is cancelled.
func ResolveLocations(ctx context.Context, query string) ([]Candidate, error) {
	freeform, err := searchNominatim(ctx, url.Values{"q": []string{query}})
	if err != nil {
		freeform = nil
	}
	structured, err := searchNominatim(ctx, url.Values{"city": []string{query}})
	if err != nil {
		structured = nil
	}

	merged := make([]Candidate, 0, len(freeform)+len(structured))
	for _, r := range append(freeform, structured...) {
		if !cityLike(r) {
			continue
		}
		if c, ok := candidateFromNominatim(r); ok {
			merged = append(merged, c)
		}
	}
	merged = dedupe(merged)

	if len(merged) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fallback, err := searchPhoton(ctx, query)
		if err != nil {
			fallback = nil
		}
		merged = dedupe(fallback)
	}

	if len(merged) > resultCap {
		merged = merged[:resultCap]
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return merged, nil
}

// dedupe drops later duplicates while preserving first-seen order.
func dedupe(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if _, ok := seen[c.key()]; ok {
			continue
		}
		seen[c.key()] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Package overpass retrieves food venues around a resolved location from a
// set of interchangeable Overpass API mirrors, with shuffle-and-backoff
// fallback and a broad→core two-tier query strategy.
package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/grubwheel/grubwheel/pkg/geo"
	"github.com/grubwheel/grubwheel/pkg/geocode"
	"github.com/grubwheel/grubwheel/pkg/retry"
)

// DefaultMirrors lists the public Overpass instances. Mirrors have
// inconsistent uptime and differing query-complexity tolerances, so the
// client never depends on a single one.
var DefaultMirrors = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
}

// DefaultPolicy is the backoff schedule between mirror attempts.
var DefaultPolicy = retry.Policy{
	BaseDelay: 500 * time.Millisecond,
	DelayStep: 750 * time.Millisecond,
}

var (
	// ErrEmptyResult marks a reachable mirror that returned nothing
	// usable; for fallback purposes it is treated like a transport
	// failure.
	ErrEmptyResult = errors.New("overpass: empty result")

	// ErrExhausted is surfaced once every mirror has failed on both query
	// tiers.
	ErrExhausted = errors.New("overpass: all mirrors exhausted")
)

const clientUserAgent = "grubwheel/1.0 (+https://github.com/grubwheel/grubwheel)"

// Attempt describes one mirror request, reported through the client's
// OnAttempt hook for logging.
type Attempt struct {
	Endpoint string
	Tier     string
	Elements int
	Err      error
}

// Client fetches venues with sequential mirror fallback. The random source
// is injected so shuffle order is reproducible under test. A single Client
// may serve concurrent fetches.
type Client struct {
	Mirrors    []string
	HTTPClient *http.Client
	Policy     retry.Policy

	// OnAttempt, when set, observes every mirror request.
	OnAttempt func(Attempt)

	// rngMu serializes rng access; *rand.Rand is not safe for concurrent
	// use.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewClient returns a client over the default mirror list. The Overpass
// query itself runs with a 25s server-side timeout, so the HTTP client
// allows a little extra.
func NewClient(rng *rand.Rand) *Client {
	return &Client{
		Mirrors:    DefaultMirrors,
		HTTPClient: &http.Client{Timeout: 35 * time.Second},
		Policy:     DefaultPolicy,
		rng:        rng,
	}
}

// FetchVenues retrieves and normalizes the venues around a location. The
// broad query shape tries every mirror first; only if it exhausts all of
// them without a non-empty success does the core-only shape get the same
// treatment. Failure means both passes were exhausted, wrapping the last
// observed error.
func (c *Client) FetchVenues(ctx context.Context, loc geocode.Location) ([]Venue, error) {
	radius := geo.SearchRadiusMeters(loc.Box, loc.Lat, loc.Lon)

	tiers := []struct {
		name  string
		query string
	}{
		{"broad", BroadQuery(loc.Lat, loc.Lon, radius)},
		{"core", CoreQuery(loc.Lat, loc.Lon, radius)},
	}

	var lastErr error
	for _, tier := range tiers {
		elements, err := c.fetchTier(ctx, tier.name, tier.query)
		if err == nil {
			return normalize(elements), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

// fetchTier runs one query shape across a freshly shuffled mirror list,
// waiting the scheduled backoff between failures and accepting the first
// response that is transport-successful and non-empty.
func (c *Client) fetchTier(ctx context.Context, tier, query string) ([]element, error) {
	mirrors := c.shuffledMirrors()

	policy := c.Policy
	policy.MaxAttempts = len(mirrors)

	return retry.Do(ctx, policy, func(ctx context.Context, attempt int) ([]element, error) {
		endpoint := mirrors[attempt]
		elements, err := c.query(ctx, endpoint, query)
		if err == nil && len(elements) == 0 {
			err = ErrEmptyResult
		}

		if c.OnAttempt != nil {
			c.OnAttempt(Attempt{Endpoint: endpoint, Tier: tier, Elements: len(elements), Err: err})
		}
		if err != nil {
			return nil, err
		}
		return elements, nil
	})
}

func (c *Client) shuffledMirrors() []string {
	mirrors := make([]string, len(c.Mirrors))
	copy(mirrors, c.Mirrors)
	c.rngMu.Lock()
	c.rng.Shuffle(len(mirrors), func(i, j int) {
		mirrors[i], mirrors[j] = mirrors[j], mirrors[i]
	})
	c.rngMu.Unlock()
	return mirrors
}

func (c *Client) query(ctx context.Context, endpoint, query string) ([]element, error) {
	form := url.Values{"data": []string{query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", clientUserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overpass returned status %d", resp.StatusCode)
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse overpass response: %w", err)
	}

	return parsed.Elements, nil
}

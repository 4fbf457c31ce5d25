// Package session owns the per-client state machine: the committed
// location, the fetched venue list, the active filters, and the wheel. All
// mutations funnel through one mutex so the engine never sees concurrent
// access, and every state change is broadcast to subscribers as an event.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grubwheel/grubwheel/pkg/classify"
	"github.com/grubwheel/grubwheel/pkg/db"
	"github.com/grubwheel/grubwheel/pkg/geocode"
	"github.com/grubwheel/grubwheel/pkg/overpass"
	"github.com/grubwheel/grubwheel/pkg/wheel"
)

// Event types pushed to subscribers.
const (
	EventLocation    = "location"
	EventVenues      = "venues"
	EventFilters     = "filters"
	EventSpinStarted = "spin.started"
	EventSpinResult  = "spin.result"
	EventError       = "error"
)

// Event is one broadcast state change.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// VenueFetcher retrieves venues around a committed location.
type VenueFetcher interface {
	FetchVenues(ctx context.Context, loc geocode.Location) ([]overpass.Venue, error)
}

// SpinResult pairs the precomputed outcome with the animation duration the
// renderer should use.
type SpinResult struct {
	Outcome  wheel.Outcome `json:"outcome"`
	Duration time.Duration `json:"duration_ms"`
}

// State is a snapshot of the session for the API layer.
type State struct {
	ID          string              `json:"id"`
	Location    *geocode.Location   `json:"location,omitempty"`
	Venues      []overpass.Venue    `json:"venues"`
	TotalVenues int                 `json:"total_venues"`
	Categories  []string            `json:"categories"`
	Excluded    []string            `json:"excluded"`
	Kinds       classify.KindFilter `json:"kinds"`
	Spinning    bool                `json:"spinning"`
	Rotation    float64             `json:"rotation"`
	Slices      []wheel.Slice       `json:"slices"`
}

// Session is the per-client controller. Safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id           string
	store        *db.Service
	fetcher      VenueFetcher
	spinDuration time.Duration

	loc        *geocode.Location
	venues     []overpass.Venue
	categories []string
	excluded   map[string]bool
	kinds      classify.KindFilter
	engine     *wheel.Engine

	// fetchSeq invalidates in-flight fetches: results carrying a stale
	// sequence number are discarded instead of overwriting newer state.
	fetchSeq uint64

	spinTimer   *time.Timer
	lastOutcome wheel.Outcome

	subscribers map[chan Event]struct{}
}

// New creates an idle session. The random source seeds the wheel engine,
// injected for reproducible tests; the fetcher owns its own randomness.
func New(store *db.Service, fetcher VenueFetcher, rng *rand.Rand, spinDuration time.Duration) *Session {
	return &Session{
		id:           uuid.NewString(),
		store:        store,
		fetcher:      fetcher,
		spinDuration: spinDuration,
		excluded:     make(map[string]bool),
		kinds:        classify.DefaultKindFilter(),
		engine:       wheel.NewEngine(rng),
		subscribers:  make(map[chan Event]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Subscribe registers an event channel. The returned function unsubscribes.
// Slow subscribers drop events rather than block the session.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.subscribers, ch)
		s.mu.Unlock()
	}
}

func (s *Session) publishLocked(evt Event) {
	for ch := range s.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ResolveLocations proxies the geocoding pipeline; it touches no session
// state.
func (s *Session) ResolveLocations(ctx context.Context, query string) ([]geocode.Candidate, error) {
	return geocode.ResolveLocations(ctx, query)
}

// ChooseLocation commits a location pick: persists it and fetches venues
// for it. Filters only reset once the fetch commits; a failed fetch leaves
// the previous list and its exclusions intact.
func (s *Session) ChooseLocation(ctx context.Context, loc geocode.Location) error {
	s.mu.Lock()
	s.loc = &loc
	seq := s.nextFetchLocked()
	s.publishLocked(Event{Type: EventLocation, Payload: loc})
	s.mu.Unlock()

	if raw, err := json.Marshal(loc); err == nil {
		if err := s.store.Setting.Set(db.SettingKeyLocation, string(raw)); err != nil {
			log.Printf("Failed to persist location: %v", err)
		}
	}

	return s.fetch(ctx, loc, seq)
}

// Reload refetches venues for the current location. Like any successful
// fetch it starts the exclusion set empty; the new list describes a fresh
// snapshot of the area.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.loc == nil {
		s.mu.Unlock()
		return fmt.Errorf("no location chosen")
	}
	loc := *s.loc
	seq := s.nextFetchLocked()
	s.mu.Unlock()

	return s.fetch(ctx, loc, seq)
}

// nextFetchLocked bumps the fetch sequence, invalidating any fetch still in
// flight.
func (s *Session) nextFetchLocked() uint64 {
	s.fetchSeq++
	return s.fetchSeq
}

func (s *Session) fetch(ctx context.Context, loc geocode.Location, seq uint64) error {
	venues, err := s.fetcher.FetchVenues(ctx, loc)
	if err != nil {
		s.mu.Lock()
		if seq == s.fetchSeq {
			s.publishLocked(Event{Type: EventError, Payload: err.Error()})
		}
		s.mu.Unlock()
		return err
	}

	annotated := classify.Annotate(venues)

	s.mu.Lock()
	if seq != s.fetchSeq {
		// A newer pick superseded this fetch while it was in flight.
		s.mu.Unlock()
		return nil
	}
	s.venues = annotated
	s.categories = classify.CategorySet(annotated)
	// Exclusions described the previous list; every committed fetch starts
	// with none.
	s.excluded = make(map[string]bool)
	s.rebuildLocked()
	s.publishLocked(Event{Type: EventVenues, Payload: s.stateLocked()})
	s.mu.Unlock()

	s.cacheVenues(loc, annotated)
	return nil
}

// RestoreFromCache rehydrates the last committed location and its cached
// venue list without any network traffic. Returns false when nothing was
// persisted.
func (s *Session) RestoreFromCache() (bool, error) {
	raw, err := s.store.Setting.Get(db.SettingKeyLocation)
	if err != nil || raw == "" {
		return false, err
	}

	var loc geocode.Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return false, fmt.Errorf("failed to parse persisted location: %w", err)
	}

	cached, err := s.store.Venue.GetByLocation(locationKey(loc))
	if err != nil {
		return false, err
	}

	venues := make([]overpass.Venue, len(cached))
	for i, row := range cached {
		venues[i] = row.Venue()
	}
	annotated := classify.Annotate(venues)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loc = &loc
	s.venues = annotated
	s.categories = classify.CategorySet(annotated)
	s.rebuildLocked()
	s.publishLocked(Event{Type: EventLocation, Payload: loc})
	s.publishLocked(Event{Type: EventVenues, Payload: s.stateLocked()})
	return true, nil
}

func (s *Session) cacheVenues(loc geocode.Location, venues []overpass.Venue) {
	key := locationKey(loc)
	rows := make([]db.CachedVenue, len(venues))
	for i, v := range venues {
		rows[i] = db.CachedVenueFrom(key, i, v)
	}
	if err := s.store.Venue.ReplaceForLocation(key, rows); err != nil {
		log.Printf("Failed to cache venues for %s: %v", key, err)
	}
}

// ToggleCategory flips one category exclusion. Unknown categories are
// ignored.
func (s *Session) ToggleCategory(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := false
	for _, c := range s.categories {
		if c == name {
			known = true
			break
		}
	}
	if !known {
		return
	}

	if s.excluded[name] {
		delete(s.excluded, name)
	} else {
		s.excluded[name] = true
	}
	s.rebuildLocked()
	s.publishLocked(Event{Type: EventFilters, Payload: s.stateLocked()})
}

// ExcludeAll excludes every known category. Uncategorized venues survive,
// so the wheel may still have candidates.
func (s *Session) ExcludeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		s.excluded[c] = true
	}
	s.rebuildLocked()
	s.publishLocked(Event{Type: EventFilters, Payload: s.stateLocked()})
}

// IncludeAll clears every exclusion.
func (s *Session) IncludeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.excluded = make(map[string]bool)
	s.rebuildLocked()
	s.publishLocked(Event{Type: EventFilters, Payload: s.stateLocked()})
}

// SetKindFilter replaces the coarse structural toggles.
func (s *Session) SetKindFilter(kinds classify.KindFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = kinds
	s.rebuildLocked()
	s.publishLocked(Event{Type: EventFilters, Payload: s.stateLocked()})
}

// Spin draws an outcome and schedules its reveal after the animation
// duration. The outcome is final the moment this returns; filter changes
// made mid-animation only affect the next spin.
func (s *Session) Spin() (SpinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, err := s.engine.Spin()
	if err != nil {
		return SpinResult{}, err
	}
	s.lastOutcome = outcome

	result := SpinResult{Outcome: outcome, Duration: s.spinDuration}
	s.publishLocked(Event{Type: EventSpinStarted, Payload: result})

	s.spinTimer = time.AfterFunc(s.spinDuration, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.engine.CompleteSpin()
		s.publishLocked(Event{Type: EventSpinResult, Payload: s.lastOutcome})
	})

	return result, nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Close stops the spin timer. Subscribed channels stop receiving events but
// are left open for their readers to drain.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spinTimer != nil {
		s.spinTimer.Stop()
	}
	s.subscribers = make(map[chan Event]struct{})
}

// rebuildLocked reapplies the filters and hands the surviving list to the
// engine. The engine preserves its rotation across candidate changes.
func (s *Session) rebuildLocked() {
	filtered := classify.ApplyFilters(s.venues, s.excluded, s.kinds)
	s.engine.SetCandidates(filtered)
}

func (s *Session) stateLocked() State {
	excluded := make([]string, 0, len(s.excluded))
	for c := range s.excluded {
		excluded = append(excluded, c)
	}
	sort.Strings(excluded)

	return State{
		ID:          s.id,
		Location:    s.loc,
		Venues:      s.engine.Candidates(),
		TotalVenues: len(s.venues),
		Categories:  s.categories,
		Excluded:    excluded,
		Kinds:       s.kinds,
		Spinning:    s.engine.IsSpinning(),
		Rotation:    s.engine.Rotation(),
		Slices:      s.engine.Slices(),
	}
}

// locationKey identifies a location in the venue cache. Centroid rounding
// to 5 decimal places (~1m) keeps re-picks of the same candidate on the
// same cache entry.
func locationKey(loc geocode.Location) string {
	return fmt.Sprintf("%.5f,%.5f", loc.Lat, loc.Lon)
}

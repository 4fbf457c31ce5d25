package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm/logger"

	"github.com/grubwheel/grubwheel/pkg/classify"
	"github.com/grubwheel/grubwheel/pkg/db"
	"github.com/grubwheel/grubwheel/pkg/geocode"
	"github.com/grubwheel/grubwheel/pkg/overpass"
	"github.com/grubwheel/grubwheel/pkg/wheel"
)

func newTestService(t *testing.T, name string) *db.Service {
	t.Helper()

	timestamp := time.Now().Format("20060102_150405")
	dbFile := filepath.Join("test-databases", fmt.Sprintf("%s_%s.db", name, timestamp))
	os.MkdirAll("test-databases", 0755)

	err := db.Initialize(&db.Config{
		DatabasePath: dbFile,
		LogLevel:     logger.Error,
	})
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db.GetDefaultService()
}

// fakeFetcher returns canned venue lists, one per call.
type fakeFetcher struct {
	lists   [][]overpass.Venue
	errs    []error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *fakeFetcher) FetchVenues(ctx context.Context, loc geocode.Location) ([]overpass.Venue, error) {
	call := f.calls
	f.calls++

	if f.started != nil && call == 0 {
		f.started <- struct{}{}
		<-f.release
	}

	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	if call < len(f.lists) {
		return f.lists[call], nil
	}
	return nil, overpass.ErrExhausted
}

func testVenues() []overpass.Venue {
	return []overpass.Venue{
		{ID: "node/1", Name: "Luigi's", Kind: "restaurant", Lat: 40.42, Lon: -86.88,
			Tags: map[string]string{"cuisine": "italian;pizza"}},
		{ID: "node/2", Name: "Taco Shack", Kind: "fast_food", Lat: 40.43, Lon: -86.89,
			Tags: map[string]string{"cuisine": "mexican"}},
		{ID: "way/3", Name: "Untagged Diner Co", Kind: "restaurant", Lat: 40.44, Lon: -86.90},
	}
}

func testLocation() geocode.Location {
	return geocode.Location{
		Name: "Lafayette",
		Lat:  40.4167,
		Lon:  -86.8753,
	}
}

func TestChooseLocationFetchesAndCaches(t *testing.T) {
	service := newTestService(t, "TestChooseLocationFetchesAndCaches")
	fetcher := &fakeFetcher{lists: [][]overpass.Venue{testVenues()}}
	s := New(service, fetcher, rand.New(rand.NewSource(1)), time.Millisecond)

	if err := s.ChooseLocation(context.Background(), testLocation()); err != nil {
		t.Fatalf("ChooseLocation failed: %v", err)
	}

	state := s.Snapshot()
	if state.Location == nil || state.Location.Name != "Lafayette" {
		t.Fatalf("Location not committed: %+v", state.Location)
	}
	if state.TotalVenues != 3 {
		t.Errorf("TotalVenues = %d, want 3", state.TotalVenues)
	}
	want := []string{"italian", "mexican", "pizza"}
	if len(state.Categories) != len(want) {
		t.Fatalf("Categories = %v, want %v", state.Categories, want)
	}
	for i, c := range want {
		if state.Categories[i] != c {
			t.Errorf("Categories[%d] = %q, want %q", i, state.Categories[i], c)
		}
	}

	// Venues are cached under the location key
	cached, err := service.Venue.GetByLocation("40.41670,-86.87530")
	if err != nil {
		t.Fatalf("Failed to read venue cache: %v", err)
	}
	if len(cached) != 3 {
		t.Errorf("Cached %d venues, want 3", len(cached))
	}

	// The location setting is persisted
	raw, err := service.Setting.Get(db.SettingKeyLocation)
	if err != nil || raw == "" {
		t.Errorf("Location setting not persisted: %q, %v", raw, err)
	}
}

func TestRestoreFromCache(t *testing.T) {
	service := newTestService(t, "TestRestoreFromCache")

	first := New(service, &fakeFetcher{lists: [][]overpass.Venue{testVenues()}},
		rand.New(rand.NewSource(1)), time.Millisecond)
	if err := first.ChooseLocation(context.Background(), testLocation()); err != nil {
		t.Fatalf("ChooseLocation failed: %v", err)
	}

	// A fresh session restores without the fetcher ever being called
	failing := &fakeFetcher{errs: []error{errors.New("network down")}}
	second := New(service, failing, rand.New(rand.NewSource(2)), time.Millisecond)

	ok, err := second.RestoreFromCache()
	if err != nil {
		t.Fatalf("RestoreFromCache failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected restore to find persisted state")
	}
	if failing.calls != 0 {
		t.Errorf("Restore must not hit the network, fetcher called %d times", failing.calls)
	}

	state := second.Snapshot()
	if state.Location == nil || state.Location.Name != "Lafayette" {
		t.Errorf("Location not restored: %+v", state.Location)
	}
	if state.TotalVenues != 3 {
		t.Errorf("TotalVenues = %d, want 3", state.TotalVenues)
	}
	if len(state.Categories) != 3 {
		t.Errorf("Categories not rebuilt on restore: %v", state.Categories)
	}
}

func TestRestoreFromCacheEmpty(t *testing.T) {
	service := newTestService(t, "TestRestoreFromCacheEmpty")
	s := New(service, &fakeFetcher{}, rand.New(rand.NewSource(1)), time.Millisecond)

	ok, err := s.RestoreFromCache()
	if err != nil {
		t.Fatalf("RestoreFromCache failed: %v", err)
	}
	if ok {
		t.Error("Expected no persisted state")
	}
}

func TestToggleCategoryRebuildsCandidates(t *testing.T) {
	service := newTestService(t, "TestToggleCategoryRebuildsCandidates")
	fetcher := &fakeFetcher{lists: [][]overpass.Venue{testVenues()}}
	s := New(service, fetcher, rand.New(rand.NewSource(1)), time.Millisecond)

	if err := s.ChooseLocation(context.Background(), testLocation()); err != nil {
		t.Fatalf("ChooseLocation failed: %v", err)
	}

	s.ToggleCategory("mexican")
	state := s.Snapshot()
	// Taco Shack's only category is excluded; Luigi's and the untagged
	// diner remain.
	if len(state.Venues) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(state.Venues))
	}
	if state.Excluded[0] != "mexican" {
		t.Errorf("Excluded = %v", state.Excluded)
	}

	// Toggling again restores it
	s.ToggleCategory("mexican")
	if state := s.Snapshot(); len(state.Venues) != 3 {
		t.Errorf("Expected 3 candidates after re-include, got %d", len(state.Venues))
	}

	// Unknown categories are ignored
	s.ToggleCategory("nonexistent")
	if state := s.Snapshot(); len(state.Excluded) != 0 {
		t.Errorf("Unknown category recorded: %v", state.Excluded)
	}
}

func TestExcludeAllKeepsUncategorized(t *testing.T) {
	service := newTestService(t, "TestExcludeAllKeepsUncategorized")
	fetcher := &fakeFetcher{lists: [][]overpass.Venue{testVenues()}}
	s := New(service, fetcher, rand.New(rand.NewSource(1)), time.Millisecond)

	if err := s.ChooseLocation(context.Background(), testLocation()); err != nil {
		t.Fatalf("ChooseLocation failed: %v", err)
	}

	s.ExcludeAll()
	state := s.Snapshot()
	if len(state.Venues) != 1 || state.Venues[0].ID != "way/3" {
		t.Fatalf("Expected only the uncategorized venue, got %+v", state.Venues)
	}

	s.IncludeAll()
	if state := s.Snapshot(); len(state.Venues) != 3 {
		t.Errorf("IncludeAll did not restore the list: %d venues", len(state.Venues))
	}
}

func TestSetKindFilter(t *testing.T) {
	service := newTestService(t, "TestSetKindFilter")
	fetcher := &fakeFetcher{lists: [][]overpass.Venue{testVenues()}}
	s := New(service, fetcher, rand.New(rand.NewSource(1)), time.Millisecond)

	if err := s.ChooseLocation(context.Background(), testLocation()); err != nil {
		t.Fatalf("ChooseLocation failed: %v", err)
	}

	s.SetKindFilter(classify.KindFilter{IncludeFastFood: false, IncludeBars: true})
	state := s.Snapshot()
	for _, v := range state.Venues {
		if v.Kind == "fast_food" {
			t.Errorf("Fast food venue survived the kind toggle: %s", v.ID)
		}
	}
}

func TestStaleFetchDiscarded(t *testing.T) {
	service := newTestService(t, "TestStaleFetchDiscarded")

	stale := []overpass.Venue{{ID: "node/9", Name: "Stale Spot", Kind: "restaurant"}}
	fetcher := &fakeFetcher{
		lists:   [][]overpass.Venue{stale, testVenues()},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := New(service, fetcher, rand.New(rand.NewSource(1)), time.Millisecond)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.ChooseLocation(context.Background(), testLocation())
	}()
	<-fetcher.started

	// A second pick supersedes the one still in flight
	second := geocode.Location{Name: "West Lafayette", Lat: 40.4259, Lon: -86.9081}
	if err := s.ChooseLocation(context.Background(), second); err != nil {
		t.Fatalf("Second ChooseLocation failed: %v", err)
	}

	close(fetcher.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("First ChooseLocation failed: %v", err)
	}

	state := s.Snapshot()
	if state.Location.Name != "West Lafayette" {
		t.Errorf("Location = %s, want West Lafayette", state.Location.Name)
	}
	if state.TotalVenues != 3 {
		t.Errorf("Stale fetch overwrote newer state: %d venues", state.TotalVenues)
	}
	for _, v := range state.Venues {
		if v.ID == "node/9" {
			t.Error("Stale venue present in state")
		}
	}
}

func TestSpinEmitsEventsAndCompletes(t *testing.T) {
	service := newTestService(t, "TestSpinEmitsEventsAndCompletes")
	fetcher := &fakeFetcher{lists: [][]overpass.Venue{testVenues()}}
	s := New(service, fetcher, rand.New(rand.NewSource(1)), 20*time.Millisecond)

	if err := s.ChooseLocation(context.Background(), testLocation()); err != nil {
		t.Fatalf("ChooseLocation failed: %v", err)
	}

	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	result, err := s.Spin()
	if err != nil {
		t.Fatalf("Spin failed: %v", err)
	}
	if result.Duration != 20*time.Millisecond {
		t.Errorf("Duration = %v", result.Duration)
	}
	if !s.Snapshot().Spinning {
		t.Error("Session not in spinning state")
	}

	// A second spin is rejected while the animation runs
	if _, err := s.Spin(); !errors.Is(err, wheel.ErrSpinInProgress) {
		t.Errorf("Expected ErrSpinInProgress, got %v", err)
	}

	var started, completed bool
	deadline := time.After(time.Second)
	for !completed {
		select {
		case evt := <-events:
			switch evt.Type {
			case EventSpinStarted:
				started = true
			case EventSpinResult:
				completed = true
				outcome := evt.Payload.(wheel.Outcome)
				if outcome.Rotation != result.Outcome.Rotation {
					t.Errorf("Result rotation %f, want %f", outcome.Rotation, result.Outcome.Rotation)
				}
			}
		case <-deadline:
			t.Fatal("Timed out waiting for spin events")
		}
	}
	if !started {
		t.Error("Never observed the spin.started event")
	}

	if s.Snapshot().Spinning {
		t.Error("Session still spinning after completion")
	}
}

func TestSpinWithoutVenues(t *testing.T) {
	service := newTestService(t, "TestSpinWithoutVenues")
	s := New(service, &fakeFetcher{}, rand.New(rand.NewSource(1)), time.Millisecond)

	if _, err := s.Spin(); !errors.Is(err, wheel.ErrNoCandidates) {
		t.Errorf("Expected ErrNoCandidates, got %v", err)
	}
}

func TestReloadResetsExclusions(t *testing.T) {
	service := newTestService(t, "TestReloadResetsExclusions")
	fetcher := &fakeFetcher{lists: [][]overpass.Venue{testVenues(), testVenues()}}
	s := New(service, fetcher, rand.New(rand.NewSource(1)), time.Millisecond)

	if err := s.ChooseLocation(context.Background(), testLocation()); err != nil {
		t.Fatalf("ChooseLocation failed: %v", err)
	}
	s.ToggleCategory("mexican")

	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	// The exclusion set starts empty on every successful fetch.
	state := s.Snapshot()
	if len(state.Excluded) != 0 {
		t.Errorf("Exclusions survived a reload: %v", state.Excluded)
	}
	if len(state.Venues) != 3 {
		t.Errorf("Expected the full list after reload, got %d candidates", len(state.Venues))
	}
}

func TestFailedFetchPreservesState(t *testing.T) {
	service := newTestService(t, "TestFailedFetchPreservesState")
	fetcher := &fakeFetcher{
		lists: [][]overpass.Venue{testVenues()},
		errs:  []error{nil, errors.New("all mirrors down")},
	}
	s := New(service, fetcher, rand.New(rand.NewSource(1)), time.Millisecond)

	if err := s.ChooseLocation(context.Background(), testLocation()); err != nil {
		t.Fatalf("ChooseLocation failed: %v", err)
	}
	s.ToggleCategory("mexican")

	// The second fetch fails; the prior list and its exclusions stay
	// intact.
	if err := s.Reload(context.Background()); err == nil {
		t.Fatal("Expected reload to surface the fetch error")
	}

	state := s.Snapshot()
	if state.TotalVenues != 3 {
		t.Errorf("Venue list lost on failed fetch: %d venues", state.TotalVenues)
	}
	if len(state.Excluded) != 1 || state.Excluded[0] != "mexican" {
		t.Errorf("Exclusions lost on failed fetch: %v", state.Excluded)
	}
	if len(state.Venues) != 2 {
		t.Errorf("Expected 2 candidates, got %d", len(state.Venues))
	}
}

func TestReloadWithoutLocation(t *testing.T) {
	service := newTestService(t, "TestReloadWithoutLocation")
	s := New(service, &fakeFetcher{}, rand.New(rand.NewSource(1)), time.Millisecond)

	if err := s.Reload(context.Background()); err == nil {
		t.Error("Expected error reloading without a location")
	}
}

package db

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm/logger"

	"github.com/grubwheel/grubwheel/pkg/overpass"
)

func testDatabase(t *testing.T, name string) {
	t.Helper()

	// Create database file in test-databases directory
	timestamp := time.Now().Format("20060102_150405")
	dbFile := filepath.Join("test-databases", fmt.Sprintf("%s_%s.db", name, timestamp))

	// Ensure the directory exists
	os.MkdirAll("test-databases", 0755)

	err := Initialize(&Config{
		DatabasePath: dbFile,
		LogLevel:     logger.Error,
	})
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { Close() })

	t.Logf("Database created at: %s", dbFile)
}

func TestInitialize(t *testing.T) {
	testDatabase(t, "TestInitialize")

	// Check if tables exist
	if !DB.Migrator().HasTable(&Setting{}) {
		t.Error("Setting table not created")
	}
	if !DB.Migrator().HasTable(&CachedVenue{}) {
		t.Error("CachedVenue table not created")
	}
	if !DB.Migrator().HasTable(&FetchLog{}) {
		t.Error("FetchLog table not created")
	}

	if err := Health(); err != nil {
		t.Errorf("Health check failed: %v", err)
	}
}

func TestSettingRepository(t *testing.T) {
	testDatabase(t, "TestSettingRepository")
	service := GetDefaultService()

	// Missing key reads back empty without error
	value, err := service.Setting.Get("location")
	if err != nil {
		t.Fatalf("Failed to get missing setting: %v", err)
	}
	if value != "" {
		t.Errorf("Expected empty value for missing key, got %q", value)
	}

	if err := service.Setting.Set("location", `{"name":"Lafayette"}`); err != nil {
		t.Fatalf("Failed to set setting: %v", err)
	}

	value, err = service.Setting.Get("location")
	if err != nil {
		t.Fatalf("Failed to get setting: %v", err)
	}
	if value != `{"name":"Lafayette"}` {
		t.Errorf("Retrieved setting does not match: %q", value)
	}

	// Set on an existing key overwrites
	if err := service.Setting.Set("location", `{"name":"West Lafayette"}`); err != nil {
		t.Fatalf("Failed to overwrite setting: %v", err)
	}
	value, _ = service.Setting.Get("location")
	if value != `{"name":"West Lafayette"}` {
		t.Errorf("Overwrite did not take: %q", value)
	}
}

func TestVenueRepositoryReplaceRoundTrip(t *testing.T) {
	testDatabase(t, "TestVenueRepositoryReplaceRoundTrip")
	service := GetDefaultService()

	const locationKey = "40.41670,-86.87530"

	first := []CachedVenue{
		CachedVenueFrom(locationKey, 0, overpass.Venue{
			ID:   "node/1",
			Name: "Luigi's",
			Kind: "restaurant",
			Lat:  40.42,
			Lon:  -86.88,
			Tags: map[string]string{"cuisine": "italian;pizza"},
		}),
		CachedVenueFrom(locationKey, 1, overpass.Venue{
			ID:   "way/2",
			Name: "Taco Shack",
			Kind: "fast_food",
			Lat:  40.43,
			Lon:  -86.89,
		}),
	}

	if err := service.Venue.ReplaceForLocation(locationKey, first); err != nil {
		t.Fatalf("Failed to store venues: %v", err)
	}

	cached, err := service.Venue.GetByLocation(locationKey)
	if err != nil {
		t.Fatalf("Failed to load venues: %v", err)
	}
	if len(cached) != 2 {
		t.Fatalf("Expected 2 venues, got %d", len(cached))
	}
	if cached[0].VenueID != "node/1" || cached[1].VenueID != "way/2" {
		t.Errorf("Fetch order not preserved: %s, %s", cached[0].VenueID, cached[1].VenueID)
	}

	// Tags survive the round trip
	venue := cached[0].Venue()
	if venue.Tags["cuisine"] != "italian;pizza" {
		t.Errorf("Tags lost in round trip: %v", venue.Tags)
	}

	// Replace swaps out the whole list
	second := []CachedVenue{
		CachedVenueFrom(locationKey, 0, overpass.Venue{ID: "node/3", Name: "New Spot", Kind: "cafe"}),
	}
	if err := service.Venue.ReplaceForLocation(locationKey, second); err != nil {
		t.Fatalf("Failed to replace venues: %v", err)
	}
	cached, _ = service.Venue.GetByLocation(locationKey)
	if len(cached) != 1 || cached[0].VenueID != "node/3" {
		t.Errorf("Replace did not swap the list: %+v", cached)
	}

	// A different location is unaffected
	other, err := service.Venue.GetByLocation("35.00000,-90.00000")
	if err != nil {
		t.Fatalf("Failed to load other location: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no venues for other location, got %d", len(other))
	}
}

func TestFetchLogRepository(t *testing.T) {
	testDatabase(t, "TestFetchLogRepository")
	service := GetDefaultService()

	entries := []FetchLog{
		{Timestamp: time.Now().Add(-2 * time.Hour), Endpoint: "https://overpass-api.de/api/interpreter", Tier: "broad", Error: "timeout"},
		{Timestamp: time.Now().Add(-1 * time.Hour), Endpoint: "https://overpass.kumi.systems/api/interpreter", Tier: "broad", Elements: 42},
		{Timestamp: time.Now(), Endpoint: "https://overpass-api.de/api/interpreter", Tier: "core", Elements: 17},
	}
	for i := range entries {
		if err := service.FetchLog.Create(&entries[i]); err != nil {
			t.Fatalf("Failed to create log entry: %v", err)
		}
	}

	recent, err := service.FetchLog.GetRecent(2)
	if err != nil {
		t.Fatalf("Failed to get recent entries: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(recent))
	}
	if recent[0].Tier != "core" {
		t.Errorf("Most recent entry first, got tier %s", recent[0].Tier)
	}

	if err := service.FetchLog.DeleteOlderThan(time.Now().Add(-90 * time.Minute)); err != nil {
		t.Fatalf("Failed to delete old entries: %v", err)
	}
	count, err := service.FetchLog.Count()
	if err != nil {
		t.Fatalf("Failed to count entries: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 entries after cleanup, got %d", count)
	}
}

func TestTransactionRollsBack(t *testing.T) {
	testDatabase(t, "TestTransactionRollsBack")
	service := GetDefaultService()

	err := service.Transaction(func(tx *Service) error {
		if err := tx.Setting.Set("location", "partial"); err != nil {
			return err
		}
		return fmt.Errorf("forced rollback")
	})
	if err == nil {
		t.Fatal("Expected transaction error")
	}

	value, err := service.Setting.Get("location")
	if err != nil {
		t.Fatalf("Failed to read setting: %v", err)
	}
	if value != "" {
		t.Errorf("Rollback did not discard the write: %q", value)
	}
}

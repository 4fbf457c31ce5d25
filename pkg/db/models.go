package db

import (
	"encoding/json"
	"time"

	"github.com/grubwheel/grubwheel/pkg/overpass"
)

// SettingKeyLocation is the key holding the serialized current Location.
const SettingKeyLocation = "location"

// Setting is a single string-keyed entry of persisted client state, e.g.
// the most recent location pick.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key" json:"key"`
	Value     string    `gorm:"column:value" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName returns the table name for Setting
func (Setting) TableName() string {
	return "settings"
}

// CachedVenue stores one normalized venue from the last successful fetch
// for a location, so a session can restore a usable wheel before any
// network round trip.
type CachedVenue struct {
	VenueID     string    `gorm:"primaryKey;column:venue_id" json:"venue_id"`
	LocationKey string    `gorm:"primaryKey;column:location_key;index" json:"location_key"`
	Position    int       `gorm:"column:position" json:"position"`
	Name        string    `gorm:"column:name" json:"name"`
	Kind        string    `gorm:"column:kind" json:"kind"`
	Latitude    float64   `gorm:"column:latitude" json:"latitude"`
	Longitude   float64   `gorm:"column:longitude" json:"longitude"`
	Website     string    `gorm:"column:website" json:"website"`
	Phone       string    `gorm:"column:phone" json:"phone"`
	Street      string    `gorm:"column:street" json:"street"`
	City        string    `gorm:"column:city" json:"city"`
	Tags        string    `gorm:"column:tags" json:"tags"`
	FetchedAt   time.Time `gorm:"column:fetched_at;default:CURRENT_TIMESTAMP" json:"fetched_at"`
}

// TableName returns the table name for CachedVenue
func (CachedVenue) TableName() string {
	return "cached_venues"
}

// FetchLog records one mirror attempt during a venue fetch.
type FetchLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Timestamp time.Time `gorm:"column:timestamp;default:CURRENT_TIMESTAMP" json:"timestamp"`
	Endpoint  string    `gorm:"column:endpoint" json:"endpoint"`
	Tier      string    `gorm:"column:tier" json:"tier"`
	Elements  int       `gorm:"column:elements" json:"elements"`
	Error     string    `gorm:"column:error" json:"error"`
}

// TableName returns the table name for FetchLog
func (FetchLog) TableName() string {
	return "fetch_logs"
}

// CachedVenueFrom converts a normalized venue into its cache row. The raw
// tags are serialized as JSON; a marshalling failure leaves them empty
// rather than failing the cache write.
func CachedVenueFrom(locationKey string, position int, v overpass.Venue) CachedVenue {
	tags := ""
	if len(v.Tags) > 0 {
		if raw, err := json.Marshal(v.Tags); err == nil {
			tags = string(raw)
		}
	}
	return CachedVenue{
		VenueID:     v.ID,
		LocationKey: locationKey,
		Position:    position,
		Name:        v.Name,
		Kind:        v.Kind,
		Latitude:    v.Lat,
		Longitude:   v.Lon,
		Website:     v.Website,
		Phone:       v.Phone,
		Street:      v.Street,
		City:        v.City,
		Tags:        tags,
	}
}

// Venue converts a cache row back into the normalized form.
func (c CachedVenue) Venue() overpass.Venue {
	var tags map[string]string
	if c.Tags != "" {
		_ = json.Unmarshal([]byte(c.Tags), &tags)
	}
	return overpass.Venue{
		ID:      c.VenueID,
		Name:    c.Name,
		Kind:    c.Kind,
		Lat:     c.Latitude,
		Lon:     c.Longitude,
		Website: c.Website,
		Phone:   c.Phone,
		Street:  c.Street,
		City:    c.City,
		Tags:    tags,
	}
}

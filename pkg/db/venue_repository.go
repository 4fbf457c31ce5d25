package db

import (
	"gorm.io/gorm"
)

// VenueRepository provides cache operations for CachedVenue entities
type VenueRepository struct {
	db *gorm.DB
}

// NewVenueRepository creates a new VenueRepository
func NewVenueRepository(db *gorm.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

// ReplaceForLocation atomically swaps the cached venue list for a location
// with the given rows. Fetches always replace the whole list, so a partial
// cache never survives.
func (r *VenueRepository) ReplaceForLocation(locationKey string, venues []CachedVenue) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("location_key = ?", locationKey).Delete(&CachedVenue{}).Error; err != nil {
			return err
		}
		if len(venues) == 0 {
			return nil
		}
		return tx.Create(&venues).Error
	})
}

// GetByLocation retrieves the cached venues for a location in the order
// they were fetched
func (r *VenueRepository) GetByLocation(locationKey string) ([]CachedVenue, error) {
	var venues []CachedVenue
	err := r.db.Where("location_key = ?", locationKey).Order("position ASC").Find(&venues).Error
	return venues, err
}

// CountByLocation returns the number of cached venues for a location
func (r *VenueRepository) CountByLocation(locationKey string) (int64, error) {
	var count int64
	err := r.db.Model(&CachedVenue{}).Where("location_key = ?", locationKey).Count(&count).Error
	return count, err
}

// DeleteForLocation drops the cache for a location
func (r *VenueRepository) DeleteForLocation(locationKey string) error {
	return r.db.Where("location_key = ?", locationKey).Delete(&CachedVenue{}).Error
}

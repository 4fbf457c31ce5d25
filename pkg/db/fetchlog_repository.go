package db

import (
	"time"

	"gorm.io/gorm"
)

// FetchLogRepository provides operations for FetchLog entities
type FetchLogRepository struct {
	db *gorm.DB
}

// NewFetchLogRepository creates a new FetchLogRepository
func NewFetchLogRepository(db *gorm.DB) *FetchLogRepository {
	return &FetchLogRepository{db: db}
}

// Create records a fetch attempt
func (r *FetchLogRepository) Create(entry *FetchLog) error {
	return r.db.Create(entry).Error
}

// GetRecent retrieves the most recent fetch attempts
func (r *FetchLogRepository) GetRecent(limit int) ([]FetchLog, error) {
	var entries []FetchLog
	err := r.db.Order("timestamp DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

// Count returns the total number of logged attempts
func (r *FetchLogRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&FetchLog{}).Count(&count).Error
	return count, err
}

// DeleteOlderThan removes log entries older than the given time
func (r *FetchLogRepository) DeleteOlderThan(cutoff time.Time) error {
	return r.db.Where("timestamp < ?", cutoff).Delete(&FetchLog{}).Error
}

package db

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository provides CRUD operations for Setting entities
type SettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new SettingRepository
func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get retrieves a setting value by key. A missing key returns an empty
// string and no error.
func (r *SettingRepository) Get(key string) (string, error) {
	var setting Setting
	err := r.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// Set upserts a setting value by key
func (r *SettingRepository) Set(key, value string) error {
	setting := Setting{Key: key, Value: value}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
}

// Delete removes a setting by key
func (r *SettingRepository) Delete(key string) error {
	return r.db.Where("key = ?", key).Delete(&Setting{}).Error
}

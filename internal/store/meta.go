package store

import (
	"context"
	"errors"

	"github.com/contentkit/importer/internal/importer"
	"github.com/contentkit/importer/internal/models"
	"gorm.io/gorm"
)

// MetaStore persists generic key-value metadata rows. Keys are indexed, so
// the identity scheme's key-equality scans stay cheap; values are never
// queried by equality.
type MetaStore struct {
	db *gorm.DB
}

func NewMetaStore(db *gorm.DB) *MetaStore {
	return &MetaStore{db: db}
}

// Get returns the value stored under key for ownerID. The second return is
// false when the key is absent.
func (s *MetaStore) Get(ctx context.Context, ownerID int64, key string) (string, bool, error) {
	var row models.ContentMetaModel
	err := s.db.WithContext(ctx).
		Where("content_id = ? AND meta_key = ?", ownerID, key).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return row.Value, true, nil
}

// Set writes key to value for ownerID, last write wins.
func (s *MetaStore) Set(ctx context.Context, ownerID int64, key, value string) error {
	tx := s.db.WithContext(ctx)

	var row models.ContentMetaModel
	err := tx.Where("content_id = ? AND meta_key = ?", ownerID, key).First(&row).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&models.ContentMetaModel{
			ContentID: ownerID,
			Key:       key,
			Value:     value,
		}).Error
	}

	return tx.Model(&row).UpdateColumn("meta_value", value).Error
}

// DeleteAll removes every metadata row of ownerID.
func (s *MetaStore) DeleteAll(ctx context.Context, ownerID int64) error {
	return s.db.WithContext(ctx).
		Where("content_id = ?", ownerID).
		Delete(&models.ContentMetaModel{}).Error
}

// FindOwnerByKey returns the single owner carrying key. More than one
// distinct owner is reported as importer.ErrAmbiguousIdentity instead of
// guessing.
func (s *MetaStore) FindOwnerByKey(ctx context.Context, key string) (int64, bool, error) {
	var owners []int64
	err := s.db.WithContext(ctx).
		Model(&models.ContentMetaModel{}).
		Distinct("content_id").
		Where("meta_key = ?", key).
		Limit(2).
		Pluck("content_id", &owners).Error
	if err != nil {
		return 0, false, err
	}
	switch len(owners) {
	case 0:
		return 0, false, nil
	case 1:
		return owners[0], true, nil
	default:
		return 0, false, importer.ErrAmbiguousIdentity
	}
}

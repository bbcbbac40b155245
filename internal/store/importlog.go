package store

import (
	"context"
	"errors"

	"github.com/contentkit/importer/internal/importer"
	"github.com/contentkit/importer/internal/models"
	"gorm.io/gorm"
)

// ImportLogStore appends import attempt history. The table name comes from
// configuration, so this store binds it per query instead of through a model
// TableName method.
type ImportLogStore struct {
	db    *gorm.DB
	table string
}

func NewImportLogStore(db *gorm.DB, table string) *ImportLogStore {
	return &ImportLogStore{db: db, table: table}
}

// Migrate ensures the log table exists.
func (s *ImportLogStore) Migrate() error {
	return s.db.Table(s.table).AutoMigrate(&models.ImportLogModel{})
}

// Append inserts one attempt row. Rows are never updated or deleted here;
// retention is an external concern.
func (s *ImportLogStore) Append(ctx context.Context, entry *importer.LogEntry) error {
	row := models.ImportLogModel{
		ExternalID: entry.ExternalID,
		ContentID:  entry.InternalID,
		Data:       entry.Data,
		Errors:     entry.Errors,
		Status:     string(entry.Status),
		CreatedAt:  entry.Timestamp,
	}
	return s.db.WithContext(ctx).Table(s.table).Create(&row).Error
}

// LastSuccessful returns the most recent OK entry for internalID, or nil.
func (s *ImportLogStore) LastSuccessful(ctx context.Context, internalID int64) (*importer.LogEntry, error) {
	var row models.ImportLogModel
	err := s.db.WithContext(ctx).Table(s.table).
		Where("content_id = ? AND status = ?", internalID, models.ImportStatusOK).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return entryFromRow(&row), nil
}

// LatestForExternalID returns the most recent entry for externalID, any
// status, or nil when the id has never been imported.
func (s *ImportLogStore) LatestForExternalID(ctx context.Context, externalID string) (*importer.LogEntry, error) {
	var row models.ImportLogModel
	err := s.db.WithContext(ctx).Table(s.table).
		Where("external_id = ?", externalID).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return entryFromRow(&row), nil
}

func entryFromRow(row *models.ImportLogModel) *importer.LogEntry {
	return &importer.LogEntry{
		ExternalID: row.ExternalID,
		InternalID: row.ContentID,
		Timestamp:  row.CreatedAt,
		Data:       row.Data,
		Errors:     row.Errors,
		Status:     importer.LogStatus(row.Status),
	}
}

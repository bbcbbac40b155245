package store

import (
	"context"
	"errors"
	"time"

	"github.com/contentkit/importer/internal/models"
	"gorm.io/gorm"
)

// ContentStore persists content records in MySQL.
type ContentStore struct {
	db *gorm.DB
}

func NewContentStore(db *gorm.DB) *ContentStore {
	return &ContentStore{db: db}
}

// Create inserts a new record and returns its id.
func (s *ContentStore) Create(ctx context.Context, record *models.ContentModel) (int64, error) {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return 0, err
	}
	return record.ID, nil
}

// Update writes the full record under an existing id. Columns are written
// explicitly with UpdateColumns: gorm's automatic update-time tracking would
// otherwise stamp updated_at with the current time and drop a caller-supplied
// modified date.
func (s *ContentStore) Update(ctx context.Context, id int64, record *models.ContentModel) error {
	return s.db.WithContext(ctx).
		Model(&models.ContentModel{}).
		Where("id = ?", id).
		UpdateColumns(contentUpdateColumns(record)).Error
}

func contentUpdateColumns(record *models.ContentModel) map[string]interface{} {
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	return map[string]interface{}{
		"title":          record.Title,
		"content":        record.Content,
		"excerpt":        record.Excerpt,
		"author_id":      record.AuthorID,
		"status":         record.Status,
		"comment_policy": record.CommentPolicy,
		"parent_id":      record.ParentID,
		"menu_order":     record.MenuOrder,
		"type":           record.Type,
		"locale":         record.Locale,
		"mime_type":      record.MimeType,
		"published_at":   record.PublishedAt,
		"updated_at":     updatedAt,
	}
}

// Get fetches a record by id. Returns nil when absent.
func (s *ContentStore) Get(ctx context.Context, id int64) (*models.ContentModel, error) {
	var record models.ContentModel
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// SetStatus flips only the status column.
func (s *ContentStore) SetStatus(ctx context.Context, id int64, status string) error {
	return s.db.WithContext(ctx).Model(&models.ContentModel{}).
		Where("id = ?", id).
		UpdateColumn("status", status).Error
}

// Delete removes a record. force skips the soft-delete and purges the row.
func (s *ContentStore) Delete(ctx context.Context, id int64, force bool) error {
	tx := s.db.WithContext(ctx)
	if force {
		tx = tx.Unscoped()
	}
	return tx.Delete(&models.ContentModel{}, "id = ?", id).Error
}

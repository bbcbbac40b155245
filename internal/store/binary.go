package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/contentkit/importer/internal/importer"
	"github.com/contentkit/importer/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	metaKeyFile    = "_file"
	metaKeyAltText = "_alt_text"

	attachmentType = "attachment"
)

// Uploader stores a binary object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, objectKey string, payload []byte, contentType string) (string, error)
}

// BinaryStore fetches attachment sources over HTTP and persists them as
// attachment records, with the binary either on the local static dir or in
// an S3-compatible bucket.
type BinaryStore struct {
	db        *gorm.DB
	client    *http.Client
	staticDir string
	uploader  Uploader // nil means local storage
}

// NewBinaryStore creates a local-disk backed store.
func NewBinaryStore(db *gorm.DB, staticDir string) *BinaryStore {
	return &BinaryStore{
		db:        db,
		client:    &http.Client{Timeout: 45 * time.Second},
		staticDir: staticDir,
	}
}

// NewS3BinaryStore creates a store that uploads binaries through uploader.
func NewS3BinaryStore(db *gorm.DB, uploader Uploader) *BinaryStore {
	return &BinaryStore{
		db:       db,
		client:   &http.Client{Timeout: 45 * time.Second},
		uploader: uploader,
	}
}

// Fetch downloads the source binary. A non-success response is an error; the
// pipeline treats it as terminal for that attachment, no retries.
func (s *BinaryStore) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Store writes the binary and creates the attachment record as a child of
// parentID. The returned id lives in the same id space as content records.
func (s *BinaryStore) Store(ctx context.Context, data []byte, att importer.Attachment, parentID int64) (int64, error) {
	name := buildFileName(att.Src)
	contentType := att.MimeType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	var location string
	if s.uploader != nil {
		url, err := s.uploader.Upload(ctx, name, data, contentType)
		if err != nil {
			return 0, fmt.Errorf("upload binary: %w", err)
		}
		location = url
	} else {
		if err := os.MkdirAll(s.staticDir, 0o755); err != nil {
			return 0, fmt.Errorf("create static dir: %w", err)
		}
		path := filepath.Join(s.staticDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return 0, fmt.Errorf("write binary: %w", err)
		}
		location = path
	}

	record := &models.ContentModel{
		Title:    att.Title,
		Content:  att.Description,
		Excerpt:  att.Caption,
		Type:     attachmentType,
		Status:   "publish",
		ParentID: &parentID,
		MimeType: contentType,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return 0, fmt.Errorf("create attachment record: %w", err)
	}

	if err := s.setMeta(ctx, record.ID, metaKeyFile, location); err != nil {
		return 0, err
	}
	if att.AltText != "" {
		if err := s.setMeta(ctx, record.ID, metaKeyAltText, att.AltText); err != nil {
			return 0, err
		}
	}
	return record.ID, nil
}

// UpdateDetails refreshes the mutable attachment fields. Runs on every
// import, including right after Store, so re-imports converge.
func (s *BinaryStore) UpdateDetails(ctx context.Context, id int64, att importer.Attachment) error {
	updates := map[string]interface{}{
		"title":   att.Title,
		"content": att.Description,
		"excerpt": att.Caption,
	}
	err := s.db.WithContext(ctx).
		Model(&models.ContentModel{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return err
	}
	if att.AltText != "" {
		return s.setMeta(ctx, id, metaKeyAltText, att.AltText)
	}
	return nil
}

func (s *BinaryStore) setMeta(ctx context.Context, ownerID int64, key, value string) error {
	var row models.ContentMetaModel
	tx := s.db.WithContext(ctx)
	err := tx.Where("content_id = ? AND meta_key = ?", ownerID, key).First(&row).Error
	if err == nil {
		return tx.Model(&row).UpdateColumn("meta_value", value).Error
	}
	return tx.Create(&models.ContentMetaModel{ContentID: ownerID, Key: key, Value: value}).Error
}

// buildFileName generates a collision-resistant filename that preserves the
// original extension.
func buildFileName(original string) string {
	base := original
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(base)))
	if ext == "" || len(ext) > 10 {
		ext = ".dat"
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:18] + ext
}

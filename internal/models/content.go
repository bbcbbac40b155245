package models

import (
	"time"

	"gorm.io/gorm"
)

// ContentModel is a stored content record. Attachments are content rows of
// type "attachment" with ParentID pointing at the record they belong to,
// so the identity metadata scheme covers both with one table.
type ContentModel struct {
	ID            int64          `json:"id"             gorm:"primaryKey;autoIncrement"`
	Title         string         `json:"title"          gorm:"not null"`
	Content       string         `json:"content"        gorm:"type:longtext"`
	Excerpt       string         `json:"excerpt"        gorm:"type:text"`
	AuthorID      int64          `json:"author_id"      gorm:"index;default:0"`
	Status        string         `json:"status"         gorm:"index;default:'draft'"`
	CommentPolicy string         `json:"comment_policy" gorm:"default:'open'"`
	ParentID      *int64         `json:"parent_id"      gorm:"index"`
	MenuOrder     int            `json:"menu_order"     gorm:"default:0"`
	Type          string         `json:"type"           gorm:"index;default:'post'"`
	Locale        string         `json:"locale"         gorm:"index"`
	MimeType      string         `json:"mime_type"`
	PublishedAt   *time.Time     `json:"published_at"`
	CreatedAt     time.Time      `json:"created"`
	UpdatedAt     time.Time      `json:"modified"`
	DeletedAt     gorm.DeletedAt `json:"-"              gorm:"index"`
}

func (ContentModel) TableName() string { return "contents" }

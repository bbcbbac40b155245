package models

import "time"

// Import log statuses.
const (
	ImportStatusOK   = "ok"
	ImportStatusFail = "fail"
)

// ImportLogModel is one row of the append-only import attempt history.
// The table name is configurable, so the store binds it with db.Table()
// instead of a TableName method.
type ImportLogModel struct {
	ID         int64     `json:"id"          gorm:"primaryKey;autoIncrement"`
	ExternalID string    `json:"external_id" gorm:"index;not null"`
	ContentID  int64     `json:"content_id"  gorm:"index"`
	Data       string    `json:"data"        gorm:"type:longtext"`
	Errors     string    `json:"errors"      gorm:"type:longtext"`
	Status     string    `json:"status"      gorm:"index;not null"`
	CreatedAt  time.Time `json:"created"`
}

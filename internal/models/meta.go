package models

// ContentMetaModel is a generic key-value row attached to a content record.
// Key carries an index because the importer resolves external ids through
// key-equality scans (the value column is never indexed).
type ContentMetaModel struct {
	ID        int64  `json:"id"         gorm:"primaryKey;autoIncrement"`
	ContentID int64  `json:"content_id" gorm:"index;not null"`
	Key       string `json:"key"        gorm:"column:meta_key;index;not null"`
	Value     string `json:"value"      gorm:"column:meta_value;type:longtext"`
}

func (ContentMetaModel) TableName() string { return "content_meta" }

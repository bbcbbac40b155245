package models

// TranslationModel links one content record into a translation group under a
// locale. GroupID is the internal id of the group's master record.
type TranslationModel struct {
	ID        int64  `json:"id"         gorm:"primaryKey;autoIncrement"`
	GroupID   int64  `json:"group_id"   gorm:"uniqueIndex:idx_group_locale;not null"`
	Locale    string `json:"locale"     gorm:"uniqueIndex:idx_group_locale;not null"`
	ContentID int64  `json:"content_id" gorm:"uniqueIndex;not null"`
}

func (TranslationModel) TableName() string { return "translations" }

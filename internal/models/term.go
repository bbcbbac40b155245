package models

// TermModel is a taxonomy term (category, tag, or any registered taxonomy).
type TermModel struct {
	ID          int64  `json:"id"          gorm:"primaryKey;autoIncrement"`
	Taxonomy    string `json:"taxonomy"    gorm:"uniqueIndex:idx_taxonomy_slug;not null"`
	Slug        string `json:"slug"        gorm:"uniqueIndex:idx_taxonomy_slug;not null"`
	Name        string `json:"name"        gorm:"not null"`
	ParentID    *int64 `json:"parent_id"   gorm:"index"`
	Description string `json:"description" gorm:"type:text"`
}

func (TermModel) TableName() string { return "terms" }

// TermRelationshipModel assigns a term to a content record.
type TermRelationshipModel struct {
	ContentID int64 `json:"content_id" gorm:"primaryKey;autoIncrement:false"`
	TermID    int64 `json:"term_id"    gorm:"primaryKey;autoIncrement:false"`
}

func (TermRelationshipModel) TableName() string { return "term_relationships" }

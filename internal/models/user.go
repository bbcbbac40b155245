package models

import "time"

// UserModel represents a content author. The importer only validates author
// references against this table; account management lives elsewhere.
type UserModel struct {
	ID        int64     `json:"id"       gorm:"primaryKey;autoIncrement"`
	Username  string    `json:"username" gorm:"uniqueIndex;not null"`
	Name      string    `json:"name"`
	Mail      string    `json:"mail"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created"`
}

func (UserModel) TableName() string { return "users" }

package model

import "time"

// Track is a catalog entry pointing at a stored audio object.
type Track struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	Title      string    `json:"title" gorm:"size:255;not null"`
	Artist     string    `json:"artist" gorm:"size:255"`
	OwnerID    int64     `json:"ownerId" gorm:"index"`
	StorageKey string    `json:"-" gorm:"size:767;not null;index"` // backend-relative key, not exposed in API
	MimeType   string    `json:"mimeType" gorm:"size:100"`         // declared type, empty means detect
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Track) TableName() string {
	return "tracks"
}

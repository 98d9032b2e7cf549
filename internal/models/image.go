package models

import "time"

// Image stores metadata about an asset pushed to the image CDN.
type Image struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	URL        string    `gorm:"size:512;not null" json:"url"`
	Provider   string    `gorm:"size:32;not null" json:"provider"`
	PublicID   string    `gorm:"size:255" json:"public_id"`
	Folder     string    `gorm:"size:128" json:"folder"`
	UploaderID string    `gorm:"size:64;index" json:"uploader_id"`
	SizeBytes  int64     `json:"size_bytes"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CreatedAt  time.Time `json:"created_at"`
}

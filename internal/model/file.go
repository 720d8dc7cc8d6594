package model

import "time"

type File struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Filename    string    `gorm:"size:512;not null" json:"filename"`
	Path        string    `gorm:"size:1024;not null" json:"path"`
	ContentType string    `gorm:"size:255" json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

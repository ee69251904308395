package models

import "time"

// Image is metadata for an uploaded asset stored on disk or in Cloudinary.
type Image struct {
	ID               string    `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	Filename         string    `json:"filename" gorm:"type:varchar(255)" bson:"filename"`
	OriginalFilename string    `json:"original_filename,omitempty" gorm:"type:varchar(255)" bson:"original_filename,omitempty"`
	PublicID         string    `json:"public_id,omitempty" gorm:"type:varchar(255)" bson:"public_id,omitempty"`
	URL              string    `json:"url" gorm:"type:text" bson:"url"`
	ContentType      string    `json:"content_type" gorm:"type:varchar(64)" bson:"content_type"`
	Size             int64     `json:"size" bson:"size"`
	Title            string    `json:"title,omitempty" gorm:"type:varchar(255)" bson:"title,omitempty"`
	Description      string    `json:"description,omitempty" gorm:"type:text" bson:"description,omitempty"`
	UploadedBy       string    `json:"uploaded_by" gorm:"type:varchar(255)" bson:"uploaded_by"`
	UploadedAt       time.Time `json:"uploaded_at" gorm:"index" bson:"uploaded_at"`
}

package models

import "time"

// ImageMetadata is one catalog row per uploaded file. Name is not unique; several
// uploads may share it. Size and Extension are written once at creation.
type ImageMetadata struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;index"`
	Size      string    `gorm:"column:size"`      // byte length as decimal text
	Extension string    `gorm:"column:extention"` // legacy column spelling
	Uploaded  time.Time `gorm:"column:uploaded;autoCreateTime"`
}

func (ImageMetadata) TableName() string { return "image_metadata" }

// Filename rebuilds the stored object name (name.extension).
func (m ImageMetadata) Filename() string {
	if m.Extension == "" {
		return m.Name
	}
	return m.Name + "." + m.Extension
}

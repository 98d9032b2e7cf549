package models

import (
	"time"

	"gorm.io/datatypes"
)

// Device classes derived from the visitor user agent.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// Lead workflow states.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusConverted = "converted"
)

// Visit is one storefront page view.
type Visit struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Path       string    `gorm:"size:255" json:"path"`
	Referrer   string    `gorm:"size:512" json:"referrer"`
	UserAgent  string    `gorm:"size:512" json:"user_agent"`
	DeviceType string    `gorm:"size:16;index" json:"device_type"`
	IPHash     string    `gorm:"size:64;index" json:"-"`
	Day        string    `gorm:"size:10;index" json:"day"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// Lead is an enquiry captured from the contact form.
type Lead struct {
	ID        uint                        `gorm:"primaryKey" json:"id"`
	Name      string                      `gorm:"size:120;not null" json:"name"`
	Email     string                      `gorm:"size:160;not null" json:"email"`
	Phone     string                      `gorm:"size:20" json:"phone"`
	Message   string                      `gorm:"type:text;not null" json:"message"`
	Status    string                      `gorm:"size:16;index;not null;default:new" json:"status"`
	Tags      datatypes.JSONSlice[string] `json:"tags"`
	CreatedAt time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// All lists every model managed by migrations.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Credential{},
		&Product{},
		&Review{},
		&Thread{},
		&ThreadParticipant{},
		&Message{},
		&Image{},
		&Visit{},
		&Lead{},
	}
}

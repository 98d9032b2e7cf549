package models

import "time"

// Review is a customer testimonial subject to moderation.
type Review struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;index;not null" json:"user_id"`
	UserName  string    `gorm:"size:120" json:"user_name"`
	ProductID *uint     `gorm:"index" json:"product_id"`
	Rating    int       `gorm:"not null" json:"rating"`
	Text      string    `gorm:"size:512;not null" json:"text"`
	Approved  bool      `gorm:"index;not null;default:false" json:"approved"`
	Hidden    bool      `gorm:"not null;default:false" json:"hidden"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

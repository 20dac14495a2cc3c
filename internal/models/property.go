package models

import "time"

// Property represents a boarding house managed by the operator
type Property struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name" validate:"required,max=255"`
	Address   string    `gorm:"not null;default:''" json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Property) TableName() string { return "properties" }

package models

import "time"

type TenantStatus string

const (
	TenantActive   TenantStatus = "active"
	TenantInactive TenantStatus = "inactive"
)

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentOverdue PaymentStatus = "overdue"
)

// Tenant represents a person renting a room
type Tenant struct {
	ID              string        `gorm:"primaryKey;size:36" json:"id"`
	PropertyID      string        `gorm:"size:36;not null;index" json:"property_id" validate:"required"`
	Name            string        `gorm:"size:255;not null" json:"name" validate:"required,max=255"`
	Phone           string        `gorm:"size:32;not null" json:"phone" validate:"required,max=32"`
	Email           string        `gorm:"size:255;not null;default:''" json:"email" validate:"omitempty,email"`
	RoomID          *string       `gorm:"size:36" json:"room_id,omitempty"`
	StartDate       time.Time     `gorm:"not null" json:"start_date" validate:"required"`
	EndDate         time.Time     `gorm:"not null" json:"end_date" validate:"required,gtefield=StartDate"`
	Status          TenantStatus  `gorm:"size:16;not null;index" json:"status" validate:"oneof=active inactive"`
	PaymentStatus   PaymentStatus `gorm:"size:16;not null" json:"payment_status" validate:"oneof=paid pending overdue"`
	LastPaymentDate time.Time     `json:"last_payment_date"`
	RowVersion      int64         `gorm:"not null;default:1" json:"row_version"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }

// HasRoom reports whether the tenant carries a room link.
func (t Tenant) HasRoom() bool { return t.RoomID != nil && *t.RoomID != "" }

// Assignable reports whether the tenant can be linked to a vacant room.
func (t Tenant) Assignable() bool { return t.Status == TenantActive && !t.HasRoom() }

func (t Tenant) Clone() Tenant {
	cp := t
	if t.RoomID != nil {
		id := *t.RoomID
		cp.RoomID = &id
	}
	return cp
}

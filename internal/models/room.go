package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

type RoomType string

const (
	RoomTypeSingle RoomType = "single"
	RoomTypeDouble RoomType = "double"
	RoomTypeDeluxe RoomType = "deluxe"
)

type RoomStatus string

const (
	RoomVacant      RoomStatus = "vacant"
	RoomOccupied    RoomStatus = "occupied"
	RoomMaintenance RoomStatus = "maintenance"
)

// Label returns the display label used on room cards.
func (t RoomType) Label() string {
	switch t {
	case RoomTypeSingle:
		return "Kamar Single"
	case RoomTypeDouble:
		return "Kamar Double"
	case RoomTypeDeluxe:
		return "Kamar Deluxe"
	default:
		return string(t)
	}
}

// Room represents a rentable room inside a property
type Room struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	PropertyID string     `gorm:"size:36;not null;index" json:"property_id" validate:"required"`
	Number     string     `gorm:"size:32;not null" json:"number" validate:"required,max=32"`
	Floor      string     `gorm:"size:32;not null;default:''" json:"floor" validate:"max=32"`
	Type       RoomType   `gorm:"size:16;not null" json:"type" validate:"oneof=single double deluxe"`
	Price      int64      `gorm:"not null" json:"price" validate:"gt=0"`
	Facilities Facilities `gorm:"type:text;not null" json:"facilities"`
	Status     RoomStatus `gorm:"size:16;not null;index" json:"status" validate:"oneof=vacant occupied maintenance"`
	TenantID   *string    `gorm:"size:36" json:"tenant_id,omitempty"`
	RowVersion int64      `gorm:"not null;default:1" json:"row_version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Room) TableName() string { return "rooms" }

// HasTenant reports whether the room carries a tenant link.
func (r Room) HasTenant() bool { return r.TenantID != nil && *r.TenantID != "" }

// Clone returns a deep copy so cached rooms can be handed out safely.
func (r Room) Clone() Room {
	cp := r
	cp.Facilities = append(Facilities(nil), r.Facilities...)
	if r.TenantID != nil {
		id := *r.TenantID
		cp.TenantID = &id
	}
	return cp
}

// Facilities is a set of facility names persisted as a JSON array.
type Facilities []string

// NewFacilities trims, drops blanks and duplicates and sorts the names.
func NewFacilities(names ...string) Facilities {
	seen := make(map[string]struct{}, len(names))
	out := make(Facilities, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Has reports whether the set contains name.
func (f Facilities) Has(name string) bool {
	for _, n := range f {
		if n == name {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (f Facilities) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(f))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (f *Facilities) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*f = Facilities{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("facilities: unsupported column type %T", src)
	}
	if len(raw) == 0 {
		*f = Facilities{}
		return nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return fmt.Errorf("facilities: %w", err)
	}
	*f = NewFacilities(names...)
	return nil
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFacilities(t *testing.T) {
	f := NewFacilities(" WiFi", "AC", "", "WiFi", "Kamar Mandi Dalam")
	assert.Equal(t, Facilities{"AC", "Kamar Mandi Dalam", "WiFi"}, f)
	assert.True(t, f.Has("AC"))
	assert.False(t, f.Has("Parkir"))
}

func TestFacilities_ValueScan(t *testing.T) {
	v, err := NewFacilities("WiFi", "AC").Value()
	require.NoError(t, err)
	assert.Equal(t, `["AC","WiFi"]`, v)

	v, err = Facilities(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var f Facilities
	require.NoError(t, f.Scan([]byte(`["WiFi","AC","AC"]`)))
	assert.Equal(t, Facilities{"AC", "WiFi"}, f)

	require.NoError(t, f.Scan(nil))
	assert.Empty(t, f)

	assert.Error(t, f.Scan(42))
	assert.Error(t, f.Scan("{"))
}

func TestRoom_CloneIsDeep(t *testing.T) {
	id := "t1"
	r := Room{ID: "r1", Facilities: Facilities{"AC"}, TenantID: &id}
	cp := r.Clone()
	*cp.TenantID = "t2"
	cp.Facilities[0] = "WiFi"

	assert.Equal(t, "t1", *r.TenantID)
	assert.Equal(t, "AC", r.Facilities[0])
	assert.True(t, r.HasTenant())
	assert.False(t, Room{TenantID: new(string)}.HasTenant())
}

func TestTenant_Assignable(t *testing.T) {
	room := "r1"
	assert.True(t, Tenant{Status: TenantActive}.Assignable())
	assert.False(t, Tenant{Status: TenantInactive}.Assignable())
	assert.False(t, Tenant{Status: TenantActive, RoomID: &room}.Assignable())
}

func TestRoomType_Label(t *testing.T) {
	assert.Equal(t, "Kamar Deluxe", RoomTypeDeluxe.Label())
	assert.Equal(t, "suite", RoomType("suite").Label())
}

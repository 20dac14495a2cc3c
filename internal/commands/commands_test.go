package commands

import (
	"bytes"
	"io"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beesaferoot/kost-manager/internal/apperrors"
)

var idPattern = regexp.MustCompile(`\(([0-9a-f-]{36})\)`)

type cli struct {
	t          *testing.T
	configPath string
}

func newCLI(t *testing.T) *cli {
	dir := t.TempDir()
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "kost.db"))
	t.Setenv("MIGRATIONS_PATH", filepath.Join(dir, "migrations"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PROPERTY_ID", "")
	return &cli{t: t, configPath: filepath.Join(dir, "kost.yaml")}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", c.configPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "kost %v", args)
	return out
}

func (c *cli) createdID(out string) string {
	c.t.Helper()
	m := idPattern.FindStringSubmatch(out)
	require.Len(c.t, m, 2, "no id in %q", out)
	return m[1]
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "kost", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"migrate", "property", "room", "tenant", "assign", "release", "reconcile"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("property"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestMigrateCommands(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("migrate", "status")
	assert.Contains(t, out, "create_properties")
	assert.Contains(t, out, "Pending")

	out = c.mustRun("migrate", "up")
	assert.Contains(t, out, "Applied 20250101000001 create_properties")
	assert.Contains(t, out, "Applied 20250101000003 create_tenants")

	assert.Contains(t, c.mustRun("migrate", "up"), "No pending migrations")
	assert.Contains(t, c.mustRun("migrate", "history"), "create_rooms")

	assert.Contains(t, c.mustRun("migrate", "down"), "Reverted 20250101000003 create_tenants")
	out = c.mustRun("migrate", "status")
	assert.Regexp(t, `20250101000003\s+create_tenants\s+Pending`, out)
}

func TestDomainCommands_EndToEnd(t *testing.T) {
	c := newCLI(t)
	c.mustRun("migrate", "up")

	_, err := c.run("room", "list")
	assert.ErrorIs(t, err, apperrors.ErrNoPropertySelected)

	propertyID := c.createdID(c.mustRun("property", "add", "--name", "Kost Melati", "--address", "Jl. Melati 1"))
	assert.Contains(t, c.mustRun("property", "list"), "* "+propertyID)
	assert.Contains(t, c.mustRun("property", "select", propertyID), "export PROPERTY_ID="+propertyID)

	roomID := c.createdID(c.mustRun("room", "add", "--number", "R101", "--price", "1500000",
		"--facility", "WiFi", "--facility", "AC"))

	_, err = c.run("room", "add", "--number", "", "--price", "1000000")
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("number"))

	_, err = c.run("tenant", "add", "--name", "Ani", "--phone", "0812", "--end", "2099-12-31")
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("room_id"))

	tenantID := c.createdID(c.mustRun("tenant", "add", "--name", "Ani", "--phone", "0812",
		"--end", "2099-12-31", "--room", roomID))

	out := c.mustRun("room", "list")
	assert.Contains(t, out, "R101")
	assert.Contains(t, out, "occupied")
	assert.Contains(t, out, "Ani")
	assert.Contains(t, out, "Rp 1.500.000")
	assert.Contains(t, out, "AC, WiFi")

	out = c.mustRun("tenant", "list")
	assert.Contains(t, out, "Ani")
	assert.Contains(t, out, "R101")

	_, err = c.run("room", "maintenance", roomID)
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)

	assert.Contains(t, c.mustRun("release", roomID), "Room R101 released from Ani")
	assert.Contains(t, c.mustRun("assign", roomID, tenantID), "Room R101 assigned to Ani")
	assert.Contains(t, c.mustRun("reconcile", roomID), "Room R101 is consistent")

	assert.Contains(t, c.mustRun("tenant", "edit", tenantID, "--payment", "overdue"), "Updated tenant Ani")
	assert.Contains(t, c.mustRun("tenant", "list"), "overdue")

	assert.Contains(t, c.mustRun("tenant", "remove", tenantID), "Removed tenant "+tenantID)
	out = c.mustRun("room", "list", "--status", "vacant")
	assert.Contains(t, out, "R101")

	assert.Contains(t, c.mustRun("room", "maintenance", roomID), "Room R101 is maintenance")
	assert.Contains(t, c.mustRun("room", "edit", roomID, "--price", "1750000"), "Updated room R101")
	assert.Contains(t, c.mustRun("room", "list", "-q", "r10"), "Rp 1.750.000")
}

func TestTenantFlags_BadDate(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("tenant", "add", "--end", "31/12/2099")
	assert.EqualError(t, err, `invalid --end "31/12/2099", expected YYYY-MM-DD`)
}

func TestFormatRupiah(t *testing.T) {
	assert.Equal(t, "Rp 0", formatRupiah(0))
	assert.Equal(t, "Rp 950", formatRupiah(950))
	assert.Equal(t, "Rp 1.500.000", formatRupiah(1500000))
	assert.Equal(t, "Rp 12.000", formatRupiah(12000))
	assert.Equal(t, "-Rp 1.000", formatRupiah(-1000))
}

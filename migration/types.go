package migration

import (
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Migration represents a single schema change of the kost database
type Migration struct {
	Version   string // Unique version identifier (e.g., timestamp)
	Name      string // Human-readable name of the migration
	CreatedAt time.Time
	Up        func(*gorm.DB) error
	Down      func(*gorm.DB) error
}

// MigrationRecord represents a record of an applied migration
type MigrationRecord struct {
	Version   string    `gorm:"primaryKey;size:32"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (MigrationRecord) TableName() string { return "schema_migrations" }

var (
	globalMigrations = make([]*Migration, 0)
	registryMutex    sync.RWMutex
)

// RegisterMigration registers a migration globally. Built-in migrations call
// it from init.
func RegisterMigration(migration *Migration) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	globalMigrations = append(globalMigrations, migration)
}

// GetRegisteredMigrations returns all registered migrations ordered by version
func GetRegisteredMigrations() []*Migration {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	migrations := make([]*Migration, len(globalMigrations))
	copy(migrations, globalMigrations)
	SortByVersion(migrations)
	return migrations
}

// SortByVersion orders migrations ascending by version.
func SortByVersion(migrations []*Migration) {
	sort.SliceStable(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
}

// ResetMigrations clears the global migration registry (for testing)
func ResetMigrations() {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	globalMigrations = make([]*Migration, 0)
}

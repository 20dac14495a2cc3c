package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/beesaferoot/kost-manager/migration"
)

// ErrNothingToRevert is returned by Down when no migration has been applied.
var ErrNothingToRevert = errors.New("no migrations to revert")

// Status pairs a known migration with whether it has been applied.
type Status struct {
	Version   string
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator handles the execution of migrations
type Migrator struct {
	db         *gorm.DB
	migrations []*migration.Migration
	nowFn      func() time.Time
}

// NewMigrator creates a Migrator over the given migrations (typically the
// global registry plus any SQL files loaded from disk)
func NewMigrator(db *gorm.DB, migrations ...*migration.Migration) *Migrator {
	m := &Migrator{
		db:    db,
		nowFn: time.Now,
	}
	for _, mr := range migrations {
		m.Register(mr)
	}
	return m
}

// Register adds a migration to the migrator
func (m *Migrator) Register(mr *migration.Migration) {
	m.migrations = append(m.migrations, mr)
	migration.SortByVersion(m.migrations)
}

// ensureVersionTable creates the version tracking table if it doesn't exist
func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	return m.db.WithContext(ctx).AutoMigrate(&migration.MigrationRecord{})
}

func (m *Migrator) records(ctx context.Context) (map[string]migration.MigrationRecord, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var records []migration.MigrationRecord
	if err := m.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	applied := make(map[string]migration.MigrationRecord, len(records))
	for _, record := range records {
		applied[record.Version] = record
	}
	return applied, nil
}

// Pending returns the migrations not applied yet, in version order
func (m *Migrator) Pending(ctx context.Context) ([]*migration.Migration, error) {
	applied, err := m.records(ctx)
	if err != nil {
		return nil, err
	}

	var pending []*migration.Migration
	for _, mr := range m.migrations {
		if _, ok := applied[mr.Version]; !ok {
			pending = append(pending, mr)
		}
	}
	return pending, nil
}

// Up applies all pending migrations, each inside its own transaction, and
// returns the ones it applied
func (m *Migrator) Up(ctx context.Context) ([]*migration.Migration, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}

	var done []*migration.Migration
	for _, mr := range pending {
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := mr.Up(tx); err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", mr.Name, err)
			}
			record := migration.MigrationRecord{
				Version:   mr.Version,
				Name:      mr.Name,
				AppliedAt: m.nowFn(),
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("failed to record migration %s: %w", mr.Name, err)
			}
			return nil
		})
		if err != nil {
			return done, err
		}
		done = append(done, mr)
	}
	return done, nil
}

// Down rolls back the last applied migration and returns it
func (m *Migrator) Down(ctx context.Context) (*migration.Migration, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return nil, err
	}

	var lastRecord migration.MigrationRecord
	err := m.db.WithContext(ctx).Order("applied_at DESC, version DESC").First(&lastRecord).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNothingToRevert
	}
	if err != nil {
		return nil, err
	}

	var target *migration.Migration
	for _, mr := range m.migrations {
		if mr.Version == lastRecord.Version {
			target = mr
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("migration for version %s not found", lastRecord.Version)
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := target.Down(tx); err != nil {
			return fmt.Errorf("failed to revert migration %s: %w", target.Name, err)
		}
		if err := tx.Delete(&lastRecord).Error; err != nil {
			return fmt.Errorf("failed to remove migration record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

// Status lists every known migration with its applied state
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	applied, err := m.records(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(m.migrations))
	for _, mr := range m.migrations {
		st := Status{Version: mr.Version, Name: mr.Name}
		if rec, ok := applied[mr.Version]; ok {
			st.Applied = true
			st.AppliedAt = rec.AppliedAt
		}
		out = append(out, st)
	}
	return out, nil
}

// History returns applied migration records, most recent first
func (m *Migrator) History(ctx context.Context) ([]migration.MigrationRecord, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return nil, err
	}
	var records []migration.MigrationRecord
	if err := m.db.WithContext(ctx).Order("applied_at DESC, version DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get migration history: %w", err)
	}
	return records, nil
}

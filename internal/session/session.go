// Package session wires one working session: configuration, logger, store,
// property selection, tenancy registries and the submission controller.
package session

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/beesaferoot/kost-manager/internal/config"
	"github.com/beesaferoot/kost-manager/internal/metrics"
	"github.com/beesaferoot/kost-manager/internal/property"
	"github.com/beesaferoot/kost-manager/internal/store"
	"github.com/beesaferoot/kost-manager/internal/store/memstore"
	"github.com/beesaferoot/kost-manager/internal/submission"
	"github.com/beesaferoot/kost-manager/internal/tenancy"
	"github.com/beesaferoot/kost-manager/migration"
	"github.com/beesaferoot/kost-manager/migration/driver"
	"github.com/beesaferoot/kost-manager/migration/file"
	_ "github.com/beesaferoot/kost-manager/migration/versions"
)

type Options struct {
	// AutoMigrate applies pending migrations after opening a SQL store.
	AutoMigrate bool

	// SkipLoad leaves the property list unloaded, for schema commands run
	// before the tables exist.
	SkipLoad bool

	// Registerer receives the tenancy metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

type Session struct {
	Config    *config.Config
	Log       logrus.FieldLogger
	Store     store.Store
	Selection *property.Selection
	Registry  *tenancy.Registry
	Forms     *submission.Controller
	Metrics   *metrics.Metrics

	db *gorm.DB
}

// Open builds a session and loads the property list. PROPERTY_ID, when set,
// is selected and its rooms and tenants are loaded.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, opts Options) (*Session, error) {
	s := &Session{Config: cfg, Log: log}

	if cfg.Database.Driver == config.DriverMemory {
		s.Store = memstore.New()
	} else {
		db, err := store.Open(cfg.Database.Driver, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		s.db = db
		s.Store = store.NewGormStore(db)

		if opts.AutoMigrate {
			if err := s.Migrate(ctx); err != nil {
				_ = s.Close()
				return nil, err
			}
		}
	}

	s.Metrics = metrics.NewMetrics(opts.Registerer)
	s.Selection = property.NewSelection(s.Store)
	s.Registry = tenancy.New(s.Store, tenancy.WithLogger(log), tenancy.WithMetrics(s.Metrics))
	s.Forms = submission.NewController(s.Selection, s.Registry, log)

	if opts.SkipLoad {
		return s, nil
	}
	if err := s.Selection.Load(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	if cfg.PropertyID != "" {
		if err := s.SelectProperty(ctx, cfg.PropertyID); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// DB returns the underlying database, nil for the memory driver.
func (s *Session) DB() *gorm.DB { return s.db }

// Migrator returns a migrator over the built-in and file migrations.
func (s *Session) Migrator() (*driver.Migrator, error) {
	if s.db == nil {
		return nil, fmt.Errorf("driver %q has no schema to migrate", s.Config.Database.Driver)
	}
	migrations, err := Migrations(s.Config)
	if err != nil {
		return nil, err
	}
	return driver.NewMigrator(s.db, migrations...), nil
}

// Migrate applies all pending migrations.
func (s *Session) Migrate(ctx context.Context) error {
	m, err := s.Migrator()
	if err != nil {
		return err
	}
	applied, err := m.Up(ctx)
	for _, mg := range applied {
		s.Log.WithField("version", mg.Version).Infof("applied migration %s", mg.Name)
	}
	return err
}

// SelectProperty activates id and loads its rooms and tenants.
func (s *Session) SelectProperty(ctx context.Context, id string) error {
	if err := s.Selection.Select(id); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Refresh reloads the rooms and tenants of the active property.
func (s *Session) Refresh(ctx context.Context) error {
	scope, err := s.Selection.Scope()
	if err != nil {
		return err
	}
	if _, err := s.Registry.Rooms.List(ctx, scope); err != nil {
		return err
	}
	_, err = s.Registry.Tenants.List(ctx, scope)
	return err
}

func (s *Session) Scope() (property.Scope, error) {
	return s.Selection.Scope()
}

func (s *Session) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrations returns the built-in migrations followed by the SQL files found
// under cfg.MigrationsPath. A file migration may not reuse a built-in version.
func Migrations(cfg *config.Config) ([]*migration.Migration, error) {
	builtins := migration.GetRegisteredMigrations()
	seen := make(map[string]bool, len(builtins))
	for _, m := range builtins {
		seen[m.Version] = true
	}

	extra, err := file.NewMigrationLoader(cfg.MigrationsPath).LoadMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations from %s: %w", cfg.MigrationsPath, err)
	}
	for _, m := range extra {
		if seen[m.Version] {
			return nil, fmt.Errorf("migration version %s in %s is already built in", m.Version, cfg.MigrationsPath)
		}
		seen[m.Version] = true
	}

	all := append(builtins, extra...)
	migration.SortByVersion(all)
	return all, nil
}

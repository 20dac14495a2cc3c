package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/beesaferoot/kost-manager/internal/models"
)

// Open connects to the database named by driver ("sqlite" or "postgres").
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("DATABASE_URL not set in environment or .env file")
		}
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		if dsn == "" {
			dsn = "kost.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver != "postgres" {
		// a sqlite database is a single file (or a single :memory: handle)
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// GormStore implements Store over a *gorm.DB. Each method issues exactly one
// statement.
type GormStore struct {
	db    *gorm.DB
	nowFn func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, nowFn: func() time.Time { return time.Now().UTC() }}
}

func (s *GormStore) ListProperties(ctx context.Context) ([]models.Property, error) {
	var out []models.Property
	if err := s.db.WithContext(ctx).Order("created_at, name").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *GormStore) InsertProperty(ctx context.Context, p *models.Property) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *GormStore) ListRooms(ctx context.Context, filter RoomFilter) ([]models.Room, error) {
	q := s.db.WithContext(ctx).Where("property_id = ?", filter.PropertyID)
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	var out []models.Room
	if err := q.Order("number").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *GormStore) GetRoom(ctx context.Context, id string) (models.Room, error) {
	var r models.Room
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return models.Room{}, translate(err)
	}
	return r, nil
}

func (s *GormStore) InsertRoom(ctx context.Context, r *models.Room) error {
	if r.RowVersion == 0 {
		r.RowVersion = 1
	}
	return translate(s.db.WithContext(ctx).Create(r).Error)
}

func (s *GormStore) UpdateRoom(ctx context.Context, r models.Room, expectedVersion int64) (models.Room, error) {
	now := s.nowFn()
	res := s.db.WithContext(ctx).Model(&models.Room{}).
		Where("id = ? AND row_version = ?", r.ID, expectedVersion).
		Updates(map[string]any{
			"number":      r.Number,
			"floor":       r.Floor,
			"type":        r.Type,
			"price":       r.Price,
			"facilities":  r.Facilities,
			"status":      r.Status,
			"tenant_id":   r.TenantID,
			"row_version": expectedVersion + 1,
			"updated_at":  now,
		})
	if err := conditional(res, func() error {
		_, err := s.GetRoom(ctx, r.ID)
		return err
	}); err != nil {
		return models.Room{}, err
	}
	r.RowVersion = expectedVersion + 1
	r.UpdatedAt = now
	return r, nil
}

func (s *GormStore) ListTenants(ctx context.Context, filter TenantFilter) ([]models.Tenant, error) {
	q := s.db.WithContext(ctx).Where("property_id = ?", filter.PropertyID)
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Unassigned {
		q = q.Where("room_id IS NULL")
	}
	var out []models.Tenant
	if err := q.Order("name").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *GormStore) GetTenant(ctx context.Context, id string) (models.Tenant, error) {
	var t models.Tenant
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return models.Tenant{}, translate(err)
	}
	return t, nil
}

func (s *GormStore) InsertTenant(ctx context.Context, t *models.Tenant) error {
	if t.RowVersion == 0 {
		t.RowVersion = 1
	}
	return translate(s.db.WithContext(ctx).Create(t).Error)
}

func (s *GormStore) UpdateTenant(ctx context.Context, t models.Tenant, expectedVersion int64) (models.Tenant, error) {
	now := s.nowFn()
	res := s.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ? AND row_version = ?", t.ID, expectedVersion).
		Updates(map[string]any{
			"name":              t.Name,
			"phone":             t.Phone,
			"email":             t.Email,
			"room_id":           t.RoomID,
			"start_date":        t.StartDate,
			"end_date":          t.EndDate,
			"status":            t.Status,
			"payment_status":    t.PaymentStatus,
			"last_payment_date": t.LastPaymentDate,
			"row_version":       expectedVersion + 1,
			"updated_at":        now,
		})
	if err := conditional(res, func() error {
		_, err := s.GetTenant(ctx, t.ID)
		return err
	}); err != nil {
		return models.Tenant{}, err
	}
	t.RowVersion = expectedVersion + 1
	t.UpdatedAt = now
	return t, nil
}

func (s *GormStore) DeleteTenant(ctx context.Context, id string, expectedVersion int64) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND row_version = ?", id, expectedVersion).
		Delete(&models.Tenant{})
	return conditional(res, func() error {
		_, err := s.GetTenant(ctx, id)
		return err
	})
}

// conditional maps a zero-row conditional write to ErrNotFound when the row
// is gone and to ErrVersionConflict when it is still there.
func conditional(res *gorm.DB, exists func() error) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if err := exists(); err != nil {
		return err
	}
	return ErrVersionConflict
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

// Package versions registers the built-in kost schema. Import it for its side
// effect:
//
//	import _ "github.com/beesaferoot/kost-manager/migration/versions"
package versions

import (
	"time"

	"gorm.io/gorm"

	"github.com/beesaferoot/kost-manager/migration"
)

func register(version, name string, up, down []string) {
	created, _ := time.Parse("20060102150405", version)
	migration.RegisterMigration(&migration.Migration{
		Version:   version,
		Name:      name,
		CreatedAt: created,
		Up:        exec(up),
		Down:      exec(down),
	})
}

func exec(statements []string) func(*gorm.DB) error {
	return func(db *gorm.DB) error {
		for _, stmt := range statements {
			if err := db.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return nil
	}
}

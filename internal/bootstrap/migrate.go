package bootstrap

import (
	"log/slog"

	"anoa.com/realmkeeper/internal/entity"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Models lists every persisted entity in dependency order.
func Models() []any {
	return []any{
		&entity.User{},
		&entity.Realm{},
		&entity.RealmMember{},
		&entity.Trait{},
		&entity.Character{},
		&entity.CharacterRating{},
		&entity.CharacterPermission{},
		&entity.ImageAsset{},
	}
}

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID:      "202610010001_initial",
			Migrate: func(tx *gorm.DB) error { return tx.AutoMigrate(Models()...) },
		},
		{
			ID: "202610080001_rating_trait_order_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_traits_realm_created ON traits (realm_id, created_at, id)").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_traits_realm_created").Error
			},
		},
	}
}

// Migrate brings the schema up to date. A clean database is initialised in
// one step from the current models.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())

	m.InitSchema(func(tx *gorm.DB) error {
		slog.Info("clean database detected, running full schema initialization")
		if err := tx.AutoMigrate(Models()...); err != nil {
			return err
		}
		return tx.Exec("CREATE INDEX IF NOT EXISTS idx_traits_realm_created ON traits (realm_id, created_at, id)").Error
	})

	return m.Migrate()
}

package bootstrap

import (
	"errors"
	"log/slog"

	"anoa.com/realmkeeper/internal/entity"
	"gorm.io/gorm"
)

const demoExternalID = "dev:demo"

// SeedDemo creates a demo user owning a realm with a few traits. It runs
// once; an existing demo user means the seed already happened.
func SeedDemo(db *gorm.DB) error {
	var existing entity.User
	err := db.Where("external_id = ?", demoExternalID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		user := &entity.User{ExternalID: demoExternalID, DisplayName: "Demo GM", Email: "demo@example.com"}
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		realm := &entity.Realm{Name: "Demo Realm", OwnerID: user.ID}
		if err := tx.Create(realm).Error; err != nil {
			return err
		}
		if err := tx.Create(&entity.RealmMember{RealmID: realm.ID, UserID: user.ID, Role: entity.RoleOwner}).Error; err != nil {
			return err
		}

		traits := []entity.Trait{
			{RealmID: realm.ID, Name: "Strength", DisplayMode: entity.DisplayNumber},
			{RealmID: realm.ID, Name: "Intellect", DisplayMode: entity.DisplayGrade},
			{RealmID: realm.ID, Name: "Charisma", DisplayMode: entity.DisplayGrade},
		}
		for i := range traits {
			if err := tx.Create(&traits[i]).Error; err != nil {
				return err
			}
		}

		slog.Info("seeded demo realm", "realm_id", realm.ID, "user_id", user.ID)
		return nil
	})
}

package repository

import (
	"context"
	"time"

	"anoa.com/realmkeeper/internal/entity"
	"gorm.io/gorm"
)

type ImageRepository interface {
	Create(ctx context.Context, asset *entity.ImageAsset) error
	FindByKey(ctx context.Context, key string) (*entity.ImageAsset, error)
	Detach(ctx context.Context, key string) error
	FindOrphans(ctx context.Context, cutoffTime time.Time) ([]entity.ImageAsset, error)
	Delete(ctx context.Context, id uint) error
}

type imageRepository struct {
	db *gorm.DB
}

func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(ctx context.Context, asset *entity.ImageAsset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

func (r *imageRepository) FindByKey(ctx context.Context, key string) (*entity.ImageAsset, error) {
	var asset entity.ImageAsset
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

// Detach unlinks the asset from its owner so the cleanup job can collect it.
func (r *imageRepository) Detach(ctx context.Context, key string) error {
	return DetachWhere(r.db.WithContext(ctx), "key = ?", key)
}

// DetachWhere marks every matching attached asset as detached. It takes the
// caller's handle so cascades can run it inside their own transaction.
func DetachWhere(db *gorm.DB, query string, args ...any) error {
	return db.Model(&entity.ImageAsset{}).
		Where(query, args...).
		Where("detached_at IS NULL").
		Updates(map[string]any{
			"character_id": nil,
			"realm_id":     nil,
			"detached_at":  time.Now(),
		}).Error
}

func (r *imageRepository) FindOrphans(ctx context.Context, cutoffTime time.Time) ([]entity.ImageAsset, error) {
	var assets []entity.ImageAsset
	err := r.db.WithContext(ctx).
		Where("character_id IS NULL AND realm_id IS NULL").
		Where("COALESCE(detached_at, created_at) < ?", cutoffTime).
		Find(&assets).Error
	return assets, err
}

func (r *imageRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&entity.ImageAsset{}, id).Error
}

package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"anoa.com/realmkeeper/internal/entity"
	"anoa.com/realmkeeper/internal/modules/image/repository"
	"anoa.com/realmkeeper/pkg/apperror"
	"anoa.com/realmkeeper/pkg/metrics"
	"anoa.com/realmkeeper/pkg/storage"
	"github.com/google/uuid"
)

// MaxUploadBytes bounds a single image upload.
const MaxUploadBytes = 10 << 20

type UploadInput struct {
	UserID      uuid.UUID
	CharacterID *uuid.UUID
	RealmID     *uuid.UUID
	File        io.Reader
	FileName    string
	Crop        *storage.CropRegion
	Format      string
}

type UploadResult struct {
	Key    string
	URL    string
	Width  int
	Height int
	Crop   *storage.PixelRect
	Format string
}

type ImageService interface {
	// Upload stores the original, records it as an asset owned by the
	// character or realm in input and returns the cropped rendition URL.
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
	// Release detaches an asset. The object itself is removed by CleanupOrphans.
	Release(ctx context.Context, key string) error
	CleanupOrphans(ctx context.Context) (int, error)
}

type imageService struct {
	repo    repository.ImageRepository
	storage storage.ImageStorage
	folder  string
	maxAge  time.Duration
	now     func() time.Time
}

func NewImageService(repo repository.ImageRepository, imageStorage storage.ImageStorage, folder string, maxAge time.Duration) ImageService {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &imageService{
		repo:    repo,
		storage: imageStorage,
		folder:  folder,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func (s *imageService) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if s.storage == nil {
		return nil, apperror.New(http.StatusServiceUnavailable, "image storage is not configured", apperror.ErrInternal)
	}

	format, err := storage.ParseFormat(input.Format)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if input.Crop != nil {
		if err := input.Crop.Validate(); err != nil {
			return nil, apperror.Validation(err.Error())
		}
	}

	folder := s.folder
	switch {
	case input.CharacterID != nil:
		folder = path.Join(folder, "characters")
	case input.RealmID != nil:
		folder = path.Join(folder, "realms")
	}

	uploaded, err := s.storage.UploadImage(ctx, input.File, folder, input.FileName)
	if err != nil {
		return nil, err
	}

	transform := storage.Transform{Format: format}
	if input.Crop != nil && !input.Crop.IsFull() && uploaded.Width > 0 && uploaded.Height > 0 {
		rect := input.Crop.PixelRect(uploaded.Width, uploaded.Height)
		transform.Crop = &rect
	}

	url, err := s.storage.TransformURL(uploaded.Key, transform)
	if err != nil {
		return nil, err
	}

	asset := &entity.ImageAsset{
		UserID:      input.UserID,
		CharacterID: input.CharacterID,
		RealmID:     input.RealmID,
		Key:         uploaded.Key,
		URL:         url,
		Width:       uploaded.Width,
		Height:      uploaded.Height,
	}
	if err := s.repo.Create(ctx, asset); err != nil {
		if delErr := s.storage.DeleteImage(ctx, uploaded.Key); delErr != nil {
			slog.Warn("failed to roll back uploaded image", "key", uploaded.Key, "error", delErr)
		}
		return nil, fmt.Errorf("failed to record image: %w", err)
	}

	return &UploadResult{
		Key:    uploaded.Key,
		URL:    url,
		Width:  uploaded.Width,
		Height: uploaded.Height,
		Crop:   transform.Crop,
		Format: format,
	}, nil
}

func (s *imageService) Release(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.repo.Detach(ctx, key)
}

func (s *imageService) CleanupOrphans(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxAge)

	orphans, err := s.repo.FindOrphans(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, orphan := range orphans {
		if s.storage != nil {
			if err := s.storage.DeleteImage(ctx, orphan.Key); err != nil {
				slog.Warn("failed to delete orphan image", "key", orphan.Key, "error", err)
				continue
			}
		}

		// A failed row delete is retried on the next run.
		if err := s.repo.Delete(ctx, orphan.ID); err != nil {
			slog.Warn("failed to delete orphan image record", "id", orphan.ID, "error", err)
			continue
		}
		cleaned++
	}

	metrics.ImagesCleaned.Add(float64(cleaned))
	return cleaned, nil
}

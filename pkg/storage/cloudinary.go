package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// UploadedImage describes an original stored in the object store.
type UploadedImage struct {
	Key    string
	URL    string
	Width  int
	Height int
	Format string
}

// ImageStorage defines contract for image storage provider (Cloudinary implementation).
type ImageStorage interface {
	// UploadImage stores the original bytes under folder and returns its key and size.
	UploadImage(ctx context.Context, r io.Reader, folder, fileName string) (*UploadedImage, error)
	// TransformURL returns a retrievable URL for a derived rendition of key.
	TransformURL(key string, t Transform) (string, error)
	// DeleteImage deletes image from storage using its key.
	DeleteImage(ctx context.Context, key string) error
}

type cloudinaryStorage struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryStorage creates Cloudinary-backed implementation of ImageStorage.
// An empty url falls back to CLOUDINARY_URL from the environment.
func NewCloudinaryStorage(url string) (ImageStorage, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)
	if url != "" {
		cld, err = cloudinary.NewFromURL(url)
	} else {
		cld, err = cloudinary.New()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}

	// Ensure HTTPS URLs by default.
	cld.Config.URL.Secure = true

	return &cloudinaryStorage{cld: cld}, nil
}

func (s *cloudinaryStorage) UploadImage(ctx context.Context, r io.Reader, folder, fileName string) (*UploadedImage, error) {
	if s == nil || s.cld == nil {
		return nil, fmt.Errorf("cloudinary storage is not initialized")
	}

	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	publicID := fmt.Sprintf("%d-%s", time.Now().UnixNano(), base)

	params := uploader.UploadParams{
		Folder:         folder,
		PublicID:       publicID,
		UniqueFilename: api.Bool(true),
		Overwrite:      api.Bool(false),
		ResourceType:   "image",
	}

	resp, err := s.cld.Upload.Upload(ctx, r, params)
	if err != nil {
		return nil, fmt.Errorf("failed to upload image to cloudinary: %w", err)
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload rejected: %s", resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return nil, fmt.Errorf("cloudinary upload succeeded but secure URL is empty")
	}

	return &UploadedImage{
		Key:    resp.PublicID,
		URL:    resp.SecureURL,
		Width:  resp.Width,
		Height: resp.Height,
		Format: resp.Format,
	}, nil
}

func (s *cloudinaryStorage) TransformURL(key string, t Transform) (string, error) {
	img, err := s.cld.Image(key)
	if err != nil {
		return "", fmt.Errorf("failed to build cloudinary asset: %w", err)
	}
	img.Transformation = t.String()

	u, err := img.String()
	if err != nil {
		return "", fmt.Errorf("failed to render cloudinary url: %w", err)
	}
	return u, nil
}

func (s *cloudinaryStorage) DeleteImage(ctx context.Context, key string) error {
	if s == nil || s.cld == nil {
		return fmt.Errorf("cloudinary storage is not initialized")
	}
	if key == "" {
		return fmt.Errorf("empty image key")
	}

	// Invalidate: true helps to clear CDN cache
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:   key,
		Invalidate: api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image from cloudinary: %w", err)
	}

	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy api returned result: %s", resp.Result)
	}

	return nil
}

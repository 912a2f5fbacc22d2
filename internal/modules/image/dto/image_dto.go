package dto

import (
	"fmt"
	"mime/multipart"

	"anoa.com/realmkeeper/pkg/apperror"
	"anoa.com/realmkeeper/pkg/storage"
)

// UploadImageForm is the multipart form shared by every image upload
// endpoint. The crop fields are percentages and must be sent together.
type UploadImageForm struct {
	File       *multipart.FileHeader `form:"file" binding:"required"`
	Format     string                `form:"format" binding:"omitempty,oneof=png jpg jpeg webp avif"`
	CropX      *float64              `form:"crop_x" binding:"omitempty,gte=0,lte=100"`
	CropY      *float64              `form:"crop_y" binding:"omitempty,gte=0,lte=100"`
	CropWidth  *float64              `form:"crop_width" binding:"omitempty,gt=0,lte=100"`
	CropHeight *float64              `form:"crop_height" binding:"omitempty,gt=0,lte=100"`
}

// CropRegion returns nil when no crop was requested.
func (f UploadImageForm) CropRegion() (*storage.CropRegion, error) {
	set := 0
	for _, v := range []*float64{f.CropX, f.CropY, f.CropWidth, f.CropHeight} {
		if v != nil {
			set++
		}
	}
	switch set {
	case 0:
		return nil, nil
	case 4:
		return &storage.CropRegion{X: *f.CropX, Y: *f.CropY, Width: *f.CropWidth, Height: *f.CropHeight}, nil
	default:
		return nil, apperror.Validation("crop_x, crop_y, crop_width and crop_height must be sent together")
	}
}

// Open checks the upload size and opens the file for reading.
func (f UploadImageForm) Open(maxBytes int64) (multipart.File, error) {
	if f.File.Size > maxBytes {
		return nil, apperror.Validation(fmt.Sprintf("image must be at most %d MB", maxBytes>>20))
	}
	return f.File.Open()
}

package dto

import (
	"errors"
	"testing"

	"anoa.com/realmkeeper/pkg/apperror"
	"anoa.com/realmkeeper/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestUploadImageFormCropRegion(t *testing.T) {
	crop, err := UploadImageForm{}.CropRegion()
	require.NoError(t, err)
	assert.Nil(t, crop)

	crop, err = UploadImageForm{CropX: ptr(1), CropY: ptr(2), CropWidth: ptr(3), CropHeight: ptr(4)}.CropRegion()
	require.NoError(t, err)
	assert.Equal(t, &storage.CropRegion{X: 1, Y: 2, Width: 3, Height: 4}, crop)

	_, err = UploadImageForm{CropX: ptr(1)}.CropRegion()
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

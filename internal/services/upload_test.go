package services

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/moneytrail/apiserver/internal/log"
	"github.com/moneytrail/apiserver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newImageService(t *testing.T) *ImageService {
	t.Helper()
	disk, err := storage.NewLocalDisk(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, disk.EnsureBucket(context.Background()))
	return NewImageService(disk, "http://localhost:8000/", log.Discard())
}

func TestImageService_UploadAndOpen(t *testing.T) {
	svc := newImageService(t)
	ctx := context.Background()

	url, err := svc.Upload(ctx, bytes.NewReader(pngHeader), int64(len(pngHeader)))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://localhost:8000/uploads/profile-images/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	key := strings.TrimPrefix(url, "http://localhost:8000/uploads/")
	obj, err := svc.Open(ctx, key)
	require.NoError(t, err)
	defer obj.Close()

	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestImageService_RejectsNonImages(t *testing.T) {
	svc := newImageService(t)
	body := []byte("#!/bin/sh\necho hi\n")

	_, err := svc.Upload(context.Background(), bytes.NewReader(body), int64(len(body)))
	assert.True(t, IsValidation(err))
}

func TestImageService_RejectsOversizedImages(t *testing.T) {
	svc := newImageService(t)

	_, err := svc.Upload(context.Background(), bytes.NewReader(pngHeader), MaxImageSize+1)
	assert.True(t, IsValidation(err))

	_, err = svc.Upload(context.Background(), bytes.NewReader(nil), 0)
	assert.True(t, IsValidation(err))
}

func TestImageService_OpenOutsidePrefix(t *testing.T) {
	svc := newImageService(t)

	for _, key := range []string{"secrets.txt", "profile-images/../x", "profile-images/missing.png"} {
		_, err := svc.Open(context.Background(), key)
		assert.ErrorIs(t, err, ErrNotFound, key)
	}
}

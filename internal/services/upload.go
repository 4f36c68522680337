package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/moneytrail/apiserver/internal/log"
	"github.com/moneytrail/apiserver/internal/storage"
)

const (
	// MaxImageSize is the largest accepted profile image.
	MaxImageSize = 5 << 20

	// ProfileImagePrefix is the key prefix every uploaded profile image lives under.
	ProfileImagePrefix = "profile-images/"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ImageService stores profile images and serves them back.
type ImageService struct {
	objects storage.ObjectStorage
	baseURL string
	logger  *log.Logger
}

func NewImageService(objects storage.ObjectStorage, publicBaseURL string, logger *log.Logger) *ImageService {
	return &ImageService{
		objects: objects,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:  logger.WithComponent(log.ComponentStorage),
	}
}

// Upload sniffs the content type, stores the image under a random key and
// returns its public URL.
func (s *ImageService) Upload(ctx context.Context, r io.Reader, size int64) (string, error) {
	if size <= 0 {
		return "", validationf("image is required")
	}
	if size > MaxImageSize {
		return "", validationf("image must be %d MB or smaller", MaxImageSize>>20)
	}

	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("read image: %w", err)
	}
	contentType := http.DetectContentType(head)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", validationf("only jpeg, png, webp and gif images are allowed")
	}

	key := ProfileImagePrefix + uuid.NewString() + ext
	if err := s.objects.Put(ctx, key, br, size, contentType); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}

	s.logger.InfoContext(ctx, "profile image stored", log.FieldObjectKey, key, log.FieldOperation, log.OpUpload)
	return s.baseURL + "/uploads/" + key, nil
}

// Open returns a previously uploaded image.
func (s *ImageService) Open(ctx context.Context, key string) (*storage.Object, error) {
	if !strings.HasPrefix(key, ProfileImagePrefix) || strings.Contains(key, "..") {
		return nil, notFound("image not found")
	}
	obj, err := s.objects.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound("image not found")
	}
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	return obj, nil
}

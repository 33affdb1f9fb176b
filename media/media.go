package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const MaxImageSize = 10 << 20

var (
	ErrUpload   = errors.New("image upload failed")
	ErrNotImage = errors.New("file is not a supported image")
	ErrTooLarge = errors.New("image is larger than 10 MB")
)

// Storage is a single bucket of publicly readable objects.
type Storage interface {
	Upload(ctx context.Context, name, contentType string, data []byte) error
	PublicURL(name string) string
}

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/bmp":  "bmp",
}

// ObjectName builds "<unix millis>-<random>.<ext>".
func ObjectName(ext string, now time.Time) string {
	if ext == "" {
		ext = "bin"
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s.%s", now.UnixMilli(), random, ext)
}

// UploadImage stores an uploaded image and returns its public URL. On any
// failure the URL is empty and the caller keeps whatever image it had.
func UploadImage(ctx context.Context, storage Storage, file *multipart.FileHeader) (string, error) {
	if file.Size > MaxImageSize {
		return "", ErrTooLarge
	}

	f, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open: %v", ErrUpload, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: read: %v", ErrUpload, err)
	}
	if len(data) > MaxImageSize {
		return "", ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", ErrNotImage
	}

	// The extension follows the sniffed type, never the client's filename.
	name := ObjectName(ext, time.Now())

	if err := storage.Upload(ctx, name, contentType, data); err != nil {
		log.Error().Err(err).Str("object", name).Msg("error uploading image")
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	url := storage.PublicURL(name)
	if url == "" {
		return "", fmt.Errorf("%w: no public url for %s", ErrUpload, name)
	}
	return url, nil
}

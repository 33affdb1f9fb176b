package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog/log"
)

type CloudinaryStorage struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStorage(cloudinaryURL, folder string) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary configuration: %w", err)
	}
	return &CloudinaryStorage{cld: cld, folder: folder}, nil
}

func (s *CloudinaryStorage) publicID(name string) string {
	return s.folder + "/" + strings.TrimSuffix(name, path.Ext(name))
}

func (s *CloudinaryStorage) Upload(ctx context.Context, name, _ string, data []byte) error {
	result, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID: s.publicID(name),
	})
	if err != nil {
		return fmt.Errorf("cloudinary upload %s: %w", name, err)
	}
	if result == nil || result.SecureURL == "" {
		return errors.New("cloudinary upload returned no url")
	}
	return nil
}

func (s *CloudinaryStorage) PublicURL(name string) string {
	img, err := s.cld.Image(s.publicID(name))
	if err != nil {
		log.Error().Err(err).Str("object", name).Msg("cloudinary image reference")
		return ""
	}
	url, err := img.String()
	if err != nil {
		log.Error().Err(err).Str("object", name).Msg("cloudinary image url")
		return ""
	}
	return url
}

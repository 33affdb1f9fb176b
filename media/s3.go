package media

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Storage writes to an S3-compatible endpoint such as the hosted
// project's storage gateway.
type S3Storage struct {
	client     *s3.Client
	bucket     string
	publicBase string
}

type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// PublicBase is the URL prefix objects are served from, without the bucket.
	PublicBase string
}

func NewS3Storage(cfg S3Config) *S3Storage {
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: true,
	})
	return &S3Storage{client: client, bucket: cfg.Bucket, publicBase: cfg.PublicBase}
}

func (s *S3Storage) Upload(ctx context.Context, name, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", s.bucket, name, err)
	}
	return nil
}

func (s *S3Storage) PublicURL(name string) string {
	return s.publicBase + "/" + s.bucket + "/" + name
}

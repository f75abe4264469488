package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// ObjectAPI is the part of the S3 client the store uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store keeps listing images in a bucket and hands out stable URLs.
type Store struct {
	api    ObjectAPI
	config *Config
	newID  func() string
}

// New creates a store backed by an S3 client
func New(ctx context.Context, cfg *Config) (*Store, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	log.Infof("[ImageStore] Using bucket %s (%s)", cfg.BucketName, cfg.BaseURL())
	return NewWithAPI(client, cfg), nil
}

// NewWithAPI creates a store on top of an existing object API
func NewWithAPI(api ObjectAPI, cfg *Config) *Store {
	return &Store{
		api:    api,
		config: cfg,
		newID:  uuid.NewString,
	}
}

// ObjectKey returns the key for a new image of a user: listings/<user>/<uuid>.png
func (s *Store) ObjectKey(userID uint) string {
	return fmt.Sprintf("listings/%d/%s.png", userID, s.newID())
}

// URLFor returns the public URL of an object key
func (s *Store) URLFor(key string) string {
	return s.config.BaseURL() + "/" + strings.TrimLeft(key, "/")
}

// KeyFromURL returns the object key of a URL served by this store.
func (s *Store) KeyFromURL(imageURL string) (string, bool) {
	prefix := s.config.BaseURL() + "/"
	if !strings.HasPrefix(imageURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(imageURL, prefix)
	if key == "" {
		return "", false
	}
	return key, true
}

// Upload normalises data to PNG, stores it and returns its URL.
func (s *Store) Upload(ctx context.Context, userID uint, data []byte) (string, error) {
	if s.config.MaxUploadBytes > 0 && len(data) > s.config.MaxUploadBytes {
		return "", ErrTooLarge
	}
	png, err := NormalizePNG(data, s.config.MaxDimension)
	if err != nil {
		return "", err
	}

	key := s.ObjectKey(userID)
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(png),
		ContentType:   aws.String("image/png"),
		ContentLength: aws.Int64(int64(len(png))),
		Metadata: map[string]string{
			"upload-source": "ezposter",
			"user-id":       fmt.Sprintf("%d", userID),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Infof("[ImageStore] Uploaded s3://%s/%s (%d bytes)", s.config.BucketName, key, len(png))
	return s.URLFor(key), nil
}

// Delete removes an image previously returned by Upload. URLs that do not
// belong to this store are ignored.
func (s *Store) Delete(ctx context.Context, imageURL string) error {
	key, ok := s.KeyFromURL(imageURL)
	if !ok {
		return nil
	}
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", s.config.BucketName, key, err)
	}
	return nil
}

// DeleteAll releases every image, logging failures and returning the first.
func (s *Store) DeleteAll(ctx context.Context, imageURLs []string) error {
	var first error
	for _, u := range imageURLs {
		if err := s.Delete(ctx, u); err != nil {
			log.Warnf("[ImageStore] %v", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

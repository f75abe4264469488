package imagestore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/EZPoster/internal/pkg/env"
)

// Config holds object storage configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	// PublicBaseURL is the URL prefix objects are served from. Defaults to
	// the bucket URL derived from endpoint and region.
	PublicBaseURL  string
	MaxUploadBytes int
	MaxDimension   int
}

// LoadConfig loads storage configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     strings.TrimRight(env.GetEnv("S3_ENDPOINT_URL", ""), "/"),
		PublicBaseURL:   strings.TrimRight(env.GetEnv("S3_PUBLIC_BASE_URL", ""), "/"),
		MaxUploadBytes:  env.GetEnvInt("IMAGE_MAX_UPLOAD_BYTES", 8<<20),
		MaxDimension:    env.GetEnvInt("IMAGE_MAX_DIMENSION", 2048),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required fields
func (c *Config) Validate() error {
	if c.AccessKeyID == "" {
		return errors.New("S3_ACCESS_KEY_ID is required")
	}
	if c.SecretAccessKey == "" {
		return errors.New("S3_SECRET_ACCESS_KEY is required")
	}
	if c.BucketName == "" {
		return errors.New("S3_BUCKET_NAME is required")
	}
	return nil
}

// BaseURL returns the public prefix of stored objects, without trailing slash.
func (c *Config) BaseURL() string {
	if c.PublicBaseURL != "" {
		return c.PublicBaseURL
	}
	if c.EndpointURL != "" {
		// path-style for S3-compatible services
		return fmt.Sprintf("%s/%s", c.EndpointURL, c.BucketName)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.BucketName, c.Region)
}

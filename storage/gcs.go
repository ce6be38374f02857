package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/phillip/event-manager-go/config"
	"github.com/phillip/event-manager-go/models"
)

// GCS stores images in a Google Cloud Storage bucket under the object key.
type GCS struct {
	client     *storage.Client
	bucket     string
	folder     string
	publicRead bool
	now        func() time.Time
}

// NewGCS uses the service account file when one is configured and falls back
// to application default credentials otherwise.
func NewGCS(ctx context.Context, cfg config.StorageConfig) (*GCS, error) {
	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return NewGCSWithClient(client, cfg), nil
}

func NewGCSWithClient(client *storage.Client, cfg config.StorageConfig) *GCS {
	return &GCS{
		client:     client,
		bucket:     cfg.GCSBucket,
		folder:     cfg.Folder,
		publicRead: cfg.GCSPublicRead,
		now:        time.Now,
	}
}

func (s *GCS) Upload(ctx context.Context, file FileUpload) (models.Image, error) {
	key := ObjectKey(s.folder, s.now(), file.Filename, file.ContentType)

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = file.ContentType
	w.ChunkSize = 0
	if s.publicRead {
		w.PredefinedACL = "publicRead"
	}

	if _, err := io.Copy(w, file.Body); err != nil {
		_ = w.Close()
		return models.Image{}, fmt.Errorf("upload error: %w", err)
	}
	if err := w.Close(); err != nil {
		return models.Image{}, fmt.Errorf("upload error: %w", err)
	}

	return models.Image{URL: s.PublicURL(key), Key: key}, nil
}

func (s *GCS) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete error: %w", err)
	}
	return nil
}

func (s *GCS) PublicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

func (s *GCS) Close() error {
	return s.client.Close()
}

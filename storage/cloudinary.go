package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/phillip/event-manager-go/config"
	"github.com/phillip/event-manager-go/models"
)

// Cloudinary stores images as Cloudinary assets. The image key is the public
// id, which is the object key without its extension.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
	now    func() time.Time
}

func NewCloudinary(cfg config.StorageConfig) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config error: %w", err)
	}
	return &Cloudinary{cld: cld, folder: cfg.Folder, now: time.Now}, nil
}

func (s *Cloudinary) Upload(ctx context.Context, file FileUpload) (models.Image, error) {
	key := ObjectKey(s.folder, s.now(), file.Filename, file.ContentType)

	resp, err := s.cld.Upload.Upload(ctx, file.Body, uploader.UploadParams{
		PublicID:     publicID(key),
		ResourceType: "image",
	})
	if err != nil {
		return models.Image{}, fmt.Errorf("upload error: %w", err)
	}
	if resp.Error.Message != "" {
		return models.Image{}, fmt.Errorf("upload error: %s", resp.Error.Message)
	}

	return models.Image{URL: resp.SecureURL, Key: resp.PublicID}, nil
}

func (s *Cloudinary) Delete(ctx context.Context, key string) error {
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     key,
		ResourceType: "image",
	})
	if err != nil {
		return fmt.Errorf("delete error: %w", err)
	}

	switch resp.Result {
	case "ok", "not found":
		return nil
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("delete error: %s", resp.Error.Message)
	}
	return fmt.Errorf("delete error: unexpected result %q", resp.Result)
}

func publicID(key string) string {
	return strings.TrimSuffix(key, path.Ext(key))
}

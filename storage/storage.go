// Package storage uploads event images to object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/phillip/event-manager-go/config"
	"github.com/phillip/event-manager-go/models"
)

// FileUpload is a single image received from a client.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ImageStore is implemented by every storage backend. Delete must treat a
// missing object as success.
type ImageStore interface {
	Upload(ctx context.Context, file FileUpload) (models.Image, error)
	Delete(ctx context.Context, key string) error
}

// New builds the backend selected in cfg.
func New(ctx context.Context, cfg config.StorageConfig) (ImageStore, error) {
	switch cfg.Provider {
	case "cloudinary":
		return NewCloudinary(cfg)
	case "gcs":
		return NewGCS(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

const maxNameLength = 64

// SanitizeFilename lower-cases name, strips accents and collapses everything
// that is not a letter or digit into single dashes.
func SanitizeFilename(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, name)
	if err != nil {
		plain = name
	}

	out := strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(plain), "-"), "-")
	if len(out) > maxNameLength {
		out = strings.TrimRight(out[:maxNameLength], "-")
	}
	return out
}

// ObjectKey builds "<folder>/<unix-ms>-<8 hex>-<name>.<ext>". The random
// segment keeps two uploads of the same file in the same millisecond apart.
func ObjectKey(folder string, now time.Time, filename, contentType string) string {
	ext := strings.ToLower(path.Ext(filename))
	name := SanitizeFilename(strings.TrimSuffix(filename, path.Ext(filename)))
	if name == "" {
		name = "image"
	}

	ext = "." + nonAlnum.ReplaceAllString(strings.TrimPrefix(ext, "."), "")
	if ext == "." {
		ext = ""
		if m := mimetype.Lookup(contentType); m != nil {
			ext = m.Extension()
		}
	}

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s/%d-%s-%s%s", strings.Trim(folder, "/"), now.UnixMilli(), suffix, name, ext)
}

package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/phillip/event-manager-go/config"
	"github.com/phillip/event-manager-go/metrics"
	"github.com/phillip/event-manager-go/models"
	"github.com/phillip/event-manager-go/storage"
	"github.com/phillip/event-manager-go/utils"
	"github.com/phillip/event-manager-go/validation"
)

const imagesField = "images"

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// readMultipart parses a multipart body capped at the upload limits.
func readMultipart(c *gin.Context, cfg config.ServerConfig) (*multipart.Form, error) {
	limit := int64(cfg.MaxUploads)*cfg.MaxUploadSize + 1<<20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrNotMultipart):
			return nil, utils.ValidationError("expected a multipart/form-data body")
		case errors.As(err, &tooLarge):
			return nil, utils.ValidationError("request body too large")
		default:
			return nil, utils.ValidationError("invalid form data")
		}
	}
	return form, nil
}

// checkImageFiles enforces count, size and content type before anything is
// uploaded. Types are sniffed from the bytes; the client's header is ignored.
func checkImageFiles(form *multipart.Form, cfg config.ServerConfig) ([]*multipart.FileHeader, error) {
	files := form.File[imagesField]
	if len(files) > cfg.MaxUploads {
		return nil, utils.ValidationError(fmt.Sprintf("at most %d images are allowed", cfg.MaxUploads))
	}

	for _, fh := range files {
		if fh.Size > cfg.MaxUploadSize {
			return nil, utils.ValidationError(fmt.Sprintf("%s exceeds the %d MB limit", fh.Filename, cfg.MaxUploadSize>>20))
		}
		if _, err := sniff(fh); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func sniff(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", utils.ValidationError("failed to open file " + fh.Filename)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", utils.ValidationError("failed to read file " + fh.Filename)
	}
	if !mimetype.EqualsAny(mtype.String(), allowedImageTypes...) {
		return "", utils.ValidationError(fmt.Sprintf("%s must be a JPEG, PNG or WEBP image", fh.Filename))
	}
	return mtype.String(), nil
}

// uploadImages uploads files one after another. If one fails, the blobs
// already stored for this request are scheduled for deletion.
func (a *App) uploadImages(ctx context.Context, files []*multipart.FileHeader) ([]models.Image, error) {
	uploaded := make([]models.Image, 0, len(files))
	for _, fh := range files {
		img, err := a.uploadOne(ctx, fh)
		metrics.ImageOperationsTotal.WithLabelValues("upload", metrics.Outcome(err)).Inc()
		if err != nil {
			a.discardImages(uploaded)
			return nil, utils.Internal("image upload failed", fmt.Errorf("%s: %w", fh.Filename, err))
		}
		uploaded = append(uploaded, img)
	}
	return uploaded, nil
}

func (a *App) uploadOne(ctx context.Context, fh *multipart.FileHeader) (models.Image, error) {
	contentType, err := sniff(fh)
	if err != nil {
		return models.Image{}, err
	}

	f, err := fh.Open()
	if err != nil {
		return models.Image{}, err
	}
	defer f.Close()

	return a.Images.Upload(ctx, storage.FileUpload{
		Filename:    fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Body:        io.Reader(f),
	})
}

func (a *App) discardImages(images []models.Image) {
	keys := make([]string, 0, len(images))
	for _, img := range images {
		keys = append(keys, img.Key)
	}
	a.deleteImages(keys)
}

func formValue(form *multipart.Form, key string) (string, bool) {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func formInt(form *multipart.Form, key string) (*int, error) {
	raw, ok := formValue(form, key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, utils.ValidationError("validation failed", key+" must be an integer")
	}
	return &n, nil
}

// formJSON decodes a form field carrying a JSON document.
func formJSON(form *multipart.Form, key string, out interface{}) (bool, error) {
	raw, ok := formValue(form, key)
	if !ok || strings.TrimSpace(raw) == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, utils.ValidationError(fmt.Sprintf("%s must be valid JSON", key))
	}
	return true, nil
}

func createInputFromForm(form *multipart.Form) (validation.CreateEventInput, error) {
	var in validation.CreateEventInput
	in.Title, _ = formValue(form, "title")
	in.Description, _ = formValue(form, "description")
	in.Date, _ = formValue(form, "date")
	in.Location, _ = formValue(form, "location")
	in.DressCode, _ = formValue(form, "dressCode")
	in.Price, _ = formValue(form, "price")

	var err error
	if in.StartTime, err = formInt(form, "startTime"); err != nil {
		return in, err
	}
	if in.EndTime, err = formInt(form, "endTime"); err != nil {
		return in, err
	}
	if _, err := formJSON(form, "organizers", &in.Organizers); err != nil {
		return in, err
	}
	return in, nil
}

// updateInputFromForm only sets the fields present in the form, and returns
// the image URLs listed in removeImages.
func updateInputFromForm(form *multipart.Form) (validation.UpdateEventInput, []string, error) {
	var in validation.UpdateEventInput
	text := func(key string) *string {
		if v, ok := formValue(form, key); ok {
			return &v
		}
		return nil
	}
	in.Title = text("title")
	in.Description = text("description")
	in.Date = text("date")
	in.Location = text("location")
	in.DressCode = text("dressCode")
	in.Price = text("price")

	var err error
	if in.StartTime, err = formInt(form, "startTime"); err != nil {
		return in, nil, err
	}
	if in.EndTime, err = formInt(form, "endTime"); err != nil {
		return in, nil, err
	}
	if raw, ok := formValue(form, "endTime"); ok && strings.TrimSpace(raw) == "" {
		in.ClearEndTime = true
	}

	var organizers []validation.OrganizerInput
	if ok, err := formJSON(form, "organizers", &organizers); err != nil {
		return in, nil, err
	} else if ok {
		if organizers == nil {
			organizers = []validation.OrganizerInput{}
		}
		in.Organizers = &organizers
	}

	var remove []string
	if _, err := formJSON(form, "removeImages", &remove); err != nil {
		return in, nil, err
	}
	return in, remove, nil
}

// Package testutil holds in-memory fakes shared by handler and router tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/phillip/event-manager-go/mailer"
	"github.com/phillip/event-manager-go/models"
	"github.com/phillip/event-manager-go/storage"
)

var ErrUploadFailed = errors.New("fake upload failure")

// ImageStore records uploads and deletes. Set FailOnUpload to n to make the
// n-th upload (1-based) fail.
type ImageStore struct {
	mu           sync.Mutex
	FailOnUpload int
	uploads      []storage.FileUpload
	deleted      []string
}

func NewImageStore() *ImageStore {
	return &ImageStore{}
}

func (s *ImageStore) Upload(_ context.Context, file storage.FileUpload) (models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.Copy(io.Discard, file.Body); err != nil {
		return models.Image{}, err
	}
	n := len(s.uploads) + 1
	if s.FailOnUpload == n {
		return models.Image{}, ErrUploadFailed
	}
	s.uploads = append(s.uploads, file)

	name := strings.TrimSuffix(file.Filename, path.Ext(file.Filename))
	key := fmt.Sprintf("events/%d-%s", n, storage.SanitizeFilename(name))
	return models.Image{URL: "https://cdn.test/" + key, Key: key}, nil
}

func (s *ImageStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *ImageStore) Uploads() []storage.FileUpload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.FileUpload(nil), s.uploads...)
}

func (s *ImageStore) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// Mailer records every message it is asked to send.
type Mailer struct {
	mu   sync.Mutex
	Err  error
	sent []mailer.Message
}

func (m *Mailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *Mailer) Sent() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

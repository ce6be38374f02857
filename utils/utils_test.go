package utils

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/event-manager-go/models"
)

func TestAppErrorConstructors(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{ValidationError("bad", "title is required"), http.StatusBadRequest},
		{Unauthorized("no token"), http.StatusUnauthorized},
		{Forbidden("not yours"), http.StatusForbidden},
		{NotFound("missing"), http.StatusNotFound},
		{Conflict("taken"), http.StatusConflict},
		{TooManyRequests("slow down"), http.StatusTooManyRequests},
		{Internal("boom", errors.New("db down")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.Status)
		assert.NotEmpty(t, tt.err.Stack())
	}
}

func TestAppErrorWrapsCause(t *testing.T) {
	cause := errors.New("db down")
	err := Internal("could not create event", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "could not create event: db down", err.Error())
}

func TestAsAppError(t *testing.T) {
	notFound := NotFound("event not found")
	assert.Same(t, notFound, AsAppError(notFound))

	generic := AsAppError(errors.New("surprise"))
	assert.Equal(t, http.StatusInternalServerError, generic.Status)
	assert.Equal(t, "internal server error", generic.Message)
}

func TestGenerateETag(t *testing.T) {
	id := primitive.NewObjectID()
	now := time.Now()

	a := GenerateETag(id, now)
	assert.Equal(t, a, GenerateETag(id, now))
	assert.NotEqual(t, a, GenerateETag(id, now.Add(time.Second)))
	assert.NotEqual(t, a, GenerateETag(primitive.NewObjectID(), now))
	assert.Regexp(t, `^W/"[0-9a-f]{16}"$`, a)
}

func TestGenerateListETag(t *testing.T) {
	now := time.Now()
	older := models.Event{ID: primitive.NewObjectID(), UpdatedAt: now.Add(-time.Hour)}
	newest := models.Event{ID: primitive.NewObjectID(), UpdatedAt: now}
	both := []models.Event{older, newest}

	tag := GenerateListETag(both)
	assert.Equal(t, tag, GenerateListETag([]models.Event{older, newest}))
	assert.NotEqual(t, tag, GenerateListETag([]models.Event{newest}))

	older.UpdatedAt = now.Add(-time.Minute)
	assert.NotEqual(t, tag, GenerateListETag([]models.Event{older, newest}))
	assert.Regexp(t, `^W/"[0-9a-f]{16}"$`, tag)
}

// Package repository persists events and local user accounts.
package repository

import (
	"context"
	"errors"

	"github.com/phillip/event-manager-go/models"
)

var (
	ErrNotFound  = errors.New("repository: not found")
	ErrDuplicate = errors.New("repository: duplicate key")
)

// EventRepository stores event documents. Ids are the hex form of the
// document ObjectID; a malformed id behaves like a missing document.
type EventRepository interface {
	Insert(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id string) (*models.Event, error)
	// List returns one page sorted by date ascending plus the total count.
	List(ctx context.Context, skip, limit int64) ([]models.Event, int64, error)
	ListByOwner(ctx context.Context, owner string) ([]models.Event, error)
	Replace(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type UserRepository interface {
	Insert(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

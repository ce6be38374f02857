package repository

import (
	"context"
	"slices"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/event-manager-go/models"
)

// MemoryEventRepository keeps events in process. Stored values are cloned on
// the way in and out so callers never share slices with the store.
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[primitive.ObjectID]models.Event
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{events: make(map[primitive.ObjectID]models.Event)}
}

func (r *MemoryEventRepository) Insert(_ context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if _, ok := r.events[event.ID]; ok {
		return ErrDuplicate
	}
	r.events[event.ID] = event.Clone()
	return nil
}

func (r *MemoryEventRepository) FindByID(_ context.Context, id string) (*models.Event, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.events[oid]
	if !ok {
		return nil, ErrNotFound
	}
	out := event.Clone()
	return &out, nil
}

func (r *MemoryEventRepository) List(_ context.Context, skip, limit int64) ([]models.Event, int64, error) {
	all := r.sorted(func(models.Event) bool { return true })
	total := int64(len(all))

	if skip >= total {
		return []models.Event{}, total, nil
	}
	end := total
	if limit > 0 && skip+limit < total {
		end = skip + limit
	}
	return all[skip:end], total, nil
}

func (r *MemoryEventRepository) ListByOwner(_ context.Context, owner string) ([]models.Event, error) {
	return r.sorted(func(e models.Event) bool { return e.Owner == owner }), nil
}

func (r *MemoryEventRepository) sorted(keep func(models.Event) bool) []models.Event {
	r.mu.RLock()
	out := make([]models.Event, 0, len(r.events))
	for _, e := range r.events {
		if keep(e) {
			out = append(out, e.Clone())
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.Event) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID.Hex(), b.ID.Hex())
	})
	return out
}

func (r *MemoryEventRepository) Replace(_ context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[event.ID]; !ok {
		return ErrNotFound
	}
	r.events[event.ID] = event.Clone()
	return nil
}

func (r *MemoryEventRepository) Delete(_ context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[oid]; !ok {
		return ErrNotFound
	}
	delete(r.events, oid)
	return nil
}

func (r *MemoryEventRepository) Ping(context.Context) error { return nil }

type MemoryUserRepository struct {
	mu      sync.RWMutex
	byEmail map[string]models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byEmail: make(map[string]models.User)}
}

func (r *MemoryUserRepository) Insert(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return ErrDuplicate
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	r.byEmail[user.Email] = *user
	return nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/phillip/event-manager-go/config"
	"github.com/phillip/event-manager-go/identity"
	"github.com/phillip/event-manager-go/mailer"
	"github.com/phillip/event-manager-go/metrics"
	"github.com/phillip/event-manager-go/middleware"
	"github.com/phillip/event-manager-go/models"
	"github.com/phillip/event-manager-go/repository"
	"github.com/phillip/event-manager-go/storage"
	"github.com/phillip/event-manager-go/tasks"
	"github.com/phillip/event-manager-go/utils"
	"github.com/phillip/event-manager-go/validation"
)

const requestTimeout = 5 * time.Second

// Notifier sends lifecycle emails; *mailer.Notifier in production.
type Notifier interface {
	Notify(ctx context.Context, kind mailer.Kind, p models.Principal, e models.Event) error
}

// Dispatcher runs background work; *tasks.Dispatcher in production.
type Dispatcher interface {
	Submit(name string, fn tasks.Func) bool
}

// App carries the collaborators every handler needs. It is built once in
// cmd and passed to the handler factories.
type App struct {
	Config    *config.Config
	Events    repository.EventRepository
	Images    storage.ImageStore
	Identity  identity.Provider
	Notifier  Notifier
	Tasks     Dispatcher
	Validator *validation.Validator
	Logger    zerolog.Logger
	Now       func() time.Time
}

// now is millisecond precise, matching what Mongo stores.
func (a *App) now() time.Time {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	return now().UTC().Truncate(time.Millisecond)
}

// abort hands err to middleware.ErrorHandler.
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// requirePrincipal is a guard for routes mounted behind AuthMiddleware.
func requirePrincipal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		abort(c, utils.Unauthorized("unauthorized"))
	}
	return p, ok
}

func validationFailed(err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return utils.ValidationError("validation failed", verrs...)
	}
	return utils.ValidationError(err.Error())
}

// findEvent maps a missing document or malformed id to 404.
func (a *App) findEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := a.Events.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, utils.NotFound("event not found")
	}
	if err != nil {
		return nil, utils.Internal("could not fetch event", err)
	}
	return event, nil
}

// authorizeOwner loads the event and checks that p owns it.
func (a *App) authorizeOwner(ctx context.Context, id string, p models.Principal) (*models.Event, error) {
	event, err := a.findEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.Owner != p.UID {
		return nil, utils.Forbidden("access denied")
	}
	return event, nil
}

// notify schedules the lifecycle email. The event is copied so later
// mutations by the handler cannot race the task.
func (a *App) notify(kind mailer.Kind, p models.Principal, event models.Event) {
	snapshot := event.Clone()
	a.Tasks.Submit("email."+string(kind), func(ctx context.Context) error {
		return a.Notifier.Notify(ctx, kind, p, snapshot)
	})
}

// deleteImages schedules one idempotent storage delete per key.
func (a *App) deleteImages(keys []string) {
	for _, key := range keys {
		key := key
		a.Tasks.Submit("image.delete", func(ctx context.Context) error {
			err := a.Images.Delete(ctx, key)
			metrics.ImageOperationsTotal.WithLabelValues("delete", metrics.Outcome(err)).Inc()
			return err
		})
	}
}

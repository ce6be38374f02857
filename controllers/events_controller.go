package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/phillip/event-manager-go/mailer"
	"github.com/phillip/event-manager-go/models"
	"github.com/phillip/event-manager-go/repository"
	"github.com/phillip/event-manager-go/utils"
	"github.com/phillip/event-manager-go/validation"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// ---------------- CREATE ----------------
func CreateEvent(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := requirePrincipal(c)
		if !ok {
			return
		}

		var input validation.CreateEventInput
		if err := c.ShouldBindJSON(&input); err != nil {
			abort(c, utils.ValidationError("invalid JSON body"))
			return
		}

		event, err := app.Validator.CreateEvent(input)
		if err != nil {
			abort(c, validationFailed(err))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := app.insertEvent(ctx, &event, p); err != nil {
			abort(c, err)
			return
		}

		c.JSON(http.StatusCreated, event)
		app.notify(mailer.KindCreated, p, event)
	}
}

// ---------------- CREATE WITH IMAGES ----------------
func CreateEventWithImages(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := requirePrincipal(c)
		if !ok {
			return
		}

		form, err := readMultipart(c, app.Config.Server)
		if err != nil {
			abort(c, err)
			return
		}

		input, err := createInputFromForm(form)
		if err != nil {
			abort(c, err)
			return
		}
		event, err := app.Validator.CreateEvent(input)
		if err != nil {
			abort(c, validationFailed(err))
			return
		}

		files, err := checkImageFiles(form, app.Config.Server)
		if err != nil {
			abort(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		// --- Upload, first file becomes the cover ---
		images, err := app.uploadImages(ctx, files)
		if err != nil {
			abort(c, err)
			return
		}
		event.Images = images
		if len(images) > 0 {
			cover := images[0]
			event.CoverImage = &cover
		}

		if err := app.insertEvent(ctx, &event, p); err != nil {
			app.discardImages(images)
			abort(c, err)
			return
		}

		c.JSON(http.StatusCreated, event)
		app.notify(mailer.KindCreated, p, event)
	}
}

func (a *App) insertEvent(ctx context.Context, event *models.Event, p models.Principal) error {
	now := a.now()
	event.Owner = p.UID
	event.CreatedAt = now
	event.UpdatedAt = now
	if err := a.Events.Insert(ctx, event); err != nil {
		return utils.Internal("could not create event", err)
	}
	return nil
}

// ---------------- LIST ----------------
func ListEvents(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := positiveQuery(c, "page", defaultPage)
		limit := positiveQuery(c, "limit", defaultLimit)
		if limit > maxLimit {
			limit = maxLimit
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		events, total, err := app.Events.List(ctx, (page-1)*limit, limit)
		if err != nil {
			abort(c, utils.Internal("could not fetch events", err))
			return
		}
		if events == nil {
			events = []models.Event{}
		}

		c.JSON(http.StatusOK, gin.H{
			"events":  events,
			"page":    page,
			"limit":   limit,
			"total":   total,
			"hasMore": page*limit < total,
		})
	}
}

// positiveQuery reads a positive integer query parameter, falling back to
// def when it is missing, malformed or below 1.
func positiveQuery(c *gin.Context, key string, def int64) int64 {
	n, err := strconv.ParseInt(c.Query(key), 10, 32)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// ---------------- LIST MINE ----------------
func ListMyEvents(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := requirePrincipal(c)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		events, err := app.Events.ListByOwner(ctx, p.UID)
		if err != nil {
			abort(c, utils.Internal("could not fetch events", err))
			return
		}

		if len(events) == 0 {
			c.JSON(http.StatusOK, []models.Event{})
			return
		}

		// --- ETag over the whole set, Last-Modified from the newest event ---
		latest := events[0]
		for _, ev := range events {
			if ev.UpdatedAt.After(latest.UpdatedAt) {
				latest = ev
			}
		}

		etag := utils.GenerateListETag(events)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)
		c.Header("Last-Modified", latest.UpdatedAt.UTC().Format(http.TimeFormat))

		c.JSON(http.StatusOK, events)
	}
}

// ---------------- GET ----------------
func GetEvent(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()

		event, err := app.findEvent(ctx, c.Param("id"))
		if err != nil {
			abort(c, err)
			return
		}

		etag := utils.GenerateETag(event.ID, event.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, event)
	}
}

// ---------------- COVER IMAGE ----------------
func GetEventImage(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()

		event, err := app.findEvent(ctx, c.Param("id"))
		if err != nil {
			abort(c, err)
			return
		}
		if event.CoverImage == nil || event.CoverImage.URL == "" {
			abort(c, utils.NotFound("event has no cover image"))
			return
		}

		c.Redirect(http.StatusFound, event.CoverImage.URL)
	}
}

// ---------------- UPDATE ----------------
func UpdateEvent(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := requirePrincipal(c)
		if !ok {
			return
		}

		var input validation.UpdateEventInput
		if err := c.ShouldBindJSON(&input); err != nil {
			abort(c, utils.ValidationError("invalid JSON body"))
			return
		}

		patch, err := app.Validator.UpdateEvent(input)
		if err != nil {
			abort(c, validationFailed(err))
			return
		}
		if patch.IsEmpty() {
			abort(c, utils.ValidationError("no fields to update"))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		event, err := app.authorizeOwner(ctx, c.Param("id"), p)
		if err != nil {
			abort(c, err)
			return
		}

		patch.Apply(event)
		event.UpdatedAt = app.now()
		if err := app.replaceEvent(ctx, event); err != nil {
			abort(c, err)
			return
		}

		c.JSON(http.StatusOK, event)
		app.notify(mailer.KindUpdated, p, *event)
	}
}

// ---------------- UPDATE WITH IMAGES ----------------
func UpdateEventWithImages(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := requirePrincipal(c)
		if !ok {
			return
		}

		form, err := readMultipart(c, app.Config.Server)
		if err != nil {
			abort(c, err)
			return
		}

		input, removeURLs, err := updateInputFromForm(form)
		if err != nil {
			abort(c, err)
			return
		}
		patch, err := app.Validator.UpdateEvent(input)
		if err != nil {
			abort(c, validationFailed(err))
			return
		}

		files, err := checkImageFiles(form, app.Config.Server)
		if err != nil {
			abort(c, err)
			return
		}
		if patch.IsEmpty() && len(removeURLs) == 0 && len(files) == 0 {
			abort(c, utils.ValidationError("no fields to update"))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		event, err := app.authorizeOwner(ctx, c.Param("id"), p)
		if err != nil {
			abort(c, err)
			return
		}

		uploaded, err := app.uploadImages(ctx, files)
		if err != nil {
			abort(c, err)
			return
		}

		patch.Apply(event)
		dropped := mergeImages(event, removeURLs, uploaded)
		event.UpdatedAt = app.now()

		if err := app.replaceEvent(ctx, event); err != nil {
			app.discardImages(uploaded)
			abort(c, err)
			return
		}

		app.deleteImages(dropped)
		c.JSON(http.StatusOK, event)
		app.notify(mailer.KindUpdated, p, *event)
	}
}

// mergeImages removes the listed URLs from the event, appends the new
// uploads and repairs the cover. It returns the storage keys no longer
// referenced by the event.
func mergeImages(event *models.Event, removeURLs []string, added []models.Image) []string {
	before := event.ImageKeys()

	remove := make(map[string]struct{}, len(removeURLs))
	for _, u := range removeURLs {
		remove[u] = struct{}{}
	}

	kept := make([]models.Image, 0, len(event.Images)+len(added))
	for _, img := range event.Images {
		if _, ok := remove[img.URL]; !ok {
			kept = append(kept, img)
		}
	}
	event.Images = append(kept, added...)

	if event.CoverImage != nil {
		if _, ok := remove[event.CoverImage.URL]; ok {
			event.CoverImage = nil
		}
	}
	if event.CoverImage == nil && len(event.Images) > 0 {
		cover := event.Images[0]
		event.CoverImage = &cover
	}

	still := make(map[string]struct{})
	for _, key := range event.ImageKeys() {
		still[key] = struct{}{}
	}
	var dropped []string
	for _, key := range before {
		if _, ok := still[key]; !ok {
			dropped = append(dropped, key)
		}
	}
	return dropped
}

func (a *App) replaceEvent(ctx context.Context, event *models.Event) error {
	err := a.Events.Replace(ctx, event)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.NotFound("event not found")
	}
	if err != nil {
		return utils.Internal("could not update event", err)
	}
	return nil
}

// ---------------- DELETE ----------------
func DeleteEvent(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := requirePrincipal(c)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		event, err := app.authorizeOwner(ctx, c.Param("id"), p)
		if err != nil {
			abort(c, err)
			return
		}

		err = app.Events.Delete(ctx, event.ID.Hex())
		if errors.Is(err, repository.ErrNotFound) {
			abort(c, utils.NotFound("event not found"))
			return
		}
		if err != nil {
			abort(c, utils.Internal("failed to delete event", err))
			return
		}

		app.deleteImages(event.ImageKeys())
		app.notify(mailer.KindDeleted, p, *event)

		c.JSON(http.StatusOK, gin.H{
			"message": "event deleted successfully",
			"id":      event.ID.Hex(),
		})
	}
}

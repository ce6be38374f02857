package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultDescription = "No description provided."
	DefaultDressCode   = "open"
	DefaultPrice       = "0"
)

type Organizer struct {
	Name      string `bson:"name" json:"name"`
	Email     string `bson:"email,omitempty" json:"email,omitempty"`
	Whatsapp  string `bson:"whatsapp,omitempty" json:"whatsapp,omitempty"`
	Facebook  string `bson:"facebook,omitempty" json:"facebook,omitempty"`
	Twitter   string `bson:"twitter,omitempty" json:"twitter,omitempty"`
	Instagram string `bson:"instagram,omitempty" json:"instagram,omitempty"`
}

// Image points at a blob in object storage. Key is what the storage adapter
// needs to delete it later.
type Image struct {
	URL string `bson:"url" json:"url"`
	Key string `bson:"key" json:"key"`
}

type Event struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Date        string             `bson:"date" json:"date"` // YYYY-MM-DD
	StartTime   int                `bson:"start_time" json:"startTime"`
	EndTime     *int               `bson:"end_time,omitempty" json:"endTime,omitempty"`
	Location    string             `bson:"location" json:"location"`
	DressCode   string             `bson:"dress_code" json:"dressCode"`
	Price       string             `bson:"price" json:"price"`
	Organizers  []Organizer        `bson:"organizers" json:"organizers"`
	CoverImage  *Image             `bson:"cover_image,omitempty" json:"coverImage,omitempty"`
	Images      []Image            `bson:"images" json:"images"`
	Owner       string             `bson:"owner" json:"owner"` // principal uid
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

// ImageKeys returns the distinct storage keys referenced by the event,
// cover first.
func (e *Event) ImageKeys() []string {
	seen := make(map[string]struct{})
	var keys []string
	add := func(img Image) {
		if img.Key == "" {
			return
		}
		if _, ok := seen[img.Key]; ok {
			return
		}
		seen[img.Key] = struct{}{}
		keys = append(keys, img.Key)
	}

	if e.CoverImage != nil {
		add(*e.CoverImage)
	}
	for _, img := range e.Images {
		add(img)
	}
	return keys
}

// Clone returns a deep copy so callers can mutate slices and pointers freely.
func (e Event) Clone() Event {
	out := e
	if e.EndTime != nil {
		end := *e.EndTime
		out.EndTime = &end
	}
	if e.CoverImage != nil {
		cover := *e.CoverImage
		out.CoverImage = &cover
	}
	out.Organizers = append([]Organizer{}, e.Organizers...)
	out.Images = append([]Image{}, e.Images...)
	return out
}

// EventPatch carries the fields of a partial update. Nil means unchanged.
type EventPatch struct {
	Title       *string
	Description *string
	Date        *string
	StartTime   *int
	EndTime     *int
	Location    *string
	DressCode   *string
	Price       *string
	Organizers  *[]Organizer

	// ClearEndTime removes the end time. Ignored when EndTime is set.
	ClearEndTime bool
}

func (p EventPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Date == nil &&
		p.StartTime == nil && p.EndTime == nil && !p.ClearEndTime &&
		p.Location == nil && p.DressCode == nil && p.Price == nil &&
		p.Organizers == nil
}

// Apply overwrites the fields present in the patch. Owner, images and
// timestamps are never touched here.
func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		end := *p.EndTime
		e.EndTime = &end
	} else if p.ClearEndTime {
		e.EndTime = nil
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.DressCode != nil {
		e.DressCode = *p.DressCode
	}
	if p.Price != nil {
		e.Price = *p.Price
	}
	if p.Organizers != nil {
		e.Organizers = append([]Organizer{}, (*p.Organizers)...)
	}
}

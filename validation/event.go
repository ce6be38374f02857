package validation

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/phillip/event-manager-go/models"
)

type OrganizerInput struct {
	Name      string `json:"name" validate:"required,min=1,max=100"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Whatsapp  string `json:"whatsapp,omitempty" validate:"omitempty,max=30"`
	Facebook  string `json:"facebook,omitempty" validate:"omitempty,url"`
	Twitter   string `json:"twitter,omitempty" validate:"omitempty,url"`
	Instagram string `json:"instagram,omitempty" validate:"omitempty,url"`
}

// CreateEventInput is the body accepted when creating an event. Fields not
// listed here, owner included, are dropped during decoding.
type CreateEventInput struct {
	Title       string           `json:"title" validate:"required,min=3,max=120"`
	Description string           `json:"description" validate:"max=2000"`
	Date        string           `json:"date" validate:"required,isodate"`
	StartTime   *int             `json:"startTime" validate:"required,min=0,max=2359"`
	EndTime     *int             `json:"endTime" validate:"omitempty,min=0,max=2359"`
	Location    string           `json:"location" validate:"required,min=1,max=200"`
	DressCode   string           `json:"dressCode" validate:"max=60"`
	Price       string           `json:"price" validate:"omitempty,price"`
	Organizers  []OrganizerInput `json:"organizers" validate:"omitempty,max=20,dive"`
}

// UpdateEventInput mirrors CreateEventInput with every field optional.
type UpdateEventInput struct {
	Title       *string           `json:"title" validate:"omitempty,min=3,max=120"`
	Description *string           `json:"description" validate:"omitempty,max=2000"`
	Date        *string           `json:"date" validate:"omitempty,isodate"`
	StartTime   *int              `json:"startTime" validate:"omitempty,min=0,max=2359"`
	EndTime     *int              `json:"endTime" validate:"omitempty,min=0,max=2359"`
	Location    *string           `json:"location" validate:"omitempty,min=1,max=200"`
	DressCode   *string           `json:"dressCode" validate:"omitempty,max=60"`
	Price       *string           `json:"price" validate:"omitempty,price"`
	Organizers  *[]OrganizerInput `json:"organizers" validate:"omitempty,max=20,dive"`

	// ClearEndTime is set when the payload carries "endTime": null.
	ClearEndTime bool `json:"-"`
}

// UnmarshalJSON decodes the payload and records an explicit null endTime,
// which plain pointer decoding cannot tell apart from a missing key.
func (in *UpdateEventInput) UnmarshalJSON(data []byte) error {
	type plain UpdateEventInput
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields["endTime"]; ok && string(bytes.TrimSpace(raw)) == "null" {
		out.ClearEndTime = true
	}

	*in = UpdateEventInput(out)
	return nil
}

func (in *CreateEventInput) sanitize() {
	in.Title = cleanText(in.Title)
	in.Description = cleanText(in.Description)
	in.Date = strings.TrimSpace(in.Date)
	in.Location = cleanText(in.Location)
	in.DressCode = cleanText(in.DressCode)
	in.Price = cleanText(in.Price)
	for i := range in.Organizers {
		in.Organizers[i].sanitize()
	}
}

func (in *UpdateEventInput) sanitize() {
	in.Title = cleanPtr(in.Title)
	in.Description = cleanPtr(in.Description)
	if in.Date != nil {
		d := strings.TrimSpace(*in.Date)
		in.Date = &d
	}
	in.Location = cleanPtr(in.Location)
	in.Description = withDefault(in.Description, models.DefaultDescription)
	in.DressCode = withDefault(cleanPtr(in.DressCode), models.DefaultDressCode)
	in.Price = withDefault(cleanPtr(in.Price), models.DefaultPrice)
	if in.Organizers != nil {
		for i := range *in.Organizers {
			(*in.Organizers)[i].sanitize()
		}
	}
}

func (o *OrganizerInput) sanitize() {
	o.Name = cleanText(o.Name)
	o.Email = strings.TrimSpace(o.Email)
	o.Whatsapp = cleanText(o.Whatsapp)
	o.Facebook = strings.TrimSpace(o.Facebook)
	o.Twitter = strings.TrimSpace(o.Twitter)
	o.Instagram = strings.TrimSpace(o.Instagram)
}

func (o OrganizerInput) model() models.Organizer {
	return models.Organizer{
		Name:      o.Name,
		Email:     strings.ToLower(o.Email),
		Whatsapp:  o.Whatsapp,
		Facebook:  o.Facebook,
		Twitter:   o.Twitter,
		Instagram: o.Instagram,
	}
}

func organizers(in []OrganizerInput) []models.Organizer {
	out := make([]models.Organizer, 0, len(in))
	for _, o := range in {
		out = append(out, o.model())
	}
	return out
}

// CreateEvent validates a creation payload and returns the event it
// describes with defaults applied. Identity, owner, images and timestamps are
// left for the caller to fill in.
func (v *Validator) CreateEvent(in CreateEventInput) (models.Event, error) {
	in.sanitize()
	if err := v.check(in); err != nil {
		return models.Event{}, err
	}

	date, _ := normalizeDate(in.Date)
	event := models.Event{
		Title:       in.Title,
		Description: in.Description,
		Date:        date,
		StartTime:   *in.StartTime,
		EndTime:     in.EndTime,
		Location:    in.Location,
		DressCode:   in.DressCode,
		Price:       in.Price,
		Organizers:  organizers(in.Organizers),
		Images:      []models.Image{},
	}
	if event.Description == "" {
		event.Description = models.DefaultDescription
	}
	if event.DressCode == "" {
		event.DressCode = models.DefaultDressCode
	}
	if event.Price == "" {
		event.Price = models.DefaultPrice
	}
	return event, nil
}

// UpdateEvent validates a partial payload and converts it into a patch.
// Emptied optional text fields fall back to their defaults.
func (v *Validator) UpdateEvent(in UpdateEventInput) (models.EventPatch, error) {
	in.sanitize()
	if err := v.check(in); err != nil {
		return models.EventPatch{}, err
	}

	patch := models.EventPatch{
		Title:       in.Title,
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Location:    in.Location,
		DressCode:   in.DressCode,
		Price:       in.Price,

		ClearEndTime: in.EndTime == nil && in.ClearEndTime,
	}
	if in.Date != nil {
		date, _ := normalizeDate(*in.Date)
		patch.Date = &date
	}
	if in.Organizers != nil {
		orgs := organizers(*in.Organizers)
		patch.Organizers = &orgs
	}
	return patch, nil
}

func withDefault(s *string, def string) *string {
	if s == nil || *s != "" {
		return s
	}
	return &def
}

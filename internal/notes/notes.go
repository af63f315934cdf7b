// Package notes provides thin typed wrappers over the gateway for the
// note and external-calendar endpoints.
package notes

import (
	"context"
	"net/url"
	"time"

	"github.com/starford/skald/internal/apperr"
)

// Note is a single journal note.
type Note struct {
	UUID     string   `json:"uuid,omitempty"`
	Data     string   `json:"data"`
	Title    string   `json:"title,omitempty"`
	IsDate   bool     `json:"is_date,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Projects []string `json:"projects,omitempty"`
}

// Calendar is an external calendar subscription.
type Calendar struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Color string `json:"color,omitempty"`
}

// dayLayout is the MM-dd-yyyy route-param form.
const dayLayout = "01-02-2006"

// api is the slice of the gateway this service uses.
type api interface {
	Get(ctx context.Context, path string, params url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

// Service wraps the note endpoints.
type Service struct {
	api api
}

// NewService creates a note service over the gateway.
func NewService(api api) *Service {
	return &Service{api: api}
}

// DayNote fetches the note for a given day. date is in MM-dd-yyyy form.
func (s *Service) DayNote(ctx context.Context, date string) (*Note, error) {
	if date == "" {
		return nil, apperr.ErrBadInput
	}
	d, err := time.Parse(dayLayout, date)
	if err != nil {
		return nil, apperr.ErrBadInput
	}

	params := url.Values{}
	params.Set("date", d.Format(time.RFC3339))

	var note Note
	if err := s.api.Get(ctx, "/date", params, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// Get fetches a note by UUID.
func (s *Service) Get(ctx context.Context, uuid string) (*Note, error) {
	if uuid == "" {
		return nil, apperr.ErrBadInput
	}
	params := url.Values{}
	params.Set("uuid", uuid)

	var note Note
	if err := s.api.Get(ctx, "/note", params, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// List fetches all notes.
func (s *Service) List(ctx context.Context) ([]Note, error) {
	var notes []Note
	if err := s.api.Get(ctx, "/notes", nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// Calendars lists the external calendar subscriptions.
func (s *Service) Calendars(ctx context.Context) ([]Calendar, error) {
	var res struct {
		Calendars []Calendar `json:"calendars"`
	}
	if err := s.api.Get(ctx, "/external_calendars", nil, &res); err != nil {
		return nil, err
	}
	return res.Calendars, nil
}

// AddCalendar subscribes to an external calendar feed.
func (s *Service) AddCalendar(ctx context.Context, name, feedURL, color string) (*Calendar, error) {
	if name == "" || feedURL == "" {
		return nil, apperr.ErrBadInput
	}
	var res struct {
		Calendar Calendar `json:"calendar"`
	}
	body := map[string]string{"name": name, "url": feedURL, "color": color}
	if err := s.api.Post(ctx, "/external_calendars", body, &res); err != nil {
		return nil, err
	}
	return &res.Calendar, nil
}

// RemoveCalendar deletes an external calendar subscription.
func (s *Service) RemoveCalendar(ctx context.Context, uuid string) error {
	if uuid == "" {
		return apperr.ErrBadInput
	}
	return s.api.Delete(ctx, "/external_calendars/"+uuid)
}

package notes

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/starford/skald/internal/apperr"
)

type fakeAPI struct {
	get    func(path string, params url.Values, out any) error
	post   func(path string, body, out any) error
	delete func(path string) error
}

func (f *fakeAPI) Get(_ context.Context, path string, params url.Values, out any) error {
	return f.get(path, params, out)
}

func (f *fakeAPI) Post(_ context.Context, path string, body, out any) error {
	return f.post(path, body, out)
}

func (f *fakeAPI) Delete(_ context.Context, path string) error {
	return f.delete(path)
}

func TestDayNoteEncodesDate(t *testing.T) {
	var gotDate string
	svc := NewService(&fakeAPI{get: func(path string, params url.Values, out any) error {
		if path != "/date" {
			t.Errorf("path = %q", path)
		}
		gotDate = params.Get("date")
		*(out.(*Note)) = Note{UUID: "n1", Data: "today", IsDate: true}
		return nil
	}})

	note, err := svc.DayNote(context.Background(), "03-15-2024")
	if err != nil {
		t.Fatalf("DayNote: %v", err)
	}
	if note.UUID != "n1" {
		t.Errorf("uuid = %q", note.UUID)
	}

	d, err := time.Parse(time.RFC3339, gotDate)
	if err != nil {
		t.Fatalf("date param %q not RFC3339: %v", gotDate, err)
	}
	if d.Month() != time.March || d.Day() != 15 || d.Year() != 2024 {
		t.Errorf("date = %v", d)
	}
}

func TestDayNoteRejectsBadInput(t *testing.T) {
	svc := NewService(&fakeAPI{get: func(string, url.Values, any) error {
		t.Error("request should not be issued")
		return nil
	}})

	for _, in := range []string{"", "not-a-date"} {
		if _, err := svc.DayNote(context.Background(), in); !errors.Is(err, apperr.ErrBadInput) {
			t.Errorf("DayNote(%q) err = %v, want ErrBadInput", in, err)
		}
	}
}

func TestGetRequiresUUID(t *testing.T) {
	svc := NewService(&fakeAPI{get: func(string, url.Values, any) error {
		t.Error("request should not be issued")
		return nil
	}})
	if _, err := svc.Get(context.Background(), ""); !errors.Is(err, apperr.ErrBadInput) {
		t.Errorf("err = %v, want ErrBadInput", err)
	}
}

func TestCalendarLifecycle(t *testing.T) {
	svc := NewService(&fakeAPI{
		get: func(path string, params url.Values, out any) error {
			res := out.(*struct {
				Calendars []Calendar `json:"calendars"`
			})
			res.Calendars = []Calendar{{UUID: "c1", Name: "team"}}
			return nil
		},
		post: func(path string, body, out any) error {
			res := out.(*struct {
				Calendar Calendar `json:"calendar"`
			})
			res.Calendar = Calendar{UUID: "c2", Name: "personal"}
			return nil
		},
		delete: func(path string) error {
			if path != "/external_calendars/c1" {
				t.Errorf("delete path = %q", path)
			}
			return nil
		},
	})

	cals, err := svc.Calendars(context.Background())
	if err != nil || len(cals) != 1 {
		t.Fatalf("Calendars = %v, %v", cals, err)
	}

	cal, err := svc.AddCalendar(context.Background(), "personal", "https://cal.example/feed.ics", "")
	if err != nil || cal.UUID != "c2" {
		t.Fatalf("AddCalendar = %v, %v", cal, err)
	}

	if err := svc.RemoveCalendar(context.Background(), "c1"); err != nil {
		t.Fatalf("RemoveCalendar: %v", err)
	}
}

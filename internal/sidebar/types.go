package sidebar

import "time"

// Task is one checklist item surfaced in the sidebar.
type Task struct {
	UUID   string `json:"uuid"`
	NoteID string `json:"note_id"`
	Name   string `json:"name"`
	Done   bool   `json:"done"`
	Index  int    `json:"index"`
	Column string `json:"column,omitempty"`
}

// Note is the sidebar's view of a note.
type Note struct {
	UUID       string   `json:"uuid"`
	Data       string   `json:"data"`
	Title      string   `json:"title,omitempty"`
	IsDate     bool     `json:"is_date,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Projects   []string `json:"projects,omitempty"`
	Snippet    string   `json:"snippet,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// CalendarMark is an activity indicator on the calendar picker.
type CalendarMark struct {
	Date time.Time `json:"date"`
}

// ExternalEvent is an event imported from an external calendar feed.
type ExternalEvent struct {
	UUID     string    `json:"uuid"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end,omitempty"`
	Calendar string    `json:"calendar,omitempty"`
}

// Settings are the user feature flags delivered with the sidebar payload.
type Settings struct {
	AutoSave      bool     `json:"auto_save"`
	VimMode       bool     `json:"vim_mode"`
	Kanban        bool     `json:"kanban"`
	KanbanColumns []string `json:"kanban_columns"`
}

// Snapshot is a copy of the coordinator's state, safe to read after the
// coordinator has moved on.
type Snapshot struct {
	Date           *time.Time
	Events         []CalendarMark
	Tags           []string
	Tasks          []Task
	Projects       []string
	Notes          []Note
	ExternalEvents []ExternalEvent
	Settings       Settings

	SelectedSearch string
	SearchString   string
	Query          string
	FilteredNotes  []Note
	NavQuery       string

	CalLoading     bool
	SidebarLoading bool
	SearchLoading  bool
}

// sidebarResponse is the aggregate payload of GET /sidebar.
type sidebarResponse struct {
	Tags          []string `json:"tags"`
	Tasks         []Task   `json:"tasks"`
	Projects      []string `json:"projects"`
	Notes         []Note   `json:"notes"`
	AutoSave      bool     `json:"auto_save"`
	VimMode       bool     `json:"vim_mode"`
	Kanban        bool     `json:"kanban"`
	KanbanColumns []string `json:"kanban_columns"`
}

// eventsResponse is the payload of GET /events: date markers in MM-dd-yyyy.
type eventsResponse struct {
	Events []string `json:"events"`
}

type externalEventsResponse struct {
	Events []ExternalEvent `json:"events"`
}

type searchResponse struct {
	Notes []Note `json:"notes"`
}

type taskColumnResponse struct {
	OldTask string `json:"old_task"`
	NewTask string `json:"new_task"`
}

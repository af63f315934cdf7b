// Package event defines the typed push-notification payloads shared by the
// stream client, the event hub, and the dev server.
package event

// Kind names the recognized push-event types on the wire.
type Kind string

const (
	KindNoteUpdated       Kind = "note_updated"
	KindTaskUpdated       Kind = "task_updated"
	KindTaskColumnUpdated Kind = "task_column_updated"
	KindConnected         Kind = "connected"

	// KindMessage is the default when a frame carries no event line.
	KindMessage Kind = "message"
)

// Payload carries the fields of a push or hub notification. All fields are
// optional; which ones are set depends on the event kind.
type Payload struct {
	NoteUUID  string `json:"note_uuid,omitempty"`
	TaskUUID  string `json:"task_uuid,omitempty"`
	TaskName  string `json:"task_name,omitempty"`
	OldTask   string `json:"old_task,omitempty"`
	NewTask   string `json:"new_task,omitempty"`
	Column    string `json:"column,omitempty"`
	IsDate    bool   `json:"is_date,omitempty"`
	Title     string `json:"title,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Completed bool   `json:"completed,omitempty"`
}

package devserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/skald/internal/event"
	"github.com/starford/skald/internal/sidebar"
)

// Token is the bearer token the dev server accepts and hands out.
const Token = "dev-token"

// Server is the in-memory fake daybook API.
type Server struct {
	broker *Broker
	logger *slog.Logger

	mu        sync.Mutex
	tasks     []sidebar.Task
	notes     []sidebar.Note
	settings  sidebar.Settings
	calendars []calendarEntry
	nextID    int
}

type calendarEntry struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Color string `json:"color,omitempty"`
}

// New creates a dev server with seed data and the given broker.
func New(broker *Broker, logger *slog.Logger) *Server {
	return &Server{
		broker: broker,
		logger: logger,
		tasks: []sidebar.Task{
			{UUID: "task-1", NoteID: "note-1", Name: "- [ ] water the plants", Index: 0, Column: "todo"},
			{UUID: "task-2", NoteID: "note-1", Name: "- [x] write journal", Done: true, Index: 1, Column: "done"},
		},
		notes: []sidebar.Note{
			{UUID: "note-1", Data: "# Today\n- [ ] water the plants", Title: "Today", IsDate: true, Tags: []string{"daily"}},
			{UUID: "note-2", Data: "# Ideas\nship skald", Title: "Ideas", Tags: []string{"work"}, Projects: []string{"skald"}},
		},
		settings: sidebar.Settings{
			AutoSave:      true,
			KanbanColumns: []string{"todo", "doing", "done"},
		},
		nextID: 3,
	}
}

// Router builds the chi router with all fake API routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Post("/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(Token))

		r.Get("/sidebar", s.getSidebar)
		r.Get("/events", s.getEvents)
		r.Get("/external_events", s.getExternalEvents)
		r.Post("/search", s.search)

		r.Put("/save_task", s.saveTask)
		r.Put("/update_task_column", s.updateTaskColumn)
		r.Post("/toggle_auto_save", s.toggleSetting("auto_save"))
		r.Post("/toggle_vim_mode", s.toggleSetting("vim_mode"))
		r.Post("/toggle_kanban", s.toggleSetting("kanban"))
		r.Post("/kanban_columns", s.updateKanbanColumns)

		r.Get("/date", s.getDayNote)
		r.Get("/note", s.getNote)
		r.Get("/notes", s.listNotes)
		r.Put("/note", s.updateNote)

		r.Get("/external_calendars", s.listCalendars)
		r.Post("/external_calendars", s.addCalendar)
		r.Delete("/external_calendars/{uuid}", s.removeCalendar)

		r.Get("/events/stream", s.broker.ServeHTTP)
	})

	return r
}

// authMiddleware validates the Bearer token on every request.
func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("devserver: json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("username and password are required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": Token})
}

func (s *Server) getSidebar(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := map[string]struct{}{}
	projects := map[string]struct{}{}
	for _, n := range s.notes {
		for _, t := range n.Tags {
			tags[t] = struct{}{}
		}
		for _, p := range n.Projects {
			projects[p] = struct{}{}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tags":           keys(tags),
		"tasks":          s.tasks,
		"projects":       keys(projects),
		"notes":          s.notes,
		"auto_save":      s.settings.AutoSave,
		"vim_mode":       s.settings.VimMode,
		"kanban":         s.settings.Kanban,
		"kanban_columns": s.settings.KanbanColumns,
	})
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	// Activity markers around the requested date.
	base := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		if d, err := time.Parse(time.RFC3339, raw); err == nil {
			base = d
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": []string{
			base.Format("01-02-2006"),
			base.AddDate(0, 0, -1).Format("01-02-2006"),
		},
	})
}

func (s *Server) getExternalEvents(w http.ResponseWriter, r *http.Request) {
	base := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		if d, err := time.Parse(time.RFC3339, raw); err == nil {
			base = d
		}
	}
	start := time.Date(base.Year(), base.Month(), base.Day(), 9, 0, 0, 0, time.UTC)
	writeJSON(w, http.StatusOK, map[string]any{
		"events": []sidebar.ExternalEvent{
			{UUID: "ext-1", Title: "standup", Start: start, End: start.Add(15 * time.Minute), Calendar: "team"},
		},
	})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query    string `json:"query"`
		Selected string `json:"selected"`
		Search   string `json:"search"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	term := req.Query
	if term == "" {
		term = req.Search
	}
	if term == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("empty search"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var hits []sidebar.Note
	for _, n := range s.notes {
		if containsFold(n.Data, term) || containsFold(n.Title, term) {
			hit := n
			hit.Snippet = snippet(n.Data, term)
			hits = append(hits, hit)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": hits})
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func snippet(data, term string) string {
	idx := strings.Index(strings.ToLower(data), strings.ToLower(term))
	if idx < 0 {
		return ""
	}
	start := idx - 20
	if start < 0 {
		start = 0
	}
	end := idx + len(term) + 20
	if end > len(data) {
		end = len(data)
	}
	return data[start:end]
}

func (s *Server) saveTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		UUID string `json:"uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UUID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("uuid is required"))
		return
	}

	s.mu.Lock()
	var noteID string
	for i := range s.tasks {
		if s.tasks[i].UUID == req.UUID {
			s.tasks[i].Name = req.Name
			s.tasks[i].Done = strings.Contains(req.Name, "[x]")
			noteID = s.tasks[i].NoteID
		}
	}
	s.mu.Unlock()

	s.broker.Publish(event.KindTaskUpdated, event.Payload{
		TaskUUID:  req.UUID,
		TaskName:  req.Name,
		NoteUUID:  noteID,
		SessionID: r.Header.Get("X-Session-Id"),
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) updateTaskColumn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskUUID string `json:"task_uuid"`
		Column   string `json:"column"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TaskUUID == "" || req.Column == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("task_uuid and column are required"))
		return
	}

	s.mu.Lock()
	var oldTask, newTask string
	for i := range s.tasks {
		if s.tasks[i].UUID == req.TaskUUID {
			oldTask = s.tasks[i].Name
			s.tasks[i].Column = req.Column
			newTask = fmt.Sprintf("%s #%s", oldTask, req.Column)
			s.tasks[i].Name = newTask
		}
	}
	s.mu.Unlock()

	if oldTask == "" {
		writeJSON(w, http.StatusNotFound, errorBody("task not found"))
		return
	}

	s.broker.Publish(event.KindTaskColumnUpdated, event.Payload{
		TaskUUID:  req.TaskUUID,
		OldTask:   oldTask,
		NewTask:   newTask,
		Column:    req.Column,
		SessionID: r.Header.Get("X-Session-Id"),
	})
	writeJSON(w, http.StatusOK, map[string]string{"old_task": oldTask, "new_task": newTask})
}

func (s *Server) toggleSetting(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req map[string]bool
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}

		s.mu.Lock()
		switch name {
		case "auto_save":
			s.settings.AutoSave = req[name]
		case "vim_mode":
			s.settings.VimMode = req[name]
		case "kanban":
			s.settings.Kanban = req[name]
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) updateKanbanColumns(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Columns []string `json:"columns"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	s.mu.Lock()
	s.settings.KanbanColumns = req.Columns
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getDayNote(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notes {
		if n.IsDate {
			writeJSON(w, http.StatusOK, n)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody("not found"))
}

func (s *Server) getNote(w http.ResponseWriter, r *http.Request) {
	uuid := r.URL.Query().Get("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notes {
		if n.UUID == uuid {
			writeJSON(w, http.StatusOK, n)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody("not found"))
}

func (s *Server) listNotes(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.notes)
}

func (s *Server) updateNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UUID string `json:"uuid"`
		Data string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UUID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("uuid is required"))
		return
	}

	s.mu.Lock()
	var found *sidebar.Note
	for i := range s.notes {
		if s.notes[i].UUID == req.UUID {
			s.notes[i].Data = req.Data
			found = &s.notes[i]
		}
	}
	s.mu.Unlock()

	if found == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}

	s.broker.Publish(event.KindNoteUpdated, event.Payload{
		NoteUUID:  req.UUID,
		Title:     found.Title,
		IsDate:    found.IsDate,
		SessionID: r.Header.Get("X-Session-Id"),
	})
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) listCalendars(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"calendars": s.calendars})
}

func (s *Server) addCalendar(w http.ResponseWriter, r *http.Request) {
	var req calendarEntry
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name and url are required"))
		return
	}

	s.mu.Lock()
	req.UUID = fmt.Sprintf("cal-%d", s.nextID)
	s.nextID++
	s.calendars = append(s.calendars, req)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"calendar": req})
}

func (s *Server) removeCalendar(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.calendars {
		if c.UUID == uuid {
			s.calendars = append(s.calendars[:i], s.calendars[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody("not found"))
}

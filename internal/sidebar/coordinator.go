// Package sidebar holds the client's authoritative in-memory projection of
// cross-cutting UI state: calendar, tags, tasks, projects, notes, and
// search. One Coordinator exists per application instance; it is the sole
// mutator of its state, refreshed over the gateway in response to
// navigation and push events. Fetch failures are swallowed and leave the
// prior state intact; push events are hints to refresh, not an ordered log.
package sidebar

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// routeDateLayout is the MM-dd-yyyy form used in day-view route params and
// calendar markers.
const routeDateLayout = "01-02-2006"

// DateThrottleInterval is the trailing-edge window for UpdateDate.
const DateThrottleInterval = 250 * time.Millisecond

// Operation keys for the in-flight guard.
const (
	opCalendar = "calendar"
	opSidebar  = "sidebar"
	opSearch   = "search"
	opExternal = "external"
)

// Marker records IDs this process just mutated so the stream layer can
// recognize their echoes when the server pushes them back.
type Marker interface {
	Mark(id string)
}

// Coordinator is the sidebar/search state aggregate.
type Coordinator struct {
	api    api
	logger *slog.Logger
	guard  *flightGuard
	echo   Marker

	dateThrottle *throttle

	mu sync.Mutex
	st Snapshot

	obsMu     sync.Mutex
	nextObsID int
	observers map[int]func()
}

// api is the slice of the gateway the coordinator uses.
type api interface {
	Get(ctx context.Context, path string, params url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
}

// NewCoordinator creates the coordinator.
func NewCoordinator(api api, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		api:       api,
		logger:    logger,
		guard:     newFlightGuard(),
		observers: make(map[int]func()),
	}
	c.dateThrottle = newThrottle(DateThrottleInterval, c.applyDate)
	return c
}

// UseLocalEcho attaches the deduplicator that mutating operations mark, so
// the push events they cause are not treated as remote changes.
func (c *Coordinator) UseLocalEcho(m Marker) {
	c.echo = m
}

// markLocal flags an ID as locally mutated. Marked before the request goes
// out: the server may push the resulting event before the response lands.
func (c *Coordinator) markLocal(id string) {
	if c.echo != nil && id != "" {
		c.echo.Mark(id)
	}
}

// Subscribe registers a change observer and returns an unsubscribe
// function. Observers are invoked synchronously after each state change.
func (c *Coordinator) Subscribe(fn func()) (cancel func()) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.nextObsID++
	id := c.nextObsID
	c.observers[id] = fn
	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		delete(c.observers, id)
	}
}

func (c *Coordinator) notify() {
	c.obsMu.Lock()
	observers := make([]func(), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.obsMu.Unlock()
	for _, fn := range observers {
		fn()
	}
}

// State returns a copy of the current state.
func (c *Coordinator) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

// parseRouteDate is the pure transformation behind UpdateDate.
func parseRouteDate(param string) (time.Time, error) {
	return time.Parse(routeDateLayout, param)
}

// UpdateDate feeds a route's date param through the throttle gate; the
// actual parse and any dependent refresh run on the trailing edge.
func (c *Coordinator) UpdateDate(param string) {
	c.dateThrottle.Call(param)
}

func (c *Coordinator) applyDate(param string) {
	if param == "" {
		c.setDate(nil)
		return
	}
	d, err := parseRouteDate(param)
	if err != nil {
		c.logger.Warn("sidebar: unparseable route date", slog.String("param", param))
		c.setDate(nil)
		return
	}
	c.setDate(&d)
	c.GetExternalEvents(context.Background(), &d)
}

func (c *Coordinator) setDate(d *time.Time) {
	c.mu.Lock()
	c.st.Date = d
	c.mu.Unlock()
	c.notify()
}

// ClearDate drops the calendar date cursor (leaving the day view).
func (c *Coordinator) ClearDate() {
	c.dateThrottle.Stop()
	c.setDate(nil)
}

// ClearSearch drops the search inputs and results (leaving the search view).
func (c *Coordinator) ClearSearch() {
	c.mu.Lock()
	c.st.SelectedSearch = ""
	c.st.SearchString = ""
	c.st.Query = ""
	c.st.FilteredNotes = nil
	c.st.NavQuery = ""
	c.mu.Unlock()
	c.notify()
}

// SetSearch records the legacy scope/text search inputs.
func (c *Coordinator) SetSearch(selected, text string) {
	c.mu.Lock()
	c.st.SelectedSearch = selected
	c.st.SearchString = text
	c.mu.Unlock()
	c.notify()
}

// SetQuery records the structured free-text query.
func (c *Coordinator) SetQuery(query string) {
	c.mu.Lock()
	c.st.Query = query
	c.mu.Unlock()
	c.notify()
}

// GetEvents fetches the calendar activity markers for the current (or
// today's) date. A concurrent call is dropped while one is in flight.
func (c *Coordinator) GetEvents(ctx context.Context) {
	if !c.guard.begin(opCalendar) {
		return
	}
	defer c.guard.end(opCalendar)

	c.mu.Lock()
	date := time.Now()
	if c.st.Date != nil {
		date = *c.st.Date
	}
	c.st.CalLoading = true
	c.mu.Unlock()
	c.notify()

	defer func() {
		c.mu.Lock()
		c.st.CalLoading = false
		c.mu.Unlock()
		c.notify()
	}()

	params := url.Values{}
	params.Set("date", date.Format(time.RFC3339))

	var res eventsResponse
	if err := c.api.Get(ctx, "/events", params, &res); err != nil {
		c.logger.Warn("sidebar: calendar events fetch failed", slog.String("error", err.Error()))
		return
	}

	marks := make([]CalendarMark, 0, len(res.Events))
	for _, raw := range res.Events {
		d, err := time.Parse(routeDateLayout, raw)
		if err != nil {
			c.logger.Warn("sidebar: bad calendar marker", slog.String("value", raw))
			continue
		}
		marks = append(marks, CalendarMark{Date: d})
	}

	c.mu.Lock()
	c.st.Events = marks
	c.mu.Unlock()
}

// GetExternalEvents fetches externally-sourced calendar events for the
// given date (or the current cursor, or today). On failure the result is
// reset to empty rather than left ambiguous.
func (c *Coordinator) GetExternalEvents(ctx context.Context, date *time.Time) {
	if !c.guard.begin(opExternal) {
		return
	}
	defer c.guard.end(opExternal)

	c.mu.Lock()
	d := time.Now()
	if date != nil {
		d = *date
	} else if c.st.Date != nil {
		d = *c.st.Date
	}
	c.mu.Unlock()

	params := url.Values{}
	params.Set("date", d.Format(time.RFC3339))

	var res externalEventsResponse
	err := c.api.Get(ctx, "/external_events", params, &res)

	c.mu.Lock()
	if err != nil {
		c.logger.Warn("sidebar: external events fetch failed", slog.String("error", err.Error()))
		c.st.ExternalEvents = []ExternalEvent{}
	} else {
		c.st.ExternalEvents = res.Events
	}
	c.mu.Unlock()
	c.notify()
}

// GetSidebarInfo fetches the aggregate sidebar payload. showLoad controls
// the loading indicator. On success an active search is re-run so its
// results stay consistent with the new data.
func (c *Coordinator) GetSidebarInfo(ctx context.Context, showLoad bool) {
	if !c.guard.begin(opSidebar) {
		return
	}
	defer c.guard.end(opSidebar)

	if showLoad {
		c.mu.Lock()
		c.st.SidebarLoading = true
		c.mu.Unlock()
		c.notify()
	}

	defer func() {
		c.mu.Lock()
		c.st.SidebarLoading = false
		c.mu.Unlock()
		c.notify()
	}()

	var res sidebarResponse
	if err := c.api.Get(ctx, "/sidebar", nil, &res); err != nil {
		c.logger.Warn("sidebar: aggregate fetch failed", slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	c.st.Tags = res.Tags
	c.st.Tasks = res.Tasks
	c.st.Projects = res.Projects
	c.st.Notes = res.Notes
	c.st.Settings = Settings{
		AutoSave:      res.AutoSave,
		VimMode:       res.VimMode,
		Kanban:        res.Kanban,
		KanbanColumns: res.KanbanColumns,
	}
	searchActive := c.st.SelectedSearch != "" && c.st.SearchString != ""
	c.mu.Unlock()
	c.notify()

	if searchActive {
		c.SearchNotes(ctx)
	}
}

// SearchNotes runs the active search. The structured free-text query wins
// when populated; otherwise the legacy scope/text pair is used. The
// equivalent navigation query string is recorded either way.
func (c *Coordinator) SearchNotes(ctx context.Context) {
	if !c.guard.begin(opSearch) {
		return
	}
	defer c.guard.end(opSearch)

	c.mu.Lock()
	query := c.st.Query
	selected := c.st.SelectedSearch
	text := c.st.SearchString
	c.mu.Unlock()

	var body any
	var nav string
	switch {
	case query != "":
		body = map[string]string{"query": query}
		nav = url.Values{"q": {query}}.Encode()
	case selected != "" && text != "":
		body = map[string]string{"selected": selected, "search": text}
		nav = url.Values{selected: {text}}.Encode()
	default:
		// Nothing to search for.
		return
	}

	// The navigation query reflects the submitted search, not its outcome,
	// so it is recorded even when the fetch fails.
	c.mu.Lock()
	c.st.NavQuery = nav
	c.st.SearchLoading = true
	c.mu.Unlock()
	c.notify()

	defer func() {
		c.mu.Lock()
		c.st.SearchLoading = false
		c.mu.Unlock()
		c.notify()
	}()

	var res searchResponse
	if err := c.api.Post(ctx, "/search", body, &res); err != nil {
		c.logger.Warn("sidebar: search failed", slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	if res.Notes != nil {
		c.st.FilteredNotes = res.Notes
	} else {
		c.st.FilteredNotes = []Note{}
	}
	c.mu.Unlock()
}

// SaveTaskProgress persists a task state change, then reconciles.
func (c *Coordinator) SaveTaskProgress(ctx context.Context, name, uuid string) {
	c.markLocal(uuid)
	if err := c.api.Put(ctx, "/save_task", map[string]string{"name": name, "uuid": uuid}, nil); err != nil {
		c.logger.Warn("sidebar: save task failed", slog.String("error", err.Error()))
		return
	}
	c.GetSidebarInfo(ctx, false)
}

// ToggleAutoSave flips the auto-save setting, then reconciles.
func (c *Coordinator) ToggleAutoSave(ctx context.Context, on bool) {
	if err := c.api.Post(ctx, "/toggle_auto_save", map[string]bool{"auto_save": on}, nil); err != nil {
		c.logger.Warn("sidebar: toggle auto-save failed", slog.String("error", err.Error()))
		return
	}
	c.GetSidebarInfo(ctx, false)
}

// ToggleVimMode flips the vim-mode setting, then reconciles.
func (c *Coordinator) ToggleVimMode(ctx context.Context, on bool) {
	if err := c.api.Post(ctx, "/toggle_vim_mode", map[string]bool{"vim_mode": on}, nil); err != nil {
		c.logger.Warn("sidebar: toggle vim mode failed", slog.String("error", err.Error()))
		return
	}
	c.GetSidebarInfo(ctx, false)
}

// ToggleKanban flips the kanban setting and updates local state
// optimistically instead of refetching.
func (c *Coordinator) ToggleKanban(ctx context.Context, on bool) {
	if err := c.api.Post(ctx, "/toggle_kanban", map[string]bool{"kanban": on}, nil); err != nil {
		c.logger.Warn("sidebar: toggle kanban failed", slog.String("error", err.Error()))
		return
	}
	c.mu.Lock()
	c.st.Settings.Kanban = on
	c.mu.Unlock()
	c.notify()
}

// UpdateKanbanColumns stores a new column layout and updates local state
// optimistically instead of refetching.
func (c *Coordinator) UpdateKanbanColumns(ctx context.Context, columns []string) {
	if err := c.api.Post(ctx, "/kanban_columns", map[string][]string{"columns": columns}, nil); err != nil {
		c.logger.Warn("sidebar: update kanban columns failed", slog.String("error", err.Error()))
		return
	}
	c.mu.Lock()
	c.st.Settings.KanbanColumns = columns
	c.mu.Unlock()
	c.notify()
}

// UpdateTaskColumn moves a task to another kanban column, reconciles, and
// returns the old/new task text pair for caller-side transitions. On
// failure both strings are empty and state is untouched.
func (c *Coordinator) UpdateTaskColumn(ctx context.Context, taskUUID, column string) (oldTask, newTask string) {
	if taskUUID == "" || column == "" {
		return "", ""
	}
	c.markLocal(taskUUID)
	var res taskColumnResponse
	err := c.api.Put(ctx, "/update_task_column", map[string]string{
		"task_uuid": taskUUID,
		"column":    column,
	}, &res)
	if err != nil {
		c.logger.Warn("sidebar: update task column failed", slog.String("error", err.Error()))
		return "", ""
	}
	c.GetSidebarInfo(ctx, false)
	return res.OldTask, res.NewTask
}

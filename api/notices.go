package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/swinetrack/breeding-engine/breeding"
	"github.com/swinetrack/breeding-engine/jobs"
)

// =============================================================================
// CALENDAR EVENTS
// =============================================================================

// ListCalendarEvents lists events in [from, to] (RFC 3339, both optional).
func (h *Handler) ListCalendarEvents(w http.ResponseWriter, r *http.Request) {
	var from, to time.Time
	for name, dst := range map[string]*time.Time{"from": &from, "to": &to} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "Invalid "+name+" (use RFC 3339)", err)
			return
		}
		*dst = t
	}
	events, err := h.store().ListCalendarEvents(r.Context(), from, to)
	list(h, w, r, events, err)
}

func (h *Handler) CreateCalendarEvent(w http.ResponseWriter, r *http.Request) {
	var req CalendarEventRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	e, err := h.coord.CreateCalendarEvent(r.Context(), breeding.CalendarEvent{
		Title:       req.Title,
		EventDate:   req.EventDate,
		EventType:   req.EventType,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, e)
}

func (h *Handler) updateCalendarEvent(ctx context.Context, id int64, req CalendarEventUpdate) (*breeding.CalendarEvent, error) {
	return h.coord.UpdateCalendarEvent(ctx, id, breeding.CalendarEventPatch{
		Title:       req.Title,
		EventDate:   req.EventDate,
		EventType:   req.EventType,
		Description: req.Description,
	})
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// ListNotifications lists notifications newest first (?unread=true, ?limit).
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeBadRequest(w, "Invalid query", err)
		return
	}
	notes, err := h.store().ListNotifications(r.Context(), breeding.NotificationFilter{
		UnreadOnly: r.URL.Query().Get("unread") == "true",
		Limit:      limit,
	})
	list(h, w, r, notes, err)
}

// GenerateNotifications runs the notification job now.
// POST /api/notifications/generate
func (h *Handler) GenerateNotifications(w http.ResponseWriter, r *http.Request) {
	var res jobs.NotificationRunResult
	err := h.runJob(r.Context(), jobs.Notifications, func(ctx context.Context) error {
		var err error
		res, err = h.jobs.Notifications.Run(ctx)
		return err
	})
	if err != nil && res.RunID == "" {
		h.writeError(w, r, err)
		return
	}
	// Rule failures are reported in the summary; the run itself completed.
	writeData(w, http.StatusOK, res)
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "Invalid id", err)
		return
	}
	n, err := h.coord.MarkNotificationRead(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, n)
}

func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.coord.MarkAllNotificationsRead(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int{"marked": n})
}

// =============================================================================
// JOBS
// =============================================================================

// ListJobs returns the schedule and last run of every job.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		writeData(w, http.StatusOK, []jobs.EntryStatus{})
		return
	}
	writeData(w, http.StatusOK, h.sched.Entries())
}

// RunJob runs a job by name.
// POST /api/jobs/{name}/run
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.sched == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "scheduler not configured"})
		return
	}
	err := h.sched.RunNow(r.Context(), name)
	if errors.Is(err, jobs.ErrUnknownJob) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"job": name, "status": "completed"})
}

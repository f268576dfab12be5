package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/swinetrack/breeding-engine/breeding"
)

// =============================================================================
// CALENDAR EVENTS
// =============================================================================

const eventColumns = `id, title, event_date, event_type, description, ` + auditColumns

func scanEvent(row rowScanner) (breeding.CalendarEvent, error) {
	var e breeding.CalendarEvent
	dest := []any{&e.ID, &e.Title, &e.EventDate, &e.EventType, &e.Description}
	if err := row.Scan(append(dest, auditDest(&e.Audit)...)...); err != nil {
		return e, err
	}
	e.EventDate = e.EventDate.UTC()
	return e, nil
}

func (r *repo) GetCalendarEvent(ctx context.Context, id int64) (*breeding.CalendarEvent, error) {
	return getOne(ctx, r, "calendar event", id, `SELECT `+eventColumns+` FROM calendar_events WHERE id = ?`, scanEvent)
}

func (r *repo) ListCalendarEvents(ctx context.Context, from, to time.Time) ([]breeding.CalendarEvent, error) {
	var w where
	if !from.IsZero() {
		w.add("event_date >= ?", from.UTC())
	}
	if !to.IsZero() {
		w.add("event_date <= ?", to.UTC())
	}
	query := `SELECT ` + eventColumns + ` FROM calendar_events` + w.String() + ` ORDER BY event_date, id`
	return list(ctx, r, "calendar events", query, w.args, scanEvent)
}

func (r *repo) CreateCalendarEvent(ctx context.Context, e *breeding.CalendarEvent) error {
	id, err := r.insert(ctx, `
		INSERT INTO calendar_events (title, event_date, event_type, description, `+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		withAudit(e.Audit, e.Title, e.EventDate.UTC(), string(e.EventType), e.Description)...)
	if err != nil {
		return r.writeErr(err, "calendar event", "", "")
	}
	e.ID = id
	return nil
}

func (r *repo) UpdateCalendarEvent(ctx context.Context, e *breeding.CalendarEvent) error {
	return r.affectOne(ctx, "calendar event", e.ID, `
		UPDATE calendar_events SET title = ?, event_date = ?, event_type = ?, description = ?,
			updated_by = ?, updated_at = ?
		WHERE id = ?`,
		e.Title, e.EventDate.UTC(), string(e.EventType), e.Description, e.UpdatedBy, e.UpdatedAt.UTC(), e.ID)
}

func (r *repo) DeleteCalendarEvent(ctx context.Context, id int64) error {
	return r.affectOne(ctx, "calendar event", id, `DELETE FROM calendar_events WHERE id = ?`, id)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

const notificationColumns = `id, type, priority, title, message, reference_type, reference_id,
	action_url, is_read, read_at, expires_at, created_at`

func scanNotification(row rowScanner) (breeding.Notification, error) {
	var (
		n             breeding.Notification
		read, expires sql.NullTime
	)
	err := row.Scan(&n.ID, &n.Type, &n.Priority, &n.Title, &n.Message, &n.ReferenceType, &n.ReferenceID,
		&n.ActionURL, &n.IsRead, &read, &expires, &n.CreatedAt)
	if err != nil {
		return n, err
	}
	n.ReadAt, n.ExpiresAt, n.CreatedAt = timePtr(read), timePtr(expires), n.CreatedAt.UTC()
	return n, nil
}

func (r *repo) GetNotification(ctx context.Context, id int64) (*breeding.Notification, error) {
	return getOne(ctx, r, "notification", id, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, scanNotification)
}

func (r *repo) ListNotifications(ctx context.Context, f breeding.NotificationFilter) ([]breeding.Notification, error) {
	var w where
	if f.UnreadOnly {
		w.add("is_read = ?", false)
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications` + w.String() +
		` ORDER BY created_at DESC, id DESC` + limitClause(f.Limit)
	return list(ctx, r, "notifications", query, w.args, scanNotification)
}

func (r *repo) NotificationExists(ctx context.Context, q breeding.NotificationLookup) (bool, error) {
	var w where
	w.add("type = ?", string(q.Type))
	w.add("reference_type = ?", q.ReferenceType)
	w.add("reference_id = ?", q.ReferenceID)
	if q.UnreadOnly {
		w.add("is_read = ?", false)
	}
	if !q.Since.IsZero() {
		w.add("created_at >= ?", q.Since.UTC())
	}
	var exists bool
	err := r.q.QueryRowContext(ctx, r.d.Rebind(`SELECT EXISTS (SELECT 1 FROM notifications`+w.String()+`)`), w.args...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to probe notifications: %w", err)
	}
	return exists, nil
}

func (r *repo) CreateNotification(ctx context.Context, n *breeding.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx, `
		INSERT INTO notifications (type, priority, title, message, reference_type, reference_id,
			action_url, is_read, read_at, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(n.Type), string(n.Priority), n.Title, n.Message, n.ReferenceType, n.ReferenceID,
		n.ActionURL, n.IsRead, optTime(n.ReadAt), optTime(n.ExpiresAt), n.CreatedAt.UTC())
	if err != nil {
		return r.writeErr(err, "notification", "", "")
	}
	n.ID = id
	return nil
}

func (r *repo) MarkNotificationRead(ctx context.Context, id int64, at time.Time) error {
	return r.affectOne(ctx, "notification", id,
		`UPDATE notifications SET is_read = ?, read_at = ? WHERE id = ?`, true, at.UTC(), id)
}

func (r *repo) MarkAllNotificationsRead(ctx context.Context, at time.Time) (int, error) {
	res, err := r.exec(ctx, `UPDATE notifications SET is_read = ?, read_at = ? WHERE is_read = ?`, true, at.UTC(), false)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *repo) PurgeNotifications(ctx context.Context, readBefore, now time.Time) (int, error) {
	res, err := r.exec(ctx, `
		DELETE FROM notifications
		WHERE (is_read = ? AND created_at < ?) OR (expires_at IS NOT NULL AND expires_at < ?)`,
		true, readBefore.UTC(), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func optTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

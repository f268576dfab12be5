package breeding

import (
	"context"
	"strings"
	"time"
)

// CalendarEventPatch lists the editable calendar event fields.
type CalendarEventPatch struct {
	Title       *string
	EventDate   *time.Time
	EventType   *CalendarEventType
	Description *string
}

// Calendar events are farm-wide and do not touch any sow projection, so they
// skip the sow lock.

func (c *Coordinator) CreateCalendarEvent(ctx context.Context, e CalendarEvent) (*CalendarEvent, error) {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return nil, Invalid("title", "is required")
	}
	if e.EventDate.IsZero() {
		return nil, Invalid("event_date", "is required")
	}
	if e.EventType == "" {
		e.EventType = EventCustom
	}
	if err := validEventType(e.EventType); err != nil {
		return nil, err
	}
	c.stampCreate(ctx, &e.Audit)
	if err := c.store.WithTx(ctx, func(tx Repository) error { return tx.CreateCalendarEvent(ctx, &e) }); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Coordinator) UpdateCalendarEvent(ctx context.Context, id int64, p CalendarEventPatch) (*CalendarEvent, error) {
	var out *CalendarEvent
	err := c.store.WithTx(ctx, func(tx Repository) error {
		e, err := tx.GetCalendarEvent(ctx, id)
		if err != nil {
			return err
		}
		if p.Title != nil {
			title := strings.TrimSpace(*p.Title)
			if title == "" {
				return Invalid("title", "cannot be empty")
			}
			e.Title = title
		}
		if p.EventDate != nil {
			if p.EventDate.IsZero() {
				return Invalid("event_date", "cannot be empty")
			}
			e.EventDate = *p.EventDate
		}
		if p.EventType != nil {
			if err := validEventType(*p.EventType); err != nil {
				return err
			}
			e.EventType = *p.EventType
		}
		setString(&e.Description, p.Description)
		c.stampUpdate(ctx, &e.Audit)
		if err := tx.UpdateCalendarEvent(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

func (c *Coordinator) DeleteCalendarEvent(ctx context.Context, id int64) error {
	return c.store.WithTx(ctx, func(tx Repository) error {
		if _, err := tx.GetCalendarEvent(ctx, id); err != nil {
			return err
		}
		return tx.DeleteCalendarEvent(ctx, id)
	})
}

// MarkNotificationRead flags one notification as read.
func (c *Coordinator) MarkNotificationRead(ctx context.Context, id int64) (*Notification, error) {
	var out *Notification
	err := c.store.WithTx(ctx, func(tx Repository) error {
		n, err := tx.GetNotification(ctx, id)
		if err != nil {
			return err
		}
		if !n.IsRead {
			at := c.now().UTC()
			if err := tx.MarkNotificationRead(ctx, id, at); err != nil {
				return err
			}
			n.IsRead, n.ReadAt = true, &at
		}
		out = n
		return nil
	})
	return out, err
}

// MarkAllNotificationsRead flags every unread notification and returns how many changed.
func (c *Coordinator) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	var n int
	err := c.store.WithTx(ctx, func(tx Repository) error {
		var err error
		n, err = tx.MarkAllNotificationsRead(ctx, c.now().UTC())
		return err
	})
	return n, err
}

func validEventType(t CalendarEventType) error {
	switch t {
	case EventCustom, EventVaccination, EventCheckup, EventWeaning, EventFarrowing:
		return nil
	}
	return Invalid("event_type", "must be custom, vaccination, checkup, weaning or farrowing")
}

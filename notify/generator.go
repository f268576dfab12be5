/*
Package notify turns temporal windows in the herd into farm-wide alerts.

RULES:
  calendar              events in the next 24h; high within the hour
  upcoming farrowing    confirmed pregnancies due within 7 days;
                        urgent at <=1 day, high at <=3 days
  overdue farrowing     in-progress pregnancies past their expected date
  unserviced heat       detected heats 2-3 days old with no service;
                        high from day 3
  pending confirmation  unconfirmed pregnancies older than one heat cycle
  cleanup               read alerts older than 30 days and expired alerts

DEDUPLICATION:
  Each rule probes for an earlier alert on the same record before creating
  one. Calendar and heat alerts are suppressed for 12 hours whether read or
  not; pregnancy alerts are suppressed while an unread one younger than the
  rule's window exists.

ISOLATION:
  A failing rule is logged and reported in Summary.Errors; the remaining
  rules still run.
*/
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/swinetrack/breeding-engine/breeding"
)

const (
	calendarHorizon   = 24 * time.Hour
	calendarDedupe    = 12 * time.Hour
	heatDedupe        = 12 * time.Hour
	farrowingHorizon  = 7
	farrowingDedupe   = 3 * 24 * time.Hour
	confirmDedupe     = 7 * 24 * time.Hour
	readRetentionDays = 30
)

// Summary counts what one run produced.
type Summary struct {
	Calendar            int      `json:"calendar"`
	UpcomingFarrowing   int      `json:"upcoming_farrowing"`
	OverdueFarrowing    int      `json:"overdue_farrowing"`
	UnservicedHeats     int      `json:"unserviced_heats"`
	PendingConfirmation int      `json:"pending_confirmation"`
	Purged              int      `json:"purged"`
	Errors              []string `json:"errors,omitempty"`
}

// Created is the number of notifications written by the run.
func (s Summary) Created() int {
	return s.Calendar + s.UpcomingFarrowing + s.OverdueFarrowing + s.UnservicedHeats + s.PendingConfirmation
}

// Generator evaluates the rules against a store.
type Generator struct {
	store   breeding.Store
	clock   breeding.Clock
	periods breeding.Periods
	logger  *zap.Logger
}

type Option func(*Generator)

func WithClock(c breeding.Clock) Option     { return func(g *Generator) { g.clock = c } }
func WithPeriods(p breeding.Periods) Option { return func(g *Generator) { g.periods = p } }
func WithLogger(l *zap.Logger) Option       { return func(g *Generator) { g.logger = l } }

func New(store breeding.Store, opts ...Option) *Generator {
	g := &Generator{
		store:   store,
		clock:   breeding.SystemClock{},
		periods: breeding.DefaultPeriods(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.periods = g.periods.WithDefaults()
	return g
}

// Run evaluates every rule once.
func (g *Generator) Run(ctx context.Context) (Summary, error) {
	var (
		sum  Summary
		errs []error
	)
	now := g.clock.Now()
	today := breeding.DateOf(now)

	steps := []struct {
		name string
		dst  *int
		fn   func(context.Context, time.Time, breeding.Date) (int, error)
	}{
		{"calendar", &sum.Calendar, g.calendar},
		{"upcoming farrowing", &sum.UpcomingFarrowing, g.upcomingFarrowing},
		{"overdue farrowing", &sum.OverdueFarrowing, g.overdueFarrowing},
		{"unserviced heats", &sum.UnservicedHeats, g.unservicedHeats},
		{"pending confirmation", &sum.PendingConfirmation, g.pendingConfirmation},
		{"cleanup", &sum.Purged, g.cleanup},
	}
	for _, step := range steps {
		n, err := step.fn(ctx, now, today)
		*step.dst = n
		if err != nil {
			g.logger.Error("notification rule failed", zap.String("rule", step.name), zap.Error(err))
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", step.name, err))
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}

	g.logger.Info("notifications generated",
		zap.Int("created", sum.Created()),
		zap.Int("purged", sum.Purged),
		zap.Int("failed_rules", len(errs)))
	return sum, errors.Join(errs...)
}

// =============================================================================
// RULES
// =============================================================================

func (g *Generator) calendar(ctx context.Context, now time.Time, _ breeding.Date) (int, error) {
	events, err := g.store.ListCalendarEvents(ctx, now, now.Add(calendarHorizon))
	if err != nil {
		return 0, err
	}
	created := 0
	for _, e := range events {
		if !e.EventDate.After(now) {
			continue
		}
		lookup := breeding.NotificationLookup{
			Type: breeding.NotifyCalendar, ReferenceType: "calendar_event", ReferenceID: e.ID,
			Since: now.Add(-calendarDedupe),
		}
		hours := int(e.EventDate.Sub(now).Hours())
		n := breeding.Notification{
			Type:          breeding.NotifyCalendar,
			Priority:      breeding.PriorityNormal,
			ReferenceType: "calendar_event",
			ReferenceID:   e.ID,
			ActionURL:     "/calendar",
		}
		switch {
		case hours <= 1:
			n.Title, n.Priority = "Event within the hour", breeding.PriorityHigh
			n.Message = withDescription(e.Title, e.Description)
		case hours <= 6:
			n.Title = "Event later today"
			n.Message = withDescription(fmt.Sprintf("%s in %d hours", e.Title, hours), e.Description)
		default:
			n.Title = "Event reminder"
			n.Message = withDescription(e.Title+" tomorrow", e.Description)
		}
		expires := e.EventDate.Add(calendarHorizon)
		n.ExpiresAt = &expires

		ok, err := g.create(ctx, lookup, n, now)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (g *Generator) upcomingFarrowing(ctx context.Context, now time.Time, today breeding.Date) (int, error) {
	confirmed := true
	to := today.AddDays(farrowingHorizon)
	pregs, err := g.store.ListPregnancies(ctx, breeding.PregnancyFilter{
		Status:        breeding.PregnancyInProgress,
		Confirmed:     &confirmed,
		FarrowingFrom: &today,
		FarrowingTo:   &to,
	})
	if err != nil {
		return 0, err
	}
	names := g.sowNames()
	created := 0
	for _, p := range pregs {
		name, err := names(ctx, p.SowID)
		if err != nil {
			return created, err
		}
		days := breeding.DaysBetween(today, p.ExpectedFarrowingDate)
		n := breeding.Notification{
			Type:          breeding.NotifyBirth,
			ReferenceType: "pregnancy",
			ReferenceID:   p.ID,
			ActionURL:     fmt.Sprintf("/pregnancies?sow=%d", p.SowID),
		}
		switch {
		case days <= 1:
			n.Title, n.Priority = "Farrowing imminent", breeding.PriorityUrgent
			n.Message = fmt.Sprintf("Sow %s may farrow today. Prepare the farrowing crate.", name)
		case days <= 3:
			n.Title, n.Priority = "Farrowing soon", breeding.PriorityHigh
			n.Message = fmt.Sprintf("Sow %s may farrow in %d days. Check preparations.", name, days)
		default:
			n.Title, n.Priority = "Farrowing scheduled", breeding.PriorityNormal
			n.Message = fmt.Sprintf("Sow %s is due to farrow in %d days.", name, days)
		}
		ok, err := g.create(ctx, pregnancyLookup(breeding.NotifyBirth, p.ID, now, farrowingDedupe), n, now)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (g *Generator) overdueFarrowing(ctx context.Context, now time.Time, today breeding.Date) (int, error) {
	yesterday := today.AddDays(-1)
	pregs, err := g.store.ListPregnancies(ctx, breeding.PregnancyFilter{
		Status:      breeding.PregnancyInProgress,
		FarrowingTo: &yesterday,
	})
	if err != nil {
		return 0, err
	}
	names := g.sowNames()
	created := 0
	for _, p := range pregs {
		name, err := names(ctx, p.SowID)
		if err != nil {
			return created, err
		}
		late := breeding.DaysBetween(p.ExpectedFarrowingDate, today)
		n := breeding.Notification{
			Type:          breeding.NotifyBirth,
			Priority:      breeding.PriorityHigh,
			Title:         "Farrowing overdue",
			Message:       fmt.Sprintf("Sow %s was due to farrow %d days ago. Record the birth or review the pregnancy.", name, late),
			ReferenceType: "pregnancy",
			ReferenceID:   p.ID,
			ActionURL:     fmt.Sprintf("/pregnancies/%d", p.ID),
		}
		ok, err := g.create(ctx, pregnancyLookup(breeding.NotifyBirth, p.ID, now, farrowingDedupe), n, now)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (g *Generator) unservicedHeats(ctx context.Context, now time.Time, today breeding.Date) (int, error) {
	from, to := today.AddDays(-3), today.AddDays(-2)
	heats, err := g.store.ListHeats(ctx, breeding.HeatFilter{
		Statuses:   []breeding.HeatStatus{breeding.HeatDetected},
		Unserviced: true,
		HeatFrom:   &from,
		HeatTo:     &to,
	})
	if err != nil {
		return 0, err
	}
	names := g.sowNames()
	created := 0
	for _, h := range heats {
		name, err := names(ctx, h.SowID)
		if err != nil {
			return created, err
		}
		days := breeding.DaysBetween(h.HeatDate, today)
		n := breeding.Notification{
			Type:          breeding.NotifyHeat,
			Priority:      breeding.PriorityNormal,
			Title:         "Heat without service",
			Message:       fmt.Sprintf("Sow %s has been in heat for %d days and has not been serviced.", name, days),
			ReferenceType: "heat",
			ReferenceID:   h.ID,
			ActionURL:     fmt.Sprintf("/heats?sow=%d", h.SowID),
		}
		if days >= 3 {
			n.Priority = breeding.PriorityHigh
		}
		lookup := breeding.NotificationLookup{
			Type: breeding.NotifyHeat, ReferenceType: "heat", ReferenceID: h.ID, Since: now.Add(-heatDedupe),
		}
		ok, err := g.create(ctx, lookup, n, now)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (g *Generator) pendingConfirmation(ctx context.Context, now time.Time, today breeding.Date) (int, error) {
	unconfirmed := false
	before := today.AddDays(-g.periods.HeatCycleDays)
	pregs, err := g.store.ListPregnancies(ctx, breeding.PregnancyFilter{
		Status:          breeding.PregnancyInProgress,
		Confirmed:       &unconfirmed,
		ConceivedBefore: &before,
	})
	if err != nil {
		return 0, err
	}
	names := g.sowNames()
	created := 0
	for _, p := range pregs {
		name, err := names(ctx, p.SowID)
		if err != nil {
			return created, err
		}
		n := breeding.Notification{
			Type:     breeding.NotifyPregnancy,
			Priority: breeding.PriorityNormal,
			Title:    "Confirm pregnancy",
			Message: fmt.Sprintf("Sow %s should be checked to confirm pregnancy (%d days since conception).",
				name, breeding.DaysBetween(p.ConceptionDate, today)),
			ReferenceType: "pregnancy",
			ReferenceID:   p.ID,
			ActionURL:     fmt.Sprintf("/pregnancies/%d", p.ID),
		}
		ok, err := g.create(ctx, pregnancyLookup(breeding.NotifyPregnancy, p.ID, now, confirmDedupe), n, now)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (g *Generator) cleanup(ctx context.Context, now time.Time, _ breeding.Date) (int, error) {
	return g.store.PurgeNotifications(ctx, now.AddDate(0, 0, -readRetentionDays), now)
}

// =============================================================================
// HELPERS
// =============================================================================

// create writes n unless lookup finds an earlier alert.
func (g *Generator) create(ctx context.Context, lookup breeding.NotificationLookup, n breeding.Notification, now time.Time) (bool, error) {
	exists, err := g.store.NotificationExists(ctx, lookup)
	if err != nil || exists {
		return false, err
	}
	n.CreatedAt = now
	if err := g.store.CreateNotification(ctx, &n); err != nil {
		return false, err
	}
	return true, nil
}

func pregnancyLookup(t breeding.NotificationType, id int64, now time.Time, window time.Duration) breeding.NotificationLookup {
	return breeding.NotificationLookup{
		Type: t, ReferenceType: "pregnancy", ReferenceID: id,
		Since: now.Add(-window), UnreadOnly: true,
	}
}

// sowNames returns a per-rule cached lookup of a sow's display name: the
// alias when set, otherwise the ear tag.
func (g *Generator) sowNames() func(context.Context, int64) (string, error) {
	cache := make(map[int64]string)
	return func(ctx context.Context, id int64) (string, error) {
		if name, ok := cache[id]; ok {
			return name, nil
		}
		s, err := g.store.GetSow(ctx, id)
		if err != nil {
			return "", err
		}
		name := s.EarTag
		if s.Alias != "" {
			name = s.Alias
		}
		cache[id] = name
		return name, nil
	}
}

func withDescription(msg, desc string) string {
	if desc == "" {
		return msg
	}
	return msg + " - " + desc
}

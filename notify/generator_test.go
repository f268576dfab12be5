package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swinetrack/breeding-engine/breeding"
	"github.com/swinetrack/breeding-engine/notify"
	"github.com/swinetrack/breeding-engine/store/memory"
)

var now = time.Date(2025, time.June, 30, 9, 0, 0, 0, time.UTC)

type farm struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Memory
	coord *breeding.Coordinator
	gen   *notify.Generator
}

func newFarm(t *testing.T) *farm {
	store := memory.New()
	clock := breeding.FixedClock{At: now}
	return &farm{
		t:     t,
		ctx:   context.Background(),
		store: store,
		coord: breeding.NewCoordinator(store, breeding.WithClock(clock)),
		gen:   notify.New(store, notify.WithClock(clock)),
	}
}

func day(s string) breeding.Date { return breeding.MustDate(s) }

// pregnant registers heat, service and pregnancy on the conception date and
// confirms it when confirmOn is not empty.
func (f *farm) pregnant(tag, alias, conception, confirmOn string) *breeding.Pregnancy {
	f.t.Helper()
	sow, err := f.coord.CreateSow(f.ctx, breeding.Sow{EarTag: tag, Alias: alias})
	require.NoError(f.t, err)
	heat, _, err := f.coord.RegisterHeat(f.ctx, breeding.Heat{SowID: sow.ID, HeatDate: day(conception)})
	require.NoError(f.t, err)
	svc, _, err := f.coord.RegisterService(f.ctx, breeding.Service{
		SowID: sow.ID, HeatID: heat.ID, ServiceDate: day(conception), ServiceType: breeding.ServiceArtificial,
	})
	require.NoError(f.t, err)
	preg, _, err := f.coord.RegisterPregnancy(f.ctx, breeding.Pregnancy{
		SowID: sow.ID, ServiceID: svc.ID, ConceptionDate: day(conception),
	})
	require.NoError(f.t, err)
	if confirmOn != "" {
		preg, err = f.coord.ConfirmPregnancy(f.ctx, preg.ID, breeding.Confirmation{
			Date: day(confirmOn), Method: breeding.ConfirmUltrasound,
		})
		require.NoError(f.t, err)
	}
	return preg
}

func (f *farm) inHeat(tag, date string) *breeding.Heat {
	f.t.Helper()
	sow, err := f.coord.CreateSow(f.ctx, breeding.Sow{EarTag: tag})
	require.NoError(f.t, err)
	heat, _, err := f.coord.RegisterHeat(f.ctx, breeding.Heat{SowID: sow.ID, HeatDate: day(date)})
	require.NoError(f.t, err)
	return heat
}

func (f *farm) event(title string, at time.Time) *breeding.CalendarEvent {
	f.t.Helper()
	e, err := f.coord.CreateCalendarEvent(f.ctx, breeding.CalendarEvent{
		Title: title, EventDate: at, EventType: breeding.EventVaccination,
	})
	require.NoError(f.t, err)
	return e
}

func (f *farm) notifications() map[string]breeding.Notification {
	f.t.Helper()
	list, err := f.store.ListNotifications(f.ctx, breeding.NotificationFilter{})
	require.NoError(f.t, err)
	out := make(map[string]breeding.Notification, len(list))
	for _, n := range list {
		out[n.Title] = n
	}
	return out
}

// =============================================================================
// RULES
// =============================================================================

func TestRun_EveryRuleFires(t *testing.T) {
	// GIVEN: One record in each alert window
	// WHEN: The generator runs
	// THEN: One alert per record, with priorities set by proximity

	f := newFarm(t)
	due := f.pregnant("S-1", "Bella", "2025-03-09", "2025-04-01") // farrows 2025-07-01
	late := f.pregnant("S-4", "", "2025-03-01", "2025-03-25")     // farrowed 2025-06-23
	pending := f.pregnant("S-3", "", "2025-06-01", "")            // 29 days unconfirmed
	heat := f.inHeat("S-2", "2025-06-27")                         // 3 days, no service
	soon := f.event("Vaccinate gilts", now.Add(30*time.Minute))
	f.event("Vet visit", now.Add(23*time.Hour))
	f.event("Next week", now.Add(72*time.Hour))

	sum, err := f.gen.Run(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Calendar)
	assert.Equal(t, 1, sum.UpcomingFarrowing)
	assert.Equal(t, 1, sum.OverdueFarrowing)
	assert.Equal(t, 1, sum.UnservicedHeats)
	assert.Equal(t, 1, sum.PendingConfirmation)
	assert.Equal(t, 6, sum.Created())
	assert.Empty(t, sum.Errors)

	got := f.notifications()
	require.Len(t, got, 6)

	imminent := got["Farrowing imminent"]
	assert.Equal(t, breeding.PriorityUrgent, imminent.Priority)
	assert.Equal(t, breeding.NotifyBirth, imminent.Type)
	assert.Equal(t, due.ID, imminent.ReferenceID)
	assert.Contains(t, imminent.Message, "Bella")

	overdue := got["Farrowing overdue"]
	assert.Equal(t, breeding.PriorityHigh, overdue.Priority)
	assert.Equal(t, late.ID, overdue.ReferenceID)
	assert.Contains(t, overdue.Message, "7 days ago")

	confirm := got["Confirm pregnancy"]
	assert.Equal(t, breeding.NotifyPregnancy, confirm.Type)
	assert.Equal(t, pending.ID, confirm.ReferenceID)

	h := got["Heat without service"]
	assert.Equal(t, breeding.PriorityHigh, h.Priority)
	assert.Equal(t, heat.ID, h.ReferenceID)
	assert.Contains(t, h.Message, "S-2")

	within := got["Event within the hour"]
	assert.Equal(t, breeding.PriorityHigh, within.Priority)
	assert.Equal(t, soon.ID, within.ReferenceID)
	require.NotNil(t, within.ExpiresAt)

	assert.Equal(t, breeding.PriorityNormal, got["Event reminder"].Priority)
	assert.Contains(t, got["Event reminder"].Message, "tomorrow")
}

func TestRun_FarrowingPriorityByProximity(t *testing.T) {
	f := newFarm(t)
	f.pregnant("S-1", "", "2025-03-11", "2025-04-01") // 3 days
	f.pregnant("S-2", "", "2025-03-14", "2025-04-01") // 6 days
	f.pregnant("S-3", "", "2025-03-20", "2025-04-01") // 12 days, outside

	sum, err := f.gen.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.UpcomingFarrowing)

	got := f.notifications()
	assert.Equal(t, breeding.PriorityHigh, got["Farrowing soon"].Priority)
	assert.Equal(t, breeding.PriorityNormal, got["Farrowing scheduled"].Priority)
}

func TestRun_HeatWindowBounds(t *testing.T) {
	// GIVEN: Heats 1, 2 and 4 days old
	// WHEN: The generator runs
	// THEN: Only the 2-day heat is flagged, at normal priority

	f := newFarm(t)
	f.inHeat("S-1", "2025-06-29")
	two := f.inHeat("S-2", "2025-06-28")
	f.inHeat("S-3", "2025-06-26")

	sum, err := f.gen.Run(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sum.UnservicedHeats)

	n := f.notifications()["Heat without service"]
	assert.Equal(t, two.ID, n.ReferenceID)
	assert.Equal(t, breeding.PriorityNormal, n.Priority)
}

// =============================================================================
// DEDUPLICATION
// =============================================================================

func TestRun_Deduplicates(t *testing.T) {
	// GIVEN: A farm that has already been notified
	// WHEN: The generator runs again, then again after everything is read
	// THEN: Nothing is repeated; once read, only pregnancy alerts come back

	f := newFarm(t)
	f.pregnant("S-1", "", "2025-03-09", "2025-04-01")
	f.pregnant("S-3", "", "2025-06-01", "")
	f.inHeat("S-2", "2025-06-27")
	f.event("Vaccinate gilts", now.Add(2*time.Hour))

	first, err := f.gen.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Created())

	second, err := f.gen.Run(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Created())

	marked, err := f.coord.MarkAllNotificationsRead(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, marked)

	third, err := f.gen.Run(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, third.Calendar)
	assert.Zero(t, third.UnservicedHeats)
	assert.Equal(t, 1, third.UpcomingFarrowing)
	assert.Equal(t, 1, third.PendingConfirmation)
}

// =============================================================================
// CLEANUP
// =============================================================================

func TestRun_PurgesStaleAndExpired(t *testing.T) {
	f := newFarm(t)
	expired := now.Add(-time.Hour)
	seed := []breeding.Notification{
		{Type: breeding.NotifyHeat, Title: "old read", IsRead: true, CreatedAt: now.AddDate(0, 0, -40)},
		{Type: breeding.NotifyHeat, Title: "old unread", CreatedAt: now.AddDate(0, 0, -40)},
		{Type: breeding.NotifyCalendar, Title: "expired", CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: &expired},
		{Type: breeding.NotifyHeat, Title: "recent read", IsRead: true, CreatedAt: now.AddDate(0, 0, -2)},
	}
	for i := range seed {
		require.NoError(t, f.store.CreateNotification(f.ctx, &seed[i]))
	}

	sum, err := f.gen.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Purged)

	got := f.notifications()
	assert.Contains(t, got, "old unread")
	assert.Contains(t, got, "recent read")
	assert.NotContains(t, got, "old read")
	assert.NotContains(t, got, "expired")
}

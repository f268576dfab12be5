// Package memory provides an in-memory breeding.Store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/swinetrack/breeding-engine/breeding"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every table in maps guarded by one RWMutex. Transactions are
// simulated with a snapshot taken under the write lock and restored on error.
type Memory struct {
	mu sync.RWMutex
	st *state
}

func New() *Memory {
	return &Memory{st: newState()}
}

var _ breeding.Store = (*Memory)(nil)

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(breeding.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(m.st); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (m *Memory) read() func() {
	m.mu.RLock()
	return m.mu.RUnlock
}

func (m *Memory) write() func() {
	m.mu.Lock()
	return m.mu.Unlock
}

// =============================================================================
// LOCKED PASS-THROUGHS
// =============================================================================

func (m *Memory) GetSow(ctx context.Context, id int64) (*breeding.Sow, error) {
	defer m.read()()
	return m.st.GetSow(ctx, id)
}

func (m *Memory) ListSows(ctx context.Context, f breeding.SowFilter) ([]breeding.Sow, error) {
	defer m.read()()
	return m.st.ListSows(ctx, f)
}

func (m *Memory) CreateSow(ctx context.Context, s *breeding.Sow) error {
	defer m.write()()
	return m.st.CreateSow(ctx, s)
}

func (m *Memory) UpdateSow(ctx context.Context, s *breeding.Sow) error {
	defer m.write()()
	return m.st.UpdateSow(ctx, s)
}

func (m *Memory) GetBoar(ctx context.Context, id int64) (*breeding.Boar, error) {
	defer m.read()()
	return m.st.GetBoar(ctx, id)
}

func (m *Memory) ListBoars(ctx context.Context, f breeding.BoarFilter) ([]breeding.Boar, error) {
	defer m.read()()
	return m.st.ListBoars(ctx, f)
}

func (m *Memory) CreateBoar(ctx context.Context, b *breeding.Boar) error {
	defer m.write()()
	return m.st.CreateBoar(ctx, b)
}

func (m *Memory) UpdateBoar(ctx context.Context, b *breeding.Boar) error {
	defer m.write()()
	return m.st.UpdateBoar(ctx, b)
}

func (m *Memory) GetHeat(ctx context.Context, id int64) (*breeding.Heat, error) {
	defer m.read()()
	return m.st.GetHeat(ctx, id)
}

func (m *Memory) ListHeats(ctx context.Context, f breeding.HeatFilter) ([]breeding.Heat, error) {
	defer m.read()()
	return m.st.ListHeats(ctx, f)
}

func (m *Memory) CreateHeat(ctx context.Context, h *breeding.Heat) error {
	defer m.write()()
	return m.st.CreateHeat(ctx, h)
}

func (m *Memory) UpdateHeat(ctx context.Context, h *breeding.Heat) error {
	defer m.write()()
	return m.st.UpdateHeat(ctx, h)
}

func (m *Memory) DeleteHeat(ctx context.Context, id int64) error {
	defer m.write()()
	return m.st.DeleteHeat(ctx, id)
}

func (m *Memory) GetService(ctx context.Context, id int64) (*breeding.Service, error) {
	defer m.read()()
	return m.st.GetService(ctx, id)
}

func (m *Memory) ListServices(ctx context.Context, f breeding.ServiceFilter) ([]breeding.Service, error) {
	defer m.read()()
	return m.st.ListServices(ctx, f)
}

func (m *Memory) CreateService(ctx context.Context, s *breeding.Service) error {
	defer m.write()()
	return m.st.CreateService(ctx, s)
}

func (m *Memory) UpdateService(ctx context.Context, s *breeding.Service) error {
	defer m.write()()
	return m.st.UpdateService(ctx, s)
}

func (m *Memory) DeleteService(ctx context.Context, id int64) error {
	defer m.write()()
	return m.st.DeleteService(ctx, id)
}

func (m *Memory) GetPregnancy(ctx context.Context, id int64) (*breeding.Pregnancy, error) {
	defer m.read()()
	return m.st.GetPregnancy(ctx, id)
}

func (m *Memory) ListPregnancies(ctx context.Context, f breeding.PregnancyFilter) ([]breeding.Pregnancy, error) {
	defer m.read()()
	return m.st.ListPregnancies(ctx, f)
}

func (m *Memory) CreatePregnancy(ctx context.Context, p *breeding.Pregnancy) error {
	defer m.write()()
	return m.st.CreatePregnancy(ctx, p)
}

func (m *Memory) UpdatePregnancy(ctx context.Context, p *breeding.Pregnancy) error {
	defer m.write()()
	return m.st.UpdatePregnancy(ctx, p)
}

func (m *Memory) DeletePregnancy(ctx context.Context, id int64) error {
	defer m.write()()
	return m.st.DeletePregnancy(ctx, id)
}

func (m *Memory) GetBirth(ctx context.Context, id int64) (*breeding.Birth, error) {
	defer m.read()()
	return m.st.GetBirth(ctx, id)
}

func (m *Memory) ListBirths(ctx context.Context, f breeding.BirthFilter) ([]breeding.Birth, error) {
	defer m.read()()
	return m.st.ListBirths(ctx, f)
}

func (m *Memory) CreateBirth(ctx context.Context, b *breeding.Birth) error {
	defer m.write()()
	return m.st.CreateBirth(ctx, b)
}

func (m *Memory) UpdateBirth(ctx context.Context, b *breeding.Birth) error {
	defer m.write()()
	return m.st.UpdateBirth(ctx, b)
}

func (m *Memory) DeleteBirth(ctx context.Context, id int64) error {
	defer m.write()()
	return m.st.DeleteBirth(ctx, id)
}

func (m *Memory) GetAbortion(ctx context.Context, id int64) (*breeding.Abortion, error) {
	defer m.read()()
	return m.st.GetAbortion(ctx, id)
}

func (m *Memory) ListAbortions(ctx context.Context, f breeding.AbortionFilter) ([]breeding.Abortion, error) {
	defer m.read()()
	return m.st.ListAbortions(ctx, f)
}

func (m *Memory) CreateAbortion(ctx context.Context, a *breeding.Abortion) error {
	defer m.write()()
	return m.st.CreateAbortion(ctx, a)
}

func (m *Memory) UpdateAbortion(ctx context.Context, a *breeding.Abortion) error {
	defer m.write()()
	return m.st.UpdateAbortion(ctx, a)
}

func (m *Memory) DeleteAbortion(ctx context.Context, id int64) error {
	defer m.write()()
	return m.st.DeleteAbortion(ctx, id)
}

func (m *Memory) GetPiglet(ctx context.Context, id int64) (*breeding.Piglet, error) {
	defer m.read()()
	return m.st.GetPiglet(ctx, id)
}

func (m *Memory) ListPiglets(ctx context.Context, f breeding.PigletFilter) ([]breeding.Piglet, error) {
	defer m.read()()
	return m.st.ListPiglets(ctx, f)
}

func (m *Memory) CreatePiglet(ctx context.Context, p *breeding.Piglet) error {
	defer m.write()()
	return m.st.CreatePiglet(ctx, p)
}

func (m *Memory) UpdatePiglet(ctx context.Context, p *breeding.Piglet) error {
	defer m.write()()
	return m.st.UpdatePiglet(ctx, p)
}

func (m *Memory) DeletePiglet(ctx context.Context, id int64) error {
	defer m.write()()
	return m.st.DeletePiglet(ctx, id)
}

func (m *Memory) WeanPiglets(ctx context.Context, birthID int64, on breeding.Date) (int, error) {
	defer m.write()()
	return m.st.WeanPiglets(ctx, birthID, on)
}

func (m *Memory) GetCalendarEvent(ctx context.Context, id int64) (*breeding.CalendarEvent, error) {
	defer m.read()()
	return m.st.GetCalendarEvent(ctx, id)
}

func (m *Memory) ListCalendarEvents(ctx context.Context, from, to time.Time) ([]breeding.CalendarEvent, error) {
	defer m.read()()
	return m.st.ListCalendarEvents(ctx, from, to)
}

func (m *Memory) CreateCalendarEvent(ctx context.Context, e *breeding.CalendarEvent) error {
	defer m.write()()
	return m.st.CreateCalendarEvent(ctx, e)
}

func (m *Memory) UpdateCalendarEvent(ctx context.Context, e *breeding.CalendarEvent) error {
	defer m.write()()
	return m.st.UpdateCalendarEvent(ctx, e)
}

func (m *Memory) DeleteCalendarEvent(ctx context.Context, id int64) error {
	defer m.write()()
	return m.st.DeleteCalendarEvent(ctx, id)
}

func (m *Memory) GetNotification(ctx context.Context, id int64) (*breeding.Notification, error) {
	defer m.read()()
	return m.st.GetNotification(ctx, id)
}

func (m *Memory) ListNotifications(ctx context.Context, f breeding.NotificationFilter) ([]breeding.Notification, error) {
	defer m.read()()
	return m.st.ListNotifications(ctx, f)
}

func (m *Memory) NotificationExists(ctx context.Context, q breeding.NotificationLookup) (bool, error) {
	defer m.read()()
	return m.st.NotificationExists(ctx, q)
}

func (m *Memory) CreateNotification(ctx context.Context, n *breeding.Notification) error {
	defer m.write()()
	return m.st.CreateNotification(ctx, n)
}

func (m *Memory) MarkNotificationRead(ctx context.Context, id int64, at time.Time) error {
	defer m.write()()
	return m.st.MarkNotificationRead(ctx, id, at)
}

func (m *Memory) MarkAllNotificationsRead(ctx context.Context, at time.Time) (int, error) {
	defer m.write()()
	return m.st.MarkAllNotificationsRead(ctx, at)
}

func (m *Memory) PurgeNotifications(ctx context.Context, readBefore, now time.Time) (int, error) {
	defer m.write()()
	return m.st.PurgeNotifications(ctx, readBefore, now)
}

// =============================================================================
// ORDERING
// =============================================================================

// newestFirst sorts by date descending, then by ID descending.
func newestFirst[T any](items []T, date func(T) breeding.Date, id func(T) int64) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := date(items[i]), date(items[j])
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return id(items[i]) > id(items[j])
	})
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/swinetrack/breeding-engine/breeding"
)

// state holds the tables. It implements breeding.Repository without locking;
// Memory serialises access to it.
type state struct {
	nextID int64

	sows          map[int64]breeding.Sow
	boars         map[int64]breeding.Boar
	heats         map[int64]breeding.Heat
	services      map[int64]breeding.Service
	pregnancies   map[int64]breeding.Pregnancy
	births        map[int64]breeding.Birth
	abortions     map[int64]breeding.Abortion
	piglets       map[int64]breeding.Piglet
	events        map[int64]breeding.CalendarEvent
	notifications map[int64]breeding.Notification
}

func newState() *state {
	return &state{
		sows:          make(map[int64]breeding.Sow),
		boars:         make(map[int64]breeding.Boar),
		heats:         make(map[int64]breeding.Heat),
		services:      make(map[int64]breeding.Service),
		pregnancies:   make(map[int64]breeding.Pregnancy),
		births:        make(map[int64]breeding.Birth),
		abortions:     make(map[int64]breeding.Abortion),
		piglets:       make(map[int64]breeding.Piglet),
		events:        make(map[int64]breeding.CalendarEvent),
		notifications: make(map[int64]breeding.Notification),
	}
}

func (s *state) clone() *state {
	return &state{
		nextID:        s.nextID,
		sows:          copyMap(s.sows),
		boars:         copyMap(s.boars),
		heats:         copyMap(s.heats),
		services:      copyMap(s.services),
		pregnancies:   copyMap(s.pregnancies),
		births:        copyMap(s.births),
		abortions:     copyMap(s.abortions),
		piglets:       copyMap(s.piglets),
		events:        copyMap(s.events),
		notifications: copyMap(s.notifications),
	}
}

// Rows are stored by value and every pointer field is replaced, never
// mutated, so a shallow copy of each map is a full snapshot.
func copyMap[T any](m map[int64]T) map[int64]T {
	out := make(map[int64]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

func get[T any](m map[int64]T, entity string, id int64) (*T, error) {
	v, ok := m[id]
	if !ok {
		return nil, breeding.NotFound(entity, id)
	}
	return &v, nil
}

func put[T any](m map[int64]T, entity string, id int64, v T) error {
	if _, ok := m[id]; !ok {
		return breeding.NotFound(entity, id)
	}
	m[id] = v
	return nil
}

func del[T any](m map[int64]T, entity string, id int64) error {
	if _, ok := m[id]; !ok {
		return breeding.NotFound(entity, id)
	}
	delete(m, id)
	return nil
}

func byID[T any](m map[int64]T, keep func(T) bool) []T {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := []T{}
	for _, id := range ids {
		if keep(m[id]) {
			out = append(out, m[id])
		}
	}
	return out
}

func inRange(d breeding.Date, from, to *breeding.Date) bool {
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}

// =============================================================================
// HERD
// =============================================================================

func (s *state) GetSow(_ context.Context, id int64) (*breeding.Sow, error) {
	return get(s.sows, "sow", id)
}

func (s *state) ListSows(_ context.Context, f breeding.SowFilter) ([]breeding.Sow, error) {
	return byID(s.sows, func(x breeding.Sow) bool {
		return (f.Status == "" || x.Status == f.Status) &&
			(f.ReproductiveStatus == "" || x.ReproductiveStatus == f.ReproductiveStatus)
	}), nil
}

func (s *state) CreateSow(_ context.Context, x *breeding.Sow) error {
	if err := s.uniqueSowTag(x.EarTag, 0); err != nil {
		return err
	}
	x.ID = s.id()
	s.sows[x.ID] = *x
	return nil
}

func (s *state) UpdateSow(_ context.Context, x *breeding.Sow) error {
	if err := s.uniqueSowTag(x.EarTag, x.ID); err != nil {
		return err
	}
	return put(s.sows, "sow", x.ID, *x)
}

func (s *state) uniqueSowTag(tag string, self int64) error {
	for id, x := range s.sows {
		if id != self && strings.EqualFold(x.EarTag, tag) {
			return &breeding.ConflictError{Entity: "sow", Field: "ear_tag", Value: tag}
		}
	}
	return nil
}

func (s *state) GetBoar(_ context.Context, id int64) (*breeding.Boar, error) {
	return get(s.boars, "boar", id)
}

func (s *state) ListBoars(_ context.Context, f breeding.BoarFilter) ([]breeding.Boar, error) {
	return byID(s.boars, func(x breeding.Boar) bool {
		return f.Status == "" || x.Status == f.Status
	}), nil
}

func (s *state) CreateBoar(_ context.Context, x *breeding.Boar) error {
	if err := s.uniqueBoarTag(x.EarTag, 0); err != nil {
		return err
	}
	x.ID = s.id()
	s.boars[x.ID] = *x
	return nil
}

func (s *state) UpdateBoar(_ context.Context, x *breeding.Boar) error {
	if err := s.uniqueBoarTag(x.EarTag, x.ID); err != nil {
		return err
	}
	return put(s.boars, "boar", x.ID, *x)
}

func (s *state) uniqueBoarTag(tag string, self int64) error {
	for id, x := range s.boars {
		if id != self && strings.EqualFold(x.EarTag, tag) {
			return &breeding.ConflictError{Entity: "boar", Field: "ear_tag", Value: tag}
		}
	}
	return nil
}

// =============================================================================
// HEATS AND SERVICES
// =============================================================================

func (s *state) GetHeat(_ context.Context, id int64) (*breeding.Heat, error) {
	return get(s.heats, "heat", id)
}

func (s *state) ListHeats(_ context.Context, f breeding.HeatFilter) ([]breeding.Heat, error) {
	serviced := make(map[int64]bool)
	if f.Unserviced {
		for _, svc := range s.services {
			serviced[svc.HeatID] = true
		}
	}
	out := byID(s.heats, func(h breeding.Heat) bool {
		if f.SowID != 0 && h.SowID != f.SowID {
			return false
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, h.Status) {
			return false
		}
		if f.Unserviced && serviced[h.ID] {
			return false
		}
		if f.WindowEndsBefore != nil && !h.WindowStart().Before(*f.WindowEndsBefore) {
			return false
		}
		return inRange(h.HeatDate, f.HeatFrom, f.HeatTo)
	})
	newestFirst(out, func(h breeding.Heat) breeding.Date { return h.HeatDate }, func(h breeding.Heat) int64 { return h.ID })
	return limit(out, f.Limit), nil
}

func containsStatus(list []breeding.HeatStatus, s breeding.HeatStatus) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func (s *state) CreateHeat(_ context.Context, x *breeding.Heat) error {
	if _, ok := s.sows[x.SowID]; !ok {
		return breeding.NotFound("sow", x.SowID)
	}
	x.ID = s.id()
	s.heats[x.ID] = *x
	return nil
}

func (s *state) UpdateHeat(_ context.Context, x *breeding.Heat) error {
	return put(s.heats, "heat", x.ID, *x)
}

func (s *state) DeleteHeat(_ context.Context, id int64) error {
	return del(s.heats, "heat", id)
}

func (s *state) GetService(_ context.Context, id int64) (*breeding.Service, error) {
	return get(s.services, "service", id)
}

func (s *state) ListServices(_ context.Context, f breeding.ServiceFilter) ([]breeding.Service, error) {
	out := byID(s.services, func(x breeding.Service) bool {
		return (f.SowID == 0 || x.SowID == f.SowID) && (f.HeatID == 0 || x.HeatID == f.HeatID)
	})
	newestFirst(out, func(x breeding.Service) breeding.Date { return x.ServiceDate }, func(x breeding.Service) int64 { return x.ID })
	return limit(out, f.Limit), nil
}

func (s *state) CreateService(_ context.Context, x *breeding.Service) error {
	if _, ok := s.heats[x.HeatID]; !ok {
		return breeding.NotFound("heat", x.HeatID)
	}
	x.ID = s.id()
	s.services[x.ID] = *x
	return nil
}

func (s *state) UpdateService(_ context.Context, x *breeding.Service) error {
	return put(s.services, "service", x.ID, *x)
}

func (s *state) DeleteService(_ context.Context, id int64) error {
	return del(s.services, "service", id)
}

// =============================================================================
// PREGNANCIES AND OUTCOMES
// =============================================================================

func (s *state) GetPregnancy(_ context.Context, id int64) (*breeding.Pregnancy, error) {
	return get(s.pregnancies, "pregnancy", id)
}

func (s *state) ListPregnancies(_ context.Context, f breeding.PregnancyFilter) ([]breeding.Pregnancy, error) {
	out := byID(s.pregnancies, func(x breeding.Pregnancy) bool {
		if f.SowID != 0 && x.SowID != f.SowID {
			return false
		}
		if f.ServiceID != 0 && x.ServiceID != f.ServiceID {
			return false
		}
		if f.Status != "" && x.Status != f.Status {
			return false
		}
		if f.Confirmed != nil && x.Confirmed != *f.Confirmed {
			return false
		}
		if f.ConceivedBefore != nil && !x.ConceptionDate.Before(*f.ConceivedBefore) {
			return false
		}
		return inRange(x.ExpectedFarrowingDate, f.FarrowingFrom, f.FarrowingTo)
	})
	newestFirst(out, func(x breeding.Pregnancy) breeding.Date { return x.ConceptionDate }, func(x breeding.Pregnancy) int64 { return x.ID })
	return limit(out, f.Limit), nil
}

func (s *state) CreatePregnancy(_ context.Context, x *breeding.Pregnancy) error {
	if _, ok := s.services[x.ServiceID]; !ok {
		return breeding.NotFound("service", x.ServiceID)
	}
	x.ID = s.id()
	s.pregnancies[x.ID] = *x
	return nil
}

func (s *state) UpdatePregnancy(_ context.Context, x *breeding.Pregnancy) error {
	return put(s.pregnancies, "pregnancy", x.ID, *x)
}

func (s *state) DeletePregnancy(_ context.Context, id int64) error {
	return del(s.pregnancies, "pregnancy", id)
}

func (s *state) GetBirth(_ context.Context, id int64) (*breeding.Birth, error) {
	return get(s.births, "birth", id)
}

func (s *state) ListBirths(_ context.Context, f breeding.BirthFilter) ([]breeding.Birth, error) {
	out := byID(s.births, func(x breeding.Birth) bool {
		if f.SowID != 0 && x.SowID != f.SowID {
			return false
		}
		if f.PregnancyID != 0 && x.PregnancyID != f.PregnancyID {
			return false
		}
		if f.WeaningDueBy != nil && (x.ExpectedWeaningDate == nil || x.ExpectedWeaningDate.After(*f.WeaningDueBy)) {
			return false
		}
		return !f.Nursing || s.nursing(x)
	})
	newestFirst(out, func(x breeding.Birth) breeding.Date { return x.BirthDate }, func(x breeding.Birth) int64 { return x.ID })
	return limit(out, f.Limit), nil
}

func (s *state) nursing(b breeding.Birth) bool {
	if b.BornAlive <= 0 || b.WeanedOn != nil {
		return false
	}
	registered := false
	for _, p := range s.piglets {
		if p.BirthID != b.ID {
			continue
		}
		if p.CurrentStatus == breeding.PigletLactating {
			return true
		}
		registered = true
	}
	return !registered
}

func (s *state) CreateBirth(_ context.Context, x *breeding.Birth) error {
	if _, ok := s.pregnancies[x.PregnancyID]; !ok {
		return breeding.NotFound("pregnancy", x.PregnancyID)
	}
	x.ID = s.id()
	s.births[x.ID] = *x
	return nil
}

func (s *state) UpdateBirth(_ context.Context, x *breeding.Birth) error {
	return put(s.births, "birth", x.ID, *x)
}

func (s *state) DeleteBirth(_ context.Context, id int64) error {
	return del(s.births, "birth", id)
}

func (s *state) GetAbortion(_ context.Context, id int64) (*breeding.Abortion, error) {
	return get(s.abortions, "abortion", id)
}

func (s *state) ListAbortions(_ context.Context, f breeding.AbortionFilter) ([]breeding.Abortion, error) {
	out := byID(s.abortions, func(x breeding.Abortion) bool {
		return (f.SowID == 0 || x.SowID == f.SowID) && (f.PregnancyID == 0 || x.PregnancyID == f.PregnancyID)
	})
	newestFirst(out, func(x breeding.Abortion) breeding.Date { return x.AbortionDate }, func(x breeding.Abortion) int64 { return x.ID })
	return limit(out, f.Limit), nil
}

func (s *state) CreateAbortion(_ context.Context, x *breeding.Abortion) error {
	if _, ok := s.pregnancies[x.PregnancyID]; !ok {
		return breeding.NotFound("pregnancy", x.PregnancyID)
	}
	x.ID = s.id()
	s.abortions[x.ID] = *x
	return nil
}

func (s *state) UpdateAbortion(_ context.Context, x *breeding.Abortion) error {
	return put(s.abortions, "abortion", x.ID, *x)
}

func (s *state) DeleteAbortion(_ context.Context, id int64) error {
	return del(s.abortions, "abortion", id)
}

// =============================================================================
// PIGLETS
// =============================================================================

func (s *state) GetPiglet(_ context.Context, id int64) (*breeding.Piglet, error) {
	return get(s.piglets, "piglet", id)
}

func (s *state) ListPiglets(_ context.Context, f breeding.PigletFilter) ([]breeding.Piglet, error) {
	out := byID(s.piglets, func(x breeding.Piglet) bool {
		return (f.BirthID == 0 || x.BirthID == f.BirthID) &&
			(f.SowID == 0 || x.SowID == f.SowID) &&
			(f.CurrentStatus == "" || x.CurrentStatus == f.CurrentStatus) &&
			(f.BirthStatus == "" || x.BirthStatus == f.BirthStatus)
	})
	// Birth order first, unnumbered piglets last, ties by ID.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].BirthOrder, out[j].BirthOrder
		switch {
		case a != nil && b != nil && *a != *b:
			return *a < *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) CreatePiglet(_ context.Context, x *breeding.Piglet) error {
	if _, ok := s.births[x.BirthID]; !ok {
		return breeding.NotFound("birth", x.BirthID)
	}
	if err := s.uniquePigletTag(x.EarTag, 0); err != nil {
		return err
	}
	x.ID = s.id()
	s.piglets[x.ID] = *x
	return nil
}

func (s *state) UpdatePiglet(_ context.Context, x *breeding.Piglet) error {
	if err := s.uniquePigletTag(x.EarTag, x.ID); err != nil {
		return err
	}
	return put(s.piglets, "piglet", x.ID, *x)
}

func (s *state) uniquePigletTag(tag string, self int64) error {
	if tag == "" {
		return nil
	}
	for id, x := range s.piglets {
		if id != self && strings.EqualFold(x.EarTag, tag) {
			return &breeding.ConflictError{Entity: "piglet", Field: "ear_tag", Value: tag}
		}
	}
	return nil
}

func (s *state) DeletePiglet(_ context.Context, id int64) error {
	return del(s.piglets, "piglet", id)
}

func (s *state) WeanPiglets(_ context.Context, birthID int64, on breeding.Date) (int, error) {
	n := 0
	for id, p := range s.piglets {
		if p.BirthID != birthID || p.CurrentStatus != breeding.PigletLactating {
			continue
		}
		p.CurrentStatus = breeding.PigletWeaned
		p.WeaningDate = on.Ptr()
		s.piglets[id] = p
		n++
	}
	return n, nil
}

// =============================================================================
// CALENDAR AND NOTIFICATIONS
// =============================================================================

func (s *state) GetCalendarEvent(_ context.Context, id int64) (*breeding.CalendarEvent, error) {
	return get(s.events, "calendar event", id)
}

func (s *state) ListCalendarEvents(_ context.Context, from, to time.Time) ([]breeding.CalendarEvent, error) {
	out := byID(s.events, func(e breeding.CalendarEvent) bool {
		return (from.IsZero() || !e.EventDate.Before(from)) && (to.IsZero() || !e.EventDate.After(to))
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].EventDate.Before(out[j].EventDate) })
	return out, nil
}

func (s *state) CreateCalendarEvent(_ context.Context, e *breeding.CalendarEvent) error {
	e.ID = s.id()
	s.events[e.ID] = *e
	return nil
}

func (s *state) UpdateCalendarEvent(_ context.Context, e *breeding.CalendarEvent) error {
	return put(s.events, "calendar event", e.ID, *e)
}

func (s *state) DeleteCalendarEvent(_ context.Context, id int64) error {
	return del(s.events, "calendar event", id)
}

func (s *state) GetNotification(_ context.Context, id int64) (*breeding.Notification, error) {
	return get(s.notifications, "notification", id)
}

func (s *state) ListNotifications(_ context.Context, f breeding.NotificationFilter) ([]breeding.Notification, error) {
	out := byID(s.notifications, func(n breeding.Notification) bool {
		return !f.UnreadOnly || !n.IsRead
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return limit(out, f.Limit), nil
}

func (s *state) NotificationExists(_ context.Context, q breeding.NotificationLookup) (bool, error) {
	for _, n := range s.notifications {
		if n.Type != q.Type || n.ReferenceType != q.ReferenceType || n.ReferenceID != q.ReferenceID {
			continue
		}
		if q.UnreadOnly && n.IsRead {
			continue
		}
		if !q.Since.IsZero() && n.CreatedAt.Before(q.Since) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (s *state) CreateNotification(_ context.Context, n *breeding.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.ID = s.id()
	s.notifications[n.ID] = *n
	return nil
}

func (s *state) MarkNotificationRead(_ context.Context, id int64, at time.Time) error {
	n, ok := s.notifications[id]
	if !ok {
		return breeding.NotFound("notification", id)
	}
	n.IsRead, n.ReadAt = true, &at
	s.notifications[id] = n
	return nil
}

func (s *state) MarkAllNotificationsRead(_ context.Context, at time.Time) (int, error) {
	count := 0
	for id, n := range s.notifications {
		if n.IsRead {
			continue
		}
		n.IsRead, n.ReadAt = true, &at
		s.notifications[id] = n
		count++
	}
	return count, nil
}

func (s *state) PurgeNotifications(_ context.Context, readBefore, now time.Time) (int, error) {
	count := 0
	for id, n := range s.notifications {
		stale := n.IsRead && n.CreatedAt.Before(readBefore)
		expired := n.ExpiresAt != nil && n.ExpiresAt.Before(now)
		if stale || expired {
			delete(s.notifications, id)
			count++
		}
	}
	return count, nil
}

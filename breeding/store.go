/*
store.go - Persistence interfaces for the breeding engine

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Reader:     Read side used by the Validator and by Project() loaders
  Repository: Reader plus the write operations for every entity
  Store:      Repository with transactional scope (WithTx)

CONVENTIONS:
  - Get* returns a *NotFoundError when the row does not exist.
  - List* returns newest first for dated events (heats, services,
    pregnancies, births, abortions) and birth order for piglets.
  - Create* assigns ID and audit timestamps on the passed struct.
  - Update* writes the full row; fields the caller must not change are
    guarded by the Coordinator, not by the store.

ATOMIC UNITS:
  Every Coordinator operation runs inside WithTx. If fn returns an error
  nothing it wrote is visible; if it returns nil everything is committed.

IMPLEMENTATIONS:
  - store/memory: In-memory for tests and local runs
  - store/sqlstore: Shared SQL for store/sqlite and store/postgres

SEE ALSO:
  - coordinator.go: The only writer
*/
package breeding

import (
	"context"
	"time"
)

// =============================================================================
// FILTERS
// =============================================================================

type SowFilter struct {
	Status             SowStatus
	ReproductiveStatus ReproductiveStatus
}

type BoarFilter struct {
	Status BoarStatus
}

type HeatFilter struct {
	SowID    int64
	Statuses []HeatStatus
	// Unserviced keeps heats with no service rows.
	Unserviced bool
	// WindowEndsBefore keeps heats whose WindowStart() is strictly before the date.
	WindowEndsBefore *Date
	HeatFrom         *Date
	HeatTo           *Date
	Limit            int
}

type ServiceFilter struct {
	SowID  int64
	HeatID int64
	Limit  int
}

type PregnancyFilter struct {
	SowID           int64
	ServiceID       int64
	Status          PregnancyStatus
	Confirmed       *bool
	FarrowingFrom   *Date
	FarrowingTo     *Date
	ConceivedBefore *Date
	Limit           int
}

type BirthFilter struct {
	SowID       int64
	PregnancyID int64
	// WeaningDueBy keeps births whose expected weaning date is on or before the date.
	WeaningDueBy *Date
	// Nursing keeps litters with live-born piglets that were never stamped as
	// weaned and that either have no piglet rows or still have a lactating one.
	Nursing bool
	Limit   int
}

type AbortionFilter struct {
	SowID       int64
	PregnancyID int64
	Limit       int
}

type PigletFilter struct {
	BirthID       int64
	SowID         int64
	CurrentStatus PigletStatus
	BirthStatus   PigletBirthStatus
}

type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
}

// NotificationLookup is the dedupe probe used by the notification generator.
type NotificationLookup struct {
	Type          NotificationType
	ReferenceType string
	ReferenceID   int64
	Since         time.Time
	UnreadOnly    bool
}

// =============================================================================
// READER - Read side (validator, projection, jobs)
// =============================================================================

type Reader interface {
	GetSow(ctx context.Context, id int64) (*Sow, error)
	ListSows(ctx context.Context, f SowFilter) ([]Sow, error)

	GetBoar(ctx context.Context, id int64) (*Boar, error)
	ListBoars(ctx context.Context, f BoarFilter) ([]Boar, error)

	GetHeat(ctx context.Context, id int64) (*Heat, error)
	ListHeats(ctx context.Context, f HeatFilter) ([]Heat, error)

	GetService(ctx context.Context, id int64) (*Service, error)
	ListServices(ctx context.Context, f ServiceFilter) ([]Service, error)

	GetPregnancy(ctx context.Context, id int64) (*Pregnancy, error)
	ListPregnancies(ctx context.Context, f PregnancyFilter) ([]Pregnancy, error)

	GetBirth(ctx context.Context, id int64) (*Birth, error)
	ListBirths(ctx context.Context, f BirthFilter) ([]Birth, error)

	GetAbortion(ctx context.Context, id int64) (*Abortion, error)
	ListAbortions(ctx context.Context, f AbortionFilter) ([]Abortion, error)

	GetPiglet(ctx context.Context, id int64) (*Piglet, error)
	ListPiglets(ctx context.Context, f PigletFilter) ([]Piglet, error)

	GetCalendarEvent(ctx context.Context, id int64) (*CalendarEvent, error)
	ListCalendarEvents(ctx context.Context, from, to time.Time) ([]CalendarEvent, error)

	GetNotification(ctx context.Context, id int64) (*Notification, error)
	ListNotifications(ctx context.Context, f NotificationFilter) ([]Notification, error)
	NotificationExists(ctx context.Context, q NotificationLookup) (bool, error)
}

// =============================================================================
// REPOSITORY - Reader plus writes
// =============================================================================

type Repository interface {
	Reader

	CreateSow(ctx context.Context, s *Sow) error
	UpdateSow(ctx context.Context, s *Sow) error

	CreateBoar(ctx context.Context, b *Boar) error
	UpdateBoar(ctx context.Context, b *Boar) error

	CreateHeat(ctx context.Context, h *Heat) error
	UpdateHeat(ctx context.Context, h *Heat) error
	DeleteHeat(ctx context.Context, id int64) error

	CreateService(ctx context.Context, s *Service) error
	UpdateService(ctx context.Context, s *Service) error
	DeleteService(ctx context.Context, id int64) error

	CreatePregnancy(ctx context.Context, p *Pregnancy) error
	UpdatePregnancy(ctx context.Context, p *Pregnancy) error
	DeletePregnancy(ctx context.Context, id int64) error

	CreateBirth(ctx context.Context, b *Birth) error
	UpdateBirth(ctx context.Context, b *Birth) error
	DeleteBirth(ctx context.Context, id int64) error

	CreateAbortion(ctx context.Context, a *Abortion) error
	UpdateAbortion(ctx context.Context, a *Abortion) error
	DeleteAbortion(ctx context.Context, id int64) error

	CreatePiglet(ctx context.Context, p *Piglet) error
	UpdatePiglet(ctx context.Context, p *Piglet) error
	DeletePiglet(ctx context.Context, id int64) error
	// WeanPiglets moves every lactating piglet of the birth to weaned with
	// WeaningDate = on, and returns how many rows changed.
	WeanPiglets(ctx context.Context, birthID int64, on Date) (int, error)

	CreateCalendarEvent(ctx context.Context, e *CalendarEvent) error
	UpdateCalendarEvent(ctx context.Context, e *CalendarEvent) error
	DeleteCalendarEvent(ctx context.Context, id int64) error

	CreateNotification(ctx context.Context, n *Notification) error
	MarkNotificationRead(ctx context.Context, id int64, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, at time.Time) (int, error)
	// PurgeNotifications deletes read notifications older than readBefore and
	// any notification whose ExpiresAt is before now.
	PurgeNotifications(ctx context.Context, readBefore, now time.Time) (int, error)
}

// =============================================================================
// STORE - Transactional scope
// =============================================================================

// Store wraps Repository with transaction support.
type Store interface {
	Repository

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// Locker serialises writes per sow. Lock blocks until the key is held or ctx
// is done, and returns the release function.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// =============================================================================
// READ HELPERS
// =============================================================================

func latestHeat(ctx context.Context, r Reader, sowID int64, statuses ...HeatStatus) (*Heat, error) {
	heats, err := r.ListHeats(ctx, HeatFilter{SowID: sowID, Statuses: statuses, Limit: 1})
	if err != nil || len(heats) == 0 {
		return nil, err
	}
	return &heats[0], nil
}

func latestBirth(ctx context.Context, r Reader, sowID int64) (*Birth, error) {
	births, err := r.ListBirths(ctx, BirthFilter{SowID: sowID, Limit: 1})
	if err != nil || len(births) == 0 {
		return nil, err
	}
	return &births[0], nil
}

func latestAbortion(ctx context.Context, r Reader, sowID int64) (*Abortion, error) {
	abortions, err := r.ListAbortions(ctx, AbortionFilter{SowID: sowID, Limit: 1})
	if err != nil || len(abortions) == 0 {
		return nil, err
	}
	return &abortions[0], nil
}

func activePregnancy(ctx context.Context, r Reader, sowID int64) (*Pregnancy, error) {
	pregs, err := r.ListPregnancies(ctx, PregnancyFilter{SowID: sowID, Status: PregnancyInProgress, Limit: 1})
	if err != nil || len(pregs) == 0 {
		return nil, err
	}
	return &pregs[0], nil
}

func latestServiceOnHeat(ctx context.Context, r Reader, heatID int64) (*Service, int, error) {
	services, err := r.ListServices(ctx, ServiceFilter{HeatID: heatID})
	if err != nil || len(services) == 0 {
		return nil, 0, err
	}
	return &services[0], len(services), nil
}

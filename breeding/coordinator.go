/*
coordinator.go - The single writer of breeding state

PURPOSE:
  Every mutation of a reproductive record goes through the Coordinator. It
  applies edit/delete guards and numeric invariants, runs the Validator,
  writes the record and its side effects, and finally re-derives the sow's
  projection, all inside one transaction.

UNIT OF WORK:
  1. Acquire the per-sow lock (Locker)
  2. Store.WithTx
  3. Validate against the transaction's view of the data
  4. Write the entity and its side effects
  5. reproject(sow)
  6. Commit (or roll back everything on any error)

  Holding the sow lock across validate-then-write closes the window in
  which two concurrent registrations could both pass validation.

FILES:
  coordinator.go            Construction, sows, boars, shared helpers
  coordinator_heat.go       Heats
  coordinator_service.go    Services
  coordinator_pregnancy.go  Pregnancies
  coordinator_birth.go      Births, abortions, piglets
  weaning.go                Litter weaning and heat expiry units

SEE ALSO:
  - validator.go: Registration rules
  - projection.go: Derived sow fields
*/
package breeding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Coordinator applies state transitions.
type Coordinator struct {
	store     Store
	locks     Locker
	validator *Validator
	periods   Periods
	clock     Clock
	logger    *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithLocker(l Locker) Option  { return func(c *Coordinator) { c.locks = l } }
func WithClock(cl Clock) Option   { return func(c *Coordinator) { c.clock = cl } }
func WithPeriods(p Periods) Option { return func(c *Coordinator) { c.periods = p } }
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator creates a Coordinator over store. Without WithLocker writes
// are serialised only by the store's own transaction isolation.
func NewCoordinator(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		locks:   nopLocker{},
		periods: DefaultPeriods(),
		clock:   SystemClock{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.validator = NewValidator(store, c.periods)
	return c
}

// Validator returns the read-only validator bound to the store.
func (c *Coordinator) Validator() *Validator { return c.validator }

// Store returns the underlying store for read-only pass-throughs.
func (c *Coordinator) Store() Store { return c.store }

// Periods returns the configured windows.
func (c *Coordinator) Periods() Periods { return c.periods }

// Today returns the current day according to the coordinator clock.
func (c *Coordinator) Today() Date { return Today(c.clock) }

type nopLocker struct{}

func (nopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// SowLockKey is the lock key that serialises writes for one sow.
func SowLockKey(sowID int64) string {
	return fmt.Sprintf("sow:%d", sowID)
}

// =============================================================================
// ACTOR - Who performed the change (audit columns)
// =============================================================================

type actorKey struct{}

// WithActor attaches the acting user's identifier to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by WithActor, or "system".
func ActorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return "system"
}

func (c *Coordinator) stampCreate(ctx context.Context, a *Audit) {
	now := c.clock.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	a.CreatedBy = ActorFrom(ctx)
	a.UpdatedBy = a.CreatedBy
}

func (c *Coordinator) stampUpdate(ctx context.Context, a *Audit) {
	a.UpdatedAt = c.clock.Now().UTC()
	a.UpdatedBy = ActorFrom(ctx)
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

// inSowTx runs fn under the sow lock inside a transaction and re-derives the
// sow projection before commit.
func (c *Coordinator) inSowTx(ctx context.Context, sowID int64, fn func(tx Repository, v *Validator) error) error {
	unlock, err := c.locks.Lock(ctx, SowLockKey(sowID))
	if err != nil {
		return fmt.Errorf("lock sow %d: %w", sowID, err)
	}
	defer unlock()

	return c.store.WithTx(ctx, func(tx Repository) error {
		if err := fn(tx, c.validator.WithReader(tx)); err != nil {
			return err
		}
		return c.reproject(ctx, tx, sowID)
	})
}

// reproject recomputes and persists the derived sow fields.
func (c *Coordinator) reproject(ctx context.Context, tx Repository, sowID int64) error {
	sow, err := tx.GetSow(ctx, sowID)
	if err != nil {
		return err
	}
	history, err := LoadHistory(ctx, tx, sowID)
	if err != nil {
		return fmt.Errorf("load history for sow %d: %w", sowID, err)
	}
	proj := Project(history)
	if !proj.Changed(sow) {
		return nil
	}
	previous := sow.ReproductiveStatus
	proj.Apply(sow)
	c.stampUpdate(ctx, &sow.Audit)
	if err := tx.UpdateSow(ctx, sow); err != nil {
		return fmt.Errorf("update sow %d projection: %w", sowID, err)
	}
	if previous != sow.ReproductiveStatus {
		c.logger.Info("sow reproductive status changed",
			zap.Int64("sow_id", sowID),
			zap.String("ear_tag", sow.EarTag),
			zap.String("from", string(previous)),
			zap.String("to", string(sow.ReproductiveStatus)))
	}
	return nil
}

// Reproject re-derives one sow outside of any other operation. Used by
// maintenance commands after bulk imports.
func (c *Coordinator) Reproject(ctx context.Context, sowID int64) (*Sow, error) {
	if err := c.inSowTx(ctx, sowID, func(Repository, *Validator) error { return nil }); err != nil {
		return nil, err
	}
	return c.store.GetSow(ctx, sowID)
}

// =============================================================================
// SOWS
// =============================================================================

// SowPatch lists the identity fields a caller may change. Derived fields are
// deliberately absent.
type SowPatch struct {
	EarTag        *string
	Alias         *string
	Breed         *string
	FarmName      *string
	BirthDate     *Date
	EntryDate     *Date
	Status        *SowStatus
	CurrentWeight *decimal.Decimal
	Notes         *string
}

func (c *Coordinator) CreateSow(ctx context.Context, s Sow) (*Sow, error) {
	s.EarTag = strings.TrimSpace(s.EarTag)
	if s.EarTag == "" {
		return nil, Invalid("ear_tag", "is required")
	}
	if s.Status == "" {
		s.Status = SowActive
	}
	if !s.Status.Valid() {
		return nil, Invalid("status", "unknown sow status %q", s.Status)
	}
	Projection{ReproductiveStatus: StatusEmpty}.Apply(&s)
	c.stampCreate(ctx, &s.Audit)

	err := c.store.WithTx(ctx, func(tx Repository) error {
		return tx.CreateSow(ctx, &s)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("sow created", zap.Int64("sow_id", s.ID), zap.String("ear_tag", s.EarTag))
	return &s, nil
}

func (c *Coordinator) UpdateSow(ctx context.Context, id int64, p SowPatch) (*Sow, error) {
	var out *Sow
	err := c.inSowTx(ctx, id, func(tx Repository, _ *Validator) error {
		sow, err := tx.GetSow(ctx, id)
		if err != nil {
			return err
		}
		if p.EarTag != nil {
			tag := strings.TrimSpace(*p.EarTag)
			if tag == "" {
				return Invalid("ear_tag", "cannot be empty")
			}
			sow.EarTag = tag
		}
		if p.Status != nil {
			if !p.Status.Valid() {
				return Invalid("status", "unknown sow status %q", *p.Status)
			}
			sow.Status = *p.Status
		}
		setString(&sow.Alias, p.Alias)
		setString(&sow.Breed, p.Breed)
		setString(&sow.FarmName, p.FarmName)
		setString(&sow.Notes, p.Notes)
		if p.BirthDate != nil {
			sow.BirthDate = p.BirthDate
		}
		if p.EntryDate != nil {
			sow.EntryDate = p.EntryDate
		}
		if p.CurrentWeight != nil {
			sow.CurrentWeight = decimal.NewNullDecimal(*p.CurrentWeight)
		}
		c.stampUpdate(ctx, &sow.Audit)
		if err := tx.UpdateSow(ctx, sow); err != nil {
			return err
		}
		out = sow
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.store.GetSow(ctx, out.ID)
}

// DeactivateSow retires a sow from breeding. Sows are never hard-deleted
// because their events feed herd statistics.
func (c *Coordinator) DeactivateSow(ctx context.Context, id int64, status SowStatus) (*Sow, error) {
	if status == SowActive || !status.Valid() {
		return nil, Invalid("status", "must be one of discarded, sold, dead")
	}
	return c.UpdateSow(ctx, id, SowPatch{Status: &status})
}

// =============================================================================
// BOARS
// =============================================================================

type BoarPatch struct {
	EarTag *string
	Name   *string
	Breed  *string
	Status *BoarStatus
	Notes  *string
}

func (c *Coordinator) CreateBoar(ctx context.Context, b Boar) (*Boar, error) {
	b.EarTag = strings.TrimSpace(b.EarTag)
	if b.EarTag == "" {
		return nil, Invalid("ear_tag", "is required")
	}
	if b.Status == "" {
		b.Status = BoarActive
	}
	if b.Status != BoarActive && b.Status != BoarInactive {
		return nil, Invalid("status", "unknown boar status %q", b.Status)
	}
	c.stampCreate(ctx, &b.Audit)
	if err := c.store.WithTx(ctx, func(tx Repository) error { return tx.CreateBoar(ctx, &b) }); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Coordinator) UpdateBoar(ctx context.Context, id int64, p BoarPatch) (*Boar, error) {
	var out *Boar
	err := c.store.WithTx(ctx, func(tx Repository) error {
		b, err := tx.GetBoar(ctx, id)
		if err != nil {
			return err
		}
		if p.EarTag != nil {
			tag := strings.TrimSpace(*p.EarTag)
			if tag == "" {
				return Invalid("ear_tag", "cannot be empty")
			}
			b.EarTag = tag
		}
		if p.Status != nil {
			if *p.Status != BoarActive && *p.Status != BoarInactive {
				return Invalid("status", "unknown boar status %q", *p.Status)
			}
			b.Status = *p.Status
		}
		setString(&b.Name, p.Name)
		setString(&b.Breed, p.Breed)
		setString(&b.Notes, p.Notes)
		c.stampUpdate(ctx, &b.Audit)
		if err := tx.UpdateBoar(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// =============================================================================
// HELPERS
// =============================================================================

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func (c *Coordinator) now() time.Time { return c.clock.Now() }

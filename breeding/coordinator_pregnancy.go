package breeding

import (
	"context"

	"go.uber.org/zap"
)

// Confirmation is the payload of ConfirmPregnancy.
type Confirmation struct {
	Date             Date
	Method           ConfirmationMethod
	EstimatedPiglets *int
	Notes            *string
}

// PregnancyPatch lists the editable pregnancy fields. On a completed
// pregnancy only Notes is accepted.
type PregnancyPatch struct {
	ConceptionDate        *Date
	ExpectedFarrowingDate *Date
	Confirmed             *bool
	ConfirmationDate      *Date
	ConfirmationMethod    *ConfirmationMethod
	UltrasoundCount       *int
	LastUltrasoundDate    *Date
	EstimatedPiglets      *int
	Notes                 *string
}

func (p PregnancyPatch) onlyNotes() bool {
	return p.ConceptionDate == nil && p.ExpectedFarrowingDate == nil &&
		p.Confirmed == nil && p.ConfirmationDate == nil &&
		p.ConfirmationMethod == nil && p.UltrasoundCount == nil &&
		p.LastUltrasoundDate == nil && p.EstimatedPiglets == nil
}

// RegisterPregnancy records a gestation started by a service.
func (c *Coordinator) RegisterPregnancy(ctx context.Context, p Pregnancy) (*Pregnancy, []string, error) {
	if p.SowID == 0 {
		return nil, nil, Invalid("sow_id", "is required")
	}
	if p.ServiceID == 0 {
		return nil, nil, Invalid("service_id", "is required")
	}
	if p.ConceptionDate.IsZero() {
		return nil, nil, Invalid("conception_date", "is required")
	}
	if p.ConceptionDate.After(c.Today()) {
		return nil, nil, Invalid("conception_date", "cannot be in the future")
	}
	if p.Confirmed {
		if err := checkConfirmation(p.ConfirmationMethod, p.ConfirmationDate, p.ConceptionDate); err != nil {
			return nil, nil, err
		}
	}

	var warnings []string
	err := c.inSowTx(ctx, p.SowID, func(tx Repository, v *Validator) error {
		res, err := v.CanRegisterPregnancy(ctx, p.SowID, p.ServiceID, p.ConceptionDate)
		if err != nil {
			return err
		}
		if err := res.Err("register pregnancy"); err != nil {
			return err
		}
		warnings = res.Warnings

		if p.ExpectedFarrowingDate.IsZero() {
			p.ExpectedFarrowingDate = p.ConceptionDate.AddDays(c.periods.GestationDays)
		}
		p.Status = PregnancyInProgress
		if p.Confirmed && p.ConfirmationMethod == ConfirmUltrasound {
			if p.UltrasoundCount == 0 {
				p.UltrasoundCount = 1
			}
			p.LastUltrasoundDate = p.ConfirmationDate
		}
		c.stampCreate(ctx, &p.Audit)
		if err := tx.CreatePregnancy(ctx, &p); err != nil {
			return err
		}
		return c.setServiceSuccess(ctx, tx, p.ServiceID, outcome(p.Confirmed))
	})
	if err != nil {
		return nil, nil, err
	}
	c.logger.Info("pregnancy registered",
		zap.Int64("pregnancy_id", p.ID), zap.Int64("sow_id", p.SowID),
		zap.Bool("confirmed", p.Confirmed), zap.Stringer("expected_farrowing", p.ExpectedFarrowingDate))
	return &p, warnings, nil
}

// ConfirmPregnancy records a positive pregnancy check.
func (c *Coordinator) ConfirmPregnancy(ctx context.Context, id int64, in Confirmation) (*Pregnancy, error) {
	current, err := c.store.GetPregnancy(ctx, id)
	if err != nil {
		return nil, err
	}
	var out Pregnancy
	err = c.inSowTx(ctx, current.SowID, func(tx Repository, _ *Validator) error {
		p, err := tx.GetPregnancy(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != PregnancyInProgress {
			return &ImmutableError{Entity: "pregnancy", ID: id, Reason: "only an in-progress pregnancy can be confirmed (status: " + string(p.Status) + ")"}
		}
		if p.Confirmed {
			return Invalid("confirmed", "pregnancy is already confirmed")
		}
		date := in.Date
		if err := checkConfirmation(in.Method, &date, p.ConceptionDate); err != nil {
			return err
		}

		p.Confirmed = true
		p.ConfirmationDate = &date
		p.ConfirmationMethod = in.Method
		if in.Method == ConfirmUltrasound {
			p.UltrasoundCount++
			p.LastUltrasoundDate = &date
		}
		if in.EstimatedPiglets != nil {
			p.EstimatedPiglets = in.EstimatedPiglets
		}
		setString(&p.Notes, in.Notes)
		c.stampUpdate(ctx, &p.Audit)
		if err := tx.UpdatePregnancy(ctx, p); err != nil {
			return err
		}
		out = *p
		return c.setServiceSuccess(ctx, tx, p.ServiceID, outcome(true))
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("pregnancy confirmed",
		zap.Int64("pregnancy_id", id), zap.Int64("sow_id", out.SowID),
		zap.String("method", string(in.Method)))
	return &out, nil
}

// UpdatePregnancy applies a partial edit.
func (c *Coordinator) UpdatePregnancy(ctx context.Context, id int64, patch PregnancyPatch) (*Pregnancy, error) {
	current, err := c.store.GetPregnancy(ctx, id)
	if err != nil {
		return nil, err
	}
	var out Pregnancy
	err = c.inSowTx(ctx, current.SowID, func(tx Repository, v *Validator) error {
		p, err := tx.GetPregnancy(ctx, id)
		if err != nil {
			return err
		}
		if p.Status.Terminal() && !patch.onlyNotes() {
			return &ImmutableError{Entity: "pregnancy", ID: id, Reason: "only notes can be edited on a completed pregnancy"}
		}
		wasConfirmed := p.Confirmed

		if patch.ConceptionDate != nil {
			if patch.ConceptionDate.After(c.Today()) {
				return Invalid("conception_date", "cannot be in the future")
			}
			if !patch.ConceptionDate.Equal(p.ConceptionDate) {
				res, err := v.CheckConceptionDate(ctx, p.SowID, *patch.ConceptionDate)
				if err != nil {
					return err
				}
				if err := res.Err("update pregnancy"); err != nil {
					return err
				}
			}
			p.ConceptionDate = *patch.ConceptionDate
			if patch.ExpectedFarrowingDate == nil {
				p.ExpectedFarrowingDate = p.ConceptionDate.AddDays(c.periods.GestationDays)
			}
		}
		if patch.ExpectedFarrowingDate != nil {
			p.ExpectedFarrowingDate = *patch.ExpectedFarrowingDate
		}
		if patch.ConfirmationDate != nil {
			p.ConfirmationDate = patch.ConfirmationDate
		}
		if patch.ConfirmationMethod != nil {
			p.ConfirmationMethod = *patch.ConfirmationMethod
		}
		if patch.Confirmed != nil {
			p.Confirmed = *patch.Confirmed
		}
		if p.Confirmed {
			if err := checkConfirmation(p.ConfirmationMethod, p.ConfirmationDate, p.ConceptionDate); err != nil {
				return err
			}
		} else {
			p.ConfirmationDate = nil
			p.ConfirmationMethod = ""
		}
		if patch.UltrasoundCount != nil {
			if *patch.UltrasoundCount < 0 {
				return Invalid("ultrasound_count", "cannot be negative")
			}
			p.UltrasoundCount = *patch.UltrasoundCount
		}
		if patch.LastUltrasoundDate != nil {
			p.LastUltrasoundDate = patch.LastUltrasoundDate
		}
		if patch.EstimatedPiglets != nil {
			p.EstimatedPiglets = patch.EstimatedPiglets
		}
		setString(&p.Notes, patch.Notes)

		c.stampUpdate(ctx, &p.Audit)
		if err := tx.UpdatePregnancy(ctx, p); err != nil {
			return err
		}
		out = *p
		if wasConfirmed != p.Confirmed {
			return c.setServiceSuccess(ctx, tx, p.ServiceID, &p.Confirmed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetPregnancyStatus records a manual outcome. Only in-progress and
// not-confirmed can be set by hand; the completed states are reached by
// recording a birth or an abortion.
func (c *Coordinator) SetPregnancyStatus(ctx context.Context, id int64, status PregnancyStatus, notes *string) (*Pregnancy, error) {
	if status != PregnancyInProgress && status != PregnancyNotConfirmed {
		if status.Terminal() {
			return nil, Invalid("status", "%s is set by recording the birth or abortion", status)
		}
		return nil, Invalid("status", "unknown pregnancy status %q", status)
	}
	current, err := c.store.GetPregnancy(ctx, id)
	if err != nil {
		return nil, err
	}
	var out Pregnancy
	err = c.inSowTx(ctx, current.SowID, func(tx Repository, _ *Validator) error {
		p, err := tx.GetPregnancy(ctx, id)
		if err != nil {
			return err
		}
		if p.Status.Terminal() {
			return &ImmutableError{Entity: "pregnancy", ID: id, Reason: "status of a completed pregnancy cannot change"}
		}
		if p.Status == status {
			out = *p
			return nil
		}
		if status == PregnancyInProgress {
			active, err := activePregnancy(ctx, tx, p.SowID)
			if err != nil {
				return err
			}
			if active != nil {
				return Invalid("status", "sow already has pregnancy %d in progress", active.ID)
			}
		}
		p.Status = status
		setString(&p.Notes, notes)
		c.stampUpdate(ctx, &p.Audit)
		if err := tx.UpdatePregnancy(ctx, p); err != nil {
			return err
		}
		out = *p
		if status == PregnancyNotConfirmed {
			failed := false
			return c.setServiceSuccess(ctx, tx, p.ServiceID, &failed)
		}
		return c.setServiceSuccess(ctx, tx, p.ServiceID, outcome(p.Confirmed))
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePregnancy removes a pregnancy that has no recorded outcome.
func (c *Coordinator) DeletePregnancy(ctx context.Context, id int64) error {
	current, err := c.store.GetPregnancy(ctx, id)
	if err != nil {
		return err
	}
	return c.inSowTx(ctx, current.SowID, func(tx Repository, _ *Validator) error {
		p, err := tx.GetPregnancy(ctx, id)
		if err != nil {
			return err
		}
		births, err := tx.ListBirths(ctx, BirthFilter{PregnancyID: id})
		if err != nil {
			return err
		}
		if len(births) > 0 {
			return &DependentsError{Entity: "pregnancy", ID: id, Dependent: "birth", Count: len(births)}
		}
		abortions, err := tx.ListAbortions(ctx, AbortionFilter{PregnancyID: id})
		if err != nil {
			return err
		}
		if len(abortions) > 0 {
			return &DependentsError{Entity: "pregnancy", ID: id, Dependent: "abortion", Count: len(abortions)}
		}
		if p.Status.Terminal() {
			return &ImmutableError{Entity: "pregnancy", ID: id, Reason: "a completed pregnancy cannot be deleted"}
		}
		if err := tx.DeletePregnancy(ctx, id); err != nil {
			return err
		}
		if p.Confirmed {
			return c.failHeatServices(ctx, tx, p.ServiceID)
		}
		return nil
	})
}

// failHeatServices marks serviceID and every still-pending service of the
// same heat as failed. Once a confirmed pregnancy is withdrawn the heat has
// no open outcome left.
func (c *Coordinator) failHeatServices(ctx context.Context, tx Repository, serviceID int64) error {
	failed := false
	if err := c.setServiceSuccess(ctx, tx, serviceID, &failed); err != nil {
		return err
	}
	s, err := tx.GetService(ctx, serviceID)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	siblings, err := tx.ListServices(ctx, ServiceFilter{HeatID: s.HeatID})
	if err != nil {
		return err
	}
	for _, other := range siblings {
		if other.ID == serviceID || other.Success != nil {
			continue
		}
		if err := c.setServiceSuccess(ctx, tx, other.ID, &failed); err != nil {
			return err
		}
	}
	return nil
}

// outcome maps a confirmation flag to a service result: confirmed means the
// service succeeded, unconfirmed means the result is still unknown.
func outcome(confirmed bool) *bool {
	if !confirmed {
		return nil
	}
	return &confirmed
}

// setServiceSuccess records whether the service resulted in a pregnancy.
// A nil success marks the outcome as pending.
func (c *Coordinator) setServiceSuccess(ctx context.Context, tx Repository, serviceID int64, success *bool) error {
	s, err := tx.GetService(ctx, serviceID)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if sameOutcome(s.Success, success) {
		return nil
	}
	s.Success = success
	c.stampUpdate(ctx, &s.Audit)
	return tx.UpdateService(ctx, s)
}

func sameOutcome(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func checkConfirmation(method ConfirmationMethod, date *Date, conception Date) error {
	if method == "" {
		return Invalid("confirmation_method", "is required to confirm a pregnancy")
	}
	if !method.Valid() {
		return Invalid("confirmation_method", "unknown method %q", method)
	}
	if date == nil || date.IsZero() {
		return Invalid("confirmation_date", "is required to confirm a pregnancy")
	}
	if date.Before(conception) {
		return Invalid("confirmation_date", "cannot be before conception_date")
	}
	return nil
}

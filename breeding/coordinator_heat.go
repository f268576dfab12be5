package breeding

import (
	"context"

	"go.uber.org/zap"
)

// HeatPatch lists the editable heat fields.
type HeatPatch struct {
	HeatDate          *Date
	HeatEndDate       *Date
	Intensity         *HeatIntensity
	InductionProtocol *string
	Notes             *string
}

// RegisterHeat records a detected (or induced) heat. The returned warnings
// come from the validator and must be shown to the caller.
func (c *Coordinator) RegisterHeat(ctx context.Context, h Heat) (*Heat, []string, error) {
	if h.SowID == 0 {
		return nil, nil, Invalid("sow_id", "is required")
	}
	if h.HeatDate.IsZero() {
		return nil, nil, Invalid("heat_date", "is required")
	}
	if h.HeatEndDate != nil && h.HeatEndDate.Before(h.HeatDate) {
		return nil, nil, Invalid("heat_end_date", "cannot be before heat_date")
	}
	if h.Intensity == "" {
		h.Intensity = IntensityMedium
	}
	if err := validIntensity(h.Intensity); err != nil {
		return nil, nil, err
	}

	var warnings []string
	err := c.inSowTx(ctx, h.SowID, func(tx Repository, v *Validator) error {
		var res ValidationResult
		var err error
		if h.Induced {
			res, err = v.CanInduceHeat(ctx, h.SowID, h.HeatDate)
		} else {
			res, err = v.CanRegisterHeat(ctx, h.SowID, h.HeatDate)
		}
		if err != nil {
			return err
		}
		if err := res.Err("register heat"); err != nil {
			return err
		}
		warnings = res.Warnings

		h.Status = HeatDetected
		c.stampCreate(ctx, &h.Audit)
		return tx.CreateHeat(ctx, &h)
	})
	if err != nil {
		return nil, nil, err
	}
	c.logger.Info("heat registered",
		zap.Int64("heat_id", h.ID), zap.Int64("sow_id", h.SowID),
		zap.Stringer("heat_date", h.HeatDate), zap.Bool("induced", h.Induced))
	return &h, warnings, nil
}

// UpdateHeat edits a heat. Dates are frozen once the heat leaves "detected"
// because services and the expiry job were evaluated against them.
func (c *Coordinator) UpdateHeat(ctx context.Context, id int64, p HeatPatch) (*Heat, error) {
	current, err := c.store.GetHeat(ctx, id)
	if err != nil {
		return nil, err
	}
	var out Heat
	err = c.inSowTx(ctx, current.SowID, func(tx Repository, _ *Validator) error {
		h, err := tx.GetHeat(ctx, id)
		if err != nil {
			return err
		}
		if (p.HeatDate != nil || p.HeatEndDate != nil) && h.Status != HeatDetected {
			return &ImmutableError{Entity: "heat", ID: id, Reason: "dates can only change while the heat is detected"}
		}
		if p.HeatDate != nil {
			h.HeatDate = *p.HeatDate
		}
		if p.HeatEndDate != nil {
			h.HeatEndDate = p.HeatEndDate
		}
		if h.HeatEndDate != nil && h.HeatEndDate.Before(h.HeatDate) {
			return Invalid("heat_end_date", "cannot be before heat_date")
		}
		if p.Intensity != nil {
			if err := validIntensity(*p.Intensity); err != nil {
				return err
			}
			h.Intensity = *p.Intensity
		}
		setString(&h.InductionProtocol, p.InductionProtocol)
		setString(&h.Notes, p.Notes)
		c.stampUpdate(ctx, &h.Audit)
		if err := tx.UpdateHeat(ctx, h); err != nil {
			return err
		}
		out = *h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelHeat marks a detected heat as a false positive.
func (c *Coordinator) CancelHeat(ctx context.Context, id int64) (*Heat, error) {
	current, err := c.store.GetHeat(ctx, id)
	if err != nil {
		return nil, err
	}
	var out Heat
	err = c.inSowTx(ctx, current.SowID, func(tx Repository, _ *Validator) error {
		h, err := tx.GetHeat(ctx, id)
		if err != nil {
			return err
		}
		if h.Status != HeatDetected {
			return &ImmutableError{Entity: "heat", ID: id, Reason: "only detected heats can be cancelled (status: " + string(h.Status) + ")"}
		}
		h.Status = HeatCancelled
		c.stampUpdate(ctx, &h.Audit)
		if err := tx.UpdateHeat(ctx, h); err != nil {
			return err
		}
		out = *h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteHeat removes a heat that has no services.
func (c *Coordinator) DeleteHeat(ctx context.Context, id int64) error {
	current, err := c.store.GetHeat(ctx, id)
	if err != nil {
		return err
	}
	return c.inSowTx(ctx, current.SowID, func(tx Repository, _ *Validator) error {
		services, err := tx.ListServices(ctx, ServiceFilter{HeatID: id})
		if err != nil {
			return err
		}
		if len(services) > 0 {
			return &DependentsError{Entity: "heat", ID: id, Dependent: "service", Count: len(services)}
		}
		return tx.DeleteHeat(ctx, id)
	})
}

func validIntensity(i HeatIntensity) error {
	switch i {
	case IntensityLow, IntensityMedium, IntensityHigh:
		return nil
	}
	return Invalid("intensity", "must be low, medium or high")
}

package breeding

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ServicePatch lists the editable service fields.
type ServicePatch struct {
	ServiceDate           *Date
	BoarID                *int64
	ServiceType           *ServiceType
	MatingDurationMinutes *int
	MatingQuality         *string
	InseminationType      *string
	SemenDoseCode         *string
	SemenVolumeML         *decimal.Decimal
	SemenConcentration    *decimal.Decimal
	TechnicianName        *string
	Success               *bool
	Notes                 *string
}

// RegisterService records a mating or insemination and marks the heat serviced.
func (c *Coordinator) RegisterService(ctx context.Context, s Service) (*Service, []string, error) {
	if s.SowID == 0 {
		return nil, nil, Invalid("sow_id", "is required")
	}
	if s.HeatID == 0 {
		return nil, nil, Invalid("heat_id", "is required")
	}
	if s.ServiceDate.IsZero() {
		return nil, nil, Invalid("service_date", "is required")
	}
	if err := validServiceType(s.ServiceType); err != nil {
		return nil, nil, err
	}

	var warnings []string
	err := c.inSowTx(ctx, s.SowID, func(tx Repository, v *Validator) error {
		res, err := v.CanRegisterService(ctx, s.SowID, s.HeatID, s.ServiceDate)
		if err != nil {
			return err
		}
		if err := res.Err("register service"); err != nil {
			return err
		}
		warnings = res.Warnings

		if err := checkBoar(ctx, tx, s.ServiceType, s.BoarID); err != nil {
			return err
		}
		s.normalize()

		existing, err := tx.ListServices(ctx, ServiceFilter{HeatID: s.HeatID})
		if err != nil {
			return err
		}
		s.ServiceNumber = len(existing) + 1
		c.stampCreate(ctx, &s.Audit)
		if err := tx.CreateService(ctx, &s); err != nil {
			return err
		}

		heat, err := tx.GetHeat(ctx, s.HeatID)
		if err != nil {
			return err
		}
		if heat.Status != HeatServiced {
			heat.Status = HeatServiced
			c.stampUpdate(ctx, &heat.Audit)
			if err := tx.UpdateHeat(ctx, heat); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	c.logger.Info("service registered",
		zap.Int64("service_id", s.ID), zap.Int64("sow_id", s.SowID),
		zap.Int64("heat_id", s.HeatID), zap.Int("service_number", s.ServiceNumber))
	return &s, warnings, nil
}

// UpdateService edits a service. A service that produced a confirmed
// pregnancy is part of that pregnancy's record and cannot change.
func (c *Coordinator) UpdateService(ctx context.Context, id int64, p ServicePatch) (*Service, error) {
	current, err := c.store.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	var out Service
	err = c.inSowTx(ctx, current.SowID, func(tx Repository, v *Validator) error {
		s, err := tx.GetService(ctx, id)
		if err != nil {
			return err
		}
		confirmed, err := hasConfirmedPregnancy(ctx, tx, id)
		if err != nil {
			return err
		}
		if confirmed {
			return &ImmutableError{Entity: "service", ID: id, Reason: "it has a confirmed pregnancy"}
		}

		if p.ServiceDate != nil && !p.ServiceDate.Equal(s.ServiceDate) {
			res, err := v.CheckServiceDate(ctx, s, *p.ServiceDate)
			if err != nil {
				return err
			}
			if err := res.Err("update service"); err != nil {
				return err
			}
			s.ServiceDate = *p.ServiceDate
		}
		if p.ServiceType != nil {
			if err := validServiceType(*p.ServiceType); err != nil {
				return err
			}
			s.ServiceType = *p.ServiceType
		}
		if p.BoarID != nil {
			s.BoarID = p.BoarID
		}
		if p.BoarID != nil || p.ServiceType != nil {
			if err := checkBoar(ctx, tx, s.ServiceType, s.BoarID); err != nil {
				return err
			}
		}
		if p.MatingDurationMinutes != nil {
			s.MatingDurationMinutes = p.MatingDurationMinutes
		}
		setString(&s.MatingQuality, p.MatingQuality)
		setString(&s.InseminationType, p.InseminationType)
		setString(&s.SemenDoseCode, p.SemenDoseCode)
		if p.SemenVolumeML != nil {
			s.SemenVolumeML = decimal.NewNullDecimal(*p.SemenVolumeML)
		}
		if p.SemenConcentration != nil {
			s.SemenConcentration = decimal.NewNullDecimal(*p.SemenConcentration)
		}
		setString(&s.TechnicianName, p.TechnicianName)
		if p.Success != nil {
			s.Success = p.Success
		}
		setString(&s.Notes, p.Notes)
		s.normalize()

		c.stampUpdate(ctx, &s.Audit)
		if err := tx.UpdateService(ctx, s); err != nil {
			return err
		}
		out = *s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteService removes a service that no pregnancy references. When the
// last service of a heat is removed the heat returns to "detected".
func (c *Coordinator) DeleteService(ctx context.Context, id int64) error {
	current, err := c.store.GetService(ctx, id)
	if err != nil {
		return err
	}
	return c.inSowTx(ctx, current.SowID, func(tx Repository, _ *Validator) error {
		s, err := tx.GetService(ctx, id)
		if err != nil {
			return err
		}
		pregs, err := tx.ListPregnancies(ctx, PregnancyFilter{ServiceID: id})
		if err != nil {
			return err
		}
		if len(pregs) > 0 {
			return &DependentsError{Entity: "service", ID: id, Dependent: "pregnancy", Count: len(pregs)}
		}
		if err := tx.DeleteService(ctx, id); err != nil {
			return err
		}

		remaining, err := tx.ListServices(ctx, ServiceFilter{HeatID: s.HeatID})
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			return nil
		}
		heat, err := tx.GetHeat(ctx, s.HeatID)
		if err != nil {
			return err
		}
		if heat.Status == HeatServiced {
			heat.Status = HeatDetected
			c.stampUpdate(ctx, &heat.Audit)
			return tx.UpdateHeat(ctx, heat)
		}
		return nil
	})
}

func validServiceType(t ServiceType) error {
	if t != ServiceNatural && t != ServiceArtificial {
		return Invalid("service_type", "must be natural or artificial")
	}
	return nil
}

// checkBoar requires an active boar for natural mating. Artificial services
// may omit the boar (pooled semen) but a named boar must exist.
func checkBoar(ctx context.Context, r Reader, t ServiceType, boarID *int64) error {
	if boarID == nil || *boarID == 0 {
		if t == ServiceNatural {
			return Invalid("boar_id", "is required for natural service")
		}
		return nil
	}
	boar, err := r.GetBoar(ctx, *boarID)
	if IsNotFound(err) {
		return Invalid("boar_id", "boar %d does not exist", *boarID)
	}
	if err != nil {
		return err
	}
	if boar.Status != BoarActive {
		return Invalid("boar_id", "boar %s is not active", boar.EarTag)
	}
	return nil
}

func hasConfirmedPregnancy(ctx context.Context, r Reader, serviceID int64) (bool, error) {
	confirmed := true
	pregs, err := r.ListPregnancies(ctx, PregnancyFilter{ServiceID: serviceID, Confirmed: &confirmed, Limit: 1})
	if err != nil {
		return false, err
	}
	return len(pregs) > 0, nil
}

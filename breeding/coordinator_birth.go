package breeding

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// BIRTHS
// =============================================================================

// BirthInput is the payload of CreateBirth.
type BirthInput struct {
	Birth
	// SkipLitter suppresses the automatic creation of one lactating piglet
	// per live-born piglet.
	SkipLitter bool
}

// BirthPatch lists the editable birth fields.
type BirthPatch struct {
	BirthDate           *Date
	GestationDays       *int
	BirthType           *BirthType
	TotalBorn           *int
	BornAlive           *int
	BornDead            *int
	Mummified           *int
	Malformed           *int
	TotalLitterWeight   *decimal.Decimal
	AvgPigletWeight     *decimal.Decimal
	ExpectedWeaningDate *Date
	Notes               *string
}

// CreateBirth records a farrowing, closes the pregnancy and registers the litter.
func (c *Coordinator) CreateBirth(ctx context.Context, in BirthInput) (*Birth, error) {
	b := in.Birth
	if b.SowID == 0 {
		return nil, Invalid("sow_id", "is required")
	}
	if b.PregnancyID == 0 {
		return nil, Invalid("pregnancy_id", "is required")
	}
	if b.BirthDate.IsZero() {
		return nil, Invalid("birth_date", "is required")
	}
	if b.BirthDate.After(c.Today()) {
		return nil, Invalid("birth_date", "cannot be in the future")
	}
	if b.BirthType == "" {
		b.BirthType = BirthNormal
	}
	if err := validBirthType(b.BirthType); err != nil {
		return nil, err
	}
	if err := checkLitterCounts(&b); err != nil {
		return nil, err
	}

	err := c.inSowTx(ctx, b.SowID, func(tx Repository, _ *Validator) error {
		preg, err := openPregnancy(ctx, tx, b.PregnancyID, b.SowID)
		if err != nil {
			return err
		}
		if b.GestationDays == 0 {
			b.GestationDays = DaysBetween(preg.ConceptionDate, b.BirthDate)
		}
		if err := checkBirthGestation(b.GestationDays); err != nil {
			return err
		}
		if b.BoarID == nil {
			if svc, err := tx.GetService(ctx, preg.ServiceID); err == nil {
				b.BoarID = svc.BoarID
			} else if !IsNotFound(err) {
				return err
			}
		}
		if b.ExpectedWeaningDate == nil {
			b.ExpectedWeaningDate = b.BirthDate.AddDays(c.periods.LactationDays).Ptr()
		}
		if b.ExpectedWeaningDate.Before(b.BirthDate) {
			return Invalid("expected_weaning_date", "cannot be before birth_date")
		}
		b.WeanedOn = nil

		c.stampCreate(ctx, &b.Audit)
		if err := tx.CreateBirth(ctx, &b); err != nil {
			return err
		}

		preg.Status = PregnancyCompletedBirth
		c.stampUpdate(ctx, &preg.Audit)
		if err := tx.UpdatePregnancy(ctx, preg); err != nil {
			return err
		}

		if in.SkipLitter {
			return nil
		}
		for i := 1; i <= b.BornAlive; i++ {
			order := i
			p := Piglet{
				BirthID:       b.ID,
				SowID:         b.SowID,
				BirthOrder:    &order,
				BirthStatus:   PigletBornAlive,
				CurrentStatus: PigletLactating,
			}
			c.stampCreate(ctx, &p.Audit)
			if err := tx.CreatePiglet(ctx, &p); err != nil {
				return fmt.Errorf("register piglet %d of litter: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("birth recorded",
		zap.Int64("birth_id", b.ID), zap.Int64("sow_id", b.SowID),
		zap.Int("total_born", b.TotalBorn), zap.Int("born_alive", b.BornAlive))
	return &b, nil
}

// UpdateBirth edits a birth. The litter equation and gestation bounds are
// re-checked against the merged record.
func (c *Coordinator) UpdateBirth(ctx context.Context, id int64, p BirthPatch) (*Birth, error) {
	current, err := c.store.GetBirth(ctx, id)
	if err != nil {
		return nil, err
	}
	var out Birth
	err = c.inSowTx(ctx, current.SowID, func(tx Repository, _ *Validator) error {
		b, err := tx.GetBirth(ctx, id)
		if err != nil {
			return err
		}
		if p.BirthDate != nil {
			if p.BirthDate.After(c.Today()) {
				return Invalid("birth_date", "cannot be in the future")
			}
			b.BirthDate = *p.BirthDate
		}
		setInt(&b.GestationDays, p.GestationDays)
		if p.BirthType != nil {
			if err := validBirthType(*p.BirthType); err != nil {
				return err
			}
			b.BirthType = *p.BirthType
		}
		setInt(&b.TotalBorn, p.TotalBorn)
		setInt(&b.BornAlive, p.BornAlive)
		setInt(&b.BornDead, p.BornDead)
		setInt(&b.Mummified, p.Mummified)
		setInt(&b.Malformed, p.Malformed)
		if p.TotalLitterWeight != nil {
			b.TotalLitterWeight = decimal.NewNullDecimal(*p.TotalLitterWeight)
		}
		if p.AvgPigletWeight != nil {
			b.AvgPigletWeight = decimal.NewNullDecimal(*p.AvgPigletWeight)
		}
		if p.ExpectedWeaningDate != nil {
			b.ExpectedWeaningDate = p.ExpectedWeaningDate
		}
		if b.ExpectedWeaningDate != nil && b.ExpectedWeaningDate.Before(b.BirthDate) {
			return Invalid("expected_weaning_date", "cannot be before birth_date")
		}
		setString(&b.Notes, p.Notes)

		if err := checkLitterCounts(b); err != nil {
			return err
		}
		if err := checkBirthGestation(b.GestationDays); err != nil {
			return err
		}
		if err := checkRegisteredPiglets(ctx, tx, b); err != nil {
			return err
		}

		c.stampUpdate(ctx, &b.Audit)
		if err := tx.UpdateBirth(ctx, b); err != nil {
			return err
		}
		out = *b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteBirth removes a birth with no registered piglets and reopens its pregnancy.
func (c *Coordinator) DeleteBirth(ctx context.Context, id int64) error {
	current, err := c.store.GetBirth(ctx, id)
	if err != nil {
		return err
	}
	return c.inSowTx(ctx, current.SowID, func(tx Repository, _ *Validator) error {
		piglets, err := tx.ListPiglets(ctx, PigletFilter{BirthID: id})
		if err != nil {
			return err
		}
		if len(piglets) > 0 {
			return &DependentsError{Entity: "birth", ID: id, Dependent: "piglet", Count: len(piglets)}
		}
		if err := c.reopenPregnancy(ctx, tx, current.PregnancyID, PregnancyCompletedBirth); err != nil {
			return err
		}
		return tx.DeleteBirth(ctx, id)
	})
}

// =============================================================================
// ABORTIONS
// =============================================================================

// AbortionPatch lists the editable abortion fields.
type AbortionPatch struct {
	AbortionDate    *Date
	GestationDays   *int
	FetusesExpelled *int
	ProbableCause   *string
	Notes           *string
}

// CreateAbortion records a pregnancy loss and closes the pregnancy.
func (c *Coordinator) CreateAbortion(ctx context.Context, a Abortion) (*Abortion, error) {
	if a.SowID == 0 {
		return nil, Invalid("sow_id", "is required")
	}
	if a.PregnancyID == 0 {
		return nil, Invalid("pregnancy_id", "is required")
	}
	if a.AbortionDate.IsZero() {
		return nil, Invalid("abortion_date", "is required")
	}
	if a.AbortionDate.After(c.Today()) {
		return nil, Invalid("abortion_date", "cannot be in the future")
	}
	if a.FetusesExpelled != nil && *a.FetusesExpelled < 0 {
		return nil, Invalid("fetuses_expelled", "cannot be negative")
	}

	err := c.inSowTx(ctx, a.SowID, func(tx Repository, _ *Validator) error {
		preg, err := openPregnancy(ctx, tx, a.PregnancyID, a.SowID)
		if err != nil {
			return err
		}
		if a.GestationDays == 0 {
			a.GestationDays = DaysBetween(preg.ConceptionDate, a.AbortionDate)
		}
		if err := checkAbortionGestation(a.GestationDays); err != nil {
			return err
		}
		c.stampCreate(ctx, &a.Audit)
		if err := tx.CreateAbortion(ctx, &a); err != nil {
			return err
		}
		preg.Status = PregnancyCompletedAbortion
		c.stampUpdate(ctx, &preg.Audit)
		return tx.UpdatePregnancy(ctx, preg)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("abortion recorded",
		zap.Int64("abortion_id", a.ID), zap.Int64("sow_id", a.SowID),
		zap.Int("gestation_days", a.GestationDays))
	return &a, nil
}

func (c *Coordinator) UpdateAbortion(ctx context.Context, id int64, p AbortionPatch) (*Abortion, error) {
	current, err := c.store.GetAbortion(ctx, id)
	if err != nil {
		return nil, err
	}
	var out Abortion
	err = c.inSowTx(ctx, current.SowID, func(tx Repository, _ *Validator) error {
		a, err := tx.GetAbortion(ctx, id)
		if err != nil {
			return err
		}
		if p.AbortionDate != nil {
			if p.AbortionDate.After(c.Today()) {
				return Invalid("abortion_date", "cannot be in the future")
			}
			a.AbortionDate = *p.AbortionDate
		}
		setInt(&a.GestationDays, p.GestationDays)
		if p.FetusesExpelled != nil {
			if *p.FetusesExpelled < 0 {
				return Invalid("fetuses_expelled", "cannot be negative")
			}
			a.FetusesExpelled = p.FetusesExpelled
		}
		setString(&a.ProbableCause, p.ProbableCause)
		setString(&a.Notes, p.Notes)
		if err := checkAbortionGestation(a.GestationDays); err != nil {
			return err
		}
		c.stampUpdate(ctx, &a.Audit)
		if err := tx.UpdateAbortion(ctx, a); err != nil {
			return err
		}
		out = *a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAbortion removes an abortion and reopens its pregnancy.
func (c *Coordinator) DeleteAbortion(ctx context.Context, id int64) error {
	current, err := c.store.GetAbortion(ctx, id)
	if err != nil {
		return err
	}
	return c.inSowTx(ctx, current.SowID, func(tx Repository, _ *Validator) error {
		if err := c.reopenPregnancy(ctx, tx, current.PregnancyID, PregnancyCompletedAbortion); err != nil {
			return err
		}
		return tx.DeleteAbortion(ctx, id)
	})
}

// reopenPregnancy returns a pregnancy closed by the deleted outcome to
// in-progress, unless the sow has since started another one.
func (c *Coordinator) reopenPregnancy(ctx context.Context, tx Repository, pregnancyID int64, closedAs PregnancyStatus) error {
	preg, err := tx.GetPregnancy(ctx, pregnancyID)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if preg.Status != closedAs {
		return nil
	}
	active, err := activePregnancy(ctx, tx, preg.SowID)
	if err != nil {
		return err
	}
	if active != nil {
		return &ImmutableError{Entity: "pregnancy", ID: pregnancyID,
			Reason: fmt.Sprintf("cannot reopen: sow already has pregnancy %d in progress", active.ID)}
	}
	preg.Status = PregnancyInProgress
	c.stampUpdate(ctx, &preg.Audit)
	return tx.UpdatePregnancy(ctx, preg)
}

// =============================================================================
// PIGLETS
// =============================================================================

// PigletPatch lists the editable piglet fields. BirthStatus is fixed at birth.
type PigletPatch struct {
	EarTag        *string
	Sex           *PigletSex
	BirthOrder    *int
	BirthWeight   *decimal.Decimal
	CurrentStatus *PigletStatus
	WeaningDate   *Date
	WeaningWeight *decimal.Decimal
	Notes         *string
}

// CreatePiglet registers one piglet of a litter.
func (c *Coordinator) CreatePiglet(ctx context.Context, p Piglet) (*Piglet, error) {
	if p.BirthID == 0 {
		return nil, Invalid("birth_id", "is required")
	}
	if p.BirthStatus == "" {
		p.BirthStatus = PigletBornAlive
	}
	if err := validPigletBirthStatus(p.BirthStatus); err != nil {
		return nil, err
	}
	if p.Sex != "" && p.Sex != PigletMale && p.Sex != PigletFemale {
		return nil, Invalid("sex", "must be male or female")
	}
	birth, err := c.store.GetBirth(ctx, p.BirthID)
	if err != nil {
		return nil, err
	}

	err = c.inSowTx(ctx, birth.SowID, func(tx Repository, _ *Validator) error {
		b, err := tx.GetBirth(ctx, p.BirthID)
		if err != nil {
			return err
		}
		p.SowID = b.SowID

		existing, err := tx.ListPiglets(ctx, PigletFilter{BirthID: b.ID})
		if err != nil {
			return err
		}
		if len(existing) >= b.TotalBorn {
			return Invalid("birth_id", "litter already has %d registered piglets (total born: %d)", len(existing), b.TotalBorn)
		}
		if p.BirthStatus == PigletBornAlive {
			alive := 0
			for _, e := range existing {
				if e.BirthStatus == PigletBornAlive {
					alive++
				}
			}
			if alive >= b.BornAlive {
				return Invalid("birth_status", "litter already has %d live-born piglets (born alive: %d)", alive, b.BornAlive)
			}
		}

		switch {
		case p.BirthStatus != PigletBornAlive:
			p.CurrentStatus = PigletDead
		case p.CurrentStatus == "":
			p.CurrentStatus = PigletLactating
			if b.WeanedOn != nil {
				p.CurrentStatus = PigletWeaned
				p.WeaningDate = b.WeanedOn
			}
		}
		if err := validPigletStatus(p.CurrentStatus); err != nil {
			return err
		}
		c.stampCreate(ctx, &p.Audit)
		return tx.CreatePiglet(ctx, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePiglet edits a piglet. Weaning the last nursing piglet by hand closes
// the litter the same way the weaning job does.
func (c *Coordinator) UpdatePiglet(ctx context.Context, id int64, patch PigletPatch) (*Piglet, error) {
	current, err := c.store.GetPiglet(ctx, id)
	if err != nil {
		return nil, err
	}
	var out Piglet
	err = c.inSowTx(ctx, current.SowID, func(tx Repository, _ *Validator) error {
		p, err := tx.GetPiglet(ctx, id)
		if err != nil {
			return err
		}
		reopen := false
		setString(&p.EarTag, patch.EarTag)
		if patch.Sex != nil {
			if *patch.Sex != PigletMale && *patch.Sex != PigletFemale {
				return Invalid("sex", "must be male or female")
			}
			p.Sex = *patch.Sex
		}
		if patch.BirthOrder != nil {
			p.BirthOrder = patch.BirthOrder
		}
		if patch.BirthWeight != nil {
			p.BirthWeight = decimal.NewNullDecimal(*patch.BirthWeight)
		}
		if patch.WeaningWeight != nil {
			p.WeaningWeight = decimal.NewNullDecimal(*patch.WeaningWeight)
		}
		setString(&p.Notes, patch.Notes)

		if patch.CurrentStatus != nil && *patch.CurrentStatus != p.CurrentStatus {
			next := *patch.CurrentStatus
			if err := validPigletStatus(next); err != nil {
				return err
			}
			if p.BirthStatus != PigletBornAlive && next != PigletDead {
				return &ImmutableError{Entity: "piglet", ID: id, Reason: "a piglet born " + string(p.BirthStatus) + " stays dead"}
			}
			switch next {
			case PigletWeaned:
				if patch.WeaningDate == nil && p.WeaningDate == nil {
					p.WeaningDate = c.Today().Ptr()
				}
			case PigletLactating:
				p.WeaningDate = nil
				reopen = true
			}
			p.CurrentStatus = next
		}
		if patch.WeaningDate != nil {
			p.WeaningDate = patch.WeaningDate
		}

		c.stampUpdate(ctx, &p.Audit)
		if err := tx.UpdatePiglet(ctx, p); err != nil {
			return err
		}
		out = *p
		if reopen {
			return c.reopenLitter(ctx, tx, p.BirthID)
		}
		return c.closeLitterIfWeaned(ctx, tx, p.BirthID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePiglet removes a piglet row. A litter with no rows left falls back to
// the birth counts, so deleting the last row of a closed litter is refused
// rather than putting the sow back to lactating.
func (c *Coordinator) DeletePiglet(ctx context.Context, id int64) error {
	current, err := c.store.GetPiglet(ctx, id)
	if err != nil {
		return err
	}
	return c.inSowTx(ctx, current.SowID, func(tx Repository, _ *Validator) error {
		b, err := tx.GetBirth(ctx, current.BirthID)
		if err != nil {
			return err
		}
		piglets, err := tx.ListPiglets(ctx, PigletFilter{BirthID: b.ID})
		if err != nil {
			return err
		}
		remaining := make([]Piglet, 0, len(piglets))
		for _, p := range piglets {
			if p.ID != id {
				remaining = append(remaining, p)
			}
		}
		if !nursing(b, piglets) && nursing(b, remaining) {
			return &ImmutableError{Entity: "piglet", ID: id, Reason: "it is the last piglet of a litter that is no longer nursing"}
		}
		if err := tx.DeletePiglet(ctx, id); err != nil {
			return err
		}
		return c.closeLitterIfWeaned(ctx, tx, b.ID)
	})
}

// reopenLitter clears Birth.WeanedOn after a piglet went back to nursing,
// so the sow is lactating again and the weaning job picks the litter up.
func (c *Coordinator) reopenLitter(ctx context.Context, tx Repository, birthID int64) error {
	b, err := tx.GetBirth(ctx, birthID)
	if err != nil {
		return err
	}
	if b.WeanedOn == nil {
		return nil
	}
	b.WeanedOn = nil
	c.stampUpdate(ctx, &b.Audit)
	return tx.UpdateBirth(ctx, b)
}

// closeLitterIfWeaned stamps Birth.WeanedOn once no registered piglet is
// nursing and at least one was weaned.
func (c *Coordinator) closeLitterIfWeaned(ctx context.Context, tx Repository, birthID int64) error {
	b, err := tx.GetBirth(ctx, birthID)
	if err != nil {
		return err
	}
	if b.WeanedOn != nil {
		return nil
	}
	piglets, err := tx.ListPiglets(ctx, PigletFilter{BirthID: birthID})
	if err != nil {
		return err
	}
	var last *Date
	for _, p := range piglets {
		if p.CurrentStatus == PigletLactating {
			return nil
		}
		if p.CurrentStatus == PigletWeaned && p.WeaningDate != nil {
			last = LaterOf(last, p.WeaningDate)
		}
	}
	if last == nil {
		return nil
	}
	b.WeanedOn = last
	c.stampUpdate(ctx, &b.Audit)
	return tx.UpdateBirth(ctx, b)
}

// =============================================================================
// INVARIANTS
// =============================================================================

func checkLitterCounts(b *Birth) error {
	for _, v := range []struct {
		field string
		n     int
	}{
		{"total_born", b.TotalBorn},
		{"born_alive", b.BornAlive},
		{"born_dead", b.BornDead},
		{"mummified", b.Mummified},
		{"malformed", b.Malformed},
	} {
		if v.n < 0 {
			return Invalid(v.field, "cannot be negative")
		}
	}
	if sum := b.BornAlive + b.BornDead + b.Mummified; b.TotalBorn != sum {
		return Invalid("total_born", "must equal born_alive + born_dead + mummified (%d + %d + %d = %d, got %d)",
			b.BornAlive, b.BornDead, b.Mummified, sum, b.TotalBorn)
	}
	if b.Malformed > b.TotalBorn {
		return Invalid("malformed", "cannot exceed total_born")
	}
	return nil
}

func checkBirthGestation(days int) error {
	if days < MinBirthGestationDays || days > MaxBirthGestationDays {
		return Invalid("gestation_days", "must be between %d and %d (got %d)",
			MinBirthGestationDays, MaxBirthGestationDays, days)
	}
	return nil
}

func checkAbortionGestation(days int) error {
	if days < MinAbortionGestationDays || days > MaxAbortionGestationDays {
		return Invalid("gestation_days", "must be between %d and %d (got %d)",
			MinAbortionGestationDays, MaxAbortionGestationDays, days)
	}
	return nil
}

// checkRegisteredPiglets keeps the litter counts above what is already registered.
func checkRegisteredPiglets(ctx context.Context, r Reader, b *Birth) error {
	piglets, err := r.ListPiglets(ctx, PigletFilter{BirthID: b.ID})
	if err != nil {
		return err
	}
	alive := 0
	for _, p := range piglets {
		if p.BirthStatus == PigletBornAlive {
			alive++
		}
	}
	if len(piglets) > b.TotalBorn {
		return Invalid("total_born", "%d piglets are already registered for this litter", len(piglets))
	}
	if alive > b.BornAlive {
		return Invalid("born_alive", "%d live-born piglets are already registered for this litter", alive)
	}
	return nil
}

// openPregnancy loads a pregnancy that can still receive an outcome.
func openPregnancy(ctx context.Context, r Reader, pregnancyID, sowID int64) (*Pregnancy, error) {
	preg, err := r.GetPregnancy(ctx, pregnancyID)
	if IsNotFound(err) {
		return nil, Invalid("pregnancy_id", "pregnancy %d does not exist", pregnancyID)
	}
	if err != nil {
		return nil, err
	}
	if preg.SowID != sowID {
		return nil, Invalid("pregnancy_id", "pregnancy %d does not belong to sow %d", pregnancyID, sowID)
	}
	if preg.Status != PregnancyInProgress {
		return nil, Invalid("pregnancy_id", "pregnancy %d is not in progress (status: %s)", pregnancyID, preg.Status)
	}
	return preg, nil
}

func validBirthType(t BirthType) error {
	switch t {
	case BirthNormal, BirthAssisted, BirthCesarean:
		return nil
	}
	return Invalid("birth_type", "must be normal, assisted or cesarean")
}

func validPigletBirthStatus(s PigletBirthStatus) error {
	switch s {
	case PigletBornAlive, PigletBornDead, PigletBornMummified:
		return nil
	}
	return Invalid("birth_status", "must be alive, dead or mummified")
}

func validPigletStatus(s PigletStatus) error {
	switch s {
	case PigletLactating, PigletWeaned, PigletSold, PigletDead:
		return nil
	}
	return Invalid("current_status", "must be lactating, weaned, sold or dead")
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

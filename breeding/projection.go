/*
projection.go - Derives a sow's reproductive status from her event history

PURPOSE:
  Sow.ReproductiveStatus and the other derived sow fields are a cache of a
  pure function over the recorded events. The Coordinator loads the history
  inside the write transaction, calls Project() and writes the result back.
  Recomputing from history (instead of applying per-event deltas) makes the
  status correct after edits, deletes and out-of-order backfills.

RULES (first match wins):
  1. A pregnancy in progress:
       confirmed                         -> pregnant
       unconfirmed, service failed       -> empty
       unconfirmed                       -> in-service
  2. Most recent event is a birth:
       litter still nursing              -> lactating
       otherwise                         -> empty
  3. Most recent event is an abortion   -> empty
  4. Most recent event is a heat:
       detected                          -> in-heat
       serviced, outcome still open      -> in-service
       serviced, pregnancy ended/failed  -> empty
       not-serviced                      -> empty
  5. No history                          -> empty

NURSING:
  A litter nurses while it has live-born piglets, Birth.WeanedOn is unset,
  and either no piglets were registered individually or at least one
  registered piglet is still lactating.

SEE ALSO:
  - coordinator.go: reproject()
*/
package breeding

import "context"

// SowHistory is the input to Project().
type SowHistory struct {
	ActivePregnancy *Pregnancy
	ActiveService   *Service

	LatestHeat      *Heat
	HeatServices    []Service
	HeatPregnancies []Pregnancy

	LatestBirth   *Birth
	LitterPiglets []Piglet

	LatestAbortion *Abortion
	LatestService  *Service

	Births    []Birth
	Abortions []Abortion
}

// Projection is the derived portion of a Sow.
type Projection struct {
	ReproductiveStatus    ReproductiveStatus
	ExpectedFarrowingDate *Date
	LastServiceDate       *Date
	LastWeaningDate       *Date
	ParityCount           int
	TotalPigletsBorn      int
	TotalPigletsAlive     int
	TotalPigletsDead      int
	TotalAbortions        int
}

// Apply copies the projection onto sow.
func (p Projection) Apply(sow *Sow) {
	sow.ReproductiveStatus = p.ReproductiveStatus
	sow.ExpectedFarrowingDate = p.ExpectedFarrowingDate
	sow.LastServiceDate = p.LastServiceDate
	sow.LastWeaningDate = p.LastWeaningDate
	sow.ParityCount = p.ParityCount
	sow.TotalPigletsBorn = p.TotalPigletsBorn
	sow.TotalPigletsAlive = p.TotalPigletsAlive
	sow.TotalPigletsDead = p.TotalPigletsDead
	sow.TotalAbortions = p.TotalAbortions
}

// Changed reports whether applying p would modify sow.
func (p Projection) Changed(sow *Sow) bool {
	return p.ReproductiveStatus != sow.ReproductiveStatus ||
		!sameDate(p.ExpectedFarrowingDate, sow.ExpectedFarrowingDate) ||
		!sameDate(p.LastServiceDate, sow.LastServiceDate) ||
		!sameDate(p.LastWeaningDate, sow.LastWeaningDate) ||
		p.ParityCount != sow.ParityCount ||
		p.TotalPigletsBorn != sow.TotalPigletsBorn ||
		p.TotalPigletsAlive != sow.TotalPigletsAlive ||
		p.TotalPigletsDead != sow.TotalPigletsDead ||
		p.TotalAbortions != sow.TotalAbortions
}

func sameDate(a, b *Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Project computes the derived sow fields from h.
func Project(h SowHistory) Projection {
	p := Projection{
		ReproductiveStatus: projectStatus(h),
		ParityCount:        len(h.Births),
		TotalAbortions:     len(h.Abortions),
	}
	for _, b := range h.Births {
		p.TotalPigletsBorn += b.TotalBorn
		p.TotalPigletsAlive += b.BornAlive
		p.TotalPigletsDead += b.BornDead + b.Mummified
		if b.WeanedOn != nil {
			p.LastWeaningDate = LaterOf(p.LastWeaningDate, b.WeanedOn.Ptr())
		}
	}
	if h.ActivePregnancy != nil && h.ActivePregnancy.Confirmed {
		p.ExpectedFarrowingDate = h.ActivePregnancy.ExpectedFarrowingDate.Ptr()
	}
	if h.LatestService != nil {
		p.LastServiceDate = h.LatestService.ServiceDate.Ptr()
	}
	return p
}

func projectStatus(h SowHistory) ReproductiveStatus {
	if preg := h.ActivePregnancy; preg != nil {
		switch {
		case preg.Confirmed:
			return StatusPregnant
		case h.ActiveService != nil && failed(h.ActiveService):
			return StatusEmpty
		default:
			return StatusInService
		}
	}

	heat := h.LatestHeat
	birth := h.LatestBirth
	abortion := h.LatestAbortion

	// A heat is only the most recent event when strictly after the others.
	heatIsLatest := heat != nil &&
		(birth == nil || heat.HeatDate.After(birth.BirthDate)) &&
		(abortion == nil || heat.HeatDate.After(abortion.AbortionDate))

	if !heatIsLatest {
		switch {
		case birth != nil && (abortion == nil || !abortion.AbortionDate.After(birth.BirthDate)):
			if nursing(birth, h.LitterPiglets) {
				return StatusLactating
			}
			return StatusEmpty
		case abortion != nil:
			return StatusEmpty
		case heat == nil:
			return StatusEmpty
		}
	}

	switch heat.Status {
	case HeatDetected:
		return StatusInHeat
	case HeatServiced:
		if heatOutcomeClosed(h.HeatServices, h.HeatPregnancies) {
			return StatusEmpty
		}
		return StatusInService
	default:
		return StatusEmpty
	}
}

func failed(s *Service) bool {
	return s.Success != nil && !*s.Success
}

// heatOutcomeClosed reports whether a serviced heat has no remaining chance
// of a pregnancy: every service failed, or a pregnancy registered against it
// has already ended.
func heatOutcomeClosed(services []Service, pregnancies []Pregnancy) bool {
	for _, p := range pregnancies {
		if p.Status != PregnancyInProgress {
			return true
		}
	}
	if len(services) == 0 {
		return false
	}
	for i := range services {
		if !failed(&services[i]) {
			return false
		}
	}
	return true
}

func nursing(b *Birth, piglets []Piglet) bool {
	if b.BornAlive <= 0 || b.WeanedOn != nil {
		return false
	}
	if len(piglets) == 0 {
		return true
	}
	for _, p := range piglets {
		if p.CurrentStatus == PigletLactating {
			return true
		}
	}
	return false
}

// =============================================================================
// HISTORY LOADING
// =============================================================================

// LoadHistory reads everything Project() needs for one sow.
func LoadHistory(ctx context.Context, r Reader, sowID int64) (SowHistory, error) {
	var h SowHistory
	var err error

	if h.ActivePregnancy, err = activePregnancy(ctx, r, sowID); err != nil {
		return h, err
	}
	if h.ActivePregnancy != nil {
		svc, err := r.GetService(ctx, h.ActivePregnancy.ServiceID)
		if err != nil && !IsNotFound(err) {
			return h, err
		}
		h.ActiveService = svc
	}

	if h.LatestHeat, err = latestHeat(ctx, r, sowID, HeatDetected, HeatServiced, HeatNotServiced); err != nil {
		return h, err
	}
	if h.LatestHeat != nil && h.LatestHeat.Status == HeatServiced {
		if h.HeatServices, err = r.ListServices(ctx, ServiceFilter{HeatID: h.LatestHeat.ID}); err != nil {
			return h, err
		}
		for _, s := range h.HeatServices {
			pregs, err := r.ListPregnancies(ctx, PregnancyFilter{ServiceID: s.ID})
			if err != nil {
				return h, err
			}
			h.HeatPregnancies = append(h.HeatPregnancies, pregs...)
		}
	}

	if h.Births, err = r.ListBirths(ctx, BirthFilter{SowID: sowID}); err != nil {
		return h, err
	}
	if len(h.Births) > 0 {
		h.LatestBirth = &h.Births[0]
		if h.LitterPiglets, err = r.ListPiglets(ctx, PigletFilter{BirthID: h.LatestBirth.ID}); err != nil {
			return h, err
		}
	}

	if h.Abortions, err = r.ListAbortions(ctx, AbortionFilter{SowID: sowID}); err != nil {
		return h, err
	}
	if len(h.Abortions) > 0 {
		h.LatestAbortion = &h.Abortions[0]
	}

	services, err := r.ListServices(ctx, ServiceFilter{SowID: sowID, Limit: 1})
	if err != nil {
		return h, err
	}
	if len(services) > 0 {
		h.LatestService = &services[0]
	}
	return h, nil
}

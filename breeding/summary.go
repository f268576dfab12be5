package breeding

import "context"

// weaningToHeatDays is the usual delay between weaning and the next heat.
const weaningToHeatDays = 5

// ReproductiveSummary is a sow together with the latest event of each kind.
type ReproductiveSummary struct {
	Sow             *Sow       `json:"sow"`
	LastHeat        *Heat      `json:"last_heat"`
	LastService     *Service   `json:"last_service"`
	ActivePregnancy *Pregnancy `json:"active_pregnancy"`
	LastBirth       *Birth     `json:"last_birth"`
	LastAbortion    *Abortion  `json:"last_abortion"`
	IsLactating     bool       `json:"is_lactating"`
	// DaysInStatus counts days since the event that put the sow in her
	// current status. Nil when the sow has no history.
	DaysInStatus *int `json:"days_in_status"`
	// NextHeatDate estimates the next heat for an empty sow.
	NextHeatDate *Date `json:"next_heat_date,omitempty"`
}

// ReproductiveSummary gathers the sow's latest events for display.
func (c *Coordinator) ReproductiveSummary(ctx context.Context, sowID int64) (*ReproductiveSummary, error) {
	sow, err := c.store.GetSow(ctx, sowID)
	if err != nil {
		return nil, err
	}
	h, err := LoadHistory(ctx, c.store, sowID)
	if err != nil {
		return nil, err
	}
	out := &ReproductiveSummary{
		Sow:             sow,
		LastService:     h.LatestService,
		ActivePregnancy: h.ActivePregnancy,
		LastBirth:       h.LatestBirth,
		LastAbortion:    h.LatestAbortion,
	}
	if out.LastHeat, err = latestHeat(ctx, c.store, sowID); err != nil {
		return nil, err
	}
	if h.LatestBirth != nil {
		out.IsLactating = nursing(h.LatestBirth, h.LitterPiglets)
	}

	today := c.Today()
	var since *Date
	switch sow.ReproductiveStatus {
	case StatusPregnant:
		if h.ActivePregnancy != nil && h.ActivePregnancy.ConfirmationDate != nil {
			since = h.ActivePregnancy.ConfirmationDate
		}
	case StatusInService:
		if h.LatestService != nil {
			since = h.LatestService.ServiceDate.Ptr()
		}
	case StatusInHeat:
		if h.LatestHeat != nil {
			since = h.LatestHeat.HeatDate.Ptr()
		}
	case StatusLactating:
		if h.LatestBirth != nil {
			since = h.LatestBirth.BirthDate.Ptr()
		}
	case StatusEmpty:
		since = lastClosingEvent(h)
		if since != nil {
			out.NextHeatDate = c.nextHeat(h, *since, today).Ptr()
		}
	}
	if since != nil {
		days := DaysBetween(*since, today)
		out.DaysInStatus = &days
	}
	return out, nil
}

// lastClosingEvent is the most recent event that left the sow empty.
func lastClosingEvent(h SowHistory) *Date {
	var d *Date
	if h.LatestHeat != nil {
		d = LaterOf(d, h.LatestHeat.HeatDate.Ptr())
	}
	if h.LatestBirth != nil {
		d = LaterOf(d, h.LatestBirth.BirthDate.Ptr())
		if h.LatestBirth.WeanedOn != nil {
			d = LaterOf(d, h.LatestBirth.WeanedOn)
		}
	}
	if h.LatestAbortion != nil {
		d = LaterOf(d, h.LatestAbortion.AbortionDate.Ptr())
	}
	return d
}

// nextHeat projects the next expected heat from the last closing event:
// one cycle after a heat, the recovery period after a farrowing or abortion.
func (c *Coordinator) nextHeat(h SowHistory, since, today Date) Date {
	p := c.periods
	next := since.AddDays(p.HeatCycleDays)
	switch {
	case h.LatestAbortion != nil && h.LatestAbortion.AbortionDate.Equal(since):
		next = since.AddDays(p.PostAbortionRecoveryDays)
	case h.LatestBirth != nil && (h.LatestBirth.BirthDate.Equal(since) ||
		(h.LatestBirth.WeanedOn != nil && h.LatestBirth.WeanedOn.Equal(since))):
		next = h.LatestBirth.BirthDate.AddDays(p.PostParturitionRecoveryDays)
		if w := h.LatestBirth.WeanedOn; w != nil && w.AddDays(weaningToHeatDays).After(next) {
			next = w.AddDays(weaningToHeatDays)
		}
	}
	for next.Before(today) {
		next = next.AddDays(p.HeatCycleDays)
	}
	return next
}

package breeding

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// =============================================================================
// LITTER WEANING
// =============================================================================

// LitterWeaning is the outcome of weaning one litter.
type LitterWeaning struct {
	BirthID       int64  `json:"birth_id"`
	SowID         int64  `json:"sow_id"`
	SowEarTag     string `json:"sow_ear_tag"`
	WeaningDate   Date   `json:"weaning_date"`
	PigletsWeaned int    `json:"piglets_weaned"`
	AlreadyWeaned bool   `json:"already_weaned"`
}

// WeanLitter weans every lactating piglet of a birth, stamps the litter as
// weaned and re-derives the sow. Weaning is dated on the litter's expected
// weaning date when that has passed, so a late run still records the right
// day; an early manual wean is dated today.
// A litter that is no longer nursing is reported with AlreadyWeaned and left
// untouched.
func (c *Coordinator) WeanLitter(ctx context.Context, birthID int64) (*LitterWeaning, error) {
	current, err := c.store.GetBirth(ctx, birthID)
	if err != nil {
		return nil, err
	}
	out := &LitterWeaning{BirthID: birthID, SowID: current.SowID}

	err = c.inSowTx(ctx, current.SowID, func(tx Repository, _ *Validator) error {
		b, err := tx.GetBirth(ctx, birthID)
		if err != nil {
			return err
		}
		sow, err := tx.GetSow(ctx, b.SowID)
		if err != nil {
			return err
		}
		out.SowEarTag = sow.EarTag

		piglets, err := tx.ListPiglets(ctx, PigletFilter{BirthID: birthID})
		if err != nil {
			return err
		}
		if !nursing(b, piglets) {
			out.AlreadyWeaned = true
			if b.WeanedOn != nil {
				out.WeaningDate = *b.WeanedOn
			}
			return nil
		}

		on := c.Today()
		if b.ExpectedWeaningDate != nil && b.ExpectedWeaningDate.Before(on) {
			on = *b.ExpectedWeaningDate
		}
		n, err := tx.WeanPiglets(ctx, birthID, on)
		if err != nil {
			return fmt.Errorf("wean piglets of birth %d: %w", birthID, err)
		}
		b.WeanedOn = on.Ptr()
		c.stampUpdate(ctx, &b.Audit)
		if err := tx.UpdateBirth(ctx, b); err != nil {
			return err
		}
		out.WeaningDate = on
		out.PigletsWeaned = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !out.AlreadyWeaned {
		c.logger.Info("litter weaned",
			zap.Int64("birth_id", birthID), zap.Int64("sow_id", out.SowID),
			zap.Int("piglets", out.PigletsWeaned), zap.Stringer("weaning_date", out.WeaningDate))
	}
	return out, nil
}

// DueLitters lists births whose expected weaning date has arrived and that
// still nurse.
func (c *Coordinator) DueLitters(ctx context.Context) ([]Birth, error) {
	today := c.Today()
	return c.store.ListBirths(ctx, BirthFilter{WeaningDueBy: &today, Nursing: true})
}

// =============================================================================
// HEAT EXPIRY
// =============================================================================

// ExpiredHeat describes one heat closed by ExpireHeats.
type ExpiredHeat struct {
	HeatID      int64  `json:"heat_id"`
	SowID       int64  `json:"sow_id"`
	SowEarTag   string `json:"sow_ear_tag"`
	HeatDate    Date   `json:"heat_date"`
	HeatEndDate *Date  `json:"heat_end_date,omitempty"`
}

// ExpireHeats closes every detected heat whose service window has passed
// without a service, and re-derives the affected sows. The whole scan is one
// transaction: either every due heat is closed or none is.
func (c *Coordinator) ExpireHeats(ctx context.Context) ([]ExpiredHeat, error) {
	cutoff := c.Today().AddDays(-c.periods.ServiceWindowDays)
	due, err := c.store.ListHeats(ctx, HeatFilter{
		Statuses:         []HeatStatus{HeatDetected},
		Unserviced:       true,
		WindowEndsBefore: &cutoff,
	})
	if err != nil {
		return nil, fmt.Errorf("list expired heats: %w", err)
	}
	if len(due) == 0 {
		return nil, nil
	}

	sows := make([]int64, 0, len(due))
	seen := make(map[int64]bool)
	for _, h := range due {
		if !seen[h.SowID] {
			seen[h.SowID] = true
			sows = append(sows, h.SowID)
		}
	}
	// Fixed order so concurrent callers cannot deadlock on each other.
	sort.Slice(sows, func(i, j int) bool { return sows[i] < sows[j] })
	for _, id := range sows {
		unlock, err := c.locks.Lock(ctx, SowLockKey(id))
		if err != nil {
			return nil, fmt.Errorf("lock sow %d: %w", id, err)
		}
		defer unlock()
	}

	var expired []ExpiredHeat
	err = c.store.WithTx(ctx, func(tx Repository) error {
		expired = expired[:0]
		touched := make(map[int64]bool)
		for _, candidate := range due {
			h, err := tx.GetHeat(ctx, candidate.ID)
			if IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			if h.Status != HeatDetected || !h.WindowStart().AddDays(c.periods.ServiceWindowDays).Before(c.Today()) {
				continue
			}
			services, err := tx.ListServices(ctx, ServiceFilter{HeatID: h.ID, Limit: 1})
			if err != nil {
				return err
			}
			if len(services) > 0 {
				continue
			}
			h.Status = HeatNotServiced
			c.stampUpdate(ctx, &h.Audit)
			if err := tx.UpdateHeat(ctx, h); err != nil {
				return err
			}
			sow, err := tx.GetSow(ctx, h.SowID)
			if err != nil {
				return err
			}
			touched[h.SowID] = true
			expired = append(expired, ExpiredHeat{
				HeatID:      h.ID,
				SowID:       h.SowID,
				SowEarTag:   sow.EarTag,
				HeatDate:    h.HeatDate,
				HeatEndDate: h.HeatEndDate,
			})
		}
		for _, id := range sows {
			if !touched[id] {
				continue
			}
			if err := c.reproject(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(expired) > 0 {
		c.logger.Info("heats expired without service", zap.Int("count", len(expired)))
	}
	return expired, nil
}

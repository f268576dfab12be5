package breeding_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swinetrack/breeding-engine/breeding"
	"github.com/swinetrack/breeding-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// today is the fixed "now" of every coordinator built by newHerd.
var today = time.Date(2025, time.June, 30, 9, 0, 0, 0, time.UTC)

type herd struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Memory
	coord *breeding.Coordinator
}

func newHerd(t *testing.T) *herd {
	t.Helper()
	store := memory.New()
	return &herd{
		t:     t,
		ctx:   context.Background(),
		store: store,
		coord: breeding.NewCoordinator(store, breeding.WithClock(breeding.FixedClock{At: today})),
	}
}

func day(s string) breeding.Date { return breeding.MustDate(s) }

func (h *herd) sow(tag string) *breeding.Sow {
	h.t.Helper()
	s, err := h.coord.CreateSow(h.ctx, breeding.Sow{EarTag: tag})
	require.NoError(h.t, err)
	return s
}

func (h *herd) boar(tag string) *breeding.Boar {
	h.t.Helper()
	b, err := h.coord.CreateBoar(h.ctx, breeding.Boar{EarTag: tag})
	require.NoError(h.t, err)
	return b
}

func (h *herd) heat(sowID int64, date string) *breeding.Heat {
	h.t.Helper()
	heat, _, err := h.coord.RegisterHeat(h.ctx, breeding.Heat{SowID: sowID, HeatDate: day(date)})
	require.NoError(h.t, err)
	return heat
}

func (h *herd) service(sowID, heatID int64, date string) *breeding.Service {
	h.t.Helper()
	svc, _, err := h.coord.RegisterService(h.ctx, breeding.Service{
		SowID:       sowID,
		HeatID:      heatID,
		ServiceDate: day(date),
		ServiceType: breeding.ServiceArtificial,
	})
	require.NoError(h.t, err)
	return svc
}

func (h *herd) pregnancy(sowID, serviceID int64, conception string) *breeding.Pregnancy {
	h.t.Helper()
	p, _, err := h.coord.RegisterPregnancy(h.ctx, breeding.Pregnancy{
		SowID:          sowID,
		ServiceID:      serviceID,
		ConceptionDate: day(conception),
	})
	require.NoError(h.t, err)
	return p
}

func (h *herd) confirm(pregnancyID int64, date string) *breeding.Pregnancy {
	h.t.Helper()
	p, err := h.coord.ConfirmPregnancy(h.ctx, pregnancyID, breeding.Confirmation{
		Date:   day(date),
		Method: breeding.ConfirmUltrasound,
	})
	require.NoError(h.t, err)
	return p
}

// gestating walks a new sow from heat to a confirmed pregnancy conceived on
// 2025-01-02.
func (h *herd) gestating(tag string) (*breeding.Sow, *breeding.Pregnancy) {
	h.t.Helper()
	sow := h.sow(tag)
	heat := h.heat(sow.ID, "2025-01-02")
	svc := h.service(sow.ID, heat.ID, "2025-01-02")
	preg := h.pregnancy(sow.ID, svc.ID, "2025-01-02")
	return sow, h.confirm(preg.ID, "2025-01-30")
}

func (h *herd) reload(sowID int64) *breeding.Sow {
	h.t.Helper()
	s, err := h.store.GetSow(h.ctx, sowID)
	require.NoError(h.t, err)
	return s
}

func (h *herd) status(sowID int64) breeding.ReproductiveStatus {
	return h.reload(sowID).ReproductiveStatus
}

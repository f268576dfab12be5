package breeding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swinetrack/breeding-engine/breeding"
)

// =============================================================================
// LITTER WEANING
// =============================================================================

func (h *herd) farrowed(tag string) (*breeding.Sow, *breeding.Birth) {
	h.t.Helper()
	sow, preg := h.gestating(tag)
	birth, err := h.coord.CreateBirth(h.ctx, breeding.BirthInput{Birth: breeding.Birth{
		SowID: sow.ID, PregnancyID: preg.ID, BirthDate: day("2025-04-26"),
		TotalBorn: 9, BornAlive: 8, Mummified: 1,
	}})
	require.NoError(h.t, err)
	return sow, birth
}

func TestWeanLitter_BackdatedAndIdempotent(t *testing.T) {
	// GIVEN: A litter due for weaning on May 17th, processed on June 30th
	// WHEN: It is weaned twice
	// THEN: The first run dates weaning on May 17th; the second changes nothing

	h := newHerd(t)
	sow, birth := h.farrowed("S-1")

	due, err := h.coord.DueLitters(h.ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, birth.ID, due[0].ID)

	first, err := h.coord.WeanLitter(h.ctx, birth.ID)
	require.NoError(t, err)
	assert.False(t, first.AlreadyWeaned)
	assert.Equal(t, 8, first.PigletsWeaned)
	assert.Equal(t, day("2025-05-17"), first.WeaningDate)
	assert.Equal(t, "S-1", first.SowEarTag)

	piglets, err := h.store.ListPiglets(h.ctx, breeding.PigletFilter{BirthID: birth.ID})
	require.NoError(t, err)
	for _, p := range piglets {
		assert.Equal(t, breeding.PigletWeaned, p.CurrentStatus)
		assert.Equal(t, day("2025-05-17"), *p.WeaningDate)
	}

	second, err := h.coord.WeanLitter(h.ctx, birth.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyWeaned)
	assert.Equal(t, 0, second.PigletsWeaned)
	assert.Equal(t, day("2025-05-17"), second.WeaningDate, "original weaning date is kept")

	due, err = h.coord.DueLitters(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, due)
	assert.Equal(t, breeding.StatusEmpty, h.status(sow.ID))
}

func TestWeanLitter_WithoutPigletRows(t *testing.T) {
	h := newHerd(t)
	sow, preg := h.gestating("S-1")
	birth, err := h.coord.CreateBirth(h.ctx, breeding.BirthInput{
		Birth: breeding.Birth{
			SowID: sow.ID, PregnancyID: preg.ID, BirthDate: day("2025-04-26"),
			TotalBorn: 6, BornAlive: 6,
		},
		SkipLitter: true,
	})
	require.NoError(t, err)
	require.Equal(t, breeding.StatusLactating, h.status(sow.ID))

	res, err := h.coord.WeanLitter(h.ctx, birth.ID)
	require.NoError(t, err)

	assert.False(t, res.AlreadyWeaned)
	assert.Equal(t, 0, res.PigletsWeaned)
	assert.Equal(t, breeding.StatusEmpty, h.status(sow.ID))
}

func TestWeanLitter_EarlyWeanIsDatedToday(t *testing.T) {
	// GIVEN: A litter expected to wean on July 10th, today being June 30th
	// WHEN: It is weaned by hand
	// THEN: Weaning is recorded today, never in the future

	h := newHerd(t)
	sow, preg := h.gestating("S-1")
	birth, err := h.coord.CreateBirth(h.ctx, breeding.BirthInput{Birth: breeding.Birth{
		SowID: sow.ID, PregnancyID: preg.ID, BirthDate: day("2025-04-26"),
		TotalBorn: 2, BornAlive: 2, ExpectedWeaningDate: day("2025-07-10").Ptr(),
	}})
	require.NoError(t, err)

	res, err := h.coord.WeanLitter(h.ctx, birth.ID)
	require.NoError(t, err)

	assert.Equal(t, day("2025-06-30"), res.WeaningDate)
	s := h.reload(sow.ID)
	require.NotNil(t, s.LastWeaningDate)
	assert.Equal(t, day("2025-06-30"), *s.LastWeaningDate)
}

func TestWeanLitter_UnknownBirth(t *testing.T) {
	h := newHerd(t)

	_, err := h.coord.WeanLitter(h.ctx, 404)

	assert.True(t, breeding.IsNotFound(err))
}

// =============================================================================
// HEAT EXPIRY
// =============================================================================

func TestExpireHeats_ClosesOnlyPastWindow(t *testing.T) {
	// GIVEN: Today is June 30th and the service window is 3 days
	//   - S-1 heat on June 20th (window closed on June 23rd)
	//   - S-2 heat on June 28th (window still open)
	//   - S-3 heat on June 20th that ended June 28th (window still open)
	//   - S-4 heat on June 20th that was serviced
	// WHEN: The expiry runs
	// THEN: Only S-1's heat is closed and S-1 becomes empty

	h := newHerd(t)
	s1 := h.sow("S-1")
	s2 := h.sow("S-2")
	s3 := h.sow("S-3")
	s4 := h.sow("S-4")

	expired := h.heat(s1.ID, "2025-06-20")
	h.heat(s2.ID, "2025-06-28")
	_, _, err := h.coord.RegisterHeat(h.ctx, breeding.Heat{
		SowID: s3.ID, HeatDate: day("2025-06-20"), HeatEndDate: day("2025-06-28").Ptr(),
	})
	require.NoError(t, err)
	serviced := h.heat(s4.ID, "2025-06-20")
	h.service(s4.ID, serviced.ID, "2025-06-21")

	res, err := h.coord.ExpireHeats(h.ctx)
	require.NoError(t, err)

	require.Len(t, res, 1)
	assert.Equal(t, expired.ID, res[0].HeatID)
	assert.Equal(t, "S-1", res[0].SowEarTag)
	assert.Equal(t, breeding.StatusEmpty, h.status(s1.ID))
	assert.Equal(t, breeding.StatusInHeat, h.status(s2.ID))
	assert.Equal(t, breeding.StatusInHeat, h.status(s3.ID))
	assert.Equal(t, breeding.StatusInService, h.status(s4.ID))

	got, err := h.store.GetHeat(h.ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, breeding.HeatNotServiced, got.Status)

	again, err := h.coord.ExpireHeats(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, again, "second run finds nothing")
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestReproductiveSummary(t *testing.T) {
	h := newHerd(t)
	sow, birth := h.farrowed("S-1")

	sum, err := h.coord.ReproductiveSummary(h.ctx, sow.ID)
	require.NoError(t, err)

	assert.True(t, sum.IsLactating)
	require.NotNil(t, sum.LastBirth)
	assert.Equal(t, birth.ID, sum.LastBirth.ID)
	assert.Nil(t, sum.ActivePregnancy)
	require.NotNil(t, sum.DaysInStatus)
	assert.Equal(t, 65, *sum.DaysInStatus, "April 26th to June 30th")
}

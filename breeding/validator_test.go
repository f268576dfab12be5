package breeding_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swinetrack/breeding-engine/breeding"
)

// =============================================================================
// HEAT INTERVAL TESTS
// =============================================================================

func TestCanRegisterHeat_IntervalBands(t *testing.T) {
	// GIVEN: A sow with a heat on May 1st
	// WHEN: A new heat is checked 10, 19 and 25 days later
	// THEN: 10 days is rejected, 19 days warns, 25 days is clean

	cases := []struct {
		name      string
		date      string
		valid     bool
		errorPart string
		warnPart  string
	}{
		{name: "below minimum interval", date: "2025-05-11", valid: false, errorPart: "too short (10 days)"},
		{name: "inside gray zone", date: "2025-05-20", valid: true, warnPart: "(19 days) is shorter than the normal 21-day cycle"},
		{name: "normal cycle", date: "2025-05-26", valid: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHerd(t)
			sow := h.sow("S-1")
			h.heat(sow.ID, "2025-05-01")

			res, err := h.coord.Validator().CanRegisterHeat(h.ctx, sow.ID, day(tc.date))
			require.NoError(t, err)

			assert.Equal(t, tc.valid, res.Valid)
			assert.Equal(t, breeding.StatusInHeat, res.ReproductiveStatus)
			if tc.errorPart != "" {
				require.Len(t, res.Errors, 1)
				assert.Contains(t, res.Errors[0], tc.errorPart)
			} else {
				assert.Empty(t, res.Errors)
			}
			if tc.warnPart != "" {
				require.Len(t, res.Warnings, 1)
				assert.Contains(t, res.Warnings[0], tc.warnPart)
			} else {
				assert.Empty(t, res.Warnings)
			}
		})
	}
}

func TestCanRegisterHeat_UnknownSow(t *testing.T) {
	h := newHerd(t)

	res, err := h.coord.Validator().CanRegisterHeat(h.ctx, 999, day("2025-05-01"))
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Equal(t, []string{"sow not found"}, res.Errors)
	assert.NotNil(t, res.Warnings, "empty lists serialise as []")
}

func TestCanRegisterHeat_InactiveSow(t *testing.T) {
	h := newHerd(t)
	sow := h.sow("S-1")
	_, err := h.coord.DeactivateSow(h.ctx, sow.ID, breeding.SowSold)
	require.NoError(t, err)

	res, err := h.coord.Validator().CanRegisterHeat(h.ctx, sow.ID, day("2025-05-01"))
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "not active")
}

func TestCanRegisterHeat_ConfirmedPregnancyBlocks(t *testing.T) {
	h := newHerd(t)
	sow, _ := h.gestating("S-1")

	res, err := h.coord.Validator().CanRegisterHeat(h.ctx, sow.ID, day("2025-02-20"))
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "confirmed pregnancy")
}

func TestRegisterHeat_RejectedHeatIsNotStored(t *testing.T) {
	// GIVEN: A heat on May 1st
	// WHEN: Registering another heat on May 11th
	// THEN: ErrValidation carries the result and nothing is written

	h := newHerd(t)
	sow := h.sow("S-1")
	h.heat(sow.ID, "2025-05-01")

	_, _, err := h.coord.RegisterHeat(h.ctx, breeding.Heat{SowID: sow.ID, HeatDate: day("2025-05-11")})

	require.ErrorIs(t, err, breeding.ErrValidation)
	var verr *breeding.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.False(t, verr.Result.Valid)

	heats, err := h.store.ListHeats(h.ctx, breeding.HeatFilter{SowID: sow.ID})
	require.NoError(t, err)
	assert.Len(t, heats, 1)
}

func TestRegisterHeat_InducedDowngradesShortInterval(t *testing.T) {
	h := newHerd(t)
	sow := h.sow("S-1")
	h.heat(sow.ID, "2025-05-01")

	heat, warnings, err := h.coord.RegisterHeat(h.ctx, breeding.Heat{
		SowID:    sow.ID,
		HeatDate: day("2025-05-11"),
		Induced:  true,
	})

	require.NoError(t, err)
	assert.True(t, heat.Induced)
	assert.Len(t, warnings, 2, "short interval plus induced-heat notice")
}

// =============================================================================
// SERVICE WINDOW TESTS
// =============================================================================

func TestCanRegisterService_RepeatServiceWindow(t *testing.T) {
	// GIVEN: A heat serviced on May 1st
	// WHEN: A repeat service is checked 2 and 5 days later
	// THEN: 2 days warns about an additional service, 5 days is rejected

	h := newHerd(t)
	sow := h.sow("S-1")
	heat := h.heat(sow.ID, "2025-05-01")
	h.service(sow.ID, heat.ID, "2025-05-01")

	res, err := h.coord.Validator().CanRegisterService(h.ctx, sow.ID, heat.ID, day("2025-05-03"))
	require.NoError(t, err)
	assert.True(t, res.Valid)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "service #2")

	res, err = h.coord.Validator().CanRegisterService(h.ctx, sow.ID, heat.ID, day("2025-05-06"))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "5 days ago")
}

func TestCanRegisterService_HeatOfAnotherSow(t *testing.T) {
	h := newHerd(t)
	a := h.sow("S-1")
	b := h.sow("S-2")
	heat := h.heat(a.ID, "2025-05-01")

	res, err := h.coord.Validator().CanRegisterService(h.ctx, b.ID, heat.ID, day("2025-05-01"))
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "does not belong")
}

func TestCanRegisterService_UnknownHeat(t *testing.T) {
	h := newHerd(t)
	sow := h.sow("S-1")

	res, err := h.coord.Validator().CanRegisterService(h.ctx, sow.ID, 42, day("2025-05-01"))
	require.NoError(t, err)

	assert.Equal(t, []string{"heat not found"}, res.Errors)
}

// =============================================================================
// PREGNANCY TESTS
// =============================================================================

func TestCanRegisterPregnancy_SecondInProgressRejected(t *testing.T) {
	// GIVEN: A sow with an unconfirmed pregnancy in progress
	// WHEN: Another pregnancy is registered
	// THEN: The registration fails validation

	h := newHerd(t)
	sow := h.sow("S-1")
	heat := h.heat(sow.ID, "2025-05-01")
	svc := h.service(sow.ID, heat.ID, "2025-05-01")
	h.pregnancy(sow.ID, svc.ID, "2025-05-01")

	_, _, err := h.coord.RegisterPregnancy(h.ctx, breeding.Pregnancy{
		SowID:          sow.ID,
		ServiceID:      svc.ID,
		ConceptionDate: day("2025-05-02"),
	})

	require.ErrorIs(t, err, breeding.ErrValidation)
	var verr *breeding.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Result.Errors[0], "pending confirmation")
}

func TestCanRegisterPregnancy_UnknownService(t *testing.T) {
	h := newHerd(t)
	sow := h.sow("S-1")

	res, err := h.coord.Validator().CanRegisterPregnancy(h.ctx, sow.ID, 77, day("2025-05-01"))
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "service not found")
}

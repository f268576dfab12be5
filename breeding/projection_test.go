package breeding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/swinetrack/breeding-engine/breeding"
)

func boolPtr(b bool) *bool { return &b }

func TestProject_StatusRules(t *testing.T) {
	birth := &breeding.Birth{ID: 1, BirthDate: day("2025-03-01"), TotalBorn: 10, BornAlive: 10}
	weaned := &breeding.Birth{ID: 2, BirthDate: day("2025-03-01"), TotalBorn: 10, BornAlive: 10, WeanedOn: day("2025-03-22").Ptr()}
	abortion := &breeding.Abortion{ID: 1, AbortionDate: day("2025-03-05")}

	cases := []struct {
		name string
		h    breeding.SowHistory
		want breeding.ReproductiveStatus
	}{
		{
			name: "no history",
			want: breeding.StatusEmpty,
		},
		{
			name: "confirmed pregnancy",
			h: breeding.SowHistory{
				ActivePregnancy: &breeding.Pregnancy{Confirmed: true, Status: breeding.PregnancyInProgress},
			},
			want: breeding.StatusPregnant,
		},
		{
			name: "unconfirmed pregnancy, pending service",
			h: breeding.SowHistory{
				ActivePregnancy: &breeding.Pregnancy{Status: breeding.PregnancyInProgress},
				ActiveService:   &breeding.Service{},
			},
			want: breeding.StatusInService,
		},
		{
			name: "unconfirmed pregnancy, failed service",
			h: breeding.SowHistory{
				ActivePregnancy: &breeding.Pregnancy{Status: breeding.PregnancyInProgress},
				ActiveService:   &breeding.Service{Success: boolPtr(false)},
			},
			want: breeding.StatusEmpty,
		},
		{
			name: "nursing litter without piglet rows",
			h:    breeding.SowHistory{LatestBirth: birth},
			want: breeding.StatusLactating,
		},
		{
			name: "litter with every piglet weaned",
			h: breeding.SowHistory{
				LatestBirth:   birth,
				LitterPiglets: []breeding.Piglet{{CurrentStatus: breeding.PigletWeaned}, {CurrentStatus: breeding.PigletDead}},
			},
			want: breeding.StatusEmpty,
		},
		{
			name: "litter stamped weaned",
			h:    breeding.SowHistory{LatestBirth: weaned},
			want: breeding.StatusEmpty,
		},
		{
			name: "abortion after birth",
			h:    breeding.SowHistory{LatestBirth: birth, LatestAbortion: abortion},
			want: breeding.StatusEmpty,
		},
		{
			name: "heat on the birth day does not override the birth",
			h: breeding.SowHistory{
				LatestBirth: birth,
				LatestHeat:  &breeding.Heat{HeatDate: day("2025-03-01"), Status: breeding.HeatDetected},
			},
			want: breeding.StatusLactating,
		},
		{
			name: "heat after weaning",
			h: breeding.SowHistory{
				LatestBirth: weaned,
				LatestHeat:  &breeding.Heat{HeatDate: day("2025-03-27"), Status: breeding.HeatDetected},
			},
			want: breeding.StatusInHeat,
		},
		{
			name: "serviced heat awaiting outcome",
			h: breeding.SowHistory{
				LatestHeat:   &breeding.Heat{HeatDate: day("2025-03-27"), Status: breeding.HeatServiced},
				HeatServices: []breeding.Service{{ID: 1}},
			},
			want: breeding.StatusInService,
		},
		{
			name: "serviced heat whose pregnancy was not confirmed",
			h: breeding.SowHistory{
				LatestHeat:      &breeding.Heat{HeatDate: day("2025-03-27"), Status: breeding.HeatServiced},
				HeatServices:    []breeding.Service{{ID: 1, Success: boolPtr(false)}},
				HeatPregnancies: []breeding.Pregnancy{{Status: breeding.PregnancyNotConfirmed}},
			},
			want: breeding.StatusEmpty,
		},
		{
			name: "heat expired without service",
			h: breeding.SowHistory{
				LatestHeat: &breeding.Heat{HeatDate: day("2025-03-27"), Status: breeding.HeatNotServiced},
			},
			want: breeding.StatusEmpty,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, breeding.Project(tc.h).ReproductiveStatus)
		})
	}
}

func TestProject_Counters(t *testing.T) {
	// GIVEN: Two births (one weaned) and one abortion
	// THEN: Parity, piglet totals and last weaning date are aggregated

	h := breeding.SowHistory{
		Births: []breeding.Birth{
			{BornAlive: 9, BornDead: 1, Mummified: 1, TotalBorn: 11},
			{BornAlive: 10, TotalBorn: 10, WeanedOn: day("2024-08-01").Ptr()},
		},
		Abortions:     []breeding.Abortion{{}},
		LatestService: &breeding.Service{ServiceDate: day("2025-01-02")},
		ActivePregnancy: &breeding.Pregnancy{
			Status:                breeding.PregnancyInProgress,
			ExpectedFarrowingDate: day("2025-04-26"),
		},
	}

	p := breeding.Project(h)

	assert.Equal(t, 2, p.ParityCount)
	assert.Equal(t, 21, p.TotalPigletsBorn)
	assert.Equal(t, 19, p.TotalPigletsAlive)
	assert.Equal(t, 2, p.TotalPigletsDead)
	assert.Equal(t, 1, p.TotalAbortions)
	assert.Equal(t, day("2024-08-01"), *p.LastWeaningDate)
	assert.Equal(t, day("2025-01-02"), *p.LastServiceDate)
	assert.Nil(t, p.ExpectedFarrowingDate, "unconfirmed pregnancies do not publish a farrowing date")
}

/*
scenarios_test.go - Tests for the demo herds

PURPOSE:
	Each scenario must load cleanly through the Coordinator and leave the
	herd in the state its description promises, so it can double as an
	integration test of validation and projection.
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swinetrack/breeding-engine/breeding"
	"github.com/swinetrack/breeding-engine/jobs"
)

func (f *apiFixture) statusByTag() map[string]breeding.ReproductiveStatus {
	f.t.Helper()
	sows, err := f.store.ListSows(context.Background(), breeding.SowFilter{})
	require.NoError(f.t, err)
	out := make(map[string]breeding.ReproductiveStatus, len(sows))
	for _, s := range sows {
		out[s.EarTag] = s.ReproductiveStatus
	}
	return out
}

func TestScenario_FarrowingWeek(t *testing.T) {
	// GIVEN: An empty herd
	f := newAPI(t)

	// WHEN: Loading the scenario
	require.NoError(t, Seed(context.Background(), f.coord, "farrowing-week"))

	// THEN: Two confirmed pregnancies and one awaiting a check
	assert.Equal(t, map[string]breeding.ReproductiveStatus{
		"FW-101": breeding.StatusPregnant,
		"FW-102": breeding.StatusPregnant,
		"FW-103": breeding.StatusInService,
	}, f.statusByTag())

	pregs, err := f.store.ListPregnancies(context.Background(), breeding.PregnancyFilter{Status: breeding.PregnancyInProgress})
	require.NoError(t, err)
	require.Len(t, pregs, 3)
	due := map[breeding.Date]bool{}
	for _, p := range pregs {
		due[p.ExpectedFarrowingDate] = p.Confirmed
	}
	today := f.coord.Today()
	assert.True(t, due[today.AddDays(2)])
	assert.True(t, due[today.AddDays(-2)])
}

func TestScenario_HeatWatch(t *testing.T) {
	// GIVEN: The heat-watch herd
	f := newAPI(t)
	require.NoError(t, Seed(context.Background(), f.coord, "heat-watch"))
	assert.Equal(t, map[string]breeding.ReproductiveStatus{
		"HW-201": breeding.StatusInHeat,
		"HW-202": breeding.StatusInHeat,
		"HW-203": breeding.StatusInService,
	}, f.statusByTag())

	// WHEN: The expiry job runs
	rec := f.do(http.MethodPost, "/api/heats/jobs/update-unserved", nil)

	// THEN: Only the five-day-old heat is closed and its sow is empty again
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeData[jobs.HeatExpiryResult](t, rec).Data
	require.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, "HW-202", res.Details[0].SowEarTag)
	assert.Equal(t, breeding.StatusEmpty, f.statusByTag()["HW-202"])
}

func TestScenario_WeaningDue(t *testing.T) {
	f := newAPI(t)

	require.NoError(t, Seed(context.Background(), f.coord, "weaning-due"))

	assert.Equal(t, map[string]breeding.ReproductiveStatus{
		"WD-301": breeding.StatusLactating,
		"WD-302": breeding.StatusLactating,
	}, f.statusByTag())
	piglets, err := f.store.ListPiglets(context.Background(), breeding.PigletFilter{CurrentStatus: breeding.PigletLactating})
	require.NoError(t, err)
	assert.Len(t, piglets, 22)
}

func TestSeed_UnknownScenario(t *testing.T) {
	f := newAPI(t)

	err := Seed(context.Background(), f.coord, "pig-latin")

	assert.True(t, errors.Is(err, ErrUnknownScenario))
}

func TestLoadScenario_Handler(t *testing.T) {
	// GIVEN: No scenario loaded
	f := newAPI(t)
	rec := f.do(http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":null}`, rec.Body.String())

	// WHEN: Loading heat-watch
	rec = f.do(http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "heat-watch"})

	// THEN: It becomes current
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "heat-watch", decodeData[Scenario](t, rec).Data.ID)

	// AND: Loading it again collides on ear tags, unknown IDs are 400
	again := f.do(http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "heat-watch"})
	assert.Equal(t, http.StatusConflict, again.Code)
	unknown := f.do(http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, unknown.Code)

	rec = f.do(http.MethodGet, "/api/scenarios", nil)
	assert.Len(t, decodeData[[]Scenario](t, rec).Data, len(Scenarios()))
}

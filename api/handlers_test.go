/*
handlers_test.go - HTTP tests for the breeding API

Tests for:
- Envelope shape and validator warnings on create
- Status mapping (400, 403, 404, 409, 422)
- Validate endpoints that never write
- Job triggers and the /api/jobs listing
- Actor header, /healthz and /metrics
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swinetrack/breeding-engine/breeding"
	"github.com/swinetrack/breeding-engine/jobs"
	"github.com/swinetrack/breeding-engine/notify"
	"github.com/swinetrack/breeding-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var now = time.Date(2025, time.June, 30, 9, 0, 0, 0, time.UTC)

type apiFixture struct {
	t       *testing.T
	store   *memory.Memory
	coord   *breeding.Coordinator
	handler *Handler
	router  http.Handler
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.New()
	clock := breeding.FixedClock{At: now}
	coord := breeding.NewCoordinator(store, breeding.WithClock(clock))

	reg := prometheus.NewRegistry()
	metrics := jobs.NewMetrics(reg)
	logger := zap.NewNop()
	set := jobs.Set{
		HeatExpiry:    jobs.NewHeatExpiryJob(coord, metrics, logger),
		Weaning:       jobs.NewWeaningJob(coord, metrics, logger),
		Notifications: jobs.NewNotificationJob(notify.New(store, notify.WithClock(clock)), metrics, logger),
	}
	sched := jobs.NewScheduler(time.UTC, clock, logger)
	for name, task := range set.Tasks() {
		require.NoError(t, sched.Register(name, "", task))
	}

	h := NewHandler(coord, set, sched, logger)
	return &apiFixture{
		t:       t,
		store:   store,
		coord:   coord,
		handler: h,
		router:  NewRouter(h, Options{Gatherer: reg}),
	}
}

// do sends a request. A string body is sent verbatim, anything else as JSON.
// Extra arguments are header name/value pairs.
func (f *apiFixture) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(f.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type envelope[T any] struct {
	Data     T        `json:"data"`
	Warnings []string `json:"warnings"`
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func (f *apiFixture) sow(tag string) breeding.Sow {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/sows", map[string]any{"ear_tag": tag})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[breeding.Sow](f.t, rec).Data
}

func (f *apiFixture) heat(sowID int64, date string) breeding.Heat {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/heats", map[string]any{"sow_id": sowID, "heat_date": date})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[breeding.Heat](f.t, rec).Data
}

func (f *apiFixture) service(sowID, heatID int64, date string) breeding.Service {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/services", map[string]any{
		"sow_id": sowID, "heat_id": heatID, "service_date": date, "service_type": "artificial",
	})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[breeding.Service](f.t, rec).Data
}

// =============================================================================
// HERD
// =============================================================================

func TestCreateSow_StartsEmptyAndStampsActor(t *testing.T) {
	// GIVEN: An empty herd
	f := newAPI(t)

	// WHEN: A sow is created with an actor header
	rec := f.do(http.MethodPost, "/api/sows", map[string]any{"ear_tag": "S-1", "alias": "Bella"}, "X-Actor", "maria")

	// THEN: She starts empty and carries the actor
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sow := decodeData[breeding.Sow](t, rec).Data
	assert.Equal(t, breeding.StatusEmpty, sow.ReproductiveStatus)
	assert.Equal(t, "maria", sow.CreatedBy)

	rec = f.do(http.MethodGet, "/api/sows?status=active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]breeding.Sow](t, rec).Data, 1)
}

func TestCreateSow_RejectsProjectedFields(t *testing.T) {
	// GIVEN: A body that tries to set the derived status
	f := newAPI(t)

	// WHEN: Posting it
	rec := f.do(http.MethodPost, "/api/sows", `{"ear_tag":"S-1","reproductive_status":"pregnant"}`)

	// THEN: The unknown field is rejected before the coordinator runs
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Details, "reproductive_status")
}

func TestCreateSow_DuplicateEarTag(t *testing.T) {
	f := newAPI(t)
	f.sow("S-1")

	rec := f.do(http.MethodPost, "/api/sows", map[string]any{"ear_tag": "S-1"})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetSow_NotFoundAndBadID(t *testing.T) {
	f := newAPI(t)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/sows/99", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/sows/abc", nil).Code)
}

func TestListSows_EmptyIsArray(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodGet, "/api/sows", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

// =============================================================================
// HEATS
// =============================================================================

func TestRegisterHeat_WarningThenRejection(t *testing.T) {
	// GIVEN: A sow with a heat on June 1
	f := newAPI(t)
	sow := f.sow("S-1")
	f.heat(sow.ID, "2025-06-01")

	// WHEN: A heat 19 days later is registered
	rec := f.do(http.MethodPost, "/api/heats", map[string]any{"sow_id": sow.ID, "heat_date": "2025-06-20"})

	// THEN: It is created with a short-cycle warning
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := decodeData[breeding.Heat](t, rec)
	assert.Equal(t, breeding.HeatDetected, env.Data.Status)
	require.Len(t, env.Warnings, 1)
	assert.Contains(t, env.Warnings[0], "19 days")

	// WHEN: Another heat only 5 days later is registered
	rec = f.do(http.MethodPost, "/api/heats", map[string]any{"sow_id": sow.ID, "heat_date": "2025-06-25"})

	// THEN: The validator rejects it with 422 and the reasons
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "register heat rejected", resp.Error)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "too short")
}

func TestRegisterHeat_BadDate(t *testing.T) {
	f := newAPI(t)
	sow := f.sow("S-1")

	rec := f.do(http.MethodPost, "/api/heats", map[string]any{"sow_id": sow.ID, "heat_date": "30/06/2025"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateHeat_DoesNotWrite(t *testing.T) {
	// GIVEN: A sow with a recent heat
	f := newAPI(t)
	sow := f.sow("S-1")
	f.heat(sow.ID, "2025-06-20")

	// WHEN: Checking a natural and an induced heat five days later
	natural := f.do(http.MethodPost, "/api/heats/validate", map[string]any{"sow_id": sow.ID, "heat_date": "2025-06-25"})
	induced := f.do(http.MethodPost, "/api/heats/validate", map[string]any{"sow_id": sow.ID, "heat_date": "2025-06-25", "induced": true})

	// THEN: The natural heat is invalid and the induced one only warns
	require.Equal(t, http.StatusOK, natural.Code)
	assert.False(t, decodeData[breeding.ValidationResult](t, natural).Data.Valid)
	res := decodeData[breeding.ValidationResult](t, induced).Data
	assert.True(t, res.Valid)
	assert.NotEmpty(t, res.Warnings)

	heats, err := f.store.ListHeats(context.Background(), breeding.HeatFilter{SowID: sow.ID})
	require.NoError(t, err)
	assert.Len(t, heats, 1)
}

func TestValidateHeat_UnknownSow(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodPost, "/api/heats/validate", map[string]any{"sow_id": 42, "heat_date": "2025-06-25"})

	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeData[breeding.ValidationResult](t, rec).Data
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"sow not found"}, res.Errors)
}

func TestDeleteHeat_BlockedByService(t *testing.T) {
	// GIVEN: A serviced heat and an unserviced heat on another sow
	f := newAPI(t)
	a := f.sow("S-1")
	served := f.heat(a.ID, "2025-06-28")
	f.service(a.ID, served.ID, "2025-06-29")
	b := f.sow("S-2")
	loose := f.heat(b.ID, "2025-06-29")

	// WHEN: Deleting both
	blocked := f.do(http.MethodDelete, fmt.Sprintf("/api/heats/%d", served.ID), nil)
	freed := f.do(http.MethodDelete, fmt.Sprintf("/api/heats/%d", loose.ID), nil)

	// THEN: The serviced heat is protected
	require.Equal(t, http.StatusConflict, blocked.Code)
	details, ok := decodeError(t, blocked).Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "service", details["dependent"])
	assert.EqualValues(t, 1, details["count"])

	assert.Equal(t, http.StatusNoContent, freed.Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, fmt.Sprintf("/api/heats/%d", loose.ID), nil).Code)
	assert.Equal(t, breeding.StatusEmpty, f.reload(b.ID).ReproductiveStatus)
}

func TestExpireHeats_Trigger(t *testing.T) {
	// GIVEN: A heat detected ten days ago and never serviced
	f := newAPI(t)
	sow := f.sow("S-1")
	f.heat(sow.ID, "2025-06-20")

	// WHEN: The expiry job is triggered over HTTP
	rec := f.do(http.MethodPost, "/api/heats/jobs/update-unserved", nil)

	// THEN: The heat is closed and the run is recorded on the scheduler
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeData[jobs.HeatExpiryResult](t, rec).Data
	assert.Equal(t, 1, res.UpdatedCount)
	assert.NotEmpty(t, res.RunID)

	rec = f.do(http.MethodGet, "/api/jobs", nil)
	entries := decodeData[[]jobs.EntryStatus](t, rec).Data
	require.Len(t, entries, 3)
	assert.Equal(t, jobs.HeatExpiry, entries[0].Name)
	require.NotNil(t, entries[0].LastRun)
	assert.True(t, now.Equal(entries[0].LastRun.StartedAt))
}

// =============================================================================
// PREGNANCIES
// =============================================================================

func TestPregnancyFlow(t *testing.T) {
	// GIVEN: A serviced sow
	f := newAPI(t)
	sow := f.sow("S-1")
	heat := f.heat(sow.ID, "2025-06-28")
	svc := f.service(sow.ID, heat.ID, "2025-06-29")

	// WHEN: A pregnancy is registered and confirmed
	rec := f.do(http.MethodPost, "/api/pregnancies", map[string]any{
		"sow_id": sow.ID, "service_id": svc.ID, "conception_date": "2025-06-29",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	preg := decodeData[breeding.Pregnancy](t, rec).Data
	assert.Equal(t, breeding.MustDate("2025-10-21"), preg.ExpectedFarrowingDate)

	rec = f.do(http.MethodPost, "/api/pregnancies/1/confirm", map[string]any{
		"confirmation_date": "2025-06-30", "confirmation_method": "ultrasound",
	})

	// THEN: The sow is pregnant and the ultrasound is counted
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preg = decodeData[breeding.Pregnancy](t, rec).Data
	assert.True(t, preg.Confirmed)
	assert.Equal(t, 1, preg.UltrasoundCount)
	assert.Equal(t, breeding.StatusPregnant, f.reload(sow.ID).ReproductiveStatus)

	// AND: A second pregnancy for the same sow is reported invalid
	rec = f.do(http.MethodPost, "/api/pregnancies/validate", map[string]any{
		"sow_id": sow.ID, "service_id": svc.ID, "conception_date": "2025-06-29",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeData[breeding.ValidationResult](t, rec).Data.Valid)

	rec = f.do(http.MethodGet, "/api/sows/1/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeData[breeding.ReproductiveSummary](t, rec).Data
	require.NotNil(t, summary.ActivePregnancy)
	assert.Equal(t, preg.ID, summary.ActivePregnancy.ID)
}

func TestConfirmPregnancy_InvalidData(t *testing.T) {
	f := newAPI(t)
	sow := f.sow("S-1")
	heat := f.heat(sow.ID, "2025-06-28")
	svc := f.service(sow.ID, heat.ID, "2025-06-29")
	rec := f.do(http.MethodPost, "/api/pregnancies", map[string]any{
		"sow_id": sow.ID, "service_id": svc.ID, "conception_date": "2025-06-29",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodPost, "/api/pregnancies/1/confirm", map[string]any{
		"confirmation_date": "2025-06-01", "confirmation_method": "ultrasound",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	details, ok := decodeError(t, rec).Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "confirmation_date", details["field"])
}

// =============================================================================
// BIRTHS AND NOTIFICATIONS
// =============================================================================

func TestWeanLitter_AndProcessWeaning(t *testing.T) {
	// GIVEN: The weaning-due herd
	f := newAPI(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "weaning-due"}).Code)

	// WHEN: The weaning job runs
	rec := f.do(http.MethodPost, "/api/births/process-weaning", nil)

	// THEN: Only the overdue litter is weaned
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeData[jobs.WeaningRunResult](t, rec).Data
	assert.Equal(t, 1, res.ProcessedLitters)
	assert.Equal(t, 10, res.PigletsWeaned)

	// WHEN: The nursing litter is weaned by hand
	rec = f.do(http.MethodPost, "/api/births/2/wean", nil)

	// THEN: Its twelve piglets are weaned today
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	w := decodeData[breeding.LitterWeaning](t, rec).Data
	assert.Equal(t, 12, w.PigletsWeaned)

	rec = f.do(http.MethodGet, "/api/births/2/piglets", nil)
	for _, p := range decodeData[[]breeding.Piglet](t, rec).Data {
		assert.Equal(t, breeding.PigletWeaned, p.CurrentStatus)
	}
}

func TestNotifications_GenerateAndRead(t *testing.T) {
	// GIVEN: The farrowing-week herd
	f := newAPI(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "farrowing-week"}).Code)

	// WHEN: Notifications are generated
	rec := f.do(http.MethodPost, "/api/notifications/generate", nil)

	// THEN: One of each farrowing alert and a confirmation reminder exist
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := decodeData[jobs.NotificationRunResult](t, rec).Data
	assert.Equal(t, 1, run.UpcomingFarrowing)
	assert.Equal(t, 1, run.OverdueFarrowing)
	assert.Equal(t, 1, run.PendingConfirmation)

	rec = f.do(http.MethodGet, "/api/notifications?unread=true", nil)
	assert.Len(t, decodeData[[]breeding.Notification](t, rec).Data, 3)

	// WHEN: One is read and then all are read
	rec = f.do(http.MethodPost, "/api/notifications/1/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeData[breeding.Notification](t, rec).Data.IsRead)

	rec = f.do(http.MethodPost, "/api/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"marked": 2}, decodeData[map[string]int](t, rec).Data)

	rec = f.do(http.MethodGet, "/api/notifications?unread=true", nil)
	assert.Empty(t, decodeData[[]breeding.Notification](t, rec).Data)
}

func TestCalendarEvents_Range(t *testing.T) {
	f := newAPI(t)
	for _, at := range []string{"2025-07-01T08:00:00Z", "2025-07-10T08:00:00Z"} {
		rec := f.do(http.MethodPost, "/api/calendar-events", map[string]any{
			"title": "Vaccination", "event_date": at, "event_type": "vaccination",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := f.do(http.MethodGet, "/api/calendar-events?from=2025-06-30T00:00:00Z&to=2025-07-05T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]breeding.CalendarEvent](t, rec).Data, 1)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/calendar-events?from=tomorrow", nil).Code)
}

// =============================================================================
// JOBS AND OPERATIONS
// =============================================================================

func TestRunJob(t *testing.T) {
	f := newAPI(t)

	ok := f.do(http.MethodPost, "/api/jobs/weaning/run", nil)
	unknown := f.do(http.MethodPost, "/api/jobs/compost/run", nil)

	assert.Equal(t, http.StatusOK, ok.Code, ok.Body.String())
	assert.Equal(t, http.StatusNotFound, unknown.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPI(t)
	f.do(http.MethodPost, "/api/heats/jobs/update-unserved", nil)

	health := f.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, health.Code)

	metrics := f.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.True(t, strings.Contains(metrics.Body.String(), `breeding_job_runs_total{job="heat-expiry",outcome="success"} 1`))
}

func (f *apiFixture) reload(sowID int64) *breeding.Sow {
	f.t.Helper()
	s, err := f.store.GetSow(context.Background(), sowID)
	require.NoError(f.t, err)
	return s
}

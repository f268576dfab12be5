/*
scenarios.go - Demo herds for testing and demonstrations

PURPOSE:

	Populates the store with small, realistic herds dated relative to the
	coordinator's clock, so the jobs and notification rules have something
	to act on the moment a scenario is loaded.

AVAILABLE SCENARIOS:

	farrowing-week:  Confirmed sows close to or past their farrowing date,
	                 plus one unconfirmed pregnancy awaiting a check
	heat-watch:      Sows in heat, serviced, and a stale unserviced heat
	weaning-due:     One litter past its weaning date, one still nursing

HOW SCENARIOS WORK:
 1. Every record goes through the Coordinator, so validation and the
    status projection run exactly as for live data
 2. Ear tags are fixed per scenario; loading one twice fails with 409

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "heat-watch"}

USAGE VIA CLI:

	breeding-engine seed heat-watch

SEE ALSO:
  - cmd/server/main.go: seed command
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/swinetrack/breeding-engine/breeding"
)

// ErrUnknownScenario is returned by Seed for an unlisted scenario ID.
var ErrUnknownScenario = errors.New("unknown scenario")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// Scenario describes a loadable demo herd.
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []Scenario{
	{
		ID:          "farrowing-week",
		Name:        "Farrowing Week",
		Description: "Confirmed sows due in two days and two days overdue, plus a pregnancy awaiting confirmation",
	},
	{
		ID:          "heat-watch",
		Name:        "Heat Watch",
		Description: "A sow in heat, a serviced sow and a heat left unserviced past the window",
	},
	{
		ID:          "weaning-due",
		Name:        "Weaning Due",
		Description: "One litter past its expected weaning date and one still nursing",
	},
}

var loaders = map[string]func(*herdBuilder){
	"farrowing-week": loadFarrowingWeek,
	"heat-watch":     loadHeatWatch,
	"weaning-due":    loadWeaningDue,
}

// Scenarios lists the available demo herds.
func Scenarios() []Scenario { return append([]Scenario(nil), scenarios...) }

// Seed loads a demo herd through coord.
func Seed(ctx context.Context, coord *breeding.Coordinator, id string) error {
	load, ok := loaders[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	b := &herdBuilder{ctx: ctx, coord: coord, today: coord.Today()}
	load(b)
	if b.err != nil {
		return fmt.Errorf("load scenario %s: %w", id, b.err)
	}
	return nil
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last scenario loaded, or null.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeData(w, http.StatusOK, s)
			return
		}
	}
	writeData(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}

	err := Seed(r.Context(), h.coord, req.ScenarioID)
	if errors.Is(err, ErrUnknownScenario) {
		writeBadRequest(w, "Unknown scenario", err)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeData(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadFarrowingWeek(b *herdBuilder) {
	// Due in two days.
	bella := b.sow("FW-101", "Bella")
	b.confirmedPregnancy(bella, 112)

	// Two days past the expected farrowing date.
	rosa := b.sow("FW-102", "Rosa")
	b.confirmedPregnancy(rosa, 116)

	// Serviced a month ago, never checked.
	mel := b.sow("FW-103", "")
	heat := b.heat(mel, -30)
	svc := b.service(mel, heat, -30, nil)
	b.pregnancy(mel, svc, -30)
}

func loadHeatWatch(b *herdBuilder) {
	boar := b.boar("HW-B01", "Thor")

	b.heat(b.sow("HW-201", "Luna"), -1)

	// Outside the three-day service window; the expiry job closes it.
	b.heat(b.sow("HW-202", ""), -5)

	served := b.sow("HW-203", "Mimi")
	heat := b.heat(served, -2)
	b.service(served, heat, -1, boar)
}

func loadWeaningDue(b *herdBuilder) {
	// Born 22 days ago: one day past the 21-day lactation.
	due := b.sow("WD-301", "Duquesa")
	preg := b.confirmedPregnancy(due, 136)
	b.birth(due, preg, -22, 10, 1)

	nursing := b.sow("WD-302", "")
	preg = b.confirmedPregnancy(nursing, 124)
	b.birth(nursing, preg, -10, 12, 0)
}

// =============================================================================
// HERD BUILDER
// =============================================================================

// herdBuilder records through the coordinator and keeps the first error;
// every step after a failure is a no-op.
type herdBuilder struct {
	ctx   context.Context
	coord *breeding.Coordinator
	today breeding.Date
	err   error
}

func (b *herdBuilder) day(offset int) breeding.Date { return b.today.AddDays(offset) }

func (b *herdBuilder) sow(tag, alias string) *breeding.Sow {
	if b.err != nil {
		return nil
	}
	s, err := b.coord.CreateSow(b.ctx, breeding.Sow{EarTag: tag, Alias: alias, Breed: "Landrace x Large White"})
	b.err = err
	return s
}

func (b *herdBuilder) boar(tag, name string) *breeding.Boar {
	if b.err != nil {
		return nil
	}
	boar, err := b.coord.CreateBoar(b.ctx, breeding.Boar{EarTag: tag, Name: name, Breed: "Duroc"})
	b.err = err
	return boar
}

func (b *herdBuilder) heat(sow *breeding.Sow, offset int) *breeding.Heat {
	if b.err != nil {
		return nil
	}
	h, _, err := b.coord.RegisterHeat(b.ctx, breeding.Heat{SowID: sow.ID, HeatDate: b.day(offset)})
	b.err = err
	return h
}

// service records artificial insemination, or natural mating when boar is set.
func (b *herdBuilder) service(sow *breeding.Sow, heat *breeding.Heat, offset int, boar *breeding.Boar) *breeding.Service {
	if b.err != nil {
		return nil
	}
	s := breeding.Service{
		SowID:       sow.ID,
		HeatID:      heat.ID,
		ServiceDate: b.day(offset),
		ServiceType: breeding.ServiceArtificial,
	}
	if boar != nil {
		s.ServiceType = breeding.ServiceNatural
		s.BoarID = &boar.ID
	}
	svc, _, err := b.coord.RegisterService(b.ctx, s)
	b.err = err
	return svc
}

func (b *herdBuilder) pregnancy(sow *breeding.Sow, svc *breeding.Service, offset int) *breeding.Pregnancy {
	if b.err != nil {
		return nil
	}
	p, _, err := b.coord.RegisterPregnancy(b.ctx, breeding.Pregnancy{
		SowID:          sow.ID,
		ServiceID:      svc.ID,
		ConceptionDate: b.day(offset),
	})
	b.err = err
	return p
}

// confirmedPregnancy walks sow from heat to a pregnancy conceived daysAgo
// and confirmed by ultrasound four weeks later.
func (b *herdBuilder) confirmedPregnancy(sow *breeding.Sow, daysAgo int) *breeding.Pregnancy {
	heat := b.heat(sow, -daysAgo)
	svc := b.service(sow, heat, -daysAgo, nil)
	p := b.pregnancy(sow, svc, -daysAgo)
	if b.err != nil {
		return nil
	}
	p, b.err = b.coord.ConfirmPregnancy(b.ctx, p.ID, breeding.Confirmation{
		Date:   b.day(-daysAgo + 28),
		Method: breeding.ConfirmUltrasound,
	})
	return p
}

func (b *herdBuilder) birth(sow *breeding.Sow, preg *breeding.Pregnancy, offset, alive, dead int) *breeding.Birth {
	if b.err != nil {
		return nil
	}
	birth, err := b.coord.CreateBirth(b.ctx, breeding.BirthInput{Birth: breeding.Birth{
		SowID:       sow.ID,
		PregnancyID: preg.ID,
		BirthDate:   b.day(offset),
		TotalBorn:   alive + dead,
		BornAlive:   alive,
		BornDead:    dead,
	}})
	b.err = err
	return birth
}

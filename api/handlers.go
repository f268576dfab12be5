/*
handlers.go - HTTP API handlers for the breeding engine

PURPOSE:
  Exposes the Coordinator, the Validator and the reconciliation jobs over
  REST. Handlers parse and reject input, call exactly one domain operation
  and serialize the result. No reproductive rule lives here.

ENDPOINTS:
  Herd:
    GET    /api/sows                      List sows (?status, ?reproductive_status)
    POST   /api/sows                      Create sow
    GET    /api/sows/{id}                 Get sow
    PUT    /api/sows/{id}                 Update identity fields
    POST   /api/sows/{id}/deactivate      Mark sold, dead or discarded
    GET    /api/sows/{id}/summary         Latest events and days in status
    GET    /api/boars, POST, GET/PUT {id}

  Reproductive events (events.go, litters.go):
    heats, services, pregnancies, births, abortions, piglets

  Calendar, notifications and jobs (notices.go)

REQUEST FLOW:
  1. Decode into a typed request (dto.go), unknown fields rejected
  2. Call the Coordinator (or Validator for /validate)
  3. Wrap the result as { data, warnings }
  4. Map errors through errors.go

ACTOR:
  The X-Actor header, when present, is stamped into created_by/updated_by.

SEE ALSO:
  - dto.go: Request bodies
  - errors.go: Envelope and status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/swinetrack/breeding-engine/breeding"
	"github.com/swinetrack/breeding-engine/jobs"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	coord  *breeding.Coordinator
	jobs   jobs.Set
	sched  *jobs.Scheduler
	logger *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the handlers. sched may be nil, in which case job
// triggers run without the scheduler's serialisation.
func NewHandler(coord *breeding.Coordinator, set jobs.Set, sched *jobs.Scheduler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{coord: coord, jobs: set, sched: sched, logger: logger}
}

func (h *Handler) store() breeding.Store { return h.coord.Store() }

func (h *Handler) runJob(ctx context.Context, name string, fn jobs.Task) error {
	if h.sched == nil {
		return fn(ctx)
	}
	return h.sched.Exclusive(ctx, name, fn)
}

// =============================================================================
// GENERIC SHIMS
// =============================================================================

// get serves GET /{id} from a loader.
func get[T any](h *Handler, load func(context.Context, int64) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			writeBadRequest(w, "Invalid id", err)
			return
		}
		v, err := load(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, v)
	}
}

// update serves PUT /{id} by decoding Req and passing it to apply.
func update[Req, T any](h *Handler, apply func(context.Context, int64, Req) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			writeBadRequest(w, "Invalid id", err)
			return
		}
		var req Req
		if err := decode(r, &req); err != nil {
			writeBadRequest(w, "Invalid request body", err)
			return
		}
		v, err := apply(r.Context(), id, req)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, v)
	}
}

// remove serves DELETE /{id}.
func remove(h *Handler, del func(context.Context, int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			writeBadRequest(w, "Invalid id", err)
			return
		}
		if err := del(r.Context(), id); err != nil {
			h.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// list writes a slice, never null.
func list[T any](h *Handler, w http.ResponseWriter, r *http.Request, items []T, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	writeData(w, http.StatusOK, items)
}

// =============================================================================
// SOWS
// =============================================================================

// ListSows returns all sows, optionally filtered.
func (h *Handler) ListSows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sows, err := h.store().ListSows(r.Context(), breeding.SowFilter{
		Status:             breeding.SowStatus(q.Get("status")),
		ReproductiveStatus: breeding.ReproductiveStatus(q.Get("reproductive_status")),
	})
	list(h, w, r, sows, err)
}

// CreateSow registers a sow. Reproductive fields start from the empty state.
func (h *Handler) CreateSow(w http.ResponseWriter, r *http.Request) {
	var req SowRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	sow, err := h.coord.CreateSow(r.Context(), req.toSow())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, sow)
}

func (h *Handler) updateSow(ctx context.Context, id int64, req SowUpdate) (*breeding.Sow, error) {
	return h.coord.UpdateSow(ctx, id, req.toPatch())
}

func (h *Handler) deactivateSow(ctx context.Context, id int64, req DeactivateRequest) (*breeding.Sow, error) {
	return h.coord.DeactivateSow(ctx, id, req.Status)
}

// =============================================================================
// BOARS
// =============================================================================

// ListBoars returns all boars, optionally filtered by ?status.
func (h *Handler) ListBoars(w http.ResponseWriter, r *http.Request) {
	boars, err := h.store().ListBoars(r.Context(), breeding.BoarFilter{
		Status: breeding.BoarStatus(r.URL.Query().Get("status")),
	})
	list(h, w, r, boars, err)
}

func (h *Handler) CreateBoar(w http.ResponseWriter, r *http.Request) {
	var req BoarRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	boar, err := h.coord.CreateBoar(r.Context(), breeding.Boar{
		EarTag: req.EarTag, Name: req.Name, Breed: req.Breed, Status: req.Status, Notes: req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, boar)
}

func (h *Handler) updateBoar(ctx context.Context, id int64, req BoarUpdate) (*breeding.Boar, error) {
	return h.coord.UpdateBoar(ctx, id, breeding.BoarPatch{
		EarTag: req.EarTag, Name: req.Name, Breed: req.Breed, Status: req.Status, Notes: req.Notes,
	})
}

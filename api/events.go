package api

import (
	"context"
	"net/http"

	"github.com/swinetrack/breeding-engine/breeding"
	"github.com/swinetrack/breeding-engine/jobs"
)

// =============================================================================
// HEATS
// =============================================================================

// ListHeats lists heats newest first (?sow_id, ?status, ?limit).
func (h *Handler) ListHeats(w http.ResponseWriter, r *http.Request) {
	sowID, err := queryID(r, "sow_id")
	if err != nil {
		writeBadRequest(w, "Invalid query", err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeBadRequest(w, "Invalid query", err)
		return
	}
	f := breeding.HeatFilter{SowID: sowID, Limit: limit}
	if s := r.URL.Query().Get("status"); s != "" {
		f.Statuses = []breeding.HeatStatus{breeding.HeatStatus(s)}
	}
	heats, err := h.store().ListHeats(r.Context(), f)
	list(h, w, r, heats, err)
}

// RegisterHeat records a detected or induced heat. Validator warnings are
// returned alongside the created heat.
func (h *Handler) RegisterHeat(w http.ResponseWriter, r *http.Request) {
	var req HeatRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	heat, warnings, err := h.coord.RegisterHeat(r.Context(), breeding.Heat{
		SowID:             req.SowID,
		HeatDate:          req.HeatDate,
		HeatEndDate:       req.HeatEndDate,
		Intensity:         req.Intensity,
		Induced:           req.Induced,
		InductionProtocol: req.InductionProtocol,
		Notes:             req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, heat, warnings...)
}

// ValidateHeat reports whether a heat could be registered without writing.
func (h *Handler) ValidateHeat(w http.ResponseWriter, r *http.Request) {
	var req HeatCheck
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	v := h.coord.Validator()
	check := v.CanRegisterHeat
	if req.Induced {
		check = v.CanInduceHeat
	}
	res, err := check(r.Context(), req.SowID, req.HeatDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *Handler) updateHeat(ctx context.Context, id int64, req HeatUpdate) (*breeding.Heat, error) {
	return h.coord.UpdateHeat(ctx, id, breeding.HeatPatch{
		HeatDate:          req.HeatDate,
		HeatEndDate:       req.HeatEndDate,
		Intensity:         req.Intensity,
		InductionProtocol: req.InductionProtocol,
		Notes:             req.Notes,
	})
}

// CancelHeat marks a heat cancelled.
func (h *Handler) CancelHeat(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "Invalid id", err)
		return
	}
	heat, err := h.coord.CancelHeat(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, heat)
}

// ExpireHeats runs the heat-expiry job now.
// POST /api/heats/jobs/update-unserved
func (h *Handler) ExpireHeats(w http.ResponseWriter, r *http.Request) {
	var res jobs.HeatExpiryResult
	err := h.runJob(r.Context(), jobs.HeatExpiry, func(ctx context.Context) error {
		var err error
		res, err = h.jobs.HeatExpiry.Run(ctx)
		return err
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// =============================================================================
// SERVICES
// =============================================================================

// ListServices lists services newest first (?sow_id, ?heat_id, ?limit).
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	sowID, err := queryID(r, "sow_id")
	if err != nil {
		writeBadRequest(w, "Invalid query", err)
		return
	}
	heatID, err := queryID(r, "heat_id")
	if err != nil {
		writeBadRequest(w, "Invalid query", err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeBadRequest(w, "Invalid query", err)
		return
	}
	services, err := h.store().ListServices(r.Context(), breeding.ServiceFilter{SowID: sowID, HeatID: heatID, Limit: limit})
	list(h, w, r, services, err)
}

func (h *Handler) RegisterService(w http.ResponseWriter, r *http.Request) {
	var req ServiceRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	svc, warnings, err := h.coord.RegisterService(r.Context(), req.toService())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, svc, warnings...)
}

func (h *Handler) ValidateService(w http.ResponseWriter, r *http.Request) {
	var req ServiceCheck
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	res, err := h.coord.Validator().CanRegisterService(r.Context(), req.SowID, req.HeatID, req.ServiceDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *Handler) updateService(ctx context.Context, id int64, req ServiceUpdate) (*breeding.Service, error) {
	return h.coord.UpdateService(ctx, id, req.toPatch())
}

// =============================================================================
// PREGNANCIES
// =============================================================================

// ListPregnancies lists pregnancies newest first (?sow_id, ?status, ?limit).
func (h *Handler) ListPregnancies(w http.ResponseWriter, r *http.Request) {
	sowID, err := queryID(r, "sow_id")
	if err != nil {
		writeBadRequest(w, "Invalid query", err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeBadRequest(w, "Invalid query", err)
		return
	}
	pregs, err := h.store().ListPregnancies(r.Context(), breeding.PregnancyFilter{
		SowID:  sowID,
		Status: breeding.PregnancyStatus(r.URL.Query().Get("status")),
		Limit:  limit,
	})
	list(h, w, r, pregs, err)
}

func (h *Handler) RegisterPregnancy(w http.ResponseWriter, r *http.Request) {
	var req PregnancyRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	preg, warnings, err := h.coord.RegisterPregnancy(r.Context(), req.toPregnancy())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, preg, warnings...)
}

func (h *Handler) ValidatePregnancy(w http.ResponseWriter, r *http.Request) {
	var req PregnancyCheck
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	res, err := h.coord.Validator().CanRegisterPregnancy(r.Context(), req.SowID, req.ServiceID, req.ConceptionDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *Handler) confirmPregnancy(ctx context.Context, id int64, req ConfirmRequest) (*breeding.Pregnancy, error) {
	return h.coord.ConfirmPregnancy(ctx, id, breeding.Confirmation{
		Date:             req.ConfirmationDate,
		Method:           req.ConfirmationMethod,
		EstimatedPiglets: req.EstimatedPiglets,
		Notes:            req.Notes,
	})
}

func (h *Handler) setPregnancyStatus(ctx context.Context, id int64, req StatusRequest) (*breeding.Pregnancy, error) {
	return h.coord.SetPregnancyStatus(ctx, id, req.Status, req.Notes)
}

func (h *Handler) updatePregnancy(ctx context.Context, id int64, req PregnancyUpdate) (*breeding.Pregnancy, error) {
	return h.coord.UpdatePregnancy(ctx, id, req.toPatch())
}

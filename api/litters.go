package api

import (
	"context"
	"net/http"

	"github.com/swinetrack/breeding-engine/breeding"
	"github.com/swinetrack/breeding-engine/jobs"
)

// =============================================================================
// BIRTHS
// =============================================================================

// ListBirths lists births newest first (?sow_id, ?pregnancy_id, ?limit).
func (h *Handler) ListBirths(w http.ResponseWriter, r *http.Request) {
	sowID, err := queryID(r, "sow_id")
	if err != nil {
		writeBadRequest(w, "Invalid query", err)
		return
	}
	pregID, err := queryID(r, "pregnancy_id")
	if err != nil {
		writeBadRequest(w, "Invalid query", err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeBadRequest(w, "Invalid query", err)
		return
	}
	births, err := h.store().ListBirths(r.Context(), breeding.BirthFilter{SowID: sowID, PregnancyID: pregID, Limit: limit})
	list(h, w, r, births, err)
}

// CreateBirth records a farrowing. Unless skip_litter is set, one lactating
// piglet is registered per live-born piglet.
func (h *Handler) CreateBirth(w http.ResponseWriter, r *http.Request) {
	var req BirthRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	birth, err := h.coord.CreateBirth(r.Context(), req.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, birth)
}

func (h *Handler) updateBirth(ctx context.Context, id int64, req BirthUpdate) (*breeding.Birth, error) {
	return h.coord.UpdateBirth(ctx, id, req.toPatch())
}

// WeanLitter weans one litter now.
// POST /api/births/{id}/wean
func (h *Handler) WeanLitter(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "Invalid id", err)
		return
	}
	res, err := h.jobs.Weaning.WeanLitter(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// ProcessWeaning runs the weaning job now.
// POST /api/births/process-weaning
func (h *Handler) ProcessWeaning(w http.ResponseWriter, r *http.Request) {
	var res jobs.WeaningRunResult
	err := h.runJob(r.Context(), jobs.Weaning, func(ctx context.Context) error {
		var err error
		res, err = h.jobs.Weaning.Run(ctx)
		return err
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// LitterPiglets lists the piglets of one birth in birth order.
func (h *Handler) LitterPiglets(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, "Invalid id", err)
		return
	}
	if _, err := h.store().GetBirth(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	piglets, err := h.store().ListPiglets(r.Context(), breeding.PigletFilter{BirthID: id})
	list(h, w, r, piglets, err)
}

// =============================================================================
// ABORTIONS
// =============================================================================

func (h *Handler) ListAbortions(w http.ResponseWriter, r *http.Request) {
	sowID, err := queryID(r, "sow_id")
	if err != nil {
		writeBadRequest(w, "Invalid query", err)
		return
	}
	abortions, err := h.store().ListAbortions(r.Context(), breeding.AbortionFilter{SowID: sowID})
	list(h, w, r, abortions, err)
}

func (h *Handler) CreateAbortion(w http.ResponseWriter, r *http.Request) {
	var req AbortionRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	a, err := h.coord.CreateAbortion(r.Context(), breeding.Abortion{
		SowID:           req.SowID,
		PregnancyID:     req.PregnancyID,
		AbortionDate:    req.AbortionDate,
		GestationDays:   req.GestationDays,
		FetusesExpelled: req.FetusesExpelled,
		ProbableCause:   req.ProbableCause,
		Notes:           req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, a)
}

func (h *Handler) updateAbortion(ctx context.Context, id int64, req AbortionUpdate) (*breeding.Abortion, error) {
	return h.coord.UpdateAbortion(ctx, id, breeding.AbortionPatch{
		AbortionDate:    req.AbortionDate,
		GestationDays:   req.GestationDays,
		FetusesExpelled: req.FetusesExpelled,
		ProbableCause:   req.ProbableCause,
		Notes:           req.Notes,
	})
}

// =============================================================================
// PIGLETS
// =============================================================================

// ListPiglets lists piglets (?birth_id, ?sow_id, ?status).
func (h *Handler) ListPiglets(w http.ResponseWriter, r *http.Request) {
	birthID, err := queryID(r, "birth_id")
	if err != nil {
		writeBadRequest(w, "Invalid query", err)
		return
	}
	sowID, err := queryID(r, "sow_id")
	if err != nil {
		writeBadRequest(w, "Invalid query", err)
		return
	}
	piglets, err := h.store().ListPiglets(r.Context(), breeding.PigletFilter{
		BirthID:       birthID,
		SowID:         sowID,
		CurrentStatus: breeding.PigletStatus(r.URL.Query().Get("status")),
	})
	list(h, w, r, piglets, err)
}

func (h *Handler) CreatePiglet(w http.ResponseWriter, r *http.Request) {
	var req PigletRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	p, err := h.coord.CreatePiglet(r.Context(), req.toPiglet())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, p)
}

func (h *Handler) updatePiglet(ctx context.Context, id int64, req PigletUpdate) (*breeding.Piglet, error) {
	return h.coord.UpdatePiglet(ctx, id, req.toPatch())
}

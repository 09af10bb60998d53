package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"example.com/fitlog/internal/domain"
)

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listActivities(w, r)
	case http.MethodPost:
		h.createActivity(w, r)
	default:
		methodNotAllowed(w, r)
	}
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	switch r.Method {
	case http.MethodGet:
		h.getActivity(w, r, id)
	case http.MethodPut:
		h.updateActivity(w, r, id, false)
	case http.MethodPatch:
		h.updateActivity(w, r, id, true)
	case http.MethodDelete:
		h.deleteActivity(w, r, id)
	default:
		methodNotAllowed(w, r)
	}
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	activities, err := h.service.ListActivities(r.Context(), caller.ID, r.URL.Query())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityViews(activities, caller.Username))
}

// createActivity stores the payload for the caller; any user or user_id in
// the body is ignored.
func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var payload domain.ActivityPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	activity, err := h.service.CreateActivity(r.Context(), caller.ID, payload)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityView(*activity, caller.Username))
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	activity, err := h.service.GetActivity(r.Context(), caller.ID, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity, caller.Username))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request, id string, partial bool) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var payload domain.ActivityPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	activity, err := h.service.UpdateActivity(r.Context(), caller.ID, id, payload, partial)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity, caller.Username))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id string) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteActivity(r.Context(), caller.ID, id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) activityHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	history, err := h.service.History(r.Context(), caller.ID, r.URL.Query())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		Statistics: history.Statistics,
		Activities: toActivityViews(history.Activities, caller.Username),
		Period:     history.Period,
	})
}

func (h *Handler) activitySummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Summary(r.Context(), caller.ID, r.URL.Query())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) activityTrends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	trends, err := h.service.Trends(r.Context(), caller.ID, r.URL.Query())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

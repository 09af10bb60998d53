package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/domain"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}

	var payload domain.UserPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	user, err := h.service.Register(r.Context(), payload)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message: "User registered successfully",
		User:    RegisteredUser{ID: user.ID, Username: user.Username, Email: user.Email},
	})
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}

	var req TokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}

	now := h.clock()
	token, err := auth.Issue(user.ID, now, h.tokens)
	if err != nil {
		fail(w, r, err)
		return
	}

	log.Ctx(r.Context()).Info().Str("user_id", user.ID).Msg("token issued")
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token.Value,
		TokenType:   "Bearer",
		ExpiresIn:   int64(token.ExpiresAt.Sub(now).Seconds()),
	})
}

func (h *Handler) users(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listUsers(w, r)
	case http.MethodPost:
		h.createUser(w, r)
	default:
		methodNotAllowed(w, r)
	}
}

func (h *Handler) userByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	switch r.Method {
	case http.MethodGet:
		h.getUser(w, r, id)
	case http.MethodPut:
		h.updateUser(w, r, id, false)
	case http.MethodPatch:
		h.updateUser(w, r, id, true)
	case http.MethodDelete:
		h.deleteUser(w, r, id)
	default:
		methodNotAllowed(w, r)
	}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}

	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		view, err := h.userView(r, u)
		if err != nil {
			fail(w, r, err)
			return
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var payload domain.UserPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	user, err := h.service.Register(r.Context(), payload)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserView(*user, 0))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.caller(w, r); !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	view, err := h.userView(r, *user)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request, id string, partial bool) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var payload domain.UserPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	user, err := h.service.UpdateUser(r.Context(), caller.ID, id, payload, partial)
	if err != nil {
		fail(w, r, err)
		return
	}
	view, err := h.userView(r, *user)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteUser(r.Context(), caller.ID, id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	activities, err := h.service.UserActivities(r.Context(), caller.ID, mux.Vars(r)["id"], r.URL.Query())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityViews(activities, caller.Username))
}

func (h *Handler) userView(r *http.Request, u domain.User) (UserView, error) {
	n, err := h.service.CountActivities(r.Context(), u.ID)
	if err != nil {
		return UserView{}, err
	}
	return toUserView(u, n), nil
}

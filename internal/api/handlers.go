// Package api exposes the HTTP handlers for accounts, activities and statistics.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/domain"
)

const maxBodyBytes = 1 << 20

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	tokens  auth.Config
	clock   func() time.Time
}

// NewHandler builds a Handler. tokens configures issuance on POST /auth/token/.
func NewHandler(service *domain.Service, tokens auth.Config) *Handler {
	return &Handler{service: service, tokens: tokens, clock: time.Now}
}

// RegisterRoutes wires endpoints to the router. The fixed /activities/*
// collection routes are registered before the {id} route so they win.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", healthz)

	r.HandleFunc("/register/", h.register)
	r.HandleFunc("/auth/token/", h.issueToken)

	r.HandleFunc("/users/", h.users)
	r.HandleFunc("/users/{id}/", h.userByID)
	r.HandleFunc("/users/{id}/activities/", h.userActivities)

	r.HandleFunc("/activities/", h.activities)
	r.HandleFunc("/activities/history/", h.activityHistory)
	r.HandleFunc("/activities/summary/", h.activitySummary)
	r.HandleFunc("/activities/trends/", h.activityTrends)
	r.HandleFunc("/activities/{id}/", h.activityByID)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// caller resolves the authenticated account, writing a 401 when there is none.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, detailUnauthenticated)
		return nil, false
	}
	user, err := h.service.ResolveCaller(r.Context(), claims.Subject)
	if err != nil {
		fail(w, r, err)
		return nil, false
	}
	return user, true
}

// decodeBody reads a JSON object into dst. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeDetail(w, http.StatusBadRequest, "JSON parse error - "+err.Error())
		return false
	}
	return true
}

func authErrorHandler(w http.ResponseWriter, _ *http.Request, _ error) {
	writeDetail(w, http.StatusUnauthorized, detailInvalidToken)
}

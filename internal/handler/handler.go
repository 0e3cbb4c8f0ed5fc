// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperrors"
	"github.com/Shivanand-hulikatti/campus-events/internal/auth"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/service"
)

// EventHandler holds all HTTP handlers for the event API.
type EventHandler struct {
	svc *service.EventService
	now func() time.Time
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService) *EventHandler {
	return &EventHandler{svc: svc, now: time.Now}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its status and stable message. Anything that is not
// an *apperrors.Error is logged and reported as a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		slog.Error("unhandled_error", "path", r.URL.Path, "request_id", chimiddleware.GetReqID(r.Context()), "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: "internal server error", Code: string(apperrors.CodeUnknown)})
		return
	}
	status := appErr.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", "path", r.URL.Path, "request_id", chimiddleware.GetReqID(r.Context()), "code", appErr.Code, "error", err.Error())
	}
	writeJSON(w, status, model.ErrorResponse{Error: appErr.Message, Code: string(appErr.Code)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, false)
}

// decodeOptionalJSON leaves dst untouched when the body is empty, whether or
// not the request declared a length.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.Invalid("invalid request body: " + err.Error())
	}
	return nil
}

// principal returns the caller set by Authenticate.
func principal(r *http.Request) (auth.Principal, error) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		return auth.Principal{}, apperrors.ErrUnauthenticated
	}
	return p, nil
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), p.ID, req, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// SetStatus handles PATCH /events/{id}/status
// Only the admin who created the event may change its status.
func (h *EventHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req model.StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	event, err := h.svc.AdminSetStatus(r.Context(), chi.URLParam(r, "id"), p.ID, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Sweep handles POST /events/sweep
// Runs the completion sweep now. Safe to call repeatedly.
func (h *EventHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.RunSweep(r.Context(), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	promoted := res.Promoted()
	writeJSON(w, http.StatusOK, model.SweepResponse{CompletedToday: len(promoted), Promoted: promoted})
}

// ─── Registrations ────────────────────────────────────────────────────────────

// Join handles POST /events/{id}/join
// Registers the caller immediately, without an approval step.
func (h *EventHandler) Join(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	event, err := h.svc.JoinDirect(r.Context(), chi.URLParam(r, "id"), p.ID, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Leave handles DELETE /events/{id}/join
func (h *EventHandler) Leave(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	event, err := h.svc.CancelJoin(r.Context(), chi.URLParam(r, "id"), p.ID, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// RequestJoin handles POST /events/{id}/registrations
// Submits a registration that waits for admin approval. The body is optional.
func (h *EventHandler) RequestJoin(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req model.RequestJoinRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	team := model.Team{Name: req.TeamName, Members: req.TeamMembers}
	reg, err := h.svc.RequestJoin(r.Context(), chi.URLParam(r, "id"), p.ID, team, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// ListRegistrations handles GET /events/{id}/registrations
func (h *EventHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.ListRegistrations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, regs)
}

// Decide handles POST /registrations/{id}/decision
func (h *EventHandler) Decide(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req model.DecisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Approve == nil {
		writeError(w, r, apperrors.Invalid("approve is required"))
		return
	}

	reg, err := h.svc.Decide(r.Context(), chi.URLParam(r, "id"), *req.Approve, p.ID, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// CancelRegistration handles DELETE /registrations/{id}
// Only the owner may cancel.
func (h *EventHandler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	event, err := h.svc.CancelRegistration(r.Context(), chi.URLParam(r, "id"), p.ID, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// ─── Users ────────────────────────────────────────────────────────────────────

// UserEvents handles GET /users/{id}/events
// Callers may read their own list; admins may read anyone's.
func (h *EventHandler) UserEvents(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID := chi.URLParam(r, "id")
	if userID != p.ID && !p.IsAdmin() {
		writeError(w, r, apperrors.ErrForbidden)
		return
	}

	events, err := h.svc.UserEvents(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.UserEventsResponse{UserID: userID, RegisteredEvents: events})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

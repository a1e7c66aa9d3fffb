package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
	"github.com/pesio-ai/be-event-approvals/internal/logger"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
	"github.com/pesio-ai/be-event-approvals/internal/service"
)

// Identity headers set by the upstream identity layer.
const (
	ActorRoleHeader = "X-Actor-Role"
	ActorIDHeader   = "X-Actor-ID"
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	coord   *service.EventCoordinator
	catalog *service.CatalogService
	log     *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(coord *service.EventCoordinator, catalog *service.CatalogService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		coord:   coord,
		catalog: catalog,
		log:     log.Component("http_handler"),
	}
}

// Register mounts the API routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.SubmitEvent(w, r)
		case http.MethodGet:
			h.ListEvents(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/api/v1/events/get", h.GetEvent)
	mux.HandleFunc("/api/v1/events/advance", h.AdvanceEvent)
	mux.HandleFunc("/api/v1/events/reject", h.RejectEvent)
	mux.HandleFunc("/api/v1/events/complete", h.CompleteEvent)
	mux.HandleFunc("/api/v1/approvals/pending", h.PendingApprovals)
	mux.HandleFunc("/api/v1/stats", h.Stats)
	mux.HandleFunc("/api/v1/venues", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.CreateVenue(w, r)
		case http.MethodGet:
			h.ListVenues(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/api/v1/resources", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.CreateResource(w, r)
		case http.MethodGet:
			h.ListResources(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/api/v1/notifications", h.ListNotifications)
	mux.HandleFunc("/api/v1/notifications/read", h.MarkNotificationRead)
}

// ── Events ───────────────────────────────────────────────────────────────────

type submitEventRequest struct {
	Title         string                        `json:"title"`
	Description   string                        `json:"description"`
	VenueID       string                        `json:"venue_id"`
	Start         time.Time                     `json:"start"`
	End           time.Time                     `json:"end"`
	AttendeeCount int                           `json:"attendee_count"`
	Resources     []repository.ResourceQuantity `json:"resources"`
}

// SubmitEvent handles new event requests. The organizer is the caller.
func (h *HTTPHandler) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if _, ok := h.requireRole(w, r, repository.RoleCoordinator, repository.RoleAdmin); !ok {
		return
	}
	organizer := r.Header.Get(ActorIDHeader)
	if organizer == "" {
		h.writeError(w, errors.New(errors.ErrCodeUnauthorized, "actor id is required"))
		return
	}

	var req submitEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	id, err := h.coord.Submit(r.Context(), &service.SubmitRequest{
		Title:         req.Title,
		Description:   req.Description,
		OrganizerID:   organizer,
		VenueID:       req.VenueID,
		Start:         req.Start,
		End:           req.End,
		AttendeeCount: req.AttendeeCount,
		Resources:     req.Resources,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "stage": string(repository.StagePendingHOD)})
}

// ListEvents handles list events HTTP requests
func (h *HTTPHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	events, err := h.coord.ListEvents(r.Context(), repository.EventFilter{
		Stage:       repository.Stage(q.Get("stage")),
		OrganizerID: q.Get("organizer_id"),
		VenueID:     q.Get("venue_id"),
		Limit:       pageSize,
		Offset:      (page - 1) * pageSize,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if events == nil {
		events = []*repository.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events":    events,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetEvent returns the event with its trail and reservations.
func (h *HTTPHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, errors.InvalidInput("id", "event id is required"))
		return
	}

	snap, err := h.coord.GetEvent(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type decisionRequest struct {
	ID      string `json:"id"`
	Comment string `json:"comment"`
	Reason  string `json:"reason"`
}

// AdvanceEvent approves the current stage as the caller's role.
func (h *HTTPHandler) AdvanceEvent(w http.ResponseWriter, r *http.Request) {
	req, role, ok := h.decision(w, r)
	if !ok {
		return
	}
	if err := h.coord.AdvanceWithComment(r.Context(), req.ID, role, req.Comment); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSnapshot(w, r, req.ID)
}

// RejectEvent rejects the current stage as the caller's role.
func (h *HTTPHandler) RejectEvent(w http.ResponseWriter, r *http.Request) {
	req, role, ok := h.decision(w, r)
	if !ok {
		return
	}
	if err := h.coord.Reject(r.Context(), req.ID, role, req.Reason); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSnapshot(w, r, req.ID)
}

// CompleteEvent closes an approved event. Coordinators may only complete
// their own events.
func (h *HTTPHandler) CompleteEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	role, ok := h.requireRole(w, r, repository.RoleCoordinator, repository.RoleAdmin)
	if !ok {
		return
	}
	actorID := r.Header.Get(ActorIDHeader)
	if role == repository.RoleCoordinator && actorID == "" {
		h.writeError(w, errors.New(errors.ErrCodeUnauthorized, "actor id is required"))
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		h.writeError(w, errors.InvalidInput("id", "event id is required"))
		return
	}
	if err := h.coord.CompleteAs(r.Context(), req.ID, role, actorID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSnapshot(w, r, req.ID)
}

func (h *HTTPHandler) decision(w http.ResponseWriter, r *http.Request) (*decisionRequest, repository.Role, bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return nil, "", false
	}
	role, ok := h.requireRole(w, r)
	if !ok {
		return nil, "", false
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		h.writeError(w, errors.InvalidInput("id", "event id is required"))
		return nil, "", false
	}
	return &req, role, true
}

func (h *HTTPHandler) writeSnapshot(w http.ResponseWriter, r *http.Request, id string) {
	snap, err := h.coord.GetEvent(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// PendingApprovals lists the events waiting on the caller's role.
func (h *HTTPHandler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	role, ok := h.requireRole(w, r, repository.RoleHOD, repository.RoleDean, repository.RoleHead)
	if !ok {
		return
	}

	events, err := h.coord.PendingFor(r.Context(), role)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if events == nil {
		events = []*repository.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// Stats returns event counts per stage.
func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	counts, err := h.coord.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// ── Catalog ──────────────────────────────────────────────────────────────────

// CreateVenue registers a venue. Admin only.
func (h *HTTPHandler) CreateVenue(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireRole(w, r, repository.RoleAdmin); !ok {
		return
	}
	var req struct {
		Name     string `json:"name"`
		Capacity int    `json:"capacity"`
		Location string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	v, err := h.catalog.CreateVenue(r.Context(), req.Name, req.Capacity, req.Location)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *HTTPHandler) ListVenues(w http.ResponseWriter, r *http.Request) {
	venues, err := h.catalog.ListVenues(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if venues == nil {
		venues = []*repository.Venue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"venues": venues})
}

// CreateResource registers countable equipment. Admin only.
func (h *HTTPHandler) CreateResource(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireRole(w, r, repository.RoleAdmin); !ok {
		return
	}
	var req struct {
		Name  string `json:"name"`
		Total int    `json:"total"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	res, err := h.catalog.CreateResource(r.Context(), req.Name, req.Total)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *HTTPHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.catalog.ListResources(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if resources == nil {
		resources = []*repository.Resource{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}

// ── Notifications ────────────────────────────────────────────────────────────

// ListNotifications lists the caller's notifications. Approvers read the
// queue for their role, organizers read their own.
func (h *HTTPHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	recipient, ok := h.recipient(w, r)
	if !ok {
		return
	}
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))

	notes, err := h.coord.Notifications(r.Context(), recipient, unread)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if notes == nil {
		notes = []*repository.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notes})
}

// MarkNotificationRead flags one of the caller's notifications as read.
func (h *HTTPHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	recipient, ok := h.recipient(w, r)
	if !ok {
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		h.writeError(w, errors.InvalidInput("id", "notification id is required"))
		return
	}

	if err := h.coord.MarkNotificationRead(r.Context(), req.ID, recipient); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *HTTPHandler) recipient(w http.ResponseWriter, r *http.Request) (string, bool) {
	role, ok := h.requireRole(w, r)
	if !ok {
		return "", false
	}
	switch role {
	case repository.RoleHOD, repository.RoleDean, repository.RoleHead:
		return string(role), true
	}
	if id := r.Header.Get(ActorIDHeader); id != "" {
		return id, true
	}
	h.writeError(w, errors.New(errors.ErrCodeUnauthorized, "actor id is required"))
	return "", false
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// requireRole reads the caller's role and, when allowed is non-empty, checks
// it is one of them.
func (h *HTTPHandler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...repository.Role) (repository.Role, bool) {
	role, err := parseRole(r.Header.Get(ActorRoleHeader))
	if err != nil {
		h.writeError(w, err)
		return "", false
	}
	if len(allowed) == 0 {
		return role, true
	}
	for _, a := range allowed {
		if role == a {
			return role, true
		}
	}
	h.writeError(w, errors.New(errors.ErrCodeForbidden, role.Label()+" may not perform this action"))
	return "", false
}

func parseRole(s string) (repository.Role, error) {
	role := repository.Role(s)
	switch role {
	case repository.RoleHOD, repository.RoleDean, repository.RoleHead,
		repository.RoleCoordinator, repository.RoleAdmin:
		return role, nil
	case "":
		return "", errors.New(errors.ErrCodeUnauthorized, "actor role is required")
	default:
		return "", errors.New(errors.ErrCodeUnauthorized, "unknown actor role").WithDetail("role", s)
	}
}

type errorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorBody struct {
	Error errorPayload `json:"error"`
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := httpStatus(code)

	payload := errorPayload{Code: string(code), Message: "internal server error"}
	if code == errors.ErrCodeInternal {
		h.log.Error().Err(err).Msg("Request failed")
	} else {
		payload.Message = messageOf(err, code)
		payload.Details = errors.DetailsOf(err, code)
	}
	writeJSON(w, status, errorBody{Error: payload})
}

func httpStatus(code errors.Code) int {
	switch code {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeWrongApprover, errors.ErrCodeForbidden:
		return http.StatusForbidden
	case errors.ErrCodeAlreadyExists, errors.ErrCodeConflict, errors.ErrCodeInvalidTransition,
		errors.ErrCodeVenueConflict, errors.ErrCodeInsufficientQuantity:
		return http.StatusConflict
	case errors.ErrCodeCapacityExceeded:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// messageOf returns the message of the error in the chain carrying code.
func messageOf(err error, code errors.Code) string {
	var e *errors.Error
	for cur := err; errors.As(cur, &e); cur = e.Err {
		if e.Code == code {
			return e.Message
		}
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorPayload{
		Code:    "METHOD_NOT_ALLOWED",
		Message: "method not allowed",
	}})
}

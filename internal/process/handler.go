package process

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes process event endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers process routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/events", h.createEvent)
	r.Get("/events", h.listEvents)
	r.Get("/events/{id}", h.getEvent)
	r.Put("/events/{id}/status", h.updateStatus)
	r.Get("/monitoring/alerts", h.activeAlerts)
	r.Get("/monitoring/delayed-shipments", h.delayedShipments)
	r.Get("/monitoring/performance", h.performance)
}

type createEventRequest struct {
	EventType       string `json:"event_type" validate:"required"`
	Description     string `json:"description" validate:"required"`
	Severity        string `json:"severity" validate:"omitempty,oneof=low medium high"`
	OrderID         *int64 `json:"order_id"`
	PurchaseOrderID *int64 `json:"purchase_order_id"`
	ProjectID       *int64 `json:"project_id"`
	ShipmentID      *int64 `json:"shipment_id"`
	CreatedBy       *int64 `json:"created_by"`
	AssignedTo      *int64 `json:"assigned_to"`
}

type eventResponse struct {
	ID              int64      `json:"id"`
	EventType       string     `json:"event_type"`
	Description     string     `json:"description"`
	Status          string     `json:"status"`
	Severity        string     `json:"severity"`
	OrderID         *int64     `json:"order_id,omitempty"`
	PurchaseOrderID *int64     `json:"purchase_order_id,omitempty"`
	ProjectID       *int64     `json:"project_id,omitempty"`
	ShipmentID      *int64     `json:"shipment_id,omitempty"`
	AssignedTo      *int64     `json:"assigned_to,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

func toEventResponse(ev Event) eventResponse {
	return eventResponse{
		ID:              ev.ID,
		EventType:       string(ev.EventType),
		Description:     ev.Description,
		Status:          string(ev.Status),
		Severity:        string(ev.Severity),
		OrderID:         ev.OrderID,
		PurchaseOrderID: ev.PurchaseOrderID,
		ProjectID:       ev.ProjectID,
		ShipmentID:      ev.ShipmentID,
		AssignedTo:      ev.AssignedTo,
		CreatedAt:       ev.CreatedAt,
		ResolvedAt:      ev.ResolvedAt,
	}
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ev, err := h.service.Record(r.Context(), EventInput{
		EventType:       EventType(req.EventType),
		Description:     req.Description,
		Severity:        Severity(req.Severity),
		OrderID:         req.OrderID,
		PurchaseOrderID: req.PurchaseOrderID,
		ProjectID:       req.ProjectID,
		ShipmentID:      req.ShipmentID,
		CreatedBy:       req.CreatedBy,
		AssignedTo:      req.AssignedTo,
	})
	if err != nil {
		h.logger.Error("create process event", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEventResponse(ev))
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := EventFilter{
		EventType:       EventType(q.Get("event_type")),
		Status:          Status(q.Get("status")),
		Severity:        Severity(q.Get("severity")),
		OrderID:         queryInt64(q.Get("order_id")),
		PurchaseOrderID: queryInt64(q.Get("purchase_order_id")),
		ProjectID:       queryInt64(q.Get("project_id")),
		ShipmentID:      queryInt64(q.Get("shipment_id")),
		AssignedTo:      queryInt64(q.Get("assigned_to")),
		From:            queryTime(q.Get("start_date")),
		To:              queryTime(q.Get("end_date")),
		Offset:          int(queryInt64(q.Get("skip"))),
		Limit:           int(queryInt64(q.Get("limit"))),
	}
	events, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list process events", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventResponse(ev))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	id := queryInt64(chi.URLParam(r, "id"))
	ev, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEventResponse(ev))
}

type statusUpdateRequest struct {
	Status     string `json:"status" validate:"required"`
	AssignedTo *int64 `json:"assigned_to"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := queryInt64(chi.URLParam(r, "id"))
	var req statusUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ev, err := h.service.UpdateStatus(r.Context(), id, Status(req.Status), req.AssignedTo)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEventResponse(ev))
}

func (h *Handler) activeAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, err := h.service.ActiveAlerts(r.Context(), Severity(q.Get("severity")), q.Get("entity_type"))
	if err != nil {
		h.logger.Error("active alerts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) delayedShipments(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.DelayedShipments(r.Context())
	if err != nil {
		h.logger.Error("delayed shipments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) performance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := queryTime(q.Get("start_date"))
	to := queryTime(q.Get("end_date"))
	if from.IsZero() || to.IsZero() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "start_date and end_date are required")
		return
	}
	perf, err := h.service.Performance(r.Context(), from, to)
	if err != nil {
		h.logger.Error("process performance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perf)
}

func queryInt64(raw string) int64 {
	v, _ := strconv.ParseInt(raw, 10, 64)
	return v
}

func queryTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

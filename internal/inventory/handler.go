package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes inventory endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/products", h.createProduct)
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Post("/movements", h.createMovement)
	r.Get("/movements", h.listMovements)
	r.Get("/reports/inventory-valuation", h.valuation)
	r.Get("/reports/stock-movements", h.stockMovements)
	r.Get("/reports/low-stock", h.lowStock)
}

type productRequest struct {
	SKU             string  `json:"sku" validate:"required"`
	Name            string  `json:"name" validate:"required"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	UnitPrice       float64 `json:"unit_price" validate:"gte=0"`
	StockQuantity   int64   `json:"stock_quantity" validate:"gte=0"`
	ReorderLevel    int64   `json:"reorder_level" validate:"gte=0"`
	ReorderQuantity int64   `json:"reorder_quantity" validate:"gte=0"`
	LeadTimeDays    int64   `json:"lead_time_days" validate:"gte=0"`
}

func (req productRequest) toInput() ProductInput {
	return ProductInput{
		SKU:             req.SKU,
		Name:            req.Name,
		Description:     req.Description,
		Category:        req.Category,
		UnitPrice:       req.UnitPrice,
		StockQuantity:   req.StockQuantity,
		ReorderLevel:    req.ReorderLevel,
		ReorderQuantity: req.ReorderQuantity,
		LeadTimeDays:    req.LeadTimeDays,
	}
}

type productResponse struct {
	ID              int64     `json:"id"`
	SKU             string    `json:"sku"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	UnitPrice       float64   `json:"unit_price"`
	StockQuantity   int64     `json:"stock_quantity"`
	ReorderLevel    int64     `json:"reorder_level"`
	ReorderQuantity int64     `json:"reorder_quantity"`
	LeadTimeDays    int64     `json:"lead_time_days"`
	CreatedAt       time.Time `json:"created_at"`
}

func toProductResponse(p Product) productResponse {
	return productResponse{
		ID:              p.ID,
		SKU:             p.SKU,
		Name:            p.Name,
		Description:     p.Description,
		Category:        p.Category,
		UnitPrice:       p.UnitPrice,
		StockQuantity:   p.StockQuantity,
		ReorderLevel:    p.ReorderLevel,
		ReorderQuantity: p.ReorderQuantity,
		LeadTimeDays:    p.LeadTimeDays,
		CreatedAt:       p.CreatedAt,
	}
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.CreateProduct(r.Context(), req.toInput())
	if err != nil {
		h.logger.Error("create product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProductResponse(p))
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ProductFilter{
		Category: q.Get("category"),
		LowStock: q.Get("low_stock") == "true",
		Offset:   atoiDefault(q.Get("skip"), 0),
		Limit:    atoiDefault(q.Get("limit"), 100),
	}
	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), pathID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), pathID(r), req.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(p))
}

type movementRequest struct {
	ProductID    int64     `json:"product_id" validate:"required"`
	Quantity     int64     `json:"quantity" validate:"gte=0"`
	Kind         string    `json:"movement_type" validate:"required,oneof=in out adjustment"`
	Reference    string    `json:"reference"`
	MovementDate time.Time `json:"movement_date"`
}

type movementResponse struct {
	ID           int64     `json:"id"`
	ProductID    int64     `json:"product_id"`
	Quantity     int64     `json:"quantity"`
	Kind         string    `json:"movement_type"`
	Reference    string    `json:"reference"`
	MovementDate time.Time `json:"movement_date"`
}

func toMovementResponse(m Movement) movementResponse {
	return movementResponse{
		ID:           m.ID,
		ProductID:    m.ProductID,
		Quantity:     m.Quantity,
		Kind:         string(m.Kind),
		Reference:    m.Reference,
		MovementDate: m.MovementDate,
	}
}

func (h *Handler) createMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.ApplyMovement(r.Context(), MovementInput{
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		Kind:         MovementKind(req.Kind),
		Reference:    req.Reference,
		MovementDate: req.MovementDate,
	})
	if err != nil {
		h.logger.Warn("apply movement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementResponse(m))
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{
		ProductID: int64(atoiDefault(q.Get("product_id"), 0)),
		Kind:      MovementKind(q.Get("movement_type")),
		From:      parseDate(q.Get("start_date")),
		To:        parseDate(q.Get("end_date")),
		Offset:    atoiDefault(q.Get("skip"), 0),
		Limit:     atoiDefault(q.Get("limit"), 100),
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) valuation(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Valuation(r.Context())
	if err != nil {
		h.logger.Error("inventory valuation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) stockMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := parseDate(q.Get("start_date"))
	to := parseDate(q.Get("end_date"))
	if from.IsZero() || to.IsZero() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "start_date and end_date are required")
		return
	}
	report, err := h.service.StockMovements(r.Context(), from, to, int64(atoiDefault(q.Get("product_id"), 0)))
	if err != nil {
		h.logger.Error("stock movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.LowStock(r.Context())
	if err != nil {
		h.logger.Error("low stock report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func atoiDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func parseDate(raw string) time.Time {
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

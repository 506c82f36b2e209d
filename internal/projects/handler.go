package projects

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes project and task endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createProject)
	r.Get("/", h.listProjects)
	r.Get("/{id}", h.getProject)
	r.Put("/{id}", h.updateProject)
	r.Put("/{id}/status", h.updateProjectStatus)
	r.Post("/{id}/tasks", h.createTask)
	r.Get("/tasks", h.listTasks)
	r.Get("/tasks/{id}", h.getTask)
	r.Put("/tasks/{id}", h.updateTask)
	r.Put("/tasks/{id}/status", h.updateTaskStatus)
	r.Get("/reports/project-performance", h.projectPerformance)
	r.Get("/reports/resource-allocation", h.resourceAllocation)
}

type taskRequest struct {
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	AssignedTo  *int64    `json:"assigned_to"`
	Status      string    `json:"status"`
	Progress    int64     `json:"progress" validate:"gte=0,lte=100"`
}

type createProjectRequest struct {
	ProjectCode string        `json:"project_code" validate:"required"`
	Name        string        `json:"name" validate:"required"`
	Description string        `json:"description"`
	CustomerID  *int64        `json:"customer_id"`
	StartDate   time.Time     `json:"start_date"`
	EndDate     time.Time     `json:"end_date"`
	Budget      float64       `json:"budget" validate:"gte=0"`
	Status      string        `json:"status"`
	Tasks       []taskRequest `json:"tasks" validate:"dive"`
}

type taskResponse struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	AssignedTo  *int64    `json:"assigned_to"`
	Status      string    `json:"status"`
	Progress    int64     `json:"progress"`
}

type projectResponse struct {
	ID          int64          `json:"id"`
	ProjectCode string         `json:"project_code"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	CustomerID  *int64         `json:"customer_id"`
	StartDate   time.Time      `json:"start_date"`
	EndDate     time.Time      `json:"end_date"`
	Budget      float64        `json:"budget"`
	Status      string         `json:"status"`
	Tasks       []taskResponse `json:"tasks"`
}

func toTaskResponse(t Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Name:        t.Name,
		Description: t.Description,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		AssignedTo:  t.AssignedTo,
		Status:      string(t.Status),
		Progress:    t.Progress,
	}
}

func toProjectResponse(p Project) projectResponse {
	resp := projectResponse{
		ID:          p.ID,
		ProjectCode: p.ProjectCode,
		Name:        p.Name,
		Description: p.Description,
		CustomerID:  p.CustomerID,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Budget:      p.Budget,
		Status:      string(p.Status),
		Tasks:       make([]taskResponse, 0, len(p.Tasks)),
	}
	for _, t := range p.Tasks {
		resp.Tasks = append(resp.Tasks, toTaskResponse(t))
	}
	return resp
}

func toTaskInput(req taskRequest) TaskInput {
	return TaskInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		AssignedTo:  req.AssignedTo,
		Status:      TaskStatus(req.Status),
		Progress:    req.Progress,
	}
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := ProjectInput{
		ProjectCode: req.ProjectCode,
		Name:        req.Name,
		Description: req.Description,
		CustomerID:  req.CustomerID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Budget:      req.Budget,
		Status:      Status(req.Status),
		Tasks:       make([]TaskInput, 0, len(req.Tasks)),
	}
	for _, task := range req.Tasks {
		input.Tasks = append(input.Tasks, toTaskInput(task))
	}
	p, err := h.service.CreateProject(r.Context(), input)
	if err != nil {
		h.logger.Error("create project", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProjectResponse(p))
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	customerID, _ := strconv.ParseInt(q.Get("customer_id"), 10, 64)
	projects, err := h.service.ListProjects(r.Context(), ProjectFilter{
		CustomerID: customerID,
		Status:     Status(q.Get("status")),
		From:       parseDate(q.Get("start_date")),
		To:         parseDate(q.Get("end_date")),
		Offset:     atoiDefault(q.Get("skip"), 0),
		Limit:      atoiDefault(q.Get("limit"), 100),
	})
	if err != nil {
		h.logger.Error("list projects", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProject(r.Context(), pathID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProjectResponse(p))
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	var patch ProjectPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	p, err := h.service.UpdateProject(r.Context(), pathID(r), patch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProjectResponse(p))
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) updateProjectStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.UpdateProjectStatus(r.Context(), pathID(r), Status(req.Status))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProjectResponse(p))
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	t, err := h.service.CreateTask(r.Context(), pathID(r), toTaskInput(req))
	if err != nil {
		h.logger.Error("create task", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTaskResponse(t))
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	projectID, _ := strconv.ParseInt(q.Get("project_id"), 10, 64)
	assignedTo, _ := strconv.ParseInt(q.Get("assigned_to"), 10, 64)
	tasks, err := h.service.ListTasks(r.Context(), TaskFilter{
		ProjectID:  projectID,
		AssignedTo: assignedTo,
		Status:     TaskStatus(q.Get("status")),
		Offset:     atoiDefault(q.Get("skip"), 0),
		Limit:      atoiDefault(q.Get("limit"), 100),
	})
	if err != nil {
		h.logger.Error("list tasks", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetTask(r.Context(), pathID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTaskResponse(t))
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	t, err := h.service.UpdateTask(r.Context(), pathID(r), toTaskInput(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTaskResponse(t))
}

type taskStatusRequest struct {
	Status   string `json:"status" validate:"required"`
	Progress *int64 `json:"progress" validate:"omitempty,gte=0,lte=100"`
}

func (h *Handler) updateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req taskStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	t, err := h.service.UpdateTaskStatus(r.Context(), pathID(r), TaskStatus(req.Status), req.Progress)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTaskResponse(t))
}

func (h *Handler) projectPerformance(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)
	if err != nil || projectID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "project_id is required")
		return
	}
	report, repErr := h.service.Performance(r.Context(), projectID)
	if repErr != nil {
		h.logger.Error("project performance report", slog.Any("error", repErr))
		httpx.RespondError(w, repErr)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) resourceAllocation(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ResourceAllocationReport(r.Context())
	if err != nil {
		h.logger.Error("resource allocation report", slog.Any("error", err))
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

package todo

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/go-todo-api/internal/auth"
	"github.com/redmonkez12/go-todo-api/internal/httputil"
	"github.com/redmonkez12/go-todo-api/internal/logging"
)

// Handler contains HTTP handlers for the /todos endpoints.
// All routes sit behind auth.Middleware.RequireAuth.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateRequest represents the body of POST /todos
type CreateRequest struct {
	Title       string  `json:"title" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitnil,max=500"`
	Completed   *bool   `json:"completed"`
}

// UpdateRequest represents the body of PUT /todos/{id}; absent fields are
// kept and an explicit "description": null clears the description
type UpdateRequest struct {
	Title       *string `json:"title" validate:"omitnil,min=1,max=100"`
	Description *string `json:"description" validate:"omitnil,max=500"`
	Completed   *bool   `json:"completed"`

	clearDescription bool
}

func (r *UpdateRequest) UnmarshalJSON(data []byte) error {
	type plain UpdateRequest
	if err := json.Unmarshal(data, (*plain)(r)); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	raw, ok := fields["description"]
	r.clearDescription = ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
	return nil
}

func (r UpdateRequest) input() UpdateInput {
	return UpdateInput{
		Title:            r.Title,
		Description:      r.Description,
		Completed:        r.Completed,
		ClearDescription: r.clearDescription,
	}
}

// ListQuery holds the paging and filter parameters of GET /todos
type ListQuery struct {
	Skip      int   `query:"skip" validate:"gte=0"`
	Limit     int   `query:"limit" validate:"gte=1,lte=1000"`
	Completed *bool `query:"completed"`
}

// Create adds a task
// @Summary      Create a todo
// @Tags         todos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateRequest true "Todo"
// @Success      201 {object} Task
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      422 {object} httputil.ErrorResponse "Validation error"
// @Router       /todos [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.UserFromContext(r.Context())
	if !ok {
		respondUnauthenticated(w)
		return
	}

	var req CreateRequest
	if !httputil.Bind(w, r, &req) {
		return
	}

	in := CreateInput{Title: req.Title, Description: req.Description}
	if req.Completed != nil {
		in.Completed = *req.Completed
	}

	task, err := h.service.Create(r.Context(), owner.ID, in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, task, http.StatusCreated)
}

// List returns the caller's tasks
// @Summary      List todos
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Param        skip      query int  false "Rows to skip" default(0)
// @Param        limit     query int  false "Page size (1-1000)" default(100)
// @Param        completed query bool false "Filter by completion"
// @Success      200 {array} Task
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      422 {object} httputil.ErrorResponse "Validation error"
// @Router       /todos [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.UserFromContext(r.Context())
	if !ok {
		respondUnauthenticated(w)
		return
	}

	q, err := parseListQuery(r)
	if err != nil {
		httputil.RespondBindError(w, r, err)
		return
	}

	tasks, err := h.service.List(r.Context(), owner.ID, ListFilter(q))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, tasks, http.StatusOK)
}

func parseListQuery(r *http.Request) (ListQuery, error) {
	values := r.URL.Query()
	q := ListQuery{Limit: DefaultListLimit}
	var bad httputil.ValidationErrors

	parseInt := func(name string, dst *int) {
		raw := values.Get(name)
		if raw == "" {
			return
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			bad = append(bad, httputil.FieldError{Field: name, Tag: "int", Message: name + " must be an integer"})
			return
		}
		*dst = n
	}
	parseInt("skip", &q.Skip)
	parseInt("limit", &q.Limit)

	if raw := values.Get("completed"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			bad = append(bad, httputil.FieldError{Field: "completed", Tag: "bool", Message: "completed must be a boolean"})
		} else {
			q.Completed = &b
		}
	}

	if len(bad) > 0 {
		return q, bad
	}
	return q, httputil.Validate(&q)
}

// Get returns one task
// @Summary      Get a todo
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Todo ID"
// @Success      200 {object} Task
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      404 {object} httputil.ErrorResponse "Todo not found"
// @Router       /todos/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	task, err := h.service.Get(r.Context(), owner, id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, task, http.StatusOK)
}

// Update changes the supplied fields of a task
// @Summary      Update a todo
// @Tags         todos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int           true "Todo ID"
// @Param        request body UpdateRequest true "Fields to change"
// @Success      200 {object} Task
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      404 {object} httputil.ErrorResponse "Todo not found"
// @Failure      422 {object} httputil.ErrorResponse "Validation error"
// @Router       /todos/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if !httputil.Bind(w, r, &req) {
		return
	}

	task, err := h.service.Update(r.Context(), owner, id, req.input())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, task, http.StatusOK)
}

// Delete removes a task
// @Summary      Delete a todo
// @Tags         todos
// @Security     BearerAuth
// @Param        id path int true "Todo ID"
// @Success      204
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      404 {object} httputil.ErrorResponse "Todo not found"
// @Router       /todos/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), owner, id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	httputil.RespondNoContent(w)
}

// Toggle flips the completed flag
// @Summary      Toggle a todo
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Todo ID"
// @Success      200 {object} Task
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      404 {object} httputil.ErrorResponse "Todo not found"
// @Router       /todos/{id}/toggle [put]
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	task, err := h.service.Toggle(r.Context(), owner, id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, task, http.StatusOK)
}

// target resolves the caller and the {id} path parameter
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	owner, ok := auth.UserFromContext(r.Context())
	if !ok {
		respondUnauthenticated(w)
		return 0, 0, false
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		logging.GetLoggerFromContext(r.Context()).Warn("invalid todo id", "id", chi.URLParam(r, "id"))
		httputil.RespondErrorWithCode(w, "todo id must be an integer", httputil.CodeInvalidTodoID, http.StatusUnprocessableEntity)
		return 0, 0, false
	}

	return owner.ID, id, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.GetLoggerFromContext(r.Context())

	if errors.Is(err, ErrNotFound) {
		logger.Warn("todo not found")
		httputil.RespondErrorWithCode(w, "Todo not found", httputil.CodeTodoNotFound, http.StatusNotFound)
		return
	}

	logger.Error("todo operation failed", "error", err.Error())
	httputil.RespondInternalError(w)
}

func respondUnauthenticated(w http.ResponseWriter) {
	httputil.RespondErrorWithCode(w, "not authenticated", httputil.CodeMissingAuth, http.StatusUnauthorized)
}

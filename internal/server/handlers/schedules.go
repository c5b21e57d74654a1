package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/halvard/coxswain/internal/database"
	"github.com/halvard/coxswain/internal/scheduler"
)

// ScheduleHandlers handles schedule CRUD endpoints.
type ScheduleHandlers struct {
	store *scheduler.Store
}

// NewScheduleHandlers creates new schedule handlers.
func NewScheduleHandlers(store *scheduler.Store) *ScheduleHandlers {
	return &ScheduleHandlers{store: store}
}

// CreateScheduleRequest is the request body for creating a schedule.
type CreateScheduleRequest struct {
	Name           string         `json:"name"`
	CronExpression string         `json:"cron_expression"`
	AgentsYAML     string         `json:"agents_yaml"`
	TasksYAML      string         `json:"tasks_yaml"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	Planning       bool           `json:"planning"`
	Model          string         `json:"model,omitempty"`
	IsActive       *bool          `json:"is_active,omitempty"`
}

// UpdateScheduleRequest is the request body for updating a schedule. Nil
// fields keep their current values.
type UpdateScheduleRequest struct {
	Name           *string         `json:"name,omitempty"`
	CronExpression *string         `json:"cron_expression,omitempty"`
	AgentsYAML     *string         `json:"agents_yaml,omitempty"`
	TasksYAML      *string         `json:"tasks_yaml,omitempty"`
	Inputs         *map[string]any `json:"inputs,omitempty"`
	Planning       *bool           `json:"planning,omitempty"`
	Model          *string         `json:"model,omitempty"`
	IsActive       *bool           `json:"is_active,omitempty"`
}

// ScheduleResponse is the JSON rendering of a schedule.
type ScheduleResponse struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	CronExpression string         `json:"cron_expression"`
	AgentsYAML     string         `json:"agents_yaml"`
	TasksYAML      string         `json:"tasks_yaml"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	Planning       bool           `json:"planning"`
	Model          string         `json:"model,omitempty"`
	IsActive       bool           `json:"is_active"`
	LastRunAt      *string        `json:"last_run_at"`
	NextRunAt      *string        `json:"next_run_at"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

func scheduleResponse(s *scheduler.Schedule) ScheduleResponse {
	resp := ScheduleResponse{
		ID:             s.ID,
		Name:           s.Name,
		CronExpression: s.CronExpression,
		AgentsYAML:     s.AgentsYAML,
		TasksYAML:      s.TasksYAML,
		Inputs:         s.Inputs,
		Planning:       s.Planning,
		Model:          s.Model,
		IsActive:       s.IsActive,
		CreatedAt:      database.FormatTime(s.CreatedAt),
		UpdatedAt:      database.FormatTime(s.UpdatedAt),
	}
	if s.LastRunAt != nil {
		v := database.FormatTime(*s.LastRunAt)
		resp.LastRunAt = &v
	}
	if s.NextRunAt != nil {
		v := database.FormatTime(*s.NextRunAt)
		resp.NextRunAt = &v
	}
	return resp
}

// List handles GET /api/schedules.
func (h *ScheduleHandlers) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.store.FindAll(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list schedules")
		InternalError(w, "Failed to list schedules")
		return
	}

	out := make([]ScheduleResponse, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, scheduleResponse(s))
	}

	JSON(w, http.StatusOK, map[string]any{
		"schedules": out,
		"count":     len(out),
	})
}

// Get handles GET /api/schedules/{id}.
func (h *ScheduleHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	schedule, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, scheduler.ErrScheduleNotFound) {
			NotFound(w, "Schedule not found")
			return
		}
		log.Error().Err(err).Int64("id", id).Msg("Failed to get schedule")
		InternalError(w, "Failed to get schedule")
		return
	}

	JSON(w, http.StatusOK, scheduleResponse(schedule))
}

// Create handles POST /api/schedules.
func (h *ScheduleHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	if err := scheduler.ValidateCron(req.CronExpression); err != nil {
		BadRequest(w, err.Error())
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	schedule := &scheduler.Schedule{
		Name:           req.Name,
		CronExpression: req.CronExpression,
		AgentsYAML:     req.AgentsYAML,
		TasksYAML:      req.TasksYAML,
		Inputs:         req.Inputs,
		Planning:       req.Planning,
		Model:          req.Model,
		IsActive:       isActive,
	}

	if err := h.store.Create(r.Context(), schedule); err != nil {
		if database.IsConstraintError(err) {
			Conflict(w, err.Error())
			return
		}
		log.Error().Err(err).Str("name", req.Name).Msg("Failed to create schedule")
		BadRequest(w, err.Error())
		return
	}

	log.Info().
		Int64("schedule_id", schedule.ID).
		Str("name", schedule.Name).
		Str("cron", schedule.CronExpression).
		Msg("Schedule created")

	JSON(w, http.StatusCreated, scheduleResponse(schedule))
}

// Update handles PATCH /api/schedules/{id}.
func (h *ScheduleHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	schedule, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, scheduler.ErrScheduleNotFound) {
			NotFound(w, "Schedule not found")
			return
		}
		log.Error().Err(err).Int64("id", id).Msg("Failed to load schedule for update")
		InternalError(w, "Failed to load schedule")
		return
	}

	if req.Name != nil {
		schedule.Name = *req.Name
	}
	if req.CronExpression != nil {
		if err := scheduler.ValidateCron(*req.CronExpression); err != nil {
			BadRequest(w, err.Error())
			return
		}
		schedule.CronExpression = *req.CronExpression
	}
	if req.AgentsYAML != nil {
		schedule.AgentsYAML = *req.AgentsYAML
	}
	if req.TasksYAML != nil {
		schedule.TasksYAML = *req.TasksYAML
	}
	if req.Inputs != nil {
		schedule.Inputs = *req.Inputs
	}
	if req.Planning != nil {
		schedule.Planning = *req.Planning
	}
	if req.Model != nil {
		schedule.Model = *req.Model
	}
	if req.IsActive != nil {
		schedule.IsActive = *req.IsActive
	}

	if err := h.store.Update(r.Context(), schedule); err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Failed to update schedule")
		BadRequest(w, err.Error())
		return
	}

	JSON(w, http.StatusOK, scheduleResponse(schedule))
}

// Delete handles DELETE /api/schedules/{id}.
func (h *ScheduleHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, scheduler.ErrScheduleNotFound) {
			NotFound(w, "Schedule not found")
			return
		}
		log.Error().Err(err).Int64("id", id).Msg("Failed to delete schedule")
		InternalError(w, "Failed to delete schedule")
		return
	}

	JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// Toggle handles POST /api/schedules/{id}/toggle.
func (h *ScheduleHandlers) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	schedule, err := h.store.ToggleActive(r.Context(), id)
	if err != nil {
		if errors.Is(err, scheduler.ErrScheduleNotFound) {
			NotFound(w, "Schedule not found")
			return
		}
		log.Error().Err(err).Int64("id", id).Msg("Failed to toggle schedule")
		InternalError(w, "Failed to toggle schedule")
		return
	}

	log.Info().
		Int64("schedule_id", id).
		Bool("is_active", schedule.IsActive).
		Msg("Schedule toggled")

	JSON(w, http.StatusOK, scheduleResponse(schedule))
}

func scheduleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		BadRequest(w, "Invalid schedule ID")
		return 0, false
	}
	return id, true
}

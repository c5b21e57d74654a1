package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/halvard/coxswain/internal/database"
	"github.com/halvard/coxswain/internal/engine"
	"github.com/halvard/coxswain/internal/executions"
	"github.com/halvard/coxswain/internal/scheduler"
)

// ExecutionHandlers handles execution endpoints: ad hoc runs, status lookups
// and the merged execution list.
type ExecutionHandlers struct {
	status     *executions.StatusService
	runner     *executions.Runner
	supervisor *executions.Supervisor
}

// NewExecutionHandlers creates new execution handlers.
func NewExecutionHandlers(status *executions.StatusService, runner *executions.Runner, supervisor *executions.Supervisor) *ExecutionHandlers {
	return &ExecutionHandlers{
		status:     status,
		runner:     runner,
		supervisor: supervisor,
	}
}

// CreateExecutionRequest is the request body for launching an ad hoc run.
type CreateExecutionRequest struct {
	Kind       string         `json:"kind,omitempty"`
	AgentsYAML string         `json:"agents_yaml"`
	TasksYAML  string         `json:"tasks_yaml"`
	Inputs     map[string]any `json:"inputs,omitempty"`
	Planning   bool           `json:"planning"`
	Model      string         `json:"model,omitempty"`
}

// ExecutionResponse is the JSON rendering of an execution record.
type ExecutionResponse struct {
	JobID       string          `json:"job_id"`
	Status      string          `json:"status"`
	RunName     string          `json:"run_name,omitempty"`
	Kind        string          `json:"kind"`
	TriggerType string          `json:"trigger_type"`
	TriggerID   string          `json:"trigger_id,omitempty"`
	Inputs      json.RawMessage `json:"inputs,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	CompletedAt *string         `json:"completed_at"`
}

func executionResponse(exec *executions.Execution) ExecutionResponse {
	resp := ExecutionResponse{
		JobID:       exec.JobID,
		Status:      string(exec.Status),
		RunName:     exec.RunName,
		Kind:        string(exec.Kind),
		TriggerType: string(exec.TriggerType),
		TriggerID:   exec.TriggerID,
		Error:       exec.Error,
		CreatedAt:   database.FormatTime(exec.CreatedAt),
		UpdatedAt:   database.FormatTime(exec.UpdatedAt),
	}
	if exec.Inputs != "" {
		resp.Inputs = json.RawMessage(exec.Inputs)
	}
	if exec.Result != "" {
		resp.Result = json.RawMessage(exec.Result)
	}
	if exec.CompletedAt != nil {
		v := database.FormatTime(*exec.CompletedAt)
		resp.CompletedAt = &v
	}
	return resp
}

// Create handles POST /api/executions. The run is dispatched in the
// background; the response carries the PENDING record.
func (h *ExecutionHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	kind := executions.KindCrew
	switch req.Kind {
	case "", string(executions.KindCrew):
	case string(executions.KindFlow):
		kind = executions.KindFlow
	default:
		BadRequest(w, fmt.Sprintf("Unknown kind %q", req.Kind))
		return
	}

	if err := scheduler.ValidateYAML("agents_yaml", req.AgentsYAML); err != nil {
		BadRequest(w, err.Error())
		return
	}
	if err := scheduler.ValidateYAML("tasks_yaml", req.TasksYAML); err != nil {
		BadRequest(w, err.Error())
		return
	}

	jobID := uuid.New().String()
	runName := executions.GenerateRunName()

	cfg := engine.JobConfig{
		JobID:      jobID,
		RunName:    runName,
		AgentsYAML: req.AgentsYAML,
		TasksYAML:  req.TasksYAML,
		Inputs:     req.Inputs,
		Planning:   req.Planning,
		Model:      req.Model,
	}

	inputsJSON := ""
	if len(req.Inputs) > 0 {
		if data, err := json.Marshal(req.Inputs); err == nil {
			inputsJSON = string(data)
		}
	}

	record := &executions.Execution{
		JobID:       jobID,
		Status:      executions.StatusPending,
		RunName:     runName,
		Kind:        kind,
		TriggerType: executions.TriggerAPI,
		Inputs:      inputsJSON,
	}

	if !h.status.CreateExecution(r.Context(), record) {
		InternalError(w, "Failed to record execution")
		return
	}

	h.supervisor.Dispatch("api-run", jobID, func(ctx context.Context) error {
		return h.runner.Run(ctx, kind, cfg)
	})

	log.Info().
		Str("job_id", jobID).
		Str("run_name", runName).
		Str("kind", string(kind)).
		Msg("Ad hoc execution dispatched")

	JSON(w, http.StatusAccepted, executionResponse(record))
}

// List handles GET /api/executions.
func (h *ExecutionHandlers) List(w http.ResponseWriter, r *http.Request) {
	opts := executions.ListOptions{
		Status:      executions.Status(r.URL.Query().Get("status")),
		Kind:        executions.Kind(r.URL.Query().Get("kind")),
		TriggerType: executions.TriggerType(r.URL.Query().Get("trigger_type")),
		TriggerID:   r.URL.Query().Get("trigger_id"),
		Limit:       50,
	}

	if opts.Status != "" && !opts.Status.IsValid() {
		BadRequest(w, fmt.Sprintf("Unknown status %q", opts.Status))
		return
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			opts.Limit = limit
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			opts.Offset = offset
		}
	}

	execs, total, err := h.status.List(r.Context(), opts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list executions")
		InternalError(w, "Failed to list executions")
		return
	}

	out := make([]ExecutionResponse, 0, len(execs))
	for _, exec := range execs {
		out = append(out, executionResponse(exec))
	}

	JSON(w, http.StatusOK, map[string]any{
		"executions": out,
		"count":      len(out),
		"total":      total,
		"limit":      opts.Limit,
		"offset":     opts.Offset,
	})
}

// Get handles GET /api/executions/{job_id}.
func (h *ExecutionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		BadRequest(w, "Job ID is required")
		return
	}

	exec := h.status.GetStatus(r.Context(), jobID)
	if exec == nil {
		NotFound(w, "Execution not found")
		return
	}

	JSON(w, http.StatusOK, executionResponse(exec))
}

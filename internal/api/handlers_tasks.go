package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Julianb233/ghl-agency-ai-sub004/internal/permissions"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/telemetry"
	"github.com/Julianb233/ghl-agency-ai-sub004/pkg/types"
)

// SubmitTaskRequest is the request body for submitting a task
type SubmitTaskRequest struct {
	Description  string                 `json:"description"`
	Priority     string                 `json:"priority"`
	Tool         string                 `json:"tool,omitempty"` // primary tool the task will invoke
	Requirements types.TaskRequirements `json:"requirements"`
	UserID       string                 `json:"user_id,omitempty"` // admin override, defaults to caller
}

// CompleteTaskRequest is the request body for reporting task completion
type CompleteTaskRequest struct {
	Result *types.TaskResult `json:"result,omitempty"`
}

// FailTaskRequest is the request body for reporting task failure
type FailTaskRequest struct {
	Error string `json:"error,omitempty"`
	Retry bool   `json:"retry,omitempty"`
}

// handleTasks handles POST /api/v1/tasks
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req SubmitTaskRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	identity := identityFrom(r.Context())
	if identity == nil {
		s.respondError(w, http.StatusUnauthorized, "Missing credentials")
		return
	}

	userID := identity.UserID
	if req.UserID != "" && req.UserID != identity.UserID {
		// Submitting on behalf of another user is an admin operation
		if identity.Role != "admin" {
			s.respondError(w, http.StatusForbidden, "Only admins may submit tasks for other users")
			return
		}
		userID = req.UserID
	}

	priority := types.Priority(req.Priority)
	if req.Priority == "" {
		priority = types.PriorityNormal
	}
	if !priority.Valid() {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Unknown priority %q", req.Priority))
		return
	}

	// Gate on tool permission before touching the queue
	if req.Tool != "" {
		if err := s.perms.CheckToolExecutionPermission(r.Context(), userID, req.Tool, identity.Scopes); err != nil {
			var denied *permissions.DeniedError
			if errors.As(err, &denied) {
				s.respondJSON(w, http.StatusForbidden, denied)
				return
			}
			s.respondError(w, http.StatusForbidden, err.Error())
			return
		}
	}

	// Quota check returns a structured result, not an error
	check := s.perms.CheckExecutionLimits(r.Context(), userID)
	if !check.CanExecute {
		s.respondJSON(w, http.StatusTooManyRequests, check)
		return
	}

	task := &types.Task{
		ID:           uuid.NewString(),
		Description:  req.Description,
		UserID:       userID,
		Priority:     priority,
		Requirements: req.Requirements,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if s.tracker != nil {
		if err := s.tracker.StartExecution(r.Context(), userID); err != nil {
			log.Printf("[API] Usage tracking for user %s failed: %v", userID, err)
		}
	}

	s.queue.Enqueue(task)
	if s.metrics != nil {
		s.metrics.TasksQueued.Inc()
	}
	telemetry.RecordTaskQueued(r.Context())

	s.respondJSON(w, http.StatusCreated, task)
}

// handleTask handles task sub-resources:
//
//	GET  /api/v1/tasks/{id}/assignment
//	POST /api/v1/tasks/{id}/complete
//	POST /api/v1/tasks/{id}/fail
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	taskID := s.extractID(r.URL.Path, "/api/v1/tasks")
	if taskID == "" {
		s.respondError(w, http.StatusBadRequest, "Task ID is required")
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/assignment"):
		s.handleGetAssignment(w, r, taskID)
	case strings.HasSuffix(r.URL.Path, "/complete"):
		s.handleCompleteTask(w, r, taskID)
	case strings.HasSuffix(r.URL.Path, "/fail"):
		s.handleFailTask(w, r, taskID)
	default:
		s.respondError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) handleGetAssignment(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	assignment, exists := s.dispatcher.GetAssignment(taskID)
	if !exists {
		s.respondError(w, http.StatusNotFound, "No active assignment for task")
		return
	}

	s.respondJSON(w, http.StatusOK, assignment)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req CompleteTaskRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, _ := s.dispatcher.GetTask(taskID)
	assignment := s.dispatcher.CompleteTask(taskID, req.Result)
	if assignment == nil {
		s.respondError(w, http.StatusNotFound, "No active assignment for task")
		return
	}

	s.finishUsage(r, task)
	s.respondJSON(w, http.StatusOK, assignment)
}

func (s *Server) handleFailTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req FailTaskRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, _ := s.dispatcher.GetTask(taskID)

	var taskErr error
	if req.Error != "" {
		taskErr = errors.New(req.Error)
	}
	assignment := s.dispatcher.FailTask(taskID, taskErr, req.Retry)
	if assignment == nil {
		s.respondError(w, http.StatusNotFound, "No active assignment for task")
		return
	}

	if req.Retry && task != nil {
		// Enqueue resets the task to pending
		s.queue.Enqueue(task)
		if s.metrics != nil {
			s.metrics.TasksQueued.Inc()
		}
		telemetry.RecordTaskQueued(r.Context())
	} else {
		s.finishUsage(r, task)
	}

	s.respondJSON(w, http.StatusOK, assignment)
}

// finishUsage decrements the concurrent execution count for the task's user
func (s *Server) finishUsage(r *http.Request, task *types.Task) {
	if s.tracker == nil || task == nil || task.UserID == "" {
		return
	}
	if err := s.tracker.FinishExecution(r.Context(), task.UserID); err != nil {
		log.Printf("[API] Usage tracking for user %s failed: %v", task.UserID, err)
	}
}

// handleDistribute handles POST /api/v1/distribute - runs one distribution pass
func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	assigned := s.dispatcher.DistributeTasks(r.Context(), s.registry.Snapshot())

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"assigned": assigned,
		"status":   s.dispatcher.GetQueueStatus(),
	})
}

// handleQueueStatus handles GET /api/v1/queue/status
func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.respondJSON(w, http.StatusOK, s.dispatcher.GetQueueStatus())
}

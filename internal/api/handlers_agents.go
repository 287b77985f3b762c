package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Julianb233/ghl-agency-ai-sub004/pkg/types"
)

// RegisterAgentRequest is the request body for registering an agent
type RegisterAgentRequest struct {
	ID           string                  `json:"id,omitempty"`
	Name         string                  `json:"name,omitempty"`
	Type         types.AgentType         `json:"type"`
	Capabilities types.AgentCapabilities `json:"capabilities"`
}

// UpdateAgentStatusRequest is the request body for an agent status update
type UpdateAgentStatusRequest struct {
	Status types.AgentStatus `json:"status,omitempty"`
	Health *float64          `json:"health,omitempty"`
}

// handleAgents handles GET/POST /api/v1/agents
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.respondJSON(w, http.StatusOK, s.registry.Snapshot())
	case http.MethodPost:
		s.handleRegisterAgent(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req RegisterAgentRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	} else if _, exists := s.registry.GetAgent(req.ID); exists {
		s.respondError(w, http.StatusConflict, "Agent already registered")
		return
	}
	if req.Type == "" {
		req.Type = types.AgentTypeGeneral
	}
	if req.Capabilities.MaxConcurrentTasks <= 0 {
		req.Capabilities.MaxConcurrentTasks = 1
	}

	agent := &types.Agent{
		ID:           req.ID,
		Name:         req.Name,
		Type:         req.Type,
		Status:       types.AgentStatusIdle,
		Health:       1.0,
		Capabilities: req.Capabilities,
	}

	if err := s.registry.Register(agent); err != nil {
		s.respondError(w, http.StatusConflict, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, agent)
}

// handleAgent handles agent sub-resources:
//
//	GET    /api/v1/agents/{id}
//	DELETE /api/v1/agents/{id}
//	POST   /api/v1/agents/{id}/status
//	GET    /api/v1/agents/{id}/assignments
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	agentID := s.extractID(r.URL.Path, "/api/v1/agents")
	if agentID == "" {
		s.respondError(w, http.StatusBadRequest, "Agent ID is required")
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/status"):
		s.handleAgentStatus(w, r, agentID)
	case strings.HasSuffix(r.URL.Path, "/assignments"):
		s.handleAgentAssignments(w, r, agentID)
	default:
		s.handleAgentByID(w, r, agentID)
	}
}

func (s *Server) handleAgentByID(w http.ResponseWriter, r *http.Request, agentID string) {
	switch r.Method {
	case http.MethodGet:
		agent, ok := s.registry.GetAgent(agentID)
		if !ok {
			s.respondError(w, http.StatusNotFound, "Agent not found")
			return
		}
		s.respondJSON(w, http.StatusOK, agent)
	case http.MethodDelete:
		s.registry.Deregister(agentID)
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "deregistered"})
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req UpdateAgentStatusRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Status != "" {
		if err := s.registry.UpdateStatus(agentID, req.Status); err != nil {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
	}
	if req.Health != nil {
		if err := s.registry.UpdateHealth(agentID, *req.Health); err != nil {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
	}

	agent, _ := s.registry.GetAgent(agentID)
	s.respondJSON(w, http.StatusOK, agent)
}

func (s *Server) handleAgentAssignments(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.respondJSON(w, http.StatusOK, s.dispatcher.GetAgentAssignments(agentID))
}

package api

import (
	"errors"
	"net/http"

	"github.com/Julianb233/ghl-agency-ai-sub004/internal/permissions"
)

// PermissionCheckRequest is the request body for a tool permission check
type PermissionCheckRequest struct {
	Tool   string `json:"tool"`
	UserID string `json:"user_id,omitempty"` // admin override, defaults to caller
}

// PermissionCheckResponse is the result of a tool permission check
type PermissionCheckResponse struct {
	Allowed bool                     `json:"allowed"`
	Denial  *permissions.DeniedError `json:"denial,omitempty"`
}

// handlePermissionCheck handles POST /api/v1/permissions/check
func (s *Server) handlePermissionCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req PermissionCheckRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Tool == "" {
		s.respondError(w, http.StatusBadRequest, "Tool is required")
		return
	}

	identity := identityFrom(r.Context())
	if identity == nil {
		s.respondError(w, http.StatusUnauthorized, "Missing credentials")
		return
	}

	userID, ok := s.resolveUserID(w, identity.UserID, req.UserID, identity.Role)
	if !ok {
		return
	}

	scopes := identity.Scopes
	if userID != identity.UserID {
		// Checking another user's permission ignores the caller's key scopes
		scopes = nil
	}

	err := s.perms.CheckToolExecutionPermission(r.Context(), userID, req.Tool, scopes)
	if err != nil {
		resp := PermissionCheckResponse{Allowed: false}
		var denied *permissions.DeniedError
		if errors.As(err, &denied) {
			resp.Denial = denied
		}
		s.respondJSON(w, http.StatusOK, resp)
		return
	}

	s.respondJSON(w, http.StatusOK, PermissionCheckResponse{Allowed: true})
}

// handleExecutionLimits handles GET /api/v1/permissions/limits
func (s *Server) handleExecutionLimits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	identity := identityFrom(r.Context())
	if identity == nil {
		s.respondError(w, http.StatusUnauthorized, "Missing credentials")
		return
	}

	userID, ok := s.resolveUserID(w, identity.UserID, r.URL.Query().Get("user_id"), identity.Role)
	if !ok {
		return
	}

	s.respondJSON(w, http.StatusOK, s.perms.CheckExecutionLimits(r.Context(), userID))
}

// handlePermissionSummary handles GET /api/v1/permissions/summary
func (s *Server) handlePermissionSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	identity := identityFrom(r.Context())
	if identity == nil {
		s.respondError(w, http.StatusUnauthorized, "Missing credentials")
		return
	}

	userID, ok := s.resolveUserID(w, identity.UserID, r.URL.Query().Get("user_id"), identity.Role)
	if !ok {
		return
	}

	summary, err := s.perms.GetPermissionSummary(r.Context(), userID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, summary)
}

// resolveUserID applies the admin-only override of the target user. Writes
// the error response itself and returns ok=false when the caller may not
// query the requested user.
func (s *Server) resolveUserID(w http.ResponseWriter, callerID, requested, role string) (string, bool) {
	if requested == "" || requested == callerID {
		return callerID, true
	}
	if role != "admin" {
		s.respondError(w, http.StatusForbidden, "Only admins may query other users")
		return "", false
	}
	return requested, true
}

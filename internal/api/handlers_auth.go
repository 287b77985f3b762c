package api

import (
	"net/http"

	"github.com/Julianb233/ghl-agency-ai-sub004/internal/auth"
)

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUserRequest is the request body for creating a user
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// ChangePasswordRequest is the request body for changing the password
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// handleLogin handles POST /api/v1/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req LoginRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := s.authMgr.Login(req.Username, req.Password)
	if err != nil {
		// Don't leak whether the username exists
		s.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleUsers handles GET/POST /api/v1/auth/users
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	if identity == nil || identity.Role != "admin" {
		s.respondError(w, http.StatusForbidden, "Admin access required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.respondJSON(w, http.StatusOK, s.authMgr.ListUsers())
	case http.MethodPost:
		var req CreateUserRequest
		if err := s.parseJSON(r, &req); err != nil {
			s.respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Username == "" || req.Password == "" {
			s.respondError(w, http.StatusBadRequest, "Username and password are required")
			return
		}
		if req.Role == "" {
			req.Role = "member"
		}

		user, err := s.authMgr.CreateUser(req.Username, req.Email, req.Role, req.Password)
		if err != nil {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.respondJSON(w, http.StatusCreated, user)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleChangePassword handles POST /api/v1/auth/change-password
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	identity := identityFrom(r.Context())
	if identity == nil {
		s.respondError(w, http.StatusUnauthorized, "Missing credentials")
		return
	}

	var req ChangePasswordRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.OldPassword == "" || req.NewPassword == "" {
		s.respondError(w, http.StatusBadRequest, "Old password and new password are required")
		return
	}
	if req.NewPassword == req.OldPassword {
		s.respondError(w, http.StatusBadRequest, "New password must be different from old password")
		return
	}
	if len(req.NewPassword) < 8 {
		s.respondError(w, http.StatusBadRequest, "New password must be at least 8 characters")
		return
	}

	if err := s.authMgr.ChangePassword(identity.UserID, req.OldPassword, req.NewPassword); err != nil {
		// Don't leak details about whether password verification failed
		s.respondError(w, http.StatusUnauthorized, "Failed to change password: invalid old password")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Password changed successfully",
	})
}

// handleAPIKeys handles GET/POST /api/v1/auth/keys
func (s *Server) handleAPIKeys(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	if identity == nil {
		s.respondError(w, http.StatusUnauthorized, "Missing credentials")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.respondJSON(w, http.StatusOK, s.authMgr.ListAPIKeys(identity.UserID))
	case http.MethodPost:
		var req auth.CreateAPIKeyRequest
		if err := s.parseJSON(r, &req); err != nil {
			s.respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Name == "" {
			s.respondError(w, http.StatusBadRequest, "Key name is required")
			return
		}

		resp, err := s.authMgr.CreateAPIKey(identity.UserID, req)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusCreated, resp)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleAPIKey handles DELETE /api/v1/auth/keys/{id}
func (s *Server) handleAPIKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	identity := identityFrom(r.Context())
	if identity == nil {
		s.respondError(w, http.StatusUnauthorized, "Missing credentials")
		return
	}

	keyID := s.extractID(r.URL.Path, "/api/v1/auth/keys")
	if keyID == "" {
		s.respondError(w, http.StatusBadRequest, "Key ID is required")
		return
	}

	if err := s.authMgr.RevokeAPIKey(keyID, identity.UserID); err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

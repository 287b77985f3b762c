package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Julianb233/ghl-agency-ai-sub004/internal/auth"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/dispatch"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/eventbus"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/metrics"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/permissions"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/pool"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/queue"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/usage"
	"github.com/Julianb233/ghl-agency-ai-sub004/pkg/config"
)

// contextKey is a private type for request context values
type contextKey string

const identityKey contextKey = "identity"

// Server represents the HTTP API server
type Server struct {
	dispatcher *dispatch.Dispatcher
	registry   *pool.Registry
	queue      *queue.TaskQueue
	authMgr    *auth.Manager
	perms      *permissions.Service
	tracker    usage.Tracker
	eventBus   *eventbus.EventBus
	metrics    *metrics.Metrics
	config     *config.Config
}

// NewServer creates a new API server
func NewServer(d *dispatch.Dispatcher, reg *pool.Registry, q *queue.TaskQueue, am *auth.Manager, ps *permissions.Service, tracker usage.Tracker, eb *eventbus.EventBus, m *metrics.Metrics, cfg *config.Config) *Server {
	return &Server{
		dispatcher: d,
		registry:   reg,
		queue:      q,
		authMgr:    am,
		perms:      ps,
		tracker:    tracker,
		eventBus:   eb,
		metrics:    m,
		config:     cfg,
	}
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	// Auth
	mux.HandleFunc("/api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("/api/v1/auth/users", s.handleUsers)
	mux.HandleFunc("/api/v1/auth/change-password", s.handleChangePassword)
	mux.HandleFunc("/api/v1/auth/keys", s.handleAPIKeys)
	mux.HandleFunc("/api/v1/auth/keys/", s.handleAPIKey)

	// Tasks
	mux.HandleFunc("/api/v1/tasks", s.handleTasks)
	mux.HandleFunc("/api/v1/tasks/", s.handleTask)

	// Distribution
	mux.HandleFunc("/api/v1/distribute", s.handleDistribute)
	mux.HandleFunc("/api/v1/queue/status", s.handleQueueStatus)

	// Agents
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agents/", s.handleAgent)

	// Permissions
	mux.HandleFunc("/api/v1/permissions/check", s.handlePermissionCheck)
	mux.HandleFunc("/api/v1/permissions/limits", s.handleExecutionLimits)
	mux.HandleFunc("/api/v1/permissions/summary", s.handlePermissionSummary)

	// Events (history and real-time stream)
	mux.HandleFunc("/api/v1/events", s.handleGetEvents)
	mux.HandleFunc("/api/v1/events/stream", s.handleEventStream)

	// Apply middleware
	handler := s.loggingMiddleware(mux)
	handler = s.corsMiddleware(handler)
	handler = s.authMiddleware(handler)

	return handler
}

// Middleware

// statusRecorder captures the response status for request metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware records request metrics
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start).Seconds())
		}
	})
}

// corsMiddleware handles CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.config.Security.AllowedOrigins) > 0 {
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range s.config.Security.AllowedOrigins {
				if allowedOrigin == "*" || allowedOrigin == origin {
					w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
					break
				}
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware resolves the caller identity from a bearer token or API key
// and attaches it to the request context
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth for health check, metrics, login and the websocket
		// stream (browser clients cannot set headers on the upgrade)
		if r.URL.Path == "/api/v1/health" ||
			r.URL.Path == "/metrics" ||
			r.URL.Path == "/api/v1/auth/login" ||
			r.URL.Path == "/api/v1/events/stream" {
			next.ServeHTTP(w, r)
			return
		}

		// API key takes precedence; its identity carries scopes
		if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
			identity, err := s.authMgr.ValidateAPIKey(apiKey)
			if err != nil {
				s.respondError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
			return
		}

		// Bearer token
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "Missing credentials")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := s.authMgr.ValidateToken(tokenString)
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		identity := &auth.Identity{
			UserID:   claims.UserID,
			Username: claims.Username,
			Role:     claims.Role,
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

func withIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// identityFrom returns the authenticated identity from the request context
func identityFrom(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(identityKey).(*auth.Identity)
	return identity
}

// Helper functions

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// parseJSON parses JSON request body
func (s *Server) parseJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// extractID extracts ID from URL path
func (s *Server) extractID(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	id = strings.TrimPrefix(id, "/")
	id = strings.TrimSuffix(id, "/")

	// Handle sub-paths (e.g. /api/v1/tasks/123/complete)
	parts := strings.Split(id, "/")
	if len(parts) > 0 {
		return parts[0]
	}

	return id
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"agents":    s.registry.Len(),
		"queue":     s.queue.Len(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

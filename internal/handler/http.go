package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vanish-leaderboard/internal/domain"
	"github.com/vanish-leaderboard/internal/service"
	"github.com/vanish-leaderboard/internal/websocket"
)

// Handler provides HTTP handlers for the leaderboard API
type Handler struct {
	service *service.LeaderboardService
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *service.LeaderboardService, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		logger:  logger,
	}
}

// errorResponse is the JSON body of every non-2xx response
type errorResponse struct {
	Error string `json:"error"`
}

// Router creates and configures the HTTP router. Routes follow the
// get{Hard}{Daily}HighScores / submit{Hard}{Daily}Score naming the game
// client constructs.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	r.MethodNotAllowed(h.methodNotAllowed)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)
	r.Get("/ws/stats", h.GetWebSocketStats)

	// One GET/POST pair per leaderboard category
	for _, cat := range domain.Categories {
		r.Get("/api/get"+routeInfix(cat)+"HighScores", h.getHighScores(cat))
		r.Post("/api/submit"+routeInfix(cat)+"Score", h.submitScore(cat))
	}

	return r
}

// routeInfix returns the path fragment identifying a category
func routeInfix(cat domain.Category) string {
	infix := ""
	if cat.Mode == domain.ModeHard {
		infix += "Hard"
	}
	if cat.Window == domain.WindowDaily {
		infix += "Daily"
	}
	return infix
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// getHighScores returns the query handler for one category. The response
// body is a bare JSON array, which is what the game client expects.
func (h *Handler) getHighScores(cat domain.Category) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := h.service.Query(r.Context(), cat)
		if err != nil {
			h.logger.Error("failed to get high scores",
				"category", cat.ID(),
				"error", err,
			)
			h.writeError(w, http.StatusInternalServerError, "Failed to get high scores")
			return
		}
		h.writeJSON(w, http.StatusOK, entries)
	}
}

// submitScore returns the submission handler for one category
func (h *Handler) submitScore(cat domain.Category) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
			return
		}

		result, err := h.service.Submit(r.Context(), cat, req.PlayerName, req.Time)
		if err != nil {
			if domain.IsValidationError(err) {
				h.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			h.logger.Error("failed to submit score",
				"category", cat.ID(),
				"error", err,
			)
			h.writeError(w, http.StatusInternalServerError, "Failed to submit score")
			return
		}

		h.writeJSON(w, http.StatusOK, result)
	}
}

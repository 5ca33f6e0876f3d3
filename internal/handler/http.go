package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/randomlysa/hangman-api/internal/domain"
	"github.com/randomlysa/hangman-api/internal/service"
	"github.com/randomlysa/hangman-api/internal/websocket"
)

// Handler provides HTTP handlers for the game API
type Handler struct {
	service *service.GameService
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *service.GameService, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// gameView is the wire shape of a game. The target word stays hidden;
// the revealed pattern shows solved letters.
type gameView struct {
	*domain.Game
	Revealed   string `json:"revealed"`
	Difficulty string `json:"difficulty"`
}

func newGameView(game *domain.Game) gameView {
	return gameView{
		Game:       game,
		Revealed:   game.RevealedPattern(),
		Difficulty: domain.Difficulty(game.AttemptsAllowed).Label(),
	}
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// User operations
		r.Post("/users", h.CreateUser)
		r.Route("/users/{userName}", func(r chi.Router) {
			r.Get("/games", h.GetUserGames)
			r.Get("/scores", h.GetUserScores)
			r.Get("/rank", h.GetUserRank)
		})

		// Game operations
		r.Route("/games", func(r chi.Router) {
			r.Post("/", h.CreateGame)
			r.Get("/average_attempts", h.GetAverageAttempts)

			r.Route("/{gameID}", func(r chi.Router) {
				r.Get("/", h.GetGame)
				r.Put("/guess", h.SubmitGuess)
				r.Post("/cancel", h.CancelGame)
				r.Get("/history", h.GetHistory)
			})
		})

		// Score and ranking reads
		r.Get("/scores", h.ListScores)
		r.Get("/rankings/{difficulty}", h.GetRankings)

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

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

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps domain errors to HTTP statuses
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsNotFoundError(err), errors.Is(err, domain.ErrRankNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrUserExists), errors.Is(err, domain.ErrAlreadyTerminal):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidDifficulty),
		errors.Is(err, domain.ErrInvalidRange),
		errors.Is(err, domain.ErrNoWordsAvailable):
		h.writeError(w, http.StatusBadRequest, err)
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// CreateUser registers a new user
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	user, err := h.service.CreateUser(r.Context(), req.Name, req.Email)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    user,
	})
}

// GetUserGames returns the ids of a user's unfinished games
func (h *Handler) GetUserGames(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "userName")
	if userName == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	ids, err := h.service.GetUserGames(r.Context(), userName)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, map[string]interface{}{"game_ids": ids})
}

// GetUserScores returns a user's scores
func (h *Handler) GetUserScores(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "userName")
	if userName == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	scores, err := h.service.GetUserScores(r.Context(), userName)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, scores)
}

// GetUserRank returns a user's rank at a difficulty
func (h *Handler) GetUserRank(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "userName")
	if userName == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	difficulty, err := domain.ParseDifficulty(r.URL.Query().Get("difficulty"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	rank, err := h.service.GetUserRank(r.Context(), userName, difficulty)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, rank)
}

// CreateGame starts a new game
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserName   string `json:"user_name"`
		Attempts   int    `json:"attempts"`
		MinLetters int    `json:"min_letters"`
		MaxLetters int    `json:"max_letters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if req.UserName == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	game, err := h.service.CreateGame(r.Context(), req.UserName, req.Attempts, req.MinLetters, req.MaxLetters)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    newGameView(game),
	})
}

// GetGame returns a game's visible state
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	game, err := h.service.GetGame(r.Context(), gameID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, newGameView(game))
}

// SubmitGuess evaluates one guess against a game
func (h *Handler) SubmitGuess(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req struct {
		Guess string `json:"guess"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	result, err := h.service.SubmitGuess(r.Context(), gameID, req.Guess)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, result)
}

// CancelGame cancels an in-progress game
func (h *Handler) CancelGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	game, err := h.service.CancelGame(r.Context(), gameID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, newGameView(game))
}

// GetHistory returns a game's guess log
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	history, err := h.service.GetHistory(r.Context(), gameID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, history)
}

// ListScores returns all recorded scores
func (h *Handler) ListScores(w http.ResponseWriter, r *http.Request) {
	scores, err := h.service.ListScores(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, scores)
}

// GetRankings returns the top users at a difficulty
func (h *Handler) GetRankings(w http.ResponseWriter, r *http.Request) {
	difficulty, err := domain.ParseDifficulty(chi.URLParam(r, "difficulty"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	ranks, err := h.service.GetRankings(r.Context(), difficulty, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, ranks)
}

// GetAverageAttempts returns the average attempts remaining across
// active games
func (h *Handler) GetAverageAttempts(w http.ResponseWriter, r *http.Request) {
	avg, err := h.service.GetAverageAttempts(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, map[string]float64{"average_attempts_remaining": avg})
}

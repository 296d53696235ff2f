package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Handler exposes the websocket endpoint plus health and stats routes.
type Handler struct {
	manager *Manager
}

// NewHandler creates an HTTP handler over the connection manager.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// Routes registers the gateway endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/card_game", h.handleWebSocket)
	mux.HandleFunc("/ws/stats", h.handleStats)
	mux.HandleFunc("/health", h.handleHealth)
}

// WithCORS wraps the handler for browser clients.
func WithCORS(next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}).Handler(next)
}

// handleWebSocket authenticates the request and hands the socket to the
// manager. Identity comes from the player_id query param.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	playerIDStr := r.URL.Query().Get("player_id")
	if playerIDStr == "" {
		http.Error(w, "player_id query parameter required", http.StatusBadRequest)
		return
	}
	playerID, err := strconv.ParseInt(playerIDStr, 10, 64)
	if err != nil || playerID <= 0 {
		http.Error(w, "invalid player_id", http.StatusBadRequest)
		return
	}

	if err := h.manager.Upgrade(w, r, playerID); err != nil {
		log.Error().Err(err).Int64("player_id", playerID).Msg("websocket upgrade failed")
	}
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	total, players := h.manager.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"connections": total,
		"players":     players,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

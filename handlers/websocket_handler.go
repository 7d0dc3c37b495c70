package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/tournament-manager/brackets"
	"github.com/Dosada05/tournament-manager/services"
)

type WebSocketHandler struct {
	hub               *brackets.Hub
	tournamentService services.TournamentService
	bracketService    services.BracketService
	upgrader          websocket.Upgrader
	logger            *slog.Logger
}

// NewWebSocketHandler accepts connections only from allowedOrigins; "*" allows any origin.
func NewWebSocketHandler(hub *brackets.Hub, ts services.TournamentService, bs services.BracketService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:               hub,
		tournamentService: ts,
		bracketService:    bs,
		logger:            logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// ServeWs обрабатывает WebSocket запросы для конкретного турнира.
// Клиент подключается к /ws/tournaments/{tournamentID} и сразу получает текущую сетку.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if _, err := h.tournamentService.GetByID(r.Context(), tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой.
		h.logger.Warn("Failed to upgrade websocket connection", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}

	client := brackets.NewClient(h.hub, conn, brackets.TournamentRoom(tournamentID))
	h.sendInitialBracket(r, client, tournamentID)

	if !h.hub.Join(client) {
		conn.Close()
		return
	}
	h.logger.Debug("WebSocket client connected", slog.Int("tournament_id", tournamentID), slog.String("client_id", client.ID))

	go client.WritePump()
	go client.ReadPump()
}

func (h *WebSocketHandler) sendInitialBracket(r *http.Request, client *brackets.Client, tournamentID int) {
	view, err := h.bracketService.GetBracket(r.Context(), tournamentID)
	if err != nil {
		if !errors.Is(err, services.ErrBracketNotGenerated) {
			h.logger.Warn("Failed to load bracket for new websocket client", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		}
		return
	}
	msg, err := json.Marshal(brackets.NewMessage(brackets.MessageBracketUpdated, tournamentID, view))
	if err != nil {
		h.logger.Error("Failed to marshal initial bracket", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}
	// Буфер канала пуст, клиент ещё не зарегистрирован.
	client.Send <- msg
}

package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/logging"
	"github.com/zart/quizzer/internal/metrics"
	httperrors "github.com/zart/quizzer/pkg/http/errors"
	"github.com/zart/quizzer/pkg/http/render"
	ws "github.com/zart/quizzer/pkg/http/ws"
)

// Ranker reads the current standings.
type Ranker interface {
	Top(ctx context.Context, window string, limit int) ([]Entry, error)
}

// HTTPHandler exposes REST and WebSocket leaderboard endpoints.
type HTTPHandler struct {
	ranker     Ranker
	hub        *ws.Hub
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader
	production bool
	logger     zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler. WebSocket upgrades are
// accepted from allowedOrigins and from clients that send no Origin header.
func NewHTTPHandler(ranker Ranker, hub *ws.Hub, m *metrics.Metrics, allowedOrigins []string, production bool, logger zerolog.Logger) *HTTPHandler {
	h := &HTTPHandler{
		ranker:     ranker,
		hub:        hub,
		metrics:    m,
		production: production,
		logger:     logger.With().Str("component", "leaderboard_http").Logger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// HandleGet handles GET /api/leaderboard/{window}?limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	window := r.PathValue("window")
	if !IsValidWindow(window) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownWindow, "Unknown leaderboard window")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	entries, err := h.ranker.Top(r.Context(), window, limit)
	if err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Str("window", window).Msg("leaderboard fetch failed")
		if errors.Is(err, ErrUnknownWindow) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownWindow, "Unknown leaderboard window")
			return
		}
		httperrors.RespondServiceError(w, err, h.production)
		return
	}

	render.JSON(w, http.StatusOK, map[string]any{
		"window":      window,
		"top":         toWSEntries(entries),
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleWebSocket handles /ws/leaderboard. Clients send subscribe/unsubscribe
// messages naming a window and receive leaderboard_update pushes.
func (h *HTTPHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := ws.NewConnection(raw, h.logger.With().Str("remote", r.RemoteAddr).Logger())
	h.hub.Register(conn)
	h.metrics.WSConnected(1)

	go conn.WritePump()
	conn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(r.Context(), conn, msg)
	})

	h.hub.Unregister(conn.ID)
	h.metrics.WSConnected(-1)
}

func (h *HTTPHandler) handleMessage(ctx context.Context, conn *ws.Connection, msg ws.Message) error {
	switch msg.Type {
	case ws.TypePing:
		return conn.Send(ws.Message{Type: ws.TypePong, RequestID: msg.RequestID})

	case ws.TypeSubscribe, ws.TypeUnsubscribe:
		var p ws.SubscribePayload
		if err := decodePayload(msg, &p); err != nil || !IsValidWindow(p.Window) {
			return h.sendError(conn, msg.RequestID, httperrors.ErrCodeUnknownWindow, "Unknown leaderboard window")
		}
		if msg.Type == ws.TypeUnsubscribe {
			h.hub.Unsubscribe(Topic(p.Window), conn.ID)
			return nil
		}
		h.hub.Subscribe(Topic(p.Window), conn.ID)

		ack, _ := ws.NewMessage(ws.TypeSubscribed, p)
		ack.RequestID = msg.RequestID
		if err := conn.Send(ack); err != nil {
			return err
		}
		return h.sendSnapshot(ctx, conn, p.Window)

	default:
		return h.sendError(conn, msg.RequestID, httperrors.ErrCodeInvalidRequest, "Unknown message type")
	}
}

func (h *HTTPHandler) sendSnapshot(ctx context.Context, conn *ws.Connection, window string) error {
	entries, err := h.ranker.Top(ctx, window, 10)
	if err != nil {
		return err
	}
	msg, err := ws.NewMessage(ws.TypeLeaderboardUpdate, ws.LeaderboardUpdatePayload{Window: window, Top: toWSEntries(entries)})
	if err != nil {
		return err
	}
	return conn.Send(msg)
}

func (h *HTTPHandler) sendError(conn *ws.Connection, requestID, code, message string) error {
	msg, err := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return err
	}
	msg.RequestID = requestID
	return conn.Send(msg)
}

func decodePayload(msg ws.Message, dst any) error {
	if len(msg.Payload) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(msg.Payload, dst)
}

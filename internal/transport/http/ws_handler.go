package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-player/internal/app"
	"quiz-player/internal/domain"
)

const wsWriteTimeout = 10 * time.Second

// WSHandler pushes lobby events to the lobby host over a WebSocket.
type WSHandler struct {
	service  *app.LobbyService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LobbyService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS subscribes before upgrading, so lookup and ownership failures are
// plain HTTP errors and no event published after the handshake is missed.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		writeDetail(w, http.StatusForbidden, detailNoCredentials)
		return
	}
	lobbyID := chi.URLParam(r, "lobbyId")

	events, cancel, err := h.service.Subscribe(r.Context(), lobbyID, userID)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("subscribe lobby events", zap.String("lobby_id", lobbyID), zap.Error(err))
			writeDetail(w, status, detailInternal)
			return
		}
		writeDetail(w, status, domain.Message(err))
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	// Single writer; the read loop below only watches for the peer going away.
	go func() {
		defer close(writerDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(wsWriteTimeout))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(event); err != nil {
					h.logger.Debug("ws write error", zap.String("lobby_id", lobbyID), zap.Error(err))
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(closeSignals)
				return
			}
		}
	}()

	<-writerDone
	// Unblocks the reader when the writer stopped first.
	_ = conn.Close()
}

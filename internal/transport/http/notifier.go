package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-player/internal/domain"
)

// Notifier subscribes to the lobby push channel.
type Notifier struct {
	client *Client
	dialer *websocket.Dialer
	logger *zap.Logger
}

func NewNotifier(client *Client, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		client: client,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger,
	}
}

// Subscribe dials /ws/lobby/{lobbyID} and forwards events until ctx ends or
// the connection drops, then closes the channel.
func (n *Notifier) Subscribe(ctx context.Context, lobbyID string) (<-chan domain.LobbyEvent, error) {
	target := n.lobbyURL(lobbyID)

	header := http.Header{}
	var cookies []string
	for _, ck := range n.client.Cookies() {
		cookies = append(cookies, ck.Name+"="+ck.Value)
	}
	if len(cookies) > 0 {
		header.Set("Cookie", strings.Join(cookies, "; "))
	}

	conn, _, err := n.dialer.DialContext(ctx, target, header)
	if err != nil {
		return nil, fmt.Errorf("dial lobby events: %w", err)
	}

	out := make(chan domain.LobbyEvent, 4)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	go func() {
		defer close(out)
		defer close(stop)
		defer conn.Close()
		for {
			var ev domain.LobbyEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					n.logger.Debug("lobby events closed", zap.Error(err))
				}
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (n *Notifier) lobbyURL(lobbyID string) string {
	base := n.client.BaseURL()
	u := url.URL{Scheme: "ws", Host: base.Host, Path: "/ws/lobby/" + url.PathEscape(lobbyID)}
	if base.Scheme == "https" {
		u.Scheme = "wss"
	}
	return u.String()
}

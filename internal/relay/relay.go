package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/localz/localzpush-go/internal/events"
	"github.com/localz/localzpush-go/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum push frame accepted from the relay
	maxMessageSize = 64 * 1024

	headerProjectID  = "X-Project-Id"
	headerProjectKey = "X-Project-Key"
)

// Frame is a push delivered by the relay
type Frame struct {
	ID      string         `json:"id"`
	Payload map[string]any `json:"payload"`
}

// Ack answers a Frame with the host's fetch result
type Ack struct {
	ID     string `json:"id"`
	Result string `json:"result"`
}

// Handler processes one push payload and returns the fetch result
type Handler func(ctx context.Context, payload map[string]any) events.FetchResult

// Client receives pushes for one device over a websocket. Development
// backends use it in place of APNs/FCM.
type Client struct {
	URL     string
	Header  http.Header
	Dialer  *websocket.Dialer
	Handler Handler
}

// NewClient creates a relay client for deviceID on the backend at baseURL
func NewClient(baseURL, projectID, projectKey, deviceID string, h Handler) (*Client, error) {
	u, err := URL(baseURL, projectID, deviceID)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set(headerProjectID, projectID)
	header.Set(headerProjectKey, projectKey)

	return &Client{
		URL:     u,
		Header:  header,
		Dialer:  websocket.DefaultDialer,
		Handler: h,
	}, nil
}

// URL builds the relay websocket URL from an http(s) base URL
func URL(baseURL, projectID, deviceID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid relay base URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss", "":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported relay scheme %q", u.Scheme)
	}
	u.Path += "/v1/projects/" + url.PathEscape(projectID) +
		"/devices/" + url.PathEscape(deviceID) + "/push"
	return u.String(), nil
}

// Run connects and delivers pushes to the handler until ctx is cancelled or
// the relay closes the connection. Frames are handled one at a time in
// arrival order.
func (c *Client) Run(ctx context.Context) error {
	if c.Handler == nil {
		return errors.New("relay: handler is required")
	}

	conn, resp, err := c.Dialer.DialContext(ctx, c.URL, c.Header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("relay dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("relay dial failed: %w", err)
	}
	logging.Info("Relay connected", zap.String("url", c.URL))

	var writeMu sync.Mutex
	write := func(fn func() error) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return fn()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = write(func() error {
					return conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				})
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := write(func() error {
					return conn.WriteMessage(websocket.PingMessage, nil)
				}); err != nil {
					logging.Debug("Relay ping failed", zap.Error(err))
				}
			case <-done:
				return
			}
		}
	}()
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info("Relay disconnected", zap.String("url", c.URL))
				return nil
			}
			return fmt.Errorf("relay read failed: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		logging.LogPayload("Relay push received", frame.Payload)
		result := c.Handler(ctx, frame.Payload)

		ack := Ack{ID: frame.ID, Result: result.String()}
		if err := write(func() error { return conn.WriteJSON(ack) }); err != nil {
			return fmt.Errorf("relay ack failed: %w", err)
		}
	}
}

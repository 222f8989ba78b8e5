package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/localz/localzpush-go/internal/logging"
	"github.com/localz/localzpush-go/internal/relay"
)

const pushTimeout = 10 * time.Second

// ErrDeviceOffline is returned by Push when the device has no relay socket
var ErrDeviceOffline = errors.New("device has no relay connection")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type relayConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	nextID  atomic.Int64

	mu      sync.Mutex
	waiting map[string]chan string
}

func (rc *relayConn) send(ctx context.Context, payload map[string]any) (string, error) {
	id := strconv.FormatInt(rc.nextID.Add(1), 10)
	ch := make(chan string, 1)

	rc.mu.Lock()
	rc.waiting[id] = ch
	rc.mu.Unlock()
	defer func() {
		rc.mu.Lock()
		delete(rc.waiting, id)
		rc.mu.Unlock()
	}()

	rc.writeMu.Lock()
	err := rc.conn.WriteJSON(relay.Frame{ID: id, Payload: payload})
	rc.writeMu.Unlock()
	if err != nil {
		return "", err
	}

	select {
	case result := <-ch:
		return result, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (rc *relayConn) readAcks() {
	for {
		var ack relay.Ack
		if err := rc.conn.ReadJSON(&ack); err != nil {
			return
		}
		rc.mu.Lock()
		if ch, ok := rc.waiting[ack.ID]; ok {
			ch <- ack.Result
		}
		rc.mu.Unlock()
	}
}

// Push sends payload to the device's relay socket and waits for its ack
func (s *Server) Push(ctx context.Context, deviceID string, payload map[string]any) (string, error) {
	s.mu.Lock()
	rc := s.relays[deviceID]
	s.mu.Unlock()
	if rc == nil {
		return "", ErrDeviceOffline
	}
	s.record(Call{Op: OpPush, DeviceID: deviceID})
	return rc.send(ctx, payload)
}

// Connected reports whether deviceID holds a relay socket
func (s *Server) Connected(deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relays[deviceID] != nil
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["deviceId"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Relay upgrade failed", zap.String("device_id", id), zap.Error(err))
		return
	}

	rc := &relayConn{conn: conn, waiting: make(map[string]chan string)}
	s.mu.Lock()
	if old := s.relays[id]; old != nil {
		_ = old.conn.Close()
	}
	s.relays[id] = rc
	s.mu.Unlock()
	logging.Info("Relay client connected", zap.String("device_id", id))

	rc.readAcks()

	s.mu.Lock()
	if s.relays[id] == rc {
		delete(s.relays, id)
	}
	s.mu.Unlock()
	_ = conn.Close()
	logging.Info("Relay client disconnected", zap.String("device_id", id))
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["deviceId"]

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "MALFORMED_BODY", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pushTimeout)
	defer cancel()

	result, err := s.Push(ctx, id, payload)
	switch {
	case errors.Is(err, ErrDeviceOffline):
		writeError(w, http.StatusNotFound, "DEVICE_OFFLINE", err.Error())
	case err != nil:
		writeError(w, http.StatusGatewayTimeout, "PUSH_FAILED", err.Error())
	default:
		writeData(w, http.StatusOK, map[string]string{"result": result})
	}
}

// CloseRelays closes every relay socket. Devices see the relay end and stop
// listening.
func (s *Server) CloseRelays() {
	s.mu.Lock()
	conns := make([]*relayConn, 0, len(s.relays))
	for _, rc := range s.relays {
		conns = append(conns, rc)
	}
	s.mu.Unlock()

	for _, rc := range conns {
		rc.writeMu.Lock()
		_ = rc.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		rc.writeMu.Unlock()
		_ = rc.conn.Close()
	}
}

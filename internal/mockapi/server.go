// Package mockapi is an in-process stand-in for the push backend. Tests use it
// through httptest, and `localzpush mock-backend` serves it for local
// development.
package mockapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/localz/localzpush-go/internal/backend"
)

// Op names a backend operation
type Op string

const (
	OpRegister Op = "register"
	OpUpdate   Op = "update"
	OpLocation Op = "location"
	OpHealth   Op = "health"
	OpPush     Op = "push"
)

// Device is a stored device record
type Device struct {
	DeviceID    string
	DeviceToken string
	DeviceName  string
	Platform    string
	SDKVersion  string
	UpdatedAt   time.Time
}

// Call records one request received by the server
type Call struct {
	Op       Op
	DeviceID string
	Token    string
	At       time.Time
}

type failure struct {
	status  int
	code    string
	message string
}

// Server implements the backend routes with in-memory state
type Server struct {
	// DynamicConfig is returned in register/update responses when non-nil
	DynamicConfig *backend.DynamicConfig

	// Hook, if set, runs before a device call is applied. Tests use it to hold
	// a request until another one has completed.
	Hook func(op Op, req backend.DeviceRequest)

	projectID  string
	projectKey string

	mu        sync.Mutex
	router    *mux.Router
	devices   map[string]*Device
	locations map[string][]backend.LocationReport
	calls     []Call
	failNext  map[Op][]failure
	relays    map[string]*relayConn
}

// New creates a server accepting only the given project credentials
func New(projectID, projectKey string) *Server {
	s := &Server{
		projectID:  projectID,
		projectKey: projectKey,
		devices:    make(map[string]*Device),
		locations:  make(map[string][]backend.LocationReport),
		failNext:   make(map[Op][]failure),
		relays:     make(map[string]*relayConn),
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/v1/projects/{projectId}").Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("/devices", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/devices/{deviceId}", s.handleUpdate).Methods(http.MethodPut)
	api.HandleFunc("/devices/{deviceId}/locations", s.handleLocation).Methods(http.MethodPost)
	api.HandleFunc("/devices/{deviceId}/push", s.handleRelay).Methods(http.MethodGet)
	api.HandleFunc("/devices/{deviceId}/push", s.handlePush).Methods(http.MethodPost)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// FailNext makes the next call of op fail with the given status and error
// code. Calls queue up: FailNext twice fails the next two calls.
func (s *Server) FailNext(op Op, status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = append(s.failNext[op], failure{status: status, code: code, message: message})
}

// Calls returns every recorded call in arrival order
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many calls of op were received
func (s *Server) CallCount(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Device returns a copy of the stored record for id
func (s *Server) Device(id string) (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// Locations returns the reports received for id
func (s *Server) Locations(id string) []backend.LocationReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]backend.LocationReport, len(s.locations[id]))
	copy(out, s.locations[id])
	return out
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["projectId"] != s.projectID ||
			r.Header.Get("X-Project-Id") != s.projectID ||
			r.Header.Get("X-Project-Key") != s.projectKey {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "unknown project or key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.record(Call{Op: OpHealth})
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDevice(w, r)
	if !ok {
		return
	}
	if s.Hook != nil {
		s.Hook(OpRegister, req)
	}
	s.record(Call{Op: OpRegister, DeviceID: req.DeviceID, Token: req.DeviceToken})
	if f, failed := s.takeFailure(OpRegister); failed {
		writeError(w, f.status, f.code, f.message)
		return
	}

	s.upsert(req)
	writeData(w, http.StatusCreated, s.deviceResponse(req.DeviceID))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDevice(w, r)
	if !ok {
		return
	}
	if id := mux.Vars(r)["deviceId"]; id != req.DeviceID {
		writeError(w, http.StatusBadRequest, "DEVICE_MISMATCH", "path and body device ids differ")
		return
	}
	if s.Hook != nil {
		s.Hook(OpUpdate, req)
	}
	s.record(Call{Op: OpUpdate, DeviceID: req.DeviceID, Token: req.DeviceToken})
	if f, failed := s.takeFailure(OpUpdate); failed {
		writeError(w, f.status, f.code, f.message)
		return
	}

	if _, exists := s.Device(req.DeviceID); !exists {
		writeError(w, http.StatusNotFound, "DEVICE_NOT_FOUND", "device is not registered")
		return
	}
	s.upsert(req)
	writeData(w, http.StatusOK, s.deviceResponse(req.DeviceID))
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["deviceId"]

	var report backend.LocationReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeError(w, http.StatusBadRequest, "MALFORMED_BODY", err.Error())
		return
	}
	s.record(Call{Op: OpLocation, DeviceID: id})
	if f, failed := s.takeFailure(OpLocation); failed {
		writeError(w, f.status, f.code, f.message)
		return
	}

	s.mu.Lock()
	s.locations[id] = append(s.locations[id], report)
	s.mu.Unlock()
	writeData(w, http.StatusAccepted, nil)
}

func (s *Server) record(c Call) {
	c.At = time.Now()
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

func (s *Server) takeFailure(op Op) (failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.failNext[op]
	if len(queue) == 0 {
		return failure{}, false
	}
	s.failNext[op] = queue[1:]
	return queue[0], true
}

func (s *Server) upsert(req backend.DeviceRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[req.DeviceID] = &Device{
		DeviceID:    req.DeviceID,
		DeviceToken: req.DeviceToken,
		DeviceName:  req.DeviceName,
		Platform:    req.Platform,
		SDKVersion:  req.SDKVersion,
		UpdatedAt:   time.Now(),
	}
}

func (s *Server) deviceResponse(id string) backend.DeviceResponse {
	return backend.DeviceResponse{DeviceID: id, DynamicConfig: s.DynamicConfig}
}

func decodeDevice(w http.ResponseWriter, r *http.Request) (backend.DeviceRequest, bool) {
	var req backend.DeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "MALFORMED_BODY", err.Error())
		return req, false
	}
	if req.DeviceID == "" || req.DeviceToken == "" {
		writeError(w, http.StatusBadRequest, "MISSING_FIELDS", "deviceId and deviceToken are required")
		return req, false
	}
	return req, true
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

package registrar

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/localz/localzpush-go/internal/backend"
	"github.com/localz/localzpush-go/internal/events"
	"github.com/localz/localzpush-go/internal/logging"
	"github.com/localz/localzpush-go/internal/store"
)

var (
	// ErrClosed is returned by calls made after Close
	ErrClosed = errors.New("registrar is closed")

	// ErrEmptyToken is returned when a device token is empty
	ErrEmptyToken = errors.New("device token is empty")
)

// PushAuthorizer asks the OS for permission to receive push notifications
type PushAuthorizer interface {
	RequestPushAuthorization(ctx context.Context) (granted bool, err error)
}

// Backend is the subset of the backend client the registrar needs
type Backend interface {
	RegisterDevice(ctx context.Context, req backend.DeviceRequest) (*backend.DeviceResponse, error)
	UpdateDevice(ctx context.Context, req backend.DeviceRequest) (*backend.DeviceResponse, error)
}

// Options configures a Registrar
type Options struct {
	Store      store.Store
	Backend    Backend
	Authorizer PushAuthorizer
	Dispatcher *events.Dispatcher

	// OnDynamicConfig receives the tracking policy from every successful
	// register or update response that carries one
	OnDynamicConfig func(*backend.DynamicConfig)

	// Timeout bounds each backend call; backend.DefaultTimeout if zero
	Timeout time.Duration
}

// Registrar owns the device identity and the registration state machine.
//
// RegisterToken and SetDeviceName return as soon as the backend call is
// started. Each call carries a version; when it completes, the result is
// applied only if no newer call has been applied already. Observer events are
// delivered in the order the transitions were applied by a single delivery
// goroutine.
type Registrar struct {
	store      store.Store
	api        Backend
	authorizer PushAuthorizer
	dispatcher *events.Dispatcher
	onConfig   func(*backend.DynamicConfig)
	timeout    time.Duration

	mu          sync.Mutex
	deviceID    string
	state       State
	started     bool
	pushEnabled bool
	token       string
	name        string
	issued      int64
	applied     int64
	closed      bool
	starting    bool

	// pending counts started calls plus queued events; idle is broadcast
	// when it drops to zero
	pendingMu sync.Mutex
	pending   int
	idle      *sync.Cond

	outboxMu sync.Mutex
	outbox   []events.Event
	signal   chan struct{}
	quit     chan struct{}
	loopDone chan struct{}
}

type call struct {
	version int64
	update  bool
	req     backend.DeviceRequest
}

// New restores the registrar from the store, generating and persisting a
// device id on first use, and starts the delivery goroutine.
func New(opts Options) (*Registrar, error) {
	if opts.Store == nil {
		return nil, errors.New("registrar: store is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("registrar: backend is required")
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = events.NewDispatcher()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = backend.DefaultTimeout
	}

	r := &Registrar{
		store:      opts.Store,
		api:        opts.Backend,
		authorizer: opts.Authorizer,
		dispatcher: opts.Dispatcher,
		onConfig:   opts.OnDynamicConfig,
		timeout:    opts.Timeout,
		signal:     make(chan struct{}, 1),
		quit:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
	r.idle = sync.NewCond(&r.pendingMu)
	if err := r.restore(); err != nil {
		return nil, err
	}

	go r.deliverLoop()
	return r, nil
}

func (r *Registrar) restore() error {
	s := r.store

	r.deviceID, _ = s.Get(store.KeyDeviceID)
	if r.deviceID == "" {
		id := uuid.NewString()
		err := s.Update(func(tx *store.Tx) error {
			tx.Set(store.KeyDeviceID, id)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to persist device id: %w", err)
		}
		r.deviceID = id
		logging.Info("Generated device id", zap.String("device_id", id))
	}

	if name, ok := s.Get(store.KeyRegistrationState); ok {
		st, valid := ParseState(name)
		if !valid {
			logging.Warn("Unknown persisted registration state, starting over",
				zap.String("state", name))
		}
		r.state = st
	}
	r.started = store.GetBool(s, store.KeyStarted)
	r.pushEnabled = store.GetBool(s, store.KeyPushEnabled)
	r.token, _ = s.Get(store.KeyDeviceToken)
	r.name, _ = s.Get(store.KeyDeviceName)
	if v, ok := s.Get(store.KeyTokenVersion); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			r.applied = n
			r.issued = n
		}
	}

	logging.Debug("Registrar restored",
		zap.String("device_id", r.deviceID),
		zap.String("state", r.state.String()),
		zap.Int64("token_version", r.applied),
	)
	return nil
}

// Start asks for push permission. It is a no-op once push has been enabled,
// and while another Start is waiting on the authorizer.
func (r *Registrar) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.state != NotStarted {
		r.mu.Unlock()
		logging.Debug("Start ignored, already started", zap.String("state", r.state.String()))
		return nil
	}
	if r.starting {
		r.mu.Unlock()
		logging.Debug("Start ignored, authorization already requested")
		return nil
	}
	r.starting = true
	r.mu.Unlock()

	granted := true
	var authErr error
	if r.authorizer != nil {
		granted, authErr = r.authorizer.RequestPushAuthorization(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.starting = false

	if authErr != nil {
		return fmt.Errorf("push authorization failed: %w", authErr)
	}

	if !granted {
		logging.Warn("Push authorization denied")
		return r.persistLocked(r.state, func(tx *store.Tx) {
			tx.SetBool(store.KeyStarted, true)
			tx.SetBool(store.KeyPushEnabled, false)
		}, func() {
			r.started = true
			r.pushEnabled = false
		})
	}

	// A token may have arrived while the authorizer was running
	if r.state != NotStarted {
		return nil
	}
	return r.persistLocked(PushEnabled, func(tx *store.Tx) {
		tx.SetBool(store.KeyStarted, true)
		tx.SetBool(store.KeyPushEnabled, true)
	}, func() {
		r.started = true
		r.pushEnabled = true
	})
}

// RegisterToken registers the device with token, or updates the existing
// registration. An empty deviceName keeps the current name. Delivering the
// token and name that are already registered does nothing.
func (r *Registrar) RegisterToken(token, deviceName string) error {
	if token == "" {
		return ErrEmptyToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if deviceName == "" {
		deviceName = r.name
	}
	if r.state == Registered && token == r.token && deviceName == r.name {
		logging.Debug("Token already registered", zap.String("device_id", r.deviceID))
		return nil
	}

	r.submitLocked(token, deviceName)
	return nil
}

// SetDeviceName persists name. A registered device is updated on the
// backend with its current token.
func (r *Registrar) SetDeviceName(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if name == r.name {
		return nil
	}

	if r.state.hasRegistered() && r.token != "" {
		r.submitLocked(r.token, name)
		return nil
	}

	return r.persistLocked(r.state, func(tx *store.Tx) {
		tx.Set(store.KeyDeviceName, name)
	}, func() {
		r.name = name
	})
}

// HandleRegistrationFailure records that the OS failed to deliver a token.
// The state moves to UpdateFailed if the device was registered before,
// RegisterFailed otherwise, and err is forwarded to the observer.
func (r *Registrar) HandleRegistrationFailure(err error) error {
	if err == nil {
		err = errors.New("push registration failed")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	return r.failLocked(err)
}

func (r *Registrar) submitLocked(token, name string) {
	r.issued++
	c := call{
		version: r.issued,
		update:  r.state.hasRegistered(),
		req: backend.DeviceRequest{
			DeviceID:    r.deviceID,
			DeviceToken: token,
			DeviceName:  name,
		},
	}

	r.begin()
	go r.run(c)
}

func (r *Registrar) run(c call) {
	defer r.end()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var (
		resp *backend.DeviceResponse
		err  error
	)
	if c.update {
		resp, err = r.api.UpdateDevice(ctx, c.req)
	} else {
		resp, err = r.api.RegisterDevice(ctx, c.req)
	}

	r.complete(c, resp, err)
}

func (r *Registrar) complete(c call, resp *backend.DeviceResponse, callErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.version < r.applied {
		logging.Debug("Discarding stale registration result",
			zap.Int64("version", c.version),
			zap.Int64("applied", r.applied),
		)
		return
	}
	r.applied = c.version

	if callErr != nil {
		if err := r.failLocked(callErr); err != nil {
			logging.Error("Failed to record registration failure", zap.Error(err))
		}
		return
	}

	err := r.persistLocked(Registered, func(tx *store.Tx) {
		tx.Set(store.KeyDeviceToken, c.req.DeviceToken)
		tx.Set(store.KeyDeviceName, c.req.DeviceName)
		tx.Set(store.KeyTokenVersion, strconv.FormatInt(c.version, 10))
		tx.SetBool(store.KeyStarted, true)
		tx.SetBool(store.KeyPushEnabled, true)
	}, func() {
		r.token = c.req.DeviceToken
		r.name = c.req.DeviceName
		r.started = true
		r.pushEnabled = true
	})
	if err != nil {
		logging.Error("Failed to persist registration", zap.Error(err))
		r.enqueueLocked(events.Failure{Err: err})
		return
	}

	if resp != nil && resp.DynamicConfig != nil && r.onConfig != nil {
		r.onConfig(resp.DynamicConfig)
	}
	r.enqueueLocked(events.RegistrationSucceeded{DeviceID: r.deviceID})
}

func (r *Registrar) failLocked(err error) error {
	to, ev := RegisterFailed, events.Event(events.RegistrationFailed{Err: err})
	if r.state.hasRegistered() {
		to, ev = UpdateFailed, events.UpdateFailed{Err: err}
	}

	logging.Warn("Device registration failed",
		zap.String("device_id", r.deviceID),
		zap.String("state", to.String()),
		zap.Error(err),
	)

	perr := r.persistLocked(to, func(tx *store.Tx) {
		tx.Set(store.KeyTokenVersion, strconv.FormatInt(r.applied, 10))
	}, nil)
	r.enqueueLocked(ev)
	return perr
}

// persistLocked writes the state and any extra keys in one transaction. The
// in-memory fields change only after the store has flushed.
func (r *Registrar) persistLocked(to State, stage func(tx *store.Tx), apply func()) error {
	err := r.store.Update(func(tx *store.Tx) error {
		tx.Set(store.KeyRegistrationState, to.String())
		if stage != nil {
			stage(tx)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist registration state: %w", err)
	}

	from := r.state
	r.state = to
	if apply != nil {
		apply()
	}
	if from != to {
		logging.LogStateTransition(r.deviceID, from.String(), to.String())
	}
	return nil
}

func (r *Registrar) enqueueLocked(ev events.Event) {
	r.begin()
	r.outboxMu.Lock()
	r.outbox = append(r.outbox, ev)
	r.outboxMu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

func (r *Registrar) deliverLoop() {
	defer close(r.loopDone)
	for {
		select {
		case <-r.signal:
			r.drain()
		case <-r.quit:
			r.drain()
			return
		}
	}
}

func (r *Registrar) drain() {
	for {
		r.outboxMu.Lock()
		if len(r.outbox) == 0 {
			r.outboxMu.Unlock()
			return
		}
		ev := r.outbox[0]
		r.outbox = r.outbox[1:]
		r.outboxMu.Unlock()

		r.dispatcher.Dispatch(ev)
		r.end()
	}
}

// Wait blocks until every started backend call has completed and its
// observer event has been delivered. It must not be called from an observer.
func (r *Registrar) Wait() {
	r.pendingMu.Lock()
	for r.pending > 0 {
		r.idle.Wait()
	}
	r.pendingMu.Unlock()
}

func (r *Registrar) begin() {
	r.pendingMu.Lock()
	r.pending++
	r.pendingMu.Unlock()
}

func (r *Registrar) end() {
	r.pendingMu.Lock()
	r.pending--
	if r.pending == 0 {
		r.idle.Broadcast()
	}
	r.pendingMu.Unlock()
}

// Close rejects new calls, waits for in-flight ones and stops the delivery
// goroutine. It must not be called from an observer.
func (r *Registrar) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.Wait()
	close(r.quit)
	<-r.loopDone
	return nil
}

// DeviceID returns the persisted device id
func (r *Registrar) DeviceID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deviceID
}

// State returns the current registration state
func (r *Registrar) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// IsStarted reports whether Start has run to completion at least once
func (r *Registrar) IsStarted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// IsPushEnabled reports whether push permission was granted
func (r *Registrar) IsPushEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushEnabled
}

// Token returns the last registered device token
func (r *Registrar) Token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token
}

// DeviceName returns the device name
func (r *Registrar) DeviceName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

package events

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/localz/localzpush-go/internal/logging"
)

// AppState is the host application state when a notification arrives
type AppState int

const (
	AppStateActive AppState = iota
	AppStateInactive
	AppStateBackground
)

// String returns the state name
func (s AppState) String() string {
	switch s {
	case AppStateActive:
		return "active"
	case AppStateInactive:
		return "inactive"
	case AppStateBackground:
		return "background"
	default:
		return fmt.Sprintf("AppState(%d)", int(s))
	}
}

// FetchResult is the answer handed to an OS fetch-completion callback
type FetchResult int

const (
	FetchNoData FetchResult = iota
	FetchNewData
	FetchFailed
)

// String returns the result name
func (r FetchResult) String() string {
	switch r {
	case FetchNoData:
		return "noData"
	case FetchNewData:
		return "newData"
	case FetchFailed:
		return "failed"
	default:
		return fmt.Sprintf("FetchResult(%d)", int(r))
	}
}

// Observer capabilities. An observer implements any subset; events without a
// matching capability are dropped.
type (
	// RegistrationObserver is told when the backend accepted the device
	RegistrationObserver interface {
		DidFinishRegistering(deviceID string)
	}

	// RegistrationFailureObserver is told when the first registration failed
	RegistrationFailureObserver interface {
		FailedToRegisterDevice(err error)
	}

	// UpdateFailureObserver is told when updating a registered device failed
	UpdateFailureObserver interface {
		FailedToUpdateDevice(err error)
	}

	// NotificationObserver receives every push payload and decides the
	// fetch result.
	NotificationObserver interface {
		DidReceiveRemoteNotification(payload map[string]any, state AppState) FetchResult
	}

	// ErrorObserver receives errors that do not belong to registration, such
	// as location permission failures
	ErrorObserver interface {
		DidFail(err error)
	}
)

// Event is one of the concrete event types below
type Event interface {
	kind() string
}

// RegistrationSucceeded is dispatched when a register or update call succeeded
type RegistrationSucceeded struct {
	DeviceID string
}

// RegistrationFailed is dispatched when the first registration failed
type RegistrationFailed struct {
	Err error
}

// UpdateFailed is dispatched when updating an already registered device failed
type UpdateFailed struct {
	Err error
}

// NotificationReceived carries a push payload to the observer
type NotificationReceived struct {
	Payload map[string]any
	State   AppState
}

// Failure carries any other error
type Failure struct {
	Err error
}

func (RegistrationSucceeded) kind() string { return "registration_succeeded" }
func (RegistrationFailed) kind() string    { return "registration_failed" }
func (UpdateFailed) kind() string          { return "update_failed" }
func (NotificationReceived) kind() string  { return "notification_received" }
func (Failure) kind() string               { return "failure" }

// Ack reports what happened to a dispatched event
type Ack struct {
	// Delivered is true if an observer method was called
	Delivered bool

	// Result is the observer's answer for NotificationReceived; FetchNoData
	// when not delivered
	Result FetchResult

	// Panic holds the recovered value if the observer panicked
	Panic any
}

// Dispatcher routes events to a single observer. Dispatch runs the observer
// synchronously on the calling goroutine. Observer calls are serialized, so
// an observer never runs on two goroutines at once and sees events in the
// order they were dispatched. An observer may call back into the SDK, except
// for calls that dispatch on the calling goroutine (notification handling,
// background fetch, location updates), which would wait for the observer to
// return.
type Dispatcher struct {
	mu       sync.RWMutex
	observer any

	// held for the duration of each observer call
	deliverMu sync.Mutex
}

// NewDispatcher creates a dispatcher with no observer
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// SetObserver replaces the observer; nil removes it
func (d *Dispatcher) SetObserver(observer any) {
	d.mu.Lock()
	d.observer = observer
	d.mu.Unlock()
}

// Observer returns the current observer
func (d *Dispatcher) Observer() any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.observer
}

// Dispatch delivers ev to the observer if it implements the matching
// capability. A panicking observer is recovered and reported in the Ack.
func (d *Dispatcher) Dispatch(ev Event) (ack Ack) {
	obs := d.Observer()
	if obs == nil {
		logging.Debug("Event dropped, no observer", zap.String("event", ev.kind()))
		return Ack{}
	}

	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Observer panicked",
				zap.String("event", ev.kind()),
				zap.Any("panic", r),
			)
			ack = Ack{Delivered: true, Result: FetchFailed, Panic: r}
		}
	}()

	switch e := ev.(type) {
	case RegistrationSucceeded:
		if o, ok := obs.(RegistrationObserver); ok {
			o.DidFinishRegistering(e.DeviceID)
			return Ack{Delivered: true}
		}
	case RegistrationFailed:
		if o, ok := obs.(RegistrationFailureObserver); ok {
			o.FailedToRegisterDevice(e.Err)
			return Ack{Delivered: true}
		}
	case UpdateFailed:
		if o, ok := obs.(UpdateFailureObserver); ok {
			o.FailedToUpdateDevice(e.Err)
			return Ack{Delivered: true}
		}
	case NotificationReceived:
		if o, ok := obs.(NotificationObserver); ok {
			return Ack{Delivered: true, Result: o.DidReceiveRemoteNotification(e.Payload, e.State)}
		}
	case Failure:
		if o, ok := obs.(ErrorObserver); ok {
			o.DidFail(e.Err)
			return Ack{Delivered: true}
		}
	}

	logging.Debug("Event dropped, observer lacks capability", zap.String("event", ev.kind()))
	return Ack{}
}

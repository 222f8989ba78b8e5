package sdkerrors

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrorType represents the kind of error that occurred
type ErrorType int

const (
	// ErrTypeMissingCredentials indicates an empty project id or project key
	ErrTypeMissingCredentials ErrorType = iota
	// ErrTypeUnknownRegion indicates a region code with no known host
	ErrTypeUnknownRegion
	// ErrTypeInvalidConfig indicates any other configuration problem (unknown
	// environment, malformed environments file)
	ErrTypeInvalidConfig
	// ErrTypeNetwork indicates the backend could not be reached
	ErrTypeNetwork
	// ErrTypeRejectedByServer indicates the backend answered with an error
	ErrTypeRejectedByServer
	// ErrTypePermissionDenied indicates location permission was not granted
	ErrTypePermissionDenied
)

// Category groups error types by how the SDK reacts to them.
type Category int

const (
	// CategoryConfig errors are fatal to initialization
	CategoryConfig Category = iota
	// CategoryRegistration errors transition registration state
	CategoryRegistration
	// CategoryLocation errors are reported and location reporting is skipped
	CategoryLocation
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeMissingCredentials:
		return "ConfigError.MissingCredentials"
	case ErrTypeUnknownRegion:
		return "ConfigError.UnknownRegion"
	case ErrTypeInvalidConfig:
		return "ConfigError.Invalid"
	case ErrTypeNetwork:
		return "RegistrationError.Network"
	case ErrTypeRejectedByServer:
		return "RegistrationError.RejectedByServer"
	case ErrTypePermissionDenied:
		return "LocationError.PermissionDenied"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Category returns the category the error type belongs to
func (et ErrorType) Category() Category {
	switch et {
	case ErrTypeNetwork, ErrTypeRejectedByServer:
		return CategoryRegistration
	case ErrTypePermissionDenied:
		return CategoryLocation
	default:
		return CategoryConfig
	}
}

// Error is the single error type returned by the SDK.
type Error struct {
	Type           ErrorType
	Message        string
	StatusCode     int    // HTTP status for RejectedByServer
	Code           string // backend error code, if the envelope carried one
	Err            error
	NetworkSubtype NetworkErrorSubtype
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by type, so sentinel values like
// ErrUnknownRegion work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type && t.Message == ""
}

// Sentinels for errors.Is. Only the Type is compared.
var (
	ErrMissingCredentials = &Error{Type: ErrTypeMissingCredentials}
	ErrUnknownRegion      = &Error{Type: ErrTypeUnknownRegion}
	ErrInvalidConfig      = &Error{Type: ErrTypeInvalidConfig}
	ErrNetwork            = &Error{Type: ErrTypeNetwork}
	ErrRejectedByServer   = &Error{Type: ErrTypeRejectedByServer}
	ErrPermissionDenied   = &Error{Type: ErrTypePermissionDenied}
)

// NewMissingCredentials creates a MissingCredentials error naming the field
func NewMissingCredentials(field string) *Error {
	return &Error{
		Type:    ErrTypeMissingCredentials,
		Message: fmt.Sprintf("%s must not be empty", field),
	}
}

// NewUnknownRegion creates an UnknownRegion error
func NewUnknownRegion(code int) *Error {
	return &Error{
		Type:    ErrTypeUnknownRegion,
		Message: fmt.Sprintf("no host for region code %d", code),
	}
}

// NewInvalidConfig creates a generic configuration error
func NewInvalidConfig(message string, err error) *Error {
	return &Error{
		Type:    ErrTypeInvalidConfig,
		Message: message,
		Err:     err,
	}
}

// NewRejectedByServer creates an error for a backend error envelope or a
// non-success status code
func NewRejectedByServer(statusCode int, code, message string) *Error {
	return &Error{
		Type:       ErrTypeRejectedByServer,
		Message:    message,
		StatusCode: statusCode,
		Code:       code,
	}
}

// NewPermissionDenied creates a location permission error
func NewPermissionDenied(message string) *Error {
	return &Error{
		Type:    ErrTypePermissionDenied,
		Message: message,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error) *Error {
	return &Error{
		Type:           ErrTypeNetwork,
		Message:        message,
		Err:            err,
		NetworkSubtype: classifyNetworkError(err),
	}
}

func classifyNetworkError(err error) NetworkErrorSubtype {
	if err == nil {
		return NetworkErrorGeneral
	}

	if os.IsTimeout(err) {
		return NetworkErrorTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NetworkErrorDNS
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return NetworkErrorConnectionRefused
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		return classifyNetworkError(urlErr.Err)
	}

	return NetworkErrorGeneral
}

func typeOf(err error) (ErrorType, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return 0, false
}

// IsConfigError checks if an error is a configuration error
func IsConfigError(err error) bool {
	t, ok := typeOf(err)
	return ok && t.Category() == CategoryConfig
}

// IsRegistrationError checks if an error is a registration error
func IsRegistrationError(err error) bool {
	t, ok := typeOf(err)
	return ok && t.Category() == CategoryRegistration
}

// IsLocationError checks if an error is a location error
func IsLocationError(err error) bool {
	t, ok := typeOf(err)
	return ok && t.Category() == CategoryLocation
}

// IsNetworkError checks if an error is a network error
func IsNetworkError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeNetwork
}

// IsRejectedByServer checks if the backend rejected the request
func IsRejectedByServer(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeRejectedByServer
}

// ShortMessage returns a concise, user-friendly error message
func ShortMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Type {
	case ErrTypeMissingCredentials:
		return "Project id and project key are required"
	case ErrTypeUnknownRegion:
		return "Unknown region - use AU, EU or US"
	case ErrTypeNetwork:
		switch e.NetworkSubtype {
		case NetworkErrorTimeout:
			return "Backend not responding (timeout)"
		case NetworkErrorConnectionRefused:
			return "Backend refused connection"
		case NetworkErrorDNS:
			return "Cannot resolve backend host"
		default:
			return "Network error - check connection"
		}
	case ErrTypeRejectedByServer:
		if e.Code != "" {
			return fmt.Sprintf("Backend rejected request (%s)", e.Code)
		}
		return fmt.Sprintf("Backend rejected request (HTTP %d)", e.StatusCode)
	case ErrTypePermissionDenied:
		return "Location permission not granted"
	default:
		return e.Message
	}
}

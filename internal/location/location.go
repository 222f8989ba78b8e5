package location

import (
	"context"
	"math"
	"time"

	"github.com/localz/localzpush-go/internal/sdkerrors"
)

const earthRadiusMeters = 6371008.8

// Location is a position fix reported by the OS
type Location struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Authorization mirrors the OS location permission states
type Authorization int

const (
	AuthorizationNotDetermined Authorization = iota
	AuthorizationDenied
	AuthorizationRestricted
	AuthorizationWhenInUse
	AuthorizationAlways
)

// String returns the authorization name
func (a Authorization) String() string {
	switch a {
	case AuthorizationNotDetermined:
		return "notDetermined"
	case AuthorizationDenied:
		return "denied"
	case AuthorizationRestricted:
		return "restricted"
	case AuthorizationWhenInUse:
		return "whenInUse"
	case AuthorizationAlways:
		return "always"
	default:
		return "unknown"
	}
}

// Authorized is true for always and when-in-use
func (a Authorization) Authorized() bool {
	return a == AuthorizationWhenInUse || a == AuthorizationAlways
}

// Provider is the OS location service. The host application implements it.
type Provider interface {
	// ServicesEnabled reports whether location services are on for the device
	ServicesEnabled() bool

	// Authorization returns the app's current permission
	Authorization() Authorization

	// RequestAuthorization prompts the user if needed and returns the result
	RequestAuthorization(ctx context.Context) (Authorization, error)

	// CurrentLocation returns a fresh fix
	CurrentLocation(ctx context.Context) (Location, error)
}

// CheckPermission returns LocationError.PermissionDenied unless location
// services are on and the app is authorized
func CheckPermission(p Provider) error {
	if p == nil {
		return sdkerrors.NewPermissionDenied("no location provider configured")
	}
	if !p.ServicesEnabled() {
		return sdkerrors.NewPermissionDenied("location services are disabled on the device")
	}
	if a := p.Authorization(); !a.Authorized() {
		return sdkerrors.NewPermissionDenied("location authorization is " + a.String())
	}
	return nil
}

// Distance returns the great-circle distance between a and b in metres
func Distance(a, b Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

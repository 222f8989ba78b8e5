package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/localz/localzpush-go/internal/backend"
	"github.com/localz/localzpush-go/internal/store"
	"github.com/localz/localzpush-go/internal/ui"
	"github.com/localz/localzpush-go/pkg/localzpush"
)

// Keys the simulator keeps next to SDK state
const (
	keyOverridePrefix = "cli.override."
	keySimLocation    = "cli.simLocation"
)

// simPush grants or denies push permission from configuration
type simPush struct{ deny bool }

func (p simPush) RequestPushAuthorization(context.Context) (bool, error) {
	return !p.deny, nil
}

// simLocation answers location questions from configuration and the last
// position given to `localzpush location`
type simLocation struct {
	enabled bool
	auth    localzpush.Authorization
	store   store.Store
}

func (l *simLocation) ServicesEnabled() bool                   { return l.enabled }
func (l *simLocation) Authorization() localzpush.Authorization { return l.auth }

func (l *simLocation) RequestAuthorization(context.Context) (localzpush.Authorization, error) {
	// The simulated user grants foreground access when asked
	if l.auth == localzpush.AuthorizationNotDetermined {
		l.auth = localzpush.AuthorizationWhenInUse
	}
	return l.auth, nil
}

func (l *simLocation) CurrentLocation(context.Context) (localzpush.Location, error) {
	raw, ok := l.store.Get(keySimLocation)
	if !ok {
		return localzpush.Location{}, fmt.Errorf("no simulated position; run 'localzpush location <lat> <lng>' first")
	}
	var loc localzpush.Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return localzpush.Location{}, fmt.Errorf("corrupt simulated position: %w", err)
	}
	return loc, nil
}

type simBackground struct{ enabled bool }

func (b simBackground) BackgroundRefreshEnabled() bool { return b.enabled }

// printObserver prints every SDK event
type printObserver struct{}

func (printObserver) DidFinishRegistering(deviceID string) {
	fmt.Println(ui.NewSuccessResult("device registered").AddDetail("Device", deviceID))
}

func (printObserver) FailedToRegisterDevice(err error) {
	fmt.Println(ui.NewFailureResult("registration failed", err,
		"check the project id and key",
		"re-deliver the token with 'localzpush register' to retry"))
}

func (printObserver) FailedToUpdateDevice(err error) {
	fmt.Println(ui.NewFailureResult("update failed", err,
		"the previous registration is still active",
		"re-deliver the token with 'localzpush register' to retry"))
}

func (printObserver) DidReceiveRemoteNotification(payload map[string]any, state localzpush.AppState) localzpush.FetchResult {
	data, _ := json.Marshal(payload)
	fmt.Println(ui.NewSuccessResult("notification received").
		AddDetail("State", state.String()).
		AddDetail("Payload", string(data)))
	return localzpush.FetchNoData
}

func (printObserver) DidFail(err error) {
	fmt.Println(ui.NewWarningResult(err.Error()))
}

func parseAuthorization(s string) (localzpush.Authorization, error) {
	switch strings.ToLower(s) {
	case "", "notdetermined":
		return localzpush.AuthorizationNotDetermined, nil
	case "denied":
		return localzpush.AuthorizationDenied, nil
	case "restricted":
		return localzpush.AuthorizationRestricted, nil
	case "wheninuse":
		return localzpush.AuthorizationWhenInUse, nil
	case "always":
		return localzpush.AuthorizationAlways, nil
	default:
		return 0, fmt.Errorf("unknown location authorization %q", s)
	}
}

func statePath() (string, error) {
	if cfg.StatePath != "" {
		return cfg.StatePath, nil
	}
	return store.DefaultPath()
}

func openStore() (*store.FileStore, error) {
	path, err := statePath()
	if err != nil {
		return nil, err
	}
	return store.OpenFileStore(path)
}

// overrides returns the advanced settings saved with 'config set'
func overrides(s store.Store) map[string]any {
	out := make(map[string]any)
	for k, v := range s.Snapshot() {
		if key, ok := strings.CutPrefix(k, keyOverridePrefix); ok {
			out[key] = v
		}
	}
	return out
}

// httpClient returns a client for self-signed backends, or nil for the default
func httpClient() *http.Client {
	if !cfg.Insecure {
		return nil
	}
	return &http.Client{
		Timeout:   backend.DefaultTimeout,
		Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
	}
}

// openService builds the SDK over the state file with simulated OS hooks
func openService() (*localzpush.Service, store.Store, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	auth, err := parseAuthorization(cfg.LocationAuth)
	if err != nil {
		return nil, nil, err
	}

	svc, err := localzpush.New(localzpush.Options{
		Settings:          settings(overrides(st)),
		Store:             st,
		Observer:          printObserver{},
		PushAuthorizer:    simPush{deny: cfg.DenyPush},
		LocationProvider:  &simLocation{enabled: cfg.LocationServices, auth: auth, store: st},
		BackgroundRefresh: simBackground{enabled: cfg.BackgroundRefresh},
		HTTPClient:        httpClient(),
		Platform:          cfg.Platform,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, st, nil
}

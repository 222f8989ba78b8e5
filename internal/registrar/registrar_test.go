package registrar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/localz/localzpush-go/internal/backend"
	"github.com/localz/localzpush-go/internal/events"
	"github.com/localz/localzpush-go/internal/mockapi"
	"github.com/localz/localzpush-go/internal/sdkerrors"
	"github.com/localz/localzpush-go/internal/store"
)

const (
	testProjectID  = "proj-1"
	testProjectKey = "key-1"
)

type countingAuthorizer struct {
	mu      sync.Mutex
	calls   int
	granted bool
	err     error
}

func (a *countingAuthorizer) RequestPushAuthorization(context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.granted, a.err
}

func (a *countingAuthorizer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
	errs   []error
	done   chan string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{done: make(chan string, 16)}
}

func (o *recordingObserver) add(kind string, err error) {
	o.mu.Lock()
	o.events = append(o.events, kind)
	if err != nil {
		o.errs = append(o.errs, err)
	}
	o.mu.Unlock()
	o.done <- kind
}

func (o *recordingObserver) DidFinishRegistering(string)    { o.add("registered", nil) }
func (o *recordingObserver) FailedToRegisterDevice(e error) { o.add("registerFailed", e) }
func (o *recordingObserver) FailedToUpdateDevice(e error)   { o.add("updateFailed", e) }

func (o *recordingObserver) Events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func (o *recordingObserver) LastErr() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.errs) == 0 {
		return nil
	}
	return o.errs[len(o.errs)-1]
}

type fixture struct {
	api      *mockapi.Server
	srv      *httptest.Server
	store    *store.MemoryStore
	auth     *countingAuthorizer
	observer *recordingObserver
	reg      *Registrar
	configs  []*backend.DynamicConfig
}

func newFixture(t *testing.T, seed map[string]string) *fixture {
	t.Helper()
	api := mockapi.New(testProjectID, testProjectKey)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	f := &fixture{
		api:      api,
		srv:      srv,
		store:    store.NewMemoryStore(seed),
		auth:     &countingAuthorizer{granted: true},
		observer: newRecordingObserver(),
	}
	f.reg = f.open(t)
	return f
}

func (f *fixture) open(t *testing.T) *Registrar {
	t.Helper()
	d := events.NewDispatcher()
	d.SetObserver(f.observer)

	reg, err := New(Options{
		Store:      f.store,
		Backend:    backend.NewClient(f.srv.URL, testProjectID, testProjectKey),
		Authorizer: f.auth,
		Dispatcher: d,
		OnDynamicConfig: func(c *backend.DynamicConfig) {
			f.configs = append(f.configs, c)
		},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func (f *fixture) registerAndWait(t *testing.T, token, name string) {
	t.Helper()
	if err := f.reg.RegisterToken(token, name); err != nil {
		t.Fatalf("RegisterToken(%q) error = %v", token, err)
	}
	f.reg.Wait()
}

func TestNew_PersistsDeviceID(t *testing.T) {
	f := newFixture(t, nil)

	id := f.reg.DeviceID()
	if id == "" {
		t.Fatal("DeviceID() is empty")
	}
	if got, _ := f.store.Get(store.KeyDeviceID); got != id {
		t.Errorf("persisted device id = %q, want %q", got, id)
	}

	again := f.open(t)
	if again.DeviceID() != id {
		t.Errorf("DeviceID() after reopen = %q, want %q", again.DeviceID(), id)
	}
}

func TestStart_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if err := f.reg.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := f.reg.Start(ctx); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	if got := f.auth.Calls(); got != 1 {
		t.Errorf("authorizer called %d times, want 1", got)
	}
	if got := len(f.api.Calls()); got != 0 {
		t.Errorf("backend received %d calls, want 0", got)
	}
	if f.reg.State() != PushEnabled {
		t.Errorf("State() = %v, want %v", f.reg.State(), PushEnabled)
	}
	if !f.reg.IsStarted() || !f.reg.IsPushEnabled() {
		t.Error("IsStarted()/IsPushEnabled() = false after Start")
	}
	if got, _ := f.store.Get(store.KeyRegistrationState); got != PushEnabled.String() {
		t.Errorf("persisted state = %q, want %q", got, PushEnabled.String())
	}
}

func TestStart_Denied(t *testing.T) {
	f := newFixture(t, nil)
	f.auth.granted = false

	if err := f.reg.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if f.reg.State() != NotStarted {
		t.Errorf("State() = %v, want %v", f.reg.State(), NotStarted)
	}
	if f.reg.IsPushEnabled() {
		t.Error("IsPushEnabled() = true after denial")
	}
}

func TestStart_AuthorizerError(t *testing.T) {
	f := newFixture(t, nil)
	f.auth.err = errors.New("boom")

	if err := f.reg.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want error")
	}
	if f.reg.State() != NotStarted {
		t.Errorf("State() = %v, want %v", f.reg.State(), NotStarted)
	}
}

type gatedAuthorizer struct {
	countingAuthorizer
	entered chan struct{}
	release chan struct{}
}

func (a *gatedAuthorizer) RequestPushAuthorization(ctx context.Context) (bool, error) {
	a.entered <- struct{}{}
	<-a.release
	return a.countingAuthorizer.RequestPushAuthorization(ctx)
}

func TestStart_ConcurrentCallsPromptOnce(t *testing.T) {
	f := newFixture(t, nil)
	auth := &gatedAuthorizer{
		countingAuthorizer: countingAuthorizer{granted: true},
		entered:            make(chan struct{}, 2),
		release:            make(chan struct{}),
	}
	f.reg.authorizer = auth
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- f.reg.Start(ctx) }()
	<-auth.entered

	if err := f.reg.Start(ctx); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	select {
	case <-auth.entered:
		t.Fatal("second Start() prompted for authorization")
	default:
	}

	close(auth.release)
	if err := <-first; err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if got := auth.Calls(); got != 1 {
		t.Errorf("authorizer called %d times, want 1", got)
	}
	if f.reg.State() != PushEnabled {
		t.Errorf("State() = %v, want %v", f.reg.State(), PushEnabled)
	}
}

func TestStart_RetryAfterAuthorizerError(t *testing.T) {
	f := newFixture(t, nil)
	f.auth.err = errors.New("boom")
	ctx := context.Background()

	if err := f.reg.Start(ctx); err == nil {
		t.Fatal("Start() error = nil, want error")
	}
	f.auth.mu.Lock()
	f.auth.err = nil
	f.auth.mu.Unlock()

	if err := f.reg.Start(ctx); err != nil {
		t.Fatalf("Start() after error = %v", err)
	}
	if got := f.auth.Calls(); got != 2 {
		t.Errorf("authorizer called %d times, want 2", got)
	}
	if f.reg.State() != PushEnabled {
		t.Errorf("State() = %v, want %v", f.reg.State(), PushEnabled)
	}
}

func TestRegisterToken_RegisterThenUpdate(t *testing.T) {
	f := newFixture(t, nil)
	_ = f.reg.Start(context.Background())

	f.registerAndWait(t, "token-a", "Kitchen iPad")
	if f.reg.State() != Registered {
		t.Fatalf("State() = %v, want %v", f.reg.State(), Registered)
	}
	if n := f.api.CallCount(mockapi.OpRegister); n != 1 {
		t.Errorf("register calls = %d, want 1", n)
	}

	f.registerAndWait(t, "token-b", "")
	if n := f.api.CallCount(mockapi.OpUpdate); n != 1 {
		t.Errorf("update calls = %d, want 1", n)
	}

	dev, ok := f.api.Device(f.reg.DeviceID())
	if !ok {
		t.Fatal("device not known to backend")
	}
	if dev.DeviceToken != "token-b" || dev.DeviceName != "Kitchen iPad" {
		t.Errorf("backend device = %+v, want token-b / Kitchen iPad", dev)
	}
	if got, _ := f.store.Get(store.KeyDeviceToken); got != "token-b" {
		t.Errorf("persisted token = %q, want token-b", got)
	}

	want := []string{"registered", "registered"}
	if got := f.observer.Events(); len(got) != len(want) {
		t.Errorf("observer events = %v, want %v", got, want)
	}
}

func TestRegisterToken_SameTokenIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	f.registerAndWait(t, "token-a", "")
	before := len(f.api.Calls())

	f.registerAndWait(t, "token-a", "")
	if got := len(f.api.Calls()); got != before {
		t.Errorf("backend calls = %d, want %d", got, before)
	}
}

func TestRegisterToken_EmptyToken(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.reg.RegisterToken("", ""); !errors.Is(err, ErrEmptyToken) {
		t.Errorf("RegisterToken(\"\") error = %v, want ErrEmptyToken", err)
	}
}

func TestRegisterToken_Failures(t *testing.T) {
	f := newFixture(t, nil)

	f.api.FailNext(mockapi.OpRegister, http.StatusInternalServerError, "INTERNAL", "try later")
	f.registerAndWait(t, "token-a", "")
	if f.reg.State() != RegisterFailed {
		t.Fatalf("State() = %v, want %v", f.reg.State(), RegisterFailed)
	}
	if err := f.observer.LastErr(); !errors.Is(err, sdkerrors.ErrRejectedByServer) {
		t.Errorf("observer error = %v, want RejectedByServer", err)
	}
	if n := f.api.CallCount(mockapi.OpRegister); n != 1 {
		t.Errorf("register calls = %d, want 1 (no retry)", n)
	}

	f.registerAndWait(t, "token-a", "")
	if f.reg.State() != Registered {
		t.Fatalf("State() = %v, want %v", f.reg.State(), Registered)
	}

	f.api.FailNext(mockapi.OpUpdate, http.StatusBadGateway, "UPSTREAM", "gateway")
	f.registerAndWait(t, "token-b", "")
	if f.reg.State() != UpdateFailed {
		t.Fatalf("State() = %v, want %v", f.reg.State(), UpdateFailed)
	}
	if got := f.reg.Token(); got != "token-a" {
		t.Errorf("Token() = %q, want the last registered token-a", got)
	}

	want := []string{"registerFailed", "registered", "updateFailed"}
	got := f.observer.Events()
	if len(got) != len(want) {
		t.Fatalf("observer events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegisterToken_StaleCompletionIgnored(t *testing.T) {
	f := newFixture(t, nil)

	release := make(chan struct{})
	f.api.Hook = func(_ mockapi.Op, req backend.DeviceRequest) {
		if req.DeviceToken == "token-old" {
			<-release
		}
	}

	if err := f.reg.RegisterToken("token-old", ""); err != nil {
		t.Fatalf("RegisterToken() error = %v", err)
	}
	if err := f.reg.RegisterToken("token-new", ""); err != nil {
		t.Fatalf("RegisterToken() error = %v", err)
	}

	select {
	case <-f.observer.done:
	case <-time.After(5 * time.Second):
		t.Fatal("newer registration never completed")
	}
	if got := f.reg.Token(); got != "token-new" {
		t.Fatalf("Token() = %q, want token-new", got)
	}

	close(release)
	f.reg.Wait()

	if got := f.reg.Token(); got != "token-new" {
		t.Errorf("Token() after stale completion = %q, want token-new", got)
	}
	if got, _ := f.store.Get(store.KeyDeviceToken); got != "token-new" {
		t.Errorf("persisted token = %q, want token-new", got)
	}
	if got := f.observer.Events(); len(got) != 1 {
		t.Errorf("observer events = %v, want exactly one", got)
	}
}

func TestRestartRecovery(t *testing.T) {
	f := newFixture(t, nil)
	_ = f.reg.Start(context.Background())
	f.registerAndWait(t, "token-a", "Hall")
	id := f.reg.DeviceID()
	_ = f.reg.Close()

	f.store = store.NewMemoryStore(f.store.Snapshot())
	f.reg = f.open(t)

	if f.reg.DeviceID() != id {
		t.Errorf("DeviceID() = %q, want %q", f.reg.DeviceID(), id)
	}
	if f.reg.State() != Registered {
		t.Errorf("State() = %v, want %v", f.reg.State(), Registered)
	}
	if f.reg.Token() != "token-a" || f.reg.DeviceName() != "Hall" {
		t.Errorf("restored identity = %q/%q", f.reg.Token(), f.reg.DeviceName())
	}

	calls := len(f.api.Calls())
	_ = f.reg.Start(context.Background())
	f.registerAndWait(t, "token-a", "")
	if got := len(f.api.Calls()); got != calls {
		t.Errorf("backend calls after restart = %d, want %d", got, calls)
	}
	if got := f.auth.Calls(); got != 1 {
		t.Errorf("authorizer calls = %d, want 1", got)
	}

	// A newer token after restart must outrank the persisted version
	f.registerAndWait(t, "token-b", "")
	if f.reg.Token() != "token-b" {
		t.Errorf("Token() = %q, want token-b", f.reg.Token())
	}
}

func TestSetDeviceName(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.reg.SetDeviceName("Lobby"); err != nil {
		t.Fatalf("SetDeviceName() error = %v", err)
	}
	if got := len(f.api.Calls()); got != 0 {
		t.Errorf("backend calls before registration = %d, want 0", got)
	}

	f.registerAndWait(t, "token-a", "")
	dev, _ := f.api.Device(f.reg.DeviceID())
	if dev.DeviceName != "Lobby" {
		t.Errorf("registered name = %q, want Lobby", dev.DeviceName)
	}

	if err := f.reg.SetDeviceName("Foyer"); err != nil {
		t.Fatalf("SetDeviceName() error = %v", err)
	}
	f.reg.Wait()
	dev, _ = f.api.Device(f.reg.DeviceID())
	if dev.DeviceName != "Foyer" || dev.DeviceToken != "token-a" {
		t.Errorf("backend device = %+v, want Foyer/token-a", dev)
	}
}

func TestHandleRegistrationFailure(t *testing.T) {
	f := newFixture(t, nil)
	osErr := errors.New("no APNs environment")

	if err := f.reg.HandleRegistrationFailure(osErr); err != nil {
		t.Fatalf("HandleRegistrationFailure() error = %v", err)
	}
	f.reg.Wait()

	if f.reg.State() != RegisterFailed {
		t.Errorf("State() = %v, want %v", f.reg.State(), RegisterFailed)
	}
	if err := f.observer.LastErr(); !errors.Is(err, osErr) {
		t.Errorf("observer error = %v, want %v", err, osErr)
	}
}

func TestWait_ConcurrentWithNewWork(t *testing.T) {
	f := newFixture(t, nil)
	const n = 8

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_ = f.reg.HandleRegistrationFailure(errors.New("no APNs environment"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			f.reg.Wait()
		}
	}()
	wg.Wait()
	f.reg.Wait()

	if got := len(f.observer.Events()); got != n {
		t.Errorf("observer received %d events, want %d", got, n)
	}
	f.reg.pendingMu.Lock()
	defer f.reg.pendingMu.Unlock()
	if f.reg.pending != 0 {
		t.Errorf("pending = %d after Wait, want 0", f.reg.pending)
	}
}

func TestDynamicConfigForwarded(t *testing.T) {
	f := newFixture(t, nil)
	f.api.DynamicConfig = &backend.DynamicConfig{Enabled: true, MinPeriodSeconds: 60, DistanceMeters: 100}

	f.registerAndWait(t, "token-a", "")
	if len(f.configs) != 1 || !f.configs[0].Enabled || f.configs[0].MinPeriodSeconds != 60 {
		t.Errorf("forwarded configs = %+v", f.configs)
	}
}

func TestClose(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.reg.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := f.reg.RegisterToken("token-a", ""); !errors.Is(err, ErrClosed) {
		t.Errorf("RegisterToken() after Close error = %v, want ErrClosed", err)
	}
	if err := f.reg.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestParseState(t *testing.T) {
	for s := NotStarted; s <= RegisterFailed; s++ {
		got, ok := ParseState(s.String())
		if !ok || got != s {
			t.Errorf("ParseState(%q) = %v, %v", s.String(), got, ok)
		}
	}
	if _, ok := ParseState("bogus"); ok {
		t.Error("ParseState(bogus) ok = true")
	}
}

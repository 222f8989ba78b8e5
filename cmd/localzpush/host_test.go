package main

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/localz/localzpush-go/internal/region"
	"github.com/localz/localzpush-go/internal/store"
	"github.com/localz/localzpush-go/pkg/localzpush"
)

func TestParseAuthorization(t *testing.T) {
	tests := []struct {
		in      string
		want    localzpush.Authorization
		wantErr bool
	}{
		{"", localzpush.AuthorizationNotDetermined, false},
		{"denied", localzpush.AuthorizationDenied, false},
		{"Restricted", localzpush.AuthorizationRestricted, false},
		{"whenInUse", localzpush.AuthorizationWhenInUse, false},
		{"ALWAYS", localzpush.AuthorizationAlways, false},
		{"sometimes", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAuthorization(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAuthorization(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseAuthorization(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAppState(t *testing.T) {
	for in, want := range map[string]localzpush.AppState{
		"active":     localzpush.AppStateActive,
		"inactive":   localzpush.AppStateInactive,
		"background": localzpush.AppStateBackground,
	} {
		got, err := parseAppState(in)
		if err != nil || got != want {
			t.Errorf("parseAppState(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := parseAppState("asleep"); err == nil {
		t.Error("expected error for unknown app state")
	}
}

func TestRegionParser(t *testing.T) {
	got, err := regionParser(reflect.TypeFor[region.Code](), "eu", nil, nil)
	if err != nil {
		t.Fatalf("regionParser() error = %v", err)
	}
	if got.(region.Code) != region.EU {
		t.Errorf("regionParser(eu) = %v, want EU", got)
	}
	if _, err := regionParser(reflect.TypeFor[region.Code](), "1234", nil, nil); err == nil {
		t.Error("expected error for unknown region code")
	}
}

func TestOverrides_OnlyPrefixedKeys(t *testing.T) {
	st := store.NewMemoryStore(map[string]string{
		keyOverridePrefix + "host":  "http://localhost:8080",
		keyOverridePrefix + "debug": "true",
		store.KeyDeviceID:           "dev-1",
		keySimLocation:              "{}",
	})

	got := overrides(st)
	want := map[string]any{"host": "http://localhost:8080", "debug": "true"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("overrides() = %v, want %v", got, want)
	}
}

func TestSaveOverride(t *testing.T) {
	cfg = defaultConfig()
	st := store.NewMemoryStore(nil)

	eu := "3000"
	effective, err := saveOverride(st, "region", &eu)
	if err != nil {
		t.Fatalf("saveOverride(region) error = %v", err)
	}
	if effective.RegionCode != region.EU || effective.Host != region.EUHost {
		t.Errorf("effective = %v / %s, want EU host", effective.RegionCode, effective.Host)
	}

	bad := "4242"
	if _, err := saveOverride(st, "region", &bad); err == nil {
		t.Fatal("expected error for unknown region code")
	}
	if v, _ := st.Get(keyOverridePrefix + "region"); v != "3000" {
		t.Errorf("stored region = %q after rejected change, want 3000", v)
	}

	if _, err := saveOverride(st, "region", nil); err != nil {
		t.Fatalf("unset error = %v", err)
	}
	if _, ok := st.Get(keyOverridePrefix + "region"); ok {
		t.Error("region override still stored after unset")
	}
}

func TestSimLocation(t *testing.T) {
	st := store.NewMemoryStore(nil)
	l := &simLocation{enabled: true, auth: localzpush.AuthorizationNotDetermined, store: st}

	if _, err := l.CurrentLocation(context.Background()); err == nil {
		t.Error("expected error without a simulated position")
	}

	want := localzpush.Location{Latitude: -33.8688, Longitude: 151.2093, Timestamp: time.Unix(1700000000, 0).UTC()}
	if err := saveSimLocation(st, want); err != nil {
		t.Fatal(err)
	}
	got, err := l.CurrentLocation(context.Background())
	if err != nil {
		t.Fatalf("CurrentLocation() error = %v", err)
	}
	if got.Latitude != want.Latitude || got.Longitude != want.Longitude || !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("CurrentLocation() = %+v, want %+v", got, want)
	}

	auth, _ := l.RequestAuthorization(context.Background())
	if auth != localzpush.AuthorizationWhenInUse {
		t.Errorf("RequestAuthorization() = %v, want whenInUse", auth)
	}
}

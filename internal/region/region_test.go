package region

import (
	"errors"
	"testing"

	"github.com/localz/localzpush-go/internal/sdkerrors"
)

func TestHostFor(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{6000, AUHost},
		{3000, EUHost},
		{9000, USHost},
		{Dev, DevHost},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			got, err := HostFor(tt.code)
			if err != nil {
				t.Fatalf("HostFor(%d) error = %v", tt.code, err)
			}
			if got != tt.want {
				t.Errorf("HostFor(%d) = %s, want %s", tt.code, got, tt.want)
			}
		})
	}
}

func TestHostFor_Unknown(t *testing.T) {
	for _, code := range []Code{0, 1, 6001, 2999, -9000} {
		_, err := HostFor(code)
		if !errors.Is(err, sdkerrors.ErrUnknownRegion) {
			t.Errorf("HostFor(%d) error = %v, want UnknownRegion", code, err)
		}
	}
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in      string
		want    Code
		wantErr bool
	}{
		{"AU", AU, false},
		{"eu", EU, false},
		{" us ", US, false},
		{"dev", Dev, false},
		{"9000", US, false},
		{"1234", 0, true},
		{"mars", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRegion(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRegion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !sdkerrors.IsConfigError(err) {
				t.Errorf("ParseRegion(%q) error should be a config error", tt.in)
			}
			if got != tt.want {
				t.Errorf("ParseRegion(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCode_String(t *testing.T) {
	if AU.String() != "AU" {
		t.Errorf("AU.String() = %s", AU.String())
	}
	if Code(42).String() != "Region(42)" {
		t.Errorf("Code(42).String() = %s", Code(42).String())
	}
}

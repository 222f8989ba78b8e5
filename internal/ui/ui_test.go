package ui

import (
	"errors"
	"strings"
	"testing"
)

func TestPanel_RenderPlain(t *testing.T) {
	p := &Panel{Title: "Device status", Plain: true}
	p.Add("Device ID", "abc").AddBool("Started", true).AddBool("Push", false)

	got := p.Render()
	want := "DEVICE STATUS\n" +
		"Device ID: abc\n" +
		"Started:   yes\n" +
		"Push:      no\n"
	if got != want {
		t.Errorf("Render() =\n%q\nwant\n%q", got, want)
	}
}

func TestPanel_RenderStyledContainsRows(t *testing.T) {
	p := &Panel{Title: "status", Command: "localzpush status", Width: 80}
	p.Add("State", "registered")

	got := p.Render()
	for _, s := range []string{"STATUS", "localzpush status", "State:", "registered"} {
		if !strings.Contains(got, s) {
			t.Errorf("Render() missing %q:\n%s", s, got)
		}
	}
}

func TestResult_RenderPlain(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   string
	}{
		{
			name:   "success with detail",
			result: (&Result{Type: ResultSuccess, Title: "registered", Plain: true}).AddDetail("Device", "d1"),
			want:   "✓ OK: registered\n  Device: d1",
		},
		{
			name: "failure with hint",
			result: &Result{Type: ResultFailure, Title: "register", Plain: true,
				Error: errors.New("boom"), Hints: []string{"check the project key"}},
			want: "✗ FAILED: register\n  Error: boom\n  Troubleshooting:\n    - check the project key",
		},
		{
			name:   "warning",
			result: &Result{Type: ResultWarning, Title: "not sent", Plain: true},
			want:   "⚠ WARNING: not sent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Render(); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

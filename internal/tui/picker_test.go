package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/localz/localzpush-go/internal/discovery"
)

func testBackends() []*discovery.Backend {
	return []*discovery.Backend{
		{Instance: "alice-laptop", IP: "192.168.1.10", Port: 8080,
			Metadata: map[string]string{discovery.TxtProjectID: "p1", discovery.TxtRegion: "AU"}},
		{Instance: "bob-desktop", IP: "192.168.1.11", Port: 8443,
			Metadata: map[string]string{discovery.TxtTLS: "1"}},
	}
}

func noScan(context.Context) ([]*discovery.Backend, error) { return nil, nil }

func update(t *testing.T, m PickerModel, msg tea.Msg) (PickerModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	pm, ok := next.(PickerModel)
	if !ok {
		t.Fatalf("Update returned %T, want PickerModel", next)
	}
	return pm, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestPicker_ScanningView(t *testing.T) {
	m := NewPicker(noScan)
	if !strings.Contains(m.View(), discovery.ServiceType) {
		t.Errorf("scanning view should name the service type:\n%s", m.View())
	}
}

func TestPicker_SelectBackend(t *testing.T) {
	m := NewPicker(noScan)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 40})
	m, _ = update(t, m, scanCompleteMsg{backends: testBackends()})

	if !strings.Contains(m.View(), "alice-laptop") {
		t.Errorf("list view missing backend:\n%s", m.View())
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.Chosen() == nil || m.Chosen().Instance != "bob-desktop" {
		t.Fatalf("Chosen() = %v, want bob-desktop", m.Chosen())
	}
	if !isQuit(cmd) {
		t.Error("selecting a backend should quit the program")
	}
}

func TestPicker_QuitWithoutChoice(t *testing.T) {
	m := NewPicker(noScan)
	m, _ = update(t, m, scanCompleteMsg{backends: testBackends()})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	if m.Chosen() != nil {
		t.Errorf("Chosen() = %v, want nil", m.Chosen())
	}
	if !isQuit(cmd) {
		t.Error("q should quit")
	}
}

func TestPicker_EnterWhileScanningIgnored(t *testing.T) {
	m := NewPicker(noScan)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.Chosen() != nil || isQuit(cmd) {
		t.Error("enter during the first scan should do nothing")
	}
}

func TestPicker_Rescan(t *testing.T) {
	calls := 0
	scan := func(context.Context) ([]*discovery.Backend, error) {
		calls++
		return testBackends(), nil
	}

	m := NewPicker(scan)
	m, _ = update(t, m, scanCompleteMsg{})
	if !strings.Contains(m.View(), "No backends found") {
		t.Errorf("empty view:\n%s", m.View())
	}

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if !m.scanning || cmd == nil {
		t.Fatal("r should start a new scan")
	}

	// A second r while scanning is ignored
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if cmd != nil {
		t.Error("rescan while scanning should be ignored")
	}

	msg := m.scanCmd()()
	m, _ = update(t, m, msg)
	if calls != 1 {
		t.Errorf("scan called %d times, want 1", calls)
	}
	if got := len(m.list.Items()); got != 2 {
		t.Errorf("items = %d, want 2", got)
	}
}

func TestPicker_ScanError(t *testing.T) {
	m := NewPicker(noScan)
	m, _ = update(t, m, scanCompleteMsg{err: errors.New("no multicast interface")})
	if !strings.Contains(m.View(), "no multicast interface") {
		t.Errorf("error view:\n%s", m.View())
	}
}

func TestBackendItem(t *testing.T) {
	item := backendItem{backend: testBackends()[0]}
	if item.Title() != "alice-laptop" {
		t.Errorf("Title() = %q", item.Title())
	}
	desc := item.Description()
	for _, want := range []string{"http://192.168.1.10:8080", "project p1", "region AU"} {
		if !strings.Contains(desc, want) {
			t.Errorf("Description() = %q, missing %q", desc, want)
		}
	}
	if !strings.Contains(item.FilterValue(), "p1") {
		t.Errorf("FilterValue() = %q, want project id", item.FilterValue())
	}
}

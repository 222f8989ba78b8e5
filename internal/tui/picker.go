package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/localz/localzpush-go/internal/discovery"
	"github.com/localz/localzpush-go/internal/ui"
)

// ScanFunc browses the network for backends
type ScanFunc func(ctx context.Context) ([]*discovery.Backend, error)

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	backends []*discovery.Backend
	err      error
}

// pickerKeyMap defines key bindings for the picker
type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Rescan key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k pickerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Rescan, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k pickerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Rescan, k.Quit},
	}
}

func newPickerKeyMap() pickerKeyMap {
	return pickerKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "use backend"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// backendItem wraps a Backend for use with bubbles/list
type backendItem struct {
	backend *discovery.Backend
}

func (b backendItem) FilterValue() string {
	return b.backend.Instance + " " + b.backend.IP + " " + b.backend.ProjectID()
}

func (b backendItem) Title() string { return b.backend.Instance }

func (b backendItem) Description() string {
	parts := []string{b.backend.BaseURL()}
	if p := b.backend.ProjectID(); p != "" {
		parts = append(parts, "project "+p)
	}
	if r := b.backend.GetMetadata(discovery.TxtRegion); r != "" {
		parts = append(parts, "region "+r)
	}
	return strings.Join(parts, " • ")
}

// PickerModel is a backend selection screen: it browses for development
// backends and lets the user choose one
type PickerModel struct {
	scan ScanFunc

	scanning bool
	err      error
	chosen   *discovery.Backend

	list    list.Model
	spinner spinner.Model
	help    help.Model
	keys    pickerKeyMap
}

// NewPicker creates a picker that calls scan on start and on rescan
func NewPicker(scan ScanFunc) PickerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ui.PrimaryColor)

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ui.PrimaryColor).BorderLeftForeground(ui.PrimaryColor)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		BorderLeftForeground(ui.PrimaryColor)

	l := list.New([]list.Item{}, delegate, ui.MinTerminalWidth, 20)
	l.Title = "Push backends"
	l.Styles.Title = ui.TitleStyle
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)

	return PickerModel{
		scan:     scan,
		scanning: true,
		list:     l,
		spinner:  s,
		help:     help.New(),
		keys:     newPickerKeyMap(),
	}
}

// Chosen returns the selected backend, or nil if the user quit
func (m PickerModel) Chosen() *discovery.Backend { return m.chosen }

// Init starts the first scan
func (m PickerModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		m.scanCmd(),
		m.spinner.Tick,
	)
}

func (m PickerModel) scanCmd() tea.Cmd {
	scan := m.scan
	return func() tea.Msg {
		backends, err := scan(context.Background())
		return scanCompleteMsg{backends: backends, err: err}
	}
}

// Update handles messages and updates the model
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Typed text belongs to the filter while it is open
		if m.list.FilterState() == list.Filtering {
			m.list, cmd = m.list.Update(msg)
			return m, cmd
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Rescan):
			if m.scanning {
				return m, nil
			}
			m.scanning = true
			m.err = nil
			return m, tea.Batch(m.scanCmd(), m.spinner.Tick)
		case key.Matches(msg, m.keys.Select):
			if item, ok := m.list.SelectedItem().(backendItem); ok && !m.scanning {
				m.chosen = item.backend
				return m, tea.Quit
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-2, msg.Height-4)
		m.help.Width = msg.Width
		return m, nil

	case scanStartMsg:
		m.scanning = true
		return m, nil

	case scanCompleteMsg:
		m.scanning = false
		m.err = msg.err
		items := make([]list.Item, len(msg.backends))
		for i, b := range msg.backends {
			items[i] = backendItem{backend: b}
		}
		return m, m.list.SetItems(items)

	case spinner.TickMsg:
		if !m.scanning {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if !m.scanning {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

// View renders the picker
func (m PickerModel) View() string {
	var b strings.Builder

	switch {
	case m.scanning:
		fmt.Fprintf(&b, "\n %s Browsing for %s...\n\n", m.spinner.View(), discovery.ServiceType)
	case m.err != nil:
		fmt.Fprintf(&b, "\n %s\n\n", ui.ErrorStyle.Render(ui.FailureMarker+" Discovery failed: "+m.err.Error()))
	case len(m.list.Items()) == 0:
		fmt.Fprintf(&b, "\n %s\n\n", ui.WarningStyle.Render(ui.WarningMarker+" No backends found"))
		b.WriteString(ui.SubtitleStyle.Render(" Start one with 'localzpush mock-backend --advertise'") + "\n\n")
	default:
		b.WriteString(m.list.View())
		b.WriteString("\n")
	}

	b.WriteString(" " + m.help.View(m.keys))
	return b.String()
}

// Pick runs the picker full-screen and returns the chosen backend, or nil
// when the user quits without choosing
func Pick(ctx context.Context, scan ScanFunc) (*discovery.Backend, error) {
	p := tea.NewProgram(NewPicker(scan), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("backend picker failed: %w", err)
	}
	return final.(PickerModel).Chosen(), nil
}

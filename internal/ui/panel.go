package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Row is one key/value line of a panel
type Row struct {
	Key   string
	Value string
	// Tone colours the value: ToneNormal, ToneGood, ToneBad or ToneWarn
	Tone Tone
}

// Tone selects the colour of a row value
type Tone int

const (
	ToneNormal Tone = iota
	ToneGood
	ToneBad
	ToneWarn
)

// Panel is a titled block of rows, e.g. the output of `localzpush status`
type Panel struct {
	Title   string
	Command string
	Rows    []Row
	Width   int

	// Plain disables styling; set automatically when stdout is not a terminal
	Plain bool
}

// NewPanel creates a panel sized to the terminal
func NewPanel(title, command string) *Panel {
	return &Panel{
		Title:   title,
		Command: command,
		Width:   GetTerminalWidth(),
		Plain:   !IsTerminal(),
	}
}

// Add appends a row
func (p *Panel) Add(key, value string) *Panel {
	return p.AddTone(key, value, ToneNormal)
}

// AddTone appends a row with a coloured value
func (p *Panel) AddTone(key, value string, tone Tone) *Panel {
	p.Rows = append(p.Rows, Row{Key: key, Value: value, Tone: tone})
	return p
}

// AddBool appends a yes/no row, green for yes
func (p *Panel) AddBool(key string, v bool) *Panel {
	if v {
		return p.AddTone(key, "yes", ToneGood)
	}
	return p.AddTone(key, "no", ToneWarn)
}

func (p *Panel) keyWidth() int {
	w := 0
	for _, r := range p.Rows {
		if len(r.Key) > w {
			w = len(r.Key)
		}
	}
	return w + 1
}

// Render returns the panel as a string
func (p *Panel) Render() string {
	kw := p.keyWidth()

	if p.Plain {
		var b strings.Builder
		b.WriteString(strings.ToUpper(p.Title))
		b.WriteString("\n")
		for _, r := range p.Rows {
			fmt.Fprintf(&b, "%-*s %s\n", kw, r.Key+":", r.Value)
		}
		return b.String()
	}

	width := p.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	lines := []string{TitleStyle.Render(strings.ToUpper(p.Title))}
	if p.Command != "" {
		lines = append(lines, SubtitleStyle.Render(p.Command))
	}
	lines = append(lines, RenderHorizontalDivider(width-6, "─"))

	keyStyle := KeyStyle.Width(kw)
	for _, r := range p.Rows {
		lines = append(lines, keyStyle.Render(r.Key+":")+" "+toneStyle(r.Tone).Render(r.Value))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width-2).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (p *Panel) String() string {
	return p.Render()
}

func toneStyle(t Tone) lipgloss.Style {
	switch t {
	case ToneGood:
		return lipgloss.NewStyle().Foreground(SuccessColor)
	case ToneBad:
		return lipgloss.NewStyle().Foreground(ErrorColor)
	case ToneWarn:
		return lipgloss.NewStyle().Foreground(WarningColor)
	default:
		return ValueStyle
	}
}

package ui

import (
	"fmt"
	"strings"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result is a one-shot outcome line with optional details, printed after a
// command ran
type Result struct {
	Type    ResultType
	Title   string
	Details []Row
	Error   error
	Hints   []string
	Plain   bool
}

// NewSuccessResult creates a success result
func NewSuccessResult(title string) *Result {
	return &Result{Type: ResultSuccess, Title: title, Plain: !IsTerminal()}
}

// NewFailureResult creates a failure result with troubleshooting hints
func NewFailureResult(title string, err error, hints ...string) *Result {
	return &Result{Type: ResultFailure, Title: title, Error: err, Hints: hints, Plain: !IsTerminal()}
}

// NewWarningResult creates a warning result
func NewWarningResult(title string) *Result {
	return &Result{Type: ResultWarning, Title: title, Plain: !IsTerminal()}
}

// AddDetail adds a detail key-value pair
func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, Row{Key: key, Value: value})
	return r
}

// Render returns the result as a string
func (r *Result) Render() string {
	marker, label := SuccessMarker, "OK"
	style := SuccessStyle
	switch r.Type {
	case ResultFailure:
		marker, label, style = FailureMarker, "FAILED", ErrorStyle
	case ResultWarning:
		marker, label, style = WarningMarker, "WARNING", WarningStyle
	}

	title := fmt.Sprintf("%s %s: %s", marker, label, r.Title)
	if !r.Plain {
		title = style.Render(title)
	}

	lines := []string{title}
	for _, d := range r.Details {
		key := "  " + d.Key + ":"
		if !r.Plain {
			key = KeyStyle.Render(key)
		}
		lines = append(lines, key+" "+d.Value)
	}
	if r.Error != nil {
		msg := "  Error: " + r.Error.Error()
		if !r.Plain {
			msg = ErrorStyle.UnsetBold().Render(msg)
		}
		lines = append(lines, msg)
	}
	if len(r.Hints) > 0 {
		lines = append(lines, "  Troubleshooting:")
		for _, h := range r.Hints {
			lines = append(lines, "    - "+h)
		}
	}
	return strings.Join(lines, "\n")
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}

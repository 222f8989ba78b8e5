// Package ui renders the localzpush CLI's terminal output with Lipgloss.
//
// Components follow a "run once and exit" pattern:
//
//   - Panel: titled key/value block, used by `status` and `config get`
//   - Result: success/failure/warning line with details and hints
//
// Styling is dropped automatically when stdout is not a terminal, so output
// piped to files or other tools stays plain text.
package ui

// Package tui provides interactive terminal screens for the localzpush CLI.
//
// Screens are Bubble Tea models built from the bubbles components (list,
// spinner, help) and the palette in internal/ui.
//
// # Backend picker
//
// PickerModel browses the local network for development push backends and
// lets the user choose one with the arrow keys:
//
//	backend, err := tui.Pick(ctx, scanner.Scan)
//	if err != nil {
//	    return err
//	}
//	if backend == nil {
//	    return nil // user quit
//	}
//
// Key bindings: ↑/k and ↓/j move, enter selects, / filters, r rescans, q quits.
//
// The scan function is injected, so tests drive the model by calling Update
// with messages directly and never touch the network.
package tui

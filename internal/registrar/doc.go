// Package registrar implements the device registration state machine.
//
// States move NotStarted → PushEnabled (Start) → Registered (token accepted by
// the backend). A failed first registration lands in RegisterFailed, a failed
// update of a known device in UpdateFailed; neither discards the last
// registered token. Every transition is written to the store in one flushed
// transaction before it becomes visible.
//
// Nothing is retried automatically. The host re-delivers the token (or calls
// Start again) when it wants another attempt.
package registrar

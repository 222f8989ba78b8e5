// Package events routes SDK outcomes to the host application's observer.
//
// The observer is any value; the capabilities it supports are discovered by
// type assertion against the small interfaces in this package. A missing
// observer or capability is not an error: the event is dropped.
//
// # Delivery
//
// Dispatch calls the observer on the goroutine that dispatched the event, with
// no dispatcher lock held. Registration outcomes are dispatched from the
// registrar's single completion goroutine, in the order the backend answers
// arrived; notification events from the goroutine that called
// RemoteNotificationReceived. Hosts that need UI-thread delivery must hop
// threads themselves. Nothing is buffered or replayed.
package events

// Package sdkerrors defines the error kinds surfaced by the SDK.
//
// Every error is an *Error carrying an ErrorType. Types fall into three
// categories:
//   - Config (MissingCredentials, UnknownRegion): fatal to initialization and
//     returned synchronously from the constructor
//   - Registration (Network, RejectedByServer): transition registration state
//     and are delivered to the observer
//   - Location (PermissionDenied): skip the location report and are delivered
//     to the observer
//
// None of them are retried by the SDK. Use errors.Is with the Err* sentinels
// or the Is* helpers to inspect them.
package sdkerrors

// Package location implements the dynamic location tracking policy.
//
// The backend issues a DynamicConfig (enabled flag, minimum interval and
// minimum distance) in its registration responses. Policy.ShouldReport gates
// every candidate location against that config and the last report;
// Policy.RecordReport stores the new last report date and location in a
// single store transaction so the two can never disagree.
//
// Location permission lives with the OS. The host implements Provider and
// CheckPermission turns a missing permission into
// LocationError.PermissionDenied.
package location

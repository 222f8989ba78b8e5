// Package backend is the HTTP client for the push backend.
//
// Requests carry the project credentials both as headers and, for device
// calls, in the JSON body:
//
//	POST /v1/projects/{projectId}/devices                      register
//	PUT  /v1/projects/{projectId}/devices/{deviceId}           update
//	POST /v1/projects/{projectId}/devices/{deviceId}/locations location report
//	GET  /v1/health                                            health
//
// Every response is a JSON envelope:
//
//	{"success": true, "data": {...}}
//	{"success": false, "error": {"code": "...", "message": "..."}}
//
// Transport failures become RegistrationError.Network; a non-2xx status, an
// unparseable body or success=false become RegistrationError.RejectedByServer.
// The client performs exactly one attempt per call.
package backend

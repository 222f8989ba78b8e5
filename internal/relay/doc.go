// Package relay receives development pushes over a websocket.
//
// Development backends have no APNs or FCM credentials. Instead they hold a
// websocket per device at /v1/projects/{projectId}/devices/{deviceId}/push and
// write each push as a JSON Frame; the client answers every frame with an Ack
// carrying the fetch result.
package relay

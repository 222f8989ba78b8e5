// Package server hosts a development push backend.
//
// The server wraps any http.Handler (normally the mock backend from
// internal/mockapi) and adds what a device on the local network needs to
// reach it: an optional HTTPS listener with an in-memory self-signed
// certificate, an mDNS advertisement that internal/discovery can find, and
// graceful shutdown on SIGINT or SIGTERM.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{
//	    Port:         8443,
//	    GenerateCert: true,
//	    Advertise:    true,
//	    ProjectID:    "p1",
//	}, mockapi.New("p1", "k1"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until shutdown signal or error
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # TLS
//
// Generated certificates cover localhost, 127.0.0.1, ::1 and the configured
// host. Clients must skip verification or trust the certificate explicitly.
//
// # Graceful Shutdown
//
// On shutdown the mDNS advertisement is withdrawn first, then the HTTP server
// stops accepting connections and waits up to ten seconds for in-flight
// requests. Hijacked websocket relay connections are not waited for.
package server

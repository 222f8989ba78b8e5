// Package discovery finds development push backends with mDNS.
//
// A backend started with `localzpush mock-backend --advertise` registers the
// "_localzpush._tcp" service. TXT records carry the project it serves
// (projectId=...), its region code and whether it speaks TLS (tls=1).
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	scanner.ProjectID = "my-project"
//	b, err := scanner.Find(ctx)
//	if err != nil {
//	    return err
//	}
//	client := backend.NewClient(b.BaseURL(), projectID, projectKey)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Backends must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery

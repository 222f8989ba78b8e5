package discovery

import "testing"

func TestBackend_BaseURL(t *testing.T) {
	tests := []struct {
		name     string
		backend  *Backend
		expected string
	}{
		{
			name:     "plain http",
			backend:  &Backend{IP: "192.168.4.16", Port: 8080},
			expected: "http://192.168.4.16:8080",
		},
		{
			name:     "tls advertised",
			backend:  &Backend{IP: "10.0.0.5", Port: 443, Metadata: map[string]string{TxtTLS: "1"}},
			expected: "https://10.0.0.5:443",
		},
		{
			name:     "IPv6 is bracketed",
			backend:  &Backend{IP: "fe80::1", Port: 8080},
			expected: "http://[fe80::1]:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.backend.BaseURL(); got != tt.expected {
				t.Errorf("BaseURL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBackend_String(t *testing.T) {
	b := &Backend{Instance: "alice-laptop", Hostname: "alice-laptop.local.", IP: "192.168.4.16", Port: 8080}
	want := `Push backend "alice-laptop" (alice-laptop.local.) at 192.168.4.16:8080`
	if got := b.String(); got != want {
		t.Errorf("String() = %v, want %v", got, want)
	}
}

func TestBackend_GetMetadata(t *testing.T) {
	b := &Backend{}
	if got := b.GetMetadata(TxtProjectID); got != "" {
		t.Errorf("GetMetadata() on nil map = %q, want empty", got)
	}
	b.Metadata = map[string]string{TxtProjectID: "p1"}
	if got := b.ProjectID(); got != "p1" {
		t.Errorf("ProjectID() = %q, want p1", got)
	}
}

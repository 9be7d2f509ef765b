package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trust      bool
		want       string
	}{
		{name: "ipv4 with port", remoteAddr: "192.0.2.1:12345", want: "192.0.2.1"},
		{name: "ipv6 with port", remoteAddr: "[::1]:12345", want: "::1"},
		{name: "no port", remoteAddr: "192.0.2.1", want: "192.0.2.1"},
		{
			name:       "headers ignored when untrusted",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7", "X-Real-IP": "203.0.113.9"},
			want:       "10.0.0.1",
		},
		{
			name:       "first forwarded hop",
			remoteAddr: "10.0.0.3:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1, 10.0.0.2"},
			trust:      true,
			want:       "198.51.100.7",
		},
		{
			name:       "real ip when no forwarded header",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			trust:      true,
			want:       "203.0.113.9",
		},
		{
			name:       "forwarded wins over real ip",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7", "X-Real-IP": "203.0.113.9"},
			trust:      true,
			want:       "198.51.100.7",
		},
		{
			name:       "garbage forwarded header skipped",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "203.0.113.9"},
			trust:      true,
			want:       "203.0.113.9",
		},
		{
			name:       "garbage everywhere",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "<script>", "X-Real-IP": "not-an-ip"},
			trust:      true,
			want:       "10.0.0.1",
		},
		{
			name:       "mapped ipv4 shares a bucket with plain ipv4",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "::ffff:198.51.100.7"},
			trust:      true,
			want:       "198.51.100.7",
		},
		{name: "trusted without headers", remoteAddr: "10.0.0.1:1234", trust: true, want: "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r, tt.trust); got != tt.want {
				t.Errorf("ClientIP(trust=%v) = %q, want %q", tt.trust, got, tt.want)
			}
		})
	}
}

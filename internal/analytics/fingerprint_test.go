package analytics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("203.0.113.9", "curl/8.0")
	b := Fingerprint("203.0.113.9", "curl/8.0")
	if a != b {
		t.Fatalf("fingerprint must be deterministic: %q != %q", a, b)
	}
	c := Fingerprint("203.0.113.9", "curl/8.1")
	if a == c {
		t.Fatal("fingerprint must differ when user agent differs")
	}
}

func TestFingerprintCaseInsensitiveIP(t *testing.T) {
	a := Fingerprint("2001:DB8::1", "ua")
	b := Fingerprint("2001:db8::1", "ua")
	if a != b {
		t.Fatal("fingerprint must lowercase the IP token before hashing")
	}
}

func TestExtractIPPriority(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(r *http.Request)
		expect string
	}{
		{
			name: "x-real-ip wins",
			setup: func(r *http.Request) {
				r.Header.Set("X-Real-IP", "203.0.113.9")
				r.Header.Set("X-Forwarded-For", "198.51.100.1")
			},
			expect: "203.0.113.9",
		},
		{
			name: "forwarded-for first token",
			setup: func(r *http.Request) {
				r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
			},
			expect: "198.51.100.1",
		},
		{
			name: "forwarded-for rfc7239 for= form",
			setup: func(r *http.Request) {
				r.Header.Set("X-Forwarded-For", `for="[2001:db8::1]:1234"`)
			},
			expect: "2001:db8::1",
		},
		{
			name:   "no headers falls back to unknown",
			setup:  func(r *http.Request) {},
			expect: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			if got := ExtractIP(r); got != tt.expect {
				t.Errorf("ExtractIP() = %q, want %q", got, tt.expect)
			}
		})
	}
}

package lookup

import (
	"context"
	"net/http/httptest"
	"testing"
)

func TestClientAddress(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "socket peer only",
			remoteAddr: "203.0.113.1:51234",
			want:       "203.0.113.1:51234",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1"},
			want:       "203.0.113.1",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1, 10.0.0.2"},
			want:       "203.0.113.1",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string]string{"X-Real-IP": "203.0.113.7"},
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded-for wins over real-ip",
			remoteAddr: "10.0.0.2:80",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.1",
				"X-Real-IP":       "203.0.113.7",
			},
			want: "203.0.113.1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientAddress(r); got != tt.want {
				t.Errorf("ClientAddress = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHostResolver(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"203.0.113.1:51234", "203.0.113.1"},
		{"203.0.113.1", "203.0.113.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"example.com:80", "example.com"},
	}
	for _, tt := range tests {
		got, err := HostResolver{}.Resolve(context.Background(), tt.raw)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestAnnotations(t *testing.T) {
	d := AddressDetails{
		IP:      "203.0.113.1",
		Country: "DE",
		VPN:     true,
	}
	ann := d.Annotations()
	if ann["ip"] != "203.0.113.1" || ann["country"] != "DE" || ann["vpn"] != "true" {
		t.Errorf("Annotations = %v", ann)
	}
	if _, ok := ann["city"]; ok {
		t.Error("empty field present in annotations")
	}
	if _, ok := ann["proxy"]; ok {
		t.Error("false flag present in annotations")
	}
}

func TestAnonymized(t *testing.T) {
	if (AddressDetails{}).Anonymized() {
		t.Error("zero details reported as anonymized")
	}
	for _, d := range []AddressDetails{{VPN: true}, {Proxy: true}, {Tor: true}} {
		if !d.Anonymized() {
			t.Errorf("details %+v not reported as anonymized", d)
		}
	}
}

func TestAcceptAllVerifier(t *testing.T) {
	v := AcceptAllVerifier{}
	if ok, _ := v.Verify(context.Background(), "any-token"); !ok {
		t.Error("non-empty token rejected")
	}
	if ok, _ := v.Verify(context.Background(), ""); ok {
		t.Error("empty token accepted")
	}
}

// Package lookup defines the contracts for the external collaborators the
// session core consults: address resolution, address enrichment, bot
// classification and challenge verification. The real vendor-backed
// implementations live outside this repository; the defaults here are
// permissive so the core runs standalone.
package lookup

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// AddressDetails is best-effort enrichment for a client address. A failed
// lookup yields the zero value; callers must treat every field as
// optional.
type AddressDetails struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	Country  string `json:"country"`
	City     string `json:"city"`
	Region   string `json:"region"`
	ISP      string `json:"isp"`
	VPN      bool   `json:"vpn"`
	Proxy    bool   `json:"proxy"`
	Tor      bool   `json:"tor"`
}

// Annotations flattens the details into the open key/value form the
// registry stores. Empty fields are omitted.
func (d AddressDetails) Annotations() map[string]string {
	ann := make(map[string]string)
	put := func(k, v string) {
		if v != "" {
			ann[k] = v
		}
	}
	put("ip", d.IP)
	put("hostname", d.Hostname)
	put("country", d.Country)
	put("city", d.City)
	put("region", d.Region)
	put("isp", d.ISP)
	if d.VPN {
		ann["vpn"] = "true"
	}
	if d.Proxy {
		ann["proxy"] = "true"
	}
	if d.Tor {
		ann["tor"] = "true"
	}
	return ann
}

// Anonymized reports whether the address hides its origin (VPN, proxy or
// Tor exit).
func (d AddressDetails) Anonymized() bool {
	return d.VPN || d.Proxy || d.Tor
}

// Classification is the verdict of an external bot heuristic.
type Classification struct {
	Bot        bool    `json:"bot"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// AddressResolver normalizes a raw transport address into the client's
// effective public address.
type AddressResolver interface {
	Resolve(ctx context.Context, raw string) (string, error)
}

// DetailSource enriches an address. Failures must not block session
// creation; callers fall back to empty details.
type DetailSource interface {
	Details(ctx context.Context, address string) (AddressDetails, error)
}

// Classifier decides whether an inbound request is automated. A positive
// verdict rejects the connection before any session exists.
type Classifier interface {
	Classify(ctx context.Context, r *http.Request) (Classification, error)
}

// Verifier checks an externally issued challenge response. Success is
// what promotes a Pending session to Verified.
type Verifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// ClientAddress extracts the raw client address from a request, honoring
// the usual proxy headers before falling back to the socket peer.
func ClientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	return r.RemoteAddr
}

// HostResolver strips any port from the raw address and returns the host
// part unchanged. It is the default AddressResolver.
type HostResolver struct{}

func (HostResolver) Resolve(_ context.Context, raw string) (string, error) {
	if host, _, err := net.SplitHostPort(raw); err == nil {
		return host, nil
	}
	return raw, nil
}

// EmptyDetails is a DetailSource that knows nothing.
type EmptyDetails struct{}

func (EmptyDetails) Details(_ context.Context, address string) (AddressDetails, error) {
	return AddressDetails{IP: address}, nil
}

// PermissiveClassifier never flags anything as a bot.
type PermissiveClassifier struct{}

func (PermissiveClassifier) Classify(context.Context, *http.Request) (Classification, error) {
	return Classification{}, nil
}

// AcceptAllVerifier treats any non-empty challenge token as valid. It
// stands in for the real challenge vendor in development and tests.
type AcceptAllVerifier struct{}

func (AcceptAllVerifier) Verify(_ context.Context, token string) (bool, error) {
	return token != "", nil
}

package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIPExtractor extracts the real client address from requests,
// honoring X-Forwarded-For only when the direct peer is a trusted
// proxy. With no trusted proxies configured, only RemoteAddr is used
// so header spoofing cannot influence rate limiting or blocking.
type ClientIPExtractor struct {
	trustedCIDRs []*net.IPNet
}

// NewClientIPExtractor creates a new extractor with the given trusted
// proxy CIDRs. Single addresses are accepted, invalid entries are
// skipped.
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	cidrs := make([]*net.IPNet, 0, len(trustedProxies))
	for _, proxy := range trustedProxies {
		_, cidr, err := net.ParseCIDR(proxy)
		if err != nil {
			ip := net.ParseIP(proxy)
			if ip == nil {
				continue
			}
			cidr = singleIPToCIDR(ip)
		}
		cidrs = append(cidrs, cidr)
	}
	return &ClientIPExtractor{trustedCIDRs: cidrs}
}

// singleIPToCIDR converts a single IP address to a /32 or /128 CIDR.
func singleIPToCIDR(ip net.IP) *net.IPNet {
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{
		IP:   ip,
		Mask: net.CIDRMask(bits, bits),
	}
}

// Extract returns the client address for the request. When the peer is
// a trusted proxy, X-Forwarded-For is walked right to left and the
// first untrusted address wins.
func (e *ClientIPExtractor) Extract(r *http.Request) string {
	remoteIP := stripPort(r.RemoteAddr)

	if len(e.trustedCIDRs) == 0 {
		return remoteIP
	}
	if !e.isTrusted(remoteIP) {
		return remoteIP
	}

	xff := r.Header.Get(HeaderXForwardedFor)
	if xff == "" {
		return remoteIP
	}

	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !e.isTrusted(hop) {
			return hop
		}
	}

	return remoteIP
}

// isTrusted checks if the given address is within any trusted CIDR.
func (e *ClientIPExtractor) isTrusted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range e.trustedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// stripPort removes the port from an address string.
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

//nolint:gochecknoglobals // Package-level extractor set once at startup
var globalExtractor = NewClientIPExtractor(nil)

// SetGlobalIPExtractor sets the package-level extractor used by all
// middleware. Call once during startup before serving requests.
func SetGlobalIPExtractor(e *ClientIPExtractor) {
	if e != nil {
		globalExtractor = e
	}
}

// getClientIP extracts the client address using the global extractor.
func getClientIP(r *http.Request) string {
	return globalExtractor.Extract(r)
}

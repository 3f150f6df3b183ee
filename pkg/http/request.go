package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Security header names shared by handlers and middleware
const (
	HeaderAuthorization = "Authorization"
	HeaderSessionID     = "X-Session-Id"
	HeaderCSRFToken     = "X-CSRF-Token"
)

// IPConfig holds configuration for IP extraction and validation
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies

	prefixes []netip.Prefix
}

// NewIPConfig parses the trusted proxy CIDR ranges once; invalid ranges are skipped
func NewIPConfig(trustedProxies []string) *IPConfig {
	cfg := &IPConfig{TrustedProxies: trustedProxies}
	for _, cidr := range trustedProxies {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			continue
		}
		cfg.prefixes = append(cfg.prefixes, prefix.Masked())
	}
	return cfg
}

// ExtractClientIP extracts the real client IP address from the request.
// X-Forwarded-For and X-Real-IP are only honoured when the direct peer is a
// trusted proxy; otherwise RemoteAddr is used.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if config != nil && config.isTrustedProxy(remoteIP) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, ip := range strings.Split(xff, ",") {
				ip = strings.TrimSpace(ip)
				if isValidIP(ip) {
					return ip
				}
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && isValidIP(xri) {
			return xri
		}
	}

	return remoteIP
}

// SessionID returns the X-Session-Id header value
func SessionID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderSessionID))
}

// CSRFToken returns the X-CSRF-Token header value
func CSRFToken(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderCSRFToken))
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr != "" {
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		return r.RemoteAddr
	}
	return "unknown"
}

func (c *IPConfig) isTrustedProxy(ip string) bool {
	// configs built as struct literals have not been parsed yet
	prefixes := c.prefixes
	if prefixes == nil && len(c.TrustedProxies) > 0 {
		prefixes = NewIPConfig(c.TrustedProxies).prefixes
	}
	if len(prefixes) == 0 {
		return false
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, prefix := range prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// isValidIP checks if a string is a valid IPv4 or IPv6 address
func isValidIP(ip string) bool {
	_, err := netip.ParseAddr(ip)
	return err == nil
}

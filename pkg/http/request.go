package http

import (
	"net"
	"net/http"
	"strings"
)

// Headers excluded from audit snapshots: credentials and cookies never land
// in the audit table.
var sensitiveHeaders = map[string]bool{
	"Authorization":       true,
	"Cookie":              true,
	"Set-Cookie":          true,
	"Proxy-Authorization": true,
	"X-Api-Key":           true,
}

// SnapshotHeaders captures the subset of inbound headers recorded on audit
// entries. Multi-valued headers are joined with a comma, matching the wire
// form.
func SnapshotHeaders(r *http.Request) map[string]interface{} {
	snapshot := make(map[string]interface{}, len(r.Header))
	for name, values := range r.Header {
		if sensitiveHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		snapshot[name] = strings.Join(values, ", ")
	}
	snapshot["Remote-Addr"] = getRemoteAddr(r)
	return snapshot
}

// ExtractClientIP extracts the real client IP from the request. X-Forwarded-For
// and X-Real-IP are honored only when the request arrives from a trusted
// proxy, preventing spoofing via header manipulation.
func ExtractClientIP(r *http.Request, trustedProxies []string) string {
	remoteIP := getRemoteAddr(r)

	if isTrustedProxy(remoteIP, trustedProxies) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, ip := range strings.Split(xff, ",") {
				ip = strings.TrimSpace(ip)
				if net.ParseIP(ip) != nil {
					return ip
				}
			}
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if net.ParseIP(xri) != nil {
				return xri
			}
		}
	}

	return remoteIP
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

// isTrustedProxy checks if an IP address is within any of the trusted proxy CIDR ranges
func isTrustedProxy(ip string, trustedProxies []string) bool {
	if len(trustedProxies) == 0 {
		return false
	}

	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue // Skip invalid CIDR ranges
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}

	return false
}

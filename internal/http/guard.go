package http

import (
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
)

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}

// sameOriginOnly keeps browsers on other sites away from the API. Every
// mutating request must carry a JSON content type, which a page cannot send
// cross-origin without a preflight, and must not come from another origin.
// With loopback set the Host header must name the loopback interface too,
// so a rebound DNS name cannot reach the API.
func sameOriginOnly(loopback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if loopback && !isLoopback(hostOnly(r.Host)) {
				writeError(w, fmt.Errorf("%w: host %q", errForbidden, r.Host))
				return
			}
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if site := r.Header.Get("Sec-Fetch-Site"); site != "" && site != "same-origin" && site != "none" {
				writeError(w, fmt.Errorf("%w: %s request", errForbidden, site))
				return
			}
			if origin := r.Header.Get("Origin"); origin != "" {
				u, err := url.Parse(origin)
				if err != nil || u.Host == "" || !strings.EqualFold(u.Host, r.Host) {
					writeError(w, fmt.Errorf("%w: origin %q", errForbidden, origin))
					return
				}
			}
			mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mt != "application/json" {
				writeError(w, errNotJSON)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"strings"
	"sync/atomic"
)

type originRules struct {
	any         bool
	exact       map[string]struct{}
	suffixes    []string // ".vercel.app" for "https://*.vercel.app"
	schemes     []string
	credentials bool
}

// OriginPolicy is a CORS allow-list that can be swapped at runtime.
// Entries are "*", an exact origin, or a scheme with a leading wildcard
// label such as "https://*.example.com".
type OriginPolicy struct {
	rules atomic.Pointer[originRules]
}

// NewOriginPolicy compiles origins.
func NewOriginPolicy(origins []string, allowCredentials bool) *OriginPolicy {
	p := &OriginPolicy{}
	p.Update(origins, allowCredentials)
	return p
}

// Update replaces the allow-list.
func (p *OriginPolicy) Update(origins []string, allowCredentials bool) {
	rules := &originRules{exact: make(map[string]struct{}, len(origins)), credentials: allowCredentials}
	for _, o := range origins {
		o = strings.TrimSuffix(strings.TrimSpace(o), "/")
		switch {
		case o == "":
		case o == "*":
			rules.any = true
		case strings.Contains(o, "://*."):
			scheme, host, _ := strings.Cut(o, "://*")
			rules.schemes = append(rules.schemes, scheme+"://")
			rules.suffixes = append(rules.suffixes, host)
		default:
			rules.exact[o] = struct{}{}
		}
	}
	p.rules.Store(rules)
}

// Allowed reports whether origin may make credentialed cross-origin calls.
func (p *OriginPolicy) Allowed(origin string) bool {
	r := p.rules.Load()
	if origin == "" || r == nil {
		return false
	}
	if r.any {
		return true
	}
	if _, ok := r.exact[origin]; ok {
		return true
	}
	for i, suffix := range r.suffixes {
		host, ok := strings.CutPrefix(origin, r.schemes[i])
		if ok && strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			return true
		}
	}
	return false
}

func (p *OriginPolicy) credentials() bool {
	r := p.rules.Load()
	return r != nil && r.credentials
}

// CORS sets cross-origin headers for allowed origins and answers
// preflight requests with 204.
func CORS(policy *OriginPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			if policy.Allowed(origin) {
				h.Set("Access-Control-Allow-Origin", origin)
				if policy.credentials() {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Cache-Control, Last-Event-ID, X-Request-ID, Authorization")
			h.Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Retry-After, X-Request-ID")
			h.Set("Access-Control-Max-Age", "600")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Allow", "GET, POST, OPTIONS")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package model

import "strings"

// Cookie is a browser cookie persisted so the portal login survives a restart.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Path     string `json:"path,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Expires  int64  `json:"expires,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HttpOnly bool   `json:"httpOnly,omitempty"`
	SameSite string `json:"sameSite,omitempty"`
}

// Expired reports whether the cookie expired before nowMs. Session cookies never expire here.
func (c Cookie) Expired(nowMs int64) bool {
	return c.Expires > 0 && c.Expires <= nowMs
}

// MatchesHost reports whether the cookie domain covers host.
func (c Cookie) MatchesHost(host string) bool {
	domain := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Domain)), ".")
	host = strings.ToLower(strings.TrimSpace(host))
	if domain == "" || host == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// NormalizeSameSite maps any spelling onto lax/strict/none/default.
func NormalizeSameSite(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lax":
		return "lax"
	case "strict":
		return "strict"
	case "none":
		return "none"
	default:
		return "default"
	}
}

// FilterLiveCookies drops expired cookies and those outside host.
func FilterLiveCookies(in []Cookie, host string, nowMs int64) []Cookie {
	out := make([]Cookie, 0, len(in))
	for _, c := range in {
		if c.Expired(nowMs) || !c.MatchesHost(host) {
			continue
		}
		out = append(out, c)
	}
	return out
}

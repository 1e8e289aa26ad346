package browser

import (
	"context"
	"math"
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"regsniper/internal/model"
)

// CookieStore persists the portal cookies between runs.
type CookieStore interface {
	LoadCookies(ctx context.Context) ([]model.Cookie, error)
	SaveCookies(ctx context.Context, cookies []model.Cookie) error
}

func fromNetworkCookies(in []*proto.NetworkCookie) []model.Cookie {
	out := make([]model.Cookie, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		var expires int64
		if !c.Session && c.Expires > 0 {
			expires = int64(math.Round(float64(c.Expires) * 1000))
		}
		out = append(out, model.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  expires,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
			SameSite: model.NormalizeSameSite(string(c.SameSite)),
		})
	}
	return out
}

func toCookieParams(in []model.Cookie) []*proto.NetworkCookieParam {
	out := make([]*proto.NetworkCookieParam, 0, len(in))
	for _, c := range in {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(float64(c.Expires) / 1000)
		}
		switch model.NormalizeSameSite(c.SameSite) {
		case "lax":
			p.SameSite = proto.NetworkCookieSameSiteLax
		case "strict":
			p.SameSite = proto.NetworkCookieSameSiteStrict
		case "none":
			p.SameSite = proto.NetworkCookieSameSiteNone
		}
		if strings.TrimSpace(p.Path) == "" {
			p.Path = "/"
		}
		out = append(out, p)
	}
	return out
}

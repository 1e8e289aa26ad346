package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regsniper/internal/model"
)

func TestFromNetworkCookies(t *testing.T) {
	got := fromNetworkCookies([]*proto.NetworkCookie{
		{Name: "SESSID", Value: "abc", Domain: "horizon.mcgill.ca", Path: "/", Expires: 1800000000.5, HTTPOnly: true, Secure: true, SameSite: proto.NetworkCookieSameSiteLax},
		{Name: "tmp", Value: "1", Domain: ".mcgill.ca", Expires: -1, Session: true},
		nil,
	})
	require.Len(t, got, 2)
	assert.Equal(t, int64(1800000000500), got[0].Expires)
	assert.True(t, got[0].HttpOnly)
	assert.Equal(t, "lax", got[0].SameSite)
	assert.Zero(t, got[1].Expires)
	assert.Equal(t, "default", got[1].SameSite)
}

func TestToCookieParams(t *testing.T) {
	params := toCookieParams([]model.Cookie{
		{Name: "SESSID", Value: "abc", Domain: "horizon.mcgill.ca", Expires: 1800000000500, SameSite: "strict"},
		{Name: "tmp", Value: "1", Domain: ".mcgill.ca", Path: "/pban1"},
	})
	require.Len(t, params, 2)
	assert.Equal(t, "/", params[0].Path)
	assert.InDelta(t, 1800000000.5, float64(params[0].Expires), 0.001)
	assert.Equal(t, proto.NetworkCookieSameSiteStrict, params[0].SameSite)
	assert.Equal(t, "/pban1", params[1].Path)
	assert.Zero(t, params[1].Expires)
	assert.Empty(t, params[1].SameSite)
}

func TestSessionPageWithoutTab(t *testing.T) {
	p := NewSession(SessionOptions{}).Page()
	_, err := p.URL(t.Context())
	assert.ErrorIs(t, err, ErrNoTab)
}

package mockportal

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, srv *httptest.Server, form url.Values) string {
	t.Helper()
	resp, err := http.PostForm(srv.URL+SubmitPath, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestRegistrationPageHasContract(t *testing.T) {
	srv := httptest.NewServer(New(Options{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	body := string(b)

	assert.Contains(t, resp.Request.URL.Path, "P_AltPin")
	assert.Contains(t, body, `id="crn_id1"`)
	assert.Contains(t, body, `id="crn_id10"`)
	assert.Contains(t, body, `value="Submit Changes"`)
	assert.NotContains(t, body, "datadisplaytable")
}

func TestOpenSectionRegisters(t *testing.T) {
	p := New(Options{Full: []string{"67890"}})
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	body := post(t, srv, url.Values{
		"CRN_IN":  {"12345", "67890", ""},
		"RSTS_IN": {"", "", ""},
		"REG_BTN": {"Submit Changes"},
	})
	assert.Equal(t, []string{"12345"}, p.Registered())
	assert.Contains(t, body, `class="datadisplaytable"`)
	assert.Equal(t, 1, strings.Count(body, `<select name="RSTS_IN">`))
}

func TestWaitlistResubmission(t *testing.T) {
	p := New(Options{Full: []string{"67890"}})
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	post(t, srv, url.Values{"CRN_IN": {"67890"}, "RSTS_IN": {""}, "REG_BTN": {"Submit Changes"}})
	post(t, srv, url.Values{"CRN_IN": {"67890"}, "RSTS_IN": {"LW"}, "REG_BTN": {"Submit Changes"}})

	assert.Equal(t, []string{"67890"}, p.Waitlisted())
	assert.Empty(t, p.Registered())
}

func TestFullSectionOpensAfterAttempts(t *testing.T) {
	p := New(Options{Full: []string{"67890"}, OpenAfter: 2})
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	form := url.Values{"CRN_IN": {"67890"}, "RSTS_IN": {""}, "REG_BTN": {"Submit Changes"}}
	post(t, srv, form)
	assert.Empty(t, p.Registered())
	post(t, srv, form)
	assert.Equal(t, []string{"67890"}, p.Registered())
}

func TestClassSearchDoesNotSubmit(t *testing.T) {
	p := New(Options{})
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	post(t, srv, url.Values{"CRN_IN": {"12345"}, "REG_BTN": {"Class Search"}})
	assert.Empty(t, p.Registered())
}

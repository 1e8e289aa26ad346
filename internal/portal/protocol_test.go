package portal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regsniper/internal/portal"
	"regsniper/internal/portal/fakepage"
)

const regURL = "https://horizon.mcgill.ca/pban1/bwckcoms.P_Regs"

func TestFillIdentifiersMoreIdsThanFields(t *testing.T) {
	c := portal.DefaultContract()
	p := fakepage.Registration(c, regURL, 3, true)

	n, err := c.FillIdentifiers(context.Background(), p, []string{"1", "2", "3", "4", "5"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	fields := fakepage.Fields(p, c)
	assert.Equal(t, "1", fields[0].Value())
	assert.Equal(t, "2", fields[1].Value())
	assert.Equal(t, "3", fields[2].Value())
}

func TestFillIdentifiersMoreFieldsThanIds(t *testing.T) {
	c := portal.DefaultContract()
	p := fakepage.Registration(c, regURL, 5, true)

	n, err := c.FillIdentifiers(context.Background(), p, []string{"1", "2", "3"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	fields := fakepage.Fields(p, c)
	assert.Equal(t, []string{"1", "2", "3", "", ""}, []string{
		fields[0].Value(), fields[1].Value(), fields[2].Value(), fields[3].Value(), fields[4].Value(),
	})
	assert.Equal(t, 3, p.Mutations())
}

func TestFindCommitByExactLabel(t *testing.T) {
	c := portal.DefaultContract()
	p := fakepage.Registration(c, regURL, 1, true)

	el, err := c.FindCommit(context.Background(), p)
	require.NoError(t, err)
	v, ok, err := el.Attribute(context.Background(), "value")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Submit Changes", v)
}

func TestFindCommitMissing(t *testing.T) {
	c := portal.DefaultContract()
	p := fakepage.Registration(c, regURL, 1, false)
	p.Add(c.SubmitSelector(), fakepage.Submit("submit changes"))

	_, err := c.FindCommit(context.Background(), p)
	assert.ErrorIs(t, err, portal.ErrElementNotFound)
}

func TestWaitResultsResolvesAfterMutation(t *testing.T) {
	c := portal.DefaultContract()
	p := fakepage.New(regURL)

	done := make(chan error, 1)
	go func() { done <- c.WaitResults(context.Background(), p, 0) }()

	time.Sleep(10 * time.Millisecond)
	fakepage.AddResults(p, c)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not resolve")
	}
}

func TestWaitResultsTimeout(t *testing.T) {
	c := portal.DefaultContract()
	p := fakepage.New(regURL)

	err := c.WaitResults(context.Background(), p, 20*time.Millisecond)
	assert.ErrorIs(t, err, portal.ErrElementNotFound)
}

func TestWaitResultsCancelled(t *testing.T) {
	c := portal.DefaultContract()
	p := fakepage.New(regURL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.WaitResults(ctx, p, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectWaitlistSelectsEveryEligible(t *testing.T) {
	c := portal.DefaultContract()
	p := fakepage.New(regURL)
	a := fakepage.Select(c.WaitlistFieldName, "", "DW", "LW")
	b := fakepage.Select(c.WaitlistFieldName, "", "DW")
	d := fakepage.Select(c.WaitlistFieldName, "LW")
	fakepage.AddResults(p, c, a, b, d)

	n, err := c.SelectWaitlist(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "LW", a.Value())
	assert.Equal(t, "", b.Value())
	assert.Equal(t, "LW", d.Value())
}

func TestContractPages(t *testing.T) {
	c := portal.DefaultContract()

	assert.True(t, c.IsRegistrationPage("https://horizon.mcgill.ca/pban1/bwskfreg.P_AltPin"))
	assert.True(t, c.IsRegistrationPage(regURL))
	assert.False(t, c.IsRegistrationPage("https://horizon.mcgill.ca/pban1/twbkwbis.P_GenMenu"))

	assert.True(t, c.IsPortalHost("https://horizon.mcgill.ca/pban1/x"))
	assert.True(t, c.IsPortalHost("https://a.horizon.mcgill.ca/"))
	assert.False(t, c.IsPortalHost("https://evilhorizon.mcgill.ca.example.com/"))
	assert.False(t, c.IsPortalHost(""))

	assert.Equal(t, `input[id^="crn_id"]`, c.IdentifierFieldSelector())
	assert.Equal(t, `select[name="RSTS_IN"]`, c.WaitlistSelector())
}

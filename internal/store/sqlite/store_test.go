package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regsniper/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKVGetMissingKeys(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Get(context.Background(), model.StateKeys)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKVSetOverwritesOnlyGivenKeys(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Set(ctx, map[string]any{
		model.KeyRunning:           true,
		model.KeyTargetIdentifiers: []string{"12345", "67890"},
		model.KeyAttemptCount:      4,
	}))
	require.NoError(t, s.Set(ctx, map[string]any{model.KeyAttemptCount: 5}))

	got, err := s.Get(ctx, model.StateKeys)
	require.NoError(t, err)
	require.Len(t, got, 3)

	var ids []string
	require.NoError(t, json.Unmarshal(got[model.KeyTargetIdentifiers], &ids))
	assert.Equal(t, []string{"12345", "67890"}, ids)
	assert.JSONEq(t, "5", string(got[model.KeyAttemptCount]))
	assert.JSONEq(t, "true", string(got[model.KeyRunning]))
}

func TestKVSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, map[string]any{model.KeyWaitlistSubmittedPending: true}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, []string{model.KeyWaitlistSubmittedPending})
	require.NoError(t, err)
	assert.JSONEq(t, "true", string(got[model.KeyWaitlistSubmittedPending]))
}

func TestEmailSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, ok, err := s.GetEmailSettings(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	in := model.EmailSettings{Enabled: true, Email: "me@example.com", AuthCode: "code"}
	_, err = s.UpsertEmailSettings(ctx, in)
	require.NoError(t, err)

	out, ok, err := s.GetEmailSettings(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, out)
}

func TestCookiesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	got, err := s.LoadCookies(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	cookies := []model.Cookie{{Name: "SESSID", Value: "abc", Domain: ".mcgill.ca", Path: "/", Secure: true}}
	require.NoError(t, s.SaveCookies(ctx, cookies))

	got, err = s.LoadCookies(ctx)
	require.NoError(t, err)
	assert.Equal(t, cookies, got)
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open(context.Background(), memoryPath)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Set(context.Background(), map[string]any{"k": 1}))
}

package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foozao/lao-cinema-sub007/internal/identity"
	"github.com/foozao/lao-cinema-sub007/internal/rental"
	"github.com/foozao/lao-cinema-sub007/internal/store/memory"
	"github.com/foozao/lao-cinema-sub007/pkg/logging"
)

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New()
	now := time.Now()
	st.PutSession("expired", "u-1", now.Add(-time.Hour))
	st.PutSession("live", "u-1", now.Add(time.Hour))

	old := now.Add(-200 * 24 * time.Hour)
	st.PutRental(rental.Rental{
		ID:            "r-old",
		Owner:         rental.AnonymousOwner("device-old00000"),
		Target:        rental.MovieTarget("m-1"),
		PurchasedAt:   old,
		ExpiresAt:     old.Add(48 * time.Hour),
		TransactionID: "demo_old",
		Currency:      "LAK",
	})
	return st
}

func runCmd(t *testing.T, st *memory.Store, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	log := logging.NewLoggerWithWriter(&out, "janitor", "info")
	closed := false
	open := func(string) (Backend, func() error, error) {
		return st, func() error { closed = true; return nil }, nil
	}
	cmd := newRootCmd(log, open)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		assert.True(t, closed, "store released after the command")
	}
	return out.String(), err
}

func TestSessionsCommand(t *testing.T) {
	st := seeded(t)
	out, err := runCmd(t, st, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, `"deleted":1`)

	_, err = st.FindSession(context.Background(), identity.HashToken("expired"))
	assert.ErrorIs(t, err, identity.ErrNotFound)
	_, err = st.FindSession(context.Background(), identity.HashToken("live"))
	assert.NoError(t, err)
}

func TestAnonymousCommand(t *testing.T) {
	st := seeded(t)
	out, err := runCmd(t, st, "anonymous", "--older-than", "30d")
	require.NoError(t, err)
	assert.Contains(t, out, `"rentals":1`)

	rs, err := st.ListByOwner(context.Background(), rental.AnonymousOwner("device-old00000"))
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func TestAllCommand(t *testing.T) {
	st := seeded(t)
	out, err := runCmd(t, st, "all")
	require.NoError(t, err)
	assert.Contains(t, out, "expired sessions removed")
	assert.Contains(t, out, "stale anonymous data removed")
}

func TestAnonymousCommand_RejectsBadAge(t *testing.T) {
	_, err := runCmd(t, seeded(t), "anonymous", "--older-than", "soon")
	require.Error(t, err)
}

func TestConnectFailureRedactsPassword(t *testing.T) {
	cmd := newRootCmd(logging.NewLoggerWithWriter(&bytes.Buffer{}, "janitor", "info"),
		func(string) (Backend, func() error, error) { return nil, nil, errors.New("refused") })
	cmd.SetArgs([]string{"sessions", "--database-url", "postgres://app:hunter2@db:5432/laocinema"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"90d", 90 * 24 * time.Hour, true},
		{"720h", 720 * time.Hour, true},
		{"0d", 0, false},
		{"-1h", 0, false},
		{"x", 0, false},
	}
	for _, tt := range tests {
		got, err := parseAge(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

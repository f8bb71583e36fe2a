package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/last-life-backend/internal/engine"
	"github.com/DoyleJ11/last-life-backend/internal/store"
)

type fixedCodes struct {
	codes []string
	err   error
}

func (f fixedCodes) ActiveCodes(context.Context) ([]string, error) { return f.codes, f.err }

func seed(t *testing.T, st store.Store, code string, created time.Time) {
	t.Helper()
	require.NoError(t, st.CreateLobby(context.Background(), store.LobbyRecord{
		Code:      code,
		Name:      code,
		Status:    engine.StatusWaiting,
		CreatedAt: created,
	}))
}

func TestCleanup_Run(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore()
	seed(t, mem, "OLD111", now.Add(-3*time.Hour))
	seed(t, mem, "LIVE22", now.Add(-3*time.Hour))
	seed(t, mem, "NEW333", now.Add(-time.Minute))

	c := &Cleanup{
		Store:  mem,
		Active: fixedCodes{codes: []string{"LIVE22"}},
		TTL:    2 * time.Hour,
		Log:    zaptest.NewLogger(t),
		Now:    func() time.Time { return now },
	}
	n, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok := mem.Lobby("OLD111")
	assert.False(t, ok)
	_, ok = mem.Lobby("LIVE22")
	assert.True(t, ok, "live sessions are never swept")
	_, ok = mem.Lobby("NEW333")
	assert.True(t, ok)
}

func TestCleanup_ActiveCodesError(t *testing.T) {
	mem := store.NewMemoryStore()
	seed(t, mem, "OLD111", time.Now().Add(-3*time.Hour))

	c := &Cleanup{Store: mem, Active: fixedCodes{err: errors.New("hub down")}, TTL: time.Hour}
	_, err := c.Run(context.Background())
	require.Error(t, err)

	_, ok := mem.Lobby("OLD111")
	assert.True(t, ok, "nothing is deleted without the live set")
}

func TestStart_RunsOnSchedule(t *testing.T) {
	mem := store.NewMemoryStore()
	seed(t, mem, "OLD111", time.Now().Add(-3*time.Hour))

	sched, err := Start(&Cleanup{
		Store:  mem,
		Active: fixedCodes{},
		TTL:    time.Hour,
		Log:    zaptest.NewLogger(t),
	}, 20*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Shutdown() })

	assert.Eventually(t, func() bool {
		_, ok := mem.Lobby("OLD111")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

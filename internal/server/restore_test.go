package server

import (
	"context"
	"testing"
	"time"

	"type-royale/internal/events"
	"type-royale/internal/game"
	"type-royale/internal/snippets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestoreCountdownsAfterRestart(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	pending, hostID, err := app.srv.createSession(ctx, createParams{PlayerName: "Alice"})
	require.NoError(t, err)
	_, err = app.srv.startSession(ctx, pending.ID, hostID)
	require.NoError(t, err)

	overdue, overdueHost, err := app.srv.createSession(ctx, createParams{PlayerName: "Bob"})
	require.NoError(t, err)
	_, err = app.srv.startSession(ctx, overdue.ID, overdueHost)
	require.NoError(t, err)

	// A second process sharing the store, started after the first one lost its timers.
	require.NoError(t, app.srv.Close())
	app.clock.Advance(time.Second)
	recorder := &recordingPublisher{}
	pool, err := snippets.Parse([]byte("snippets:\n  - race me\n"))
	require.NoError(t, err)
	restarted := New(testConfig(), Options{
		Store:    app.srv.store,
		Clock:    app.clock,
		Snippets: pool,
		Hasher:   plainHasher{},
		Events:   recorder,
	})
	t.Cleanup(func() {
		_ = restarted.Close()
	})

	sess, err := restarted.store.Get(ctx, overdue.ID)
	require.NoError(t, err)
	past := app.clock.Now().Add(-time.Millisecond)
	sess.CountdownEndsAt = &past
	require.NoError(t, restarted.store.Swap(ctx, sess, sess.Version))

	count, err := restarted.RestoreCountdowns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, restarted.pendingCountdowns())

	stored, err := restarted.store.Get(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatePlaying, stored.State)

	app.clock.Advance(3 * time.Second)
	require.Eventually(t, func() bool {
		stored, err := restarted.store.Get(ctx, pending.ID)
		return err == nil && stored.State == game.StatePlaying
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, recorder.count(events.RaceStarted))
}

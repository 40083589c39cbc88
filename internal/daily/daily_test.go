package daily

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/pebbles/internal/db"
	"github.com/robalobadob/pebbles/internal/game"
)

func TestParams_StableAndInRange(t *testing.T) {
	day := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	later := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)

	p := Params(day, "salt")
	assert.Equal(t, p, Params(later, "salt"))
	assert.Equal(t, game.Hard, p.Difficulty)
	assert.NoError(t, p.Validate())

	for i := 0; i < 365; i++ {
		q := Params(day.AddDate(0, 0, i), "salt")
		require.GreaterOrEqual(t, q.PebblesCount, uint32(minPebbles))
		require.LessOrEqual(t, q.PebblesCount, uint32(maxPebbles))
		require.GreaterOrEqual(t, q.MaxPebblesPerTurn, uint32(minPerTurn))
		require.LessOrEqual(t, q.MaxPebblesPerTurn, uint32(maxPerTurn))
	}
}

func TestRand_SameDaySameFlip(t *testing.T) {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	p := Params(day, "salt")

	a, _, err := game.New(Rand(day, "salt"), p)
	require.NoError(t, err)
	b, _, err := game.New(Rand(day.Add(5*time.Hour), "salt"), p)
	require.NoError(t, err)

	sa, _ := a.State()
	sb, _ := b.State()
	assert.Equal(t, sa, sb)
}

func TestStore_ResultsAndLeaderboard(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := db.Open(filepath.Join(t.TempDir(), "daily.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(sqlDB))

	s := NewStore(sqlDB)
	date := "2026-03-14"

	played, err := s.AlreadyPlayed(ctx, "alice", date)
	require.NoError(t, err)
	assert.False(t, played)

	require.NoError(t, s.InsertResult(ctx, Result{UserID: "alice", Date: date, Won: true, Turns: 5, ElapsedMs: 900}))
	require.NoError(t, s.InsertResult(ctx, Result{UserID: "bob", Date: date, Won: true, Turns: 4, ElapsedMs: 3000}))
	require.NoError(t, s.InsertResult(ctx, Result{UserID: "carol", Date: date, Won: false, Turns: 2, ElapsedMs: 100}))
	// Second attempt is ignored.
	require.NoError(t, s.InsertResult(ctx, Result{UserID: "alice", Date: date, Won: true, Turns: 1, ElapsedMs: 1}))

	played, err = s.AlreadyPlayed(ctx, "alice", date)
	require.NoError(t, err)
	assert.True(t, played)

	top, err := s.Leaderboard(ctx, date, 0)
	require.NoError(t, err)
	assert.Equal(t, []LBRow{
		{UserID: "bob", Turns: 4, ElapsedMs: 3000},
		{UserID: "alice", Turns: 5, ElapsedMs: 900},
	}, top)
}

package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/pebbles/internal/game"
)

func newEngine(t *testing.T) *game.Engine {
	t.Helper()
	e, _, err := game.New(game.NewSequence(0), game.InitParams{
		Difficulty: game.Easy, PebblesCount: 1000, MaxPebblesPerTurn: 1,
	})
	require.NoError(t, err)
	return e
}

func TestMemoryStore_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	s := NewSession(newEngine(t), "owner")
	require.NotEmpty(t, s.ID)

	require.NoError(t, st.Save(ctx, s))
	got, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, st.Delete(ctx, s.ID))
	_, err = st.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSession_DoSerialisesTurns(t *testing.T) {
	s := NewSession(newEngine(t), "owner")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(func(e *game.Engine) error {
				_, err := e.Handle(game.Turn(1))
				return err
			})
		}()
	}
	wg.Wait()

	// Every turn removes one pebble for the user and one for the program.
	st, err := s.State()
	require.NoError(t, err)
	assert.Equal(t, uint32(1000-100), st.PebblesRemaining)
}

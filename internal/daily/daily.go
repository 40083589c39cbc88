package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/robalobadob/pebbles/internal/game"
)

const (
	minPebbles = 15
	maxPebbles = 40
	minPerTurn = 2
	maxPerTurn = 6
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Params derives the day's game from HMAC(salt, YYYY-MM-DD).
// The daily game is always Hard.
func Params(date time.Time, salt string) game.InitParams {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	a := binary.BigEndian.Uint32(sum[0:4])
	b := binary.BigEndian.Uint32(sum[4:8])
	return game.InitParams{
		Difficulty:        game.Hard,
		PebblesCount:      minPebbles + a%(maxPebbles-minPebbles+1),
		MaxPebblesPerTurn: minPerTurn + b%(maxPerTurn-minPerTurn+1),
	}
}

// Rand returns the day's random stream; every daily game that day sees the
// same coin flip.
func Rand(date time.Time, salt string) game.Rand {
	return game.NewSeededRand(salt, DateKey(date), 0)
}

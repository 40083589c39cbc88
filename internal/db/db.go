// internal/db/db.go
//
// Database helpers for the Pebbles server.
// Responsibilities:
//   - Opening SQLite database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying the embedded migrations (idempotent, recorded in _migrations).
//   - Game history rows and per-user stats.

package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/pebbles/assets"
)

// Open opens (and creates if missing) a SQLite database file.
// The parent directory is created for relative paths such as ./data/app.db.
func Open(dsn string) (*sql.DB, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded migrations that are not yet recorded in
// _migrations. Scripts that manage their own transaction (BEGIN TRANSACTION,
// PRAGMA FOREIGN_KEYS=OFF) run outside an outer transaction.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	migrations, err := assets.Migrations()
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	for _, m := range migrations {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, m.Name).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", m.Name).Msg("already applied")
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("query _migrations: %w", err)
		}

		upper := strings.ToUpper(m.SQL)
		selfManaged := strings.Contains(upper, "BEGIN TRANSACTION") ||
			strings.Contains(upper, "PRAGMA FOREIGN_KEYS=OFF") ||
			strings.Contains(upper, "PRAGMA FOREIGN_KEYS = OFF")

		if selfManaged {
			if _, err := db.Exec(m.SQL); err != nil {
				return fmt.Errorf("apply %s: %w", m.Name, err)
			}
			if _, err := db.Exec(`INSERT INTO _migrations(name) VALUES (?)`, m.Name); err != nil {
				return fmt.Errorf("record %s: %w", m.Name, err)
			}
			log.Info().Str("migration", m.Name).Msg("applied (self-managed)")
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", m.Name, err)
		}
		log.Info().Str("migration", m.Name).Msg("applied")
	}
	return nil
}

/* ---------------------------- game history ----------------------------- */

// Status values for a games row, from the user's point of view.
const (
	StatusPlaying   = "playing"
	StatusWon       = "won"
	StatusLost      = "lost"
	StatusAbandoned = "abandoned"
)

// GameRow is one entry of a player's history.
type GameRow struct {
	ID                string `json:"id"`
	Difficulty        string `json:"difficulty"`
	PebblesCount      int    `json:"pebblesCount"`
	MaxPebblesPerTurn int    `json:"maxPebblesPerTurn"`
	FirstPlayer       string `json:"firstPlayer"`
	Status            string `json:"status"`
	Turns             int    `json:"turns"`
	StartedAt         string `json:"startedAt"`
	FinishedAt        string `json:"finishedAt,omitempty"`
}

// Owner identifies who a games row belongs to: a user or an anonymous cookie.
type Owner struct {
	UserID      string
	AnonymousID string
}

func (o Owner) clause() (string, any) {
	if o.UserID != "" {
		return `user_id=?`, o.UserID
	}
	return `anonymous_id=?`, o.AnonymousID
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// InsertGame records the start of a game.
func InsertGame(ctx context.Context, db *sql.DB, o Owner, g GameRow) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO games (id, user_id, anonymous_id, difficulty, pebbles_count,
                           max_pebbles_per_turn, first_player, status, turns, started_at)
        VALUES (?,?,?,?,?,?,?,?,0,?)`,
		g.ID, nullable(o.UserID), nullable(o.AnonymousID), g.Difficulty, g.PebblesCount,
		g.MaxPebblesPerTurn, g.FirstPlayer, StatusPlaying, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// RecordTurn bumps the turn counter and, when status is final, closes the
// row and updates the owner's stats. All in one transaction.
func RecordTurn(ctx context.Context, db *sql.DB, o Owner, gameID, status string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	where, arg := o.clause()
	if _, err := tx.ExecContext(ctx, `UPDATE games SET turns = turns + 1 WHERE id=? AND `+where, gameID, arg); err != nil {
		return fmt.Errorf("update turns: %w", err)
	}
	if err := finish(ctx, tx, o, gameID, status); err != nil {
		return err
	}
	return tx.Commit()
}

// FinishGame closes a row without counting a turn (give up, restart).
func FinishGame(ctx context.Context, db *sql.DB, o Owner, gameID, status string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := finish(ctx, tx, o, gameID, status); err != nil {
		return err
	}
	return tx.Commit()
}

func finish(ctx context.Context, tx *sql.Tx, o Owner, gameID, status string) error {
	if status == StatusPlaying {
		return nil
	}
	where, arg := o.clause()
	res, err := tx.ExecContext(ctx, `UPDATE games SET status=?, finished_at=?
	                                  WHERE id=? AND status='playing' AND `+where,
		status, time.Now().UTC().Format(time.RFC3339), gameID, arg)
	if err != nil {
		return fmt.Errorf("finish game: %w", err)
	}
	// Stats move once per game, only for registered users.
	if n, _ := res.RowsAffected(); n == 0 || o.UserID == "" {
		return nil
	}
	return bumpStats(ctx, tx, o.UserID, status == StatusWon)
}

// bumpStats increments games played; updates wins and streak.
func bumpStats(ctx context.Context, tx *sql.Tx, userID string, won bool) error {
	var gp, wins, streak int
	row := tx.QueryRowContext(ctx, `SELECT games_played, wins, streak FROM users WHERE id=?`, userID)
	if err := row.Scan(&gp, &wins, &streak); err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	gp++
	if won {
		wins++
		streak++
	} else {
		streak = 0
	}
	_, err := tx.ExecContext(ctx, `UPDATE users SET games_played=?, wins=?, streak=? WHERE id=?`, gp, wins, streak, userID)
	return err
}

// ClaimAnonGames transfers anonymous games to a user account after auth.
func ClaimAnonGames(ctx context.Context, db *sql.DB, anonID, userID string) error {
	if anonID == "" || userID == "" {
		return nil
	}
	_, err := db.ExecContext(ctx, `UPDATE games SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID)
	return err
}

// RecentGames lists a user's latest games, newest first.
func RecentGames(ctx context.Context, db *sql.DB, userID string, limit int) ([]GameRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
        SELECT id, difficulty, pebbles_count, max_pebbles_per_turn, first_player,
               status, turns, started_at, COALESCE(finished_at,'')
        FROM games WHERE user_id=? ORDER BY started_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []GameRow{}
	for rows.Next() {
		var g GameRow
		if err := rows.Scan(&g.ID, &g.Difficulty, &g.PebblesCount, &g.MaxPebblesPerTurn, &g.FirstPlayer,
			&g.Status, &g.Turns, &g.StartedAt, &g.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

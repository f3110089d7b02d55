package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists finished matches in SQLite
type Store struct {
	conn *sql.DB
}

// OpenStore opens (or creates) the SQLite database at path
func OpenStore(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		winner TEXT NOT NULL,
		score_left INTEGER NOT NULL DEFAULT 0,
		score_right INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		aborted INTEGER NOT NULL DEFAULT 0,
		tournament_id TEXT NOT NULL DEFAULT '',
		ended_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS match_players (
		match_id INTEGER NOT NULL REFERENCES matches(id),
		player_id TEXT NOT NULL,
		side TEXT NOT NULL,
		PRIMARY KEY (match_id, player_id)
	);

	CREATE INDEX IF NOT EXISTS idx_matches_ended_at ON matches(ended_at);
	CREATE INDEX IF NOT EXISTS idx_match_players_player ON match_players(player_id);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// RecordOutcomes writes a batch of outcomes in one transaction
func (s *Store) RecordOutcomes(ctx context.Context, outcomes []MatchOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	matchStmt, err := tx.PrepareContext(ctx, `INSERT INTO matches
		(room_id, mode, winner, score_left, score_right, duration_ms, aborted, tournament_id, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare match insert: %w", err)
	}
	defer matchStmt.Close()
	playerStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO match_players (match_id, player_id, side) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare player insert: %w", err)
	}
	defer playerStmt.Close()

	for _, o := range outcomes {
		res, err := matchStmt.ExecContext(ctx,
			o.RoomID, string(o.Mode), string(o.Winner), o.Score.Left, o.Score.Right,
			o.Duration.Milliseconds(), o.Aborted, o.TournamentID, o.EndedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert match %s: %w", o.RoomID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("match id: %w", err)
		}
		for side, players := range map[Side][]string{SideLeft: o.LeftPlayers, SideRight: o.RightPlayers} {
			for _, pid := range players {
				if _, err := playerStmt.ExecContext(ctx, id, pid, string(side)); err != nil {
					return fmt.Errorf("insert match player %s: %w", pid, err)
				}
			}
		}
	}
	return tx.Commit()
}

// RecentOutcomes returns up to limit matches, newest first
func (s *Store) RecentOutcomes(ctx context.Context, limit int) ([]MatchOutcome, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT m.room_id, m.mode, m.winner, m.score_left, m.score_right, m.duration_ms,
		       m.aborted, m.tournament_id, m.ended_at,
		       COALESCE((SELECT json_group_array(player_id) FROM match_players WHERE match_id = m.id AND side = 'left'), '[]'),
		       COALESCE((SELECT json_group_array(player_id) FROM match_players WHERE match_id = m.id AND side = 'right'), '[]')
		FROM matches m
		ORDER BY m.ended_at DESC, m.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent matches: %w", err)
	}
	defer rows.Close()

	var out []MatchOutcome
	for rows.Next() {
		var (
			o           MatchOutcome
			mode        string
			winner      string
			durationMS  int64
			left, right string
		)
		if err := rows.Scan(&o.RoomID, &mode, &winner, &o.Score.Left, &o.Score.Right, &durationMS,
			&o.Aborted, &o.TournamentID, &o.EndedAt, &left, &right); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		o.Mode = Mode(mode)
		o.Winner = Side(winner)
		o.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(left), &o.LeftPlayers); err != nil {
			return nil, fmt.Errorf("decode left players: %w", err)
		}
		if err := json.Unmarshal([]byte(right), &o.RightPlayers); err != nil {
			return nil, fmt.Errorf("decode right players: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Package sqlite provides a SQLite-backed roster store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/DoyleJ11/lol-auction-backend/internal/engine"
	"github.com/DoyleJ11/lol-auction-backend/internal/roster"
	"github.com/DoyleJ11/lol-auction-backend/internal/roster/sqlite/migrations"
)

// Store persists the roster in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite roster store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) LoadCandidates(ctx context.Context) ([]engine.Target, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT nickname, line, tier, champ FROM participants WHERE team IS NULL ORDER BY nickname ASC`)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []engine.Target
	for rows.Next() {
		var (
			t                 engine.Target
			line, tier, champ sql.NullString
		)
		if err := rows.Scan(&t.Name, &line, &tier, &champ); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		t.Line, t.Tier, t.Champ = line.String, tier.String, champ.String
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

func (s *Store) ListParticipants(ctx context.Context) ([]roster.Participant, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT nickname, line, tier, champ, leader, team FROM participants ORDER BY nickname ASC`)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var out []roster.Participant
	for rows.Next() {
		var (
			p                       roster.Participant
			line, tier, champ, team sql.NullString
		)
		if err := rows.Scan(&p.Nickname, &line, &tier, &champ, &p.Leader, &team); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.Line, p.Tier, p.Champ, p.Team = line.String, tier.String, champ.String, team.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return out, nil
}

func (s *Store) AddParticipant(ctx context.Context, nickname string) error {
	nickname, err := roster.RequireNickname(nickname)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO participants (nickname, line, tier, champ, leader, team) VALUES (?, NULL, NULL, NULL, 0, NULL)`,
		nickname)
	if isUniqueViolation(err) {
		return roster.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *Store) DeleteParticipant(ctx context.Context, nickname string) error {
	nickname, err := roster.RequireNickname(nickname)
	if err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM participants WHERE nickname = ?`, nickname)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return requireChanged(res)
}

func (s *Store) AssignLine(ctx context.Context, nickname, line string) error {
	nickname, err := roster.RequireNickname(nickname)
	if err != nil {
		return err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return roster.ErrInvalid
	}

	var tier, champ string
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT tier, champ FROM players WHERE nickname = ? AND line = ?`, nickname, line,
	).Scan(&tier, &champ)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("player line %s/%s: %w", nickname, line, roster.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query player line: %w", err)
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE participants SET line = ?, tier = ?, champ = ? WHERE nickname = ?`,
		line, tier, champ, nickname)
	if err != nil {
		return fmt.Errorf("update participant line: %w", err)
	}
	return requireChanged(res)
}

func (s *Store) SetLeader(ctx context.Context, nickname string) error {
	return s.setLeader(ctx, nickname, true)
}

func (s *Store) UnsetLeader(ctx context.Context, nickname string) error {
	return s.setLeader(ctx, nickname, false)
}

// setLeader flips the participant flag and the leaders row in one
// transaction. An existing leader keeps their points.
func (s *Store) setLeader(ctx context.Context, nickname string, leader bool) error {
	nickname, err := roster.RequireNickname(nickname)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin leader update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE participants SET leader = ? WHERE nickname = ?`, leader, nickname)
	if err != nil {
		return fmt.Errorf("update leader flag: %w", err)
	}
	if err := requireChanged(res); err != nil {
		return err
	}

	if leader {
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO leaders (nickname, point) VALUES (?, ?)`, nickname, roster.StartingPoints)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM leaders WHERE nickname = ?`, nickname)
	}
	if err != nil {
		return fmt.Errorf("update leaders: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ListLeaders(ctx context.Context) ([]roster.Leader, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT nickname, point FROM leaders ORDER BY nickname ASC`)
	if err != nil {
		return nil, fmt.Errorf("query leaders: %w", err)
	}
	defer rows.Close()

	var out []roster.Leader
	for rows.Next() {
		var l roster.Leader
		if err := rows.Scan(&l.Nickname, &l.Point); err != nil {
			return nil, fmt.Errorf("scan leader: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaders: %w", err)
	}
	return out, nil
}

func (s *Store) SetLeaderPoint(ctx context.Context, nickname string, point int) error {
	nickname, err := roster.RequireNickname(nickname)
	if err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE leaders SET point = ? WHERE nickname = ?`, point, nickname)
	if err != nil {
		return fmt.Errorf("update leader point: %w", err)
	}
	return requireChanged(res)
}

func (s *Store) ListPlayerLines(ctx context.Context) ([]roster.PlayerLine, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT nickname, line, tier, champ FROM players ORDER BY nickname ASC, `+roster.LineOrderSQL+` ASC`)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	var out []roster.PlayerLine
	for rows.Next() {
		var p roster.PlayerLine
		if err := rows.Scan(&p.Nickname, &p.Line, &p.Tier, &p.Champ); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players: %w", err)
	}
	return out, nil
}

func (s *Store) AddPlayerLine(ctx context.Context, p roster.PlayerLine) error {
	p, err := p.Normalize()
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO players (nickname, line, tier, champ) VALUES (?, ?, ?, ?)`,
		p.Nickname, p.Line, p.Tier, p.Champ)
	if isUniqueViolation(err) {
		return roster.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (s *Store) UpdatePlayerLine(ctx context.Context, p roster.PlayerLine) error {
	p, err := p.Normalize()
	if err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE players SET tier = ?, champ = ? WHERE nickname = ? AND line = ?`,
		p.Tier, p.Champ, p.Nickname, p.Line)
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	return requireChanged(res)
}

func (s *Store) DeletePlayerLine(ctx context.Context, nickname, line string) error {
	nickname, err := roster.RequireNickname(nickname)
	if err != nil {
		return err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return roster.ErrInvalid
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM players WHERE nickname = ? AND line = ?`, nickname, line)
	if err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	return requireChanged(res)
}

func requireChanged(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return roster.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ roster.Store = (*Store)(nil)

// Package postgres provides a Postgres-backed roster store on gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/lol-auction-backend/internal/engine"
	"github.com/DoyleJ11/lol-auction-backend/internal/roster"
)

const uniqueViolation = "23505"

type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the roster tables.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&playerModel{}, &participantModel{}, &leaderModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate roster: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) LoadCandidates(ctx context.Context) ([]engine.Target, error) {
	var rows []participantModel
	err := s.db.WithContext(ctx).
		Where("team IS NULL").
		Order("nickname ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	out := make([]engine.Target, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain().Candidate())
	}
	return out, nil
}

func (s *Store) ListParticipants(ctx context.Context) ([]roster.Participant, error) {
	var rows []participantModel
	if err := s.db.WithContext(ctx).Order("nickname ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	out := make([]roster.Participant, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (s *Store) AddParticipant(ctx context.Context, nickname string) error {
	nickname, err := roster.RequireNickname(nickname)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Create(&participantModel{Nickname: nickname}).Error
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
	res := s.db.WithContext(ctx).Where("nickname = ?", nickname).Delete(&participantModel{})
	return changed(res, "delete participant")
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

	var player playerModel
	err = s.db.WithContext(ctx).
		Where("nickname = ? AND line = ?", nickname, line).
		First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("player line %s/%s: %w", nickname, line, roster.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query player line: %w", err)
	}

	res := s.db.WithContext(ctx).
		Model(&participantModel{}).
		Where("nickname = ?", nickname).
		Updates(map[string]any{"line": player.Line, "tier": player.Tier, "champ": player.Champ})
	return changed(res, "update participant line")
}

func (s *Store) SetLeader(ctx context.Context, nickname string) error {
	return s.setLeader(ctx, nickname, true)
}

func (s *Store) UnsetLeader(ctx context.Context, nickname string) error {
	return s.setLeader(ctx, nickname, false)
}

func (s *Store) setLeader(ctx context.Context, nickname string, leader bool) error {
	nickname, err := roster.RequireNickname(nickname)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&participantModel{}).Where("nickname = ?", nickname).Update("leader", leader)
		if err := changed(res, "update leader flag"); err != nil {
			return err
		}
		if leader {
			err = tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&leaderModel{Nickname: nickname, Point: roster.StartingPoints}).Error
		} else {
			err = tx.Where("nickname = ?", nickname).Delete(&leaderModel{}).Error
		}
		if err != nil {
			return fmt.Errorf("update leaders: %w", err)
		}
		return nil
	})
}

func (s *Store) ListLeaders(ctx context.Context) ([]roster.Leader, error) {
	var rows []leaderModel
	if err := s.db.WithContext(ctx).Order("nickname ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query leaders: %w", err)
	}
	out := make([]roster.Leader, 0, len(rows))
	for _, row := range rows {
		out = append(out, roster.Leader{Nickname: row.Nickname, Point: row.Point})
	}
	return out, nil
}

func (s *Store) SetLeaderPoint(ctx context.Context, nickname string, point int) error {
	nickname, err := roster.RequireNickname(nickname)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&leaderModel{}).Where("nickname = ?", nickname).Update("point", point)
	return changed(res, "update leader point")
}

func (s *Store) ListPlayerLines(ctx context.Context) ([]roster.PlayerLine, error) {
	var rows []playerModel
	err := s.db.WithContext(ctx).
		Order("nickname ASC").
		Order(roster.LineOrderSQL + " ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	out := make([]roster.PlayerLine, 0, len(rows))
	for _, row := range rows {
		out = append(out, roster.PlayerLine(row))
	}
	return out, nil
}

func (s *Store) AddPlayerLine(ctx context.Context, p roster.PlayerLine) error {
	p, err := p.Normalize()
	if err != nil {
		return err
	}
	row := playerModel(p)
	err = s.db.WithContext(ctx).Create(&row).Error
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
	res := s.db.WithContext(ctx).
		Model(&playerModel{}).
		Where("nickname = ? AND line = ?", p.Nickname, p.Line).
		Updates(map[string]any{"tier": p.Tier, "champ": p.Champ})
	return changed(res, "update player")
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
	res := s.db.WithContext(ctx).Where("nickname = ? AND line = ?", nickname, line).Delete(&playerModel{})
	return changed(res, "delete player")
}

func changed(res *gorm.DB, op string) error {
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return roster.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ roster.Store = (*Store)(nil)

// Package roster is the persistent side of the auction: player line
// records, the participants of the current game, and team leaders with
// their points. The session only reads it through LoadCandidates.
package roster

import (
	"context"
	"errors"
	"strings"

	"github.com/DoyleJ11/lol-auction-backend/internal/engine"
)

var (
	ErrNotFound = errors.New("roster: no matching record")
	ErrConflict = errors.New("roster: record already exists")
	ErrInvalid  = errors.New("roster: invalid input")
)

// StartingPoints is what a new leader gets to bid with.
const StartingPoints = 1000

// Lines in display order.
var Lines = []string{"TOP", "JUG", "MID", "ADC", "SUO"}

// PlayerLine is one line a player can play, with their tier and main champ.
type PlayerLine struct {
	Nickname string `json:"nickname"`
	Line     string `json:"line"`
	Tier     string `json:"tier"`
	Champ    string `json:"champ"`
}

// Participant is a player entered into this game. Line, Tier and Champ are
// empty until a line is assigned; Team is empty until they are bought.
type Participant struct {
	Nickname string `json:"nickname"`
	Line     string `json:"line"`
	Tier     string `json:"tier"`
	Champ    string `json:"champ"`
	Leader   bool   `json:"leader"`
	Team     string `json:"team"`
}

type Leader struct {
	Nickname string `json:"nickname"`
	Point    int    `json:"point"`
}

type Store interface {
	// LoadCandidates returns participants without a team, ordered by nickname.
	LoadCandidates(ctx context.Context) ([]engine.Target, error)

	ListParticipants(ctx context.Context) ([]Participant, error)
	AddParticipant(ctx context.Context, nickname string) error
	DeleteParticipant(ctx context.Context, nickname string) error
	// AssignLine copies tier and champ from the player's line record.
	AssignLine(ctx context.Context, nickname, line string) error
	SetLeader(ctx context.Context, nickname string) error
	UnsetLeader(ctx context.Context, nickname string) error

	ListLeaders(ctx context.Context) ([]Leader, error)
	SetLeaderPoint(ctx context.Context, nickname string, point int) error

	ListPlayerLines(ctx context.Context) ([]PlayerLine, error)
	AddPlayerLine(ctx context.Context, p PlayerLine) error
	UpdatePlayerLine(ctx context.Context, p PlayerLine) error
	DeletePlayerLine(ctx context.Context, nickname, line string) error

	Close() error
}

// Candidate converts a participant into an auction target.
func (p Participant) Candidate() engine.Target {
	return engine.Target{Name: p.Nickname, Line: p.Line, Tier: p.Tier, Champ: p.Champ}
}

// Normalize trims every field and rejects a record with any of them empty.
func (p PlayerLine) Normalize() (PlayerLine, error) {
	p.Nickname = strings.TrimSpace(p.Nickname)
	p.Line = strings.TrimSpace(p.Line)
	p.Tier = strings.TrimSpace(p.Tier)
	p.Champ = strings.TrimSpace(p.Champ)
	if p.Nickname == "" || p.Line == "" || p.Tier == "" || p.Champ == "" {
		return PlayerLine{}, ErrInvalid
	}
	return p, nil
}

// RequireNickname trims nickname and rejects an empty one.
func RequireNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return "", ErrInvalid
	}
	return nickname, nil
}

// LineRank orders lines TOP, JUG, MID, ADC, SUO, then anything else.
func LineRank(line string) int {
	for i, l := range Lines {
		if l == line {
			return i + 1
		}
	}
	return len(Lines) + 1
}

// LineOrderSQL mirrors LineRank for ORDER BY clauses.
const LineOrderSQL = `CASE line
	WHEN 'TOP' THEN 1
	WHEN 'JUG' THEN 2
	WHEN 'MID' THEN 3
	WHEN 'ADC' THEN 4
	WHEN 'SUO' THEN 5
	ELSE 6
END`

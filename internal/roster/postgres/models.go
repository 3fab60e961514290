package postgres

import "github.com/DoyleJ11/lol-auction-backend/internal/roster"

type playerModel struct {
	Nickname string `gorm:"primaryKey;not null"`
	Line     string `gorm:"primaryKey;not null"`
	Tier     string `gorm:"not null"`
	Champ    string `gorm:"not null"`
}

func (playerModel) TableName() string { return "players" }

// participantModel leaves line, tier, champ and team NULL until set.
type participantModel struct {
	Nickname string `gorm:"primaryKey;not null"`
	Line     *string
	Tier     *string
	Champ    *string
	Leader   bool `gorm:"not null;default:false"`
	Team     *string
}

func (participantModel) TableName() string { return "participants" }

type leaderModel struct {
	Nickname string `gorm:"primaryKey;not null"`
	Point    int    `gorm:"not null;default:1000"`
}

func (leaderModel) TableName() string { return "leaders" }

func (m participantModel) toDomain() roster.Participant {
	return roster.Participant{
		Nickname: m.Nickname,
		Line:     deref(m.Line),
		Tier:     deref(m.Tier),
		Champ:    deref(m.Champ),
		Leader:   m.Leader,
		Team:     deref(m.Team),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

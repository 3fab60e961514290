package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/lol-auction-backend/internal/engine"
	"github.com/DoyleJ11/lol-auction-backend/internal/roster"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "roster.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.db")
	ctx := context.Background()

	first, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.AddParticipant(ctx, "faker"))
	require.NoError(t, first.Close())

	second, err := Open(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.ListParticipants(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "faker", got[0].Nickname)
}

func TestParticipants(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddParticipant(ctx, " zeus "))
	require.NoError(t, store.AddParticipant(ctx, "faker"))
	assert.ErrorIs(t, store.AddParticipant(ctx, "faker"), roster.ErrConflict)
	assert.ErrorIs(t, store.AddParticipant(ctx, ""), roster.ErrInvalid)

	got, err := store.ListParticipants(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "faker", got[0].Nickname)
	assert.Equal(t, "zeus", got[1].Nickname)
	assert.Empty(t, got[0].Line)
	assert.False(t, got[0].Leader)

	require.NoError(t, store.DeleteParticipant(ctx, "zeus"))
	assert.ErrorIs(t, store.DeleteParticipant(ctx, "zeus"), roster.ErrNotFound)
}

func TestAssignLineCopiesPlayerRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddPlayerLine(ctx, roster.PlayerLine{Nickname: "faker", Line: "MID", Tier: "C", Champ: "Azir"}))
	require.NoError(t, store.AddParticipant(ctx, "faker"))

	assert.ErrorIs(t, store.AssignLine(ctx, "faker", "TOP"), roster.ErrNotFound)
	assert.ErrorIs(t, store.AssignLine(ctx, "faker", ""), roster.ErrInvalid)
	require.NoError(t, store.AssignLine(ctx, "faker", "MID"))

	got, err := store.ListParticipants(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "MID", got[0].Line)
	assert.Equal(t, "C", got[0].Tier)
	assert.Equal(t, "Azir", got[0].Champ)
}

func TestAssignLineMissingParticipant(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddPlayerLine(ctx, roster.PlayerLine{Nickname: "faker", Line: "MID", Tier: "C", Champ: "Azir"}))
	assert.ErrorIs(t, store.AssignLine(ctx, "faker", "MID"), roster.ErrNotFound)
}

func TestLeaders(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddParticipant(ctx, "keria"))
	assert.ErrorIs(t, store.SetLeader(ctx, "ghost"), roster.ErrNotFound)

	require.NoError(t, store.SetLeader(ctx, "keria"))
	leaders, err := store.ListLeaders(ctx)
	require.NoError(t, err)
	require.Equal(t, []roster.Leader{{Nickname: "keria", Point: roster.StartingPoints}}, leaders)

	require.NoError(t, store.SetLeaderPoint(ctx, "keria", 640))
	// Marking again keeps the spent points.
	require.NoError(t, store.SetLeader(ctx, "keria"))
	leaders, err = store.ListLeaders(ctx)
	require.NoError(t, err)
	require.Equal(t, 640, leaders[0].Point)

	participants, err := store.ListParticipants(ctx)
	require.NoError(t, err)
	assert.True(t, participants[0].Leader)

	require.NoError(t, store.UnsetLeader(ctx, "keria"))
	leaders, err = store.ListLeaders(ctx)
	require.NoError(t, err)
	assert.Empty(t, leaders)
	assert.ErrorIs(t, store.SetLeaderPoint(ctx, "keria", 10), roster.ErrNotFound)
}

func TestPlayerLines(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, p := range []roster.PlayerLine{
		{Nickname: "faker", Line: "SUO", Tier: "B", Champ: "Karma"},
		{Nickname: "faker", Line: "MID", Tier: "C", Champ: "Azir"},
		{Nickname: "faker", Line: "TOP", Tier: "A", Champ: "Ryze"},
		{Nickname: "deft", Line: "ADC", Tier: "B", Champ: "Jinx"},
	} {
		require.NoError(t, store.AddPlayerLine(ctx, p))
	}
	assert.ErrorIs(t, store.AddPlayerLine(ctx, roster.PlayerLine{Nickname: "deft", Line: "ADC", Tier: "A", Champ: "Ezreal"}), roster.ErrConflict)
	assert.ErrorIs(t, store.AddPlayerLine(ctx, roster.PlayerLine{Nickname: "deft", Line: "ADC"}), roster.ErrInvalid)

	got, err := store.ListPlayerLines(ctx)
	require.NoError(t, err)
	var order []string
	for _, p := range got {
		order = append(order, p.Nickname+"/"+p.Line)
	}
	assert.Equal(t, []string{"deft/ADC", "faker/TOP", "faker/MID", "faker/SUO"}, order)

	require.NoError(t, store.UpdatePlayerLine(ctx, roster.PlayerLine{Nickname: "deft", Line: "ADC", Tier: "S", Champ: "Kai'Sa"}))
	assert.ErrorIs(t, store.UpdatePlayerLine(ctx, roster.PlayerLine{Nickname: "deft", Line: "MID", Tier: "S", Champ: "Zoe"}), roster.ErrNotFound)

	got, err = store.ListPlayerLines(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Kai'Sa", got[0].Champ)

	require.NoError(t, store.DeletePlayerLine(ctx, "deft", "ADC"))
	assert.ErrorIs(t, store.DeletePlayerLine(ctx, "deft", "ADC"), roster.ErrNotFound)
}

func TestLoadCandidatesSkipsDrafted(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddPlayerLine(ctx, roster.PlayerLine{Nickname: "chovy", Line: "MID", Tier: "A", Champ: "Yone"}))
	for _, name := range []string{"peyz", "chovy", "canyon"} {
		require.NoError(t, store.AddParticipant(ctx, name))
	}
	require.NoError(t, store.AssignLine(ctx, "chovy", "MID"))
	_, err := store.sqlDB.ExecContext(ctx, `UPDATE participants SET team = 'T1' WHERE nickname = 'peyz'`)
	require.NoError(t, err)

	got, err := store.LoadCandidates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []engine.Target{
		{Name: "canyon"},
		{Name: "chovy", Line: "MID", Tier: "A", Champ: "Yone"},
	}, got)
}

func TestUpSection(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (x);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (x);\n", upSection(content))
	assert.Equal(t, "SELECT 1;", upSection("SELECT 1;"))
}

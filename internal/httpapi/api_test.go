package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-auction-backend/internal/engine"
	"github.com/DoyleJ11/lol-auction-backend/internal/hub"
	"github.com/DoyleJ11/lol-auction-backend/internal/journal"
	"github.com/DoyleJ11/lol-auction-backend/internal/roster"
	"github.com/DoyleJ11/lol-auction-backend/internal/roster/sqlite"
	"github.com/DoyleJ11/lol-auction-backend/internal/session"
)

// identityRand keeps queues in nickname order.
type identityRand struct{}

func (identityRand) IntN(n int) int { return n - 1 }

type testEnv struct {
	srv     *httptest.Server
	hub     *hub.Hub
	store   *sqlite.Store
	journal *journal.Memory
	viewer  chan hub.Topic
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "roster.db"))
	require.NoError(t, err)
	h := hub.NewHub(ctx, log)
	j := journal.NewMemory()
	sess, err := session.New(store, h, j, log, session.Options{Rand: identityRand{}})
	require.NoError(t, err)

	srv := httptest.NewServer(SetupRoutes(Deps{Session: sess, Roster: store, Journal: j, Hub: h, Log: log}))
	t.Cleanup(func() {
		srv.Close()
		h.Shutdown()
		_ = store.Close()
	})

	env := &testEnv{srv: srv, hub: h, store: store, journal: j, viewer: make(chan hub.Topic, 64)}
	h.Join("test-viewer", env.viewer)
	env.sync(t)
	return env
}

// sync waits until the hub has handled everything sent before it.
func (e *testEnv) sync(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := e.hub.Stats(ctx)
	require.NoError(t, err)
}

// topics returns everything viewers were told since the last call.
func (e *testEnv) topics(t *testing.T) []hub.Topic {
	t.Helper()
	e.sync(t)
	var out []hub.Topic
	for {
		select {
		case tp := <-e.viewer:
			out = append(out, tp)
		default:
			return out
		}
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out.Bytes()
}

func decodeAs[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func (e *testEnv) addParticipants(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		status, body := e.do(t, http.MethodPost, "/game/participant/add", map[string]string{"nickname": n})
		require.Equal(t, http.StatusOK, status, string(body))
	}
	e.topics(t)
}

func names(targets []engine.Target) []string {
	out := make([]string, 0, len(targets))
	for _, tg := range targets {
		out = append(out, tg.Name)
	}
	return out
}

func TestAuctionFlow(t *testing.T) {
	env := newTestEnv(t)
	env.addParticipants(t, "C", "A", "B")

	status, body := env.do(t, http.MethodPost, "/game/bid/target", nil)
	require.Equal(t, http.StatusOK, status)
	loaded := decodeAs[loadQueueResponse](t, body)
	assert.True(t, loaded.Success)
	assert.False(t, loaded.Empty)
	assert.Equal(t, []string{"A", "B", "C"}, names(loaded.Targets))
	assert.Equal(t, []hub.Topic{hub.TopicQueue, hub.TopicOrder}, env.topics(t))

	status, body = env.do(t, http.MethodGet, "/game/bid/state", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, decodeAs[int](t, body))

	status, body = env.do(t, http.MethodPost, "/game/bid/target/sell", nil)
	require.Equal(t, http.StatusOK, status)
	sold := decodeAs[sellResponse](t, body)
	assert.Equal(t, "A", sold.Removed.Name)
	assert.Equal(t, []hub.Topic{hub.TopicQueue}, env.topics(t))

	status, body = env.do(t, http.MethodPost, "/game/bid/state", map[string]int{"order": 1})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decodeAs[turnResponse](t, body).CurrentOrder)
	assert.Equal(t, []hub.Topic{hub.TopicOrder}, env.topics(t))

	// Turn 2 runs past [B, C]: reshuffle and restart at 0.
	status, body = env.do(t, http.MethodPost, "/game/bid/state", map[string]int{"order": 2})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, decodeAs[turnResponse](t, body).CurrentOrder)
	assert.Equal(t, []hub.Topic{hub.TopicQueue, hub.TopicOrder}, env.topics(t))

	status, body = env.do(t, http.MethodGet, "/game/bid/target", nil)
	require.Equal(t, http.StatusOK, status)
	assert.ElementsMatch(t, []string{"B", "C"}, names(decodeAs[[]engine.Target](t, body)))
}

func TestLoadQueueWithNoCandidates(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/game/bid/target", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	loaded := decodeAs[loadQueueResponse](t, body)
	assert.True(t, loaded.Empty)
	assert.Empty(t, loaded.Targets)
	assert.Equal(t, []hub.Topic{hub.TopicQueue, hub.TopicOrder}, env.topics(t))

	status, body = env.do(t, http.MethodGet, "/game/bid/target", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))
}

func TestBidErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"sell empty queue", http.MethodPost, "/game/bid/target/sell", nil, http.StatusNotFound, "QUEUE_EMPTY"},
		{"negative order", http.MethodPost, "/game/bid/state", map[string]int{"order": -1}, http.StatusBadRequest, "INVALID_INDEX"},
		{"missing order", http.MethodPost, "/game/bid/state", map[string]any{}, http.StatusBadRequest, "INVALID_INDEX"},
		{"order not a number", http.MethodPost, "/game/bid/state", `{"order":"3"}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"blank bidder", http.MethodPost, "/game/bid/bidder", map[string]any{"name": "  ", "point": 10}, http.StatusBadRequest, "INVALID_BIDDER"},
		{"negative point", http.MethodPost, "/game/bid/bidder", map[string]any{"name": "faker", "point": -5}, http.StatusBadRequest, "INVALID_BIDDER"},
		{"missing point", http.MethodPost, "/game/bid/bidder", map[string]any{"name": "faker"}, http.StatusBadRequest, "INVALID_BIDDER"},
		{"bad json", http.MethodPost, "/game/bid/bidder", `{`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad since", http.MethodGet, "/game/bid/events?since=x", nil, http.StatusBadRequest, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status, string(body))
			got := decodeAs[errorBody](t, body)
			assert.Equal(t, tt.code, got.Code)
			assert.NotEmpty(t, got.Error)
		})
	}
	assert.Empty(t, env.topics(t))
}

func TestBidderRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/game/bid/bidder", nil)
	assert.JSONEq(t, `{}`, string(body))

	status, body := env.do(t, http.MethodPost, "/game/bid/bidder", map[string]any{"name": " faker ", "point": 300})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"message":"bidder updated","bidder":{"name":"faker","point":300}}`, string(body))

	_, body = env.do(t, http.MethodGet, "/game/bid/bidder", nil)
	assert.JSONEq(t, `{"name":"faker","point":300}`, string(body))

	status, body = env.do(t, http.MethodPost, "/game/bid/bidder/clear", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message":"bidder cleared","bidder":{}}`, string(body))

	_, body = env.do(t, http.MethodGet, "/game/bid/bidder", nil)
	assert.JSONEq(t, `{}`, string(body))
	assert.Equal(t, []hub.Topic{hub.TopicBidder, hub.TopicBidder}, env.topics(t))
}

func TestEventsReplayIntoCurrentState(t *testing.T) {
	env := newTestEnv(t)
	env.addParticipants(t, "A", "B")

	env.do(t, http.MethodPost, "/game/bid/target", nil)
	env.do(t, http.MethodPost, "/game/bid/target/sell", nil)
	env.do(t, http.MethodPost, "/game/bid/bidder", map[string]any{"name": "keria", "point": 50})

	status, body := env.do(t, http.MethodGet, "/game/bid/events", nil)
	require.Equal(t, http.StatusOK, status)
	entries := decodeAs[[]journal.Entry](t, body)
	require.Len(t, entries, 4)

	state := engine.Reduce(journal.Events(entries))
	assert.Equal(t, []string{"B"}, names(state.Queue))
	require.NotNil(t, state.Bidder)
	assert.Equal(t, "keria", state.Bidder.Name)

	_, body = env.do(t, http.MethodGet, "/game/bid/events?since=3", nil)
	tail := decodeAs[[]journal.Entry](t, body)
	require.Len(t, tail, 1)
	assert.Equal(t, int64(4), tail[0].Version)
}

func TestParticipantEndpoints(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/users/add", roster.PlayerLine{Nickname: "faker", Line: "MID", Tier: "C", Champ: "Azir"})
	require.Equal(t, http.StatusOK, status)
	env.addParticipants(t, "faker")

	status, body := env.do(t, http.MethodPost, "/game/participant/add", map[string]string{"nickname": "faker"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_EXISTS", decodeAs[errorBody](t, body).Code)

	status, _ = env.do(t, http.MethodPut, "/game/participant/edit/line", map[string]string{"nickname": "faker", "line": "TOP"})
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = env.do(t, http.MethodPut, "/game/participant/edit/line", map[string]string{"nickname": "faker", "line": "MID"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []hub.Topic{hub.TopicRoster}, env.topics(t))

	_, body = env.do(t, http.MethodGet, "/game/participant", nil)
	participants := decodeAs[[]roster.Participant](t, body)
	require.Len(t, participants, 1)
	assert.Equal(t, "Azir", participants[0].Champ)

	status, _ = env.do(t, http.MethodPut, "/game/participant/edit/leader", map[string]string{"nickname": "faker"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []hub.Topic{hub.TopicRoster, hub.TopicLeader}, env.topics(t))

	_, body = env.do(t, http.MethodGet, "/game/participant/leader", nil)
	assert.Equal(t, []roster.Leader{{Nickname: "faker", Point: 1000}}, decodeAs[[]roster.Leader](t, body))

	status, _ = env.do(t, http.MethodPut, "/game/participant/edit/point", map[string]any{"nickname": "faker", "point": 420})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []hub.Topic{hub.TopicLeader}, env.topics(t))

	status, _ = env.do(t, http.MethodPut, "/game/participant/edit/point", map[string]any{"nickname": "ghost", "point": 1})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodPut, "/game/participant/edit/unleader", map[string]string{"nickname": "faker"})
	require.Equal(t, http.StatusOK, status)
	_, body = env.do(t, http.MethodGet, "/game/participant/leader", nil)
	assert.JSONEq(t, `[]`, string(body))

	status, _ = env.do(t, http.MethodDelete, "/game/participant/delete", map[string]string{"nickname": "faker"})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodDelete, "/game/participant/delete", map[string]string{"nickname": "faker"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodPost, "/game/participant/add", map[string]string{"nickname": " "})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUserEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, p := range []roster.PlayerLine{
		{Nickname: "faker", Line: "SUO", Tier: "B", Champ: "Karma"},
		{Nickname: "faker", Line: "MID", Tier: "C", Champ: "Azir"},
		{Nickname: "deft", Line: "ADC", Tier: "B", Champ: "Jinx"},
	} {
		status, body := env.do(t, http.MethodPost, "/users/add", p)
		require.Equal(t, http.StatusOK, status, string(body))
	}
	assert.Len(t, env.topics(t), 3)

	status, body := env.do(t, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []playerGroup{
		{Nickname: "deft", Lines: []lineRecord{{Line: "ADC", Tier: "B", Champ: "Jinx"}}},
		{Nickname: "faker", Lines: []lineRecord{
			{Line: "MID", Tier: "C", Champ: "Azir"},
			{Line: "SUO", Tier: "B", Champ: "Karma"},
		}},
	}, decodeAs[[]playerGroup](t, body))

	status, _ = env.do(t, http.MethodPut, "/users/update", roster.PlayerLine{Nickname: "deft", Line: "ADC", Tier: "A", Champ: "Ezreal"})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPost, "/users/add", roster.PlayerLine{Nickname: "deft", Line: "ADC"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodDelete, "/users/delete", map[string]string{"nickname": "deft", "line": "ADC"})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodDelete, "/users/delete", map[string]string{"nickname": "deft", "line": "ADC"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","viewers":1}`, string(body))
}

func TestGroupPlayersEmpty(t *testing.T) {
	assert.Equal(t, []playerGroup{}, groupPlayers(nil))
}

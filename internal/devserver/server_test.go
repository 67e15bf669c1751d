package devserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"quiz-host/internal/devserver"
	"quiz-host/internal/domain"
	"quiz-host/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	srv   *devserver.Server
	http  *httptest.Server
	clock *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	srv := devserver.New(context.Background(), logrus.NewEntry(logger))
	clock := &fakeClock{now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
	srv.Now = clock.Now
	hs := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		srv.Shutdown()
		hs.Close()
	})
	return &fixture{srv: srv, http: hs, clock: clock}
}

func (f *fixture) createGame(t *testing.T) string {
	t.Helper()
	resp, err := http.Post(f.http.URL+"/create_game/", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body struct {
		GameCode string `json:"game_code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.GameCode, 4)
	return body.GameCode
}

type peer struct {
	t    *testing.T
	conn *websocket.Conn
}

func (f *fixture) connect(t *testing.T, code string) *peer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws/" + code
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &peer{t: t, conn: conn}
}

func (p *peer) send(msgType string, payload any) {
	p.t.Helper()
	data, err := protocol.Encode(msgType, payload)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, data))
}

func (p *peer) next() protocol.Envelope {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := p.conn.ReadMessage()
	require.NoError(p.t, err)
	var env protocol.Envelope
	require.NoError(p.t, json.Unmarshal(data, &env))
	return env
}

func (p *peer) expect(msgType string, into any) {
	p.t.Helper()
	env := p.next()
	require.Equal(p.t, msgType, env.Type, string(env.Payload))
	if into != nil {
		require.NoError(p.t, json.Unmarshal(env.Payload, into))
	}
}

func (p *peer) expectClose(code int) {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, _, err := p.conn.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		require.ErrorAs(p.t, err, &ce)
		assert.Equal(p.t, code, ce.Code)
		return
	}
}

func TestPoints(t *testing.T) {
	cases := []struct {
		taken time.Duration
		limit int
		want  int
	}{
		{0, 10, 1000},
		{5 * time.Second, 10, 500},
		{9800 * time.Millisecond, 10, 100},
		{10 * time.Second, 10, 0},
		{-time.Second, 10, 1000},
		{time.Second, 0, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, devserver.Points(tc.taken, tc.limit), "%v of %ds", tc.taken, tc.limit)
	}
}

func TestGenerateCode(t *testing.T) {
	code, err := devserver.GenerateCode()
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{4}$`, code)
}

func TestCreateGameRegistersRoom(t *testing.T) {
	f := newFixture(t)
	code := f.createGame(t)
	room, ok := f.srv.Room(strings.ToLower(code))
	require.True(t, ok)
	assert.Equal(t, code, room.Code())
	assert.Equal(t, 1, f.srv.Rooms())
}

func TestUnknownGameCodeIsPolicyViolation(t *testing.T) {
	f := newFixture(t)
	p := f.connect(t, "ZZZZ")

	var serr protocol.ServerError
	p.expect(protocol.EvtError, &serr)
	assert.Equal(t, protocol.CodeInvalidGameCode, serr.Code)
	p.expectClose(websocket.ClosePolicyViolation)
}

func TestQRCodeEndpoint(t *testing.T) {
	f := newFixture(t)
	code := f.createGame(t)

	resp, err := http.Get(f.http.URL + "/qr/" + code)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	missing, err := http.Get(f.http.URL + "/qr/NONE")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestDuplicateNicknameIsRejected(t *testing.T) {
	f := newFixture(t)
	code := f.createGame(t)

	host := f.connect(t, code)
	host.send(protocol.CmdJoinGame, protocol.JoinGame{Nickname: "Host_" + code})
	host.expect(protocol.EvtJoinAck, nil)

	ana := f.connect(t, code)
	ana.send(protocol.CmdJoinGame, protocol.JoinGame{Nickname: "Ana"})
	ana.expect(protocol.EvtJoinAck, nil)
	host.expect(protocol.EvtPlayerJoined, nil)

	dup := f.connect(t, code)
	dup.send(protocol.CmdJoinGame, protocol.JoinGame{Nickname: "ana"})
	var serr protocol.ServerError
	dup.expect(protocol.EvtError, &serr)
	assert.Equal(t, "Nickname already taken.", serr.Message)
	dup.expectClose(websocket.ClosePolicyViolation)
}

func TestFullGameScoresFasterAnswers(t *testing.T) {
	f := newFixture(t)
	code := f.createGame(t)
	quiz := domain.DemoQuizzes()[0]

	host := f.connect(t, code)
	host.send(protocol.CmdJoinGame, protocol.JoinGame{Nickname: "Host_" + code})
	var ack protocol.JoinAck
	host.expect(protocol.EvtJoinAck, &ack)
	assert.Equal(t, 0, ack.PlayerCount)

	host.send(protocol.CmdStartGame, nil)
	host.expect(protocol.EvtError, nil)

	host.send(protocol.CmdLoadQuizData, quiz)
	var loaded protocol.QuizLoadedAck
	host.expect(protocol.EvtQuizLoadedAck, &loaded)
	assert.Equal(t, 2, loaded.QuestionCount)

	ana := f.connect(t, code)
	ana.send(protocol.CmdJoinGame, protocol.JoinGame{Nickname: "Ana"})
	ana.expect(protocol.EvtJoinAck, &ack)
	assert.Equal(t, 1, ack.PlayerCount)
	var joined protocol.PlayerJoined
	host.expect(protocol.EvtPlayerJoined, &joined)
	assert.Equal(t, "Ana", joined.Nickname)

	bo := f.connect(t, code)
	bo.send(protocol.CmdJoinGame, protocol.JoinGame{Nickname: "Bo"})
	bo.expect(protocol.EvtJoinAck, nil)
	host.expect(protocol.EvtPlayerJoined, nil)
	ana.expect(protocol.EvtPlayerJoined, nil)

	ana.send(protocol.CmdStartGame, nil)
	var serr protocol.ServerError
	ana.expect(protocol.EvtError, &serr)
	assert.Equal(t, "Only the host can do that.", serr.Message)

	host.send(protocol.CmdStartGame, nil)
	var q protocol.NewQuestion
	for _, p := range []*peer{host, ana, bo} {
		p.expect(protocol.EvtGameStarted, nil)
		p.expect(protocol.EvtNewQuestion, &q)
	}
	assert.Equal(t, "dq1_1", q.QuestionID)
	assert.Equal(t, 1, q.QuestionNumber)
	assert.Len(t, q.Options, 4)

	ana.send(protocol.CmdSubmitAnswer, protocol.SubmitAnswer{AnswerID: "dq1_1_o3"})
	var result protocol.AnswerResult
	ana.expect(protocol.EvtAnswerResult, &result)
	assert.True(t, result.IsCorrect)
	assert.Equal(t, 1000, result.PointsAwarded)
	assert.Equal(t, 1, result.CurrentRank)

	ana.send(protocol.CmdSubmitAnswer, protocol.SubmitAnswer{AnswerID: "dq1_1_o3"})
	ana.expect(protocol.EvtError, nil)

	f.clock.Advance(3 * time.Second)
	bo.send(protocol.CmdSubmitAnswer, protocol.SubmitAnswer{AnswerID: "dq1_1_o3"})
	bo.expect(protocol.EvtAnswerResult, &result)
	assert.Equal(t, 800, result.PointsAwarded)
	assert.Equal(t, 2, result.CurrentRank)

	host.send(protocol.CmdNextQuestion, nil)
	var board protocol.UpdateScoreboard
	for _, p := range []*peer{host, ana, bo} {
		p.expect(protocol.EvtUpdateScoreboard, &board)
	}
	assert.Equal(t, []domain.ScoreEntry{
		{Rank: 1, Nickname: "Ana", Score: 1000},
		{Rank: 2, Nickname: "Bo", Score: 800},
	}, board.Scoreboard)

	host.send(protocol.CmdNextQuestion, nil)
	for _, p := range []*peer{host, ana, bo} {
		p.expect(protocol.EvtNewQuestion, &q)
	}
	assert.Equal(t, 2, q.QuestionNumber)

	bo.send(protocol.CmdSubmitAnswer, protocol.SubmitAnswer{AnswerID: "dq1_2_o1"})
	bo.expect(protocol.EvtAnswerResult, &result)
	assert.False(t, result.IsCorrect)
	assert.Equal(t, "dq1_2_o2", result.CorrectAnswerID)
	assert.Zero(t, result.PointsAwarded)

	host.send(protocol.CmdEndGame, nil)
	var over protocol.GameOver
	host.expect(protocol.EvtGameOver, &over)
	assert.Len(t, over.Podium, 2)
	assert.Nil(t, over.MyFinalRank)

	bo.expect(protocol.EvtGameOver, &over)
	require.NotNil(t, over.MyFinalRank)
	assert.Equal(t, 2, *over.MyFinalRank)
	assert.Equal(t, 800, *over.MyFinalScore)
}

func TestInvalidQuizIsRejectedWithLoadError(t *testing.T) {
	f := newFixture(t)
	code := f.createGame(t)

	host := f.connect(t, code)
	host.send(protocol.CmdJoinGame, protocol.JoinGame{Nickname: "Host_" + code})
	host.expect(protocol.EvtJoinAck, nil)

	quiz := domain.DemoQuizzes()[1]
	quiz.Questions[0].Options[0].IsCorrect = true
	host.send(protocol.CmdLoadQuizData, quiz)

	var serr protocol.ServerError
	host.expect(protocol.EvtError, &serr)
	assert.Equal(t, protocol.CodeQuizLoadError, serr.Code)
	assert.True(t, serr.IsQuizLoadFailure())
}

func TestHostDisconnectEndsGame(t *testing.T) {
	f := newFixture(t)
	code := f.createGame(t)

	host := f.connect(t, code)
	host.send(protocol.CmdJoinGame, protocol.JoinGame{Nickname: "Host_" + code})
	host.expect(protocol.EvtJoinAck, nil)

	ana := f.connect(t, code)
	ana.send(protocol.CmdJoinGame, protocol.JoinGame{Nickname: "Ana"})
	ana.expect(protocol.EvtJoinAck, nil)
	host.expect(protocol.EvtPlayerJoined, nil)

	room, ok := f.srv.Room(code)
	require.True(t, ok)
	require.NoError(t, host.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second)))

	var serr protocol.ServerError
	ana.expect(protocol.EvtError, &serr)
	assert.True(t, serr.IsHostDisconnect())
	ana.expect(protocol.EvtGameOver, nil)
	ana.expectClose(websocket.CloseNormalClosure)

	select {
	case <-room.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("room never shut down")
	}
	_, ok = f.srv.Room(code)
	assert.False(t, ok)
}

func TestPlayerLeavingIsBroadcast(t *testing.T) {
	f := newFixture(t)
	code := f.createGame(t)

	host := f.connect(t, code)
	host.send(protocol.CmdJoinGame, protocol.JoinGame{Nickname: "Host_" + code})
	host.expect(protocol.EvtJoinAck, nil)

	ana := f.connect(t, code)
	ana.send(protocol.CmdJoinGame, protocol.JoinGame{Nickname: "Ana"})
	ana.expect(protocol.EvtJoinAck, nil)
	host.expect(protocol.EvtPlayerJoined, nil)

	require.NoError(t, ana.conn.Close())
	var left protocol.PlayerLeft
	host.expect(protocol.EvtPlayerLeft, &left)
	assert.Equal(t, protocol.PlayerLeft{Nickname: "Ana", PlayerCount: 0}, left)
}

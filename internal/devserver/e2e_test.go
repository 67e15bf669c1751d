package devserver_test

import (
	"context"
	"testing"
	"time"

	"quiz-host/internal/app"
	"quiz-host/internal/domain"
	"quiz-host/internal/infra/memory"
	"quiz-host/internal/presenter"
	"quiz-host/internal/protocol"
	transporthttp "quiz-host/internal/transport/http"
	"quiz-host/internal/transport/ws"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitScreen(t *testing.T, h *app.HostSession, what string, ok func(presenter.Screen) bool) presenter.Screen {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		sc := h.Screen()
		if ok(sc) {
			return sc
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, last screen %+v", what, sc)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHostSessionPlaysAgainstDevServer(t *testing.T) {
	f := newFixture(t)
	logger, _ := test.NewNullLogger()
	log := logrus.NewEntry(logger)

	allocator, err := transporthttp.NewAllocator(f.http.URL, nil, log)
	require.NoError(t, err)
	history := memory.NewGameHistory(10)
	h := app.NewHostSession(context.Background(), app.Options{
		Allocator: allocator,
		Dialer:    ws.NewDialer(f.http.URL, ws.Options{Logger: log}),
		Recorder:  history,
		Logger:    log,
	})
	t.Cleanup(h.Close)

	require.NoError(t, h.CreateGame(domain.DemoQuizzes()[1]))
	sc := waitScreen(t, h, "quiz acknowledged", func(sc presenter.Screen) bool {
		return sc.Phase == string(app.PhaseLobby) && sc.Lobby.QuizReady
	})
	assert.False(t, sc.Lobby.CanStart)
	code := sc.GameCode

	ana := f.connect(t, code)
	ana.send(protocol.CmdJoinGame, protocol.JoinGame{Nickname: "Ana"})
	ana.expect(protocol.EvtJoinAck, nil)

	sc = waitScreen(t, h, "player listed", func(sc presenter.Screen) bool { return sc.Lobby.CanStart })
	assert.Equal(t, []string{"Ana"}, sc.Lobby.Players)

	require.NoError(t, h.StartGame())
	ana.expect(protocol.EvtGameStarted, nil)
	var q protocol.NewQuestion
	ana.expect(protocol.EvtNewQuestion, &q)

	sc = waitScreen(t, h, "question shown", func(sc presenter.Screen) bool {
		return sc.Phase == string(app.PhaseQuestion) && sc.Game.Question != nil
	})
	assert.Equal(t, "¿Planeta Rojo?", sc.Game.Question.Text)
	require.True(t, sc.Game.Question.CorrectKnown)
	for _, opt := range sc.Game.Question.Options {
		assert.Equal(t, opt.ID == "dq2_1_o2", opt.Correct, opt.ID)
	}

	ana.send(protocol.CmdSubmitAnswer, protocol.SubmitAnswer{AnswerID: "dq2_1_o2"})
	ana.expect(protocol.EvtAnswerResult, nil)

	require.NoError(t, h.NextQuestion())
	sc = waitScreen(t, h, "scoreboard", func(sc presenter.Screen) bool {
		return sc.Phase == string(app.PhaseScoreboard) && len(sc.Game.Leaderboard.Rows) == 1
	})
	assert.Equal(t, 1000, sc.Game.Leaderboard.Rows[0].Score)

	require.NoError(t, h.NextQuestion())
	sc = waitScreen(t, h, "podium", func(sc presenter.Screen) bool {
		return sc.Phase == string(app.PhaseEnded)
	})
	require.Len(t, sc.Podium.Rows, 1)
	assert.Equal(t, "Ana", sc.Podium.Rows[0].Nickname)

	assert.Eventually(t, func() bool {
		recs, err := history.Recent(context.Background(), 5)
		return err == nil && len(recs) == 1 && recs[0].Outcome == app.OutcomeFinished
	}, 3*time.Second, 20*time.Millisecond)

	room, ok := f.srv.Room(code)
	if ok {
		select {
		case <-room.Done():
		case <-time.After(3 * time.Second):
			t.Fatalf("room kept running after the host left")
		}
	}

	require.NoError(t, h.BackToDashboard())
	sc = h.Screen()
	assert.Equal(t, presenter.ViewDashboard, sc.View)
}

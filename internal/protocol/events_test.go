package protocol

import (
	"errors"
	"testing"

	"quiz-host/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEmptyPayloadIsObject(t *testing.T) {
	data, err := Encode(CmdStartGame, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"start_game","payload":{}}`, string(data))

	data, err = Encode(CmdJoinGame, JoinGame{Nickname: "Host_ABCD"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"join_game","payload":{"nickname":"Host_ABCD"}}`, string(data))
}

func TestDecodeKnownEvents(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"new_question","payload":{"question_id":"q2","question_number":2,"total_questions":5,"question_text":"Capital?","options":[{"id":"a","text":"Paris"},{"id":"b","text":"Rome"}],"time_limit":15}}`))
	require.NoError(t, err)
	q, ok := ev.(NewQuestion)
	require.True(t, ok, "expected NewQuestion, got %T", ev)
	assert.Equal(t, 2, q.QuestionNumber)
	assert.Equal(t, "q2", q.QuestionID)
	assert.Len(t, q.Options, 2)
	assert.Equal(t, 15, q.TimeLimit)

	ev, err = Decode([]byte(`{"type":"update_scoreboard","payload":{"scoreboard":[{"rank":1,"nickname":"alice","score":900}]}}`))
	require.NoError(t, err)
	assert.Equal(t, UpdateScoreboard{Scoreboard: []domain.ScoreEntry{{Rank: 1, Nickname: "alice", Score: 900}}}, ev)

	ev, err = Decode([]byte(`{"type":"game_started"}`))
	require.NoError(t, err)
	assert.Equal(t, GameStarted{}, ev)
}

func TestDecodeUnknownTypeIsDistinctArm(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"confetti","payload":{"color":"red"}}`))
	require.NoError(t, err)
	u, ok := ev.(Unknown)
	require.True(t, ok)
	assert.Equal(t, "confetti", u.Type())
	assert.JSONEq(t, `{"color":"red"}`, string(u.Payload))
}

func TestDecodeMalformedIsProtocolError(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"payload":{}}`,
		`{"type":"player_joined","payload":{"nickname":7}}`,
	} {
		_, err := Decode([]byte(raw))
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, domain.ErrProtocol), "expected protocol error for %s", raw)
	}
}

func TestServerErrorClassification(t *testing.T) {
	assert.True(t, ServerError{Code: CodeQuizLoadError}.IsQuizLoadFailure())
	assert.True(t, ServerError{Message: "Formato de cuestionario inválido: faltan opciones"}.IsQuizLoadFailure())
	assert.False(t, ServerError{Message: "slow down"}.IsQuizLoadFailure())
	assert.True(t, ServerError{Code: CodeHostDisconnected}.IsHostDisconnect())
}

type recordingHandler struct{ calls []string }

func (r *recordingHandler) OnJoinAck(JoinAck)                   { r.calls = append(r.calls, "join_ack") }
func (r *recordingHandler) OnQuizLoadedAck(QuizLoadedAck)       { r.calls = append(r.calls, "quiz_loaded_ack") }
func (r *recordingHandler) OnPlayerJoined(PlayerJoined)         { r.calls = append(r.calls, "player_joined") }
func (r *recordingHandler) OnPlayerLeft(PlayerLeft)             { r.calls = append(r.calls, "player_left") }
func (r *recordingHandler) OnGameStarted(GameStarted)           { r.calls = append(r.calls, "game_started") }
func (r *recordingHandler) OnNewQuestion(NewQuestion)           { r.calls = append(r.calls, "new_question") }
func (r *recordingHandler) OnUpdateScoreboard(UpdateScoreboard) { r.calls = append(r.calls, "update_scoreboard") }
func (r *recordingHandler) OnGameOver(GameOver)                 { r.calls = append(r.calls, "game_over") }
func (r *recordingHandler) OnServerError(ServerError)           { r.calls = append(r.calls, "error") }
func (r *recordingHandler) OnInfo(Info)                         { r.calls = append(r.calls, "info") }
func (r *recordingHandler) OnUnknown(Unknown)                   { r.calls = append(r.calls, "unknown") }

func TestDispatchRoutesEachVariant(t *testing.T) {
	h := &recordingHandler{}
	for _, ev := range []Event{
		JoinAck{}, QuizLoadedAck{}, PlayerJoined{}, PlayerLeft{}, GameStarted{}, NewQuestion{},
		UpdateScoreboard{}, GameOver{}, ServerError{}, Info{}, Unknown{Name: "x"},
	} {
		ev.Dispatch(h)
	}
	assert.Equal(t, []string{
		"join_ack", "quiz_loaded_ack", "player_joined", "player_left", "game_started", "new_question",
		"update_scoreboard", "game_over", "error", "info", "unknown",
	}, h.calls)
}

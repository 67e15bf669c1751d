package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"quiz-host/internal/domain"
)

// Event is a decoded server message. The set of implementations is closed; consumers handle
// every variant through Dispatch, so adding a variant breaks every Handler until it is covered.
type Event interface {
	Type() string
	Dispatch(h Handler)
	isEvent()
}

// Handler receives exactly one callback per dispatched event.
type Handler interface {
	OnJoinAck(JoinAck)
	OnQuizLoadedAck(QuizLoadedAck)
	OnPlayerJoined(PlayerJoined)
	OnPlayerLeft(PlayerLeft)
	OnGameStarted(GameStarted)
	OnNewQuestion(NewQuestion)
	OnUpdateScoreboard(UpdateScoreboard)
	OnGameOver(GameOver)
	OnServerError(ServerError)
	OnInfo(Info)
	OnUnknown(Unknown)
}

type JoinAck struct {
	Nickname    string `json:"nickname"`
	Message     string `json:"message"`
	PlayerCount int    `json:"player_count"`
}

type QuizLoadedAck struct {
	Title         string `json:"title"`
	QuestionCount int    `json:"question_count"`
}

type PlayerJoined struct {
	Nickname    string `json:"nickname"`
	PlayerCount int    `json:"player_count"`
}

type PlayerLeft struct {
	Nickname    string `json:"nickname"`
	PlayerCount int    `json:"player_count"`
}

type GameStarted struct{}

// WireOption is an answer option as sent to players: it never carries correctness.
type WireOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type NewQuestion struct {
	QuestionID     string       `json:"question_id,omitempty"`
	QuestionNumber int          `json:"question_number"`
	TotalQuestions int          `json:"total_questions"`
	QuestionText   string       `json:"question_text"`
	Options        []WireOption `json:"options"`
	TimeLimit      int          `json:"time_limit"`
}

type UpdateScoreboard struct {
	Scoreboard []domain.ScoreEntry `json:"scoreboard"`
}

type GameOver struct {
	Podium       []domain.ScoreEntry `json:"podium"`
	MyFinalRank  *int                `json:"my_final_rank,omitempty"`
	MyFinalScore *int                `json:"my_final_score,omitempty"`
}

type ServerError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type Info struct {
	Message string `json:"message"`
}

// Unknown carries any event whose type this client does not recognize.
type Unknown struct {
	Name    string
	Payload json.RawMessage
}

func (JoinAck) Type() string          { return EvtJoinAck }
func (QuizLoadedAck) Type() string    { return EvtQuizLoadedAck }
func (PlayerJoined) Type() string     { return EvtPlayerJoined }
func (PlayerLeft) Type() string       { return EvtPlayerLeft }
func (GameStarted) Type() string      { return EvtGameStarted }
func (NewQuestion) Type() string      { return EvtNewQuestion }
func (UpdateScoreboard) Type() string { return EvtUpdateScoreboard }
func (GameOver) Type() string         { return EvtGameOver }
func (ServerError) Type() string      { return EvtError }
func (Info) Type() string             { return EvtInfo }
func (u Unknown) Type() string        { return u.Name }

func (e JoinAck) Dispatch(h Handler)          { h.OnJoinAck(e) }
func (e QuizLoadedAck) Dispatch(h Handler)    { h.OnQuizLoadedAck(e) }
func (e PlayerJoined) Dispatch(h Handler)     { h.OnPlayerJoined(e) }
func (e PlayerLeft) Dispatch(h Handler)       { h.OnPlayerLeft(e) }
func (e GameStarted) Dispatch(h Handler)      { h.OnGameStarted(e) }
func (e NewQuestion) Dispatch(h Handler)      { h.OnNewQuestion(e) }
func (e UpdateScoreboard) Dispatch(h Handler) { h.OnUpdateScoreboard(e) }
func (e GameOver) Dispatch(h Handler)         { h.OnGameOver(e) }
func (e ServerError) Dispatch(h Handler)      { h.OnServerError(e) }
func (e Info) Dispatch(h Handler)             { h.OnInfo(e) }
func (e Unknown) Dispatch(h Handler)          { h.OnUnknown(e) }

func (JoinAck) isEvent()          {}
func (QuizLoadedAck) isEvent()    {}
func (PlayerJoined) isEvent()     {}
func (PlayerLeft) isEvent()       {}
func (GameStarted) isEvent()      {}
func (NewQuestion) isEvent()      {}
func (UpdateScoreboard) isEvent() {}
func (GameOver) isEvent()         {}
func (ServerError) isEvent()      {}
func (Info) isEvent()             {}
func (Unknown) isEvent()          {}

// IsQuizLoadFailure reports whether the server rejected the uploaded quiz.
func (e ServerError) IsQuizLoadFailure() bool {
	return e.Code == CodeQuizLoadError || strings.Contains(e.Message, InvalidQuizFormatMessage)
}

// IsHostDisconnect reports whether the server considers the host gone.
func (e ServerError) IsHostDisconnect() bool {
	return e.Code == CodeHostDisconnected
}

// Decode parses a raw frame into an Event. Frames that are not valid envelopes, or whose payload
// does not match the declared type, return an error wrapping domain.ErrProtocol. Unrecognized
// types decode to Unknown without error.
func Decode(data []byte) (Event, error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case EvtJoinAck:
		return decodeAs[JoinAck](env)
	case EvtQuizLoadedAck:
		return decodeAs[QuizLoadedAck](env)
	case EvtPlayerJoined:
		return decodeAs[PlayerJoined](env)
	case EvtPlayerLeft:
		return decodeAs[PlayerLeft](env)
	case EvtGameStarted:
		return GameStarted{}, nil
	case EvtNewQuestion:
		return decodeAs[NewQuestion](env)
	case EvtUpdateScoreboard:
		return decodeAs[UpdateScoreboard](env)
	case EvtGameOver:
		return decodeAs[GameOver](env)
	case EvtError:
		return decodeAs[ServerError](env)
	case EvtInfo:
		return decodeAs[Info](env)
	default:
		return Unknown{Name: env.Type, Payload: env.Payload}, nil
	}
}

func decodeAs[T Event](env Envelope) (Event, error) {
	var v T
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", domain.ErrProtocol, env.Type, err)
	}
	return v, nil
}

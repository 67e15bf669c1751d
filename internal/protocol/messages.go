// Package protocol defines the JSON envelopes exchanged between a quiz host and the game server.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"quiz-host/internal/domain"
)

// Host-originated command types.
const (
	CmdJoinGame     = "join_game"
	CmdLoadQuizData = "load_quiz_data"
	CmdStartGame    = "start_game"
	CmdNextQuestion = "next_question"
	CmdEndGame      = "end_game"
	CmdSubmitAnswer = "submit_answer"
)

// Server-originated event types.
const (
	EvtJoinAck          = "join_ack"
	EvtQuizLoadedAck    = "quiz_loaded_ack"
	EvtPlayerJoined     = "player_joined"
	EvtPlayerLeft       = "player_left"
	EvtGameStarted      = "game_started"
	EvtNewQuestion      = "new_question"
	EvtUpdateScoreboard = "update_scoreboard"
	EvtGameOver         = "game_over"
	EvtError            = "error"
	EvtInfo             = "info"
	EvtAnswerResult     = "answer_result"
)

// Server error codes.
const (
	CodeQuizLoadError    = "QUIZ_LOAD_ERROR"
	CodeHostDisconnected = "HOST_DISCONNECTED"
	CodeInvalidGameCode  = "INVALID_GAME_CODE"
)

// InvalidQuizFormatMessage is the message the server attaches to rejected quiz uploads
// when it does not send a code.
const InvalidQuizFormatMessage = "Formato de cuestionario inválido"

// IsSessionCritical reports whether failing to send cmd leaves the host unable to drive the game.
func IsSessionCritical(cmd string) bool {
	switch cmd {
	case CmdStartGame, CmdNextQuestion, CmdEndGame:
		return true
	}
	return false
}

// Envelope is the wire shape of every message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// JoinGame is the payload of join_game.
type JoinGame struct {
	Nickname string `json:"nickname"`
}

// SubmitAnswer is the payload of submit_answer, sent by players.
type SubmitAnswer struct {
	AnswerID string `json:"answer_id"`
}

// AnswerResult is the personal reply to submit_answer. Hosts never receive it.
type AnswerResult struct {
	IsCorrect       bool   `json:"is_correct"`
	CorrectAnswerID string `json:"correct_answer_id"`
	PointsAwarded   int    `json:"points_awarded"`
	CurrentScore    int    `json:"current_score"`
	CurrentRank     int    `json:"current_rank"`
}

// Empty is the payload of commands that carry no data.
type Empty struct{}

// Encode serializes a command envelope. A nil payload is sent as an empty object.
func Encode(msgType string, payload any) ([]byte, error) {
	if payload == nil {
		payload = Empty{}
	}
	data, err := json.Marshal(outboundMessage[any]{Type: msgType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msgType, err)
	}
	return data, nil
}

// DecodeEnvelope parses the outer envelope without interpreting the payload.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: malformed envelope: %v", domain.ErrProtocol, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: envelope without type", domain.ErrProtocol)
	}
	if len(bytes.TrimSpace(env.Payload)) == 0 || bytes.Equal(bytes.TrimSpace(env.Payload), []byte("null")) {
		env.Payload = json.RawMessage("{}")
	}
	return env, nil
}

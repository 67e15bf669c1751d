package domain

import "time"

// DefaultTimeLimit is applied to questions imported without a time limit.
const DefaultTimeLimit = 20

// Option represents a possible answer for a question.
type Option struct {
	ID        string `json:"id" validate:"required"`
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// Question models a multiple choice question with exactly one correct option.
type Question struct {
	ID        string   `json:"id" validate:"required"`
	Text      string   `json:"text" validate:"required"`
	TimeLimit int      `json:"time_limit" validate:"min=5,max=120"`
	Options   []Option `json:"options" validate:"min=2,max=4,one_correct,dive"`
	Order     int      `json:"order"`
}

// Quiz is an ordered collection of questions.
type Quiz struct {
	ID        string     `json:"id" validate:"required"`
	Title     string     `json:"title" validate:"required"`
	Questions []Question `json:"questions" validate:"min=1,dive"`
}

// ScoreEntry is one ranked row of a scoreboard or podium as reported by the server.
type ScoreEntry struct {
	Rank     int    `json:"rank"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// GameRecord summarizes a finished or aborted hosted game.
type GameRecord struct {
	GameCode   string       `json:"game_code"`
	QuizID     string       `json:"quiz_id"`
	QuizTitle  string       `json:"quiz_title"`
	Outcome    string       `json:"outcome"`
	Podium     []ScoreEntry `json:"podium,omitempty"`
	FinishedAt time.Time    `json:"finished_at"`
}

// QuestionByID returns the question with the given id.
func (q Quiz) QuestionByID(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// CorrectOptionID returns the id of the option flagged correct.
func CorrectOptionID(q Question) (string, bool) {
	for _, opt := range q.Options {
		if opt.IsCorrect {
			return opt.ID, true
		}
	}
	return "", false
}

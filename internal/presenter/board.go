// Package presenter projects host session state into what the host sees.
package presenter

import (
	"fmt"

	"quiz-host/internal/domain"
)

// LiveBoardSize is the number of rows shown on the scoreboard between questions.
const LiveBoardSize = 5

const (
	WaitingForPlayers = "Waiting for players..."
	WaitingForResults = "Waiting for results..."
	PodiumUnavailable = "Podium unavailable."
	GameCodePending   = "CREATING..."
)

// Row is one rendered ranking line.
type Row struct {
	Badge    string
	Rank     int
	Nickname string
	Score    int
}

// Board is a ranking ready for display. Placeholder is set exactly when Rows is empty.
type Board struct {
	Rows        []Row
	Placeholder string
}

var medals = map[int]string{1: "🥇", 2: "🥈", 3: "🥉"}

// Leaderboard shows at most the top LiveBoardSize entries, in server order.
func Leaderboard(entries []domain.ScoreEntry) Board {
	if len(entries) == 0 {
		return Board{Placeholder: WaitingForResults}
	}
	n := len(entries)
	if n > LiveBoardSize {
		n = LiveBoardSize
	}
	rows := make([]Row, 0, n)
	for _, e := range entries[:n] {
		rows = append(rows, Row{Badge: fmt.Sprintf("%d.", e.Rank), Rank: e.Rank, Nickname: e.Nickname, Score: e.Score})
	}
	return Board{Rows: rows}
}

// Podium shows the complete final ranking with medals for the first three ranks.
func Podium(entries []domain.ScoreEntry) Board {
	if len(entries) == 0 {
		return Board{Placeholder: PodiumUnavailable}
	}
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		badge, ok := medals[e.Rank]
		if !ok {
			badge = fmt.Sprintf("%d.", e.Rank)
		}
		rows = append(rows, Row{Badge: badge, Rank: e.Rank, Nickname: e.Nickname, Score: e.Score})
	}
	return Board{Rows: rows}
}

var optionStyles = [4]struct{ symbol, color string }{
	{"▲", "red"},
	{"◆", "blue"},
	{"●", "yellow"},
	{"■", "green"},
}

// OptionStyle returns the symbol and color players see for the option at position i.
func OptionStyle(i int) (symbol, color string) {
	s := optionStyles[((i%4)+4)%4]
	return s.symbol, s.color
}

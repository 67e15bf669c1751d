package presenter

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const barWidth = 30

// TextRenderer writes each Screen as a plain text frame.
type TextRenderer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (r *TextRenderer) Render(s Screen) {
	var b strings.Builder
	switch s.View {
	case ViewDashboard:
		b.WriteString("== Dashboard ==\n")
		if s.Notice != "" {
			fmt.Fprintf(&b, "%s\n", s.Notice)
		}
	case ViewLobby:
		renderLobby(&b, s)
	case ViewGame:
		renderGame(&b, s)
	case ViewEnd:
		b.WriteString("== Final results ==\n")
		renderBoard(&b, s.Podium)
		b.WriteString("[back] return to dashboard\n")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.w, b.String())
}

func renderLobby(b *strings.Builder, s Screen) {
	fmt.Fprintf(b, "== Lobby ==\nGame code: %s\n", s.GameCode)
	if s.JoinURL != "" {
		fmt.Fprintf(b, "Join at: %s\n", s.JoinURL)
	}
	status := s.Lobby.QuizStatus
	if s.Lobby.QuizFailed {
		status = "ERROR: " + status
	}
	fmt.Fprintf(b, "Quiz: %s\n", status)
	fmt.Fprintf(b, "Players (%d):\n", s.Lobby.PlayerCount)
	if s.Lobby.Placeholder != "" {
		fmt.Fprintf(b, "  %s\n", s.Lobby.Placeholder)
	}
	for _, p := range s.Lobby.Players {
		fmt.Fprintf(b, "  - %s\n", p)
	}
	switch {
	case s.Lobby.StartPending:
		b.WriteString("Starting...\n")
	case s.Lobby.CanStart:
		b.WriteString("[start] start the game   [cancel] cancel\n")
	default:
		b.WriteString("[cancel] cancel\n")
	}
}

func renderGame(b *strings.Builder, s Screen) {
	g := s.Game
	if g.Waiting || g.Question == nil {
		b.WriteString("== Game started ==\nWaiting for the first question...\n")
	} else {
		q := g.Question
		fmt.Fprintf(b, "== Question %d / %d ==\n%s\n", q.Number, q.Total, q.Text)
		for _, opt := range q.Options {
			mark := ""
			if opt.Correct {
				mark = "  (correct)"
			}
			fmt.Fprintf(b, "  %s %-6s %s%s\n", opt.Symbol, opt.Color, opt.Text, mark)
		}
	}
	if g.ShowResults {
		b.WriteString("Results\n")
		renderBoard(b, g.Leaderboard)
	} else if g.Question != nil {
		filled := int(g.Timer.Fraction*barWidth + 0.5)
		if filled < 0 {
			filled = 0
		}
		if filled > barWidth {
			filled = barWidth
		}
		bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
		urgent := ""
		if g.Timer.Urgent && !g.Timer.Expired {
			urgent = " !"
		}
		fmt.Fprintf(b, "[%s] %s%s\n", bar, g.Timer.Label, urgent)
	}
	var actions []string
	if g.CanNext {
		actions = append(actions, "[next] next question")
	}
	if g.CanEnd {
		actions = append(actions, "[end] end game")
	}
	if g.EndPending {
		actions = append(actions, "ending...")
	}
	if len(actions) > 0 {
		fmt.Fprintf(b, "%s\n", strings.Join(actions, "   "))
	}
}

func renderBoard(b *strings.Builder, board Board) {
	if board.Placeholder != "" {
		fmt.Fprintf(b, "  %s\n", board.Placeholder)
		return
	}
	for _, row := range board.Rows {
		fmt.Fprintf(b, "  %-4s %-20s %6d\n", row.Badge, row.Nickname, row.Score)
	}
}

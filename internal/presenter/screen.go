package presenter

// View identifies which screen the host UI shows.
type View string

const (
	ViewDashboard View = "dashboard"
	ViewLobby     View = "lobby"
	ViewGame      View = "game"
	ViewEnd       View = "end"
)

// Screen is the complete presentation state produced by the host session after every change.
type Screen struct {
	View     View
	Phase    string
	Notice   string
	GameCode string
	JoinURL  string
	Lobby    LobbyPanel
	Game     GamePanel
	Podium   Board
}

type LobbyPanel struct {
	QuizStatus   string
	QuizFailed   bool
	QuizReady    bool
	Players      []string
	PlayerCount  int
	Placeholder  string
	CanStart     bool
	StartPending bool
	CanCancel    bool
}

type GamePanel struct {
	Waiting     bool
	Question    *QuestionPanel
	Timer       TimerPanel
	ShowResults bool
	Leaderboard Board
	CanNext     bool
	CanEnd      bool
	EndPending  bool
}

type QuestionPanel struct {
	Number       int
	Total        int
	Text         string
	Options      []OptionPanel
	CorrectKnown bool
}

type OptionPanel struct {
	ID      string
	Text    string
	Symbol  string
	Color   string
	Correct bool
}

// TimerPanel mirrors the question countdown. Fraction is the remaining share used for the bar.
type TimerPanel struct {
	Remaining int
	Total     int
	Fraction  float64
	Urgent    bool
	Expired   bool
	Running   bool
	Label     string
}

// Renderer shows a Screen.
type Renderer interface {
	Render(Screen)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Screen)

func (f RendererFunc) Render(s Screen) { f(s) }

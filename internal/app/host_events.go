package app

import (
	"fmt"

	"quiz-host/internal/domain"
	"quiz-host/internal/presenter"
	"quiz-host/internal/protocol"

	"github.com/sirupsen/logrus"
)

// dispatcher applies server events to the host session. It only runs on the session loop,
// after onFrame checked that a session exists.
type dispatcher struct{ h *HostSession }

var _ protocol.Handler = dispatcher{}

func (d dispatcher) OnJoinAck(ev protocol.JoinAck) {
	h, s := d.h, d.h.sess
	if s.roster.IsHost(ev.Nickname) {
		h.log.WithField("nickname", ev.Nickname).Info("host registered")
		return
	}
	if s.roster.Add(ev.Nickname) {
		h.metrics.SetPlayers(s.roster.Count())
	}
}

func (d dispatcher) OnQuizLoadedAck(ev protocol.QuizLoadedAck) {
	h, s := d.h, d.h.sess
	s.quizAcknowledged = true
	s.quizFailed = false
	s.quizStatus = fmt.Sprintf("%q loaded (%d questions)", ev.Title, ev.QuestionCount)
	h.log.WithFields(logrus.Fields{"title": ev.Title, "questions": ev.QuestionCount}).Info("quiz acknowledged")
}

func (d dispatcher) OnPlayerJoined(ev protocol.PlayerJoined) {
	h, s := d.h, d.h.sess
	if !s.roster.Add(ev.Nickname) {
		h.log.WithField("nickname", ev.Nickname).Debug("ignoring join of host or known player")
		return
	}
	h.metrics.SetPlayers(s.roster.Count())
	h.log.WithFields(logrus.Fields{"nickname": ev.Nickname, "server_count": ev.PlayerCount}).Info("player joined")
}

func (d dispatcher) OnPlayerLeft(ev protocol.PlayerLeft) {
	h, s := d.h, d.h.sess
	if !s.roster.Remove(ev.Nickname) {
		return
	}
	h.metrics.SetPlayers(s.roster.Count())
	h.log.WithField("nickname", ev.Nickname).Info("player left")
}

func (d dispatcher) OnGameStarted(ev protocol.GameStarted) {
	h, s := d.h, d.h.sess
	if h.phase != PhaseLobby {
		h.unexpected(ev)
		return
	}
	s.started = true
	s.startPending = false
	h.log.Info("game started")
}

func (d dispatcher) OnNewQuestion(ev protocol.NewQuestion) {
	h, s := d.h, d.h.sess
	switch h.phase {
	case PhaseLobby, PhaseScoreboard:
	case PhaseQuestion:
		h.log.WithField("question_number", ev.QuestionNumber).Warn("new question while one is displayed, replacing it")
	default:
		h.unexpected(ev)
		return
	}
	s.started = true
	s.startPending = false
	s.questionIndex = ev.QuestionNumber - 1
	s.totalQuestions = ev.TotalQuestions
	s.question = h.questionPanel(ev)
	s.scoreboard = nil
	h.setPhase(PhaseQuestion)
	h.startTimer(ev.TimeLimit)
}

func (d dispatcher) OnUpdateScoreboard(ev protocol.UpdateScoreboard) {
	h, s := d.h, d.h.sess
	if h.phase != PhaseQuestion && h.phase != PhaseScoreboard {
		h.unexpected(ev)
		return
	}
	h.stopTimer()
	s.scoreboard = ev.Scoreboard
	h.setPhase(PhaseScoreboard)
}

func (d dispatcher) OnGameOver(ev protocol.GameOver) {
	h, s := d.h, d.h.sess
	if h.phase == PhaseCreating || h.phase == PhaseEnded {
		h.unexpected(ev)
		return
	}
	h.stopTimer()
	s.podium = ev.Podium
	s.endPending = false
	h.setPhase(PhaseEnded)
	h.log.WithField("podium", len(ev.Podium)).Info("game over")
	if s.channel != nil {
		s.channel.Close(CloseNormal, reasonFinished)
	}
	h.record(OutcomeFinished)
}

func (d dispatcher) OnServerError(ev protocol.ServerError) {
	h, s := d.h, d.h.sess
	err := fmt.Errorf("%w: %s", domain.ErrServerReported, ev.Message)
	h.log.WithError(err).WithField("code", ev.Code).Warn("server reported an error")
	h.notifier.Notify("Server error: " + ev.Message)

	switch {
	case ev.IsQuizLoadFailure():
		s.quizStatus = ev.Message
		s.quizFailed = true
		h.notice = "The server rejected the quiz: " + ev.Message
		h.abort(OutcomeCancelled, reasonCancelled)
	case ev.IsHostDisconnect():
		h.notice = "The server dropped the host: " + ev.Message
		h.abort(OutcomeCancelled, reasonCancelled)
	}
}

func (d dispatcher) OnInfo(ev protocol.Info) {
	d.h.log.WithField("message", ev.Message).Info("server info")
}

func (d dispatcher) OnUnknown(ev protocol.Unknown) {
	d.h.log.WithField("type", ev.Name).Warn("ignoring unknown event type")
}

func (h *HostSession) unexpected(ev protocol.Event) {
	err := fmt.Errorf("%w: %s during %s", domain.ErrProtocol, ev.Type(), h.phase)
	h.log.WithError(err).Warn("ignoring unexpected event")
}

// questionPanel renders a wire question. Correctness comes from the local snapshot only.
func (h *HostSession) questionPanel(ev protocol.NewQuestion) *presenter.QuestionPanel {
	s := h.sess
	source, ok := domain.Question{}, false
	if ev.QuestionID != "" {
		source, ok = s.quiz.QuestionByID(ev.QuestionID)
	}
	if !ok && s.questionIndex >= 0 && s.questionIndex < len(s.quiz.Questions) {
		source, ok = s.quiz.Questions[s.questionIndex], true
	}
	correctID, known := "", false
	if ok {
		correctID, known = domain.CorrectOptionID(source)
	} else {
		h.log.WithField("question_number", ev.QuestionNumber).Warn("question not in quiz snapshot, correct answer unknown")
	}

	panel := &presenter.QuestionPanel{
		Number:       ev.QuestionNumber,
		Total:        ev.TotalQuestions,
		Text:         ev.QuestionText,
		Options:      make([]presenter.OptionPanel, 0, len(ev.Options)),
		CorrectKnown: known,
	}
	for i, opt := range ev.Options {
		symbol, color := presenter.OptionStyle(i)
		panel.Options = append(panel.Options, presenter.OptionPanel{
			ID:      opt.ID,
			Text:    opt.Text,
			Symbol:  symbol,
			Color:   color,
			Correct: known && opt.ID == correctID,
		})
	}
	return panel
}

func (h *HostSession) screen() presenter.Screen {
	sc := presenter.Screen{Phase: string(h.phase), Notice: h.notice}
	s := h.sess
	if s == nil {
		sc.View = presenter.ViewDashboard
		return sc
	}

	switch {
	case h.phase == PhaseEnded:
		sc.View = presenter.ViewEnd
	case h.inGame():
		sc.View = presenter.ViewGame
	default:
		sc.View = presenter.ViewLobby
	}

	sc.GameCode = presenter.GameCodePending
	if s.gameCode != "" {
		sc.GameCode = s.gameCode
		if h.joinURL != nil {
			sc.JoinURL = h.joinURL(s.gameCode)
		}
	}

	sc.Lobby = presenter.LobbyPanel{
		QuizStatus:   s.quizStatus,
		QuizFailed:   s.quizFailed,
		QuizReady:    s.quizAcknowledged,
		Players:      s.roster.Names(),
		PlayerCount:  s.roster.Count(),
		CanStart:     h.canStart(),
		StartPending: s.startPending,
		CanCancel:    h.phase == PhaseCreating || h.phase == PhaseLobby,
	}
	if s.roster.Empty() {
		sc.Lobby.Placeholder = presenter.WaitingForPlayers
	}

	canAdvance := (h.phase == PhaseQuestion || h.phase == PhaseScoreboard) && !s.endPending
	sc.Game = presenter.GamePanel{
		Waiting:     s.question == nil,
		Timer:       h.timerPanel(),
		ShowResults: h.phase == PhaseScoreboard,
		Leaderboard: presenter.Leaderboard(s.scoreboard),
		CanNext:     canAdvance,
		CanEnd:      h.inGame() && !s.endPending,
		EndPending:  s.endPending,
	}
	if s.question != nil {
		q := *s.question
		q.Options = append([]presenter.OptionPanel(nil), s.question.Options...)
		sc.Game.Question = &q
	}

	if h.phase == PhaseEnded {
		sc.Podium = presenter.Podium(s.podium)
	}
	return sc
}

func (h *HostSession) timerPanel() presenter.TimerPanel {
	if h.timer == nil {
		return presenter.TimerPanel{}
	}
	t := h.timer
	label := t.Label()
	if h.phase == PhaseScoreboard {
		label = "Results"
	}
	return presenter.TimerPanel{
		Remaining: t.Remaining(),
		Total:     t.Total(),
		Fraction:  1 - t.ElapsedFraction(),
		Urgent:    t.Urgent(),
		Expired:   t.Expired(),
		Running:   h.stopTicker != nil,
		Label:     label,
	}
}

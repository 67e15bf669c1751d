package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz-host/internal/domain"
	"quiz-host/internal/metrics"
	"quiz-host/internal/presenter"
	"quiz-host/internal/protocol"

	"github.com/sirupsen/logrus"
)

// Phase is the stage of the host-side state machine.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCreating   Phase = "creating"
	PhaseLobby      Phase = "lobby_open"
	PhaseQuestion   Phase = "question_display"
	PhaseScoreboard Phase = "scoreboard"
	PhaseEnded      Phase = "ended"
	PhaseCancelled  Phase = "cancelled"
	PhaseErrored    Phase = "errored"
)

const (
	OutcomeFinished  = "finished"
	OutcomeCancelled = "cancelled"
	OutcomeErrored   = "errored"
)

// RFC 6455 close codes the session distinguishes.
const (
	CloseNormal          = 1000
	ClosePolicyViolation = 1008
)

const (
	reasonCancelled = "Host cancelled game"
	reasonFinished  = "Game finished normally"
	reasonError     = "Host session error"
)

// Options wires the collaborators of a HostSession. Allocator and Dialer are required.
type Options struct {
	Allocator Allocator
	Dialer    Dialer
	Renderer  presenter.Renderer
	Confirmer Confirmer
	Notifier  Notifier
	Recorder  GameRecorder
	Metrics   *metrics.Metrics
	Ticker    TickerFunc
	Logger    *logrus.Entry
	// JoinURL builds the link players open for a game code.
	JoinURL func(gameCode string) string
	Now     func() time.Time
}

// session holds everything about the one game this host is running.
type session struct {
	gameCode         string
	hostNickname     string
	quiz             domain.Quiz
	roster           *Roster
	channel          Channel
	quizAcknowledged bool
	quizStatus       string
	quizFailed       bool
	started          bool
	startPending     bool
	endPending       bool
	questionIndex    int
	totalQuestions   int
	question         *presenter.QuestionPanel
	scoreboard       []domain.ScoreEntry
	podium           []domain.ScoreEntry
	recorded         bool
}

// HostSession drives one hosted game at a time. All state is owned by a single goroutine:
// user commands, transport callbacks and timer ticks are queued on one inbox and handled in order.
type HostSession struct {
	allocator Allocator
	dialer    Dialer
	renderer  presenter.Renderer
	confirmer Confirmer
	notifier  Notifier
	recorder  GameRecorder
	metrics   *metrics.Metrics
	ticker    TickerFunc
	joinURL   func(string) string
	now       func() time.Time
	baseLog   *logrus.Entry
	log       *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan hostMsg
	done   chan struct{}

	gen        uint64
	phase      Phase
	sess       *session
	notice     string
	timer      *Countdown
	stopTicker func()
	timerGen   uint64
}

// NewHostSession starts the session loop. It runs until ctx is cancelled or Close is called.
func NewHostSession(parent context.Context, opts Options) *HostSession {
	ctx, cancel := context.WithCancel(parent)
	h := &HostSession{
		allocator: opts.Allocator,
		dialer:    opts.Dialer,
		renderer:  opts.Renderer,
		confirmer: opts.Confirmer,
		notifier:  opts.Notifier,
		recorder:  opts.Recorder,
		metrics:   opts.Metrics,
		ticker:    opts.Ticker,
		joinURL:   opts.JoinURL,
		now:       opts.Now,
		baseLog:   opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		inbox:     make(chan hostMsg, 64),
		done:      make(chan struct{}),
		phase:     PhaseIdle,
	}
	if h.baseLog == nil {
		h.baseLog = logrus.NewEntry(logrus.StandardLogger())
	}
	h.baseLog = h.baseLog.WithField("component", "host_session")
	h.log = h.baseLog
	if h.renderer == nil {
		h.renderer = presenter.RendererFunc(func(presenter.Screen) {})
	}
	if h.confirmer == nil {
		h.confirmer = confirmAll{}
	}
	if h.notifier == nil {
		h.notifier = logNotifier{log: h.baseLog}
	}
	if h.ticker == nil {
		h.ticker = RealTicker
	}
	if h.now == nil {
		h.now = time.Now
	}
	go h.loop()
	return h
}

type hostMsg interface{ isHostMsg() }

type createGameMsg struct {
	quiz  domain.Quiz
	reply chan error
}

type command int

const (
	cmdStart command = iota
	cmdNext
	cmdEnd
	cmdCancel
	cmdBack
)

type commandMsg struct {
	cmd   command
	reply chan error
}

type screenMsg struct{ reply chan presenter.Screen }

type allocatedMsg struct {
	gen  uint64
	code string
	err  error
}

type openedMsg struct{ gen uint64 }

type frameMsg struct {
	gen  uint64
	data []byte
}

type closedMsg struct {
	gen      uint64
	code     int
	reason   string
	wasClean bool
}

type failedMsg struct {
	gen uint64
	err error
}

type tickMsg struct{ gen uint64 }

func (createGameMsg) isHostMsg() {}
func (commandMsg) isHostMsg()    {}
func (screenMsg) isHostMsg()     {}
func (allocatedMsg) isHostMsg()  {}
func (openedMsg) isHostMsg()     {}
func (frameMsg) isHostMsg()      {}
func (closedMsg) isHostMsg()     {}
func (failedMsg) isHostMsg()     {}
func (tickMsg) isHostMsg()       {}

// CreateGame validates quiz, tears down any running game and requests a new one.
// The returned error only covers validation; allocation and connection failures are
// reported through the Notifier and the session returns to idle.
func (h *HostSession) CreateGame(quiz domain.Quiz) error {
	reply := make(chan error, 1)
	return h.request(createGameMsg{quiz: quiz, reply: reply}, reply)
}

// StartGame sends start_game once the quiz is acknowledged and a player joined.
func (h *HostSession) StartGame() error { return h.command(cmdStart) }

// NextQuestion asks the server to advance.
func (h *HostSession) NextQuestion() error { return h.command(cmdNext) }

// EndGame asks for confirmation and then asks the server to finish the game.
func (h *HostSession) EndGame() error { return h.command(cmdEnd) }

// Cancel asks for confirmation, closes the channel and returns to idle.
func (h *HostSession) Cancel() error { return h.command(cmdCancel) }

// BackToDashboard leaves the final results screen.
func (h *HostSession) BackToDashboard() error { return h.command(cmdBack) }

// Screen returns the current presentation state.
func (h *HostSession) Screen() presenter.Screen {
	reply := make(chan presenter.Screen, 1)
	select {
	case h.inbox <- screenMsg{reply: reply}:
	case <-h.done:
		return presenter.Screen{View: presenter.ViewDashboard, Phase: string(PhaseIdle)}
	}
	select {
	case sc := <-reply:
		return sc
	case <-h.done:
		return presenter.Screen{View: presenter.ViewDashboard, Phase: string(PhaseIdle)}
	}
}

// Close tears down any running game and stops the loop.
func (h *HostSession) Close() {
	h.cancel()
	<-h.done
}

// Done is closed once the loop has stopped.
func (h *HostSession) Done() <-chan struct{} { return h.done }

func (h *HostSession) command(cmd command) error {
	reply := make(chan error, 1)
	return h.request(commandMsg{cmd: cmd, reply: reply}, reply)
}

func (h *HostSession) request(m hostMsg, reply chan error) error {
	select {
	case h.inbox <- m:
	case <-h.done:
		return domain.ErrHostClosed
	}
	select {
	case err := <-reply:
		return err
	case <-h.done:
		return domain.ErrHostClosed
	}
}

func (h *HostSession) post(m hostMsg) {
	select {
	case h.inbox <- m:
	case <-h.done:
	}
}

func (h *HostSession) loop() {
	defer close(h.done)
	h.render()
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return
		case m := <-h.inbox:
			if sm, ok := m.(screenMsg); ok {
				sm.reply <- h.screen()
				continue
			}
			h.handle(m)
			h.render()
		}
	}
}

func (h *HostSession) handle(m hostMsg) {
	switch m := m.(type) {
	case createGameMsg:
		m.reply <- h.createGame(m.quiz)
	case commandMsg:
		m.reply <- h.runCommand(m.cmd)
	case allocatedMsg:
		h.onAllocated(m)
	case openedMsg:
		h.onOpened(m.gen)
	case frameMsg:
		h.onFrame(m.gen, m.data)
	case closedMsg:
		h.onClosed(m)
	case failedMsg:
		h.onFailed(m.gen, m.err)
	case tickMsg:
		h.onTick(m.gen)
	}
}

func (h *HostSession) render() {
	h.renderer.Render(h.screen())
}

func (h *HostSession) setPhase(p Phase) {
	if h.phase == p {
		return
	}
	h.log.WithFields(logrus.Fields{"from": h.phase, "to": p}).Debug("phase transition")
	h.phase = p
}

func (h *HostSession) createGame(quiz domain.Quiz) error {
	if err := domain.Validate(quiz); err != nil {
		return err
	}
	snapshot, err := domain.Snapshot(quiz)
	if err != nil {
		return err
	}
	if h.sess != nil {
		h.log.Info("tearing down previous game before creating a new one")
		h.abort(OutcomeCancelled, reasonCancelled)
	}

	h.gen++
	gen := h.gen
	h.notice = ""
	h.sess = &session{
		quiz:       snapshot,
		roster:     NewRoster(""),
		quizStatus: "Waiting for game code...",
	}
	h.setPhase(PhaseCreating)
	h.log.WithField("quiz_id", snapshot.ID).Info("requesting new game")

	go func() {
		code, err := h.allocator.CreateGame(h.ctx)
		h.post(allocatedMsg{gen: gen, code: code, err: err})
	}()
	return nil
}

func (h *HostSession) onAllocated(m allocatedMsg) {
	if m.gen != h.gen || h.phase != PhaseCreating || h.sess == nil {
		h.log.Debug("ignoring stale allocation result")
		return
	}
	err := m.err
	if err == nil && m.code == "" {
		err = errors.New("response without game_code")
	}
	if err != nil {
		if !errors.Is(err, domain.ErrAllocation) {
			err = fmt.Errorf("%w: %v", domain.ErrAllocation, err)
		}
		h.fail(err, "Could not create the game: "+err.Error())
		return
	}

	s := h.sess
	s.gameCode = m.code
	s.hostNickname = HostNickname(m.code)
	s.roster = NewRoster(s.hostNickname)
	h.log = h.baseLog.WithField("game_code", m.code)

	ch, err := h.dialer.Open(m.code, channelListener{h: h, gen: h.gen})
	if err != nil {
		if !errors.Is(err, domain.ErrConnection) {
			err = fmt.Errorf("%w: %v", domain.ErrConnection, err)
		}
		h.fail(err, "Could not connect to the game: "+err.Error())
		return
	}
	s.channel = ch
	s.quizStatus = "Connecting..."
	h.setPhase(PhaseLobby)
	h.log.WithField("channel", ch.ID()).Info("game allocated, lobby open")
}

func (h *HostSession) current(gen uint64) bool {
	return gen == h.gen && h.sess != nil
}

func (h *HostSession) onOpened(gen uint64) {
	if !h.current(gen) || h.sess.channel == nil {
		return
	}
	s := h.sess
	h.log.Info("channel open, registering host")
	// The server binds the quiz upload to the registered host, so join_game goes first.
	h.sendPassive(protocol.CmdJoinGame, protocol.JoinGame{Nickname: s.hostNickname})
	if h.sendPassive(protocol.CmdLoadQuizData, s.quiz) {
		s.quizStatus = "Sending quiz..."
	}
}

func (h *HostSession) onFrame(gen uint64, data []byte) {
	if !h.current(gen) {
		return
	}
	ev, err := protocol.Decode(data)
	if err != nil {
		h.metrics.EventReceived("malformed")
		h.log.WithError(err).Warn("dropping malformed message")
		return
	}
	if _, unknown := ev.(protocol.Unknown); unknown {
		h.metrics.EventReceived("unknown")
	} else {
		h.metrics.EventReceived(ev.Type())
	}
	ev.Dispatch(dispatcher{h: h})
}

func (h *HostSession) onClosed(m closedMsg) {
	if !h.current(m.gen) {
		h.log.Debug("ignoring close of a retired channel")
		return
	}
	s := h.sess
	s.channel = nil
	entry := h.log.WithFields(logrus.Fields{"code": m.code, "reason": m.reason, "clean": m.wasClean})
	if h.phase == PhaseEnded {
		entry.Info("channel closed after game over")
		return
	}
	if m.code == CloseNormal || m.code == ClosePolicyViolation {
		entry.Warn("channel closed before the game ended")
		h.notice = "The game was closed by the server."
		h.abort(OutcomeCancelled, "")
		return
	}
	err := fmt.Errorf("%w: code %d %s", domain.ErrUnexpectedClosure, m.code, m.reason)
	h.fail(err, fmt.Sprintf("Connection to the game was lost (code %d). The game cannot continue.", m.code))
}

func (h *HostSession) onFailed(gen uint64, err error) {
	if !h.current(gen) {
		return
	}
	if h.phase == PhaseEnded {
		h.log.WithError(err).Info("channel error after game over")
		return
	}
	h.fail(fmt.Errorf("%w: %v", domain.ErrConnection, err), "Connection error: the game cannot continue.")
}

func (h *HostSession) runCommand(cmd command) error {
	switch cmd {
	case cmdStart:
		return h.startGame()
	case cmdNext:
		return h.nextQuestion()
	case cmdEnd:
		return h.endGame()
	case cmdCancel:
		return h.cancelGame()
	case cmdBack:
		return h.backToDashboard()
	}
	return fmt.Errorf("unknown command %d", cmd)
}

func (h *HostSession) canStart() bool {
	s := h.sess
	return s != nil && h.phase == PhaseLobby && !s.started && !s.startPending &&
		s.quizAcknowledged && !s.roster.Empty()
}

func (h *HostSession) inGame() bool {
	return h.phase == PhaseQuestion || h.phase == PhaseScoreboard ||
		(h.phase == PhaseLobby && h.sess != nil && h.sess.started)
}

func (h *HostSession) startGame() error {
	s := h.sess
	if s == nil {
		return domain.ErrNoSession
	}
	if h.phase != PhaseLobby || s.started || s.startPending {
		return fmt.Errorf("%w: start_game in %s", domain.ErrInvalidPhase, h.phase)
	}
	if !h.canStart() {
		return domain.ErrStartNotAllowed
	}
	if err := h.sendCritical(protocol.CmdStartGame); err != nil {
		return err
	}
	s.startPending = true
	return nil
}

func (h *HostSession) nextQuestion() error {
	s := h.sess
	if s == nil {
		return domain.ErrNoSession
	}
	if (h.phase != PhaseQuestion && h.phase != PhaseScoreboard) || s.endPending {
		return fmt.Errorf("%w: next_question in %s", domain.ErrInvalidPhase, h.phase)
	}
	return h.sendCritical(protocol.CmdNextQuestion)
}

func (h *HostSession) endGame() error {
	s := h.sess
	if s == nil {
		return domain.ErrNoSession
	}
	if !h.inGame() || s.endPending {
		return fmt.Errorf("%w: end_game in %s", domain.ErrInvalidPhase, h.phase)
	}
	if !h.confirmer.Confirm("End the game now for everyone?") {
		return nil
	}
	if err := h.sendCritical(protocol.CmdEndGame); err != nil {
		return err
	}
	s.endPending = true
	return nil
}

func (h *HostSession) cancelGame() error {
	switch h.phase {
	case PhaseIdle:
		return domain.ErrNoSession
	case PhaseEnded:
		return fmt.Errorf("%w: cancel in %s", domain.ErrInvalidPhase, h.phase)
	}
	if !h.confirmer.Confirm("Cancel this game? All players will be disconnected.") {
		return nil
	}
	h.log.Info("host cancelled the game")
	h.notice = "Game cancelled."
	h.abort(OutcomeCancelled, reasonCancelled)
	return nil
}

func (h *HostSession) backToDashboard() error {
	switch h.phase {
	case PhaseIdle:
		return nil
	case PhaseEnded:
		h.notice = ""
		h.teardown("", "")
		return nil
	}
	return fmt.Errorf("%w: back in %s", domain.ErrInvalidPhase, h.phase)
}

// sendCritical sends a command the game cannot continue without. Failure tears the session down.
func (h *HostSession) sendCritical(cmd string) error {
	s := h.sess
	sent := s.channel != nil && s.channel.Send(cmd, protocol.Empty{})
	h.metrics.CommandSent(cmd, sent)
	if sent {
		h.log.WithField("command", cmd).Info("command sent")
		return nil
	}
	err := fmt.Errorf("%w: %s", domain.ErrCommandRejected, cmd)
	h.fail(err, "Lost connection to the server, the game cannot continue.")
	return err
}

func (h *HostSession) sendPassive(cmd string, payload any) bool {
	s := h.sess
	sent := s.channel != nil && s.channel.Send(cmd, payload)
	h.metrics.CommandSent(cmd, sent)
	if !sent {
		h.log.WithField("command", cmd).Warn("channel not open, command dropped")
	}
	return sent
}

func (h *HostSession) fail(err error, alert string) {
	h.log.WithError(err).Error("game aborted")
	h.notice = alert
	h.notifier.Notify(alert)
	h.abort(OutcomeErrored, reasonError)
}

// abort moves through the cancelled or errored phase and tears the session down.
func (h *HostSession) abort(outcome, closeReason string) {
	if h.sess == nil {
		return
	}
	if outcome == OutcomeErrored {
		h.setPhase(PhaseErrored)
	} else {
		h.setPhase(PhaseCancelled)
	}
	h.teardown(outcome, closeReason)
}

// teardown is safe to call repeatedly: every resource it releases is checked first.
func (h *HostSession) teardown(outcome, closeReason string) {
	h.stopTimer()
	h.timer = nil
	if s := h.sess; s != nil {
		if s.channel != nil {
			s.channel.Close(CloseNormal, closeReason)
			s.channel = nil
		}
		s.roster.Clear()
		h.metrics.SetPlayers(0)
		if outcome != "" {
			h.record(outcome)
		}
	}
	h.sess = nil
	h.gen++
	h.log = h.baseLog
	h.setPhase(PhaseIdle)
}

func (h *HostSession) record(outcome string) {
	s := h.sess
	if s == nil || s.recorded {
		return
	}
	s.recorded = true
	h.metrics.SessionFinished(outcome)
	if h.recorder == nil || s.gameCode == "" {
		return
	}
	rec := domain.GameRecord{
		GameCode:   s.gameCode,
		QuizID:     s.quiz.ID,
		QuizTitle:  s.quiz.Title,
		Outcome:    outcome,
		Podium:     append([]domain.ScoreEntry(nil), s.podium...),
		FinishedAt: h.now(),
	}
	log := h.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.recorder.Record(ctx, rec); err != nil {
			log.WithError(err).Warn("could not record game history")
		}
	}()
}

func (h *HostSession) shutdown() {
	if h.sess == nil {
		return
	}
	if h.phase == PhaseEnded {
		h.teardown("", "")
		return
	}
	h.abort(OutcomeCancelled, reasonCancelled)
}

func (h *HostSession) startTimer(seconds int) {
	h.stopTimer()
	h.timer = NewCountdown(seconds)
	h.timerGen++
	gen := h.timerGen
	h.stopTicker = h.ticker(time.Second, func() { h.post(tickMsg{gen: gen}) })
}

func (h *HostSession) stopTimer() {
	if h.stopTicker != nil {
		h.stopTicker()
		h.stopTicker = nil
	}
	h.timerGen++
}

func (h *HostSession) onTick(gen uint64) {
	if gen != h.timerGen || h.timer == nil || h.stopTicker == nil {
		return
	}
	h.timer.Tick()
	if h.timer.Expired() {
		h.log.Debug("question timer expired")
		h.stopTimer()
	}
}

type channelListener struct {
	h   *HostSession
	gen uint64
}

func (l channelListener) Opened()             { l.h.post(openedMsg{gen: l.gen}) }
func (l channelListener) Message(data []byte) { l.h.post(frameMsg{gen: l.gen, data: data}) }
func (l channelListener) Failed(err error)    { l.h.post(failedMsg{gen: l.gen, err: err}) }
func (l channelListener) Closed(code int, reason string, wasClean bool) {
	l.h.post(closedMsg{gen: l.gen, code: code, reason: reason, wasClean: wasClean})
}

type logNotifier struct{ log *logrus.Entry }

func (n logNotifier) Notify(message string) { n.log.Warn(message) }

package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"quiz-host/internal/domain"
	"quiz-host/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	maxPoints      = 1000
	minPointFactor = 0.1
	inboxSize      = 64
)

var errTooManyGames = errors.New("could not allocate a unique game code")

type roomState int

const (
	stateLobby roomState = iota
	stateQuestion
	stateScoreboard
	stateOver
)

type roomMsg interface{ isRoomMsg() }

type joinConn struct{ c *client }

type frame struct {
	c   *client
	env protocol.Envelope
}

type leaveConn struct{ c *client }

func (joinConn) isRoomMsg()  {}
func (frame) isRoomMsg()     {}
func (leaveConn) isRoomMsg() {}

type player struct {
	nickname string
	score    int
	joined   int
}

// Room runs one game. All state below done is owned by the loop goroutine.
type Room struct {
	code    string
	now     func() time.Time
	log     *logrus.Entry
	onDone  func(code string)
	inbox   chan roomMsg
	cancel  context.CancelFunc
	done    chan struct{}
	finish  bool
	joinSeq int

	conns    map[*client]bool
	host     *client
	players  map[*client]*player
	state    roomState
	quiz     *domain.Quiz
	index    int
	started  time.Time
	answered map[*client]bool
}

func newRoom(ctx context.Context, code string, now func() time.Time, log *logrus.Entry, onDone func(code string)) *Room {
	ctx, cancel := context.WithCancel(ctx)
	r := &Room{
		code:     code,
		now:      now,
		log:      log.WithField("game_code", code),
		onDone:   onDone,
		inbox:    make(chan roomMsg, inboxSize),
		cancel:   cancel,
		done:     make(chan struct{}),
		conns:    make(map[*client]bool),
		players:  make(map[*client]*player),
		answered: make(map[*client]bool),
	}
	go r.loop(ctx)
	return r
}

func (r *Room) Code() string { return r.code }

// Close stops the room and disconnects every client.
func (r *Room) Close() {
	r.cancel()
	<-r.done
}

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) post(m roomMsg) bool {
	select {
	case r.inbox <- m:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) loop(ctx context.Context) {
	defer close(r.done)
	defer r.shutdown()
	for !r.finish {
		select {
		case <-ctx.Done():
			return
		case m := <-r.inbox:
			r.handle(m)
		}
	}
}

func (r *Room) shutdown() {
	r.cancel()
	for c := range r.conns {
		c.closeWith(websocket.CloseNormalClosure, "Game closed")
	}
	r.conns = nil
	if r.onDone != nil {
		r.onDone(r.code)
	}
}

func (r *Room) handle(m roomMsg) {
	switch m := m.(type) {
	case joinConn:
		r.conns[m.c] = true
	case leaveConn:
		r.leave(m.c)
	case frame:
		r.dispatch(m.c, m.env)
	}
}

func (r *Room) dispatch(c *client, env protocol.Envelope) {
	if !r.conns[c] {
		return
	}
	if env.Type == protocol.CmdJoinGame {
		r.join(c, env.Payload)
		return
	}
	if c != r.host && r.players[c] == nil {
		r.reject(c, "Join the game first.")
		return
	}
	switch env.Type {
	case protocol.CmdLoadQuizData:
		r.loadQuiz(c, env.Payload)
	case protocol.CmdStartGame:
		r.startGame(c)
	case protocol.CmdNextQuestion:
		r.nextQuestion(c)
	case protocol.CmdEndGame:
		r.endGame(c)
	case protocol.CmdSubmitAnswer:
		r.submitAnswer(c, env.Payload)
	default:
		c.push(errorFrame("Unknown message type: "+env.Type, ""))
	}
}

func (r *Room) reject(c *client, message string) {
	c.push(errorFrame(message, ""))
	c.closeWith(websocket.ClosePolicyViolation, message)
}

func (r *Room) join(c *client, payload json.RawMessage) {
	if c == r.host || r.players[c] != nil {
		r.log.WithField("nickname", c.nickname).Warn("duplicate join ignored")
		return
	}
	var msg protocol.JoinGame
	_ = json.Unmarshal(payload, &msg)
	nickname := strings.TrimSpace(msg.Nickname)
	switch {
	case nickname == "":
		r.reject(c, "Nickname cannot be empty.")
		return
	case r.state != stateLobby:
		r.reject(c, "Game has already started.")
		return
	case r.nicknameTaken(nickname):
		r.reject(c, "Nickname already taken.")
		return
	}

	c.nickname = nickname
	if r.host == nil {
		r.host = c
		r.log.WithField("nickname", nickname).Info("host joined")
	} else {
		r.joinSeq++
		r.players[c] = &player{nickname: nickname, joined: r.joinSeq}
		r.log.WithField("nickname", nickname).Info("player joined")
	}

	count := len(r.players)
	c.push(encodeFrame(protocol.EvtJoinAck, protocol.JoinAck{
		Nickname:    nickname,
		Message:     "Joined game " + r.code,
		PlayerCount: count,
	}))
	r.broadcastExcept(c, encodeFrame(protocol.EvtPlayerJoined, protocol.PlayerJoined{
		Nickname:    nickname,
		PlayerCount: count,
	}))
}

func (r *Room) nicknameTaken(nickname string) bool {
	if r.host != nil && strings.EqualFold(r.host.nickname, nickname) {
		return true
	}
	for _, p := range r.players {
		if strings.EqualFold(p.nickname, nickname) {
			return true
		}
	}
	return false
}

func (r *Room) leave(c *client) {
	if !r.conns[c] {
		return
	}
	delete(r.conns, c)
	if c == r.host {
		r.host = nil
		r.log.Info("host left")
		if r.state != stateOver {
			r.broadcast(errorFrame("The host has disconnected. The game has ended.", protocol.CodeHostDisconnected))
			r.finishGame()
		}
		r.finish = true
		return
	}
	p, ok := r.players[c]
	if !ok {
		return
	}
	delete(r.players, c)
	delete(r.answered, c)
	r.log.WithField("nickname", p.nickname).Info("player left")
	r.broadcast(encodeFrame(protocol.EvtPlayerLeft, protocol.PlayerLeft{
		Nickname:    p.nickname,
		PlayerCount: len(r.players),
	}))
}

func (r *Room) requireHost(c *client) bool {
	if c != r.host {
		c.push(errorFrame("Only the host can do that.", ""))
		return false
	}
	return true
}

func (r *Room) loadQuiz(c *client, payload json.RawMessage) {
	if !r.requireHost(c) {
		return
	}
	if r.state != stateLobby {
		c.push(errorFrame("Quiz can only be loaded in the lobby.", ""))
		return
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(payload, &quiz); err != nil {
		r.log.WithError(err).Warn("quiz payload rejected")
		c.push(errorFrame(protocol.InvalidQuizFormatMessage, protocol.CodeQuizLoadError))
		return
	}
	if err := domain.Validate(quiz); err != nil {
		r.log.WithError(err).Warn("quiz payload rejected")
		c.push(errorFrame(protocol.InvalidQuizFormatMessage, protocol.CodeQuizLoadError))
		return
	}
	sort.SliceStable(quiz.Questions, func(i, j int) bool {
		return quiz.Questions[i].Order < quiz.Questions[j].Order
	})
	r.quiz = &quiz
	r.log.WithField("quiz_id", quiz.ID).Info("quiz loaded")
	c.push(encodeFrame(protocol.EvtQuizLoadedAck, protocol.QuizLoadedAck{
		Title:         quiz.Title,
		QuestionCount: len(quiz.Questions),
	}))
}

func (r *Room) startGame(c *client) {
	if !r.requireHost(c) {
		return
	}
	switch {
	case r.state != stateLobby:
		c.push(errorFrame("Game has already started.", ""))
		return
	case r.quiz == nil:
		c.push(errorFrame("Load a quiz before starting.", ""))
		return
	case len(r.players) == 0:
		c.push(errorFrame("At least one player must join before starting.", ""))
		return
	}
	r.log.Info("game started")
	r.broadcast(encodeFrame(protocol.EvtGameStarted, protocol.GameStarted{}))
	r.index = 0
	r.askQuestion()
}

func (r *Room) askQuestion() {
	q := r.quiz.Questions[r.index]
	options := make([]protocol.WireOption, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, protocol.WireOption{ID: opt.ID, Text: opt.Text})
	}
	r.state = stateQuestion
	r.answered = make(map[*client]bool)
	r.started = r.now()
	r.broadcast(encodeFrame(protocol.EvtNewQuestion, protocol.NewQuestion{
		QuestionID:     q.ID,
		QuestionNumber: r.index + 1,
		TotalQuestions: len(r.quiz.Questions),
		QuestionText:   q.Text,
		Options:        options,
		TimeLimit:      q.TimeLimit,
	}))
}

func (r *Room) nextQuestion(c *client) {
	if !r.requireHost(c) {
		return
	}
	switch r.state {
	case stateQuestion:
		r.state = stateScoreboard
		r.broadcast(encodeFrame(protocol.EvtUpdateScoreboard, protocol.UpdateScoreboard{
			Scoreboard: r.scoreboard(),
		}))
	case stateScoreboard:
		if r.index+1 >= len(r.quiz.Questions) {
			r.finishGame()
			return
		}
		r.index++
		r.askQuestion()
	default:
		c.push(errorFrame("No game in progress.", ""))
	}
}

func (r *Room) endGame(c *client) {
	if !r.requireHost(c) {
		return
	}
	if r.state == stateOver {
		return
	}
	r.finishGame()
}

func (r *Room) finishGame() {
	r.state = stateOver
	podium := r.scoreboard()
	r.log.WithField("players", len(podium)).Info("game over")
	for c := range r.conns {
		if c != r.host && r.players[c] == nil {
			continue
		}
		payload := protocol.GameOver{Podium: podium}
		if p := r.players[c]; p != nil {
			for _, entry := range podium {
				if entry.Nickname == p.nickname {
					rank, score := entry.Rank, entry.Score
					payload.MyFinalRank, payload.MyFinalScore = &rank, &score
					break
				}
			}
		}
		c.push(encodeFrame(protocol.EvtGameOver, payload))
	}
}

func (r *Room) submitAnswer(c *client, payload json.RawMessage) {
	p := r.players[c]
	if p == nil {
		c.push(errorFrame("Hosts cannot answer.", ""))
		return
	}
	if r.state != stateQuestion {
		c.push(errorFrame("No question is open.", ""))
		return
	}
	if r.answered[c] {
		c.push(errorFrame("Answer already submitted.", ""))
		return
	}
	var msg protocol.SubmitAnswer
	if err := json.Unmarshal(payload, &msg); err != nil || msg.AnswerID == "" {
		c.push(errorFrame("Invalid answer.", ""))
		return
	}
	r.answered[c] = true

	q := r.quiz.Questions[r.index]
	correctID, _ := domain.CorrectOptionID(q)
	points := 0
	if msg.AnswerID == correctID {
		points = Points(r.now().Sub(r.started), q.TimeLimit)
	}
	p.score += points

	rank := 0
	for _, entry := range r.scoreboard() {
		if entry.Nickname == p.nickname {
			rank = entry.Rank
			break
		}
	}
	c.push(encodeFrame(protocol.EvtAnswerResult, protocol.AnswerResult{
		IsCorrect:       msg.AnswerID == correctID,
		CorrectAnswerID: correctID,
		PointsAwarded:   points,
		CurrentScore:    p.score,
		CurrentRank:     rank,
	}))
}

// Points scores a correct answer given after taken. Faster answers earn more, never less than
// a tenth of the maximum, and answers at or past the limit earn nothing.
func Points(taken time.Duration, limitSeconds int) int {
	if limitSeconds <= 0 {
		return 0
	}
	limit := time.Duration(limitSeconds) * time.Second
	if taken < 0 {
		taken = 0
	}
	if taken >= limit {
		return 0
	}
	factor := 1 - taken.Seconds()/limit.Seconds()
	if factor < minPointFactor {
		factor = minPointFactor
	}
	return int(maxPoints * factor)
}

// scoreboard ranks players by score; ties keep join order.
func (r *Room) scoreboard() []domain.ScoreEntry {
	ps := make([]*player, 0, len(r.players))
	for _, p := range r.players {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].score != ps[j].score {
			return ps[i].score > ps[j].score
		}
		return ps[i].joined < ps[j].joined
	})
	entries := make([]domain.ScoreEntry, 0, len(ps))
	for i, p := range ps {
		entries = append(entries, domain.ScoreEntry{Rank: i + 1, Nickname: p.nickname, Score: p.score})
	}
	return entries
}

func (r *Room) broadcast(data []byte) {
	for c := range r.conns {
		if c == r.host || r.players[c] != nil {
			c.push(data)
		}
	}
}

func (r *Room) broadcastExcept(skip *client, data []byte) {
	for c := range r.conns {
		if c != skip && (c == r.host || r.players[c] != nil) {
			c.push(data)
		}
	}
}

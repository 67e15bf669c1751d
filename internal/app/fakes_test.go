package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"quiz-host/internal/app"
	"quiz-host/internal/domain"
	"quiz-host/internal/presenter"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type fakeAllocator struct {
	mu    sync.Mutex
	code  string
	err   error
	calls int
}

func (a *fakeAllocator) CreateGame(context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.code, a.err
}

func (a *fakeAllocator) Set(code string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.code, a.err = code, err
}

func (a *fakeAllocator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type sentCommand struct {
	Type    string
	Payload json.RawMessage
}

type fakeChannel struct {
	mu          sync.Mutex
	id          string
	open        bool
	sent        []sentCommand
	closeCalls  int
	closeCode   int
	closeReason string
}

func (c *fakeChannel) ID() string { return c.id }

func (c *fakeChannel) Send(msgType string, payload any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return false
	}
	data, _ := json.Marshal(payload)
	c.sent = append(c.sent, sentCommand{Type: msgType, Payload: data})
	return true
}

func (c *fakeChannel) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	if c.closeCalls == 1 {
		c.closeCode, c.closeReason = code, reason
	}
	c.open = false
}

func (c *fakeChannel) SetOpen(open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = open
}

func (c *fakeChannel) Types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sent))
	for _, s := range c.sent {
		out = append(out, s.Type)
	}
	return out
}

func (c *fakeChannel) Sent(i int) sentCommand {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[i]
}

func (c *fakeChannel) Closed() (calls, code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls, c.closeCode, c.closeReason
}

type fakeDialer struct {
	mu        sync.Mutex
	err       error
	codes     []string
	channels  []*fakeChannel
	listeners []app.ChannelListener
}

func (d *fakeDialer) Open(gameCode string, l app.ChannelListener) (app.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.codes = append(d.codes, gameCode)
	if d.err != nil {
		return nil, d.err
	}
	ch := &fakeChannel{id: fmt.Sprintf("ch-%d", len(d.channels)+1)}
	d.channels = append(d.channels, ch)
	d.listeners = append(d.listeners, l)
	return ch, nil
}

func (d *fakeDialer) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.codes)
}

func (d *fakeDialer) Last() (*fakeChannel, app.ChannelListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.channels)
	return d.channels[n-1], d.listeners[n-1]
}

// fakeTicker hands out manually driven tickers and tracks how many are live.
type fakeTicker struct {
	mu      sync.Mutex
	started int
	active  int
	current func()
}

func (f *fakeTicker) Start(_ time.Duration, tick func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	f.active++
	f.current = tick
	stopped := false
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !stopped {
			stopped = true
			f.active--
		}
	}
}

func (f *fakeTicker) Fire() {
	f.mu.Lock()
	tick := f.current
	f.mu.Unlock()
	if tick != nil {
		tick()
	}
}

func (f *fakeTicker) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeTicker) Started() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *fakeNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type fakeConfirmer struct {
	mu     sync.Mutex
	answer bool
	asked  []string
}

func (c *fakeConfirmer) Confirm(message string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.asked = append(c.asked, message)
	return c.answer
}

func (c *fakeConfirmer) Set(answer bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answer = answer
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []domain.GameRecord
}

func (r *fakeRecorder) Record(_ context.Context, rec domain.GameRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeRecorder) Recent(context.Context, int) ([]domain.GameRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.GameRecord(nil), r.records...), nil
}

type harness struct {
	t        *testing.T
	host     *app.HostSession
	alloc    *fakeAllocator
	dialer   *fakeDialer
	ticker   *fakeTicker
	notifier *fakeNotifier
	confirm  *fakeConfirmer
	recorder *fakeRecorder
	hook     *test.Hook
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	x := &harness{
		t:        t,
		alloc:    &fakeAllocator{code: "ABCD"},
		dialer:   &fakeDialer{},
		ticker:   &fakeTicker{},
		notifier: &fakeNotifier{},
		confirm:  &fakeConfirmer{answer: true},
		recorder: &fakeRecorder{},
		hook:     hook,
	}
	x.host = app.NewHostSession(context.Background(), app.Options{
		Allocator: x.alloc,
		Dialer:    x.dialer,
		Confirmer: x.confirm,
		Notifier:  x.notifier,
		Recorder:  x.recorder,
		Ticker:    x.ticker.Start,
		Logger:    logrus.NewEntry(logger),
		JoinURL:   func(code string) string { return "http://quiz.local/?code=" + code },
	})
	t.Cleanup(x.host.Close)
	return x
}

func (x *harness) screen() presenter.Screen {
	return x.host.Screen()
}

func (x *harness) waitPhase(phase app.Phase) presenter.Screen {
	x.t.Helper()
	var sc presenter.Screen
	require.Eventually(x.t, func() bool {
		sc = x.host.Screen()
		return sc.Phase == string(phase)
	}, 2*time.Second, 5*time.Millisecond, "phase %s never reached", phase)
	return sc
}

// openLobby creates a game and opens its channel, returning it with its listener.
func (x *harness) openLobby(quiz domain.Quiz) (*fakeChannel, app.ChannelListener) {
	x.t.Helper()
	require.NoError(x.t, x.host.CreateGame(quiz))
	x.waitPhase(app.PhaseLobby)
	ch, l := x.dialer.Last()
	ch.SetOpen(true)
	l.Opened()
	x.screen()
	return ch, l
}

// deliver feeds a raw frame and waits until the session processed it.
func (x *harness) deliver(l app.ChannelListener, frame string) presenter.Screen {
	l.Message([]byte(frame))
	return x.screen()
}

func (x *harness) tick(n int) presenter.Screen {
	for i := 0; i < n; i++ {
		x.ticker.Fire()
	}
	return x.screen()
}

// readyLobby returns a lobby with an acknowledged quiz and one player.
func (x *harness) readyLobby() (*fakeChannel, app.ChannelListener) {
	ch, l := x.openLobby(sampleQuiz())
	x.deliver(l, `{"type":"quiz_loaded_ack","payload":{"title":"Planets","question_count":2}}`)
	x.deliver(l, `{"type":"player_joined","payload":{"nickname":"alice","player_count":1}}`)
	return ch, l
}

// inQuestion returns a session displaying question 1.
func (x *harness) inQuestion(timeLimit int) (*fakeChannel, app.ChannelListener) {
	ch, l := x.readyLobby()
	require.NoError(x.t, x.host.StartGame())
	x.deliver(l, `{"type":"game_started","payload":{}}`)
	x.deliver(l, newQuestionFrame("q1", 1, timeLimit))
	return ch, l
}

func newQuestionFrame(questionID string, number, timeLimit int) string {
	return fmt.Sprintf(`{"type":"new_question","payload":{"question_id":%q,"question_number":%d,"total_questions":2,"question_text":"Largest planet?","options":[{"id":"o1","text":"Mars"},{"id":"o2","text":"Venus"},{"id":"o3","text":"Jupiter"},{"id":"o4","text":"Earth"}],"time_limit":%d}}`,
		questionID, number, timeLimit)
}

func scoreboardFrame(n int) string {
	entries := make([]domain.ScoreEntry, 0, n)
	for i := 1; i <= n; i++ {
		entries = append(entries, domain.ScoreEntry{Rank: i, Nickname: fmt.Sprintf("p%02d", i), Score: 2000 - i*50})
	}
	data, _ := json.Marshal(map[string]any{"type": "update_scoreboard", "payload": map[string]any{"scoreboard": entries}})
	return string(data)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "demo_q2",
		Title: "Planets",
		Questions: []domain.Question{
			{
				ID:        "q1",
				Text:      "Largest planet?",
				TimeLimit: 20,
				Options: []domain.Option{
					{ID: "o1", Text: "Mars"},
					{ID: "o2", Text: "Venus"},
					{ID: "o3", Text: "Jupiter", IsCorrect: true},
					{ID: "o4", Text: "Earth"},
				},
			},
			{
				ID:        "q2",
				Text:      "Red planet?",
				TimeLimit: 15,
				Order:     1,
				Options: []domain.Option{
					{ID: "p1", Text: "Mars", IsCorrect: true},
					{ID: "p2", Text: "Saturn"},
				},
			},
		},
	}
}

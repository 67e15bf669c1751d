// Package devserver is a small game server that speaks the host/player wire protocol.
// It exists for local play-testing and end-to-end tests of the host client.
package devserver

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"quiz-host/internal/presenter"
	"quiz-host/internal/protocol"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	codeLength  = 4
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxAttempts = 100
	qrSize      = 256
)

// GenerateCode returns a random game code.
func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}

// Server owns the active game rooms.
type Server struct {
	ctx      context.Context
	log      *logrus.Entry
	upgrader websocket.Upgrader
	// JoinURL builds the player link encoded in QR codes.
	JoinURL func(r *http.Request, code string) string
	// Now is the scoring clock.
	Now func() time.Time

	mu    sync.Mutex
	rooms map[string]*Room
}

func New(ctx context.Context, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		ctx: ctx,
		log: log.WithField("component", "devserver"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		JoinURL: defaultJoinURL,
		Now:     time.Now,
		rooms:   make(map[string]*Room),
	}
}

func defaultJoinURL(r *http.Request, code string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/?code=" + code
}

// Routes wires the HTTP surface of the server.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/create_game/", s.createGame)
	r.Get("/ws/{code}", s.serveWS)
	r.Get("/qr/{code}", s.qrCode)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Room returns the active room for code.
func (s *Server) Room(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[strings.ToUpper(strings.TrimSpace(code))]
	return room, ok
}

// Rooms reports how many games are active.
func (s *Server) Rooms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

func (s *Server) createGame(w http.ResponseWriter, r *http.Request) {
	code, err := s.allocate()
	if err != nil {
		s.log.WithError(err).Error("could not allocate game code")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	s.log.WithField("game_code", code).Info("game created")
	writeJSON(w, http.StatusCreated, map[string]string{"game_code": code})
}

func (s *Server) allocate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return "", err
		}
		if _, taken := s.rooms[code]; taken {
			continue
		}
		s.rooms[code] = newRoom(s.ctx, code, s.Now, s.log, s.removeRoom)
		return code, nil
	}
	return "", errTooManyGames
}

func (s *Server) removeRoom(code string) {
	s.mu.Lock()
	delete(s.rooms, code)
	s.mu.Unlock()
	s.log.WithField("game_code", code).Info("game removed")
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	room, ok := s.Room(code)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	if !ok {
		s.log.WithField("game_code", code).Warn("unknown game code")
		data, _ := protocol.Encode(protocol.EvtError, protocol.ServerError{
			Message: "Game code not found.",
			Code:    protocol.CodeInvalidGameCode,
		})
		_ = conn.WriteMessage(websocket.TextMessage, data)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Invalid game code"),
			time.Now().Add(time.Second))
		return
	}

	c := newClient(conn, s.log.WithField("game_code", room.Code()))
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	if room.post(joinConn{c: c}) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
				c.push(errorFrame("Invalid message format.", ""))
				continue
			}
			if !room.post(frame{c: c, env: env}) {
				break
			}
		}
		room.post(leaveConn{c: c})
	}
	c.stop()
	<-writerDone
}

func (s *Server) qrCode(w http.ResponseWriter, r *http.Request) {
	room, ok := s.Room(chi.URLParam(r, "code"))
	if !ok {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	png, err := presenter.JoinQRCode(s.JoinURL(r, room.Code()), qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// Shutdown stops every room.
func (s *Server) Shutdown() {
	s.mu.Lock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	s.mu.Unlock()
	for _, room := range rooms {
		room.Close()
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

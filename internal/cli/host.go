package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"quiz-host/internal/app"
	"quiz-host/internal/config"
	"quiz-host/internal/domain"
	"quiz-host/internal/metrics"
	"quiz-host/internal/presenter"
	transporthttp "quiz-host/internal/transport/http"
	"quiz-host/internal/transport/ws"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const qrSize = 320

type hostFlags struct {
	qrFile      string
	exportFile  string
	metricsAddr string
}

func newHostCmd(e *env) *cobra.Command {
	flags := &hostFlags{}
	cmd := &cobra.Command{
		Use:   "host <quiz-id>",
		Short: "Host a game for a stored quiz",
		Long: "Creates a game on the server and drives it from the terminal.\n" +
			"Commands: start, next, end, cancel, back, show, quit.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd.Context(), e, flags, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flags.qrFile, "qr-file", "", "write the join QR code PNG to this path")
	cmd.Flags().StringVar(&flags.exportFile, "export", "", "write the final podium to this xlsx path")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	return cmd
}

func runHost(ctx context.Context, e *env, flags *hostFlags, quizID string, in io.Reader, out io.Writer) error {
	log := logrus.NewEntry(e.log)
	if flags.metricsAddr == "" {
		flags.metricsAddr = e.cfg.Metrics.Addr
	}

	lib, err := openLibrary(ctx, e.cfg, e.log)
	if err != nil {
		return err
	}
	defer lib.Close()
	quiz, err := lib.quizzes.Get(ctx, quizID)
	if err != nil {
		return fmt.Errorf("quiz %q: %w", quizID, err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if flags.metricsAddr != "" {
		stop := serveMetrics(flags.metricsAddr, reg, log)
		defer stop()
	}

	allocator, err := transporthttp.NewAllocator(e.cfg.Server.URL, nil, log)
	if err != nil {
		return err
	}
	dialer := ws.NewDialer(e.cfg.Server.URL, ws.Options{
		HandshakeTimeout: config.TTLDuration(e.cfg.Transport.HandshakeTimeout, 10*time.Second),
		PingInterval:     config.TTLDuration(e.cfg.Transport.PingInterval, 0),
		Logger:           log,
	})

	scanner := bufio.NewScanner(in)
	session := app.NewHostSession(ctx, app.Options{
		Allocator: allocator,
		Dialer:    dialer,
		Renderer: &artifactRenderer{
			next:       presenter.NewTextRenderer(out),
			qrPath:     flags.qrFile,
			exportPath: flags.exportFile,
			title:      quiz.Title,
			log:        log,
		},
		Confirmer: &promptConfirmer{in: scanner, out: out},
		Notifier:  writerNotifier{w: out},
		Recorder:  lib.history,
		Metrics:   m,
		Logger:    log,
		JoinURL:   e.cfg.JoinURL,
	})
	defer session.Close()

	if err := session.CreateGame(quiz); err != nil {
		return err
	}
	return runCommands(scanner, out, session)
}

// hostControls is the part of app.HostSession the command loop drives.
type hostControls interface {
	StartGame() error
	NextQuestion() error
	EndGame() error
	Cancel() error
	BackToDashboard() error
	Screen() presenter.Screen
}

var errQuit = errors.New("quit")

// runCommands reads one command per line until quit, end of input, or the game returns to the
// dashboard.
func runCommands(in *bufio.Scanner, out io.Writer, h hostControls) error {
	for in.Scan() {
		err := dispatchCommand(strings.ToLower(strings.TrimSpace(in.Text())), out, h)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			fmt.Fprintf(out, "! %v\n", err)
		}
		if h.Screen().View == presenter.ViewDashboard {
			return nil
		}
	}
	return in.Err()
}

func dispatchCommand(cmd string, out io.Writer, h hostControls) error {
	switch cmd {
	case "":
		return nil
	case "start", "s":
		return h.StartGame()
	case "next", "n":
		return h.NextQuestion()
	case "end", "e":
		return h.EndGame()
	case "cancel", "c":
		return h.Cancel()
	case "back", "b":
		return h.BackToDashboard()
	case "show":
		presenter.NewTextRenderer(out).Render(h.Screen())
		return nil
	case "quit", "q":
		return errQuit
	case "help", "?":
		fmt.Fprintln(out, "commands: start, next, end, cancel, back, show, quit")
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// promptConfirmer asks on the terminal. It shares the scanner with the command loop, which is
// blocked on the session while a confirmation is pending.
type promptConfirmer struct {
	in  *bufio.Scanner
	out io.Writer
}

func (c *promptConfirmer) Confirm(message string) bool {
	fmt.Fprintf(c.out, "%s [y/N] ", message)
	if !c.in.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(c.in.Text()))
	return answer == "y" || answer == "yes"
}

type writerNotifier struct{ w io.Writer }

func (n writerNotifier) Notify(message string) { fmt.Fprintf(n.w, "! %s\n", message) }

// artifactRenderer forwards every screen and writes the join QR code and the podium export
// once each.
type artifactRenderer struct {
	next       presenter.Renderer
	qrPath     string
	exportPath string
	title      string
	log        *logrus.Entry

	qrFor    string
	exported bool
}

func (r *artifactRenderer) Render(s presenter.Screen) {
	r.next.Render(s)
	if r.qrPath != "" && s.JoinURL != "" && s.GameCode != r.qrFor {
		r.qrFor = s.GameCode
		if err := writeQRCode(r.qrPath, s.JoinURL); err != nil {
			r.log.WithError(err).Warn("could not write join qr code")
		}
	}
	if s.View != presenter.ViewEnd {
		r.exported = false
		return
	}
	if r.exportPath != "" && !r.exported && len(s.Podium.Rows) > 0 {
		r.exported = true
		if err := exportPodium(r.exportPath, r.title, s.Podium); err != nil {
			r.log.WithError(err).Warn("could not export podium")
		}
	}
}

func writeQRCode(path, joinURL string) error {
	png, err := presenter.JoinQRCode(joinURL, qrSize)
	if err != nil {
		return err
	}
	return os.WriteFile(path, png, 0o644)
}

func exportPodium(path, title string, board presenter.Board) error {
	entries := make([]domain.ScoreEntry, 0, len(board.Rows))
	for _, row := range board.Rows {
		entries = append(entries, domain.ScoreEntry{Rank: row.Rank, Nickname: row.Nickname, Score: row.Score})
	}
	var buf bytes.Buffer
	if err := presenter.ExportPodium(&buf, title, entries); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func serveMetrics(addr string, reg *prometheus.Registry, log *logrus.Entry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.WithField("addr", addr).Info("serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

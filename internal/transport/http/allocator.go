package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quiz-host/internal/domain"

	"github.com/sirupsen/logrus"
)

// CreateGamePath is the allocation endpoint of the game server.
const CreateGamePath = "/create_game/"

// maxErrorBody bounds how much of a failed response is read for its detail.
const maxErrorBody = 4 << 10

// Allocator asks the game server for a fresh game code.
type Allocator struct {
	endpoint string
	client   *http.Client
	log      *logrus.Entry
}

type createGameResponse struct {
	GameCode string `json:"game_code"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// NewAllocator validates baseURL. A nil client gets a 10s timeout.
func NewAllocator(baseURL string, client *http.Client, log *logrus.Entry) (*Allocator, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: server url %q: %v", domain.ErrAllocation, baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: server url %q must be http or https", domain.ErrAllocation, baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Allocator{
		endpoint: strings.TrimRight(u.String(), "/") + CreateGamePath,
		client:   client,
		log:      log.WithField("component", "allocator"),
	}, nil
}

// CreateGame posts to the allocation endpoint and returns the game code.
func (a *Allocator) CreateGame(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAllocation, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAllocation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := fmt.Sprintf("status %d", resp.StatusCode)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Detail != "" {
			detail = er.Detail
		}
		a.log.WithField("status", resp.StatusCode).Warn("game allocation refused")
		return "", fmt.Errorf("%w: %s", domain.ErrAllocation, detail)
	}

	var out createGameResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrAllocation, err)
	}
	if out.GameCode == "" {
		return "", fmt.Errorf("%w: response without game_code", domain.ErrAllocation)
	}
	a.log.WithField("game_code", out.GameCode).Info("game allocated")
	return out.GameCode, nil
}

// Package client implements the game's view of the leaderboard API: a
// four-slot cache refreshed on startup and after submissions, plus the
// qualification pre-check shown to the player before they submit.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanish-leaderboard/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client caches the four leaderboard categories and talks to the HTTP API.
// A failed fetch degrades its slot to an empty board; leaderboard trouble
// must never block the game.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu     sync.RWMutex
	slots  map[domain.Category][]domain.Entry
	loaded bool
}

// SubmitOutcome reports the server's decision for both windows of a mode.
type SubmitOutcome struct {
	AllTime domain.SubmitResult
	Daily   domain.SubmitResult
}

// Qualification is the client-side prediction of whether a time would
// enter each board. It is computed against the cached snapshot and can be
// stale; the server's decision at submission time is authoritative.
type Qualification struct {
	AllTime bool
	Daily   bool
}

// New creates a client for the API at baseURL. httpClient may be nil.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
		slots:   make(map[domain.Category][]domain.Entry),
	}
}

// endpoints returns the GET and POST paths for a category, following the
// get{Hard}{Daily}HighScores / submit{Hard}{Daily}Score scheme.
func endpoints(cat domain.Category) (get, submit string) {
	infix := ""
	if cat.Mode == domain.ModeHard {
		infix += "Hard"
	}
	if cat.Window == domain.WindowDaily {
		infix += "Daily"
	}
	return "/api/get" + infix + "HighScores", "/api/submit" + infix + "Score"
}

// Refresh fetches all four categories concurrently. A slot whose fetch
// fails is reset to an empty board; the others are unaffected.
func (c *Client) Refresh(ctx context.Context) {
	var g errgroup.Group
	for _, cat := range domain.Categories {
		cat := cat
		g.Go(func() error {
			c.refreshSlot(ctx, cat)
			return nil
		})
	}
	g.Wait()

	c.mu.Lock()
	c.loaded = true
	c.mu.Unlock()
}

func (c *Client) refreshSlot(ctx context.Context, cat domain.Category) {
	entries, err := c.fetchScores(ctx, cat)
	if err != nil {
		c.logger.Warn("failed to refresh leaderboard slot", "category", cat.ID(), "error", err)
		entries = []domain.Entry{}
	}

	c.mu.Lock()
	c.slots[cat] = entries
	c.mu.Unlock()
}

// Scores returns the cached snapshot for a category. Before the first
// Refresh completes it returns an empty board.
func (c *Client) Scores(cat domain.Category) []domain.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := c.slots[cat]
	out := make([]domain.Entry, len(entries))
	copy(out, entries)
	return out
}

// Loaded reports whether the cache has been populated at least once.
func (c *Client) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// fetchScores performs one live query
func (c *Client) fetchScores(ctx context.Context, cat domain.Category) ([]domain.Entry, error) {
	get, _ := endpoints(cat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+get, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s scores: status %d", cat.ID(), resp.StatusCode)
	}

	var entries []domain.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding %s scores: %w", cat.ID(), err)
	}
	return entries, nil
}

// Qualifies predicts whether a survival time would enter the all-time and
// daily boards of a mode. It prefers the cached snapshot and only fetches
// live when the cache has never been populated.
func (c *Client) Qualifies(ctx context.Context, mode domain.Mode, seconds float64) Qualification {
	allTimeCat := domain.Category{Mode: mode, Window: domain.WindowAllTime}
	dailyCat := domain.Category{Mode: mode, Window: domain.WindowDaily}

	var allTime, daily []domain.Entry
	if c.Loaded() {
		allTime = c.Scores(allTimeCat)
		daily = c.Scores(dailyCat)
	} else {
		var g errgroup.Group
		g.Go(func() error {
			entries, err := c.fetchScores(ctx, allTimeCat)
			if err != nil {
				c.logger.Warn("qualification pre-check fetch failed", "category", allTimeCat.ID(), "error", err)
				entries = nil
			}
			allTime = entries
			return nil
		})
		g.Go(func() error {
			entries, err := c.fetchScores(ctx, dailyCat)
			if err != nil {
				c.logger.Warn("qualification pre-check fetch failed", "category", dailyCat.ID(), "error", err)
				entries = nil
			}
			daily = entries
			return nil
		})
		g.Wait()
	}

	return Qualification{
		AllTime: wouldQualify(allTime, seconds),
		Daily:   wouldQualify(daily, seconds),
	}
}

// wouldQualify mirrors the server rule against a displayed board: room on
// the board, or strictly faster than the slowest shown entry.
func wouldQualify(entries []domain.Entry, seconds float64) bool {
	if len(entries) < domain.DisplayLimit {
		return true
	}
	worst, err := strconv.ParseFloat(entries[len(entries)-1].Time, 64)
	if err != nil {
		return true
	}
	return seconds < worst
}

// Submit posts the score to both windows of the mode concurrently, then
// re-fetches the two affected slots. The returned error is non-nil if
// either POST failed outright; a "did not qualify" response is not an
// error.
func (c *Client) Submit(ctx context.Context, mode domain.Mode, playerName string, seconds float64) (SubmitOutcome, error) {
	var (
		outcome SubmitOutcome
		g       errgroup.Group
	)

	allTimeCat := domain.Category{Mode: mode, Window: domain.WindowAllTime}
	dailyCat := domain.Category{Mode: mode, Window: domain.WindowDaily}

	g.Go(func() error {
		res, err := c.postScore(ctx, allTimeCat, playerName, seconds)
		if err != nil {
			return err
		}
		outcome.AllTime = res
		return nil
	})
	g.Go(func() error {
		res, err := c.postScore(ctx, dailyCat, playerName, seconds)
		if err != nil {
			return err
		}
		outcome.Daily = res
		return nil
	})
	err := g.Wait()

	// The affected slots are stale either way; refresh them.
	c.refreshSlot(ctx, allTimeCat)
	c.refreshSlot(ctx, dailyCat)

	return outcome, err
}

func (c *Client) postScore(ctx context.Context, cat domain.Category, playerName string, seconds float64) (domain.SubmitResult, error) {
	_, submit := endpoints(cat)

	body, err := json.Marshal(domain.SubmitRequest{PlayerName: playerName, Time: seconds})
	if err != nil {
		return domain.SubmitResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+submit, bytes.NewReader(body))
	if err != nil {
		return domain.SubmitResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.SubmitResult{}, fmt.Errorf("submitting %s score: status %d", cat.ID(), resp.StatusCode)
	}

	var result domain.SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("decoding submit response: %w", err)
	}
	return result, nil
}

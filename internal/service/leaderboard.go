package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/vanish-leaderboard/internal/domain"
	"github.com/vanish-leaderboard/internal/store"
)

// Archiver records submission attempts for auditing. Failures never fail
// the request.
type Archiver interface {
	RecordSubmission(ctx context.Context, category, playerName string, seconds float64, qualified bool) error
}

// Broadcaster pushes refreshed leaderboards to subscribed spectators.
type Broadcaster interface {
	BroadcastLeaderboard(category string, entries []domain.Entry)
}

// LeaderboardService implements the query and submit operations for every
// leaderboard category. It holds no persistent state of its own: every
// mutation re-reads the category blob inside an atomic store update.
type LeaderboardService struct {
	store   store.BlobStore
	archive Archiver
	hub     Broadcaster
	logger  *slog.Logger
	now     func() time.Time
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(blobs store.BlobStore, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{
		store:  blobs,
		logger: logger,
		now:    time.Now,
	}
}

// SetArchive attaches the optional submission audit log
func (s *LeaderboardService) SetArchive(archive Archiver) {
	s.archive = archive
}

// SetHub attaches the optional WebSocket broadcaster
func (s *LeaderboardService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// SetClock overrides the service clock. Used by tests to pin the UTC day.
func (s *LeaderboardService) SetClock(now func() time.Time) {
	s.now = now
}

// today returns the current UTC calendar date, which keys daily boards.
func (s *LeaderboardService) today() string {
	return s.now().UTC().Format("2006-01-02")
}

// decodeScores parses a stored blob. A corrupted blob degrades to an empty
// board rather than an error; the fallback is logged so it stays visible.
func (s *LeaderboardService) decodeScores(data []byte, key string) []domain.ScoreRecord {
	if len(data) == 0 {
		return nil
	}
	var scores []domain.ScoreRecord
	if err := json.Unmarshal(data, &scores); err != nil {
		s.logger.Warn("stored blob is not a valid score array, treating as empty",
			"key", key,
			"error", err,
		)
		return nil
	}
	return scores
}

func sortScores(scores []domain.ScoreRecord) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Time < scores[j].Time
	})
}

// Query returns the top entries of a category, fastest first, with times
// rendered as fixed 3-decimal strings. A missing blob is an empty board.
func (s *LeaderboardService) Query(ctx context.Context, cat domain.Category) ([]domain.Entry, error) {
	if !cat.Valid() {
		return nil, domain.ErrInvalidCategory
	}

	today := s.today()
	scores, err := s.readScores(ctx, cat, today)
	if err != nil {
		return nil, err
	}

	sortScores(scores)
	if len(scores) > domain.DisplayLimit {
		scores = scores[:domain.DisplayLimit]
	}

	entries := make([]domain.Entry, 0, len(scores))
	for _, rec := range scores {
		entries = append(entries, rec.View())
	}
	return entries, nil
}

// readScores loads the category's record set for the given day, falling
// back to the pre-migration single blob for the hard daily board.
func (s *LeaderboardService) readScores(ctx context.Context, cat domain.Category, today string) ([]domain.ScoreRecord, error) {
	key := cat.BlobKey(today)
	data, err := s.store.Get(ctx, key)
	if err == nil {
		return s.decodeScores(data, key), nil
	}
	if err != store.ErrBlobNotFound {
		return nil, fmt.Errorf("reading leaderboard blob: %w", err)
	}
	return s.legacyScores(ctx, cat, today)
}

// legacyScores returns today's slice of the pre-migration blob: the hard
// daily board used to live in one ever-growing blob filtered by date, and
// records without a date are kept. Categories that never had a legacy blob
// get nil.
func (s *LeaderboardService) legacyScores(ctx context.Context, cat domain.Category, today string) ([]domain.ScoreRecord, error) {
	legacy := cat.LegacyBlobKey()
	if legacy == "" {
		return nil, nil
	}

	data, err := s.store.Get(ctx, legacy)
	if err == store.ErrBlobNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading legacy leaderboard blob: %w", err)
	}

	var todays []domain.ScoreRecord
	for _, rec := range s.decodeScores(data, legacy) {
		if rec.Date == "" || strings.HasPrefix(rec.Date, today) {
			todays = append(todays, rec)
		}
	}
	return todays, nil
}

// Submit validates a score, decides qualification against the current
// board and, if it qualifies, inserts the normalized record. The whole
// read-decide-write cycle runs inside one atomic store update, so two
// concurrent qualifying submissions cannot overwrite each other.
func (s *LeaderboardService) Submit(ctx context.Context, cat domain.Category, playerName string, seconds float64) (domain.SubmitResult, error) {
	if !cat.Valid() {
		return domain.SubmitResult{}, domain.ErrInvalidCategory
	}
	if err := domain.ValidateSubmission(playerName, seconds); err != nil {
		return domain.SubmitResult{}, err
	}

	today := s.today()
	key := cat.BlobKey(today)
	var (
		qualified bool
		record    domain.ScoreRecord
		updated   []domain.ScoreRecord
	)

	err := s.store.Update(ctx, key, func(current []byte) ([]byte, error) {
		scores := s.decodeScores(current, key)
		if current == nil {
			// First write of the day starts from today's slice of the
			// legacy blob, so the migration drops no same-day entries.
			legacy, err := s.legacyScores(ctx, cat, today)
			if err != nil {
				return nil, err
			}
			scores = legacy
		}
		sortScores(scores)

		// Qualification: room on the board, or strictly faster than the
		// current worst. Matching the worst time does not qualify.
		qualified = len(scores) < cat.Cap() || seconds < scores[len(scores)-1].Time
		if !qualified {
			return nil, nil
		}

		record = domain.NewScoreRecord(cat, playerName, seconds, s.now())
		scores = append(scores, record)
		sortScores(scores)
		if len(scores) > cat.Cap() {
			scores = scores[:cat.Cap()]
		}
		updated = scores

		return json.MarshalIndent(scores, "", "  ")
	})
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("updating leaderboard: %w", err)
	}

	if s.archive != nil {
		name := strings.TrimSpace(playerName)
		if err := s.archive.RecordSubmission(ctx, cat.ID(), name, domain.RoundTime(seconds), qualified); err != nil {
			s.logger.Warn("failed to record submission in archive", "error", err)
		}
	}

	if !qualified {
		s.logger.Info("score did not qualify",
			"category", cat.ID(),
			"time", seconds,
		)
		return domain.SubmitResult{
			Success: false,
			Message: notQualifiedMessage(cat),
		}, nil
	}

	s.logger.Info("score submitted",
		"category", cat.ID(),
		"player", record.PlayerName,
		"time", record.Time,
	)

	if s.hub != nil {
		display := updated
		if len(display) > domain.DisplayLimit {
			display = display[:domain.DisplayLimit]
		}
		entries := make([]domain.Entry, 0, len(display))
		for _, rec := range display {
			entries = append(entries, rec.View())
		}
		s.hub.BroadcastLeaderboard(cat.ID(), entries)
	}

	return domain.SubmitResult{
		Success: true,
		Message: submittedMessage(cat),
	}, nil
}

func submittedMessage(cat domain.Category) string {
	if cat.Window == domain.WindowDaily {
		return "Daily high score submitted!"
	}
	return "High score submitted!"
}

func notQualifiedMessage(cat domain.Category) string {
	if cat.Window == domain.WindowDaily {
		return "Score did not qualify for daily top 10"
	}
	return fmt.Sprintf("Score did not qualify for top %d", cat.Cap())
}

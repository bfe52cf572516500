package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vanish-leaderboard/internal/domain"
)

func TestNewScoreRecordNormalization(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 30, 45, 0, time.UTC)
	cat := domain.Category{Mode: domain.ModeNormal, Window: domain.WindowAllTime}

	tests := map[string]struct {
		name     string
		seconds  float64
		wantName string
		wantTime float64
	}{
		"trims surrounding whitespace": {
			name: "  Ann  ", seconds: 12.345,
			wantName: "Ann", wantTime: 12.345,
		},
		"truncates long names to 20 characters": {
			name: "ABCDEFGHIJKLMNOPQRSTUVWXYZ", seconds: 1,
			wantName: "ABCDEFGHIJKLMNOPQRST", wantTime: 1,
		},
		"re-trims after truncation": {
			name: "ABCDEFGHIJKLMNOPQRS      Z", seconds: 1,
			wantName: "ABCDEFGHIJKLMNOPQRS", wantTime: 1,
		},
		"rounds time to 3 decimals": {
			name: "Ann", seconds: 12.34567,
			wantName: "Ann", wantTime: 12.346,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := domain.NewScoreRecord(cat, tt.name, tt.seconds, now)
			require.Equal(t, tt.wantName, rec.PlayerName)
			require.Equal(t, tt.wantTime, rec.Time)
			require.Equal(t, "2025-06-15T12:30:45.000Z", rec.Timestamp)
			require.Empty(t, rec.Date)
		})
	}
}

func TestNewScoreRecordLegacyDateField(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 30, 45, 0, time.UTC)
	cat := domain.Category{Mode: domain.ModeHard, Window: domain.WindowAllTime}

	rec := domain.NewScoreRecord(cat, "Ann", 12.345, now)
	require.Equal(t, "2025-06-15T12:30:45.000Z", rec.Date)
	require.Empty(t, rec.Timestamp)
	require.Equal(t, "2025-06-15T12:30:45.000Z", rec.RecordedAt())
}

func TestFormatTime(t *testing.T) {
	require.Equal(t, "12.345", domain.FormatTime(12.345))
	require.Equal(t, "5.000", domain.FormatTime(5))
	require.Equal(t, "0.100", domain.FormatTime(0.1))
}

func TestValidateSubmission(t *testing.T) {
	require.NoError(t, domain.ValidateSubmission("Ann", 12.345))

	require.ErrorIs(t, domain.ValidateSubmission("", 12.345), domain.ErrInvalidName)
	require.ErrorIs(t, domain.ValidateSubmission("   ", 12.345), domain.ErrInvalidName)
	require.ErrorIs(t, domain.ValidateSubmission("Ann", 0), domain.ErrInvalidTime)
	require.ErrorIs(t, domain.ValidateSubmission("Ann", -1), domain.ErrInvalidTime)
}

func TestCategoryBlobKeys(t *testing.T) {
	day := "2025-06-15"

	tests := []struct {
		cat  domain.Category
		id   string
		key  string
		cap  int
		lgcy string
	}{
		{domain.Category{Mode: domain.ModeNormal, Window: domain.WindowAllTime}, "normal-alltime", "highscores.json", 10, ""},
		{domain.Category{Mode: domain.ModeNormal, Window: domain.WindowDaily}, "normal-daily", "daily-scores-2025-06-15.json", 10, ""},
		{domain.Category{Mode: domain.ModeHard, Window: domain.WindowAllTime}, "hard-alltime", "hardHighscores.json", 100, ""},
		{domain.Category{Mode: domain.ModeHard, Window: domain.WindowDaily}, "hard-daily", "hard-daily-scores-2025-06-15.json", 10, "hardDailyHighscores.json"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			require.True(t, tt.cat.Valid())
			require.Equal(t, tt.id, tt.cat.ID())
			require.Equal(t, tt.key, tt.cat.BlobKey(day))
			require.Equal(t, tt.cap, tt.cat.Cap())
			require.Equal(t, tt.lgcy, tt.cat.LegacyBlobKey())
		})
	}

	require.False(t, domain.Category{Mode: "extreme", Window: domain.WindowDaily}.Valid())
}

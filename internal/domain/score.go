package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxNameLength is the maximum stored length of a player name.
	MaxNameLength = 20

	// DisplayLimit is the number of entries a query returns regardless of
	// how many the blob retains.
	DisplayLimit = 10
)

// ScoreRecord is one persisted leaderboard entry. Time is survival time in
// seconds; lower is better. Exactly one of Timestamp or Date is set: the
// hard all-time blob predates the timestamp field and still uses "date".
type ScoreRecord struct {
	PlayerName string  `json:"playerName"`
	Time       float64 `json:"time"`
	Timestamp  string  `json:"timestamp,omitempty"`
	Date       string  `json:"date,omitempty"`
}

// RecordedAt returns the creation time string regardless of which field
// the record was stored with.
func (r ScoreRecord) RecordedAt() string {
	if r.Timestamp != "" {
		return r.Timestamp
	}
	return r.Date
}

// View converts a stored record to its query representation.
func (r ScoreRecord) View() Entry {
	return Entry{
		PlayerName: r.PlayerName,
		Time:       FormatTime(r.Time),
	}
}

// NewScoreRecord builds a normalized record: name trimmed and truncated to
// MaxNameLength runes, time rounded to 3 decimals, creation time assigned
// by the server in UTC.
func NewScoreRecord(cat Category, playerName string, seconds float64, now time.Time) ScoreRecord {
	name := strings.TrimSpace(playerName)
	if runes := []rune(name); len(runes) > MaxNameLength {
		name = strings.TrimSpace(string(runes[:MaxNameLength]))
	}

	rec := ScoreRecord{
		PlayerName: name,
		Time:       RoundTime(seconds),
	}

	stamp := now.UTC().Format("2006-01-02T15:04:05.000Z")
	if cat.UsesLegacyDateField() {
		rec.Date = stamp
	} else {
		rec.Timestamp = stamp
	}
	return rec
}

// RoundTime rounds a survival time to the stored 3-decimal precision.
func RoundTime(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}

// FormatTime renders a survival time as the fixed 3-decimal string used in
// query responses.
func FormatTime(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

// Entry is the public query view of a leaderboard row.
type Entry struct {
	PlayerName string `json:"playerName"`
	Time       string `json:"time"`
}

// SubmitRequest is the body of a score submission.
type SubmitRequest struct {
	PlayerName string  `json:"playerName"`
	Time       float64 `json:"time"`
}

// SubmitResult reports whether a submission entered the board. It carries
// no rank and no updated leaderboard; clients re-query after submitting.
type SubmitResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ValidateSubmission checks a submission before any storage access.
func ValidateSubmission(playerName string, seconds float64) error {
	if strings.TrimSpace(playerName) == "" {
		return ErrInvalidName
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return ErrInvalidTime
	}
	return nil
}

package handler_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vanish-leaderboard/internal/domain"
	"github.com/vanish-leaderboard/internal/handler"
	"github.com/vanish-leaderboard/internal/service"
	"github.com/vanish-leaderboard/internal/store"
	"github.com/vanish-leaderboard/internal/websocket"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewLeaderboardService(store.NewMemoryStore(), logger)
	svc.SetClock(func() time.Time {
		return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	})

	hub := websocket.NewHub(logger)
	return handler.NewHandler(svc, hub, logger).Router()
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetHighScoresEmpty(t *testing.T) {
	router := newTestRouter(t)

	paths := []string{
		"/api/getHighScores",
		"/api/getDailyHighScores",
		"/api/getHardHighScores",
		"/api/getHardDailyHighScores",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, path, "")
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			require.JSONEq(t, `[]`, rec.Body.String(), "empty board must serialize as a bare empty array")
		})
	}
}

func TestSubmitThenGetRoundtrip(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/submitScore",
		`{"playerName":"Ann","time":12.345}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Success)
	require.Equal(t, "High score submitted!", result.Message)

	rec = doRequest(t, router, http.MethodGet, "/api/getHighScores", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []domain.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Equal(t, []domain.Entry{{PlayerName: "Ann", Time: "12.345"}}, entries)

	// The submission stays in its own category.
	rec = doRequest(t, router, http.MethodGet, "/api/getHardHighScores", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestSubmitDailyMessage(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/submitDailyScore",
		`{"playerName":"Ann","time":12.345}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Success)
	require.Equal(t, "Daily high score submitted!", result.Message)
}

func TestSubmitInvalidJSON(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/submitScore", `{"playerName":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"Invalid JSON in request body"}`, rec.Body.String())
}

func TestSubmitValidationErrors(t *testing.T) {
	router := newTestRouter(t)

	tests := map[string]string{
		"blank name":    `{"playerName":"   ","time":12.345}`,
		"zero time":     `{"playerName":"Ann","time":0}`,
		"negative time": `{"playerName":"Ann","time":-1}`,
		"missing body":  `{}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/submitScore", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.NotEmpty(t, resp["error"])
		})
	}

	// Rejected submissions leave every board empty.
	rec := doRequest(t, router, http.MethodGet, "/api/getHighScores", "")
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestWrongMethod(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/getHighScores", `{}`)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/submitScore", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.JSONEq(t, `{"error":"method not allowed"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodOptions, "/api/submitScore", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestHealthAndReady(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

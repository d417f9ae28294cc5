package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"RateKeeper/internal/model"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ray(s string) *uint256.Int { return uint256.MustFromDecimal(s) }

func TestPercent(t *testing.T) {
	assert.Equal(t, "45.0000%", Percent(ray("450000000000000000000000000")))
	assert.Equal(t, "3.8000%", Percent(ray("38000000000000000000000000")))
	assert.Equal(t, "n/a", Percent(nil))
}

func TestFormatCommitReport(t *testing.T) {
	msg := FormatCommitReport("WETH", &model.UpkeepRun{
		Counter:        3,
		Slot:           2,
		WindowAverage:  ray("450000000000000000000000000"),
		Utilization:    ray("300000000000000000000000000"),
		PreviousSlope1: ray("38000000000000000000000000"),
		ProposedSlope1: ray("34200000000000000000000000"),
		StartedAt:      time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC),
	})
	assert.Contains(t, msg, "WETH")
	assert.Contains(t, msg, "2024-05-01 06:00")
	assert.Contains(t, msg, "30.0000% (slot 2)")
	assert.Contains(t, msg, "3.8000% → 3.4200% 📉")
	assert.Contains(t, msg, "Counter: 3")
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "No upkeep runs recorded yet.", FormatHistory(nil))

	msg := FormatHistory([]model.UpkeepRun{
		{Outcome: model.OutcomeFailed, Error: "read reserve: timeout"},
		{Outcome: model.OutcomeCommitted, Counter: 1, Utilization: ray("300000000000000000000000000"), ProposedSlope1: ray("41800000000000000000000000")},
		{Outcome: model.OutcomeNotDue},
	})
	lines := strings.Split(strings.TrimSpace(msg), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[2], "failed: read reserve: timeout")
	assert.Contains(t, lines[3], "#1 util 30.0000% slope1 4.1800%")
	assert.Contains(t, lines[4], "NOT_DUE")
}

// onlyBoldTags rejects text the Bot API could not parse in HTML mode.
func onlyBoldTags(text string) bool {
	rest := strings.NewReplacer("<b>", "", "</b>", "").Replace(text)
	return !strings.ContainsAny(rest, "<>")
}

func TestFormatFailure_EscapesHTML(t *testing.T) {
	run := &model.UpkeepRun{
		Outcome:        model.OutcomeFailed,
		Error:          "read reserve: status 502, body: <html><body>Bad Gateway & co</body></html>",
		ProposedSlope1: ray("34200000000000000000000000"),
	}
	msg := FormatFailure("WETH", run)
	assert.True(t, onlyBoldTags(msg), msg)
	assert.Contains(t, msg, "&lt;html&gt;&lt;body&gt;Bad Gateway &amp; co")

	history := FormatHistory([]model.UpkeepRun{*run})
	assert.True(t, onlyBoldTags(history), history)
	assert.Contains(t, history, "&amp; co")

	reply := FormatError("rates unavailable", errors.New("status 502, body: <h1>oops</h1>"))
	assert.Equal(t, "❌ rates unavailable: status 502, body: &lt;h1&gt;oops&lt;/h1&gt;", reply)

	saved := FormatSaveFailure("WETH", &model.UpkeepRun{Counter: 2, ProposedSlope1: ray("34200000000000000000000000")}, errors.New("rename <tmp>: read-only file system"))
	assert.True(t, onlyBoldTags(saved), saved)
	assert.Contains(t, saved, "Commit #2 installed slope1 3.4200%")

	var rejected atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if !onlyBoldTags(payload["text"]) {
			rejected.Add(1)
			http.Error(w, `{"ok":false,"description":"Bad Request: can't parse entities"}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("token", "42", "")
	tn.APIBase = srv.URL
	tn.RetryBase = time.Millisecond
	require.NoError(t, tn.SendWithRetry(context.Background(), msg, 3))
	assert.Zero(t, rejected.Load())
}

func TestFormatStatus(t *testing.T) {
	st := model.UpkeepStatus{
		WindowSize:     60,
		Counter:        4,
		Due:            true,
		WindowAverage:  ray("800000000000000000000000000"),
		ProposedSlope1: ray("45980000000000000000000000"),
	}
	msg := FormatStatus("WETH", st, model.RateParams{
		VariableRateSlope1: ray("38000000000000000000000000"),
		OptimalUsageRatio:  ray("800000000000000000000000000"),
		Epsilon:            ray("100000000000000000000000000"),
		MPlus:              11_000,
		MMinus:             9_000,
	})
	assert.Contains(t, msg, "mPlus / mMinus: 11000 / 9000 bps")
	assert.Contains(t, msg, "80.0000% over 60 samples")
	assert.Contains(t, msg, "due now")
}

func TestTelegramNotifier_SendWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottoken/sendMessage", r.URL.Path)
		var payload map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "42", payload["chat_id"])
		assert.Equal(t, "HTML", payload["parse_mode"])
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("token", "42", "")
	tn.APIBase = srv.URL
	tn.RetryBase = time.Millisecond

	require.NoError(t, tn.SendWithRetry(context.Background(), "hello", 3))
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(-100)
	err := tn.SendWithRetry(context.Background(), "hello", 1)
	assert.ErrorContains(t, err, "all 2 retries exhausted")
}

func TestTelegramNotifier_Dispatch(t *testing.T) {
	var sent []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		sent = append(sent, payload["text"])
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("token", "42", "")
	tn.APIBase = srv.URL

	text := func(s string) *struct {
		Text string `json:"text"`
	} {
		return &struct {
			Text string `json:"text"`
		}{Text: s}
	}
	updates := []telegramUpdate{
		{UpdateID: 10, Message: text(" /status ")},
		{UpdateID: 11},
		{UpdateID: 12, Message: text("/quiet")},
	}
	next := tn.dispatch(context.Background(), updates, 0, func(cmd string) string {
		if cmd == "/status" {
			return "all good"
		}
		return ""
	})
	assert.Equal(t, 13, next)
	assert.Equal(t, []string{"all good"}, sent)
}

func TestTelegramNotifier_Poll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottoken/getUpdates", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("offset"))
		_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"text":"/rates"}}]}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("token", "42", "")
	tn.APIBase = srv.URL
	updates, err := tn.poll(context.Background(), srv.Client(), 7)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "/rates", updates[0].Message.Text)
}

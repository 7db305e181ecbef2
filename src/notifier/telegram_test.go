package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"signalauditor/src/model"
)

func TestTelegramNotifierSignalClosed(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	notify := NewTelegramNotifier(Config{
		BotToken: "test-token",
		ChatID:   "-100123",
		BaseURL:  server.URL,
	})

	outcome := model.OutcomeTP2
	pnl := 1.5
	rec := model.SignalRecord{
		SignalRef: "ref-1",
		Symbol:    "BTCUSDT",
		Direction: model.DirectionLong,
		Status:    model.StatusClosed,
		Outcome:   &outcome,
		PnlR:      &pnl,
	}

	notify.SignalClosed(context.Background(), rec)

	if gotPath != "/bottest-token/sendMessage" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotBody["chat_id"] != "-100123" {
		t.Fatalf("unexpected chat id: %v", gotBody["chat_id"])
	}
	text, _ := gotBody["text"].(string)
	if text != "BTCUSDT LONG closed: TP2 (+1.50R)" {
		t.Fatalf("unexpected message text: %q", text)
	}
}

func TestTelegramNotifierSwallowsDeliveryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notify := NewTelegramNotifier(Config{
		BotToken: "test-token",
		ChatID:   "-100123",
		BaseURL:  server.URL,
	})

	outcome := model.OutcomeSL
	rec := model.SignalRecord{Symbol: "BTCUSDT", Direction: model.DirectionShort, Outcome: &outcome}

	// Must not panic or block, delivery problems are logged only.
	notify.SignalClosed(context.Background(), rec)
}

func TestFormatClosed(t *testing.T) {
	outcome := model.OutcomeSL
	pnl := -1.0
	rec := model.SignalRecord{
		Symbol:    "ETHUSDT",
		Direction: model.DirectionShort,
		Outcome:   &outcome,
		PnlR:      &pnl,
		Notes:     "stopped out after TP1 partial",
	}

	got := formatClosed(rec)
	want := "ETHUSDT SHORT closed: SL (-1.00R)\nstopped out after TP1 partial"
	if got != want {
		t.Fatalf("formatClosed: got %q, want %q", got, want)
	}

	// No outcome yet renders a placeholder instead of panicking.
	if got := formatClosed(model.SignalRecord{Symbol: "X", Direction: model.DirectionLong}); got != "X LONG closed: ?" {
		t.Fatalf("placeholder render: got %q", got)
	}
}

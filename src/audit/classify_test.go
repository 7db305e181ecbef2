package audit

import (
	"errors"
	"testing"
	"time"

	"signalauditor/src/model"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func c(dt time.Time, o, h, l, cl string) model.Candle {
	return model.Candle{
		Symbol:    "BTCUSDT",
		Timeframe: model.Timeframe5m,
		OpenTime:  dt,
		CloseTime: dt.Add(5 * time.Minute),
		Open:      d(o),
		High:      d(h),
		Low:       d(l),
		Close:     d(cl),
		Volume:    d("1"),
	}
}

var sent = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// zone [99,101] mid 100, sl 95, tp1 105, tp2 110: risk 5, tp1R 1, tp2R 2
func longRecord() *model.SignalRecord {
	return &model.SignalRecord{
		ID:          1,
		Symbol:      "BTCUSDT",
		Direction:   model.DirectionLong,
		EntryFrom:   d("99"),
		EntryTo:     d("101"),
		StopLoss:    d("95"),
		TakeProfit1: d("105"),
		TakeProfit2: d("110"),
		Score:       50,
		SentAt:      sent,
		TTLMinutes:  720,
	}
}

func testConfig() Config {
	return Config{
		FillModeStandard:    "wick",
		FillModeElite:       "close",
		EliteScoreThreshold: 90,
		BaseTimeframe:       "5m",
		ConfirmTimeframe:    "15m",
		SignalTTLMinutes:    720,
	}
}

// afterExpiry is a "now" well past the record's TTL.
var afterExpiry = sent.Add(13 * time.Hour)

func TestClassify_TP2BlendsPartialR(t *testing.T) {
	rec := longRecord()
	candles := []model.Candle{
		c(sent, "102", "103", "100", "102"),                       // wick fill at zone mid 100
		c(sent.Add(5*time.Minute), "102", "110.5", "101", "109"),  // tp1 and tp2 same bar
		c(sent.Add(10*time.Minute), "109", "112", "108", "111"),   // never reached
	}

	eval, err := Classify(rec, candles, nil, afterExpiry, testConfig(), TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval == nil {
		t.Fatalf("expected terminal evaluation")
	}
	if eval.Outcome != model.OutcomeTP2 {
		t.Fatalf("expected TP2, got %s", eval.Outcome)
	}
	// 0.5*(5/5) + 0.5*(10/5) = 1.5
	if eval.PnlR == nil || *eval.PnlR != 1.5 {
		t.Fatalf("expected pnl_r=1.5, got %v", eval.PnlR)
	}
	if eval.FilledAt == nil || !eval.FilledAt.Equal(sent) {
		t.Fatalf("expected fill at first candle, got %v", eval.FilledAt)
	}
	if !eval.EntryPrice.Equal(d("100")) {
		t.Fatalf("expected wick-mode entry at zone mid 100, got %s", eval.EntryPrice)
	}
}

func TestClassify_SLBeforeTP1IsMinusOne(t *testing.T) {
	rec := longRecord()
	candles := []model.Candle{
		c(sent, "101", "102", "100", "101"), // fill
		c(sent.Add(5*time.Minute), "100", "101", "94.5", "96"),  // sl touched, no tp
		c(sent.Add(10*time.Minute), "96", "120", "96", "119"),   // later favorable action is irrelevant
	}

	eval, err := Classify(rec, candles, nil, afterExpiry, testConfig(), TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Outcome != model.OutcomeSL {
		t.Fatalf("expected SL, got %s", eval.Outcome)
	}
	if eval.PnlR == nil || *eval.PnlR != -1.0 {
		t.Fatalf("expected pnl_r=-1.0 exactly, got %v", eval.PnlR)
	}
}

func TestClassify_SameCandleCollision_Ambiguous(t *testing.T) {
	rec := longRecord()
	candles := []model.Candle{
		c(sent, "101", "102", "100", "101"),
		c(sent.Add(5*time.Minute), "100", "106", "94", "100"), // sl and tp1 in one bar
	}

	eval, err := Classify(rec, candles, nil, afterExpiry, testConfig(), TieAmbiguous)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Outcome != model.OutcomeAmbiguous {
		t.Fatalf("expected AMBIGUOUS, got %s", eval.Outcome)
	}
	if eval.PnlR != nil {
		t.Fatalf("ambiguous outcome must carry no pnl_r, got %v", *eval.PnlR)
	}
	if eval.Notes == "" {
		t.Fatalf("expected an explanatory note")
	}
}

func TestClassify_Collision_NearestOpen_PicksSL(t *testing.T) {
	rec := longRecord()
	// open 96: distance 1 to sl 95, distance 9 to tp1 105
	candles := []model.Candle{
		c(sent, "101", "102", "100", "101"),
		c(sent.Add(5*time.Minute), "96", "106", "94", "100"),
	}

	eval, err := Classify(rec, candles, nil, afterExpiry, testConfig(), TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Outcome != model.OutcomeSL {
		t.Fatalf("expected SL branch, got %s", eval.Outcome)
	}
	if eval.PnlR == nil || *eval.PnlR != -1.0 {
		t.Fatalf("expected pnl_r=-1.0, got %v", eval.PnlR)
	}
}

func TestClassify_Collision_NearestOpen_PicksTP1(t *testing.T) {
	rec := longRecord()
	// open 104: distance 9 to sl 95, distance 1 to tp1 105. TP1 presumed
	// first, partial set, scan continues and TP2 lands next bar.
	candles := []model.Candle{
		c(sent, "101", "102", "100", "101"),
		c(sent.Add(5*time.Minute), "104", "105.5", "94.5", "104"),
		c(sent.Add(10*time.Minute), "104", "110.5", "103", "110"),
	}

	eval, err := Classify(rec, candles, nil, afterExpiry, testConfig(), TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Outcome != model.OutcomeTP2 {
		t.Fatalf("expected TP2 after TP1-first resolution, got %s", eval.Outcome)
	}
	if eval.PnlR == nil || *eval.PnlR != 1.5 {
		t.Fatalf("expected pnl_r=1.5, got %v", eval.PnlR)
	}
}

func TestClassify_Collision_NearestOpen_AllLevelsTouched(t *testing.T) {
	// tp1 pulled in to 104 so it is the level nearest the open: dSL=5,
	// dTP1=4, dTP2=10. The TP side is presumed first and the same-bar TP2
	// touch terminates the trade.
	rec := longRecord()
	rec.TakeProfit1 = d("104")
	candles := []model.Candle{
		c(sent, "101", "102", "100", "101"),
		c(sent.Add(5*time.Minute), "100", "110.5", "94.5", "100"),
	}

	eval, err := Classify(rec, candles, nil, afterExpiry, testConfig(), TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Outcome != model.OutcomeTP2 {
		t.Fatalf("expected TP2 when TP1 is nearest the open, got %s", eval.Outcome)
	}
	// 0.5*(4/5) + 0.5*(10/5) = 1.4
	if eval.PnlR == nil || *eval.PnlR != 1.4 {
		t.Fatalf("expected pnl_r=1.4, got %v", eval.PnlR)
	}

	// Same bar shape with the open shifted toward the stop: SL is nearest
	// again (dSL=1 vs dTP1=8) and wins.
	candles[1] = c(sent.Add(5*time.Minute), "96", "110.5", "94.5", "100")
	eval, err = Classify(rec, candles, nil, afterExpiry, testConfig(), TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Outcome != model.OutcomeSL {
		t.Fatalf("expected SL when the stop is nearest the open, got %s", eval.Outcome)
	}
	if eval.PnlR == nil || *eval.PnlR != -1.0 {
		t.Fatalf("expected pnl_r=-1.0, got %v", eval.PnlR)
	}
}

func TestClassify_BreakevenRoundTrip(t *testing.T) {
	rec := longRecord()
	cfg := testConfig()
	cfg.BreakevenTriggerPct = 3 // arms at 103 for entry 100

	candles := []model.Candle{
		c(sent, "101", "102", "100", "101"),                      // fill at 100
		c(sent.Add(5*time.Minute), "101", "105.5", "101", "104"), // tp1 partial, trigger armed
		c(sent.Add(10*time.Minute), "104", "104.5", "99.5", "100"), // returns to entry, sl untouched
	}

	eval, err := Classify(rec, candles, nil, afterExpiry, cfg, TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Outcome != model.OutcomeBE {
		t.Fatalf("expected BE, got %s", eval.Outcome)
	}
	// 0.5*(5/5)
	if eval.PnlR == nil || *eval.PnlR != 0.5 {
		t.Fatalf("expected pnl_r=0.5, got %v", eval.PnlR)
	}
}

func TestClassify_BreakevenDisabledByDefault(t *testing.T) {
	rec := longRecord()
	candles := []model.Candle{
		c(sent, "101", "102", "100", "101"),
		c(sent.Add(5*time.Minute), "101", "105.5", "101", "104"),
		c(sent.Add(10*time.Minute), "104", "104.5", "99.5", "100"),
	}

	// trigger pct zero: the round trip does not close the record before expiry
	eval, err := Classify(rec, candles, nil, afterExpiry, testConfig(), TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Outcome != model.OutcomeTP1 {
		t.Fatalf("expected TP1 at expiry with breakeven disabled, got %s", eval.Outcome)
	}
}

func TestClassify_TTLBoundary_NoFill(t *testing.T) {
	rec := longRecord()
	candles := []model.Candle{
		c(sent, "104", "105", "103", "104"),
		c(sent.Add(5*time.Minute), "104", "106", "103.5", "105"),
	}

	// before expiry: still live
	eval, err := Classify(rec, candles, nil, sent.Add(time.Hour), testConfig(), TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval != nil {
		t.Fatalf("expected pending, got %s", eval.Outcome)
	}

	// after expiry: expired without entry, not EXPIRED
	eval, err = Classify(rec, candles, nil, afterExpiry, testConfig(), TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Outcome != model.OutcomeExpiredNoEntry {
		t.Fatalf("expected EXPIRED_NO_ENTRY, got %s", eval.Outcome)
	}
	if eval.PnlR != nil {
		t.Fatalf("no-entry expiry must carry no pnl_r")
	}
}

func TestClassify_ExpiredHalvesUnrealizedMove(t *testing.T) {
	rec := longRecord()
	candles := []model.Candle{
		c(sent, "101", "102", "100", "101"), // fill at 100
		c(sent.Add(5*time.Minute), "101", "103", "100.5", "102.5"),
	}

	eval, err := Classify(rec, candles, nil, afterExpiry, testConfig(), TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Outcome != model.OutcomeExpired {
		t.Fatalf("expected EXPIRED, got %s", eval.Outcome)
	}
	// 0.5 * (102.5-100)/5 = 0.25
	if eval.PnlR == nil || *eval.PnlR != 0.25 {
		t.Fatalf("expected pnl_r=0.25, got %v", eval.PnlR)
	}
}

func TestClassify_PartialThenExpiryIsTP1(t *testing.T) {
	rec := longRecord()
	candles := []model.Candle{
		c(sent, "101", "102", "100", "101"),
		c(sent.Add(5*time.Minute), "101", "105.5", "101", "104"), // tp1 only
		c(sent.Add(10*time.Minute), "104", "104.5", "103", "104"),
	}

	eval, err := Classify(rec, candles, nil, afterExpiry, testConfig(), TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Outcome != model.OutcomeTP1 {
		t.Fatalf("expected TP1, got %s", eval.Outcome)
	}
	// 0.5*(5/5) + 0.5*(4/5) = 0.9
	if eval.PnlR == nil || *eval.PnlR != 0.9 {
		t.Fatalf("expected pnl_r=0.9, got %v", eval.PnlR)
	}
}

func TestClassify_ShortDirectionMirrored(t *testing.T) {
	rec := &model.SignalRecord{
		ID:          2,
		Symbol:      "BTCUSDT",
		Direction:   model.DirectionShort,
		EntryFrom:   d("101"),
		EntryTo:     d("99"),
		StopLoss:    d("105"),
		TakeProfit1: d("95"),
		TakeProfit2: d("90"),
		Score:       50,
		SentAt:      sent,
		TTLMinutes:  720,
	}
	candles := []model.Candle{
		c(sent, "99", "100", "98", "99"), // wick fill at mid 100
		c(sent.Add(5*time.Minute), "99", "99.5", "89.5", "91"),
	}

	eval, err := Classify(rec, candles, nil, afterExpiry, testConfig(), TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Outcome != model.OutcomeTP2 {
		t.Fatalf("expected TP2, got %s", eval.Outcome)
	}
	if eval.PnlR == nil || *eval.PnlR != 1.5 {
		t.Fatalf("expected pnl_r=1.5, got %v", eval.PnlR)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	rec := longRecord()
	candles := []model.Candle{
		c(sent, "101", "102", "100", "101"),
		c(sent.Add(5*time.Minute), "100", "111", "100", "110"),
	}

	first, err := Classify(rec, candles, nil, afterExpiry, testConfig(), TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Classify(rec, candles, nil, afterExpiry, testConfig(), TieNearestOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Outcome != second.Outcome {
		t.Fatalf("outcome not stable: %s vs %s", first.Outcome, second.Outcome)
	}
	if *first.PnlR != *second.PnlR {
		t.Fatalf("pnl_r not stable: %v vs %v", *first.PnlR, *second.PnlR)
	}
}

func TestClassify_RejectsZeroRiskDistance(t *testing.T) {
	rec := longRecord()
	rec.StopLoss = d("100") // equals wick-mode entry price

	candles := []model.Candle{
		c(sent, "101", "102", "100", "101"),
	}

	_, err := Classify(rec, candles, nil, afterExpiry, testConfig(), TieNearestOpen)
	if !errors.Is(err, model.ErrRiskDistance) {
		t.Fatalf("expected ErrRiskDistance, got %v", err)
	}
}

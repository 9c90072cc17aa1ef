package performance

import (
	"context"
	"math"
	"testing"

	"botpulse/internal/db"
	"botpulse/internal/db/dbtest"
)

func TestMaxDrawdown(t *testing.T) {
	peak, dd := MaxDrawdown([]float64{100, 110, 99, 105, 120, 90})
	if peak != 120 {
		t.Errorf("expected peak 120, got %f", peak)
	}
	if math.Abs(dd-0.25) > 1e-9 {
		t.Errorf("expected drawdown 0.25, got %f", dd)
	}
}

func TestMaxDrawdown_Empty(t *testing.T) {
	peak, dd := MaxDrawdown(nil)
	if peak != 0 || dd != 0 {
		t.Errorf("expected zeros, got %f %f", peak, dd)
	}
}

func TestGenerate_EmptyStore(t *testing.T) {
	tr := NewTracker(dbtest.Open(t))
	r, err := tr.Generate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Bots != 0 || r.Best != nil || len(r.BotStats) != 0 {
		t.Errorf("expected empty report, got %+v", r)
	}
}

func TestGenerate_RanksAndDrawdowns(t *testing.T) {
	store := dbtest.Open(t)
	ctx := context.Background()

	for _, id := range []uint64{1, 2} {
		if err := store.UpsertSnapshot(ctx, db.BotSnapshot{BotID: id, Account: "0x", UpdatedAt: 1}); err != nil {
			t.Fatal(err)
		}
	}
	samples := []db.PerformanceSample{
		{BotID: 1, Timestamp: 60, Equity: 100},
		{BotID: 1, Timestamp: 120, Equity: 80},
		{BotID: 1, Timestamp: 180, Equity: 90},
		{BotID: 2, Timestamp: 60, Equity: 101},
		{BotID: 2, Timestamp: 120, Equity: 102},
	}
	for _, s := range samples {
		s.PnL = s.Equity - 100
		s.PnLPct = s.PnL
		s.Mode = "simulation"
		if err := store.UpsertPerformance(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	r, err := NewTracker(store).Generate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r.Bots != 2 || r.Samples != 5 {
		t.Errorf("expected 2 bots and 5 samples, got %d and %d", r.Bots, r.Samples)
	}
	if r.Best == nil || r.Best.BotID != 2 {
		t.Fatalf("expected bot 2 best, got %+v", r.Best)
	}
	if r.Worst == nil || r.Worst.BotID != 1 {
		t.Fatalf("expected bot 1 worst, got %+v", r.Worst)
	}
	if math.Abs(r.BotStats[1].MaxDrawdown-0.2) > 1e-9 {
		t.Errorf("expected bot 1 drawdown 0.2, got %f", r.BotStats[1].MaxDrawdown)
	}
	if r.BotStats[2].LastEquity != 102 {
		t.Errorf("expected bot 2 last equity 102, got %f", r.BotStats[2].LastEquity)
	}
	// mean of latest pnl: (-10 + 2) / 2
	if math.Abs(r.MeanPnLPct-(-4)) > 1e-9 {
		t.Errorf("expected mean pnl -4, got %f", r.MeanPnLPct)
	}

	LogReport(r)
}

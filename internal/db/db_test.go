package db

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"botpulse/internal/config"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), config.StorageConfig{
		Backend: "sqlite",
		Path:    filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestMigrate_CreatesAllTables(t *testing.T) {
	store := openTestStore(t)

	tables := []string{
		"schema_version",
		"scalar_state",
		"bot_snapshot",
		"bot_activity",
		"bot_performance",
		"bot_decisions",
		"bot_trades",
	}

	for _, table := range tables {
		row := store.backend.QueryRow(context.Background(),
			`SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?`, table)
		var count int
		if err := row.Scan(&count); err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s not found", table)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := openTestStore(t)

	// Second run on top of openTestStore's must not error.
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "mongo"})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestOpen_ReportsMode(t *testing.T) {
	store := openTestStore(t)
	if store.Mode() != "sqlite" {
		t.Errorf("expected sqlite mode, got %q", store.Mode())
	}
}

func TestState_Upsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.GetState(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := store.SetStateUint(ctx, NonceKey(3), 5); err != nil {
		t.Fatal(err)
	}
	if err := store.SetStateUint(ctx, NonceKey(3), 9); err != nil {
		t.Fatal(err)
	}

	v, ok, err := store.GetStateUint(ctx, NonceKey(3))
	if err != nil || !ok {
		t.Fatalf("expected stored nonce, got ok=%v err=%v", ok, err)
	}
	if v != 9 {
		t.Errorf("expected latest nonce 9, got %d", v)
	}
}

func TestSnapshot_OneRowPerBot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	snap := BotSnapshot{BotID: 1, Account: "0xabc", LifecycleState: 1, CooldownSeconds: 300, UpdatedAt: 100}
	if err := store.UpsertSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}
	snap.Paused = true
	snap.UpdatedAt = 160
	if err := store.UpsertSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetSnapshot(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || !got.Paused || got.UpdatedAt != 160 {
		t.Errorf("expected updated snapshot, got %+v", got)
	}

	ids, err := store.BotIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Errorf("expected one snapshot row, got %d", len(ids))
	}

	none, err := store.GetSnapshot(ctx, 2)
	if err != nil || none != nil {
		t.Errorf("expected nil snapshot for unknown bot, got %+v err=%v", none, err)
	}
}

func TestPerformance_UniquePerTimestamp(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, equity := range []float64{101, 102} {
		err := store.UpsertPerformance(ctx, PerformanceSample{
			BotID: 1, Timestamp: 600, Equity: equity, PnL: equity - 100, PnLPct: equity - 100, Mode: "simulation",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	series, err := store.PerformanceSeries(ctx, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 1 {
		t.Fatalf("expected 1 sample for a repeated timestamp, got %d", len(series))
	}
	if series[0].Equity != 102 {
		t.Errorf("expected the re-tick to replace the sample, got equity %v", series[0].Equity)
	}
}

func TestPerformance_EquityOutOfRangeRejected(t *testing.T) {
	store := openTestStore(t)
	err := store.UpsertPerformance(context.Background(), PerformanceSample{
		BotID: 1, Timestamp: 1, Equity: 0.5, Mode: "simulation",
	})
	if err == nil {
		t.Error("expected check constraint to reject equity below 1")
	}
}

func TestPerformanceSeries_AscendingTail(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for ts := int64(1); ts <= 5; ts++ {
		if err := store.UpsertPerformance(ctx, PerformanceSample{
			BotID: 4, Timestamp: ts * 60, Equity: 100 + float64(ts), Mode: "simulation",
		}); err != nil {
			t.Fatal(err)
		}
	}

	series, err := store.PerformanceSeries(ctx, 4, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(series))
	}
	if series[0].Timestamp != 180 || series[2].Timestamp != 300 {
		t.Errorf("expected newest three ascending, got %d..%d", series[0].Timestamp, series[2].Timestamp)
	}

	latest, err := store.LatestPerformance(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if latest.Timestamp != 300 {
		t.Errorf("expected latest ts 300, got %d", latest.Timestamp)
	}
}

func TestDecision_EmptyReasonRejected(t *testing.T) {
	store := openTestStore(t)
	err := store.InsertDecision(context.Background(), Decision{BotID: 1, Timestamp: 1, Decision: "HOLD"})
	if err == nil {
		t.Error("expected error for empty reason")
	}
}

func TestActivity_LatestWins(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if a, err := store.GetActivity(ctx, 1); err != nil || a != nil {
		t.Fatalf("expected no activity, got %+v err=%v", a, err)
	}
	for i, kind := range []ActivityKind{ActivityHeartbeat, ActivityTradeExecuted} {
		if err := store.UpsertActivity(ctx, ActivityRecord{
			BotID: 1, Timestamp: int64(60 * (i + 1)), Kind: kind, BlockNumber: uint64(100 + i), Ref: "run",
		}); err != nil {
			t.Fatal(err)
		}
	}

	a, err := store.GetActivity(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if a.Kind != ActivityTradeExecuted || a.BlockNumber != 101 || a.Timestamp != 120 {
		t.Errorf("expected latest activity, got %+v", a)
	}
}

func TestRecentDecisions_NewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, ts := range []int64{60, 180, 120} {
		if err := store.InsertDecision(ctx, Decision{BotID: 2, Timestamp: ts, Decision: "HOLD", Reason: "quiet"}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.RecentDecisions(ctx, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Timestamp != 180 || got[1].Timestamp != 120 {
		t.Fatalf("expected [180 120], got %+v", got)
	}
	if string(got[0].Metadata) != "{}" {
		t.Errorf("expected empty metadata object, got %s", got[0].Metadata)
	}
}

func TestLatestTrade(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if tr, err := store.LatestTrade(ctx, 1); err != nil || tr != nil {
		t.Fatalf("expected no trade, got %+v err=%v", tr, err)
	}

	meta, _ := json.Marshal(map[string]any{"executed": true})
	for _, ts := range []int64{100, 300, 200} {
		if err := store.InsertTrade(ctx, Trade{
			BotID: 1, Timestamp: ts, Side: "BUY", Quantity: 2, Price: 1.01, Reason: "test", Metadata: meta,
		}); err != nil {
			t.Fatal(err)
		}
	}

	tr, err := store.LatestTrade(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if tr == nil || tr.Timestamp != 300 {
		t.Errorf("expected latest trade at 300, got %+v", tr)
	}
}

func TestBaselinesBefore_ExcludeCurrentTimestamp(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, ts := range []int64{60, 120} {
		if err := store.UpsertPerformance(ctx, PerformanceSample{BotID: 5, Timestamp: ts, Equity: 100 + float64(ts)/60, Mode: "simulation"}); err != nil {
			t.Fatal(err)
		}
		if err := store.InsertTrade(ctx, Trade{BotID: 5, Timestamp: ts, Side: "BUY", Quantity: 1, Price: 1, Reason: "test"}); err != nil {
			t.Fatal(err)
		}
	}

	p, err := store.LatestPerformanceBefore(ctx, 5, 120)
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.Timestamp != 60 {
		t.Errorf("expected sample at 60, got %+v", p)
	}
	if p, err := store.LatestPerformanceBefore(ctx, 5, 60); err != nil || p != nil {
		t.Errorf("expected no sample before 60, got %+v err=%v", p, err)
	}

	tr, err := store.LatestTradeBefore(ctx, 5, 120)
	if err != nil {
		t.Fatal(err)
	}
	if tr == nil || tr.Timestamp != 60 {
		t.Errorf("expected trade at 60, got %+v", tr)
	}

	for ts, want := range map[int64]bool{60: true, 120: true, 180: false} {
		got, err := store.HasTradeAt(ctx, 5, ts)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("HasTradeAt(%d) = %v, want %v", ts, got, want)
		}
	}
}

func TestLeaderboard_RanksByLatestPnL(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for id, pnl := range map[uint64][]float64{1: {5, -2}, 2: {1, 3}, 3: {0.5}} {
		if err := store.UpsertSnapshot(ctx, BotSnapshot{BotID: id, Account: "0x", UpdatedAt: 1}); err != nil {
			t.Fatal(err)
		}
		for i, v := range pnl {
			if err := store.UpsertPerformance(ctx, PerformanceSample{
				BotID: id, Timestamp: int64(i+1) * 60, Equity: 100 + v, PnL: v, PnLPct: v, Mode: "simulation",
			}); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := store.InsertDecision(ctx, Decision{BotID: 2, Timestamp: 120, Decision: "BUY", Reason: "signal"}); err != nil {
		t.Fatal(err)
	}
	// Bot 4 has a snapshot but no sample yet.
	if err := store.UpsertSnapshot(ctx, BotSnapshot{BotID: 4, Account: "0x", UpdatedAt: 1}); err != nil {
		t.Fatal(err)
	}

	entries, err := store.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 ranked bots, got %d", len(entries))
	}
	want := []uint64{2, 3, 1}
	for i, e := range entries {
		if e.BotID != want[i] || e.Rank != i+1 {
			t.Errorf("rank %d: expected bot %d, got bot %d (rank %d)", i+1, want[i], e.BotID, e.Rank)
		}
	}
	if entries[0].LastDecision != "BUY" {
		t.Errorf("expected last decision BUY for bot 2, got %q", entries[0].LastDecision)
	}

	stats, err := store.FleetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Bots != 4 || stats.Samples != 5 || stats.Decisions != 1 {
		t.Errorf("unexpected fleet stats: %+v", stats)
	}
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"botpulse/internal/chain"
	"botpulse/internal/config"
	"botpulse/internal/db"
	"botpulse/internal/metrics"
	"botpulse/internal/performance"
	"botpulse/internal/simulation"
)

// ErrTickInProgress is returned when a tick is requested while another runs.
var ErrTickInProgress = errors.New("scheduler: tick already in progress")

// Summary describes one completed tick.
type Summary struct {
	RunID       string        `json:"run_id"`
	Timestamp   int64         `json:"ts"`
	Height      uint64        `json:"height"`
	Roster      uint64        `json:"roster"`
	Processed   int           `json:"processed"`
	PerfUpdated int           `json:"perf_updated"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Duration    time.Duration `json:"duration_ns"`
}

// Scheduler drives ticks over the bot roster.
type Scheduler struct {
	reader  chain.Reader
	engine  *simulation.Engine
	store   *db.Store
	tracker *performance.Tracker
	metrics *metrics.Metrics
	cfg     config.ScheduleConfig

	ticking atomic.Bool
	now     func() time.Time

	mu        sync.Mutex
	observers []func(Summary)
}

// New creates a new Scheduler. metrics may be nil.
func New(
	reader chain.Reader,
	engine *simulation.Engine,
	store *db.Store,
	tracker *performance.Tracker,
	m *metrics.Metrics,
	cfg config.ScheduleConfig,
) *Scheduler {
	return &Scheduler{
		reader:  reader,
		engine:  engine,
		store:   store,
		tracker: tracker,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
	}
}

// OnTick registers fn to receive every successful tick summary.
func (s *Scheduler) OnTick(fn func(Summary)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Run performs the boot tick, then ticks on the configured interval until ctx
// is cancelled. A tick already running when ctx is cancelled finishes.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler starting",
		"tick_interval", s.cfg.TickInterval.Duration,
		"performance_interval", s.cfg.PerformanceInterval.Duration,
		"max_bots", s.cfg.MaxBots,
	)

	if s.cfg.BootTick {
		s.runTick(ctx)
	}

	tickTicker := time.NewTicker(s.cfg.TickInterval.Duration)
	defer tickTicker.Stop()

	var perfC <-chan time.Time
	if s.cfg.PerformanceInterval.Duration > 0 {
		perfTicker := time.NewTicker(s.cfg.PerformanceInterval.Duration)
		defer perfTicker.Stop()
		perfC = perfTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler shutting down")
			return ctx.Err()
		case <-tickTicker.C:
			s.runTick(ctx)
		case <-perfC:
			s.runPerformanceReport(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	sum, err := s.Tick(context.WithoutCancel(ctx))
	switch {
	case errors.Is(err, ErrTickInProgress):
		slog.Warn("previous tick still running, skipping")
	case err != nil:
		slog.Error("tick failed", "error", err)
	default:
		slog.Info("tick complete",
			"run_id", sum.RunID,
			"height", sum.Height,
			"processed", sum.Processed,
			"skipped", sum.Skipped,
			"failed", sum.Failed,
			"duration", sum.Duration,
		)
	}
}

// Tick processes every bot once. Bots run sequentially and a failing bot is
// logged and skipped. Overlapping calls get ErrTickInProgress.
func (s *Scheduler) Tick(ctx context.Context) (Summary, error) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.countTick("overlap")
		return Summary{}, ErrTickInProgress
	}
	defer s.ticking.Store(false)

	start := time.Now()
	now := s.now()
	sum := Summary{RunID: uuid.NewString(), Timestamp: now.Unix()}

	if err := s.tick(ctx, now, &sum); err != nil {
		s.countTick("error")
		return sum, err
	}
	sum.Duration = time.Since(start)

	if s.metrics != nil {
		s.countTick("ok")
		s.metrics.TickDuration.Observe(sum.Duration.Seconds())
		s.metrics.LastTick.Set(float64(sum.Timestamp))
		s.metrics.BlockHeight.Set(float64(sum.Height))
	}
	s.notify(sum)
	return sum, nil
}

func (s *Scheduler) tick(ctx context.Context, now time.Time, sum *Summary) error {
	roster, err := s.reader.GetRosterSize(ctx)
	if err != nil {
		return fmt.Errorf("reading roster size: %w", err)
	}
	if s.cfg.MaxBots > 0 && roster > s.cfg.MaxBots {
		roster = s.cfg.MaxBots
	}
	sum.Roster = roster

	height, err := s.reader.GetLatestBlockHeight(ctx)
	if err != nil {
		return fmt.Errorf("reading block height: %w", err)
	}
	sum.Height = height

	info := simulation.Tick{RunID: sum.RunID, Height: height}
	for botID := uint64(1); botID <= roster; botID++ {
		res, err := s.engine.ProcessBot(ctx, botID, now, info)
		if err != nil {
			slog.Error("bot processing failed", "bot_id", botID, "run_id", sum.RunID, "error", err)
			sum.Failed++
			s.countBot("failed")
			continue
		}
		switch res.Outcome {
		case simulation.OutcomeProcessed:
			sum.Processed++
			sum.PerfUpdated++
			s.countBot("processed")
			if s.metrics != nil {
				s.metrics.Decisions.WithLabelValues(string(res.Decision)).Inc()
				if res.Traded {
					s.metrics.Trades.Inc()
				}
			}
		case simulation.OutcomeSkipped:
			sum.Skipped++
			s.countBot("skipped")
		}
	}

	if err := s.store.SetStateUint(ctx, db.KeyLastTickTimestamp, uint64(now.Unix())); err != nil {
		return err
	}
	if err := s.store.SetStateUint(ctx, db.KeyLastBlockHeight, height); err != nil {
		return err
	}
	return nil
}

func (s *Scheduler) notify(sum Summary) {
	s.mu.Lock()
	observers := slices.Clone(s.observers)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(sum)
	}
}

func (s *Scheduler) countTick(result string) {
	if s.metrics != nil {
		s.metrics.Ticks.WithLabelValues(result).Inc()
	}
}

func (s *Scheduler) countBot(outcome string) {
	if s.metrics != nil {
		s.metrics.Bots.WithLabelValues(outcome).Inc()
	}
}

func (s *Scheduler) runPerformanceReport(ctx context.Context) {
	if s.tracker == nil {
		return
	}
	report, err := s.tracker.Generate(ctx)
	if err != nil {
		slog.Error("performance report failed", "error", err)
		return
	}
	performance.LogReport(report)
}

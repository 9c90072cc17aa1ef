package collector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botpulse/internal/chain"
	"botpulse/internal/chain/chaintest"
	"botpulse/internal/db"
	"botpulse/internal/db/dbtest"
	"botpulse/internal/indexer"
	"botpulse/internal/metrics"
	"botpulse/internal/retry"
)

var testPolicy = retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}

type recordingSink struct {
	emitted map[uint64][]chain.Event
	err     error
}

func (s *recordingSink) Emit(_ context.Context, botID uint64, events []chain.Event) error {
	if s.err != nil {
		return s.err
	}
	if s.emitted == nil {
		s.emitted = make(map[uint64][]chain.Event)
	}
	s.emitted[botID] = append(s.emitted[botID], events...)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func trade(block uint64, idx uint, nonce int64) chain.TradeExecuted {
	return chain.TradeExecuted{
		EventMeta: chain.EventMeta{TxHash: common.BigToHash(big.NewInt(int64(block)*100 + int64(idx))), BlockNumber: block, LogIndex: idx},
		AmountIn:  big.NewInt(1),
		AmountOut: big.NewInt(1),
		Nonce:     big.NewInt(nonce),
	}
}

type fixture struct {
	fake    *chaintest.Reader
	store   *db.Store
	sink    *recordingSink
	metrics *metrics.Metrics
	c       *Collector
}

func newFixture(t *testing.T, settings Settings) *fixture {
	t.Helper()
	f := &fixture{
		fake:    chaintest.New(),
		store:   dbtest.Open(t),
		sink:    &recordingSink{},
		metrics: metrics.New(),
	}
	f.fake.Height = 500
	ix := indexer.New(f.fake, testPolicy)
	f.c = NewCollector(f.fake, ix, f.store, f.sink, f.metrics, settings)
	return f
}

func TestRun_EmitsEventsAndWritesWatermarks(t *testing.T) {
	f := newFixture(t, Settings{FromBlock: 1})
	a1 := f.fake.AddBot(1, chain.Attributes{})
	a2 := f.fake.AddBot(2, chain.Attributes{})
	f.fake.AddEvents(a1, trade(10, 0, 1), trade(300, 2, 2))
	f.fake.AddEvents(a2, chain.PausedUpdated{EventMeta: chain.EventMeta{BlockNumber: 450}, Paused: true})

	rep, err := f.c.Run(context.Background(), Range{})
	require.NoError(t, err)
	assert.Equal(t, Report{Bots: 2, Events: 3, To: 500}, rep)

	require.Len(t, f.sink.emitted[1], 2)
	assert.Equal(t, uint64(300), f.sink.emitted[1][0].Meta().BlockNumber, "newest first")
	require.Len(t, f.sink.emitted[2], 1)

	for _, id := range []uint64{1, 2} {
		v, ok, err := f.store.GetStateUint(context.Background(), db.IndexedBlockKey(id))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint64(500), v)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.IndexedEvents.WithLabelValues(string(chain.KindTradeExecuted))))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.IndexedEvents.WithLabelValues(string(chain.KindPausedUpdated))))
}

func TestRun_ExplicitRange(t *testing.T) {
	f := newFixture(t, Settings{})
	a1 := f.fake.AddBot(1, chain.Attributes{})
	f.fake.AddEvents(a1, trade(10, 0, 1), trade(150, 0, 2), trade(300, 0, 3))

	rep, err := f.c.Run(context.Background(), Range{From: 100, To: 200})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Events)
	assert.Equal(t, uint64(200), rep.To)
	assert.Zero(t, f.fake.Calls("GetLatestBlockHeight"))
}

func TestRun_ResumeStartsPastWatermark(t *testing.T) {
	f := newFixture(t, Settings{FromBlock: 1})
	a1 := f.fake.AddBot(1, chain.Attributes{})
	f.fake.AddEvents(a1, trade(10, 0, 1), trade(420, 0, 2))
	require.NoError(t, f.store.SetStateUint(context.Background(), db.IndexedBlockKey(1), 400))

	rep, err := f.c.Run(context.Background(), Range{Resume: true})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Events)
	for _, call := range f.fake.LogCalls {
		assert.Equal(t, uint64(401), call.FromBlock)
	}
}

func TestRun_ResumeUpToDateScansNothing(t *testing.T) {
	f := newFixture(t, Settings{FromBlock: 1})
	f.fake.AddBot(1, chain.Attributes{})
	require.NoError(t, f.store.SetStateUint(context.Background(), db.IndexedBlockKey(1), 500))

	rep, err := f.c.Run(context.Background(), Range{Resume: true})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Bots)
	assert.Empty(t, f.fake.LogCalls)
}

func TestRun_IsolatesBotFailures(t *testing.T) {
	f := newFixture(t, Settings{FromBlock: 1})
	f.fake.AddBot(1, chain.Attributes{})
	bad := f.fake.AddBot(2, chain.Attributes{})
	a3 := f.fake.AddBot(3, chain.Attributes{})
	f.fake.AddEvents(a3, trade(5, 0, 1))
	f.fake.FailAccounts[bad] = true

	rep, err := f.c.Run(context.Background(), Range{})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Bots)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Events)

	_, ok, err := f.store.GetStateUint(context.Background(), db.IndexedBlockKey(2))
	require.NoError(t, err)
	assert.False(t, ok, "failed bot keeps no watermark")
}

func TestRun_SkipsUnregisteredAndCapsRoster(t *testing.T) {
	f := newFixture(t, Settings{FromBlock: 1, MaxBots: 3})
	f.fake.AddBot(1, chain.Attributes{})
	f.fake.AddBot(5, chain.Attributes{})

	rep, err := f.c.Run(context.Background(), Range{})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Bots)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 3, f.fake.Calls("GetAccountOf"))
}

func TestRun_SinkErrorCountsAsFailure(t *testing.T) {
	f := newFixture(t, Settings{FromBlock: 1})
	f.fake.AddBot(1, chain.Attributes{})
	f.sink.err = errors.New("broker down")

	rep, err := f.c.Run(context.Background(), Range{})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
}

func TestRun_RosterFailureAborts(t *testing.T) {
	f := newFixture(t, Settings{})
	f.fake.Failures["GetRosterSize"] = 1

	_, err := f.c.Run(context.Background(), Range{})
	assert.ErrorIs(t, err, chaintest.ErrUnavailable)
}

func TestWriterSink_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)
	require.NoError(t, s.Emit(context.Background(), 9, []chain.Event{trade(1, 0, 1), trade(2, 0, 2)}))

	sc := bufio.NewScanner(&buf)
	var lines int
	for sc.Scan() {
		var got struct {
			BotID uint64 `json:"bot_id"`
			Event struct {
				Kind string `json:"kind"`
			} `json:"event"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &got))
		assert.Equal(t, uint64(9), got.BotID)
		assert.Equal(t, "TradeExecuted", got.Event.Kind)
		lines++
	}
	assert.Equal(t, 2, lines)
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink_KeysByBot(t *testing.T) {
	w := &fakeWriter{}
	s := &KafkaSink{w: w}

	require.NoError(t, s.Emit(context.Background(), 42, []chain.Event{trade(1, 0, 1)}))
	require.NoError(t, s.Emit(context.Background(), 42, nil))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))
	assert.Contains(t, string(w.msgs[0].Value), `"kind":"TradeExecuted"`)
	assert.Equal(t, "kind", w.msgs[0].Headers[0].Key)

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaSink_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaSink("", "topic")
	assert.Error(t, err)
	_, err = NewKafkaSink("localhost:9092", "")
	assert.Error(t, err)

	s, err := NewKafkaSink("a:9092,b:9092", "botpulse.events")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

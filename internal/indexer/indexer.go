// Package indexer scans bot account event logs backward over a block range.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"botpulse/internal/chain"
	"botpulse/internal/retry"
)

// ChunkSize is the default number of blocks per log query window.
const ChunkSize uint64 = 100

// Window is an inclusive block range.
type Window struct {
	From uint64
	To   uint64
}

// Indexer fetches the six bot account event kinds over a block range.
type Indexer struct {
	reader    chain.Reader
	policy    retry.Policy
	chunkSize uint64
	kinds     []chain.EventKind
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithChunkSize overrides ChunkSize. Zero is ignored.
func WithChunkSize(n uint64) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.chunkSize = n
		}
	}
}

// WithKinds restricts the scan to the given event kinds.
func WithKinds(kinds ...chain.EventKind) Option {
	return func(ix *Indexer) {
		if len(kinds) > 0 {
			ix.kinds = kinds
		}
	}
}

// New returns an Indexer that reads through reader, retrying each call
// under policy.
func New(reader chain.Reader, policy retry.Policy, opts ...Option) *Indexer {
	ix := &Indexer{
		reader:    reader,
		policy:    policy,
		chunkSize: ChunkSize,
		kinds:     chain.AllKinds,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Windows splits [fromBlock, toBlock] into chunk-sized windows, newest first.
func (ix *Indexer) Windows(fromBlock, toBlock uint64) []Window {
	if fromBlock > toBlock {
		return nil
	}
	var windows []Window
	end := toBlock
	for {
		start := fromBlock
		if end-fromBlock+1 > ix.chunkSize {
			start = end - ix.chunkSize + 1
		}
		windows = append(windows, Window{From: start, To: end})
		if start <= fromBlock {
			return windows
		}
		end = start - 1
	}
}

// FetchEvents returns every event account emitted in [fromBlock, toBlock],
// deduplicated by (tx hash, log index) and ordered newest first. A call that
// exhausts its retries aborts the whole fetch.
func (ix *Indexer) FetchEvents(ctx context.Context, account common.Address, fromBlock, toBlock uint64) ([]chain.Event, error) {
	windows := ix.Windows(fromBlock, toBlock)
	if len(windows) == 0 {
		return []chain.Event{}, nil
	}

	var all []chain.Event
	for _, w := range windows {
		found, err := ix.fetchWindow(ctx, account, w)
		if err != nil {
			return nil, fmt.Errorf("window [%d,%d] for %s: %w", w.From, w.To, account.Hex(), err)
		}
		all = append(all, found...)
	}

	events := dedupe(all)
	sortNewestFirst(events)

	slog.Debug("events fetched",
		"account", account.Hex(),
		"from_block", fromBlock,
		"to_block", toBlock,
		"windows", len(windows),
		"events", len(events),
	)
	return events, nil
}

// fetchWindow issues one retrying call per kind in parallel. Results are
// concatenated in kind order so the output is deterministic.
func (ix *Indexer) fetchWindow(ctx context.Context, account common.Address, w Window) ([]chain.Event, error) {
	perKind := make([][]chain.Event, len(ix.kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range ix.kinds {
		g.Go(func() error {
			evs, err := retry.Do(gctx, ix.policy, func(ctx context.Context) ([]chain.Event, error) {
				return ix.reader.GetLogs(ctx, account, kind, w.From, w.To)
			})
			if err != nil {
				return fmt.Errorf("%s logs: %w", kind, err)
			}
			perKind[i] = evs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []chain.Event
	for _, evs := range perKind {
		out = append(out, evs...)
	}
	return out, nil
}

// dedupe keeps the first occurrence of each identity.
func dedupe(events []chain.Event) []chain.Event {
	seen := make(map[chain.EventID]struct{}, len(events))
	out := make([]chain.Event, 0, len(events))
	for _, e := range events {
		id := e.ID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, e)
	}
	return out
}

func sortNewestFirst(events []chain.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].Meta(), events[j].Meta()
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber > b.BlockNumber
		}
		return a.LogIndex > b.LogIndex
	})
}

// Package chaintest provides an in-memory chain.Reader for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"botpulse/internal/chain"
)

// ErrUnavailable is the error injected by the Fail* knobs.
var ErrUnavailable = errors.New("chaintest: rpc unavailable")

// Bot is one registered bot as the fake chain sees it.
type Bot struct {
	Account common.Address
	Token   common.Address
	Symbol  string
	Attrs   chain.Attributes
}

// LogCall records one GetLogs invocation.
type LogCall struct {
	Account   common.Address
	Kind      chain.EventKind
	FromBlock uint64
	ToBlock   uint64
}

// Reader is a chain.Reader backed by maps. Bot ids run from 1 to the number
// of registered bots unless Roster overrides it.
type Reader struct {
	mu sync.Mutex

	Bots   map[uint64]*Bot
	Roster uint64
	Height uint64
	Events map[common.Address][]chain.Event

	// Failure injection: remaining failures per call name, e.g. "GetAttributes".
	Failures map[string]int
	// FailAccounts makes every GetAttributes/GetLogs for an account fail.
	FailAccounts map[common.Address]bool

	LogCalls []LogCall
	calls    map[string]int
}

var _ chain.Reader = (*Reader)(nil)

func New() *Reader {
	return &Reader{
		Bots:         make(map[uint64]*Bot),
		Events:       make(map[common.Address][]chain.Event),
		Failures:     make(map[string]int),
		FailAccounts: make(map[common.Address]bool),
		calls:        make(map[string]int),
	}
}

// AddBot registers a bot and returns its account address.
func (r *Reader) AddBot(id uint64, attrs chain.Attributes) common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	addr := common.BigToAddress(new(big.Int).SetUint64(0x1000 + id))
	r.Bots[id] = &Bot{Account: addr, Attrs: attrs}
	if id > r.Roster {
		r.Roster = id
	}
	return addr
}

// SetAttrs replaces the attributes of a registered bot.
func (r *Reader) SetAttrs(id uint64, attrs chain.Attributes) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Bots[id].Attrs = attrs
}

// AddEvents appends events emitted by account.
func (r *Reader) AddEvents(account common.Address, events ...chain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events[account] = append(r.Events[account], events...)
}

// Calls returns how many times the named method was invoked.
func (r *Reader) Calls(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func (r *Reader) enter(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[name]++
	if r.Failures[name] > 0 {
		r.Failures[name]--
		return fmt.Errorf("%s: %w", name, ErrUnavailable)
	}
	return nil
}

func (r *Reader) GetRosterSize(ctx context.Context) (uint64, error) {
	if err := r.enter("GetRosterSize"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Roster, nil
}

func (r *Reader) GetAccountOf(ctx context.Context, botID uint64) (common.Address, error) {
	if err := r.enter("GetAccountOf"); err != nil {
		return common.Address{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.Bots[botID]; ok {
		return b.Account, nil
	}
	return common.Address{}, nil
}

func (r *Reader) GetAttributes(ctx context.Context, account common.Address) (chain.Attributes, error) {
	if err := r.enter("GetAttributes"); err != nil {
		return chain.Attributes{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAccounts[account] {
		return chain.Attributes{}, fmt.Errorf("attributes of %s: %w", account.Hex(), ErrUnavailable)
	}
	for _, b := range r.Bots {
		if b.Account == account {
			return b.Attrs, nil
		}
	}
	return chain.Attributes{}, fmt.Errorf("no account %s", account.Hex())
}

func (r *Reader) GetTokenOf(ctx context.Context, botID uint64) (common.Address, error) {
	if err := r.enter("GetTokenOf"); err != nil {
		return common.Address{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.Bots[botID]; ok {
		return b.Token, nil
	}
	return common.Address{}, nil
}

func (r *Reader) GetTokenSymbol(ctx context.Context, token common.Address) (string, error) {
	if err := r.enter("GetTokenSymbol"); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.Bots {
		if b.Token == token && b.Symbol != "" {
			return b.Symbol, nil
		}
	}
	return "", fmt.Errorf("no symbol for %s", token.Hex())
}

func (r *Reader) GetLatestBlockHeight(ctx context.Context) (uint64, error) {
	if err := r.enter("GetLatestBlockHeight"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Height, nil
}

func (r *Reader) GetLogs(ctx context.Context, account common.Address, kind chain.EventKind, fromBlock, toBlock uint64) ([]chain.Event, error) {
	if err := r.enter("GetLogs"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LogCalls = append(r.LogCalls, LogCall{Account: account, Kind: kind, FromBlock: fromBlock, ToBlock: toBlock})
	if r.FailAccounts[account] {
		return nil, fmt.Errorf("logs of %s: %w", account.Hex(), ErrUnavailable)
	}
	var out []chain.Event
	for _, e := range r.Events[account] {
		b := e.Meta().BlockNumber
		if e.Kind() == kind && b >= fromBlock && b <= toBlock {
			out = append(out, e)
		}
	}
	return out, nil
}

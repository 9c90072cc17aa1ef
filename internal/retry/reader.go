package retry

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"botpulse/internal/chain"
)

// Reader decorates a chain.Reader so every call goes through Do.
type Reader struct {
	inner  chain.Reader
	policy Policy
}

var _ chain.Reader = (*Reader)(nil)

func NewReader(inner chain.Reader, p Policy) *Reader {
	return &Reader{inner: inner, policy: p}
}

func (r *Reader) GetRosterSize(ctx context.Context) (uint64, error) {
	return Do(ctx, r.policy, r.inner.GetRosterSize)
}

func (r *Reader) GetAccountOf(ctx context.Context, botID uint64) (common.Address, error) {
	return Do(ctx, r.policy, func(ctx context.Context) (common.Address, error) {
		return r.inner.GetAccountOf(ctx, botID)
	})
}

func (r *Reader) GetAttributes(ctx context.Context, account common.Address) (chain.Attributes, error) {
	return Do(ctx, r.policy, func(ctx context.Context) (chain.Attributes, error) {
		return r.inner.GetAttributes(ctx, account)
	})
}

func (r *Reader) GetTokenOf(ctx context.Context, botID uint64) (common.Address, error) {
	return Do(ctx, r.policy, func(ctx context.Context) (common.Address, error) {
		return r.inner.GetTokenOf(ctx, botID)
	})
}

func (r *Reader) GetTokenSymbol(ctx context.Context, token common.Address) (string, error) {
	return Do(ctx, r.policy, func(ctx context.Context) (string, error) {
		return r.inner.GetTokenSymbol(ctx, token)
	})
}

func (r *Reader) GetLatestBlockHeight(ctx context.Context) (uint64, error) {
	return Do(ctx, r.policy, r.inner.GetLatestBlockHeight)
}

func (r *Reader) GetLogs(ctx context.Context, account common.Address, kind chain.EventKind, fromBlock, toBlock uint64) ([]chain.Event, error) {
	return Do(ctx, r.policy, func(ctx context.Context) ([]chain.Event, error) {
		return r.inner.GetLogs(ctx, account, kind, fromBlock, toBlock)
	})
}

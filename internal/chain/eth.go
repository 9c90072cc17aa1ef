package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"
)

// rpcClient is the subset of *ethclient.Client the reader uses.
type rpcClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// EthReader implements Reader over JSON-RPC.
type EthReader struct {
	client   rpcClient
	registry common.Address

	registryABI abi.ABI
	accountABI  abi.ABI
	erc20ABI    abi.ABI
}

var _ Reader = (*EthReader)(nil)

// Dial connects to rpcURL and binds the registry at registryAddr.
func Dial(ctx context.Context, rpcURL, registryAddr string) (*EthReader, error) {
	if !common.IsHexAddress(registryAddr) {
		return nil, fmt.Errorf("invalid registry address %q", registryAddr)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", rpcURL, err)
	}
	r, err := newEthReader(client, common.HexToAddress(registryAddr))
	if err != nil {
		client.Close()
		return nil, err
	}
	return r, nil
}

func newEthReader(client rpcClient, registry common.Address) (*EthReader, error) {
	r := &EthReader{client: client, registry: registry}
	for _, p := range []struct {
		dst  *abi.ABI
		json string
	}{
		{&r.registryABI, registryABIJSON},
		{&r.accountABI, accountABIJSON},
		{&r.erc20ABI, erc20ABIJSON},
	} {
		parsed, err := abi.JSON(strings.NewReader(p.json))
		if err != nil {
			return nil, fmt.Errorf("parsing abi: %w", err)
		}
		*p.dst = parsed
	}
	return r, nil
}

func (r *EthReader) Close() {
	r.client.Close()
}

// ChainID returns the chain identifier reported by the endpoint.
func (r *EthReader) ChainID(ctx context.Context) (int64, error) {
	id, err := r.client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading chain id: %w", err)
	}
	return id.Int64(), nil
}

func (r *EthReader) call(ctx context.Context, contract *abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling %s on %s: %w", method, to.Hex(), err)
	}
	vals, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s: %w", method, err)
	}
	return vals, nil
}

func (r *EthReader) GetRosterSize(ctx context.Context) (uint64, error) {
	vals, err := r.call(ctx, &r.registryABI, r.registry, "botCount")
	if err != nil {
		return 0, err
	}
	return bigToUint(vals[0])
}

func (r *EthReader) GetAccountOf(ctx context.Context, botID uint64) (common.Address, error) {
	vals, err := r.call(ctx, &r.registryABI, r.registry, "accountOf", new(big.Int).SetUint64(botID))
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(vals[0])
}

func (r *EthReader) GetTokenOf(ctx context.Context, botID uint64) (common.Address, error) {
	vals, err := r.call(ctx, &r.registryABI, r.registry, "tokenOf", new(big.Int).SetUint64(botID))
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(vals[0])
}

func (r *EthReader) GetTokenSymbol(ctx context.Context, token common.Address) (string, error) {
	vals, err := r.call(ctx, &r.erc20ABI, token, "symbol")
	if err != nil {
		return "", err
	}
	s, ok := vals[0].(string)
	if !ok {
		return "", fmt.Errorf("symbol: unexpected type %T", vals[0])
	}
	return s, nil
}

// GetAttributes reads paused, lifecycle, nonce and risk params concurrently.
func (r *EthReader) GetAttributes(ctx context.Context, account common.Address) (Attributes, error) {
	var attrs Attributes
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vals, err := r.call(gctx, &r.accountABI, account, "paused")
		if err != nil {
			return err
		}
		paused, ok := vals[0].(bool)
		if !ok {
			return fmt.Errorf("paused: unexpected type %T", vals[0])
		}
		attrs.Paused = paused
		return nil
	})
	g.Go(func() error {
		vals, err := r.call(gctx, &r.accountABI, account, "lifecycleState")
		if err != nil {
			return err
		}
		state, ok := vals[0].(uint8)
		if !ok {
			return fmt.Errorf("lifecycleState: unexpected type %T", vals[0])
		}
		attrs.Lifecycle = Lifecycle(state)
		return nil
	})
	g.Go(func() error {
		vals, err := r.call(gctx, &r.accountABI, account, "nonce")
		if err != nil {
			return err
		}
		n, err := bigToUint(vals[0])
		if err != nil {
			return fmt.Errorf("nonce: %w", err)
		}
		attrs.Nonce = n
		return nil
	})
	g.Go(func() error {
		vals, err := r.call(gctx, &r.accountABI, account, "riskParams")
		if err != nil {
			return err
		}
		risk, err := riskFromValues(vals)
		if err != nil {
			return fmt.Errorf("riskParams: %w", err)
		}
		attrs.Risk = risk
		return nil
	})

	if err := g.Wait(); err != nil {
		return Attributes{}, err
	}
	return attrs, nil
}

func (r *EthReader) GetLatestBlockHeight(ctx context.Context) (uint64, error) {
	h, err := r.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading block number: %w", err)
	}
	return h, nil
}

// GetLogs fetches and decodes one kind of event emitted by account in
// [fromBlock, toBlock].
func (r *EthReader) GetLogs(ctx context.Context, account common.Address, kind EventKind, fromBlock, toBlock uint64) ([]Event, error) {
	ev, ok := r.accountABI.Events[string(kind)]
	if !ok {
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	logs, err := r.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{account},
		Topics:    [][]common.Hash{{ev.ID}},
	})
	if err != nil {
		return nil, fmt.Errorf("filtering %s logs [%d,%d]: %w", kind, fromBlock, toBlock, err)
	}

	events := make([]Event, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		e, err := r.decode(kind, lg)
		if err != nil {
			return nil, fmt.Errorf("decoding %s log %s/%d: %w", kind, lg.TxHash.Hex(), lg.Index, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func (r *EthReader) decode(kind EventKind, lg types.Log) (Event, error) {
	meta := EventMeta{TxHash: lg.TxHash, BlockNumber: lg.BlockNumber, LogIndex: lg.Index}
	vals, err := r.accountABI.Unpack(string(kind), lg.Data)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindTradeExecuted:
		if len(vals) != 5 {
			return nil, fmt.Errorf("expected 5 values, got %d", len(vals))
		}
		tokenIn, err := asAddress(vals[0])
		if err != nil {
			return nil, err
		}
		tokenOut, err := asAddress(vals[1])
		if err != nil {
			return nil, err
		}
		return TradeExecuted{
			EventMeta: meta,
			TokenIn:   tokenIn,
			TokenOut:  tokenOut,
			AmountIn:  asBig(vals[2]),
			AmountOut: asBig(vals[3]),
			Nonce:     asBig(vals[4]),
		}, nil

	case KindLifecycleChanged:
		if len(vals) != 2 {
			return nil, fmt.Errorf("expected 2 values, got %d", len(vals))
		}
		prev, ok1 := vals[0].(uint8)
		next, ok2 := vals[1].(uint8)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("unexpected lifecycle types %T/%T", vals[0], vals[1])
		}
		return LifecycleChanged{EventMeta: meta, Previous: Lifecycle(prev), Next: Lifecycle(next)}, nil

	case KindPausedUpdated:
		paused, ok := vals[0].(bool)
		if !ok {
			return nil, fmt.Errorf("unexpected paused type %T", vals[0])
		}
		return PausedUpdated{EventMeta: meta, Paused: paused}, nil

	case KindRiskParamsUpdated:
		risk, err := riskFromValues(vals)
		if err != nil {
			return nil, err
		}
		return RiskParamsUpdated{EventMeta: meta, Risk: risk}, nil

	case KindDeposited, KindWithdrawn:
		if len(lg.Topics) < 2 {
			return nil, fmt.Errorf("missing indexed address topic")
		}
		party := common.BytesToAddress(lg.Topics[1].Bytes())
		if kind == KindDeposited {
			return Deposited{EventMeta: meta, From: party, Amount: asBig(vals[0])}, nil
		}
		return Withdrawn{EventMeta: meta, To: party, Amount: asBig(vals[0])}, nil
	}
	return nil, fmt.Errorf("unhandled event kind %q", kind)
}

func riskFromValues(vals []any) (RiskParams, error) {
	if len(vals) != 2 {
		return RiskParams{}, fmt.Errorf("expected 2 values, got %d", len(vals))
	}
	return RiskParams{
		MaxAmountInPerTrade:     asBig(vals[0]),
		MinSecondsBetweenTrades: asBig(vals[1]),
	}, nil
}

func asAddress(v any) (common.Address, error) {
	addr, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected address type %T", v)
	}
	return addr, nil
}

func asBig(v any) *big.Int {
	if b, ok := v.(*big.Int); ok && b != nil {
		return b
	}
	return new(big.Int)
}

func bigToUint(v any) (uint64, error) {
	b, ok := v.(*big.Int)
	if !ok || b == nil {
		return 0, fmt.Errorf("unexpected integer type %T", v)
	}
	if !b.IsUint64() {
		return 0, fmt.Errorf("value %s overflows uint64", b)
	}
	return b.Uint64(), nil
}

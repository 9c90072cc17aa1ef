// Package chain is the read-only boundary to the bot registry and bot
// accounts on an EVM chain.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Lifecycle is a bot account's lifecycle state as stored on-chain.
type Lifecycle uint8

const (
	Draft Lifecycle = iota
	Stealth
	Public
	Graduated
	Retired
)

func (l Lifecycle) String() string {
	switch l {
	case Draft:
		return "Draft"
	case Stealth:
		return "Stealth"
	case Public:
		return "Public"
	case Graduated:
		return "Graduated"
	case Retired:
		return "Retired"
	default:
		return fmt.Sprintf("Lifecycle(%d)", uint8(l))
	}
}

// RiskParams are the per-bot trading limits. Amounts are in wei.
type RiskParams struct {
	MaxAmountInPerTrade     *big.Int `json:"max_amount_in_per_trade"`
	MinSecondsBetweenTrades *big.Int `json:"min_seconds_between_trades"`
}

// Attributes are the on-chain fields read from a bot account every tick.
type Attributes struct {
	Paused    bool
	Lifecycle Lifecycle
	Nonce     uint64
	Risk      RiskParams
}

// Reader is everything the service reads from the chain.
type Reader interface {
	GetRosterSize(ctx context.Context) (uint64, error)
	GetAccountOf(ctx context.Context, botID uint64) (common.Address, error)
	GetAttributes(ctx context.Context, account common.Address) (Attributes, error)
	GetTokenOf(ctx context.Context, botID uint64) (common.Address, error)
	GetTokenSymbol(ctx context.Context, token common.Address) (string, error)
	GetLatestBlockHeight(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, account common.Address, kind EventKind, fromBlock, toBlock uint64) ([]Event, error)
}

// IsZero reports whether addr is the zero address, used on-chain for "unset".
func IsZero(addr common.Address) bool {
	return addr == (common.Address{})
}

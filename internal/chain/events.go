package chain

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names one of the bot account events.
type EventKind string

const (
	KindTradeExecuted     EventKind = "TradeExecuted"
	KindLifecycleChanged  EventKind = "LifecycleStateChanged"
	KindPausedUpdated     EventKind = "PausedUpdated"
	KindRiskParamsUpdated EventKind = "RiskParamsUpdated"
	KindDeposited         EventKind = "Deposited"
	KindWithdrawn         EventKind = "Withdrawn"
)

// AllKinds lists every event kind a bot account emits.
var AllKinds = []EventKind{
	KindTradeExecuted,
	KindLifecycleChanged,
	KindPausedUpdated,
	KindRiskParamsUpdated,
	KindDeposited,
	KindWithdrawn,
}

// EventID identifies a log uniquely within a scan.
type EventID struct {
	TxHash   common.Hash
	LogIndex uint
}

// EventMeta holds the identity fields every event carries.
type EventMeta struct {
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	LogIndex    uint        `json:"log_index"`
}

func (m EventMeta) Meta() EventMeta { return m }

func (m EventMeta) ID() EventID {
	return EventID{TxHash: m.TxHash, LogIndex: m.LogIndex}
}

func (EventMeta) isEvent() {}

// Event is a decoded bot account log. The set of implementations is closed:
// TradeExecuted, LifecycleChanged, PausedUpdated, RiskParamsUpdated,
// Deposited and Withdrawn.
type Event interface {
	Kind() EventKind
	Meta() EventMeta
	ID() EventID
	isEvent()
}

type TradeExecuted struct {
	EventMeta
	TokenIn   common.Address `json:"token_in"`
	TokenOut  common.Address `json:"token_out"`
	AmountIn  *big.Int       `json:"amount_in"`
	AmountOut *big.Int       `json:"amount_out"`
	Nonce     *big.Int       `json:"nonce"`
}

type LifecycleChanged struct {
	EventMeta
	Previous Lifecycle `json:"previous"`
	Next     Lifecycle `json:"next"`
}

type PausedUpdated struct {
	EventMeta
	Paused bool `json:"paused"`
}

type RiskParamsUpdated struct {
	EventMeta
	Risk RiskParams `json:"risk"`
}

type Deposited struct {
	EventMeta
	From   common.Address `json:"from"`
	Amount *big.Int       `json:"amount"`
}

type Withdrawn struct {
	EventMeta
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

func (TradeExecuted) Kind() EventKind     { return KindTradeExecuted }
func (LifecycleChanged) Kind() EventKind  { return KindLifecycleChanged }
func (PausedUpdated) Kind() EventKind     { return KindPausedUpdated }
func (RiskParamsUpdated) Kind() EventKind { return KindRiskParamsUpdated }
func (Deposited) Kind() EventKind         { return KindDeposited }
func (Withdrawn) Kind() EventKind         { return KindWithdrawn }

// envelope is the wire form of an event: its kind next to its fields.
type envelope struct {
	Kind EventKind `json:"kind"`
	Data Event     `json:"data"`
}

// MarshalEvent encodes an event with its kind tag.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(envelope{Kind: e.Kind(), Data: e})
}

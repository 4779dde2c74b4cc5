package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
)

type EventKind string

const (
	EventPoolCreated EventKind = "pool_created"
	EventInitialize  EventKind = "initialize"
	EventSwap        EventKind = "swap"
	EventMint        EventKind = "mint"
	EventBurn        EventKind = "burn"
)

// Envelope is one decoded contract log as delivered by the event source, in chain order
type Envelope struct {
	Kind        EventKind       `json:"kind"`
	ChainID     uint32          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   int64           `json:"timestamp"` // block timestamp, unix seconds
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint32          `json:"log_index"`
	Address     string          `json:"address"` // emitting contract (factory or pool)
	Payload     json.RawMessage `json:"payload"`
}

func (e *Envelope) EventID() string {
	return MakeEventID(e.ChainID, e.TxHash, e.LogIndex)
}

func (e *Envelope) Meta() EventMeta {
	return EventMeta{
		ChainID:     e.ChainID,
		BlockNumber: e.BlockNumber,
		Timestamp:   e.Timestamp,
		TxHash:      strings.ToLower(e.TxHash),
		LogIndex:    e.LogIndex,
		Address:     NormalizeAddress(e.Address),
	}
}

// EventMeta is the chain position shared by every event kind
type EventMeta struct {
	ChainID     uint32
	BlockNumber uint64
	Timestamp   int64
	TxHash      string
	LogIndex    uint32
	Address     string
}

type PoolCreatedEvent struct {
	EventMeta   `json:"-"`
	Pool        string `json:"pool"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         int64  `json:"fee"`
	TickSpacing int64  `json:"tick_spacing"`
}

type InitializeEvent struct {
	EventMeta    `json:"-"`
	SqrtPriceX96 BigInt `json:"sqrt_price_x96"`
	Tick         int64  `json:"tick"`
}

type SwapEvent struct {
	EventMeta    `json:"-"`
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Amount0      BigInt `json:"amount0"` // signed, pool perspective
	Amount1      BigInt `json:"amount1"`
	SqrtPriceX96 BigInt `json:"sqrt_price_x96"`
	Liquidity    BigInt `json:"liquidity"`
	Tick         int64  `json:"tick"`
}

// LiquidityEvent carries both Mint and Burn
type LiquidityEvent struct {
	EventMeta `json:"-"`
	Owner     string `json:"owner"`
	Sender    string `json:"sender,omitempty"`
	TickLower int64  `json:"tick_lower"`
	TickUpper int64  `json:"tick_upper"`
	Amount    BigInt `json:"amount"` // liquidity delta
	Amount0   BigInt `json:"amount0"`
	Amount1   BigInt `json:"amount1"`
}

// BigInt decodes integers sent either as JSON numbers or as strings,
// decimal or 0x-prefixed hex; leading zeros stay decimal
type BigInt struct {
	*big.Int
}

func NewBigInt(v *big.Int) BigInt {
	return BigInt{Int: v}
}

// Value never returns nil
func (b BigInt) Value() *big.Int {
	if b.Int == nil {
		return new(big.Int)
	}
	return b.Int
}

func (b BigInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Value().String())
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		b.Int = new(big.Int)
		return nil
	}

	v, ok := math.ParseBig256(s)
	if !ok {
		return fmt.Errorf("invalid integer %q", s)
	}
	b.Int = v
	return nil
}

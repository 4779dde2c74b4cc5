package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Kind names the entity collection in the store
type Kind string

const (
	KindBundle      Kind = "bundle"
	KindFactory     Kind = "factory"
	KindToken       Kind = "token"
	KindPool        Kind = "pool"
	KindPoolDay     Kind = "pool_day"
	KindPoolHour    Kind = "pool_hour"
	KindTokenDay    Kind = "token_day"
	KindTokenHour   Kind = "token_hour"
	KindProtocolDay Kind = "protocol_day"
	KindSwap        Kind = "swap"
	KindMint        Kind = "mint"
	KindBurn        Kind = "burn"
)

// BundleID is the id of the singleton GlobalState record
const BundleID = "1"

// Bundle holds the reference asset (native gas token) price in USD
type Bundle struct {
	ID          string          `json:"id"`
	EthPriceUSD decimal.Decimal `json:"eth_price_usd"`
}

// Factory is the protocol-wide counters record
type Factory struct {
	ID                  string          `json:"id"`
	PoolCount           int64           `json:"pool_count"`
	TxCount             int64           `json:"tx_count"`
	TotalVolumeETH      decimal.Decimal `json:"total_volume_eth"`
	TotalVolumeUSD      decimal.Decimal `json:"total_volume_usd"`
	UntrackedVolumeUSD  decimal.Decimal `json:"untracked_volume_usd"`
	TotalFeesETH        decimal.Decimal `json:"total_fees_eth"`
	TotalFeesUSD        decimal.Decimal `json:"total_fees_usd"`
	TotalValueLockedETH decimal.Decimal `json:"total_value_locked_eth"`
	TotalValueLockedUSD decimal.Decimal `json:"total_value_locked_usd"`
	Owner               string          `json:"owner"`
}

type Token struct {
	ID                  string          `json:"id"` // lowercase 0x address
	Symbol              string          `json:"symbol"`
	Name                string          `json:"name"`
	Decimals            int64           `json:"decimals"`
	TotalSupply         *big.Int        `json:"total_supply"`
	DerivedETH          decimal.Decimal `json:"derived_eth"`
	Volume              decimal.Decimal `json:"volume"`
	VolumeUSD           decimal.Decimal `json:"volume_usd"`
	UntrackedVolumeUSD  decimal.Decimal `json:"untracked_volume_usd"`
	FeesUSD             decimal.Decimal `json:"fees_usd"`
	TotalValueLocked    decimal.Decimal `json:"total_value_locked"`
	TotalValueLockedUSD decimal.Decimal `json:"total_value_locked_usd"`
	TxCount             int64           `json:"tx_count"`
	PoolCount           int64           `json:"pool_count"`
	WhitelistPools      []string        `json:"whitelist_pools"` // pools paired with a whitelisted counterpart, creation order
}

// NewToken returns a token with zeroed counters; metadata is filled by the caller
func NewToken(id string) *Token {
	return &Token{
		ID:             id,
		TotalSupply:    new(big.Int),
		WhitelistPools: []string{},
	}
}

// USDPrice is the token price in USD for the given reference asset price
func (t *Token) USDPrice(ethPriceUSD decimal.Decimal) decimal.Decimal {
	return t.DerivedETH.Mul(ethPriceUSD)
}

type Pool struct {
	ID                     string          `json:"id"` // lowercase 0x address
	Token0                 string          `json:"token0"`
	Token1                 string          `json:"token1"`
	FeeTier                int64           `json:"fee_tier"`
	CreatedAtTimestamp     int64           `json:"created_at_timestamp"`
	CreatedAtBlockNumber   uint64          `json:"created_at_block_number"`
	Liquidity              *big.Int        `json:"liquidity"`
	SqrtPrice              *big.Int        `json:"sqrt_price"`
	Tick                   *int64          `json:"tick"` // nil until Initialize
	Token0Price            decimal.Decimal `json:"token0_price"` // token0 per token1
	Token1Price            decimal.Decimal `json:"token1_price"` // token1 per token0
	TotalValueLockedToken0 decimal.Decimal `json:"total_value_locked_token0"`
	TotalValueLockedToken1 decimal.Decimal `json:"total_value_locked_token1"`
	TotalValueLockedETH    decimal.Decimal `json:"total_value_locked_eth"`
	TotalValueLockedUSD    decimal.Decimal `json:"total_value_locked_usd"`
	VolumeToken0           decimal.Decimal `json:"volume_token0"`
	VolumeToken1           decimal.Decimal `json:"volume_token1"`
	VolumeUSD              decimal.Decimal `json:"volume_usd"`
	UntrackedVolumeUSD     decimal.Decimal `json:"untracked_volume_usd"`
	FeesUSD                decimal.Decimal `json:"fees_usd"`
	TxCount                int64           `json:"tx_count"`
}

func NewPool(id, token0, token1 string, feeTier int64) *Pool {
	return &Pool{
		ID:        id,
		Token0:    token0,
		Token1:    token1,
		FeeTier:   feeTier,
		Liquidity: new(big.Int),
		SqrtPrice: new(big.Int),
	}
}

// Priced reports whether the pool can serve as a price source
func (p *Pool) Priced() bool {
	return p.Liquidity != nil && p.Liquidity.Sign() > 0 && p.SqrtPrice != nil && p.SqrtPrice.Sign() > 0
}

// PoolBucket is a pool-day or pool-hour aggregate
type PoolBucket struct {
	ID           string          `json:"id"` // <pool>-<bucket index>
	Pool         string          `json:"pool"`
	Interval     int64           `json:"interval"` // seconds
	PeriodStart  int64           `json:"period_start"`
	Open         decimal.Decimal `json:"open"`
	High         decimal.Decimal `json:"high"`
	Low          decimal.Decimal `json:"low"`
	Close        decimal.Decimal `json:"close"`
	VolumeToken0 decimal.Decimal `json:"volume_token0"`
	VolumeToken1 decimal.Decimal `json:"volume_token1"`
	VolumeUSD    decimal.Decimal `json:"volume_usd"`
	FeesUSD      decimal.Decimal `json:"fees_usd"`
	TxCount      int64           `json:"tx_count"`
	Liquidity    *big.Int        `json:"liquidity"`
	SqrtPrice    *big.Int        `json:"sqrt_price"`
	Token0Price  decimal.Decimal `json:"token0_price"`
	Token1Price  decimal.Decimal `json:"token1_price"`
	Tick         *int64          `json:"tick"`
	TVLUSD       decimal.Decimal `json:"tvl_usd"`
}

// TokenBucket is a token-day or token-hour aggregate, OHLC in USD
type TokenBucket struct {
	ID                  string          `json:"id"` // <token>-<bucket index>
	Token               string          `json:"token"`
	Interval            int64           `json:"interval"`
	PeriodStart         int64           `json:"period_start"`
	Open                decimal.Decimal `json:"open"`
	High                decimal.Decimal `json:"high"`
	Low                 decimal.Decimal `json:"low"`
	Close               decimal.Decimal `json:"close"`
	Volume              decimal.Decimal `json:"volume"`
	VolumeUSD           decimal.Decimal `json:"volume_usd"`
	UntrackedVolumeUSD  decimal.Decimal `json:"untracked_volume_usd"`
	FeesUSD             decimal.Decimal `json:"fees_usd"`
	TxCount             int64           `json:"tx_count"`
	PriceUSD            decimal.Decimal `json:"price_usd"`
	TotalValueLocked    decimal.Decimal `json:"total_value_locked"`
	TotalValueLockedUSD decimal.Decimal `json:"total_value_locked_usd"`
}

// ProtocolDayData is the global daily rollup, id is the day index
type ProtocolDayData struct {
	ID                 string          `json:"id"`
	Date               int64           `json:"date"`
	VolumeETH          decimal.Decimal `json:"volume_eth"`
	VolumeUSD          decimal.Decimal `json:"volume_usd"`
	VolumeUSDUntracked decimal.Decimal `json:"volume_usd_untracked"`
	FeesUSD            decimal.Decimal `json:"fees_usd"`
	TVLUSD             decimal.Decimal `json:"tvl_usd"`
	TxCount            int64           `json:"tx_count"`
}

type Swap struct {
	ID           string          `json:"id"` // <tx_hash>-<log_index>
	TxHash       string          `json:"tx_hash"`
	LogIndex     uint32          `json:"log_index"`
	BlockNumber  uint64          `json:"block_number"`
	Timestamp    int64           `json:"timestamp"`
	Pool         string          `json:"pool"`
	Token0       string          `json:"token0"`
	Token1       string          `json:"token1"`
	Sender       string          `json:"sender"`
	Recipient    string          `json:"recipient"`
	Amount0      decimal.Decimal `json:"amount0"`
	Amount1      decimal.Decimal `json:"amount1"`
	AmountUSD    decimal.Decimal `json:"amount_usd"`
	SqrtPriceX96 *big.Int        `json:"sqrt_price_x96"`
	Tick         int64           `json:"tick"`
}

// LiquidityChange is a Mint or a Burn record
type LiquidityChange struct {
	ID          string          `json:"id"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint32          `json:"log_index"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   int64           `json:"timestamp"`
	Pool        string          `json:"pool"`
	Token0      string          `json:"token0"`
	Token1      string          `json:"token1"`
	Owner       string          `json:"owner"`
	Sender      string          `json:"sender,omitempty"`
	Amount      *big.Int        `json:"amount"`
	Amount0     decimal.Decimal `json:"amount0"`
	Amount1     decimal.Decimal `json:"amount1"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	TickLower   int64           `json:"tick_lower"`
	TickUpper   int64           `json:"tick_upper"`
}

// TokenMetadata is what is known about an ERC-20 before its first pool
type TokenMetadata struct {
	Symbol      string
	Name        string
	Decimals    int64
	TotalSupply *big.Int
}

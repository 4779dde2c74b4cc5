package tokenmeta

import (
	"context"
	"math/big"
	"strings"

	"dexanalytics/internal/domain"

	"gitlab.com/nevasik7/alerting/logger"
)

const (
	DefaultSymbol   = "UNKNOWN"
	DefaultName     = "Unknown Token"
	DefaultDecimals = int64(18)

	zeroAddress = "0x0000000000000000000000000000000000000000"
)

// Resolver answers token metadata from the static table first, then the chain.
// It never fails: an unavailable field is replaced by its default.
type Resolver struct {
	log     logger.Logger
	fetcher Fetcher // optional, nil -> defaults only
}

func NewResolver(log logger.Logger, fetcher Fetcher) *Resolver {
	return &Resolver{log: log, fetcher: fetcher}
}

func Defaults() domain.TokenMetadata {
	return domain.TokenMetadata{
		Symbol:      DefaultSymbol,
		Name:        DefaultName,
		Decimals:    DefaultDecimals,
		TotalSupply: new(big.Int),
	}
}

func (r *Resolver) Resolve(ctx context.Context, address string) domain.TokenMetadata {
	address = strings.ToLower(strings.TrimSpace(address))
	meta := Defaults()

	if address == zeroAddress {
		return meta
	}

	def, static := LookupStatic(address)
	if static {
		meta.Symbol, meta.Name, meta.Decimals = def.Symbol, def.Name, def.Decimals
	}

	if r.fetcher == nil {
		if !static {
			r.log.Debugf("No metadata source for token %s, using defaults", address)
		}
		return meta
	}

	if !static {
		if symbol, err := r.fetcher.Symbol(ctx, address); err != nil {
			r.log.Warnf("Failed to fetch symbol for token %s, err=%v", address, err)
		} else {
			meta.Symbol = symbol
		}

		if name, err := r.fetcher.Name(ctx, address); err != nil {
			r.log.Warnf("Failed to fetch name for token %s, err=%v", address, err)
		} else {
			meta.Name = name
		}

		// 0 would leave amounts unscaled while prices assume 18
		if decimals, err := r.fetcher.Decimals(ctx, address); err != nil {
			r.log.Warnf("Failed to fetch decimals for token %s, defaulting to %d, err=%v", address, DefaultDecimals, err)
		} else if decimals <= 0 || decimals > 255 {
			r.log.Warnf("Token %s reported decimals=%d, defaulting to %d", address, decimals, DefaultDecimals)
		} else {
			meta.Decimals = decimals
		}
	}

	// total supply is never static
	if supply, err := r.fetcher.TotalSupply(ctx, address); err != nil {
		r.log.Warnf("Failed to fetch total supply for token %s, err=%v", address, err)
	} else if supply != nil {
		meta.TotalSupply = supply
	}

	return meta
}

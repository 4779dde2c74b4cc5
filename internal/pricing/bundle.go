package pricing

import (
	"context"
	"fmt"

	"dexanalytics/internal/domain"
)

// EnsureBundle loads the singleton bundle, creating it with the default price
// when absent and repairing a non-positive price. It is idempotent.
func (p *Pricer) EnsureBundle(ctx context.Context) (*domain.Bundle, error) {
	bundle, err := p.repo.Bundle(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bundle: %w", err)
	}

	switch {
	case bundle == nil:
		bundle = &domain.Bundle{ID: domain.BundleID, EthPriceUSD: p.settings.DefaultEthPriceUSD}
	case !bundle.EthPriceUSD.IsPositive():
		p.log.Warnf("Bundle price %s is invalid, reset to %s", bundle.EthPriceUSD.String(), p.settings.DefaultEthPriceUSD.String())
		bundle.EthPriceUSD = p.settings.DefaultEthPriceUSD
	default:
		return bundle, nil
	}

	if err = p.repo.SaveBundle(ctx, bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// RefreshBundle stores the current reference price; the stored price stays positive
func (p *Pricer) RefreshBundle(ctx context.Context) (*domain.Bundle, error) {
	bundle, err := p.EnsureBundle(ctx)
	if err != nil {
		return nil, err
	}

	price := p.EthPriceUSD(ctx)
	if price.Equal(bundle.EthPriceUSD) {
		return bundle, nil
	}

	bundle.EthPriceUSD = price
	if err = p.repo.SaveBundle(ctx, bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

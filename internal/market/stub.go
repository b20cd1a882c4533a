package market

import (
	"context"
	"fmt"

	"mango_go/internal/domain"
	"mango_go/internal/serum"

	"github.com/gagliardetto/solana-go"
)

// SpotMarketStub references a spot market that has not been loaded.
// Building one performs no I/O.
type SpotMarketStub struct {
	base
	groupAddress solana.PublicKey
}

// NewSpotMarketStub creates a stub from static configuration.
func NewSpotMarketStub(address solana.PublicKey, baseToken, quote domain.Token, groupAddress solana.PublicKey) *SpotMarketStub {
	return &SpotMarketStub{
		base: base{
			address:   address,
			source:    domain.InventorySourceAccount,
			baseToken: baseToken,
			quote:     quote,
		},
		groupAddress: groupAddress,
	}
}

func (s *SpotMarketStub) Kind() Kind { return KindSpotStub }

// GroupAddress returns the address of the group the market belongs to.
func (s *SpotMarketStub) GroupAddress() solana.PublicKey { return s.groupAddress }

func (s *SpotMarketStub) String() string {
	return fmt.Sprintf("SpotMarketStub %s [%s]", s.Symbol(), s.address)
}

// Load resolves the market's on-chain metadata and returns a new
// SpotMarket. The stub is left untouched and can be loaded again.
func (s *SpotMarketStub) Load(ctx context.Context, mc *Context, group *Group) (*SpotMarket, error) {
	underlying, err := serum.LoadMarket(ctx, mc.Fetcher, s.address, mc.DexProgramID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s, err)
	}

	if err := s.checkMints(underlying); err != nil {
		return nil, err
	}
	if underlying.BaseDecimals != s.baseToken.Decimals || underlying.QuoteDecimals != s.quote.Decimals {
		mc.logger().Warn("Configured token decimals differ from mint decimals, using mint decimals",
			"symbol", s.Symbol(),
			"base_config", s.baseToken.Decimals,
			"base_mint", underlying.BaseDecimals,
			"quote_config", s.quote.Decimals,
			"quote_mint", underlying.QuoteDecimals,
		)
	}

	mc.logger().Info("Spot market loaded",
		"symbol", s.Symbol(),
		"address", s.address.String(),
		"bids", underlying.Bids().String(),
		"asks", underlying.Asks().String(),
		"event_queue", underlying.EventQueue().String(),
	)
	return NewSpotMarket(s.address, s.baseToken, s.quote, group, underlying), nil
}

func (s *SpotMarketStub) checkMints(m *serum.Market) error {
	if !s.baseToken.Mint.IsZero() && !s.baseToken.Mint.Equals(m.State.BaseMint) {
		return fmt.Errorf("%w: %s base mint is %s on chain, configured %s",
			domain.ErrMarketMismatch, s.Symbol(), m.State.BaseMint, s.baseToken.Mint)
	}
	if !s.quote.Mint.IsZero() && !s.quote.Mint.Equals(m.State.QuoteMint) {
		return fmt.Errorf("%w: %s quote mint is %s on chain, configured %s",
			domain.ErrMarketMismatch, s.Symbol(), m.State.QuoteMint, s.quote.Mint)
	}
	return nil
}

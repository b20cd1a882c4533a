package serum

import (
	"context"
	"fmt"

	"mango_go/internal/domain"

	"github.com/gagliardetto/solana-go"
)

// LoadMarket resolves a market address into a Market handle. It reads the
// market account, checks it belongs to programID, then reads both mints in
// one batch for their decimals.
func LoadMarket(ctx context.Context, fetcher domain.AccountFetcher, address, programID solana.PublicKey) (*Market, error) {
	info, err := fetcher.Fetch(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("fetch market %s: %w", address, err)
	}
	if err := CheckOwner(LayoutMarket, info, programID); err != nil {
		return nil, err
	}

	state, err := DecodeMarketState(info.Data)
	if err != nil {
		return nil, domain.AtAccount(err, address)
	}

	mints, err := fetcher.FetchMultiple(ctx, []solana.PublicKey{state.BaseMint, state.QuoteMint})
	if err != nil {
		return nil, fmt.Errorf("fetch mints of market %s: %w", address, err)
	}
	base, err := DecodeMint(mints[0].Data)
	if err != nil {
		return nil, domain.AtAccount(err, state.BaseMint)
	}
	quote, err := DecodeMint(mints[1].Data)
	if err != nil {
		return nil, domain.AtAccount(err, state.QuoteMint)
	}

	return &Market{
		Address:       address,
		ProgramID:     programID,
		State:         *state,
		BaseDecimals:  base.Decimals,
		QuoteDecimals: quote.Decimals,
	}, nil
}

// CheckOwner verifies that an account is owned by the DEX program.
func CheckOwner(layout string, info *domain.AccountInfo, programID solana.PublicKey) error {
	if info.Owner.Equals(programID) {
		return nil
	}
	return &domain.MalformedDataError{
		Address:  info.Address,
		Layout:   layout,
		Expected: len(info.Data),
		Actual:   len(info.Data),
		Reason:   fmt.Sprintf("owned by %s, not by program %s", info.Owner, programID),
	}
}

package serum

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"mango_go/internal/domain"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// MarketStateSize is the size of a v2 market account. Permissioned markets
// append authority fields, so larger buffers are accepted.
const MarketStateSize = 388

// MarketState is the static metadata of a spot market account.
// Field order matches the on-chain layout after the head padding.
type MarketState struct {
	AccountFlags           AccountFlags
	OwnAddress             solana.PublicKey
	VaultSignerNonce       uint64
	BaseMint               solana.PublicKey
	QuoteMint              solana.PublicKey
	BaseVault              solana.PublicKey
	BaseDepositsTotal      uint64
	BaseFeesAccrued        uint64
	QuoteVault             solana.PublicKey
	QuoteDepositsTotal     uint64
	QuoteFeesAccrued       uint64
	QuoteDustThreshold     uint64
	RequestQueue           solana.PublicKey
	EventQueue             solana.PublicKey
	Bids                   solana.PublicKey
	Asks                   solana.PublicKey
	BaseLotSize            uint64
	QuoteLotSize           uint64
	FeeRateBps             uint64
	ReferrerRebatesAccrued uint64
}

// DecodeMarketState interprets a market account.
func DecodeMarketState(data []byte) (*MarketState, error) {
	flags, _, err := unwrap(LayoutMarket, data, MarketStateSize)
	if err != nil {
		return nil, err
	}
	if err := checkFlags(LayoutMarket, flags, FlagMarket, len(data)); err != nil {
		return nil, err
	}

	var state MarketState
	if err := binary.Read(bytes.NewReader(data[headPaddingLen:]), binary.LittleEndian, &state); err != nil {
		return nil, &domain.MalformedDataError{
			Layout: LayoutMarket, Expected: MarketStateSize, Actual: len(data), Reason: err.Error(),
		}
	}
	if state.BaseLotSize == 0 || state.QuoteLotSize == 0 {
		return nil, &domain.MalformedDataError{
			Layout: LayoutMarket, Expected: MarketStateSize, Actual: len(data), Reason: "zero lot size",
		}
	}
	return &state, nil
}

// MintSize is the size of an SPL token mint account.
const MintSize = 82

// Mint holds the fields of an SPL mint needed to scale native amounts.
type Mint struct {
	Supply        uint64
	Decimals      int32
	IsInitialized bool
}

// DecodeMint interprets an SPL token mint account.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) < MintSize {
		return nil, &domain.MalformedDataError{
			Layout: LayoutMint, Expected: MintSize, Actual: len(data), Reason: "buffer too short",
		}
	}
	mint := &Mint{
		Supply:        binary.LittleEndian.Uint64(data[36:44]),
		Decimals:      int32(data[44]),
		IsInitialized: data[45] == 1,
	}
	if !mint.IsInitialized {
		return nil, &domain.MalformedDataError{
			Layout: LayoutMint, Expected: MintSize, Actual: len(data), Reason: "mint not initialized",
		}
	}
	return mint, nil
}

// Market is a resolved market handle: the decoded state plus the mint
// decimals needed to turn lots into token amounts.
type Market struct {
	Address       solana.PublicKey
	ProgramID     solana.PublicKey
	State         MarketState
	BaseDecimals  int32
	QuoteDecimals int32
}

func (m *Market) Bids() solana.PublicKey       { return m.State.Bids }
func (m *Market) Asks() solana.PublicKey       { return m.State.Asks }
func (m *Market) EventQueue() solana.PublicKey { return m.State.EventQueue }

// PriceLotsToNumber converts a price in lots to quote tokens per base token.
func (m *Market) PriceLotsToNumber(priceLots uint64) decimal.Decimal {
	num := fromUint64(priceLots).Mul(fromUint64(m.State.QuoteLotSize)).Shift(m.BaseDecimals)
	den := fromUint64(m.State.BaseLotSize).Shift(m.QuoteDecimals)
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

// BaseSizeLotsToNumber converts a quantity in lots to base tokens.
func (m *Market) BaseSizeLotsToNumber(sizeLots uint64) decimal.Decimal {
	return fromUint64(sizeLots).Mul(fromUint64(m.State.BaseLotSize)).Shift(-m.BaseDecimals)
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

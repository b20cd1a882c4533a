package domain

import (
	"github.com/gagliardetto/solana-go"
)

// Token describes an SPL token as configured for a group.
// Tokens are immutable values shared between markets.
type Token struct {
	Symbol   string           `json:"symbol"`
	Name     string           `json:"name"`
	Mint     solana.PublicKey `json:"mint"`
	Decimals int32            `json:"decimals"`
	LogoURI  string           `json:"logo_uri,omitempty"`
}

// NewToken creates a token. LogoURI can be set afterwards.
func NewToken(symbol, name string, mint solana.PublicKey, decimals int32) Token {
	return Token{
		Symbol:   symbol,
		Name:     name,
		Mint:     mint,
		Decimals: decimals,
	}
}

// Equal compares tokens by symbol, mint and decimals.
func (t Token) Equal(other Token) bool {
	return t.Symbol == other.Symbol && t.Mint.Equals(other.Mint) && t.Decimals == other.Decimals
}

func (t Token) String() string {
	return t.Symbol
}

// InventorySource classifies where the tradable balances of a market are held.
type InventorySource string

const (
	// InventorySourceAccount means balances live in the trading account itself.
	InventorySourceAccount InventorySource = "ACCOUNT"
	// InventorySourceSPLTokens means balances are derived from the owner's SPL token accounts.
	InventorySourceSPLTokens InventorySource = "SPL_TOKENS"
)

// String returns the string representation.
func (s InventorySource) String() string {
	return string(s)
}

// IsValid checks if the InventorySource value is valid.
func (s InventorySource) IsValid() bool {
	return s == InventorySourceAccount || s == InventorySourceSPLTokens
}

// MarketSymbol renders the display symbol of a market, e.g. "BTC/USDC".
func MarketSymbol(base, quote Token) string {
	return base.Symbol + "/" + quote.Symbol
}

// Package market exposes Serum spot markets through a market-agnostic
// capability surface.
//
// A market starts as a SpotMarketStub built from static configuration.
// Load resolves it into a SpotMarket, which reads the order book and event
// queue from chain on every call. Nothing is cached between calls.
package market

import (
	"log/slog"

	"mango_go/internal/domain"

	"github.com/gagliardetto/solana-go"
)

// Kind tags the closed set of Market variants.
type Kind string

const (
	KindSpot     Kind = "spot"
	KindSpotStub Kind = "spot-stub"
)

func (k Kind) String() string {
	return string(k)
}

// Market is the capability shared by every market variant. The set of
// implementations is closed; switch on the concrete type or on Kind.
type Market interface {
	Address() solana.PublicKey
	Base() domain.Token
	Quote() domain.Token
	InventorySource() domain.InventorySource
	Symbol() string
	Kind() Kind
	String() string

	sealed()
}

// Context carries what a market needs to reach the chain.
type Context struct {
	Fetcher      domain.AccountFetcher
	DexProgramID solana.PublicKey
	Logger       *slog.Logger
}

// NewContext creates a Context with the default module logger.
func NewContext(fetcher domain.AccountFetcher, dexProgramID solana.PublicKey) *Context {
	return &Context{
		Fetcher:      fetcher,
		DexProgramID: dexProgramID,
		Logger:       slog.Default().With("module", "market"),
	}
}

func (c *Context) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Group is the exchange-wide configuration a market belongs to.
// It is shared between markets and never owned by one.
type Group struct {
	Address solana.PublicKey
	Name    string
	Tokens  []domain.Token
}

// TokenBySymbol looks a token up by symbol.
func (g *Group) TokenBySymbol(symbol string) (domain.Token, bool) {
	for _, t := range g.Tokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return domain.Token{}, false
}

// base holds the fields every variant shares. They never change after
// construction.
type base struct {
	address   solana.PublicKey
	source    domain.InventorySource
	baseToken domain.Token
	quote     domain.Token
}

func (b *base) Address() solana.PublicKey               { return b.address }
func (b *base) Base() domain.Token                      { return b.baseToken }
func (b *base) Quote() domain.Token                     { return b.quote }
func (b *base) InventorySource() domain.InventorySource { return b.source }
func (b *base) Symbol() string                          { return domain.MarketSymbol(b.baseToken, b.quote) }
func (b *base) sealed()                                 {}

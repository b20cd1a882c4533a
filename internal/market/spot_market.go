package market

import (
	"context"
	"fmt"
	"time"

	"mango_go/internal/domain"
	"mango_go/internal/serum"

	"github.com/gagliardetto/solana-go"
)

// SpotMarket is a loaded Serum spot market.
type SpotMarket struct {
	base
	group      *Group
	underlying *serum.Market
}

// NewSpotMarket creates a SpotMarket around an already resolved market handle.
func NewSpotMarket(address solana.PublicKey, baseToken, quote domain.Token, group *Group, underlying *serum.Market) *SpotMarket {
	return &SpotMarket{
		base: base{
			address:   address,
			source:    domain.InventorySourceAccount,
			baseToken: baseToken,
			quote:     quote,
		},
		group:      group,
		underlying: underlying,
	}
}

func (m *SpotMarket) Kind() Kind { return KindSpot }

// Group returns the shared group configuration.
func (m *SpotMarket) Group() *Group { return m.group }

// Underlying returns the resolved on-chain market handle.
func (m *SpotMarket) Underlying() *serum.Market { return m.underlying }

func (m *SpotMarket) String() string {
	return fmt.Sprintf("SpotMarket %s [%s]", m.Symbol(), m.address)
}

// Orders reads both sides of the book and returns bids followed by asks,
// each in the order the decoder produced them. Both accounts are read in
// one batch; if either read or decode fails no orders are returned.
func (m *SpotMarket) Orders(ctx context.Context, mc *Context) ([]domain.Order, error) {
	start := time.Now()
	bidsAddr, asksAddr := m.underlying.Bids(), m.underlying.Asks()

	infos, err := mc.Fetcher.FetchMultiple(ctx, []solana.PublicKey{bidsAddr, asksAddr})
	if err != nil {
		return nil, fmt.Errorf("fetch order book of %s: %w", m.Symbol(), err)
	}

	bids, err := m.decodeSide(infos[0], serum.LayoutBids, domain.SideBuy)
	if err != nil {
		return nil, err
	}
	asks, err := m.decodeSide(infos[1], serum.LayoutAsks, domain.SideSell)
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(bids)+len(asks))
	orders = append(orders, bids...)
	orders = append(orders, asks...)

	mc.logger().Debug("Order book decoded",
		"symbol", m.Symbol(),
		"bids", len(bids),
		"asks", len(asks),
		"slot", infos[0].Slot,
		"elapsed", time.Since(start),
	)
	return orders, nil
}

func (m *SpotMarket) decodeSide(info *domain.AccountInfo, layout string, side domain.Side) ([]domain.Order, error) {
	if err := serum.CheckOwner(layout, info, m.underlying.ProgramID); err != nil {
		return nil, err
	}
	orders, err := serum.DecodeOrderBookSide(info.Data, side)
	if err != nil {
		return nil, domain.AtAccount(err, info.Address)
	}
	for i := range orders {
		orders[i].Price = m.underlying.PriceLotsToNumber(orders[i].PriceLots)
		orders[i].Size = m.underlying.BaseSizeLotsToNumber(orders[i].QuantityLots)
	}
	return orders, nil
}

// EventQueue reads and decodes the market's event queue.
func (m *SpotMarket) EventQueue(ctx context.Context, mc *Context) (*serum.EventQueue, error) {
	addr := m.underlying.EventQueue()
	info, err := mc.Fetcher.Fetch(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("fetch event queue of %s: %w", m.Symbol(), err)
	}
	if err := serum.CheckOwner(serum.LayoutEventQueue, info, m.underlying.ProgramID); err != nil {
		return nil, err
	}
	q, err := serum.DecodeEventQueue(info.Data)
	if err != nil {
		return nil, domain.AtAccount(err, addr)
	}
	return q, nil
}

// UnprocessedEvents returns every event currently live in the queue,
// oldest first. Reading does not consume: repeated calls return the same
// events until the queue is cranked on chain. Callers that must act on an
// event once track sequence numbers themselves.
func (m *SpotMarket) UnprocessedEvents(ctx context.Context, mc *Context) ([]domain.Event, error) {
	q, err := m.EventQueue(ctx, mc)
	if err != nil {
		return nil, err
	}
	return q.Events, nil
}

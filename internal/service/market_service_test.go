package service

import (
	"context"
	"errors"
	"testing"

	"mango_go/internal/domain"
	"mango_go/internal/infra"
	"mango_go/internal/market"
	"mango_go/internal/serum/serumtest"

	"github.com/gagliardetto/solana-go"
)

var programID = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

type testMarket struct {
	address, bids, asks, queue solana.PublicKey
	base, quote                domain.Token
}

// seed writes a loadable market with one bid and an empty ask side.
func seed(f *serumtest.Fetcher, m testMarket) {
	state := serumtest.MarketState(m.base.Mint, m.quote.Mint, m.bids, m.asks, m.queue, 100_000_000, 100)
	f.Put(m.address, programID, serumtest.MarketAccount(state))
	f.Put(m.base.Mint, solana.TokenProgramID, serumtest.MintAccount(uint8(m.base.Decimals)))
	f.Put(m.quote.Mint, solana.TokenProgramID, serumtest.MintAccount(uint8(m.quote.Decimals)))
	f.Put(m.bids, programID, serumtest.NewSlab(domain.SideBuy, 2).
		SetLeaf(0, serumtest.Leaf{Key: domain.OrderID{Hi: 1000, Lo: 1}, Quantity: 1, ClientID: 1}).
		Bytes())
	f.Put(m.asks, programID, serumtest.NewSlab(domain.SideSell, 2).Bytes())
	f.Put(m.queue, programID, serumtest.NewEventQueue(4).
		Push(0, 1, domain.Event{Flags: domain.EventFlagOut, ClientOrderID: 1}).
		Bytes())
}

func newTestService(t *testing.T) (*MarketService, *serumtest.Fetcher, *infra.Metrics) {
	t.Helper()
	usdc := domain.NewToken("USDC", "USD Coin", solana.PublicKey{100}, 6)
	sol := domain.NewToken("SOL", "Solana", solana.PublicKey{101}, 9)
	btc := domain.NewToken("BTC", "Bitcoin", solana.PublicKey{102}, 6)

	markets := []testMarket{
		{solana.PublicKey{1}, solana.PublicKey{2}, solana.PublicKey{3}, solana.PublicKey{4}, sol, usdc},
		{solana.PublicKey{11}, solana.PublicKey{12}, solana.PublicKey{13}, solana.PublicKey{14}, btc, usdc},
	}

	f := serumtest.NewFetcher()
	group := &market.Group{Address: solana.PublicKey{50}, Name: "test", Tokens: []domain.Token{usdc, sol, btc}}
	stubs := make([]*market.SpotMarketStub, 0, len(markets))
	for _, m := range markets {
		seed(f, m)
		stubs = append(stubs, market.NewSpotMarketStub(m.address, m.base, m.quote, group.Address))
	}

	metrics := &infra.Metrics{}
	return NewMarketService(market.NewContext(f, programID), group, stubs, metrics), f, metrics
}

func TestMarketService_GetAllMarkets(t *testing.T) {
	svc, f, _ := newTestService(t)

	all := svc.GetAllMarkets()
	if len(all) != 2 {
		t.Fatalf("Expected 2 markets, got %d", len(all))
	}
	if all[0].Symbol() != "BTC/USDC" || all[1].Symbol() != "SOL/USDC" {
		t.Errorf("markets not sorted: %s, %s", all[0], all[1])
	}
	for _, m := range all {
		if m.Kind() != market.KindSpotStub {
			t.Errorf("%s should still be a stub", m)
		}
	}
	if f.Calls() != 0 {
		t.Errorf("listing markets performed %d reads", f.Calls())
	}

	if _, err := svc.Market(context.Background(), "SOL/USDC"); err != nil {
		t.Fatalf("Market failed: %v", err)
	}
	all = svc.GetAllMarkets()
	if all[1].Kind() != market.KindSpot || all[0].Kind() != market.KindSpotStub {
		t.Errorf("kinds after load = %s, %s", all[0].Kind(), all[1].Kind())
	}
}

func TestMarketService_LazyLoadIsCached(t *testing.T) {
	svc, f, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Market(ctx, "SOL/USDC")
	if err != nil {
		t.Fatalf("Market failed: %v", err)
	}
	calls := f.Calls()

	second, err := svc.Market(ctx, "SOL/USDC")
	if err != nil {
		t.Fatalf("Market failed: %v", err)
	}
	if first != second {
		t.Error("expected cached market")
	}
	if f.Calls() != calls {
		t.Errorf("cached lookup performed %d extra reads", f.Calls()-calls)
	}
}

func TestMarketService_UnknownMarket(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.Market(context.Background(), "DOGE/USDC"); !errors.Is(err, domain.ErrUnknownMarket) {
		t.Errorf("Market: expected ErrUnknownMarket, got %v", err)
	}
	if _, err := svc.Stub("DOGE/USDC"); !errors.Is(err, domain.ErrUnknownMarket) {
		t.Errorf("Stub: expected ErrUnknownMarket, got %v", err)
	}
	if _, err := svc.Orders(context.Background(), "DOGE/USDC"); !errors.Is(err, domain.ErrUnknownMarket) {
		t.Errorf("Orders: expected ErrUnknownMarket, got %v", err)
	}
}

func TestMarketService_OrdersAndEvents(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	orders, err := svc.Orders(ctx, "SOL/USDC")
	if err != nil {
		t.Fatalf("Orders failed: %v", err)
	}
	if len(orders) != 1 || orders[0].Side != domain.SideBuy {
		t.Errorf("unexpected orders: %+v", orders)
	}

	events, err := svc.UnprocessedEvents(ctx, "BTC/USDC")
	if err != nil {
		t.Fatalf("UnprocessedEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Kind != domain.EventKindOut {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestMarketService_LoadAll(t *testing.T) {
	svc, f, metrics := newTestService(t)
	f.Put(solana.PublicKey{11}, programID, []byte("garbage"))

	loaded, err := svc.LoadAll(context.Background())
	if !errors.Is(err, domain.ErrMalformedAccountData) {
		t.Fatalf("expected ErrMalformedAccountData, got %v", err)
	}
	if len(loaded) != 1 || loaded[0].Symbol() != "SOL/USDC" {
		t.Errorf("expected only SOL/USDC loaded, got %v", loaded)
	}
	if metrics.Snapshot().DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1", metrics.Snapshot().DecodeErrors)
	}
}

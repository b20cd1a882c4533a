package serum_test

import (
	"errors"
	"testing"

	"mango_go/internal/domain"
	"mango_go/internal/serum"
	"mango_go/internal/serum/serumtest"

	"github.com/gagliardetto/solana-go"
)

func leaf(priceLots, seq, qty, client uint64, owner byte) serumtest.Leaf {
	return serumtest.Leaf{
		Key:      domain.OrderID{Hi: priceLots, Lo: seq},
		Owner:    solana.PublicKey{owner},
		Quantity: qty,
		ClientID: client,
	}
}

func TestDecodeOrderBookSide_LiveLeavesOnly(t *testing.T) {
	slab := serumtest.NewSlab(domain.SideBuy, 8).
		SetInner(0, 10, domain.OrderID{Hi: 100}, 1, 2).
		SetLeaf(1, leaf(105, ^uint64(7), 3, 1001, 1)).
		SetLeaf(2, leaf(99, ^uint64(8), 5, 1002, 2)).
		SetLeaf(3, leaf(120, ^uint64(1), 9, 9999, 3)).SetFree(3, 5, false).
		SetLeaf(4, leaf(101, ^uint64(9), 1, 1003, 4)).
		SetFree(5, 0, true).
		SetRoot(0)

	orders, err := serum.DecodeOrderBookSide(slab.Bytes(), domain.SideBuy)
	if err != nil {
		t.Fatalf("DecodeOrderBookSide failed: %v", err)
	}

	// Memory order, not price order; the freed slot at index 3 is skipped.
	wantClients := []uint64{1001, 1002, 1003}
	if len(orders) != len(wantClients) {
		t.Fatalf("expected %d orders, got %d", len(wantClients), len(orders))
	}
	for i, want := range wantClients {
		if orders[i].ClientID != want {
			t.Errorf("orders[%d].ClientID = %d, want %d", i, orders[i].ClientID, want)
		}
		if orders[i].Side != domain.SideBuy {
			t.Errorf("orders[%d].Side = %s, want BUY", i, orders[i].Side)
		}
		if orders[i].ClientID == 9999 {
			t.Error("freed slot must never appear")
		}
	}

	first := orders[0]
	if first.PriceLots != 105 || first.QuantityLots != 3 {
		t.Errorf("first order lots = %d@%d, want 3@105", first.QuantityLots, first.PriceLots)
	}
	if first.ID.SeqNum(domain.SideBuy) != 7 {
		t.Errorf("first order seq = %d, want 7", first.ID.SeqNum(domain.SideBuy))
	}
	if !first.Owner.Equals(solana.PublicKey{1}) {
		t.Errorf("first order owner = %s", first.Owner)
	}
}

func TestDecodeOrderBookSide_IgnoresUnallocatedNodes(t *testing.T) {
	// A leaf-looking node beyond the bump index was never allocated.
	slab := serumtest.NewSlab(domain.SideSell, 4).
		SetLeaf(0, leaf(200, 1, 2, 1, 1)).
		SetLeaf(3, leaf(300, 2, 2, 2, 2)).
		SetBumpIndex(1).
		SetLeafCount(1)

	orders, err := serum.DecodeOrderBookSide(slab.Bytes(), domain.SideSell)
	if err != nil {
		t.Fatalf("DecodeOrderBookSide failed: %v", err)
	}
	if len(orders) != 1 || orders[0].ClientID != 1 {
		t.Fatalf("expected only the allocated leaf, got %+v", orders)
	}
}

func TestDecodeOrderBookSide_Empty(t *testing.T) {
	orders, err := serum.DecodeOrderBookSide(serumtest.NewSlab(domain.SideSell, 4).Bytes(), domain.SideSell)
	if err != nil {
		t.Fatalf("DecodeOrderBookSide failed: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("expected empty book, got %d orders", len(orders))
	}
}

func TestDecodeOrderBookSide_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		side   domain.Side
		data   func() []byte
		layout string
	}{
		{"asks account read as bids", domain.SideBuy, func() []byte {
			return serumtest.NewSlab(domain.SideSell, 2).SetLeaf(0, leaf(1, 1, 1, 1, 1)).Bytes()
		}, serum.LayoutBids},
		{"leaf count mismatch", domain.SideSell, func() []byte {
			return serumtest.NewSlab(domain.SideSell, 2).SetLeaf(0, leaf(1, 1, 1, 1, 1)).SetLeafCount(2).Bytes()
		}, serum.LayoutAsks},
		{"bump index beyond capacity", domain.SideSell, func() []byte {
			return serumtest.NewSlab(domain.SideSell, 2).SetBumpIndex(3).SetLeafCount(0).Bytes()
		}, serum.LayoutAsks},
		{"truncated", domain.SideBuy, func() []byte {
			return serumtest.NewSlab(domain.SideBuy, 2).Bytes()[:20]
		}, serum.LayoutBids},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := serum.DecodeOrderBookSide(tt.data(), tt.side)
			var me *domain.MalformedDataError
			if !errors.As(err, &me) {
				t.Fatalf("expected MalformedDataError, got %v", err)
			}
			if me.Layout != tt.layout {
				t.Errorf("Layout = %q, want %q", me.Layout, tt.layout)
			}
		})
	}
}

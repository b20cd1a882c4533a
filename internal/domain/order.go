package domain

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Side of the book an order rests on.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) String() string {
	return string(s)
}

// OrderID is the 128-bit key of a resting order.
// The high 64 bits hold the limit price in lots, the low 64 bits the
// order sequence number (bitwise negated for bids).
type OrderID struct {
	Hi uint64
	Lo uint64
}

// PriceLots returns the price component of the key.
func (id OrderID) PriceLots() uint64 {
	return id.Hi
}

// SeqNum returns the order sequence number for the given side.
func (id OrderID) SeqNum(side Side) uint64 {
	if side == SideBuy {
		return ^id.Lo
	}
	return id.Lo
}

// Big returns the key as an unsigned big integer.
func (id OrderID) Big() *big.Int {
	v := new(big.Int).SetUint64(id.Hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(id.Lo))
}

// IsZero reports whether the key is unset.
func (id OrderID) IsZero() bool {
	return id.Hi == 0 && id.Lo == 0
}

func (id OrderID) String() string {
	return fmt.Sprintf("%016x%016x", id.Hi, id.Lo)
}

// Order is a resting order decoded from one side of the book.
// Orders are rebuilt from chain state on every read and carry no identity
// beyond their fields.
type Order struct {
	ID           OrderID
	ClientID     uint64
	Side         Side
	Price        decimal.Decimal // Quote per base unit
	Size         decimal.Decimal // Base units
	PriceLots    uint64
	QuantityLots uint64
	Owner        solana.PublicKey // Open orders account
	OwnerSlot    uint8
	FeeTier      uint8
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s @ %s [id=%s client=%d owner=%s]",
		o.Side, o.Size.String(), o.Price.String(), o.ID, o.ClientID, o.Owner)
}

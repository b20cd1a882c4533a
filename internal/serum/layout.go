// Package serum decodes the binary account layouts of the Serum DEX v3
// program: market state, order book slabs and the event queue ring buffer.
//
// Every decoder is a pure function over a byte slice. Offsets, sizes and
// endianness follow the program's published account schema; all integers
// are little endian. Failures are reported as *domain.MalformedDataError.
package serum

import (
	"bytes"
	"encoding/binary"

	"mango_go/internal/domain"

	"github.com/gagliardetto/solana-go"
)

// Layout names used in error reports.
const (
	LayoutMarket     = "market"
	LayoutBids       = "bids"
	LayoutAsks       = "asks"
	LayoutEventQueue = "event-queue"
	LayoutMint       = "spl-mint"
)

var (
	headPadding = []byte("serum")
	tailPadding = []byte("padding")
)

const (
	headPaddingLen = 5
	tailPaddingLen = 7
	flagsLen       = 8

	// accountHeaderLen is the head padding plus account flags.
	accountHeaderLen = headPaddingLen + flagsLen
)

// AccountFlags is the bit set at the start of every Serum account.
type AccountFlags uint64

const (
	FlagInitialized    AccountFlags = 1 << 0
	FlagMarket         AccountFlags = 1 << 1
	FlagOpenOrders     AccountFlags = 1 << 2
	FlagRequestQueue   AccountFlags = 1 << 3
	FlagEventQueue     AccountFlags = 1 << 4
	FlagBids           AccountFlags = 1 << 5
	FlagAsks           AccountFlags = 1 << 6
	FlagDisabled       AccountFlags = 1 << 7
	FlagClosed         AccountFlags = 1 << 8
	FlagPermissioned   AccountFlags = 1 << 9
	FlagCrankAuthority AccountFlags = 1 << 10
)

// Has reports whether all bits of want are set.
func (f AccountFlags) Has(want AccountFlags) bool {
	return f&want == want
}

// unwrap strips the "serum"/"padding" envelope and returns the account
// flags plus the body between flags and tail padding.
func unwrap(layout string, data []byte, minLen int) (AccountFlags, []byte, error) {
	if len(data) < minLen {
		return 0, nil, &domain.MalformedDataError{
			Layout: layout, Expected: minLen, Actual: len(data), Reason: "buffer too short",
		}
	}
	if !bytes.Equal(data[:headPaddingLen], headPadding) {
		return 0, nil, &domain.MalformedDataError{
			Layout: layout, Expected: minLen, Actual: len(data), Reason: "missing head padding",
		}
	}
	if !bytes.Equal(data[len(data)-tailPaddingLen:], tailPadding) {
		return 0, nil, &domain.MalformedDataError{
			Layout: layout, Expected: minLen, Actual: len(data), Reason: "missing tail padding",
		}
	}
	flags := AccountFlags(binary.LittleEndian.Uint64(data[headPaddingLen:accountHeaderLen]))
	return flags, data[accountHeaderLen : len(data)-tailPaddingLen], nil
}

// checkFlags verifies the account is initialized and carries the kind bit.
func checkFlags(layout string, flags, kind AccountFlags, size int) error {
	if !flags.Has(FlagInitialized | kind) {
		return &domain.MalformedDataError{
			Layout: layout, Expected: size, Actual: size, Reason: "account flags do not describe " + layout,
		}
	}
	return nil
}

func readPublicKey(b []byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(b[:solana.PublicKeyLength])
}

func readOrderID(b []byte) domain.OrderID {
	return domain.OrderID{
		Lo: binary.LittleEndian.Uint64(b[0:8]),
		Hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}

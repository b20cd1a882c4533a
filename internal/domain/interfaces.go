package domain

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// AccountInfo is the raw content of one on-chain account.
type AccountInfo struct {
	Address  solana.PublicKey
	Owner    solana.PublicKey
	Data     []byte
	Lamports uint64
	Slot     uint64 // Context slot the data was read at
}

// AccountFetcher reads raw account bytes from the ledger.
// Missing accounts fail with ErrAccountNotFound, transport problems with
// ErrTransportFailure. FetchMultiple is all-or-nothing and preserves the
// order of addrs.
type AccountFetcher interface {
	Fetch(ctx context.Context, addr solana.PublicKey) (*AccountInfo, error)
	FetchMultiple(ctx context.Context, addrs []solana.PublicKey) ([]*AccountInfo, error)
}

// AccountWatcher streams account updates to a callback.
type AccountWatcher interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

package serumtest

import (
	"context"
	"sync"

	"mango_go/internal/domain"

	"github.com/gagliardetto/solana-go"
)

// Fetcher is an in-memory domain.AccountFetcher.
type Fetcher struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]*domain.AccountInfo
	failures map[solana.PublicKey]error
	calls    int
}

// NewFetcher creates an empty fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{
		accounts: make(map[solana.PublicKey]*domain.AccountInfo),
		failures: make(map[solana.PublicKey]error),
	}
}

// Put stores account data owned by owner.
func (f *Fetcher) Put(addr, owner solana.PublicKey, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[addr] = &domain.AccountInfo{Address: addr, Owner: owner, Data: data, Lamports: 1}
}

// Fail makes every fetch touching addr return err.
func (f *Fetcher) Fail(addr solana.PublicKey, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[addr] = err
}

// Clear removes a failure injected with Fail.
func (f *Fetcher) Clear(addr solana.PublicKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, addr)
}

// Calls returns the number of Fetch and FetchMultiple invocations.
func (f *Fetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fetcher) Fetch(ctx context.Context, addr solana.PublicKey) (*domain.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.lookup(ctx, addr)
}

func (f *Fetcher) FetchMultiple(ctx context.Context, addrs []solana.PublicKey) ([]*domain.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([]*domain.AccountInfo, 0, len(addrs))
	for _, addr := range addrs {
		info, err := f.lookup(ctx, addr)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

func (f *Fetcher) lookup(ctx context.Context, addr solana.PublicKey) (*domain.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.failures[addr]; ok {
		return nil, err
	}
	info, ok := f.accounts[addr]
	if !ok {
		return nil, &domain.AccountNotFoundError{Address: addr}
	}
	cp := *info
	cp.Data = append([]byte(nil), info.Data...)
	return &cp, nil
}

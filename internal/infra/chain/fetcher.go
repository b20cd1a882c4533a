// Package chain talks to a Solana RPC node: account reads over JSON-RPC
// and account change notifications over websocket.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mango_go/internal/domain"
	"mango_go/internal/infra"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// maxMultipleAccounts is the getMultipleAccounts limit of public RPC nodes.
const maxMultipleAccounts = 100

// FetcherConfig configures an RPCFetcher.
type FetcherConfig struct {
	Endpoint   string
	Commitment string
	Timeout    time.Duration
	MaxRetries int
	Backoff    infra.Backoff
}

// RPCFetcher implements domain.AccountFetcher on top of the JSON-RPC API.
// Retriable transport errors are retried with exponential backoff.
type RPCFetcher struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
	timeout    time.Duration
	maxRetries int
	backoff    infra.Backoff
	metrics    *infra.Metrics
	logger     *slog.Logger
}

// NewRPCFetcher creates a fetcher for the given endpoint.
func NewRPCFetcher(cfg FetcherConfig, metrics *infra.Metrics) *RPCFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff = infra.Backoff{Base: 200 * time.Millisecond, Max: 5 * time.Second}
	}
	if cfg.Commitment == "" {
		cfg.Commitment = string(rpc.CommitmentConfirmed)
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &RPCFetcher{
		client:     rpc.New(cfg.Endpoint),
		commitment: rpc.CommitmentType(cfg.Commitment),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		metrics:    metrics,
		logger:     slog.Default().With("module", "rpc"),
	}
}

// Fetch reads one account.
func (f *RPCFetcher) Fetch(ctx context.Context, addr solana.PublicKey) (*domain.AccountInfo, error) {
	var info *domain.AccountInfo
	err := f.withRetry(ctx, "getAccountInfo", 1, func(ctx context.Context) error {
		res, err := f.client.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: f.commitment,
		})
		if err != nil {
			if errors.Is(err, rpc.ErrNotFound) {
				return &domain.AccountNotFoundError{Address: addr}
			}
			return err
		}
		info = toAccountInfo(addr, res.Value, res.Context.Slot)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// FetchMultiple reads accounts in batches and returns them in the order of
// addrs. Any missing account fails the whole call.
func (f *RPCFetcher) FetchMultiple(ctx context.Context, addrs []solana.PublicKey) ([]*domain.AccountInfo, error) {
	out := make([]*domain.AccountInfo, 0, len(addrs))
	for start := 0; start < len(addrs); start += maxMultipleAccounts {
		end := min(start+maxMultipleAccounts, len(addrs))
		batch := addrs[start:end]

		err := f.withRetry(ctx, "getMultipleAccounts", len(batch), func(ctx context.Context) error {
			res, err := f.client.GetMultipleAccountsWithOpts(ctx, batch, &rpc.GetMultipleAccountsOpts{
				Encoding:   solana.EncodingBase64,
				Commitment: f.commitment,
			})
			if err != nil {
				return err
			}
			if len(res.Value) != len(batch) {
				return domain.NewFatalNetworkError("getMultipleAccounts",
					fmt.Errorf("asked for %d accounts, got %d", len(batch), len(res.Value)))
			}
			for i, acc := range res.Value {
				if acc == nil {
					return &domain.AccountNotFoundError{Address: batch[i]}
				}
			}
			for i, acc := range res.Value {
				out = append(out, toAccountInfo(batch[i], acc, res.Context.Slot))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// withRetry runs call until it succeeds, fails permanently or runs out of
// retries. Each attempt gets its own timeout.
func (f *RPCFetcher) withRetry(ctx context.Context, op string, n int, call func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
		err := call(attemptCtx)
		cancel()

		if err == nil {
			f.metrics.RecordFetch(n, time.Since(start))
			return nil
		}

		err = f.classify(ctx, op, err)
		if errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}
		f.metrics.RecordFetchError()

		if !domain.IsRetriable(err) || attempt >= f.maxRetries {
			return err
		}

		delay := f.backoff.Delay(attempt)
		f.logger.Warn("RPC call failed, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return domain.NewFatalNetworkError(op, ctx.Err())
		case <-time.After(delay):
		}
	}
}

// classify maps client errors onto the domain error kinds. JSON-RPC error
// replies and caller cancellation are final; everything else is retriable.
func (f *RPCFetcher) classify(ctx context.Context, op string, err error) error {
	var rpcErr *jsonrpc.RPCError
	var notFound *domain.AccountNotFoundError
	var netErr *domain.NetworkError
	switch {
	case errors.As(err, &notFound), errors.As(err, &netErr):
		return err
	case ctx.Err() != nil:
		return domain.NewFatalNetworkError(op, ctx.Err())
	case errors.As(err, &rpcErr):
		return domain.NewFatalNetworkError(op, err)
	default:
		return domain.NewNetworkError(op, err)
	}
}

func toAccountInfo(addr solana.PublicKey, acc *rpc.Account, slot uint64) *domain.AccountInfo {
	info := &domain.AccountInfo{
		Address:  addr,
		Owner:    acc.Owner,
		Lamports: acc.Lamports,
		Slot:     slot,
	}
	if acc.Data != nil {
		info.Data = acc.Data.GetBinary()
	}
	return info
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"mango_go/internal/domain"
	"mango_go/internal/infra"
	"mango_go/internal/market"
)

// MarketService keeps the configured markets by symbol and loads them on
// first use.
type MarketService struct {
	mu      sync.RWMutex
	mc      *market.Context
	group   *market.Group
	stubs   map[string]*market.SpotMarketStub
	loaded  map[string]*market.SpotMarket
	metrics *infra.Metrics
	logger  *slog.Logger
}

// NewMarketService creates a service over stubs. Later stubs with the same
// symbol replace earlier ones.
func NewMarketService(mc *market.Context, group *market.Group, stubs []*market.SpotMarketStub, metrics *infra.Metrics) *MarketService {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	s := &MarketService{
		mc:      mc,
		group:   group,
		stubs:   make(map[string]*market.SpotMarketStub, len(stubs)),
		loaded:  make(map[string]*market.SpotMarket, len(stubs)),
		metrics: metrics,
		logger:  slog.Default().With("module", "service"),
	}
	for _, stub := range stubs {
		s.stubs[stub.Symbol()] = stub
	}
	return s
}

// Context returns the fetch environment shared by every market.
func (s *MarketService) Context() *market.Context {
	return s.mc
}

// Group returns the group every market belongs to.
func (s *MarketService) Group() *market.Group {
	return s.group
}

// Symbols returns all configured market symbols in order.
func (s *MarketService) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.stubs))
	for symbol := range s.stubs {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// GetAllMarkets returns every market sorted by symbol, loaded ones as
// SpotMarket and the rest as SpotMarketStub.
func (s *MarketService) GetAllMarkets() []market.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]market.Market, 0, len(s.stubs))
	for symbol, stub := range s.stubs {
		if m, ok := s.loaded[symbol]; ok {
			result = append(result, m)
			continue
		}
		result = append(result, stub)
	}

	// Sort by symbol for consistent ordering
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol() < result[j].Symbol()
	})

	return result
}

// Stub returns the configured reference for symbol.
func (s *MarketService) Stub(symbol string) (*market.SpotMarketStub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stub, ok := s.stubs[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownMarket, symbol)
	}
	return stub, nil
}

// Market returns the loaded market for symbol, loading it on first use.
// Failed loads are not cached.
func (s *MarketService) Market(ctx context.Context, symbol string) (*market.SpotMarket, error) {
	s.mu.RLock()
	m, ok := s.loaded[symbol]
	stub := s.stubs[symbol]
	s.mu.RUnlock()

	if ok {
		return m, nil
	}
	if stub == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownMarket, symbol)
	}

	m, err := stub.Load(ctx, s.mc, s.group)
	if err != nil {
		s.record(err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.loaded[symbol]; ok {
		return existing, nil
	}
	s.loaded[symbol] = m
	return m, nil
}

// LoadAll loads every configured market. Markets that fail stay unloaded;
// the errors are joined.
func (s *MarketService) LoadAll(ctx context.Context) ([]*market.SpotMarket, error) {
	var (
		markets []*market.SpotMarket
		errs    []error
	)
	for _, symbol := range s.Symbols() {
		m, err := s.Market(ctx, symbol)
		if err != nil {
			s.logger.Warn("Market load failed", slog.String("symbol", symbol), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		markets = append(markets, m)
	}
	return markets, errors.Join(errs...)
}

// Orders returns the current bids then asks of a market.
func (s *MarketService) Orders(ctx context.Context, symbol string) ([]domain.Order, error) {
	m, err := s.Market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	orders, err := m.Orders(ctx, s.mc)
	if err != nil {
		s.record(err)
		return nil, err
	}
	return orders, nil
}

// UnprocessedEvents returns the live events of a market's queue.
func (s *MarketService) UnprocessedEvents(ctx context.Context, symbol string) ([]domain.Event, error) {
	m, err := s.Market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	events, err := m.UnprocessedEvents(ctx, s.mc)
	if err != nil {
		s.record(err)
		return nil, err
	}
	return events, nil
}

func (s *MarketService) record(err error) {
	if errors.Is(err, domain.ErrMalformedAccountData) {
		s.metrics.RecordDecodeError()
	}
}

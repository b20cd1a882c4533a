package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mango_go/internal/domain"
	"mango_go/internal/engine"
	"mango_go/internal/infra"
	"mango_go/internal/infra/chain"
	"mango_go/internal/infra/storage"
	"mango_go/internal/market"
	"mango_go/internal/service"

	"github.com/gagliardetto/solana-go"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Downloader *infra.IconDownloader
	Fetcher    domain.AccountFetcher
	Markets    *service.MarketService
	Metrics    *infra.Metrics
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{Metrics: infra.GlobalMetrics}
}

// Initialize performs core system initialization (DB, Dir, etc.)
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping Mango Go...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Initialize Icon Downloader
	downloader, err := infra.NewIconDownloader(cfg.Storage.IconDir)
	if err != nil {
		return err
	}
	b.Downloader = downloader
	slog.Info("✅ Icon downloader ready")

	// 5. RPC fetcher and market registry
	b.Fetcher = chain.NewRPCFetcher(chain.FetcherConfig{
		Endpoint:   cfg.Solana.RPCURL,
		Commitment: cfg.Solana.Commitment,
		Timeout:    cfg.RequestTimeout(),
		MaxRetries: cfg.Solana.MaxRetries,
	}, b.Metrics)

	svc, err := NewMarketService(cfg, b.Fetcher, b.Metrics)
	if err != nil {
		return err
	}
	b.Markets = svc
	slog.Info("✅ Market registry ready",
		slog.String("group", cfg.Group.Name),
		slog.Int("markets", len(cfg.SpotMarkets)),
	)

	return nil
}

// BuildGroup turns the configured group and tokens into a market.Group.
func BuildGroup(cfg *infra.Config) (*market.Group, error) {
	group := &market.Group{Name: cfg.Group.Name}
	if cfg.Group.Address != "" {
		addr, err := solana.PublicKeyFromBase58(cfg.Group.Address)
		if err != nil {
			return nil, &domain.ConfigError{Field: "group.address", Err: err}
		}
		group.Address = addr
	}

	for _, t := range cfg.Tokens {
		var mint solana.PublicKey
		if t.Mint != "" {
			var err error
			mint, err = solana.PublicKeyFromBase58(t.Mint)
			if err != nil {
				return nil, &domain.ConfigError{Field: "tokens." + t.Symbol, Err: err}
			}
		}
		token := domain.NewToken(t.Symbol, t.Name, mint, t.Decimals)
		token.LogoURI = t.LogoURI
		group.Tokens = append(group.Tokens, token)
	}
	return group, nil
}

// BuildStubs creates one SpotMarketStub per configured spot market.
func BuildStubs(cfg *infra.Config, group *market.Group) ([]*market.SpotMarketStub, error) {
	stubs := make([]*market.SpotMarketStub, 0, len(cfg.SpotMarkets))
	for _, m := range cfg.SpotMarkets {
		base, ok := group.TokenBySymbol(m.Base)
		if !ok {
			return nil, &domain.ConfigError{Field: "spot_markets", Err: fmt.Errorf("unknown base token %s", m.Base)}
		}
		quote, ok := group.TokenBySymbol(m.Quote)
		if !ok {
			return nil, &domain.ConfigError{Field: "spot_markets", Err: fmt.Errorf("unknown quote token %s", m.Quote)}
		}
		addr, err := solana.PublicKeyFromBase58(m.Address)
		if err != nil {
			return nil, &domain.ConfigError{Field: "spot_markets." + m.Base + "/" + m.Quote, Err: err}
		}
		stubs = append(stubs, market.NewSpotMarketStub(addr, base, quote, group.Address))
	}
	return stubs, nil
}

// NewMarketService wires the configured markets to fetcher.
func NewMarketService(cfg *infra.Config, fetcher domain.AccountFetcher, metrics *infra.Metrics) (*service.MarketService, error) {
	group, err := BuildGroup(cfg)
	if err != nil {
		return nil, err
	}
	stubs, err := BuildStubs(cfg, group)
	if err != nil {
		return nil, err
	}
	programID, err := solana.PublicKeyFromBase58(cfg.Solana.DexProgramID)
	if err != nil {
		return nil, &domain.ConfigError{Field: "solana.dex_program_id", Err: err}
	}
	return service.NewMarketService(market.NewContext(fetcher, programID), group, stubs, metrics), nil
}

// EventSources loads every market and returns its event queue as a
// processor source. Markets that fail to load are skipped.
func (b *Bootstrap) EventSources(ctx context.Context) ([]engine.EventSource, []solana.PublicKey, error) {
	markets, err := b.Markets.LoadAll(ctx)
	if len(markets) == 0 {
		return nil, nil, err
	}
	if err != nil {
		slog.Warn("Some markets failed to load", slog.Any("error", err))
	}

	sources := make([]engine.EventSource, 0, len(markets))
	queues := make([]solana.PublicKey, 0, len(markets))
	for _, m := range markets {
		sources = append(sources, engine.MarketSource{Market: m, Context: b.Markets.Context()})
		queues = append(queues, m.Underlying().EventQueue())
	}
	return sources, queues, nil
}

// SyncAssets records the configured tokens and markets in storage and
// downloads token icons in the background
func (b *Bootstrap) SyncAssets(ctx context.Context) {
	slog.Info("🔄 Starting asset synchronization...")

	b.syncMarkets()

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // Limit concurrent downloads

	for _, t := range b.Config.Tokens {
		wg.Add(1)
		go func(tok infra.TokenConfig) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			// 1. Upsert to DB
			info := &domain.TokenInfo{
				Symbol:    tok.Symbol,
				Name:      tok.Name,
				Mint:      tok.Mint,
				Decimals:  tok.Decimals,
				LogoURI:   tok.LogoURI,
				UpdatedAt: time.Now(),
			}

			// Keep icon state of an existing entry
			if existing, _ := b.Storage.GetToken(tok.Symbol); existing != nil {
				info.IconPath = existing.IconPath
				info.LastSyncedAt = existing.LastSyncedAt
				info.CreatedAt = existing.CreatedAt
			}

			if err := b.Storage.UpsertToken(info); err != nil {
				slog.Error("Failed to upsert token", slog.String("symbol", tok.Symbol), slog.Any("error", err))
				return
			}

			// 2. Download Icon (if missing)
			if tok.LogoURI == "" {
				return
			}
			path, err := b.Downloader.DownloadIcon(tok.Symbol, tok.LogoURI)
			if err != nil {
				slog.Warn("Failed to download icon", slog.String("symbol", tok.Symbol), slog.Any("error", err))
				return
			}
			if err := b.Storage.SetTokenIcon(tok.Symbol, path); err != nil {
				slog.Warn("Failed to record icon", slog.String("symbol", tok.Symbol), slog.Any("error", err))
			}
		}(t)
	}

	wg.Wait()

	tokens, err := b.Storage.GetAllTokens()
	if err != nil {
		slog.Warn("Failed to list tokens", slog.Any("error", err))
	}
	slog.Info("✨ Asset synchronization completed", slog.Int("tokens", len(tokens)))
}

func (b *Bootstrap) syncMarkets() {
	addresses := make([]string, 0, len(b.Config.SpotMarkets))
	for _, m := range b.Markets.GetAllMarkets() {
		info := &domain.MarketInfo{
			Address:         m.Address().String(),
			Symbol:          m.Symbol(),
			BaseSymbol:      m.Base().Symbol,
			QuoteSymbol:     m.Quote().Symbol,
			GroupAddress:    b.Markets.Group().Address.String(),
			InventorySource: m.InventorySource().String(),
			IsActive:        true,
		}
		if existing, _ := b.Storage.GetMarket(info.Symbol); existing != nil && existing.Address == info.Address {
			info.CreatedAt = existing.CreatedAt
		}
		if err := b.Storage.UpsertMarket(info); err != nil {
			slog.Error("Failed to upsert market", slog.String("symbol", info.Symbol), slog.Any("error", err))
			continue
		}
		addresses = append(addresses, info.Address)
	}
	if err := b.Storage.DeactivateMarketsExcept(addresses); err != nil {
		slog.Error("Failed to deactivate removed markets", slog.Any("error", err))
	}

	// Remember which deployment the registry was built against
	settings := map[string]string{
		"group.name":     b.Config.Group.Name,
		"group.address":  b.Config.Group.Address,
		"dex_program_id": b.Config.Solana.DexProgramID,
	}
	for key, value := range settings {
		if err := b.Storage.SaveConfig(key, value); err != nil {
			slog.Warn("Failed to save setting", slog.String("key", key), slog.Any("error", err))
		}
	}
}

// Close releases storage.
func (b *Bootstrap) Close() {
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Failed to close database", slog.Any("error", err))
		}
	}
}

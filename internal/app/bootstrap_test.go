package app

import (
	"context"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"mango_go/internal/domain"
	"mango_go/internal/infra"
	"mango_go/internal/infra/storage"
	"mango_go/internal/market"
	"mango_go/internal/serum/serumtest"

	"github.com/disintegration/imaging"
	"github.com/gagliardetto/solana-go"
)

const (
	solMint    = "So11111111111111111111111111111111111111112"
	usdcMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	solMarket  = "9wFFyRfZBsuAha4YcuxcXLKwMxJR43S7fPfQLusDBzvT"
	groupAddr  = "98pjRuQjK3qA6gXts96PqZT4Ze5QmnCmt3QYjhbUSPue"
	testConfig = `
solana:
  rpc_url: http://127.0.0.1:8899
group:
  name: test.1
  address: %s
tokens:
  - symbol: SOL
    name: Wrapped SOL
    mint: %s
    decimals: 9
    logo_uri: %s
  - symbol: USDC
    mint: %s
    decimals: 6
spot_markets:
  - base: SOL
    quote: USDC
    address: %s
`
)

func newTestBootstrap(t *testing.T, logoURI string) (*Bootstrap, *serumtest.Fetcher) {
	t.Helper()
	cfg, err := infra.ParseConfig([]byte(fmt.Sprintf(testConfig, groupAddr, solMint, logoURI, usdcMint, solMarket)))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	dir := t.TempDir()
	store, err := storage.NewStorage(filepath.Join(dir, "mango.db"))
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	downloader, err := infra.NewIconDownloader(filepath.Join(dir, "icons"))
	if err != nil {
		t.Fatalf("NewIconDownloader failed: %v", err)
	}

	f := serumtest.NewFetcher()
	metrics := &infra.Metrics{}
	svc, err := NewMarketService(cfg, f, metrics)
	if err != nil {
		t.Fatalf("NewMarketService failed: %v", err)
	}

	return &Bootstrap{
		Config:     cfg,
		Storage:    store,
		Downloader: downloader,
		Fetcher:    f,
		Markets:    svc,
		Metrics:    metrics,
	}, f
}

func TestBuildGroupAndStubs(t *testing.T) {
	b, f := newTestBootstrap(t, "")

	group := b.Markets.Group()
	if group.Name != "test.1" || group.Address.String() != groupAddr {
		t.Errorf("group = %s %s", group.Name, group.Address)
	}
	sol, ok := group.TokenBySymbol("SOL")
	if !ok || sol.Decimals != 9 || sol.Mint.String() != solMint {
		t.Errorf("SOL token = %+v", sol)
	}

	all := b.Markets.GetAllMarkets()
	if len(all) != 1 {
		t.Fatalf("expected 1 market, got %d", len(all))
	}
	stub, ok := all[0].(*market.SpotMarketStub)
	if !ok {
		t.Fatalf("expected a stub, got %T", all[0])
	}
	if stub.Symbol() != "SOL/USDC" || stub.Address().String() != solMarket || stub.GroupAddress().String() != groupAddr {
		t.Errorf("stub = %s group %s", stub, stub.GroupAddress())
	}
	if f.Calls() != 0 {
		t.Errorf("building the registry performed %d reads", f.Calls())
	}
}

func TestSyncAssets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		imaging.Encode(w, imaging.New(64, 64, color.NRGBA{A: 255}), imaging.PNG)
	}))
	defer srv.Close()

	b, _ := newTestBootstrap(t, srv.URL+"/sol.png")
	b.Storage.UpsertMarket(&domain.MarketInfo{Address: "stale", Symbol: "OLD/USDC", IsActive: true})

	b.SyncAssets(context.Background())

	sol, err := b.Storage.GetToken("SOL")
	if err != nil || sol == nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if sol.Mint != solMint || sol.Decimals != 9 {
		t.Errorf("SOL = %+v", sol)
	}
	if sol.IconPath == "" || sol.IconPath != b.Downloader.GetIconPath("SOL") {
		t.Errorf("IconPath = %q", sol.IconPath)
	}

	usdc, _ := b.Storage.GetToken("USDC")
	if usdc == nil || usdc.IconPath != "" {
		t.Errorf("USDC = %+v", usdc)
	}

	all, err := b.Storage.GetAllTokens()
	if err != nil || len(all) != 2 {
		t.Errorf("GetAllTokens = %d tokens, %v", len(all), err)
	}

	settings, err := b.Storage.LoadConfigMap()
	if err != nil {
		t.Fatalf("LoadConfigMap failed: %v", err)
	}
	if settings["group.address"] != groupAddr || settings["dex_program_id"] != infra.DefaultDexProgramID {
		t.Errorf("settings = %v", settings)
	}

	active, err := b.Storage.GetActiveMarkets()
	if err != nil {
		t.Fatalf("GetActiveMarkets failed: %v", err)
	}
	if len(active) != 1 || active[0].Symbol != "SOL/USDC" || active[0].InventorySource != "ACCOUNT" {
		t.Errorf("active markets = %+v", active)
	}
}

func TestEventSources(t *testing.T) {
	b, f := newTestBootstrap(t, "")
	programID := solana.MustPublicKeyFromBase58(infra.DefaultDexProgramID)
	base, quote := solana.MustPublicKeyFromBase58(solMint), solana.MustPublicKeyFromBase58(usdcMint)
	queue := solana.PublicKey{9}

	state := serumtest.MarketState(base, quote, solana.PublicKey{7}, solana.PublicKey{8}, queue, 100_000_000, 100)
	f.Put(solana.MustPublicKeyFromBase58(solMarket), programID, serumtest.MarketAccount(state))
	f.Put(base, solana.TokenProgramID, serumtest.MintAccount(9))
	f.Put(quote, solana.TokenProgramID, serumtest.MintAccount(6))

	sources, queues, err := b.EventSources(context.Background())
	if err != nil {
		t.Fatalf("EventSources failed: %v", err)
	}
	if len(sources) != 1 || sources[0].Name() != "SOL/USDC" {
		t.Errorf("sources = %v", sources)
	}
	if len(queues) != 1 || !queues[0].Equals(queue) {
		t.Errorf("queues = %v", queues)
	}
}

func TestEventSources_NothingLoads(t *testing.T) {
	b, _ := newTestBootstrap(t, "")

	if _, _, err := b.EventSources(context.Background()); err == nil {
		t.Fatal("expected error when no market loads")
	}
}

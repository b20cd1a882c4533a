package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"mango_go/internal/app"
	"mango_go/internal/domain"
	"mango_go/internal/engine"
	"mango_go/internal/infra/chain"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration")
	symbol := flag.String("market", "", "market symbol to print (default: every configured market)")
	watch := flag.Bool("watch", false, "follow event queues until interrupted")
	pprofAddr := flag.String("pprof", "localhost:6060", "pprof listen address in watch mode, empty to disable")
	flag.Parse()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*watch {
		if err := printMarkets(ctx, bootstrap, *symbol); err != nil {
			slog.Error("❌ Market read failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := runWatch(ctx, bootstrap, *pprofAddr); err != nil {
		slog.Error("❌ Watch failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// printMarkets writes the order book and unprocessed events of one or all markets.
func printMarkets(ctx context.Context, b *app.Bootstrap, symbol string) error {
	symbols := b.Markets.Symbols()
	if symbol != "" {
		if _, err := b.Markets.Stub(symbol); err != nil {
			return err
		}
		symbols = []string{symbol}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	for _, sym := range symbols {
		m, err := b.Markets.Market(ctx, sym)
		if err != nil {
			return err
		}
		orders, err := b.Markets.Orders(ctx, sym)
		if err != nil {
			return err
		}
		events, err := b.Markets.UnprocessedEvents(ctx, sym)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s\n", m)
		fmt.Fprintf(w, "SIDE\tPRICE\tSIZE\tOWNER\tCLIENT ID\n")
		for _, o := range orders {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", o.Side, o.Price, o.Size, o.Owner, o.ClientID)
		}
		fmt.Fprintf(w, "\nSEQ\tKIND\tSIDE\tRELEASED\tPAID\tOWNER\n")
		for _, ev := range events {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n", ev.Seq, ev.Kind, ev.Side, ev.NativeQuantityReleased, ev.NativeQuantityPaid, ev.Owner)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// runWatch hands queue events to the log handler until ctx is cancelled.
func runWatch(ctx context.Context, b *app.Bootstrap, pprofAddr string) error {
	if pprofAddr != "" {
		go func() {
			slog.Info("🕵️ Pprof server started", slog.String("addr", pprofAddr))
			if err := http.ListenAndServe(pprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// Background Asset Sync
	go b.SyncAssets(ctx)

	sources, queues, err := b.EventSources(ctx)
	if err != nil {
		return err
	}

	cfg := b.Config
	proc := engine.NewEventProcessor(cfg.Processor.Consumer, sources, b.Storage,
		engine.LogHandler{Logger: slog.Default().With("module", "events")},
		cfg.PollInterval(), b.Metrics)
	go proc.Run(ctx)
	slog.InfoContext(ctx, "✅ Event processor started", slog.Int("markets", len(sources)))

	if cfg.Solana.WSURL != "" {
		sub := chain.NewSubscriber(cfg.Solana.WSURL, cfg.Solana.Commitment, queues, func(*domain.AccountInfo) {
			proc.Notify()
		}, b.Metrics)
		if err := sub.Connect(ctx); err != nil {
			slog.Error("Failed to connect subscriber", slog.Any("error", err))
		}
		defer sub.Disconnect()
		slog.InfoContext(ctx, "✅ Queue subscriber started", slog.Int("queues", len(queues)))
	}

	slog.InfoContext(ctx, "✨ Watching event queues. Press Ctrl+C to exit.")

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("👋 Shutting down gracefully...")
			return nil
		case <-ticker.C:
			snap := b.Metrics.Snapshot()
			slog.Info("📊 Metrics",
				slog.Uint64("accounts_fetched", snap.AccountsFetched),
				slog.Uint64("fetch_errors", snap.FetchErrors),
				slog.Uint64("decode_errors", snap.DecodeErrors),
				slog.Uint64("events", snap.EventsProcessed),
				slog.Uint64("fills", snap.FillsSeen),
				slog.Uint64("gaps", snap.SequenceGaps),
				slog.Duration("avg_fetch", time.Duration(snap.AvgFetchLatencyNs)),
				slog.Int("ws_connections", int(snap.ActiveConnections)),
			)
		}
	}
}

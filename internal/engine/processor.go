package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mango_go/internal/domain"
	"mango_go/internal/infra"
	"mango_go/internal/market"
	"mango_go/internal/serum"
)

// EventSource is one event queue the processor follows.
type EventSource interface {
	// Key identifies the queue in the cursor store.
	Key() string
	Name() string
	ReadQueue(ctx context.Context) (*serum.EventQueue, error)
}

// CursorStore persists the next unhandled sequence number per consumer and queue.
type CursorStore interface {
	LoadCursor(consumer, key string) (uint64, bool, error)
	SaveCursor(consumer, key string, nextSeq uint64) error
}

// Handler acts on queue events. Returning an error stops the current pass;
// the event is offered again on the next one.
type Handler interface {
	HandleEvent(ctx context.Context, source string, ev domain.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, source string, ev domain.Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, source string, ev domain.Event) error {
	return f(ctx, source, ev)
}

// MarketSource reads the event queue of a loaded spot market.
type MarketSource struct {
	Market  *market.SpotMarket
	Context *market.Context
}

func (s MarketSource) Key() string  { return s.Market.Address().String() }
func (s MarketSource) Name() string { return s.Market.Symbol() }

func (s MarketSource) ReadQueue(ctx context.Context) (*serum.EventQueue, error) {
	return s.Market.EventQueue(ctx, s.Context)
}

// EventProcessor hands every queue event to a Handler exactly once per
// consumer. Reading a queue never consumes it, so the processor keeps its
// own cursor and skips events it already handled.
type EventProcessor struct {
	consumer string
	sources  []EventSource
	cursors  CursorStore
	handler  Handler
	interval time.Duration
	metrics  *infra.Metrics
	logger   *slog.Logger

	trigger chan struct{}

	mu   sync.Mutex
	next map[string]uint64
}

// NewEventProcessor creates a processor for consumer over sources.
func NewEventProcessor(consumer string, sources []EventSource, cursors CursorStore, handler Handler, interval time.Duration, metrics *infra.Metrics) *EventProcessor {
	if cursors == nil {
		cursors = NewMemoryCursors()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &EventProcessor{
		consumer: consumer,
		sources:  sources,
		cursors:  cursors,
		handler:  handler,
		interval: interval,
		metrics:  metrics,
		logger:   slog.Default().With("module", "processor", "consumer", consumer),
		trigger:  make(chan struct{}, 1),
		next:     make(map[string]uint64),
	}
}

// Notify requests a pass as soon as possible. It never blocks.
func (p *EventProcessor) Notify() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run polls every source until ctx is cancelled. Run it in one goroutine.
func (p *EventProcessor) Run(ctx context.Context) {
	p.logger.Info("Event processor started",
		slog.Int("sources", len(p.sources)),
		slog.Duration("interval", p.interval),
	)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Event processor panic recovered", slog.Any("panic", r))
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("Event processing pass failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			p.logger.Info("Event processor stopping...")
			return
		case <-ticker.C:
		case <-p.trigger:
		}
	}
}

// PollOnce reads every source once and handles the events past each cursor.
// It keeps going after a failing source and returns the first error.
func (p *EventProcessor) PollOnce(ctx context.Context) error {
	var firstErr error
	for _, src := range p.sources {
		if err := p.process(ctx, src); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", src.Name(), err)
			}
		}
	}
	return firstErr
}

func (p *EventProcessor) process(ctx context.Context, src EventSource) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, err := src.ReadQueue(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedAccountData) {
			p.metrics.RecordDecodeError()
		}
		return err
	}

	next, known, err := p.cursor(src)
	if err != nil {
		return err
	}
	if !known {
		next = q.HeadSeq
	}

	switch {
	case next < q.HeadSeq:
		missed := q.HeadSeq - next
		p.metrics.RecordSequenceGap(missed)
		p.logger.Warn("SEQUENCE_GAP_DETECTED",
			slog.String("market", src.Name()),
			slog.Uint64("expected", next),
			slog.Uint64("head", q.HeadSeq),
			slog.Uint64("missed", missed),
		)
		next = q.HeadSeq
	case next > q.TailSeq:
		p.logger.Warn("Cursor ahead of queue, restarting at head",
			slog.String("market", src.Name()),
			slog.Uint64("cursor", next),
			slog.Uint64("tail", q.TailSeq),
		)
		next = q.HeadSeq
	}

	start := next
	for _, ev := range q.Events {
		if ev.Seq < next {
			continue
		}
		if err := p.handler.HandleEvent(ctx, src.Name(), ev); err != nil {
			p.save(src, next)
			return fmt.Errorf("handle event %d: %w", ev.Seq, err)
		}
		p.metrics.RecordEvent(ev.Kind == domain.EventKindFill)
		next = ev.Seq + 1
	}

	if next != start || !known {
		return p.save(src, next)
	}
	return nil
}

func (p *EventProcessor) cursor(src EventSource) (uint64, bool, error) {
	if next, ok := p.next[src.Key()]; ok {
		return next, true, nil
	}
	next, ok, err := p.cursors.LoadCursor(p.consumer, src.Key())
	if err != nil {
		return 0, false, fmt.Errorf("load cursor: %w", err)
	}
	if ok {
		p.next[src.Key()] = next
	}
	return next, ok, nil
}

func (p *EventProcessor) save(src EventSource, next uint64) error {
	p.next[src.Key()] = next
	if err := p.cursors.SaveCursor(p.consumer, src.Key(), next); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// Cursor returns the next sequence number the processor will hand out for
// a source, and false before the first pass over it.
func (p *EventProcessor) Cursor(key string) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, ok := p.next[key]
	return next, ok
}

// MemoryCursors is a CursorStore that forgets everything on exit.
type MemoryCursors struct {
	mu      sync.Mutex
	cursors map[string]uint64
}

func NewMemoryCursors() *MemoryCursors {
	return &MemoryCursors{cursors: make(map[string]uint64)}
}

func (m *MemoryCursors) LoadCursor(consumer, key string) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, ok := m.cursors[consumer+"/"+key]
	return next, ok, nil
}

func (m *MemoryCursors) SaveCursor(consumer, key string, nextSeq uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[consumer+"/"+key] = nextSeq
	return nil
}

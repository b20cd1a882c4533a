package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"mango_go/internal/domain"
	"mango_go/internal/infra"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
)

const (
	wsMaxRetries   = 10
	wsPingInterval = 30 * time.Second
	wsReadTimeout  = 90 * time.Second
)

// UpdateFunc receives every account change notification. It runs on the
// read goroutine and must not block.
type UpdateFunc func(info *domain.AccountInfo)

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type wsMessage struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Params *struct {
		Subscription uint64 `json:"subscription"`
		Result       struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value *struct {
				Lamports uint64   `json:"lamports"`
				Owner    string   `json:"owner"`
				Data     []string `json:"data"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Subscriber follows a set of accounts with accountSubscribe and
// reconnects with exponential backoff when the socket drops.
type Subscriber struct {
	url        string
	commitment string
	accounts   []solana.PublicKey
	onUpdate   UpdateFunc
	metrics    *infra.Metrics

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// request id -> account, then subscription id -> account
	pending map[uint64]solana.PublicKey
	subs    map[uint64]solana.PublicKey
}

// NewSubscriber creates a subscriber for accounts on the given websocket endpoint.
func NewSubscriber(url, commitment string, accounts []solana.PublicKey, onUpdate UpdateFunc, metrics *infra.Metrics) *Subscriber {
	if commitment == "" {
		commitment = "confirmed"
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Subscriber{
		url:        url,
		commitment: commitment,
		accounts:   accounts,
		onUpdate:   onUpdate,
		metrics:    metrics,
	}
}

// Connect starts the WebSocket connection with automatic reconnection
func (s *Subscriber) Connect(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.connectionLoop(ctx)

	return nil
}

// connectionLoop handles connection and reconnection with exponential backoff
func (s *Subscriber) connectionLoop(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Subscriber panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("Subscriber connection loop stopped")
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			slog.Warn("Solana WebSocket connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount),
			)

			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > wsMaxRetries {
				slog.Error("Solana WebSocket max retries exceeded, resetting counter")
				retryCount = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retryCount = 0

		pingCtx, stopPing := context.WithCancel(ctx)
		s.wg.Add(1)
		go s.pingLoop(pingCtx)

		s.readLoop(ctx)
		stopPing()
	}
}

// connect dials the endpoint and subscribes to every account
func (s *Subscriber) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	header := make(http.Header)
	header.Add("User-Agent", infra.DefaultUserAgent)

	conn, _, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return domain.NewNetworkError("dial", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.pending = make(map[uint64]solana.PublicKey, len(s.accounts))
	s.subs = make(map[uint64]solana.PublicKey, len(s.accounts))
	s.mu.Unlock()
	s.metrics.IncrementConnections()

	if err := s.subscribe(); err != nil {
		s.closeConnection()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	slog.Info("Solana WebSocket connected",
		slog.String("url", s.url),
		slog.Int("accounts", len(s.accounts)),
	)
	return nil
}

// subscribe sends one accountSubscribe request per account
func (s *Subscriber) subscribe() error {
	for i, addr := range s.accounts {
		id := uint64(i + 1)
		s.mu.Lock()
		s.pending[id] = addr
		s.mu.Unlock()

		msg, err := json.Marshal(wsRequest{
			JSONRPC: "2.0",
			ID:      id,
			Method:  "accountSubscribe",
			Params: []any{
				addr.String(),
				map[string]string{"encoding": "base64", "commitment": s.commitment},
			},
		})
		if err != nil {
			return err
		}
		if err := s.threadSafeWrite(websocket.TextMessage, msg); err != nil {
			return err
		}
	}
	return nil
}

// threadSafeWrite sends a message to the WebSocket connection in a thread-safe manner
func (s *Subscriber) threadSafeWrite(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}

	return conn.WriteMessage(messageType, data)
}

func (s *Subscriber) pingLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.threadSafeWrite(websocket.PingMessage, nil); err != nil {
				slog.Debug("Solana WebSocket ping failed", slog.Any("error", err))
				return
			}
		}
	}
}

// readLoop reads messages from WebSocket
func (s *Subscriber) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Solana WebSocket read error", slog.Any("error", err))
			}
			s.closeConnection()
			return
		}

		s.handleMessage(message)
	}
}

// handleMessage routes subscription confirmations and account notifications
func (s *Subscriber) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		slog.Debug("Solana WebSocket message parse error", slog.Any("error", err))
		return
	}

	if msg.ID != nil {
		s.handleReply(msg)
		return
	}
	if msg.Method != "accountNotification" || msg.Params == nil {
		return
	}

	s.mu.RLock()
	addr, ok := s.subs[msg.Params.Subscription]
	s.mu.RUnlock()
	if !ok {
		slog.Debug("Notification for unknown subscription", slog.Uint64("subscription", msg.Params.Subscription))
		return
	}

	info := &domain.AccountInfo{Address: addr, Slot: msg.Params.Result.Context.Slot}
	if v := msg.Params.Result.Value; v != nil {
		info.Lamports = v.Lamports
		if owner, err := solana.PublicKeyFromBase58(v.Owner); err == nil {
			info.Owner = owner
		}
		if len(v.Data) > 0 {
			if data, err := base64.StdEncoding.DecodeString(v.Data[0]); err == nil {
				info.Data = data
			}
		}
	}

	if s.onUpdate != nil {
		s.onUpdate(info)
	}
}

func (s *Subscriber) handleReply(msg wsMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr, ok := s.pending[*msg.ID]
	if !ok {
		return
	}
	delete(s.pending, *msg.ID)

	if msg.Error != nil {
		slog.Error("accountSubscribe rejected",
			slog.String("account", addr.String()),
			slog.Int("code", msg.Error.Code),
			slog.String("message", msg.Error.Message),
		)
		return
	}
	var subID uint64
	if err := json.Unmarshal(msg.Result, &subID); err != nil {
		slog.Warn("Invalid subscription id", slog.String("account", addr.String()), slog.Any("error", err))
		return
	}
	s.subs[subID] = addr
}

// Subscribed returns the number of confirmed subscriptions.
func (s *Subscriber) Subscribed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// closeConnection safely closes the WebSocket connection
func (s *Subscriber) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		s.metrics.DecrementConnections()
	}
	s.connected = false
}

// Disconnect closes the WebSocket connection
func (s *Subscriber) Disconnect() {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeConnection()
	s.wg.Wait()
	slog.Info("Solana WebSocket disconnected")
}

// IsConnected returns connection status
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

var _ domain.AccountWatcher = (*Subscriber)(nil)

// Package feed consumes raw trade events from an upstream websocket
// provider and hands them to the ingestion pipeline. The feed is lossy by
// contract: the dedup cache and database constraints downstream make
// redelivery after reconnect safe.
package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/engine"
)

// Handler receives each decoded trade event. Handler errors are logged and
// never stop the feed.
type Handler func(ctx context.Context, ev engine.TradeEvent) error

// Config configures feed client behavior.
type Config struct {
	// InitialReconnectDelay is the delay before the first reconnect attempt.
	InitialReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// Source labels events from this feed as their discovery source.
	Source string
}

// DefaultConfig returns default feed configuration.
func DefaultConfig() Config {
	return Config{
		InitialReconnectDelay: 1 * time.Second,
		MaxReconnectDelay:     30 * time.Second,
		PingInterval:          30 * time.Second,
		ReadTimeout:           60 * time.Second,
		WriteTimeout:          10 * time.Second,
		Source:                "trade-feed",
	}
}

// Client is a reconnecting websocket consumer of trade events.
type Client struct {
	endpoint string
	config   Config
	handler  Handler
	logger   *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewClient creates a feed client. It does not connect until Run.
func NewClient(endpoint string, config Config, handler Handler, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint: endpoint,
		config:   config,
		handler:  handler,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Run connects and consumes events until ctx is canceled or Close is
// called. Connection drops are retried with exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialReconnectDelay
	bo.MaxInterval = c.config.MaxReconnectDelay

	for {
		if c.closed.Load() {
			return nil
		}

		if err := c.connect(ctx); err != nil {
			c.logger.Warn("feed connect failed", zap.Error(err))
		} else {
			bo.Reset()
			c.wg.Add(1)
			go c.pingLoop()

			err := c.readLoop(ctx)
			c.closeConn()
			c.wg.Wait()
			if c.closed.Load() || ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("feed connection lost", zap.Error(err))
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			wait = c.config.MaxReconnectDelay
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case <-time.After(wait):
		}
	}
}

// Close stops the feed. Safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)
	c.closeConn()
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	sub := subscribeRequest{Op: "subscribe", Channel: "trades"}
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		c.closeConn()
		return fmt.Errorf("write subscribe: %w", err)
	}

	c.logger.Info("feed connected", zap.String("endpoint", c.endpoint))
	return nil
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

// readLoop consumes messages until the connection drops.
func (c *Client) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return fmt.Errorf("not connected")
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		c.handleMessage(ctx, message)
	}
}

// handleMessage decodes and dispatches one raw feed message. Malformed
// messages are counted against the provider, not fatal.
func (c *Client) handleMessage(ctx context.Context, message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Debug("undecodable feed message", zap.Error(err))
		return
	}
	if env.Type != "trade" || env.Data == nil {
		return
	}

	ev, err := toTradeEvent(env.Data, c.config.Source)
	if err != nil {
		c.logger.Debug("invalid trade message",
			zap.String("tx", env.Data.Tx),
			zap.Error(err),
		)
		return
	}

	if err := c.handler(ctx, ev); err != nil {
		c.logger.Warn("trade event handling failed",
			zap.String("external_ref", ev.ExternalRef),
			zap.Error(err),
		)
	}
}

// pingLoop keeps the connection alive between trades.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				// Reader sees the dead connection and triggers reconnect.
				return
			}
		}
	}
}

// Feed wire types.

type subscribeRequest struct {
	Op      string `json:"op"`
	Channel string `json:"channel"`
}

type envelope struct {
	Type string        `json:"type"`
	Data *tradeMessage `json:"data"`
}

type tradeMessage struct {
	Wallet    string  `json:"wallet"`
	Side      string  `json:"side"`
	Token     string  `json:"token"`
	Amount    float64 `json:"amount"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
	Tx        string  `json:"tx"`
}

// toTradeEvent validates a raw message and converts it for the pipeline.
func toTradeEvent(m *tradeMessage, source string) (engine.TradeEvent, error) {
	var typ domain.ObservationType
	switch m.Side {
	case "buy":
		typ = domain.ObservationBuy
	case "sell":
		typ = domain.ObservationSell
	default:
		return engine.TradeEvent{}, fmt.Errorf("unknown side %q", m.Side)
	}

	if m.Tx == "" {
		return engine.TradeEvent{}, fmt.Errorf("missing tx reference")
	}
	if m.Timestamp <= 0 {
		return engine.TradeEvent{}, fmt.Errorf("missing timestamp")
	}
	if m.Amount < 0 || m.Price < 0 {
		return engine.TradeEvent{}, fmt.Errorf("negative amount or price")
	}
	if err := validateAddress(m.Wallet); err != nil {
		return engine.TradeEvent{}, fmt.Errorf("wallet: %w", err)
	}
	if err := validateAddress(m.Token); err != nil {
		return engine.TradeEvent{}, fmt.Errorf("token: %w", err)
	}

	return engine.TradeEvent{
		WalletAddress:     m.Wallet,
		Type:              typ,
		CounterpartyToken: m.Token,
		Amount:            m.Amount,
		Price:             m.Price,
		Timestamp:         m.Timestamp,
		ExternalRef:       m.Tx,
		Source:            source,
	}, nil
}

// validateAddress checks for a plausible base58-encoded 32-byte address.
func validateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("empty address")
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("not base58: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("decoded length %d, want 32", len(raw))
	}
	return nil
}

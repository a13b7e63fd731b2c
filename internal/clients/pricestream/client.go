// Package pricestream subscribes to the backend's live quote feed and hands
// incoming prices to a callback. The QuickStart wizard uses it to keep the
// price fields of staged rows current while the user is still filling the
// sheet in. Best-effort: the wizard works fine without the stream.
package pricestream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	dialTimeout    = 30 * time.Second
	reconnectDelay = 5 * time.Second
)

// Quote is one message on the feed.
type Quote struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Handler receives every quote read off the feed.
type Handler func(symbol, price string)

// Client maintains the websocket subscription with automatic reconnects.
type Client struct {
	url     string
	handler Handler
	log     zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewClient creates a price stream client. Nothing connects until Start.
func NewClient(url string, handler Handler, log zerolog.Logger) *Client {
	return &Client{
		url:     url,
		handler: handler,
		log:     log.With().Str("component", "pricestream").Logger(),
		done:    make(chan struct{}),
	}
}

// Start connects and reads quotes in the background, reconnecting with a
// fixed delay until Stop is called.
func (c *Client) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx)
	c.log.Info().Str("url", c.url).Msg("Price stream client started")
}

// Stop closes the connection and halts reconnect attempts.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
	<-c.done
	c.log.Info().Msg("Price stream client stopped")
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	for {
		if err := c.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn().Err(err).Msg("Price stream disconnected, will reconnect")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	cancel()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.log.Debug().Msg("Price stream connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			return err
		}

		var quote Quote
		if err := json.Unmarshal(data, &quote); err != nil {
			c.log.Debug().Err(err).Msg("Skipping malformed quote message")
			continue
		}
		if quote.Symbol == "" || quote.Price == "" {
			continue
		}
		c.handler(quote.Symbol, quote.Price)
	}
}

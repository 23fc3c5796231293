package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/xopay/notify-service/internal/metrics"
)

const (
	defaultMinBackoff = 1 * time.Second
	defaultMaxBackoff = 300 * time.Second
)

// Handler consumes decoded payloads from a single queue. Queue names the
// queue the handler is bound to; Handle is called once per delivery with
// the decoded JSON body. A returned error is logged and the message is
// acknowledged anyway, so handlers own their retry behavior.
type Handler interface {
	Queue() string
	Handle(ctx context.Context, msg map[string]any) error
}

// Config carries the broker URL and backoff bounds for a Consumer.
type Config struct {
	URL string

	// MinBackoff and MaxBackoff bound the reconnect delay. Zero values
	// take 1s and 300s.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Consumer maintains one broker connection with a dedicated channel per
// queue and keeps reconnecting until stopped. Queues are declared durable
// on every connect, deliveries are processed serially per queue, and each
// delivery is acknowledged exactly once whatever the handler did.
type Consumer struct {
	url      string
	handlers []Handler
	lg       zerolog.Logger
	bo       *backoff

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	conn     *amqp.Connection
	channels []*amqp.Channel
}

// NewConsumer builds a Consumer over the given handlers. The handler order
// is the declaration and subscription order on every connect.
func NewConsumer(cfg Config, handlers []Handler, lg zerolog.Logger) *Consumer {
	min := cfg.MinBackoff
	if min <= 0 {
		min = defaultMinBackoff
	}
	max := cfg.MaxBackoff
	if max < min {
		max = defaultMaxBackoff
	}
	return &Consumer{
		url:      cfg.URL,
		handlers: handlers,
		lg:       lg.With().Str("component", "rabbitmq_consumer").Logger(),
		bo:       newBackoff(min, max),
	}
}

// Start launches the supervisor goroutine. It returns an error when the
// consumer is already running or has nothing to consume.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("consumer already running")
	}
	if len(c.handlers) == 0 {
		return fmt.Errorf("consumer has no handlers")
	}
	for _, h := range c.handlers {
		if h == nil || h.Queue() == "" {
			return fmt.Errorf("consumer handler with empty queue")
		}
	}

	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.run(ctx)
	return nil
}

// Stop tears the connection down and waits for the supervisor to exit.
// In-flight handlers finish before their queue loop returns.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	close(c.stopCh)
	done := c.doneCh
	c.mu.Unlock()

	c.closeConn()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Consumer) run(ctx context.Context) {
	defer func() {
		c.closeConn()
		c.mu.Lock()
		c.running = false
		close(c.doneCh)
		c.mu.Unlock()
		c.lg.Info().Msg("consumer stopped")
	}()

	for {
		if ctx.Err() != nil || !c.isRunning() {
			return
		}

		// Every attempt waits out the current backoff first, so a broker
		// that is still booting gets a grace period before the first dial.
		if !c.sleep(ctx, c.bo.Next()) {
			return
		}

		err := c.runSession(ctx)
		if err == nil {
			return
		}
		if ctx.Err() != nil || !c.isRunning() {
			return
		}
		metrics.RecordAMQPReconnect()
		c.lg.Warn().Err(err).Msg("broker session ended, reconnecting")
	}
}

// runSession dials the broker, declares and subscribes every queue, then
// blocks until the connection dies or ctx is done. It returns nil only on
// a ctx-driven shutdown.
func (c *Consumer) runSession(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	c.setConn(conn)
	defer c.closeConn()

	type subscription struct {
		handler    Handler
		deliveries <-chan amqp.Delivery
	}

	subs := make([]subscription, 0, len(c.handlers))
	for _, h := range c.handlers {
		ch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("open channel for %s: %w", h.Queue(), err)
		}
		c.addChannel(ch)

		if _, err := ch.QueueDeclare(h.Queue(), true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", h.Queue(), err)
		}
		deliveries, err := ch.Consume(h.Queue(), "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume queue %s: %w", h.Queue(), err)
		}
		subs = append(subs, subscription{handler: h, deliveries: deliveries})
	}

	// All queues are subscribed, the session counts as running.
	c.bo.Reset()
	c.lg.Info().Int("queues", len(subs)).Msg("consumer running")

	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s subscription) {
			defer wg.Done()
			c.consumeQueue(ctx, s.handler, s.deliveries)
		}(s)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case <-ctx.Done():
		c.closeConn()
		wg.Wait()
		return nil
	case amqpErr := <-closed:
		c.closeConn()
		wg.Wait()
		if amqpErr != nil {
			return fmt.Errorf("connection lost: %v", amqpErr)
		}
		return fmt.Errorf("connection closed")
	}
}

// consumeQueue processes one queue serially until its delivery channel
// closes with the connection.
func (c *Consumer) consumeQueue(ctx context.Context, h Handler, deliveries <-chan amqp.Delivery) {
	lg := c.lg.With().Str("queue", h.Queue()).Logger()
	for d := range deliveries {
		c.handleDelivery(ctx, lg, h, d)
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, lg zerolog.Logger, h Handler, d amqp.Delivery) {
	queue := h.Queue()
	metrics.RecordMessageConsumed(queue)
	start := time.Now()

	var msg map[string]any
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		metrics.RecordMessageDropped(queue, "bad_json")
		lg.Error().Err(err).Int("bytes", len(d.Body)).Msg("undecodable message dropped")
	} else if err := c.invoke(ctx, h, msg); err != nil {
		lg.Error().Err(err).Msg("handler failed")
	}

	// Exactly one ack per delivery, no matter what happened above.
	if err := d.Ack(false); err != nil {
		lg.Error().Err(err).Msg("ack failed")
	}
	metrics.RecordHandlerDuration(queue, time.Since(start))
}

// invoke shields the queue loop from handler panics.
func (c *Consumer) invoke(ctx context.Context, h Handler, msg map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, msg)
}

func (c *Consumer) setConn(conn *amqp.Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.channels = nil
}

func (c *Consumer) addChannel(ch *amqp.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels = append(c.channels, ch)
}

func (c *Consumer) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.channels {
		_ = ch.Close()
	}
	c.channels = nil
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// sleep waits out d and reports false when ctx finished or Stop began
// first.
func (c *Consumer) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-c.stopCh:
		return false
	case <-t.C:
		return true
	}
}

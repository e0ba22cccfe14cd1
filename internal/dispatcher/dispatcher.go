package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Well-known topics.
const (
	TopicMetadata = "metadata"
	TopicLocation = "location"

	// TopicAll subscribes to every topic.
	TopicAll = "*"
)

// DataTopic is published after a data type was re-imported.
func DataTopic(dataType string) string {
	return "data." + dataType
}

// ViewTopic is published with the change set of a view.
func ViewTopic(name string) string {
	return "view." + name
}

// Event is a notification published on a topic.
type Event struct {
	Topic     string
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes a notification.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a subscription.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the subscriber async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered subscriber block the publisher when its queue is
// full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the subscriber.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type subscriber struct {
	id       uint64
	topic    string
	handler  HandlerFunc
	buffer   chan Event
	blocking bool

	// done is closed when the subscriber is removed. buffer is never closed,
	// so a publisher holding a stale snapshot cannot send on a closed channel.
	done     chan struct{}
	stopOnce sync.Once
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Subscription is returned by Subscribe and cancels it.
type Subscription struct {
	id    uint64
	topic string
	d     *Dispatcher
	once  sync.Once
}

// Unsubscribe removes the subscriber. Buffered events already queued are
// still delivered.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.d.remove(s.topic, s.id)
	})
}

// Dispatcher fans notifications out to topic subscribers.
type Dispatcher struct {
	logger Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	published metric.Int64Counter
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	mu     sync.RWMutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
	closed bool
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		subs:   make(map[string]map[uint64]*subscriber),
		logger: logger,
	}

	m := otel.Meter("github.com/iBurnApp/iBurn-iOS/internal/dispatcher")

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of notifications waiting per topic"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			for topic, n := range d.QueueLengths() {
				o.ObserveInt64(d.queueSize, int64(n),
					metric.WithAttributes(attribute.String("topic", topic)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.published, err = m.Int64Counter(
		"dispatcher.events.published",
		metric.WithDescription("Total notifications published"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating published counter: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total notifications handled by subscribers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total notifications dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Subscribe registers a handler for a topic with optional configuration.
func (d *Dispatcher) Subscribe(topic string, h HandlerFunc, opts ...Option) *Subscription {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h
	if cfg.logged {
		handler = d.withLogging(topic, handler)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	s := &subscriber{
		id:       d.nextID,
		topic:    topic,
		handler:  handler,
		blocking: cfg.blocking,
		done:     make(chan struct{}),
	}
	if cfg.bufferSize > 0 {
		s.buffer = make(chan Event, cfg.bufferSize)
		go d.drain(s)
	}

	if d.subs[topic] == nil {
		d.subs[topic] = make(map[uint64]*subscriber)
	}
	d.subs[topic][s.id] = s

	return &Subscription{id: s.id, topic: topic, d: d}
}

// Publish delivers the event to every subscriber of its topic and of
// TopicAll. Synchronous handler errors and drops are joined. Handlers run
// without the dispatcher lock held, so they may publish, subscribe or
// unsubscribe.
func (d *Dispatcher) Publish(e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	topicAttr := metric.WithAttributes(attribute.String("topic", e.Topic))
	d.published.Add(context.Background(), 1, topicAttr)

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return errors.New("dispatcher closed")
	}
	var targets []*subscriber
	for _, topic := range []string{e.Topic, TopicAll} {
		for _, s := range d.subs[topic] {
			targets = append(targets, s)
		}
		if e.Topic == TopicAll {
			break
		}
	}
	d.mu.RUnlock()

	var errs []error
	for _, s := range targets {
		if err := d.deliver(s, e, topicAttr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HasSubscribers returns true if anything listens on the topic.
func (d *Dispatcher) HasSubscribers(topic string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[topic]) > 0
}

// QueueLengths returns the number of pending buffered notifications per topic.
func (d *Dispatcher) QueueLengths() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int, len(d.subs))
	for topic, subs := range d.subs {
		for _, s := range subs {
			if s.buffer != nil {
				out[topic] += len(s.buffer)
			}
		}
	}
	return out
}

// Close stops all buffered subscribers. Publish fails afterwards.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, subs := range d.subs {
		for _, s := range subs {
			s.stop()
		}
	}
	d.subs = make(map[string]map[uint64]*subscriber)
}

func (d *Dispatcher) deliver(s *subscriber, e Event, topicAttr metric.AddOption) error {
	select {
	case <-s.done:
		// removed after the snapshot was taken
		return nil
	default:
	}

	if s.buffer == nil {
		err := s.handler(e)
		d.processed.Add(context.Background(), 1, topicAttr)
		return err
	}

	if s.blocking {
		select {
		case s.buffer <- e:
		case <-s.done:
		}
		return nil
	}

	select {
	case s.buffer <- e:
		return nil
	case <-s.done:
		return nil
	default:
		d.dropped.Add(context.Background(), 1, topicAttr)
		return fmt.Errorf("queue full: %s", s.topic)
	}
}

// drain runs the handler of a buffered subscriber until it is removed, then
// delivers what is still queued.
func (d *Dispatcher) drain(s *subscriber) {
	attr := metric.WithAttributes(attribute.String("topic", s.topic))
	handle := func(e Event) {
		if err := s.handler(e); err != nil && d.logger != nil {
			d.logger.Error("subscriber failed", "topic", e.Topic, "error", err)
		}
		d.processed.Add(context.Background(), 1, attr)
	}
	for {
		select {
		case e := <-s.buffer:
			handle(e)
		case <-s.done:
			for {
				select {
				case e := <-s.buffer:
					handle(e)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) remove(topic string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.subs[topic][id]
	if !ok {
		return
	}
	delete(d.subs[topic], id)
	if len(d.subs[topic]) == 0 {
		delete(d.subs, topic)
	}
	s.stop()
}

func (d *Dispatcher) withLogging(topic string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling notification", "topic", topic, "event", e.Topic)

		err := h(e)

		if err != nil {
			d.logger.Error("notification failed", "topic", topic, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("notification complete", "topic", topic, "duration", time.Since(start))
		}
		return err
	}
}

package outcome

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink receives published events. Publish may be retried.
type Sink interface {
	Name() string
	Publish(ctx context.Context, evt Event) error
}

type Config struct {
	Workers    int
	RetryLimit int
	QueueSize  int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
}

func DefaultConfig() Config {
	return Config{Workers: 2, RetryLimit: 3, QueueSize: 1000, Backoff: 2 * time.Second}
}

type task struct {
	sink  Sink
	event Event
}

// Publisher delivers events to every sink from a bounded queue drained by
// a fixed set of workers. Publish never blocks the caller.
type Publisher struct {
	sinks      []Sink
	queue      chan task
	retryLimit int
	backoff    time.Duration
	log        logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewPublisher(cfg Config, logger logrus.FieldLogger, sinks ...Sink) *Publisher {
	defaults := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = defaults.RetryLimit
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = defaults.Backoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		sinks:      sinks,
		queue:      make(chan task, cfg.QueueSize),
		retryLimit: cfg.RetryLimit,
		backoff:    cfg.Backoff,
		log:        logger.WithField("component", "outcome"),
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Publisher) Sinks() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.sinks))
	for _, s := range p.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Publish queues evt for every sink. Events are dropped with a warning when
// the queue is full or the publisher is shut down.
func (p *Publisher) Publish(evt Event) {
	if p == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	for _, sink := range p.sinks {
		select {
		case p.queue <- task{sink: sink, event: evt}:
		default:
			p.log.WithFields(logrus.Fields{"sink": sink.Name(), "event": evt.Type}).Warn("Outcome queue full, dropping event")
		}
	}
}

func (p *Publisher) worker() {
	defer p.wg.Done()
	for t := range p.queue {
		p.deliver(t)
	}
}

func (p *Publisher) deliver(t task) {
	entry := p.log.WithFields(logrus.Fields{"sink": t.sink.Name(), "event": t.event.Type})

	var lastErr error
	for attempt := 1; attempt <= p.retryLimit; attempt++ {
		if lastErr = t.sink.Publish(p.ctx, t.event); lastErr == nil {
			entry.WithField("attempt", attempt).Debug("Outcome published")
			return
		}
		if attempt == p.retryLimit || p.ctx.Err() != nil {
			break
		}
		select {
		case <-p.ctx.Done():
		case <-time.After(time.Duration(attempt) * p.backoff):
		}
	}
	entry.WithError(lastErr).Error("Outcome could not be published")
}

// Shutdown stops accepting events and drains the queue. When ctx ends
// first, in flight retries are abandoned.
func (p *Publisher) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		p.cancel()
		<-done
	}
	p.cancel()
}

package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/straja-ai/placeholder/internal/redact"
)

// Sink consumes detection events.
type Sink interface {
	Name() string
	Deliver(context.Context, *Event) error
	Close(context.Context) error
}

// Metrics counts deliveries.
type Metrics struct {
	Enqueued    uint64            `json:"enqueued"`
	Dropped     uint64            `json:"dropped"`
	SinkSuccess map[string]uint64 `json:"sink_success"`
	SinkFailure map[string]uint64 `json:"sink_failure"`
}

func (m Metrics) clone() Metrics {
	out := Metrics{
		Enqueued:    m.Enqueued,
		Dropped:     m.Dropped,
		SinkSuccess: make(map[string]uint64, len(m.SinkSuccess)),
		SinkFailure: make(map[string]uint64, len(m.SinkFailure)),
	}
	for k, v := range m.SinkSuccess {
		out.SinkSuccess[k] = v
	}
	for k, v := range m.SinkFailure {
		out.SinkFailure[k] = v
	}
	return out
}

// EmitterConfig controls worker and queue sizing.
type EmitterConfig struct {
	QueueSize    int
	Workers      int
	DrainTimeout time.Duration
	Logger       *slog.Logger
}

// Emitter buffers events and hands them to sinks from worker goroutines.
// A nil *Emitter is valid and discards everything.
type Emitter struct {
	queue        chan *Event
	sinks        []Sink
	drainTimeout time.Duration
	logger       *slog.Logger

	mu        sync.RWMutex
	metricsMu sync.Mutex
	metrics   Metrics
	closed    bool
	wg        sync.WaitGroup
}

// NewEmitter starts the workers.
func NewEmitter(cfg EmitterConfig, sinks []Sink) *Emitter {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	drain := cfg.DrainTimeout
	if drain <= 0 {
		drain = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	em := &Emitter{
		queue:        make(chan *Event, queueSize),
		sinks:        sinks,
		drainTimeout: drain,
		logger:       logger.With("component", "events"),
		metrics: Metrics{
			SinkSuccess: make(map[string]uint64, len(sinks)),
			SinkFailure: make(map[string]uint64, len(sinks)),
		},
	}
	for _, s := range sinks {
		em.metrics.SinkSuccess[s.Name()] = 0
		em.metrics.SinkFailure[s.Name()] = 0
	}

	for range workers {
		em.wg.Add(1)
		go em.worker()
	}
	return em
}

// Emit enqueues ev, dropping it when the queue is full or the emitter closed.
func (e *Emitter) Emit(ev *Event) {
	if e == nil || ev == nil {
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.count(func(m *Metrics) { m.Dropped++ })
		return
	}
	select {
	case e.queue <- ev:
		e.count(func(m *Metrics) { m.Enqueued++ })
	default:
		e.count(func(m *Metrics) { m.Dropped++ })
	}
}

// Close stops accepting events and waits up to the drain timeout for queued
// ones before closing the sinks.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	waitCtx, cancel := context.WithTimeout(ctx, e.drainTimeout)
	defer cancel()

	select {
	case <-done:
	case <-waitCtx.Done():
		e.logger.Warn("event queue not drained before timeout", "pending", len(e.queue))
	}

	for _, s := range e.sinks {
		if err := s.Close(waitCtx); err != nil {
			e.logger.Warn("sink close failed", "sink", redact.String(s.Name()), "error", err)
		}
	}
}

// Metrics copies the current counters.
func (e *Emitter) Metrics() Metrics {
	if e == nil {
		return Metrics{}
	}
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()
	return e.metrics.clone()
}

func (e *Emitter) count(fn func(*Metrics)) {
	e.metricsMu.Lock()
	fn(&e.metrics)
	e.metricsMu.Unlock()
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for ev := range e.queue {
		e.deliver(ev)
	}
}

func (e *Emitter) deliver(ev *Event) {
	for _, s := range e.sinks {
		name := s.Name()
		if err := s.Deliver(context.Background(), ev); err != nil {
			e.logger.Warn("sink delivery failed", "sink", redact.String(name), "request_id", ev.RequestID, "error", err)
			e.count(func(m *Metrics) { m.SinkFailure[name]++ })
			continue
		}
		e.count(func(m *Metrics) { m.SinkSuccess[name]++ })
	}
}

// Package relay drains pending upload notifications from the queue and republishes
// them on the topic at a fixed interval.
//
// Delivery is at-least-once: a message is deleted only after its publish succeeded, so
// a crash or a failed delete between the two steps republishes it on a later tick.
// Run one relay per deployment; there is no lease between instances.
package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"imagehub/pkg/notify"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is the time between two ticks.
const DefaultInterval = 120 * time.Second

// Source is the queue pending notifications are drained from.
type Source interface {
	Receive(ctx context.Context) ([]notify.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Sink is the topic bodies are republished on.
type Sink interface {
	Publish(ctx context.Context, body string) (string, error)
}

// Failure records one message that did not make it all the way through a tick.
type Failure struct {
	MessageID string
	Stage     string // "publish" or "delete"
	Err       error
}

// Result summarizes one tick.
type Result struct {
	Received int
	Relayed  int
	Failures []Failure
}

// Relay moves messages from a Source to a Sink on a fixed interval.
type Relay struct {
	source   Source
	sink     Sink
	interval time.Duration
	metrics  *Metrics

	mu      sync.Mutex
	running bool
}

// New builds a relay. A non-positive interval falls back to DefaultInterval; metrics may
// be nil.
func New(source Source, sink Sink, interval time.Duration, metrics *Metrics) *Relay {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Relay{source: source, sink: sink, interval: interval, metrics: metrics}
}

func (r *Relay) Interval() time.Duration { return r.interval }

// Tick receives one batch and forwards each body verbatim. A receive error aborts the
// tick; per-message errors are collected in the result.
func (r *Relay) Tick(ctx context.Context) (Result, error) {
	var res Result
	msgs, err := r.source.Receive(ctx)
	if err != nil {
		return res, fmt.Errorf("receive: %w", err)
	}
	res.Received = len(msgs)
	for _, m := range msgs {
		if _, err := r.sink.Publish(ctx, m.Body); err != nil {
			res.Failures = append(res.Failures, Failure{MessageID: m.ID, Stage: "publish", Err: err})
			r.metrics.message("publish_failed")
			continue
		}
		if err := r.source.Delete(ctx, m.ReceiptHandle); err != nil {
			res.Failures = append(res.Failures, Failure{MessageID: m.ID, Stage: "delete", Err: err})
			r.metrics.message("delete_failed")
			continue
		}
		res.Relayed++
		r.metrics.message("relayed")
	}
	return res, nil
}

// Run ticks every interval until ctx is cancelled. Errors and panics inside a tick are
// logged and the next tick proceeds. Run returns nil on cancellation.
func (r *Relay) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("relay already running")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	logger := log.With().Str("component", "relay").Logger()
	logger.Info().Dur("interval", r.interval).Msg("relay started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay stopped")
			return nil
		case <-ticker.C:
			r.safeTick(ctx, logger)
		}
	}
}

func (r *Relay) safeTick(ctx context.Context, logger zerolog.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.tick("panic")
			logger.Error().Interface("panic", rec).Msg("relay tick panicked")
		}
	}()

	logger.Debug().Msg("checking queue for messages")
	res, err := r.Tick(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.metrics.tick("error")
		logger.Error().Err(err).Msg("relay tick failed")
		return
	}
	r.metrics.tick("ok")
	for _, f := range res.Failures {
		logger.Warn().Err(f.Err).Str("message_id", f.MessageID).Str("stage", f.Stage).Msg("message not relayed")
	}
	if res.Received == 0 {
		logger.Info().Dur("next_check", r.interval).Msg("no messages to relay")
		return
	}
	logger.Info().Int("received", res.Received).Int("relayed", res.Relayed).
		Int("failed", len(res.Failures)).Msg("messages relayed from queue to topic")
}

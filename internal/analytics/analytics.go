// Package analytics buffers and batches CacheEvent records describing
// planner decisions (no-op, extract, promote, fetch) and flushes them to a
// Sink, either on a timer or once a buffer threshold is reached.
package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"
)

// Decision names one of the planner's R0-R3 outcomes (spec §4.F), recorded
// for observability rather than control flow.
type Decision string

const (
	DecisionNoop    Decision = "noop"    // R0
	DecisionExtract Decision = "extract" // R1
	DecisionPromote Decision = "promote" // R2
	DecisionFetch   Decision = "fetch"   // R3
)

// CacheEvent is one planner decision, logged for a single ref.
type CacheEvent struct {
	DistStr  string
	Decision Decision
	Duration time.Duration
	Err      string
}

type Events = []map[string]interface{}

type EventPayload = interface{}

type Recorder interface {
	LogEvent(payload EventPayload)
}

type Client interface {
	Recorder
	Close()
	CloseWithTimeout(timeout time.Duration)
}

type Sink interface {
	RecordAnalyticsEvents(events Events) error
}

type nullSink struct{}

func (n *nullSink) RecordAnalyticsEvents(events Events) error {
	return nil
}

// NullSink is an analytics sink to use when analytics are disabled.
var NullSink = &nullSink{}

type client struct {
	ch     chan<- EventPayload
	cancel func()

	worker *worker
}

type worker struct {
	buffer    []EventPayload
	ch        <-chan EventPayload
	ctx       context.Context
	done      chan struct{}
	sessionID uuid.UUID
	sink      Sink
	wg        sync.WaitGroup
	logger    hclog.Logger
}

const bufferThreshold = 10
const eventTimeout = 200 * time.Millisecond
const noTimeout = 24 * time.Hour

func newWorker(ctx context.Context, ch <-chan EventPayload, sink Sink, logger hclog.Logger) *worker {
	w := &worker{
		ch:        ch,
		ctx:       ctx,
		done:      make(chan struct{}),
		sessionID: uuid.New(),
		sink:      sink,
		logger:    logger,
	}
	go w.analyticsClient()
	return w
}

// NewClient builds an analytics Client that buffers CacheEvents and flushes
// them to sink, either every bufferThreshold events or every eventTimeout of
// idle time, whichever comes first.
func NewClient(parent context.Context, sink Sink, logger hclog.Logger) Client {
	ch := make(chan EventPayload)
	ctx, cancel := context.WithCancel(parent)
	w := newWorker(ctx, ch, sink, logger)
	return &client{ch: ch, cancel: cancel, worker: w}
}

func (s *client) LogEvent(event EventPayload) {
	s.ch <- event
}

func (s *client) Close() {
	s.cancel()
	s.worker.Wait()
}

func (s *client) CloseWithTimeout(timeout time.Duration) {
	ch := make(chan struct{})
	go func() {
		s.Close()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(timeout):
	}
}

func (w *worker) Wait() {
	<-w.done
	w.wg.Wait()
}

func (w *worker) analyticsClient() {
	timeout := time.After(noTimeout)
	for {
		select {
		case e := <-w.ch:
			w.buffer = append(w.buffer, e)
			if len(w.buffer) == bufferThreshold {
				w.flush()
				timeout = time.After(noTimeout)
			} else {
				timeout = time.After(eventTimeout)
			}
		case <-timeout:
			w.flush()
			timeout = time.After(noTimeout)
		case <-w.ctx.Done():
			w.flush()
			close(w.done)
			return
		}
	}
}

func (w *worker) flush() {
	if len(w.buffer) > 0 {
		w.sendEvents(w.buffer)
		w.buffer = []EventPayload{}
	}
}

func (w *worker) sendEvents(events []EventPayload) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		payload, err := addSessionID(w.sessionID.String(), events)
		if err != nil {
			w.logger.Debug("failed to encode cache analytics", "error", err)
			return
		}
		if err := w.sink.RecordAnalyticsEvents(payload); err != nil {
			w.logger.Debug("failed to record cache analytics", "error", err)
		}
	}()
}

func addSessionID(sessionID string, events []EventPayload) (Events, error) {
	eventMaps := []map[string]interface{}{}
	if err := mapstructure.Decode(events, &eventMaps); err != nil {
		return nil, err
	}
	for _, event := range eventMaps {
		event["sessionId"] = sessionID
	}
	return eventMaps, nil
}

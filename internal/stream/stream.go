// Package stream drives the upstream transaction subscription and feeds
// every instruction it observes through the decode → classify → policy →
// notify pipeline. It owns the event loop: reconnection with backoff,
// per-transaction instruction ordering, and the bounded-concurrency
// notification dispatch pool (spec.md §4.5).
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/tierwatch/tierwatch/internal/chain"
	"github.com/tierwatch/tierwatch/internal/classify"
	"github.com/tierwatch/tierwatch/internal/config"
	"github.com/tierwatch/tierwatch/internal/decode"
	"github.com/tierwatch/tierwatch/internal/notify"
	"github.com/tierwatch/tierwatch/internal/pkg/logger"
	"github.com/tierwatch/tierwatch/internal/pkg/x/chflow"
	"github.com/tierwatch/tierwatch/internal/policy"
)

// ErrServiceAlreadyStarted is returned by Start on a Service that is already
// running.
var ErrServiceAlreadyStarted = errors.New("stream: service already started")

// ErrPersistentAuthFailure is the terminal error sent on the Done channel
// when the upstream feed rejects credentials repeatedly (spec.md §7:
// "persistent auth failure ... is fatal").
var ErrPersistentAuthFailure = errors.New("stream: persistent upstream authentication failure")

const (
	defaultBackoffInitial      = 1 * time.Second
	defaultBackoffMax          = 30 * time.Second
	defaultDispatchConcurrency = 16

	// authFailureThreshold/authFailureWindow implement "3 consecutive
	// failures within 60s" from spec.md §7.
	authFailureThreshold = 3
	authFailureWindow    = 60 * time.Second

	// drainTimeout bounds how long Close waits for in-flight notification
	// sends started by dispatch to finish, per spec.md §5.
	drainTimeout = 5 * time.Second
)

type closeFunc func()

// Service is the Stream Driver: Start begins consuming the upstream feed and
// running the full pipeline; Close tears it down. The Done channel returned
// by Start carries at most one value — nil on a clean Close, or a non-nil
// error (wrapping ErrPersistentAuthFailure) when the driver gave up for
// good — and is then closed.
type Service interface {
	Start(ctx context.Context) (<-chan error, error)
	Close()
}

type service struct {
	mu        sync.Mutex
	isStarted bool
	closeFunc closeFunc

	subscriber     chain.Subscriber
	programIDs     []solana.PublicKey
	registry       *decode.Registry
	aliasByProgram map[solana.PublicKey]string
	classifier     *classify.Classifier
	engine         *policy.Engine
	notifier       *notify.Set

	dispatchSem chan struct{}
	dispatchWG  sync.WaitGroup

	backoffInitial time.Duration
	backoffMax     time.Duration
}

var _ Service = (*service)(nil)

// cfg holds the functional-option-configurable knobs; every field has a
// spec-mandated default, so most callers build a Service with no Options at
// all.
type cfg struct {
	backoffInitial      time.Duration
	backoffMax          time.Duration
	dispatchConcurrency int
}

// Option configures a Service at construction time.
type Option func(*cfg)

// WithBackoff overrides the reconnect backoff's initial delay and cap.
// Default: 1s initial, 30s cap, per spec.md §4.5.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *cfg) {
		c.backoffInitial = initial
		c.backoffMax = max
	}
}

// WithDispatchConcurrency overrides the bounded notification-dispatch pool
// size. Default: 16.
func WithDispatchConcurrency(n int) Option {
	return func(c *cfg) {
		c.dispatchConcurrency = n
	}
}

// New builds a Service wired against cfg's decoded programs, evaluating
// events through mintDecimals-backed classification and dispatching through
// notifier. subscriber stands in for the out-of-scope gRPC/geyser transport.
func New(policyConfig config.Config, subscriber chain.Subscriber, mintDecimals classify.MintDecimals, notifier *notify.Set, opts ...Option) (*service, error) {
	registry, aliasByProgram, err := buildRegistry(policyConfig)
	if err != nil {
		return nil, err
	}

	c := cfg{
		backoffInitial:      defaultBackoffInitial,
		backoffMax:          defaultBackoffMax,
		dispatchConcurrency: defaultDispatchConcurrency,
	}
	for _, opt := range opts {
		opt(&c)
	}

	return &service{
		subscriber:     subscriber,
		programIDs:     registry.ProgramIDs(),
		registry:       registry,
		aliasByProgram: aliasByProgram,
		classifier:     classify.New(mintDecimals),
		engine:         policy.New(policyConfig),
		notifier:       notifier,
		dispatchSem:    make(chan struct{}, c.dispatchConcurrency),
		backoffInitial: c.backoffInitial,
		backoffMax:     c.backoffMax,
	}, nil
}

func (s *service) Start(ctx context.Context) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isStarted {
		return nil, ErrServiceAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)

	s.closeFunc = func() {
		cancel()
	}

	go s.run(ctx, done)

	s.isStarted = true
	return done, nil
}

// Close stops the reconnect loop and waits up to drainTimeout for any
// notification sends already in flight (spawned by dispatch) to finish,
// per spec.md §5, so a shutdown never silently drops a send that was
// already underway.
func (s *service) Close() {
	s.mu.Lock()
	if s.closeFunc != nil {
		s.closeFunc()
	}
	s.isStarted = false
	s.closeFunc = nil
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.dispatchWG.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(drainTimeout):
		logger.Warn(context.Background(), "stream: drain timeout exceeded, in-flight notifications may be abandoned")
	}
}

// run is the reconnect loop: on every disconnect it backs off and
// resubscribes, until ctx is canceled (clean shutdown, done<-nil) or the
// upstream feed fails authentication persistently (done<-ErrPersistentAuthFailure).
func (s *service) run(ctx context.Context, done chan<- error) {
	defer close(done)

	b := newBackoff(s.backoffInitial, s.backoffMax)
	var authFailures []time.Time

	for {
		if ctx.Err() != nil {
			return
		}

		txCh, err := s.subscriber.Subscribe(ctx, s.programIDs)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			logger.Warn(ctx, "stream subscribe failed", "error", err)

			if authFailures = recordAuthFailure(authFailures, err); len(authFailures) >= authFailureThreshold {
				done <- fmt.Errorf("%w: %w", ErrPersistentAuthFailure, err)
				return
			}

			if !b.wait(ctx) {
				return
			}
			continue
		}

		b.reset()

		streamErr := s.consume(ctx, txCh)
		if ctx.Err() != nil {
			return
		}

		if streamErr != nil {
			logger.Warn(ctx, "stream disconnected", "error", streamErr)

			if authFailures = recordAuthFailure(authFailures, streamErr); len(authFailures) >= authFailureThreshold {
				done <- fmt.Errorf("%w: %w", ErrPersistentAuthFailure, streamErr)
				return
			}
		} else {
			authFailures = nil
		}

		if !b.wait(ctx) {
			return
		}
	}
}

// recordAuthFailure appends now to failures when err is an authentication
// failure, pruning entries older than authFailureWindow. A non-auth error
// resets the window entirely: only *consecutive* auth failures count.
func recordAuthFailure(failures []time.Time, err error) []time.Time {
	if !errors.Is(err, chain.ErrAuthenticationFailure) {
		return nil
	}

	now := time.Now()
	cutoff := now.Add(-authFailureWindow)

	fresh := failures[:0]
	for _, t := range failures {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	return append(fresh, now)
}

// consume drains txCh, processing every transaction's instructions
// sequentially and in order, until the channel closes (ctx canceled) or
// yields a terminal error.
func (s *service) consume(ctx context.Context, txCh <-chan chain.TransactionUpdate) error {
	for {
		update, ok := chflow.Receive(ctx, txCh)
		if !ok {
			return nil
		}

		if update.Err != nil {
			return update.Err
		}

		s.processTransaction(ctx, update.Transaction)
	}
}

func (s *service) processTransaction(ctx context.Context, tx chain.Transaction) {
	ctx, span := startTransactionSpan(ctx, tx.Signature.String())
	defer span.End()

	for _, ix := range tx.Instructions {
		s.processInstruction(ctx, tx, ix)
	}
}

// processInstruction decodes and classifies one instruction (then recurses
// into its inner/CPI instructions, in emit order), resolves it against the
// Policy Engine, and hands any resulting notifications to the bounded
// dispatch pool. Per spec.md §7, a DecodeError or ClassifyError here is
// isolated to this one instruction.
func (s *service) processInstruction(ctx context.Context, tx chain.Transaction, ix chain.Instruction) {
	if alias, known := s.aliasByProgram[ix.ProgramID]; known {
		decoded, ok, err := s.registry.Decode(ix.ProgramID, decode.Instruction{Accounts: ix.Accounts, Data: ix.Data})
		if err != nil {
			logger.Debug(ctx, "decode error", "program", alias, "tx", tx.Signature.String(), "error", err)
		} else if ok {
			recordDecoded(ctx, alias, decoded.Instruction)

			event, err := s.classifier.Classify(ctx, alias, decoded, tx)
			if err != nil {
				logger.Warn(ctx, "classify error", "program", alias, "instruction", decoded.Instruction, "tx", tx.Signature.String(), "error", err)
			} else if notifications := s.engine.Resolve(event); len(notifications) > 0 {
				s.dispatch(ctx, event, notifications)
			}
		}
	}

	// Inner/CPI instructions are walked regardless of the outer
	// instruction's program: a monitored program can be invoked via CPI
	// from an unrelated proxy instruction, and spec.md §3a requires every
	// instruction in the tree to be considered.
	for _, inner := range ix.Inner {
		s.processInstruction(ctx, tx, inner)
	}
}

// dispatch submits one event's full notification fan-out to the bounded
// pool. Acquiring a slot blocks the caller (and therefore the sequential
// instruction loop above it) when the pool is saturated, per spec.md §4.5 —
// "ensuring no unbounded in-flight queue." Once a slot is acquired, the
// actual sends are fire-and-forget: the caller does not wait for them, but
// dispatchWG tracks the goroutine so Close can await it before returning.
func (s *service) dispatch(ctx context.Context, event classify.Event, notifications []policy.Notification) {
	select {
	case s.dispatchSem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	correlationID := uuid.Must(uuid.NewV7()).String()

	// Detach from ctx's cancellation so a Close mid-send lets the send run
	// to completion (bounded by each Sender's own timeout) instead of
	// aborting it outright; Close still caps how long it waits via
	// drainTimeout.
	sendCtx := context.WithoutCancel(ctx)

	s.dispatchWG.Add(1)
	go func() {
		defer s.dispatchWG.Done()
		defer func() { <-s.dispatchSem }()

		results := s.notifier.Dispatch(sendCtx, notifications)
		for _, result := range results {
			recordNotification(ctx, string(result.Notification.Destination), result.Err == nil)

			if result.Err != nil {
				logger.Warn(ctx, "notify error",
					"correlation_id", correlationID,
					"destination", result.Notification.Destination,
					"tx", event.TransactionSignature,
					"error", result.Err,
				)
			}
		}
	}()
}

// Copyright (c) 2025 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/Shadytel/pyossi/internal/ossi"
)

const defaultGreetingLines = 2

var (
	ErrClosed         = errors.New("broker is closed")
	ErrNotStarted     = errors.New("broker is not started")
	ErrAlreadyStarted = errors.New("broker is already started")
	ErrQueueFull      = errors.New("broker queue is full")
)

// Dialer establishes the byte stream to the switch's administration session.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

type result struct {
	resp *ossi.Response
	err  error
}

// job is a command waiting for, or going through, execution. done is
// buffered so the worker never blocks on a caller that stopped waiting.
type job struct {
	id   uuid.UUID
	ctx  context.Context
	req  ossi.Request
	done chan result
}

// Broker owns the single OSSI session and runs submitted commands one at a
// time, in submission order. The protocol has no request identifiers, so a
// response belongs to whichever transaction is on the wire.
type Broker struct {
	registry      *ossi.Registry
	dial          Dialer
	log           zerolog.Logger
	tracer        trace.Tracer
	greetingLines int
	maxLineSize   int
	queueDepth    int

	state atomic.Int32
	stats stats

	mu      sync.Mutex
	pending []*job
	// err is set once, when the broker closes, and is never cleared.
	err     error
	conn    io.ReadWriteCloser
	running bool

	wake      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeConn sync.Once
	connErr   error
}

// Option configures a Broker.
type Option func(*Broker)

// New returns a Broker for the nouns of registry, which is sealed.
// The session is established by Start.
func New(registry *ossi.Registry, dial Dialer, options ...Option) *Broker {
	b := &Broker{
		registry:      registry.Seal(),
		dial:          dial,
		log:           log.Logger,
		tracer:        tracenoop.NewTracerProvider().Tracer(""),
		greetingLines: defaultGreetingLines,
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	for _, opt := range options {
		opt(b)
	}

	return b
}

// Start connects to the switch, drops the login greeting and starts the
// worker. A failure to connect closes the Broker.
func (b *Broker) Start(ctx context.Context) error {
	if !b.state.CompareAndSwap(int32(StateUnstarted), int32(StateConnecting)) {
		if err := b.Err(); err != nil {
			return err
		}

		return ErrAlreadyStarted
	}

	b.log.Info().Msg("Connecting to OSSI session")

	conn, err := b.dial(ctx)
	if err != nil {
		err = fmt.Errorf("%w: connecting: %w", ossi.ErrTransport, err)
		b.fail(err)

		return err
	}

	b.mu.Lock()
	if b.err != nil {
		b.mu.Unlock()
		//nolint:errcheck // the broker was closed while connecting
		conn.Close()

		return b.err
	}

	b.conn = conn
	b.mu.Unlock()

	client, err := ossi.NewClient(conn, b.registry, b.greetingLines, b.maxLineSize)
	if err != nil {
		b.fail(err)
		return err
	}

	// fail stores StateClosed after setting err, so under mu the state can
	// only move to Ready while the Broker is still open.
	b.mu.Lock()
	if b.err != nil || !b.state.CompareAndSwap(int32(StateConnecting), int32(StateReady)) {
		err := b.err
		b.mu.Unlock()

		if err == nil {
			err = ErrClosed
		}

		return err
	}

	b.running = true
	b.mu.Unlock()

	go b.run(client)

	b.log.Info().Msg("Connected to OSSI session")

	return nil
}

// Submit runs cmd and waits for its own response. Names that cannot be
// mapped fail with *ossi.SchemaError before anything is queued.
//
// Cancelling ctx only stops the wait: a command already on the wire is
// completed and its result dropped, a command still queued is skipped.
func (b *Broker) Submit(ctx context.Context, cmd ossi.Command) (*ossi.Response, error) {
	req, err := b.registry.BuildRequest(cmd)
	if err != nil {
		return nil, err
	}

	j := &job{
		id:   uuid.New(),
		ctx:  ctx,
		req:  req,
		done: make(chan result, 1),
	}

	if err := b.enqueue(j); err != nil {
		return nil, err
	}

	b.stats.submitted.Add(1)

	select {
	case r := <-j.done:
		return r.resp, r.err
	case <-ctx.Done():
		b.stats.abandoned.Add(1)

		b.log.Debug().Str("id", j.id.String()).Str("command", req.Command).
			Msg("Caller stopped waiting for command")

		return nil, ctx.Err()
	}
}

func (b *Broker) enqueue(j *job) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		if errors.Is(b.err, ErrClosed) {
			return b.err
		}

		return fmt.Errorf("%w: %w", ErrClosed, b.err)
	}

	if State(b.state.Load()) == StateUnstarted {
		return ErrNotStarted
	}

	if b.queueDepth > 0 && len(b.pending) >= b.queueDepth {
		return ErrQueueFull
	}

	b.pending = append(b.pending, j)
	b.signal()

	return nil
}

func (b *Broker) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// next blocks until a job is queued. It returns false once the Broker is
// closed.
func (b *Broker) next() (*job, bool) {
	for {
		b.mu.Lock()

		if b.err != nil {
			b.mu.Unlock()
			return nil, false
		}

		if len(b.pending) > 0 {
			j := b.pending[0]
			b.pending[0] = nil
			b.pending = b.pending[1:]
			b.mu.Unlock()

			return j, true
		}

		b.mu.Unlock()

		<-b.wake
	}
}

func (b *Broker) run(client *ossi.Client) {
	defer close(b.stopped)
	defer b.closeSession()

	for {
		j, ok := b.next()
		if !ok {
			return
		}

		b.execute(client, j)
	}
}

func (b *Broker) execute(client *ossi.Client, j *job) {
	logger := b.log.With().Str("id", j.id.String()).Str("command", j.req.Command).Logger()

	// Nothing was sent yet, so a command nobody waits for can be dropped
	// without disturbing the session.
	if err := j.ctx.Err(); err != nil {
		b.stats.skipped.Add(1)
		logger.Debug().Msg("Skipping abandoned command")

		j.done <- result{err: err}

		return
	}

	if !b.state.CompareAndSwap(int32(StateReady), int32(StateExecuting)) {
		j.done <- result{err: ErrClosed}
		return
	}

	_, span := b.tracer.Start(j.ctx, "ossi.transaction",
		trace.WithAttributes(
			attribute.String("ossi.command", j.req.Command),
			attribute.String("ossi.noun", j.req.Noun.String()),
			attribute.Int("ossi.fields", len(j.req.Codes)),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := client.Do(j.req)
	duration := time.Since(start)

	b.state.CompareAndSwap(int32(StateExecuting), int32(StateReady))

	var protoErr *ossi.ProtocolError

	switch {
	case err == nil:
		b.stats.completed.Add(1)
		span.SetAttributes(attribute.Int("ossi.rows", len(resp.Rows)))
		logger.Debug().Dur("duration", duration).Int("rows", len(resp.Rows)).Msg("Command completed")
	case errors.As(err, &protoErr):
		b.stats.protocolErrors.Add(1)
		span.SetStatus(codes.Error, protoErr.Message)
		logger.Warn().Str("message", protoErr.Message).Msg("Switch rejected command")
	case errors.Is(err, ossi.ErrTransport):
		b.stats.transportErrors.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		logger.Error().Err(err).Msg("OSSI session failed")

		j.done <- result{err: err}

		b.fail(err)

		return
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Msg("Command failed")
	}

	j.done <- result{resp: resp, err: err}
}

// fail closes the Broker with err: every queued command fails with err and
// the session is torn down. Only the first call has an effect.
func (b *Broker) fail(err error) {
	b.mu.Lock()

	if b.err != nil {
		b.mu.Unlock()
		return
	}

	b.err = err
	pending := b.pending
	b.pending = nil

	b.mu.Unlock()

	b.state.Store(int32(StateClosed))

	for _, j := range pending {
		j.done <- result{err: err}
	}

	b.signal()
	b.closeSession()
	close(b.done)
}

func (b *Broker) closeSession() {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()

	if conn == nil {
		return
	}

	b.closeConn.Do(func() {
		b.connErr = conn.Close()
	})
}

// Close fails all queued commands with ErrClosed, interrupts the command on
// the wire and waits for the worker to stop.
func (b *Broker) Close() error {
	b.fail(ErrClosed)

	b.mu.Lock()
	running := b.running
	b.mu.Unlock()

	if running {
		<-b.stopped
	}

	b.closeSession()

	return b.connErr
}

// Done is closed when the Broker closes.
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

// Err returns the reason the Broker closed, or nil while it is open.
func (b *Broker) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.err
}

// State returns the current lifecycle state.
func (b *Broker) State() State {
	return State(b.state.Load())
}

// QueueLen returns the number of commands waiting for execution.
func (b *Broker) QueueLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.pending)
}

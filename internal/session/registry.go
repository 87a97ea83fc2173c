// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session runs research sessions in the background and keeps their
// event channels and results addressable by session ID.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrNotFound is returned for IDs the registry does not hold.
var ErrNotFound = errors.New("session not found")

// DoneMessage is the message of the event pushed after a run returns.
const DoneMessage = "Session complete."

// Runner executes one session. *orchestrator.Orchestrator satisfies it.
type Runner interface {
	EventBufferSize() int
	RunWithID(ctx context.Context, id, topic string, events chan<- types.Event) *types.Session
}

// Options configures a Registry.
type Options struct {
	// MaxSessions bounds the number of finished sessions held; the least
	// recently used is dropped first. Running sessions are never dropped.
	// Zero means unbounded.
	MaxSessions int

	// TTL is how long a session stays addressable after it finishes. Zero
	// means forever.
	TTL time.Duration

	// OnComplete, when set, runs after each session finishes and before
	// the done event is queued.
	OnComplete func(s *types.Session)
}

type entry struct {
	events chan types.Event
	done   chan struct{}

	mu     sync.Mutex
	result *types.Session
}

func (e *entry) finish(s *types.Session) {
	e.mu.Lock()
	e.result = s
	e.mu.Unlock()
	close(e.done)
}

func (e *entry) get() *types.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Registry starts sessions and holds them until they expire.
type Registry struct {
	runner     Runner
	logger     *zap.Logger
	onComplete func(*types.Session)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	running  map[string]*entry
	sessions *expirable.LRU[string, *entry]
}

// NewRegistry returns a Registry whose sessions run under a child of ctx.
// Close cancels that context and waits for running sessions.
func NewRegistry(ctx context.Context, runner Runner, opts Options, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	runCtx, cancel := context.WithCancel(ctx)
	r := &Registry{
		runner:     runner,
		logger:     logger,
		onComplete: opts.OnComplete,
		ctx:        runCtx,
		cancel:     cancel,
		running:    make(map[string]*entry),
	}
	r.sessions = expirable.NewLRU(opts.MaxSessions, func(id string, _ *entry) {
		logger.Debug("session evicted", zap.String("session", id))
	}, opts.TTL)
	return r
}

// Start launches a session for topic and returns its ID.
func (r *Registry) Start(topic string) string {
	id := types.NewSessionID()
	e := &entry{
		events: make(chan types.Event, r.runner.EventBufferSize()+1),
		done:   make(chan struct{}),
	}
	r.mu.Lock()
	r.running[id] = e
	r.mu.Unlock()
	r.logger.Info("session started", zap.String("session", id), zap.String("topic", topic))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		s := r.runner.RunWithID(r.ctx, id, topic, e.events)
		e.finish(s)
		r.retire(id, e)
		if r.onComplete != nil {
			r.onComplete(s)
		}
		select {
		case e.events <- types.Event{Stage: types.StageDone, Message: DoneMessage}:
		default:
			r.logger.Warn("done event dropped", zap.String("session", id))
		}
	}()
	return id
}

// retire moves a finished session from the running set into the LRU.
func (r *Registry) retire(id string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions.Add(id, e)
	delete(r.running, id)
}

func (r *Registry) lookup(id string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.running[id]; ok {
		return e, true
	}
	return r.sessions.Get(id)
}

// Events returns the event channel of session id.
func (r *Registry) Events(id string) (<-chan types.Event, bool) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, false
	}
	return e.events, true
}

// Result returns the finished session id. It reports false while the
// session is still running.
func (r *Registry) Result(id string) (*types.Session, bool) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, false
	}
	s := e.get()
	return s, s != nil
}

// Wait blocks until session id finishes or ctx ends.
func (r *Registry) Wait(ctx context.Context, id string) (*types.Session, error) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	select {
	case <-e.done:
		return e.get(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of sessions held, running or finished.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running) + r.sessions.Len()
}

// Close cancels running sessions and waits for them to return.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
}

package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentmesh/platform/internal/clock"
	"github.com/agentmesh/platform/internal/errs"
	"github.com/agentmesh/platform/internal/logging"
)

// LoopBody is invoked repeatedly by a spawned background loop until shutdown.
// Implementations should return promptly after observing ctx.Done() or the
// agent's shutdown signal; that is the loop's suspension point (spec.md §5).
type LoopBody func(ctx context.Context) error

// OperationHandler implements one named public operation.
type OperationHandler func(ctx context.Context, params map[string]any) (any, error)

// Base wraps the framework services every agent composes with: named task
// queues, bus subscriptions, background loops, heartbeats, and an operation
// dispatch table (spec.md §4.1, §9 "explicit dispatch table, never
// reflection/duck-typing"). Concrete agents embed *Base and add domain state.
type Base struct {
	id      string
	name    string
	runtime *Runtime
	bus     *Bus
	logger  *logging.Logger
	clk     clock.Clock

	mu          sync.Mutex
	queues      map[string]any // name -> *TaskQueue[T], type-erased
	loops       []namedLoop
	subs        []*Subscription
	operations  map[string]OperationHandler
	stopCh      chan struct{}
	stopOnce    sync.Once
	loopWG      sync.WaitGroup
	stopDeadline time.Duration
}

type namedLoop struct {
	name string
	body LoopBody
	tick time.Duration
}

// NewBase constructs the framework services for one agent. bus may be nil for
// agents that never publish or subscribe.
func NewBase(id, name string, bus *Bus, logger *logging.Logger) *Base {
	if logger == nil {
		logger = logging.NewFromEnv(name)
	}
	return &Base{
		id:           id,
		name:         name,
		runtime:      NewRuntime(),
		bus:          bus,
		logger:       logger,
		clk:          clock.New(),
		queues:       make(map[string]any),
		operations:   make(map[string]OperationHandler),
		stopCh:       make(chan struct{}),
		stopDeadline: 10 * time.Second,
	}
}

// SetClock overrides the time source used for heartbeats and loop ticking,
// for deterministic tests. Must be called before StartLoops.
func (b *Base) SetClock(c clock.Clock) {
	b.clk = c
}

// ID returns the agent id.
func (b *Base) ID() string { return b.id }

// Runtime returns the agent's AgentRuntime.
func (b *Base) Runtime() *Runtime { return b.runtime }

// Logger returns the agent's logger.
func (b *Base) Logger() *logging.Logger { return b.logger }

// SetStopDeadline overrides the wall-clock deadline Stop waits for in-flight
// loops to observe the shutdown signal before returning anyway.
func (b *Base) SetStopDeadline(d time.Duration) {
	if d > 0 {
		b.stopDeadline = d
	}
}

// RegisterOperation adds op to the agent's explicit dispatch table.
func (b *Base) RegisterOperation(op string, handler OperationHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.operations[op] = handler
}

// Dispatch looks up op in the dispatch table and invokes it, returning
// CodeUnknownOperation if nothing is registered for that name.
func (b *Base) Dispatch(ctx context.Context, op string, params map[string]any) (any, error) {
	b.mu.Lock()
	handler, ok := b.operations[op]
	b.mu.Unlock()
	if !ok {
		return nil, errs.UnknownOperation(op)
	}
	return handler(ctx, params)
}

// RegisterQueue creates a new named TaskQueue[T] owned by this agent.
// Duplicate names fail loudly since queue ownership is fixed at registration.
func RegisterQueue[T any](b *Base, name string, capacity int) (*TaskQueue[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.queues[name]; exists {
		return nil, fmt.Errorf("queue %q already registered on agent %s", name, b.id)
	}
	q := NewTaskQueue[T](name, capacity)
	b.queues[name] = q
	return q, nil
}

// Queue retrieves a previously registered queue by name and type.
func Queue[T any](b *Base, name string) (*TaskQueue[T], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		return nil, false
	}
	tq, ok := q.(*TaskQueue[T])
	return tq, ok
}

// QueueDepths returns the current depth of every registered queue, keyed by name.
func (b *Base) QueueDepths() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	depths := make(map[string]int, len(b.queues))
	for name, q := range b.queues {
		if depther, ok := q.(interface{ Depth() int }); ok {
			depths[name] = depther.Depth()
		}
	}
	return depths
}

// SpawnLoop registers a long-running background activity supervised by the
// agent. The body runs once per tick (or back-to-back with no tick if tick
// is zero) until Stop's shutdown signal fires. Panics and errors are caught,
// classified as api_error by default, and reported to onError.
func (b *Base) SpawnLoop(name string, tick time.Duration, body LoopBody) {
	b.mu.Lock()
	b.loops = append(b.loops, namedLoop{name: name, body: body, tick: tick})
	b.mu.Unlock()
}

// StartLoops launches every registered loop as a goroutine supervised by ctx
// and the agent's internal stop channel. onError is invoked (synchronously,
// per spec.md §4.2) whenever a loop iteration returns an error or panics.
func (b *Base) StartLoops(ctx context.Context, onError func(kind ErrorKind, data map[string]any)) {
	b.mu.Lock()
	loops := append([]namedLoop{}, b.loops...)
	b.mu.Unlock()

	for _, l := range loops {
		l := l
		b.loopWG.Add(1)
		go b.runLoop(ctx, l, onError)
	}
}

func (b *Base) runLoop(ctx context.Context, l namedLoop, onError func(kind ErrorKind, data map[string]any)) {
	defer b.loopWG.Done()

	runOnce := func() {
		defer func() {
			if r := recover(); r != nil {
				if onError != nil {
					onError(ErrorKindAPI, map[string]any{"loop": l.name, "panic": fmt.Sprintf("%v", r)})
				}
			}
		}()
		if err := l.body(ctx); err != nil {
			if onError != nil {
				onError(ErrorKindAPI, map[string]any{"loop": l.name, "error": err.Error()})
			}
		}
		b.Heartbeat()
	}

	if l.tick <= 0 {
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			default:
				runOnce()
			}
		}
	}

	ticker := b.clk.NewTicker(l.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case <-ticker.C():
			runOnce()
		}
	}
}

// Heartbeat updates the AgentRuntime's last-heartbeat timestamp. Called
// automatically at the end of each loop iteration.
func (b *Base) Heartbeat() {
	b.runtime.Heartbeat(b.clk.Now())
}

// Emit publishes a notification-shaped message to the bus (spec.md §4.1).
// The framework does not retry notification delivery.
func (b *Base) Emit(ctx context.Context, topic string, payload map[string]any) []Overflow {
	if b.bus == nil {
		return nil
	}
	return b.bus.Publish(ctx, topic, payload, logging.TraceID(ctx))
}

// Subscribe subscribes this agent to a bus topic with a bounded delivery
// queue and launches a goroutine invoking callback for each message until
// the returned Subscription is unsubscribed or Stop is called.
func (b *Base) Subscribe(topic string, depth int, callback func(Message)) *Subscription {
	if b.bus == nil {
		return nil
	}
	sub := b.bus.Subscribe(topic, depth)

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		for msg := range sub.Messages() {
			callback(msg)
		}
	}()
	return sub
}

// StopChan exposes the shutdown signal for custom loop implementations that
// don't go through SpawnLoop.
func (b *Base) StopChan() <-chan struct{} { return b.stopCh }

// BeginDrain closes the shutdown signal exactly once, transitions the
// runtime to Draining, and waits up to the stop deadline for loops to exit.
func (b *Base) BeginDrain(ctx context.Context) {
	b.runtime.SetStatus(StatusDraining)
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})

	done := make(chan struct{})
	go func() {
		b.loopWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(b.stopDeadline):
	case <-ctx.Done():
	}

	b.mu.Lock()
	subs := append([]*Subscription{}, b.subs...)
	b.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

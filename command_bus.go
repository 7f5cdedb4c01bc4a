package billing

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

// queuedCommand is a command enqueued for processing, with the caller's
// context and a channel to return the outcome on.
type queuedCommand struct {
	Ctx        context.Context
	Command    Command
	ResponseCh chan<- commandOutcome
}

type commandOutcome struct {
	Result AppendResult
	Err    error
}

// commandBus is an in-memory command dispatcher that enforces the
// single-writer-per-aggregate discipline the optimistic version check relies
// on: commands are sharded by origin id onto per-shard worker goroutines, so
// no two commands for the same aggregate are ever processed concurrently.
//
// The bus supports typed handler registration via Register, panic recovery in
// handlers, and a safe shutdown that waits for in-flight commands.
type commandBus struct {
	handlers   map[string]CommandHandler
	queues     []chan queuedCommand
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
	shardCount int
}

// NewCommandBus creates a commandBus with shardCount worker queues of the
// given buffer size. Workers start immediately.
func NewCommandBus(bufferSize int, shardCount int) *commandBus {
	if shardCount <= 0 {
		shardCount = 1
	}

	bus := &commandBus{
		queues:     make([]chan queuedCommand, shardCount),
		handlers:   make(map[string]CommandHandler),
		stopCh:     make(chan struct{}),
		shardCount: shardCount,
	}

	for i := 0; i < shardCount; i++ {
		bus.queues[i] = make(chan queuedCommand, bufferSize)
		go bus.worker(bus.queues[i])
	}

	return bus
}

// Dispatch enqueues a command on its aggregate's shard and waits for the
// result. Safe to call concurrently.
func (b *commandBus) Dispatch(ctx context.Context, cmd Command) (AppendResult, error) {
	// Join the drain group before the stop check: Stop waits on the group
	// before closing the shard queues, so a dispatch that passes the check
	// can still enqueue safely.
	b.wg.Add(1)
	defer b.wg.Done()

	select {
	case <-b.stopCh:
		return AppendResult{Successful: false}, fmt.Errorf("command bus is stopped")
	default:
	}

	responseCh := make(chan commandOutcome, 1)

	shard := b.getShard(cmd.OriginID)

	select {
	case b.queues[shard] <- queuedCommand{Ctx: ctx, Command: cmd, ResponseCh: responseCh}:
		select {
		case outcome := <-responseCh:
			return outcome.Result, outcome.Err
		case <-ctx.Done():
			return AppendResult{Successful: false}, ctx.Err()
		}
	case <-ctx.Done():
		return AppendResult{Successful: false}, ctx.Err()
	}
}

// worker processes commands from a single shard queue.
func (b *commandBus) worker(queue chan queuedCommand) {
	for cmd := range queue {
		name := cmd.Command.Payload.CommandType()

		b.mu.RLock()
		h, exists := b.handlers[name]
		b.mu.RUnlock()

		if !exists {
			cmd.ResponseCh <- commandOutcome{
				Result: AppendResult{Successful: false},
				Err:    fmt.Errorf("no handler for command %s", name),
			}
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					cmd.ResponseCh <- commandOutcome{
						Result: AppendResult{Successful: false},
						Err:    fmt.Errorf("panic in handler: %v", r),
					}
				}
			}()

			res, err := h(cmd.Ctx, cmd.Command)
			cmd.ResponseCh <- commandOutcome{Result: res, Err: err}
		}()
	}
}

func (b *commandBus) getShard(originID string) int {
	hash := fnv.New32a()
	hash.Write([]byte(originID))
	return int(hash.Sum32()) % b.shardCount
}

// Register adds a handler for the payload type P, keyed by its CommandType.
// Panics if a handler is already registered for that payload.
func Register[P CommandPayload](b *commandBus, handler CommandHandler) {
	var zero P
	name := zero.CommandType()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[name]; exists {
		panic(fmt.Sprintf("handler already registered for command type %s", name))
	}

	b.handlers[name] = func(ctx context.Context, cmd Command) (AppendResult, error) {
		if _, ok := cmd.Payload.(P); !ok {
			return AppendResult{Successful: false}, fmt.Errorf("expected command payload %s but got %s", name, TypeName(cmd.Payload))
		}
		return handler(ctx, cmd)
	}
}

// Stop shuts the bus down: it stops accepting new commands, closes the shard
// queues and waits for in-flight commands to finish.
func (b *commandBus) Stop() {
	close(b.stopCh)
	b.wg.Wait()
	for _, q := range b.queues {
		close(q)
	}
}

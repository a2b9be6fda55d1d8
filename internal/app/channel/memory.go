package channel

import (
	"context"
	"sync"
)

// MemoryFactory is a single-process Factory backed by plain slices guarded
// by a mutex. Durability across a process restart is not provided — use
// RedisFactory for that; this exists for tests and single-process dev mode.
type MemoryFactory struct {
	mu       sync.Mutex
	actorMsg map[string]*memoryQueue
	commands *memoryCommandQueue
	workers  map[string]*memoryWorkerChannel
}

// NewMemoryFactory builds an empty in-memory channel factory.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{
		actorMsg: map[string]*memoryQueue{},
		commands: &memoryCommandQueue{},
		workers:  map[string]*memoryWorkerChannel{},
	}
}

func (f *MemoryFactory) ActorMsgChannel(actorDBID string) ActorMsgChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.actorMsg[actorDBID]
	if !ok {
		q = &memoryQueue{}
		f.actorMsg[actorDBID] = q
	}
	return q
}

func (f *MemoryFactory) CommandChannel() CommandChannel {
	return f.commands
}

func (f *MemoryFactory) WorkerChannel(chName string) WorkerChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.workers[chName]
	if !ok {
		w = &memoryWorkerChannel{}
		f.workers[chName] = w
	}
	return w
}

// Commands exposes the buffered commands for assertions in tests.
func (f *MemoryFactory) Commands() []Command {
	return f.commands.snapshot()
}

type memoryQueue struct {
	mu   sync.Mutex
	msgs []Message
}

func (q *memoryQueue) PutMsg(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *memoryQueue) ApproxLen(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs), nil
}

type memoryCommandQueue struct {
	mu   sync.Mutex
	cmds []Command
}

func (c *memoryCommandQueue) PutCmd(_ context.Context, cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmds = append(c.cmds, cmd)
	return nil
}

func (c *memoryCommandQueue) snapshot() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Command, len(c.cmds))
	copy(out, c.cmds)
	return out
}

type memoryWorkerChannel struct {
	mu          sync.Mutex
	shutdownReq bool
}

func (w *memoryWorkerChannel) Shutdown(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shutdownReq = true
	return nil
}

// ShutdownRequested reports whether Shutdown was called; exposed for tests.
func (w *memoryWorkerChannel) ShutdownRequested() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shutdownReq
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrHandlerNotFound = errors.New("command handler not found")

type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string]Handler)}
}

func (b *Bus) Register(commandType string, handler Handler) {
	b.mu.Lock()
	b.handlers[commandType] = handler
	b.mu.Unlock()
}

// Execute validates cmd and runs the handler registered for its type.
func (b *Bus) Execute(ctx context.Context, cmd Command) (Result, error) {
	b.mu.RLock()
	h, ok := b.handlers[cmd.CommandType()]
	b.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrHandlerNotFound, cmd.CommandType())
	}
	if err := cmd.Validate(); err != nil {
		return Result{}, err
	}
	return h.Handle(ctx, cmd)
}

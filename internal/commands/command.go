package commands

import (
	"context"

	"github.com/JoelGresham/teamPoll/internal/events"
)

type Command interface {
	CommandType() string
	Validate() error
}

// Result carries what a handler produced: the affected session, an optional value
// for the caller and the events the gateway has to deliver.
type Result struct {
	AggregateID string
	Payload     interface{}
	Events      []events.Event
}

type Handler interface {
	Handle(ctx context.Context, cmd Command) (Result, error)
}

type HandlerFunc func(ctx context.Context, cmd Command) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}

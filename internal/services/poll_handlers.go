package services

import (
	"context"

	"github.com/JoelGresham/teamPoll/internal/commands"
	poll_errors "github.com/JoelGresham/teamPoll/pkg/errors"
)

// RegisterHandlers binds every poll command to one state machine operation.
func (s *PollService) RegisterHandlers(bus *commands.Bus) {
	if bus == nil {
		return
	}

	// poll.create - Create a pending poll (or a rerun when OriginalPollID is set)
	bus.Register(commands.TypeCreatePoll, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.CreatePollCommand)
		if !ok {
			return commands.Result{}, poll_errors.ErrValidation
		}
		session, evts, err := s.CreateSession(ctx, c.Spec, c.OriginalPollID)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: session.ID, Payload: session, Events: evts}, nil
	}))

	// poll.update - Replace questions of a never-started poll
	bus.Register(commands.TypeUpdatePoll, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.UpdatePollCommand)
		if !ok {
			return commands.Result{}, poll_errors.ErrValidation
		}
		session, err := s.UpdateSession(ctx, c.SessionID, c.Spec)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: session.ID, Payload: session}, nil
	}))

	bus.Register(commands.TypeStartPoll, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.StartPollCommand)
		if !ok {
			return commands.Result{}, poll_errors.ErrValidation
		}
		session, evts, err := s.StartSession(ctx, c.SessionID, c.ActorID)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.SessionID, Payload: session, Events: evts}, nil
	}))

	bus.Register(commands.TypeRevealQuestion, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.RevealQuestionCommand)
		if !ok {
			return commands.Result{}, poll_errors.ErrValidation
		}
		question, evts, err := s.RevealQuestion(ctx, c.SessionID, c.QuestionIndex, c.ActorID)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.SessionID, Payload: question, Events: evts}, nil
	}))

	bus.Register(commands.TypeCloseQuestion, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.CloseQuestionCommand)
		if !ok {
			return commands.Result{}, poll_errors.ErrValidation
		}
		evts, err := s.CloseQuestion(ctx, c.SessionID, c.ActorID)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.SessionID, Events: evts}, nil
	}))

	// poll.submit_response - Record (or replace) a participant answer
	bus.Register(commands.TypeSubmitResponse, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.SubmitResponseCommand)
		if !ok {
			return commands.Result{}, poll_errors.ErrValidation
		}
		responseID, evts, err := s.SubmitResponse(ctx, Submission{
			SessionID:    c.SessionID,
			QuestionID:   c.QuestionID,
			Answer:       c.Answer,
			ConnectionID: c.ConnectionID,
			Origin:       c.Origin,
		})
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.SessionID, Payload: responseID, Events: evts}, nil
	}))

	bus.Register(commands.TypeEndPoll, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.EndPollCommand)
		if !ok {
			return commands.Result{}, poll_errors.ErrValidation
		}
		session, evts, err := s.EndSession(ctx, c.SessionID, c.ActorID)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.SessionID, Payload: session, Events: evts}, nil
	}))

	bus.Register(commands.TypeRerunPoll, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.RerunPollCommand)
		if !ok {
			return commands.Result{}, poll_errors.ErrValidation
		}
		session, evts, err := s.RerunSession(ctx, c.SessionID)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: session.ID, Payload: session, Events: evts}, nil
	}))

	bus.Register(commands.TypeDeletePoll, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.DeletePollCommand)
		if !ok {
			return commands.Result{}, poll_errors.ErrValidation
		}
		evts, err := s.DeleteSession(ctx, c.SessionID)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.SessionID, Events: evts}, nil
	}))

	bus.Register(commands.TypeJoinSession, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.JoinSessionCommand)
		if !ok {
			return commands.Result{}, poll_errors.ErrValidation
		}
		evts, err := s.JoinSession(ctx, c.SessionID, c.ConnectionID)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.SessionID, Events: evts}, nil
	}))

	bus.Register(commands.TypeAdminJoin, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.AdminJoinCommand)
		if !ok {
			return commands.Result{}, poll_errors.ErrValidation
		}
		evts, err := s.AdminJoin(ctx, c.SessionID, c.ConnectionID)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.SessionID, Events: evts}, nil
	}))

	bus.Register(commands.TypeRequestResults, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.RequestResultsCommand)
		if !ok {
			return commands.Result{}, poll_errors.ErrValidation
		}
		evts, err := s.RequestResults(ctx, c.SessionID, c.QuestionID, c.ConnectionID)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.SessionID, Events: evts}, nil
	}))

	bus.Register(commands.TypeDisconnect, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.DisconnectCommand)
		if !ok {
			return commands.Result{}, poll_errors.ErrValidation
		}
		return commands.Result{Events: s.Disconnect(ctx, c.ConnectionID)}, nil
	}))
}

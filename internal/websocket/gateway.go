package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/JoelGresham/teamPoll/internal/commands"
	"github.com/JoelGresham/teamPoll/internal/events"
	"github.com/JoelGresham/teamPoll/internal/transport/httpdto"
	poll_errors "github.com/JoelGresham/teamPoll/pkg/errors"
)

// Inbound message types
const (
	MsgAdminJoin      = "admin_join"
	MsgJoinSession    = "join_session"
	MsgStartPoll      = "start_poll"
	MsgRevealQuestion = "reveal_question"
	MsgCloseQuestion  = "close_question"
	MsgSubmitResponse = "submit_response"
	MsgEndPoll        = "end_poll"
	MsgRequestResults = "request_results"
	MsgPing           = "ping"
)

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type          string          `json:"type"`
	SessionID     string          `json:"session_id,omitempty"`
	QuestionID    int64           `json:"question_id,omitempty"`
	QuestionIndex *int            `json:"question_index,omitempty"`
	Answer        json.RawMessage `json:"answer,omitempty"`
}

// Gateway turns socket frames into bus commands and delivers the resulting events
// to hub channels and the Redis mirror.
type Gateway struct {
	hub      *Hub
	bus      *commands.Bus
	resolver events.ChannelResolver
	bridge   *RedisBridge
	logger   *Logger
}

func NewGateway(hub *Hub, bus *commands.Bus, bridge *RedisBridge, logger *Logger) *Gateway {
	return &Gateway{
		hub:      hub,
		bus:      bus,
		resolver: events.NewAudienceChannelResolver(),
		bridge:   bridge,
		logger:   logger,
	}
}

// Attach subscribes a live connection to an audience channel.
func (g *Gateway) Attach(connID string, audience events.Audience) {
	client, ok := g.hub.Client(connID)
	if !ok {
		return
	}
	if channel := events.ChannelFor(audience); channel != "" {
		g.hub.Subscribe(client, channel)
	}
}

// Deliver sends events to their audiences in order. The poll service calls it
// under the session lock, so it never blocks on a socket or on Redis.
func (g *Gateway) Deliver(ctx context.Context, evts []events.Event) {
	if len(evts) == 0 {
		return
	}
	for _, e := range evts {
		data, err := events.Encode(e)
		if err != nil {
			g.logger.Error("encode event", e.SessionID, "", err, zap.String("type", e.Type))
			continue
		}
		for _, channel := range g.resolver.ResolveChannels(e) {
			g.hub.Broadcast(channel, data)
		}
		if e.Type == events.TypeSessionDeleted {
			g.hub.DropChannel(events.ParticipantsChannel(e.SessionID))
			g.hub.DropChannel(events.AdminsChannel(e.SessionID))
		}
	}
	g.bridge.Forward(ctx, evts)
}

func (g *Gateway) HandleMessage(ctx context.Context, client *Client, message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		g.replyError(client, "", fmt.Errorf("%w: malformed message", poll_errors.ErrValidation))
		return
	}
	if msg.Type == MsgPing {
		g.Deliver(ctx, []events.Event{events.New(events.TypePong, "", nil, events.Connection(client.ID))})
		return
	}

	cmd, err := toCommand(msg, client)
	if err != nil {
		g.replyError(client, msg.SessionID, err)
		return
	}
	// events are delivered by the service through Deliver
	if _, err := g.bus.Execute(ctx, cmd); err != nil {
		g.replyError(client, msg.SessionID, err)
	}
}

// Disconnect releases whatever the connection held and removes it from the hub.
func (g *Gateway) Disconnect(ctx context.Context, client *Client) {
	_, err := g.bus.Execute(ctx, commands.DisconnectCommand{ConnectionID: client.ID})
	g.hub.Unregister(client)
	if err != nil {
		g.logger.Error("disconnect", "", client.ID, err)
		return
	}
	g.logger.Info("disconnected", "", client.ID)
}

func (g *Gateway) replyError(client *Client, sessionID string, err error) {
	if !poll_errors.IsDomain(err) {
		g.logger.Error("command failed", sessionID, client.ID, err)
	}
	evt := events.Error(client.ID, sessionID, poll_errors.Message(err), poll_errors.Code(err))
	data, encErr := events.Encode(evt)
	if encErr != nil {
		return
	}
	g.hub.Broadcast(events.ConnectionChannel(client.ID), data)
}

func toCommand(msg ClientMessage, client *Client) (commands.Command, error) {
	switch msg.Type {
	case MsgAdminJoin:
		return commands.AdminJoinCommand{SessionID: msg.SessionID, ConnectionID: client.ID}, nil
	case MsgJoinSession:
		return commands.JoinSessionCommand{SessionID: msg.SessionID, ConnectionID: client.ID}, nil
	case MsgStartPoll:
		return commands.StartPollCommand{SessionID: msg.SessionID, ActorID: client.ID}, nil
	case MsgRevealQuestion:
		if msg.QuestionIndex == nil {
			return nil, fmt.Errorf("%w: question_index is required", poll_errors.ErrValidation)
		}
		return commands.RevealQuestionCommand{SessionID: msg.SessionID, QuestionIndex: *msg.QuestionIndex, ActorID: client.ID}, nil
	case MsgCloseQuestion:
		return commands.CloseQuestionCommand{SessionID: msg.SessionID, ActorID: client.ID}, nil
	case MsgSubmitResponse:
		answer, err := httpdto.ParseAnswer(msg.Answer)
		if err != nil {
			return nil, err
		}
		return commands.SubmitResponseCommand{
			SessionID:    msg.SessionID,
			QuestionID:   msg.QuestionID,
			Answer:       answer,
			ConnectionID: client.ID,
			Origin:       client.Origin,
		}, nil
	case MsgEndPoll:
		return commands.EndPollCommand{SessionID: msg.SessionID, ActorID: client.ID}, nil
	case MsgRequestResults:
		return commands.RequestResultsCommand{SessionID: msg.SessionID, QuestionID: msg.QuestionID, ConnectionID: client.ID}, nil
	}
	return nil, fmt.Errorf("%w: unknown message type %q", poll_errors.ErrValidation, msg.Type)
}

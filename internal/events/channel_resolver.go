package events

import (
	"fmt"
)

const GlobalChannel = "global"

// ChannelResolver maps audiences to hub channel names.
type ChannelResolver interface {
	ResolveChannels(event Event) []string
}

type AudienceChannelResolver struct{}

func NewAudienceChannelResolver() *AudienceChannelResolver {
	return &AudienceChannelResolver{}
}

func (r *AudienceChannelResolver) ResolveChannels(event Event) []string {
	channels := make([]string, 0, len(event.Audiences))
	seen := make(map[string]struct{}, len(event.Audiences))
	for _, a := range event.Audiences {
		ch := ChannelFor(a)
		if ch == "" {
			continue
		}
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}
		channels = append(channels, ch)
	}
	return channels
}

func ChannelFor(a Audience) string {
	switch a.Kind {
	case AudienceParticipants:
		return ParticipantsChannel(a.SessionID)
	case AudienceAdmins:
		return AdminsChannel(a.SessionID)
	case AudienceConnection:
		return ConnectionChannel(a.ConnectionID)
	case AudienceGlobal:
		return GlobalChannel
	}
	return ""
}

func ParticipantsChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:participants", sessionID)
}

func AdminsChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:admins", sessionID)
}

func ConnectionChannel(connID string) string {
	return fmt.Sprintf("conn:%s", connID)
}

// MirrorChannel is the Redis pub/sub channel carrying a session's events.
// Events with no session go to poll:global.
func MirrorChannel(sessionID string) string {
	if sessionID == "" {
		return "poll:global"
	}
	return fmt.Sprintf("poll:session:%s", sessionID)
}

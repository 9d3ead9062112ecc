package registry

import (
	"sort"
	"sync"
)

// Registry tracks live session membership in memory: the participant connections
// of every session and at most one controlling admin connection per session.
// It is rebuilt empty on restart.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]map[string]struct{}
	admins       map[string]string
	// connection id -> sessions it joined as participant or admin
	memberships map[string]map[string]struct{}
}

func New() *Registry {
	return &Registry{
		participants: make(map[string]map[string]struct{}),
		admins:       make(map[string]string),
		memberships:  make(map[string]map[string]struct{}),
	}
}

// JoinAsParticipant adds connID to the session and returns the participant count.
// Joining twice is idempotent.
func (r *Registry) JoinAsParticipant(sessionID, connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.participants[sessionID]
	if !ok {
		set = make(map[string]struct{})
		r.participants[sessionID] = set
	}
	set[connID] = struct{}{}
	r.track(sessionID, connID)
	return len(set)
}

// LeaveParticipant removes connID and returns the remaining count. Empty sets are dropped.
func (r *Registry) LeaveParticipant(sessionID, connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.participants[sessionID]
	if !ok {
		return 0
	}
	delete(set, connID)
	n := len(set)
	if n == 0 {
		delete(r.participants, sessionID)
	}
	if r.admins[sessionID] != connID {
		r.untrack(sessionID, connID)
	}
	return n
}

// JoinAsAdmin makes connID the controlling admin. A later claim takes control from
// the earlier holder, whose id is returned.
func (r *Registry) JoinAsAdmin(sessionID, connID string) (previous string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous = r.admins[sessionID]
	r.admins[sessionID] = connID
	if previous != "" && previous != connID {
		if _, participant := r.participants[sessionID][previous]; !participant {
			r.untrack(sessionID, previous)
		}
	}
	r.track(sessionID, connID)
	return previous
}

// HasControl returns the controlling admin connection, if any.
func (r *Registry) HasControl(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.admins[sessionID]
	return connID, ok
}

func (r *Registry) IsController(sessionID, connID string) bool {
	holder, ok := r.HasControl(sessionID)
	return ok && holder == connID
}

// ReleaseAdmin clears control only when connID is the current holder.
func (r *Registry) ReleaseAdmin(sessionID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.admins[sessionID] != connID {
		return false
	}
	delete(r.admins, sessionID)
	if _, participant := r.participants[sessionID][connID]; !participant {
		r.untrack(sessionID, connID)
	}
	return true
}

// ClearAdmin drops whoever controls the session and returns the former holder.
func (r *Registry) ClearAdmin(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	holder, ok := r.admins[sessionID]
	if !ok {
		return "", false
	}
	delete(r.admins, sessionID)
	if _, participant := r.participants[sessionID][holder]; !participant {
		r.untrack(sessionID, holder)
	}
	return holder, true
}

func (r *Registry) ParticipantCount(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants[sessionID])
}

func (r *Registry) IsParticipant(sessionID, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.participants[sessionID][connID]
	return ok
}

// SessionsOf lists the sessions connID is a member of, sorted.
func (r *Registry) SessionsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]string, 0, len(r.memberships[connID]))
	for sessionID := range r.memberships[connID] {
		sessions = append(sessions, sessionID)
	}
	sort.Strings(sessions)
	return sessions
}

// ControlledSessions returns the set of sessions that currently have an admin.
func (r *Registry) ControlledSessions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]bool, len(r.admins))
	for sessionID := range r.admins {
		out[sessionID] = true
	}
	return out
}

// ClearSession forgets everything about a deleted session.
func (r *Registry) ClearSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for connID := range r.participants[sessionID] {
		r.untrack(sessionID, connID)
	}
	if holder, ok := r.admins[sessionID]; ok {
		r.untrack(sessionID, holder)
	}
	delete(r.participants, sessionID)
	delete(r.admins, sessionID)
}

func (r *Registry) track(sessionID, connID string) {
	set, ok := r.memberships[connID]
	if !ok {
		set = make(map[string]struct{})
		r.memberships[connID] = set
	}
	set[sessionID] = struct{}{}
}

func (r *Registry) untrack(sessionID, connID string) {
	set, ok := r.memberships[connID]
	if !ok {
		return
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(r.memberships, connID)
	}
}

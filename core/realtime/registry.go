// Package realtime tracks live socket connections per user and per group and fans messages out to them.
package realtime

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrConnClosed     = errors.New("connection closed")
)

type (
	ConnID string

	// Conn is one live socket. Send must not block.
	Conn interface {
		ID() ConnID
		Send(event string, payload interface{}) error
	}

	connSet map[ConnID]Conn

	// Registry maps users and groups to their live connections.
	// A connection belongs to at most one user; empty sets are never kept.
	Registry struct {
		mu         sync.Mutex
		users      map[string]connSet
		groups     map[string]connSet
		connUser   map[ConnID]string
		connGroups map[ConnID]map[string]struct{}
	}
)

func NewRegistry() *Registry {
	return &Registry{
		users:      make(map[string]connSet),
		groups:     make(map[string]connSet),
		connUser:   make(map[ConnID]string),
		connGroups: make(map[ConnID]map[string]struct{}),
	}
}

// Register adds conn to the connections of userID, moving it away from any other user.
func (r *Registry) Register(userID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.connUser[conn.ID()]; ok {
		if prev == userID {
			return
		}
		r.removeLocked(r.users, prev, conn.ID())
	}
	set, ok := r.users[userID]
	if !ok {
		set = make(connSet)
		r.users[userID] = set
	}
	set[conn.ID()] = conn
	r.connUser[conn.ID()] = userID
}

// Unregister removes conn from its user. Group subscriptions are left untouched.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(conn.ID())
}

func (r *Registry) unregisterLocked(id ConnID) {
	userID, ok := r.connUser[id]
	if !ok {
		return
	}
	delete(r.connUser, id)
	r.removeLocked(r.users, userID, id)
}

func (r *Registry) Join(groupID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.groups[groupID]
	if !ok {
		set = make(connSet)
		r.groups[groupID] = set
	}
	set[conn.ID()] = conn

	joined, ok := r.connGroups[conn.ID()]
	if !ok {
		joined = make(map[string]struct{})
		r.connGroups[conn.ID()] = joined
	}
	joined[groupID] = struct{}{}
}

func (r *Registry) Leave(groupID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(groupID, conn.ID())
}

func (r *Registry) leaveLocked(groupID string, id ConnID) {
	r.removeLocked(r.groups, groupID, id)
	if joined, ok := r.connGroups[id]; ok {
		delete(joined, groupID)
		if len(joined) == 0 {
			delete(r.connGroups, id)
		}
	}
}

// Disconnect removes conn from its user and from every group it joined.
func (r *Registry) Disconnect(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	r.unregisterLocked(id)
	for groupID := range r.connGroups[id] {
		r.removeLocked(r.groups, groupID, id)
	}
	delete(r.connGroups, id)
}

func (r *Registry) removeLocked(sets map[string]connSet, key string, id ConnID) {
	set, ok := sets[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(sets, key)
	}
}

// RouteToUser sends the event to every connection of userID and returns the number of successful sends.
// An offline user is a silent drop.
func (r *Registry) RouteToUser(userID, event string, payload interface{}) int {
	return deliver(r.snapshot(r.users, userID, nil), event, payload)
}

// RouteToGroup sends the event to every connection subscribed to groupID except the excluded ones.
func (r *Registry) RouteToGroup(groupID, event string, payload interface{}, excluding ...ConnID) int {
	return deliver(r.snapshot(r.groups, groupID, excluding), event, payload)
}

func (r *Registry) snapshot(sets map[string]connSet, key string, excluding []ConnID) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := sets[key]
	conns := make([]Conn, 0, len(set))
	for id, conn := range set {
		if !containsConnID(excluding, id) {
			conns = append(conns, conn)
		}
	}
	return conns
}

func deliver(conns []Conn, event string, payload interface{}) int {
	var sent int
	for _, conn := range conns {
		if err := conn.Send(event, payload); err == nil {
			sent++
		}
	}
	return sent
}

func containsConnID(ids []ConnID, id ConnID) bool {
	for _, other := range ids {
		if other == id {
			return true
		}
	}
	return false
}

// UserConnections returns the sorted connection ids of userID.
func (r *Registry) UserConnections(userID string) []ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedIDs(r.users[userID])
}

// GroupConnections returns the sorted connection ids subscribed to groupID.
func (r *Registry) GroupConnections(groupID string) []ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedIDs(r.groups[groupID])
}

// OnlineUsers returns the sorted ids of users having at least one connection.
func (r *Registry) OnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]string, 0, len(r.users))
	for userID := range r.users {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

func sortedIDs(set connSet) []ConnID {
	ids := make([]ConnID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

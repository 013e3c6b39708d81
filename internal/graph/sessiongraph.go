// Package graph maintains the in-memory session graph used for collusion
// risk: a bipartite graph of users and the infrastructure (devices, source
// addresses) their sessions arrive through. Users confirmed fraudulent are
// flagged, and a user's risk grows with the share of their infrastructure
// that flagged users also touch.
package graph

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	// UnknownRisk is returned for a user id the graph has never seen. A
	// mild baseline rather than zero: unknown identity is not evidence of
	// innocence.
	UnknownRisk = 0.1

	// flaggedRisk is the score for a user already confirmed fraudulent.
	flaggedRisk = 0.95

	// baseRisk anchors the score of a known, unflagged user; shared
	// infrastructure with flagged users raises it from there.
	baseRisk    = 0.05
	overlapGain = 0.9
)

type userNode struct {
	infra    map[string]struct{} // infrastructure keys this user arrived through
	sessions int
	flagged  bool
	lastSeen time.Time
}

// SessionGraph is the in-memory collusion graph. All access is serialized by
// a sync.RWMutex; reads snapshot under the read lock.
type SessionGraph struct {
	mu    sync.RWMutex
	users map[string]*userNode
	infra map[string]map[string]struct{} // infra key → user ids seen on it
}

// NewSessionGraph creates an empty graph.
func NewSessionGraph() *SessionGraph {
	return &SessionGraph{
		users: make(map[string]*userNode),
		infra: make(map[string]map[string]struct{}),
	}
}

func infraKey(kind, value string) string {
	return kind + ":" + strings.ToLower(value)
}

// Observe records one session arrival: the user touched the given device and
// source address. Empty values are skipped.
func (g *SessionGraph) Observe(userID, deviceID, sourceAddr string, now time.Time) {
	userID = strings.ToLower(userID)

	g.mu.Lock()
	defer g.mu.Unlock()

	node := g.getOrCreate(userID)
	node.sessions++
	node.lastSeen = now

	if deviceID != "" {
		g.link(node, userID, infraKey("device", deviceID))
	}
	if sourceAddr != "" {
		g.link(node, userID, infraKey("addr", sourceAddr))
	}
}

// link attaches an infrastructure key to a user bidirectionally. Caller
// holds the write lock.
func (g *SessionGraph) link(node *userNode, userID, key string) {
	node.infra[key] = struct{}{}
	users, ok := g.infra[key]
	if !ok {
		users = make(map[string]struct{})
		g.infra[key] = users
	}
	users[userID] = struct{}{}
}

// Flag marks a user as confirmed fraudulent. Infrastructure they touched
// becomes tainted for every other user sharing it.
func (g *SessionGraph) Flag(userID string) {
	userID = strings.ToLower(userID)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.getOrCreate(userID).flagged = true
}

// Flagged reports whether the user has been flagged.
func (g *SessionGraph) Flagged(userID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.users[strings.ToLower(userID)]
	return ok && node.flagged
}

// Risk implements the graph risk scorer contract: a score in [0,1] for how
// embedded the user is in known-fraud structure. Deterministic for a fixed
// graph state. Unknown users score UnknownRisk; flagged users score high;
// otherwise the score grows with the fraction of the user's infrastructure
// that flagged users also arrive through.
func (g *SessionGraph) Risk(_ context.Context, userID string) (float64, error) {
	userID = strings.ToLower(userID)

	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.users[userID]
	if !ok {
		return UnknownRisk, nil
	}
	if node.flagged {
		return flaggedRisk, nil
	}
	if len(node.infra) == 0 {
		return UnknownRisk, nil
	}

	tainted := 0
	for key := range node.infra {
		for other := range g.infra[key] {
			if other == userID {
				continue
			}
			if peer, ok := g.users[other]; ok && peer.flagged {
				tainted++
				break
			}
		}
	}

	risk := baseRisk + overlapGain*float64(tainted)/float64(len(node.infra))
	if risk > 1 {
		risk = 1
	}
	return risk, nil
}

// Stats returns coarse graph counters for health reporting.
func (g *SessionGraph) Stats() (users, infra, flagged int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, node := range g.users {
		if node.flagged {
			flagged++
		}
	}
	return len(g.users), len(g.infra), flagged
}

// getOrCreate returns the node for userID, creating it if needed. Caller
// must hold the write lock.
func (g *SessionGraph) getOrCreate(userID string) *userNode {
	node, ok := g.users[userID]
	if !ok {
		node = &userNode{infra: make(map[string]struct{})}
		g.users[userID] = node
	}
	return node
}

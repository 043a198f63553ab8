package graph

import (
	"github.com/google/uuid"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
)

// UplineEntry is one hop of an upline chain. Level is the upline's own
// depth in the hierarchy, which is also the key used for rate lookup.
type UplineEntry struct {
	UserID uuid.UUID
	Level  int
}

type edgeNode struct {
	edgeID   uuid.UUID
	uplineID *uuid.UUID
	level    int
}

// snapshot is an immutable view of all active edges keyed by distributor.
// Instances are never mutated after construction; readers hold a pointer
// obtained from a single atomic load.
type snapshot struct {
	nodes map[uuid.UUID]edgeNode
}

func buildSnapshot(edges []models.DistributorEdge) *snapshot {
	nodes := make(map[uuid.UUID]edgeNode, len(edges))
	for _, edge := range edges {
		nodes[edge.DistributorID] = edgeNode{
			edgeID:   edge.ID,
			uplineID: edge.UplineID,
			level:    edge.Level,
		}
	}
	return &snapshot{nodes: nodes}
}

// chain walks upward from the given distributor, nearest upline first. The
// walk stops at the first distributor without an active edge, at a root, or
// after maxDepth entries. A revisited node ends the walk so malformed data
// cannot spin it forever.
func (s *snapshot) chain(userID uuid.UUID, maxDepth int) []UplineEntry {
	entries := make([]UplineEntry, 0, maxDepth)
	seen := map[uuid.UUID]struct{}{userID: {}}

	current, ok := s.nodes[userID]
	if !ok {
		return entries
	}
	for len(entries) < maxDepth {
		if current.uplineID == nil {
			break
		}
		uplineID := *current.uplineID
		if _, dup := seen[uplineID]; dup {
			break
		}
		uplineNode, ok := s.nodes[uplineID]
		if !ok {
			break
		}
		entries = append(entries, UplineEntry{UserID: uplineID, Level: uplineNode.level})
		seen[uplineID] = struct{}{}
		current = uplineNode
	}
	return entries
}

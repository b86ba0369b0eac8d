package graph

import (
	"context"
	"errors"

	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage"
)

// Subgraph is the part of the graph a traversal reached.
type Subgraph struct {
	Root *core.Entity
	// Nodes are in visit order, Root first.
	Nodes []*core.Entity
	// Depth is each node's hop distance from Root.
	Depth map[core.EntityID]int
	// Edges are in discovery order.
	Edges     []*core.Relationship
	Truncated bool
}

// Node returns the visited entity with id, or nil.
func (s *Subgraph) Node(id core.EntityID) *core.Entity {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// walk describes which edges a traversal follows.
type walk struct {
	out []core.RelationKind
	in  []core.RelationKind
	// allOut and allIn follow every kind in that direction.
	allOut bool
	allIn  bool
}

var (
	causalKinds  = []core.RelationKind{core.RelHasRisk, core.RelMitigatedBy, core.RelResultedIn, core.RelEscalatedTo}
	blockerKinds = []core.RelationKind{core.RelBlocks, core.RelDependsOn}

	causalWalk       = walk{out: causalKinds}
	temporalWalk     = walk{in: []core.RelationKind{core.RelSnapshotOf}}
	patternWalk      = walk{allOut: true}
	neighborhoodWalk = walk{allOut: true, allIn: true}
	blockersWalk     = walk{out: append([]core.RelationKind{core.RelHasRisk}, blockerKinds...), in: blockerKinds}
)

func walkFor(pattern core.TraversalPattern) walk {
	switch pattern {
	case core.PatternCausal:
		return causalWalk
	case core.PatternTemporal:
		return temporalWalk
	case core.PatternAggregate:
		return patternWalk
	default:
		return neighborhoodWalk
	}
}

// Traverse walks the graph breadth-first from start following pattern, up to
// depth hops. A depth of zero or above the configured maximum uses the
// maximum. The walk stops at the node cap; either bound marks the subgraph
// truncated when it left reachable nodes unvisited.
func (r *Retriever) Traverse(ctx context.Context, start core.EntityID, pattern core.TraversalPattern, depth int) (*Subgraph, error) {
	var sub *Subgraph
	err := r.guard.Read(ctx, func(ctx context.Context, store Store) error {
		root, err := store.GetEntity(ctx, start)
		if err != nil {
			return err
		}
		sub, err = r.traverse(ctx, store, root, walkFor(pattern), depth)
		return err
	})
	return sub, err
}

func (r *Retriever) traverse(ctx context.Context, store Store, root *core.Entity, w walk, depth int) (*Subgraph, error) {
	if depth <= 0 || depth > r.maxHops {
		depth = r.maxHops
	}

	sub := &Subgraph{
		Root:  root,
		Nodes: []*core.Entity{root},
		Depth: map[core.EntityID]int{root.ID: 0},
	}

	type edgeKey struct {
		from, to core.EntityID
		kind     core.RelationKind
	}
	seenEdges := make(map[edgeKey]bool)
	addEdge := func(e *core.Relationship) {
		k := edgeKey{from: e.From, to: e.To, kind: e.Kind}
		if !seenEdges[k] {
			seenEdges[k] = true
			sub.Edges = append(sub.Edges, e)
		}
	}

	queue := []*core.Entity{root}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := queue[0]
		queue = queue[1:]

		edges, err := r.edges(ctx, store, node.ID, w)
		if err != nil {
			return nil, err
		}

		d := sub.Depth[node.ID]
		for _, e := range edges {
			next := e.To
			if next == node.ID {
				next = e.From
			}
			if _, seen := sub.Depth[next]; seen {
				if d < depth {
					addEdge(e)
				}
				continue
			}
			if d >= depth || len(sub.Nodes) >= r.maxNodes {
				sub.Truncated = true
				continue
			}

			entity, err := store.GetEntity(ctx, next)
			if errors.Is(err, storage.ErrNotFound) {
				// Dangling edge left behind by a concurrent delete.
				continue
			}
			if err != nil {
				return nil, err
			}

			sub.Depth[next] = d + 1
			sub.Nodes = append(sub.Nodes, entity)
			addEdge(e)
			queue = append(queue, entity)
		}
	}

	if sub.Truncated {
		r.logger.Debug("traversal truncated", "root", root.ID, "nodes", len(sub.Nodes), "max_nodes", r.maxNodes, "max_depth", depth)
	}
	return sub, nil
}

func (r *Retriever) edges(ctx context.Context, store Store, id core.EntityID, w walk) ([]*core.Relationship, error) {
	var out []*core.Relationship
	if w.allOut || len(w.out) > 0 {
		edges, err := store.Outgoing(ctx, id, w.out...)
		if err != nil {
			return nil, err
		}
		out = append(out, edges...)
	}
	if w.allIn || len(w.in) > 0 {
		edges, err := store.Incoming(ctx, id, w.in...)
		if err != nil {
			return nil, err
		}
		out = append(out, edges...)
	}
	return out, nil
}

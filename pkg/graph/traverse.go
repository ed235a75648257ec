package graph

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

// Traverse runs a breadth-first expansion from seedIDs over the relations of
// a tenant for at most maxDepth hops. Each hop fetches at most the
// configured number of relations touching the current frontier, skipping
// relations taken in earlier hops.
//
// The returned neighborhood holds every traversed relation once, with
// resolved entity names, and every newly reached entity. Seeds are never
// part of Entities.
func (g *GraphClient) Traverse(ctx context.Context, tenantID string, seedIDs []string, maxDepth int) (*common.Neighborhood, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if maxDepth < 0 {
		return nil, ErrInvalidDepth
	}

	out := &common.Neighborhood{
		Entities:  []common.Entity{},
		Relations: []common.Relation{},
	}
	if maxDepth == 0 || len(seedIDs) == 0 {
		return out, nil
	}

	visited := make(map[string]struct{}, len(seedIDs))
	frontier := make([]string, 0, len(seedIDs))
	for _, id := range seedIDs {
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}
		frontier = append(frontier, id)
	}

	seenRelations := make(map[string]struct{})
	seenIDs := make([]string, 0)
	var discovered []string

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		relations, err := g.storage.RelationsTouching(ctx, tenantID, frontier, seenIDs, g.hopRelationCap)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch relations at depth %d: %w", depth+1, err)
		}

		next := make([]string, 0)
		for _, r := range relations {
			if _, ok := seenRelations[r.ID]; ok {
				continue
			}
			seenRelations[r.ID] = struct{}{}
			seenIDs = append(seenIDs, r.ID)
			out.Relations = append(out.Relations, r)

			for _, id := range []string{r.SourceID, r.TargetID} {
				if _, ok := visited[id]; ok {
					continue
				}
				visited[id] = struct{}{}
				next = append(next, id)
				discovered = append(discovered, id)
			}
		}
		frontier = next
	}

	if len(discovered) == 0 {
		return out, nil
	}

	entities, err := g.storage.EntitiesByIDs(ctx, tenantID, discovered)
	if err != nil {
		return nil, fmt.Errorf("failed to load neighborhood entities: %w", err)
	}
	out.Entities = append(out.Entities, entities...)

	return out, nil
}

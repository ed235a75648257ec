package graph

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/store"
)

// EntityDetail is an entity together with the relations it takes part in.
type EntityDetail struct {
	Entity    common.Entity     `json:"entity"`
	Relations []common.Relation `json:"relations"`
}

// VisualizationNode is a graph node in the shape expected by graph renderers.
type VisualizationNode struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	Type        common.EntityType `json:"type"`
	Weight      int               `json:"weight"`
	CommunityID *string           `json:"community_id"`
}

// VisualizationEdge connects two VisualizationNodes.
type VisualizationEdge struct {
	ID     string              `json:"id"`
	Source string              `json:"source"`
	Target string              `json:"target"`
	Type   common.RelationType `json:"type"`
}

// Visualization is a renderable subset of a tenant graph.
type Visualization struct {
	Nodes []VisualizationNode `json:"nodes"`
	Edges []VisualizationEdge `json:"edges"`
}

// GetEntity returns one entity and all relations touching it.
// Returns store.ErrNotFound if the entity is not part of the tenant.
func (g *GraphClient) GetEntity(ctx context.Context, tenantID string, entityID string) (*EntityDetail, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	e, err := g.storage.GetEntity(ctx, tenantID, entityID)
	if err != nil {
		return nil, err
	}
	relations, err := g.storage.RelationsTouching(ctx, tenantID, []string{entityID}, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relations of entity %s: %w", entityID, err)
	}

	return &EntityDetail{Entity: *e, Relations: relations}, nil
}

// Neighborhood traverses from a single entity after checking it exists.
func (g *GraphClient) Neighborhood(ctx context.Context, tenantID string, entityID string, depth int) (*common.Neighborhood, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if _, err := g.storage.GetEntity(ctx, tenantID, entityID); err != nil {
		return nil, err
	}
	return g.Traverse(ctx, tenantID, []string{entityID}, depth)
}

// Visualize returns the limit most mentioned entities and the relations
// among them. A limit <= 0 returns the whole graph.
func (g *GraphClient) Visualize(ctx context.Context, tenantID string, limit int) (*Visualization, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	entities, err := g.storage.ListEntities(ctx, tenantID, store.EntityFilter{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	out := &Visualization{
		Nodes: make([]VisualizationNode, 0, len(entities)),
		Edges: []VisualizationEdge{},
	}
	included := make(map[string]struct{}, len(entities))
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		included[e.ID] = struct{}{}
		ids = append(ids, e.ID)
		out.Nodes = append(out.Nodes, VisualizationNode{
			ID:          e.ID,
			Label:       e.Name,
			Type:        e.Type,
			Weight:      e.MentionCount,
			CommunityID: e.CommunityID,
		})
	}
	if len(ids) == 0 {
		return out, nil
	}

	relations, err := g.storage.RelationsTouching(ctx, tenantID, ids, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relations: %w", err)
	}
	for _, r := range relations {
		_, okS := included[r.SourceID]
		_, okT := included[r.TargetID]
		if !okS || !okT {
			continue
		}
		out.Edges = append(out.Edges, VisualizationEdge{
			ID:     r.ID,
			Source: r.SourceID,
			Target: r.TargetID,
			Type:   r.Type,
		})
	}
	return out, nil
}

// ListEntities pages through the entities of a tenant, most mentioned first.
func (g *GraphClient) ListEntities(ctx context.Context, tenantID string, filter store.EntityFilter) ([]common.Entity, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, ErrInvalidLimit
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, filter.Type)
	}

	entities, err := g.storage.ListEntities(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return entities, nil
}

func (g *GraphClient) ListCommunities(ctx context.Context, tenantID string) ([]common.Community, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	communities, err := g.storage.ListCommunities(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list communities: %w", err)
	}
	return communities, nil
}

package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	gUtil "github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/store"
	"github.com/OFFIS-RIT/kgraph/pkg/unionfind"
)

const (
	communityNameMembers = 3
	communityTopEntities = 5
)

type component struct {
	name    string
	members []common.Entity
}

// sortEntities orders entities by mention count descending, then name, then id.
func sortEntities(entities []common.Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].MentionCount != entities[j].MentionCount {
			return entities[i].MentionCount > entities[j].MentionCount
		}
		if entities[i].Name != entities[j].Name {
			return entities[i].Name < entities[j].Name
		}
		return entities[i].ID < entities[j].ID
	})
}

func communityName(members []common.Entity) string {
	n := min(len(members), communityNameMembers)
	names := make([]string, 0, n)
	for _, m := range members[:n] {
		names = append(names, m.Name)
	}
	return strings.Join(names, " & ")
}

func topEntities(members []common.Entity) []common.TopEntity {
	n := min(len(members), communityTopEntities)
	out := make([]common.TopEntity, 0, n)
	for _, m := range members[:n] {
		out = append(out, common.TopEntity{Name: m.Name, Type: m.Type})
	}
	return out
}

// detectCommunities replaces the communities of a tenant with the connected
// components of size >= 2 of its full relation set.
func detectCommunities(ctx context.Context, tx store.GraphTx, tenantID string) (int, error) {
	relations, err := tx.ListRelations(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to list relations: %w", err)
	}

	uf := unionfind.New()
	for _, r := range relations {
		uf.Union(r.SourceID, r.TargetID)
	}

	if err := tx.ResetCommunities(ctx, tenantID); err != nil {
		return 0, fmt.Errorf("failed to reset communities: %w", err)
	}

	groups := uf.Components()
	components := make([]component, 0, len(groups))
	for _, ids := range groups {
		if len(ids) < 2 {
			continue
		}
		members, err := tx.EntitiesByIDs(ctx, tenantID, ids)
		if err != nil {
			return 0, fmt.Errorf("failed to load community members: %w", err)
		}
		sortEntities(members)
		components = append(components, component{name: communityName(members), members: members})
	}

	sort.SliceStable(components, func(i, j int) bool {
		if len(components[i].members) != len(components[j].members) {
			return len(components[i].members) > len(components[j].members)
		}
		return components[i].name < components[j].name
	})

	for _, comp := range components {
		id, err := gUtil.NewID()
		if err != nil {
			return 0, err
		}
		community := &common.Community{
			ID:          id,
			TenantID:    tenantID,
			Name:        comp.name,
			Level:       0,
			EntityCount: len(comp.members),
			TopEntities: topEntities(comp.members),
		}
		if err := tx.InsertCommunity(ctx, community); err != nil {
			return 0, fmt.Errorf("failed to insert community: %w", err)
		}

		memberIDs := make([]string, 0, len(comp.members))
		for _, m := range comp.members {
			memberIDs = append(memberIDs, m.ID)
		}
		if err := tx.AssignCommunity(ctx, tenantID, id, memberIDs); err != nil {
			return 0, fmt.Errorf("failed to assign community: %w", err)
		}
	}

	logger.Debug("[Graph] Communities detected", "tenant_id", tenantID, "count", len(components))
	return len(components), nil
}

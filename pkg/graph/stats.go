package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/store"

	"golang.org/x/sync/errgroup"
)

// Stats returns entity, relation and community counts of a tenant together
// with an entity breakdown by type. Every known type is present in the
// breakdown, with 0 when the tenant has none.
func (g *GraphClient) Stats(ctx context.Context, tenantID string) (*common.Stats, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	stats := &common.Stats{}
	var byType map[common.EntityType]int

	eg, gCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		n, err := g.storage.CountEntities(gCtx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to count entities: %w", err)
		}
		stats.Entities = n
		return nil
	})
	eg.Go(func() error {
		n, err := g.storage.CountRelations(gCtx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to count relations: %w", err)
		}
		stats.Relations = n
		return nil
	})
	eg.Go(func() error {
		n, err := g.storage.CountCommunities(gCtx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to count communities: %w", err)
		}
		stats.Communities = n
		return nil
	})
	eg.Go(func() error {
		m, err := g.storage.CountEntitiesByType(gCtx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to count entities by type: %w", err)
		}
		byType = m
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	stats.EntitiesByType = make(map[common.EntityType]int, len(common.EntityTypes))
	for _, t := range common.EntityTypes {
		stats.EntitiesByType[t] = byType[t]
	}
	return stats, nil
}

// Snapshot reads the complete graph of a tenant for export.
func (g *GraphClient) Snapshot(ctx context.Context, tenantID string) (*common.Snapshot, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	entities, err := g.storage.ListEntities(ctx, tenantID, store.EntityFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	relations, err := g.storage.ListRelations(ctx, tenantID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	communities, err := g.storage.ListCommunities(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list communities: %w", err)
	}

	return &common.Snapshot{
		TenantID:    tenantID,
		CreatedAt:   time.Now().UTC(),
		Entities:    entities,
		Relations:   relations,
		Communities: communities,
	}, nil
}

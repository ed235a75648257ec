package graph

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/store"
)

// Build turns the structured summaries of all documents of a tenant into
// entities, co-occurrence relations and communities.
//
// The build runs in a single storage transaction. With force set, the
// existing graph of the tenant is deleted first. Without force, entities
// found again increase their mention counts and only new pairs become
// relations. Communities are always recomputed from the full relation set.
//
// Example:
//
//	res, err := client.Build(ctx, "tenant-1", false)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(res.EntitiesCreated, res.RelationsCreated, res.Communities)
func (g *GraphClient) Build(ctx context.Context, tenantID string, force bool) (*common.BuildResult, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	logger.Info("[Graph] Starting build", "tenant_id", tenantID, "force", force)

	res := &common.BuildResult{}
	err := g.storage.WithTx(ctx, func(tx store.GraphTx) error {
		if force {
			if err := tx.DeleteTenantGraph(ctx, tenantID); err != nil {
				return fmt.Errorf("failed to delete tenant graph: %w", err)
			}
		}

		docs, err := tx.ListDocuments(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}
		logger.Debug("[Graph] Loaded documents", "tenant_id", tenantID, "count", len(docs))

		extracted, err := extractEntities(ctx, tx, tenantID, docs)
		if err != nil {
			return err
		}
		res.EntitiesCreated = extracted.created

		created, err := inferRelations(ctx, tx, tenantID, extracted.docEntities)
		if err != nil {
			return err
		}
		res.RelationsCreated = created

		communities, err := detectCommunities(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		res.Communities = communities

		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(
		"[Graph] Build completed",
		"tenant_id", tenantID,
		"entities_created", res.EntitiesCreated,
		"relations_created", res.RelationsCreated,
		"communities", res.Communities,
	)
	return res, nil
}

// DeleteGraph removes the entire graph of a tenant. Documents are kept.
func (g *GraphClient) DeleteGraph(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	if err := g.storage.DeleteTenantGraph(ctx, tenantID); err != nil {
		return fmt.Errorf("failed to delete tenant graph: %w", err)
	}
	logger.Info("[Graph] Deleted tenant graph", "tenant_id", tenantID)
	return nil
}

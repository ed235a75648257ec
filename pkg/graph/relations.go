package graph

import (
	"context"
	"fmt"

	gUtil "github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/store"
)

const coOccurrenceConfidence = 0.6

type pairKey struct {
	a, b string
}

func newPairKey(x, y string) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

// orientRelation picks the relation type for a co-occurring pair. A person
// paired with a system uses it and a person paired with an organization
// manages it, independent of list order; the person becomes the source.
// Any other pair is related_to in first-seen order.
func orientRelation(first, second *common.Entity) (source, target *common.Entity, relType common.RelationType) {
	typed := func(p, o *common.Entity) (common.RelationType, bool) {
		if p.Type != common.EntityTypePerson {
			return "", false
		}
		switch o.Type {
		case common.EntityTypeSystem:
			return common.RelationUses, true
		case common.EntityTypeOrg:
			return common.RelationManages, true
		}
		return "", false
	}

	if t, ok := typed(first, second); ok {
		return first, second, t
	}
	if t, ok := typed(second, first); ok {
		return second, first, t
	}
	return first, second, common.RelationRelatedTo
}

// inferRelations creates one relation per new unordered pair of entities
// that co-occur in a document.
func inferRelations(
	ctx context.Context,
	tx store.GraphTx,
	tenantID string,
	docs []docEntities,
) (int, error) {
	existing, err := tx.ListRelations(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to list relations: %w", err)
	}
	pairs := make(map[pairKey]struct{}, len(existing))
	for _, r := range existing {
		pairs[newPairKey(r.SourceID, r.TargetID)] = struct{}{}
	}

	var ids []string
	for _, d := range docs {
		ids = append(ids, d.entityIDs...)
	}
	loaded, err := tx.EntitiesByIDs(ctx, tenantID, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to load entities: %w", err)
	}
	entities := make(map[string]*common.Entity, len(loaded))
	for i := range loaded {
		entities[loaded[i].ID] = &loaded[i]
	}

	created := 0
	for _, d := range docs {
		for i := 0; i < len(d.entityIDs); i++ {
			for j := i + 1; j < len(d.entityIDs); j++ {
				key := newPairKey(d.entityIDs[i], d.entityIDs[j])
				if key.a == key.b {
					continue
				}
				if _, ok := pairs[key]; ok {
					continue
				}

				first, ok1 := entities[d.entityIDs[i]]
				second, ok2 := entities[d.entityIDs[j]]
				if !ok1 || !ok2 {
					return created, fmt.Errorf("failed to resolve entities of document %s: %w", d.docID, store.ErrNotFound)
				}
				source, target, relType := orientRelation(first, second)

				id, err := gUtil.NewID()
				if err != nil {
					return created, err
				}
				rel := &common.Relation{
					ID:             id,
					TenantID:       tenantID,
					SourceID:       source.ID,
					TargetID:       target.ID,
					Type:           relType,
					Confidence:     coOccurrenceConfidence,
					EvidenceDocIDs: []string{d.docID},
				}
				if err := tx.InsertRelation(ctx, rel); err != nil {
					return created, fmt.Errorf("failed to insert relation: %w", err)
				}
				pairs[key] = struct{}{}
				created++
			}
		}
	}

	logger.Debug("[Graph] Relations inferred", "tenant_id", tenantID, "created", created)
	return created, nil
}

package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"

	pgxv5 "github.com/jackc/pgx/v5"
)

const relationSelect = `
SELECT r.id, r.tenant_id, r.source_entity_id, r.target_entity_id,
       s.canonical_name, t.canonical_name,
       r.relation_type, r.confidence, r.evidence_doc_ids, r.created_at
FROM graph_relations r
JOIN graph_entities s ON s.id = r.source_entity_id
JOIN graph_entities t ON t.id = r.target_entity_id`

func collectRelations(rows pgxv5.Rows) ([]common.Relation, error) {
	defer rows.Close()

	out := []common.Relation{}
	for rows.Next() {
		var r common.Relation
		var relationType string
		err := rows.Scan(
			&r.ID,
			&r.TenantID,
			&r.SourceID,
			&r.TargetID,
			&r.SourceName,
			&r.TargetName,
			&relationType,
			&r.Confidence,
			&r.EvidenceDocIDs,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		r.Type = common.RelationType(relationType)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (q queries) InsertRelation(ctx context.Context, relation *common.Relation) error {
	if relation.EvidenceDocIDs == nil {
		relation.EvidenceDocIDs = []string{}
	}
	err := q.db.QueryRow(ctx, `
INSERT INTO graph_relations (
    id, tenant_id, source_entity_id, target_entity_id,
    relation_type, confidence, evidence_doc_ids
) VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`,
		relation.ID,
		relation.TenantID,
		relation.SourceID,
		relation.TargetID,
		string(relation.Type),
		relation.Confidence,
		relation.EvidenceDocIDs,
	).Scan(&relation.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert relation: %w", err)
	}
	return nil
}

func (q queries) listRelations(ctx context.Context, tenantID string, limit int) ([]common.Relation, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := q.db.Query(ctx, relationSelect+`
WHERE r.tenant_id = $1
ORDER BY r.created_at, r.id
LIMIT $2`,
		tenantID, lim,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	return collectRelations(rows)
}

func (s *GraphDBStorage) ListRelations(ctx context.Context, tenantID string, limit int) ([]common.Relation, error) {
	return s.listRelations(ctx, tenantID, limit)
}

func (q queries) RelationsTouching(ctx context.Context, tenantID string, entityIDs []string, excludeIDs []string, limit int) ([]common.Relation, error) {
	if len(entityIDs) == 0 {
		return []common.Relation{}, nil
	}
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	rows, err := q.db.Query(ctx, relationSelect+`
WHERE r.tenant_id = $1
  AND (r.source_entity_id = ANY($2) OR r.target_entity_id = ANY($2))
  AND NOT r.id = ANY($4)
ORDER BY r.confidence DESC, r.created_at, r.id
LIMIT $3`,
		tenantID, entityIDs, lim, excludeIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load relations: %w", err)
	}
	return collectRelations(rows)
}

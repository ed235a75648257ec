package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

func (q queries) count(ctx context.Context, table string, tenantID string) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM `+table+` WHERE tenant_id = $1`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func (q queries) CountEntities(ctx context.Context, tenantID string) (int, error) {
	return q.count(ctx, "graph_entities", tenantID)
}

func (q queries) CountRelations(ctx context.Context, tenantID string) (int, error) {
	return q.count(ctx, "graph_relations", tenantID)
}

func (q queries) CountCommunities(ctx context.Context, tenantID string) (int, error) {
	return q.count(ctx, "graph_communities", tenantID)
}

func (q queries) CountEntitiesByType(ctx context.Context, tenantID string) (map[common.EntityType]int, error) {
	rows, err := q.db.Query(ctx, `
SELECT entity_type, count(*)
FROM graph_entities
WHERE tenant_id = $1
GROUP BY entity_type`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count entity types: %w", err)
	}
	defer rows.Close()

	out := make(map[common.EntityType]int)
	for rows.Next() {
		var entityType string
		var n int
		if err := rows.Scan(&entityType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan entity type count: %w", err)
		}
		out[common.EntityType(entityType)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

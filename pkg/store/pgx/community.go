package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const communitySelect = `
SELECT id, tenant_id, name, level, entity_count, top_entities, summary, created_at
FROM graph_communities`

func collectCommunities(rows pgxv5.Rows) ([]common.Community, error) {
	defer rows.Close()

	out := []common.Community{}
	for rows.Next() {
		var c common.Community
		var topEntities []byte
		err := rows.Scan(
			&c.ID,
			&c.TenantID,
			&c.Name,
			&c.Level,
			&c.EntityCount,
			&topEntities,
			&c.Summary,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan community: %w", err)
		}
		if err := json.Unmarshal(topEntities, &c.TopEntities); err != nil {
			return nil, fmt.Errorf("failed to decode top entities of community %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (q queries) ResetCommunities(ctx context.Context, tenantID string) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM graph_communities WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("failed to delete communities: %w", err)
	}
	_, err := q.db.Exec(ctx, `
UPDATE graph_entities
SET community_id = NULL
WHERE tenant_id = $1 AND community_id IS NOT NULL`,
		tenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear community assignments: %w", err)
	}
	return nil
}

func (q queries) InsertCommunity(ctx context.Context, community *common.Community) error {
	topEntities, err := json.Marshal(community.TopEntities)
	if err != nil {
		return fmt.Errorf("failed to encode top entities: %w", err)
	}
	err = q.db.QueryRow(ctx, `
INSERT INTO graph_communities (id, tenant_id, name, level, entity_count, top_entities, summary)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
RETURNING created_at`,
		community.ID,
		community.TenantID,
		community.Name,
		community.Level,
		community.EntityCount,
		string(topEntities),
		community.Summary,
	).Scan(&community.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert community: %w", err)
	}
	return nil
}

func (q queries) CommunitiesByIDs(ctx context.Context, tenantID string, ids []string) ([]common.Community, error) {
	if len(ids) == 0 {
		return []common.Community{}, nil
	}
	rows, err := q.db.Query(ctx, communitySelect+`
WHERE tenant_id = $1 AND id = ANY($2)
ORDER BY entity_count DESC, name, id`,
		tenantID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load communities: %w", err)
	}
	return collectCommunities(rows)
}

func (q queries) ListCommunities(ctx context.Context, tenantID string) ([]common.Community, error) {
	rows, err := q.db.Query(ctx, communitySelect+`
WHERE tenant_id = $1
ORDER BY entity_count DESC, name, id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list communities: %w", err)
	}
	return collectCommunities(rows)
}

func (q queries) UpdateCommunitySummary(ctx context.Context, tenantID string, communityID string, summary string) error {
	tag, err := q.db.Exec(ctx, `
UPDATE graph_communities
SET summary = $3
WHERE tenant_id = $1 AND id = $2`,
		tenantID, communityID, summary,
	)
	if err != nil {
		return fmt.Errorf("failed to update community summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

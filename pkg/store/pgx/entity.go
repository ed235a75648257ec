package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const entityColumns = `id, tenant_id, canonical_name, entity_type, mention_count, document_count,
	document_ids, community_id, created_at, updated_at`

func scanEntity(row pgxv5.Row) (*common.Entity, error) {
	var e common.Entity
	var entityType string
	err := row.Scan(
		&e.ID,
		&e.TenantID,
		&e.Name,
		&entityType,
		&e.MentionCount,
		&e.DocumentCount,
		&e.DocumentIDs,
		&e.CommunityID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Type = common.EntityType(entityType)
	return &e, nil
}

func collectEntities(rows pgxv5.Rows) ([]common.Entity, error) {
	defer rows.Close()

	out := []common.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (q queries) FindEntity(ctx context.Context, tenantID string, nameKey string, entityType common.EntityType) (*common.Entity, error) {
	row := q.db.QueryRow(ctx, `
SELECT `+entityColumns+`
FROM graph_entities
WHERE tenant_id = $1 AND name_key = $2 AND entity_type = $3`,
		tenantID, nameKey, string(entityType),
	)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find entity: %w", err)
	}
	return e, nil
}

func (q queries) InsertEntity(ctx context.Context, entity *common.Entity) error {
	if entity.DocumentIDs == nil {
		entity.DocumentIDs = []string{}
	}
	err := q.db.QueryRow(ctx, `
INSERT INTO graph_entities (
    id, tenant_id, canonical_name, name_key, entity_type,
    mention_count, document_count, document_ids
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at`,
		entity.ID,
		entity.TenantID,
		entity.Name,
		common.NameKey(entity.Name),
		string(entity.Type),
		entity.MentionCount,
		entity.DocumentCount,
		entity.DocumentIDs,
	).Scan(&entity.CreatedAt, &entity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert entity: %w", err)
	}
	return nil
}

func (q queries) UpdateEntityMentions(ctx context.Context, entity *common.Entity) error {
	tag, err := q.db.Exec(ctx, `
UPDATE graph_entities
SET mention_count = $3,
    document_count = $4,
    document_ids = $5,
    updated_at = now()
WHERE tenant_id = $1 AND id = $2`,
		entity.TenantID,
		entity.ID,
		entity.MentionCount,
		entity.DocumentCount,
		entity.DocumentIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q queries) EntitiesByIDs(ctx context.Context, tenantID string, ids []string) ([]common.Entity, error) {
	if len(ids) == 0 {
		return []common.Entity{}, nil
	}
	rows, err := q.db.Query(ctx, `
SELECT `+entityColumns+`
FROM graph_entities
WHERE tenant_id = $1 AND id = ANY($2)
ORDER BY mention_count DESC, canonical_name, id`,
		tenantID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load entities: %w", err)
	}
	return collectEntities(rows)
}

func (q queries) MatchEntities(ctx context.Context, tenantID string, substr string, limit int) ([]common.Entity, error) {
	rows, err := q.db.Query(ctx, `
SELECT `+entityColumns+`
FROM graph_entities
WHERE tenant_id = $1 AND canonical_name ILIKE '%' || $2 || '%'
ORDER BY mention_count DESC, canonical_name, id
LIMIT $3`,
		tenantID, escapeLike(substr), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to match entities: %w", err)
	}
	return collectEntities(rows)
}

func (q queries) GetEntity(ctx context.Context, tenantID string, id string) (*common.Entity, error) {
	row := q.db.QueryRow(ctx, `
SELECT `+entityColumns+`
FROM graph_entities
WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return e, nil
}

func (q queries) ListEntities(ctx context.Context, tenantID string, filter store.EntityFilter) ([]common.Entity, error) {
	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}
	rows, err := q.db.Query(ctx, `
SELECT `+entityColumns+`
FROM graph_entities
WHERE tenant_id = $1 AND ($2 = '' OR entity_type = $2)
ORDER BY mention_count DESC, canonical_name, id
LIMIT $3 OFFSET $4`,
		tenantID, string(filter.Type), limit, max(filter.Offset, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return collectEntities(rows)
}

func (q queries) AssignCommunity(ctx context.Context, tenantID string, communityID string, entityIDs []string) error {
	return store.ChunkRange(len(entityIDs), 1000, func(start, end int) error {
		_, err := q.db.Exec(ctx, `
UPDATE graph_entities
SET community_id = $2
WHERE tenant_id = $1 AND id = ANY($3)`,
			tenantID, communityID, entityIDs[start:end],
		)
		if err != nil {
			return fmt.Errorf("failed to assign community: %w", err)
		}
		return nil
	})
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '\\', '%', '_':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

func (q queries) ListDocuments(ctx context.Context, tenantID string) ([]common.Document, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, tenant_id, title, structured_summary::text, created_at
FROM documents
WHERE tenant_id = $1
  AND deleted_at IS NULL
  AND structured_summary IS NOT NULL
  AND structured_summary <> 'null'::jsonb
ORDER BY created_at, id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	out := []common.Document{}
	for rows.Next() {
		var d common.Document
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Title, &d.StructuredSummary, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

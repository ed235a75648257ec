package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	gUtil "github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/ai"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/store"
)

const (
	minNameRunes  = 2
	minTopicRunes = 3
)

type mention struct {
	name       string
	entityType common.EntityType
}

type docEntities struct {
	docID     string
	entityIDs []string
}

type extractResult struct {
	created     int
	docEntities []docEntities
}

type entityKey struct {
	nameKey    string
	entityType common.EntityType
}

// parseSummary decodes a stored structured summary. Stored summaries may be
// double-encoded or slightly malformed JSON.
func parseSummary(raw string) (*common.StructuredSummary, error) {
	var summary common.StructuredSummary
	if err := ai.UnmarshalFlexible(raw, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// mentionsOf lists the valid mentions of a summary in category order:
// people, systems, organizations, key topics.
func mentionsOf(summary *common.StructuredSummary) []mention {
	groups := []struct {
		names      []string
		entityType common.EntityType
		minRunes   int
	}{
		{summary.Entities.People, common.EntityTypePerson, minNameRunes},
		{summary.Entities.Systems, common.EntityTypeSystem, minNameRunes},
		{summary.Entities.Organizations, common.EntityTypeOrg, minNameRunes},
		{summary.KeyTopics, common.EntityTypeTopic, minTopicRunes},
	}

	var out []mention
	for _, grp := range groups {
		for _, raw := range grp.names {
			name := strings.TrimSpace(gUtil.SanitizePostgresText(raw))
			if utf8.RuneCountInString(name) < grp.minRunes {
				continue
			}
			out = append(out, mention{name: name, entityType: grp.entityType})
		}
	}
	return out
}

// extractEntities resolves every mention of every document against the
// tenant's entities, creating new ones and updating counters of existing
// ones. It returns the per-document entity lists in first-seen order.
func extractEntities(
	ctx context.Context,
	tx store.GraphTx,
	tenantID string,
	docs []common.Document,
) (*extractResult, error) {
	res := &extractResult{docEntities: make([]docEntities, 0, len(docs))}

	lookup := make(map[entityKey]*common.Entity)
	dirty := make(map[string]*common.Entity)
	var dirtyOrder []string

	resolve := func(m mention) (*common.Entity, error) {
		key := entityKey{nameKey: common.NameKey(m.name), entityType: m.entityType}
		if e, ok := lookup[key]; ok {
			return e, nil
		}
		e, err := tx.FindEntity(ctx, tenantID, key.nameKey, key.entityType)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to look up entity %q: %w", m.name, err)
		}
		lookup[key] = e
		return e, nil
	}

	for _, doc := range docs {
		summary, err := parseSummary(doc.StructuredSummary)
		if err != nil {
			logger.Warn("[Graph] Skipping document with unreadable summary", "tenant_id", tenantID, "document_id", doc.ID, "err", err)
			continue
		}

		seen := make(map[string]struct{})
		ids := make([]string, 0)
		for _, m := range mentionsOf(summary) {
			e, err := resolve(m)
			if err != nil {
				return nil, err
			}

			if e == nil {
				id, err := gUtil.NewID()
				if err != nil {
					return nil, err
				}
				e = &common.Entity{
					ID:            id,
					TenantID:      tenantID,
					Name:          m.name,
					Type:          m.entityType,
					MentionCount:  1,
					DocumentCount: 1,
					DocumentIDs:   []string{doc.ID},
				}
				if err := tx.InsertEntity(ctx, e); err != nil {
					return nil, fmt.Errorf("failed to insert entity %q: %w", m.name, err)
				}
				lookup[entityKey{nameKey: common.NameKey(m.name), entityType: m.entityType}] = e
				res.created++
			} else {
				e.MentionCount++
				if !e.HasDocument(doc.ID) {
					e.DocumentIDs = append(e.DocumentIDs, doc.ID)
					e.DocumentCount++
				}
				if _, ok := dirty[e.ID]; !ok {
					dirty[e.ID] = e
					dirtyOrder = append(dirtyOrder, e.ID)
				}
			}

			if _, ok := seen[e.ID]; !ok {
				seen[e.ID] = struct{}{}
				ids = append(ids, e.ID)
			}
		}

		res.docEntities = append(res.docEntities, docEntities{docID: doc.ID, entityIDs: ids})
	}

	for _, id := range dirtyOrder {
		if err := tx.UpdateEntityMentions(ctx, dirty[id]); err != nil {
			return nil, fmt.Errorf("failed to update entity %s: %w", id, err)
		}
	}

	logger.Debug("[Graph] Entities extracted", "tenant_id", tenantID, "created", res.created, "updated", len(dirtyOrder))
	return res, nil
}

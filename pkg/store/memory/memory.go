// Package memory provides an in-process GraphStorage. It enforces the same
// uniqueness rules as the Postgres schema and is used by tests and local
// tooling.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/store"
)

type tenantGraph struct {
	entities    map[string]*common.Entity
	relations   []*common.Relation
	communities []*common.Community
}

func newTenantGraph() *tenantGraph {
	return &tenantGraph{entities: make(map[string]*common.Entity)}
}

func (g *tenantGraph) clone() *tenantGraph {
	c := newTenantGraph()
	for id, e := range g.entities {
		c.entities[id] = cloneEntity(e)
	}
	for _, r := range g.relations {
		c.relations = append(c.relations, cloneRelation(r))
	}
	for _, cm := range g.communities {
		c.communities = append(c.communities, cloneCommunity(cm))
	}
	return c
}

// GraphMemStorage keeps documents and tenant graphs in maps guarded by a
// single RWMutex. Transactions work on a copy of the graph state that is
// swapped in on commit.
type GraphMemStorage struct {
	mu     sync.RWMutex
	docs   map[string][]common.Document
	graphs map[string]*tenantGraph
	now    func() time.Time
}

type GraphMemStorageOption func(*GraphMemStorage)

// WithClock replaces the time source used for created_at and updated_at.
func WithClock(now func() time.Time) GraphMemStorageOption {
	return func(s *GraphMemStorage) {
		s.now = now
	}
}

func New(opts ...GraphMemStorageOption) *GraphMemStorage {
	s := &GraphMemStorage{
		docs:   make(map[string][]common.Document),
		graphs: make(map[string]*tenantGraph),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// AddDocument stores a document for its tenant. Documents are returned in
// insertion order.
func (s *GraphMemStorage) AddDocument(doc common.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	s.docs[doc.TenantID] = append(s.docs[doc.TenantID], doc)
}

// DeleteDocument soft-deletes a document.
func (s *GraphMemStorage) DeleteDocument(tenantID, docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.docs[tenantID]
	for i := range docs {
		if docs[i].ID == docID {
			at := s.now()
			docs[i].DeletedAt = &at
		}
	}
}

func (s *GraphMemStorage) graph(tenantID string) *tenantGraph {
	g, ok := s.graphs[tenantID]
	if !ok {
		return newTenantGraph()
	}
	return g
}

func (s *GraphMemStorage) WithTx(ctx context.Context, fn func(tx store.GraphTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]*tenantGraph, len(s.graphs))
	for tenant, g := range s.graphs {
		staged[tenant] = g.clone()
	}

	tx := &memTx{parent: s, graphs: staged}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.graphs = staged
	return nil
}

func (s *GraphMemStorage) DeleteTenantGraph(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.graphs, tenantID)
	return nil
}

func (s *GraphMemStorage) MatchEntities(ctx context.Context, tenantID string, substr string, limit int) ([]common.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(substr)
	var out []common.Entity
	for _, e := range s.graph(tenantID).entities {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			out = append(out, *cloneEntity(e))
		}
	}
	sortByMentions(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *GraphMemStorage) RelationsTouching(ctx context.Context, tenantID string, entityIDs []string, excludeIDs []string, limit int) ([]common.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(entityIDs) == 0 {
		return []common.Relation{}, nil
	}

	g := s.graph(tenantID)
	out := []common.Relation{}
	for _, r := range g.relations {
		if !slices.Contains(entityIDs, r.SourceID) && !slices.Contains(entityIDs, r.TargetID) {
			continue
		}
		if slices.Contains(excludeIDs, r.ID) {
			continue
		}
		out = append(out, g.withNames(r))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *GraphMemStorage) EntitiesByIDs(ctx context.Context, tenantID string, ids []string) ([]common.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.graph(tenantID).entitiesByIDs(ids), nil
}

func (s *GraphMemStorage) CommunitiesByIDs(ctx context.Context, tenantID string, ids []string) ([]common.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []common.Community{}
	for _, c := range s.graph(tenantID).communities {
		if slices.Contains(ids, c.ID) {
			out = append(out, *cloneCommunity(c))
		}
	}
	return out, nil
}

func (s *GraphMemStorage) GetEntity(ctx context.Context, tenantID string, id string) (*common.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.graph(tenantID).entities[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneEntity(e), nil
}

func (s *GraphMemStorage) ListEntities(ctx context.Context, tenantID string, filter store.EntityFilter) ([]common.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []common.Entity{}
	for _, e := range s.graph(tenantID).entities {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		out = append(out, *cloneEntity(e))
	}
	sortByMentions(out)

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []common.Entity{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *GraphMemStorage) ListRelations(ctx context.Context, tenantID string, limit int) ([]common.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := s.graph(tenantID)
	out := []common.Relation{}
	for _, r := range g.relations {
		out = append(out, g.withNames(r))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *GraphMemStorage) ListCommunities(ctx context.Context, tenantID string) ([]common.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []common.Community{}
	for _, c := range s.graph(tenantID).communities {
		out = append(out, *cloneCommunity(c))
	}
	return out, nil
}

func (s *GraphMemStorage) CountEntities(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.graph(tenantID).entities), nil
}

func (s *GraphMemStorage) CountRelations(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.graph(tenantID).relations), nil
}

func (s *GraphMemStorage) CountCommunities(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.graph(tenantID).communities), nil
}

func (s *GraphMemStorage) CountEntitiesByType(ctx context.Context, tenantID string) (map[common.EntityType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[common.EntityType]int)
	for _, e := range s.graph(tenantID).entities {
		out[e.Type]++
	}
	return out, nil
}

func (s *GraphMemStorage) UpdateCommunitySummary(ctx context.Context, tenantID string, communityID string, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.graph(tenantID).communities {
		if c.ID == communityID {
			c.Summary = &summary
			return nil
		}
	}
	return store.ErrNotFound
}

// memTx implements store.GraphTx over a staged copy of the graph state.
// The parent lock is held for the lifetime of the transaction.
type memTx struct {
	parent *GraphMemStorage
	graphs map[string]*tenantGraph
}

func (t *memTx) graph(tenantID string) *tenantGraph {
	g, ok := t.graphs[tenantID]
	if !ok {
		g = newTenantGraph()
		t.graphs[tenantID] = g
	}
	return g
}

func (t *memTx) ListDocuments(ctx context.Context, tenantID string) ([]common.Document, error) {
	out := []common.Document{}
	for _, d := range t.parent.docs[tenantID] {
		if d.DeletedAt != nil || strings.TrimSpace(d.StructuredSummary) == "" {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (t *memTx) DeleteTenantGraph(ctx context.Context, tenantID string) error {
	t.graphs[tenantID] = newTenantGraph()
	return nil
}

func (t *memTx) FindEntity(ctx context.Context, tenantID string, nameKey string, entityType common.EntityType) (*common.Entity, error) {
	for _, e := range t.graph(tenantID).entities {
		if e.Type == entityType && common.NameKey(e.Name) == nameKey {
			return cloneEntity(e), nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) InsertEntity(ctx context.Context, entity *common.Entity) error {
	g := t.graph(entity.TenantID)
	if _, ok := g.entities[entity.ID]; ok {
		return fmt.Errorf("entity %s already exists", entity.ID)
	}
	key := common.NameKey(entity.Name)
	for _, e := range g.entities {
		if e.Type == entity.Type && common.NameKey(e.Name) == key {
			return fmt.Errorf("duplicate entity %q of type %s", entity.Name, entity.Type)
		}
	}

	now := t.parent.now()
	entity.CreatedAt = now
	entity.UpdatedAt = now
	g.entities[entity.ID] = cloneEntity(entity)
	return nil
}

func (t *memTx) UpdateEntityMentions(ctx context.Context, entity *common.Entity) error {
	e, ok := t.graph(entity.TenantID).entities[entity.ID]
	if !ok {
		return store.ErrNotFound
	}
	e.MentionCount = entity.MentionCount
	e.DocumentCount = entity.DocumentCount
	e.DocumentIDs = slices.Clone(entity.DocumentIDs)
	e.UpdatedAt = t.parent.now()
	return nil
}

func (t *memTx) EntitiesByIDs(ctx context.Context, tenantID string, ids []string) ([]common.Entity, error) {
	return t.graph(tenantID).entitiesByIDs(ids), nil
}

func (t *memTx) ListRelations(ctx context.Context, tenantID string) ([]common.Relation, error) {
	out := []common.Relation{}
	for _, r := range t.graph(tenantID).relations {
		out = append(out, *cloneRelation(r))
	}
	return out, nil
}

func (t *memTx) InsertRelation(ctx context.Context, relation *common.Relation) error {
	if relation.SourceID == relation.TargetID {
		return fmt.Errorf("self-loop on entity %s", relation.SourceID)
	}
	g := t.graph(relation.TenantID)
	for _, id := range []string{relation.SourceID, relation.TargetID} {
		if _, ok := g.entities[id]; !ok {
			return fmt.Errorf("relation endpoint %s: %w", id, store.ErrNotFound)
		}
	}
	for _, r := range g.relations {
		if (r.SourceID == relation.SourceID && r.TargetID == relation.TargetID) ||
			(r.SourceID == relation.TargetID && r.TargetID == relation.SourceID) {
			return fmt.Errorf("duplicate relation between %s and %s", relation.SourceID, relation.TargetID)
		}
	}

	relation.CreatedAt = t.parent.now()
	g.relations = append(g.relations, cloneRelation(relation))
	return nil
}

func (t *memTx) ResetCommunities(ctx context.Context, tenantID string) error {
	g := t.graph(tenantID)
	g.communities = nil
	for _, e := range g.entities {
		e.CommunityID = nil
	}
	return nil
}

func (t *memTx) InsertCommunity(ctx context.Context, community *common.Community) error {
	community.CreatedAt = t.parent.now()
	g := t.graph(community.TenantID)
	g.communities = append(g.communities, cloneCommunity(community))
	return nil
}

func (t *memTx) AssignCommunity(ctx context.Context, tenantID string, communityID string, entityIDs []string) error {
	g := t.graph(tenantID)
	for _, id := range entityIDs {
		e, ok := g.entities[id]
		if !ok {
			return fmt.Errorf("assign community to %s: %w", id, store.ErrNotFound)
		}
		cid := communityID
		e.CommunityID = &cid
	}
	return nil
}

func (g *tenantGraph) entitiesByIDs(ids []string) []common.Entity {
	out := []common.Entity{}
	for _, id := range store.DedupeStrings(ids) {
		if e, ok := g.entities[id]; ok {
			out = append(out, *cloneEntity(e))
		}
	}
	return out
}

func (g *tenantGraph) withNames(r *common.Relation) common.Relation {
	out := *cloneRelation(r)
	if e, ok := g.entities[r.SourceID]; ok {
		out.SourceName = e.Name
	}
	if e, ok := g.entities[r.TargetID]; ok {
		out.TargetName = e.Name
	}
	return out
}

func sortByMentions(entities []common.Entity) {
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

func cloneEntity(e *common.Entity) *common.Entity {
	c := *e
	c.DocumentIDs = slices.Clone(e.DocumentIDs)
	if e.CommunityID != nil {
		cid := *e.CommunityID
		c.CommunityID = &cid
	}
	return &c
}

func cloneRelation(r *common.Relation) *common.Relation {
	c := *r
	c.EvidenceDocIDs = slices.Clone(r.EvidenceDocIDs)
	return &c
}

func cloneCommunity(cm *common.Community) *common.Community {
	c := *cm
	c.TopEntities = slices.Clone(cm.TopEntities)
	if cm.Summary != nil {
		s := *cm.Summary
		c.Summary = &s
	}
	return &c
}

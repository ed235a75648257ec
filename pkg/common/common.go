package common

import (
	"strings"
	"time"
)

// NameKey returns the lookup key of an entity name: trimmed and case-folded.
// The key is only used for resolution, never for display.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// EntityType classifies an entity by the structured-summary category it was
// extracted from.
type EntityType string

const (
	EntityTypePerson EntityType = "person"
	EntityTypeSystem EntityType = "system"
	EntityTypeOrg    EntityType = "org"
	EntityTypeTopic  EntityType = "topic"
)

// EntityTypes lists every entity type in extraction order.
var EntityTypes = []EntityType{
	EntityTypePerson,
	EntityTypeSystem,
	EntityTypeOrg,
	EntityTypeTopic,
}

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypePerson, EntityTypeSystem, EntityTypeOrg, EntityTypeTopic:
		return true
	}
	return false
}

// RelationType is the label of an edge between two entities.
type RelationType string

const (
	RelationRelatedTo RelationType = "related_to"
	RelationUses      RelationType = "uses"
	RelationManages   RelationType = "manages"
)

// Entity represents a node in the graph. An entity is a person, system,
// organization or topic recognized across the documents of one tenant.
//
// Entities are unique per (tenant, case-folded name, type). The canonical
// name keeps the casing of the first mention.
type Entity struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	Name          string     `json:"canonical_name"`
	Type          EntityType `json:"entity_type"`
	MentionCount  int        `json:"mention_count"`
	DocumentCount int        `json:"document_count"`
	DocumentIDs   []string   `json:"document_ids"`
	CommunityID   *string    `json:"community_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasDocument reports whether docID is already recorded for the entity.
func (e *Entity) HasDocument(docID string) bool {
	for _, id := range e.DocumentIDs {
		if id == docID {
			return true
		}
	}
	return false
}

// Relation represents an effectively undirected edge between two entities
// that co-occur in a document. At most one relation exists per unordered
// entity pair.
//
// SourceName and TargetName are resolved display names and are only set by
// read paths that join the entity table.
type Relation struct {
	ID             string       `json:"id"`
	TenantID       string       `json:"tenant_id"`
	SourceID       string       `json:"source_entity_id"`
	TargetID       string       `json:"target_entity_id"`
	SourceName     string       `json:"source_name,omitempty"`
	TargetName     string       `json:"target_name,omitempty"`
	Type           RelationType `json:"relation_type"`
	Confidence     float64      `json:"confidence"`
	EvidenceDocIDs []string     `json:"evidence_doc_ids"`
	CreatedAt      time.Time    `json:"created_at"`
}

// TopEntity is the compact member listing stored on a community.
type TopEntity struct {
	Name string     `json:"name"`
	Type EntityType `json:"type"`
}

// Community is a connected component (size >= 2) of the relation graph of a
// tenant, treated as a topic cluster. Communities are recomputed from scratch
// on every build.
type Community struct {
	ID          string      `json:"id"`
	TenantID    string      `json:"tenant_id"`
	Name        string      `json:"name"`
	Level       int         `json:"level"`
	EntityCount int         `json:"entity_count"`
	TopEntities []TopEntity `json:"top_entities"`
	Summary     *string     `json:"summary"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Document is the read model of a source document. StructuredSummary holds
// the raw extraction payload as produced upstream and may be empty.
type Document struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenant_id"`
	Title             string     `json:"title"`
	StructuredSummary string     `json:"structured_summary,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
}

// SummaryEntities groups extracted names by category.
type SummaryEntities struct {
	People        []string `json:"people"`
	Systems       []string `json:"systems"`
	Organizations []string `json:"organizations"`
}

// StructuredSummary is the per-document extraction consumed by the graph
// builder. Unknown fields are ignored.
type StructuredSummary struct {
	Entities  SummaryEntities `json:"entities"`
	KeyTopics []string        `json:"key_topics"`
}

// BuildResult reports how many rows a build created.
type BuildResult struct {
	EntitiesCreated  int `json:"entities_created"`
	RelationsCreated int `json:"relations_created"`
	Communities      int `json:"communities"`
}

// Neighborhood is the result of a bounded breadth-first traversal.
// Entities excludes the seeds.
type Neighborhood struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// GraphContext is the graph-derived retrieval context for a query.
// An empty ContextText means the graph carried no signal for the query.
type GraphContext struct {
	Entities    []Entity    `json:"entities"`
	Relations   []Relation  `json:"relations"`
	Communities []Community `json:"communities"`
	ContextText string      `json:"context_text"`
}

// Stats summarizes the graph of one tenant.
type Stats struct {
	Entities       int                `json:"entities"`
	Relations      int                `json:"relations"`
	Communities    int                `json:"communities"`
	EntitiesByType map[EntityType]int `json:"entities_by_type"`
}

// Snapshot is the exported form of a complete tenant graph.
type Snapshot struct {
	TenantID    string      `json:"tenant_id"`
	CreatedAt   time.Time   `json:"created_at"`
	Entities    []Entity    `json:"entities"`
	Relations   []Relation  `json:"relations"`
	Communities []Community `json:"communities"`
}

package store

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

// ErrNotFound is returned when a requested row does not exist in the tenant.
var ErrNotFound = errors.New("not found")

// EntityFilter narrows ListEntities. Zero values mean no filtering; a Limit
// of 0 returns every matching entity.
type EntityFilter struct {
	Type   common.EntityType
	Limit  int
	Offset int
}

// GraphReader provides the read paths over the tenant-scoped entity,
// relation and community collections. Every method is restricted to
// tenantID and never reads across tenant boundaries.
type GraphReader interface {
	// MatchEntities returns entities whose canonical name contains substr
	// (case-insensitive), ordered by mention_count descending.
	MatchEntities(ctx context.Context, tenantID string, substr string, limit int) ([]common.Entity, error)
	// RelationsTouching returns up to limit relations whose source or target
	// is in entityIDs, with resolved display names. Relations listed in
	// excludeIDs are skipped and do not count against limit. A limit <= 0
	// returns all.
	RelationsTouching(ctx context.Context, tenantID string, entityIDs []string, excludeIDs []string, limit int) ([]common.Relation, error)
	EntitiesByIDs(ctx context.Context, tenantID string, ids []string) ([]common.Entity, error)
	CommunitiesByIDs(ctx context.Context, tenantID string, ids []string) ([]common.Community, error)

	GetEntity(ctx context.Context, tenantID string, id string) (*common.Entity, error)
	ListEntities(ctx context.Context, tenantID string, filter EntityFilter) ([]common.Entity, error)
	// ListRelations returns relations with resolved names; limit <= 0 means all.
	ListRelations(ctx context.Context, tenantID string, limit int) ([]common.Relation, error)
	ListCommunities(ctx context.Context, tenantID string) ([]common.Community, error)

	CountEntities(ctx context.Context, tenantID string) (int, error)
	CountRelations(ctx context.Context, tenantID string) (int, error)
	CountCommunities(ctx context.Context, tenantID string) (int, error)
	CountEntitiesByType(ctx context.Context, tenantID string) (map[common.EntityType]int, error)

	// UpdateCommunitySummary sets the generated summary of one community.
	UpdateCommunitySummary(ctx context.Context, tenantID string, communityID string, summary string) error
}

// GraphTx is the write surface available inside a build transaction.
// Everything done through a GraphTx becomes visible atomically on commit.
type GraphTx interface {
	// ListDocuments returns the non-deleted documents of the tenant that
	// carry a structured summary, oldest first.
	ListDocuments(ctx context.Context, tenantID string) ([]common.Document, error)

	DeleteTenantGraph(ctx context.Context, tenantID string) error

	// FindEntity looks up an entity by its case-folded name key and type.
	// Returns ErrNotFound if none exists.
	FindEntity(ctx context.Context, tenantID string, nameKey string, entityType common.EntityType) (*common.Entity, error)
	InsertEntity(ctx context.Context, entity *common.Entity) error
	// UpdateEntityMentions persists mention_count, document_count and
	// document_ids of an existing entity.
	UpdateEntityMentions(ctx context.Context, entity *common.Entity) error
	EntitiesByIDs(ctx context.Context, tenantID string, ids []string) ([]common.Entity, error)

	// ListRelations returns the complete relation set of the tenant.
	ListRelations(ctx context.Context, tenantID string) ([]common.Relation, error)
	InsertRelation(ctx context.Context, relation *common.Relation) error

	// ResetCommunities deletes all communities of the tenant and clears
	// community_id on every entity.
	ResetCommunities(ctx context.Context, tenantID string) error
	InsertCommunity(ctx context.Context, community *common.Community) error
	AssignCommunity(ctx context.Context, tenantID string, communityID string, entityIDs []string) error
}

// GraphStorage defines the interface for persisting and querying tenant
// knowledge graphs.
type GraphStorage interface {
	GraphReader

	// WithTx runs fn inside a single transaction. The transaction commits
	// if fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx GraphTx) error) error

	// DeleteTenantGraph removes every entity, relation and community of the
	// tenant.
	DeleteTenantGraph(ctx context.Context, tenantID string) error
}

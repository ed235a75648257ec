package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// queries holds the SQL shared by the pool-backed reader and the
// transaction-backed writer.
type queries struct {
	db dbtx
}

// GraphDBStorage implements store.GraphStorage on PostgreSQL. Reads go
// straight to the pool, builds run inside one transaction per WithTx call.
type GraphDBStorage struct {
	queries
	conn pgxIConn

	isoLevel pgxv5.TxIsoLevel
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithIsolationLevel sets the isolation level used by WithTx. Defaults to
// read committed.
func WithIsolationLevel(level pgxv5.TxIsoLevel) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.isoLevel = level
	}
}

// NewGraphDBStorageWithConnection creates a new GraphDBStorage using an
// existing connection or pool.
func NewGraphDBStorageWithConnection(
	conn pgxIConn,
	opts ...GraphDBStorageOption,
) *GraphDBStorage {
	s := &GraphDBStorage{
		queries:  queries{db: conn},
		conn:     conn,
		isoLevel: pgxv5.ReadCommitted,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgxv5.TxOptions) (pgxv5.Tx, error)
}

func (s *GraphDBStorage) begin(ctx context.Context) (pgxv5.Tx, error) {
	if b, ok := s.conn.(txBeginner); ok {
		return b.BeginTx(ctx, pgxv5.TxOptions{IsoLevel: s.isoLevel})
	}
	return s.conn.Begin(ctx)
}

func (s *GraphDBStorage) WithTx(ctx context.Context, fn func(tx store.GraphTx) error) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&graphTx{queries: queries{db: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *GraphDBStorage) DeleteTenantGraph(ctx context.Context, tenantID string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	q := queries{db: tx}
	if err := q.deleteTenantGraph(ctx, tenantID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// graphTx implements store.GraphTx on an open pgx transaction.
type graphTx struct {
	queries
}

func (t *graphTx) DeleteTenantGraph(ctx context.Context, tenantID string) error {
	return t.deleteTenantGraph(ctx, tenantID)
}

func (t *graphTx) ListRelations(ctx context.Context, tenantID string) ([]common.Relation, error) {
	return t.listRelations(ctx, tenantID, 0)
}

func (q queries) deleteTenantGraph(ctx context.Context, tenantID string) error {
	for _, stmt := range []string{deleteRelationsSQL, deleteCommunitiesSQL, deleteEntitiesSQL} {
		if _, err := q.db.Exec(ctx, stmt, tenantID); err != nil {
			return fmt.Errorf("failed to delete tenant graph: %w", err)
		}
	}
	return nil
}

const deleteRelationsSQL = `DELETE FROM graph_relations WHERE tenant_id = $1`

const deleteCommunitiesSQL = `DELETE FROM graph_communities WHERE tenant_id = $1`

const deleteEntitiesSQL = `DELETE FROM graph_entities WHERE tenant_id = $1`

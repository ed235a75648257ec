package graph

import (
	"errors"

	"github.com/OFFIS-RIT/kgraph/pkg/store"
)

const (
	defaultHopRelationCap  = 50
	defaultMaxQueryTokens  = 10
	defaultMatchesPerToken = 5
	defaultParallelQueries = 4
)

// GraphClient builds and queries the tenant knowledge graphs held by a
// store.GraphStorage.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	storage store.GraphStorage

	hopRelationCap  int
	maxQueryTokens  int
	matchesPerToken int
	parallelQueries int
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// HopRelationCap bounds the number of relations fetched per traversal hop.
// MaxQueryTokens and MatchesPerToken bound entity matching in GetContext.
// ParallelQueries controls how many token lookups run concurrently.
// Zero values fall back to the defaults.
type NewGraphClientParams struct {
	Storage store.GraphStorage

	HopRelationCap  int
	MaxQueryTokens  int
	MatchesPerToken int
	ParallelQueries int
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		Storage:        pgx.NewGraphDBStorageWithConnection(pool),
//		HopRelationCap: 50,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.Storage == nil {
		return nil, errors.New("graph storage is required")
	}

	g := &GraphClient{
		storage:         params.Storage,
		hopRelationCap:  orDefault(params.HopRelationCap, defaultHopRelationCap),
		maxQueryTokens:  orDefault(params.MaxQueryTokens, defaultMaxQueryTokens),
		matchesPerToken: orDefault(params.MatchesPerToken, defaultMatchesPerToken),
		parallelQueries: orDefault(params.ParallelQueries, defaultParallelQueries),
	}

	return g, nil
}

// Storage returns the underlying graph storage.
func (g *GraphClient) Storage() store.GraphStorage {
	return g.storage
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

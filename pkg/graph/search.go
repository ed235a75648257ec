package graph

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const minTokenRunes = 3

// ContextOptions bounds a GetContext call.
type ContextOptions struct {
	MaxDepth    int
	MaxEntities int
}

// DefaultContextOptions returns the default search bounds.
func DefaultContextOptions() ContextOptions {
	return ContextOptions{MaxDepth: 2, MaxEntities: 10}
}

// tokenize splits query into lowercased runs of letters with at least three
// runes and returns the first limit distinct tokens in query order.
func tokenize(query string, limit int) []string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, min(len(fields), limit))
	for _, f := range fields {
		if len(tokens) >= limit {
			break
		}
		if utf8.RuneCountInString(f) < minTokenRunes {
			continue
		}
		tok := strings.ToLower(f)
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}

// matchEntities looks up every token concurrently and merges the matches,
// keeping the strongest entities first.
func (g *GraphClient) matchEntities(ctx context.Context, tenantID string, tokens []string, maxEntities int) ([]common.Entity, error) {
	results := make([][]common.Entity, len(tokens))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelQueries)
	for i, tok := range tokens {
		eg.Go(func() error {
			matches, err := g.storage.MatchEntities(gCtx, tenantID, tok, g.matchesPerToken)
			if err != nil {
				return fmt.Errorf("failed to match entities for %q: %w", tok, err)
			}
			results[i] = matches
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	merged := make([]common.Entity, 0)
	for _, matches := range results {
		for _, e := range matches {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}
			merged = append(merged, e)
		}
	}

	sortEntities(merged)
	if len(merged) > maxEntities {
		merged = merged[:maxEntities]
	}
	return merged, nil
}

// GetContext finds the entities named in query, expands their neighborhood
// and renders a plain-text context block for answer generation.
//
// A query without matching entities yields an empty context, not an error.
//
// Example:
//
//	gc, err := client.GetContext(ctx, "tenant-1", "who uses postgres?", graph.DefaultContextOptions())
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(gc.ContextText)
func (g *GraphClient) GetContext(ctx context.Context, tenantID string, query string, opts ContextOptions) (*common.GraphContext, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if opts.MaxDepth <= 0 || opts.MaxEntities <= 0 {
		return nil, ErrInvalidLimit
	}

	out := &common.GraphContext{
		Entities:    []common.Entity{},
		Relations:   []common.Relation{},
		Communities: []common.Community{},
	}

	tokens := tokenize(query, g.maxQueryTokens)
	if len(tokens) == 0 {
		return out, nil
	}

	matched, err := g.matchEntities(ctx, tenantID, tokens, opts.MaxEntities)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		logger.Debug("[Search] No entities matched", "tenant_id", tenantID, "tokens", len(tokens))
		return out, nil
	}
	out.Entities = matched

	seedIDs := make([]string, 0, len(matched))
	for _, e := range matched {
		seedIDs = append(seedIDs, e.ID)
	}
	hood, err := g.Traverse(ctx, tenantID, seedIDs, opts.MaxDepth)
	if err != nil {
		return nil, err
	}
	out.Relations = hood.Relations

	communityIDs := make([]string, 0)
	seenCommunities := make(map[string]struct{})
	for _, group := range [][]common.Entity{matched, hood.Entities} {
		for _, e := range group {
			if e.CommunityID == nil {
				continue
			}
			if _, ok := seenCommunities[*e.CommunityID]; ok {
				continue
			}
			seenCommunities[*e.CommunityID] = struct{}{}
			communityIDs = append(communityIDs, *e.CommunityID)
		}
	}
	if len(communityIDs) > 0 {
		communities, err := g.storage.CommunitiesByIDs(ctx, tenantID, communityIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load communities: %w", err)
		}
		out.Communities = orderCommunities(communities, communityIDs)
	}

	out.ContextText = formatContext(out)

	logger.Debug(
		"[Search] Context built",
		"tenant_id", tenantID,
		"entities", len(out.Entities),
		"relations", len(out.Relations),
		"communities", len(out.Communities),
	)
	return out, nil
}

// orderCommunities returns communities in the order their ids were first
// reached from the matched entities.
func orderCommunities(communities []common.Community, ids []string) []common.Community {
	byID := make(map[string]common.Community, len(communities))
	for _, c := range communities {
		byID[c.ID] = c
	}
	out := make([]common.Community, 0, len(communities))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

package graph

import (
	"context"
	"fmt"
	"strings"

	gUtil "github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/ai"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/store"

	"golang.org/x/sync/errgroup"
)

const (
	summaryPromptMembers     = 20
	summaryPromptConnections = 20
)

// SummarizeParams configures SummarizeCommunities.
type SummarizeParams struct {
	Client     ai.GraphAIClient
	Parallel   int
	MaxRetries int
}

type communitySummary struct {
	Summary string `json:"summary"`
}

type communityInput struct {
	community   common.Community
	members     []ai.CommunityMember
	connections []ai.CommunityConnection
}

func collectCommunityInputs(
	communities []common.Community,
	entities []common.Entity,
	relations []common.Relation,
) []communityInput {
	byCommunity := make(map[string]*communityInput, len(communities))
	inputs := make([]*communityInput, 0, len(communities))
	for _, c := range communities {
		in := &communityInput{community: c}
		byCommunity[c.ID] = in
		inputs = append(inputs, in)
	}

	entityCommunity := make(map[string]string, len(entities))
	sortEntities(entities)
	for _, e := range entities {
		if e.CommunityID == nil {
			continue
		}
		entityCommunity[e.ID] = *e.CommunityID
		in, ok := byCommunity[*e.CommunityID]
		if !ok || len(in.members) >= summaryPromptMembers {
			continue
		}
		in.members = append(in.members, ai.CommunityMember{Name: e.Name, Type: string(e.Type), Mentions: e.MentionCount})
	}

	for _, r := range relations {
		in, ok := byCommunity[entityCommunity[r.SourceID]]
		if !ok || len(in.connections) >= summaryPromptConnections {
			continue
		}
		in.connections = append(in.connections, ai.CommunityConnection{Source: r.SourceName, Type: string(r.Type), Target: r.TargetName})
	}

	out := make([]communityInput, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, *in)
	}
	return out
}

// SummarizeCommunities asks the model for a one-sentence summary of every
// community of a tenant and stores it on the community. A failed summary is
// logged and leaves the community unchanged. It returns the number of
// communities that received a summary.
func (g *GraphClient) SummarizeCommunities(ctx context.Context, tenantID string, params SummarizeParams) (int, error) {
	if tenantID == "" {
		return 0, ErrTenantRequired
	}
	if params.Client == nil {
		return 0, fmt.Errorf("ai client is required")
	}

	communities, err := g.storage.ListCommunities(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to list communities: %w", err)
	}
	if len(communities) == 0 {
		return 0, nil
	}
	entities, err := g.storage.ListEntities(ctx, tenantID, store.EntityFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list entities: %w", err)
	}
	relations, err := g.storage.ListRelations(ctx, tenantID, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list relations: %w", err)
	}

	inputs := collectCommunityInputs(communities, entities, relations)
	done := make([]bool, len(inputs))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(params.Parallel, 1))
	for i, in := range inputs {
		eg.Go(func() error {
			prompt := ai.CommunitySummaryPrompt(in.community.Name, in.members, in.connections)

			var res communitySummary
			err := gUtil.RetryErrWithContext(gCtx, params.MaxRetries, func(ctx context.Context) error {
				return params.Client.GenerateCompletionWithFormat(
					ctx,
					"community_summary",
					"One sentence describing a cluster of a knowledge graph",
					prompt,
					&res,
					ai.WithSystemPrompts(ai.CommunitySummarySystemPrompt),
				)
			})
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				logger.Warn("[Graph] Failed to summarize community", "tenant_id", tenantID, "community_id", in.community.ID, "err", err)
				return nil
			}

			summary := strings.TrimSpace(res.Summary)
			if summary == "" {
				return nil
			}
			if err := g.storage.UpdateCommunitySummary(gCtx, tenantID, in.community.ID, summary); err != nil {
				return fmt.Errorf("failed to store community summary: %w", err)
			}
			done[i] = true
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}

	count := 0
	for _, ok := range done {
		if ok {
			count++
		}
	}

	metrics := params.Client.GetMetrics()
	logger.Info(
		"[Graph] Community summaries generated",
		"tenant_id", tenantID,
		"summarized", count,
		"communities", len(inputs),
		"total_tokens", metrics.TotalTokens,
	)
	return count, nil
}

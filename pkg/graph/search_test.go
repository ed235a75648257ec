package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entityNames(entities []common.Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Name)
	}
	return out
}

func seedChain(t *testing.T, mem *memory.GraphMemStorage) {
	t.Helper()
	chain := []string{"Anna", "Ben", "Cara", "Dan", "Eve", "Finn"}
	for i := 0; i+1 < len(chain); i++ {
		addDoc(mem, testTenant, chain[i]+"-"+chain[i+1], summaryJSON(t, []string{chain[i], chain[i+1]}, nil, nil, nil))
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		query string
		limit int
		want  []string
	}{
		{"drops short runs", "Is AI on Postgres?", 10, []string{"postgres"}},
		{"splits on digits and punctuation", "billing2024/acme-corp", 10, []string{"billing", "acme", "corp"}},
		{"dedupes case-insensitively", "Alice alice ALICE bob", 10, []string{"alice", "bob"}},
		{"keeps unicode letters", "Müller über Straße", 10, []string{"müller", "über", "straße"}},
		{"stops at limit", "one two three four", 2, []string{"one", "two"}},
		{"empty query", "  ", 10, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.query, tt.limit))
		})
	}
}

func TestTraverseDepthBounds(t *testing.T) {
	ctx := context.Background()
	client, mem := newTestClient(t)
	seedChain(t, mem)
	_, err := client.Build(ctx, testTenant, false)
	require.NoError(t, err)

	anna := entityByName(t, mem, testTenant, "Anna")

	hood, err := client.Traverse(ctx, testTenant, []string{anna.ID}, 0)
	require.NoError(t, err)
	assert.Empty(t, hood.Entities)
	assert.Empty(t, hood.Relations)
	assert.NotNil(t, hood.Entities)

	hood, err = client.Traverse(ctx, testTenant, []string{anna.ID}, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Ben", "Cara"}, entityNames(hood.Entities))
	require.Len(t, hood.Relations, 2)
	for _, r := range hood.Relations {
		assert.NotEmpty(t, r.SourceName)
		assert.NotEmpty(t, r.TargetName)
	}

	hood, err = client.Traverse(ctx, testTenant, []string{anna.ID}, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Ben", "Cara", "Dan", "Eve", "Finn"}, entityNames(hood.Entities))
	assert.Len(t, hood.Relations, 5)
}

func TestTraverseExcludesSeeds(t *testing.T) {
	ctx := context.Background()
	client, mem := newTestClient(t)
	seedChain(t, mem)
	_, err := client.Build(ctx, testTenant, false)
	require.NoError(t, err)

	ben := entityByName(t, mem, testTenant, "Ben")
	cara := entityByName(t, mem, testTenant, "Cara")

	hood, err := client.Traverse(ctx, testTenant, []string{ben.ID, cara.ID, ben.ID}, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Anna", "Dan"}, entityNames(hood.Entities))
	assert.Len(t, hood.Relations, 3)
}

func TestTraverseHopCap(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	client, err := NewGraphClient(NewGraphClientParams{Storage: mem, HopRelationCap: 2})
	require.NoError(t, err)
	addDoc(mem, testTenant, "hub", summaryJSON(t, []string{"Hub"}, []string{"Alpha", "Beta", "Gamma", "Delta"}, nil, nil))
	_, err = client.Build(ctx, testTenant, false)
	require.NoError(t, err)

	hub := entityByName(t, mem, testTenant, "Hub")
	hood, err := client.Traverse(ctx, testTenant, []string{hub.ID}, 1)
	require.NoError(t, err)
	assert.Len(t, hood.Relations, 2)
	assert.Len(t, hood.Entities, 2)
}

func TestTraverseHopCapSkipsKnownRelations(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	client, err := NewGraphClient(NewGraphClientParams{Storage: mem, HopRelationCap: 2})
	require.NoError(t, err)
	addDoc(mem, testTenant, "a", summaryJSON(t, []string{"Hub"}, []string{"Alpha"}, nil, nil))
	addDoc(mem, testTenant, "b", summaryJSON(t, []string{"Hub"}, []string{"Beta"}, nil, nil))
	addDoc(mem, testTenant, "c", summaryJSON(t, []string{"Zed"}, []string{"Beta"}, nil, nil))
	_, err = client.Build(ctx, testTenant, false)
	require.NoError(t, err)

	// Hop 2 touches both hop-1 relations again. They must not use up the
	// cap before Beta-Zed is reached.
	hub := entityByName(t, mem, testTenant, "Hub")
	hood, err := client.Traverse(ctx, testTenant, []string{hub.ID}, 2)
	require.NoError(t, err)
	assert.Len(t, hood.Relations, 3)
	assert.ElementsMatch(t, []string{"Alpha", "Beta", "Zed"}, entityNames(hood.Entities))
}

func TestTraverseRejectsInvalidInput(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Traverse(context.Background(), testTenant, []string{"x"}, -1)
	assert.ErrorIs(t, err, ErrInvalidDepth)

	_, err = client.Traverse(context.Background(), "", []string{"x"}, 1)
	assert.ErrorIs(t, err, ErrTenantRequired)

	hood, err := client.Traverse(context.Background(), testTenant, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, hood.Entities)
}

func TestGetContextEmptyGraph(t *testing.T) {
	client, _ := newTestClient(t)

	gc, err := client.GetContext(context.Background(), testTenant, "who uses postgres", DefaultContextOptions())
	require.NoError(t, err)
	assert.Equal(t, "", gc.ContextText)
	assert.Equal(t, []common.Entity{}, gc.Entities)
	assert.Equal(t, []common.Relation{}, gc.Relations)
	assert.Equal(t, []common.Community{}, gc.Communities)
}

func TestGetContextRejectsInvalidInput(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.GetContext(ctx, "", "query", DefaultContextOptions())
	assert.ErrorIs(t, err, ErrTenantRequired)

	_, err = client.GetContext(ctx, testTenant, "query", ContextOptions{MaxDepth: 0, MaxEntities: 10})
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = client.GetContext(ctx, testTenant, "query", ContextOptions{MaxDepth: 2, MaxEntities: -1})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestGetContextText(t *testing.T) {
	ctx := context.Background()
	client, mem := newTestClient(t)
	seedAliceScenario(t, mem)
	_, err := client.Build(ctx, testTenant, false)
	require.NoError(t, err)

	gc, err := client.GetContext(ctx, testTenant, "What does Alice work on?", DefaultContextOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"Alice"}, entityNames(gc.Entities))
	assert.Len(t, gc.Relations, 4)
	require.Len(t, gc.Communities, 1)

	want := "Relevant entities:\n" +
		"- Alice (person, mentioned 2x across 2 docs)\n\n" +
		"Knowledge graph connections:\n" +
		"- Alice --[uses]--> Postgres\n" +
		"- Alice --[related_to]--> billing\n" +
		"- Alice --[manages]--> Acme\n" +
		"- Postgres --[related_to]--> billing\n\n" +
		"Topic communities:\n" +
		"- Alice & Acme & Postgres: Cluster of 4 entities (includes: Alice, Acme, Postgres, billing)"
	assert.Equal(t, want, gc.ContextText)
}

func TestGetContextOrdersAndTruncatesMatches(t *testing.T) {
	ctx := context.Background()
	client, mem := newTestClient(t)
	addDoc(mem, testTenant, "d1", summaryJSON(t, nil, []string{"Postgres", "Postgres Replica"}, nil, nil))
	addDoc(mem, testTenant, "d2", summaryJSON(t, nil, []string{"Postgres Replica"}, nil, nil))
	addDoc(mem, testTenant, "d3", summaryJSON(t, nil, []string{"Redis"}, nil, nil))
	_, err := client.Build(ctx, testTenant, false)
	require.NoError(t, err)

	gc, err := client.GetContext(ctx, testTenant, "postgres redis", ContextOptions{MaxDepth: 1, MaxEntities: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Postgres Replica", "Postgres"}, entityNames(gc.Entities))
}

func TestFormatContextLimits(t *testing.T) {
	gc := &common.GraphContext{}
	for i := range 10 {
		gc.Entities = append(gc.Entities, common.Entity{Name: string(rune('a' + i)), Type: common.EntityTypeTopic, MentionCount: 1, DocumentCount: 1})
	}
	for range 3 {
		gc.Relations = append(gc.Relations, common.Relation{SourceName: "x", TargetName: "y", Type: common.RelationRelatedTo})
	}
	summary := "Payments stack"
	gc.Communities = []common.Community{{
		Name:        "x & y",
		EntityCount: 6,
		Summary:     &summary,
		TopEntities: []common.TopEntity{{Name: "x"}, {Name: "y"}, {Name: "z"}, {Name: "w"}, {Name: "v"}},
	}}

	text := formatContext(gc)
	assert.Contains(t, text, "- h (topic, mentioned 1x across 1 docs)")
	assert.NotContains(t, text, "- i (topic")
	assert.Equal(t, 1, countLines(text, "- x --[related_to]--> y"))
	assert.Contains(t, text, "- x & y: Payments stack (includes: x, y, z, w)")
}

func countLines(text, line string) int {
	n := 0
	for _, l := range strings.Split(text, "\n") {
		if l == line {
			n++
		}
	}
	return n
}

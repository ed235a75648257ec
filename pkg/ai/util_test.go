package ai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSummary struct {
	Entities struct {
		People  []string `json:"people"`
		Systems []string `json:"systems"`
	} `json:"entities"`
	KeyTopics []string `json:"key_topics"`
}

func TestUnmarshalFlexible_Variants(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "valid json",
			input: `{"entities":{"people":["Alice"],"systems":["Postgres"]},"key_topics":["billing"]}`,
		},
		{
			name:  "unquoted keys and single quotes",
			input: `{entities: {people: ['Alice'], systems: ['Postgres']}, key_topics: ['billing']}`,
		},
		{
			name:  "trailing commas",
			input: `{"entities":{"people":["Alice",],"systems":["Postgres"],},"key_topics":["billing"],}`,
		},
		{
			name:  "missing closing brackets",
			input: `{"entities":{"people":["Alice"],"systems":["Postgres"]},"key_topics":["billing"`,
		},
		{
			name:  "double encoded",
			input: `"{\"entities\":{\"people\":[\"Alice\"],\"systems\":[\"Postgres\"]},\"key_topics\":[\"billing\"]}"`,
		},
		{
			name:  "code fence",
			input: "```json\n{\"entities\":{\"people\":[\"Alice\"],\"systems\":[\"Postgres\"]},\"key_topics\":[\"billing\"]}\n```",
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\"entities\":{\"people\":[\"Alice\"],\"systems\":[\"Postgres\"]},\"key_topics\":[\"billing\"]}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got testSummary
			require.NoError(t, UnmarshalFlexible(tt.input, &got))
			assert.Equal(t, []string{"Alice"}, got.Entities.People)
			assert.Equal(t, []string{"Postgres"}, got.Entities.Systems)
			assert.Equal(t, []string{"billing"}, got.KeyTopics)
		})
	}
}

func TestUnmarshalFlexible_Empty(t *testing.T) {
	var got testSummary
	assert.Error(t, UnmarshalFlexible("   ", &got))
}

func TestGenerateSchema_DescribesFields(t *testing.T) {
	type answer struct {
		Summary string `json:"summary"`
	}

	schema := GenerateSchema(&answer{})
	require.NotNil(t, schema)

	raw, err := json.Marshal(schema)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"summary"`)
}

func TestCommunitySummaryPrompt(t *testing.T) {
	prompt := CommunitySummaryPrompt(
		"Alice & Postgres",
		[]CommunityMember{{Name: "Alice", Type: "person", Mentions: 2}},
		[]CommunityConnection{{Source: "Alice", Type: "uses", Target: "Postgres"}},
	)

	assert.Contains(t, prompt, "Cluster: Alice & Postgres")
	assert.Contains(t, prompt, "- Alice (person, mentioned 2 times)")
	assert.Contains(t, prompt, "- Alice --[uses]--> Postgres")
}

package ai

import (
	"fmt"
	"strings"
)

// CommunitySummarySystemPrompt instructs the model to describe one topic
// cluster of a knowledge graph.
const CommunitySummarySystemPrompt = `You describe clusters of a knowledge graph built from company documents.
A cluster is a group of people, systems, organizations and topics that appear together in documents.
Write exactly one sentence of at most 30 words that states what connects the members.
Only use the information given. Do not invent facts, names or numbers.
Respond as JSON with a single field "summary".`

// CommunityMember is one entity listed in a community summary prompt.
type CommunityMember struct {
	Name     string
	Type     string
	Mentions int
}

// CommunityConnection is one relation listed in a community summary prompt.
type CommunityConnection struct {
	Source string
	Type   string
	Target string
}

// CommunitySummaryPrompt renders the user prompt for a community summary.
func CommunitySummaryPrompt(name string, members []CommunityMember, connections []CommunityConnection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cluster: %s\n\nMembers:\n", name)
	for _, m := range members {
		fmt.Fprintf(&b, "- %s (%s, mentioned %d times)\n", m.Name, m.Type, m.Mentions)
	}
	if len(connections) > 0 {
		b.WriteString("\nConnections:\n")
		for _, c := range connections {
			fmt.Fprintf(&b, "- %s --[%s]--> %s\n", c.Source, c.Type, c.Target)
		}
	}
	return b.String()
}

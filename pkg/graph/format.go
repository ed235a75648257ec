package graph

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

const (
	maxContextEntities    = 8
	maxContextRelations   = 12
	maxContextCommunities = 3
	maxCommunityIncludes  = 4
)

func formatEntity(e common.Entity) string {
	return fmt.Sprintf("- %s (%s, mentioned %dx across %d docs)", e.Name, e.Type, e.MentionCount, e.DocumentCount)
}

func formatRelation(r common.Relation) string {
	return fmt.Sprintf("- %s --[%s]--> %s", r.SourceName, r.Type, r.TargetName)
}

func formatCommunity(c common.Community) string {
	summary := fmt.Sprintf("Cluster of %d entities", c.EntityCount)
	if c.Summary != nil && strings.TrimSpace(*c.Summary) != "" {
		summary = strings.TrimSpace(*c.Summary)
	}

	n := min(len(c.TopEntities), maxCommunityIncludes)
	names := make([]string, 0, n)
	for _, te := range c.TopEntities[:n] {
		names = append(names, te.Name)
	}
	return fmt.Sprintf("- %s: %s (includes: %s)", c.Name, summary, strings.Join(names, ", "))
}

// formatContext renders the entity, connection and community blocks of a
// graph context. Empty blocks are left out; an empty context renders as "".
func formatContext(gc *common.GraphContext) string {
	var blocks []string

	if len(gc.Entities) > 0 {
		lines := []string{"Relevant entities:"}
		for _, e := range gc.Entities[:min(len(gc.Entities), maxContextEntities)] {
			lines = append(lines, formatEntity(e))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	if len(gc.Relations) > 0 {
		lines := []string{"Knowledge graph connections:"}
		seen := make(map[string]struct{})
		for _, r := range gc.Relations {
			if len(lines)-1 >= maxContextRelations {
				break
			}
			line := formatRelation(r)
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			lines = append(lines, line)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	if len(gc.Communities) > 0 {
		lines := []string{"Topic communities:"}
		for _, c := range gc.Communities[:min(len(gc.Communities), maxContextCommunities)] {
			lines = append(lines, formatCommunity(c))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	return strings.Join(blocks, "\n\n")
}

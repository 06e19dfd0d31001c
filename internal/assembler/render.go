package assembler

import (
	"fmt"
	"sort"
	"strings"
)

// render produces the textual context block in a fixed layout: structured
// fields, then neighbors in similarity order, then history oldest to
// newest. The layout is deterministic so truncation is testable.
func render(c *Context) string {
	var b strings.Builder

	if c.Target != nil {
		b.WriteString(fmt.Sprintf("# Target %s %s\n\n", c.Target.Type, c.Target.ID))
		keys := make([]string, 0, len(c.Target.Fields))
		for k := range c.Target.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := c.Target.Fields[k]; v != "" {
				b.WriteString(fmt.Sprintf("- %s: %s\n", k, v))
			}
		}
		b.WriteString("\n")
	}

	if len(c.Neighbors) > 0 {
		b.WriteString("# Related History\n\n")
		b.WriteString("The following are similar records from this workspace's history:\n\n")
		for _, n := range c.Neighbors {
			b.WriteString(fmt.Sprintf("**%s %s** (relevance: %.2f)\n", n.EntityType, n.EntityID, n.Score))
			b.WriteString(n.Text + "\n\n")
		}
	}

	if len(c.History) > 0 {
		b.WriteString("# Prior Conversation\n\n")
		for _, t := range c.History {
			b.WriteString(fmt.Sprintf("User: %s\n", t.UserMessage))
			b.WriteString(fmt.Sprintf("Assistant: %s\n\n", t.AssistantMessage))
		}
	}

	return b.String()
}

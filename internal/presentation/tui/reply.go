package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/skillflow/pkg/domain"
)

// FormatReply renders a reply as markdown: one paragraph per statement,
// then the directives, then an end marker for terminated conversations.
func FormatReply(reply *domain.Reply) string {
	var b strings.Builder

	for _, statement := range reply.Statements() {
		b.WriteString(statement)
		b.WriteString("\n\n")
	}

	for _, d := range reply.Directives() {
		b.WriteString(formatDirective(d))
	}

	if reply.HasTerminated() {
		b.WriteString("_(conversation ended)_\n")
	}
	return b.String()
}

func formatDirective(d domain.Directive) string {
	if d.Type == domain.DirectiveSuggestedActions {
		if items, ok := d.Payload.([]any); ok {
			labels := make([]string, 0, len(items))
			for _, item := range items {
				labels = append(labels, "`"+fmt.Sprint(item)+"`")
			}
			return "> " + strings.Join(labels, " · ") + "\n\n"
		}
	}

	payload, err := json.MarshalIndent(d.Payload, "", "  ")
	if err != nil {
		payload = []byte(fmt.Sprint(d.Payload))
	}
	return fmt.Sprintf("**%s**\n\n```json\n%s\n```\n\n", d.Type, payload)
}

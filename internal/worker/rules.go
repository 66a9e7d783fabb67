package worker

import (
	"context"
	"regexp"
	"strings"

	"omnichat/internal/models"
)

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9][A-Za-z0-9_-]*)`)

// resolveRules selects the user's rules for a turn: always-apply rules plus
// any rule @mentioned anywhere in the transcript, whichever role carries the
// mention, deduped in definition order. The result is the prompt block the
// adapters append after the history as one system message; empty when nothing
// applies.
func (e *Engine) resolveRules(ctx context.Context, userID int64, history []*models.Message) string {
	rules, err := e.store.ListRules(ctx, userID)
	if err != nil {
		debugLog("[engine] list rules for user %d failed: %v", userID, err)
		return ""
	}
	if len(rules) == 0 {
		return ""
	}

	mentioned := make(map[string]bool)
	for _, msg := range history {
		for _, m := range mentionPattern.FindAllStringSubmatch(msg.Content, -1) {
			mentioned[strings.ToLower(m[1])] = true
		}
	}

	var blocks []string
	for _, rule := range rules {
		if rule.AlwaysApply || mentioned[strings.ToLower(rule.Name)] {
			blocks = append(blocks, rule.Content)
		}
	}
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n")
}

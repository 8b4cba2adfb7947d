package services

import (
	"strings"

	"github.com/moshaveran/moshaver-backend/internal/platform/llm"
)

// basePrompt is the standing system instruction for every conversation.
const basePrompt = `شما یک مشاور کسب‌وکار حرفه‌ای هستید که به زبان فارسی پاسخ می‌دهید.
پاسخ‌های شما باید عملی، مشخص و قابل اجرا باشد.
اگر اقدام مشخصی برای کاربر وجود دارد، آن را به شکل [TASK: شرح اقدام] در پاسخ بیاورید.`

// BuildSystemPrompt assembles the upstream system message from the base
// instruction plus whatever optional context is available. Empty sections
// are dropped.
func BuildSystemPrompt(expert *Expert, knowledgeBlock, taskContext string) string {
	sections := []string{basePrompt}
	if expert != nil && strings.TrimSpace(expert.Instructions) != "" {
		sections = append(sections, expert.Instructions)
	}
	if strings.TrimSpace(knowledgeBlock) != "" {
		sections = append(sections, knowledgeBlock)
	}
	if strings.TrimSpace(taskContext) != "" {
		sections = append(sections, "وضعیت وظایف این گفتگو:\n"+taskContext)
	}
	return strings.Join(sections, "\n\n")
}

// AssembleUpstreamMessages prepends the system message and copies the
// client-provided history with any system-role entries dropped; only the
// relay decides what the system prompt is.
func AssembleUpstreamMessages(systemPrompt string, history []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	out = append(out, llm.Message{Role: "system", Content: systemPrompt})
	for _, m := range history {
		if strings.EqualFold(m.Role, "system") {
			continue
		}
		out = append(out, m)
	}
	return out
}

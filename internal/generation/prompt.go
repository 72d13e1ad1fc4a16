package generation

import (
	"fmt"
	"strings"

	"github.com/phrazzld/sage-api/internal/domain"
)

// SystemPrompt is the instruction sent as the system message to chat-style
// providers. Gemini takes a single prompt, so it is prepended there instead.
const SystemPrompt = "You are an educational assistant that provides comprehensive, " +
	"accurate answers to questions. Your answers should be detailed, " +
	"well-structured, and educationally sound."

// BuildPrompt assembles the user prompt for one question: an answer-language
// instruction for non-English targets, the knowledge-base context (or a note
// that none was found), the question itself with any inline context, and the
// answer format instructions.
func BuildPrompt(
	question domain.Question,
	langCfg domain.LanguageConfig,
	entries []domain.KnowledgeEntry,
) string {
	var parts []string

	if langCfg.Code != "en" {
		parts = append(parts, fmt.Sprintf(
			"Please provide your answer in %s (%s).", langCfg.Name, langCfg.NativeName))
	}

	if context := buildContext(entries); context != "" {
		parts = append(parts, context)
		parts = append(parts,
			"\nUse the above educational materials to inform your answer. "+
				"Include citations where appropriate.")
	} else {
		parts = append(parts,
			"Note: No specialized educational materials were found for this topic. "+
				"Please provide a comprehensive answer using general knowledge.")
	}

	parts = append(parts, fmt.Sprintf("\nQuestion: %s", question.Text))
	if question.Context != "" {
		parts = append(parts, fmt.Sprintf("Context: %s", question.Context))
	}

	parts = append(parts,
		"\nProvide a comprehensive, detailed answer that:"+
			"\n1. Directly addresses the question"+
			"\n2. Includes relevant explanations and examples"+
			"\n3. Is educationally sound and accurate"+
			"\n4. Uses clear, understandable language")

	if len(entries) > 0 {
		parts = append(parts, "5. References the educational materials provided where relevant")
	}

	return strings.Join(parts, "\n")
}

// buildContext formats knowledge entries into a numbered reference block,
// or returns "" when there are none.
func buildContext(entries []domain.KnowledgeEntry) string {
	if len(entries) == 0 {
		return ""
	}

	parts := []string{"Relevant educational materials:"}
	for i, entry := range entries {
		parts = append(parts, fmt.Sprintf("\n%d. %s (%s):\n%s", i+1, entry.Topic, entry.Subject, entry.Content))
		if len(entry.References) > 0 {
			parts = append(parts, fmt.Sprintf("   References: %s", strings.Join(entry.References, ", ")))
		}
	}
	return strings.Join(parts, "\n")
}

// BuildReferences collects the distinct references across the knowledge
// entries, preserving first-seen order.
func BuildReferences(entries []domain.KnowledgeEntry) []string {
	var references []string
	seen := make(map[string]struct{})
	for _, entry := range entries {
		for _, ref := range entry.References {
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			references = append(references, ref)
		}
	}
	return references
}

package generation

import (
	"fmt"
	"strings"

	"github.com/phrazzld/sage-api/internal/domain"
)

// Keyword groups that suggest a diagram would help the answer. Matching is
// a case-insensitive substring scan over the question plus the answer.
var (
	architectureKeywords = []string{
		"system", "component", "module", "architecture", "structure",
		"design", "layer", "tier", "service", "microservice",
	}
	processKeywords = []string{
		"process", "workflow", "steps", "procedure", "algorithm",
		"flow", "sequence", "stage", "phase", "cycle",
	}
	hierarchyKeywords = []string{
		"hierarchy", "tree", "organization", "classification",
		"taxonomy", "inheritance", "parent", "child", "level",
	}
)

// DetectVisualSpecs analyzes a question and its generated answer and returns
// specs for the diagram kinds the content suggests. At most one spec per
// kind is produced; content matching nothing returns no specs.
func DetectVisualSpecs(question domain.Question, answerContent, language string) []domain.VisualSpec {
	combined := strings.ToLower(question.Text + " " + answerContent)

	var specs []domain.VisualSpec
	if containsAny(combined, architectureKeywords) {
		specs = append(specs, newSpec(domain.SpecKindBlockDiagram, "Block diagram", question, language))
	}
	if containsAny(combined, processKeywords) {
		specs = append(specs, newSpec(domain.SpecKindFlowchart, "Flowchart", question, language))
	}
	if containsAny(combined, hierarchyKeywords) {
		specs = append(specs, newSpec(domain.SpecKindHierarchy, "Hierarchy diagram", question, language))
	}
	return specs
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// newSpec builds a skeletal spec; the renderer lays out concrete elements.
func newSpec(kind domain.SpecKind, label string, question domain.Question, language string) domain.VisualSpec {
	return domain.VisualSpec{
		Kind:        kind,
		Description: fmt.Sprintf("%s for: %s", label, truncate(question.Text, 50)),
		Language:    language,
	}
}

// truncate shortens text to max runes, appending an ellipsis when cut.
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

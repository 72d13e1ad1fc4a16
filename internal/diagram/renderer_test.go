package diagram

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/sage-api/internal/domain"
)

type stubResolver struct{}

func (stubResolver) Get(code string) (domain.LanguageConfig, error) {
	switch code {
	case "en":
		return domain.LanguageConfig{Code: "en", Name: "English", NativeName: "English"}, nil
	case "ar":
		return domain.LanguageConfig{Code: "ar", Name: "Arabic", NativeName: "العربية", RTL: true}, nil
	default:
		return domain.LanguageConfig{}, fmt.Errorf("language %q is not supported", code)
	}
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	renderer, err := NewRenderer(stubResolver{}, nil)
	require.NoError(t, err)
	return renderer
}

// requirePNG decodes the image data and checks the canvas dimensions.
func requirePNG(t *testing.T, data []byte) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err, "image data must be valid PNG")
	bounds := img.Bounds()
	assert.Equal(t, canvasWidth, bounds.Dx())
	assert.Equal(t, canvasHeight, bounds.Dy())
}

func TestNewRendererValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRenderer(nil, nil)
	assert.ErrorContains(t, err, "language resolver cannot be nil")

	renderer, err := NewRenderer(stubResolver{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, renderer)
}

func TestRenderPlaceholderForEachKind(t *testing.T) {
	t.Parallel()
	renderer := newTestRenderer(t)

	kinds := []domain.SpecKind{
		domain.SpecKindBlockDiagram,
		domain.SpecKindFlowchart,
		domain.SpecKindHierarchy,
		domain.SpecKindSequence,
	}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()

			spec := domain.VisualSpec{
				Kind:        kind,
				Description: fmt.Sprintf("%s for: How does this work?", kind),
				Language:    "en",
			}

			diagram, err := renderer.Render(context.Background(), spec)
			require.NoError(t, err, "specs without elements render a placeholder")
			assert.Equal(t, "png", diagram.Format)
			assert.Equal(t, spec.Description, diagram.Caption)
			assert.Equal(t, "en", diagram.Language)
			requirePNG(t, diagram.ImageData)
		})
	}
}

func TestRenderBlockDiagramWithElements(t *testing.T) {
	t.Parallel()
	renderer := newTestRenderer(t)

	spec := domain.VisualSpec{
		Kind:        domain.SpecKindBlockDiagram,
		Description: "Block diagram for: Describe a web stack",
		Language:    "en",
		Elements: []domain.SpecElement{
			{Type: "node", ID: "web", Label: "Web Server"},
			{Type: "node", ID: "app", Label: "Application"},
			{Type: "node", ID: "db", Label: "Database"},
			{Type: "edge", From: "web", To: "app", Label: "requests"},
			{Type: "edge", From: "app", To: "db", Label: "queries"},
			{Type: "edge", From: "app", To: "missing"},
		},
	}

	diagram, err := renderer.Render(context.Background(), spec)
	require.NoError(t, err, "edges to unknown nodes are skipped, not fatal")
	requirePNG(t, diagram.ImageData)
}

func TestRenderFlowchartWithTypedNodes(t *testing.T) {
	t.Parallel()
	renderer := newTestRenderer(t)

	spec := domain.VisualSpec{
		Kind:        domain.SpecKindFlowchart,
		Description: "Flowchart for: What are the steps?",
		Language:    "en",
		Elements: []domain.SpecElement{
			{Type: "node", ID: "s", Label: "Start", NodeType: "start"},
			{Type: "node", ID: "d", Label: "Valid?", NodeType: "decision"},
			{Type: "node", ID: "p", Label: "Process"},
			{Type: "node", ID: "e", Label: "End", NodeType: "end"},
			{Type: "edge", From: "s", To: "d"},
			{Type: "edge", From: "d", To: "p", Label: "yes"},
			{Type: "edge", From: "p", To: "e"},
		},
	}

	diagram, err := renderer.Render(context.Background(), spec)
	require.NoError(t, err)
	requirePNG(t, diagram.ImageData)
}

func TestRenderHierarchyWithLevels(t *testing.T) {
	t.Parallel()
	renderer := newTestRenderer(t)

	spec := domain.VisualSpec{
		Kind:        domain.SpecKindHierarchy,
		Description: "Hierarchy diagram for: Classify the animals",
		Language:    "en",
		Elements: []domain.SpecElement{
			{Type: "node", ID: "root", Label: "Animalia", Level: 0},
			{Type: "node", ID: "c1", Label: "Chordata", Level: 1},
			{Type: "node", ID: "c2", Label: "Arthropoda", Level: 1},
			{Type: "node", ID: "g1", Label: "Mammalia", Level: 2},
			{Type: "edge", From: "root", To: "c1"},
			{Type: "edge", From: "root", To: "c2"},
			{Type: "edge", From: "c1", To: "g1"},
		},
	}

	diagram, err := renderer.Render(context.Background(), spec)
	require.NoError(t, err)
	requirePNG(t, diagram.ImageData)
}

func TestRenderSequenceWithInteractions(t *testing.T) {
	t.Parallel()
	renderer := newTestRenderer(t)

	spec := domain.VisualSpec{
		Kind:        domain.SpecKindSequence,
		Description: "Sequence for: How does login work?",
		Language:    "en",
		Elements: []domain.SpecElement{
			{Type: "actor", ID: "client", Label: "Client"},
			{Type: "actor", ID: "server", Label: "Server"},
			{Type: "interaction", From: "client", To: "server", Message: "POST /login"},
			{Type: "interaction", From: "server", To: "client", Message: "200 OK"},
		},
	}

	diagram, err := renderer.Render(context.Background(), spec)
	require.NoError(t, err)
	requirePNG(t, diagram.ImageData)
}

func TestRenderRTLLanguage(t *testing.T) {
	t.Parallel()
	renderer := newTestRenderer(t)

	spec := domain.VisualSpec{
		Kind:        domain.SpecKindBlockDiagram,
		Description: "مخطط كتلة",
		Language:    "ar",
	}

	diagram, err := renderer.Render(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, "ar", diagram.Language)
	requirePNG(t, diagram.ImageData)
}

func TestRenderUnknownKind(t *testing.T) {
	t.Parallel()
	renderer := newTestRenderer(t)

	spec := domain.VisualSpec{Kind: "pie_chart", Description: "nope", Language: "en"}
	_, err := renderer.Render(context.Background(), spec)
	require.Error(t, err)

	var renderErr *RenderingError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, domain.SpecKind("pie_chart"), renderErr.Kind)
	assert.ErrorIs(t, err, domain.ErrInvalidSpecKind)
}

func TestRenderUnsupportedLanguage(t *testing.T) {
	t.Parallel()
	renderer := newTestRenderer(t)

	spec := domain.VisualSpec{
		Kind:        domain.SpecKindFlowchart,
		Description: "Flowchart for: anything",
		Language:    "xx",
	}
	_, err := renderer.Render(context.Background(), spec)
	require.Error(t, err)

	var renderErr *RenderingError
	require.ErrorAs(t, err, &renderErr)
	assert.Contains(t, renderErr.Issue, "unsupported language")
}

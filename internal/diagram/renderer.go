package diagram

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"log/slog"
	"math"
	"sort"

	"github.com/fogleman/gg"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/platform/logger"
)

// Canvas geometry shared by all diagram kinds.
const (
	canvasWidth  = 800
	canvasHeight = 600
	headerHeight = 80
	margin       = 40

	nodeWidth  = 240
	nodeHeight = 56
)

// Fill palette for nodes. Strokes and text stay dark gray/black.
var (
	colorBlue   = color.RGBA{R: 173, G: 216, B: 230, A: 255}
	colorGreen  = color.RGBA{R: 144, G: 238, B: 144, A: 255}
	colorYellow = color.RGBA{R: 255, G: 255, B: 224, A: 255}
	colorCoral  = color.RGBA{R: 240, G: 128, B: 128, A: 255}
)

// LanguageResolver resolves ISO 639-1 codes to language configurations.
type LanguageResolver interface {
	Get(code string) (domain.LanguageConfig, error)
}

// Renderer renders visual specs into PNG diagrams.
type Renderer struct {
	languages LanguageResolver
	logger    *slog.Logger
}

// NewRenderer creates a new Renderer. If logger is nil, a default logger
// will be used.
func NewRenderer(languages LanguageResolver, log *slog.Logger) (*Renderer, error) {
	if languages == nil {
		return nil, errors.New("language resolver cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Renderer{
		languages: languages,
		logger:    log.With(slog.String("component", "diagram_renderer")),
	}, nil
}

// Render draws the spec onto a fresh canvas and returns the encoded PNG.
// All failures are RenderingErrors, which the caller may treat as
// recoverable.
func (r *Renderer) Render(ctx context.Context, spec domain.VisualSpec) (*domain.Diagram, error) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	if err := spec.Validate(); err != nil {
		return nil, &RenderingError{Kind: spec.Kind, Issue: "unsupported diagram kind", Err: err}
	}

	langCfg, err := r.languages.Get(spec.Language)
	if err != nil {
		return nil, &RenderingError{Kind: spec.Kind, Issue: "unsupported language", Err: err}
	}

	dc := gg.NewContext(canvasWidth, canvasHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	drawCaptionHeader(dc, spec.Description, langCfg.RTL)

	switch spec.Kind {
	case domain.SpecKindBlockDiagram:
		drawBlockDiagram(dc, spec.Elements)
	case domain.SpecKindFlowchart:
		drawFlowchart(dc, spec.Elements)
	case domain.SpecKindHierarchy:
		drawHierarchy(dc, spec.Elements)
	case domain.SpecKindSequence:
		drawSequence(dc, spec.Elements)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, &RenderingError{Kind: spec.Kind, Issue: "PNG encoding failed", Err: err}
	}

	log.Debug("rendered diagram",
		slog.String("kind", string(spec.Kind)),
		slog.Int("elements", len(spec.Elements)),
		slog.Int("image_bytes", buf.Len()))

	return &domain.Diagram{
		ImageData: buf.Bytes(),
		Format:    "png",
		Caption:   spec.Description,
		Language:  spec.Language,
	}, nil
}

// drawCaptionHeader writes the caption across the top of the canvas,
// right-aligned for RTL languages, with a separator line below it.
func drawCaptionHeader(dc *gg.Context, caption string, rtl bool) {
	dc.SetRGB(0.2, 0.2, 0.2)
	if rtl {
		dc.DrawStringWrapped(caption, canvasWidth-margin, 24, 1, 0,
			canvasWidth-2*margin, 1.4, gg.AlignRight)
	} else {
		dc.DrawStringWrapped(caption, margin, 24, 0, 0,
			canvasWidth-2*margin, 1.4, gg.AlignLeft)
	}

	dc.SetRGB(0.8, 0.8, 0.8)
	dc.SetLineWidth(1)
	dc.DrawLine(margin, headerHeight, canvasWidth-margin, headerHeight)
	dc.Stroke()
}

// elementsOf filters elements by their Type field.
func elementsOf(elements []domain.SpecElement, elemType string) []domain.SpecElement {
	var out []domain.SpecElement
	for _, element := range elements {
		if element.Type == elemType {
			out = append(out, element)
		}
	}
	return out
}

// layoutColumn spaces nodes evenly down the middle of the drawable area and
// returns their centers keyed by element ID.
func layoutColumn(nodes []domain.SpecElement) map[string]gg.Point {
	areaTop := float64(headerHeight + margin/2)
	areaHeight := canvasHeight - areaTop - margin
	step := areaHeight / float64(len(nodes))

	centers := make(map[string]gg.Point, len(nodes))
	for i, node := range nodes {
		centers[node.ID] = gg.Point{
			X: canvasWidth / 2,
			Y: areaTop + step*(float64(i)+0.5),
		}
	}
	return centers
}

func drawBlockDiagram(dc *gg.Context, elements []domain.SpecElement) {
	nodes := elementsOf(elements, "node")
	if len(nodes) == 0 {
		nodes = []domain.SpecElement{{Type: "node", ID: "block_1", Label: "Component Diagram"}}
	}

	centers := layoutColumn(nodes)
	drawArrowEdges(dc, elementsOf(elements, "edge"), centers)
	for _, node := range nodes {
		center := centers[node.ID]
		drawRoundedNode(dc, center.X, center.Y, colorBlue, node.Label)
	}
}

func drawFlowchart(dc *gg.Context, elements []domain.SpecElement) {
	nodes := elementsOf(elements, "node")
	if len(nodes) == 0 {
		nodes = []domain.SpecElement{{Type: "node", ID: "flowchart_1", Label: "Process Flow"}}
	}

	centers := layoutColumn(nodes)
	drawArrowEdges(dc, elementsOf(elements, "edge"), centers)
	for _, node := range nodes {
		center := centers[node.ID]
		switch node.NodeType {
		case "start", "end":
			drawEllipseNode(dc, center.X, center.Y, colorGreen, node.Label)
		case "decision":
			drawDiamondNode(dc, center.X, center.Y, colorYellow, node.Label)
		default:
			drawBoxNode(dc, center.X, center.Y, colorBlue, node.Label)
		}
	}
}

func drawHierarchy(dc *gg.Context, elements []domain.SpecElement) {
	nodes := elementsOf(elements, "node")
	if len(nodes) == 0 {
		nodes = []domain.SpecElement{{Type: "node", ID: "hierarchy_1", Label: "Hierarchical Structure"}}
	}

	// Row per level, top-down, nodes spread evenly within each row.
	byLevel := make(map[int][]domain.SpecElement)
	for _, node := range nodes {
		byLevel[node.Level] = append(byLevel[node.Level], node)
	}
	levels := make([]int, 0, len(byLevel))
	for level := range byLevel {
		levels = append(levels, level)
	}
	sort.Ints(levels)

	areaTop := float64(headerHeight + margin/2)
	rowHeight := (canvasHeight - areaTop - margin) / float64(len(levels))

	centers := make(map[string]gg.Point, len(nodes))
	for rowIdx, level := range levels {
		row := byLevel[level]
		stepX := (canvasWidth - 2.0*margin) / float64(len(row))
		y := areaTop + rowHeight*(float64(rowIdx)+0.5)
		for colIdx, node := range row {
			centers[node.ID] = gg.Point{X: margin + stepX*(float64(colIdx)+0.5), Y: y}
		}
	}

	drawArrowEdges(dc, elementsOf(elements, "edge"), centers)
	for _, node := range nodes {
		center := centers[node.ID]
		drawRoundedNode(dc, center.X, center.Y, levelColor(node.Level), node.Label)
	}
}

// levelColor follows the hierarchy palette: root coral, second level
// yellow, everything deeper blue.
func levelColor(level int) color.RGBA {
	switch level {
	case 0:
		return colorCoral
	case 1:
		return colorYellow
	default:
		return colorBlue
	}
}

func drawSequence(dc *gg.Context, elements []domain.SpecElement) {
	actors := elementsOf(elements, "actor")
	if len(actors) == 0 {
		actors = []domain.SpecElement{{Type: "actor", ID: "sequence_1", Label: "Interaction Sequence"}}
	}

	areaTop := float64(headerHeight + margin/2)
	actorY := areaTop + nodeHeight/2
	stepX := (canvasWidth - 2.0*margin) / float64(len(actors))

	centers := make(map[string]gg.Point, len(actors))
	for i, actor := range actors {
		x := margin + stepX*(float64(i)+0.5)
		centers[actor.ID] = gg.Point{X: x, Y: actorY}

		// Lifeline below each actor.
		dc.SetRGB(0.6, 0.6, 0.6)
		dc.SetLineWidth(1)
		dc.SetDash(6, 4)
		dc.DrawLine(x, actorY+nodeHeight/2, x, canvasHeight-margin)
		dc.Stroke()
		dc.SetDash()
	}

	interactionY := actorY + nodeHeight
	for _, interaction := range elementsOf(elements, "interaction") {
		from, okFrom := centers[interaction.From]
		to, okTo := centers[interaction.To]
		if !okFrom || !okTo {
			continue
		}
		interactionY += 44
		drawArrow(dc, from.X, interactionY, to.X, interactionY, interaction.Message)
	}

	for _, actor := range actors {
		center := centers[actor.ID]
		drawBoxNode(dc, center.X, center.Y, colorGreen, actor.Label)
	}
}

// drawArrowEdges draws one arrow per edge element, shortened so arrowheads
// land on node borders rather than centers. Edges naming unknown nodes are
// skipped.
func drawArrowEdges(dc *gg.Context, edges []domain.SpecElement, centers map[string]gg.Point) {
	for _, edge := range edges {
		from, okFrom := centers[edge.From]
		to, okTo := centers[edge.To]
		if !okFrom || !okTo {
			continue
		}

		dx, dy := to.X-from.X, to.Y-from.Y
		dist := math.Hypot(dx, dy)
		if dist == 0 {
			continue
		}
		inset := math.Min(nodeHeight/2+6, dist/2)
		startX := from.X + dx/dist*inset
		startY := from.Y + dy/dist*inset
		endX := to.X - dx/dist*inset
		endY := to.Y - dy/dist*inset

		drawArrow(dc, startX, startY, endX, endY, edge.Label)
	}
}

func drawArrow(dc *gg.Context, x1, y1, x2, y2 float64, label string) {
	dc.SetRGB(0.25, 0.25, 0.25)
	dc.SetLineWidth(2)
	dc.DrawLine(x1, y1, x2, y2)
	dc.Stroke()

	const tip = 10.0
	angle := math.Atan2(y2-y1, x2-x1)
	dc.MoveTo(x2, y2)
	dc.LineTo(x2-tip*math.Cos(angle-0.4), y2-tip*math.Sin(angle-0.4))
	dc.LineTo(x2-tip*math.Cos(angle+0.4), y2-tip*math.Sin(angle+0.4))
	dc.ClosePath()
	dc.Fill()

	if label != "" {
		dc.SetRGB(0.1, 0.1, 0.1)
		dc.DrawStringAnchored(label, (x1+x2)/2+8, (y1+y2)/2-8, 0, 0.5)
	}
}

func drawRoundedNode(dc *gg.Context, cx, cy float64, fill color.RGBA, label string) {
	dc.DrawRoundedRectangle(cx-nodeWidth/2, cy-nodeHeight/2, nodeWidth, nodeHeight, 8)
	fillAndStroke(dc, fill)
	drawNodeLabel(dc, cx, cy, label)
}

func drawBoxNode(dc *gg.Context, cx, cy float64, fill color.RGBA, label string) {
	dc.DrawRectangle(cx-nodeWidth/2, cy-nodeHeight/2, nodeWidth, nodeHeight)
	fillAndStroke(dc, fill)
	drawNodeLabel(dc, cx, cy, label)
}

func drawEllipseNode(dc *gg.Context, cx, cy float64, fill color.RGBA, label string) {
	dc.DrawEllipse(cx, cy, nodeWidth/2, nodeHeight/2)
	fillAndStroke(dc, fill)
	drawNodeLabel(dc, cx, cy, label)
}

func drawDiamondNode(dc *gg.Context, cx, cy float64, fill color.RGBA, label string) {
	halfW, halfH := nodeWidth/2.0, nodeHeight/2.0+8
	dc.MoveTo(cx, cy-halfH)
	dc.LineTo(cx+halfW, cy)
	dc.LineTo(cx, cy+halfH)
	dc.LineTo(cx-halfW, cy)
	dc.ClosePath()
	fillAndStroke(dc, fill)
	drawNodeLabel(dc, cx, cy, label)
}

func fillAndStroke(dc *gg.Context, fill color.RGBA) {
	dc.SetColor(fill)
	dc.FillPreserve()
	dc.SetRGB(0.25, 0.25, 0.25)
	dc.SetLineWidth(2)
	dc.Stroke()
}

func drawNodeLabel(dc *gg.Context, cx, cy float64, label string) {
	if label == "" {
		return
	}
	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(label, cx, cy, 0.5, 0.5)
}

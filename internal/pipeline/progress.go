package pipeline

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/platform/logger"
	"github.com/phrazzld/sage-api/internal/store"
)

// Band is the slice of overall progress assigned to one pipeline stage.
type Band struct {
	Lo int
	Hi int
}

// The six stage bands. Together they cover 0-100 without gaps.
var (
	BandInitialize = Band{0, 5}
	BandParse      = Band{5, 20}
	BandGenerate   = Band{20, 60}
	BandDiagrams   = Band{60, 75}
	BandAssemble   = Band{75, 90}
	BandPersist    = Band{90, 100}
)

// Remap converts a stage-local percentage (0-100, clamped) to the overall
// percentage within the band.
func (b Band) Remap(local int) int {
	if local < 0 {
		local = 0
	}
	if local > 100 {
		local = 100
	}
	return b.Lo + int(math.Round(float64(local)/100*float64(b.Hi-b.Lo)))
}

// Reporter appends progress events for one session. Append failures are
// logged and swallowed: progress reporting must never abort a pipeline.
type Reporter struct {
	sessions  store.SessionStore
	sessionID string
	logger    *slog.Logger
}

// NewReporter creates a Reporter for one session.
func NewReporter(sessions store.SessionStore, sessionID string, log *slog.Logger) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{
		sessions:  sessions,
		sessionID: sessionID,
		logger:    log.With(slog.String("component", "progress_reporter")),
	}
}

// Report emits one event at the overall percentage obtained by remapping
// the stage-local percentage into the band.
func (r *Reporter) Report(ctx context.Context, stage string, band Band, local int, message string) {
	r.emit(ctx, stage, band.Remap(local), message)
}

// ReportError emits the terminal failure event at zero percent.
func (r *Reporter) ReportError(ctx context.Context, message string) {
	r.emit(ctx, "error", 0, message)
}

func (r *Reporter) emit(ctx context.Context, stage string, percentage int, message string) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	event := domain.ProgressEvent{
		SessionID:  r.sessionID,
		Stage:      stage,
		Percentage: percentage,
		Message:    message,
		Timestamp:  time.Now().UTC(),
	}
	if err := r.sessions.AppendProgress(ctx, event); err != nil {
		log.Warn("failed to emit progress event",
			slog.String("session_id", r.sessionID),
			slog.String("stage", stage),
			slog.String("error", err.Error()))
	}
}

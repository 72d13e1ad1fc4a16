package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/phrazzld/sage-api/internal/api/shared"
	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/service"
)

// ProcessingService is the slice of the processing service the HTTP
// handlers consume.
type ProcessingService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (string, error)
	Status(ctx context.Context, sessionID string) (*service.StatusInfo, error)
	Languages() []domain.LanguageConfig
	Download(ctx context.Context, sessionID string) (*domain.Document, error)
	Regenerate(ctx context.Context, params service.RegenerateParams) (string, error)
}

// defaultUploadLanguage is assumed when a submission names no language.
const defaultUploadLanguage = "en"

// ProcessingHandler serves the document pipeline endpoints: upload, status
// polling, regeneration, download, and the language listing.
type ProcessingHandler struct {
	service        ProcessingService
	maxUploadBytes int64
}

// NewProcessingHandler creates a ProcessingHandler. maxUploadMB bounds the
// multipart request body.
func NewProcessingHandler(svc ProcessingService, maxUploadMB int) *ProcessingHandler {
	return &ProcessingHandler{
		service:        svc,
		maxUploadBytes: int64(maxUploadMB) * 1024 * 1024,
	}
}

// Upload handles POST /api/upload. It accepts a multipart form with the
// input file, target language, optional provider, and optional session
// identifier, and responds 202 with the session ID once the submission is
// queued.
func (h *ProcessingHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// One extra MB covers multipart framing; the exact content cap is
	// enforced again by the service.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(h.maxUploadBytes + 1024*1024); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge, "Uploaded file is too large")
			return
		}
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "A file upload is required")
		return
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Failed to read uploaded file", err)
		return
	}

	language := r.FormValue("language")
	if language == "" {
		language = defaultUploadLanguage
	}

	sessionID, err := h.service.Submit(r.Context(), service.SubmitRequest{
		Filename:  header.Filename,
		Content:   content,
		Language:  language,
		Provider:  r.FormValue("provider"),
		SessionID: r.FormValue("session_id"),
		UserID:    optionalUserID(r),
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, UploadResponse{
		SessionID: sessionID,
		Status:    string(domain.SessionStatusPending),
	})
}

// Status handles GET /api/status/{sessionID}.
func (h *ProcessingHandler) Status(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathSessionID(w, r)
	if !ok {
		return
	}

	info, err := h.service.Status(r.Context(), sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	answers := info.Answers
	if answers == nil {
		answers = []domain.AnswerPreview{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StatusResponse{
		SessionID: info.SessionID,
		Status:    string(info.Status),
		Progress:  info.Progress,
		Stage:     info.Stage,
		Message:   info.Message,
		Answers:   answers,
	})
}

// Languages handles GET /api/languages.
func (h *ProcessingHandler) Languages(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, LanguagesResponse{
		Languages: h.service.Languages(),
	})
}

// Regenerate handles POST /api/regenerate/{sessionID}/{questionIndex}. The
// regeneration runs synchronously; the response carries the updated answer.
func (h *ProcessingHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathSessionID(w, r)
	if !ok {
		return
	}
	questionIndex, ok := pathInt(w, r, "questionIndex")
	if !ok {
		return
	}

	var req RegenerateAnswerRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "A change_request is required")
		return
	}

	answer, err := h.service.Regenerate(r.Context(), service.RegenerateParams{
		SessionID:     sessionID,
		QuestionIndex: questionIndex,
		ChangeRequest: req.ChangeRequest,
		UserID:        optionalUserID(r),
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, RegenerateAnswerResponse{
		SessionID:     sessionID,
		QuestionIndex: questionIndex,
		Answer:        answer,
	})
}

// Download handles GET /api/download/{sessionID}, streaming the assembled
// PDF as an attachment.
func (h *ProcessingHandler) Download(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathSessionID(w, r)
	if !ok {
		return
	}

	doc, err := h.service.Download(r.Context(), sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	filename := doc.Filename
	if filename == "" {
		filename = "answers.pdf"
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Content)))
	w.WriteHeader(http.StatusOK)
	// Write failures past this point cannot change the response status.
	_, _ = w.Write(doc.Content)
}

// HealthCheck handles GET /health.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

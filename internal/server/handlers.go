package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"

	"slidecast-api/internal/job"
	"slidecast-api/internal/media"
	"slidecast-api/internal/plan"
	"slidecast-api/internal/storage"
)

// defaultMaxUploadBytes caps multipart request bodies at 500 MB.
const defaultMaxUploadBytes int64 = 500 << 20

// multipartMemoryBytes is how much of a parsed form is held in memory before
// spilling to disk.
const multipartMemoryBytes int64 = 32 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	assemble   *job.AssembleService
	transcribe *job.TranscribeService
	detector   *media.SeparatorDetector
	store      storage.Storage
	validator  *validator.Validate
	logger     *slog.Logger

	maxUploadBytes     int64
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, create handlers only create the job and return immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithTranscription wires the transcription service. Without it the
// transcription routes answer 503.
func WithTranscription(svc *job.TranscribeService) HandlerOption {
	return func(h *Handlers) {
		h.transcribe = svc
	}
}

// WithDetector overrides the separator detector.
func WithDetector(d *media.SeparatorDetector) HandlerOption {
	return func(h *Handlers) {
		h.detector = d
	}
}

// WithMaxUploadBytes overrides the multipart body cap.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(assemble *job.AssembleService, store storage.Storage, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		assemble:           assemble,
		detector:           media.NewSeparatorDetector(),
		store:              store,
		validator:          validator.New(),
		logger:             logger,
		maxUploadBytes:     defaultMaxUploadBytes,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /jobs requests. The body is multipart/form-data
// with one or more "images" files, an optional "audio" file, and the layout
// fields (mode, aspect_ratio, fps, separator_seconds, output_name,
// push_to_s3).
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseMultipart(w, r)
	if !ok {
		return
	}
	defer func() {
		if err := form.RemoveAll(); err != nil {
			h.logger.Warn("failed to clean up multipart form",
				slog.String("error", err.Error()),
			)
		}
	}()

	images := form.File["images"]
	if len(images) == 0 {
		writeError(w, http.StatusBadRequest, "at least one image file is required", "INVALID_INPUT")
		return
	}
	for _, fh := range images {
		if !media.IsSupportedImage(fh.Filename) {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("unsupported image format %q", filepath.Base(fh.Filename)), "UNSUPPORTED_FORMAT")
			return
		}
	}

	var audio *multipart.FileHeader
	if audios := form.File["audio"]; len(audios) > 0 {
		audio = audios[0]
		if !media.IsSupportedAudio(audio.Filename) {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("unsupported audio format %q", filepath.Base(audio.Filename)), "UNSUPPORTED_FORMAT")
			return
		}
	}

	input, closers, err := h.buildAssembleInput(r, images, audio)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	createdJob, err := h.assemble.CreateJob(r.Context(), input)
	if err != nil {
		if plan.IsInvalidInput(err) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if processErr := h.assemble.Process(ctx, jobID); processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.Int("images", len(images)),
		slog.Bool("has_audio", audio != nil),
		slog.String("mode", string(createdJob.Mode)),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// buildAssembleInput turns the parsed form into a service input. The
// returned closers must be closed by the caller once the uploads have been
// consumed, error or not.
func (h *Handlers) buildAssembleInput(r *http.Request, images []*multipart.FileHeader, audio *multipart.FileHeader) (job.AssembleInput, []io.Closer, error) {
	input := job.AssembleInput{
		Mode:        plan.Mode(r.FormValue("mode")),
		AspectRatio: r.FormValue("aspect_ratio"),
		OutputName:  r.FormValue("output_name"),
	}
	var closers []io.Closer

	if v := r.FormValue("fps"); v != "" {
		fps, err := strconv.Atoi(v)
		if err != nil {
			return input, closers, fmt.Errorf("invalid fps %q", v)
		}
		input.FPS = fps
	}
	if v := r.FormValue("separator_seconds"); v != "" {
		sep, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return input, closers, fmt.Errorf("invalid separator_seconds %q", v)
		}
		input.SeparatorSeconds = sep
	}
	if v := r.FormValue("push_to_s3"); v != "" {
		push, err := strconv.ParseBool(v)
		if err != nil {
			return input, closers, fmt.Errorf("invalid push_to_s3 %q", v)
		}
		input.PushToS3 = push
	}

	for _, fh := range images {
		f, err := fh.Open()
		if err != nil {
			return input, closers, fmt.Errorf("open upload %q: %w", fh.Filename, err)
		}
		closers = append(closers, f)
		input.Images = append(input.Images, job.Upload{Filename: fh.Filename, Data: f})
	}
	if audio != nil {
		f, err := audio.Open()
		if err != nil {
			return input, closers, fmt.Errorf("open upload %q: %w", audio.Filename, err)
		}
		closers = append(closers, f)
		input.Audio = &job.Upload{Filename: audio.Filename, Data: f}
	}

	return input, closers, nil
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	j, ok := h.fetchJob(w, r, job.KindAssemble)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(j))
}

// DownloadVideo handles GET /jobs/{id}/video requests. Completed jobs whose
// video went to S3 redirect there; local videos stream as an attachment.
func (h *Handlers) DownloadVideo(w http.ResponseWriter, r *http.Request) {
	j, ok := h.fetchJob(w, r, job.KindAssemble)
	if !ok {
		return
	}
	if j.Status != job.StatusCompleted {
		writeError(w, http.StatusConflict, "job has not completed", "JOB_NOT_READY")
		return
	}
	if j.VideoURL != "" {
		http.Redirect(w, r, j.VideoURL, http.StatusTemporaryRedirect)
		return
	}
	if j.OutputVideoPath == "" {
		writeError(w, http.StatusNotFound, "video has been deleted", "VIDEO_NOT_FOUND")
		return
	}
	if _, err := os.Stat(j.OutputVideoPath); err != nil {
		h.logger.Error("output video missing",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusNotFound, "video file not found", "VIDEO_NOT_FOUND")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", j.OutputName))
	http.ServeFile(w, r, j.OutputVideoPath)
}

// DeleteVideo handles POST /jobs/{id}/video/delete requests. Deleting an
// already deleted video succeeds.
func (h *Handlers) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	if err := h.assemble.DeleteVideo(r.Context(), id); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to delete video",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete video", "VIDEO_DELETE_FAILED")
		return
	}

	h.logger.Info("video deleted", slog.String("job_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// CreateTranscription handles POST /transcriptions requests.
func (h *Handlers) CreateTranscription(w http.ResponseWriter, r *http.Request) {
	if h.transcribe == nil {
		writeError(w, http.StatusServiceUnavailable, "transcription is not configured", "TRANSCRIPTION_DISABLED")
		return
	}

	var req CreateTranscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON in request body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("validation failed: %v", err), "VALIDATION_ERROR")
		return
	}

	createdJob, err := h.transcribe.CreateJob(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, job.ErrInvalidSourceURL) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if processErr := h.transcribe.Process(ctx, jobID); processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	h.logger.Info("transcription job created",
		slog.String("job_id", createdJob.ID),
		slog.String("url", req.URL),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// GetTranscription handles GET /transcriptions/{id} requests.
func (h *Handlers) GetTranscription(w http.ResponseWriter, r *http.Request) {
	if h.transcribe == nil {
		writeError(w, http.StatusServiceUnavailable, "transcription is not configured", "TRANSCRIPTION_DISABLED")
		return
	}
	j, ok := h.fetchJob(w, r, job.KindTranscribe)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, TranscriptionResponse{
		ID:       j.ID,
		Status:   string(j.Status),
		Progress: j.Progress,
		Stage:    j.Stage,
		Text:     j.Transcript,
		Error:    j.Error,
		URL:      j.SourceURL,
	})
}

// DetectSeparators handles POST /videos/separators requests. Detection runs
// synchronously; the uploaded video is staged to disk for ffmpeg and removed
// before responding.
func (h *Handlers) DetectSeparators(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseMultipart(w, r)
	if !ok {
		return
	}
	defer func() {
		if err := form.RemoveAll(); err != nil {
			h.logger.Warn("failed to clean up multipart form",
				slog.String("error", err.Error()),
			)
		}
	}()

	videos := form.File["video"]
	if len(videos) == 0 {
		writeError(w, http.StatusBadRequest, "a video file is required", "INVALID_INPUT")
		return
	}

	opts := media.DefaultDetectOpts()
	if v := r.FormValue("threshold"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid threshold %q", v), "VALIDATION_ERROR")
			return
		}
		opts.Threshold = threshold
	}

	f, err := videos[0].Open()
	if err != nil {
		h.logger.Error("failed to open upload",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read upload", "UPLOAD_READ_FAILED")
		return
	}
	defer func() { _ = f.Close() }()

	path, err := h.store.SaveTemp(r.Context(), "detect_"+filepath.Base(videos[0].Filename), f)
	if err != nil {
		h.logger.Error("failed to save upload",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to save upload", "UPLOAD_SAVE_FAILED")
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			h.logger.Warn("failed to remove staged video",
				slog.String("error", err.Error()),
			)
		}
	}()

	ranges, err := h.detector.Detect(r.Context(), path, opts)
	if err != nil {
		if errors.Is(err, media.ErrInvalidThreshold) || errors.Is(err, media.ErrInvalidInterval) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
			return
		}
		h.logger.Error("separator detection failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "separator detection failed", "DETECTION_FAILED")
		return
	}
	if ranges == nil {
		ranges = []media.TimeRange{}
	}

	writeJSON(w, http.StatusOK, DetectSeparatorsResponse{Segments: ranges})
}

// parseMultipart applies the body cap and parses the form, writing the error
// response itself when parsing fails.
func (h *Handlers) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit), "PAYLOAD_TOO_LARGE")
			return nil, false
		}
		h.logger.Warn("failed to parse multipart form",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
		return nil, false
	}
	return r.MultipartForm, true
}

// fetchJob loads a job by path ID and checks it is the expected kind,
// writing the error response itself when that fails.
func (h *Handlers) fetchJob(w http.ResponseWriter, r *http.Request, kind job.Kind) (*job.Job, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return nil, false
	}

	j, err := h.assemble.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return nil, false
	}
	if j.Kind != kind {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return nil, false
	}
	return j, true
}

// jobResponse maps a job to its API representation.
func jobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:       j.ID,
		Kind:     string(j.Kind),
		Status:   string(j.Status),
		Progress: j.Progress,
		Stage:    j.Stage,
		Error:    j.Error,
		VideoURL: j.VideoURL,
	}
	for _, seg := range j.Segments {
		resp.Segments = append(resp.Segments, SegmentResponse{
			Index:  seg.Index,
			Kind:   string(seg.Kind),
			Group:  seg.GroupKey,
			Status: string(seg.Status),
		})
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// Package job provides the Job aggregate for slideshow assembly and clip
// transcription work. It includes the Job entity with state machine
// transitions, as well as repository interfaces for persistence.
package job

import (
	"errors"
	"sync"
	"time"

	"slidecast-api/internal/job/id"
	"slidecast-api/internal/plan"
)

// Kind represents the type of work a job performs.
type Kind string

const (
	// KindAssemble builds a slideshow video from uploaded images.
	KindAssemble Kind = "assemble"
	// KindTranscribe extracts and transcribes the audio of a clip URL.
	KindTranscribe Kind = "transcribe"
)

// IsValid returns true if the kind is valid.
func (k Kind) IsValid() bool {
	return k == KindAssemble || k == KindTranscribe
}

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to be picked up.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job is being processed.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was manually cancelled.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates the job expired before finishing.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// SegmentStatus represents the render status of a single planned segment.
type SegmentStatus string

const (
	// SegmentPending indicates the segment is waiting to be rendered.
	SegmentPending SegmentStatus = "PENDING"
	// SegmentRendering indicates the segment is currently being rendered.
	SegmentRendering SegmentStatus = "RENDERING"
	// SegmentCompleted indicates the segment was rendered successfully.
	SegmentCompleted SegmentStatus = "COMPLETED"
	// SegmentFailed indicates the segment render failed.
	SegmentFailed SegmentStatus = "FAILED"
)

// SegmentState tracks the render of one planned segment.
type SegmentState struct {
	// Index is the position of this segment in the render plan.
	Index int
	// Kind mirrors the planned segment kind (images or separator).
	Kind plan.SegmentKind
	// GroupKey is the filename group this segment shows, if any.
	GroupKey string
	// Status is the current render status.
	Status SegmentStatus
	// OutputPath is the path to the rendered segment file.
	OutputPath string
	// Error contains any error message if rendering failed.
	Error string
	// StartedAt is when the segment render started.
	StartedAt time.Time
	// CompletedAt is when the segment render finished.
	CompletedAt time.Time
}

// Job represents a unit of asynchronous work. It is the aggregate both the
// assembly and transcription pipelines report into.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Kind is the type of work (assemble or transcribe).
	Kind Kind
	// Status is the current job state.
	Status Status
	// Progress is the percentage of completion (0-100).
	Progress int
	// Stage is a short description of the current pipeline phase.
	Stage string
	// Error contains any error message if the job failed.
	Error string

	// Images are the stored uploads, in upload order.
	Images []plan.ImageFile
	// AudioPath is the path to the stored audio track, if any.
	AudioPath string
	// HasAudio indicates whether an audio track was uploaded.
	HasAudio bool
	// AspectRatio is the requested output aspect ratio name.
	AspectRatio string
	// FPS is the requested output frame rate.
	FPS int
	// Mode selects single or multi segment layout.
	Mode plan.Mode
	// SeparatorSeconds is the separator duration for multi mode.
	SeparatorSeconds float64
	// OutputName is the filename the finished video is served under.
	OutputName string
	// Segments tracks per-segment render state.
	Segments []SegmentState

	// WorkspaceDir is the per-job scratch directory.
	WorkspaceDir string
	// OutputVideoPath is the path to the final output video.
	OutputVideoPath string
	// PushToS3 indicates whether to upload the result to S3.
	PushToS3 bool
	// VideoURL is the S3 URL if PushToS3 was true.
	VideoURL string

	// SourceURL is the clip URL for transcription jobs.
	SourceURL string
	// Transcript is the finished transcription text.
	Transcript string

	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job of the given kind with a generated ID and initial
// IN_QUEUE status.
func New(kind Kind) *Job {
	return NewWithID(kind, id.Generate(string(kind)))
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE
// status. Useful for testing or when the ID needs to be externally generated.
func NewWithID(kind Kind, jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Kind:      kind,
		Status:    StatusInQueue,
		Segments:  make([]SegmentState, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
// Returns ErrInvalidTransition if the job is not in IN_QUEUE state.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// Timeout transitions the job to TIMED_OUT state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) Timeout() error {
	return j.TransitionTo(StatusTimedOut)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetSegments sets the per-segment render state for this job.
func (j *Job) SetSegments(segments []SegmentState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Segments = segments
	j.UpdatedAt = time.Now()
}

// UpdateSegment updates a specific segment by index.
func (j *Job) UpdateSegment(index int, segment SegmentState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if index >= 0 && index < len(j.Segments) {
		j.Segments[index] = segment
		j.UpdatedAt = time.Now()
	}
}

// CompleteSegment marks a segment as rendered. Out-of-range indexes are
// ignored, and an already completed segment keeps its original timestamp.
func (j *Job) CompleteSegment(index int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if index < 0 || index >= len(j.Segments) {
		return
	}
	if j.Segments[index].Status == SegmentCompleted {
		return
	}
	now := time.Now()
	j.Segments[index].Status = SegmentCompleted
	j.Segments[index].CompletedAt = now
	j.UpdatedAt = now
}

// UpdateProgress sets the progress percentage (clamped to 0-100) and, when
// stage is non-empty, the current pipeline phase description.
func (j *Job) UpdateProgress(progress int, stage string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	if stage != "" {
		j.Stage = stage
	}
	j.UpdatedAt = time.Now()
}

// SetOutput sets the output video path and optional S3 URL.
func (j *Job) SetOutput(videoPath, videoURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputVideoPath = videoPath
	j.VideoURL = videoURL
	j.UpdatedAt = time.Now()
}

// ClearOutput clears the output video path and URL.
// This is used when deleting the job's video file.
func (j *Job) ClearOutput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputVideoPath = ""
	j.VideoURL = ""
	j.UpdatedAt = time.Now()
}

// SetTranscript stores the finished transcription text.
func (j *Job) SetTranscript(text string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Transcript = text
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled ||
		j.Status == StatusTimedOut
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	segments := make([]SegmentState, len(j.Segments))
	copy(segments, j.Segments)
	images := make([]plan.ImageFile, len(j.Images))
	copy(images, j.Images)

	return &Job{
		ID:               j.ID,
		Kind:             j.Kind,
		Status:           j.Status,
		Progress:         j.Progress,
		Stage:            j.Stage,
		Error:            j.Error,
		Images:           images,
		AudioPath:        j.AudioPath,
		HasAudio:         j.HasAudio,
		AspectRatio:      j.AspectRatio,
		FPS:              j.FPS,
		Mode:             j.Mode,
		SeparatorSeconds: j.SeparatorSeconds,
		OutputName:       j.OutputName,
		Segments:         segments,
		WorkspaceDir:     j.WorkspaceDir,
		OutputVideoPath:  j.OutputVideoPath,
		PushToS3:         j.PushToS3,
		VideoURL:         j.VideoURL,
		SourceURL:        j.SourceURL,
		Transcript:       j.Transcript,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
	}
}

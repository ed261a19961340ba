// Package server provides the HTTP server for the slidecast API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "slidecast-api/internal/media"

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// SegmentResponse describes the render state of one planned segment.
type SegmentResponse struct {
	// Index is the position of the segment in the render plan.
	Index int `json:"index"`
	// Kind is either images or separator.
	Kind string `json:"kind"`
	// Group is the filename group the segment shows, if any.
	Group string `json:"group,omitempty"`
	// Status is the render status of the segment.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting assembly job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Kind is the type of work the job performs.
	Kind string `json:"kind"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Stage is a short description of the current pipeline phase.
	Stage string `json:"stage,omitempty"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// Segments is the per-segment render state.
	Segments []SegmentResponse `json:"segments,omitempty"`
	// VideoURL is the S3 URL of the output video (if push_to_s3=true and completed).
	VideoURL string `json:"video_url,omitempty"`
}

// CreateTranscriptionRequest is the HTTP request body for transcribing a clip.
type CreateTranscriptionRequest struct {
	// URL is the public clip URL to download and transcribe.
	URL string `json:"url" validate:"required,url"`
}

// TranscriptionResponse is the HTTP response for getting transcription details.
type TranscriptionResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Stage is a short description of the current pipeline phase.
	Stage string `json:"stage,omitempty"`
	// Text is the finished transcript (if completed).
	Text string `json:"text,omitempty"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// URL is the clip URL the job was created with.
	URL string `json:"url"`
}

// DetectSeparatorsResponse is the HTTP response for separator detection.
type DetectSeparatorsResponse struct {
	// Segments are the detected separator time ranges, in order.
	Segments []media.TimeRange `json:"segments"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

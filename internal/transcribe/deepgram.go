package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Static errors for Deepgram client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided and the
	// DEEPGRAM_API_KEY environment variable is not set.
	ErrAPIKeyNotSet = errors.New("deepgram: DEEPGRAM_API_KEY environment variable is not set")
	// ErrEmptyAudio is returned when the audio file has no content.
	ErrEmptyAudio = errors.New("deepgram: audio file is empty")
	// ErrNoTranscript is returned when the response carries no transcript text.
	ErrNoTranscript = errors.New("deepgram: response contains no transcript")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("deepgram: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("deepgram: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("deepgram: request failed")
)

// Compile-time check that Client implements Transcriber.
var _ Transcriber = (*Client)(nil)

// Client is the HTTP implementation of Transcriber backed by Deepgram's
// pre-recorded listen API.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	language    string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL for the Deepgram API.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithModel sets the speech-to-text model.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithLanguage sets the expected language of the audio.
func WithLanguage(lang string) ClientOption {
	return func(c *Client) {
		c.language = lang
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.baseBackoff = d
	}
}

// NewClient creates a new Deepgram client. The API key can be set via the
// WithAPIKey option. If not provided, it is read from the environment
// variable DEEPGRAM_API_KEY.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		baseURL:     "https://api.deepgram.com",
		model:       "nova-2",
		language:    "pt",
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// TranscribeFile uploads an audio file and returns its transcript.
func (c *Client) TranscribeFile(ctx context.Context, audioPath string) (*Result, error) {
	audio, err := os.ReadFile(audioPath) // #nosec G304 - audioPath is produced by the download step
	if err != nil {
		return nil, fmt.Errorf("deepgram: read audio file: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	var resp listenResponse
	if err := c.doRequestWithRetry(ctx, c.listenURL(), audio, contentTypeForExt(audioPath), &resp); err != nil {
		return nil, err
	}

	return mapResult(&resp)
}

// listenURL builds the pre-recorded listen endpoint with transcription
// parameters in the query string.
func (c *Client) listenURL() string {
	q := url.Values{}
	q.Set("model", c.model)
	q.Set("language", c.language)
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	q.Set("utterances", "true")
	q.Set("diarize", "false")
	return fmt.Sprintf("%s/v1/listen?%s", c.baseURL, q.Encode())
}

// mapResult extracts the transcript and utterances from a listen response.
func mapResult(resp *listenResponse) (*Result, error) {
	if len(resp.Results.Channels) == 0 {
		return nil, ErrNoTranscript
	}
	channel := resp.Results.Channels[0]
	if len(channel.Alternatives) == 0 {
		return nil, ErrNoTranscript
	}

	text := strings.TrimSpace(channel.Alternatives[0].Transcript)
	if text == "" {
		return nil, ErrNoTranscript
	}

	result := &Result{
		Text:     text,
		Language: channel.DetectedLanguage,
	}
	for _, u := range resp.Results.Utterances {
		result.Utterances = append(result.Utterances, Utterance{
			Start: u.Start,
			End:   u.End,
			Text:  strings.TrimSpace(u.Transcript),
		})
	}
	return result, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *Client) doRequestWithRetry(ctx context.Context, url string, body []byte, contentType string, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("deepgram: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		err := c.doRequest(ctx, url, body, contentType, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("deepgram: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *Client) doRequest(ctx context.Context, url string, body []byte, contentType string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("deepgram: create request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("deepgram: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("deepgram: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("deepgram: unmarshal response: %w", err)
		}
	}

	return nil
}

// contentTypeForExt maps an audio filename to its upload content type.
func contentTypeForExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".aac":
		return "audio/aac"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

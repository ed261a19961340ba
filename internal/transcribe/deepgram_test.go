package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// setTestEnv sets the DEEPGRAM_API_KEY env var and returns a cleanup function.
func setTestEnv(t *testing.T) {
	t.Helper()
	if err := os.Setenv("DEEPGRAM_API_KEY", "test-key"); err != nil {
		t.Fatalf("failed to set env: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("DEEPGRAM_API_KEY")
	})
}

// writeTestAudio writes a fake audio file and returns its path.
func writeTestAudio(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write test audio: %v", err)
	}
	return path
}

const successBody = `{
	"results": {
		"channels": [
			{
				"alternatives": [{"transcript": " ola, tudo bem? ", "confidence": 0.98}],
				"detected_language": "pt"
			}
		],
		"utterances": [
			{"start": 0.0, "end": 1.2, "transcript": "ola,"},
			{"start": 1.4, "end": 2.8, "transcript": "tudo bem?"}
		]
	}
}`

func TestNewClient_MissingAPIKey(t *testing.T) {
	// Ensure API key is not set
	_ = os.Unsetenv("DEEPGRAM_API_KEY")

	_, err := NewClient()
	if !errors.Is(err, ErrAPIKeyNotSet) {
		t.Errorf("expected ErrAPIKeyNotSet, got %v", err)
	}
}

func TestNewClient_Success(t *testing.T) {
	setTestEnv(t)

	client, err := NewClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	if client.model != "nova-2" {
		t.Errorf("expected default model nova-2, got %q", client.model)
	}
	if client.language != "pt" {
		t.Errorf("expected default language pt, got %q", client.language)
	}
}

func TestNewClient_WithAPIKeyOption(t *testing.T) {
	// Ensure environment API key is NOT set
	_ = os.Unsetenv("DEEPGRAM_API_KEY")

	client, err := NewClient(WithAPIKey("explicit-api-key"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.apiKey != "explicit-api-key" {
		t.Errorf("expected apiKey to be 'explicit-api-key', got '%s'", client.apiKey)
	}
}

func TestNewClient_Options(t *testing.T) {
	setTestEnv(t)

	client, err := NewClient(
		WithModel("nova-3"),
		WithLanguage("en"),
		WithMaxRetries(5),
		WithBaseBackoff(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.model != "nova-3" {
		t.Errorf("expected model nova-3, got %q", client.model)
	}
	if client.language != "en" {
		t.Errorf("expected language en, got %q", client.language)
	}
	if client.maxRetries != 5 {
		t.Errorf("expected 5 retries, got %d", client.maxRetries)
	}
}

func TestTranscribeFile_Success(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify request
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/listen" {
			t.Errorf("expected path /v1/listen, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Token test-key" {
			t.Errorf("expected Token test-key, got %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "audio/mpeg" {
			t.Errorf("expected audio/mpeg, got %s", r.Header.Get("Content-Type"))
		}

		// Verify transcription parameters
		q := r.URL.Query()
		expected := map[string]string{
			"model":        "nova-2",
			"language":     "pt",
			"smart_format": "true",
			"punctuate":    "true",
			"utterances":   "true",
			"diarize":      "false",
		}
		for key, want := range expected {
			if got := q.Get(key); got != want {
				t.Errorf("expected query %s=%s, got %s", key, want, got)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(successBody))
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	audioPath := writeTestAudio(t, "clip.mp3", []byte("fake-mp3-bytes"))

	result, err := client.TranscribeFile(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "ola, tudo bem?" {
		t.Errorf("expected trimmed transcript, got %q", result.Text)
	}
	if result.Language != "pt" {
		t.Errorf("expected language pt, got %q", result.Language)
	}
	if len(result.Utterances) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(result.Utterances))
	}
	if result.Utterances[1].Start != 1.4 || result.Utterances[1].End != 2.8 {
		t.Errorf("expected utterance [1.4, 2.8], got [%v, %v]", result.Utterances[1].Start, result.Utterances[1].End)
	}
	if result.Utterances[1].Text != "tudo bem?" {
		t.Errorf("expected utterance text 'tudo bem?', got %q", result.Utterances[1].Text)
	}
}

func TestTranscribeFile_EmptyTranscript(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": {"channels": [{"alternatives": [{"transcript": "  "}]}]}}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	audioPath := writeTestAudio(t, "clip.mp3", []byte("fake"))

	_, err := client.TranscribeFile(context.Background(), audioPath)
	if !errors.Is(err, ErrNoTranscript) {
		t.Errorf("expected ErrNoTranscript, got %v", err)
	}
}

func TestTranscribeFile_NoChannels(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": {"channels": []}}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	audioPath := writeTestAudio(t, "clip.mp3", []byte("fake"))

	_, err := client.TranscribeFile(context.Background(), audioPath)
	if !errors.Is(err, ErrNoTranscript) {
		t.Errorf("expected ErrNoTranscript, got %v", err)
	}
}

func TestTranscribeFile_EmptyAudioFile(t *testing.T) {
	setTestEnv(t)

	client, _ := NewClient()
	audioPath := writeTestAudio(t, "empty.mp3", nil)

	_, err := client.TranscribeFile(context.Background(), audioPath)
	if !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestTranscribeFile_MissingAudioFile(t *testing.T) {
	setTestEnv(t)

	client, _ := NewClient()

	_, err := client.TranscribeFile(context.Background(), "/nonexistent/clip.mp3")
	if err == nil {
		t.Error("expected error for missing audio file, got nil")
	}
}

func TestTranscribeFile_RetriesServerErrors(t *testing.T) {
	setTestEnv(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(successBody))
	}))
	defer server.Close()

	client, _ := NewClient(
		WithBaseURL(server.URL),
		WithMaxRetries(3),
		WithBaseBackoff(time.Millisecond),
	)
	audioPath := writeTestAudio(t, "clip.mp3", []byte("fake"))

	result, err := client.TranscribeFile(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if result.Text == "" {
		t.Error("expected non-empty transcript after retries")
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestTranscribeFile_RateLimitExhaustsRetries(t *testing.T) {
	setTestEnv(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, _ := NewClient(
		WithBaseURL(server.URL),
		WithMaxRetries(2),
		WithBaseBackoff(time.Millisecond),
	)
	audioPath := writeTestAudio(t, "clip.mp3", []byte("fake"))

	_, err := client.TranscribeFile(context.Background(), audioPath)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts (initial + 2 retries), got %d", got)
	}
}

func TestTranscribeFile_BadRequestNotRetried(t *testing.T) {
	setTestEnv(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer server.Close()

	client, _ := NewClient(
		WithBaseURL(server.URL),
		WithMaxRetries(3),
		WithBaseBackoff(time.Millisecond),
	)
	audioPath := writeTestAudio(t, "clip.mp3", []byte("fake"))

	_, err := client.TranscribeFile(context.Background(), audioPath)
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed, got %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestTranscribeFile_ContextCancelled(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second) // Simulate slow response
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))
	audioPath := writeTestAudio(t, "clip.mp3", []byte("fake"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.TranscribeFile(ctx, audioPath)
	if err == nil {
		t.Error("expected error due to context cancellation")
	}
}

func TestContentTypeForExt(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"clip.mp3", "audio/mpeg"},
		{"clip.MP3", "audio/mpeg"},
		{"clip.wav", "audio/wav"},
		{"clip.aac", "audio/aac"},
		{"clip.m4a", "audio/mp4"},
		{"clip.ogg", "audio/ogg"},
		{"clip.flac", "audio/flac"},
		{"clip.bin", "application/octet-stream"},
	}

	for _, tc := range tests {
		if got := contentTypeForExt(tc.path); got != tc.want {
			t.Errorf("contentTypeForExt(%q): expected %q, got %q", tc.path, tc.want, got)
		}
	}
}

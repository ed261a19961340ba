// Package transcribe turns short-form social video URLs into text. A
// Downloader pulls the clip's audio track and a Transcriber sends it to a
// speech-to-text backend.
package transcribe

import "context"

// Utterance is one continuous stretch of speech.
type Utterance struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the outcome of transcribing one audio file.
type Result struct {
	Text       string      `json:"text"`
	Utterances []Utterance `json:"utterances,omitempty"`
	Language   string      `json:"language,omitempty"`
}

// Transcriber converts an audio file into text.
type Transcriber interface {
	TranscribeFile(ctx context.Context, audioPath string) (*Result, error)
}

// Downloader fetches the audio track of a social video URL into a directory
// and returns the path of the downloaded file.
type Downloader interface {
	DownloadAudio(ctx context.Context, url, outputDir string) (string, error)
}

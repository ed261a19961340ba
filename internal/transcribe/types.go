package transcribe

// listenResponse mirrors the Deepgram pre-recorded listen response, reduced
// to the fields this service reads.
type listenResponse struct {
	Results listenResults `json:"results"`
}

type listenResults struct {
	Channels   []listenChannel   `json:"channels"`
	Utterances []listenUtterance `json:"utterances"`
}

type listenChannel struct {
	Alternatives     []listenAlternative `json:"alternatives"`
	DetectedLanguage string              `json:"detected_language"`
}

type listenAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type listenUtterance struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Transcript string  `json:"transcript"`
}

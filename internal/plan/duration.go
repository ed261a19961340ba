package plan

// DefaultImageSeconds is how long each image is shown when no audio track
// drives the timing.
const DefaultImageSeconds = 3.0

// ComputeSegmentDuration returns the display time for each image in a
// segment. With audio, the segment spans the full track, so each image gets
// an equal share of the audio duration. Without audio, every image gets
// DefaultImageSeconds.
func ComputeSegmentDuration(imageCount int, audioSeconds float64, hasAudio bool) (float64, error) {
	if imageCount <= 0 {
		return 0, invalidInputf("image count must be positive, got %d", imageCount)
	}
	if !hasAudio {
		return DefaultImageSeconds, nil
	}
	if audioSeconds <= 0 {
		return 0, invalidInputf("audio duration must be positive, got %.3f", audioSeconds)
	}
	return audioSeconds / float64(imageCount), nil
}

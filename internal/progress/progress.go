// Package progress carries pipeline progress reports between worker
// goroutines and the job service. Reports flow over channels; no stage of
// the pipeline shares mutable progress state.
package progress

// Update is a single progress report. Percent is in the 0-100 range and
// non-decreasing within a pipeline run.
type Update struct {
	Stage   string
	Percent int
	// Segment is the index of the segment this update is scoped to, or -1
	// for pipeline-wide updates.
	Segment int
}

// Send delivers a pipeline-wide update without blocking. Updates are
// advisory; a slow or absent consumer must never stall the pipeline, so
// sends on a full channel are dropped.
func Send(ch chan<- Update, stage string, percent int) {
	send(ch, Update{Stage: stage, Percent: percent, Segment: -1})
}

// SendSegment delivers an update scoped to one segment, typically when that
// segment finishes rendering.
func SendSegment(ch chan<- Update, stage string, percent, segment int) {
	send(ch, Update{Stage: stage, Percent: percent, Segment: segment})
}

func send(ch chan<- Update, u Update) {
	if ch == nil {
		return
	}
	select {
	case ch <- u:
	default:
	}
}

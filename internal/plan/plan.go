// Package plan lays out slideshow renders. It turns an ordered image upload,
// an optional audio duration and a handful of output parameters into a
// RenderPlan: the static list of segments a renderer executes. The package is
// pure domain logic with no ffmpeg or filesystem dependencies beyond reading
// and writing the plan manifest.
package plan

// Mode selects how uploaded images are arranged into segments.
type Mode string

const (
	// ModeSingle shows every image once, in upload order, as one segment.
	ModeSingle Mode = "single"
	// ModeMulti groups images by filename prefix into one segment per group,
	// with a separator between consecutive segments. Each group spans the
	// full audio track on its own.
	ModeMulti Mode = "multi"
)

// DefaultSeparatorSeconds is the separator length used when a multi mode
// request does not specify one.
const DefaultSeparatorSeconds = 5.0

// SegmentKind distinguishes image sequences from separators.
type SegmentKind string

const (
	SegmentImages    SegmentKind = "images"
	SegmentSeparator SegmentKind = "separator"
)

// Segment is one contiguous stretch of the output video. Separator segments
// carry only Kind and Seconds.
type Segment struct {
	Kind            SegmentKind `yaml:"kind"`
	GroupKey        string      `yaml:"group_key,omitempty"`
	Images          []ImageFile `yaml:"images,omitempty"`
	PerImageSeconds float64     `yaml:"per_image_seconds,omitempty"`
	Seconds         float64     `yaml:"seconds"`
}

// PlanRequest carries everything needed to lay out a render.
type PlanRequest struct {
	Files            []ImageFile
	AudioPath        string
	AudioSeconds     float64
	HasAudio         bool
	Mode             Mode
	SeparatorSeconds float64
	// ImageSeconds overrides the display time per image for requests without
	// audio. Zero or negative means DefaultImageSeconds. Ignored when audio
	// drives the timing.
	ImageSeconds float64
	Output       OutputSpec
}

// perImageSeconds returns the display time for each image in a segment of n
// images under this request.
func (req PlanRequest) perImageSeconds(n int) (float64, error) {
	if !req.HasAudio && req.ImageSeconds > 0 {
		if n <= 0 {
			return 0, invalidInputf("image count must be positive, got %d", n)
		}
		return req.ImageSeconds, nil
	}
	return ComputeSegmentDuration(n, req.AudioSeconds, req.HasAudio)
}

// RenderPlan is the recipe a renderer executes. Once built it is immutable
// data; rendering progress is reported elsewhere.
type RenderPlan struct {
	Mode             Mode       `yaml:"mode"`
	Output           OutputSpec `yaml:"output"`
	Segments         []Segment  `yaml:"segments"`
	AudioPath        string     `yaml:"audio_path,omitempty"`
	AudioSeconds     float64    `yaml:"audio_seconds,omitempty"`
	HasAudio         bool       `yaml:"has_audio"`
	SeparatorSeconds float64    `yaml:"separator_seconds,omitempty"`
}

// TotalSeconds is the planned duration of the assembled video.
func (p *RenderPlan) TotalSeconds() float64 {
	var total float64
	for _, s := range p.Segments {
		total += s.Seconds
	}
	return total
}

// ImageSegments returns the image-bearing segments in order, skipping
// separators.
func (p *RenderPlan) ImageSegments() []Segment {
	segments := make([]Segment, 0, len(p.Segments))
	for _, s := range p.Segments {
		if s.Kind == SegmentImages {
			segments = append(segments, s)
		}
	}
	return segments
}

// BuildRenderPlan validates the request and lays out segments.
//
// Single mode produces one segment holding every file in upload order and no
// separators. Multi mode produces one segment per filename group, in group
// order, with a separator strictly between consecutive segments. A request
// that groups into a single group is valid and yields no separators.
func BuildRenderPlan(req PlanRequest) (*RenderPlan, error) {
	if len(req.Files) == 0 {
		return nil, &InvalidInputError{Reason: "no images provided"}
	}

	switch req.Mode {
	case ModeSingle, ModeMulti:
	default:
		return nil, invalidInputf("unsupported mode %q", req.Mode)
	}
	if req.Mode == ModeMulti && req.SeparatorSeconds <= 0 {
		return nil, invalidInputf("separator duration must be positive, got %.3f", req.SeparatorSeconds)
	}

	p := &RenderPlan{
		Mode:         req.Mode,
		Output:       req.Output,
		AudioPath:    req.AudioPath,
		AudioSeconds: req.AudioSeconds,
		HasAudio:     req.HasAudio,
	}

	if req.Mode == ModeSingle {
		per, err := req.perImageSeconds(len(req.Files))
		if err != nil {
			return nil, err
		}
		images := make([]ImageFile, len(req.Files))
		copy(images, req.Files)
		p.Segments = []Segment{{
			Kind:            SegmentImages,
			Images:          images,
			PerImageSeconds: per,
			Seconds:         per * float64(len(images)),
		}}
		return p, nil
	}

	groups, err := GroupImages(req.Files)
	if err != nil {
		return nil, err
	}
	p.SeparatorSeconds = req.SeparatorSeconds
	for i, g := range groups {
		per, err := req.perImageSeconds(len(g.Images))
		if err != nil {
			return nil, err
		}
		if i > 0 {
			p.Segments = append(p.Segments, Segment{
				Kind:    SegmentSeparator,
				Seconds: req.SeparatorSeconds,
			})
		}
		p.Segments = append(p.Segments, Segment{
			Kind:            SegmentImages,
			GroupKey:        g.Key,
			Images:          g.Images,
			PerImageSeconds: per,
			Seconds:         per * float64(len(g.Images)),
		})
	}
	return p, nil
}

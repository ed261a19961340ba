package plan

// DefaultFPS is the output frame rate used when the client does not specify
// one.
const DefaultFPS = 30

// DefaultAspectRatio is the output format used when the client does not
// specify one. Vertical, matching the short-form clips the slideshows pair
// with.
const DefaultAspectRatio = "9:16"

// aspectPresets maps the aspect ratio names accepted by the API to output
// dimensions in pixels.
var aspectPresets = map[string][2]int{
	"1:1":  {1080, 1080},
	"16:9": {1920, 1080},
	"9:16": {1080, 1920},
}

// OutputSpec describes the rendered video frame.
type OutputSpec struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
}

// ResolveAspectRatio returns the output dimensions for a named aspect ratio.
// Unknown names are rejected rather than silently defaulted.
func ResolveAspectRatio(name string) (width, height int, err error) {
	dims, ok := aspectPresets[name]
	if !ok {
		return 0, 0, invalidInputf("unsupported aspect ratio %q", name)
	}
	return dims[0], dims[1], nil
}

// NewOutputSpec builds an OutputSpec from an aspect ratio name and frame
// rate.
func NewOutputSpec(aspectRatio string, fps int) (OutputSpec, error) {
	width, height, err := ResolveAspectRatio(aspectRatio)
	if err != nil {
		return OutputSpec{}, err
	}
	if fps <= 0 {
		return OutputSpec{}, invalidInputf("fps must be positive, got %d", fps)
	}
	return OutputSpec{Width: width, Height: height, FPS: fps}, nil
}

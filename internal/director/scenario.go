package director

// Scenario is the camera and timing plan of a render: one slide per image.
type Scenario struct {
	Version     string  `yaml:"version"`
	Fingerprint string  `yaml:"fingerprint"`
	FrameRate   int     `yaml:"frame_rate"`
	Duration    float64 `yaml:"duration"`
	Frames      int     `yaml:"frames"`
	Slides      []Slide `yaml:"slides"`
}

// Slide represents a single page/image with its animation keyframes.
type Slide struct {
	ID        int         `yaml:"id"`
	Input     string      `yaml:"input"`
	Caption   string      `yaml:"caption,omitempty"`
	Visible   [2]float64  `yaml:"visible,flow"` // incoming transition start, outgoing transition end
	Hold      [2]float64  `yaml:"hold,flow"`
	Duration  float64     `yaml:"duration"`
	Keyframes []Keyframe  `yaml:"keyframes"`
	Next      *Transition `yaml:"transition,omitempty"`
}

// Keyframe is a camera position at a specific time.
type Keyframe struct {
	Time  float64   `yaml:"time"`  // seconds from the start of the video
	Focus string    `yaml:"focus"` // full_view or ken_burns
	Rect  Rectangle `yaml:"rect"`
	Zoom  float64   `yaml:"zoom"` // 1.0 = no zoom
}

// Transition leads from this slide to the next one.
type Transition struct {
	Kind     string  `yaml:"kind"`
	Start    float64 `yaml:"start"`
	Duration float64 `yaml:"duration"`
}

// Rectangle is a crop in output pixels.
type Rectangle struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	W float64 `yaml:"w"`
	H float64 `yaml:"h"`
}

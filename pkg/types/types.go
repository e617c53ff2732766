package types

// Landmark is one detected body point, normalized to [0,1] against the
// source image's own width/height. Y increases downward. Z is depth and
// carried through but not used by the alignment core.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// PoseResult contains the complete pose detection result from the vision model
type PoseResult struct {
	Landmarks   []Landmark `json:"landmarks"`
	Confidence  float64    `json:"confidence"`
	Description string     `json:"description"`
}

// ImageDims describes a source photo's pixel size
type ImageDims struct {
	Width  int
	Height int
}

// ExportTarget is the output canvas size for one panel of a composite
type ExportTarget struct {
	Width  int
	Height int
}

// AlignmentResult is the transform that superimposes the after-photo's
// anchor onto the before-photo's anchor in export-canvas space.
// Identity is {Scale: 1, OffsetX: 0, OffsetY: 0}.
type AlignmentResult struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// Identity returns the no-correction alignment result
func Identity() AlignmentResult {
	return AlignmentResult{Scale: 1, OffsetX: 0, OffsetY: 0}
}

// Package pose defines the 33-point body landmark model and the anchor
// lookup tables used for alignment. The index ordering is fixed by the
// external pose model and must not be reordered.
package pose

import (
	"fmt"
	"strings"

	"github.com/rickydwilson-dcs/poseproof/pkg/types"
)

// NumLandmarks is the fixed size of a full body landmark set
const NumLandmarks = 33

// Landmark indices of the 33-point body model
const (
	Nose = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
)

// Anchor selects which landmark subset defines the alignment point
type Anchor string

// Supported anchors
const (
	AnchorHead      Anchor = "head"
	AnchorShoulders Anchor = "shoulders"
	AnchorHips      Anchor = "hips"
	AnchorFull      Anchor = "full"
)

// anchorIndices maps each anchor to its ordered landmark index set.
// Kept as data so the pose-model dependency stays in one place.
var anchorIndices = map[Anchor][]int{
	AnchorHead:      {Nose},
	AnchorShoulders: {LeftShoulder, RightShoulder},
	AnchorHips:      {LeftHip, RightHip},
	AnchorFull:      {Nose, LeftHip, RightHip},
}

// ScaleIndices is the fixed triple used for the anatomical scale
// correction, independent of the chosen anchor.
var ScaleIndices = []int{Nose, LeftHip, RightHip}

// AnchorIndices returns the landmark indices for an anchor.
// Unknown anchors return nil.
func AnchorIndices(a Anchor) []int {
	return anchorIndices[a]
}

// Anchors returns all supported anchors
func Anchors() []Anchor {
	return []Anchor{AnchorHead, AnchorShoulders, AnchorHips, AnchorFull}
}

// ParseAnchor converts a string to an Anchor
func ParseAnchor(s string) (Anchor, error) {
	a := Anchor(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := anchorIndices[a]; !ok {
		return "", fmt.Errorf("unknown anchor %q (use head, shoulders, hips or full)", s)
	}
	return a, nil
}

// Usable reports whether landmark idx exists in the set and passes the
// visibility threshold. An out-of-range index counts as absent.
func Usable(landmarks []types.Landmark, idx int, threshold float64) bool {
	if idx < 0 || idx >= len(landmarks) {
		return false
	}
	return landmarks[idx].Visibility >= threshold
}

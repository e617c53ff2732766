package align

import (
	"math"
	"testing"

	"github.com/rickydwilson-dcs/poseproof/pkg/export"
	"github.com/rickydwilson-dcs/poseproof/pkg/pose"
	"github.com/rickydwilson-dcs/poseproof/pkg/types"
)

const epsilon = 1e-6

// makeLandmarks builds a full 33-point set with the given entries; all
// other points stay at zero visibility (unusable)
func makeLandmarks(entries map[int]types.Landmark) []types.Landmark {
	landmarks := make([]types.Landmark, pose.NumLandmarks)
	for idx, lm := range entries {
		landmarks[idx] = lm
	}
	return landmarks
}

// standingPose is a plausible full detection: nose, shoulders and hips
// all visible at the given normalized heights
func standingPose(noseY, shoulderY, hipY float64) []types.Landmark {
	return makeLandmarks(map[int]types.Landmark{
		pose.Nose:          {X: 0.5, Y: noseY, Visibility: 0.99},
		pose.LeftShoulder:  {X: 0.6, Y: shoulderY, Visibility: 0.95},
		pose.RightShoulder: {X: 0.4, Y: shoulderY, Visibility: 0.95},
		pose.LeftHip:       {X: 0.55, Y: hipY, Visibility: 0.9},
		pose.RightHip:      {X: 0.45, Y: hipY, Visibility: 0.9},
	})
}

func isIdentity(r types.AlignmentResult) bool {
	return r.Scale == 1 && r.OffsetX == 0 && r.OffsetY == 0
}

func TestNew(t *testing.T) {
	e := New()
	if e == nil {
		t.Fatal("New() returned nil")
	}
	if e.config.VisibilityThreshold != 0.5 {
		t.Errorf("Expected visibility threshold 0.5, got %f", e.config.VisibilityThreshold)
	}
	if e.config.MinScale != 0.5 || e.config.MaxScale != 2.0 {
		t.Errorf("Expected scale bounds [0.5, 2.0], got [%f, %f]", e.config.MinScale, e.config.MaxScale)
	}
}

func TestIdentityFallbackEmptyLandmarks(t *testing.T) {
	dims := types.ImageDims{Width: 1000, Height: 1000}
	target := types.ExportTarget{Width: 1080, Height: 1080}

	for _, anchor := range pose.Anchors() {
		result := ComputeAlignment(nil, nil, dims, dims, target, anchor)
		if !isIdentity(result) {
			t.Errorf("anchor %s: expected identity for empty landmarks, got %+v", anchor, result)
		}
	}
}

func TestIdentityFallbackLowVisibility(t *testing.T) {
	dims := types.ImageDims{Width: 1000, Height: 1000}
	target := types.ExportTarget{Width: 1080, Height: 1080}

	good := standingPose(0.2, 0.3, 0.55)

	// Anchor landmarks present but below the visibility threshold
	bad := makeLandmarks(map[int]types.Landmark{
		pose.LeftShoulder:  {X: 0.6, Y: 0.3, Visibility: 0.49},
		pose.RightShoulder: {X: 0.4, Y: 0.3, Visibility: 0.2},
	})

	if r := ComputeAlignment(bad, good, dims, dims, target, pose.AnchorShoulders); !isIdentity(r) {
		t.Errorf("Expected identity when before anchor is unusable, got %+v", r)
	}
	if r := ComputeAlignment(good, bad, dims, dims, target, pose.AnchorShoulders); !isIdentity(r) {
		t.Errorf("Expected identity when after anchor is unusable, got %+v", r)
	}
}

func TestIdentityFallbackUnknownAnchor(t *testing.T) {
	dims := types.ImageDims{Width: 1000, Height: 1000}
	target := types.ExportTarget{Width: 1080, Height: 1080}
	good := standingPose(0.2, 0.3, 0.55)

	if r := ComputeAlignment(good, good, dims, dims, target, pose.Anchor("torso")); !isIdentity(r) {
		t.Errorf("Expected identity for unknown anchor, got %+v", r)
	}
}

func TestIdentityFallbackInvalidDimensions(t *testing.T) {
	good := standingPose(0.2, 0.3, 0.55)
	target := types.ExportTarget{Width: 1080, Height: 1080}

	cases := []struct {
		name            string
		beforeD, afterD types.ImageDims
		tgt             types.ExportTarget
	}{
		{"zero before width", types.ImageDims{Width: 0, Height: 1000}, types.ImageDims{Width: 1000, Height: 1000}, target},
		{"zero after height", types.ImageDims{Width: 1000, Height: 1000}, types.ImageDims{Width: 1000, Height: 0}, target},
		{"negative dims", types.ImageDims{Width: -5, Height: 1000}, types.ImageDims{Width: 1000, Height: 1000}, target},
		{"zero target", types.ImageDims{Width: 1000, Height: 1000}, types.ImageDims{Width: 1000, Height: 1000}, types.ExportTarget{}},
	}

	for _, tc := range cases {
		r := ComputeAlignment(good, good, tc.beforeD, tc.afterD, tc.tgt, pose.AnchorShoulders)
		if !isIdentity(r) {
			t.Errorf("%s: expected identity, got %+v", tc.name, r)
		}
		if math.IsNaN(r.Scale) || math.IsNaN(r.OffsetX) || math.IsNaN(r.OffsetY) {
			t.Errorf("%s: non-finite result %+v", tc.name, r)
		}
	}
}

func TestScaleSkippedWhenTripleIncomplete(t *testing.T) {
	dims := types.ImageDims{Width: 1000, Height: 1000}
	target := types.ExportTarget{Width: 1000, Height: 1000}

	before := standingPose(0.2, 0.3, 0.55)

	// Shoulders visible but hips are not: translation still solves,
	// scale stays 1
	after := makeLandmarks(map[int]types.Landmark{
		pose.Nose:          {X: 0.5, Y: 0.3, Visibility: 0.99},
		pose.LeftShoulder:  {X: 0.6, Y: 0.4, Visibility: 0.95},
		pose.RightShoulder: {X: 0.4, Y: 0.4, Visibility: 0.95},
		pose.LeftHip:       {X: 0.55, Y: 0.65, Visibility: 0.3},
		pose.RightHip:      {X: 0.45, Y: 0.65, Visibility: 0.3},
	})

	result := ComputeAlignment(before, after, dims, dims, target, pose.AnchorShoulders)

	if result.Scale != 1 {
		t.Errorf("Expected scale 1 when hip landmarks are unusable, got %f", result.Scale)
	}

	// Square into square maps 1:1, so the offset is the plain centroid delta
	if math.Abs(result.OffsetX-0) > epsilon {
		t.Errorf("Expected offsetX 0, got %f", result.OffsetX)
	}
	expectedOffsetY := 0.3*1000 - 0.4*1000
	if math.Abs(result.OffsetY-expectedOffsetY) > epsilon {
		t.Errorf("Expected offsetY %f, got %f", expectedOffsetY, result.OffsetY)
	}
}

func TestScaleSkippedDegenerateBodyHeight(t *testing.T) {
	dims := types.ImageDims{Width: 1000, Height: 1000}
	target := types.ExportTarget{Width: 1000, Height: 1000}

	before := standingPose(0.2, 0.3, 0.55)

	// After pose with nose at hip height: zero body span
	after := standingPose(0.5, 0.45, 0.5)

	result := ComputeAlignment(before, after, dims, dims, target, pose.AnchorHips)
	if result.Scale != 1 {
		t.Errorf("Expected scale 1 for degenerate after body height, got %f", result.Scale)
	}
}

func TestScaleClamp(t *testing.T) {
	dims := types.ImageDims{Width: 1000, Height: 1000}
	target := types.ExportTarget{Width: 1000, Height: 1000}

	// Before span 0.8, after span 0.08: raw ratio 10, clamped to 2.0
	tall := standingPose(0.1, 0.2, 0.9)
	tiny := standingPose(0.45, 0.47, 0.53)

	result := ComputeAlignment(tall, tiny, dims, dims, target, pose.AnchorHips)
	if result.Scale != 2.0 {
		t.Errorf("Expected scale clamped to 2.0, got %f", result.Scale)
	}

	// Reversed: raw ratio 0.1, clamped to 0.5
	result = ComputeAlignment(tiny, tall, dims, dims, target, pose.AnchorHips)
	if result.Scale != 0.5 {
		t.Errorf("Expected scale clamped to 0.5, got %f", result.Scale)
	}
}

func TestSelfAlignmentIdentity(t *testing.T) {
	landmarks := standingPose(0.2, 0.3, 0.55)
	dims := types.ImageDims{Width: 1536, Height: 2048}
	target := types.ExportTarget{Width: 1080, Height: 1080}

	for _, anchor := range pose.Anchors() {
		result := ComputeAlignment(landmarks, landmarks, dims, dims, target, anchor)

		if math.Abs(result.Scale-1) > epsilon {
			t.Errorf("anchor %s: self-alignment scale %f, expected 1", anchor, result.Scale)
		}
		if math.Abs(result.OffsetX) > epsilon || math.Abs(result.OffsetY) > epsilon {
			t.Errorf("anchor %s: self-alignment offset (%f, %f), expected (0, 0)",
				anchor, result.OffsetX, result.OffsetY)
		}
	}
}

func TestAnchorSensitivity(t *testing.T) {
	dims := types.ImageDims{Width: 1000, Height: 1000}
	target := types.ExportTarget{Width: 1080, Height: 1080}

	before := standingPose(0.2, 0.3, 0.55)

	// Shoulders moved differently from hips between the photos
	after := makeLandmarks(map[int]types.Landmark{
		pose.Nose:          {X: 0.5, Y: 0.22, Visibility: 0.99},
		pose.LeftShoulder:  {X: 0.65, Y: 0.38, Visibility: 0.95},
		pose.RightShoulder: {X: 0.45, Y: 0.38, Visibility: 0.95},
		pose.LeftHip:       {X: 0.55, Y: 0.56, Visibility: 0.9},
		pose.RightHip:      {X: 0.45, Y: 0.56, Visibility: 0.9},
	})

	shoulders := ComputeAlignment(before, after, dims, dims, target, pose.AnchorShoulders)
	hips := ComputeAlignment(before, after, dims, dims, target, pose.AnchorHips)

	if shoulders.OffsetX == hips.OffsetX && shoulders.OffsetY == hips.OffsetY {
		t.Errorf("Expected different offsets for shoulders vs hips anchors, both got (%f, %f)",
			shoulders.OffsetX, shoulders.OffsetY)
	}

	// Scale comes from the fixed nose/hip triple regardless of anchor
	if shoulders.Scale != hips.Scale {
		t.Errorf("Expected identical scale for both anchors, got %f vs %f",
			shoulders.Scale, hips.Scale)
	}
}

// TestScenarioMixedAspects reproduces the reference scenario: a square
// 2048x2048 before photo and a 3:4 1536x2048 after photo, both rendered
// into a 1080x1080 panel, aligned on shoulders.
func TestScenarioMixedAspects(t *testing.T) {
	beforeDims := types.ImageDims{Width: 2048, Height: 2048}
	afterDims := types.ImageDims{Width: 1536, Height: 2048}
	target := types.ExportTarget{Width: 1080, Height: 1080}

	before := standingPose(0.2, 0.3, 0.55)
	after := makeLandmarks(map[int]types.Landmark{
		pose.Nose:          {X: 0.5, Y: 0.25, Visibility: 0.99},
		pose.LeftShoulder:  {X: 0.62, Y: 0.36, Visibility: 0.95},
		pose.RightShoulder: {X: 0.38, Y: 0.36, Visibility: 0.95},
		pose.LeftHip:       {X: 0.56, Y: 0.62, Visibility: 0.9},
		pose.RightHip:      {X: 0.44, Y: 0.62, Visibility: 0.9},
	})

	result := ComputeAlignment(before, after, beforeDims, afterDims, target, pose.AnchorShoulders)

	if result.Scale < 0.5 || result.Scale > 2.0 {
		t.Errorf("Scale %f outside [0.5, 2.0]", result.Scale)
	}

	// Expected scale: before body span 378px vs after span 532.8px
	expectedScale := 378.0 / 532.8
	if math.Abs(result.Scale-expectedScale) > epsilon {
		t.Errorf("Expected scale %f, got %f", expectedScale, result.Scale)
	}

	// Verification step: transform the after-anchor centroid with the
	// returned result and measure the distance to the before centroid
	beforeCentroid := anchorCentroidFor(t, before, beforeDims, target, pose.AnchorShoulders)
	afterCentroid := anchorCentroidFor(t, after, afterDims, target, pose.AnchorShoulders)

	centerX := float64(target.Width) / 2
	centerY := float64(target.Height) / 2
	movedX := centerX + (afterCentroid.X-centerX)*result.Scale + result.OffsetX
	movedY := centerY + (afterCentroid.Y-centerY)*result.Scale + result.OffsetY

	dist := math.Hypot(movedX-beforeCentroid.X, movedY-beforeCentroid.Y)
	if dist > epsilon {
		t.Errorf("Alignment error %f px, expected exact superposition", dist)
	}
}

// anchorCentroidFor recomputes the anchor centroid the way the estimator
// does, for verification
func anchorCentroidFor(t *testing.T, landmarks []types.Landmark, dims types.ImageDims, target types.ExportTarget, anchor pose.Anchor) export.Point {
	t.Helper()

	var sumX, sumY float64
	count := 0
	for _, idx := range pose.AnchorIndices(anchor) {
		if !pose.Usable(landmarks, idx, VisibilityThreshold) {
			continue
		}
		pt := export.MapLandmark(landmarks[idx], dims, target)
		sumX += pt.X
		sumY += pt.Y
		count++
	}
	if count == 0 {
		t.Fatal("no usable anchor landmarks in fixture")
	}
	return export.Point{X: sumX / float64(count), Y: sumY / float64(count)}
}

func TestVisibilityThresholdBoundary(t *testing.T) {
	dims := types.ImageDims{Width: 1000, Height: 1000}
	target := types.ExportTarget{Width: 1000, Height: 1000}

	// Visibility exactly at the threshold counts as usable
	boundary := makeLandmarks(map[int]types.Landmark{
		pose.LeftShoulder:  {X: 0.6, Y: 0.3, Visibility: 0.5},
		pose.RightShoulder: {X: 0.4, Y: 0.3, Visibility: 0.5},
	})

	result := ComputeAlignment(boundary, boundary, dims, dims, target, pose.AnchorShoulders)
	if math.Abs(result.OffsetX) > epsilon || math.Abs(result.OffsetY) > epsilon {
		t.Errorf("Expected zero offsets for self-alignment at threshold, got (%f, %f)",
			result.OffsetX, result.OffsetY)
	}
	// The scale triple is not usable here, so scale must be the identity
	if result.Scale != 1 {
		t.Errorf("Expected scale 1, got %f", result.Scale)
	}
}

func TestPartialAnchorCentroid(t *testing.T) {
	dims := types.ImageDims{Width: 1000, Height: 1000}
	target := types.ExportTarget{Width: 1000, Height: 1000}

	// Full anchor with only the nose and one hip usable on the after
	// side: the centroid averages the usable subset
	before := standingPose(0.2, 0.3, 0.6)
	after := makeLandmarks(map[int]types.Landmark{
		pose.Nose:     {X: 0.5, Y: 0.2, Visibility: 0.99},
		pose.LeftHip:  {X: 0.55, Y: 0.6, Visibility: 0.9},
		pose.RightHip: {X: 0.45, Y: 0.6, Visibility: 0.1},
	})

	result := ComputeAlignment(before, after, dims, dims, target, pose.AnchorFull)

	// Scale triple needs the right hip, which is unusable
	if result.Scale != 1 {
		t.Errorf("Expected scale 1, got %f", result.Scale)
	}

	beforeCentroidX := (0.5 + 0.55 + 0.45) / 3 * 1000
	afterCentroidX := (0.5 + 0.55) / 2 * 1000
	expectedOffsetX := beforeCentroidX - afterCentroidX
	if math.Abs(result.OffsetX-expectedOffsetX) > epsilon {
		t.Errorf("Expected offsetX %f, got %f", expectedOffsetX, result.OffsetX)
	}
}

func TestNewWithConfigCustomBounds(t *testing.T) {
	dims := types.ImageDims{Width: 1000, Height: 1000}
	target := types.ExportTarget{Width: 1000, Height: 1000}

	tall := standingPose(0.1, 0.2, 0.9)
	tiny := standingPose(0.45, 0.47, 0.53)

	e := NewWithConfig(Config{
		VisibilityThreshold: 0.5,
		MinScale:            0.25,
		MaxScale:            4.0,
	})

	result := e.ComputeAlignment(tall, tiny, dims, dims, target, pose.AnchorHips)
	if result.Scale != 4.0 {
		t.Errorf("Expected scale clamped to custom bound 4.0, got %f", result.Scale)
	}
}

func BenchmarkComputeAlignment(b *testing.B) {
	before := standingPose(0.2, 0.3, 0.55)
	after := standingPose(0.25, 0.36, 0.62)
	beforeDims := types.ImageDims{Width: 2048, Height: 2048}
	afterDims := types.ImageDims{Width: 1536, Height: 2048}
	target := types.ExportTarget{Width: 1080, Height: 1080}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ComputeAlignment(before, after, beforeDims, afterDims, target, pose.AnchorShoulders)
	}
}

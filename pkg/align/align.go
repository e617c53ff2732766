// Package align estimates the scale and translation that superimpose the
// after-photo's anatomical anchor onto the before-photo's anchor in
// export-canvas coordinates. The estimator never fails: missing detector
// output, too few visible points, or degenerate geometry all resolve to
// the identity transform or to skipping only the scale term. The design
// favors "no correction" over "wrong correction".
package align

import (
	"math"

	"github.com/rickydwilson-dcs/poseproof/pkg/export"
	"github.com/rickydwilson-dcs/poseproof/pkg/pose"
	"github.com/rickydwilson-dcs/poseproof/pkg/types"
)

// Default estimator parameters
const (
	// VisibilityThreshold is the minimum landmark visibility for a point
	// to participate in alignment.
	VisibilityThreshold = 0.5

	// MinScale and MaxScale bound the anatomical scale correction against
	// runaway ratios from noisy detections.
	MinScale = 0.5
	MaxScale = 2.0
)

// Estimator computes alignment transforms between landmark sets
type Estimator struct {
	config Config
}

// Config holds estimator parameters
type Config struct {
	VisibilityThreshold float64
	MinScale            float64
	MaxScale            float64
}

// New creates an Estimator with default configuration
func New() *Estimator {
	return &Estimator{
		config: Config{
			VisibilityThreshold: VisibilityThreshold,
			MinScale:            MinScale,
			MaxScale:            MaxScale,
		},
	}
}

// NewWithConfig creates an Estimator with custom configuration
func NewWithConfig(config Config) *Estimator {
	return &Estimator{config: config}
}

// ComputeAlignment computes the alignment for the default configuration
func ComputeAlignment(before, after []types.Landmark, beforeDims, afterDims types.ImageDims, target types.ExportTarget, anchor pose.Anchor) types.AlignmentResult {
	return New().ComputeAlignment(before, after, beforeDims, afterDims, target, anchor)
}

// ComputeAlignment derives the uniform scale and 2D offset that, applied
// to the after-photo's cover-fit rendering (scaled about the panel center,
// then translated), makes the after-anchor centroid coincide with the
// before-anchor centroid.
func (e *Estimator) ComputeAlignment(before, after []types.Landmark, beforeDims, afterDims types.ImageDims, target types.ExportTarget, anchor pose.Anchor) types.AlignmentResult {
	// Non-positive dimensions would propagate NaN through the cover fit
	// and corrupt the rendered composite with no diagnostic, so reject
	// them here with the estimator's standard fallback.
	if beforeDims.Width <= 0 || beforeDims.Height <= 0 ||
		afterDims.Width <= 0 || afterDims.Height <= 0 ||
		target.Width <= 0 || target.Height <= 0 {
		return types.Identity()
	}

	indices := pose.AnchorIndices(anchor)
	if len(indices) == 0 {
		return types.Identity()
	}

	// Stage A: anchor centroids in export space. No partial alignment is
	// attempted when either side has zero usable anchor landmarks.
	beforeCentroid, ok := e.anchorCentroid(before, indices, beforeDims, target)
	if !ok {
		return types.Identity()
	}
	afterCentroid, ok := e.anchorCentroid(after, indices, afterDims, target)
	if !ok {
		return types.Identity()
	}

	// Stage B: anatomical scale correction from the fixed nose/hip triple,
	// regardless of the chosen anchor. Keeps a full-body scale reference
	// even when aligning on a partial anchor.
	scale := e.anatomicalScale(before, after, beforeDims, afterDims, target)

	// Stage C: the renderer scales the after-photo's cover-fit rectangle
	// about the panel's geometric center, then translates. Replicate that
	// exact pivot order to solve for the offset.
	centerX := float64(target.Width) / 2
	centerY := float64(target.Height) / 2
	scaledAfterX := centerX + (afterCentroid.X-centerX)*scale
	scaledAfterY := centerY + (afterCentroid.Y-centerY)*scale

	return types.AlignmentResult{
		Scale:   scale,
		OffsetX: beforeCentroid.X - scaledAfterX,
		OffsetY: beforeCentroid.Y - scaledAfterY,
	}
}

// anchorCentroid maps the usable anchor landmarks into export space and
// averages them. ok is false when no landmark is usable.
func (e *Estimator) anchorCentroid(landmarks []types.Landmark, indices []int, dims types.ImageDims, target types.ExportTarget) (export.Point, bool) {
	var sumX, sumY float64
	count := 0

	for _, idx := range indices {
		if !pose.Usable(landmarks, idx, e.config.VisibilityThreshold) {
			continue
		}
		pt := export.MapLandmark(landmarks[idx], dims, target)
		sumX += pt.X
		sumY += pt.Y
		count++
	}

	if count == 0 {
		return export.Point{}, false
	}
	return export.Point{X: sumX / float64(count), Y: sumY / float64(count)}, true
}

// anatomicalScale computes the nose-to-hip-center vertical span ratio
// between the two photos, clamped to the configured bounds. Returns 1
// when any of the six required landmarks is unusable or the after span
// is degenerate.
func (e *Estimator) anatomicalScale(before, after []types.Landmark, beforeDims, afterDims types.ImageDims, target types.ExportTarget) float64 {
	for _, idx := range pose.ScaleIndices {
		if !pose.Usable(before, idx, e.config.VisibilityThreshold) {
			return 1
		}
		if !pose.Usable(after, idx, e.config.VisibilityThreshold) {
			return 1
		}
	}

	beforeBodyHeight := bodyHeight(before, beforeDims, target)
	afterBodyHeight := bodyHeight(after, afterDims, target)
	if afterBodyHeight == 0 {
		return 1
	}

	scale := beforeBodyHeight / afterBodyHeight
	return clamp(scale, e.config.MinScale, e.config.MaxScale)
}

// bodyHeight is the vertical nose-to-hip-center span in export pixels, a
// proxy for body scale robust to left/right asymmetry.
func bodyHeight(landmarks []types.Landmark, dims types.ImageDims, target types.ExportTarget) float64 {
	nose := export.MapLandmark(landmarks[pose.Nose], dims, target)
	leftHip := export.MapLandmark(landmarks[pose.LeftHip], dims, target)
	rightHip := export.MapLandmark(landmarks[pose.RightHip], dims, target)

	hipCenterY := (leftHip.Y + rightHip.Y) / 2
	return math.Abs(hipCenterY - nose.Y)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Package export contains the output-canvas coordinate math: the
// aspect-fill ("cover") fit of a source photo into an export panel, and
// the projection of normalized landmarks through that fit. The renderer
// and the alignment estimator both go through these functions so that a
// mapped landmark lands exactly on the pixel the renderer draws.
package export

import (
	"github.com/rickydwilson-dcs/poseproof/pkg/types"
)

// CoverFit is the draw rectangle an aspect-fill rendering uses for a
// source image inside a target panel. The rectangle always fully covers
// the panel; exactly one of DrawX/DrawY is 0 and the other is <= 0 (the
// overflow on the cropped axis, centered).
type CoverFit struct {
	DrawX      float64
	DrawY      float64
	DrawWidth  float64
	DrawHeight float64
}

// Point is an absolute pixel position on the export canvas
type Point struct {
	X float64
	Y float64
}

// ComputeCoverFit computes the cover-fit rectangle for a source image of
// sourceWidth x sourceHeight drawn into a targetWidth x targetHeight
// panel. Inputs must be positive; degenerate dimensions propagate as
// non-finite values rather than an error.
func ComputeCoverFit(sourceWidth, sourceHeight, targetWidth, targetHeight float64) CoverFit {
	sourceAspect := sourceWidth / sourceHeight
	targetAspect := targetWidth / targetHeight

	if sourceAspect > targetAspect {
		// Source relatively wider: fit to target height, crop left/right
		drawHeight := targetHeight
		drawWidth := targetHeight * sourceAspect
		return CoverFit{
			DrawX:      (targetWidth - drawWidth) / 2,
			DrawY:      0,
			DrawWidth:  drawWidth,
			DrawHeight: drawHeight,
		}
	}

	// Source relatively taller or equal: fit to target width, crop top/bottom
	drawWidth := targetWidth
	drawHeight := targetWidth / sourceAspect
	return CoverFit{
		DrawX:      0,
		DrawY:      (targetHeight - drawHeight) / 2,
		DrawWidth:  drawWidth,
		DrawHeight: drawHeight,
	}
}

// FitFor computes the cover fit for typed dimensions
func FitFor(dims types.ImageDims, target types.ExportTarget) CoverFit {
	return ComputeCoverFit(float64(dims.Width), float64(dims.Height),
		float64(target.Width), float64(target.Height))
}

// MapLandmark projects a normalized landmark into absolute export-canvas
// pixels. Landmarks are normalized to the source image, but the source is
// itself cover-fitted into the panel, so the projection must pass through
// the same crop transform the renderer applies to the pixels.
func MapLandmark(lm types.Landmark, dims types.ImageDims, target types.ExportTarget) Point {
	fit := FitFor(dims, target)
	return Point{
		X: fit.DrawX + lm.X*fit.DrawWidth,
		Y: fit.DrawY + lm.Y*fit.DrawHeight,
	}
}

// PanelRatio is a named output aspect ratio for one composite panel
type PanelRatio struct {
	Width  int
	Height int
	Name   string
}

// Common panel ratios
var (
	Square    = PanelRatio{1, 1, "square"}
	Portrait  = PanelRatio{3, 4, "portrait"}
	Landscape = PanelRatio{4, 3, "landscape"}
	Story     = PanelRatio{9, 16, "story"}
	Instagram = PanelRatio{4, 5, "instagram"}
)

// CommonPanelRatios returns the commonly used panel ratios
func CommonPanelRatios() []PanelRatio {
	return []PanelRatio{Square, Portrait, Landscape, Story, Instagram}
}

// ParsePanelRatio looks up a panel ratio by name
func ParsePanelRatio(name string) (PanelRatio, bool) {
	for _, r := range CommonPanelRatios() {
		if r.Name == name {
			return r, true
		}
	}
	return PanelRatio{}, false
}

// PanelSize derives the export target for a ratio from a base resolution.
// The base is the longer panel side.
func (r PanelRatio) PanelSize(base int) types.ExportTarget {
	if r.Width >= r.Height {
		return types.ExportTarget{
			Width:  base,
			Height: base * r.Height / r.Width,
		}
	}
	return types.ExportTarget{
		Width:  base * r.Width / r.Height,
		Height: base,
	}
}

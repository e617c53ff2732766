// Package poseproof aligns two photographs of a human subject (a
// "before" and an "after" image) so that a chosen anatomical anchor
// occupies the same position and scale in both panels of a composite.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/rickydwilson-dcs/poseproof"
//		"github.com/rickydwilson-dcs/poseproof/pkg/export"
//		"github.com/rickydwilson-dcs/poseproof/pkg/llamacpp"
//		"github.com/rickydwilson-dcs/poseproof/pkg/pose"
//	)
//
//	func main() {
//		client, err := llamacpp.NewClient("http://localhost:8080")
//		if err != nil {
//			log.Fatal(err)
//		}
//		pp := poseproof.New(client, "openbmb/minicpm-v4.5")
//
//		before, err := pp.LoadImage("before.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		after, err := pp.LoadImage("after.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		target := export.Square.PanelSize(1080)
//		result, err := pp.Align(context.Background(), before, after, target, pose.AnchorShoulders)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		composite, err := pp.RenderComposite(before, after, target, result.Alignment)
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := pp.SaveImage(composite, "composite.jpg"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of three core components, composed linearly:
//
// 1. Cover-fit resolver (pkg/export): aspect-fill geometry for a source
// photo inside an export panel.
//
// 2. Landmark mapper (pkg/export): projects normalized pose landmarks
// through the cover fit into export-canvas pixels.
//
// 3. Alignment estimator (pkg/align): derives the scale and offset that
// superimpose the after-anchor onto the before-anchor, with graceful
// fallbacks for missing or degenerate landmarks.
//
// Pose landmarks come from a vision model (pkg/ollama or pkg/llamacpp)
// prompted for a fixed 33-point body landmark set; pkg/processing turns
// the alignment result into rendered side-by-side composites.
package poseproof

import (
	"context"
	"fmt"
	"image"

	"github.com/rickydwilson-dcs/poseproof/pkg/align"
	"github.com/rickydwilson-dcs/poseproof/pkg/client"
	"github.com/rickydwilson-dcs/poseproof/pkg/detection"
	"github.com/rickydwilson-dcs/poseproof/pkg/pose"
	"github.com/rickydwilson-dcs/poseproof/pkg/processing"
	"github.com/rickydwilson-dcs/poseproof/pkg/types"
)

// Version of the poseproof library
const Version = "1.0.0"

// PoseProof provides a high-level interface for before/after alignment
type PoseProof struct {
	detector  *detection.Detector
	estimator *align.Estimator
	processor *processing.Processor
	model     string

	sendFormat  string
	sendMaxDim  int
	sendQuality int
}

// New creates a PoseProof facade around a pose client with default settings
func New(poseClient client.PoseClient, model string) *PoseProof {
	return &PoseProof{
		detector:    detection.NewDetector(poseClient),
		estimator:   align.New(),
		processor:   processing.NewProcessor(),
		model:       model,
		sendFormat:  "jpg",
		sendMaxDim:  1536,
		sendQuality: 85,
	}
}

// NewWithEstimator creates a PoseProof facade with a custom alignment estimator
func NewWithEstimator(poseClient client.PoseClient, model string, estimator *align.Estimator) *PoseProof {
	pp := New(poseClient, model)
	pp.estimator = estimator
	return pp
}

// Result bundles the detected poses and the computed alignment
type Result struct {
	Before    *types.PoseResult     `json:"before"`
	After     *types.PoseResult     `json:"after"`
	Alignment types.AlignmentResult `json:"alignment"`
}

// LoadImage loads an image from a file path or URL
func (pp *PoseProof) LoadImage(source string) (image.Image, error) {
	return pp.processor.LoadImageSmart(source)
}

// DetectPose runs pose detection on an image
func (pp *PoseProof) DetectPose(ctx context.Context, img image.Image) (*types.PoseResult, error) {
	imgB64, err := pp.processor.PrepareImageForModel(img, pp.sendFormat, pp.sendMaxDim, pp.sendQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}
	return pp.detector.DetectPose(ctx, pp.model, imgB64)
}

// Align detects poses in both images and computes the alignment transform
// for the given anchor
func (pp *PoseProof) Align(ctx context.Context, before, after image.Image, target types.ExportTarget, anchor pose.Anchor) (*Result, error) {
	beforePose, err := pp.DetectPose(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("before pose detection failed: %w", err)
	}

	afterPose, err := pp.DetectPose(ctx, after)
	if err != nil {
		return nil, fmt.Errorf("after pose detection failed: %w", err)
	}

	alignment := pp.estimator.ComputeAlignment(
		beforePose.Landmarks, afterPose.Landmarks,
		pp.processor.Dims(before), pp.processor.Dims(after),
		target, anchor)

	return &Result{
		Before:    beforePose,
		After:     afterPose,
		Alignment: alignment,
	}, nil
}

// ComputeAlignment computes the alignment from already-detected landmark sets
func (pp *PoseProof) ComputeAlignment(before, after []types.Landmark, beforeDims, afterDims types.ImageDims, target types.ExportTarget, anchor pose.Anchor) types.AlignmentResult {
	return pp.estimator.ComputeAlignment(before, after, beforeDims, afterDims, target, anchor)
}

// RenderComposite renders the side-by-side before/after composite
func (pp *PoseProof) RenderComposite(before, after image.Image, target types.ExportTarget, result types.AlignmentResult) (image.Image, error) {
	return pp.processor.RenderComposite(before, after, target, result)
}

// SaveImage saves an image as JPEG with default quality
func (pp *PoseProof) SaveImage(img image.Image, path string) error {
	return pp.processor.SaveImage(img, path, "jpg", 90, false)
}

// ProcessFiles is a convenience function that loads, detects, aligns,
// renders and saves a composite for two input images
func (pp *PoseProof) ProcessFiles(ctx context.Context, beforePath, afterPath, outputPath string, target types.ExportTarget, anchor pose.Anchor) (*Result, error) {
	before, err := pp.LoadImage(beforePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load before image: %w", err)
	}

	after, err := pp.LoadImage(afterPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load after image: %w", err)
	}

	result, err := pp.Align(ctx, before, after, target, anchor)
	if err != nil {
		return nil, err
	}

	composite, err := pp.RenderComposite(before, after, target, result.Alignment)
	if err != nil {
		return nil, fmt.Errorf("rendering failed: %w", err)
	}

	if err := pp.SaveImage(composite, outputPath); err != nil {
		return nil, fmt.Errorf("failed to save composite: %w", err)
	}

	return result, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

package poseproof

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/rickydwilson-dcs/poseproof/pkg/pose"
	"github.com/rickydwilson-dcs/poseproof/pkg/types"
)

// fakeClient serves canned pose results keyed by call order
type fakeClient struct {
	results []*types.PoseResult
	calls   int
}

func (f *fakeClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return "a person", nil
}

func (f *fakeClient) DetectPose(ctx context.Context, model, prompt, imgB64 string) (*types.PoseResult, error) {
	result := f.results[f.calls%len(f.results)]
	f.calls++
	return result, nil
}

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 64, 255})
		}
	}
	return img
}

func samplePose() *types.PoseResult {
	landmarks := make([]types.Landmark, pose.NumLandmarks)
	landmarks[pose.Nose] = types.Landmark{X: 0.5, Y: 0.2, Visibility: 0.99}
	landmarks[pose.LeftShoulder] = types.Landmark{X: 0.6, Y: 0.3, Visibility: 0.95}
	landmarks[pose.RightShoulder] = types.Landmark{X: 0.4, Y: 0.3, Visibility: 0.95}
	landmarks[pose.LeftHip] = types.Landmark{X: 0.55, Y: 0.55, Visibility: 0.9}
	landmarks[pose.RightHip] = types.Landmark{X: 0.45, Y: 0.55, Visibility: 0.9}
	return &types.PoseResult{Landmarks: landmarks, Confidence: 0.9, Description: "a person"}
}

func TestNew(t *testing.T) {
	pp := New(&fakeClient{results: []*types.PoseResult{samplePose()}}, "test-model")
	if pp == nil {
		t.Fatal("New() returned nil")
	}
	if pp.detector == nil {
		t.Error("detector component is nil")
	}
	if pp.estimator == nil {
		t.Error("estimator component is nil")
	}
	if pp.processor == nil {
		t.Error("processor component is nil")
	}
}

func TestAlignSameImage(t *testing.T) {
	client := &fakeClient{results: []*types.PoseResult{samplePose()}}
	pp := New(client, "test-model")

	img := createTestImage(200, 200)
	target := types.ExportTarget{Width: 100, Height: 100}

	result, err := pp.Align(context.Background(), img, img, target, pose.AnchorShoulders)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}

	// Identical photos and detections need no correction
	if math.Abs(result.Alignment.Scale-1) > 1e-9 {
		t.Errorf("Expected scale 1, got %f", result.Alignment.Scale)
	}
	if math.Abs(result.Alignment.OffsetX) > 1e-9 || math.Abs(result.Alignment.OffsetY) > 1e-9 {
		t.Errorf("Expected zero offsets, got (%f, %f)", result.Alignment.OffsetX, result.Alignment.OffsetY)
	}

	if client.calls != 2 {
		t.Errorf("Expected 2 detection calls, got %d", client.calls)
	}
}

func TestAlignDifferentPoses(t *testing.T) {
	shifted := samplePose()
	for i := range shifted.Landmarks {
		shifted.Landmarks[i].Y += 0.1
	}

	client := &fakeClient{results: []*types.PoseResult{samplePose(), shifted}}
	pp := New(client, "test-model")

	before := createTestImage(200, 200)
	after := createTestImage(150, 200)
	target := types.ExportTarget{Width: 100, Height: 100}

	result, err := pp.Align(context.Background(), before, after, target, pose.AnchorShoulders)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}

	if result.Alignment.OffsetY == 0 {
		t.Error("Expected a vertical correction for the shifted after pose")
	}
	if result.Alignment.Scale < 0.5 || result.Alignment.Scale > 2.0 {
		t.Errorf("Scale %f outside clamp bounds", result.Alignment.Scale)
	}
}

func TestAlignNoDetection(t *testing.T) {
	// Empty landmark set: alignment degrades to the identity transform
	client := &fakeClient{results: []*types.PoseResult{{Landmarks: nil, Confidence: 0}}}
	pp := New(client, "test-model")

	img := createTestImage(200, 200)
	target := types.ExportTarget{Width: 100, Height: 100}

	result, err := pp.Align(context.Background(), img, img, target, pose.AnchorShoulders)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}

	identity := types.Identity()
	if result.Alignment != identity {
		t.Errorf("Expected identity alignment, got %+v", result.Alignment)
	}
}

func TestRenderComposite(t *testing.T) {
	pp := New(&fakeClient{results: []*types.PoseResult{samplePose()}}, "test-model")

	before := createTestImage(200, 200)
	after := createTestImage(150, 200)
	target := types.ExportTarget{Width: 100, Height: 100}

	composite, err := pp.RenderComposite(before, after, target, types.Identity())
	if err != nil {
		t.Fatalf("RenderComposite failed: %v", err)
	}

	bounds := composite.Bounds()
	if bounds.Dx() != 200 || bounds.Dy() != 100 {
		t.Errorf("Expected 200x100 composite, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Error("GetVersion should return the Version constant")
	}
}

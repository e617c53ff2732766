package detection

import (
	"context"
	"strings"

	"github.com/rickydwilson-dcs/poseproof/pkg/client"
	"github.com/rickydwilson-dcs/poseproof/pkg/pose"
	"github.com/rickydwilson-dcs/poseproof/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt is the default prompt for pose landmark detection
const DefaultPrompt = `You are a human body landmark locator.

Return JSON only:
{
  "landmarks": [
    {"x": 0.0, "y": 0.0, "z": 0.0, "visibility": 0.0}
  ],
  "confidence": 0.0,
  "description": "short neutral sentence (<= 20 words)"
}

HARD RULES
- "landmarks" must contain exactly 33 entries in this fixed order:
  0 nose, 1 left eye inner, 2 left eye, 3 left eye outer, 4 right eye inner,
  5 right eye, 6 right eye outer, 7 left ear, 8 right ear, 9 mouth left,
  10 mouth right, 11 left shoulder, 12 right shoulder, 13 left elbow,
  14 right elbow, 15 left wrist, 16 right wrist, 17 left pinky,
  18 right pinky, 19 left index, 20 right index, 21 left thumb,
  22 right thumb, 23 left hip, 24 right hip, 25 left knee, 26 right knee,
  27 left ankle, 28 right ankle, 29 left heel, 30 right heel,
  31 left foot index, 32 right foot index.
- All x/y are normalized to [0,1] relative to the image (NOT pixels). y grows downward.
- "visibility" in [0,1]: how reliably the point is located. Use a value
  below 0.5 for any point that is occluded, cropped out, or guessed.
- Locate the single most prominent person. Do not guess real identities.
- If no person is visible, return all 33 entries with visibility 0.0.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Detector handles body landmark detection using vision models
type Detector struct {
	client client.PoseClient
}

// NewDetector creates a new detector with a pose client
func NewDetector(client client.PoseClient) *Detector {
	return &Detector{client: client}
}

// DetectPose analyzes an image and returns the body landmark set
func (d *Detector) DetectPose(ctx context.Context, model, imageB64 string) (*types.PoseResult, error) {
	result, err := d.DetectPoseWithPrompt(ctx, model, imageB64, DefaultPrompt)
	if err != nil {
		return nil, err
	}

	return validateAndAdjustResult(result), nil
}

// DetectPoseWithPrompt analyzes an image with a custom prompt
func (d *Detector) DetectPoseWithPrompt(ctx context.Context, model, imageB64, prompt string) (*types.PoseResult, error) {
	result, err := d.client.DetectPose(ctx, model, prompt, imageB64)
	if err != nil {
		return nil, err
	}

	result.Landmarks = normalizeLandmarks(result.Landmarks)

	return result, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, model, imageB64 string) (string, error) {
	return d.client.SimpleQuery(ctx, model, SimpleTestPrompt, imageB64)
}

// validateAndAdjustResult adjusts the detection result for reliability.
// Fallback-flavored descriptions zero out the confidence so callers can
// tell a real detection from a parser fallback.
func validateAndAdjustResult(result *types.PoseResult) *types.PoseResult {
	fallbackIndicators := []string{"unclear", "empty", "parse", "error", "fallback", "non-json"}
	lower := strings.ToLower(result.Description)
	for _, indicator := range fallbackIndicators {
		if strings.Contains(lower, indicator) {
			result.Confidence = 0
			break
		}
	}
	return result
}

// normalizeLandmarks clamps coordinates and visibility into [0,1] and
// caps the set at the fixed model size. A short set is kept short; the
// alignment core treats missing indices as unusable.
func normalizeLandmarks(landmarks []types.Landmark) []types.Landmark {
	if len(landmarks) > pose.NumLandmarks {
		landmarks = landmarks[:pose.NumLandmarks]
	}

	out := make([]types.Landmark, len(landmarks))
	for i, lm := range landmarks {
		out[i] = types.Landmark{
			X:          clamp(lm.X, 0, 1),
			Y:          clamp(lm.Y, 0, 1),
			Z:          lm.Z,
			Visibility: clamp(lm.Visibility, 0, 1),
		}
	}
	return out
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

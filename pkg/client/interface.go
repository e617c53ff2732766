package client

import (
	"context"

	"github.com/rickydwilson-dcs/poseproof/pkg/types"
)

type PoseClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	DetectPose(ctx context.Context, model, prompt, imgB64 string) (*types.PoseResult, error)
}

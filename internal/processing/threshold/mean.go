package threshold

import (
	"context"
	"fmt"
	"math"

	"vessel-extractor/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const MaxValue = 255

// MeanThreshold binarises an image against its own mean intensity: samples
// at or above the mean become MaxValue, everything else 0.
type MeanThreshold struct{}

func NewMeanThreshold() *MeanThreshold {
	return &MeanThreshold{}
}

func (m *MeanThreshold) Name() string {
	return "mean_threshold"
}

func (m *MeanThreshold) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateChannels(input, 1, m.Name()); err != nil {
		return nil, err
	}
	if err := safe.ValidateDepth8U(input, m.Name()); err != nil {
		return nil, err
	}

	mean := Mean(input)

	result, err := input.Derive(input.Rows(), input.Cols(), gocv.MatTypeCV8UC1, "threshold")
	if err != nil {
		return nil, fmt.Errorf("failed to create result Mat: %w", err)
	}

	srcMat := input.GetMat()
	resultMat := result.GetMat()
	gocv.Threshold(srcMat, &resultMat, Cutoff(mean), MaxValue, gocv.ThresholdBinary)

	return result, nil
}

// Mean is the average of channel 0.
func Mean(input *safe.Mat) float64 {
	mat := input.GetMat()
	return mat.Mean().Val1
}

// Cutoff converts ">= mean" into the strict ">" cutoff ThresholdBinary uses.
// Samples are integers, so p >= mean exactly when p > ceil(mean)-1.
func Cutoff(mean float64) float32 {
	return float32(math.Ceil(mean) - 1)
}

// Package blobs erases small connected regions from binary masks.
package blobs

import (
	"context"
	"fmt"
	"image/color"

	"vessel-extractor/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const DefaultMinArea = 25.0

type Filter struct {
	minArea float64
}

func NewFilter(minArea float64) (*Filter, error) {
	if minArea < 0 {
		return nil, fmt.Errorf("minimum blob area must be non-negative, got %v", minArea)
	}
	return &Filter{minArea: minArea}, nil
}

func (f *Filter) Name() string {
	return "remove_blobs"
}

func (f *Filter) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	result, _, err := f.Remove(ctx, input)
	return result, err
}

// Remove fills every contour whose enclosed area is below the minimum with 0
// and reports how many were filled. Contours come from the full tree, so
// holes are visited as well. The input is left untouched.
func (f *Filter) Remove(ctx context.Context, input *safe.Mat) (*safe.Mat, int, error) {
	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	default:
	}

	if err := safe.ValidateChannels(input, 1, f.Name()); err != nil {
		return nil, 0, err
	}

	result, err := input.Clone()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to copy binary image: %w", err)
	}

	contours := gocv.FindContours(input.GetMat(), gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	removed := 0
	resultMat := result.GetMat()
	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) < f.minArea {
			gocv.DrawContours(&resultMat, contours, i, color.RGBA{}, -1)
			removed++
		}
	}

	return result, removed, nil
}

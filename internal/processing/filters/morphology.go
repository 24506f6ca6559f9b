package filters

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"vessel-extractor/internal/opencv/safe"
)

// StructuringElement is a centred square kernel with odd side 2*radius+1.
type StructuringElement struct {
	kernel gocv.Mat
	radius int
}

func NewRectElement(radius int) (*StructuringElement, error) {
	if radius < 1 {
		return nil, fmt.Errorf("structuring element radius must be >= 1, got %d", radius)
	}

	side := 2*radius + 1
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: side, Y: side})
	if kernel.Empty() {
		return nil, fmt.Errorf("failed to build %dx%d structuring element", side, side)
	}

	return &StructuringElement{kernel: kernel, radius: radius}, nil
}

func (se *StructuringElement) Radius() int {
	return se.radius
}

func (se *StructuringElement) Size() int {
	return 2*se.radius + 1
}

func (se *StructuringElement) Close() {
	se.kernel.Close()
}

// Open erodes then dilates once, removing bright detail smaller than se.
func Open(ctx context.Context, src *safe.Mat, se *StructuringElement) (*safe.Mat, error) {
	return morph(ctx, src, se, gocv.MorphOpen, "opened")
}

// Close dilates then erodes once, filling dark gaps smaller than se.
func Close(ctx context.Context, src *safe.Mat, se *StructuringElement) (*safe.Mat, error) {
	return morph(ctx, src, se, gocv.MorphClose, "closed")
}

func morph(ctx context.Context, src *safe.Mat, se *StructuringElement, op gocv.MorphType, tag string) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateMatForOperation(src, tag); err != nil {
		return nil, err
	}
	if se == nil {
		return nil, fmt.Errorf("nil structuring element for %s", tag)
	}

	result, err := src.Derive(src.Rows(), src.Cols(), src.Type(), tag)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s Mat: %w", tag, err)
	}

	srcMat := src.GetMat()
	resultMat := result.GetMat()
	gocv.MorphologyEx(srcMat, &resultMat, op, se.kernel)

	return result, nil
}

type MedianFilter struct {
	kernelSize int
}

func NewMedianFilter(kernelSize int) (*MedianFilter, error) {
	if kernelSize < 3 || kernelSize%2 == 0 {
		return nil, fmt.Errorf("median kernel must be odd and >= 3, got %d", kernelSize)
	}
	return &MedianFilter{kernelSize: kernelSize}, nil
}

func (m *MedianFilter) Name() string {
	return "median_filter"
}

func (m *MedianFilter) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateMatForOperation(input, m.Name()); err != nil {
		return nil, err
	}

	result, err := input.Derive(input.Rows(), input.Cols(), input.Type(), "median")
	if err != nil {
		return nil, fmt.Errorf("failed to create result Mat: %w", err)
	}

	srcMat := input.GetMat()
	resultMat := result.GetMat()
	gocv.MedianBlur(srcMat, &resultMat, m.kernelSize)

	return result, nil
}

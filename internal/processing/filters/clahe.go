package filters

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"vessel-extractor/internal/opencv/conversion"
	"vessel-extractor/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const (
	DefaultClipLimit = 3.0
	DefaultTileGrid  = 8
)

var ErrClosed = errors.New("filter closed")

// CLAHEFilter owns one OpenCV CLAHE instance configured at construction and
// reused for every image until Close.
type CLAHEFilter struct {
	mu     sync.Mutex
	clahe  gocv.CLAHE
	closed bool
}

func NewCLAHEFilter(clipLimit float64, tileGrid int) (*CLAHEFilter, error) {
	if clipLimit <= 0 {
		return nil, fmt.Errorf("clip limit must be positive, got %v", clipLimit)
	}
	if tileGrid <= 0 {
		return nil, fmt.Errorf("tile grid must be positive, got %d", tileGrid)
	}
	return &CLAHEFilter{
		clahe: gocv.NewCLAHEWithParams(clipLimit, image.Point{X: tileGrid, Y: tileGrid}),
	}, nil
}

// Close releases the OpenCV instance. Apply fails with ErrClosed afterwards.
func (c *CLAHEFilter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		c.clahe.Close()
	}
}

func (c *CLAHEFilter) Name() string {
	return "clahe_filter"
}

// Apply equalises a single-channel 8-bit image.
func (c *CLAHEFilter) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateChannels(input, 1, c.Name()); err != nil {
		return nil, err
	}
	if err := safe.ValidateDepth8U(input, c.Name()); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("%s: %w", c.Name(), ErrClosed)
	}

	dst, err := input.Derive(input.Rows(), input.Cols(), gocv.MatTypeCV8UC1, "clahe")
	if err != nil {
		return nil, fmt.Errorf("failed to create destination Mat: %w", err)
	}

	srcMat := input.GetMat()
	dstMat := dst.GetMat()

	c.clahe.Apply(srcMat, &dstMat)

	return dst, nil
}

// ApplyChannel equalises one plane of a multi-channel image and returns it as
// a single-channel Mat.
func (c *CLAHEFilter) ApplyChannel(ctx context.Context, input *safe.Mat, index int) (*safe.Mat, error) {
	if input.Channels() == 1 && index == 0 {
		return c.Apply(ctx, input)
	}

	plane, err := conversion.ExtractChannel(input, index)
	if err != nil {
		return nil, fmt.Errorf("channel extraction failed: %w", err)
	}
	defer plane.Close()

	return c.Apply(ctx, plane)
}

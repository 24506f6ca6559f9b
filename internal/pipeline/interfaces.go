package pipeline

import (
	"context"
	"errors"
	"fmt"

	"vessel-extractor/internal/opencv/safe"
)

var (
	ErrInputMissing = errors.New("input does not exist")
	ErrDecode       = errors.New("image could not be decoded")
	ErrWriteFailed  = errors.New("failed to write")
)

// Pair is one input image and the path its result is written to.
type Pair struct {
	Input  string
	Output string
}

// PairError is returned by Runner.Run for the pair that stopped the run.
type PairError struct {
	Index int
	Pair  Pair
	Err   error
}

func (e *PairError) Error() string {
	return fmt.Sprintf("pair %d (%s -> %s): %v", e.Index+1, e.Pair.Input, e.Pair.Output, e.Err)
}

func (e *PairError) Unwrap() error {
	return e.Err
}

// Extractor is the segmentation step the runner drives.
type Extractor interface {
	Extract(ctx context.Context, img *safe.Mat) (*safe.Mat, error)
	Display(title string, img *safe.Mat)
}

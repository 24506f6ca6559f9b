package safe

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var ErrInvalidMat = errors.New("invalid Mat")

func ValidateMatForOperation(mat *Mat, operation string) error {
	if mat == nil {
		return fmt.Errorf("%w: nil for operation: %s", ErrInvalidMat, operation)
	}

	if !mat.IsValid() {
		return fmt.Errorf("%w: closed for operation: %s", ErrInvalidMat, operation)
	}

	if mat.Empty() {
		return fmt.Errorf("%w: empty for operation: %s", ErrInvalidMat, operation)
	}

	if mat.Rows() <= 0 || mat.Cols() <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d for operation: %s",
			ErrInvalidMat, mat.Cols(), mat.Rows(), operation)
	}

	return nil
}

// ValidateChannels checks the channel count before a channel-sensitive call
// such as CvtColor or CLAHE.
func ValidateChannels(mat *Mat, want int, operation string) error {
	if err := ValidateMatForOperation(mat, operation); err != nil {
		return err
	}

	if got := mat.Channels(); got != want {
		return fmt.Errorf("%w: %s requires %d channels, got %d", ErrInvalidMat, operation, want, got)
	}

	return nil
}

// ValidateDepth8U rejects anything that is not 8 bits per sample.
func ValidateDepth8U(mat *Mat, operation string) error {
	switch mat.Type() {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3, gocv.MatTypeCV8UC4:
		return nil
	default:
		return fmt.Errorf("%w: unsupported MatType %d for operation: %s", ErrInvalidMat, int(mat.Type()), operation)
	}
}

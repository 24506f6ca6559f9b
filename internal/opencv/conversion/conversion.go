package conversion

import (
	"fmt"
	"image"

	"vessel-extractor/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// MatToImage converts GoCV Mat to standard Go image
func MatToImage(src *safe.Mat) (image.Image, error) {
	if err := safe.ValidateMatForOperation(src, "Mat to image conversion"); err != nil {
		return nil, err
	}

	switch src.Channels() {
	case 1, 3, 4:
	default:
		return nil, fmt.Errorf("unsupported channel count: %d", src.Channels())
	}

	mat := src.GetMat()
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("Mat to image conversion failed: %w", err)
	}

	return img, nil
}

// SideBySide places left and right next to each other. A single-channel side
// is promoted to BGR so both halves share a type.
func SideBySide(left, right *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(left, "side by side"); err != nil {
		return nil, err
	}
	if err := safe.ValidateMatForOperation(right, "side by side"); err != nil {
		return nil, err
	}
	if left.Rows() != right.Rows() {
		return nil, fmt.Errorf("row mismatch: %d vs %d", left.Rows(), right.Rows())
	}

	l, err := asBGR(left)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	r, err := asBGR(right)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	dst, err := left.Derive(left.Rows(), left.Cols()+right.Cols(), gocv.MatTypeCV8UC3, "two_up")
	if err != nil {
		return nil, err
	}

	dstMat := dst.GetMat()
	gocv.Hconcat(l.GetMat(), r.GetMat(), &dstMat)

	return dst, nil
}

func asBGR(src *safe.Mat) (*safe.Mat, error) {
	switch src.Channels() {
	case 1:
		return ConvertGrayToBGR(src)
	case 3:
		return src.Clone()
	default:
		return nil, fmt.Errorf("unsupported channel count: %d", src.Channels())
	}
}

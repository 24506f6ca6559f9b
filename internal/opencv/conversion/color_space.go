package conversion

import (
	"fmt"

	"vessel-extractor/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ConvertBGRToLab converts BGR image to Lab color space
func ConvertBGRToLab(src *safe.Mat) (*safe.Mat, error) {
	if err := validateBGRMat(src); err != nil {
		return nil, err
	}

	dst, err := src.Derive(src.Rows(), src.Cols(), gocv.MatTypeCV8UC3, "lab")
	if err != nil {
		return nil, err
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()
	gocv.CvtColor(srcMat, &dstMat, gocv.ColorBGRToLab)

	return dst, nil
}

// ConvertGrayToBGR replicates a single channel into a 3-channel BGR image.
func ConvertGrayToBGR(src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateChannels(src, 1, "gray to BGR"); err != nil {
		return nil, err
	}

	dst, err := src.Derive(src.Rows(), src.Cols(), gocv.MatTypeCV8UC3, "gray_bgr")
	if err != nil {
		return nil, err
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()
	gocv.CvtColor(srcMat, &dstMat, gocv.ColorGrayToBGR)

	return dst, nil
}

// ExtractChannel copies plane index of src into a new single-channel Mat.
func ExtractChannel(src *safe.Mat, index int) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "extract channel"); err != nil {
		return nil, err
	}

	if index < 0 || index >= src.Channels() {
		return nil, fmt.Errorf("channel %d out of bounds [0, %d)", index, src.Channels())
	}

	dst, err := src.Derive(src.Rows(), src.Cols(), gocv.MatTypeCV8UC1, "channel")
	if err != nil {
		return nil, err
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()
	gocv.ExtractChannel(srcMat, &dstMat, index)

	return dst, nil
}

// ReplicateChannel merges count copies of a single-channel Mat.
func ReplicateChannel(src *safe.Mat, count int) (*safe.Mat, error) {
	if err := safe.ValidateChannels(src, 1, "replicate channel"); err != nil {
		return nil, err
	}

	var matType gocv.MatType
	switch count {
	case 1:
		matType = gocv.MatTypeCV8UC1
	case 3:
		matType = gocv.MatTypeCV8UC3
	case 4:
		matType = gocv.MatTypeCV8UC4
	default:
		return nil, fmt.Errorf("invalid channel count: %d", count)
	}

	dst, err := src.Derive(src.Rows(), src.Cols(), matType, "merged")
	if err != nil {
		return nil, err
	}

	srcMat := src.GetMat()
	planes := make([]gocv.Mat, count)
	for i := range planes {
		planes[i] = srcMat
	}

	dstMat := dst.GetMat()
	gocv.Merge(planes, &dstMat)

	return dst, nil
}

func validateBGRMat(mat *safe.Mat) error {
	return safe.ValidateChannels(mat, 3, "BGR conversion")
}

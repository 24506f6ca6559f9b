package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vessel-extractor/internal/logger"
	"vessel-extractor/internal/opencv/safe"

	"gocv.io/x/gocv"
)

type Saver struct {
	logger logger.Logger
}

func NewSaver(log logger.Logger) *Saver {
	return &Saver{logger: log}
}

// Save encodes img in the format implied by path's extension and confirms
// the file exists afterwards.
func (s *Saver) Save(path string, img *safe.Mat) error {
	if err := safe.ValidateMatForOperation(img, "save"); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if !IsSupportedFormat(path) {
		return fmt.Errorf("%s: unsupported image format: %w", path, ErrWriteFailed)
	}

	ok := gocv.IMWrite(path, img.GetMat())
	if _, err := os.Stat(path); !ok || err != nil {
		return fmt.Errorf("%s: %w", path, ErrWriteFailed)
	}

	s.logger.Debug("ImageSaver", "image saved", map[string]interface{}{
		"path":   path,
		"width":  img.Cols(),
		"height": img.Rows(),
	})

	return nil
}

var supportedFormats = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp"}

// IsSupportedFormat reports whether path's extension names a raster format
// the saver can encode.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

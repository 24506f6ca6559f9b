package pipeline

import (
	"fmt"
	"os"

	"vessel-extractor/internal/logger"
	"vessel-extractor/internal/opencv/safe"

	"gocv.io/x/gocv"
)

type Loader struct {
	tracker safe.MemoryTracker
	logger  logger.Logger
}

func NewLoader(tracker safe.MemoryTracker, log logger.Logger) *Loader {
	return &Loader{tracker: tracker, logger: log}
}

// Load reads path as a 3-channel BGR image.
func (l *Loader) Load(path string) (*safe.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrInputMissing)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("%s: %w", path, ErrDecode)
	}

	img, err := safe.NewMatFromMatWithTracker(mat, l.tracker, "input")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l.logger.Debug("ImageLoader", "image loaded", map[string]interface{}{
		"path":     path,
		"width":    img.Cols(),
		"height":   img.Rows(),
		"channels": img.Channels(),
	})

	return img, nil
}

package vessel

import (
	"errors"
	"fmt"

	"vessel-extractor/internal/processing/blobs"
	"vessel-extractor/internal/processing/filters"
)

// Config fixes the pipeline constants. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	// Radii of the square structuring elements, applied in this order.
	Radii        []int
	ClipLimit    float64
	TileGrid     int
	MedianKernel int
	MinBlobArea  float64
}

func DefaultConfig() Config {
	return Config{
		Radii:        []int{2, 5, 11},
		ClipLimit:    filters.DefaultClipLimit,
		TileGrid:     filters.DefaultTileGrid,
		MedianKernel: 3,
		MinBlobArea:  blobs.DefaultMinArea,
	}
}

var ErrInvalidConfig = errors.New("invalid extractor config")

func (c Config) Validate() error {
	if len(c.Radii) == 0 {
		return fmt.Errorf("%w: no structuring element radii", ErrInvalidConfig)
	}
	for i, r := range c.Radii {
		if r < 1 {
			return fmt.Errorf("%w: radius %d must be >= 1", ErrInvalidConfig, r)
		}
		if i > 0 && r <= c.Radii[i-1] {
			return fmt.Errorf("%w: radii must be strictly increasing, got %v", ErrInvalidConfig, c.Radii)
		}
	}
	if c.ClipLimit <= 0 {
		return fmt.Errorf("%w: clip limit %v", ErrInvalidConfig, c.ClipLimit)
	}
	if c.TileGrid <= 0 {
		return fmt.Errorf("%w: tile grid %d", ErrInvalidConfig, c.TileGrid)
	}
	if c.MedianKernel < 3 || c.MedianKernel%2 == 0 {
		return fmt.Errorf("%w: median kernel %d must be odd and >= 3", ErrInvalidConfig, c.MedianKernel)
	}
	if c.MinBlobArea < 0 {
		return fmt.Errorf("%w: min blob area %v", ErrInvalidConfig, c.MinBlobArea)
	}
	return nil
}

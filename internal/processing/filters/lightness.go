package filters

import (
	"context"
	"fmt"

	"vessel-extractor/internal/opencv/conversion"
	"vessel-extractor/internal/opencv/safe"
)

// LightnessFilter equalises the Lab L channel of a BGR image and returns it
// replicated into three channels.
type LightnessFilter struct {
	clahe *CLAHEFilter
}

func NewLightnessFilter(clahe *CLAHEFilter) *LightnessFilter {
	return &LightnessFilter{clahe: clahe}
}

func (l *LightnessFilter) Name() string {
	return "color_filter"
}

func (l *LightnessFilter) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	lab, err := conversion.ConvertBGRToLab(input)
	if err != nil {
		return nil, fmt.Errorf("Lab conversion failed: %w", err)
	}
	defer lab.Close()

	equalized, err := l.clahe.ApplyChannel(ctx, lab, 0)
	if err != nil {
		return nil, fmt.Errorf("lightness equalization failed: %w", err)
	}
	defer equalized.Close()

	return conversion.ReplicateChannel(equalized, 3)
}

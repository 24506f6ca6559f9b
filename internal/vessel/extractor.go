// Package vessel segments retinal blood vessels from colour fundus images.
//
// The pipeline enhances the Lab lightness channel, approximates the
// background with alternating openings and closings of growing square
// elements, subtracts the image from that background so thin dark vessels
// stand out, then binarises against the mean and drops blobs smaller than
// MinBlobArea.
package vessel

import (
	"context"
	"fmt"

	"vessel-extractor/internal/debug/timing"
	"vessel-extractor/internal/logger"
	"vessel-extractor/internal/opencv/safe"
	"vessel-extractor/internal/processing/blobs"
	"vessel-extractor/internal/processing/chain"
	"vessel-extractor/internal/processing/filters"
	"vessel-extractor/internal/processing/threshold"

	"gocv.io/x/gocv"
)

// DisplayFunc shows img under title and returns once the viewer dismisses
// it. It must not close or keep img.
type DisplayFunc func(title string, img *safe.Mat) error

const (
	stepLargeArteries = "large_arteries"

	TitleLargeArteries = "extract(): large_arteries_img"
	TitleThreshold     = "extract(): threshold"
	TitleCleaned       = "extract(): cleaned"
)

var stepTitles = map[string]string{
	stepLargeArteries: TitleLargeArteries,
	"mean_threshold":  TitleThreshold,
	"remove_blobs":    TitleCleaned,
}

type Option func(*Extractor)

// WithDisplay turns on intermediate previews.
func WithDisplay(display DisplayFunc) Option {
	return func(e *Extractor) {
		e.display = display
	}
}

func WithLogger(log logger.Logger) Option {
	return func(e *Extractor) {
		e.logger = log
	}
}

// WithTiming records a duration per pipeline step.
func WithTiming(tracker *timing.Tracker) Option {
	return func(e *Extractor) {
		e.timing = tracker
	}
}

// Extractor is configured once and reused for every image. Extract does not
// modify the Extractor, but a DisplayFunc may serialise callers.
type Extractor struct {
	cfg       Config
	elements  []*filters.StructuringElement
	clahe     *filters.CLAHEFilter
	lightness *filters.LightnessFilter
	median    *filters.MedianFilter
	threshold *threshold.MeanThreshold
	blobs     *blobs.Filter
	chain     *chain.ProcessingChain

	display DisplayFunc
	logger  logger.Logger
	timing  *timing.Tracker
}

func New(cfg Config, opts ...Option) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Extractor{
		cfg:       cfg,
		threshold: threshold.NewMeanThreshold(),
		logger:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	if e.clahe, err = filters.NewCLAHEFilter(cfg.ClipLimit, cfg.TileGrid); err != nil {
		return nil, err
	}
	e.lightness = filters.NewLightnessFilter(e.clahe)
	if e.median, err = filters.NewMedianFilter(cfg.MedianKernel); err != nil {
		e.Close()
		return nil, err
	}
	if e.blobs, err = blobs.NewFilter(cfg.MinBlobArea); err != nil {
		e.Close()
		return nil, err
	}

	for _, radius := range cfg.Radii {
		se, err := filters.NewRectElement(radius)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.elements = append(e.elements, se)
	}

	e.chain = chain.NewProcessingChain([]chain.ProcessingStep{
		e.timed(chain.StepFunc{StepName: stepLargeArteries, Fn: e.colorFilterThenLargeArteries}),
		e.timed(e.median),
		e.timed(e.threshold),
		e.timed(chain.StepFunc{StepName: e.blobs.Name(), Fn: e.RemoveBlobs}),
		e.timed(e.median),
	})
	e.chain.SetObserver(e.observe)

	e.logger.Debug("Extractor", "extractor configured", map[string]interface{}{
		"steps":         e.chain.GetStepNames(),
		"element_sizes": e.elementSizes(),
		"clip_limit":    cfg.ClipLimit,
		"min_blob_area": cfg.MinBlobArea,
		"show":          e.ShowIntermediate(),
	})

	return e, nil
}

// ShowIntermediate reports whether intermediate images go to a display.
func (e *Extractor) ShowIntermediate() bool {
	return e.display != nil
}

// Display forwards img to the configured display, if any. Display failures
// are logged and otherwise ignored.
func (e *Extractor) Display(title string, img *safe.Mat) {
	if e.display == nil || img == nil {
		return
	}
	if err := e.display(title, img); err != nil {
		e.logger.Warning("Extractor", "preview failed", map[string]interface{}{
			"title": title,
			"error": err.Error(),
		})
	}
}

// Elements returns the structuring elements in application order.
func (e *Extractor) Elements() []*filters.StructuringElement {
	return e.elements
}

func (e *Extractor) Close() {
	for _, se := range e.elements {
		se.Close()
	}
	e.elements = nil

	if e.clahe != nil {
		e.clahe.Close()
	}
}

// ColorFilter equalises the Lab lightness of a BGR image and returns it as a
// 3-channel image of the same size.
func (e *Extractor) ColorFilter(ctx context.Context, img *safe.Mat) (*safe.Mat, error) {
	return e.lightness.Apply(ctx, img)
}

// Erosion is a morphological opening with se.
func (e *Extractor) Erosion(ctx context.Context, img *safe.Mat, se *filters.StructuringElement) (*safe.Mat, error) {
	return filters.Open(ctx, img, se)
}

// Dilation is a morphological closing with se.
func (e *Extractor) Dilation(ctx context.Context, img *safe.Mat, se *filters.StructuringElement) (*safe.Mat, error) {
	return filters.Close(ctx, img, se)
}

// LargeArteries approximates the background with an alternating sequential
// filter, subtracts img from it and equalises channel 0 of the difference.
// The result is single-channel.
func (e *Extractor) LargeArteries(ctx context.Context, img *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(img, stepLargeArteries); err != nil {
		return nil, err
	}

	background, err := img.Clone()
	if err != nil {
		return nil, err
	}

	for _, se := range e.elements {
		opened, err := e.Erosion(ctx, background, se)
		background.Close()
		if err != nil {
			return nil, fmt.Errorf("opening with %dx%d failed: %w", se.Size(), se.Size(), err)
		}

		background, err = e.Dilation(ctx, opened, se)
		opened.Close()
		if err != nil {
			return nil, fmt.Errorf("closing with %dx%d failed: %w", se.Size(), se.Size(), err)
		}
	}
	defer background.Close()

	removed, err := img.Derive(img.Rows(), img.Cols(), img.Type(), "background_removed")
	if err != nil {
		return nil, err
	}
	defer removed.Close()

	removedMat := removed.GetMat()
	gocv.Subtract(background.GetMat(), img.GetMat(), &removedMat)

	return e.clahe.ApplyChannel(ctx, removed, 0)
}

// Threshold binarises img against its mean: >= mean becomes 255.
func (e *Extractor) Threshold(ctx context.Context, img *safe.Mat) (*safe.Mat, error) {
	return e.threshold.Apply(ctx, img)
}

// RemoveBlobs erases contours with area below MinBlobArea.
func (e *Extractor) RemoveBlobs(ctx context.Context, binary *safe.Mat) (*safe.Mat, error) {
	cleaned, removed, err := e.blobs.Remove(ctx, binary)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Extractor", "blobs removed", map[string]interface{}{
		"count":    removed,
		"min_area": e.cfg.MinBlobArea,
	})
	return cleaned, nil
}

// Extract turns a BGR fundus image into a 0/255 single-channel vessel mask of
// the same size. img is not modified; the caller owns the result.
func (e *Extractor) Extract(ctx context.Context, img *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateChannels(img, 3, "extract"); err != nil {
		return nil, err
	}
	if err := safe.ValidateDepth8U(img, "extract"); err != nil {
		return nil, err
	}

	e.logger.Debug("Extractor", "extract", map[string]interface{}{
		"width":    img.Cols(),
		"height":   img.Rows(),
		"channels": img.Channels(),
	})

	mask, err := e.chain.Execute(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("vessel extraction failed: %w", err)
	}
	return mask, nil
}

func (e *Extractor) colorFilterThenLargeArteries(ctx context.Context, img *safe.Mat) (*safe.Mat, error) {
	filtered, err := e.ColorFilter(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("color filter failed: %w", err)
	}
	defer filtered.Close()

	return e.LargeArteries(ctx, filtered)
}

func (e *Extractor) observe(step string, output *safe.Mat) {
	if title, ok := stepTitles[step]; ok {
		e.Display(title, output)
	}
}

func (e *Extractor) elementSizes() []int {
	sizes := make([]int, len(e.elements))
	for i, se := range e.elements {
		sizes[i] = se.Size()
	}
	return sizes
}

type timedStep struct {
	chain.ProcessingStep
	tracker *timing.Tracker
}

func (s timedStep) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	ctx = s.tracker.StartTiming(ctx, s.Name())
	defer s.tracker.EndTiming(ctx)
	return s.ProcessingStep.Apply(ctx, input)
}

func (e *Extractor) timed(step chain.ProcessingStep) chain.ProcessingStep {
	if e.timing == nil {
		return step
	}
	return timedStep{ProcessingStep: step, tracker: e.timing}
}

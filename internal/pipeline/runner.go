package pipeline

import (
	"context"
	"fmt"

	"vessel-extractor/internal/debug/timing"
	"vessel-extractor/internal/logger"
	"vessel-extractor/internal/opencv/conversion"
	"vessel-extractor/internal/opencv/memory"
	"vessel-extractor/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// OutputTitle is the preview title of the final mask.
const OutputTitle = "output_path"

// Runner processes input/output pairs one at a time and stops at the first
// failure.
type Runner struct {
	extractor Extractor
	loader    *Loader
	saver     *Saver
	memory    *memory.Manager
	timing    *timing.Tracker
	logger    logger.Logger
}

func NewRunner(extractor Extractor, mem *memory.Manager, tracker *timing.Tracker, log logger.Logger) *Runner {
	return &Runner{
		extractor: extractor,
		loader:    NewLoader(mem, log),
		saver:     NewSaver(log),
		memory:    mem,
		timing:    tracker,
		logger:    log,
	}
}

func (r *Runner) Run(ctx context.Context, pairs []Pair) error {
	for i, pair := range pairs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := r.ProcessPair(ctx, pair); err != nil {
			r.logger.Error("Runner", "pair failed", err, map[string]interface{}{
				"index":  i + 1,
				"input":  pair.Input,
				"output": pair.Output,
			})
			return &PairError{Index: i, Pair: pair, Err: err}
		}

		r.logger.Info("Runner", "pair processed", map[string]interface{}{
			"index":  i + 1,
			"total":  len(pairs),
			"input":  pair.Input,
			"output": pair.Output,
		})
	}
	return nil
}

// ProcessPair reads pair.Input, extracts the vessel mask and writes a two-up
// composite (input | mask) to pair.Output.
func (r *Runner) ProcessPair(ctx context.Context, pair Pair) error {
	r.timing.Reset()
	defer r.report(pair)

	var input *safe.Mat
	err := r.timing.Time(ctx, "load", func(context.Context) error {
		var err error
		input, err = r.loader.Load(pair.Input)
		return err
	})
	if err != nil {
		return err
	}
	defer input.Close()

	var mask *safe.Mat
	err = r.timing.Time(ctx, "extract", func(ctx context.Context) error {
		var err error
		mask, err = r.extractor.Extract(ctx, input)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", pair.Input, err)
	}
	defer mask.Close()

	twoUp, err := conversion.SideBySide(input, mask)
	if err != nil {
		return fmt.Errorf("%s: composite failed: %w", pair.Input, err)
	}
	defer twoUp.Close()

	r.extractor.Display(OutputTitle, mask)

	r.logger.Debug("Runner", "mask computed", map[string]interface{}{
		"input":    pair.Input,
		"coverage": Coverage(mask),
	})

	return r.timing.Time(ctx, "save", func(context.Context) error {
		return r.saver.Save(pair.Output, twoUp)
	})
}

func (r *Runner) report(pair Pair) {
	fields := r.timing.Summary()
	fields["input"] = pair.Input
	r.logger.Debug("Runner", "stage timings", fields)

	r.memory.Report(pair.Input)
}

// Coverage is the fraction of non-zero samples in a single-channel mask.
func Coverage(mask *safe.Mat) float64 {
	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask.GetMat())) / float64(total)
}

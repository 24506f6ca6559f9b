package chain

import (
	"context"
	"fmt"

	"vessel-extractor/internal/opencv/safe"
)

type ProcessingStep interface {
	Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error)
	Name() string
}

// Observer sees each step's output before the next step consumes it. It must
// not close or keep the Mat.
type Observer func(step string, output *safe.Mat)

// StepFunc adapts a plain function to ProcessingStep.
type StepFunc struct {
	StepName string
	Fn       func(ctx context.Context, input *safe.Mat) (*safe.Mat, error)
}

func (s StepFunc) Name() string {
	return s.StepName
}

func (s StepFunc) Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	return s.Fn(ctx, input)
}

type ProcessingChain struct {
	steps    []ProcessingStep
	observer Observer
}

func NewProcessingChain(steps []ProcessingStep) *ProcessingChain {
	return &ProcessingChain{
		steps: steps,
	}
}

func (pc *ProcessingChain) SetObserver(observer Observer) {
	pc.observer = observer
}

// Execute feeds input through every step in order. Intermediate results are
// closed as soon as the following step has consumed them; input is never
// closed. The caller owns the returned Mat.
func (pc *ProcessingChain) Execute(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	if len(pc.steps) == 0 {
		return input.Clone()
	}

	current := input
	needsCleanup := false

	for _, step := range pc.steps {
		select {
		case <-ctx.Done():
			if needsCleanup {
				current.Close()
			}
			return nil, ctx.Err()
		default:
		}

		result, err := step.Apply(ctx, current)
		if needsCleanup {
			current.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("step %s failed: %w", step.Name(), err)
		}

		if pc.observer != nil {
			pc.observer(step.Name(), result)
		}

		current = result
		needsCleanup = true
	}

	return current, nil
}

func (pc *ProcessingChain) GetStepNames() []string {
	names := make([]string, len(pc.steps))
	for i, step := range pc.steps {
		names[i] = step.Name()
	}
	return names
}

package timing

import (
	"context"
	"sync"
	"time"
)

type timingKey struct{}

type TimingInfo struct {
	Operation string
	StartTime time.Time
}

// Tracker accumulates wall-clock durations per named operation.
type Tracker struct {
	timings map[string][]time.Duration
	order   []string
	mu      sync.RWMutex
	enabled bool
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		timings: make(map[string][]time.Duration),
		enabled: true,
		now:     time.Now,
	}
}

func (tt *Tracker) StartTiming(ctx context.Context, operation string) context.Context {
	if !tt.isEnabled() {
		return ctx
	}

	return context.WithValue(ctx, timingKey{}, TimingInfo{
		Operation: operation,
		StartTime: tt.now(),
	})
}

func (tt *Tracker) EndTiming(ctx context.Context) time.Duration {
	if !tt.isEnabled() {
		return 0
	}

	timingInfo, ok := ctx.Value(timingKey{}).(TimingInfo)
	if !ok {
		return 0
	}

	duration := tt.now().Sub(timingInfo.StartTime)

	tt.mu.Lock()
	if _, seen := tt.timings[timingInfo.Operation]; !seen {
		tt.order = append(tt.order, timingInfo.Operation)
	}
	tt.timings[timingInfo.Operation] = append(tt.timings[timingInfo.Operation], duration)
	tt.mu.Unlock()

	return duration
}

// Time runs fn and records its duration under operation.
func (tt *Tracker) Time(ctx context.Context, operation string, fn func(context.Context) error) error {
	timed := tt.StartTiming(ctx, operation)
	defer tt.EndTiming(timed)
	return fn(timed)
}

// Summary returns total milliseconds per operation, keyed for logging.
func (tt *Tracker) Summary() map[string]interface{} {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	summary := make(map[string]interface{}, len(tt.timings))
	for op, timings := range tt.timings {
		var total time.Duration
		for _, d := range timings {
			total += d
		}
		summary[op+"_ms"] = float64(total.Microseconds()) / 1000
	}
	return summary
}

// Operations lists recorded operation names in first-seen order.
func (tt *Tracker) Operations() []string {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	ops := make([]string, len(tt.order))
	copy(ops, tt.order)
	return ops
}

// SetEnabled turns recording on or off. A disabled tracker adds no context
// values and records nothing.
func (tt *Tracker) SetEnabled(enabled bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.enabled = enabled
}

func (tt *Tracker) isEnabled() bool {
	tt.mu.RLock()
	defer tt.mu.RUnlock()
	return tt.enabled
}

func (tt *Tracker) Reset() {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	tt.timings = make(map[string][]time.Duration)
	tt.order = nil
}

package vessel

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"vessel-extractor/internal/debug/timing"
	"vessel-extractor/internal/logger"
	"vessel-extractor/internal/opencv/memory"
	"vessel-extractor/internal/opencv/safe"
	"vessel-extractor/internal/processing/filters"
)

const (
	fixtureSize = 200
	background  = 200
	vesselLevel = 50
)

// Disks sit at CLAHE tile centres (8x8 grid of 25px tiles) and far apart.
var (
	largeCenter = image.Pt(62, 62)
	smallCenter = image.Pt(137, 137)
)

func newExtractor(t *testing.T, opts ...Option) *Extractor {
	t.Helper()
	e, err := New(DefaultConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func wrap(t *testing.T, m gocv.Mat, tracker safe.MemoryTracker) *safe.Mat {
	t.Helper()
	defer m.Close()

	sm, err := safe.NewMatFromMatWithTracker(m, tracker, "fixture")
	require.NoError(t, err)
	return sm
}

// diskFixture is a grey fundus stand-in: bright background with one dark
// disk of radius 10 and one of radius 2.
func diskFixture(t *testing.T, tracker safe.MemoryTracker) *safe.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(background, background, background, 0),
		fixtureSize, fixtureSize, gocv.MatTypeCV8UC3)
	dark := color.RGBA{R: vesselLevel, G: vesselLevel, B: vesselLevel}
	gocv.Circle(&m, largeCenter, 10, dark, -1)
	gocv.Circle(&m, smallCenter, 2, dark, -1)
	return wrap(t, m, tracker)
}

func randomFixture(t *testing.T, rows, cols int) *safe.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	gocv.RandU(&m, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(256, 256, 256, 0))
	return wrap(t, m, nil)
}

func assertBinary(t *testing.T, m *safe.Mat) {
	t.Helper()
	mat := m.GetMat()
	zeros := mat.Rows()*mat.Cols() - gocv.CountNonZero(mat)

	full := gocv.NewMat()
	defer full.Close()
	gocv.InRangeWithScalar(mat, gocv.NewScalar(255, 0, 0, 0), gocv.NewScalar(255, 0, 0, 0), &full)

	assert.Equal(t, mat.Rows()*mat.Cols(), zeros+gocv.CountNonZero(full), "mask has samples other than 0 and 255")
}

func sameMat(t *testing.T, a, b *safe.Mat) bool {
	t.Helper()
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a.GetMat(), b.GetMat(), &diff)
	return gocv.CountNonZero(diff) == 0
}

func TestNewBuildsThreeCentredSquareElements(t *testing.T) {
	e := newExtractor(t)

	sizes := []int{}
	for _, se := range e.Elements() {
		sizes = append(sizes, se.Size())
	}
	assert.Equal(t, []int{5, 11, 23}, sizes)
	assert.False(t, e.ShowIntermediate())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Radii = nil
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStagesPreserveDimensions(t *testing.T) {
	e := newExtractor(t)
	ctx := context.Background()
	img := randomFixture(t, 90, 130)
	defer img.Close()

	filtered, err := e.ColorFilter(ctx, img)
	require.NoError(t, err)
	defer filtered.Close()
	assert.Equal(t, 3, filtered.Channels())
	assert.Equal(t, 90, filtered.Rows())
	assert.Equal(t, 130, filtered.Cols())

	for _, se := range e.Elements() {
		opened, err := e.Erosion(ctx, filtered, se)
		require.NoError(t, err)
		assert.Equal(t, 90, opened.Rows())
		assert.Equal(t, 130, opened.Cols())

		closed, err := e.Dilation(ctx, opened, se)
		require.NoError(t, err)
		assert.Equal(t, 90, closed.Rows())
		assert.Equal(t, 130, closed.Cols())

		opened.Close()
		closed.Close()
	}

	arteries, err := e.LargeArteries(ctx, filtered)
	require.NoError(t, err)
	defer arteries.Close()
	assert.Equal(t, 1, arteries.Channels())
	assert.Equal(t, 90, arteries.Rows())
	assert.Equal(t, 130, arteries.Cols())

	binary, err := e.Threshold(ctx, arteries)
	require.NoError(t, err)
	defer binary.Close()
	assertBinary(t, binary)

	cleaned, err := e.RemoveBlobs(ctx, binary)
	require.NoError(t, err)
	defer cleaned.Close()
	assert.LessOrEqual(t, gocv.CountNonZero(cleaned.GetMat()), gocv.CountNonZero(binary.GetMat()))
}

func TestExtractProducesBinaryMaskOfSameSize(t *testing.T) {
	e := newExtractor(t)

	for _, size := range []image.Point{{64, 48}, {131, 97}, {200, 200}} {
		img := randomFixture(t, size.Y, size.X)

		mask, err := e.Extract(context.Background(), img)
		require.NoError(t, err)

		assert.Equal(t, 1, mask.Channels())
		assert.Equal(t, size.Y, mask.Rows())
		assert.Equal(t, size.X, mask.Cols())
		assertBinary(t, mask)

		mask.Close()
		img.Close()
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	e := newExtractor(t)
	img := randomFixture(t, 120, 160)
	defer img.Close()

	first, err := e.Extract(context.Background(), img)
	require.NoError(t, err)
	defer first.Close()

	second, err := e.Extract(context.Background(), img)
	require.NoError(t, err)
	defer second.Close()

	assert.True(t, sameMat(t, first, second))
}

func TestExtractKeepsLargeDiskAndDropsSmallDisk(t *testing.T) {
	e := newExtractor(t)
	img := diskFixture(t, nil)
	defer img.Close()

	mask, err := e.Extract(context.Background(), img)
	require.NoError(t, err)
	defer mask.Close()

	mat := mask.GetMat()

	large := mat.Region(image.Rect(largeCenter.X-10, largeCenter.Y-10, largeCenter.X+11, largeCenter.Y+11))
	defer large.Close()
	assert.Positive(t, gocv.CountNonZero(large), "large disk vanished")

	small := mat.Region(image.Rect(smallCenter.X-3, smallCenter.Y-3, smallCenter.X+4, smallCenter.Y+4))
	defer small.Close()
	assert.Zero(t, gocv.CountNonZero(small), "small disk survived")
}

func TestExtractReleasesIntermediates(t *testing.T) {
	tracker := memory.NewManager(logger.NewNop())
	e := newExtractor(t)
	img := diskFixture(t, tracker)

	mask, err := e.Extract(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, int64(2), tracker.GetStats().ActiveMats)

	mask.Close()
	img.Close()
	assert.Empty(t, tracker.Leaks())
}

func TestExtractLeavesInputUnchanged(t *testing.T) {
	e := newExtractor(t)
	img := diskFixture(t, nil)
	defer img.Close()
	before, err := img.Clone()
	require.NoError(t, err)
	defer before.Close()

	mask, err := e.Extract(context.Background(), img)
	require.NoError(t, err)
	mask.Close()

	assert.True(t, sameMat(t, before, img))
}

func TestExtractRejectsSingleChannel(t *testing.T) {
	e := newExtractor(t)
	gray := wrap(t, gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC1), nil)
	defer gray.Close()

	_, err := e.Extract(context.Background(), gray)
	assert.ErrorIs(t, err, safe.ErrInvalidMat)
}

func TestExtractAfterCloseFails(t *testing.T) {
	e := newExtractor(t)
	img := diskFixture(t, nil)
	defer img.Close()

	mask, err := e.Extract(context.Background(), img)
	require.NoError(t, err)
	mask.Close()

	e.Close()
	_, err = e.Extract(context.Background(), img)
	assert.ErrorIs(t, err, filters.ErrClosed)
}

func TestExtractShowsIntermediatesInOrder(t *testing.T) {
	var titles []string
	display := func(title string, img *safe.Mat) error {
		titles = append(titles, title)
		assert.True(t, img.IsValid())
		return errors.New("no screen")
	}

	tracker := timing.NewTracker()
	e := newExtractor(t, WithDisplay(display), WithTiming(tracker), WithLogger(logger.NewNop()))
	assert.True(t, e.ShowIntermediate())

	img := diskFixture(t, nil)
	defer img.Close()

	mask, err := e.Extract(context.Background(), img)
	require.NoError(t, err, "display errors must not fail extraction")
	defer mask.Close()

	assert.Equal(t, []string{TitleLargeArteries, TitleThreshold, TitleCleaned}, titles)
	assert.Equal(t, []string{"large_arteries", "median_filter", "mean_threshold", "remove_blobs"}, tracker.Operations())
	assert.Contains(t, tracker.Summary(), "median_filter_ms")
	assert.Equal(t, []string{"large_arteries", "median_filter", "mean_threshold", "remove_blobs", "median_filter"},
		e.chain.GetStepNames())
}

func TestExtractHonoursCancellation(t *testing.T) {
	e := newExtractor(t)
	img := diskFixture(t, nil)
	defer img.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, img)
	assert.ErrorIs(t, err, context.Canceled)
}

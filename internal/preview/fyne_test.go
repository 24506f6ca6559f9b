package preview

import (
	"image"
	"testing"

	"fyne.io/fyne/v2"
	"github.com/stretchr/testify/assert"
)

func TestFitDownscalesKeepingAspect(t *testing.T) {
	wide := image.NewGray(image.Rect(0, 0, 2560, 1000))

	fitted := Fit(wide, MaxWidth, MaxHeight)
	assert.Equal(t, 1280, fitted.Bounds().Dx())
	assert.Equal(t, 500, fitted.Bounds().Dy())

	tall := image.NewGray(image.Rect(0, 0, 600, 1920))
	fitted = Fit(tall, MaxWidth, MaxHeight)
	assert.Equal(t, 300, fitted.Bounds().Dx())
	assert.Equal(t, 960, fitted.Bounds().Dy())
}

func TestFitLeavesSmallImages(t *testing.T) {
	small := image.NewGray(image.Rect(0, 0, 640, 480))
	assert.Same(t, small, Fit(small, MaxWidth, MaxHeight))
}

func TestIsDismissKey(t *testing.T) {
	for _, key := range []fyne.KeyName{fyne.KeyQ, fyne.KeySpace, fyne.KeyEscape} {
		assert.True(t, IsDismissKey(key), key)
	}
	assert.False(t, IsDismissKey(fyne.KeyReturn))
	assert.False(t, IsDismissKey(fyne.KeyS))
}

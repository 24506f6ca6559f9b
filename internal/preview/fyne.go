// Package preview shows images in a fyne window and blocks until the user
// dismisses them.
package preview

import (
	"errors"
	"image"
	"sync"

	"vessel-extractor/internal/logger"
	"vessel-extractor/internal/opencv/conversion"
	"vessel-extractor/internal/opencv/safe"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/disintegration/imaging"
)

const (
	MaxWidth  = 1280
	MaxHeight = 960
)

var ErrStopped = errors.New("preview stopped")

// Viewer reuses one window for every image. The window is hidden rather than
// closed on dismissal so the fyne app keeps running between images.
//
// Show must not be called from the goroutine running the fyne event loop.
type Viewer struct {
	app     fyne.App
	window  fyne.Window
	logger  logger.Logger
	mu      sync.Mutex
	dismiss func()
	stopped chan struct{}
	stop    sync.Once
}

func NewViewer(a fyne.App, log logger.Logger) *Viewer {
	v := &Viewer{
		app:     a,
		logger:  log,
		stopped: make(chan struct{}),
	}

	fyne.DoAndWait(func() {
		v.window = a.NewWindow("vessel-extractor")
		v.window.SetCloseIntercept(v.close)
		v.window.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
			if IsDismissKey(ev.Name) {
				v.close()
			}
		})
	})

	return v
}

// Show displays img under title until q, Space or Escape is pressed or the
// window is closed.
func (v *Viewer) Show(title string, img *safe.Mat) error {
	picture, err := conversion.MatToImage(img)
	if err != nil {
		return err
	}
	picture = Fit(picture, MaxWidth, MaxHeight)

	dismissed := make(chan struct{})
	var once sync.Once
	v.mu.Lock()
	v.dismiss = func() { once.Do(func() { close(dismissed) }) }
	v.mu.Unlock()

	fyne.DoAndWait(func() {
		display := canvas.NewImageFromImage(picture)
		display.FillMode = canvas.ImageFillOriginal
		v.window.SetTitle(title)
		v.window.SetContent(display)
		v.window.Show()
	})

	v.logger.Debug("Preview", "image shown", map[string]interface{}{
		"title":  title,
		"width":  picture.Bounds().Dx(),
		"height": picture.Bounds().Dy(),
	})

	select {
	case <-dismissed:
		return nil
	case <-v.stopped:
		return ErrStopped
	}
}

// Shutdown releases any Show call that is still waiting.
func (v *Viewer) Shutdown() {
	v.stop.Do(func() { close(v.stopped) })
}

// close runs on the fyne goroutine.
func (v *Viewer) close() {
	v.window.Hide()

	v.mu.Lock()
	dismiss := v.dismiss
	v.dismiss = nil
	v.mu.Unlock()

	if dismiss != nil {
		dismiss()
	}
}

func IsDismissKey(name fyne.KeyName) bool {
	switch name {
	case fyne.KeyQ, fyne.KeySpace, fyne.KeyEscape:
		return true
	}
	return false
}

// Fit scales img down to fit within maxWidth x maxHeight keeping its aspect
// ratio. Images that already fit are returned as is.
func Fit(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= maxWidth && bounds.Dy() <= maxHeight {
		return img
	}
	return imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
}

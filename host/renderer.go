package host

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// FramebufferRenderer owns the offscreen image the core's RGBA frame is
// uploaded to and draws it scaled to fit the window.
type FramebufferRenderer struct {
	pixelAspect float64
	offscreen   *ebiten.Image
	drawOpts    ebiten.DrawImageOptions
}

// NewFramebufferRenderer creates a renderer for frames with the given pixel
// aspect ratio. Zero means square pixels.
func NewFramebufferRenderer(pixelAspect float64) *FramebufferRenderer {
	if pixelAspect <= 0 {
		pixelAspect = 1
	}
	return &FramebufferRenderer{pixelAspect: pixelAspect}
}

// DrawFramebuffer uploads pixels and draws them centered on screen with the
// aspect ratio preserved.
func (r *FramebufferRenderer) DrawFramebuffer(screen *ebiten.Image, pixels []byte, stride, activeHeight int) {
	if activeHeight == 0 || stride == 0 {
		return
	}
	requiredLen := stride * activeHeight
	if len(pixels) < requiredLen {
		return
	}

	pixelWidth := stride / 4
	if r.offscreen == nil || r.offscreen.Bounds().Dx() != pixelWidth || r.offscreen.Bounds().Dy() != activeHeight {
		r.offscreen = ebiten.NewImage(pixelWidth, activeHeight)
	}
	r.offscreen.WritePixels(pixels[:requiredLen])

	screenW, screenH := screen.Bounds().Dx(), screen.Bounds().Dy()
	scaleX, scaleY, offX, offY := fitScale(screenW, screenH, pixelWidth, activeHeight, r.pixelAspect)

	r.drawOpts = ebiten.DrawImageOptions{}
	r.drawOpts.GeoM.Scale(scaleX, scaleY)
	r.drawOpts.GeoM.Translate(offX, offY)
	r.drawOpts.Filter = ebiten.FilterNearest
	screen.DrawImage(r.offscreen, &r.drawOpts)
}

// fitScale returns the scale and offset that fit a w x h frame with pixel
// aspect par inside a screenW x screenH target.
func fitScale(screenW, screenH, w, h int, par float64) (scaleX, scaleY, offX, offY float64) {
	nativeW := float64(w) * par
	nativeH := float64(h)
	scale := min(float64(screenW)/nativeW, float64(screenH)/nativeH)

	scaleX = scale * par
	scaleY = scale
	offX = (float64(screenW) - nativeW*scale) / 2
	offY = (float64(screenH) - nativeH*scale) / 2
	return scaleX, scaleY, offX, offY
}

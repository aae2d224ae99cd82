package apng

import (
	"image"

	"golang.org/x/image/draw"
)

// Compositor owns the off-screen RGBA canvas animation playback draws
// onto. Each Render call advances the canvas by exactly one frame and
// returns a fresh snapshot of what should be displayed; the dispose
// operation from the *previous* call is applied lazily, at the start
// of the next one, since a dispose's effect is only observable once
// the following frame begins compositing.
type Compositor struct {
	canvas *image.RGBA

	isFirstFrame bool
	priorRegion  image.Rectangle
	priorDispose DisposeOp
	savedRegion  *image.RGBA // canvas region saved before the current frame blended, for a subsequent DisposePrevious
}

// NewCompositor allocates a transparent canvas sized to the animation's
// full width/height (the APNG IHDR dimensions, not any one frame's).
func NewCompositor(width, height uint32) (*Compositor, error) {
	if width == 0 || height == 0 {
		return nil, &CanvasCreatingFailedError{Width: width, Height: height}
	}
	return &Compositor{
		canvas:       image.NewRGBA(image.Rect(0, 0, int(width), int(height))),
		isFirstFrame: true,
	}, nil
}

// canvasRect maps a frame's fcTL region into canvas space. The vertical
// offset is flipped: frame offsets are specified from the top of the
// image the way PNG rows are stored, but the canvas this Compositor
// exposes is addressed bottom-up, matching the host UI layer's native
// coordinate system.
func canvasRect(fc FCTL, fullHeight uint32) image.Rectangle {
	flippedY := int(fullHeight) - int(fc.YOffset) - int(fc.Height)
	x0, y0 := int(fc.XOffset), flippedY
	return image.Rect(x0, y0, x0+int(fc.Width), y0+int(fc.Height))
}

// Render applies the deferred dispose of the previously rendered
// frame, blends frameImg (the host-decoded per-frame PNG) into the
// canvas per fc's region and blend op, and returns a new RGBA snapshot
// of the resulting canvas. fullHeight is the animation's full height,
// needed for the y-flip.
func (c *Compositor) Render(fc FCTL, frameImg image.Image, fullHeight uint32) (*image.RGBA, error) {
	if !c.isFirstFrame {
		c.applyDispose(c.priorDispose, c.priorRegion)
	}

	dispose := fc.DisposeOp
	if c.isFirstFrame && dispose == DisposePrevious {
		dispose = DisposeBackground
	}

	rect := canvasRect(fc, fullHeight)

	var saved *image.RGBA
	if dispose == DisposePrevious {
		saved = image.NewRGBA(rect)
		draw.Draw(saved, rect, c.canvas, rect.Min, draw.Src)
	}

	switch fc.BlendOp {
	case BlendSource:
		draw.Draw(c.canvas, rect, frameImg, frameImg.Bounds().Min, draw.Src)
	default:
		draw.Draw(c.canvas, rect, frameImg, frameImg.Bounds().Min, draw.Over)
	}

	output := image.NewRGBA(c.canvas.Bounds())
	draw.Draw(output, output.Bounds(), c.canvas, image.Point{}, draw.Src)

	c.priorRegion = rect
	c.priorDispose = dispose
	c.savedRegion = saved
	c.isFirstFrame = false

	return output, nil
}

func (c *Compositor) applyDispose(op DisposeOp, region image.Rectangle) {
	switch op {
	case DisposeBackground:
		draw.Draw(c.canvas, region, image.Transparent, image.Point{}, draw.Src)
	case DisposePrevious:
		if c.savedRegion != nil {
			draw.Draw(c.canvas, region, c.savedRegion, region.Min, draw.Src)
		}
	case DisposeNone:
	}
}

// Reset discards all composited state, returning the canvas to its
// initial transparent state as if no frame had ever been rendered.
func (c *Compositor) Reset() {
	draw.Draw(c.canvas, c.canvas.Bounds(), image.Transparent, image.Point{}, draw.Src)
	c.isFirstFrame = true
	c.priorRegion = image.Rectangle{}
	c.priorDispose = DisposeNone
	c.savedRegion = nil
}

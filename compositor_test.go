package apng

import (
	"image/color"
	"testing"
)

func fullCanvasFCTL(w, h uint32, dispose DisposeOp, blend BlendOp) FCTL {
	return FCTL{Width: w, Height: h, DisposeOp: dispose, BlendOp: blend}
}

func TestCompositorBlendSource(t *testing.T) {
	c, err := NewCompositor(4, 4)
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}
	red := solidImage(4, 4, color.RGBA{R: 255, A: 255})

	out, err := c.Render(fullCanvasFCTL(4, 4, DisposeNone, BlendSource), red, 4)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := out.RGBAAt(0, 0); got != (color.RGBA{R: 255, A: 255}) {
		t.Fatalf("pixel = %+v, want opaque red", got)
	}
}

func TestCompositorBlendOver(t *testing.T) {
	c, err := NewCompositor(2, 2)
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}
	opaqueBlue := solidImage(2, 2, color.RGBA{B: 255, A: 255})
	if _, err := c.Render(fullCanvasFCTL(2, 2, DisposeNone, BlendSource), opaqueBlue, 2); err != nil {
		t.Fatalf("Render frame 0: %v", err)
	}

	halfRed := solidImage(2, 2, color.RGBA{R: 255, A: 128})
	out, err := c.Render(fullCanvasFCTL(2, 2, DisposeNone, BlendOver), halfRed, 2)
	if err != nil {
		t.Fatalf("Render frame 1: %v", err)
	}
	got := out.RGBAAt(0, 0)
	if got.B == 0 || got.R == 0 {
		t.Fatalf("expected blended pixel with both channels present, got %+v", got)
	}
}

func TestCompositorDisposeBackgroundClearsOnNextRender(t *testing.T) {
	c, err := NewCompositor(2, 2)
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}
	opaque := solidImage(2, 2, color.RGBA{G: 255, A: 255})
	if _, err := c.Render(fullCanvasFCTL(2, 2, DisposeBackground, BlendSource), opaque, 2); err != nil {
		t.Fatalf("Render frame 0: %v", err)
	}

	// Frame 1 draws onto a sub-region only; frame 0's dispose=background
	// should have cleared the full canvas before this render.
	tiny := solidImage(1, 1, color.RGBA{R: 255, A: 255})
	fc := FCTL{Width: 1, Height: 1, XOffset: 0, YOffset: 0, DisposeOp: DisposeNone, BlendOp: BlendSource}
	out, err := c.Render(fc, tiny, 2)
	if err != nil {
		t.Fatalf("Render frame 1: %v", err)
	}
	if got := out.RGBAAt(1, 1); got != (color.RGBA{}) {
		t.Fatalf("corner outside frame 1's region = %+v, want transparent (background disposed)", got)
	}
}

func TestCompositorDisposePreviousRestoresRegion(t *testing.T) {
	c, err := NewCompositor(2, 2)
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}
	base := solidImage(2, 2, color.RGBA{G: 255, A: 255})
	if _, err := c.Render(fullCanvasFCTL(2, 2, DisposeNone, BlendSource), base, 2); err != nil {
		t.Fatalf("Render frame 0: %v", err)
	}

	overlay := solidImage(2, 2, color.RGBA{R: 255, A: 255})
	if _, err := c.Render(fullCanvasFCTL(2, 2, DisposePrevious, BlendSource), overlay, 2); err != nil {
		t.Fatalf("Render frame 1: %v", err)
	}

	// Frame 2 draws a 1x1 patch; the rest of the canvas should have
	// reverted to frame 0's green, since frame 1 disposed to "previous".
	patch := solidImage(1, 1, color.RGBA{B: 255, A: 255})
	fc := FCTL{Width: 1, Height: 1, DisposeOp: DisposeNone, BlendOp: BlendSource}
	out, err := c.Render(fc, patch, 2)
	if err != nil {
		t.Fatalf("Render frame 2: %v", err)
	}
	if got := out.RGBAAt(1, 1); got != (color.RGBA{G: 255, A: 255}) {
		t.Fatalf("pixel outside patch = %+v, want restored green", got)
	}
}

func TestCompositorFirstFrameDisposePreviousTreatedAsBackground(t *testing.T) {
	c, err := NewCompositor(2, 2)
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}
	img := solidImage(2, 2, color.RGBA{R: 255, A: 255})
	if _, err := c.Render(fullCanvasFCTL(2, 2, DisposePrevious, BlendSource), img, 2); err != nil {
		t.Fatalf("Render frame 0: %v", err)
	}

	patch := solidImage(1, 1, color.RGBA{B: 255, A: 255})
	fc := FCTL{Width: 1, Height: 1, DisposeOp: DisposeNone, BlendOp: BlendSource}
	out, err := c.Render(fc, patch, 2)
	if err != nil {
		t.Fatalf("Render frame 1: %v", err)
	}
	if got := out.RGBAAt(1, 1); got != (color.RGBA{}) {
		t.Fatalf("pixel outside patch = %+v, want transparent (treated as background)", got)
	}
}

func TestCompositorYFlip(t *testing.T) {
	fc := FCTL{Width: 1, Height: 1, XOffset: 0, YOffset: 0}
	rect := canvasRect(fc, 4)
	if rect.Min.Y != 3 {
		t.Fatalf("canvasRect y-flip: Min.Y = %d, want 3", rect.Min.Y)
	}
}

func TestNewCompositorRejectsZeroDimensions(t *testing.T) {
	if _, err := NewCompositor(0, 4); err == nil {
		t.Fatal("expected error for zero width")
	}
}

package screenshot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/metalagman/droidagent/internal/uitree"
)

var (
	boxColor     = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	labelColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	outlineColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// Annotate draws bounding boxes and "[index]" labels for each element on
// the screenshot. Element bounds are already in screen pixels, so no
// scaling is applied.
func Annotate(img image.Image, elements []uitree.Element) *image.RGBA {
	rgba := toRGBA(img)
	for _, el := range elements {
		drawBox(rgba, el.Bounds.Left, el.Bounds.Top, el.Bounds.Right, el.Bounds.Bottom, boxColor)
		cx, cy := el.Center()
		drawLabel(rgba, fmt.Sprintf("[%d]", el.Index), cx, cy)
	}
	return rgba
}

// AnnotateFile reads a PNG screenshot, annotates it, and writes the
// result to outPath.
func AnnotateFile(inPath, outPath string, elements []uitree.Element) error {
	f, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open screenshot: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return fmt.Errorf("decode screenshot: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create annotated screenshot: %w", err)
	}
	defer out.Close()

	if err := png.Encode(out, Annotate(img, elements)); err != nil {
		return fmt.Errorf("encode annotated screenshot: %w", err)
	}
	return nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

func drawBox(img *image.RGBA, x1, y1, x2, y2 int, c color.Color) {
	bounds := img.Bounds()
	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}
	if x2 <= x1 || y2 <= y1 {
		return
	}
	for x := x1; x < x2; x++ {
		img.Set(x, y1, c)
		img.Set(x, y2-1, c)
	}
	for y := y1; y < y2; y++ {
		img.Set(x1, y, c)
		img.Set(x2-1, y, c)
	}
}

// drawLabel centers text at (x, y) with a one-pixel outline so labels
// stay readable over any background.
func drawLabel(img *image.RGBA, text string, x, y int) {
	offsetX := x - len(text)*7/2
	offsetY := y + basicfont.Face7x13.Height/2

	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			drawString(img, text, offsetX+dx, offsetY+dy, outlineColor)
		}
	}
	drawString(img, text, offsetX, offsetY, labelColor)
}

func drawString(img *image.RGBA, text string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

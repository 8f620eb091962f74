package render

import (
	"fmt"
	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"image"
	"image/color"
	"image/draw"
)

// CaptionStyle defines how caption text is stamped on an image
type CaptionStyle struct {
	// Face to draw with, nil uses basicfont.Face7x13
	Face       font.Face
	Color      color.RGBA
	Background color.RGBA
	// Pad is the space in pixels around the text and from the image edge
	Pad int
}

// DefaultCaptionStyle returns white text on a black band
func DefaultCaptionStyle() CaptionStyle {
	return CaptionStyle{
		Face:       basicfont.Face7x13,
		Color:      White,
		Background: Black,
		Pad:        6,
	}
}

// Caption draws text on a filled band at the bottom left corner of dst and
// returns the rectangle covered
func Caption(dst draw.Image, text string, style CaptionStyle) image.Rectangle {

	face := style.Face
	if face == nil {
		face = basicfont.Face7x13
	}

	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	height := metrics.Height.Ceil()

	dr := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(style.Color),
		Face: face,
	}

	width := dr.MeasureString(text).Ceil()
	b := dst.Bounds()

	band := image.Rect(
		b.Min.X+style.Pad,
		b.Max.Y-style.Pad-height-2*style.Pad,
		b.Min.X+width+3*style.Pad,
		b.Max.Y-style.Pad,
	).Intersect(b)

	draw.Draw(dst, band, image.NewUniform(style.Background), image.Point{}, draw.Src)

	x := band.Min.X + style.Pad
	y := band.Min.Y + style.Pad + ascent

	dr.Dot = fixed.Point26_6{
		X: fixed.Int26_6(x * 64),
		Y: fixed.Int26_6(y * 64),
	}
	dr.DrawString(text)

	return band
}

// CaptionMat stamps the caption on a BGR gocv Mat
func CaptionMat(img *gocv.Mat, text string, style CaptionStyle) error {

	src, err := img.ToImage()

	if err != nil {
		return fmt.Errorf("error converting Mat to image: %w", err)
	}

	rgba := image.NewRGBA(src.Bounds())
	draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)

	Caption(rgba, text, style)

	out, err := gocv.NewMatFromBytes(rgba.Bounds().Dy(), rgba.Bounds().Dx(), gocv.MatTypeCV8UC4, rgba.Pix)

	if err != nil || out.Empty() {
		return fmt.Errorf("error creating Mat from RGBA")
	}

	defer out.Close()

	gocv.CvtColor(out, img, gocv.ColorRGBAToBGR)

	return nil
}

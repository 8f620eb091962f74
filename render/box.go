package render

import (
	"fmt"
	"github.com/swdee/go-highlight/detect"
	"github.com/swdee/go-highlight/tracker"
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// Alignment of a label relative to its box
type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// LabelStyle defines how track labels are drawn above their boxes
type LabelStyle struct {
	Face      gocv.HersheyFont
	Scale     float64
	Thickness int
	LineType  gocv.LineType
	// Color of the text, a zero alpha picks black or white for contrast with
	// the category color behind it
	Color color.RGBA
	// Pad is the space around the text inside the label
	Pad       int
	Alignment Alignment
}

// DefaultLabelStyle returns the default label settings
func DefaultLabelStyle() LabelStyle {
	return LabelStyle{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.45,
		Thickness: 1,
		LineType:  gocv.LineAA,
		Pad:       3,
		Alignment: Left,
	}
}

// pitchNames are the label names of categories seen on a football pitch
var pitchNames = map[detect.Category]string{
	detect.Person:     "player",
	detect.SportsItem: "ball",
}

// labelText returns the label of a track, eg: "ball 4"
func labelText(cat detect.Category, id int) string {
	name, ok := pitchNames[cat]
	if !ok {
		name = cat.String()
	}
	return fmt.Sprintf("%s %d", name, id)
}

// textColor returns the style color or, when unset, black or white
// whichever reads better on bg
func textColor(style LabelStyle, bg color.RGBA) color.RGBA {
	if style.Color.A != 0 {
		return style.Color
	}

	// rec 601 luma
	luma := 299*int(bg.R) + 587*int(bg.G) + 114*int(bg.B)

	if luma > 128*1000 {
		return Black
	}
	return White
}

// boxLabel defines where a track label should be rendered on the source
// image
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textClr color.RGBA
	textPos image.Point
}

// TrackBoxes renders the bounding box and a "name id" label of every
// Confirmed track in the snapshot
func TrackBoxes(img *gocv.Mat, snap *tracker.Snapshot, style LabelStyle, lineThickness int) {

	if snap == nil {
		return
	}

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0)

	for _, v := range snap.Confirmed() {

		boxLeft := int(v.Box.X)
		boxTop := int(v.Box.Y)
		boxRight := int(v.Box.X + v.Box.W)
		boxBottom := int(v.Box.Y + v.Box.H)

		useClr := CategoryColor(v.Category)

		rect := image.Rect(boxLeft, boxTop, boxRight, boxBottom)
		gocv.Rectangle(img, rect, useClr, lineThickness)

		text := labelText(v.Category, v.ID)
		textSize := gocv.GetTextSize(text, style.Face, style.Scale, style.Thickness)

		// Calculate the alignment of text label
		var centerX int

		switch style.Alignment {
		case Center:
			centerX = (boxLeft + boxRight) / 2

		case Right:
			centerX = boxRight - (textSize.X / 2) - style.Pad + (lineThickness / 2)

		case Left:
			fallthrough
		default:
			centerX = boxLeft + (textSize.X / 2) + style.Pad - (lineThickness / 2)
		}

		labelPosition := image.Pt(centerX-textSize.X/2, boxTop-style.Pad)

		bRect := image.Rect(centerX-textSize.X/2-style.Pad,
			boxTop-textSize.Y-style.Pad-style.Pad,
			centerX+textSize.X/2+style.Pad, boxTop)

		boxLabels = append(boxLabels, boxLabel{
			rect:    bRect,
			clr:     useClr,
			text:    text,
			textClr: textColor(style, useClr),
			textPos: labelPosition,
		})
	}

	// labels are drawn last so boxes of neighbouring tracks do not cover them
	for _, box := range boxLabels {
		gocv.Rectangle(img, box.rect, box.clr, -1)

		gocv.PutTextWithParams(img, box.text, box.textPos,
			style.Face, style.Scale, box.textClr, style.Thickness,
			style.LineType, false)
	}
}

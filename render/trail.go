package render

import (
	"github.com/swdee/go-highlight/tracker"
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// TrailStyle defines the parameters used for rendering the trail style
type TrailStyle struct {
	// LineSame defines if the color of the trail line should be the
	// same color as that of the bounding box.  If set to false then use
	// the color specified at LineColor
	LineSame      bool
	LineColor     color.RGBA
	LineThickness int
	// CircleSame defines if the color of the midpoint circle should be the
	// same color as that of the bounding box.  If set to false then use
	// the color specified at CircleColor
	CircleSame   bool
	CircleColor  color.RGBA
	CircleRadius int
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineSame:      false,
		LineColor:     Yellow,
		LineThickness: 1,
		CircleSame:    true,
		CircleColor:   Pink,
		CircleRadius:  3,
	}
}

// Trail draws the history of every active track in the snapshot on the
// source image
func Trail(img *gocv.Mat, snap *tracker.Snapshot, style TrailStyle) {

	if snap == nil {
		return
	}

	for _, v := range snap.Tracks() {

		if v.State == tracker.Lost {
			continue
		}

		objClr := trackColor(v.ID)

		// determine style colors to use
		lineClr := objClr
		circleClr := objClr

		if !style.LineSame {
			lineClr = style.LineColor
		}

		if !style.CircleSame {
			circleClr = style.CircleColor
		}

		points := v.History

		if len(points) < 2 {
			continue
		}

		for i := 1; i < len(points); i++ {
			gocv.Line(img,
				pt(points[i-1]), pt(points[i]),
				lineClr, style.LineThickness,
			)
		}

		// mark the current centroid
		gocv.Circle(img, pt(points[len(points)-1]), style.CircleRadius, circleClr, -1)
	}
}

// pt converts a trail point to image coordinates
func pt(p tracker.Point) image.Point {
	return image.Pt(int(p.X+0.5), int(p.Y+0.5))
}

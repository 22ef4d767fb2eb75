// Package overlay draws detection boxes and captions onto frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/edgevision/go-livedetect/pkg/detect"
	"gocv.io/x/gocv"
)

// Accent color for boxes and captions.
var accent = color.RGBA{R: 2, G: 132, B: 199, A: 255}

const (
	boxThickness  = 2
	captionScale  = 0.6
	captionOffset = 8 // Pixels above the box's top edge
)

// Draw renders each detection onto the image in the order received:
// a 2-pixel rectangle outline plus a caption above the top edge.
// The image is mutated in place; zero detections leave it untouched.
func Draw(img *gocv.Mat, dets []detect.Detection, labels detect.LabelMap) {
	for _, det := range dets {
		gocv.Rectangle(img, det.Box, accent, boxThickness)

		caption := Caption(labels.Name(det.ClassID), det.Confidence)
		gocv.PutTextWithParams(img, caption, CaptionPoint(det.Box),
			gocv.FontHersheySimplex, captionScale, accent, boxThickness,
			gocv.LineAA, false)
	}
}

// Caption composes the text drawn above a box: the label followed by the
// confidence as a whole percentage, e.g. "person 83%".
func Caption(label string, conf float32) string {
	return fmt.Sprintf("%s %.0f%%", label, conf*100)
}

// CaptionPoint returns where the caption's baseline goes: 8 pixels above
// the box's top edge, clamped so it is never drawn off-canvas.
func CaptionPoint(box image.Rectangle) image.Point {
	y := box.Min.Y - captionOffset
	if y < 0 {
		y = 0
	}
	return image.Pt(box.Min.X, y)
}

package detect

import "image"

// candidate is one raw box from the output tensor, before NMS.
type candidate struct {
	box     image.Rectangle
	classID int
	score   float32
}

// decodeYOLOv8 parses a YOLOv8 output tensor laid out as [1, cols, rows],
// where cols = 4 bbox values + one score per class and rows is the anchor
// count (8400 at 640x640). Values are stored column-major: element (c, i)
// lives at data[c*rows+i].
//
// scaleX/scaleY map model input coordinates back to source image pixels.
// Boxes are clamped to the image bounds. Candidates below conf are dropped;
// NMS is applied separately.
func decodeYOLOv8(data []float32, rows, cols int, scaleX, scaleY float32, imgW, imgH int, conf float32) []candidate {
	var out []candidate

	for i := 0; i < rows; i++ {
		// Best class score for this anchor (scores start at column 4)
		maxScore := float32(0)
		maxClassID := 0
		for c := 4; c < cols; c++ {
			score := data[c*rows+i]
			if score > maxScore {
				maxScore = score
				maxClassID = c - 4
			}
		}

		if maxScore < conf {
			continue
		}

		// Box is center x, center y, width, height in model input space
		cx := data[0*rows+i]
		cy := data[1*rows+i]
		w := data[2*rows+i]
		h := data[3*rows+i]

		x1 := int((cx - w/2) * scaleX)
		y1 := int((cy - h/2) * scaleY)
		x2 := int((cx + w/2) * scaleX)
		y2 := int((cy + h/2) * scaleY)

		box := image.Rect(x1, y1, x2, y2).Intersect(image.Rect(0, 0, imgW, imgH))

		out = append(out, candidate{
			box:     box,
			classID: maxClassID,
			score:   maxScore,
		})
	}

	return out
}

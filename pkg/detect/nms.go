package detect

import (
	"image"
	"sort"
)

// nms applies greedy non-maximum suppression: candidates are taken in
// descending score order and any later box overlapping a kept box above
// iouThresh is discarded. Used by the ORT backend; the DNN backend
// delegates to gocv.NMSBoxes.
func nms(cands []candidate, iouThresh float32) []candidate {
	if len(cands) == 0 {
		return nil
	}

	sorted := make([]candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].score > sorted[j].score
	})

	var kept []candidate
	for _, c := range sorted {
		keep := true
		for _, k := range kept {
			if iou(c.box, k.box) >= iouThresh {
				keep = false
				break
			}
		}
		if keep {
			kept = append(kept, c)
		}
	}
	return kept
}

// iou computes intersection-over-union of two boxes.
func iou(a, b image.Rectangle) float32 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := inter.Dx() * inter.Dy()
	union := a.Dx()*a.Dy() + b.Dx()*b.Dy() - interArea
	if union <= 0 {
		return 0
	}
	return float32(interArea) / float32(union)
}

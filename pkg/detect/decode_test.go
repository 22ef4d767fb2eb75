package detect

import (
	"image"
	"testing"
)

// buildTensor lays out anchors column-major the way the model emits them:
// element (c, i) at data[c*rows+i].
func buildTensor(rows, cols int, anchors [][]float32) []float32 {
	data := make([]float32, rows*cols)
	for i, anchor := range anchors {
		for c, v := range anchor {
			data[c*rows+i] = v
		}
	}
	return data
}

func TestDecodeYOLOv8(t *testing.T) {
	// 6 columns: cx, cy, w, h, class0 score, class1 score
	const rows, cols = 3, 6

	data := buildTensor(rows, cols, [][]float32{
		{320, 320, 64, 64, 0.9, 0.1},  // solid class-0 hit in the middle
		{100, 100, 32, 32, 0.2, 0.05}, // below threshold
		{10, 10, 40, 40, 0.1, 0.5},    // class-1 hit hanging off the top-left corner
	})

	cands := decodeYOLOv8(data, rows, cols, 1, 1, 640, 640, 0.25)

	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2", len(cands))
	}

	first := cands[0]
	if want := image.Rect(288, 288, 352, 352); first.box != want {
		t.Errorf("box: got %v, want %v", first.box, want)
	}
	if first.classID != 0 {
		t.Errorf("classID: got %d, want 0", first.classID)
	}
	if first.score != 0.9 {
		t.Errorf("score: got %f, want 0.9", first.score)
	}

	// Off-canvas part of the second box is clamped to the image
	second := cands[1]
	if want := image.Rect(0, 0, 30, 30); second.box != want {
		t.Errorf("clamped box: got %v, want %v", second.box, want)
	}
	if second.classID != 1 {
		t.Errorf("classID: got %d, want 1", second.classID)
	}
}

func TestDecodeYOLOv8_ThresholdFilters(t *testing.T) {
	const rows, cols = 4, 6

	data := buildTensor(rows, cols, [][]float32{
		{100, 100, 20, 20, 0.15, 0},
		{200, 200, 20, 20, 0.35, 0},
		{300, 300, 20, 20, 0.55, 0},
		{400, 400, 20, 20, 0.95, 0},
	})

	for _, conf := range []float32{0.10, 0.25, 0.50, 0.90} {
		cands := decodeYOLOv8(data, rows, cols, 1, 1, 640, 640, conf)
		for _, c := range cands {
			if c.score < conf {
				t.Errorf("conf %.2f: candidate with score %.2f leaked through", conf, c.score)
			}
		}
	}
}

func TestDecodeYOLOv8_Scaling(t *testing.T) {
	const rows, cols = 1, 6

	// 640x640 model space, 1280x480 source image
	data := buildTensor(rows, cols, [][]float32{
		{320, 320, 100, 100, 0.8, 0},
	})

	cands := decodeYOLOv8(data, rows, cols, 2.0, 0.75, 1280, 480, 0.25)
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}

	want := image.Rect(540, 202, 740, 277)
	if cands[0].box != want {
		t.Errorf("scaled box: got %v, want %v", cands[0].box, want)
	}
}

func TestDecodeYOLOv8_Empty(t *testing.T) {
	const rows, cols = 2, 6

	data := buildTensor(rows, cols, [][]float32{
		{100, 100, 20, 20, 0.01, 0.02},
		{200, 200, 20, 20, 0.03, 0.01},
	})

	if cands := decodeYOLOv8(data, rows, cols, 1, 1, 640, 640, 0.25); len(cands) != 0 {
		t.Errorf("got %d candidates, want none", len(cands))
	}
}

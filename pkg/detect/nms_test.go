package detect

import (
	"image"
	"testing"
)

func TestIOU(t *testing.T) {
	tests := []struct {
		name   string
		a, b   image.Rectangle
		expect float32
	}{
		{
			name:   "identical boxes",
			a:      image.Rect(0, 0, 10, 10),
			b:      image.Rect(0, 0, 10, 10),
			expect: 1.0,
		},
		{
			name:   "disjoint boxes",
			a:      image.Rect(0, 0, 10, 10),
			b:      image.Rect(20, 20, 30, 30),
			expect: 0,
		},
		{
			name:   "half overlap",
			a:      image.Rect(0, 0, 10, 10),
			b:      image.Rect(5, 0, 15, 10),
			expect: 50.0 / 150.0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := iou(tc.a, tc.b)
			diff := got - tc.expect
			if diff < -0.0001 || diff > 0.0001 {
				t.Errorf("iou: got %.4f, want %.4f", got, tc.expect)
			}
		})
	}
}

func TestNMS(t *testing.T) {
	tests := []struct {
		name       string
		cands      []candidate
		iouThresh  float32
		expectLen  int
		expectBest float32 // Score of the first kept candidate
	}{
		{
			name:      "empty input",
			cands:     nil,
			iouThresh: 0.45,
			expectLen: 0,
		},
		{
			name: "overlapping boxes keep highest score",
			cands: []candidate{
				{box: image.Rect(0, 0, 100, 100), classID: 0, score: 0.6},
				{box: image.Rect(5, 5, 105, 105), classID: 0, score: 0.9},
			},
			iouThresh:  0.45,
			expectLen:  1,
			expectBest: 0.9,
		},
		{
			name: "disjoint boxes all survive",
			cands: []candidate{
				{box: image.Rect(0, 0, 50, 50), classID: 0, score: 0.8},
				{box: image.Rect(200, 200, 250, 250), classID: 1, score: 0.7},
			},
			iouThresh:  0.45,
			expectLen:  2,
			expectBest: 0.8,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kept := nms(tc.cands, tc.iouThresh)
			if len(kept) != tc.expectLen {
				t.Fatalf("nms: kept %d, want %d", len(kept), tc.expectLen)
			}
			if tc.expectLen > 0 && kept[0].score != tc.expectBest {
				t.Errorf("nms: best score %.2f, want %.2f", kept[0].score, tc.expectBest)
			}
		})
	}
}

func TestNMS_DoesNotMutateInput(t *testing.T) {
	cands := []candidate{
		{box: image.Rect(0, 0, 100, 100), score: 0.5},
		{box: image.Rect(200, 200, 300, 300), score: 0.9},
	}

	nms(cands, 0.45)

	if cands[0].score != 0.5 || cands[1].score != 0.9 {
		t.Error("nms reordered the caller's slice")
	}
}

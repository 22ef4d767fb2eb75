package detect

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// DNNDetector runs YOLOv8 through OpenCV's DNN module.
type DNNDetector struct {
	net       gocv.Net
	labels    LabelMap
	config    Config
	inputSize image.Point
	mu        sync.Mutex // Protects inference
}

// NewDNN loads the ONNX model into an OpenCV DNN net.
func NewDNN(cfg Config) (*DNNDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &DNNDetector{
		net:       net,
		labels:    COCOLabels(),
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Detect finds objects in the image with confidence >= conf.
func (d *DNNDetector) Detect(img gocv.Mat, conf float32) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	imgW := img.Cols()
	imgH := img.Rows()

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	// Output shape: [1, 84, 8400] - 84 = 4 bbox + 80 classes, 8400 anchors
	rows := output.Cols()
	cols := output.Rows()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output tensor: %w", err)
	}

	scaleX := float32(imgW) / float32(d.config.InputWidth)
	scaleY := float32(imgH) / float32(d.config.InputHeight)

	cands := decodeYOLOv8(data, rows, cols, scaleX, scaleY, imgW, imgH, conf)
	if len(cands) == 0 {
		return nil, nil
	}

	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = c.box
		scores[i] = c.score
	}

	indices := gocv.NMSBoxes(boxes, scores, conf, d.config.NMSThresh)

	detections := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		detections = append(detections, Detection{
			Box:        cands[idx].box,
			ClassID:    cands[idx].classID,
			Confidence: cands[idx].score,
		})
	}

	return detections, nil
}

// Labels returns the COCO label map.
func (d *DNNDetector) Labels() LabelMap {
	return d.labels
}

// Close releases the DNN net.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

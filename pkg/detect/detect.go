// Package detect provides object detection using YOLOv8 models.
//
// Two backends are available: "dnn" runs the model through OpenCV's DNN
// module (gocv), "ort" runs it through ONNX Runtime. Both decode the same
// YOLOv8 output tensor and produce identical Detection values.
package detect

import (
	"fmt"
	"image"
	"strconv"

	"gocv.io/x/gocv"
)

// Detection represents one detected object in a single frame.
type Detection struct {
	Box        image.Rectangle // Pixel coordinates, top-left / bottom-right
	ClassID    int             // COCO class ID
	Confidence float32         // Detection confidence (0-1)
}

// LabelMap maps class IDs to human-readable names.
// Built once at detector construction and never mutated afterward.
type LabelMap map[int]string

// Name returns the label for the given class ID.
// Unknown IDs fall back to the stringified ID, never an error.
func (m LabelMap) Name(id int) string {
	if name, ok := m[id]; ok {
		return name
	}
	return strconv.Itoa(id)
}

// Detector is the interface for object detection backends.
type Detector interface {
	// Detect finds objects in the image with confidence >= conf.
	// Detections are returned in the order the model produced them;
	// an empty slice means nothing qualified.
	Detect(img gocv.Mat, conf float32) ([]Detection, error)

	// Labels returns the class ID to name mapping owned by the detector.
	Labels() LabelMap

	// Close releases resources
	Close() error
}

// Config holds detector configuration.
type Config struct {
	ModelPath      string  // Path to the YOLOv8 ONNX model
	Backend        string  // "dnn" (OpenCV) or "ort" (ONNX Runtime)
	ORTLibraryPath string  // ONNX Runtime shared library, "ort" backend only
	NMSThresh      float32 // IOU threshold for non-maximum suppression
	InputWidth     int     // Model input width
	InputHeight    int     // Model input height
}

// DefaultConfig returns defaults for the YOLOv8 nano model.
func DefaultConfig() Config {
	return Config{
		ModelPath:   "models/yolov8n.onnx",
		Backend:     "dnn",
		NMSThresh:   0.45,
		InputWidth:  640,
		InputHeight: 640,
	}
}

// New constructs a detector for the configured backend.
func New(cfg Config) (Detector, error) {
	switch cfg.Backend {
	case "", "dnn":
		return NewDNN(cfg)
	case "ort":
		return NewORT(cfg)
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
}

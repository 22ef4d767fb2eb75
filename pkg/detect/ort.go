package detect

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/up-zero/gotool/imageutil"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// YOLOv8 ONNX graph node names and output shape.
const (
	ortInputName  = "images"
	ortOutputName = "output0"
	ortOutputCols = 84 // 4 bbox + 80 classes
	ortOutputRows = 8400
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// initRuntime initializes the ONNX Runtime environment once per process.
func initRuntime(libraryPath string) error {
	ortInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// ORTDetector runs YOLOv8 through ONNX Runtime. Useful where OpenCV is
// built without DNN support.
type ORTDetector struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	labels  LabelMap
	config  Config
	mu      sync.Mutex // Protects inference
}

// NewORT creates a YOLOv8 detector backed by ONNX Runtime.
func NewORT(cfg Config) (*ORTDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	if err := initRuntime(cfg.ORTLibraryPath); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	inputShape := ort.NewShape(1, 3, int64(cfg.InputHeight), int64(cfg.InputWidth))
	input, err := ort.NewTensor(inputShape, make([]float32, 3*cfg.InputHeight*cfg.InputWidth))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, ortOutputCols, ortOutputRows)
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{ortInputName},
		[]string{ortOutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &ORTDetector{
		session: session,
		input:   input,
		output:  output,
		labels:  COCOLabels(),
		config:  cfg,
	}, nil
}

// Detect finds objects in the image with confidence >= conf.
func (d *ORTDetector) Detect(img gocv.Mat, conf float32) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	imgW := img.Cols()
	imgH := img.Rows()

	src, err := img.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}

	d.preprocess(src)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}

	scaleX := float32(imgW) / float32(d.config.InputWidth)
	scaleY := float32(imgH) / float32(d.config.InputHeight)

	cands := decodeYOLOv8(d.output.GetData(), ortOutputRows, ortOutputCols, scaleX, scaleY, imgW, imgH, conf)
	cands = nms(cands, d.config.NMSThresh)

	detections := make([]Detection, 0, len(cands))
	for _, c := range cands {
		detections = append(detections, Detection{
			Box:        c.box,
			ClassID:    c.classID,
			Confidence: c.score,
		})
	}
	return detections, nil
}

// preprocess resizes the image to the model input size and fills the input
// tensor with normalized CHW RGB data.
func (d *ORTDetector) preprocess(src image.Image) {
	w := d.config.InputWidth
	h := d.config.InputHeight

	resized := imageutil.Resize(src, w, h)

	data := d.input.GetData()
	area := w * h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data[0*area+y*w+x] = float32(r>>8) / 255.0
			data[1*area+y*w+x] = float32(g>>8) / 255.0
			data[2*area+y*w+x] = float32(b>>8) / 255.0
		}
	}
}

// Labels returns the COCO label map.
func (d *ORTDetector) Labels() LabelMap {
	return d.labels
}

// Close releases the session and tensors.
func (d *ORTDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session.Destroy()
	d.input.Destroy()
	d.output.Destroy()
	return nil
}

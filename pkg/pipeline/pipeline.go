// Package pipeline implements the per-frame detect-and-annotate processor.
package pipeline

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/edgevision/go-livedetect/internal/log"
	"github.com/edgevision/go-livedetect/pkg/detect"
	"github.com/edgevision/go-livedetect/pkg/overlay"
	"gocv.io/x/gocv"
)

// Defaults match the browser controls.
const (
	DefaultThreshold = 0.25
	MinThreshold     = 0.10
	MaxThreshold     = 0.90
)

// Processor is invoked once per incoming video frame by the transport.
//
// The enabled flag and confidence threshold are written by the control
// surface and read by the frame callback on a different goroutine. Both
// live in atomic cells: a frame may observe a value one update stale, but
// never a torn one.
type Processor struct {
	handle  *detect.Handle
	quality int // JPEG re-encode quality

	enabled       atomic.Bool
	thresholdBits atomic.Uint64

	frames  atomic.Uint64
	objects atomic.Uint64 // Detections in the most recent frame
}

// New creates a processor around the given detector handle.
// Detection starts enabled at the default threshold.
func New(handle *detect.Handle, jpegQuality int) *Processor {
	p := &Processor{
		handle:  handle,
		quality: jpegQuality,
	}
	p.enabled.Store(true)
	p.SetThreshold(DefaultThreshold)
	return p
}

// SetEnabled toggles detection. A disabled processor passes frames through
// untouched.
func (p *Processor) SetEnabled(on bool) {
	p.enabled.Store(on)
}

// Enabled reports whether detection is on.
func (p *Processor) Enabled() bool {
	return p.enabled.Load()
}

// SetThreshold updates the confidence threshold read by the next frame.
func (p *Processor) SetThreshold(t float64) {
	p.thresholdBits.Store(math.Float64bits(t))
}

// Threshold returns the current confidence threshold.
func (p *Processor) Threshold() float64 {
	return math.Float64frombits(p.thresholdBits.Load())
}

// Stats returns the number of frames processed and the detection count of
// the most recent frame.
func (p *Processor) Stats() (frames, objects uint64) {
	return p.frames.Load(), p.objects.Load()
}

// Loaded reports whether the model has been constructed.
func (p *Processor) Loaded() bool {
	return p.handle.Loaded()
}

// Process runs one frame through the pipeline and returns the annotated
// JPEG. Disabled processors return the input slice unchanged without
// touching the model. The first enabled frame triggers the one-time model
// load; a load failure is returned on every subsequent frame as well.
//
// Runs synchronously to completion. Frame pacing, buffering, and dropping
// are the transport's problem.
func (p *Processor) Process(frame []byte) ([]byte, error) {
	if !p.enabled.Load() {
		return frame, nil
	}

	det, err := p.handle.Get()
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	img, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	dets, err := det.Detect(img, float32(p.Threshold()))
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	overlay.Draw(&img, dets, det.Labels())

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img,
		[]int{gocv.IMWriteJpegQuality, p.quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())

	p.frames.Add(1)
	p.objects.Store(uint64(len(dets)))

	if len(dets) > 0 {
		log.Debug("frame annotated", "detections", len(dets), "threshold", p.Threshold())
	}

	return out, nil
}

// Close releases the detector if it was ever loaded.
func (p *Processor) Close() error {
	return p.handle.Close()
}

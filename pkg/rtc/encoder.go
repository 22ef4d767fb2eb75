package rtc

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/edgevision/go-livedetect/internal/log"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/h264reader"
)

// Output frame cadence assumed by the encoder. The browser adapts to
// whatever timestamps it receives, so this only needs to be close.
const encoderFrameRate = 15

// Encoder turns annotated JPEG frames back into H264 and writes the NAL
// stream onto the outgoing WebRTC track. Like the decoder it wraps one
// persistent ffmpeg process per session.
type Encoder struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	// Closed when the NAL forwarding goroutine has finished. Close waits on
	// it before cmd.Wait, per the os/exec pipe contract.
	readerDone chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewEncoder starts the ffmpeg encode process and begins forwarding its
// output NAL units to the track.
func NewEncoder(ffmpegPath string, track *webrtc.TrackLocalStaticSample) (*Encoder, error) {
	cmd := exec.Command(ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-f", "image2pipe", // JPEG frames in
		"-framerate", fmt.Sprint(encoderFrameRate),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-pix_fmt", "yuv420p",
		"-g", "30", // Keyframe interval
		"-f", "h264", // Raw Annex-B out
		"pipe:1",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg encoder: %w", err)
	}

	e := &Encoder{
		cmd:        cmd,
		stdin:      stdin,
		readerDone: make(chan struct{}),
	}
	go e.forwardNALs(stdout, track)

	return e, nil
}

// Write feeds one JPEG frame into the encoder.
func (e *Encoder) Write(jpeg []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("encoder closed")
	}
	_, err := e.stdin.Write(jpeg)
	return err
}

// forwardNALs reads H264 NAL units from ffmpeg and writes them to the
// track as media samples.
func (e *Encoder) forwardNALs(stdout io.Reader, track *webrtc.TrackLocalStaticSample) {
	defer close(e.readerDone)

	reader, err := h264reader.NewReader(stdout)
	if err != nil {
		log.Error("create h264 reader", "err", err)
		return
	}

	duration := time.Second / encoderFrameRate
	for {
		nal, err := reader.NextNAL()
		if err != nil {
			if err != io.EOF {
				log.Debug("encoder output ended", "err", err)
			}
			return
		}

		if err := track.WriteSample(media.Sample{
			Data:     nal.Data,
			Duration: duration,
		}); err != nil {
			log.Debug("write sample", "err", err)
			return
		}
	}
}

// Close stops the ffmpeg process.
func (e *Encoder) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.stdin.Close()
	<-e.readerDone
	return e.cmd.Wait()
}

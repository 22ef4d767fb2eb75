// Package rtc glues the browser's WebRTC stream to the per-frame pipeline.
//
// Video arrives as H264 RTP, is decoded to JPEG frames by a persistent
// ffmpeg process, run through the processor, re-encoded to H264 by a second
// ffmpeg process, and written back on a local track.
package rtc

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/edgevision/go-livedetect/internal/log"
)

// Decoder turns an H264 Annex-B byte stream into JPEG frames using a
// persistent ffmpeg process with pipe I/O. One process per session avoids
// the per-frame spawn cost.
type Decoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	frames chan []byte

	// Closed when the stdout reader goroutine has finished. Close waits on
	// it before cmd.Wait, per the os/exec pipe contract.
	readerDone chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewDecoder starts the ffmpeg decode process.
func NewDecoder(ffmpegPath string) (*Decoder, error) {
	cmd := exec.Command(ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-f", "h264", // Input format
		"-i", "pipe:0", // Read from stdin
		"-f", "image2pipe", // Output as pipe
		"-vcodec", "mjpeg", // Output as JPEG stream
		"-q:v", "3", // Quality (1-31, lower is better)
		"pipe:1", // Write to stdout
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg decoder: %w", err)
	}

	d := &Decoder{
		cmd:        cmd,
		stdin:      stdin,
		frames:     make(chan []byte, 4),
		readerDone: make(chan struct{}),
	}
	go d.readFrames(stdout)

	return d, nil
}

// Write feeds H264 Annex-B data into the decoder.
func (d *Decoder) Write(annexB []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("decoder closed")
	}
	_, err := d.stdin.Write(annexB)
	return err
}

// Frames returns the channel of decoded JPEG frames. The channel is closed
// when the decoder shuts down. If the consumer falls behind, frames are
// dropped here - the pipeline itself never queues.
func (d *Decoder) Frames() <-chan []byte {
	return d.frames
}

// readFrames scans ffmpeg's MJPEG output and emits one JPEG at a time.
func (d *Decoder) readFrames(stdout io.Reader) {
	defer close(d.readerDone)
	defer close(d.frames)

	var pending []byte
	buf := make([]byte, 64*1024)

	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				frame, rest, ok := splitJPEG(pending)
				if !ok {
					break
				}
				pending = rest
				select {
				case d.frames <- frame:
				default:
					// Consumer is behind; drop the frame
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Debug("decoder stdout read ended", "err", err)
			}
			return
		}
	}
}

// Close stops the ffmpeg process.
func (d *Decoder) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.stdin.Close()
	<-d.readerDone
	return d.cmd.Wait()
}

// JPEG stream markers.
var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// splitJPEG extracts the first complete JPEG from buf. It returns the
// frame, the remaining bytes, and whether a complete frame was found.
// Bytes before the first SOI marker are discarded.
func splitJPEG(buf []byte) (frame, rest []byte, ok bool) {
	start := bytes.Index(buf, jpegSOI)
	if start < 0 {
		// No frame start yet; keep at most one trailing byte in case it
		// is the first half of a marker
		if len(buf) > 1 {
			return nil, buf[len(buf)-1:], false
		}
		return nil, buf, false
	}

	end := bytes.Index(buf[start+2:], jpegEOI)
	if end < 0 {
		return nil, buf[start:], false
	}
	end = start + 2 + end + 2

	frame = make([]byte, end-start)
	copy(frame, buf[start:end])
	return frame, buf[end:], true
}

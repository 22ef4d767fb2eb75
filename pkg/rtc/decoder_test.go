package rtc

import (
	"bytes"
	"io"
	"os/exec"
	"testing"
	"time"
)

// jpegBytes builds a minimal marker-framed payload for splitter tests.
func jpegBytes(payload ...byte) []byte {
	var b bytes.Buffer
	b.Write(jpegSOI)
	b.Write(payload)
	b.Write(jpegEOI)
	return b.Bytes()
}

func TestSplitJPEG(t *testing.T) {
	tests := []struct {
		name        string
		input       []byte
		expectFrame []byte
		expectRest  []byte
		expectOK    bool
	}{
		{
			name:        "complete frame",
			input:       jpegBytes(0x01, 0x02, 0x03),
			expectFrame: jpegBytes(0x01, 0x02, 0x03),
			expectRest:  []byte{},
			expectOK:    true,
		},
		{
			name:        "frame plus trailing partial",
			input:       append(jpegBytes(0x01), 0xFF, 0xD8, 0x05),
			expectFrame: jpegBytes(0x01),
			expectRest:  []byte{0xFF, 0xD8, 0x05},
			expectOK:    true,
		},
		{
			name:       "incomplete frame",
			input:      []byte{0xFF, 0xD8, 0x01, 0x02},
			expectRest: []byte{0xFF, 0xD8, 0x01, 0x02},
			expectOK:   false,
		},
		{
			name:       "garbage before start is discarded",
			input:      []byte{0x00, 0x11, 0xFF, 0xD8, 0x01},
			expectRest: []byte{0xFF, 0xD8, 0x01},
			expectOK:   false,
		},
		{
			name:       "no markers keeps only the tail byte",
			input:      []byte{0x00, 0x11, 0x22},
			expectRest: []byte{0x22},
			expectOK:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			frame, rest, ok := splitJPEG(tc.input)
			if ok != tc.expectOK {
				t.Fatalf("ok: got %v, want %v", ok, tc.expectOK)
			}
			if tc.expectOK && !bytes.Equal(frame, tc.expectFrame) {
				t.Errorf("frame: got % X, want % X", frame, tc.expectFrame)
			}
			if !bytes.Equal(rest, tc.expectRest) {
				t.Errorf("rest: got % X, want % X", rest, tc.expectRest)
			}
		})
	}
}

func TestSplitJPEG_TwoFramesInOneBuffer(t *testing.T) {
	first := jpegBytes(0x01)
	second := jpegBytes(0x02)
	buf := append(append([]byte{}, first...), second...)

	frame, rest, ok := splitJPEG(buf)
	if !ok {
		t.Fatal("expected first frame")
	}
	if !bytes.Equal(frame, first) {
		t.Errorf("first frame: got % X, want % X", frame, first)
	}

	frame, rest, ok = splitJPEG(rest)
	if !ok {
		t.Fatal("expected second frame")
	}
	if !bytes.Equal(frame, second) {
		t.Errorf("second frame: got % X, want % X", frame, second)
	}
	if len(rest) != 0 {
		t.Errorf("rest: got % X, want empty", rest)
	}
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }

func TestDecoder_CloseWaitsForReader(t *testing.T) {
	pr, pw := io.Pipe()

	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}

	d := &Decoder{
		cmd:        cmd,
		stdin:      nopWriteCloser{},
		frames:     make(chan []byte, 4),
		readerDone: make(chan struct{}),
	}
	go d.readFrames(pr)

	closed := make(chan error, 1)
	go func() { closed <- d.Close() }()

	// The reader has not hit EOF yet, so Close must still be blocked
	select {
	case <-closed:
		t.Fatal("Close returned before the reader finished")
	case <-time.After(50 * time.Millisecond):
	}

	pw.Close()

	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("Close: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the reader finished")
	}
}

func TestDefaultConfig_RTC(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.STUNServer == "" {
		t.Error("DefaultConfig: STUNServer should not be empty")
	}
	if cfg.FFmpegPath == "" {
		t.Error("DefaultConfig: FFmpegPath should not be empty")
	}
}

package rtc

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media/samplebuilder"

	"github.com/edgevision/go-livedetect/internal/log"
	"github.com/edgevision/go-livedetect/pkg/pipeline"
)

// Config holds transport configuration.
type Config struct {
	STUNServer string // STUN URL for ICE, e.g. "stun:stun.l.google.com:19302"
	FFmpegPath string // ffmpeg binary used for H264 decode/encode
}

// DefaultConfig returns the demo defaults.
func DefaultConfig() Config {
	return Config{
		STUNServer: "stun:stun.l.google.com:19302",
		FFmpegPath: "ffmpeg",
	}
}

const (
	// h264ClockRate is the RTP clock rate for video.
	h264ClockRate = 90000

	// pliInterval is how often we ask the browser for a keyframe.
	pliInterval = 2 * time.Second

	// sampleBufferLate is how many packets the depacketizer will wait
	// for reordered RTP before giving up on a frame.
	sampleBufferLate = 64
)

// Session is one browser connection: an incoming camera track, the
// per-frame pipeline, and the outgoing annotated track.
type Session struct {
	ID string

	pc      *webrtc.PeerConnection
	decoder *Decoder
	encoder *Encoder
	proc    *pipeline.Processor

	onClose   func(*Session)
	closeOnce sync.Once
	done      chan struct{}
}

// NewSession answers the browser's SDP offer and starts the frame loop.
// onClose is invoked exactly once when the session ends, from any cause.
func NewSession(offerSDP string, proc *pipeline.Processor, cfg Config, onClose func(*Session)) (*Session, string, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{cfg.STUNServer}},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("create peer connection: %w", err)
	}

	outTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		"video", "livedetect",
	)
	if err != nil {
		pc.Close()
		return nil, "", fmt.Errorf("create local track: %w", err)
	}

	sender, err := pc.AddTrack(outTrack)
	if err != nil {
		pc.Close()
		return nil, "", fmt.Errorf("add local track: %w", err)
	}
	go drainRTCP(sender)

	decoder, err := NewDecoder(cfg.FFmpegPath)
	if err != nil {
		pc.Close()
		return nil, "", err
	}

	encoder, err := NewEncoder(cfg.FFmpegPath, outTrack)
	if err != nil {
		decoder.Close()
		pc.Close()
		return nil, "", err
	}

	s := &Session{
		ID:      uuid.NewString(),
		pc:      pc,
		decoder: decoder,
		encoder: encoder,
		proc:    proc,
		onClose: onClose,
		done:    make(chan struct{}),
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info("remote track", "session", s.ID, "kind", track.Kind().String(),
			"codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go s.consumeRemote(track)
		}
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Info("ice state", "session", s.ID, "state", state.String())
		switch state {
		case webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateClosed,
			webrtc.ICEConnectionStateDisconnected:
			s.Close()
		}
	})

	go s.processFrames()

	answer, err := s.negotiate(offerSDP)
	if err != nil {
		s.Close()
		return nil, "", err
	}

	return s, answer, nil
}

// negotiate applies the remote offer and returns a complete (non-trickle)
// answer.
func (s *Session) negotiate(offerSDP string) (string, error) {
	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("set remote description: %w", err)
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	<-gatherComplete

	return s.pc.LocalDescription().SDP, nil
}

// consumeRemote reads RTP from the camera track, reassembles H264 access
// units, and feeds them to the decoder. Also asks for keyframes
// periodically so the decoder can (re)sync.
func (s *Session) consumeRemote(track *webrtc.TrackRemote) {
	go s.sendPLI(track)

	builder := samplebuilder.New(sampleBufferLate, &codecs.H264Packet{}, h264ClockRate)

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if err != io.EOF {
				log.Debug("read rtp", "session", s.ID, "err", err)
			}
			s.Close()
			return
		}

		builder.Push(pkt)
		for sample := builder.Pop(); sample != nil; sample = builder.Pop() {
			if err := s.decoder.Write(sample.Data); err != nil {
				s.Close()
				return
			}
		}
	}
}

// sendPLI asks the browser for a keyframe every pliInterval until the
// session ends.
func (s *Session) sendPLI(track *webrtc.TrackRemote) {
	ticker := time.NewTicker(pliInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			err := s.pc.WriteRTCP([]rtcp.Packet{
				&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
			})
			if err != nil {
				return
			}
		}
	}
}

// processFrames is the frame loop: decoded JPEG in, annotated JPEG out.
// A pipeline error ends the session; there is no per-frame retry.
func (s *Session) processFrames() {
	for frame := range s.decoder.Frames() {
		out, err := s.proc.Process(frame)
		if err != nil {
			log.Error("frame processing failed, ending session", "session", s.ID, "err", err)
			s.Close()
			return
		}
		if err := s.encoder.Write(out); err != nil {
			s.Close()
			return
		}
	}
}

// drainRTCP reads and discards incoming RTCP so interceptors keep running.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.decoder != nil {
			s.decoder.Close()
		}
		if s.encoder != nil {
			s.encoder.Close()
		}
		if s.pc != nil {
			s.pc.Close()
		}
		log.Info("session closed", "session", s.ID)
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

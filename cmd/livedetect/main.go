// Livedetect - live object detection demo server
//
// Streams the browser camera to the server over WebRTC, runs YOLOv8 on
// each frame, and streams the annotated video back.
package main

import (
	"context"
	"flag"
	stdlog "log"
	"os/signal"
	"syscall"

	"github.com/edgevision/go-livedetect/internal/config"
	"github.com/edgevision/go-livedetect/internal/log"
	"github.com/edgevision/go-livedetect/pkg/detect"
	"github.com/edgevision/go-livedetect/pkg/pipeline"
	"github.com/edgevision/go-livedetect/pkg/rtc"
	"github.com/edgevision/go-livedetect/pkg/web"
)

func main() {
	port := flag.String("port", config.Port(), "HTTP listen port")
	modelPath := flag.String("model", config.ModelPath(), "Path to the YOLOv8 ONNX model")
	backend := flag.String("backend", config.Backend(), "Detector backend: dnn or ort")
	ortLib := flag.String("ort-library", config.ORTLibraryPath(), "ONNX Runtime shared library (ort backend)")
	stunServer := flag.String("stun", config.STUNServer(), "STUN server URL")
	ffmpegPath := flag.String("ffmpeg", config.FFmpegPath(), "ffmpeg binary path")
	staticDir := flag.String("static", "./web", "Static UI directory")
	logLevel := flag.String("log-level", config.LogLevel(), "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)

	detectCfg := detect.DefaultConfig()
	detectCfg.ModelPath = *modelPath
	detectCfg.Backend = *backend
	detectCfg.ORTLibraryPath = *ortLib

	// The model is constructed lazily on the first enabled frame, so a bad
	// model path surfaces when the first session starts, not here.
	handle := detect.NewHandle(func() (detect.Detector, error) {
		log.Info("loading model", "path", detectCfg.ModelPath, "backend", detectCfg.Backend)
		return detect.New(detectCfg)
	})

	proc := pipeline.New(handle, config.JPEGQuality())
	defer proc.Close()

	rtcCfg := rtc.Config{
		STUNServer: *stunServer,
		FFmpegPath: *ffmpegPath,
	}
	sessions := rtc.NewManager(proc, rtcCfg)

	server := web.NewServer(*port, *staticDir, proc, sessions)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		server.Shutdown()
	}()

	if err := server.Start(); err != nil {
		stdlog.Fatalf("server error: %v", err)
	}
}

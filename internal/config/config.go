// Package config provides configuration helpers for livedetect commands.
package config

import (
	"os"
	"strconv"
)

// Defaults for the demo server.
const (
	DefaultPort        = "8080"
	DefaultModelPath   = "models/yolov8n.onnx"
	DefaultBackend     = "dnn"
	DefaultSTUNServer  = "stun:stun.l.google.com:19302"
	DefaultFFmpegPath  = "ffmpeg"
	DefaultJPEGQuality = 80
)

// Port returns the HTTP listen port from PORT, or the default.
func Port() string {
	return envOr("PORT", DefaultPort)
}

// ModelPath returns the ONNX model path from MODEL_PATH, or the default.
func ModelPath() string {
	return envOr("MODEL_PATH", DefaultModelPath)
}

// Backend returns the detector backend from DETECT_BACKEND: "dnn" (OpenCV)
// or "ort" (ONNX Runtime).
func Backend() string {
	return envOr("DETECT_BACKEND", DefaultBackend)
}

// ORTLibraryPath returns the ONNX Runtime shared library path from
// ORT_LIBRARY. Only consulted when the backend is "ort".
func ORTLibraryPath() string {
	return os.Getenv("ORT_LIBRARY")
}

// STUNServer returns the STUN server URL from STUN_SERVER, or the default
// public Google server.
func STUNServer() string {
	return envOr("STUN_SERVER", DefaultSTUNServer)
}

// FFmpegPath returns the ffmpeg binary path from FFMPEG_PATH, or "ffmpeg"
// resolved via PATH.
func FFmpegPath() string {
	return envOr("FFMPEG_PATH", DefaultFFmpegPath)
}

// JPEGQuality returns the re-encode quality (1-100) from JPEG_QUALITY,
// or the default. Out-of-range or unparsable values fall back to the default.
func JPEGQuality() int {
	v := os.Getenv("JPEG_QUALITY")
	if v == "" {
		return DefaultJPEGQuality
	}
	q, err := strconv.Atoi(v)
	if err != nil || q < 1 || q > 100 {
		return DefaultJPEGQuality
	}
	return q
}

// LogLevel returns the log level from LOG_LEVEL, or "info".
func LogLevel() string {
	return envOr("LOG_LEVEL", "info")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

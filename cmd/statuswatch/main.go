// Statuswatch - tail the livedetect status websocket from a terminal
//
// Handy for watching frame counters while poking at the browser UI.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "livedetect server address")
	flag.Parse()

	url := fmt.Sprintf("ws://%s/ws/status", *addr)
	fmt.Printf("Connecting to %s...\n", url)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		conn.Close()
		os.Exit(0)
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			fmt.Fprintf(os.Stderr, "connection closed: %v\n", err)
			return
		}

		var status struct {
			Connected   bool    `json:"connected"`
			Enabled     bool    `json:"enabled"`
			Threshold   float64 `json:"threshold"`
			ModelLoaded bool    `json:"model_loaded"`
			Frames      uint64  `json:"frames"`
			Detections  uint64  `json:"detections"`
		}
		if err := json.Unmarshal(msg, &status); err != nil {
			continue
		}

		state := "paused"
		if status.Enabled {
			state = "running"
		}
		if !status.Connected {
			state = "no session"
		}

		fmt.Printf("[%s] %s  threshold=%.2f  loaded=%v  frames=%d  detections=%d\n",
			time.Now().Format("15:04:05"), state, status.Threshold,
			status.ModelLoaded, status.Frames, status.Detections)
	}
}

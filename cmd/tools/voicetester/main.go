package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/soyl-labs/voice-backend/pkg/conversation"
)

// voicetester drives a conversation turn against a running backend, the
// manual counterpart of the handler tests.
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	server := flag.String("server", "http://localhost:8080", "backend base URL")
	mode := flag.String("mode", "", "test mode: text or voice")
	text := flag.String("text", "", "text turn input")
	audioPath := flag.String("audio", "", "voice turn input audio file path")
	outputPath := flag.String("out", "", "write reply audio to this file when present")
	storePath := flag.String("store", "", "persist the conversation window to this file")
	timeout := flag.Duration("timeout", 45*time.Second, "overall request timeout")

	flag.Parse()

	if *mode != "text" && *mode != "voice" {
		flag.Usage()
		log.Fatal("specify -mode=text or -mode=voice")
	}

	var store conversation.Store
	if *storePath != "" {
		store = conversation.NewFileStore(*storePath)
	}

	manager := conversation.NewManager(*server, store)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var reply conversation.Message
	var err error

	switch *mode {
	case "text":
		if *text == "" {
			log.Fatal("text mode requires -text")
		}
		log.Printf("sending text turn: %q", *text)
		reply, err = manager.SendTextMessage(ctx, *text)
	case "voice":
		if *audioPath == "" {
			log.Fatal("voice mode requires -audio")
		}
		audio, readErr := os.ReadFile(*audioPath)
		if readErr != nil {
			log.Fatalf("failed to read audio file: %v", readErr)
		}
		log.Printf("sending voice turn: %d audio bytes", len(audio))
		reply, err = manager.SendVoiceMessage(ctx, audio)
	}

	if err != nil {
		printWindow(manager)
		log.Fatalf("turn failed: %v", err)
	}

	printWindow(manager)

	if reply.AudioURL != "" && *outputPath != "" {
		if err := downloadAudio(ctx, reply.AudioURL, *outputPath); err != nil {
			log.Fatalf("failed to download reply audio: %v", err)
		}
		log.Printf("reply audio written to %s", *outputPath)
	}
}

func printWindow(manager *conversation.Manager) {
	for _, msg := range manager.Messages() {
		fmt.Printf("[%s] %-9s %s\n", msg.State, msg.Role+":", msg.Content)
		if msg.AudioURL != "" {
			fmt.Printf("            audio: %s\n", msg.AudioURL)
		}
	}
}

func downloadAudio(ctx context.Context, audioURL, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audio endpoint returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	return os.WriteFile(outputPath, data, 0o644)
}

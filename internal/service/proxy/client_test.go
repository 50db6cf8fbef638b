package proxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soyl-labs/voice-backend/internal/config"
	"github.com/soyl-labs/voice-backend/internal/model/voice"
)

func TestDecodeAudioPayloadPlainBase64(t *testing.T) {
	want := []byte("mp3 frame data")
	got, err := DecodeAudioPayload(base64.StdEncoding.EncodeToString(want))
	if err != nil {
		t.Fatalf("DecodeAudioPayload err: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("decoded %q, want %q", got, want)
	}
}

func TestDecodeAudioPayloadDataURI(t *testing.T) {
	want := []byte{0xff, 0xfb, 0x90, 0x00}
	payload := "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(want)

	got, err := DecodeAudioPayload(payload)
	if err != nil {
		t.Fatalf("DecodeAudioPayload err: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("decoded % x, want % x", got, want)
	}
}

func TestDecodeAudioPayloadEmbeddedWhitespace(t *testing.T) {
	want := []byte("hello audio")
	encoded := base64.StdEncoding.EncodeToString(want)
	payload := "  " + encoded[:4] + "\n" + encoded[4:8] + "\t" + encoded[8:] + "\r\n"

	got, err := DecodeAudioPayload(payload)
	if err != nil {
		t.Fatalf("DecodeAudioPayload err: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("decoded %q, want %q", got, want)
	}
}

func TestDecodeAudioPayloadRejectsEmptyAndMalformed(t *testing.T) {
	for _, payload := range []string{"", "   ", "data:audio/mpeg;base64,", "!!!not-base64!!!"} {
		if _, err := DecodeAudioPayload(payload); err == nil {
			t.Fatalf("DecodeAudioPayload(%q) should fail", payload)
		}
	}
}

func TestForwardSuccess(t *testing.T) {
	audio := []byte("synth bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req voice.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode forwarded request: %v", err)
		}
		if req.Text != "hello" {
			t.Errorf("forwarded text = %q, want hello", req.Text)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"text":          "hi there",
			"transcription": "hello",
			"audio":         "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(audio),
		})
	}))
	defer server.Close()

	client := NewClient(config.ProxyConfig{URL: server.URL, Timeout: 5 * time.Second, Enabled: true})
	result, err := client.Forward(context.Background(), &voice.ChatRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("Forward err: %v", err)
	}
	if result.Text != "hi there" {
		t.Fatalf("text = %q", result.Text)
	}
	if !bytes.Equal(result.Audio, audio) {
		t.Fatalf("audio = %q, want %q", result.Audio, audio)
	}
}

func TestForwardNon2xxFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(config.ProxyConfig{URL: server.URL, Timeout: 5 * time.Second, Enabled: true})
	if _, err := client.Forward(context.Background(), &voice.ChatRequest{Text: "hello"}); err == nil {
		t.Fatal("Forward should fail on non-2xx")
	}
}

func TestForwardTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(config.ProxyConfig{URL: server.URL, Timeout: 50 * time.Millisecond, Enabled: true})
	start := time.Now()
	if _, err := client.Forward(context.Background(), &voice.ChatRequest{Text: "hello"}); err == nil {
		t.Fatal("Forward should fail on timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Forward did not abort promptly, took %v", elapsed)
	}
}

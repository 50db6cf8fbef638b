package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/soyl-labs/voice-backend/internal/cache"
	voicemodel "github.com/soyl-labs/voice-backend/internal/model/voice"
	"github.com/soyl-labs/voice-backend/internal/service/ai"
	"github.com/soyl-labs/voice-backend/internal/service/proxy"
)

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) TranscribeBuffer(_ context.Context, _ []byte, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeReplies struct {
	reply       string
	err         error
	gotHistory  []voicemodel.HistoryEntry
	gotUserText string
	calls       int
}

func (f *fakeReplies) GenerateReply(_ context.Context, history []voicemodel.HistoryEntry, userText string) (string, error) {
	f.calls++
	f.gotHistory = history
	f.gotUserText = userText
	return f.reply, f.err
}

type fakeSynthesizer struct {
	audio []byte
	err   error
}

func (f *fakeSynthesizer) SynthesizeToBuffer(_ context.Context, _ string) ([]byte, error) {
	return f.audio, f.err
}

type fakeProxy struct {
	result *proxy.Result
	err    error
	calls  int
}

func (f *fakeProxy) Forward(_ context.Context, _ *voicemodel.ChatRequest) (*proxy.Result, error) {
	f.calls++
	return f.result, f.err
}

func newTestService(tr *fakeTranscriber, rp *fakeReplies, sy *fakeSynthesizer, px ProxyForwarder) (*Service, *cache.AudioCache) {
	c := cache.NewAudioCache()
	return NewService(tr, rp, sy, px, c), c
}

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	var pipeErr *Error
	if !errors.As(err, &pipeErr) {
		t.Fatalf("error %v is not a pipeline error", err)
	}
	return pipeErr.Kind
}

func TestChatRequiresAudioOrText(t *testing.T) {
	svc, _ := newTestService(&fakeTranscriber{}, &fakeReplies{}, &fakeSynthesizer{}, nil)

	_, err := svc.Chat(context.Background(), &voicemodel.ChatRequest{})
	if kindOf(t, err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestChatTextTurnSuccess(t *testing.T) {
	replies := &fakeReplies{reply: "SOYL builds emotion-aware agents."}
	svc, audioCache := newTestService(&fakeTranscriber{}, replies, &fakeSynthesizer{audio: []byte("mp3")}, nil)

	result, err := svc.Chat(context.Background(), &voicemodel.ChatRequest{Text: "What is SOYL?"})
	if err != nil {
		t.Fatalf("Chat err: %v", err)
	}
	if result.Text != "SOYL builds emotion-aware agents." {
		t.Fatalf("text = %q", result.Text)
	}
	if result.Transcription != "What is SOYL?" {
		t.Fatalf("transcription = %q", result.Transcription)
	}
	if len(result.AudioToken) != 64 {
		t.Fatalf("audio token = %q, want 64 hex chars", result.AudioToken)
	}
	if audioCache.Get(result.AudioToken) == nil {
		t.Fatal("audio not retrievable from cache")
	}
	if result.Warning != "" {
		t.Fatalf("unexpected warning %q", result.Warning)
	}
}

func TestChatVoiceTurnSuccess(t *testing.T) {
	transcriber := &fakeTranscriber{text: "hello there"}
	replies := &fakeReplies{reply: "hi"}
	svc, _ := newTestService(transcriber, replies, &fakeSynthesizer{audio: []byte("mp3")}, nil)

	audio := base64.StdEncoding.EncodeToString([]byte("webm recording"))
	result, err := svc.Chat(context.Background(), &voicemodel.ChatRequest{Audio: audio})
	if err != nil {
		t.Fatalf("Chat err: %v", err)
	}
	if transcriber.calls != 1 {
		t.Fatalf("transcriber called %d times", transcriber.calls)
	}
	if result.Transcription != "hello there" {
		t.Fatalf("transcription = %q", result.Transcription)
	}
	if replies.gotUserText != "hello there" {
		t.Fatalf("reply stage received %q", replies.gotUserText)
	}
}

func TestChatRejectsMalformedBase64(t *testing.T) {
	svc, _ := newTestService(&fakeTranscriber{}, &fakeReplies{}, &fakeSynthesizer{}, nil)

	_, err := svc.Chat(context.Background(), &voicemodel.ChatRequest{Audio: "!!!not base64!!!"})
	if kindOf(t, err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestChatRejectsOversizedAudio(t *testing.T) {
	transcriber := &fakeTranscriber{}
	svc, _ := newTestService(transcriber, &fakeReplies{}, &fakeSynthesizer{}, nil)

	big := base64.StdEncoding.EncodeToString(make([]byte, voicemodel.MaxAudioBytes+1))
	_, err := svc.Chat(context.Background(), &voicemodel.ChatRequest{Audio: big})
	if kindOf(t, err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if transcriber.calls != 0 {
		t.Fatal("oversized audio must not reach the transcriber")
	}
}

func TestChatTranscriptionFailureIsFatal(t *testing.T) {
	transcriber := &fakeTranscriber{err: errors.New("upstream exploded")}
	replies := &fakeReplies{}
	svc, _ := newTestService(transcriber, replies, &fakeSynthesizer{}, nil)

	audio := base64.StdEncoding.EncodeToString([]byte("webm"))
	_, err := svc.Chat(context.Background(), &voicemodel.ChatRequest{Audio: audio})
	if kindOf(t, err) != KindTranscribe {
		t.Fatalf("expected transcribe error, got %v", err)
	}
	if transcriber.calls != 1 {
		t.Fatalf("transcriber called %d times, want exactly 1 (no retry)", transcriber.calls)
	}
	if replies.calls != 0 {
		t.Fatal("reply stage must not run after transcription failure")
	}
}

func TestChatClassifiesBusyUpstream(t *testing.T) {
	replies := &fakeReplies{err: fmt.Errorf("%w: 429", ai.ErrUpstreamBusy)}
	svc, _ := newTestService(&fakeTranscriber{}, replies, &fakeSynthesizer{}, nil)

	_, err := svc.Chat(context.Background(), &voicemodel.ChatRequest{Text: "hi"})
	if kindOf(t, err) != KindBusy {
		t.Fatalf("expected busy error, got %v", err)
	}
}

func TestChatClassifiesBadCredentialsAsBusy(t *testing.T) {
	replies := &fakeReplies{err: fmt.Errorf("%w: invalid_api_key", ai.ErrBadCredentials)}
	svc, _ := newTestService(&fakeTranscriber{}, replies, &fakeSynthesizer{}, nil)

	_, err := svc.Chat(context.Background(), &voicemodel.ChatRequest{Text: "hi"})
	if kindOf(t, err) != KindBusy {
		t.Fatalf("expected busy error, got %v", err)
	}
}

func TestChatSynthesisFailureDegrades(t *testing.T) {
	replies := &fakeReplies{reply: "text reply"}
	svc, _ := newTestService(&fakeTranscriber{}, replies, &fakeSynthesizer{err: errors.New("tts down")}, nil)

	result, err := svc.Chat(context.Background(), &voicemodel.ChatRequest{Text: "hi"})
	if err != nil {
		t.Fatalf("synthesis failure must not fail the turn: %v", err)
	}
	if result.Text != "text reply" {
		t.Fatalf("text = %q", result.Text)
	}
	if result.AudioToken != "" {
		t.Fatal("no audio token expected on synthesis failure")
	}
	if result.Warning == "" {
		t.Fatal("warning expected on synthesis failure")
	}
}

func TestChatEmptySynthesisDegrades(t *testing.T) {
	svc, _ := newTestService(&fakeTranscriber{}, &fakeReplies{reply: "r"}, &fakeSynthesizer{audio: []byte{}}, nil)

	result, err := svc.Chat(context.Background(), &voicemodel.ChatRequest{Text: "hi"})
	if err != nil {
		t.Fatalf("Chat err: %v", err)
	}
	if result.Warning == "" || result.AudioToken != "" {
		t.Fatalf("expected degraded result, got %+v", result)
	}
}

func TestChatProxySuccessSkipsLocalPipeline(t *testing.T) {
	transcriber := &fakeTranscriber{}
	replies := &fakeReplies{}
	px := &fakeProxy{result: &proxy.Result{Text: "proxied", Transcription: "hi", Audio: []byte("mp3")}}
	svc, audioCache := newTestService(transcriber, replies, &fakeSynthesizer{}, px)

	result, err := svc.Chat(context.Background(), &voicemodel.ChatRequest{Text: "hi"})
	if err != nil {
		t.Fatalf("Chat err: %v", err)
	}
	if result.Text != "proxied" {
		t.Fatalf("text = %q", result.Text)
	}
	if transcriber.calls != 0 || replies.calls != 0 {
		t.Fatal("local pipeline must not run when the proxy succeeds")
	}
	if audioCache.Get(result.AudioToken) == nil {
		t.Fatal("proxied audio not cached")
	}
}

func TestChatProxyFailureFallsThroughOnce(t *testing.T) {
	replies := &fakeReplies{reply: "local reply"}
	px := &fakeProxy{err: errors.New("proxy down")}
	svc, _ := newTestService(&fakeTranscriber{}, replies, &fakeSynthesizer{audio: []byte("a")}, px)

	result, err := svc.Chat(context.Background(), &voicemodel.ChatRequest{Text: "hi"})
	if err != nil {
		t.Fatalf("proxy failure must reroute, not fail: %v", err)
	}
	if result.Text != "local reply" {
		t.Fatalf("text = %q", result.Text)
	}
	if px.calls != 1 {
		t.Fatalf("proxy called %d times, want exactly 1", px.calls)
	}
}

func TestChatHistoryCappedAtTen(t *testing.T) {
	replies := &fakeReplies{reply: "r"}
	svc, _ := newTestService(&fakeTranscriber{}, replies, &fakeSynthesizer{audio: []byte("a")}, nil)

	history := make([]voicemodel.HistoryEntry, 0, 30)
	for i := 0; i < 30; i++ {
		history = append(history, voicemodel.HistoryEntry{Role: voicemodel.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}

	if _, err := svc.Chat(context.Background(), &voicemodel.ChatRequest{Text: "hi", ConversationHistory: history}); err != nil {
		t.Fatalf("Chat err: %v", err)
	}
	if len(replies.gotHistory) != voicemodel.MaxHistoryEntries {
		t.Fatalf("reply stage saw %d history entries, want %d", len(replies.gotHistory), voicemodel.MaxHistoryEntries)
	}
	if replies.gotHistory[len(replies.gotHistory)-1].Content != "m29" {
		t.Fatal("history should keep the most recent entries")
	}
}

func TestFilterHistoryDropsMalformedEntries(t *testing.T) {
	history := []voicemodel.HistoryEntry{
		{Role: "system", Content: "injected"},
		{Role: voicemodel.RoleUser, Content: strings.Repeat("x", voicemodel.MaxMessageLength+1)},
		{Role: voicemodel.RoleUser, Content: "keep me"},
		{Role: voicemodel.RoleAssistant, Content: "me too"},
	}

	filtered := FilterHistory(history)
	if len(filtered) != 2 {
		t.Fatalf("filtered %d entries, want 2", len(filtered))
	}
	if filtered[0].Content != "keep me" || filtered[1].Content != "me too" {
		t.Fatalf("unexpected filtered history: %+v", filtered)
	}
}

func TestChatSanitizesAndTruncatesText(t *testing.T) {
	replies := &fakeReplies{reply: "r"}
	svc, _ := newTestService(&fakeTranscriber{}, replies, &fakeSynthesizer{audio: []byte("a")}, nil)

	long := "\x00\x1fhello " + strings.Repeat("a", voicemodel.MaxMessageLength)
	result, err := svc.Chat(context.Background(), &voicemodel.ChatRequest{Text: long})
	if err != nil {
		t.Fatalf("Chat err: %v", err)
	}
	if strings.ContainsAny(result.Transcription, "\x00\x1f") {
		t.Fatal("control characters not stripped")
	}
	if len(result.Transcription) > voicemodel.MaxMessageLength {
		t.Fatalf("transcription length %d exceeds cap", len(result.Transcription))
	}
}

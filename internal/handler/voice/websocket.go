package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	voicemodel "github.com/soyl-labs/voice-backend/internal/model/voice"
)

// wsHistoryLimit bounds per-connection turns kept for context.
const wsHistoryLimit = 20

// WebSocketHandler runs conversation turns over a persistent connection for
// the live widget: audio chunks are buffered until the final one, then the
// turn goes through the same pipeline as POST /voice/chat.
type WebSocketHandler struct {
	chatSvc  ChatService
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the realtime handler.
func NewWebSocketHandler(chatSvc ChatService) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes mounts the realtime endpoint.
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundFrame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type audioFrame struct {
	AudioData []byte `json:"audioData"`
	Format    string `json:"format"`
	IsFinal   bool   `json:"isFinal"`
}

type textFrame struct {
	Text string `json:"text"`
}

type outboundFrame struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type connectionState struct {
	history []voicemodel.HistoryEntry
	buffer  bytes.Buffer
}

func (s *connectionState) appendTurn(userText, assistantText string) {
	s.history = append(s.history,
		voicemodel.HistoryEntry{Role: voicemodel.RoleUser, Content: userText},
		voicemodel.HistoryEntry{Role: voicemodel.RoleAssistant, Content: assistantText},
	)
	if len(s.history) > wsHistoryLimit {
		s.history = s.history[len(s.history)-wsHistoryLimit:]
	}
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection from %s", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go h.pingLoop(ctx, conn)

	h.send(conn, "connected", nil)

	state := &connectionState{}
	for {
		select {
		case <-ctx.Done():
			return
		default:
			var frame inboundFrame
			if err := conn.ReadJSON(&frame); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[websocket] read error: %v", err)
				}
				return
			}

			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			h.handleFrame(ctx, conn, state, &frame)
		}
	}
}

func (h *WebSocketHandler) handleFrame(ctx context.Context, conn *websocket.Conn, state *connectionState, frame *inboundFrame) {
	switch frame.Type {
	case "audio":
		h.handleAudioFrame(ctx, conn, state, frame.Data)
	case "text":
		h.handleTextFrame(ctx, conn, state, frame.Data)
	default:
		h.sendError(conn, "unsupported message type: "+frame.Type)
	}
}

func (h *WebSocketHandler) handleAudioFrame(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var audio audioFrame
	if err := json.Unmarshal(raw, &audio); err != nil {
		h.sendError(conn, "invalid audio payload")
		return
	}

	if len(audio.AudioData) > 0 {
		state.buffer.Write(audio.AudioData)
	}

	if !audio.IsFinal {
		return
	}

	buffered := state.buffer.Bytes()
	state.buffer.Reset()
	if len(buffered) == 0 {
		return
	}

	log.Printf("[websocket] processing voice turn, %d audio bytes", len(buffered))
	h.runTurn(ctx, conn, state, &voicemodel.ChatRequest{
		Audio:               base64.StdEncoding.EncodeToString(buffered),
		ConversationHistory: recentHistory(state.history),
	})
}

func (h *WebSocketHandler) handleTextFrame(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var text textFrame
	if err := json.Unmarshal(raw, &text); err != nil {
		h.sendError(conn, "invalid text payload")
		return
	}
	if text.Text == "" {
		return
	}

	h.runTurn(ctx, conn, state, &voicemodel.ChatRequest{
		Text:                text.Text,
		ConversationHistory: recentHistory(state.history),
	})
}

func (h *WebSocketHandler) runTurn(ctx context.Context, conn *websocket.Conn, state *connectionState, req *voicemodel.ChatRequest) {
	result, err := h.chatSvc.Chat(ctx, req)
	if err != nil {
		log.Printf("[websocket] turn failed: %v", err)
		h.sendError(conn, "failed to process message")
		return
	}

	h.send(conn, "transcription", map[string]any{"text": result.Transcription})

	reply := map[string]any{"text": result.Text}
	if result.AudioToken != "" {
		reply["audioUrl"] = "/voice/audio?token=" + result.AudioToken
	}
	if result.Warning != "" {
		reply["warning"] = result.Warning
	}
	h.send(conn, "reply", reply)

	state.appendTurn(result.Transcription, result.Text)
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, frameType string, data interface{}) {
	frame := outboundFrame{
		Type:      frameType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("[websocket] write failed: %v", err)
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, message string) {
	h.send(conn, "error", map[string]string{"error": message})
}

func recentHistory(history []voicemodel.HistoryEntry) []voicemodel.HistoryEntry {
	if len(history) <= voicemodel.MaxHistoryEntries {
		return history
	}
	return history[len(history)-voicemodel.MaxHistoryEntries:]
}

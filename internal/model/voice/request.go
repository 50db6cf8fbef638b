package voice

// HistoryEntry is one prior turn the client replays to the server.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /voice/chat. At least one of Audio
// (base64) or Text must be present.
type ChatRequest struct {
	Audio               string         `json:"audio,omitempty"`
	Text                string         `json:"text,omitempty"`
	ConversationHistory []HistoryEntry `json:"conversationHistory"`
}

// ChatResponse carries the assistant turn back to the client. AudioURL is a
// token reference into the audio cache, never raw bytes; Warning is set when
// synthesis failed but the text reply succeeded.
type ChatResponse struct {
	Text          string `json:"text"`
	AudioURL      string `json:"audioUrl,omitempty"`
	Transcription string `json:"transcription"`
	Warning       string `json:"warning,omitempty"`
}

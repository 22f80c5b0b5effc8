package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/PaulSonOfLars/gotgbot/v2"
)

// SentMessage is one sendMessage call captured by MockTelegram.
type SentMessage struct {
	ChatID string
	Text   string
}

// MockTelegram is a fake Bot API endpoint that accepts every sendMessage call
// and records it.
type MockTelegram struct {
	Server *httptest.Server
	Bot    *gotgbot.Bot

	mu   sync.Mutex
	sent []SentMessage
}

// NewMockTelegram starts a fake Bot API server and a bot wired to it.
func NewMockTelegram(t *testing.T) *MockTelegram {
	t.Helper()

	m := &MockTelegram{}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.Server.Close)

	m.Bot = &gotgbot.Bot{
		Token: "123456:TEST",
		User:  gotgbot.User{Id: 123456, IsBot: true, FirstName: "GeoPogoda", Username: "geopogoda_bot"},
		BotClient: &gotgbot.BaseBotClient{
			Client: http.Client{},
			DefaultRequestOpts: &gotgbot.RequestOpts{
				APIURL: m.Server.URL,
			},
		},
	}

	return m
}

func (m *MockTelegram) handle(w http.ResponseWriter, r *http.Request) {
	params := readParams(r)
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	w.Header().Set("Content-Type", "application/json")

	if !strings.EqualFold(method, "sendMessage") {
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		return
	}

	m.mu.Lock()
	m.sent = append(m.sent, SentMessage{ChatID: params["chat_id"], Text: params["text"]})
	id := len(m.sent)
	m.mu.Unlock()

	result := map[string]interface{}{
		"message_id": id,
		"date":       0,
		"chat":       map[string]interface{}{"id": 1, "type": "private"},
		"text":       params["text"],
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": result})
}

// readParams accepts JSON, urlencoded and multipart request bodies.
func readParams(r *http.Request) map[string]string {
	out := make(map[string]string)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var raw map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err == nil {
			for k, v := range raw {
				if s, ok := v.(string); ok {
					out[k] = s
				} else {
					out[k] = fmt.Sprint(v)
				}
			}
		}
		return out
	}

	_ = r.ParseMultipartForm(1 << 20)
	_ = r.ParseForm()
	for k := range r.Form {
		out[k] = r.Form.Get(k)
	}
	return out
}

// Sent returns a copy of every captured message.
func (m *MockTelegram) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}

// LastText returns the text of the most recent message, or "".
func (m *MockTelegram) LastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Text
}

package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/gorilla/websocket"

	"github.com/voxwire-ai/voxwire/pkg/chat"
	"github.com/voxwire-ai/voxwire/pkg/config"
	"github.com/voxwire-ai/voxwire/pkg/voice"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Speech.SampleRate = 8000

	srv, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestAnswerEndpointStreamsMockReply(t *testing.T) {
	ts := newTestServer(t)

	client := &voice.AnswerClient{BaseURL: ts.URL}
	stream, err := client.Open(context.Background(), voice.AnswerRequest{Utterance: "hello"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stream.Close()

	var text strings.Builder
	var followup string
	var recs []voice.Recommendation
	for {
		ev, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		switch ev.Type {
		case voice.EventTextChunk:
			text.WriteString(ev.Text)
		case voice.EventFollowup:
			followup = ev.Text
		case voice.EventRecommendations:
			recs = ev.Recommendations
		case voice.EventError:
			t.Fatalf("unexpected error event: %s", ev.Text)
		}
	}

	if !strings.Contains(text.String(), "several sentences") {
		t.Errorf("streamed text = %q", text.String())
	}
	if followup == "" {
		t.Error("no followup received")
	}
	if len(recs) != 2 || recs[0].Name == "" {
		t.Errorf("recommendations = %+v", recs)
	}
}

func TestAnswerEndpointRejectsBadRequests(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/answer", "application/json", strings.NewReader(`{"utterance":""}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty utterance status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/v1/answer")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", resp.StatusCode)
	}
}

func TestSpeechEndpointReturnsDecodableWAV(t *testing.T) {
	ts := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"text": "A short sentence to render."})
	resp, err := http.Post(ts.URL+"/v1/speech", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("content type = %q", ct)
	}

	clip, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(clip))
	dec.ReadInfo()
	if !dec.IsValidFile() {
		t.Fatal("response is not a valid wav file")
	}
	if dec.SampleRate != 8000 {
		t.Errorf("sample rate = %d, want 8000", dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Errorf("channels = %d, want 1", dec.NumChans)
	}
}

func TestSpeechClipLengthTracksText(t *testing.T) {
	ts := &toneSpeech{sampleRate: 8000, toneHz: 440}

	short, err := ts.Render("Hi.")
	if err != nil {
		t.Fatalf("render short: %v", err)
	}
	long, err := ts.Render("A considerably longer sentence that should take more time to speak aloud.")
	if err != nil {
		t.Fatalf("render long: %v", err)
	}
	if len(long) <= len(short) {
		t.Errorf("long clip (%d bytes) should exceed short clip (%d bytes)", len(long), len(short))
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("payload = %v", payload)
	}
}

func dialChat(t *testing.T, ts *httptest.Server, room, user, role string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := conn.WriteJSON(chat.JoinMessage{Type: chat.TypeJoin, RoomID: room, UserName: user, Role: role}); err != nil {
		t.Fatalf("join: %v", err)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var frame map[string]json.RawMessage
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func frameType(t *testing.T, frame map[string]json.RawMessage) string {
	t.Helper()
	var typ string
	if err := json.Unmarshal(frame["type"], &typ); err != nil {
		t.Fatalf("frame type: %v", err)
	}
	return typ
}

func TestChatRoomHistoryAndBroadcast(t *testing.T) {
	ts := newTestServer(t)

	host := dialChat(t, ts, "room-a", "hosty", RoleHost)
	if typ := frameType(t, readFrame(t, host)); typ != chat.TypeHistory {
		t.Fatalf("first frame = %s, want history", typ)
	}

	if err := host.WriteJSON(chat.OutboundMessage{Type: chat.TypeMessage, Content: "welcome"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if typ := frameType(t, readFrame(t, host)); typ != chat.TypeMessage {
		t.Fatal("sender should receive its own broadcast")
	}

	// a late joiner gets the backlog in its history snapshot
	listener := dialChat(t, ts, "room-a", "lurker", "listener")
	frame := readFrame(t, listener)
	if typ := frameType(t, frame); typ != chat.TypeHistory {
		t.Fatalf("first frame = %s, want history", typ)
	}
	var history []chat.Message
	if err := json.Unmarshal(frame["messages"], &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 || history[0].Content != "welcome" || history[0].ID == "" {
		t.Errorf("history = %+v", history)
	}
}

func TestChatRoomEndsWhenHostLeaves(t *testing.T) {
	ts := newTestServer(t)

	host := dialChat(t, ts, "room-b", "hosty", RoleHost)
	readFrame(t, host) // history

	listener := dialChat(t, ts, "room-b", "lurker", "listener")
	readFrame(t, listener) // history

	host.Close()

	if typ := frameType(t, readFrame(t, listener)); typ != chat.TypeStreamEnded {
		t.Fatalf("listener frame = %s, want stream_ended", typ)
	}

	// joining an ended room is refused with the same terminal frame
	late := dialChat(t, ts, "room-b", "late", "listener")
	if typ := frameType(t, readFrame(t, late)); typ != chat.TypeStreamEnded {
		t.Fatalf("late join frame = %s, want stream_ended", typ)
	}
}

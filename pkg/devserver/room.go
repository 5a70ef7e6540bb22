package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxwire-ai/voxwire/pkg/chat"
)

// RoleHost marks the participant whose departure ends the room for
// everyone. Listeners may come and go freely.
const RoleHost = "host"

const chatWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// chatHub keeps rooms and fans messages out to their participants.
type chatHub struct {
	logger *slog.Logger

	mu    sync.Mutex
	rooms map[string]*chatRoom
}

type chatRoom struct {
	id      string
	history []chat.Message
	clients map[*chatClient]struct{}
	ended   bool
}

type chatClient struct {
	conn     *websocket.Conn
	wmu      sync.Mutex
	userName string
	role     string
}

func newChatHub(logger *slog.Logger) *chatHub {
	return &chatHub{
		logger: logger.With(slog.String("component", "chat-hub")),
		rooms:  make(map[string]*chatRoom),
	}
}

// ServeWS upgrades the request, performs the join handshake, and pumps
// messages until the client leaves.
func (h *chatHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	client := &chatClient{conn: conn}

	var join chat.JoinMessage
	if err := conn.ReadJSON(&join); err != nil || join.Type != chat.TypeJoin || join.RoomID == "" {
		client.sendError("expected a join frame")
		return
	}
	client.userName = join.UserName
	client.role = join.Role

	room, history, ended := h.register(join.RoomID, client)
	if ended {
		client.send(map[string]any{"type": chat.TypeStreamEnded})
		return
	}
	defer h.unregister(room, client)

	if err := client.send(map[string]any{"type": chat.TypeHistory, "messages": history}); err != nil {
		return
	}

	h.logger.Info("client joined",
		slog.String("room_id", room.id),
		slog.String("user_name", client.userName),
		slog.String("role", client.role))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var out chat.OutboundMessage
		if err := json.Unmarshal(data, &out); err != nil || out.Type != chat.TypeMessage {
			client.sendError("expected a message frame")
			continue
		}
		if out.Content == "" {
			client.sendError("message content is empty")
			continue
		}
		h.broadcast(room, chat.Message{
			ID:       uuid.NewString(),
			UserName: client.userName,
			Role:     client.role,
			Content:  out.Content,
			SentAt:   time.Now().UnixMilli(),
		})
	}
}

// register adds the client to the room, creating it on first join. It
// returns a history snapshot taken under the lock.
func (h *chatHub) register(roomID string, client *chatClient) (*chatRoom, []chat.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		room = &chatRoom{id: roomID, clients: make(map[*chatClient]struct{})}
		h.rooms[roomID] = room
	}
	if room.ended {
		return room, nil, true
	}
	room.clients[client] = struct{}{}
	history := make([]chat.Message, len(room.history))
	copy(history, room.history)
	return room, history, false
}

// unregister drops the client. A departing host ends the room: remaining
// participants get a stream_ended frame and late joiners are turned away.
func (h *chatHub) unregister(room *chatRoom, client *chatClient) {
	h.mu.Lock()
	delete(room.clients, client)
	endRoom := client.role == RoleHost && !room.ended
	if endRoom {
		room.ended = true
	}
	var remaining []*chatClient
	if endRoom {
		for c := range room.clients {
			remaining = append(remaining, c)
		}
	}
	h.mu.Unlock()

	if endRoom {
		h.logger.Info("room ended", slog.String("room_id", room.id))
		for _, c := range remaining {
			c.send(map[string]any{"type": chat.TypeStreamEnded})
		}
	}
}

func (h *chatHub) broadcast(room *chatRoom, msg chat.Message) {
	h.mu.Lock()
	room.history = append(room.history, msg)
	targets := make([]*chatClient, 0, len(room.clients))
	for c := range room.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.send(map[string]any{"type": chat.TypeMessage, "message": msg})
	}
}

func (c *chatClient) send(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(chatWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *chatClient) sendError(msg string) {
	c.send(map[string]any{"type": chat.TypeError, "message": msg})
}

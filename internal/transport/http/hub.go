package http

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"quizbot-engine/internal/domain"
)

// Hub is the messaging gateway: it fans engine output out to every websocket
// connected to a chat.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*client]struct{}
	newRef  func() string
}

type client struct {
	chatID int64
	user   domain.Identity
	send   chan outboundMessage[any]
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]map[*client]struct{}),
		newRef:  uuid.NewString,
	}
}

type pollPayload struct {
	PollID     string   `json:"pollId"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	Index      int      `json:"index"`
	Total      int      `json:"total"`
	OpenPeriod int      `json:"openPeriod"`
}

func (h *Hub) SendQuestion(_ context.Context, chatID int64, poll domain.Poll) (string, error) {
	ref := h.newRef()
	err := h.deliver(chatID, outboundMessage[any]{Type: "poll", Payload: pollPayload{
		PollID:     ref,
		Question:   poll.Text,
		Options:    poll.Options,
		Index:      poll.Index,
		Total:      poll.Total,
		OpenPeriod: poll.OpenPeriod,
	}})
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (h *Hub) SendContent(_ context.Context, chatID int64, content domain.PreQuestionContent) error {
	return h.deliver(chatID, outboundMessage[any]{Type: "content", Payload: content})
}

func (h *Hub) Notify(_ context.Context, chatID int64, notice domain.Notice) error {
	return h.deliver(chatID, outboundMessage[any]{Type: "notice", Payload: notice})
}

// deliver enqueues msg for every connection of chatID. It fails only when no
// connection accepted the message.
func (h *Hub) deliver(chatID int64, msg outboundMessage[any]) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients[chatID] {
		select {
		case c.send <- msg:
			delivered++
		default:
			glog.V(2).Infof("chat %d: client %d is not draining, %s dropped", chatID, c.user.ID, msg.Type)
		}
	}
	if delivered == 0 {
		return domain.ErrRecipientUnavailable
	}
	return nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.chatID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.chatID] = set
	}
	set[c] = struct{}{}
}

// unregister removes c; once it returns no further message is queued on c.send.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.chatID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.chatID)
	}
}

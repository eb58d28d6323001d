package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"quizbot-engine/internal/app"
	"quizbot-engine/internal/domain"
)

type WSHandler struct {
	service  *app.Engine
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.Engine, hub *Hub) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	QuizID string `json:"quizId"`
	Retake bool   `json:"retake"`
}

type quizPayload struct {
	QuizID string `json:"quizId"`
}

type answerPayload struct {
	PollID string `json:"pollId"`
	Option int    `json:"option"`
}

type answerResult struct {
	PollID   string `json:"pollId"`
	Accepted bool   `json:"accepted"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz engine.
// A connection whose chatId equals its userId is a private chat; anything
// else is a group chat.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	chatID, chatErr := strconv.ParseInt(q.Get("chatId"), 10, 64)
	userID, userErr := strconv.ParseInt(q.Get("userId"), 10, 64)
	if chatErr != nil || userErr != nil || q.Get("name") == "" {
		http.Error(w, "missing chatId, userId, or name", http.StatusBadRequest)
		return
	}
	user := domain.Identity{
		ID:        userID,
		Username:  q.Get("username"),
		FirstName: q.Get("name"),
		LastName:  q.Get("lastName"),
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Errorf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := &client{chatID: chatID, user: user, send: make(chan outboundMessage[any], 32)}
	h.hub.register(c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				glog.V(2).Infof("ws write error: %v", err)
				return
			}
		}
	}()

	private := chatID == userID
	ctx := r.Context()
	reply := func(typ string, payload any) {
		select {
		case c.send <- outboundMessage[any]{Type: typ, Payload: payload}:
		default:
		}
	}
	fail := func(err error) {
		reply("error", errorPayload{Message: errorMessage(err)})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuizID == "" {
				reply("error", errorPayload{Message: "invalid start payload"})
				continue
			}
			var (
				out app.StartOutcome
				err error
			)
			if private {
				out, err = h.service.StartPrivate(ctx, user, payload.QuizID, payload.Retake)
			} else {
				out, err = h.service.StartGroup(ctx, chatID, payload.QuizID)
			}
			if err != nil {
				fail(err)
				continue
			}
			reply("started", out)
		case "ready":
			var payload quizPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply("error", errorPayload{Message: "invalid ready payload"})
				continue
			}
			if private {
				if err := h.service.MarkReady(ctx, userID, payload.QuizID); err != nil {
					fail(err)
					continue
				}
				reply("ready", payload)
				continue
			}
			status, err := h.service.MarkGroupReady(ctx, chatID, payload.QuizID, user)
			if err != nil {
				fail(err)
				continue
			}
			reply("ready", status)
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				continue
			}
			accepted := h.service.OnAnswer(ctx, domain.AnswerEvent{
				PollRef:     payload.PollID,
				Participant: user,
				Option:      payload.Option,
			})
			if accepted {
				reply("answer", answerResult{PollID: payload.PollID, Accepted: true})
			}
		case "stop":
			key := domain.GroupKey(chatID)
			if private {
				key = domain.PrivateKey(userID)
			}
			if err := h.service.Stop(ctx, key); err != nil {
				fail(err)
			}
		case "leaderboard":
			var payload quizPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply("error", errorPayload{Message: "invalid leaderboard payload"})
				continue
			}
			view, err := h.service.Leaderboard(ctx, payload.QuizID, leaderboardSize)
			if err != nil {
				fail(err)
				continue
			}
			reply("leaderboard", view)
		default:
			reply("error", errorPayload{Message: "unsupported message type"})
		}
	}

	h.hub.unregister(c)
	close(c.send)
	<-writerDone
}

const leaderboardSize = 10

func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "no active quiz found, please try again"
	case errors.Is(err, domain.ErrSessionActive):
		return "a quiz is already running here; stop it first"
	case errors.Is(err, domain.ErrQuizNotFound):
		return "quiz not found"
	case errors.Is(err, domain.ErrEmptyQuiz):
		return "quiz has no questions"
	case errors.Is(err, domain.ErrTransport):
		return "could not deliver the question"
	}
	return "internal error"
}

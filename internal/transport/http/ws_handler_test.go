package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"quizbot-engine/internal/app"
	"quizbot-engine/internal/domain"
	"quizbot-engine/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewSessionStore()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizStore(sampleQuiz()), time.Minute)
	hub := NewHub()
	engine := app.NewEngine(store, quizRepo, hub, app.Options{})
	server := httptest.NewServer(NewRouter(engine, hub))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func TestWebSocketPrivateFlow(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "chatId=5&userId=5&name=Alice&username=alice")

	send(t, conn, "start", map[string]any{"quizId": "quiz-1"})
	started := readUntil(t, conn, "started", "")
	if started["questions"] != float64(1) {
		t.Fatalf("expected one question, got %+v", started)
	}

	send(t, conn, "ready", map[string]any{"quizId": "quiz-1"})
	poll := readUntil(t, conn, "poll", "")
	if poll["question"] != "[1/1] What is 2 + 2?" {
		t.Fatalf("unexpected poll %+v", poll)
	}
	pollID, _ := poll["pollId"].(string)
	if pollID == "" {
		t.Fatalf("expected poll id")
	}

	send(t, conn, "answer", map[string]any{"pollId": pollID, "option": 1})
	results := readUntil(t, conn, "notice", string(domain.NoticeResults))
	result, _ := results["result"].(map[string]any)
	if result["correctAnswers"] != float64(1) {
		t.Fatalf("expected one correct answer, got %+v", results)
	}
	standing, _ := results["standing"].(map[string]any)
	if standing["rank"] != float64(1) || standing["recorded"] != true {
		t.Fatalf("unexpected standing %+v", standing)
	}

	// A second start reports the earlier attempt instead of replaying.
	send(t, conn, "start", map[string]any{"quizId": "quiz-1"})
	again := readUntil(t, conn, "started", "")
	if _, ok := again["previous"]; !ok {
		t.Fatalf("expected previous standing, got %+v", again)
	}

	send(t, conn, "leaderboard", map[string]any{"quizId": "quiz-1"})
	board := readUntil(t, conn, "leaderboard", "")
	entries, _ := board["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one leaderboard entry, got %+v", board)
	}
}

func TestWebSocketGroupFlow(t *testing.T) {
	server := newTestServer(t)
	a := dial(t, server, "chatId=-9&userId=1&name=Alice")
	b := dial(t, server, "chatId=-9&userId=2&name=Bob")

	send(t, a, "start", map[string]any{"quizId": "quiz-1"})
	readUntil(t, a, "started", "")

	send(t, a, "ready", map[string]any{"quizId": "quiz-1"})
	pending := readUntil(t, a, "notice", string(domain.NoticeReadyPending))
	if pending["ready"] != float64(1) || pending["quorum"] != float64(2) {
		t.Fatalf("expected 1/2 ready, got %+v", pending)
	}

	send(t, b, "ready", map[string]any{"quizId": "quiz-1"})
	pollA := readUntil(t, a, "poll", "")
	pollB := readUntil(t, b, "poll", "")
	if pollA["pollId"] != pollB["pollId"] {
		t.Fatalf("expected one poll for the whole chat")
	}

	send(t, a, "answer", map[string]any{"pollId": pollA["pollId"], "option": 1})
	send(t, b, "answer", map[string]any{"pollId": pollB["pollId"], "option": 0})

	results := readUntil(t, a, "notice", string(domain.NoticeGroupResults))
	standings, _ := results["standings"].([]any)
	if len(standings) != 2 {
		t.Fatalf("expected two standings, got %+v", results)
	}
	first, _ := standings[0].(map[string]any)
	participant, _ := first["participant"].(map[string]any)
	if participant["id"] != float64(1) || first["correctAnswers"] != float64(1) {
		t.Fatalf("expected alice to lead, got %+v", first)
	}
}

func TestWebSocketRejectsMissingIdentity(t *testing.T) {
	server := newTestServer(t)
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?chatId=1"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", resp)
	}
}

func TestWebSocketUnknownQuiz(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "chatId=5&userId=5&name=Alice")

	send(t, conn, "start", map[string]any{"quizId": "missing"})
	msg := readUntil(t, conn, "error", "")
	if msg["message"] != "quiz not found" {
		t.Fatalf("unexpected error %+v", msg)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/quizzes/quiz-1/leaderboard?limit=5")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var view app.LeaderboardView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.QuizID != "quiz-1" || view.Questions != 1 || view.Participants != 0 {
		t.Fatalf("unexpected view %+v", view)
	}

	missing, err := http.Get(server.URL + "/quizzes/missing/leaderboard")
	if err != nil {
		t.Fatalf("get missing leaderboard: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.StatusCode)
	}

	bad, err := http.Get(server.URL + "/quizzes/quiz-1/leaderboard?limit=x")
	if err != nil {
		t.Fatalf("get bad leaderboard: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", bad.StatusCode)
	}
}

// readUntil skips messages until one of type typ arrives; for notices, kind
// must match too.
func readUntil(t *testing.T, conn *websocket.Conn, typ, kind string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", typ, err)
		}
		if msg.Type != typ {
			continue
		}
		if kind != "" && msg.Payload["kind"] != kind {
			continue
		}
		return msg.Payload
	}
	t.Fatalf("no %s message received", typ)
	return nil
}

func sampleQuiz() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:        "quiz-1",
			Title:     "Arithmetic",
			TimeLimit: 1,
			Questions: []domain.Question{
				{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: 1},
			},
		},
	}
}

package app_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"quizbot-engine/internal/app"
	"quizbot-engine/internal/domain"
	"quizbot-engine/internal/infra/memory"
)

type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// manualScheduler records scheduled work; tests fire it explicitly.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) Schedule(delay time.Duration, fn func()) app.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{delay: delay, fn: fn}
	s.timers = append(s.timers, t)
	return &manualHandle{sched: s, t: t}
}

type manualHandle struct {
	sched *manualScheduler
	t     *manualTimer
}

func (h *manualHandle) Stop() bool {
	h.sched.mu.Lock()
	defer h.sched.mu.Unlock()
	active := !h.t.stopped && !h.t.fired
	h.t.stopped = true
	return active
}

// pending returns the timers that are neither stopped nor fired.
func (s *manualScheduler) pending() []*manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the most recently armed live timer.
func (s *manualScheduler) fire(t *testing.T) time.Duration {
	t.Helper()
	live := s.pending()
	if len(live) == 0 {
		t.Fatalf("no pending timer to fire")
	}
	timer := live[len(live)-1]
	s.mu.Lock()
	timer.fired = true
	s.mu.Unlock()
	timer.fn()
	return timer.delay
}

type sentPoll struct {
	chatID int64
	ref    string
	poll   domain.Poll
}

// recordingGateway captures everything the engine sends.
type recordingGateway struct {
	mu       sync.Mutex
	polls    []sentPoll
	contents []domain.PreQuestionContent
	notices  []domain.Notice
	failSend bool
}

func (g *recordingGateway) SendQuestion(_ context.Context, chatID int64, poll domain.Poll) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failSend {
		return "", domain.ErrRecipientUnavailable
	}
	ref := fmt.Sprintf("poll-%d", len(g.polls))
	g.polls = append(g.polls, sentPoll{chatID: chatID, ref: ref, poll: poll})
	return ref, nil
}

func (g *recordingGateway) SendContent(_ context.Context, _ int64, content domain.PreQuestionContent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.contents = append(g.contents, content)
	return nil
}

func (g *recordingGateway) Notify(_ context.Context, _ int64, notice domain.Notice) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notices = append(g.notices, notice)
	return nil
}

func (g *recordingGateway) setFailSend(fail bool) {
	g.mu.Lock()
	g.failSend = fail
	g.mu.Unlock()
}

func (g *recordingGateway) lastPoll(t *testing.T) sentPoll {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.polls) == 0 {
		t.Fatalf("no poll sent")
	}
	return g.polls[len(g.polls)-1]
}

func (g *recordingGateway) pollCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.polls)
}

func (g *recordingGateway) lastNotice(t *testing.T) domain.Notice {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.notices) == 0 {
		t.Fatalf("no notice sent")
	}
	return g.notices[len(g.notices)-1]
}

func (g *recordingGateway) noticesOf(kind domain.NoticeKind) []domain.Notice {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []domain.Notice
	for _, n := range g.notices {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type harness struct {
	engine   *app.Engine
	sessions *memory.SessionStore
	store    *memory.StaticQuizStore
	gateway  *recordingGateway
	sched    *manualScheduler
}

func newHarness(t *testing.T, quizzes ...domain.Quiz) *harness {
	t.Helper()
	return newHarnessWithRepo(t, nil, quizzes...)
}

// newHarnessWithRepo lets wrap decorate the cached repository the engine uses.
func newHarnessWithRepo(t *testing.T, wrap func(app.QuizRepository) app.QuizRepository, quizzes ...domain.Quiz) *harness {
	t.Helper()
	byID := make(map[string]domain.Quiz, len(quizzes))
	for _, q := range quizzes {
		byID[q.ID] = q
	}
	h := &harness{
		sessions: memory.NewSessionStore(),
		store:    memory.NewStaticQuizStore(byID),
		gateway:  &recordingGateway{},
		sched:    &manualScheduler{},
	}
	var repo app.QuizRepository = memory.NewQuizRepository(h.store, 10*time.Minute)
	if wrap != nil {
		repo = wrap(repo)
	}
	clock := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	h.engine = app.NewEngine(h.sessions, repo, h.gateway, app.Options{
		Countdown:       3 * time.Second,
		GroupQuorum:     2,
		GroupStartDelay: time.Second,
		Scheduler:       h.sched,
		Rand:            rand.New(rand.NewSource(1)),
		Now: func() time.Time {
			clockMu.Lock()
			defer clockMu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
	})
	return h
}

func threeQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID:        "quiz-1",
		Title:     "Basics",
		TimeLimit: 10,
		Mixing:    domain.MixNone,
		Questions: []domain.Question{
			{Text: "2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: 1},
			{Text: "Capital of France?", Options: []string{"Lyon", "Paris"}, CorrectOption: 1},
			{Text: "Largest ocean?", Options: []string{"Atlantic", "Pacific", "Indian"}, CorrectOption: 1},
		},
	}
}

var (
	alice = domain.Identity{ID: 101, Username: "alice", FirstName: "Alice"}
	bob   = domain.Identity{ID: 202, FirstName: "Bob", LastName: "Stone"}
)

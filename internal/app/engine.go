package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/golang/glog"
	"quizbot-engine/internal/domain"
)

// QuizRepository loads quiz definitions and persists leaderboard entries.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// ReloadQuiz skips any cached copy so a deleted quiz is seen at once.
	ReloadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// CommitLeaderboardEntry rewrites the stored quiz with entry appended. It
	// returns domain.ErrEntryExists if the participant already has one.
	CommitLeaderboardEntry(ctx context.Context, quizID string, entry domain.LeaderboardEntry) error
}

// Gateway delivers questions and notices to chats.
type Gateway interface {
	// SendQuestion posts a poll and returns its reference for answer routing.
	SendQuestion(ctx context.Context, chatID int64, poll domain.Poll) (string, error)
	SendContent(ctx context.Context, chatID int64, content domain.PreQuestionContent) error
	Notify(ctx context.Context, chatID int64, notice domain.Notice) error
}

// Options tunes an Engine. A zero GroupQuorum falls back to
// DefaultGroupQuorum; zero delays start at once.
type Options struct {
	Countdown       time.Duration
	GroupQuorum     int
	GroupStartDelay time.Duration
	Scheduler       Scheduler
	Rand            *rand.Rand
	Now             func() time.Time
	// Context is handed to work triggered by timers.
	Context context.Context
}

const (
	DefaultCountdown       = 3 * time.Second
	DefaultGroupQuorum     = 2
	DefaultGroupStartDelay = time.Second
)

// Engine drives private and group quiz sessions from ready to finished.
type Engine struct {
	sessions SessionRepository
	quizzes  QuizRepository
	gateway  Gateway
	ranker   *Ranker
	sched    Scheduler
	now      func() time.Time
	bg       context.Context

	countdown  time.Duration
	quorum     int
	startDelay time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewEngine(sessions SessionRepository, quizzes QuizRepository, gateway Gateway, opts Options) *Engine {
	e := &Engine{
		sessions:   sessions,
		quizzes:    quizzes,
		gateway:    gateway,
		sched:      opts.Scheduler,
		now:        opts.Now,
		bg:         opts.Context,
		countdown:  opts.Countdown,
		quorum:     opts.GroupQuorum,
		startDelay: opts.GroupStartDelay,
		rng:        opts.Rand,
	}
	if e.sched == nil {
		e.sched = TimerScheduler{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.bg == nil {
		e.bg = context.Background()
	}
	if e.quorum <= 0 {
		e.quorum = DefaultGroupQuorum
	}
	if e.countdown < 0 {
		e.countdown = 0
	}
	if e.startDelay < 0 {
		e.startDelay = 0
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e.ranker = NewRanker(quizzes, e.now)
	return e
}

// Session returns a snapshot of the live session for key.
func (e *Engine) Session(key domain.SessionKey) (Snapshot, bool) {
	s, ok := e.sessions.Get(key)
	if !ok {
		return Snapshot{}, false
	}
	return s.Snapshot(), true
}

// StartOutcome describes the quiz a start request refers to.
type StartOutcome struct {
	QuizID      string `json:"quizId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Questions   int    `json:"questions"`
	TimeLimit   int    `json:"timeLimit"`
	Quorum      int    `json:"quorum,omitempty"`
	// Previous is set when a private start found an earlier attempt and
	// created no session.
	Previous *domain.Standing `json:"previous,omitempty"`
}

func outcomeFor(quiz domain.Quiz) StartOutcome {
	return StartOutcome{
		QuizID:      quiz.ID,
		Title:       quiz.Title,
		Description: quiz.Description,
		Questions:   len(quiz.Questions),
		TimeLimit:   quiz.TimeLimit,
	}
}

func (e *Engine) loadPlayable(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if len(quiz.Questions) == 0 || quiz.TimeLimit <= 0 {
		return domain.Quiz{}, domain.ErrEmptyQuiz
	}
	return quiz, nil
}

// OnAnswer routes an answer event to the session owning its poll. It reports
// whether the event changed any state; unknown, stale and duplicate answers
// are dropped.
func (e *Engine) OnAnswer(ctx context.Context, ev domain.AnswerEvent) bool {
	binding, ok := e.sessions.ResolvePoll(ev.PollRef)
	if !ok {
		glog.V(2).Infof("dropping answer from %d: unknown poll %q", ev.Participant.ID, ev.PollRef)
		return false
	}
	s, ok := e.sessions.Get(binding.Key)
	if !ok {
		glog.V(2).Infof("dropping answer for poll %q: session %v gone", ev.PollRef, binding.Key)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseQuestion || binding.Index != s.current || ev.Option < 0 {
		glog.V(2).Infof("dropping stale answer for %v question %d", binding.Key, binding.Index)
		return false
	}
	correct := s.questions[binding.Index].CorrectOption

	if s.key.Scope == domain.ScopeGroup {
		if s.pending == nil || s.pending.claimed.Load() {
			return false
		}
		return s.collector.Record(ev.Participant, binding.Index, ev.Option, correct)
	}

	if ev.Participant.ID != s.owner.ID || !s.pending.claim(binding.Index) {
		glog.V(2).Infof("dropping answer for %v question %d: already settled", binding.Key, binding.Index)
		return false
	}
	s.collector.Record(s.owner, binding.Index, ev.Option, correct)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.current++
	if err := e.stepLocked(ctx, s); err != nil {
		glog.Errorf("advance %v after answer: %v", s.key, err)
	}
	return true
}

// OnTimerFire settles question index of the session by deadline. A deadline
// that lost the race to an answer is a no-op.
func (e *Engine) OnTimerFire(ctx context.Context, key domain.SessionKey, index int) bool {
	s, ok := e.sessions.Get(key)
	if !ok {
		return false
	}
	return e.expire(ctx, s, index)
}

// expire is bound to the session pointer so a deadline of a removed session
// can never settle a newer session stored under the same key.
func (e *Engine) expire(ctx context.Context, s *Session, index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseQuestion || !s.pending.claim(index) {
		glog.V(2).Infof("dropping deadline for %v question %d: already settled", s.key, index)
		return false
	}
	s.timer = nil
	if s.key.Scope == domain.ScopePrivate {
		s.skipped++
	}
	s.current++
	if err := e.stepLocked(ctx, s); err != nil {
		glog.Errorf("advance %v after deadline: %v", s.key, err)
	}
	return true
}

// Stop ends a running session without touching the leaderboard.
func (e *Engine) Stop(ctx context.Context, key domain.SessionKey) error {
	s, ok := e.sessions.Get(key)
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseFinished {
		return domain.ErrSessionNotFound
	}
	e.teardownLocked(s)
	e.notify(ctx, s.key.ID, domain.Notice{Kind: domain.NoticeStopped, QuizID: s.quizID})
	return nil
}

// stepLocked sends the current question of s, or finishes the session once
// every question is settled. Failures abort the session.
func (e *Engine) stepLocked(ctx context.Context, s *Session) error {
	quiz, err := e.quizzes.ReloadQuiz(ctx, s.quizID)
	if err != nil {
		e.abortLocked(ctx, s, err)
		return err
	}
	if s.questions == nil {
		e.rngMu.Lock()
		s.questions = Sequence(quiz.Questions, quiz.Mixing, e.rng)
		e.rngMu.Unlock()
	}
	if s.current >= len(s.questions) {
		if s.key.Scope == domain.ScopeGroup {
			e.finishGroupLocked(ctx, s)
		} else {
			e.finishPrivateLocked(ctx, s)
		}
		return nil
	}
	if err := e.presentLocked(ctx, s, quiz); err != nil {
		e.abortLocked(ctx, s, err)
		return err
	}
	return nil
}

func (e *Engine) presentLocked(ctx context.Context, s *Session, quiz domain.Quiz) error {
	index := s.current
	q := s.questions[index]
	chatID := s.key.ID

	if pre := q.PreContent; pre != nil && (pre.Content != "" || pre.FileID != "") {
		if err := e.gateway.SendContent(ctx, chatID, *pre); err != nil {
			return fmt.Errorf("%w: send content for question %d: %w", domain.ErrTransport, index, err)
		}
	}

	ref, err := e.gateway.SendQuestion(ctx, chatID, domain.Poll{
		Text:       fmt.Sprintf("[%d/%d] %s", index+1, len(s.questions), q.Text),
		Options:    q.Options,
		Index:      index,
		Total:      len(s.questions),
		OpenPeriod: quiz.TimeLimit,
	})
	if err != nil {
		return fmt.Errorf("%w: send question %d: %w", domain.ErrTransport, index, err)
	}

	e.sessions.BindPoll(ref, PollBinding{Key: s.key, Index: index})
	s.pollRef = ref
	s.phase = PhaseQuestion
	s.pending = &settlement{index: index}

	s.armLocked(e.sched.Schedule(quiz.TimeLimitDuration(), func() {
		e.expire(e.bg, s, index)
	}))
	return nil
}

// teardownLocked releases the timer and removes s from the store.
func (e *Engine) teardownLocked(s *Session) {
	s.stopTimerLocked()
	s.phase = PhaseFinished
	e.sessions.Delete(s.key)
}

func (e *Engine) abortLocked(ctx context.Context, s *Session, cause error) {
	e.teardownLocked(s)
	glog.Errorf("aborting %v session for quiz %s at question %d: %v", s.key.Scope, s.quizID, s.current, cause)
	e.notify(ctx, s.key.ID, domain.Notice{Kind: domain.NoticeAborted, QuizID: s.quizID, Reason: cause.Error()})
}

func (e *Engine) notify(ctx context.Context, chatID int64, n domain.Notice) {
	if err := e.gateway.Notify(ctx, chatID, n); err != nil {
		glog.V(2).Infof("notice %s to %d not delivered: %v", n.Kind, chatID, err)
	}
}

// LeaderboardView is the public summary of a quiz leaderboard.
type LeaderboardView struct {
	QuizID       string                    `json:"quizId"`
	Title        string                    `json:"title"`
	Questions    int                       `json:"questions"`
	TimeLimit    int                       `json:"timeLimit"`
	Participants int                       `json:"participants"`
	Entries      []domain.LeaderboardEntry `json:"entries"`
}

// Leaderboard returns the top n ranked entries of a quiz.
func (e *Engine) Leaderboard(ctx context.Context, quizID string, n int) (LeaderboardView, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return LeaderboardView{}, err
	}
	return LeaderboardView{
		QuizID:       quiz.ID,
		Title:        quiz.Title,
		Questions:    len(quiz.Questions),
		TimeLimit:    quiz.TimeLimit,
		Participants: len(quiz.Leaderboard),
		Entries:      Top(quiz.Leaderboard, n),
	}, nil
}

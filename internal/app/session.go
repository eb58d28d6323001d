package app

import (
	"sync"
	"sync/atomic"
	"time"

	"quizbot-engine/internal/domain"
)

// SessionRepository abstracts where live sessions and their poll index are
// kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	// Create stores s unless a session already exists for its key; it returns
	// the stored session and whether s was inserted.
	Create(s *Session) (*Session, bool)
	Get(key domain.SessionKey) (*Session, bool)
	// Delete removes the session and every poll reference bound to it.
	Delete(key domain.SessionKey)
	BindPoll(ref string, binding PollBinding)
	ResolvePoll(ref string) (PollBinding, bool)
}

// PollBinding routes an outgoing poll back to its session and question.
type PollBinding struct {
	Key   domain.SessionKey `json:"key"`
	Index int               `json:"index"`
}

// Phase is a session's position in its state machine.
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseCollectingReady
	PhaseReady
	PhaseQuestion
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseCollectingReady:
		return "collecting_ready"
	case PhaseReady:
		return "ready"
	case PhaseQuestion:
		return "question"
	case PhaseFinished:
		return "finished"
	}
	return "unknown"
}

// settlement resolves question index exactly once, whichever of the answer
// and the deadline gets there first.
type settlement struct {
	index   int
	claimed atomic.Bool
}

func (s *settlement) claim(index int) bool {
	return s != nil && s.index == index && s.claimed.CompareAndSwap(false, true)
}

// Session is the live state of one private or group quiz run. All fields
// exist from creation; the private-only and group-only ones stay zero for the
// other scope.
type Session struct {
	mu sync.Mutex

	key    domain.SessionKey
	quizID string

	phase     Phase
	current   int
	questions []domain.Question
	collector *Collector
	timer     Timer
	pending   *settlement

	// private
	owner   domain.Identity
	skipped int

	// group
	ready   map[int64]struct{}
	started bool
	pollRef string
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(key domain.SessionKey, quizID string, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	s := &Session{
		key:       key,
		quizID:    quizID,
		phase:     PhaseCreated,
		collector: NewCollector(now),
		ready:     make(map[int64]struct{}),
	}
	if key.Scope == domain.ScopeGroup {
		s.phase = PhaseCollectingReady
	}
	return s
}

func (s *Session) Key() domain.SessionKey { return s.key }

func (s *Session) QuizID() string { return s.quizID }

// Snapshot is a read-only view of a session for callers and tests.
type Snapshot struct {
	Key      domain.SessionKey
	QuizID   string
	Phase    Phase
	Current  int
	Answered int
	Correct  int
	Skipped  int
	Ready    int
	Started  bool
	PollRef  string
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Key:     s.key,
		QuizID:  s.quizID,
		Phase:   s.phase,
		Current: s.current,
		Skipped: s.skipped,
		Ready:   len(s.ready),
		Started: s.started,
		PollRef: s.pollRef,
	}
	if p, ok := s.collector.Participant(s.owner.ID); ok && s.key.Scope == domain.ScopePrivate {
		snap.Answered = p.AnsweredCount()
		snap.Correct = p.Correct
	}
	return snap
}

// armLocked replaces the session's outstanding timer; callers hold s.mu.
func (s *Session) armLocked(t Timer) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = t
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.pending != nil {
		// Neutralize any in-flight answer or deadline for the open question.
		s.pending.claimed.Store(true)
	}
}

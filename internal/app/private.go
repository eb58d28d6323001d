package app

import (
	"context"
	"errors"

	"github.com/golang/glog"
	"quizbot-engine/internal/domain"
)

// StartPrivate opens a private session for who. Unless retake is set, a
// participant who already finished the quiz gets their earlier standing back
// and no session is created.
func (e *Engine) StartPrivate(ctx context.Context, who domain.Identity, quizID string, retake bool) (StartOutcome, error) {
	quiz, err := e.loadPlayable(ctx, quizID)
	if err != nil {
		return StartOutcome{}, err
	}
	out := outcomeFor(quiz)

	if !retake {
		if entry, ok := quiz.Entry(who.ID); ok {
			prev := standing(quiz.Leaderboard, entry, false)
			out.Previous = &prev
			return out, nil
		}
	}

	s := NewSession(domain.PrivateKey(who.ID), quizID, e.now)
	s.owner = who
	if _, created := e.sessions.Create(s); !created {
		return StartOutcome{}, domain.ErrSessionActive
	}
	glog.Infof("private session for %d on quiz %s created", who.ID, quizID)
	return out, nil
}

// MarkReady acknowledges the participant's ready prompt and arms the
// countdown to the first question. Repeated acknowledgments are no-ops.
func (e *Engine) MarkReady(ctx context.Context, participantID int64, quizID string) error {
	s, ok := e.sessions.Get(domain.PrivateKey(participantID))
	if !ok || s.quizID != quizID {
		return domain.ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseFinished:
		return domain.ErrSessionNotFound
	case PhaseCreated:
	default:
		return nil
	}
	s.phase = PhaseReady

	if e.countdown == 0 {
		return e.stepLocked(ctx, s)
	}
	e.notify(ctx, participantID, domain.Notice{
		Kind:    domain.NoticeCountdown,
		QuizID:  quizID,
		Seconds: int(e.countdown.Seconds()),
	})
	s.armLocked(e.sched.Schedule(e.countdown, func() {
		e.beginPrivate(e.bg, s)
	}))
	return nil
}

func (e *Engine) beginPrivate(ctx context.Context, s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseReady {
		return
	}
	s.timer = nil
	if err := e.stepLocked(ctx, s); err != nil {
		glog.Errorf("first question for %v: %v", s.key, err)
	}
}

func (e *Engine) finishPrivateLocked(ctx context.Context, s *Session) {
	total := len(s.questions)
	result := domain.Result{Participant: s.owner, SkippedQuestions: total}
	if p, ok := s.collector.Participant(s.owner.ID); ok {
		result.CorrectAnswers = p.Correct
		result.WrongAnswers = p.Wrong
		result.SkippedQuestions = total - p.AnsweredCount()
	}

	notice := domain.Notice{
		Kind:      domain.NoticeResults,
		QuizID:    s.quizID,
		Questions: total,
		Result:    &result,
	}
	st, err := e.ranker.Commit(ctx, s.quizID, result)
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		e.abortLocked(ctx, s, err)
		return
	case err != nil:
		glog.Errorf("commit result of %d on quiz %s: %v", s.owner.ID, s.quizID, err)
	default:
		notice.Standing = &st
	}
	e.teardownLocked(s)
	glog.Infof("private session for %d on quiz %s finished: %d correct, %d wrong, %d skipped",
		s.owner.ID, s.quizID, result.CorrectAnswers, result.WrongAnswers, result.SkippedQuestions)
	e.notify(ctx, s.key.ID, notice)
}

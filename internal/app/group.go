package app

import (
	"context"
	"errors"

	"github.com/golang/glog"
	"quizbot-engine/internal/domain"
)

// ReadyStatus reports quorum progress of a group session.
type ReadyStatus struct {
	Ready   int  `json:"ready"`
	Quorum  int  `json:"quorum"`
	Started bool `json:"started"`
}

// StartGroup opens a group session for chatID, or returns the one still
// collecting ready participants for the same quiz.
func (e *Engine) StartGroup(ctx context.Context, chatID int64, quizID string) (StartOutcome, error) {
	quiz, err := e.loadPlayable(ctx, quizID)
	if err != nil {
		return StartOutcome{}, err
	}

	stored, created := e.sessions.Create(NewSession(domain.GroupKey(chatID), quizID, e.now))
	if !created {
		stored.mu.Lock()
		busy := stored.started || stored.quizID != quizID || stored.phase == PhaseFinished
		stored.mu.Unlock()
		if busy {
			return StartOutcome{}, domain.ErrSessionActive
		}
	} else {
		glog.Infof("group session for chat %d on quiz %s created", chatID, quizID)
	}

	out := outcomeFor(quiz)
	out.Quorum = e.quorum
	return out, nil
}

// MarkGroupReady adds who to the ready set; reaching the quorum starts the
// broadcast. A participant confirming twice is counted once.
func (e *Engine) MarkGroupReady(ctx context.Context, chatID int64, quizID string, who domain.Identity) (ReadyStatus, error) {
	s, ok := e.sessions.Get(domain.GroupKey(chatID))
	if !ok || s.quizID != quizID {
		return ReadyStatus{}, domain.ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseFinished {
		return ReadyStatus{}, domain.ErrSessionNotFound
	}
	status := ReadyStatus{Quorum: e.quorum, Started: s.started}
	if s.started {
		status.Ready = len(s.ready)
		return status, nil
	}

	s.ready[who.ID] = struct{}{}
	status.Ready = len(s.ready)
	if status.Ready < e.quorum {
		e.notify(ctx, chatID, domain.Notice{
			Kind:   domain.NoticeReadyPending,
			QuizID: quizID,
			Ready:  status.Ready,
			Quorum: e.quorum,
		})
		return status, nil
	}

	s.started = true
	status.Started = true
	e.notify(ctx, chatID, domain.Notice{
		Kind:    domain.NoticeStarted,
		QuizID:  quizID,
		Ready:   status.Ready,
		Quorum:  e.quorum,
		Seconds: int(e.startDelay.Seconds()),
	})

	if e.startDelay == 0 {
		return status, e.stepLocked(ctx, s)
	}
	s.armLocked(e.sched.Schedule(e.startDelay, func() {
		e.beginGroup(e.bg, s)
	}))
	return status, nil
}

func (e *Engine) beginGroup(ctx context.Context, s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.phase != PhaseCollectingReady {
		return
	}
	s.timer = nil
	if err := e.stepLocked(ctx, s); err != nil {
		glog.Errorf("first broadcast for %v: %v", s.key, err)
	}
}

func (e *Engine) finishGroupLocked(ctx context.Context, s *Session) {
	total := len(s.questions)
	results := s.collector.Results(total)
	for _, r := range results {
		_, err := e.ranker.Commit(ctx, s.quizID, r)
		if errors.Is(err, domain.ErrQuizNotFound) {
			e.abortLocked(ctx, s, err)
			return
		}
		if err != nil {
			glog.Errorf("commit group result of %d on quiz %s: %v", r.Participant.ID, s.quizID, err)
		}
	}
	e.teardownLocked(s)
	glog.Infof("group session for chat %d on quiz %s finished with %d participants", s.key.ID, s.quizID, len(results))
	e.notify(ctx, s.key.ID, domain.Notice{
		Kind:      domain.NoticeGroupResults,
		QuizID:    s.quizID,
		Questions: total,
		Standings: results,
	})
}

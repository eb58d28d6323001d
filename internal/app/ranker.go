package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"quizbot-engine/internal/domain"
)

// Ranker commits finished results to a quiz leaderboard and ranks them.
type Ranker struct {
	quizzes QuizRepository
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*quizLock
}

// quizLock serializes commits to one quiz; refs counts holders and waiters.
type quizLock struct {
	sync.Mutex
	refs int
}

func NewRanker(quizzes QuizRepository, now func() time.Time) *Ranker {
	if now == nil {
		now = time.Now
	}
	return &Ranker{
		quizzes: quizzes,
		now:     now,
		locks:   make(map[string]*quizLock),
	}
}

// Commit appends result to the quiz leaderboard unless the participant
// already has an entry; retakes never overwrite the first attempt.
func (r *Ranker) Commit(ctx context.Context, quizID string, result domain.Result) (domain.Standing, error) {
	r.lock(quizID)
	defer r.unlock(quizID)

	quiz, err := r.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Standing{}, err
	}

	pid := result.Participant.ID
	if existing, ok := quiz.Entry(pid); ok {
		return standing(quiz.Leaderboard, existing, false), nil
	}

	entry := domain.LeaderboardEntry{
		ParticipantID:    pid,
		Username:         result.Participant.Username,
		FirstName:        result.Participant.FirstName,
		LastName:         result.Participant.LastName,
		CorrectAnswers:   result.CorrectAnswers,
		WrongAnswers:     result.WrongAnswers,
		SkippedQuestions: result.SkippedQuestions,
		Timestamp:        r.now(),
	}
	err = r.quizzes.CommitLeaderboardEntry(ctx, quizID, entry)
	switch {
	case errors.Is(err, domain.ErrEntryExists):
		// The cached definition was stale; reload to rank against the stored entry.
		fresh, ferr := r.quizzes.GetQuiz(ctx, quizID)
		if ferr != nil {
			return domain.Standing{}, ferr
		}
		if existing, ok := fresh.Entry(pid); ok {
			return standing(fresh.Leaderboard, existing, false), nil
		}
		return domain.Standing{}, fmt.Errorf("commit leaderboard entry: %w", err)
	case err != nil:
		return domain.Standing{}, fmt.Errorf("commit leaderboard entry: %w", err)
	}

	entries := append(append([]domain.LeaderboardEntry(nil), quiz.Leaderboard...), entry)
	return standing(entries, entry, true), nil
}

// Standing looks up participantID on a quiz leaderboard without writing.
func (r *Ranker) Standing(ctx context.Context, quizID string, participantID int64) (domain.Standing, bool, error) {
	quiz, err := r.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Standing{}, false, err
	}
	entry, ok := quiz.Entry(participantID)
	if !ok {
		return domain.Standing{}, false, nil
	}
	return standing(quiz.Leaderboard, entry, false), true, nil
}

func (r *Ranker) lock(quizID string) {
	r.mu.Lock()
	l, ok := r.locks[quizID]
	if !ok {
		l = &quizLock{}
		r.locks[quizID] = l
	}
	l.refs++
	r.mu.Unlock()
	l.Lock()
}

// unlock releases quizID and forgets its lock once nobody holds or awaits it.
func (r *Ranker) unlock(quizID string) {
	r.mu.Lock()
	l := r.locks[quizID]
	l.refs--
	if l.refs == 0 {
		delete(r.locks, quizID)
	}
	r.mu.Unlock()
	l.Unlock()
}

func standing(entries []domain.LeaderboardEntry, entry domain.LeaderboardEntry, recorded bool) domain.Standing {
	rank, _ := Rank(entries, entry.ParticipantID)
	return domain.Standing{
		Entry:    entry,
		Rank:     rank,
		Total:    len(entries),
		Recorded: recorded,
	}
}

// Ranked returns a copy of entries ordered by correct answers, earliest
// completion first among equals.
func Ranked(entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	out := append([]domain.LeaderboardEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CorrectAnswers != out[j].CorrectAnswers {
			return out[i].CorrectAnswers > out[j].CorrectAnswers
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Rank returns the 1-based position of participantID, or false if absent.
func Rank(entries []domain.LeaderboardEntry, participantID int64) (int, bool) {
	for i, e := range Ranked(entries) {
		if e.ParticipantID == participantID {
			return i + 1, true
		}
	}
	return 0, false
}

// Top returns at most n ranked entries.
func Top(entries []domain.LeaderboardEntry, n int) []domain.LeaderboardEntry {
	ranked := Ranked(entries)
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

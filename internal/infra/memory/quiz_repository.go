package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quizbot-engine/internal/domain"
)

// QuizStore is the backing store of quiz definitions (e.g., document DB).
type QuizStore interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// AppendLeaderboardEntry rewrites the quiz with entry appended, or
	// returns domain.ErrEntryExists.
	AppendLeaderboardEntry(ctx context.Context, quizID string, entry domain.LeaderboardEntry) error
}

// QuizRepository caches quizzes with TTL to avoid repeated DB hits.
type QuizRepository struct {
	store QuizStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizRepository(store QuizStore, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		store: store,
		ttl:   ttl,
		clock: time.Now,
		cache: make(map[string]cachedQuiz),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.quiz, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.quiz, nil
		}
		r.mu.RUnlock()

		quiz, err := r.store.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		r.mu.Lock()
		r.cache[quizID] = cachedQuiz{
			quiz:      quiz,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// ReloadQuiz evicts quizID and reads it from the store.
func (r *QuizRepository) ReloadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	r.Invalidate(quizID)
	return r.GetQuiz(ctx, quizID)
}

// CommitLeaderboardEntry writes through to the store and drops the cached copy.
func (r *QuizRepository) CommitLeaderboardEntry(ctx context.Context, quizID string, entry domain.LeaderboardEntry) error {
	err := r.store.AppendLeaderboardEntry(ctx, quizID, entry)
	r.Invalidate(quizID)
	return err
}

// Invalidate evicts quizID so the next read goes to the store.
func (r *QuizRepository) Invalidate(quizID string) {
	r.mu.Lock()
	delete(r.cache, quizID)
	r.mu.Unlock()
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(rand.Int63n(jitterMax+1))
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quizbot-engine/internal/domain"
)

// QuizStore is the backing store of quiz definitions (e.g., document DB).
type QuizStore interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	AppendLeaderboardEntry(ctx context.Context, quizID string, entry domain.LeaderboardEntry) error
}

// QuizRepository caches quiz definitions in Redis and falls back to the store on cache miss.
// Definitions are stored as JSON: SET quiz:def:{quizID} {json} EX ttl
// A leaderboard commit writes through to the store and deletes the cached copy.
type QuizRepository struct {
	client *redis.Client
	store  QuizStore
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuizRepository(client *redis.Client, store QuizStore, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		store:  store,
		ttl:    ttl,
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := r.store.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		if raw, err := json.Marshal(quiz); err == nil {
			if err := r.client.Set(ctx, r.quizKey(quizID), raw, r.ttlWithJitter()).Err(); err != nil {
				glog.V(2).Infof("cache quiz %s: %v", quizID, err)
			}
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// ReloadQuiz drops the cached copy and reads the store.
func (r *QuizRepository) ReloadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if err := r.client.Del(ctx, r.quizKey(quizID)).Err(); err != nil {
		glog.V(2).Infof("evict quiz %s: %v", quizID, err)
	}
	return r.GetQuiz(ctx, quizID)
}

func (r *QuizRepository) CommitLeaderboardEntry(ctx context.Context, quizID string, entry domain.LeaderboardEntry) error {
	err := r.store.AppendLeaderboardEntry(ctx, quizID, entry)
	if delErr := r.client.Del(ctx, r.quizKey(quizID)).Err(); delErr != nil {
		glog.Errorf("evict quiz %s: %v", quizID, delErr)
	}
	return err
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, r.quizKey(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			glog.V(2).Infof("read cached quiz %s: %v", quizID, err)
		}
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		glog.Errorf("decode cached quiz %s: %v", quizID, err)
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (r *QuizRepository) quizKey(quizID string) string {
	return "quiz:def:" + quizID
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(rand.Int63n(jitterMax+1))
}

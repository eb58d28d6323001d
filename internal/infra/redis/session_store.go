package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"quizbot-engine/internal/app"
	"quizbot-engine/internal/domain"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Sessions hold timers and locks, so they live in a local map; Redis only
//     marks liveness and mirrors the poll index for operators and restarts.
//   - Poll lookups are answered locally; a poll only known to Redis belongs to
//     a session this process no longer owns and resolves to not found.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[domain.SessionKey]*app.Session
	polls    map[string]app.PollBinding
	refs     map[domain.SessionKey][]string
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[domain.SessionKey]*app.Session),
		polls:    make(map[string]app.PollBinding),
		refs:     make(map[domain.SessionKey][]string),
	}
}

func (s *SessionStore) Create(session *app.Session) (*app.Session, bool) {
	key := session.Key()
	s.mu.Lock()
	if existing, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		return existing, false
	}
	s.sessions[key] = session
	s.mu.Unlock()

	// best-effort liveness marker
	if err := s.client.Set(context.Background(), s.key(key), session.QuizID(), s.ttl).Err(); err != nil {
		glog.V(2).Infof("mark session %v live: %v", key, err)
	}
	return session, true
}

func (s *SessionStore) Get(key domain.SessionKey) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[key]
	return session, ok
}

// Delete drops the session locally, then clears its Redis markers outside the
// lock so answer routing never waits on Redis.
func (s *SessionStore) Delete(key domain.SessionKey) {
	s.mu.Lock()
	delete(s.sessions, key)
	refs := s.refs[key]
	for _, ref := range refs {
		delete(s.polls, ref)
	}
	delete(s.refs, key)
	s.mu.Unlock()

	ctx := context.Background()
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(key))
	if len(refs) > 0 {
		pipe.HDel(ctx, pollIndexKey, refs...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		glog.V(2).Infof("clear session %v markers: %v", key, err)
	}
}

func (s *SessionStore) BindPoll(ref string, binding app.PollBinding) {
	s.mu.Lock()
	if _, ok := s.sessions[binding.Key]; !ok {
		s.mu.Unlock()
		return
	}
	s.polls[ref] = binding
	s.refs[binding.Key] = append(s.refs[binding.Key], ref)
	s.mu.Unlock()

	raw, err := json.Marshal(binding)
	if err != nil {
		return
	}
	ctx := context.Background()
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, pollIndexKey, ref, raw)
	pipe.Expire(ctx, s.key(binding.Key), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		glog.V(2).Infof("mirror poll %s: %v", ref, err)
	}
}

func (s *SessionStore) ResolvePoll(ref string) (app.PollBinding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	binding, ok := s.polls[ref]
	return binding, ok
}

const pollIndexKey = "quiz:polls"

func (s *SessionStore) key(key domain.SessionKey) string {
	return "quiz:session:" + string(key.Scope) + ":" + strconv.FormatInt(key.ID, 10)
}

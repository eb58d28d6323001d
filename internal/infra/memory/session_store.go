package memory

import (
	"sync"

	"quizbot-engine/internal/app"
	"quizbot-engine/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionKey]*app.Session
	polls    map[string]app.PollBinding
	refs     map[domain.SessionKey][]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionKey]*app.Session),
		polls:    make(map[string]app.PollBinding),
		refs:     make(map[domain.SessionKey][]string),
	}
}

func (s *SessionStore) Create(session *app.Session) (*app.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[session.Key()]; ok {
		return existing, false
	}
	s.sessions[session.Key()] = session
	return session, true
}

func (s *SessionStore) Get(key domain.SessionKey) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[key]
	return session, ok
}

func (s *SessionStore) Delete(key domain.SessionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	for _, ref := range s.refs[key] {
		delete(s.polls, ref)
	}
	delete(s.refs, key)
}

func (s *SessionStore) BindPoll(ref string, binding app.PollBinding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[binding.Key]; !ok {
		return
	}
	s.polls[ref] = binding
	s.refs[binding.Key] = append(s.refs[binding.Key], ref)
}

func (s *SessionStore) ResolvePoll(ref string) (app.PollBinding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	binding, ok := s.polls[ref]
	return binding, ok
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

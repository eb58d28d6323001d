package memory

import (
	"context"
	"sync"

	"quizbot-engine/internal/domain"
)

// StaticQuizStore keeps quiz definitions in a map (useful for tests/demos).
type StaticQuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewStaticQuizStore(quizzes map[string]domain.Quiz) *StaticQuizStore {
	copied := make(map[string]domain.Quiz, len(quizzes))
	for id, q := range quizzes {
		copied[id] = q
	}
	return &StaticQuizStore{quizzes: copied}
}

func (s *StaticQuizStore) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if quiz, ok := s.quizzes[quizID]; ok {
		quiz.Leaderboard = append([]domain.LeaderboardEntry(nil), quiz.Leaderboard...)
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (s *StaticQuizStore) AppendLeaderboardEntry(_ context.Context, quizID string, entry domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if _, exists := quiz.Entry(entry.ParticipantID); exists {
		return domain.ErrEntryExists
	}
	quiz.Leaderboard = append(append([]domain.LeaderboardEntry(nil), quiz.Leaderboard...), entry)
	s.quizzes[quizID] = quiz
	return nil
}

// Remove deletes a quiz definition.
func (s *StaticQuizStore) Remove(quizID string) {
	s.mu.Lock()
	delete(s.quizzes, quizID)
	s.mu.Unlock()
}

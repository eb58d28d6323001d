package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quizbot-engine/internal/domain"
)

// QuizStore keeps quiz definitions as JSONB documents in Postgres.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return decodeQuiz(raw)
}

// AppendLeaderboardEntry rewrites the whole quiz document with entry appended.
// The row is locked for the read-modify-write so concurrent completions of
// the same quiz cannot lose entries.
func (s *QuizStore) AppendLeaderboardEntry(ctx context.Context, quizID string, entry domain.LeaderboardEntry) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1 FOR UPDATE`, quizID).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrQuizNotFound
		}
		if err != nil {
			return fmt.Errorf("lock quiz: %w", err)
		}
		quiz, err := decodeQuiz(raw)
		if err != nil {
			return err
		}
		if _, ok := quiz.Entry(entry.ParticipantID); ok {
			return domain.ErrEntryExists
		}
		quiz.Leaderboard = append(quiz.Leaderboard, entry)

		data, err := json.Marshal(quiz)
		if err != nil {
			return fmt.Errorf("marshal quiz: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE quizzes SET data=$2, updated_at=now() WHERE id=$1`, quizID, data); err != nil {
			return fmt.Errorf("save quiz: %w", err)
		}
		return nil
	})
}

// SaveQuiz inserts or replaces a quiz definition.
func (s *QuizStore) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO quizzes (id, creator, data) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET creator=EXCLUDED.creator, data=EXCLUDED.data, updated_at=now()`,
		quiz.ID, quiz.Creator, data)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

func decodeQuiz(raw []byte) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}

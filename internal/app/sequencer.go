package app

import (
	"math/rand"

	"quizbot-engine/internal/domain"
)

// Sequence returns the question list one session will present. Option order
// is permuted together with CorrectOption so the correct index keeps pointing
// at the same option. The input slice is never modified.
func Sequence(questions []domain.Question, mode domain.MixingMode, rng *rand.Rand) []domain.Question {
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		out[i] = copyQuestion(q)
	}

	if mode.ShufflesQuestions() {
		for i := len(out) - 1; i > 0; i-- {
			j := rng.Intn(i + 1)
			out[i], out[j] = out[j], out[i]
		}
	}
	if mode.ShufflesAnswers() {
		for i := range out {
			shuffleOptions(&out[i], rng)
		}
	}
	return out
}

func shuffleOptions(q *domain.Question, rng *rand.Rand) {
	// order[k] is the original position of the option now at k.
	order := make([]int, len(q.Options))
	for k := range order {
		order[k] = k
	}
	for i := len(order) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}

	options := make([]string, len(order))
	correct := q.CorrectOption
	for k, orig := range order {
		options[k] = q.Options[orig]
		if orig == q.CorrectOption {
			correct = k
		}
	}
	q.Options = options
	q.CorrectOption = correct
}

func copyQuestion(q domain.Question) domain.Question {
	c := q
	c.Options = append([]string(nil), q.Options...)
	if q.PreContent != nil {
		pre := *q.PreContent
		c.PreContent = &pre
	}
	return c
}

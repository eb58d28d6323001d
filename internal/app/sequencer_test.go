package app_test

import (
	"math/rand"
	"reflect"
	"testing"

	"quizbot-engine/internal/app"
	"quizbot-engine/internal/domain"
)

func manyQuestions() []domain.Question {
	qs := make([]domain.Question, 0, 8)
	for i := 0; i < 8; i++ {
		qs = append(qs, domain.Question{
			Text:          string(rune('A' + i)),
			Options:       []string{"w", "x", "y", "z"},
			CorrectOption: i % 4,
		})
	}
	return qs
}

func TestSequenceNoneKeepsOrder(t *testing.T) {
	in := manyQuestions()
	out := app.Sequence(in, domain.MixNone, rand.New(rand.NewSource(7)))
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("expected unchanged questions")
	}
	out[0].Options[0] = "changed"
	if in[0].Options[0] != "w" {
		t.Fatalf("sequence must not alias the definition")
	}
}

func TestSequenceAnswersKeepsCorrectOption(t *testing.T) {
	in := manyQuestions()
	out := app.Sequence(in, domain.MixAnswers, rand.New(rand.NewSource(7)))

	for i, q := range out {
		if q.Text != in[i].Text {
			t.Fatalf("answer mixing must keep question order")
		}
		want := in[i].Options[in[i].CorrectOption]
		if got := q.Options[q.CorrectOption]; got != want {
			t.Fatalf("question %s: correct option moved from %q to %q", q.Text, want, got)
		}
		if len(q.Options) != len(in[i].Options) {
			t.Fatalf("options lost")
		}
	}
	if !reflect.DeepEqual(in, manyQuestions()) {
		t.Fatalf("input modified")
	}
}

func TestSequenceQuestionsIsPermutation(t *testing.T) {
	in := manyQuestions()
	out := app.Sequence(in, domain.MixBoth, rand.New(rand.NewSource(3)))

	seen := make(map[string]domain.Question, len(in))
	for _, q := range out {
		seen[q.Text] = q
	}
	if len(seen) != len(in) {
		t.Fatalf("expected a permutation, got %d distinct questions", len(seen))
	}
	for _, q := range in {
		got, ok := seen[q.Text]
		if !ok {
			t.Fatalf("question %s missing", q.Text)
		}
		if got.Options[got.CorrectOption] != q.Options[q.CorrectOption] {
			t.Fatalf("question %s: correct option lost", q.Text)
		}
	}
}

func TestSequenceIsDeterministicPerSeed(t *testing.T) {
	a := app.Sequence(manyQuestions(), domain.MixBoth, rand.New(rand.NewSource(42)))
	b := app.Sequence(manyQuestions(), domain.MixBoth, rand.New(rand.NewSource(42)))
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different sequences")
	}
}

func TestSequenceBothPermutesQuestionsAndOptions(t *testing.T) {
	in := manyQuestions()
	movedQuestions, movedOptions := false, false
	for seed := int64(1); seed <= 20; seed++ {
		out := app.Sequence(in, domain.MixBoth, rand.New(rand.NewSource(seed)))
		for i, q := range out {
			if q.Text != in[i].Text {
				movedQuestions = true
			}
			if !reflect.DeepEqual(q.Options, in[0].Options) {
				movedOptions = true
			}
			if q.Options[q.CorrectOption] != in[0].Options[int(q.Text[0]-'A')%4] {
				t.Fatalf("seed %d question %s: correct option lost", seed, q.Text)
			}
		}
	}
	if !movedQuestions || !movedOptions {
		t.Fatalf("expected both questions and options to move, questions=%v options=%v", movedQuestions, movedOptions)
	}
}

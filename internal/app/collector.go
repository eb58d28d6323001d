package app

import (
	"sort"
	"time"

	"quizbot-engine/internal/domain"
)

// Collector keeps per-participant answer tallies for one session. It is not
// safe for concurrent use; the owning session serializes access.
type Collector struct {
	now          func() time.Time
	participants map[int64]*domain.Participant
	order        []int64
}

func NewCollector(now func() time.Time) *Collector {
	if now == nil {
		now = time.Now
	}
	return &Collector{
		now:          now,
		participants: make(map[int64]*domain.Participant),
	}
}

// Record scores selected against correct for question index. Only the first
// answer per participant and index counts; later calls return false.
func (c *Collector) Record(who domain.Identity, index, selected, correct int) bool {
	p, ok := c.participants[who.ID]
	if !ok {
		p = &domain.Participant{
			Identity:    who,
			Answered:    make(map[int]struct{}),
			FirstAnswer: c.now(),
		}
		c.participants[who.ID] = p
		c.order = append(c.order, who.ID)
	}
	if _, seen := p.Answered[index]; seen {
		return false
	}
	p.Answered[index] = struct{}{}
	if selected == correct {
		p.Correct++
	} else {
		p.Wrong++
	}
	return true
}

// Participant returns the tally for id.
func (c *Collector) Participant(id int64) (*domain.Participant, bool) {
	p, ok := c.participants[id]
	return p, ok
}

// Results turns every participant with at least one answer into a result
// for a quiz of total questions, best first.
func (c *Collector) Results(total int) []domain.Result {
	participants := make([]*domain.Participant, 0, len(c.order))
	for _, id := range c.order {
		if p := c.participants[id]; p.AnsweredCount() > 0 {
			participants = append(participants, p)
		}
	}
	sort.SliceStable(participants, func(i, j int) bool {
		if participants[i].Correct != participants[j].Correct {
			return participants[i].Correct > participants[j].Correct
		}
		return participants[i].FirstAnswer.Before(participants[j].FirstAnswer)
	})

	results := make([]domain.Result, 0, len(participants))
	for _, p := range participants {
		results = append(results, domain.Result{
			Participant:      p.Identity,
			CorrectAnswers:   p.Correct,
			WrongAnswers:     p.Wrong,
			SkippedQuestions: total - (p.Correct + p.Wrong),
		})
	}
	return results
}

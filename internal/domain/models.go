package domain

import (
	"strings"
	"time"
)

// MixingMode is the permutation policy applied before a quiz is presented.
type MixingMode string

const (
	MixNone      MixingMode = "none"
	MixQuestions MixingMode = "questions"
	MixAnswers   MixingMode = "answers"
	MixBoth      MixingMode = "both"
)

// ShufflesQuestions reports whether question order is permuted.
func (m MixingMode) ShufflesQuestions() bool {
	return m == MixQuestions || m == MixBoth
}

// ShufflesAnswers reports whether option order is permuted.
func (m MixingMode) ShufflesAnswers() bool {
	return m == MixAnswers || m == MixBoth
}

// ContentType tags pre-question content.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentPhoto    ContentType = "photo"
	ContentDocument ContentType = "document"
	ContentVideo    ContentType = "video"
	ContentAudio    ContentType = "audio"
	ContentUnknown  ContentType = "unknown"
)

// PreQuestionContent is text or media shown before a question's poll.
type PreQuestionContent struct {
	Type    ContentType `json:"type"`
	Content string      `json:"content,omitempty"`
	FileID  string      `json:"fileId,omitempty"`
}

// Question is a single-choice question; CorrectOption indexes Options.
type Question struct {
	Text          string              `json:"question"`
	Options       []string            `json:"options"`
	CorrectOption int                 `json:"correctAnswer"`
	PreContent    *PreQuestionContent `json:"preQuestionContent,omitempty"`
}

// Quiz is the definition produced by the authoring flow. The engine only
// ever appends to Leaderboard.
type Quiz struct {
	ID          string             `json:"id"`
	Creator     int64              `json:"creator,omitempty"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Questions   []Question         `json:"questions"`
	TimeLimit   int                `json:"timeLimit"` // seconds per question
	Mixing      MixingMode         `json:"mixing,omitempty"`
	Leaderboard []LeaderboardEntry `json:"leaderboard,omitempty"`
}

// TimeLimitDuration returns the per-question deadline.
func (q Quiz) TimeLimitDuration() time.Duration {
	return time.Duration(q.TimeLimit) * time.Second
}

// Entry returns the leaderboard entry recorded for participantID, if any.
func (q Quiz) Entry(participantID int64) (LeaderboardEntry, bool) {
	for _, e := range q.Leaderboard {
		if e.ParticipantID == participantID {
			return e, true
		}
	}
	return LeaderboardEntry{}, false
}

// Identity is the display identity of a chat participant.
type Identity struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// DisplayName prefers the @username, then the full name.
func (i Identity) DisplayName() string {
	if i.Username != "" {
		return "@" + i.Username
	}
	name := strings.TrimSpace(i.FirstName + " " + i.LastName)
	if name == "" {
		return "Anonymous"
	}
	return name
}

// Participant is a group participant's running tally.
type Participant struct {
	Identity
	Correct  int
	Wrong    int
	Answered map[int]struct{}
	// FirstAnswer orders participants with equal scores.
	FirstAnswer time.Time
}

// AnsweredCount is the number of distinct questions answered.
func (p *Participant) AnsweredCount() int {
	return len(p.Answered)
}

// LeaderboardEntry is one participant's first completed attempt of a quiz.
type LeaderboardEntry struct {
	ParticipantID    int64     `json:"chatId"`
	Username         string    `json:"username,omitempty"`
	FirstName        string    `json:"firstName,omitempty"`
	LastName         string    `json:"lastName,omitempty"`
	CorrectAnswers   int       `json:"correctAnswers"`
	WrongAnswers     int       `json:"wrongAnswers"`
	SkippedQuestions int       `json:"skippedQuestions"`
	Timestamp        time.Time `json:"timestamp"`
}

// Identity rebuilds the participant identity stored on the entry.
func (e LeaderboardEntry) Identity() Identity {
	return Identity{ID: e.ParticipantID, Username: e.Username, FirstName: e.FirstName, LastName: e.LastName}
}

// Result is a finished participant's tally handed to the leaderboard.
type Result struct {
	Participant      Identity `json:"participant"`
	CorrectAnswers   int      `json:"correctAnswers"`
	WrongAnswers     int      `json:"wrongAnswers"`
	SkippedQuestions int      `json:"skippedQuestions"`
}

// Answered is the number of questions that received an answer.
func (r Result) Answered() int {
	return r.CorrectAnswers + r.WrongAnswers
}

// Standing is a participant's position on a quiz leaderboard.
type Standing struct {
	Entry LeaderboardEntry `json:"entry"`
	Rank  int              `json:"rank"`
	Total int              `json:"total"`
	// Recorded is false when an earlier attempt already held the slot.
	Recorded bool `json:"recorded"`
}

// Scope distinguishes private sessions (keyed by participant) from group
// sessions (keyed by chat).
type Scope string

const (
	ScopePrivate Scope = "private"
	ScopeGroup   Scope = "group"
)

// SessionKey identifies a live session.
type SessionKey struct {
	Scope Scope `json:"scope"`
	ID    int64 `json:"id"`
}

func PrivateKey(participantID int64) SessionKey {
	return SessionKey{Scope: ScopePrivate, ID: participantID}
}

func GroupKey(chatID int64) SessionKey {
	return SessionKey{Scope: ScopeGroup, ID: chatID}
}

// Poll is an outgoing question as the messaging gateway sees it.
type Poll struct {
	Text       string   `json:"question"`
	Options    []string `json:"options"`
	Index      int      `json:"index"`
	Total      int      `json:"total"`
	OpenPeriod int      `json:"openPeriod"` // seconds
}

// AnswerEvent is an inbound poll answer.
type AnswerEvent struct {
	PollRef     string
	Participant Identity
	Option      int
}

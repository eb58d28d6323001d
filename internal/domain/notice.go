package domain

// NoticeKind tags an engine notice sent to a chat.
type NoticeKind string

const (
	NoticeCountdown    NoticeKind = "countdown"
	NoticeReadyPending NoticeKind = "ready_pending"
	NoticeStarted      NoticeKind = "started"
	NoticeResults      NoticeKind = "results"
	NoticeGroupResults NoticeKind = "group_results"
	NoticeAborted      NoticeKind = "aborted"
	NoticeStopped      NoticeKind = "stopped"
)

// Notice carries structured state for the chat; rendering belongs to the transport.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	QuizID    string     `json:"quizId"`
	Seconds   int        `json:"seconds,omitempty"`
	Ready     int        `json:"ready,omitempty"`
	Quorum    int        `json:"quorum,omitempty"`
	Questions int        `json:"questions,omitempty"`
	Standing  *Standing  `json:"standing,omitempty"`
	Result    *Result    `json:"result,omitempty"`
	Standings []Result   `json:"standings,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

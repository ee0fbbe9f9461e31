package domain

import "time"

// Status is the lifecycle phase of the quiz.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusLive     Status = "LIVE"
	StatusFinished Status = "FINISHED"
)

// QuestionKind distinguishes how a question is answered and scored.
type QuestionKind string

const (
	MultipleChoice QuestionKind = "MCQ"
	FreeText       QuestionKind = "TEXT"
)

// DefaultTimeLimit applies when a question carries no explicit limit.
const DefaultTimeLimit = 15 * time.Second

// Question is a single quiz question. CorrectIndex is meaningful for
// MultipleChoice, CorrectAnswer for FreeText.
type Question struct {
	ID            string       `json:"id"`
	Prompt        string       `json:"prompt"`
	Kind          QuestionKind `json:"kind"`
	Options       []string     `json:"options,omitempty"`
	CorrectIndex  int          `json:"correctIndex"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	TimeLimitSec  int          `json:"timeLimit"`
	Points        int          `json:"points"`
	Penalty       int          `json:"penalty"`
}

// TimeLimit returns the question's window length, falling back to the default
// for zero or negative limits.
func (q Question) TimeLimit() time.Duration {
	if q.TimeLimitSec <= 0 {
		return DefaultTimeLimit
	}
	return time.Duration(q.TimeLimitSec) * time.Second
}

// QuestionSet is a reusable bundle of questions kept in the question bank.
type QuestionSet struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// QuestionUpdate carries a partial edit; nil fields are left untouched.
type QuestionUpdate struct {
	Prompt        *string       `json:"prompt,omitempty"`
	Kind          *QuestionKind `json:"kind,omitempty"`
	Options       *[]string     `json:"options,omitempty"`
	CorrectIndex  *int          `json:"correctIndex,omitempty"`
	CorrectAnswer *string       `json:"correctAnswer,omitempty"`
	TimeLimitSec  *int          `json:"timeLimit,omitempty"`
	Points        *int          `json:"points,omitempty"`
	Penalty       *int          `json:"penalty,omitempty"`
}

// TimelineEntry is the absolute wall-clock window assigned to one question.
type TimelineEntry struct {
	QuestionID string    `json:"questionId"`
	StartAt    time.Time `json:"startAt"`
	EndAt      time.Time `json:"endAt"`
}

// Player is a quiz participant. SocketID is a connectivity marker only;
// players are never deleted, only marked disconnected.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	SocketID string `json:"-"`
}

// Connected reports whether the player currently has a live connection.
func (p Player) Connected() bool { return p.SocketID != "" }

// AnswerRecord is one player's answer to one question. Scored flips true
// exactly once, which keeps lock-and-score idempotent.
type AnswerRecord struct {
	Kind        QuestionKind `json:"kind"`
	Choice      int          `json:"choice,omitempty"`
	Text        string       `json:"text,omitempty"`
	SubmittedAt time.Time    `json:"submittedAt"`
	LockedAt    time.Time    `json:"lockedAt,omitempty"`
	Scored      bool         `json:"scored"`
}

// AnswerHistory maps question ID to the frozen answers of each player.
type AnswerHistory map[string]map[string]*AnswerRecord

// PersistedPlayer is the reduced player form written to storage.
type PersistedPlayer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// PersistedState is the durable subset of the quiz state. Timers and the
// per-player throttle map are rearmed or rebuilt on load, never stored.
type PersistedState struct {
	Status               Status                  `json:"status"`
	HostID               string                  `json:"hostId,omitempty"`
	CurrentQuestionIndex int                     `json:"currentQuestionIndex"`
	QuestionStartAt      time.Time               `json:"questionStartAt,omitempty"`
	QuestionEndAt        time.Time               `json:"questionEndAt,omitempty"`
	AnswerLocked         bool                    `json:"answerLocked"`
	Players              []PersistedPlayer       `json:"players"`
	Questions            []Question              `json:"questions"`
	Timeline             []TimelineEntry         `json:"timeline"`
	QuizStartAt          time.Time               `json:"quizStartAt,omitempty"`
	QuizEndAt            time.Time               `json:"quizEndAt,omitempty"`
	CurrentAnswers       map[string]AnswerRecord `json:"currentAnswers,omitempty"`
	AnswerHistory        AnswerHistory           `json:"answerHistory,omitempty"`
	ParticipantLink      string                  `json:"participantLink,omitempty"`
	LinkExpiry           time.Time               `json:"linkExpiry,omitempty"`
	LastUpdated          time.Time               `json:"lastUpdated"`
}

// QuestionView is the client-facing shape of a question. The answer key is
// populated only once answers for the question are locked.
type QuestionView struct {
	ID            string       `json:"id"`
	Prompt        string       `json:"prompt"`
	Kind          QuestionKind `json:"kind"`
	Options       []string     `json:"options,omitempty"`
	CorrectIndex  *int         `json:"correctIndex,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	TimeLimitSec  int          `json:"timeLimit"`
	Points        int          `json:"points"`
	Penalty       int          `json:"penalty"`
}

// PlayerView is the client-facing shape of a player.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

// Snapshot is a point-in-time projection of the quiz state, safe to hand to
// observers at any moment. Instants are unix milliseconds; nil means unset.
type Snapshot struct {
	Status               Status        `json:"status"`
	Players              []PlayerView  `json:"players"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	TotalQuestions       int           `json:"totalQuestions"`
	QuizStartTime        *int64        `json:"quizStartTime"`
	QuizEndTime          *int64        `json:"quizEndTime"`
	CurrentQuestion      *QuestionView `json:"currentQuestion"`
	RemainingSeconds     int           `json:"remainingTime"`
	AnswerHistory        AnswerHistory `json:"answerHistory"`
	ParticipantLink      *string       `json:"participantLink"`
	LinkExpiry           *int64        `json:"linkExpiry"`
}

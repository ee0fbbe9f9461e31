package engine

import (
	"time"

	"livequiz-service/internal/domain"
)

// State is the single authoritative record of the quiz lifecycle. It is
// owned exclusively by the Engine: every read and write goes through an
// engine operation under the engine's mutex.
type State struct {
	status domain.Status

	quizStartAt time.Time
	quizEndAt   time.Time

	currentIndex    int
	questionStartAt time.Time
	questionEndAt   time.Time
	answerLocked    bool

	hostID  string
	players map[string]*domain.Player

	questions []domain.Question
	timeline  []domain.TimelineEntry

	currentAnswers map[string]domain.AnswerRecord
	answerHistory  domain.AnswerHistory
	lastAnswerAt   map[string]time.Time

	linkToken  string
	linkExpiry time.Time
}

// NewState returns a fresh WAITING state.
func NewState() *State {
	s := &State{}
	s.reset()
	return s
}

func (s *State) reset() {
	s.status = domain.StatusWaiting
	s.quizStartAt = time.Time{}
	s.quizEndAt = time.Time{}
	s.currentIndex = -1
	s.questionStartAt = time.Time{}
	s.questionEndAt = time.Time{}
	s.answerLocked = false
	s.hostID = ""
	s.players = make(map[string]*domain.Player)
	s.questions = nil
	s.timeline = nil
	s.currentAnswers = make(map[string]domain.AnswerRecord)
	s.answerHistory = make(domain.AnswerHistory)
	s.lastAnswerAt = make(map[string]time.Time)
	s.linkToken = ""
	s.linkExpiry = time.Time{}
}

// currentQuestion returns the question at the current index, or nil when the
// index is out of range. Timers and restarts can race transitions, so a
// missing current question is a legitimate condition, not a bug.
func (s *State) currentQuestion() *domain.Question {
	if s.currentIndex < 0 || s.currentIndex >= len(s.questions) {
		return nil
	}
	return &s.questions[s.currentIndex]
}

// linkValid reports whether the participant link grants access at now.
func (s *State) linkValid(now time.Time) bool {
	if s.linkToken == "" {
		return false
	}
	if !s.linkExpiry.IsZero() && now.After(s.linkExpiry) {
		return false
	}
	return true
}

// rebuildTimeline recomputes every window from question order. Unless forced
// it is a no-op while a consistent timeline exists, so a timeline that
// participants are mid-quiz relying on is never shifted accidentally. The
// cursor anchors at the recorded quiz start, or at anchor when none is set.
func (s *State) rebuildTimeline(force bool, anchor time.Time) {
	if !force && len(s.timeline) == len(s.questions) && !s.quizStartAt.IsZero() {
		return
	}
	start := s.quizStartAt
	if start.IsZero() {
		start = anchor
	}
	s.timeline, s.quizStartAt, s.quizEndAt = BuildTimeline(s.questions, start)
}

// persistable reduces the state to its durable subset. Players lose their
// socket marker, and the throttle map is dropped entirely.
func (s *State) persistable(now time.Time) domain.PersistedState {
	players := make([]domain.PersistedPlayer, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, domain.PersistedPlayer{ID: p.ID, Name: p.Name, Score: p.Score})
	}

	current := make(map[string]domain.AnswerRecord, len(s.currentAnswers))
	for id, rec := range s.currentAnswers {
		current[id] = rec
	}

	return domain.PersistedState{
		Status:               s.status,
		HostID:               s.hostID,
		CurrentQuestionIndex: s.currentIndex,
		QuestionStartAt:      s.questionStartAt,
		QuestionEndAt:        s.questionEndAt,
		AnswerLocked:         s.answerLocked,
		Players:              players,
		Questions:            append([]domain.Question(nil), s.questions...),
		Timeline:             append([]domain.TimelineEntry(nil), s.timeline...),
		QuizStartAt:          s.quizStartAt,
		QuizEndAt:            s.quizEndAt,
		CurrentAnswers:       current,
		AnswerHistory:        cloneHistory(s.answerHistory),
		ParticipantLink:      s.linkToken,
		LinkExpiry:           s.linkExpiry,
		LastUpdated:          now,
	}
}

// restore replaces the state with a persisted snapshot. Every player starts
// disconnected; timers and throttle tracking are rebuilt by the engine.
func (s *State) restore(p domain.PersistedState) {
	s.reset()

	s.status = p.Status
	if s.status == "" {
		s.status = domain.StatusWaiting
	}
	s.hostID = p.HostID
	s.currentIndex = p.CurrentQuestionIndex
	s.questionStartAt = p.QuestionStartAt
	s.questionEndAt = p.QuestionEndAt
	s.answerLocked = p.AnswerLocked
	s.questions = append([]domain.Question(nil), p.Questions...)
	s.timeline = append([]domain.TimelineEntry(nil), p.Timeline...)
	s.quizStartAt = p.QuizStartAt
	s.quizEndAt = p.QuizEndAt
	s.linkToken = p.ParticipantLink
	s.linkExpiry = p.LinkExpiry

	for _, pp := range p.Players {
		s.players[pp.ID] = &domain.Player{ID: pp.ID, Name: pp.Name, Score: pp.Score}
	}
	for id, rec := range p.CurrentAnswers {
		s.currentAnswers[id] = rec
	}
	if p.AnswerHistory != nil {
		s.answerHistory = cloneHistory(p.AnswerHistory)
	}
}

func cloneHistory(h domain.AnswerHistory) domain.AnswerHistory {
	out := make(domain.AnswerHistory, len(h))
	for qid, byPlayer := range h {
		cp := make(map[string]*domain.AnswerRecord, len(byPlayer))
		for pid, rec := range byPlayer {
			r := *rec
			cp[pid] = &r
		}
		out[qid] = cp
	}
	return out
}

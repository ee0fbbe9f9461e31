package engine

import (
	"encoding/json"
	"sort"
	"time"

	"livequiz-service/internal/domain"
)

// Snapshot projects the current state into its read model. It is safe to
// call at any time and never exposes the answer key of a question whose
// answers are still open.
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Standings returns players ordered by score, highest first.
func (e *Engine) Standings() []domain.PlayerView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.standingsLocked()
}

func (e *Engine) snapshotLocked() domain.Snapshot {
	now := e.now()

	remaining := 0
	if !e.st.questionEndAt.IsZero() {
		d := e.st.questionEndAt.Sub(now)
		if d > 0 {
			remaining = int((d + time.Second - 1) / time.Second)
		}
	}

	var token *string
	if e.st.linkToken != "" {
		t := e.st.linkToken
		token = &t
	}

	return domain.Snapshot{
		Status:               e.st.status,
		Players:              e.standingsLocked(),
		CurrentQuestionIndex: e.st.currentIndex,
		TotalQuestions:       len(e.st.questions),
		QuizStartTime:        unixMillis(e.st.quizStartAt),
		QuizEndTime:          unixMillis(e.st.quizEndAt),
		CurrentQuestion:      questionView(e.st.currentQuestion(), e.st.answerLocked),
		RemainingSeconds:     remaining,
		AnswerHistory:        cloneHistory(e.st.answerHistory),
		ParticipantLink:      token,
		LinkExpiry:           unixMillis(e.st.linkExpiry),
	}
}

func (e *Engine) standingsLocked() []domain.PlayerView {
	views := make([]domain.PlayerView, 0, len(e.st.players))
	for _, p := range e.st.players {
		views = append(views, domain.PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			Score:     p.Score,
			Connected: p.Connected(),
		})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Score != views[j].Score {
			return views[i].Score > views[j].Score
		}
		return views[i].Name < views[j].Name
	})
	return views
}

// questionView redacts the answer key while answers are still open.
func questionView(q *domain.Question, locked bool) *domain.QuestionView {
	if q == nil {
		return nil
	}
	view := &domain.QuestionView{
		ID:           q.ID,
		Prompt:       q.Prompt,
		Kind:         q.Kind,
		Options:      append([]string(nil), q.Options...),
		TimeLimitSec: q.TimeLimitSec,
		Points:       q.Points,
		Penalty:      q.Penalty,
	}
	if locked {
		idx := q.CorrectIndex
		view.CorrectIndex = &idx
		view.CorrectAnswer = q.CorrectAnswer
	}
	return view
}

func unixMillis(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func serializeSnapshot(s domain.Snapshot) string {
	raw, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(raw)
}

package engine

import (
	"time"

	"livequiz-service/internal/domain"
)

// answerThrottle is the minimum spacing between accepted submissions from
// one player.
const answerThrottle = 200 * time.Millisecond

// SubmitAnswer records a participant's in-progress answer for the current
// question. Rejections are silent no-ops: a locked question, no current
// question, a shape mismatch against the question kind, or a submission
// inside the throttle window all return false and leave the state untouched.
// An accepted answer overwrites the player's previous one; only the last
// submission before the lock counts. Scoring never happens here, only at
// lock time.
func (e *Engine) SubmitAnswer(playerID string, ans domain.Answer) bool {
	e.mu.Lock()
	defer e.unlockAndEmit()
	return e.submitLocked(playerID, ans)
}

func (e *Engine) submitLocked(playerID string, ans domain.Answer) bool {
	if e.st.answerLocked {
		return false
	}
	q := e.st.currentQuestion()
	if q == nil {
		return false
	}
	if playerID == "" || playerID == e.st.hostID {
		return false
	}
	if _, ok := e.st.players[playerID]; !ok {
		return false
	}

	rec, ok := validateAnswer(*q, ans)
	if !ok {
		return false
	}

	now := e.now()
	if last, ok := e.st.lastAnswerAt[playerID]; ok && now.Sub(last) < answerThrottle {
		return false
	}

	rec.SubmittedAt = now
	e.st.lastAnswerAt[playerID] = now
	e.st.currentAnswers[playerID] = rec

	e.persistLocked()
	e.queueStateLocked()
	return true
}

// validateAnswer checks the tagged answer against the question kind and
// converts it to storable form.
func validateAnswer(q domain.Question, ans domain.Answer) (domain.AnswerRecord, bool) {
	switch a := ans.(type) {
	case domain.ChoiceAnswer:
		if q.Kind != domain.MultipleChoice {
			return domain.AnswerRecord{}, false
		}
		if int(a) < 0 || int(a) >= len(q.Options) {
			return domain.AnswerRecord{}, false
		}
		return domain.AnswerRecord{Kind: domain.MultipleChoice, Choice: int(a)}, true
	case domain.TextAnswer:
		if q.Kind != domain.FreeText {
			return domain.AnswerRecord{}, false
		}
		return domain.AnswerRecord{Kind: domain.FreeText, Text: string(a)}, true
	default:
		return domain.AnswerRecord{}, false
	}
}

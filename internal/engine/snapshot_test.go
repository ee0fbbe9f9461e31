package engine

import (
	"testing"
	"time"

	"livequiz-service/internal/domain"
)

func TestSnapshotRedactsAnswerKeyWhileOpen(t *testing.T) {
	rig := newTestRig(t)
	rig.mustAdd(t, mcQuestion(10, 100, 0))
	rig.mustAdd(t, mcQuestion(10, 100, 0))
	if err := rig.eng.StartQuiz(time.Time{}); err != nil {
		t.Fatalf("start quiz: %v", err)
	}

	q := rig.eng.Snapshot().CurrentQuestion
	if q == nil {
		t.Fatalf("expected a current question")
	}
	if q.CorrectIndex != nil || q.CorrectAnswer != "" {
		t.Fatalf("expected answer key hidden while answers are open")
	}

	rig.eng.LockAnswers()

	q = rig.eng.Snapshot().CurrentQuestion
	if q.CorrectIndex == nil || *q.CorrectIndex != 1 {
		t.Fatalf("expected answer key revealed after lock, got %v", q.CorrectIndex)
	}
}

func TestSnapshotRedactsFreeTextAnswer(t *testing.T) {
	rig := newTestRig(t)
	rig.mustAdd(t, textQuestion(10, "Mars"))
	rig.mustAdd(t, textQuestion(10, "Venus"))
	if err := rig.eng.StartQuiz(time.Time{}); err != nil {
		t.Fatalf("start quiz: %v", err)
	}

	if got := rig.eng.Snapshot().CurrentQuestion.CorrectAnswer; got != "" {
		t.Fatalf("expected free-text key hidden, got %q", got)
	}
	rig.eng.LockAnswers()
	if got := rig.eng.Snapshot().CurrentQuestion.CorrectAnswer; got != "Mars" {
		t.Fatalf("expected free-text key revealed after lock, got %q", got)
	}
}

func TestSnapshotRemainingTimeRoundsUp(t *testing.T) {
	rig := newTestRig(t)
	rig.mustAdd(t, mcQuestion(10, 100, 0))
	if err := rig.eng.StartQuiz(time.Time{}); err != nil {
		t.Fatalf("start quiz: %v", err)
	}

	rig.clock.advance(2500 * time.Millisecond)
	if got := rig.eng.Snapshot().RemainingSeconds; got != 8 {
		t.Fatalf("expected partial seconds rounded up to 8, got %d", got)
	}
}

func TestSnapshotRemainingTimeNeverNegative(t *testing.T) {
	rig := newTestRig(t)
	rig.mustAdd(t, mcQuestion(5, 100, 0))
	if err := rig.eng.StartQuiz(time.Time{}); err != nil {
		t.Fatalf("start quiz: %v", err)
	}

	// The wall clock moved past the boundary but the timer has not fired yet.
	rig.clock.advance(time.Minute)
	if got := rig.eng.Snapshot().RemainingSeconds; got != 0 {
		t.Fatalf("expected remaining time clamped to 0, got %d", got)
	}
}

func TestSnapshotWaitingDefaults(t *testing.T) {
	rig := newTestRig(t)

	snap := rig.eng.Snapshot()
	if snap.Status != domain.StatusWaiting {
		t.Fatalf("expected WAITING, got %s", snap.Status)
	}
	if snap.CurrentQuestionIndex != -1 {
		t.Fatalf("expected index -1 before the quiz, got %d", snap.CurrentQuestionIndex)
	}
	if snap.CurrentQuestion != nil {
		t.Fatalf("expected no current question before the quiz")
	}
	if snap.QuizStartTime != nil || snap.QuizEndTime != nil {
		t.Fatalf("expected unset schedule instants to be absent")
	}
}

func TestStandingsOrderedByScoreThenName(t *testing.T) {
	rig := newTestRig(t)
	rig.mustAdd(t, mcQuestion(5, 100, 20))
	a := rig.mustJoin(t, "Alice")
	b := rig.mustJoin(t, "Bob")
	rig.mustJoin(t, "Carol")
	if err := rig.eng.StartQuiz(time.Time{}); err != nil {
		t.Fatalf("start quiz: %v", err)
	}

	rig.eng.SubmitAnswer(a.ID, domain.ChoiceAnswer(0))
	rig.eng.SubmitAnswer(b.ID, domain.ChoiceAnswer(1))
	rig.clock.advance(5 * time.Second)
	rig.sched.fire()

	standings := rig.eng.Standings()
	want := []string{"Bob", "Carol", "Alice"}
	for i, name := range want {
		if standings[i].Name != name {
			t.Fatalf("expected %v, got %s at position %d", want, standings[i].Name, i)
		}
	}
}

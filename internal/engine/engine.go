package engine

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"livequiz-service/internal/domain"
)

// StateStore persists quiz state snapshots. Load reports ok=false when no
// state has ever been saved. Save must be atomic: a concurrent Load never
// observes a partially written snapshot.
type StateStore interface {
	Load() (domain.PersistedState, bool, error)
	Save(domain.PersistedState) error
}

// Sink receives fire-and-forget state broadcasts. Publish must not block;
// a failed or slow delivery only affects that observer round.
type Sink interface {
	Publish(event string, payload any)
}

// Broadcast event names.
const (
	EventState       = "quiz_state"
	EventLinkUpdated = "quiz_link_updated"
	EventFinished    = "quiz_finished"
)

// LinkUpdate is the payload of EventLinkUpdated.
type LinkUpdate struct {
	ParticipantLink *string `json:"participantLink"`
	LinkExpiry      *int64  `json:"linkExpiry"`
}

type event struct {
	name    string
	payload any
}

// Engine drives the quiz lifecycle: it owns the State, converts question
// time limits into an absolute timeline, advances the current question
// strictly by wall clock, locks and scores answers at question end, and
// hands every state change to the store and sink. All mutations serialize
// on one mutex; the armed timer and restart recovery both funnel through
// the same advance path, which is idempotent under duplicate invocation.
type Engine struct {
	store StateStore
	sink  Sink
	now   func() time.Time
	sched Scheduler

	mu            sync.Mutex
	st            *State
	cancelTimer   func()
	lastBroadcast string
	pending       []event

	saveCh    chan domain.PersistedState
	done      chan struct{}
	closeOnce sync.Once
}

// New builds an engine on the real clock and timer scheduler.
func New(store StateStore, sink Sink) *Engine {
	return NewWithClock(store, sink, time.Now, TimerScheduler{})
}

// NewWithClock injects the clock and scheduler so tests can simulate time
// instead of sleeping.
func NewWithClock(store StateStore, sink Sink, now func() time.Time, sched Scheduler) *Engine {
	e := &Engine{
		store:  store,
		sink:   sink,
		now:    now,
		sched:  sched,
		st:     NewState(),
		saveCh: make(chan domain.PersistedState, 1),
		done:   make(chan struct{}),
	}
	go e.saveLoop()
	return e
}

// Close cancels the armed timer, stops the background saver, and writes one
// final synchronous snapshot.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.clearTimerLocked()
		final := e.st.persistable(e.now())
		e.mu.Unlock()

		close(e.done)
		if err := e.store.Save(final); err != nil {
			log.Printf("final state save failed: %v", err)
		}
	})
}

// Recover restores persisted state and, when the quiz is live, re-syncs the
// current question and rearms the lock timer. Elapsed real time, not process
// uptime, decides where the quiz resumes: a boundary missed during downtime
// is caught up immediately.
func (e *Engine) Recover() error {
	persisted, ok, err := e.store.Load()

	e.mu.Lock()
	if ok {
		e.st.restore(persisted)
		e.st.rebuildTimeline(false, e.now())
	}
	if e.st.status == domain.StatusLive {
		// Lock-and-score a question whose boundary passed during downtime
		// before advancing, or its frozen answers would be lost to the
		// next question's fresh answer window.
		e.recoverTimerLocked()
		e.advanceLocked()
	}
	evs := e.drainLocked()
	e.mu.Unlock()

	e.emit(evs)
	if err != nil {
		return fmt.Errorf("load quiz state: %w", err)
	}
	return nil
}

// --- host and participants ---

// Join registers a participant, or reattaches an existing one to a new
// connection. Names of returning players are kept.
func (e *Engine) Join(playerID, name, socketID string) (domain.Player, error) {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if strings.TrimSpace(name) == "" {
		return domain.Player{}, fmt.Errorf("display name required")
	}
	if playerID != "" && playerID == e.st.hostID {
		return domain.Player{}, domain.ErrNotHost
	}

	id := playerID
	if id == "" {
		id = uuid.NewString()
	}
	p, ok := e.st.players[id]
	if ok {
		p.SocketID = socketID
	} else {
		p = &domain.Player{ID: id, Name: name, SocketID: socketID}
		e.st.players[id] = p
	}

	e.persistLocked()
	e.queueStateLocked()
	return *p, nil
}

// EnsureHost creates the host player on first login and reattaches on
// reconnect. Credential checking belongs to the caller.
func (e *Engine) EnsureHost(name, socketID string) domain.Player {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if e.st.hostID == "" {
		id := uuid.NewString()
		e.st.hostID = id
		e.st.players[id] = &domain.Player{ID: id, Name: name, SocketID: socketID}
	} else {
		e.st.players[e.st.hostID].SocketID = socketID
	}

	e.persistLocked()
	e.queueStateLocked()
	return *e.st.players[e.st.hostID]
}

// Disconnect clears the connectivity marker of whichever player held the
// socket. The player record itself stays.
func (e *Engine) Disconnect(socketID string) {
	e.mu.Lock()
	defer e.unlockAndEmit()

	for _, p := range e.st.players {
		if p.SocketID == socketID {
			p.SocketID = ""
			e.persistLocked()
			e.queueStateLocked()
			return
		}
	}
}

// IsHostSocket reports whether the socket belongs to the logged-in host.
func (e *Engine) IsHostSocket(socketID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.st.hostID == "" || socketID == "" {
		return false
	}
	host, ok := e.st.players[e.st.hostID]
	return ok && host.SocketID == socketID
}

// --- lifecycle ---

// StartQuiz transitions WAITING→LIVE: fresh link token, timeline anchored at
// now, cleared answer tracking, then an immediate advance so the first
// question becomes current without waiting for an external trigger.
// linkExpiry may be zero for no expiry.
func (e *Engine) StartQuiz(linkExpiry time.Time) error {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if e.st.status == domain.StatusLive {
		return domain.ErrQuizLive
	}
	if len(e.st.questions) == 0 {
		return domain.ErrNoQuestions
	}

	e.st.status = domain.StatusLive
	e.st.currentIndex = -1
	e.st.questionStartAt = time.Time{}
	e.st.questionEndAt = time.Time{}
	e.st.answerLocked = false
	e.st.answerHistory = make(domain.AnswerHistory)
	e.st.currentAnswers = make(map[string]domain.AnswerRecord)
	e.st.lastAnswerAt = make(map[string]time.Time)
	e.st.linkToken = uuid.NewString()
	e.st.linkExpiry = linkExpiry

	e.st.quizStartAt = time.Time{}
	e.st.rebuildTimeline(true, e.now())

	e.persistLocked()
	e.queueLocked(EventLinkUpdated, e.linkUpdateLocked())
	e.advanceLocked()
	e.queueStateLocked()
	return nil
}

// AdvanceIfNeeded is the timeline-driven transition function. It is called
// after state mutations, from the timer path, and once at startup; repeating
// it with no elapsed time is a strict no-op.
func (e *Engine) AdvanceIfNeeded() {
	e.mu.Lock()
	defer e.unlockAndEmit()
	e.advanceLocked()
}

// RecoverTimer cancels any armed timer and rearms it for the current
// question's end, locking immediately when that boundary has already passed.
func (e *Engine) RecoverTimer() {
	e.mu.Lock()
	defer e.unlockAndEmit()
	e.recoverTimerLocked()
}

// LockAnswers freezes and scores the current question's answers, then
// advances. Safe to call repeatedly; only the first call per question does
// work.
func (e *Engine) LockAnswers() {
	e.mu.Lock()
	defer e.unlockAndEmit()
	e.lockAnswersLocked()
}

// FinishQuiz ends the quiz regardless of remaining questions.
func (e *Engine) FinishQuiz() {
	e.mu.Lock()
	defer e.unlockAndEmit()
	e.finishLocked()
}

// Reset discards the whole quiz and returns to WAITING defaults.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.unlockAndEmit()

	e.clearTimerLocked()
	e.st.reset()
	e.persistLocked()
	e.queueStateLocked()
}

func (e *Engine) advanceLocked() {
	if e.st.status != domain.StatusLive {
		return
	}

	now := e.now()
	if !e.st.linkExpiry.IsZero() && now.After(e.st.linkExpiry) {
		e.finishLocked()
		return
	}

	idx := timelineIndexAt(e.st.timeline, now)
	if idx == -1 {
		if !e.st.quizEndAt.IsZero() && !now.Before(e.st.quizEndAt) {
			e.finishLocked()
		}
		return
	}

	if idx == e.st.currentIndex {
		return
	}

	entry := e.st.timeline[idx]
	e.st.currentIndex = idx
	e.st.questionStartAt = entry.StartAt
	e.st.questionEndAt = entry.EndAt
	e.st.answerLocked = false
	e.st.currentAnswers = make(map[string]domain.AnswerRecord)
	e.st.lastAnswerAt = make(map[string]time.Time)

	e.recoverTimerLocked()
	e.persistLocked()
	e.queueStateLocked()
}

func (e *Engine) recoverTimerLocked() {
	if e.st.status != domain.StatusLive || e.st.questionEndAt.IsZero() {
		return
	}

	e.clearTimerLocked()

	delay := e.st.questionEndAt.Sub(e.now())
	if delay <= 0 {
		e.lockAnswersLocked()
		return
	}
	e.cancelTimer = e.sched.Schedule(delay, e.LockAnswers)
}

func (e *Engine) lockAnswersLocked() {
	if e.st.answerLocked {
		// Already locked, e.g. a forced lock raced the timer fire. Never
		// re-score, but still let the timeline move on.
		e.advanceLocked()
		return
	}

	// The lock flag goes up before any scoring work so a racing duplicate
	// (timer fire vs. forced lock) bounces off immediately.
	e.st.answerLocked = true
	e.freezeAnswersLocked()
	e.scoreQuestionLocked()

	e.persistLocked()
	e.queueStateLocked()
	e.advanceLocked()
}

func (e *Engine) freezeAnswersLocked() {
	q := e.st.currentQuestion()
	if q == nil {
		return
	}

	frozen := e.st.answerHistory[q.ID]
	if frozen == nil {
		frozen = make(map[string]*domain.AnswerRecord)
		e.st.answerHistory[q.ID] = frozen
	}

	lockedAt := e.now()
	for playerID, rec := range e.st.currentAnswers {
		r := rec
		r.LockedAt = lockedAt
		frozen[playerID] = &r
	}
}

func (e *Engine) scoreQuestionLocked() {
	q := e.st.currentQuestion()
	if q == nil {
		return
	}

	for playerID, rec := range e.st.answerHistory[q.ID] {
		if rec.Scored {
			continue
		}
		player, ok := e.st.players[playerID]
		if !ok {
			continue
		}
		if answerCorrect(*q, rec) {
			player.Score += q.Points
		} else {
			player.Score -= q.Penalty
		}
		rec.Scored = true
	}
}

func answerCorrect(q domain.Question, rec *domain.AnswerRecord) bool {
	switch q.Kind {
	case domain.MultipleChoice:
		return rec.Kind == domain.MultipleChoice && rec.Choice == q.CorrectIndex
	case domain.FreeText:
		return rec.Kind == domain.FreeText &&
			strings.EqualFold(strings.TrimSpace(rec.Text), strings.TrimSpace(q.CorrectAnswer))
	default:
		return false
	}
}

func (e *Engine) finishLocked() {
	if e.st.status == domain.StatusFinished {
		return
	}

	e.st.status = domain.StatusFinished
	e.clearTimerLocked()
	e.persistLocked()
	e.queueLocked(EventFinished, e.standingsLocked())
	e.queueStateLocked()
}

func (e *Engine) clearTimerLocked() {
	if e.cancelTimer != nil {
		e.cancelTimer()
		e.cancelTimer = nil
	}
}

// --- link controls ---

// ActivateLink mints a token if none exists and sets the expiry. The link
// lifecycle is independent of the question timeline, so this works in any
// status.
func (e *Engine) ActivateLink(expiry time.Time) {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if e.st.linkToken == "" {
		e.st.linkToken = uuid.NewString()
	}
	e.st.linkExpiry = expiry

	e.persistLocked()
	e.queueLocked(EventLinkUpdated, e.linkUpdateLocked())
}

// DeactivateLink clears both token and expiry.
func (e *Engine) DeactivateLink() {
	e.mu.Lock()
	defer e.unlockAndEmit()

	e.st.linkToken = ""
	e.st.linkExpiry = time.Time{}

	e.persistLocked()
	e.queueLocked(EventLinkUpdated, e.linkUpdateLocked())
}

// LinkValid reports whether the participant link grants access right now.
func (e *Engine) LinkValid() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.linkValid(e.now())
}

func (e *Engine) linkUpdateLocked() LinkUpdate {
	var token *string
	if e.st.linkToken != "" {
		t := e.st.linkToken
		token = &t
	}
	return LinkUpdate{ParticipantLink: token, LinkExpiry: unixMillis(e.st.linkExpiry)}
}

// --- question management ---

// AddQuestion appends a question and force-rebuilds the timeline. Editing a
// live quiz would shift the timeline under participants, so it is rejected
// outright.
func (e *Engine) AddQuestion(q domain.Question) (domain.Question, error) {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if e.st.status == domain.StatusLive {
		return domain.Question{}, domain.ErrQuizLive
	}

	q.ID = uuid.NewString()
	normalizeQuestion(&q)
	if err := validateQuestion(q); err != nil {
		return domain.Question{}, err
	}

	e.st.questions = append(e.st.questions, q)
	e.st.rebuildTimeline(true, e.now())

	e.persistLocked()
	e.queueStateLocked()
	return q, nil
}

// UpdateQuestion applies a partial edit and force-rebuilds the timeline.
func (e *Engine) UpdateQuestion(id string, upd domain.QuestionUpdate) (domain.Question, error) {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if e.st.status == domain.StatusLive {
		return domain.Question{}, domain.ErrQuizLive
	}

	var q *domain.Question
	for i := range e.st.questions {
		if e.st.questions[i].ID == id {
			q = &e.st.questions[i]
			break
		}
	}
	if q == nil {
		return domain.Question{}, domain.ErrQuestionNotFound
	}

	applyUpdate(q, upd)
	normalizeQuestion(q)
	if err := validateQuestion(*q); err != nil {
		return domain.Question{}, err
	}

	e.st.rebuildTimeline(true, e.now())
	e.persistLocked()
	e.queueStateLocked()
	return *q, nil
}

// DeleteQuestion removes a question and force-rebuilds the timeline.
func (e *Engine) DeleteQuestion(id string) error {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if e.st.status == domain.StatusLive {
		return domain.ErrQuizLive
	}

	for i := range e.st.questions {
		if e.st.questions[i].ID == id {
			e.st.questions = append(e.st.questions[:i], e.st.questions[i+1:]...)
			e.st.rebuildTimeline(true, e.now())
			e.persistLocked()
			e.queueStateLocked()
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}

// ReplaceQuestions swaps in a whole question set, e.g. imported from the
// question bank. Only allowed before the quiz starts.
func (e *Engine) ReplaceQuestions(questions []domain.Question) error {
	e.mu.Lock()
	defer e.unlockAndEmit()

	if e.st.status != domain.StatusWaiting {
		return domain.ErrQuizLive
	}

	normalized := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		normalizeQuestion(&q)
		if err := validateQuestion(q); err != nil {
			return fmt.Errorf("question %q: %w", q.Prompt, err)
		}
		normalized = append(normalized, q)
	}

	e.st.questions = normalized
	e.st.rebuildTimeline(true, e.now())
	e.persistLocked()
	e.queueStateLocked()
	return nil
}

// Questions returns a copy of the current question list.
func (e *Engine) Questions() []domain.Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Question(nil), e.st.questions...)
}

// Status returns the current lifecycle phase.
func (e *Engine) Status() domain.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.status
}

func normalizeQuestion(q *domain.Question) {
	if q.TimeLimitSec <= 0 {
		q.TimeLimitSec = int(domain.DefaultTimeLimit / time.Second)
	}
	if q.Points == 0 {
		q.Points = 100
	}
	if q.Penalty < 0 {
		q.Penalty = 0
	}
}

func validateQuestion(q domain.Question) error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("%w: empty prompt", domain.ErrInvalidQuestion)
	}
	switch q.Kind {
	case domain.MultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: multiple choice needs at least two options", domain.ErrInvalidQuestion)
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return fmt.Errorf("%w: correct index out of range", domain.ErrInvalidQuestion)
		}
	case domain.FreeText:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return fmt.Errorf("%w: free text needs a correct answer", domain.ErrInvalidQuestion)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidQuestion, q.Kind)
	}
	return nil
}

func applyUpdate(q *domain.Question, upd domain.QuestionUpdate) {
	if upd.Prompt != nil {
		q.Prompt = *upd.Prompt
	}
	if upd.Kind != nil {
		q.Kind = *upd.Kind
	}
	if upd.Options != nil {
		q.Options = *upd.Options
	}
	if upd.CorrectIndex != nil {
		q.CorrectIndex = *upd.CorrectIndex
	}
	if upd.CorrectAnswer != nil {
		q.CorrectAnswer = *upd.CorrectAnswer
	}
	if upd.TimeLimitSec != nil {
		q.TimeLimitSec = *upd.TimeLimitSec
	}
	if upd.Points != nil {
		q.Points = *upd.Points
	}
	if upd.Penalty != nil {
		q.Penalty = *upd.Penalty
	}
}

// --- persistence and broadcast plumbing ---

// persistLocked hands the durable snapshot to a background saver through a
// latest-wins mailbox, so no engine operation ever waits on storage.
func (e *Engine) persistLocked() {
	p := e.st.persistable(e.now())
	for {
		select {
		case e.saveCh <- p:
			return
		default:
		}
		select {
		case <-e.saveCh: // drop the stale pending snapshot
		default:
		}
	}
}

func (e *Engine) saveLoop() {
	for {
		select {
		case p := <-e.saveCh:
			if err := e.store.Save(p); err != nil {
				log.Printf("quiz state save failed: %v", err)
			}
		case <-e.done:
			return
		}
	}
}

// queueStateLocked stages a state broadcast, skipping it when the serialized
// snapshot is identical to the last one sent.
func (e *Engine) queueStateLocked() {
	snap := e.snapshotLocked()
	serialized := serializeSnapshot(snap)
	if serialized != "" && serialized == e.lastBroadcast {
		return
	}
	e.lastBroadcast = serialized
	e.pending = append(e.pending, event{name: EventState, payload: snap})
}

func (e *Engine) queueLocked(name string, payload any) {
	e.pending = append(e.pending, event{name: name, payload: payload})
}

func (e *Engine) drainLocked() []event {
	evs := e.pending
	e.pending = nil
	return evs
}

// unlockAndEmit flushes staged events after releasing the mutex, so a slow
// sink can never hold up state transitions.
func (e *Engine) unlockAndEmit() {
	evs := e.drainLocked()
	e.mu.Unlock()
	e.emit(evs)
}

func (e *Engine) emit(evs []event) {
	if e.sink == nil {
		return
	}
	for _, ev := range evs {
		e.sink.Publish(ev.name, ev.payload)
	}
}

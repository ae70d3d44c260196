package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quiz-attempt-service/internal/codec"
	"quiz-attempt-service/internal/countdown"
	"quiz-attempt-service/internal/domain"
)

// Status is the lifecycle state of an attempt screen.
type Status string

const (
	StatusOverview   Status = "overview"
	StatusInProgress Status = "in_progress"
	StatusSubmitting Status = "submitting"
	StatusCompleted  Status = "completed"
	StatusReviewing  Status = "reviewing"
)

type submitTrigger string

const (
	triggerUser   submitTrigger = "user"
	triggerExpiry submitTrigger = "timer"
)

// State is a read-only snapshot of a Machine.
type State struct {
	Status           Status
	QuizID           string
	AttemptID        string
	Overview         *domain.Overview
	Questions        []domain.Question
	Answers          []domain.Answer
	Cursor           int
	TimeLimitSeconds int
	RemainingSeconds int
	Expired          bool
	StartedAt        time.Time
	Progress         Progress
	Verdict          *domain.Verdict
	Correctness      []bool
	MissingCanonical []string
	CanStart         bool
	CanSubmit        bool
	InputsDisabled   bool
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) MachineOption {
	return func(m *Machine) { m.logger = logger }
}

// WithTickerFactory replaces the countdown's tick source.
func WithTickerFactory(f countdown.TickerFactory) MachineOption {
	return func(m *Machine) { m.tickers = f }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) { m.now = now }
}

// WithSubmitTimeout bounds each submission call.
func WithSubmitTimeout(d time.Duration) MachineOption {
	return func(m *Machine) { m.submitTimeout = d }
}

// WithObserver registers an observer for lifecycle events.
func WithObserver(o Observer) MachineOption {
	return func(m *Machine) { m.observers = append(m.observers, o) }
}

// Machine drives one quiz attempt through
// overview -> in progress -> submitting -> completed -> reviewing.
// It exclusively owns the question list, the answer array and the countdown.
type Machine struct {
	backend       Backend
	quizID        string
	logger        *slog.Logger
	now           func() time.Time
	tickers       countdown.TickerFactory
	submitTimeout time.Duration
	observers     []Observer

	ctx    context.Context
	cancel context.CancelFunc

	// emitMu orders delivery; delivered is the highest Seq handed to observers
	emitMu    sync.Mutex
	delivered uint64

	mu              sync.Mutex
	seq             uint64
	status          Status
	released        bool
	overview        *domain.Overview
	starting        bool
	limitReached    bool
	attemptsStarted int

	attemptID string
	questions []domain.Question
	answers   []domain.Answer
	cursor    int
	timer     *countdown.Countdown
	timeLimit int
	remaining int
	expired   bool
	startedAt time.Time

	verdict   *domain.Verdict
	canonical []domain.Answer
	flags     []bool
	missing   []string
}

// NewMachine creates a machine in the Overview state for quizID.
func NewMachine(backend Backend, quizID string, opts ...MachineOption) *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		backend:       backend,
		quizID:        quizID,
		logger:        slog.Default(),
		now:           time.Now,
		tickers:       countdown.RealTicker,
		submitTimeout: 30 * time.Second,
		ctx:           ctx,
		cancel:        cancel,
		status:        StatusOverview,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "attempt", "quiz_id", quizID)
	return m
}

// QuizID returns the quiz this machine serves.
func (m *Machine) QuizID() string { return m.quizID }

// State returns a snapshot of the machine.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// LoadOverview fetches quiz metadata while in Overview.
func (m *Machine) LoadOverview(ctx context.Context) error {
	m.mu.Lock()
	if err := m.requireLocked(StatusOverview); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	overview, err := m.backend.Overview(ctx, m.quizID)
	if err != nil {
		return fmt.Errorf("load overview: %w", err)
	}

	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return domain.ErrAttemptClosed
	}
	m.overview = &overview
	ev := m.eventLocked(EventOverviewLoaded, nil)
	m.mu.Unlock()

	m.emit(ev)
	return nil
}

// Start asks the backend for a new attempt and, on success, enters
// InProgress with an all-null answer array and a running countdown. On
// failure the machine stays in Overview and the error wraps
// ErrAttemptCreationFailed.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if err := m.requireLocked(StatusOverview); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.starting {
		m.mu.Unlock()
		return fmt.Errorf("%w: attempt creation already in flight", domain.ErrInvalidTransition)
	}
	if !m.canStartLocked() {
		m.mu.Unlock()
		return domain.ErrAttemptLimitExceeded
	}
	m.starting = true
	m.mu.Unlock()

	ticket, err := m.backend.CreateAttempt(ctx, m.quizID)
	if err == nil {
		err = validateTicket(ticket)
	}

	m.mu.Lock()
	m.starting = false
	if m.released {
		m.mu.Unlock()
		return domain.ErrAttemptClosed
	}
	if err != nil {
		if errors.Is(err, domain.ErrAttemptLimitExceeded) {
			m.limitReached = true
		}
		m.mu.Unlock()
		m.logger.Warn("attempt creation failed", "error", err)
		return fmt.Errorf("%w: %w", domain.ErrAttemptCreationFailed, err)
	}

	m.resetAttemptLocked()
	m.attemptID = ticket.AttemptID
	m.questions = append([]domain.Question(nil), ticket.Questions...)
	m.answers = make([]domain.Answer, len(ticket.Questions))
	m.startedAt = ticket.StartedAt
	if m.startedAt.IsZero() {
		m.startedAt = m.now()
	}
	m.timeLimit = ticket.TimeLimitSeconds
	if m.timeLimit <= 0 && m.overview != nil {
		m.timeLimit = m.overview.TimeLimitSeconds
	}
	m.remaining = m.timeLimit
	m.attemptsStarted++
	m.status = StatusInProgress
	if m.timeLimit > 0 {
		attemptID := m.attemptID
		m.timer = countdown.New(m.tickers, countdown.WithClock(m.now))
		if err := m.timer.Start(m.timeLimit,
			func(remaining int) { m.onTick(attemptID, remaining) },
			func() { m.onExpire(attemptID) },
		); err != nil {
			m.logger.Error("countdown start failed", "attempt_id", attemptID, "error", err)
		}
	}
	ev := m.eventLocked(EventStarted, nil)
	m.mu.Unlock()

	m.logger.Info("attempt started", "attempt_id", ticket.AttemptID, "questions", len(ticket.Questions), "time_limit", ev.State.TimeLimitSeconds)
	m.emit(ev)
	return nil
}

// SetAnswer stores value for question i after building it through the
// Answer Model constructors. A value that does not fit the question's kind or
// content fails with ErrShapeMismatch and leaves the answer array untouched.
func (m *Machine) SetAnswer(i int, value any) error {
	m.mu.Lock()
	if err := m.requireLocked(StatusInProgress); err != nil {
		m.mu.Unlock()
		return err
	}
	if i < 0 || i >= len(m.questions) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, i)
	}
	answer, err := domain.NewAnswerFor(m.questions[i], value)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("question %s: %w", m.questions[i].ID, err)
	}
	m.answers[i] = answer
	ev := m.eventLocked(EventAnswerChanged, nil)
	m.mu.Unlock()

	m.emit(ev)
	return nil
}

// ClearAnswer returns question i to unanswered.
func (m *Machine) ClearAnswer(i int) error {
	return m.SetAnswer(i, nil)
}

// GoTo moves the cursor, clamped to the question range. Navigation is
// allowed in InProgress and Reviewing only.
func (m *Machine) GoTo(i int) error {
	return m.move(func(int) int { return i })
}

// Next moves the cursor forward by one.
func (m *Machine) Next() error {
	return m.move(func(cur int) int { return cur + 1 })
}

// Previous moves the cursor back by one.
func (m *Machine) Previous() error {
	return m.move(func(cur int) int { return cur - 1 })
}

func (m *Machine) move(target func(cur int) int) error {
	m.mu.Lock()
	if err := m.requireLocked(StatusInProgress, StatusReviewing); err != nil {
		m.mu.Unlock()
		return err
	}
	m.cursor = clamp(target(m.cursor), len(m.questions))
	ev := m.eventLocked(EventCursorMoved, nil)
	m.mu.Unlock()

	m.emit(ev)
	return nil
}

// Submit sends the attempt for scoring. It is only enabled once every
// question is answered, unless the countdown has already expired. A submit
// while one is in flight, or after completion, is a no-op.
func (m *Machine) Submit(ctx context.Context) error {
	return m.submit(ctx, triggerUser)
}

func (m *Machine) submit(ctx context.Context, trigger submitTrigger) error {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return domain.ErrAttemptClosed
	}
	switch m.status {
	case StatusInProgress:
	case StatusSubmitting, StatusCompleted, StatusReviewing:
		status := m.status
		m.mu.Unlock()
		m.logger.Debug("duplicate submit ignored", "trigger", trigger, "status", status)
		return nil
	default:
		status := m.status
		m.mu.Unlock()
		return fmt.Errorf("%w: submit from %s", domain.ErrInvalidTransition, status)
	}
	if trigger == triggerUser && !m.expired && !TrackProgress(m.answers).AllAnswered {
		m.mu.Unlock()
		return domain.ErrIncompleteAttempt
	}
	records, err := codec.Encode(m.questions, m.answers)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	if m.timer != nil {
		m.timer.Pause()
		m.remaining = m.timer.Remaining()
	}
	m.status = StatusSubmitting
	attemptID := m.attemptID
	req := codec.SubmitRequest{
		AttemptID:        attemptID,
		QuizID:           m.quizID,
		TimeSpentSeconds: m.timeSpentLocked(),
		Answers:          records,
	}
	ev := m.eventLocked(EventSubmitting, nil)
	m.mu.Unlock()

	m.emit(ev)
	m.logger.Info("submitting attempt", "attempt_id", attemptID, "trigger", trigger, "records", len(records))

	if m.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.submitTimeout)
		defer cancel()
	}
	payload, err := m.backend.SubmitAttempt(ctx, req)

	m.mu.Lock()
	if m.released || m.attemptID != attemptID {
		m.mu.Unlock()
		return domain.ErrAttemptClosed
	}
	if err != nil {
		m.status = StatusInProgress
		if m.timer != nil {
			m.timer.Resume()
			m.remaining = m.timer.Remaining()
		}
		wrapped := fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
		ev := m.eventLocked(EventSubmissionFailed, wrapped)
		m.mu.Unlock()

		m.logger.Warn("submission failed", "attempt_id", attemptID, "trigger", trigger, "error", err)
		m.emit(ev)
		return wrapped
	}

	if m.timer != nil {
		m.timer.Stop()
	}
	m.completeLocked(codec.DecodeVerdict(m.questions, payload))
	ev = m.eventLocked(EventCompleted, nil)
	m.mu.Unlock()

	m.emit(ev)
	return nil
}

// StartReview re-enters the question list read-only with correctness visible.
func (m *Machine) StartReview() error {
	m.mu.Lock()
	if err := m.requireLocked(StatusCompleted); err != nil {
		m.mu.Unlock()
		return err
	}
	m.status = StatusReviewing
	m.cursor = 0
	ev := m.eventLocked(EventReviewStarted, nil)
	m.mu.Unlock()

	m.emit(ev)
	return nil
}

// Restart drops a finished attempt and returns to Overview. Retrying always
// needs a fresh attempt from the backend.
func (m *Machine) Restart() error {
	m.mu.Lock()
	if err := m.requireLocked(StatusCompleted, StatusReviewing); err != nil {
		m.mu.Unlock()
		return err
	}
	m.resetAttemptLocked()
	m.status = StatusOverview
	ev := m.eventLocked(EventRestarted, nil)
	m.mu.Unlock()

	m.emit(ev)
	return nil
}

// LoadReplay loads a finished attempt from the backend and lands in Completed.
func (m *Machine) LoadReplay(ctx context.Context, attemptID string) error {
	m.mu.Lock()
	if err := m.requireLocked(StatusOverview); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	replay, err := m.backend.ReplayAttempt(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("load replay %s: %w", attemptID, err)
	}
	ticket := domain.AttemptTicket{AttemptID: replay.AttemptID, Questions: replay.Questions}
	if err := validateTicket(ticket); err != nil {
		return fmt.Errorf("load replay %s: %w", attemptID, err)
	}
	answers, problems := codec.DecodeRecords(replay.Questions, replay.UserAnswers)
	for _, p := range problems {
		m.logger.Warn("replay answer skipped", "attempt_id", attemptID, "error", p)
	}

	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return domain.ErrAttemptClosed
	}
	if m.status != StatusOverview {
		m.mu.Unlock()
		return fmt.Errorf("%w: replay into %s", domain.ErrInvalidTransition, m.status)
	}
	m.resetAttemptLocked()
	m.attemptID = replay.AttemptID
	m.questions = replay.Questions
	m.answers = answers
	m.timeLimit = replay.Verdict.TotalTimeSeconds
	m.completeLocked(codec.DecodeVerdict(replay.Questions, replay.Verdict))
	ev := m.eventLocked(EventCompleted, nil)
	m.mu.Unlock()

	m.emit(ev)
	return nil
}

// Release stops the countdown and abandons the attempt without submitting.
// Every later call fails with ErrAttemptClosed.
func (m *Machine) Release() {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return
	}
	m.released = true
	if m.timer != nil {
		m.timer.Stop()
	}
	m.cancel()
	ev := m.eventLocked(EventReleased, nil)
	m.mu.Unlock()

	m.logger.Info("attempt released", "attempt_id", ev.State.AttemptID, "status", ev.State.Status)
	m.emit(ev)
}

func (m *Machine) onTick(attemptID string, remaining int) {
	m.mu.Lock()
	if m.staleLocked(attemptID) {
		status := m.status
		m.mu.Unlock()
		m.logger.Debug("discarding timer tick", "attempt_id", attemptID, "status", status, "error", domain.ErrStaleTimerEvent)
		return
	}
	m.remaining = remaining
	ev := m.eventLocked(EventTick, nil)
	m.mu.Unlock()

	m.emit(ev)
}

func (m *Machine) onExpire(attemptID string) {
	m.mu.Lock()
	if m.staleLocked(attemptID) {
		status := m.status
		m.mu.Unlock()
		m.logger.Debug("discarding timer expiry", "attempt_id", attemptID, "status", status, "error", domain.ErrStaleTimerEvent)
		return
	}
	m.expired = true
	m.remaining = 0
	m.mu.Unlock()

	m.logger.Info("time is up, submitting", "attempt_id", attemptID)
	if err := m.submit(m.ctx, triggerExpiry); err != nil {
		m.logger.Warn("submission after expiry failed", "attempt_id", attemptID, "error", err)
	}
}

func (m *Machine) staleLocked(attemptID string) bool {
	return m.released || m.status != StatusInProgress || m.attemptID != attemptID
}

func (m *Machine) completeLocked(decoded codec.Decoded) {
	if err := decoded.Err(); err != nil {
		m.logger.Warn("verdict incomplete", "attempt_id", m.attemptID, "error", err)
	}
	verdict := decoded.Verdict
	m.verdict = &verdict
	m.canonical = decoded.Canonical
	m.missing = decoded.Missing
	m.flags = domain.CorrectnessFlags(m.questions, m.answers, m.canonical)
	m.status = StatusCompleted
	m.logger.Info("attempt completed", "attempt_id", m.attemptID, "percentage", verdict.Percentage, "passed", verdict.Passed)
}

func (m *Machine) resetAttemptLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.attemptID = ""
	m.questions = nil
	m.answers = nil
	m.cursor = 0
	m.timeLimit = 0
	m.remaining = 0
	m.expired = false
	m.startedAt = time.Time{}
	m.verdict = nil
	m.canonical = nil
	m.flags = nil
	m.missing = nil
}

func (m *Machine) timeSpentLocked() int {
	if m.timeLimit > 0 {
		return m.timeLimit - m.remaining
	}
	return int(m.now().Sub(m.startedAt).Seconds())
}

func (m *Machine) canStartLocked() bool {
	if m.status != StatusOverview || m.starting || m.limitReached || m.released {
		return false
	}
	if m.overview != nil && m.overview.MaxAttempts > 0 && m.attemptsStarted >= m.overview.MaxAttempts {
		return false
	}
	return true
}

func (m *Machine) requireLocked(allowed ...Status) error {
	if m.released {
		return domain.ErrAttemptClosed
	}
	for _, s := range allowed {
		if m.status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: not allowed in %s", domain.ErrInvalidTransition, m.status)
}

func (m *Machine) snapshotLocked() State {
	progress := TrackProgress(m.answers)
	st := State{
		Status:           m.status,
		QuizID:           m.quizID,
		AttemptID:        m.attemptID,
		Questions:        append([]domain.Question(nil), m.questions...),
		Answers:          append([]domain.Answer(nil), m.answers...),
		Cursor:           m.cursor,
		TimeLimitSeconds: m.timeLimit,
		RemainingSeconds: m.remaining,
		Expired:          m.expired,
		StartedAt:        m.startedAt,
		Progress:         progress,
		MissingCanonical: append([]string(nil), m.missing...),
		CanStart:         m.canStartLocked(),
		CanSubmit:        !m.released && m.status == StatusInProgress && (progress.AllAnswered || m.expired),
		InputsDisabled:   m.released || m.status != StatusInProgress,
	}
	if m.overview != nil {
		ov := *m.overview
		st.Overview = &ov
	}
	if m.verdict != nil {
		v := *m.verdict
		st.Verdict = &v
		st.Correctness = append([]bool(nil), m.flags...)
	}
	return st
}

func (m *Machine) eventLocked(t EventType, err error) Event {
	m.seq++
	return Event{Seq: m.seq, Type: t, At: m.now(), State: m.snapshotLocked(), Err: err}
}

func (m *Machine) emit(events ...Event) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	for _, ev := range events {
		if ev.Type == EventTick && ev.Seq < m.delivered {
			m.logger.Debug("discarding stale tick", "seq", ev.Seq, "delivered", m.delivered, "error", domain.ErrStaleTimerEvent)
			continue
		}
		if ev.Seq > m.delivered {
			m.delivered = ev.Seq
		}
		for _, o := range m.observers {
			o.Observe(ev)
		}
	}
}

func validateTicket(ticket domain.AttemptTicket) error {
	if ticket.AttemptID == "" {
		return errors.New("backend returned no attempt id")
	}
	if len(ticket.Questions) == 0 {
		return errors.New("backend returned no questions")
	}
	seen := make(map[string]struct{}, len(ticket.Questions))
	for _, q := range ticket.Questions {
		if err := q.Validate(); err != nil {
			return err
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("duplicate question %s", q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

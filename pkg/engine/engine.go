package engine

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/backsoul/devquiz/pkg/models"
	"github.com/backsoul/devquiz/pkg/result"
)

const (
	DefaultQuestionDuration    = 60 * time.Second
	DefaultAutoAdvanceDuration = time.Second
	DefaultAutoAdvanceSteps    = 20
	DefaultTimeoutAdvanceDelay = 2 * time.Second
)

// Config parámetros de la sesión. Se fija al crear el motor.
type Config struct {
	QuestionDuration    time.Duration
	AutoAdvanceDuration time.Duration
	AutoAdvanceSteps    int
	TimeoutAdvanceDelay time.Duration
	StrictTimer         bool
	HapticFeedback      bool
	Clock               Clock
	Logger              *zerolog.Logger
}

// DefaultConfig configuración por defecto con temporizador estricto
func DefaultConfig() Config {
	return Config{
		QuestionDuration:    DefaultQuestionDuration,
		AutoAdvanceDuration: DefaultAutoAdvanceDuration,
		AutoAdvanceSteps:    DefaultAutoAdvanceSteps,
		TimeoutAdvanceDelay: DefaultTimeoutAdvanceDelay,
		StrictTimer:         true,
	}
}

func (c *Config) normalize() {
	if c.QuestionDuration < time.Second {
		c.QuestionDuration = DefaultQuestionDuration
	}
	if c.AutoAdvanceDuration <= 0 {
		c.AutoAdvanceDuration = DefaultAutoAdvanceDuration
	}
	if c.AutoAdvanceSteps <= 0 {
		c.AutoAdvanceSteps = DefaultAutoAdvanceSteps
	}
	if c.TimeoutAdvanceDelay <= 0 {
		c.TimeoutAdvanceDelay = DefaultTimeoutAdvanceDelay
	}
	if c.Clock == nil {
		c.Clock = RealClock
	}
	if c.Logger == nil {
		c.Logger = &log.Logger
	}
}

// Engine máquina de estados de una sesión de quiz. Es dueño exclusivo del
// registro de respuestas y del estado mutable; la lista de preguntas es de
// solo lectura.
type Engine struct {
	cfg       Config
	questions []models.Question

	mu        sync.Mutex
	current   int
	selected  *models.Option
	state     AnswerState
	remaining int
	answers   []models.AnswerRecord
	timedOut  bool
	feedback  Feedback
	autoStep  int
	closed    bool
	epoch     uint64
	countdown Timer
	autoAdv   Timer
	timeout   Timer

	version   uint64

	listenersMu  sync.Mutex
	listeners    map[int]func(Snapshot)
	nextListener int

	// cola de instantáneas en el orden en que cambió el estado
	notifyMu sync.Mutex
	pending  []Snapshot
	draining bool
}

// New crea el motor y arranca la cuenta regresiva de la primera pregunta si
// el temporizador estricto está activo
func New(questions []models.Question, cfg Config) *Engine {
	cfg.normalize()
	e := &Engine{
		cfg:       cfg,
		questions: questions,
		listeners: make(map[int]func(Snapshot)),
	}
	e.mu.Lock()
	e.resetQuestionLocked()
	e.mu.Unlock()

	return e
}

// Subscribe registra un observador que recibe una instantánea tras cada
// cambio de estado. Se invoca fuera del lock del motor, de a una instantánea
// por vez y en orden creciente de Version.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	e.listenersMu.Lock()
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn
	e.listenersMu.Unlock()

	return func() {
		e.listenersMu.Lock()
		delete(e.listeners, id)
		e.listenersMu.Unlock()
	}
}

// publishLocked versiona el estado actual y encola su instantánea. Se llama
// con e.mu tomado, así el orden de la cola es el orden de los cambios.
func (e *Engine) publishLocked() Snapshot {
	e.version++
	snap := e.snapshotLocked()
	e.notifyMu.Lock()
	e.pending = append(e.pending, snap)
	e.notifyMu.Unlock()

	return snap
}

// flush entrega las instantáneas pendientes. Solo una goroutine entrega a la
// vez; si otra ya está entregando, la instantánea queda en la cola y esa
// goroutine la entrega después de las anteriores.
func (e *Engine) flush() {
	e.notifyMu.Lock()
	if e.draining {
		e.notifyMu.Unlock()

		return
	}
	e.draining = true
	for len(e.pending) > 0 {
		snap := e.pending[0]
		e.pending = e.pending[1:]
		e.notifyMu.Unlock()
		e.notify(snap)
		e.notifyMu.Lock()
	}
	e.pending = nil
	e.draining = false
	e.notifyMu.Unlock()
}

func (e *Engine) notify(snap Snapshot) {
	e.listenersMu.Lock()
	fns := make([]func(Snapshot), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.listenersMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// SelectOption marca una opción de la pregunta actual. Se puede cambiar la
// selección hasta que la pregunta se evalúa.
func (e *Engine) SelectOption(opt models.Option) error {
	return e.SelectOptionByID(opt.ID)
}

// SelectOptionByID como SelectOption, buscando la opción por ID
func (e *Engine) SelectOptionByID(optionID string) error {
	e.mu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.mu.Unlock()

		return err
	}
	if e.state.Evaluated() {
		e.mu.Unlock()

		return errors.Wrapf(ErrInvalidTransition, "cannot select an option in state %s", e.state)
	}
	question := &e.questions[e.current]
	opt, ok := question.OptionByID(optionID)
	if !ok {
		e.mu.Unlock()

		return errors.Wrapf(ErrUnknownOption, "option %q, question %s", optionID, question.ID)
	}
	e.selected = &opt
	e.state = StateSelected
	e.publishLocked()
	e.mu.Unlock()

	e.flush()

	return nil
}

// Evaluate compara la opción elegida con la correcta y registra la respuesta.
// Si es correcta y no es la última pregunta arranca el avance automático.
func (e *Engine) Evaluate() error {
	e.mu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.mu.Unlock()

		return err
	}
	if e.state != StateSelected {
		e.mu.Unlock()

		return errors.Wrapf(ErrInvalidTransition, "cannot evaluate in state %s", e.state)
	}
	question := e.questions[e.current]
	correct := question.CorrectOption()
	isCorrect := e.selected.Equal(correct)
	e.recordLocked(question, *e.selected, correct, isCorrect, false)
	if isCorrect && !e.isLastLocked() {
		e.startAutoAdvanceLocked()
	}
	e.publishLocked()
	e.mu.Unlock()

	e.cfg.Logger.Debug().
		Str("question", question.ID).
		Bool("correct", isCorrect).
		Msg("answer evaluated")
	e.flush()

	return nil
}

// Advance pasa a la siguiente pregunta. Solo es válido después de evaluar y
// nunca desde la última pregunta.
func (e *Engine) Advance() error {
	e.mu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.mu.Unlock()

		return err
	}
	if !e.state.Evaluated() {
		e.mu.Unlock()

		return errors.Wrapf(ErrInvalidTransition, "cannot advance in state %s", e.state)
	}
	if e.isLastLocked() {
		e.mu.Unlock()

		return ErrLastQuestion
	}
	e.advanceLocked()
	e.publishLocked()
	e.mu.Unlock()

	e.flush()

	return nil
}

// Close detiene todos los temporizadores. Las operaciones posteriores
// devuelven ErrSessionClosed.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()

		return
	}
	e.closed = true
	e.invalidateTimersLocked()
	e.publishLocked()
	e.mu.Unlock()

	e.flush()
}

// Snapshot devuelve el estado actual
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.snapshotLocked()
}

// State estado de respuesta de la pregunta actual
func (e *Engine) State() AnswerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// CurrentIndex índice (base 0) de la pregunta actual
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.current
}

// CurrentQuestion pregunta actual; false si la sesión no tiene preguntas
func (e *Engine) CurrentQuestion() (models.Question, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.questions) == 0 {
		return models.Question{}, false
	}

	return e.questions[e.current], true
}

// SelectedOption opción elegida, si hay
func (e *Engine) SelectedOption() (models.Option, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == nil {
		return models.Option{}, false
	}

	return *e.selected, true
}

// TimeRemaining segundos restantes de la pregunta actual
func (e *Engine) TimeRemaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.remaining
}

// ProgressFraction posición/total de la pregunta actual
func (e *Engine) ProgressFraction() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.progressLocked()
}

// CanAdvance indica si la pregunta actual ya fue evaluada
func (e *Engine) CanAdvance() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state.Evaluated()
}

// IsLastQuestion indica si la pregunta actual es la última
func (e *Engine) IsLastQuestion() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.isLastLocked()
}

// Questions copia de la lista de preguntas de la sesión
func (e *Engine) Questions() []models.Question {
	out := make([]models.Question, len(e.questions))
	copy(out, e.questions)

	return out
}

// Answers copia del registro de respuestas en orden
func (e *Engine) Answers() []models.AnswerRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.AnswerRecord, len(e.answers))
	copy(out, e.answers)

	return out
}

// Summary resumen calculado con el registro actual; no modifica el motor
func (e *Engine) Summary() models.ResultSummary {
	return result.Summarize(e.Questions(), e.Answers())
}

func (e *Engine) checkOpenLocked() error {
	if e.closed {
		return ErrSessionClosed
	}
	if len(e.questions) == 0 {
		return errors.Wrap(ErrInvalidTransition, "session has no questions")
	}

	return nil
}

func (e *Engine) isLastLocked() bool {
	return e.current >= len(e.questions)-1
}

func (e *Engine) progressLocked() float64 {
	if len(e.questions) == 0 {
		return 0
	}
	q := e.questions[e.current]
	if q.Total <= 0 {
		return float64(e.current+1) / float64(len(e.questions))
	}

	return float64(q.Index) / float64(q.Total)
}

func (e *Engine) recordLocked(question models.Question, selected, correct models.Option, isCorrect, timedOut bool) {
	e.invalidateTimersLocked()
	e.answers = append(e.answers, models.AnswerRecord{
		Question:       question,
		SelectedOption: selected,
		IsCorrect:      isCorrect,
		CorrectOption:  correct,
		TimedOut:       timedOut,
		AnsweredAt:     time.Now(),
	})
	e.timedOut = timedOut
	if isCorrect {
		e.state = StateCorrect
	} else {
		e.state = StateIncorrect
	}
	if e.cfg.HapticFeedback {
		if isCorrect {
			e.feedback = FeedbackSuccess
		} else {
			e.feedback = FeedbackError
		}
	}
}

func (e *Engine) advanceLocked() {
	e.current++
	e.resetQuestionLocked()
}

func (e *Engine) resetQuestionLocked() {
	e.invalidateTimersLocked()
	e.selected = nil
	e.state = StateNone
	e.timedOut = false
	e.feedback = FeedbackNone
	e.autoStep = 0
	e.remaining = int(e.cfg.QuestionDuration / time.Second)
	if e.cfg.StrictTimer && len(e.questions) > 0 && !e.closed {
		e.scheduleTickLocked()
	}
}

// invalidateTimersLocked detiene los temporizadores vivos; cualquier callback
// que ya estuviera en vuelo queda descartado por el cambio de época
func (e *Engine) invalidateTimersLocked() {
	e.epoch++
	stopTimer(&e.countdown)
	stopTimer(&e.autoAdv)
	stopTimer(&e.timeout)
}

func (e *Engine) scheduleTickLocked() {
	epoch := e.epoch
	stopTimer(&e.countdown)
	e.countdown = e.cfg.Clock.AfterFunc(time.Second, func() { e.tick(epoch) })
}

func (e *Engine) tick(epoch uint64) {
	e.mu.Lock()
	if e.closed || epoch != e.epoch || e.state.Evaluated() {
		e.mu.Unlock()

		return
	}
	e.countdown = nil
	e.remaining--
	if e.remaining > 0 {
		e.scheduleTickLocked()
		e.publishLocked()
		e.mu.Unlock()
		e.flush()

		return
	}
	e.remaining = 0
	question := e.questions[e.current]
	e.timeoutLocked(question)
	snap := e.publishLocked()
	e.mu.Unlock()

	e.cfg.Logger.Info().
		Str("question", question.ID).
		Int("index", snap.CurrentIndex+1).
		Msg("⏰ Tiempo agotado")
	e.flush()
}

// timeoutLocked registra la pregunta como incorrecta aunque hubiera una
// selección correcta
func (e *Engine) timeoutLocked(question models.Question) {
	selected := models.TimeUpOption()
	if e.selected != nil {
		selected = *e.selected
	}
	e.recordLocked(question, selected, question.CorrectOption(), false, true)
	if e.isLastLocked() {
		return
	}
	epoch := e.epoch
	e.timeout = e.cfg.Clock.AfterFunc(e.cfg.TimeoutAdvanceDelay, func() { e.advanceAfterTimeout(epoch) })
}

func (e *Engine) startAutoAdvanceLocked() {
	e.autoStep = 0
	e.scheduleStepLocked()
}

func (e *Engine) scheduleStepLocked() {
	epoch := e.epoch
	interval := e.cfg.AutoAdvanceDuration / time.Duration(e.cfg.AutoAdvanceSteps)
	stopTimer(&e.autoAdv)
	e.autoAdv = e.cfg.Clock.AfterFunc(interval, func() { e.step(epoch) })
}

func (e *Engine) step(epoch uint64) {
	e.mu.Lock()
	if e.closed || epoch != e.epoch || e.state != StateCorrect {
		e.mu.Unlock()

		return
	}
	e.autoAdv = nil
	e.autoStep++
	if e.autoStep < e.cfg.AutoAdvanceSteps {
		e.scheduleStepLocked()
		e.publishLocked()
		e.mu.Unlock()
		e.flush()

		return
	}
	e.advanceLocked()
	e.publishLocked()
	e.mu.Unlock()

	e.flush()
}

func (e *Engine) advanceAfterTimeout(epoch uint64) {
	e.mu.Lock()
	if e.closed || epoch != e.epoch || e.state != StateIncorrect || e.isLastLocked() {
		e.mu.Unlock()

		return
	}
	e.timeout = nil
	e.advanceLocked()
	e.publishLocked()
	e.mu.Unlock()

	e.flush()
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:          e.version,
		CurrentIndex:     e.current,
		TotalQuestions:   len(e.questions),
		State:            e.state,
		StrictTimer:      e.cfg.StrictTimer,
		TimeRemaining:    e.remaining,
		ProgressFraction: e.progressLocked(),
		CanAdvance:       e.state.Evaluated(),
		CanEvaluate:      e.state == StateSelected && !e.closed,
		IsLastQuestion:   e.isLastLocked(),
		TimedOut:         e.timedOut,
		Feedback:         e.feedback,
		AnsweredCount:    len(e.answers),
		Closed:           e.closed,
	}
	if len(e.questions) > 0 {
		q := e.questions[e.current]
		snap.Question = &q
		if e.state.Evaluated() {
			snap.CorrectOptionID = q.CorrectOption().ID
		}
	}
	if e.selected != nil {
		opt := *e.selected
		snap.SelectedOption = &opt
	}
	if e.state == StateCorrect && !snap.IsLastQuestion {
		snap.AutoAdvancing = true
		snap.AutoAdvanceProgress = float64(e.autoStep) / float64(e.cfg.AutoAdvanceSteps)
	}

	return snap
}

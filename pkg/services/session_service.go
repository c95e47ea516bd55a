package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/backsoul/devquiz/pkg/engine"
	"github.com/backsoul/devquiz/pkg/models"
)

var (
	// ErrSessionNotFound no existe una sesión con ese ID
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidConfig la configuración de la sesión no es válida
	ErrInvalidConfig = errors.New("invalid session config")
)

// RetryPolicy define cómo se arma la sesión de "intentar de nuevo"
type RetryPolicy string

const (
	// RetryReshuffle vuelve a seleccionar y barajar desde el banco
	RetryReshuffle RetryPolicy = "reshuffle"
	// RetryReuse reutiliza exactamente las mismas preguntas
	RetryReuse RetryPolicy = "reuse"
)

// ParseRetryPolicy interpreta la política; cualquier valor desconocido es
// RetryReshuffle
func ParseRetryPolicy(s string) RetryPolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(RetryReuse)) {
		return RetryReuse
	}

	return RetryReshuffle
}

// Selector produce las preguntas de una sesión
type Selector interface {
	SelectQuestions(ctx context.Context, filter Filter) ([]models.Question, error)
}

// Session sesión en memoria con su motor
type Session struct {
	ID        string
	Config    models.SessionConfig
	Attempt   int
	CreatedAt time.Time
	DataError string
	Engine    *engine.Engine
}

// SessionView representación de la sesión para la API
type SessionView struct {
	ID        string               `json:"id"`
	Config    models.SessionConfig `json:"config"`
	Requested int                  `json:"requested"`
	Selected  int                  `json:"selected"`
	Attempt   int                  `json:"attempt"`
	CreatedAt time.Time            `json:"createdAt"`
	DataError string               `json:"dataError,omitempty"`
	State     engine.Snapshot      `json:"state"`
}

// View arma la vista actual de la sesión
func (s *Session) View() SessionView {
	snap := s.Engine.Snapshot()

	return SessionView{
		ID:        s.ID,
		Config:    s.Config,
		Requested: s.Config.QuestionCount,
		Selected:  snap.TotalQuestions,
		Attempt:   s.Attempt,
		CreatedAt: s.CreatedAt,
		DataError: s.DataError,
		State:     snap,
	}
}

// SessionService registro en memoria de las sesiones activas
type SessionService struct {
	selector  Selector
	engineCfg engine.Config
	retry     RetryPolicy

	mu       sync.RWMutex
	sessions map[string]*Session

	hooksMu sync.RWMutex
	hooks   []StateHook
}

// StateHook observador de los cambios de estado de cualquier sesión
type StateHook func(sessionID string, snap engine.Snapshot)

// NewSessionService crea una nueva instancia del servicio de sesiones. Los
// flags de háptica y temporizador estricto de engineCfg se reemplazan por los
// de cada sesión.
func NewSessionService(selector Selector, engineCfg engine.Config, retry RetryPolicy) *SessionService {
	return &SessionService{
		selector:  selector,
		engineCfg: engineCfg,
		retry:     retry,
		sessions:  make(map[string]*Session),
	}
}

// RetryPolicy política configurada
func (s *SessionService) RetryPolicy() RetryPolicy {
	return s.retry
}

// OnStateChange registra un observador de todas las sesiones
func (s *SessionService) OnStateChange(fn StateHook) {
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, fn)
	s.hooksMu.Unlock()
}

func (s *SessionService) emit(sessionID string, snap engine.Snapshot) {
	s.hooksMu.RLock()
	hooks := append([]StateHook(nil), s.hooks...)
	s.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn(sessionID, snap)
	}
}

// ConfigFromRequest valida el request y completa los valores por defecto
func ConfigFromRequest(req models.SessionCreateRequest) (models.SessionConfig, error) {
	if strings.TrimSpace(req.Category) == "" {
		return models.SessionConfig{}, errors.Wrap(ErrInvalidConfig, "category is required")
	}
	category, ok := models.ParseCategory(req.Category)
	if !ok {
		return models.SessionConfig{}, errors.Wrapf(ErrInvalidConfig, "unknown category %q", req.Category)
	}
	if strings.TrimSpace(req.Level) == "" {
		return models.SessionConfig{}, errors.Wrap(ErrInvalidConfig, "level is required")
	}
	level, ok := models.ParseLevel(req.Level)
	if !ok {
		return models.SessionConfig{}, errors.Wrapf(ErrInvalidConfig, "unknown level %q", req.Level)
	}
	if req.QuestionCount < 0 {
		return models.SessionConfig{}, errors.Wrapf(ErrInvalidConfig, "question count %d must not be negative", req.QuestionCount)
	}
	cfg := models.SessionConfig{
		Category:       category,
		Level:          level,
		QuestionCount:  req.QuestionCount,
		HapticFeedback: true,
		StrictTimer:    true,
	}
	if cfg.QuestionCount == 0 {
		cfg.QuestionCount = models.DefaultQuestionCount
	}
	if req.HapticFeedback != nil {
		cfg.HapticFeedback = *req.HapticFeedback
	}
	if req.StrictTimer != nil {
		cfg.StrictTimer = *req.StrictTimer
	}

	return cfg, nil
}

func validateConfig(cfg *models.SessionConfig) error {
	if cfg.Category == "" || cfg.Level == "" {
		return errors.Wrap(ErrInvalidConfig, "category and level are required")
	}
	if cfg.QuestionCount < 0 {
		return errors.Wrapf(ErrInvalidConfig, "question count %d must not be negative", cfg.QuestionCount)
	}
	if cfg.QuestionCount == 0 {
		cfg.QuestionCount = models.DefaultQuestionCount
	}

	return nil
}

// CreateSession selecciona las preguntas y arranca una sesión nueva. Si el
// banco no está disponible la sesión se crea vacía y DataError lo indica.
func (s *SessionService) CreateSession(ctx context.Context, cfg models.SessionConfig) (*Session, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	questions, err := s.selector.SelectQuestions(ctx, Filter{
		Category: cfg.Category,
		Level:    cfg.Level,
		Count:    cfg.QuestionCount,
	})

	return s.start(cfg, questions, err, 1), nil
}

func (s *SessionService) start(cfg models.SessionConfig, questions []models.Question, dataErr error, attempt int) *Session {
	id := uuid.NewString()
	logger := log.With().Str("session", id).Logger()

	engineCfg := s.engineCfg
	engineCfg.StrictTimer = cfg.StrictTimer
	engineCfg.HapticFeedback = cfg.HapticFeedback
	engineCfg.Logger = &logger

	session := &Session{
		ID:        id,
		Config:    cfg,
		Attempt:   attempt,
		CreatedAt: time.Now(),
		Engine:    engine.New(questions, engineCfg),
	}
	if dataErr != nil {
		session.DataError = dataErr.Error()
		logger.Warn().Err(dataErr).Msg("⚠️ Sesión creada sin preguntas")
	}
	session.Engine.Subscribe(func(snap engine.Snapshot) { s.emit(id, snap) })

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	logger.Info().
		Str("category", string(cfg.Category)).
		Str("level", string(cfg.Level)).
		Int("requested", cfg.QuestionCount).
		Int("selected", len(questions)).
		Int("attempt", attempt).
		Msg("✅ Nueva sesión creada")

	return session
}

// GetSession obtiene una sesión por ID
func (s *SessionService) GetSession(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.Wrapf(ErrSessionNotFound, "session %s", sessionID)
	}

	return session, nil
}

// ActiveSessions lista las sesiones vivas, las más antiguas primero
func (s *SessionService) ActiveSessions() []SessionView {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	views := make([]SessionView, len(sessions))
	for i, session := range sessions {
		views[i] = session.View()
	}

	return views
}

// Result resumen de la sesión sin cerrarla
func (s *SessionService) Result(sessionID string) (models.ResultSummary, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return models.ResultSummary{}, err
	}

	return session.Engine.Summary(), nil
}

// Retry cierra la sesión y crea otra con la misma configuración. Según la
// política se vuelven a seleccionar preguntas o se reutilizan las mismas.
func (s *SessionService) Retry(ctx context.Context, sessionID string) (*Session, error) {
	previous, err := s.remove(sessionID)
	if err != nil {
		return nil, err
	}
	previous.Engine.Close()

	if s.retry == RetryReuse && previous.DataError == "" {
		var questions []models.Question
		if err := copier.CopyWithOption(&questions, previous.Engine.Questions(), copier.Option{DeepCopy: true}); err != nil {
			return nil, errors.Wrap(err, "failed to copy questions for retry")
		}

		return s.start(previous.Config, questions, nil, previous.Attempt+1), nil
	}

	questions, dataErr := s.selector.SelectQuestions(ctx, Filter{
		Category: previous.Config.Category,
		Level:    previous.Config.Level,
		Count:    previous.Config.QuestionCount,
	})

	return s.start(previous.Config, questions, dataErr, previous.Attempt+1), nil
}

// FinishSession cierra la sesión, detiene sus temporizadores y devuelve el
// resumen final
func (s *SessionService) FinishSession(sessionID string) (models.ResultSummary, error) {
	session, err := s.remove(sessionID)
	if err != nil {
		return models.ResultSummary{}, err
	}
	session.Engine.Close()
	summary := session.Engine.Summary()

	log.Info().
		Str("session", sessionID).
		Int("correct", summary.CorrectCount).
		Int("total", summary.TotalCount).
		Msg("🏁 Sesión finalizada")

	return summary, nil
}

func (s *SessionService) remove(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.Wrapf(ErrSessionNotFound, "session %s", sessionID)
	}
	delete(s.sessions, sessionID)

	return session, nil
}

// Close cierra todas las sesiones
func (s *SessionService) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, session := range sessions {
		session.Engine.Close()
	}
}

package engine

import (
	"github.com/pkg/errors"

	"github.com/backsoul/devquiz/pkg/models"
)

var (
	// ErrInvalidTransition la operación no es válida en el estado actual; el
	// estado no cambia
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrLastQuestion no hay pregunta siguiente
	ErrLastQuestion = errors.Wrap(ErrInvalidTransition, "already on the last question")
	// ErrUnknownOption la opción no pertenece a la pregunta actual
	ErrUnknownOption = errors.New("option does not belong to the current question")
	// ErrSessionClosed la sesión ya fue cerrada
	ErrSessionClosed = errors.New("session closed")
)

// AnswerState estado de respuesta de la pregunta actual
type AnswerState int

const (
	StateNone AnswerState = iota
	StateSelected
	StateCorrect
	StateIncorrect
)

func (s AnswerState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateSelected:
		return "selected"
	case StateCorrect:
		return "correct"
	case StateIncorrect:
		return "incorrect"
	default:
		return "unknown"
	}
}

func (s AnswerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AnswerState) UnmarshalText(text []byte) error {
	for _, candidate := range []AnswerState{StateNone, StateSelected, StateCorrect, StateIncorrect} {
		if candidate.String() == string(text) {
			*s = candidate

			return nil
		}
	}

	return errors.Errorf("unknown answer state %q", text)
}

// Evaluated indica si la pregunta actual ya fue evaluada
func (s AnswerState) Evaluated() bool {
	return s == StateCorrect || s == StateIncorrect
}

// Feedback sugerencia háptica para la UI
type Feedback string

const (
	FeedbackNone    Feedback = ""
	FeedbackSuccess Feedback = "success"
	FeedbackError   Feedback = "error"
)

// Snapshot vista de solo lectura del estado del motor. Version crece con
// cada cambio de estado; un cliente descarta las menores a la última vista.
type Snapshot struct {
	Version             uint64           `json:"version"`
	CurrentIndex        int              `json:"currentIndex"`
	TotalQuestions      int              `json:"totalQuestions"`
	Question            *models.Question `json:"question,omitempty"`
	SelectedOption      *models.Option   `json:"selectedOption,omitempty"`
	State               AnswerState      `json:"answerState"`
	StrictTimer         bool             `json:"strictTimer"`
	TimeRemaining       int              `json:"timeRemaining"`
	AutoAdvancing       bool             `json:"autoAdvancing"`
	AutoAdvanceProgress float64          `json:"autoAdvanceProgress"`
	ProgressFraction    float64          `json:"progressFraction"`
	CanAdvance          bool             `json:"canAdvance"`
	CanEvaluate         bool             `json:"canEvaluate"`
	IsLastQuestion      bool             `json:"isLastQuestion"`
	CorrectOptionID     string           `json:"correctOptionId,omitempty"`
	TimedOut            bool             `json:"timedOut"`
	Feedback            Feedback         `json:"feedback,omitempty"`
	AnsweredCount       int              `json:"answeredCount"`
	Closed              bool             `json:"closed"`
}

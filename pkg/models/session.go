package models

import "time"

// TimeUpText texto de la opción sintética que se registra cuando se acaba el tiempo
const TimeUpText = "Time's Up"

// DefaultQuestionCount cantidad de preguntas por defecto
const DefaultQuestionCount = 10

// QuestionCountOptions cantidades ofrecidas en la pantalla de configuración
var QuestionCountOptions = []int{20, 30, 40}

// TimeUpOption crea la opción centinela para "sin respuesta"
func TimeUpOption() Option {
	return NewOption(TimeUpText)
}

// AnswerRecord evaluación de una pregunta. Se crea una sola vez, al enviar la
// respuesta o al agotarse el tiempo.
type AnswerRecord struct {
	Question       Question  `json:"question"`
	SelectedOption Option    `json:"selectedOption"`
	IsCorrect      bool      `json:"isCorrect"`
	CorrectOption  Option    `json:"correctOption"`
	TimedOut       bool      `json:"timedOut"`
	AnsweredAt     time.Time `json:"answeredAt"`
}

// MissedItem una pregunta fallada en el resumen
type MissedItem struct {
	QuestionText  string `json:"questionText"`
	CorrectAnswer string `json:"correctAnswer"`
	UserAnswer    string `json:"userAnswer"`
	Explanation   string `json:"explanation,omitempty"`
}

// ResultSummary resumen calculado a partir del registro de respuestas
type ResultSummary struct {
	CorrectCount int          `json:"correctCount"`
	TotalCount   int          `json:"totalCount"`
	MissedItems  []MissedItem `json:"missedItems"`
}

// ScorePercentage devuelve correctas/total en el rango 0..1
func (s ResultSummary) ScorePercentage() float64 {
	if s.TotalCount <= 0 {
		return 0
	}

	return float64(s.CorrectCount) / float64(s.TotalCount)
}

// IsPerfect indica si todas las preguntas fueron correctas
func (s ResultSummary) IsPerfect() bool {
	return s.TotalCount > 0 && len(s.MissedItems) == 0 && s.CorrectCount == s.TotalCount
}

// PerformanceMessage mensaje mostrado en la pantalla de resultados
func (s ResultSummary) PerformanceMessage() string {
	score := s.ScorePercentage()
	switch {
	case s.IsPerfect():
		return "Perfect Score! You nailed every question."
	case score >= 0.9:
		return "Excellent! You're ready for the interview."
	case score >= 0.7:
		return "Great job! Keep practicing to improve."
	case score >= 0.5:
		return "Good effort! Review the topics and try again."
	default:
		return "Keep learning! Every mistake is a step forward."
	}
}

// SessionConfig configuración elegida antes de iniciar la sesión
type SessionConfig struct {
	Category       Category `json:"category"`
	Level          Level    `json:"level"`
	QuestionCount  int      `json:"questionCount"`
	HapticFeedback bool     `json:"hapticFeedback"`
	StrictTimer    bool     `json:"strictTimer"`
}

// SessionCreateRequest request para crear sesión
type SessionCreateRequest struct {
	Category       string `json:"category"`
	Level          string `json:"level"`
	QuestionCount  int    `json:"questionCount"`
	HapticFeedback *bool  `json:"hapticFeedback"`
	StrictTimer    *bool  `json:"strictTimer"`
}

// SelectOptionRequest request para elegir una opción
type SelectOptionRequest struct {
	OptionID string `json:"optionId"`
}

// ResultResponse resumen con los valores derivados
type ResultResponse struct {
	Summary            ResultSummary `json:"summary"`
	ScorePercentage    float64       `json:"scorePercentage"`
	IsPerfect          bool          `json:"isPerfect"`
	PerformanceMessage string        `json:"performanceMessage"`
}

// NewResultResponse construye la respuesta a partir del resumen
func NewResultResponse(summary ResultSummary) ResultResponse {
	return ResultResponse{
		Summary:            summary,
		ScorePercentage:    summary.ScorePercentage(),
		IsPerfect:          summary.IsPerfect(),
		PerformanceMessage: summary.PerformanceMessage(),
	}
}

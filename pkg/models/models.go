package models

import (
	"github.com/google/uuid"
)

// RawQuestion es el registro tal como viene del banco de preguntas
type RawQuestion struct {
	ID                 string   `json:"id"`
	Category           string   `json:"category"`
	BaseDifficulty     string   `json:"baseDifficulty"`
	TargetLevel        string   `json:"targetLevel"`
	QuestionText       string   `json:"questionText"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
}

// Option una opción de respuesta. Dos opciones son la misma solo si coinciden
// sus IDs; el texto puede repetirse.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// NewOption crea una opción con un identificador nuevo
func NewOption(text string) Option {
	return Option{ID: uuid.NewString(), Text: text}
}

// Equal compara opciones por identidad
func (o Option) Equal(other Option) bool {
	return o.ID == other.ID
}

// Question pregunta lista para la sesión, producida por el selector
type Question struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Index              int      `json:"index"`
	Total              int      `json:"total"`
	Prompt             string   `json:"prompt"`
	Options            []Option `json:"options"`
	CorrectAnswerIndex int      `json:"-"`
	Explanation        string   `json:"explanation,omitempty"`
	TargetLevel        string   `json:"targetLevel,omitempty"`
}

// CorrectOption devuelve la opción correcta, o la primera si el índice está
// fuera de rango
func (q *Question) CorrectOption() Option {
	if q.CorrectAnswerIndex >= 0 && q.CorrectAnswerIndex < len(q.Options) {
		return q.Options[q.CorrectAnswerIndex]
	}
	if len(q.Options) > 0 {
		return q.Options[0]
	}

	return Option{}
}

// OptionByID busca una opción por su identificador
func (q *Question) OptionByID(id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}

	return Option{}, false
}

// APIResponse estructura estándar para respuestas de API
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// QuestionResponse respuesta específica para preguntas
type QuestionResponse struct {
	Questions []Question `json:"questions"`
	Count     int        `json:"count"`
	Requested int        `json:"requested,omitempty"`
}

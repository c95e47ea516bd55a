package bank

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/backsoul/devquiz/pkg/models"
)

var (
	// ErrDataUnavailable el recurso con las preguntas no existe
	ErrDataUnavailable = errors.New("question bank unavailable")
	// ErrDataCorrupt el recurso existe pero no se puede decodificar
	ErrDataCorrupt = errors.New("question bank corrupt")
)

// Source origen de los datos crudos del banco de preguntas
type Source interface {
	Name() string
	Read(ctx context.Context) ([]byte, error)
}

// rawRecord distingue campos ausentes de valores vacíos
type rawRecord struct {
	ID                 *string  `json:"id"`
	Category           *string  `json:"category"`
	BaseDifficulty     string   `json:"baseDifficulty"`
	TargetLevel        string   `json:"targetLevel"`
	QuestionText       *string  `json:"questionText"`
	Options            []string `json:"options"`
	CorrectAnswerIndex *int     `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
}

// Decode convierte el JSON del banco en preguntas crudas. Cualquier registro
// inválido invalida el banco completo.
func Decode(data []byte) ([]models.RawQuestion, error) {
	var records []rawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, multierror.Append(ErrDataCorrupt, errors.Wrap(err, "failed to unmarshal question bank"))
	}

	var (
		questions = make([]models.RawQuestion, 0, len(records))
		merr      *multierror.Error
	)
	for i := range records {
		question, err := records[i].validate(i)
		if err != nil {
			merr = multierror.Append(merr, err)

			continue
		}
		questions = append(questions, question)
	}
	if merr != nil {
		return nil, multierror.Append(ErrDataCorrupt, merr.Errors...)
	}

	return questions, nil
}

func (r *rawRecord) validate(position int) (models.RawQuestion, error) {
	var missing []string
	if r.ID == nil || strings.TrimSpace(*r.ID) == "" {
		missing = append(missing, "id")
	}
	if r.Category == nil || strings.TrimSpace(*r.Category) == "" {
		missing = append(missing, "category")
	}
	if r.QuestionText == nil || strings.TrimSpace(*r.QuestionText) == "" {
		missing = append(missing, "questionText")
	}
	if len(r.Options) == 0 {
		missing = append(missing, "options")
	}
	if r.CorrectAnswerIndex == nil {
		missing = append(missing, "correctAnswerIndex")
	}
	if len(missing) > 0 {
		return models.RawQuestion{}, errors.Errorf("record %d: missing required fields: %s", position, strings.Join(missing, ", "))
	}
	if idx := *r.CorrectAnswerIndex; idx < 0 || idx >= len(r.Options) {
		return models.RawQuestion{}, errors.Errorf("record %d (%s): correctAnswerIndex %d out of bounds for %d options",
			position, *r.ID, idx, len(r.Options))
	}

	options := make([]string, len(r.Options))
	copy(options, r.Options)

	return models.RawQuestion{
		ID:                 *r.ID,
		Category:           *r.Category,
		BaseDifficulty:     r.BaseDifficulty,
		TargetLevel:        r.TargetLevel,
		QuestionText:       *r.QuestionText,
		Options:            options,
		CorrectAnswerIndex: *r.CorrectAnswerIndex,
		Explanation:        r.Explanation,
	}, nil
}

// Metadata resumen del banco cargado
type Metadata struct {
	Source     string         `json:"source"`
	Total      int            `json:"totalQuestions"`
	Categories map[string]int `json:"categories"`
	Levels     map[string]int `json:"levels"`
}

// Describe agrupa las preguntas por etiqueta y nivel
func Describe(source string, questions []models.RawQuestion) Metadata {
	meta := Metadata{
		Source:     source,
		Total:      len(questions),
		Categories: make(map[string]int),
		Levels:     make(map[string]int),
	}
	for i := range questions {
		meta.Categories[questions[i].Category]++
		level := questions[i].TargetLevel
		if level == "" {
			level = "none"
		}
		meta.Levels[level]++
	}

	return meta
}

func (m Metadata) String() string {
	return fmt.Sprintf("%s: %d questions, %d labels", m.Source, m.Total, len(m.Categories))
}

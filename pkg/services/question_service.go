package services

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/backsoul/devquiz/pkg/bank"
	"github.com/backsoul/devquiz/pkg/models"
)

// Bank banco de preguntas con caché de carga única
type Bank interface {
	Load(ctx context.Context) ([]models.RawQuestion, error)
	Metadata(ctx context.Context) (bank.Metadata, error)
	Source() bank.Source
	Clear()
}

// Filter criterios de selección. Los valores vacíos no filtran.
type Filter struct {
	Category models.Category
	Level    models.Level
	Count    int
}

// QuestionService selecciona y prepara las preguntas de una sesión
type QuestionService struct {
	bank    Bank
	shuffle func(n int, swap func(i, j int))
}

// NewQuestionService crea una nueva instancia del servicio
func NewQuestionService(b Bank) *QuestionService {
	return &QuestionService{
		bank:    b,
		shuffle: rand.Shuffle,
	}
}

// SelectQuestions filtra el banco, baraja preguntas y opciones, recorta a la
// cantidad pedida y numera el resultado. Si el banco no se puede cargar
// devuelve una lista vacía junto con el error.
func (s *QuestionService) SelectQuestions(ctx context.Context, filter Filter) ([]models.Question, error) {
	raw, err := s.bank.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ No se pudo cargar el banco de preguntas, se continúa sin preguntas")

		return []models.Question{}, err
	}

	pool := make([]*models.RawQuestion, 0, len(raw))
	for i := range raw {
		if matches(&raw[i], filter) {
			pool = append(pool, &raw[i])
		}
	}
	s.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if filter.Count > 0 && filter.Count < len(pool) {
		pool = pool[:filter.Count]
	}

	questions := make([]models.Question, len(pool))
	for i, rq := range pool {
		questions[i] = s.prepare(rq, i+1, len(pool))
	}
	log.Debug().
		Str("category", string(filter.Category)).
		Str("level", string(filter.Level)).
		Int("requested", filter.Count).
		Int("selected", len(questions)).
		Msg("questions selected")

	return questions, nil
}

func matches(rq *models.RawQuestion, filter Filter) bool {
	if filter.Category != "" && !filter.Category.Matches(strings.TrimSpace(rq.Category)) {
		return false
	}
	if filter.Level != "" && !filter.Level.Matches(rq.TargetLevel) {
		return false
	}

	return true
}

// prepare crea opciones nuevas, las baraja y vuelve a calcular el índice
// correcto buscando el texto de la opción correcta original
func (s *QuestionService) prepare(rq *models.RawQuestion, index, total int) models.Question {
	options := make([]models.Option, len(rq.Options))
	for i, text := range rq.Options {
		options[i] = models.NewOption(text)
	}
	s.shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	correct := -1
	if rq.CorrectAnswerIndex >= 0 && rq.CorrectAnswerIndex < len(rq.Options) {
		want := rq.Options[rq.CorrectAnswerIndex]
		for i := range options {
			if options[i].Text == want {
				correct = i

				break
			}
		}
	}
	if correct < 0 {
		log.Warn().
			Str("question", rq.ID).
			Int("correctAnswerIndex", rq.CorrectAnswerIndex).
			Msg("⚠️ Opción correcta no encontrada tras barajar, se usa la primera")
		correct = 0
	}

	return models.Question{
		ID:                 rq.ID,
		Title:              rq.Category,
		Index:              index,
		Total:              total,
		Prompt:             rq.QuestionText,
		Options:            options,
		CorrectAnswerIndex: correct,
		Explanation:        rq.Explanation,
		TargetLevel:        rq.TargetLevel,
	}
}

// CategoryInfo categoría con sus etiquetas y preguntas disponibles por nivel
type CategoryInfo struct {
	Category  models.Category `json:"category"`
	RawLabels []string        `json:"rawLabels"`
	Available map[string]int  `json:"available"`
	Total     int             `json:"total"`
}

// Catalog opciones de la pantalla de configuración
type Catalog struct {
	Categories           []CategoryInfo `json:"categories"`
	Levels               []models.Level `json:"levels"`
	QuestionCountOptions []int          `json:"questionCountOptions"`
	DefaultQuestionCount int            `json:"defaultQuestionCount"`
	Bank                 bank.Metadata  `json:"bank"`
}

// Catalog lista categorías, niveles y cantidades disponibles
func (s *QuestionService) Catalog(ctx context.Context) (*Catalog, error) {
	raw, err := s.bank.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build catalog")
	}

	catalog := &Catalog{
		Levels:               models.Levels(),
		QuestionCountOptions: append([]int(nil), models.QuestionCountOptions...),
		DefaultQuestionCount: models.DefaultQuestionCount,
		Bank:                 bank.Describe(s.bank.Source().Name(), raw),
	}
	for _, category := range models.Categories() {
		info := CategoryInfo{
			Category:  category,
			RawLabels: category.RawLabels(),
			Available: make(map[string]int),
		}
		for i := range raw {
			if !category.Matches(strings.TrimSpace(raw[i].Category)) {
				continue
			}
			info.Total++
			for _, level := range models.Levels() {
				if level.Matches(raw[i].TargetLevel) {
					info.Available[string(level)]++
				}
			}
		}
		catalog.Categories = append(catalog.Categories, info)
	}

	return catalog, nil
}

// metadataSource fuente que guarda sus propios metadatos (Redis los escribe
// al sembrar)
type metadataSource interface {
	Metadata(ctx context.Context) (bank.Metadata, error)
}

// Metadata resumen del banco. Si la fuente guarda metadatos se usan esos; si
// no los tiene se calculan desde el banco cargado.
func (s *QuestionService) Metadata(ctx context.Context) (bank.Metadata, error) {
	if src, ok := s.bank.Source().(metadataSource); ok {
		meta, err := src.Metadata(ctx)
		if err == nil {
			return meta, nil
		}
		log.Warn().Err(err).Str("source", s.bank.Source().Name()).Msg("⚠️ Metadatos de la fuente no disponibles, se calculan del banco")
	}

	return s.bank.Metadata(ctx)
}

// ReloadQuestions descarta la caché y vuelve a leer la fuente
func (s *QuestionService) ReloadQuestions(ctx context.Context) (bank.Metadata, error) {
	log.Info().Str("source", s.bank.Source().Name()).Msg("🔄 Recargando preguntas...")
	s.bank.Clear()
	meta, err := s.bank.Metadata(ctx)
	if err != nil {
		return bank.Metadata{}, errors.Wrap(err, "failed to reload questions")
	}
	log.Info().Int("questions", meta.Total).Msg("✅ Preguntas recargadas exitosamente")

	return meta, nil
}

// HealthCheck verifica que el banco se pueda cargar y, si la fuente lo
// permite, que su backend responda
func (s *QuestionService) HealthCheck(ctx context.Context) error {
	if checker, ok := s.bank.Source().(interface{ HealthCheck(context.Context) error }); ok {
		if err := checker.HealthCheck(ctx); err != nil {
			return errors.Wrap(err, "question source health check failed")
		}
	}
	if _, err := s.bank.Load(ctx); err != nil {
		return errors.Wrap(err, "question bank not loadable")
	}

	return nil
}

package bank

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/backsoul/devquiz/pkg/models"
)

// Loader carga el banco una sola vez y lo mantiene en memoria durante la vida
// del proceso. Las llamadas concurrentes esperan la misma decodificación.
type Loader struct {
	source Source
	group  singleflight.Group

	mu         sync.RWMutex
	questions  []models.RawQuestion
	generation uint64
}

// NewLoader crea un cargador para la fuente indicada
func NewLoader(source Source) *Loader {
	return &Loader{source: source}
}

// Source devuelve la fuente configurada
func (l *Loader) Source() Source {
	return l.source
}

// Load devuelve el banco decodificado. El resultado no debe modificarse.
func (l *Loader) Load(ctx context.Context) ([]models.RawQuestion, error) {
	if questions, ok := l.cached(); ok {
		return questions, nil
	}

	// La lectura compartida no depende de la cancelación de quien la inició
	readCtx := context.WithoutCancel(ctx)
	res, err, shared := l.group.Do("bank", func() (interface{}, error) {
		if questions, ok := l.cached(); ok {
			return questions, nil
		}

		return l.decode(readCtx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug().Str("source", l.source.Name()).Msg("question bank load shared with concurrent caller")
	}

	return res.([]models.RawQuestion), nil
}

func (l *Loader) decode(ctx context.Context) ([]models.RawQuestion, error) {
	l.mu.RLock()
	generation := l.generation
	l.mu.RUnlock()

	data, err := l.source.Read(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read question bank from %s", l.source.Name())
	}

	questions, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode question bank from %s", l.source.Name())
	}

	l.mu.Lock()
	// Un Clear durante la lectura invalida este resultado
	if generation != l.generation {
		l.mu.Unlock()
		log.Debug().Str("source", l.source.Name()).Msg("question bank cleared while loading, result not cached")

		return questions, nil
	}
	l.questions = questions
	l.mu.Unlock()

	log.Info().
		Str("source", l.source.Name()).
		Int("questions", len(questions)).
		Msg("📚 Banco de preguntas cargado")

	return questions, nil
}

func (l *Loader) cached() ([]models.RawQuestion, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.questions, l.questions != nil
}

// Metadata describe el banco cargado
func (l *Loader) Metadata(ctx context.Context) (Metadata, error) {
	questions, err := l.Load(ctx)
	if err != nil {
		return Metadata{}, err
	}

	return Describe(l.source.Name(), questions), nil
}

// Clear descarta la caché; la próxima llamada a Load vuelve a leer la fuente
func (l *Loader) Clear() {
	l.mu.Lock()
	l.questions = nil
	l.generation++
	l.mu.Unlock()
	l.group.Forget("bank")
}

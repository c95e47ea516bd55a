package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/backsoul/devquiz/pkg/bank"
)

const (
	questionIDsKey = "quiz:question_ids"
	metadataKey    = "quiz:metadata"
)

func questionKey(id string) string {
	return fmt.Sprintf("quiz:question:%s", id)
}

// RedisClient fuente del banco de preguntas guardada en Redis
type RedisClient struct {
	client *redis.Client
	addr   string
}

// NewRedisClient crea una nueva instancia del cliente Redis y verifica la
// conexión
func NewRedisClient(ctx context.Context, addr, password string, db int) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()

		return nil, errors.Wrapf(err, "failed to connect to redis at %s", addr)
	}

	log.Info().Str("addr", addr).Msg("✅ Conexión exitosa a Redis")

	return &RedisClient{
		client: rdb,
		addr:   addr,
	}, nil
}

func (r *RedisClient) Name() string {
	return "redis:" + r.addr
}

// Read devuelve las preguntas guardadas como un arreglo JSON ordenado por ID
func (r *RedisClient) Read(ctx context.Context) ([]byte, error) {
	ids, err := r.client.SMembers(ctx, questionIDsKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get question ids")
	}
	if len(ids) == 0 {
		return nil, errors.Wrapf(bank.ErrDataUnavailable, "no questions stored in %s", questionIDsKey)
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = questionKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get questions")
	}

	return assembleBank(ids, values)
}

// assembleBank une los registros individuales en un único arreglo JSON
func assembleBank(ids []string, values []interface{}) ([]byte, error) {
	records := make([]json.RawMessage, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			return nil, errors.Wrapf(bank.ErrDataCorrupt, "question %s listed but not stored", ids[i])
		}
		records = append(records, json.RawMessage(raw))
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, errors.Wrapf(bank.ErrDataCorrupt, "stored questions are not valid json: %v", err)
	}

	return data, nil
}

// SeedQuestions valida el banco y reemplaza las preguntas guardadas
func (r *RedisClient) SeedQuestions(ctx context.Context, data []byte) (int, error) {
	questions, err := bank.Decode(data)
	if err != nil {
		return 0, errors.Wrap(err, "refusing to seed invalid question bank")
	}

	log.Info().Int("questions", len(questions)).Msg("📚 Cargando preguntas a Redis...")

	previous, err := r.client.SMembers(ctx, questionIDsKey).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get previous question ids")
	}
	metadata, err := json.Marshal(bank.Describe(r.Name(), questions))
	if err != nil {
		return 0, errors.Wrap(err, "failed to serialize metadata")
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range previous {
			pipe.Del(ctx, questionKey(id))
		}
		pipe.Del(ctx, questionIDsKey)

		ids := make([]interface{}, 0, len(questions))
		for i := range questions {
			record, err := json.Marshal(questions[i])
			if err != nil {
				return errors.Wrapf(err, "failed to serialize question %s", questions[i].ID)
			}
			pipe.Set(ctx, questionKey(questions[i].ID), record, 0)
			ids = append(ids, questions[i].ID)
		}
		if len(ids) > 0 {
			pipe.SAdd(ctx, questionIDsKey, ids...)
		}
		pipe.Set(ctx, metadataKey, metadata, 0)

		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to store questions")
	}

	log.Info().Int("questions", len(questions)).Msg("✅ Preguntas cargadas exitosamente en Redis")

	return len(questions), nil
}

// QuestionCount obtiene el número total de preguntas en Redis
func (r *RedisClient) QuestionCount(ctx context.Context) (int, error) {
	count, err := r.client.SCard(ctx, questionIDsKey).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get question count")
	}

	return int(count), nil
}

// Metadata metadatos guardados en la última siembra
func (r *RedisClient) Metadata(ctx context.Context) (bank.Metadata, error) {
	raw, err := r.client.Get(ctx, metadataKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return bank.Metadata{}, errors.Wrap(bank.ErrDataUnavailable, "metadata not found")
		}

		return bank.Metadata{}, errors.Wrap(err, "failed to get metadata")
	}

	var meta bank.Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return bank.Metadata{}, errors.Wrapf(bank.ErrDataCorrupt, "metadata: %v", err)
	}

	return meta, nil
}

// Close cierra la conexión con Redis
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// HealthCheck verifica que Redis esté funcionando
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis health check failed")
	}

	return nil
}

package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/backsoul/devquiz/pkg/engine"
	"github.com/backsoul/devquiz/pkg/services"
)

const (
	BankEmbedded = "embedded"
	BankFile     = "file"
	BankRedis    = "redis"
)

type Config struct {
	Server Server
	Log    Log
	Bank   Bank
	Redis  Redis
	Quiz   Quiz
}

type Server struct {
	Port string
}

type Log struct {
	Level  string
	Pretty bool
}

type Bank struct {
	Source string
	Path   string
}

type Redis struct {
	Addr     string
	Password string `json:"-"`
	DB       int
	Seed     bool
}

type Quiz struct {
	QuestionDuration    time.Duration
	AutoAdvanceDuration time.Duration
	TimeoutAdvanceDelay time.Duration
	RetryPolicy         services.RetryPolicy
}

// EngineConfig parámetros de tiempo para cada sesión
func (q Quiz) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.QuestionDuration = q.QuestionDuration
	cfg.AutoAdvanceDuration = q.AutoAdvanceDuration
	cfg.TimeoutAdvanceDelay = q.TimeoutAdvanceDelay

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("BANK_SOURCE", BankEmbedded)
	v.SetDefault("BANK_PATH", "questions.json")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_SEED", true)
	v.SetDefault("QUIZ_QUESTION_SECONDS", int(engine.DefaultQuestionDuration/time.Second))
	v.SetDefault("QUIZ_AUTO_ADVANCE_MS", int(engine.DefaultAutoAdvanceDuration/time.Millisecond))
	v.SetDefault("QUIZ_TIMEOUT_ADVANCE_MS", int(engine.DefaultTimeoutAdvanceDelay/time.Millisecond))
	v.SetDefault("QUIZ_RETRY_POLICY", string(services.RetryReshuffle))
}

// NewConfig lee .env del directorio actual y las variables de entorno
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = v.GetString("SERVER_PORT")
	config.Log.Level = v.GetString("LOG_LEVEL")
	config.Log.Pretty = v.GetBool("LOG_PRETTY")
	config.Bank.Source = strings.ToLower(strings.TrimSpace(v.GetString("BANK_SOURCE")))
	config.Bank.Path = v.GetString("BANK_PATH")
	config.Redis.Addr = v.GetString("REDIS_ADDR")
	config.Redis.Password = v.GetString("REDIS_PASSWORD")
	config.Redis.DB = v.GetInt("REDIS_DB")
	config.Redis.Seed = v.GetBool("REDIS_SEED")
	config.Quiz.QuestionDuration = time.Duration(v.GetInt("QUIZ_QUESTION_SECONDS")) * time.Second
	config.Quiz.AutoAdvanceDuration = time.Duration(v.GetInt("QUIZ_AUTO_ADVANCE_MS")) * time.Millisecond
	config.Quiz.TimeoutAdvanceDelay = time.Duration(v.GetInt("QUIZ_TIMEOUT_ADVANCE_MS")) * time.Millisecond
	config.Quiz.RetryPolicy = services.ParseRetryPolicy(v.GetString("QUIZ_RETRY_POLICY"))

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Info().Interface("config", config).Msg("Config loaded")

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Bank.Source {
	case BankEmbedded, BankRedis:
	case BankFile:
		if c.Bank.Path == "" {
			return errors.New("BANK_PATH is required when BANK_SOURCE=file")
		}
	default:
		return errors.Errorf("unknown BANK_SOURCE %q, expected embedded, file or redis", c.Bank.Source)
	}
	if c.Quiz.QuestionDuration < time.Second {
		return errors.Errorf("QUIZ_QUESTION_SECONDS must be at least 1, got %s", c.Quiz.QuestionDuration)
	}
	if c.Quiz.AutoAdvanceDuration <= 0 || c.Quiz.TimeoutAdvanceDelay <= 0 {
		return errors.New("QUIZ_AUTO_ADVANCE_MS and QUIZ_TIMEOUT_ADVANCE_MS must be positive")
	}

	return nil
}

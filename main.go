package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/backsoul/devquiz/pkg/bank"
	"github.com/backsoul/devquiz/pkg/config"
	"github.com/backsoul/devquiz/pkg/handlers"
	"github.com/backsoul/devquiz/pkg/logger"
	"github.com/backsoul/devquiz/pkg/redis"
	"github.com/backsoul/devquiz/pkg/services"
	"github.com/backsoul/devquiz/pkg/websocket"
)

var (
	questionHandler *handlers.QuestionHandler
	sessionHandler  *handlers.SessionHandler
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuración inválida")
	}
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().Msg("🚀 Iniciando servidor DevQuiz")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource := initSource(ctx, cfg)
	defer closeSource()

	// Inicializar servicios
	log.Info().Msg("⚙️  Inicializando servicios...")
	loader := bank.NewLoader(source)
	questionService := services.NewQuestionService(loader)
	sessionService := services.NewSessionService(questionService, cfg.Quiz.EngineConfig(), cfg.Quiz.RetryPolicy)
	defer sessionService.Close()

	// Inicializar WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run(ctx)
	sessionService.OnStateChange(hub.BroadcastSnapshot)

	questionHandler = handlers.NewQuestionHandler(questionService)
	sessionHandler = handlers.NewSessionHandler(sessionService, hub)

	loadInitialQuestions(ctx, questionService)

	server := &fasthttp.Server{
		Handler: requestHandler,
		Name:    "DevQuiz Server",
	}

	addr := ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Msg("🎮 Servidor DevQuiz iniciado")
	log.Info().Msg("🔧 API Health: http://localhost" + addr + "/api/health")
	log.Info().Msg("📊 API Catálogo: http://localhost" + addr + "/api/catalog")
	log.Info().Msg("🔄 Presiona Ctrl+C para detener el servidor")

	go func() {
		if err := server.ListenAndServe(addr); err != nil {
			log.Fatal().Err(err).Msg("Error al iniciar el servidor")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("🛑 Deteniendo servidor...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error deteniendo el servidor")
	}
}

// initSource elige el origen del banco según BANK_SOURCE
func initSource(ctx context.Context, cfg *config.Config) (bank.Source, func()) {
	switch cfg.Bank.Source {
	case config.BankFile:
		log.Info().Str("path", cfg.Bank.Path).Msg("📂 Banco de preguntas desde archivo")

		return bank.NewFileSource(cfg.Bank.Path), func() {}

	case config.BankRedis:
		log.Info().Str("addr", cfg.Redis.Addr).Msg("🔌 Conectando a Redis...")
		client, err := redis.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("No se pudo conectar a Redis")
		}
		if cfg.Redis.Seed {
			seedRedis(ctx, client)
		}

		return client, func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("Error cerrando Redis")
			}
		}

	default:
		log.Info().Msg("📦 Banco de preguntas embebido")

		return bank.NewEmbeddedSource(), func() {}
	}
}

// seedRedis carga el banco embebido si Redis está vacío
func seedRedis(ctx context.Context, client *redis.RedisClient) {
	count, err := client.QuestionCount(ctx)
	if err == nil && count > 0 {
		log.Info().Int("count", count).Msg("✅ Ya hay preguntas en Redis")

		return
	}

	data, err := bank.DefaultQuestionsJSON()
	if err != nil {
		log.Error().Err(err).Msg("Error leyendo el banco embebido")

		return
	}
	seeded, err := client.SeedQuestions(ctx, data)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Error cargando preguntas en Redis")

		return
	}
	log.Info().Int("count", seeded).Msg("✅ Preguntas cargadas en Redis")
}

func loadInitialQuestions(ctx context.Context, questionService *services.QuestionService) {
	log.Info().Msg("📚 Cargando preguntas iniciales...")

	metadata, err := questionService.Metadata(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Error cargando preguntas iniciales")
		log.Info().Msg("💡 El servidor continuará funcionando. Puedes recargar con POST /api/questions/reload")

		return
	}
	log.Info().Int("count", metadata.Total).Str("source", metadata.Source).Msg("✅ Preguntas disponibles")
}

func requestHandler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	log.Debug().Str("method", method).Str("path", path).Msg("📡 Petición")

	ctx.Response.Header.Set("Server", "DevQuiz-FastHTTP/1.0")
	ctx.Response.Header.Set("Cache-Control", "no-cache")

	// Headers CORS para desarrollo
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if method == fasthttp.MethodOptions {
		ctx.SetStatusCode(fasthttp.StatusOK)

		return
	}

	switch {
	case path == "/api/health":
		questionHandler.HealthCheck(ctx)
	case path == "/api/catalog" && method == fasthttp.MethodGet:
		questionHandler.GetCatalog(ctx)

	case path == "/api/questions" && method == fasthttp.MethodGet:
		questionHandler.GetQuestions(ctx)
	case path == "/api/questions/metadata" && method == fasthttp.MethodGet:
		questionHandler.GetQuestionMetadata(ctx)
	case path == "/api/questions/reload" && method == fasthttp.MethodPost:
		questionHandler.ReloadQuestions(ctx)

	case path == "/api/sessions" && method == fasthttp.MethodPost:
		sessionHandler.CreateSession(ctx)
	case path == "/api/sessions/active" && method == fasthttp.MethodGet:
		sessionHandler.GetActiveSessions(ctx)

	case path == "/ws":
		sessionHandler.HandleWebSocket(ctx)

	case strings.HasPrefix(path, "/api/sessions/") && method == fasthttp.MethodGet:
		handleSessionGetRoutes(ctx, path)
	case strings.HasPrefix(path, "/api/sessions/") && method == fasthttp.MethodPost:
		handleSessionPostRoutes(ctx, path)

	default:
		serve404(ctx)
	}
}

func handleSessionGetRoutes(ctx *fasthttp.RequestCtx, path string) {
	parts := strings.Split(path, "/")

	// /api/sessions/{id}
	if len(parts) == 4 {
		ctx.SetUserValue("id", parts[3])
		sessionHandler.GetSession(ctx)

		return
	}

	// /api/sessions/{id}/result
	if len(parts) == 5 && parts[4] == "result" {
		ctx.SetUserValue("id", parts[3])
		sessionHandler.GetResult(ctx)

		return
	}

	serve404(ctx)
}

func handleSessionPostRoutes(ctx *fasthttp.RequestCtx, path string) {
	parts := strings.Split(path, "/")
	if len(parts) != 5 {
		serve404(ctx)

		return
	}
	ctx.SetUserValue("id", parts[3])

	switch parts[4] {
	case "select":
		sessionHandler.SelectOption(ctx)
	case "evaluate":
		sessionHandler.Evaluate(ctx)
	case "advance":
		sessionHandler.Advance(ctx)
	case "retry":
		sessionHandler.Retry(ctx)
	case "finish":
		sessionHandler.FinishSession(ctx)
	default:
		serve404(ctx)
	}
}

func serve404(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusNotFound)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"success": false, "error": "Ruta no encontrada", "endpoints": [
		"GET /api/health",
		"GET /api/catalog",
		"GET /api/questions?category=CS&level=Easy&count=10",
		"GET /api/questions/metadata",
		"POST /api/questions/reload",
		"POST /api/sessions",
		"GET /api/sessions/active",
		"GET /api/sessions/{id}",
		"POST /api/sessions/{id}/select",
		"POST /api/sessions/{id}/evaluate",
		"POST /api/sessions/{id}/advance",
		"POST /api/sessions/{id}/retry",
		"POST /api/sessions/{id}/finish",
		"GET /api/sessions/{id}/result",
		"GET /ws?session={id}"
	]}`)
}

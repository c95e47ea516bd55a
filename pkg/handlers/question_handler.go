package handlers

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/backsoul/devquiz/pkg/models"
	"github.com/backsoul/devquiz/pkg/services"
)

// QuestionHandler maneja las peticiones HTTP para preguntas
type QuestionHandler struct {
	questionService *services.QuestionService
}

// NewQuestionHandler crea una nueva instancia del handler
func NewQuestionHandler(questionService *services.QuestionService) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
	}
}

// GetQuestions maneja GET /api/questions?category=CS&level=Easy&count=10
func (h *QuestionHandler) GetQuestions(ctx *fasthttp.RequestCtx) {
	filter, err := filterFromQuery(ctx.QueryArgs())
	if err != nil {
		respondWithError(ctx, fasthttp.StatusBadRequest, err.Error())

		return
	}

	questions, err := h.questionService.SelectQuestions(ctx, filter)
	if err != nil {
		respondWithErr(ctx, err)

		return
	}

	responseData := models.QuestionResponse{
		Questions: questions,
		Count:     len(questions),
		Requested: filter.Count,
	}

	h.respondQuestions(ctx, responseData)
}

func (h *QuestionHandler) respondQuestions(ctx *fasthttp.RequestCtx, data models.QuestionResponse) {
	message := "Preguntas obtenidas exitosamente"
	if data.Requested > 0 && data.Count < data.Requested {
		message = fmt.Sprintf("Solo hay %d de %d preguntas disponibles", data.Count, data.Requested)
	}
	respondWithSuccess(ctx, data, message)
}

func filterFromQuery(args *fasthttp.Args) (services.Filter, error) {
	var filter services.Filter
	if raw := string(args.Peek("category")); raw != "" {
		category, ok := models.ParseCategory(raw)
		if !ok {
			return filter, errors.Errorf("categoría desconocida: %s", raw)
		}
		filter.Category = category
	}
	if raw := string(args.Peek("level")); raw != "" {
		level, ok := models.ParseLevel(raw)
		if !ok {
			return filter, errors.Errorf("nivel desconocido: %s", raw)
		}
		filter.Level = level
	}
	if raw := string(args.Peek("count")); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil || count < 0 {
			return filter, errors.New("parámetro 'count' debe ser un número positivo")
		}
		filter.Count = count
	}

	return filter, nil
}

// GetCatalog maneja GET /api/catalog
func (h *QuestionHandler) GetCatalog(ctx *fasthttp.RequestCtx) {
	catalog, err := h.questionService.Catalog(ctx)
	if err != nil {
		respondWithErr(ctx, err)

		return
	}

	respondWithSuccess(ctx, catalog, "Catálogo obtenido exitosamente")
}

// GetQuestionMetadata maneja GET /api/questions/metadata
func (h *QuestionHandler) GetQuestionMetadata(ctx *fasthttp.RequestCtx) {
	metadata, err := h.questionService.Metadata(ctx)
	if err != nil {
		respondWithErr(ctx, err)

		return
	}

	respondWithSuccess(ctx, metadata, "Metadatos obtenidos exitosamente")
}

// ReloadQuestions maneja POST /api/questions/reload
func (h *QuestionHandler) ReloadQuestions(ctx *fasthttp.RequestCtx) {
	metadata, err := h.questionService.ReloadQuestions(ctx)
	if err != nil {
		respondWithErr(ctx, err)

		return
	}

	respondWithSuccess(ctx, metadata, "Preguntas recargadas exitosamente")
}

// HealthCheck maneja GET /api/health
func (h *QuestionHandler) HealthCheck(ctx *fasthttp.RequestCtx) {
	if err := h.questionService.HealthCheck(ctx); err != nil {
		respondWithError(ctx, fasthttp.StatusServiceUnavailable, fmt.Sprintf("Servicio no disponible: %v", err))

		return
	}

	respondWithSuccess(ctx, map[string]interface{}{
		"status": "healthy",
	}, "Servicio funcionando correctamente")
}

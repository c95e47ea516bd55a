package handlers

import (
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/backsoul/devquiz/pkg/bank"
	"github.com/backsoul/devquiz/pkg/engine"
	"github.com/backsoul/devquiz/pkg/models"
	"github.com/backsoul/devquiz/pkg/services"
)

// respondWithJSON envía una respuesta JSON
func respondWithJSON(ctx *fasthttp.RequestCtx, statusCode int, response interface{}) {
	ctx.Response.Header.Set("Content-Type", "application/json")
	ctx.SetStatusCode(statusCode)

	jsonData, err := json.Marshal(response)
	if err != nil {
		log.Error().Err(err).Msg("Error al serializar respuesta")
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"success": false, "error": "Error al serializar respuesta"}`)

		return
	}

	ctx.SetBody(jsonData)
}

// respondWithError envía una respuesta de error
func respondWithError(ctx *fasthttp.RequestCtx, statusCode int, message string) {
	respondWithJSON(ctx, statusCode, models.APIResponse{
		Success: false,
		Error:   message,
	})
}

// respondWithSuccess envía una respuesta exitosa
func respondWithSuccess(ctx *fasthttp.RequestCtx, data interface{}, message string) {
	respondWithJSON(ctx, fasthttp.StatusOK, models.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// respondWithErr traduce los errores del dominio a códigos HTTP
func respondWithErr(ctx *fasthttp.RequestCtx, err error) {
	respondWithError(ctx, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return fasthttp.StatusNotFound
	case errors.Is(err, services.ErrInvalidConfig), errors.Is(err, engine.ErrUnknownOption):
		return fasthttp.StatusBadRequest
	case errors.Is(err, engine.ErrInvalidTransition):
		return fasthttp.StatusConflict
	case errors.Is(err, engine.ErrSessionClosed):
		return fasthttp.StatusGone
	case errors.Is(err, bank.ErrDataUnavailable), errors.Is(err, bank.ErrDataCorrupt):
		return fasthttp.StatusServiceUnavailable
	default:
		return fasthttp.StatusInternalServerError
	}
}

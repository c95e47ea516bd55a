package handlers

import (
	"github.com/fasthttp/websocket"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/backsoul/devquiz/pkg/models"
	"github.com/backsoul/devquiz/pkg/services"
	websocketHub "github.com/backsoul/devquiz/pkg/websocket"
)

// SessionHandler maneja las peticiones HTTP para sesiones
type SessionHandler struct {
	sessionService *services.SessionService
	hub            *websocketHub.Hub
}

// NewSessionHandler crea una nueva instancia del handler de sesiones
func NewSessionHandler(sessionService *services.SessionService, hub *websocketHub.Hub) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		hub:            hub,
	}
}

func sessionID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)

	return id
}

// CreateSession maneja POST /api/sessions
func (h *SessionHandler) CreateSession(ctx *fasthttp.RequestCtx) {
	var request models.SessionCreateRequest
	if err := json.Unmarshal(ctx.PostBody(), &request); err != nil {
		respondWithError(ctx, fasthttp.StatusBadRequest, "JSON inválido")

		return
	}

	cfg, err := services.ConfigFromRequest(request)
	if err != nil {
		respondWithErr(ctx, err)

		return
	}

	session, err := h.sessionService.CreateSession(ctx, cfg)
	if err != nil {
		respondWithErr(ctx, err)

		return
	}

	message := "Sesión creada exitosamente"
	if session.DataError != "" {
		message = "Sesión creada sin preguntas: el banco no está disponible"
	}
	respondWithSuccess(ctx, session.View(), message)
}

// GetSession maneja GET /api/sessions/{id}
func (h *SessionHandler) GetSession(ctx *fasthttp.RequestCtx) {
	session, err := h.sessionService.GetSession(sessionID(ctx))
	if err != nil {
		respondWithErr(ctx, err)

		return
	}

	respondWithSuccess(ctx, session.View(), "Sesión obtenida exitosamente")
}

// GetActiveSessions maneja GET /api/sessions/active
func (h *SessionHandler) GetActiveSessions(ctx *fasthttp.RequestCtx) {
	sessions := h.sessionService.ActiveSessions()

	respondWithSuccess(ctx, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	}, "Sesiones activas obtenidas exitosamente")
}

// SelectOption maneja POST /api/sessions/{id}/select
func (h *SessionHandler) SelectOption(ctx *fasthttp.RequestCtx) {
	var request models.SelectOptionRequest
	if err := json.Unmarshal(ctx.PostBody(), &request); err != nil || request.OptionID == "" {
		respondWithError(ctx, fasthttp.StatusBadRequest, "Se requiere 'optionId'")

		return
	}

	h.withSession(ctx, "Opción seleccionada", func(session *services.Session) error {
		return session.Engine.SelectOptionByID(request.OptionID)
	})
}

// Evaluate maneja POST /api/sessions/{id}/evaluate
func (h *SessionHandler) Evaluate(ctx *fasthttp.RequestCtx) {
	h.withSession(ctx, "Respuesta evaluada", func(session *services.Session) error {
		return session.Engine.Evaluate()
	})
}

// Advance maneja POST /api/sessions/{id}/advance
func (h *SessionHandler) Advance(ctx *fasthttp.RequestCtx) {
	h.withSession(ctx, "Siguiente pregunta", func(session *services.Session) error {
		return session.Engine.Advance()
	})
}

func (h *SessionHandler) withSession(ctx *fasthttp.RequestCtx, message string, fn func(*services.Session) error) {
	session, err := h.sessionService.GetSession(sessionID(ctx))
	if err != nil {
		respondWithErr(ctx, err)

		return
	}
	if err := fn(session); err != nil {
		respondWithErr(ctx, err)

		return
	}

	respondWithSuccess(ctx, session.View(), message)
}

// Retry maneja POST /api/sessions/{id}/retry
func (h *SessionHandler) Retry(ctx *fasthttp.RequestCtx) {
	session, err := h.sessionService.Retry(ctx, sessionID(ctx))
	if err != nil {
		respondWithErr(ctx, err)

		return
	}

	message := "Nueva sesión creada con la misma configuración y preguntas nuevas"
	if h.sessionService.RetryPolicy() == services.RetryReuse && session.DataError == "" {
		message = "Nueva sesión creada con las mismas preguntas"
	}
	respondWithSuccess(ctx, session.View(), message)
}

// GetResult maneja GET /api/sessions/{id}/result
func (h *SessionHandler) GetResult(ctx *fasthttp.RequestCtx) {
	summary, err := h.sessionService.Result(sessionID(ctx))
	if err != nil {
		respondWithErr(ctx, err)

		return
	}

	respondWithSuccess(ctx, models.NewResultResponse(summary), "Resultado obtenido exitosamente")
}

// FinishSession maneja POST /api/sessions/{id}/finish
func (h *SessionHandler) FinishSession(ctx *fasthttp.RequestCtx) {
	summary, err := h.sessionService.FinishSession(sessionID(ctx))
	if err != nil {
		respondWithErr(ctx, err)

		return
	}

	respondWithSuccess(ctx, models.NewResultResponse(summary), "Sesión finalizada exitosamente")
}

var upgrader = websocket.FastHTTPUpgrader{
	CheckOrigin: func(ctx *fasthttp.RequestCtx) bool {
		return true // Permitir conexiones desde cualquier origen en desarrollo
	},
}

// HandleWebSocket maneja GET /ws?session={id}
func (h *SessionHandler) HandleWebSocket(ctx *fasthttp.RequestCtx) {
	id := string(ctx.QueryArgs().Peek("session"))
	session, err := h.sessionService.GetSession(id)
	if err != nil {
		respondWithErr(ctx, err)

		return
	}

	initial, err := websocketHub.EncodeMessage(id, websocketHub.MessageSnapshot, session.Engine.Snapshot())
	if err != nil {
		respondWithError(ctx, fasthttp.StatusInternalServerError, "Error serializando estado")

		return
	}

	err = upgrader.Upgrade(ctx, func(ws *websocket.Conn) {
		h.hub.Register(id, ws, initial)
		defer h.hub.Unregister(id, ws)

		// Los clientes solo escuchan; la lectura detecta el cierre
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				log.Debug().Err(err).Str("session", id).Msg("Conexión WebSocket cerrada")

				break
			}
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("Error upgrading to WebSocket")
	}
}

package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/backsoul/devquiz/pkg/bank"
	"github.com/backsoul/devquiz/pkg/engine"
	"github.com/backsoul/devquiz/pkg/models"
	"github.com/backsoul/devquiz/pkg/services"
	websocketHub "github.com/backsoul/devquiz/pkg/websocket"
)

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

type testServer struct {
	questions *QuestionHandler
	sessions  *SessionHandler
	service   *services.SessionService
}

func helperServer(t *testing.T) *testServer {
	t.Helper()

	questionService := services.NewQuestionService(bank.NewLoader(bank.NewEmbeddedSource()))
	cfg := engine.DefaultConfig()
	cfg.QuestionDuration = time.Hour
	sessionService := services.NewSessionService(questionService, cfg, services.RetryReshuffle)
	t.Cleanup(sessionService.Close)

	hub := websocketHub.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	return &testServer{
		questions: NewQuestionHandler(questionService),
		sessions:  NewSessionHandler(sessionService, hub),
		service:   sessionService,
	}
}

func helperCall[T any](t *testing.T, handler fasthttp.RequestHandler, method, uri, body, id string) (int, envelope[T]) {
	t.Helper()

	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}
	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	if id != "" {
		ctx.SetUserValue("id", id)
	}

	handler(&ctx)

	var resp envelope[T]
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp), string(ctx.Response.Body()))

	return ctx.Response.StatusCode(), resp
}

func TestQuestionRoutes(t *testing.T) {
	t.Parallel()

	srv := helperServer(t)

	status, health := helperCall[map[string]string](t, srv.questions.HealthCheck, "GET", "/api/health", "", "")
	require.Equal(t, fasthttp.StatusOK, status)
	require.Equal(t, "healthy", health.Data["status"])

	status, catalog := helperCall[services.Catalog](t, srv.questions.GetCatalog, "GET", "/api/catalog", "", "")
	require.Equal(t, fasthttp.StatusOK, status)
	require.Len(t, catalog.Data.Categories, len(models.Categories()))

	status, questions := helperCall[models.QuestionResponse](t, srv.questions.GetQuestions, "GET", "/api/questions?category=swift&level=easy&count=40", "", "")
	require.Equal(t, fasthttp.StatusOK, status)
	require.Equal(t, 40, questions.Data.Requested)
	require.Equal(t, len(questions.Data.Questions), questions.Data.Count)
	require.NotZero(t, questions.Data.Count)
	for i, q := range questions.Data.Questions {
		require.Equal(t, i+1, q.Index)
		require.Equal(t, questions.Data.Count, q.Total)
		require.Equal(t, "Swift", q.Title)
	}

	status, bad := helperCall[any](t, srv.questions.GetQuestions, "GET", "/api/questions?category=cooking", "", "")
	require.Equal(t, fasthttp.StatusBadRequest, status)
	require.False(t, bad.Success)

	status, reloaded := helperCall[bank.Metadata](t, srv.questions.ReloadQuestions, "POST", "/api/questions/reload", "", "")
	require.Equal(t, fasthttp.StatusOK, status)
	require.NotZero(t, reloaded.Data.Total)
}

func TestSessionFlow(t *testing.T) {
	t.Parallel()

	srv := helperServer(t)

	status, created := helperCall[services.SessionView](t, srv.sessions.CreateSession, "POST", "/api/sessions",
		`{"category": "CS", "level": "Easy", "questionCount": 20}`, "")
	require.Equal(t, fasthttp.StatusOK, status, created.Error)
	id := created.Data.ID
	require.NotEmpty(t, id)
	require.Equal(t, 20, created.Data.Requested)
	require.GreaterOrEqual(t, created.Data.Selected, 2)
	require.Equal(t, engine.StateNone, created.Data.State.State)
	require.Equal(t, 60*60, created.Data.State.TimeRemaining)

	status, _ = helperCall[any](t, srv.sessions.Advance, "POST", "/api/sessions/"+id+"/advance", "", id)
	require.Equal(t, fasthttp.StatusConflict, status)

	session, err := srv.service.GetSession(id)
	require.NoError(t, err)
	q, ok := session.Engine.CurrentQuestion()
	require.True(t, ok)
	wrong := q.Options[(q.CorrectAnswerIndex+1)%len(q.Options)]

	status, _ = helperCall[any](t, srv.sessions.SelectOption, "POST", "/api/sessions/"+id+"/select", `{"optionId": "nope"}`, id)
	require.Equal(t, fasthttp.StatusBadRequest, status)

	status, selected := helperCall[services.SessionView](t, srv.sessions.SelectOption, "POST", "/api/sessions/"+id+"/select",
		`{"optionId": "`+wrong.ID+`"}`, id)
	require.Equal(t, fasthttp.StatusOK, status)
	require.Equal(t, engine.StateSelected, selected.Data.State.State)

	status, evaluated := helperCall[services.SessionView](t, srv.sessions.Evaluate, "POST", "/api/sessions/"+id+"/evaluate", "", id)
	require.Equal(t, fasthttp.StatusOK, status)
	require.Equal(t, engine.StateIncorrect, evaluated.Data.State.State)
	require.Equal(t, q.CorrectOption().ID, evaluated.Data.State.CorrectOptionID)

	status, _ = helperCall[any](t, srv.sessions.SelectOption, "POST", "/api/sessions/"+id+"/select",
		`{"optionId": "`+q.CorrectOption().ID+`"}`, id)
	require.Equal(t, fasthttp.StatusConflict, status)

	status, advanced := helperCall[services.SessionView](t, srv.sessions.Advance, "POST", "/api/sessions/"+id+"/advance", "", id)
	require.Equal(t, fasthttp.StatusOK, status)
	require.Equal(t, 1, advanced.Data.State.CurrentIndex)

	status, result := helperCall[models.ResultResponse](t, srv.sessions.GetResult, "GET", "/api/sessions/"+id+"/result", "", id)
	require.Equal(t, fasthttp.StatusOK, status)
	require.Len(t, result.Data.Summary.MissedItems, 1)
	require.Equal(t, wrong.Text, result.Data.Summary.MissedItems[0].UserAnswer)

	status, retried := helperCall[services.SessionView](t, srv.sessions.Retry, "POST", "/api/sessions/"+id+"/retry", "", id)
	require.Equal(t, fasthttp.StatusOK, status)
	require.NotEqual(t, id, retried.Data.ID)
	require.Equal(t, 2, retried.Data.Attempt)
	require.Equal(t, "Nueva sesión creada con la misma configuración y preguntas nuevas", retried.Message)

	status, _ = helperCall[any](t, srv.sessions.GetSession, "GET", "/api/sessions/"+id, "", id)
	require.Equal(t, fasthttp.StatusNotFound, status)

	status, active := helperCall[map[string]any](t, srv.sessions.GetActiveSessions, "GET", "/api/sessions/active", "", "")
	require.Equal(t, fasthttp.StatusOK, status)
	require.EqualValues(t, 1, active.Data["count"])

	status, finished := helperCall[models.ResultResponse](t, srv.sessions.FinishSession, "POST", "/api/sessions/"+retried.Data.ID+"/finish", "", retried.Data.ID)
	require.Equal(t, fasthttp.StatusOK, status)
	require.Zero(t, finished.Data.Summary.CorrectCount)
	require.Equal(t, "Keep learning! Every mistake is a step forward.", finished.Data.PerformanceMessage)
}

func TestCreateSessionValidation(t *testing.T) {
	t.Parallel()

	srv := helperServer(t)
	for _, body := range []string{`{`, `{"level": "Easy"}`, `{"category": "CS"}`, `{"category": "CS", "level": "Expert"}`} {
		status, resp := helperCall[any](t, srv.sessions.CreateSession, "POST", "/api/sessions", body, "")
		require.Equal(t, fasthttp.StatusBadRequest, status, body)
		require.False(t, resp.Success)
		require.NotEmpty(t, resp.Error)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, fasthttp.StatusConflict, statusFor(engine.ErrLastQuestion))
	require.Equal(t, fasthttp.StatusGone, statusFor(engine.ErrSessionClosed))
	require.Equal(t, fasthttp.StatusBadRequest, statusFor(engine.ErrUnknownOption))
	require.Equal(t, fasthttp.StatusNotFound, statusFor(services.ErrSessionNotFound))
	require.Equal(t, fasthttp.StatusServiceUnavailable, statusFor(bank.ErrDataCorrupt))
	require.Equal(t, fasthttp.StatusInternalServerError, statusFor(context.Canceled))
}

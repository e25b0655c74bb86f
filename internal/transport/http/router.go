package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-player/internal/app"
	"quiz-player/internal/domain"
)

const (
	detailNoCredentials    = "Authentication credentials were not provided."
	detailCSRF             = "CSRF Failed: CSRF token missing or incorrect."
	detailBadPayload       = "Invalid answer payload."
	detailNotFound         = "Not found."
	detailMethodNotAllowed = "Method not allowed."
	detailInternal         = "Internal server error."
)

// API serves the lobby REST endpoints backed by a LobbyService.
type API struct {
	service *app.LobbyService
	logger  *zap.Logger
}

func NewAPI(service *app.LobbyService, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{service: service, logger: logger}
}

// NewRouter wires the REST API, the lobby WebSocket and a health check.
func NewRouter(service *app.LobbyService, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	api := NewAPI(service, logger)
	ws := NewWSHandler(service, logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(checkCSRF)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws/lobby/{lobbyId}", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/csrf/", api.csrf)

		r.Route("/game", func(r chi.Router) {
			r.Get("/quizzes/", api.quizzes)
			// The literal join segment wins over {lobbyId}.
			r.Post("/lobby/join/{quizId}/", api.withUser(api.join))
			r.Get("/lobby/{lobbyId}/state/", api.withUser(api.state))
			r.Post("/lobby/{lobbyId}/submit/", api.withUser(api.submit))
			r.Get("/participations/mine/", api.withUser(api.participations))
			r.Get("/participations/{id}/", api.withUser(api.participation))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, detailNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, detailMethodNotAllowed)
	})

	return r
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// withUser resolves the caller from the session cookie.
func (a *API) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userFrom(r)
		if !ok {
			writeDetail(w, http.StatusForbidden, detailNoCredentials)
			return
		}
		next(w, r, userID)
	}
}

func (a *API) csrf(w http.ResponseWriter, r *http.Request) {
	token := ""
	if ck, err := r.Cookie(csrfCookie); err == nil && ck.Value != "" {
		token = ck.Value
	} else {
		token = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: token, Path: "/", SameSite: http.SameSiteLaxMode})
	writeJSON(w, http.StatusOK, map[string]string{"detail": "CSRF cookie set"})
}

func (a *API) quizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := a.service.PublishedQuizzes(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (a *API) join(w http.ResponseWriter, r *http.Request, userID string) {
	quizID, err := strconv.ParseInt(chi.URLParam(r, "quizId"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusNotFound, detailNotFound)
		return
	}
	joined, err := a.service.StartSoloQuiz(r.Context(), quizID, userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, joined)
}

func (a *API) state(w http.ResponseWriter, r *http.Request, userID string) {
	state, err := a.service.State(r.Context(), chi.URLParam(r, "lobbyId"), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) submit(w http.ResponseWriter, r *http.Request, userID string) {
	var payload domain.AnswerPayload
	// An empty body is a no-answer submission.
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeDetail(w, http.StatusBadRequest, detailBadPayload)
		return
	}
	if payload.Index != nil && *payload.Index < 0 {
		writeDetail(w, http.StatusBadRequest, detailBadPayload)
		return
	}
	result, err := a.service.SubmitAnswer(r.Context(), chi.URLParam(r, "lobbyId"), userID, payload)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) participations(w http.ResponseWriter, r *http.Request, userID string) {
	list, err := a.service.Participations(r.Context(), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) participation(w http.ResponseWriter, r *http.Request, userID string) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusNotFound, detailNotFound)
		return
	}
	p, err := a.service.Participation(r.Context(), id, userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeDetail(w, status, detailInternal)
		return
	}
	writeDetail(w, status, domain.Message(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrLobbyNotFound),
		errors.Is(err, domain.ErrParticipationNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotInLobby):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func userFrom(r *http.Request) (string, bool) {
	ck, err := r.Cookie(sessionCookie)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

// checkCSRF requires the X-CSRFToken header to echo the csrftoken cookie on unsafe methods.
func checkCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if unsafeMethod(r.Method) {
			ck, err := r.Cookie(csrfCookie)
			header := r.Header.Get(csrfHeader)
			if err != nil || ck.Value == "" || header != ck.Value {
				writeDetail(w, http.StatusForbidden, detailCSRF)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("latency", time.Since(start)))
		})
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

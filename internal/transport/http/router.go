package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quizgenius-service/internal/app"
	"quizgenius-service/internal/auth"
)

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	Quizzes     *app.QuizService
	Auth        *app.AuthService
	Issuer      *auth.Issuer
	CORSOrigins []string
}

// NewRouter mounts the REST API, the player websocket, health and metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	api := &API{quizzes: cfg.Quizzes, auth: cfg.Auth}
	ws := NewWSHandler(cfg.Quizzes)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// websockets outlive any request timeout
	r.With(auth.Authenticate(cfg.Issuer)).Get("/ws", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(auth.Authenticate(cfg.Issuer))

		r.Post("/auth/login", api.Login)
		r.Post("/auth/register", api.Register)

		r.Route("/quizzes", func(r chi.Router) {
			r.Get("/", api.ListQuizzes)
			r.Get("/{quizID}", api.GetQuiz)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Post("/", api.CreateQuiz)
				r.Put("/{quizID}", api.UpdateQuiz)
				r.Delete("/{quizID}", api.DeleteQuiz)
			})
		})

		r.Route("/attempts", func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Post("/", api.RecordAttempt)
			r.Get("/my-attempts", api.MyAttempts)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", api.StartSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", api.GetSession)
				r.Delete("/", api.EndSession)
				r.Post("/select", api.SelectOption)
				r.Post("/next", api.Next)
				r.Post("/back", api.Back)
				r.Post("/retake", api.Retake)
			})
		})
	})
	return r
}

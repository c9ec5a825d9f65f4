package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quizgenius-service/internal/app"
	"quizgenius-service/internal/auth"
	"quizgenius-service/internal/domain"
	"quizgenius-service/internal/quiz"
)

// API holds the REST handlers.
type API struct {
	quizzes *app.QuizService
	auth    *app.AuthService
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var creds app.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tok, err := a.auth.Login(r.Context(), creds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var creds app.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tok, err := a.auth.Register(r.Context(), creds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tok)
}

func (a *API) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := a.quizzes.ListQuizzes(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (a *API) GetQuiz(w http.ResponseWriter, r *http.Request) {
	q, err := a.quizzes.GetQuiz(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var draft domain.Quiz
	if err := decodeJSON(w, r, &draft); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q, err := a.quizzes.CreateQuiz(r.Context(), auth.PrincipalFromContext(r.Context()), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (a *API) UpdateQuiz(w http.ResponseWriter, r *http.Request) {
	var draft domain.Quiz
	if err := decodeJSON(w, r, &draft); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q, err := a.quizzes.UpdateQuiz(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "quizID"), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) DeleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := a.quizzes.DeleteQuiz(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "quizID")); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "quiz deleted")
}

func (a *API) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	var in domain.Attempt
	if err := decodeJSON(w, r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	saved, err := a.quizzes.RecordAttempt(r.Context(), auth.PrincipalFromContext(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (a *API) MyAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := a.quizzes.MyAttempts(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

type startSessionRequest struct {
	QuizID string `json:"quizId"`
}

type selectRequest struct {
	Option string `json:"option"`
}

func (a *API) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(w, r, &req); err != nil || req.QuizID == "" {
		writeMessage(w, http.StatusBadRequest, "quizId is required")
		return
	}
	player := a.quizzes.StartSession(r.Context(), req.QuizID, auth.PrincipalFromContext(r.Context()))
	// Snapshot waits for the initial load, so the reply is never LOADING.
	s, err := player.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(player.ID(), s))
}

func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	a.withPlayer(w, r, func(ctx context.Context, p *app.Player) (quiz.Session, error) {
		return p.Snapshot(ctx)
	})
}

func (a *API) EndSession(w http.ResponseWriter, r *http.Request) {
	player, err := a.player(r)
	if err != nil {
		writeError(w, err)
		return
	}
	a.quizzes.EndSession(player.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) SelectOption(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.withPlayer(w, r, func(ctx context.Context, p *app.Player) (quiz.Session, error) {
		return p.Select(ctx, req.Option)
	})
}

func (a *API) Next(w http.ResponseWriter, r *http.Request) {
	a.withPlayer(w, r, func(ctx context.Context, p *app.Player) (quiz.Session, error) {
		return p.Advance(ctx)
	})
}

func (a *API) Back(w http.ResponseWriter, r *http.Request) {
	a.withPlayer(w, r, func(ctx context.Context, p *app.Player) (quiz.Session, error) {
		return p.Back(ctx)
	})
}

func (a *API) Retake(w http.ResponseWriter, r *http.Request) {
	a.withPlayer(w, r, func(ctx context.Context, p *app.Player) (quiz.Session, error) {
		return p.Retake(ctx)
	})
}

func (a *API) player(r *http.Request) (*app.Player, error) {
	return a.quizzes.Session(r.Context(), chi.URLParam(r, "sessionID"), auth.PrincipalFromContext(r.Context()))
}

func (a *API) withPlayer(w http.ResponseWriter, r *http.Request, do func(context.Context, *app.Player) (quiz.Session, error)) {
	player, err := a.player(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s, err := do(r.Context(), player)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(player.ID(), s))
}

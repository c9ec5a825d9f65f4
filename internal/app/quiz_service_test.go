package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quizgenius-service/internal/app"
	"quizgenius-service/internal/domain"
	"quizgenius-service/internal/infra/memory"
	"quizgenius-service/internal/quiz"
)

var (
	admin   = domain.Principal{Role: domain.RoleAdmin, Username: "admin"}
	student = domain.Principal{Role: domain.RoleStudent, UserID: "u1", Username: "ada"}
)

func TestSessionIsOwnedByItsPrincipal(t *testing.T) {
	ctx := context.Background()
	env := newTestService()
	defer env.service.Close()

	player := env.service.StartSession(ctx, "sample-go-basics", student)

	if _, err := env.service.Session(ctx, player.ID(), domain.Principal{Role: domain.RoleStudent, UserID: "u2"}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected other student to be refused, got %v", err)
	}
	if _, err := env.service.Session(ctx, player.ID(), domain.Anonymous()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected anonymous to be refused, got %v", err)
	}
	got, err := env.service.Session(ctx, player.ID(), student)
	if err != nil || got != player {
		t.Fatalf("expected owner to get the player, got %v", err)
	}

	env.service.EndSession(player.ID())
	if _, err := env.service.Session(ctx, player.ID(), student); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ended session gone, got %v", err)
	}
	if _, err := player.Advance(ctx); !errors.Is(err, domain.ErrPlayerClosed) {
		t.Fatalf("expected closed player, got %v", err)
	}
}

func TestReapIdleEndsIdleTerminalSessions(t *testing.T) {
	ctx := context.Background()
	var (
		mu  sync.Mutex
		now = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	wait := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
	store := memory.NewQuizStore(memory.SampleQuiz())
	service := app.NewQuizService(
		memory.NewSessionStore(),
		memory.NewQuizRepository(store, 5*time.Minute),
		store,
		memory.NewAttemptStore(),
		app.WithPlayerOptions(app.PlayerOptions{TickInterval: time.Hour}),
		app.WithClock(clock),
	)
	defer service.Close()

	playing := service.StartSession(ctx, "sample-go-basics", student)
	missing := service.StartSession(ctx, "missing", student)
	for _, p := range []*app.Player{playing, missing} {
		if _, err := p.Snapshot(ctx); err != nil {
			t.Fatalf("snapshot: %v", err)
		}
	}

	wait(time.Hour)
	if n := service.ReapIdle(30 * time.Minute); n != 1 {
		t.Fatalf("expected only the not found session reaped, got %d", n)
	}
	if _, err := service.Session(ctx, missing.ID(), student); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found session gone, got %v", err)
	}

	s, _ := playing.Snapshot(ctx)
	for s.Phase == quiz.PhaseInProgress {
		s, _ = playing.Advance(ctx)
	}
	if n := service.ReapIdle(30 * time.Minute); n != 0 {
		t.Fatalf("expected recently used session kept, got %d reaped", n)
	}
	wait(time.Hour)
	if n := service.ReapIdle(30 * time.Minute); n != 1 {
		t.Fatalf("expected idle finished session reaped, got %d", n)
	}
}

func TestReapIdleEndsAbandonedSessions(t *testing.T) {
	ctx := context.Background()
	var (
		mu  sync.Mutex
		now = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	store := memory.NewQuizStore(memory.SampleQuiz())
	attempts := memory.NewAttemptStore()
	service := app.NewQuizService(
		memory.NewSessionStore(),
		memory.NewQuizRepository(store, 5*time.Minute),
		store,
		attempts,
		app.WithPlayerOptions(app.PlayerOptions{TickInterval: time.Second, AbandonAfter: 5 * time.Second}),
		app.WithClock(clock),
	)
	defer service.Close()

	walkedAway := service.StartSession(ctx, "sample-go-basics", student)
	watched := service.StartSession(ctx, "sample-go-basics", student)
	for _, p := range []*app.Player{walkedAway, watched} {
		if _, err := p.Snapshot(ctx); err != nil {
			t.Fatalf("snapshot: %v", err)
		}
	}
	_, cancel := watched.Subscribe()
	defer cancel()

	if n := service.ReapIdle(30 * time.Minute); n != 0 {
		t.Fatalf("expected fresh sessions kept, got %d reaped", n)
	}

	mu.Lock()
	now = now.Add(6 * time.Second)
	mu.Unlock()
	if n := service.ReapIdle(30 * time.Minute); n != 1 {
		t.Fatalf("expected only the abandoned session reaped, got %d", n)
	}
	if _, err := service.Session(ctx, walkedAway.ID(), student); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected abandoned session gone, got %v", err)
	}
	if _, err := service.Session(ctx, watched.ID(), student); err != nil {
		t.Fatalf("expected watched session kept, got %v", err)
	}
	if list, _ := attempts.ListAttemptsByUser(ctx, student.UserID); len(list) != 0 {
		t.Fatalf("expected no attempt from an abandoned session, got %+v", list)
	}
}

func TestFinishedSessionRecordsAttempt(t *testing.T) {
	ctx := context.Background()
	env := newTestService()
	defer env.service.Close()

	player := env.service.StartSession(ctx, "sample-go-basics", student)
	s, err := player.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for s.Phase == quiz.PhaseInProgress {
		q, _ := s.CurrentQuestion()
		if _, err := player.Select(ctx, q.CorrectAnswer); err != nil {
			t.Fatalf("select: %v", err)
		}
		if s, err = player.Advance(ctx); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	if s.Phase != quiz.PhaseFinished || s.Result.Earned != 40 || s.Result.Total != 40 {
		t.Fatalf("expected perfect finish, got %+v", s)
	}

	// ending the session waits for persistence
	env.service.EndSession(player.ID())

	attempts, err := env.service.MyAttempts(ctx, student)
	if err != nil {
		t.Fatalf("my attempts: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected one attempt, got %d", len(attempts))
	}
	a := attempts[0]
	if a.ID == "" || a.UserID != "u1" || a.QuizID != "sample-go-basics" || a.Score != 40 || a.MaxScore != 40 || len(a.Answers) != 3 {
		t.Fatalf("unexpected attempt %+v", a)
	}
	if !a.Timestamp.Equal(env.now) {
		t.Fatalf("expected timestamp %v, got %v", env.now, a.Timestamp)
	}
	if env.publisher.count() != 1 {
		t.Fatalf("expected one published event, got %d", env.publisher.count())
	}
}

func TestAnonymousSessionDoesNotRecordAttempt(t *testing.T) {
	ctx := context.Background()
	env := newTestService()
	defer env.service.Close()

	player := env.service.StartSession(ctx, "sample-go-basics", domain.Anonymous())
	s, _ := player.Snapshot(ctx)
	for s.Phase == quiz.PhaseInProgress {
		s, _ = player.Advance(ctx)
	}
	env.service.EndSession(player.ID())

	if env.publisher.count() != 0 {
		t.Fatalf("expected no attempt for anonymous play")
	}
}

func TestPublishFailureDoesNotFailPersist(t *testing.T) {
	env := newTestService()
	env.publisher.err = errors.New("broker down")

	saved, err := env.service.PersistAttempt(context.Background(), domain.Attempt{UserID: "u1", QuizID: "q", Score: 1, MaxScore: 2})
	if err != nil {
		t.Fatalf("expected persist to succeed, got %v", err)
	}
	if saved.ID == "" || saved.Answers == nil {
		t.Fatalf("expected id and answers assigned, got %+v", saved)
	}
}

func TestRecordAttemptValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestService()

	if _, err := env.service.RecordAttempt(ctx, domain.Anonymous(), domain.Attempt{QuizID: "q", MaxScore: 10}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for anonymous, got %v", err)
	}
	for _, bad := range []domain.Attempt{
		{QuizID: "q", Score: 11, MaxScore: 10},
		{QuizID: "q", Score: -1, MaxScore: 10},
		{Score: 1, MaxScore: 10},
	} {
		if _, err := env.service.RecordAttempt(ctx, student, bad); !errors.Is(err, domain.ErrInvalidAttempt) {
			t.Fatalf("expected invalid attempt for %+v, got %v", bad, err)
		}
	}

	got, err := env.service.RecordAttempt(ctx, student, domain.Attempt{UserID: "spoofed", QuizID: "q", Score: 5, MaxScore: 10})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got.UserID != "u1" {
		t.Fatalf("expected user id from principal, got %q", got.UserID)
	}
}

func TestAuthoringRequiresAdminAndNormalizes(t *testing.T) {
	ctx := context.Background()
	env := newTestService()

	draft := domain.Quiz{
		Title: "Capitals",
		Questions: []domain.Question{
			{Text: "Capital of France?", Options: []string{"Paris", "Lyon"}, CorrectAnswer: "Paris"},
			{Text: "Oslo is in Norway.", Type: domain.QuestionTrueFalse, CorrectAnswer: "True", Points: 5},
		},
	}
	if _, err := env.service.CreateQuiz(ctx, student, draft); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for student, got %v", err)
	}

	created, err := env.service.CreateQuiz(ctx, admin, draft)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || !created.CreatedAt.Equal(env.now) {
		t.Fatalf("expected id and createdAt, got %+v", created)
	}
	q1, q2 := created.Questions[0], created.Questions[1]
	if q1.ID == "" || q1.Type != domain.QuestionMCQ || q1.Points != domain.DefaultPoints {
		t.Fatalf("expected MCQ defaults, got %+v", q1)
	}
	if len(q2.Options) != 2 || q2.Options[0] != "True" || q2.Options[1] != "False" || q2.Points != 5 {
		t.Fatalf("expected fixed true/false options, got %+v", q2)
	}

	if err := env.service.DeleteQuiz(ctx, student, created.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden delete, got %v", err)
	}
	if err := env.service.DeleteQuiz(ctx, admin, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.service.GetQuiz(ctx, admin, created.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected deleted quiz gone, got %v", err)
	}
}

func TestAuthoringRejectsInvalidQuizzes(t *testing.T) {
	ctx := context.Background()
	env := newTestService()

	cases := map[string]domain.Quiz{
		"missing title": {Questions: []domain.Question{{Text: "a", Options: []string{"x", "y"}, CorrectAnswer: "x"}}},
		"answer not an option": {Title: "t", Questions: []domain.Question{
			{Text: "a", Options: []string{"x", "y"}, CorrectAnswer: "z"},
		}},
		"single option": {Title: "t", Questions: []domain.Question{
			{Text: "a", Options: []string{"x"}, CorrectAnswer: "x"},
		}},
		"missing text": {Title: "t", Questions: []domain.Question{
			{Options: []string{"x", "y"}, CorrectAnswer: "x"},
		}},
		"unknown type": {Title: "t", Questions: []domain.Question{
			{Text: "a", Type: "ESSAY", Options: []string{"x", "y"}, CorrectAnswer: "x"},
		}},
	}
	for name, q := range cases {
		if _, err := env.service.CreateQuiz(ctx, admin, q); !errors.Is(err, domain.ErrInvalidQuiz) {
			t.Fatalf("%s: expected invalid quiz, got %v", name, err)
		}
	}
}

func TestUpdateIsVisibleToNewSessions(t *testing.T) {
	ctx := context.Background()
	env := newTestService()
	defer env.service.Close()

	before := env.service.StartSession(ctx, "sample-go-basics", domain.Anonymous())
	if s, _ := before.Snapshot(ctx); s.Title != "Go Basics" {
		t.Fatalf("expected original title, got %q", s.Title)
	}

	edit := memory.SampleQuiz()
	edit.Title = "Go Basics II"
	updated, err := env.service.UpdateQuiz(ctx, admin, "sample-go-basics", edit)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.CreatedAt.Equal(memory.SampleQuiz().CreatedAt) {
		t.Fatalf("expected createdAt preserved, got %v", updated.CreatedAt)
	}

	after := env.service.StartSession(ctx, "sample-go-basics", domain.Anonymous())
	if s, _ := after.Snapshot(ctx); s.Title != "Go Basics II" {
		t.Fatalf("expected fresh title for new session, got %q", s.Title)
	}
	if s, _ := before.Snapshot(ctx); s.Title != "Go Basics" {
		t.Fatalf("running session should keep its copy, got %q", s.Title)
	}

	if _, err := env.service.UpdateQuiz(ctx, admin, "missing", edit); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNonAdminsNeverSeeCorrectAnswers(t *testing.T) {
	ctx := context.Background()
	env := newTestService()

	list, err := env.service.ListQuizzes(ctx, student)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}
	for _, q := range list[0].Questions {
		if q.CorrectAnswer != "" {
			t.Fatalf("answer leaked in list: %+v", q)
		}
	}
	one, _ := env.service.GetQuiz(ctx, domain.Anonymous(), "sample-go-basics")
	if one.Questions[0].CorrectAnswer != "" {
		t.Fatalf("answer leaked in get")
	}
	full, _ := env.service.GetQuiz(ctx, admin, "sample-go-basics")
	if full.Questions[0].CorrectAnswer == "" {
		t.Fatalf("admin should see answers")
	}
}

type testEnv struct {
	service   *app.QuizService
	publisher *recordingPublisher
	now       time.Time
}

func newTestService() testEnv {
	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	store := memory.NewQuizStore(memory.SampleQuiz())
	publisher := &recordingPublisher{}
	service := app.NewQuizService(
		memory.NewSessionStore(),
		memory.NewQuizRepository(store, 5*time.Minute),
		store,
		memory.NewAttemptStore(),
		app.WithPublisher(publisher),
		app.WithPlayerOptions(app.PlayerOptions{TickInterval: time.Hour}),
		app.WithClock(func() time.Time { return now }),
	)
	return testEnv{service: service, publisher: publisher, now: now}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Attempt
	err    error
}

func (p *recordingPublisher) PublishAttemptCompleted(_ context.Context, a domain.Attempt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, a)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

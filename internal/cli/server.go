package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizgenius-service/internal/app"
	"quizgenius-service/internal/auth"
	"quizgenius-service/internal/config"
	"quizgenius-service/internal/infra/memory"
	mongostore "quizgenius-service/internal/infra/mongo"
	pgstore "quizgenius-service/internal/infra/postgres"
	"quizgenius-service/internal/infra/rabbitmq"
	redisstore "quizgenius-service/internal/infra/redis"
	transport "quizgenius-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores is the persistence backend selected by storage.driver. The quiz store
// doubles as the loader behind the quiz cache.
type stores struct {
	quizzes  app.QuizStore
	attempts app.AttemptStore
	users    app.UserStore
	close    func()
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if err := migratePostgres(ctx, cfg.Postgres.URL); err != nil {
			return stores{}, fmt.Errorf("migrate: %w", err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return stores{}, fmt.Errorf("connect postgres: %w", err)
		}
		return stores{
			quizzes:  pgstore.NewQuizStore(pool),
			attempts: pgstore.NewAttemptStore(pool),
			users:    pgstore.NewUserStore(pool),
			close:    pool.Close,
		}, nil
	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return stores{}, err
		}
		db := client.Database(cfg.Mongo.Database)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return stores{}, err
		}
		return stores{
			quizzes:  mongostore.NewQuizStore(db),
			attempts: mongostore.NewAttemptStore(db),
			users:    mongostore.NewUserStore(db),
			close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					log.Printf("disconnect mongo: %v", err)
				}
			},
		}, nil
	default:
		log.Printf("using in-memory storage; data is lost on restart")
		return stores{
			quizzes:  memory.NewQuizStore(memory.SampleQuiz()),
			attempts: memory.NewAttemptStore(),
			users:    memory.NewUserStore(),
			close:    func() {},
		}, nil
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		quizRepo app.QuizRepository
		sessions app.SessionRepository
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		quizRepo = redisstore.NewQuizRepository(redisClient, st.quizzes, quizTTL)
		sessions = redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 30*time.Minute))
	} else {
		quizRepo = memory.NewQuizRepository(st.quizzes, quizTTL)
		sessions = memory.NewSessionStore()
	}

	opts := []app.Option{
		app.WithPlayerOptions(app.PlayerOptions{
			Budget:         cfg.Quiz.QuestionBudget,
			TickInterval:   config.TTLDuration(cfg.Quiz.TickInterval, time.Second),
			PersistTimeout: config.TTLDuration(cfg.Quiz.PersistTimeout, 5*time.Second),
			AbandonAfter:   config.TTLDuration(cfg.Quiz.AbandonAfter, 0),
		}),
	}
	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, app.WithPublisher(publisher))
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
	if err != nil {
		return err
	}
	if cfg.Auth.AdminPasswordHash == "" {
		log.Printf("no admin password hash configured; admin login is disabled")
	}

	service := app.NewQuizService(sessions, quizRepo, st.quizzes, st.attempts, opts...)
	authService := app.NewAuthService(st.users, issuer, cfg.Auth.AdminPasswordHash)

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(transport.RouterConfig{
			Quizzes:     service,
			Auth:        authService,
			Issuer:      issuer,
			CORSOrigins: cfg.Server.CORSOrigins,
		}),
		ReadHeaderTimeout: 15 * time.Second,
	}

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go service.RunReaper(reaperCtx, time.Minute, config.TTLDuration(cfg.Quiz.SessionIdle, 30*time.Minute))

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("starting quizgenius on :%s (storage=%s)", finalPort, cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		stopReaper()
		service.Close()
		return fmt.Errorf("serve on :%s: %w", finalPort, err)
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	stopReaper()
	// flushes in-flight attempt writes before the stores close
	service.Close()
	return err
}

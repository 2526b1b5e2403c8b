package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brandquiz-service/internal/app"
	"brandquiz-service/internal/config"
	"brandquiz-service/internal/domain"
	"brandquiz-service/internal/infra/memory"
	pginfra "brandquiz-service/internal/infra/postgres"
	redisinfra "brandquiz-service/internal/infra/redis"
	transport "brandquiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
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

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pginfra.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var progress app.ProgressStore
	var identity app.IdentityStore
	var sessions app.SessionRepository
	if redisClient != nil {
		progress = redisinfra.NewProgressStore(redisClient)
		identity = redisinfra.NewIdentityStore(redisClient)
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		progress = memory.NewProgressStore()
		identity = memory.NewIdentityStore()
		sessions = memory.NewSessionStore()
	}

	var ledger app.AttemptLedger = memory.NewAttemptLedger()
	if pool != nil {
		ledger = pginfra.NewAttemptLedger(pool)
	}

	sessionCfg := app.SessionConfig{
		QuestionSeconds:   cfg.Session.QuestionSeconds,
		ReadingSeconds:    cfg.Session.ReadingSeconds,
		TrapLimit:         cfg.Session.TrapLimit,
		AutoAdvance:       config.TTLDuration(cfg.Session.AutoAdvance, 0),
		EnforceSinglePlay: cfg.Session.EnforceSinglePlay,
		DefaultLocale:     cfg.Session.DefaultLocale,
	}
	if sessionCfg.QuestionSeconds == 0 {
		sessionCfg.QuestionSeconds = 20
	}

	service := app.NewQuizService(quizRepo, progress, ledger, identity, sessions, sessionCfg)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting brandquiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides a minimal content set for running without Postgres;
// production content is authored into the quizzes table.
func sampleQuizzes() map[string]domain.QuizDefinition {
	return map[string]domain.QuizDefinition{
		"sardines": {
			Category: "sardines",
			Levels: []domain.Level{
				{
					Number:        1,
					QuestionCount: 2,
					Questions: []domain.Question{
						{
							ID: "sar-q1",
							Prompt: domain.LocalizedText{
								"fr": "Quelle est la saison de pêche de la sardine ?",
								"en": "When is sardine fishing season?",
							},
							Options: domain.LocalizedOptions{
								"fr": {"L'hiver", "De mai à octobre", "Toute l'année"},
								"en": {"Winter", "May to October", "All year round"},
							},
							CorrectIndex: 1,
							Explanation: domain.LocalizedText{
								"fr": "La sardine se pêche principalement de mai à octobre.",
								"en": "Sardines are mainly fished from May to October.",
							},
							Trap: &domain.Question{
								ID: "sar-q1t",
								Prompt: domain.LocalizedText{
									"fr": "Pendant quels mois la sardine est-elle la plus grasse ?",
									"en": "In which months are sardines at their fattest?",
								},
								Options: domain.LocalizedOptions{
									"fr": {"Janvier à mars", "Juin à septembre", "Novembre à décembre"},
									"en": {"January to March", "June to September", "November to December"},
								},
								CorrectIndex: 1,
								Explanation: domain.LocalizedText{
									"fr": "En fin d'été la sardine a fait ses réserves.",
									"en": "By late summer the sardine has built up its reserves.",
								},
							},
						},
						{
							ID: "sar-q2",
							Prompt: domain.LocalizedText{
								"fr": "Combien de temps un millésime se bonifie-t-il en cave ?",
								"en": "How long does a vintage tin improve in the cellar?",
							},
							Options: domain.LocalizedOptions{
								"fr": {"6 mois", "Jusqu'à 10 ans", "Il ne se conserve pas"},
								"en": {"6 months", "Up to 10 years", "It does not keep"},
							},
							CorrectIndex: 1,
							Explanation: domain.LocalizedText{
								"fr": "Retournée régulièrement, la boîte millésimée se bonifie des années.",
								"en": "Turned regularly, a vintage tin improves for years.",
							},
						},
					},
				},
				{
					Number:        2,
					QuestionCount: 2,
					Questions: []domain.Question{
						{
							ID: "sar-q3",
							Prompt: domain.LocalizedText{
								"fr": "Qu'est-ce qu'une sardine « millésimée » ?",
								"en": "What is a \"vintage\" sardine?",
							},
							Options: domain.LocalizedOptions{
								"fr": {"Une sardine d'élevage", "Une boîte datée de l'année de pêche", "Une recette ancienne"},
								"en": {"A farmed sardine", "A tin dated with the fishing year", "An old recipe"},
							},
							CorrectIndex: 1,
						},
						{
							ID: "sar-q4",
							Prompt: domain.LocalizedText{
								"fr": "Quel label garantit une pêche durable ?",
								"en": "Which label guarantees sustainable fishing?",
							},
							Options: domain.LocalizedOptions{
								"fr": {"MSC", "AOP", "Label Rouge"},
								"en": {"MSC", "PDO", "Label Rouge"},
							},
							CorrectIndex: 0,
						},
					},
				},
			},
		},
	}
}

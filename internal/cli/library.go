package cli

import (
	"context"
	"fmt"
	"time"

	"quiz-host/internal/app"
	"quiz-host/internal/config"
	"quiz-host/internal/domain"
	"quiz-host/internal/infra/file"
	"quiz-host/internal/infra/memory"
	pgstore "quiz-host/internal/infra/postgres"
	redisstore "quiz-host/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// library bundles the quiz catalog and game history chosen by config.
type library struct {
	quizzes *app.QuizService
	history app.GameRecorder
	closers []func()
}

func (l *library) Close() {
	for i := len(l.closers) - 1; i >= 0; i-- {
		l.closers[i]()
	}
}

func openLibrary(ctx context.Context, cfg config.Config, log *logrus.Logger) (*library, error) {
	lib := &library{}
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		lib.closers = append(lib.closers, func() { _ = redisClient.Close() })
	}

	var store app.QuizStore
	switch cfg.Storage.Driver {
	case config.DriverFile:
		store = file.NewQuizStore(cfg.Storage.Path)
	case config.DriverMemory:
		store = memory.NewQuizStore(domain.DemoQuizzes()...)
	case config.DriverRedis:
		store = redisstore.NewQuizStore(redisClient, "")
	case config.DriverPostgres:
		if err := runMigrations(ctx, cfg.Postgres.URL, log); err != nil {
			lib.Close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			lib.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		lib.closers = append(lib.closers, pool.Close)
		pg := pgstore.NewQuizStore(pool)
		seeded, err := pg.SeedIfEmpty(ctx)
		if err != nil {
			lib.Close()
			return nil, err
		}
		if seeded {
			log.Info("seeded postgres quiz library with demo quizzes")
		}
		store = pg
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	ttl := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var repo app.QuizRepository = memory.NewQuizRepository(app.StoreLoader{Store: store}, ttl)
	if redisClient != nil {
		repo = redisstore.NewQuizRepository(redisClient, app.StoreLoader{Store: store}, ttl, logrus.NewEntry(log))
	}
	lib.quizzes = app.NewQuizService(store, repo)

	if redisClient != nil {
		lib.history = redisstore.NewGameHistory(redisClient, "", config.TTLDuration(cfg.Redis.TTL, 0))
	} else {
		lib.history = memory.NewGameHistory(0)
	}
	log.WithField("driver", cfg.Storage.Driver).Debug("quiz library ready")
	return lib, nil
}

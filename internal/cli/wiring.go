package cli

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/authority"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/infra/memory"
	pginfra "quiz-attempt-service/internal/infra/postgres"
	redisinfra "quiz-attempt-service/internal/infra/redis"
	"quiz-attempt-service/internal/infra/rest"
)

// deps holds the infrastructure shared by the commands.
type deps struct {
	redis     *redis.Client
	pool      *pgxpool.Pool
	db        *bun.DB
	loader    authority.QuizLoader
	authority *authority.Authority
	backend   app.Backend
	closers   []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (*deps, error) {
	d := &deps{}

	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { _ = d.redis.Close() })
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.pool = pool
		d.closers = append(d.closers, pool.Close)

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		d.db = bun.NewDB(sqldb, pgdialect.New())
		d.closers = append(d.closers, func() { _ = d.db.Close() })
	}

	var loader authority.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if d.pool != nil {
		loader = pginfra.NewQuizLoader(d.pool)
	}
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if d.redis != nil {
		d.loader = redisinfra.NewQuizRepository(d.redis, loader, quizTTL, logger)
	} else {
		d.loader = memory.NewQuizRepository(loader, quizTTL)
	}

	if cfg.Backend.URL != "" {
		timeout := config.TTLDuration(cfg.Backend.Timeout, 10*time.Second)
		d.backend = rest.NewClient(cfg.Backend.URL, timeout, logger)
		return d, nil
	}

	opts := []authority.Option{authority.WithLogger(logger)}
	if d.db != nil {
		opts = append(opts, authority.WithAttempts(pginfra.NewAttemptRepository(d.db)))
	}
	d.authority = authority.New(d.loader, opts...)
	d.backend = d.authority
	return d, nil
}

func (d *deps) attemptStore(cfg config.Config) app.AttemptStore {
	if d.redis != nil {
		return redisinfra.NewAttemptStore(d.redis, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	}
	return memory.NewAttemptStore()
}

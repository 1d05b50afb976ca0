package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/repository/memory"
	mongorepo "github.com/utafrali/storefront/internal/repository/mongo"
	"github.com/utafrali/storefront/internal/repository/postgres"
	"github.com/utafrali/storefront/migrations"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
)

// Stores holds the repositories for the configured STORE_DRIVER.
type Stores struct {
	Products repository.ProductRepository
	Orders   repository.OrderRepository
	Users    repository.UserRepository

	driver string
	pool   *pgxpool.Pool
	mongo  *mongo.Client
}

// OpenStores connects to the backend selected by cfg.StoreDriver. Mongo
// indexes and Postgres migrations are applied before returning.
func OpenStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		metrics := database.NewMongoPoolMetrics(prometheus.DefaultRegisterer, serviceName)
		client, err := database.NewMongoClient(ctx, cfg.Mongo(), metrics.Monitor(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		db := client.Database(cfg.MongoDB)
		if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		logger.Info("connected to MongoDB", slog.String("database", cfg.MongoDB))
		return &Stores{
			Products: mongorepo.NewProductRepository(db),
			Orders:   mongorepo.NewOrderRepository(db),
			Users:    mongorepo.NewUserRepository(db),
			driver:   cfg.StoreDriver,
			mongo:    client,
		}, nil

	case config.DriverPostgres:
		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if err := prometheus.Register(database.NewPoolStatsCollector(pool, serviceName)); err != nil {
			logger.Warn("pool stats collector not registered", slog.String("error", err.Error()))
		}
		return &Stores{
			Products: postgres.NewProductRepository(pool),
			Orders:   postgres.NewOrderRepository(pool),
			Users:    postgres.NewUserRepository(pool),
			driver:   cfg.StoreDriver,
			pool:     pool,
		}, nil

	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return &Stores{
			Products: memory.NewProductRepository(),
			Orders:   memory.NewOrderRepository(),
			Users:    memory.NewUserRepository(),
			driver:   cfg.StoreDriver,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// RegisterHealth adds the backend's readiness check.
func (s *Stores) RegisterHealth(h *health.Handler) {
	switch {
	case s.mongo != nil:
		h.Register("mongo", database.PingMongo(s.mongo))
	case s.pool != nil:
		h.Register("postgres", func(ctx context.Context) error {
			return s.pool.Ping(ctx)
		})
	}
}

// Close releases the backend connections.
func (s *Stores) Close(ctx context.Context) error {
	if s.mongo != nil {
		if err := s.mongo.Disconnect(ctx); err != nil {
			return fmt.Errorf("disconnect mongo: %w", err)
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

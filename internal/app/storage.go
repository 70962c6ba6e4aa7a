package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stockscan/stockscan/internal/kvstore"
)

// Storage is the opened key-value backend.
type Storage struct {
	Store  kvstore.Store
	Redis  *redis.Client
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenStorage connects the backend selected by STORAGE_BACKEND.
func OpenStorage(ctx context.Context, cfg *Config, logger *slog.Logger) (*Storage, error) {
	s := &Storage{logger: logger}
	switch cfg.StorageBackend {
	case BackendRedis:
		client, err := kvstore.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		s.Redis = client
		s.Store = kvstore.NewRedisStore(client)
	case BackendPostgres:
		pool, err := kvstore.NewPostgresPool(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		store := kvstore.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("prepare postgres store: %w", err)
		}
		s.Pool = pool
		s.Store = store
	case BackendMemory:
		s.Store = kvstore.NewMemoryStore(cfg.MemoryQuotaBytes)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	logger.Info("storage opened", slog.String("backend", cfg.StorageBackend))
	return s, nil
}

// Close releases backend connections.
func (s *Storage) Close() {
	if s == nil {
		return
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}

package database

import (
	"context"
	"errors"
	"fmt"

	"prompt-dispatcher/internal/common/config"
)

// Clients holds the connections the enabled capture sinks need. Unused ones stay nil.
type Clients struct {
	Postgres      *PostgresClient
	Redis         *RedisClient
	Elasticsearch *ElasticsearchClient
}

// Open connects to every backend named in cfg.Capture.Sinks and pings it.
// On failure anything already opened is closed.
func Open(ctx context.Context, cfg *config.Config) (*Clients, error) {
	clients := &Clients{}

	if cfg.Capture.HasSink(config.SinkPostgres) {
		pg, err := NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		clients.Postgres = pg
		if err := pg.Ping(ctx); err != nil {
			_ = clients.Close()
			return nil, err
		}
	}

	if cfg.Capture.HasSink(config.SinkRedis) {
		rdb, err := NewRedis(cfg.Database.Redis)
		if err != nil {
			_ = clients.Close()
			return nil, err
		}
		clients.Redis = rdb
		if err := rdb.Ping(ctx); err != nil {
			_ = clients.Close()
			return nil, err
		}
	}

	if cfg.Capture.HasSink(config.SinkElasticsearch) {
		es, err := NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			_ = clients.Close()
			return nil, err
		}
		clients.Elasticsearch = es
		if err := es.Ping(ctx); err != nil {
			_ = clients.Close()
			return nil, err
		}
	}

	return clients, nil
}

// Close releases every open connection.
func (c *Clients) Close() error {
	var errs []error
	if c.Postgres != nil {
		if err := c.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

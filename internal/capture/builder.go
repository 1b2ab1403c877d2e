package capture

import (
	"context"
	"fmt"

	"prompt-dispatcher/internal/common/config"
	"prompt-dispatcher/internal/common/database"
	"prompt-dispatcher/internal/common/logger"

	"github.com/spf13/afero"
)

// FromConfig assembles the sinks named in cfg.Capture.Sinks, in order.
// Clients must hold a connection for every database-backed sink.
func FromConfig(ctx context.Context, cfg *config.Config, fs afero.Fs, clients *database.Clients, log logger.Logger) (*Multi, error) {
	sinks := make([]Sink, 0, len(cfg.Capture.Sinks))

	for _, name := range cfg.Capture.Sinks {
		switch name {
		case config.SinkFile:
			sinks = append(sinks, NewFileSink(fs, cfg.Capture.OutputDir))

		case config.SinkRedis:
			if clients == nil || clients.Redis == nil {
				return nil, fmt.Errorf("redis sink enabled without a redis connection")
			}
			sinks = append(sinks, NewRedisSink(clients.Redis.Client, cfg.Capture.KeyPrefix))

		case config.SinkPostgres:
			if clients == nil || clients.Postgres == nil {
				return nil, fmt.Errorf("postgres sink enabled without a postgres connection")
			}
			pg, err := NewPostgresSink(clients.Postgres.DB, cfg.Capture.Table)
			if err != nil {
				return nil, err
			}
			if err := pg.EnsureSchema(ctx); err != nil {
				return nil, err
			}
			sinks = append(sinks, pg)

		case config.SinkElasticsearch:
			if clients == nil || clients.Elasticsearch == nil {
				return nil, fmt.Errorf("elasticsearch sink enabled without an elasticsearch connection")
			}
			sinks = append(sinks, NewElasticsearchSink(clients.Elasticsearch.Client, cfg.Capture.Index))

		default:
			return nil, fmt.Errorf("unknown capture sink %q", name)
		}
	}

	return NewMulti(log, sinks...), nil
}

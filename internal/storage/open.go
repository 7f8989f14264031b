package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Backend names accepted by Options.Backend.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMinio  = "minio"
)

// Options selects and configures a Backend.
type Options struct {
	Backend string
	DataDir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	Minio MinioConfig
}

// OpenBackend connects to the backend named by opts.Backend. An empty name
// selects SQLite.
func OpenBackend(ctx context.Context, opts Options) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch opts.Backend {
	case "", BackendSQLite:
		slog.Debug("opening sqlite history store", "data_dir", opts.DataDir)
		var s *SQLiteStore
		if s, err = Open(opts.DataDir); err == nil {
			b = s
		}
	case BackendRedis:
		slog.Debug("opening redis history store", "addr", opts.RedisAddr, "db", opts.RedisDB)
		var s *RedisStore
		if s, err = NewRedisStore(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, WithRedisPrefix(opts.RedisPrefix)); err == nil {
			b = s
		}
	case BackendMinio:
		slog.Debug("opening minio history store", "endpoint", opts.Minio.Endpoint, "bucket", opts.Minio.Bucket)
		var s *MinioStore
		if s, err = NewMinioStore(ctx, opts.Minio); err == nil {
			b = s
		}
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want sqlite, redis or minio)", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// OpenerFor returns an Opener bound to opts.
func OpenerFor(opts Options) Opener {
	return func(ctx context.Context) (Backend, error) {
		return OpenBackend(ctx, opts)
	}
}

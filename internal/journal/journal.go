package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wu-shaobing/quant-platform-sub002/internal/config"
	"github.com/wu-shaobing/quant-platform-sub002/internal/connection"
)

// Recorder persists connection lifecycle events so operators can audit
// gateway stability after the fact. Writes are asynchronous and best
// effort: a slow or unavailable database never blocks the stream.
type Recorder struct {
	pool     *pgxpool.Pool
	logger   *slog.Logger
	instance string
}

// New creates a connection pool, ensures the schema exists and returns
// a ready Recorder.
func New(ctx context.Context, cfg config.JournalConfig, instance string, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg.DB))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	poolCfg.MinConns = int32(cfg.DB.MinConns)
	poolCfg.MaxConns = int32(cfg.DB.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &Recorder{pool: pool, logger: logger, instance: instance}
	if err := r.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recorder) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`create table if not exists connection_events (
			id bigserial primary key,
			instance text not null,
			at timestamptz not null,
			event text not null,
			state text not null,
			epoch bigint not null,
			detail text
		)`,
		`create index if not exists idx_connection_events_instance
			on connection_events(instance, at desc)`,
	}
	for _, s := range stmts {
		if _, err := r.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Record writes one lifecycle event. It returns immediately; failures
// are logged, not surfaced.
func (r *Recorder) Record(ev connection.Event) {
	detail := ""
	if ev.Err != nil {
		detail = ev.Err.Error()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, err := r.pool.Exec(ctx,
			`insert into connection_events(instance, at, event, state, epoch, detail)
			 values($1,$2,$3,$4,$5,$6)`,
			r.instance, ev.At.UTC(), ev.Type.String(), ev.State.String(), ev.Epoch, detail,
		)
		if err != nil {
			r.logger.Warn("journal write failed", "event", ev.Type.String(), "error", err)
		}
	}()
}

// Ping verifies the database connection is healthy.
func (r *Recorder) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the pool.
func (r *Recorder) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

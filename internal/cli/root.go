// Package cli implements usermailctl, the operator tool for the user mail
// queue. It talks to the database directly, so it works while the server is
// down.
package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notifyhub/user-mail-queue/internal/db"
	"github.com/notifyhub/user-mail-queue/internal/domain"
	"github.com/notifyhub/user-mail-queue/internal/repository"
	"github.com/notifyhub/user-mail-queue/internal/service"
)

// Backend is what the subcommands need from storage.
type Backend interface {
	Schedule(ctx context.Context, req domain.MailJobRequest) (*domain.ScheduledJob, error)
	Pending(ctx context.Context, mailContentID string) (int, error)
	Close()
}

// Options are the connection settings resolved from flags and environment.
type Options struct {
	DatabaseURL    string
	MigrationsPath string
	QueueName      string
	ChunkSize      int
	Verbose        bool
}

type Config struct {
	OutputWriter io.Writer
	Open         func(ctx context.Context, opts Options, logger *zap.Logger) (Backend, error)
	Migrate      func(databaseURL, sourceURL string) error
}

type runtimeState struct {
	opts         Options
	outputFormat string
	writer       io.Writer
	open         func(ctx context.Context, opts Options, logger *zap.Logger) (Backend, error)
	migrate      func(databaseURL, sourceURL string) error
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		OutputWriter: os.Stdout,
		Open:         openPostgres,
		Migrate:      db.Migrate,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{writer: cfg.OutputWriter, open: cfg.Open, migrate: cfg.Migrate}

	root := &cobra.Command{
		Use:           "usermailctl",
		Short:         "Inspect and feed the user mail queue",
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.opts.DatabaseURL == "" {
				rt.opts.DatabaseURL = os.Getenv("DATABASE_URL")
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("USERMAILCTL_OUTPUT")
			}
			if rt.opts.DatabaseURL == "" {
				return errors.New("database url is required (--database-url or DATABASE_URL)")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.opts.DatabaseURL, "database-url", "", "Postgres connection string")
	root.PersistentFlags().StringVar(&rt.opts.QueueName, "queue", envOr("QUEUE_NAME", "user_email_queue"), "Queue name")
	root.PersistentFlags().IntVar(&rt.opts.ChunkSize, "chunk-size", envInt("CHUNK_SIZE", 50), "Recipients per queue item")
	root.PersistentFlags().StringVar(&rt.opts.MigrationsPath, "migrations", envOr("MIGRATIONS_PATH", "file://migrations"), "Migration source URL")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml")
	root.PersistentFlags().BoolVarP(&rt.opts.Verbose, "verbose", "v", false, "Log to stderr")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewEnqueueCommand(),
		NewPendingCommand(),
		NewMigrateCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) logger() *zap.Logger {
	if !rt.opts.Verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func (rt *runtimeState) backend(ctx context.Context) (Backend, error) {
	if rt.open == nil {
		return nil, errors.New("no backend configured")
	}
	return rt.open(ctx, rt.opts, rt.logger())
}

func (rt *runtimeState) OutputFormat() string {
	if rt.outputFormat != "" {
		return rt.outputFormat
	}
	return "table"
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

type pgBackend struct {
	*service.MailJobService
	close func()
}

func (b *pgBackend) Close() { b.close() }

func openPostgres(ctx context.Context, opts Options, logger *zap.Logger) (Backend, error) {
	pool, err := db.Connect(ctx, db.PoolConfig{DatabaseURL: opts.DatabaseURL, MaxConns: 2})
	if err != nil {
		return nil, err
	}
	svc := service.NewMailJobService(
		repository.NewPgEntityStore(pool),
		repository.NewPgQueueRepository(pool),
		opts.QueueName, opts.ChunkSize, logger, nil,
	)
	return &pgBackend{MailJobService: svc, close: pool.Close}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

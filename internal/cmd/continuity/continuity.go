// Package continuity parses continuity command flags and composes the
// realtime session transport.
package continuity

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/tablekeep/internal/platform/cmd"
	server "github.com/louisbranch/tablekeep/internal/services/continuity/app"
)

// Config holds continuity command configuration.
type Config struct {
	HTTPAddr       string        `env:"TABLEKEEP_CONTINUITY_HTTP_ADDR"       envDefault:":8090"`
	GRPCAddr       string        `env:"TABLEKEEP_CONTINUITY_GRPC_ADDR"       envDefault:":8091"`
	JournalDBPath  string        `env:"TABLEKEEP_CONTINUITY_JOURNAL_DB_PATH" envDefault:"continuity.db"`
	ResumeSecret   string        `env:"TABLEKEEP_CONTINUITY_RESUME_SECRET"`
	BotScript      string        `env:"TABLEKEEP_CONTINUITY_BOT_SCRIPT"`
	QueueSize      int           `env:"TABLEKEEP_CONTINUITY_QUEUE_SIZE"      envDefault:"256"`
	SweepInterval  time.Duration `env:"TABLEKEEP_CONTINUITY_SWEEP_INTERVAL"  envDefault:"5s"`
	CleanupTimeout time.Duration `env:"TABLEKEEP_CONTINUITY_CLEANUP_TIMEOUT" envDefault:"30s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "continuity HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "continuity gRPC health listen address")
	fs.StringVar(&cfg.JournalDBPath, "journal-db-path", cfg.JournalDBPath, "session journal sqlite path")
	fs.StringVar(&cfg.ResumeSecret, "resume-secret", cfg.ResumeSecret, "resume token signing secret")
	fs.StringVar(&cfg.BotScript, "bot-script", cfg.BotScript, "lua bot policy script path")
	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "per-participant replay queue capacity")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "abandoned session sweep interval")
	fs.DurationVar(&cfg.CleanupTimeout, "cleanup-timeout", cfg.CleanupTimeout, "delay before an abandoned session is reaped")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the continuity app and starts realtime transport behavior.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceContinuity, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:       cfg.HTTPAddr,
			GRPCAddr:       cfg.GRPCAddr,
			JournalDBPath:  cfg.JournalDBPath,
			ResumeSecret:   cfg.ResumeSecret,
			BotScript:      cfg.BotScript,
			QueueSize:      cfg.QueueSize,
			SweepInterval:  cfg.SweepInterval,
			CleanupTimeout: cfg.CleanupTimeout,
		}); err != nil {
			return fmt.Errorf("serve continuity: %w", err)
		}
		return nil
	})
}

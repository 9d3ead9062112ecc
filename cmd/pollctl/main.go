package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JoelGresham/teamPoll/config"
	"github.com/JoelGresham/teamPoll/internal/events"
	"github.com/JoelGresham/teamPoll/internal/jobs"
	"github.com/JoelGresham/teamPoll/internal/ratelimit"
	pollredis "github.com/JoelGresham/teamPoll/internal/redis"
	"github.com/JoelGresham/teamPoll/internal/registry"
	"github.com/JoelGresham/teamPoll/internal/repository"
	"github.com/JoelGresham/teamPoll/internal/seed"
	"github.com/JoelGresham/teamPoll/internal/services"
	"github.com/JoelGresham/teamPoll/pkg/database"
	"github.com/JoelGresham/teamPoll/pkg/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pollctl",
		Short:         "Maintenance tool for the team poll server",
		SilenceUsage:  true,
	}
	root.AddCommand(migrateCmd(), sweepCmd(), seedCmd(), resultsCmd(), watchCmd())
	return root
}

type env struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *sql.DB
	dialect database.Dialect
}

func openEnv() (*env, error) {
	cfg := config.LoadConfig()
	l := logger.New(cfg.LogMode)
	db, dialect, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: l, db: db, dialect: dialect}, nil
}

func (e *env) close() {
	e.db.Close()
	e.log.Sync()
}

// service builds a poll service over the migrated store. Rate limits are
// generous since nothing here is participant traffic.
func (e *env) service() (*services.PollService, error) {
	if err := repository.Migrate(e.db, e.dialect); err != nil {
		return nil, err
	}
	return services.NewPollService(
		repository.NewPollRepository(e.db, e.dialect),
		repository.NewResponseRepository(e.db, e.dialect),
		registry.New(),
		ratelimit.NewMemoryLimiter(1_000_000, time.Minute),
		services.WithLogger(e.log),
	), nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				e, err := openEnv()
				if err != nil {
					return err
				}
				defer e.close()
				if err := repository.Migrate(e.db, e.dialect); err != nil {
					return err
				}
				return printVersion(cmd, e)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration (drops all poll data)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				e, err := openEnv()
				if err != nil {
					return err
				}
				defer e.close()
				if err := repository.MigrateDown(e.db, e.dialect); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema rolled back")
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				e, err := openEnv()
				if err != nil {
					return err
				}
				defer e.close()
				return printVersion(cmd, e)
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, e *env) error {
	version, dirty, err := repository.MigrationVersion(e.db, e.dialect)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s schema version %d (dirty=%t)\n", e.dialect, version, dirty)
	return nil
}

func sweepCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete completed polls older than the retention horizon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()
			svc, err := e.service()
			if err != nil {
				return err
			}
			horizon := e.cfg.RetentionHorizon()
			if days > 0 {
				horizon = time.Duration(days) * 24 * time.Hour
			}
			removed, err := jobs.NewRetentionJob(svc, horizon, e.log).Run(cmd.Context(), horizon)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d polls\n", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Retention horizon in days (default RETENTION_DAYS)")
	return cmd
}

func seedCmd() *cobra.Command {
	cfg := seed.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo polls",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()
			svc, err := e.service()
			if err != nil {
				return err
			}
			result, err := seed.Run(cmd.Context(), svc, cfg, e.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pending poll: %s\n", result.Pending.ID)
			if result.Completed != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "completed poll: %s (%d responses)\n", result.Completed.ID, result.Responses)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.PollName, "name", cfg.PollName, "Demo poll name")
	cmd.Flags().IntVar(&cfg.Participants, "participants", cfg.Participants, "Simulated participants on the completed poll (0 skips it)")
	return cmd
}

func resultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results <session-id>",
		Short: "Print the aggregated results of a poll as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()
			svc, err := e.service()
			if err != nil {
				return err
			}
			results, err := svc.SessionAggregate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
}

func watchCmd() *cobra.Command {
	var sessionIDs []string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream mirrored poll events from Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadConfig()
			if !cfg.RedisEnabled() {
				return fmt.Errorf("REDIS_HOST is not set")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := pollredis.Connect(ctx, pollredis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, 5*time.Second)
			if err != nil {
				return err
			}
			defer client.Close()

			channels := []string{events.MirrorChannel("")}
			for _, id := range sessionIDs {
				channels = append(channels, events.MirrorChannel(id))
			}
			out := cmd.OutOrStdout()
			return events.NewRedisMirror(client).Subscribe(ctx, channels, func(channel string, env events.Envelope) {
				fmt.Fprintf(out, "%s %s %s %s\n",
					time.UnixMilli(env.Timestamp).Format(time.RFC3339), channel, env.Type, string(env.Payload))
			})
		},
	}
	cmd.Flags().StringSliceVarP(&sessionIDs, "session", "s", nil, "Session ids to follow besides global events (repeatable)")
	return cmd
}


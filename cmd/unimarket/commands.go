package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anoa.com/unimarket/internal/bootstrap"
	"anoa.com/unimarket/internal/config"
	"anoa.com/unimarket/internal/middleware"
	categoryRepo "anoa.com/unimarket/internal/modules/category/repository"
	studentRepo "anoa.com/unimarket/internal/modules/student/repository"
	"anoa.com/unimarket/internal/server"
	"anoa.com/unimarket/pkg/database"
	"anoa.com/unimarket/pkg/logger"
	"anoa.com/unimarket/pkg/validator"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const appName = "unimarket"

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "University marketplace API",
		Long: `unimarket serves the student marketplace API: the student directory,
the product catalog, favorites and seller reputation.

Running it without a subcommand starts the HTTP server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server and background jobs",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEnv(cmd.Context(), false, func(ctx context.Context, env *environment) error {
					return bootstrap.Migrate(env.db)
				})
			},
		},
		seedCmd(),
		&cobra.Command{
			Use:   "reindex",
			Short: "Rebuild the product search index from the database",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withContainer(cmd.Context(), func(ctx context.Context, c *server.Container) error {
					if c.Search == nil {
						return errors.New("MEILISEARCH_HOST is not configured")
					}
					n, err := c.Products.ReindexAll(ctx)
					if err != nil {
						return err
					}
					logger.L().WithField("products", n).Info("search index rebuilt")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "recompute-reputation",
			Short: "Recompute every student's reputation score from stored ratings",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withContainer(cmd.Context(), func(ctx context.Context, c *server.Container) error {
					n, err := c.Reputation.RecomputeAll(ctx)
					if err != nil {
						return err
					}
					logger.L().WithField("students", n).Info("reputation scores recomputed")
					return nil
				})
			},
		},
		tokenCmd(),
	)

	return cmd
}

func seedCmd() *cobra.Command {
	var withDemo bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed default categories (and demo students outside production)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), false, func(ctx context.Context, env *environment) error {
				if err := bootstrap.SeedCategories(ctx, categoryRepo.NewCategoryRepository(env.db)); err != nil {
					return fmt.Errorf("seed categories: %w", err)
				}
				if !withDemo || env.cfg.IsProduction() {
					return nil
				}
				return bootstrap.SeedDemoStudents(ctx, studentRepo.NewStudentRepository(env.db))
			})
		},
	}

	cmd.Flags().BoolVar(&withDemo, "demo", true, "Also create demo students (ignored in production)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <identity>",
		Short: "Issue a development bearer token for an identity reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return errors.New("tokens cannot be issued in production")
			}

			token, err := middleware.IssueToken(cfg.JWTSecret, cfg.JWTIssuer, args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

type environment struct {
	cfg   *config.Config
	db    *gorm.DB
	redis *redis.Client
}

func (e *environment) close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// withEnv loads config, initialises logging and opens the database (and redis when
// withRedis is set) for the duration of fn.
func withEnv(ctx context.Context, withRedis bool, fn func(ctx context.Context, env *environment) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.AppEnv, cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	env := &environment{cfg: cfg, db: db}

	if withRedis {
		env.redis, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			env.close()
			return err
		}
		if env.redis == nil {
			logger.L().Warn("REDIS_URL not set, running without cache and rate limits")
		}
	}
	defer env.close()

	return fn(ctx, env)
}

func withContainer(ctx context.Context, fn func(ctx context.Context, c *server.Container) error) error {
	return withEnv(ctx, true, func(ctx context.Context, env *environment) error {
		c, err := server.NewContainer(env.cfg, env.db, env.redis)
		if err != nil {
			return err
		}
		return fn(ctx, c)
	})
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := validator.RegisterCustomValidations(); err != nil {
		return fmt.Errorf("register validations: %w", err)
	}

	return withEnv(ctx, true, func(ctx context.Context, env *environment) error {
		if err := bootstrap.Migrate(env.db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		c, err := server.NewContainer(env.cfg, env.db, env.redis)
		if err != nil {
			return err
		}
		if err := bootstrap.SeedCategories(ctx, c.CategoryRepo); err != nil {
			return fmt.Errorf("seed categories: %w", err)
		}

		srv, err := server.NewServer(env.cfg, c)
		if err != nil {
			return err
		}

		logger.L().WithField("env", env.cfg.AppEnv).Info("starting unimarket")
		return srv.Run(ctx)
	})
}

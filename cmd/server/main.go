package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"anoa.com/realmkeeper/internal/bootstrap"
	"anoa.com/realmkeeper/internal/config"
	"anoa.com/realmkeeper/internal/server"
	"anoa.com/realmkeeper/pkg/database"
	"anoa.com/realmkeeper/pkg/logger"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

func main() {
	root := &cli.Command{
		Name:  "realmkeeper",
		Usage: "Realm, character and rating service",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			seedCommand(),
			cleanupCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServe(ctx, "")
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run migrations and start the HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address (defaults to :$PORT)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runServe(ctx, c.String("addr"))
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and exit",
		Action: func(ctx context.Context, c *cli.Command) error {
			_, db, err := setup()
			if err != nil {
				return err
			}
			if err := bootstrap.Migrate(db); err != nil {
				return err
			}
			slog.Info("migrations applied")
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create a demo user, realm and traits (development only)",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			if !cfg.IsDevelopment() {
				return fmt.Errorf("seed is only available when APP_ENV=development")
			}
			if err := bootstrap.Migrate(db); err != nil {
				return err
			}
			return bootstrap.SeedDemo(db)
		},
	}
}

func cleanupCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Run a maintenance job once and exit",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "job", Value: "orphan-image-cleanup", Usage: "job name"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			return server.RunJob(ctx, cfg, db, c.String("job"))
		},
	}
}

func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger.Setup(cfg.LogLevel)

	db, err := database.Open(database.Options{
		Driver:     cfg.DBDriver,
		Host:       cfg.DBHost,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		Name:       cfg.DBName,
		Port:       cfg.DBPort,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, db, nil
}

func runServe(ctx context.Context, addr string) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	if err := bootstrap.Migrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("redis unavailable, running single-instance", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	srv, err := server.NewServer(cfg, db, redisClient)
	if err != nil {
		return err
	}

	if addr == "" {
		addr = ":" + cfg.Port
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, addr)
}

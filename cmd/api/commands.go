package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/driveingest/internal/auth"
	"github.com/abduss/driveingest/internal/drive"
	"github.com/abduss/driveingest/internal/server"
	"github.com/abduss/driveingest/internal/storage"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "Run the drive HTTP API",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "migrate",
			Usage: "Apply pending schema migrations before serving",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, log, err := loadBase()
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if c.Bool("migrate") {
			if err := storage.Migrate(cfg.Postgres.DSN(), log); err != nil {
				return err
			}
		}

		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		router := server.NewRouter(a.routerDeps(auth.NewService(cfg.Auth)))
		httpServer := &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      http.MaxBytesHandler(router, cfg.Server.MaxUpload),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("drive api listening",
				zap.String("addr", cfg.Server.Address()),
				zap.String("storage", string(cfg.Drive.Storage)),
			)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
		case <-ctx.Done():
		}
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("shutting down gracefully")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
		return nil
	},
}

var ingestCmd = &cli.Command{
	Name:      "ingest",
	Usage:     "Register a local file in the drive",
	ArgsUsage: "<path>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "account", Usage: "Owner account id; empty registers a system file"},
		&cli.StringFlag{Name: "name", Usage: "Display name"},
		&cli.StringFlag{Name: "comment", Usage: "Free-form comment"},
		&cli.StringFlag{Name: "folder", Usage: "Target folder id"},
		&cli.BoolFlag{Name: "force", Usage: "Skip deduplication"},
		&cli.BoolFlag{Name: "link", Usage: "Record a reference to --url without storing bytes"},
		&cli.StringFlag{Name: "url", Usage: "Source URL the file was fetched from"},
		&cli.StringFlag{Name: "uri", Usage: "Remote URI identifying the file"},
		&cli.BoolFlag{Name: "sensitive", Usage: "Mark the file as sensitive"},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return cli.Exit("a file path is required", 2)
		}

		cfg, log, err := loadBase()
		if err != nil {
			return err
		}
		defer log.Sync()

		a, err := newApp(c.Context, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		in := drive.RegisterInput{
			Path:   path,
			Name:   c.String("name"),
			Force:  c.Bool("force"),
			IsLink: c.Bool("link"),
			URL:    optionalString(c, "url"),
			URI:    optionalString(c, "uri"),
		}
		in.Comment = optionalString(c, "comment")
		if c.IsSet("sensitive") {
			v := c.Bool("sensitive")
			in.Sensitive = &v
		}
		if raw := c.String("account"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return cli.Exit("invalid account id", 2)
			}
			account, err := a.accounts.FindAccount(c.Context, id)
			if err != nil {
				return err
			}
			in.Account = &account
		}
		if raw := c.String("folder"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return cli.Exit("invalid folder id", 2)
			}
			in.FolderID = &id
		}

		file, err := a.drive.Register(c.Context, in)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(drive.Pack(file))
	},
}

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "Apply pending schema migrations",
	Action: func(c *cli.Context) error {
		cfg, log, err := loadBase()
		if err != nil {
			return err
		}
		defer log.Sync()
		return storage.Migrate(cfg.Postgres.DSN(), log)
	},
}

func optionalString(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

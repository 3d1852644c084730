package main

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/creamcroissant/servekit/dbconn"
	"github.com/creamcroissant/servekit/httperror"
	"github.com/creamcroissant/servekit/httpserver"
	"github.com/creamcroissant/servekit/internal/support/logging"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

//go:embed all:web
var webEmbed embed.FS

var withDatabase bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the demo server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&withDatabase, "with-database", false, "fetch connection credentials and open the MySQL pool")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
	})

	if withDatabase {
		if err := dbconn.SetDatabaseName(cfg.Database); err != nil {
			return err
		}

		fetcher := dbconn.NewFetcher(dbconn.FetcherOptions{
			LocalPath: cfg.ConnectionsFile,
			Logger:    logger,
		})
		refresher := dbconn.NewRefresher(fetcher, logger)
		if err := refresher.Start(ctx, cfg.RefreshSpec); err != nil {
			return err
		}
		defer refresher.Stop()

		data, ok := refresher.Latest()
		if !ok {
			return errors.New("connection credentials unavailable")
		}
		pool, err := dbconn.CreatePool(ctx, data)
		if err != nil {
			return err
		}
		defer pool.Close()
		logger.Info("mysql pool ready", "host", data.Host)
	}

	bundle, err := fs.Sub(webEmbed, "web")
	if err != nil {
		return err
	}

	srv, err := httpserver.New(httpserver.Options{
		Port:         cfg.Port,
		Workers:      cfg.Workers,
		Logger:       logger,
		Assets:       bundle,
		DevServerURL: cfg.DevServerURL,
		Metrics:      cfg.Metrics,
		Routes: func(r chi.Router) {
			r.Route("/api", func(api chi.Router) {
				api.Get("/hello", func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte("Hello, world!"))
				})
				api.Get("/echo/{message}", func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte("You said: " + chi.URLParam(r, "message")))
				})
				api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
					httpserver.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
				})
				api.Get("/system", httpserver.SystemInfoHandler(logger))
				api.Get("/error", func(w http.ResponseWriter, r *http.Request) {
					httperror.Write(w, logger, httperror.Internal(errors.New("demo failure")))
				})
			})
		},
	})
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

// Command storyreel turns reddit stories into published short videos:
// it hunts candidates, writes narration, synthesizes speech, aligns
// captions, assembles the vertical video and uploads the result.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"storyreel/internal/assets"
	"storyreel/internal/compose"
	"storyreel/internal/config"
	"storyreel/internal/hunt"
	"storyreel/internal/pipeline"
	"storyreel/internal/publish"
	"storyreel/internal/script"
	"storyreel/internal/server"
	"storyreel/internal/speech"
	"storyreel/internal/store"
)

var (
	configPath string
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:          "storyreel",
		Short:        "Automated story-to-short-video pipeline",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	root.AddCommand(runCmd(), onceCmd(), sessionsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline daemon: sweep on an interval and serve the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go func() {
				if err := app.library.Watch(ctx); err != nil {
					app.log.Error("raw folder watcher stopped", "error", err)
				}
			}()
			go func() {
				// picks up raw videos the watcher flags between sweeps
				// and tops the library up when it runs low
				for {
					if err := app.library.Refill(ctx); err != nil {
						app.log.Warn("segment refill failed", "error", err)
					}
					if err := app.library.Maintain(ctx); err != nil {
						app.log.Error("segment maintenance failed", "error", err)
					}
					select {
					case <-ctx.Done():
						return
					case <-time.After(time.Minute):
					}
				}
			}()

			var srv *server.Server
			if app.cfg.Server.Enabled {
				srv = server.New(&app.cfg.Server, app.db.Sessions(), app.log)
				go func() {
					if err := srv.Start(); err != nil {
						app.log.Error("status API stopped", "error", err)
					}
				}()
			}

			err = app.orch.Run(ctx)
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}
			if ctx.Err() != nil {
				app.log.Info("shutting down")
				return nil
			}
			return err
		},
	}
}

func onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Recover persisted sessions and run a single sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := app.library.Refill(ctx); err != nil {
				app.log.Warn("segment refill failed", "error", err)
			}
			if err := app.library.Maintain(ctx); err != nil {
				app.log.Error("segment maintenance failed", "error", err)
			}
			if err := app.orch.Recover(); err != nil {
				return err
			}
			return app.orch.Sweep(ctx)
		},
	}
}

func sessionsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List persisted pipeline sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			sessions, err := app.db.Sessions().ListAll(limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tSTAGE\tUPDATED\tDETAIL")
			for _, sess := range sessions {
				detail := sess.Outputs.RemoteID
				if sess.FailureReason != "" {
					detail = sess.FailureReason
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					sess.ID, sess.Stage, sess.UpdatedAt.Format(time.RFC3339), detail)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum sessions to list")
	return cmd
}

type app struct {
	cfg     *config.Config
	log     hclog.Logger
	db      *store.DB
	library *assets.Library
	orch    *pipeline.Orchestrator
}

// setup loads the environment and config, opens storage and wires
// every pipeline collaborator.
func setup() (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := hclog.New(&hclog.LoggerOptions{
		Name:  "storyreel",
		Level: hclog.LevelFromString(logLevel),
	})

	for _, dir := range []string{cfg.Paths.Output, cfg.Paths.RawVideos, cfg.Paths.Segments} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	db, err := store.Open(cfg.Paths.Database, log)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	source, err := hunt.NewRedditSource(&cfg.Hunt, log)
	if err != nil {
		return nil, fmt.Errorf("reddit source: %w", err)
	}

	library, err := assets.NewLibrary(&cfg.Assets, cfg.Paths.RawVideos, cfg.Paths.Segments, log)
	if err != nil {
		return nil, fmt.Errorf("segment library: %w", err)
	}

	orch := pipeline.New(cfg, pipeline.Deps{
		Sessions:   db.Sessions(),
		Ledger:     db.Ledger(),
		Source:     source,
		Writer:     script.NewWriter(&cfg.Script, log),
		Speech:     speech.NewSynthesizer(&cfg.Speech, log),
		Assets:     library,
		Compositor: compose.New(&cfg.Video, &cfg.Captions, log),
		Publisher:  publish.NewYouTubePublisher(&cfg.Upload, log),
	}, log)

	return &app{cfg: cfg, log: log, db: db, library: library, orch: orch}, nil
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Joseda-hg/taskdeck/internal/client"
	"github.com/Joseda-hg/taskdeck/internal/config"
	"github.com/Joseda-hg/taskdeck/internal/db"
	"github.com/Joseda-hg/taskdeck/internal/logging"
	"github.com/Joseda-hg/taskdeck/internal/model"
	"github.com/Joseda-hg/taskdeck/internal/server"
	"github.com/Joseda-hg/taskdeck/internal/tui"
	"github.com/Joseda-hg/taskdeck/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPathFlag := flag.String("config", "", "config file path (.json or .yaml)")
	envFileFlag := flag.String("env", ".env", "dotenv file with TASKDECK_* overrides")
	serverFlag := flag.String("server", "", "task backend base URL")
	serveFlag := flag.Bool("serve", false, "run the bundled task backend")
	dbPathFlag := flag.String("db", "", "sqlite db path for the bundled backend")
	apiPortFlag := flag.Int("api-port", 0, "bundled backend port")
	webFlag := flag.Bool("web", false, "enable the browser front end")
	webOnlyFlag := flag.Bool("web-only", false, "run without the terminal UI")
	portFlag := flag.Int("port", 0, "browser front end port")
	logFlag := flag.String("log", "", "log file path")
	flag.Parse()

	cfgPath, err := resolveConfigPath(*configPathFlag)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg, err = config.ApplyEnv(cfg, *envFileFlag)
	if err != nil {
		log.Fatal(err)
	}

	if *serverFlag != "" {
		cfg.ServerURL = *serverFlag
	}
	if *serveFlag {
		cfg.ServeEnabled = true
	}
	if *dbPathFlag != "" {
		cfg.DBPath = *dbPathFlag
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(cfgPath), "taskdeck.db")
	}
	if cfg.AttachmentDir == "" {
		cfg.AttachmentDir = filepath.Join(filepath.Dir(cfgPath), "uploads")
	}
	if *apiPortFlag != 0 {
		cfg.APIPort = *apiPortFlag
	}
	if *webFlag || *webOnlyFlag {
		cfg.WebEnabled = true
	}
	if *portFlag != 0 {
		cfg.WebPort = *portFlag
	}
	if *logFlag != "" {
		cfg.LogPath = *logFlag
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(filepath.Dir(cfgPath), "taskdeck.log")
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		log.Fatal(err)
	}

	if err := logging.Init(logging.Options{Path: cfg.LogPath, Level: cfg.LogLevel}); err != nil {
		log.Fatal(err)
	}

	if err := run(cfg, *webOnlyFlag); err != nil {
		logging.Logger.WithError(err).Error("taskdeck exited")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config, webOnly bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	if cfg.ServeEnabled {
		backend, conn, err := newBackend(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := conn.Close(); err != nil {
				logging.Logger.Warnf("close db: %v", err)
			}
		}()
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logging.Logger.Infof("task backend running at http://localhost%s", addr)
		group.Go(func() error {
			return web.Run(ctx, addr, backend.Handler())
		})
	}

	notifier := client.NewNotifier()
	loading := &client.Indicator{}
	gateway := client.NewGateway(cfg.ServerURL, client.Options{
		Timeout:  cfg.Timeout(),
		Loading:  loading,
		Notifier: notifier,
	})
	dispatcher := client.NewDispatcher(client.NewSession(gateway, notifier))

	if cfg.WebEnabled {
		addr := fmt.Sprintf(":%d", cfg.WebPort)
		handler := web.NewServer(dispatcher).Handler()
		if webOnly {
			log.Printf("Web server running at http://localhost%s", addr)
		}
		logging.Logger.Infof("web front end running at http://localhost%s", addr)
		group.Go(func() error {
			return web.Run(ctx, addr, handler)
		})
	}

	if webOnly {
		if err := dispatcher.Dispatch(ctx, client.SetFilter{Filter: model.DefaultFilter()}); err != nil {
			logging.Logger.Warnf("initial load failed: %v", err)
		}
		return group.Wait()
	}

	exportDir, err := os.Getwd()
	if err != nil {
		exportDir = "."
	}
	err = tui.Run(ctx, dispatcher, tui.Options{Loading: loading, ExportDir: exportDir})
	stop()
	if waitErr := group.Wait(); err == nil {
		err = waitErr
	}
	return err
}

// newBackend opens the store and builds the REST backend. The caller owns the
// returned connection and closes it on shutdown.
func newBackend(cfg config.Config) (*server.Server, *sql.DB, error) {
	if err := config.EnsureDir(cfg.DBPath); err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(cfg.AttachmentDir, 0o755); err != nil {
		return nil, nil, err
	}

	sqlDB, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return server.NewServer(db.NewStore(sqlDB), server.Options{
		AttachmentDir: cfg.AttachmentDir,
		Registry:      registry,
	}), sqlDB, nil
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}

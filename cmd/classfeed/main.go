package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/nhle/classfeed/internal/app"
	"github.com/nhle/classfeed/internal/credential"
	"github.com/nhle/classfeed/internal/logging"
	"github.com/nhle/classfeed/internal/metrics"
	"github.com/nhle/classfeed/internal/model"
	"github.com/nhle/classfeed/internal/seen"
	"github.com/nhle/classfeed/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "classfeed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.String("config", model.DefaultConfigPath(), "path to the YAML configuration file")
	roleFlag := pflag.String("role", "", "feed to show: learner or teacher (overrides the config)")
	pflag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *roleFlag != "" {
		cfg.Role = *roleFlag
	}
	role, err := model.ParseRole(cfg.Role)
	if err != nil {
		return err
	}

	logFile, err := logging.OpenFile(cfg.Log.File)
	if err != nil {
		return err
	}
	defer logFile.Close()

	log := logging.New(logging.Options{
		ServiceName: "classfeed",
		Level:       logging.ParseLevel(cfg.Log.Level),
		Format:      cfg.Log.Format,
		Output:      logFile,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = log.WithRole(ctx, string(role))

	if cfg.Storage.Backend == "" || cfg.Storage.Backend == store.BackendSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}
	kv, err := store.Open(ctx, cfg.Storage.Backend, cfg.Storage.Path, cfg.Storage.RedisURL)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Storage.Backend, err)
	}
	defer kv.Close()

	vault, err := credential.Open()
	if err != nil {
		log.Warn(ctx, "system keyring unavailable, using environment credentials only", err)
		vault = credential.NewVault(nil)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	fetchMetrics := metrics.NewFetchMetrics(reg)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg); err != nil {
				log.Error(ctx, "metrics endpoint stopped", err)
			}
		}()
	}

	log.Info(ctx, "starting classfeed")

	m := app.New(app.Options{
		Config:     *cfg,
		ConfigPath: *configPath,
		Role:       role,
		Secrets:    vault,
		Settings:   seen.NewStore(kv, role, log),
		Logger:     log,
		Metrics:    fetchMetrics,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

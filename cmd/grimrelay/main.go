package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amoylab/grimrelay/internal/common/cnst"
	"github.com/amoylab/grimrelay/internal/common/config"
	"github.com/amoylab/grimrelay/internal/relay"
	"github.com/amoylab/grimrelay/internal/server"
	"github.com/amoylab/grimrelay/internal/session"
	"github.com/amoylab/grimrelay/pkg/helper"
	"github.com/amoylab/grimrelay/pkg/logger"
	"github.com/amoylab/grimrelay/pkg/metrics"
	"github.com/amoylab/grimrelay/pkg/trace"
	"github.com/amoylab/grimrelay/pkg/utils"
	"github.com/amoylab/grimrelay/pkg/version"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of grimrelay",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("grimrelay version %s\n", version.Get())
		},
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Ask a running grimrelay to shut down gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			pid := utils.NewPIDFile(helper.GetPIDPath(cfg.PID))
			if err := pid.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to stop grimrelay: %w", err)
			}
			fmt.Printf("Sent SIGTERM to the process in %s\n", pid.Path())
			return nil
		},
	}

	rootCmd = &cobra.Command{
		Use:   "grimrelay",
		Short: "Tabletop session relay",
		Long:  `grimrelay relays session state and chat between a game master and the players of a tabletop session`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", cnst.RelayYaml, "path to configuration file")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(stopCmd)
}

func run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", cfgPath, err)
	}

	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer lg.Sync()

	lg.Info("Starting grimrelay",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	if cfg.Tracing.Enabled {
		shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
		if err != nil {
			lg.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(tctx); err != nil {
				lg.Error("Failed to flush traces", zap.Error(err))
			}
		}()
	}

	if cfg.PID != "" {
		pid := utils.NewPIDFile(helper.GetPIDPath(cfg.PID))
		if err := pid.Write(); err != nil {
			lg.Warn("Failed to write PID file", zap.String("path", pid.Path()), zap.Error(err))
		} else {
			defer func() { _ = pid.Remove() }()
		}
	}

	store, err := session.NewStore(ctx, lg, &cfg.Session)
	if err != nil {
		lg.Fatal("Failed to initialize session store", zap.Error(err))
	}
	defer store.Close()

	opts := []relay.Option{
		relay.WithCapacity(cfg.Session.DefaultCapacity),
		relay.WithLocationPicker(relay.NewLocationPicker(cfg.Session.LocationSeed)),
	}
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
		opts = append(opts, relay.WithObserver(m))
	}
	hub := relay.NewHub(lg, store, opts...)

	gin.SetMode(gin.ReleaseMode)
	srv := server.NewServer(lg, cfg, hub, m)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		lg.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			lg.Error("Server stopped unexpectedly", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("Failed to shutdown server", zap.Error(err))
	}
	lg.Info("Server stopped")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

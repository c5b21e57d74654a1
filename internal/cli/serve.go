package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/halvard/coxswain/internal/config"
	"github.com/halvard/coxswain/internal/database"
	"github.com/halvard/coxswain/internal/engine"
	"github.com/halvard/coxswain/internal/executions"
	"github.com/halvard/coxswain/internal/realtime"
	"github.com/halvard/coxswain/internal/scheduler"
	"github.com/halvard/coxswain/internal/server"
)

var (
	servePort        int
	serveHost        string
	serveDBPath      string
	serveNoScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the coxswain server",
	Long: `Start the coxswain server.

The server will:
  - Open (and migrate) the SQLite database
  - Start the HTTP API
  - Start the schedule poller, unless disabled
  - Stream execution events over WebSocket, if enabled

Use --no-scheduler to serve the API without dispatching scheduled runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", config.DefaultPort, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "Path to the SQLite database file")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "Disable the schedule poller")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		log.Warn().Err(err).Msg("No config file found, using defaults")
		cfg = config.Default()
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("db") {
		cfg.Database.Path = serveDBPath
	}
	if serveNoScheduler {
		cfg.Scheduler.Enabled = false
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}

	applyLogging(&cfg.Logging)

	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
	}
	defer db.Close()

	scheduleStore := scheduler.NewStore(db)
	execStore := executions.NewStore(db)
	status := executions.NewStatusService(execStore, executions.NewRegistry())

	var broker *realtime.Broker
	if cfg.Realtime.Enabled {
		broker = realtime.NewBroker(&cfg.Realtime)
		status.SetEventSink(broker)
	}

	runner := executions.NewRunner(status, engine.NewLocalEngine(status, cfg.Engine.DefaultModel))
	supervisor := executions.NewSupervisor(status)

	janitor := executions.NewJanitor(execStore, 0)
	janitor.Start()
	defer janitor.Stop()

	var poller *scheduler.Poller
	if cfg.Scheduler.Enabled {
		poller = scheduler.NewPoller(scheduleStore, status, runner, supervisor)
		poller.Start(&scheduler.PollerConfig{
			PollInterval:  cfg.Scheduler.PollInterval,
			ShutdownGrace: cfg.Scheduler.ShutdownGrace,
		})
	} else {
		log.Info().Msg("Schedule poller disabled")
	}

	srv := server.New(cfg, db, scheduleStore, status, runner, supervisor, broker,
		server.WithVersion(version),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()

		if poller != nil {
			poller.Shutdown()
		} else {
			supervisor.Shutdown(cfg.Scheduler.ShutdownGrace)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logServerInfo(cfg)

	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Server error")
		return err
	}

	<-ctx.Done()
	return nil
}

// applyLogging overrides the flag-based defaults with the config file's
// logging section.
func applyLogging(cfg *config.LoggingConfig) {
	if verbose {
		return
	}

	if level, err := zerolog.ParseLevel(cfg.Level); err == nil && cfg.Level != "" {
		zerolog.SetGlobalLevel(level)
	}

	if cfg.Format == "json" {
		logger := zerolog.New(os.Stderr)
		if cfg.Timestamp {
			logger = logger.With().Timestamp().Logger()
		}
		if cfg.Caller {
			logger = logger.With().Caller().Logger()
		}
		log.Logger = logger
	}
}

func logServerInfo(cfg *config.Config) {
	log.Info().
		Str("url", "http://"+cfg.Server.Address()).
		Str("db", cfg.Database.Path).
		Msg("Server started")

	if cfg.Scheduler.Enabled {
		log.Info().
			Dur("poll_interval", cfg.Scheduler.PollInterval).
			Msg("Schedule poller enabled")
	}

	if cfg.Realtime.Enabled {
		log.Info().
			Str("ws", "ws://"+cfg.Server.Address()+"/api/realtime").
			Msg("Realtime WebSocket endpoint")
	}
}

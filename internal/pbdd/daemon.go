package pbdd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/opencode-ai/pbd/internal/config"
	"github.com/opencode-ai/pbd/internal/db"
	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/opencode-ai/pbd/internal/events"
	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/opencode-ai/pbd/internal/robot"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Options configure the daemon runtime.
type Options struct {
	Version string

	// Robot overrides the configured backend.
	Robot robot.Capability

	// RateLimits override DefaultRateLimits.
	RateLimits map[string]RateLimit
}

// Daemon owns the machine, the dispatcher, and the listeners in front of them.
type Daemon struct {
	cfg    *config.Config
	logger zerolog.Logger
	opts   Options

	robot      robot.Capability
	machine    *interaction.Machine
	dispatcher *dispatcher.Dispatcher
	database   *db.DB
	recorder   *events.Recorder

	server     *Server
	grpcServer *grpc.Server
	httpServer *http.Server
}

// New constructs a daemon with the provided configuration.
func New(cfg *config.Config, logger zerolog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	capability := opts.Robot
	if capability == nil {
		capability = robot.NewSimulator(cfg.Robot.SimulatorConfig())
	}

	machine := interaction.NewMachine(capability,
		interaction.WithLogger(logger.With().Str("component", "machine").Logger()),
		interaction.WithConfig(interaction.Config{StepTimeout: cfg.Execution.StepTimeout}),
	)

	d := dispatcher.New(dispatcher.Config{
		QueueWhileExecuting: cfg.Dispatcher.QueueWhileExecuting,
		OutcomeBuffer:       cfg.Dispatcher.OutcomeBuffer,
		StopTimeout:         cfg.Dispatcher.StopTimeout,
	}, machine)
	d.SetLogger(logger.With().Str("component", "dispatcher").Logger())

	database, err := db.Open(db.Config{
		Path:          cfg.Database.Path,
		BusyTimeoutMs: cfg.Database.BusyTimeoutMs,
	})
	if err != nil {
		return nil, err
	}
	repo := db.NewEventRepository(database)

	server := NewServer(logger, d, machine,
		WithVersion(opts.Version),
		WithEventRepository(repo),
	)

	limiter := NewRateLimiter(opts.RateLimits)
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(limiter.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(limiter.StreamServerInterceptor()),
	)
	RegisterInteractionServiceServer(grpcServer, server)

	return &Daemon{
		cfg:        cfg,
		logger:     logger,
		opts:       opts,
		robot:      capability,
		machine:    machine,
		dispatcher: d,
		database:   database,
		recorder:   events.NewRecorder(repo, server.SessionID()),
		server:     server,
		grpcServer: grpcServer,
		httpServer: &http.Server{
			Addr:    cfg.Daemon.HTTPAddr(),
			Handler: newHTTPHandler(server, limiter, logger.With().Str("component", "http").Logger()),
		},
	}, nil
}

// Run serves gRPC and HTTP until ctx is canceled or a listener fails.
func (d *Daemon) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	defer d.database.Close()

	if _, err := d.database.MigrateUp(ctx); err != nil {
		return fmt.Errorf("failed to migrate event log: %w", err)
	}

	grpcListener, err := net.Listen("tcp", d.cfg.Daemon.GRPCAddr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.cfg.Daemon.GRPCAddr(), err)
	}
	httpListener, err := net.Listen("tcp", d.httpServer.Addr)
	if err != nil {
		grpcListener.Close()
		return fmt.Errorf("failed to listen on %s: %w", d.httpServer.Addr, err)
	}

	if err := d.dispatcher.Start(ctx); err != nil {
		grpcListener.Close()
		httpListener.Close()
		return err
	}

	d.logger.Info().
		Str("grpc", grpcListener.Addr().String()).
		Str("http", httpListener.Addr().String()).
		Str("session", d.server.SessionID()).
		Str("version", d.opts.Version).
		Msg("pbdd starting")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := d.grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := d.httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return d.recorder.Run(gctx, d.dispatcher.Outcomes())
	})
	g.Go(func() error {
		<-gctx.Done()
		d.logger.Info().Msg("pbdd shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.Daemon.ShutdownTimeout)
		defer cancel()
		_ = d.httpServer.Shutdown(shutdownCtx)
		if err := d.dispatcher.Stop(); err != nil && !errors.Is(err, dispatcher.ErrDispatcherNotRunning) {
			d.logger.Warn().Err(err).Msg("failed to stop dispatcher")
		}

		stopped := make(chan struct{})
		go func() {
			d.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			d.grpcServer.Stop()
		}
		return nil
	})

	err = g.Wait()
	d.logger.Info().Msg("pbdd shutdown complete")
	return err
}

// Server returns the gRPC service implementation.
func (d *Daemon) Server() *Server {
	return d.server
}

// Dispatcher returns the command dispatcher.
func (d *Daemon) Dispatcher() *dispatcher.Dispatcher {
	return d.dispatcher
}

// Machine returns the interaction machine.
func (d *Daemon) Machine() *interaction.Machine {
	return d.machine
}

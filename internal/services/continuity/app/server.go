// Package server wires the continuity runtime: websocket transport,
// gRPC health listener, journal storage and the session reaper.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/tablekeep/internal/platform/timeouts"
	"github.com/louisbranch/tablekeep/internal/services/continuity/agent"
	"github.com/louisbranch/tablekeep/internal/services/continuity/journal"
	"github.com/louisbranch/tablekeep/internal/services/continuity/presence"
	"github.com/louisbranch/tablekeep/internal/services/continuity/reaper"
	"github.com/louisbranch/tablekeep/internal/services/continuity/registry"
	"github.com/louisbranch/tablekeep/internal/services/continuity/replay"
	"github.com/louisbranch/tablekeep/internal/services/continuity/resume"
	continuitystorage "github.com/louisbranch/tablekeep/internal/services/continuity/storage"
	continuitysqlite "github.com/louisbranch/tablekeep/internal/services/continuity/storage/sqlite"
)

// Config defines the inputs for the continuity transport boundary.
type Config struct {
	HTTPAddr          string
	GRPCAddr          string
	JournalDBPath     string
	ResumeSecret      string
	BotScript         string
	QueueSize         int
	SweepInterval     time.Duration
	CleanupTimeout    time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	// Engine is the collaborator that interprets game rules. Without
	// one, turn frames are rejected; presence handling is unaffected.
	Engine agent.Engine
}

// Server hosts the continuity websocket process and its health listener.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	grpcListener    net.Listener
	grpcServer      *grpc.Server
	health          *health.Server
	store           *continuitysqlite.Store
	sweeper         *reaper.Reaper

	closeOnce sync.Once
}

// NewServer builds a configured continuity server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	var store *continuitysqlite.Store
	var emitter *journal.Emitter
	if strings.TrimSpace(config.JournalDBPath) != "" {
		opened, err := continuitysqlite.Open(config.JournalDBPath)
		if err != nil {
			return nil, fmt.Errorf("open journal store: %w", err)
		}
		store = opened
		emitter = journal.NewEmitter(store)
	}

	var issuer *resume.Issuer
	if strings.TrimSpace(config.ResumeSecret) != "" {
		issuer = resume.NewIssuer([]byte(config.ResumeSecret))
	}

	sessions := registry.NewSessionRegistry()
	monitor := presence.NewMonitor(presence.Config{
		Sessions:    sessions,
		Connections: registry.NewConnectionRegistry(sessions),
		Buffers:     replay.NewBuffers(config.QueueSize),
		Journal:     emitter,
		Issuer:      issuer,
	})

	actions := newActionHub()
	var controller *agent.Controller
	if config.Engine != nil {
		var policy agent.Policy
		if path := strings.TrimSpace(config.BotScript); path != "" {
			script, err := os.ReadFile(path)
			if err != nil {
				if store != nil {
					_ = store.Close()
				}
				return nil, fmt.Errorf("read bot policy script: %w", err)
			}
			luaPolicy, err := agent.NewLuaPolicy(string(script))
			if err != nil {
				if store != nil {
					_ = store.Close()
				}
				return nil, fmt.Errorf("load bot policy: %w", err)
			}
			policy = luaPolicy
		}
		controller = agent.NewController(config.Engine, policy, actions, func(sessionID, participantID string, cause error) {
			emitter.Emit(context.Background(), sessionID, participantID, continuitystorage.EntryKindAgentFault, map[string]string{
				"error": cause.Error(),
			})
		})
	}

	server := &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		store:           store,
		sweeper:         reaper.New(sessions, monitor, config.SweepInterval, config.CleanupTimeout),
	}
	rt := &runtime{monitor: monitor, controller: controller, actions: actions}
	if store != nil {
		rt.journal = store
	}
	server.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           newHandler(rt),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	if grpcAddr := strings.TrimSpace(config.GRPCAddr); grpcAddr != "" {
		listener, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			server.Close()
			return nil, fmt.Errorf("listen on %s: %w", grpcAddr, err)
		}
		grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		healthServer := health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus("tablekeep.continuity", grpc_health_v1.HealthCheckResponse_SERVING)

		server.grpcListener = listener
		server.grpcServer = grpcServer
		server.health = healthServer
	}

	return server, nil
}

// Run creates and serves a continuity server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init continuity server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve continuity: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server, the health listener and the
// session reaper until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("continuity server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var background sync.WaitGroup
	background.Add(1)
	go func() {
		defer background.Done()
		s.sweeper.Run(runCtx)
	}()

	serveErr := make(chan error, 2)
	log.Printf("continuity server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()
	if s.grpcServer != nil {
		log.Printf("continuity health listener on %v", s.grpcListener.Addr())
		go func() {
			serveErr <- s.grpcServer.Serve(s.grpcListener)
		}()
	}

	shutdown := func() error {
		cancel()
		background.Wait()
		if s.health != nil {
			s.health.Shutdown()
		}
		if s.grpcServer != nil {
			s.grpcServer.GracefulStop()
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer shutdownCancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}

	select {
	case <-ctx.Done():
		return shutdown()
	case err := <-serveErr:
		if shutdownErr := shutdown(); shutdownErr != nil {
			log.Printf("shutdown after serve failure: %v", shutdownErr)
		}
		if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.grpcListener != nil {
			_ = s.grpcListener.Close()
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				log.Printf("close journal store: %v", err)
			}
		}
	})
}

package tellerd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"pkt.systems/pslog"
	"pkt.systems/tellerd/banking"
	"pkt.systems/tellerd/internal/clock"
	"pkt.systems/tellerd/internal/svcfields"
	"pkt.systems/tellerd/internal/threadstore"
	"pkt.systems/tellerd/internal/version"
)

// Server is the tellerd service contract.
type Server interface {
	Run(context.Context) error
}

// NewServerRequest wraps constructor inputs.
type NewServerRequest struct {
	Config  Config
	Logger  pslog.Logger
	Backend banking.Backend
	// Clock overrides wall-clock access; nil selects the real clock.
	Clock clock.Clock
}

type server struct {
	cfg          Config
	logger       pslog.Logger
	lifecycleLog pslog.Logger
	dispatchLog  pslog.Logger
	gateLog      pslog.Logger
	authLog      pslog.Logger
	txnLog       pslog.Logger

	backend banking.Backend
	global  threadstore.Store
	local   threadstore.Store
	clk     clock.Clock

	descriptions map[string]string
	metrics      *serverMetrics

	httpServer  *http.Server
	mcpHTTPPath string
	startedAt   time.Time
}

// NewServer constructs the tellerd tool-invocation server.
func NewServer(req NewServerRequest) (Server, error) {
	cfg := req.Config
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if req.Backend == nil {
		return nil, fmt.Errorf("tellerd: banking backend is required")
	}

	logger := req.Logger
	if logger == nil {
		logger = pslog.NewStructured(os.Stderr).With("app", "tellerd")
	}
	clk := req.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	metrics, err := newServerMetrics(otel.GetMeterProvider())
	if err != nil {
		return nil, err
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		lifecycleLog: svcfields.WithSubsystem(logger, "server.lifecycle"),
		dispatchLog:  svcfields.WithSubsystem(logger, "mcp.dispatch"),
		gateLog:      svcfields.WithSubsystem(logger, "mcp.gate"),
		authLog:      svcfields.WithSubsystem(logger, "auth"),
		txnLog:       svcfields.WithSubsystem(logger, "txn"),
		backend:      req.Backend,
		global:       threadstore.NewMemory(),
		local:        threadstore.NewMemory(),
		clk:          clk,
		descriptions: buildToolDescriptions(),
		metrics:      metrics,
		mcpHTTPPath:  cleanHTTPPath(cfg.MCPPath),
	}

	s.httpServer = &http.Server{
		Addr:    cfg.Listen,
		Handler: otelhttp.NewHandler(s.buildMux(), "tellerd.http"),
	}
	return s, nil
}

// Run serves until ctx is cancelled or the listener fails.
func (s *server) Run(ctx context.Context) error {
	telemetry, err := setupTelemetry(ctx, s.cfg.MetricsListen, s.cfg.PprofListen, s.cfg.EnableRuntimeMetrics, s.lifecycleLog)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	s.startedAt = time.Now()
	s.lifecycleLog.Info("starting tellerd", "listen", s.cfg.Listen, "mcp_path", s.mcpHTTPPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.lifecycleLog.Info("tellerd stopped")
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *server) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle(s.mcpHTTPPath, s.mcpHandler())
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"status":  "ok",
		"service": "tellerd",
		"version": version.Current(),
	}
	if !s.startedAt.IsZero() {
		payload["uptime"] = strings.TrimSpace(humanize.RelTime(s.startedAt, time.Now(), "", ""))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func cleanHTTPPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/mcp"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"tillpulse/internal/config"
	apierrors "tillpulse/internal/errors"
	"tillpulse/internal/infrastructure"
	"tillpulse/internal/kpi"
	customMiddleware "tillpulse/internal/middleware"
	"tillpulse/internal/normalizer"
	"tillpulse/internal/services"
	handlers "tillpulse/internal/transport/http"
	ws "tillpulse/internal/websocket"
	"tillpulse/pkg/contracts"
)

// AppName is the human readable product name used in logs and startup banners.
const AppName = "TillPulse - Point of Sale Analytics"

// Application is the composition root for the dashboard server. It owns the
// configuration, the service layer and the HTTP server, and knows how to
// start and stop them in order.
type Application struct {
	Config           *config.Config
	Router           *chi.Mux
	Server           *http.Server
	DashboardService *services.DashboardService
	HealthService    *services.HealthService
	Live             *ws.Live
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
	Metrics          *infrastructure.DashboardMetrics
	SystemCollector  *infrastructure.SystemMetricsCollector
	ErrorHandler     *apierrors.ErrorHandler
	FrontendFS       fs.FS
}

// NewApplication builds a fully wired application. frontendFS holds the
// embedded dashboard page; pass nil to run the API without a frontend.
func NewApplication(frontendFS fs.FS) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", cfg.Server.Port))

	providers, err := infrastructure.InitializeOTel(
		infrastructure.DefaultOTelConfig(cfg.Logging.Development), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateDashboardMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard metrics: %w", err)
	}

	systemCollector, err := infrastructure.NewSystemMetricsCollector(providers.Meter, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to create system metrics collector: %w", err)
	}

	app := &Application{
		Config:          cfg,
		Logger:          logger,
		OTelProviders:   providers,
		Metrics:         metrics,
		SystemCollector: systemCollector,
		FrontendFS:      frontendFS,
	}

	app.initializeServices()
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the service layer in dependency order: the
// normalizer and aggregator feed the dashboard service, the live channel and
// health service sit on top of it.
func (a *Application) initializeServices() {
	norm := normalizer.New(a.Config.Schema, a.Logger)
	agg := kpi.NewAggregator(a.Logger, a.Config.Analytics.TopN)

	a.DashboardService = services.NewDashboardService(a.Config, a.Logger, norm, agg, a.Metrics)
	a.Live = ws.NewLive(a.DashboardService, a.Metrics, a.Config.Security.AllowedOrigins, a.Logger)
	a.HealthService = services.NewHealthService(
		contracts.Version, contracts.BuildTime, a.DashboardService, a.Live, a.Logger)
	a.ErrorHandler = apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Only middleware that does not wrap the ResponseWriter may run before
	// the WebSocket route; the upgrade needs the raw connection.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// WebSocket route stays outside the full middleware group.
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).
		HandleFunc("/ws/sessions/{sessionID}", a.Live.Handle)

	r.Group(func(r chi.Router) {
		otelMiddleware := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics)
		r.Use(otelMiddleware.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.Compress(5))

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)

		if a.FrontendFS != nil {
			r.Get("/*", a.serveFrontend(a.FrontendFS))
		}

		// Registered after the routes so chi propagates them to the /api
		// subrouter as well.
		r.NotFound(a.ErrorHandler.NotFound)
		r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)
	})

	// Outside the group so scrapes skip request logging and rate limits.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes mounts the JSON API under /api.
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/healthz", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		sessionHandler := handlers.NewSessionHandler(a.DashboardService, a.Config, a.Logger, a.ErrorHandler)
		r.With(customMiddleware.ContentTypeValidator(
			"multipart/form-data",
			"text/csv",
			"application/octet-stream",
		)).Mount("/sessions", sessionHandler.Routes())

		r.Post("/logs", handlers.NewClientLogHandler(a.Logger).Handle)
	})
}

// serveFrontend serves the embedded dashboard. Exact files win; anything else
// falls back to index.html so deep links into the page still load it.
func (a *Application) serveFrontend(frontendFS fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" || name == "." {
			name = "index.html"
		}

		data, err := fs.ReadFile(frontendFS, name)
		if err != nil {
			name = "index.html"
			data, err = fs.ReadFile(frontendFS, name)
			if err != nil {
				a.Logger.ErrorContext(r.Context(), "Frontend index missing",
					slog.String("path", r.URL.Path))
				http.Error(w, "frontend not available", http.StatusNotFound)
				return
			}
		}

		ctype := mime.TypeByExtension(path.Ext(name))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ctype)
		if name == "index.html" {
			// The page references hashed assets, only the entry point must
			// stay fresh.
			w.Header().Set("Cache-Control", "no-cache")
		}
		w.Write(data)
	}
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	origins := append([]string(nil), a.Config.Security.AllowedOrigins...)
	if a.Config.Logging.Development {
		origins = append(origins,
			fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
			"http://localhost:3000")
	}

	return customMiddleware.CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		// Content-Disposition lets browser clients read the export filename.
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start launches the HTTP server and background workers. A listener failure
// cancels the supplied context so Run can shut everything down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	// Session janitor.
	a.DashboardService.Start(ctx)

	// Runtime gauges for the Prometheus scrape.
	if a.SystemCollector != nil {
		go a.SystemCollector.Start(ctx)
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	if a.Config.Server.OpenBrowser {
		go a.openBrowserWhenReady(ctx)
	}

	return nil
}

// openBrowserWhenReady polls the health endpoint until the listener answers,
// then opens the local browser on the dashboard.
func (a *Application) openBrowserWhenReady(ctx context.Context) {
	url := fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)
	healthURL := url + "/api/healthz"

	for attempt := 0; attempt < 10; attempt++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		resp, err := http.Get(healthURL)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				if err := openBrowser(url); err != nil {
					a.Logger.Warn("Failed to open browser",
						slog.String("error", err.Error()),
						slog.String("url", url))
					fmt.Printf("\n%s is running at %s\n\n", AppName, url)
				}
				return
			}
		}

		time.Sleep(500 * time.Millisecond)
	}

	a.Logger.Warn("Server did not become ready for browser opening",
		slog.String("url", url))
}

// Stop shuts the server down gracefully and flushes telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.SystemCollector != nil {
		a.SystemCollector.Stop()
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry",
				slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run starts the application and blocks until an interrupt arrives or the
// server fails, then stops it gracefully.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped, shutting down")
	}

	// The run context is already cancelled at this point, shutdown needs its
	// own deadline.
	return a.Stop(context.Background())
}

// browserMethod is one way of opening a URL on the current platform.
type browserMethod struct {
	name string
	cmd  string
	args []string
}

// openBrowser opens the default browser at url, trying each method known for
// the current platform until one starts.
func openBrowser(url string) error {
	var lastErr error
	for _, method := range getBrowserOpenMethods(url) {
		cmd := exec.Command(method.cmd, method.args...)
		if err := cmd.Start(); err != nil {
			lastErr = err
			slog.Warn("Browser open method failed",
				slog.String("method", method.name),
				slog.String("error", err.Error()))
			continue
		}

		// Reap the launcher in the background; some of them stay alive until
		// the browser exits.
		go cmd.Wait()

		slog.Info("Browser opened",
			slog.String("method", method.name),
			slog.String("url", url))
		return nil
	}

	return fmt.Errorf("failed to open browser: %w", lastErr)
}

func getBrowserOpenMethods(url string) []browserMethod {
	switch runtime.GOOS {
	case "windows":
		return []browserMethod{
			{name: "start_command", cmd: "cmd", args: []string{"/c", "start", "", url}},
			{name: "rundll32", cmd: "rundll32", args: []string{"url.dll,FileProtocolHandler", url}},
		}
	case "darwin":
		return []browserMethod{
			{name: "open", cmd: "open", args: []string{url}},
		}
	default:
		return []browserMethod{
			{name: "xdg-open", cmd: "xdg-open", args: []string{url}},
			{name: "sensible-browser", cmd: "sensible-browser", args: []string{url}},
		}
	}
}

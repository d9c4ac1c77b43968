package www

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/angas/solarforecast-go/config"
	"github.com/angas/solarforecast-go/logging"
	"github.com/angas/solarforecast-go/pipeline"
	"github.com/gorilla/handlers"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarforecast_http_requests_total",
		Help: "HTTP requests by handler.",
	}, []string{"handler", "method"})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solarforecast_http_request_duration_seconds",
		Help:    "Time spent serving HTTP requests by handler.",
		Buckets: prometheus.DefBuckets,
	}, []string{"handler"})
)

type Server struct {
	logger   *slog.Logger
	config   config.AppConfigApi
	svc      *pipeline.Service
	hub      *Hub
	tm       *TemplateManager
	sessions *sessions.CookieStore
	handler  http.Handler
}

//go:embed static
var embeddedStaticDir embed.FS

func NewServer(logger *slog.Logger, svc *pipeline.Service, logs LogReader, cnfg *config.AppConfig, version string) (*Server, error) {
	logger = logger.With("module", "www")
	tm, err := NewTemplateManager(logger, cnfg.Api.WwwDir)
	if err != nil {
		return nil, fmt.Errorf("template manager initialization error: %w", err)
	}

	sessionKey := []byte(cnfg.Api.SessionKey)
	if len(sessionKey) == 0 {
		sessionKey = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(sessionKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		logger:   logger,
		config:   cnfg.Api,
		svc:      svc,
		hub:      NewHub(logger.With("component", "hub")),
		tm:       tm,
		sessions: store,
	}
	svc.OnReport(s.hub.Notify)

	defaultDays := cnfg.Forecast.GetDefaultWindowDays()

	instrument := func(name string, next http.Handler) http.Handler {
		hl := logger.With(slog.String("handler", name))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			hl.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			httpRequests.WithLabelValues(name, r.Method).Inc()
			next.ServeHTTP(w, r)
			httpDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		})
	}
	handlerLogger := func(name string) *slog.Logger {
		return logger.With(slog.String("handler", name))
	}

	app := http.NewServeMux()
	app.Handle("GET /{$}", instrument("dashboard", NewDashboardHandler(
		handlerLogger("dashboard"), tm, svc, version)))
	app.Handle("GET /static/", http.StripPrefix("/static/", staticFilesHandler(cnfg.Api.WwwDir)))
	app.Handle("POST /upload", instrument("upload", NewUploadHandler(
		handlerLogger("upload"), tm, svc, cnfg.Api.GetMaxUploadBytes())))
	app.Handle("POST /retrain", instrument("retrain", NewRetrainHandler(
		handlerLogger("retrain"), tm, svc)))
	app.Handle("GET /summary", instrument("summary", NewSummaryHandler(
		handlerLogger("summary"), tm, svc, store, defaultDays)))
	app.Handle("GET /monthly", instrument("monthly", NewMonthlyHandler(
		handlerLogger("monthly"), tm, svc)))
	app.Handle("GET /api/window", instrument("window", NewWindowHandler(
		handlerLogger("window"), svc, defaultDays)))
	app.Handle("GET /log", instrument("log", NewLogHandler(
		handlerLogger("log"), logs, tm)))

	charts := map[string]chartBuilder{
		"energy":     energyChart,
		"monthly":    monthlyChart,
		"forecast":   forecastChart,
		"components": componentsChart,
	}
	for name, build := range charts {
		app.Handle("GET /chart/"+name, instrument("chart_"+name, NewChartHandler(
			handlerLogger("chart_"+name), svc, build)))
	}

	// The websocket upgrade needs the raw connection, so it stays outside the
	// compression middleware.
	root := http.NewServeMux()
	root.Handle("GET /ws", http.HandlerFunc(s.serveWs))
	root.Handle("GET /metrics", promhttp.Handler())
	root.Handle("/", handlers.CompressHandler(app))

	s.handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(logging.NewPrintLogger(logger, slog.LevelError)),
	)(root)

	return s, nil
}

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	name := r.Header.Get("User-Agent")
	client, err := NewClient(s.hub, w, r, name)
	if err != nil {
		s.logger.Error("new websocket client failed", slog.Any("error", err))
		return
	}
	if !s.hub.register(client) {
		client.conn.Close()
		return
	}
	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	s.logger.Info("starting server...", slog.String("address", addr))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run(ctx)
	defer s.tm.Close()

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
		}
		return nil
	}
}

func staticFilesHandler(extDir *string) http.Handler {
	if extDir != nil && *extDir != "" {
		staticDir := path.Join(*extDir, "static")
		if _, err := os.Stat(staticDir); err == nil {
			return http.FileServer(http.Dir(staticDir))
		}
	}

	fsys, err := fs.Sub(embeddedStaticDir, "static")
	if err != nil {
		log.Panic(err)
	}
	return http.FileServer(http.FS(fsys))
}

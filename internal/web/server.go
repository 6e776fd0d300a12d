// Package web serves the EcoPackAI page over HTTP. Each browser gets its own
// application state, keyed by a cookie and expired after a period of
// inactivity.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poku-e/ecopack/internal/app"
	"github.com/poku-e/ecopack/internal/config"
	"github.com/poku-e/ecopack/internal/logger"
	"github.com/poku-e/ecopack/internal/ui"
)

const moduleName = "WEB"

// SessionCookie identifies a browser to the front end. It is unrelated to
// the upstream's own session cookie, which lives in each state's jar.
const SessionCookie = "ecopack_sid"

type Server struct {
	cfg     *config.Config
	baseURL string
	log     logger.Logger
	bus     *ui.Bus
	states  *cache.Cache
	metrics *metrics
	echo    *echo.Echo
	now     func() time.Time
}

// New builds the server and its routes. Call Run to serve, or use Handler
// directly in tests.
func New(cfg *config.Config, baseURL string, log logger.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		baseURL: baseURL,
		log:     log,
		bus:     ui.NewBus(log),
		states:  cache.New(cfg.Session.TTL, cfg.Session.TTL/2),
		now:     time.Now,
	}
	s.metrics = newMetrics(func() float64 { return float64(s.states.ItemCount()) })
	s.echo = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = &renderer{tmpl: indexTmpl}
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.log.Warn(moduleName, "Request failed", map[string]interface{}{
			"status": code,
			"method": req.Method,
			"path":   req.URL.Path,
			"remote": c.RealIP(),
			"error":  err.Error(),
		})
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	e.GET("/", s.section(ui.SectionHome))
	e.GET("/dashboard", s.section(ui.SectionDashboard))
	e.GET("/materials", s.section(ui.SectionMaterials))
	e.POST("/materials/more", s.loadMore)
	e.POST("/recommend", s.recommend)
	e.POST("/export/:kind", s.export)
	e.POST("/logout", s.logout)
	e.GET("/session", s.session)
	return e
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.watch(ctx); err != nil {
		return fmt.Errorf("subscribe page events: %w", err)
	}
	defer s.bus.Close()

	errc := make(chan error, 1)
	go func() {
		s.log.Info(moduleName, "Listening", map[string]interface{}{"address": s.cfg.Server.Address, "upstream": s.baseURL})
		errc <- s.echo.Start(s.cfg.Server.Address)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

// state returns the browser's application state, creating and initialising
// one when the cookie is missing or its state has expired. Every access
// renews the expiry.
func (s *Server) state(c echo.Context) (*app.App, error) {
	if ck, err := c.Cookie(SessionCookie); err == nil {
		if v, ok := s.states.Get(ck.Value); ok {
			a := v.(*app.App)
			s.states.Set(ck.Value, a, cache.DefaultExpiration)
			return a, nil
		}
	}

	a, err := app.New(s.cfg, s.baseURL, s.log, app.WithBus(s.bus))
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	a.Init(upstreamCtx(c))

	id := uuid.NewString()
	s.states.Set(id, a, cache.DefaultExpiration)
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.log.Info(moduleName, "New browser session", map[string]interface{}{"remote": c.RealIP()})
	return a, nil
}

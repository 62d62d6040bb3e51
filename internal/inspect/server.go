// Package inspect serves a read-only HTTP view of a running session.
//
// Ownership boundary:
// - handlers only read through Source; they never mutate the session
// - metrics come from the session's private registry, not the global one
package inspect

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danmuck/photon/internal/auth"
	"github.com/danmuck/photon/internal/dom"
	"github.com/danmuck/photon/internal/logging"
	"github.com/danmuck/photon/internal/observability"
	"github.com/danmuck/photon/internal/perf"
	"github.com/danmuck/photon/internal/protocol/session"
	"github.com/danmuck/photon/internal/render"
)

const version = "0.1.0"

// Source is the session state exposed over HTTP. *client.Client implements
// it.
type Source interface {
	SessionID() string
	Epoch() uint64
	Snapshot() dom.Snapshot
	LastFrame() *render.Frame
	Metrics() *perf.Collector
	PendingCallbacks() []session.PendingCallback
}

type Config struct {
	Addr        string
	CORSOrigins []string
	// Token, when set, is required as a bearer token on every route but
	// /health.
	Token string
}

type Server struct {
	cfg     Config
	src     Source
	router  *gin.Engine
	http    *http.Server
	log     zerolog.Logger
	started time.Time
}

func New(cfg Config, src Source) *Server {
	gin.SetMode(gin.ReleaseMode)
	log := logging.Component("inspect")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log))
	r.Use(observability.RequestMetricsMiddleware(src.Metrics()))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:     cfg,
		src:     src,
		router:  r,
		log:     log,
		started: time.Now(),
	}
	s.registerRoutes()
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve blocks until ln fails or Shutdown is called. Shutdown returns nil.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("inspection server listening")
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"session": s.src.SessionID(),
			"epoch":   s.src.Epoch(),
			"uptime":  time.Since(s.started).String(),
			"version": version,
		})
	})

	routes := s.router.Group("/")
	if s.cfg.Token != "" {
		routes.Use(requireToken(auth.StaticToken{Token: s.cfg.Token}))
	}

	metrics := promhttp.HandlerFor(s.src.Metrics().Registry(), promhttp.HandlerOpts{})
	routes.GET("/metrics", gin.WrapH(metrics))

	routes.GET("/document", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.src.Snapshot())
	})

	routes.GET("/frame.png", func(c *gin.Context) {
		frame := s.src.LastFrame()
		if frame == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no frame rendered yet"})
			return
		}
		var buf bytes.Buffer
		if err := frame.EncodePNG(&buf); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("X-Photon-Epoch", strconv.FormatUint(frame.Epoch, 10))
		c.Data(http.StatusOK, "image/png", buf.Bytes())
	})

	routes.GET("/trace", func(c *gin.Context) {
		m := s.src.Metrics()
		c.JSON(http.StatusOK, gin.H{
			"events":  m.Drain(),
			"dropped": m.Dropped(),
		})
	})

	routes.GET("/callbacks", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pending": s.src.PendingCallbacks()})
	})
}

func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.CheckHeader(v, c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

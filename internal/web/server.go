// Package web serves the payload form as an HTML page.
//
// The page posts the payload back to the server, which submits it synchronously
// and redirects to the page again. All browsers share one form.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"runview/internal/form"
	"runview/internal/logging"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// ShutdownGrace bounds how long Shutdown waits for in-flight requests.
const ShutdownGrace = 5 * time.Second

// Config configures the browser form server.
type Config struct {
	Listen   string      // host:port to listen on
	Endpoint string      // evaluator URL, shown on the page
	Logger   *zap.Logger // request log; nil discards
}

// Server serves one shared form over HTTP.
type Server struct {
	cfg    Config
	form   *form.Form
	router *gin.Engine
	http   *http.Server
}

// PageView is the data rendered by the index template.
type PageView struct {
	Endpoint    string
	Payload     string
	Results     string
	AST         string
	Status      string
	StatusClass string
	Error       string
}

// New builds a server around f.
func New(f *form.Form, cfg Config) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	f.Opened("web")
	s := &Server{cfg: cfg, form: f}
	s.setupRouter(tmpl)
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(cfg.Logger),
	}
	return s, nil
}

func (s *Server) setupRouter(tmpl *template.Template) {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(s.cfg.Logger))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	_ = r.SetTrustedProxies(nil)
	r.SetHTMLTemplate(tmpl)

	r.GET("/", s.handleIndex)
	r.POST("/run-form", s.handleRun)
	r.POST("/clear", s.handleClear)
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	s.router = r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on cfg.Listen and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. It returns nil after a clean shutdown,
// including when Shutdown was called first.
func (s *Server) Serve(ln net.Listener) error {
	s.cfg.Logger.Info("HTTP server starting", zap.String("addr", ln.Addr().String()))
	logging.Web("browser form listening on %s (session %s)", ln.Addr(), s.form.SessionID())

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown cancels any in-flight run and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cfg.Logger.Info("shutting down server")
	s.form.Cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		s.cfg.Logger.Error("http server shutdown error", zap.Error(err))
		return err
	}
	logging.Web("browser form stopped")
	return nil
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index", s.view())
}

func (s *Server) handleRun(c *gin.Context) {
	// Browsers submit textarea line breaks as CRLF.
	s.form.SetInput(strings.ReplaceAll(c.PostForm("payload"), "\r\n", "\n"))
	out := s.form.Submit(c.Request.Context())
	logging.Web("run #%d from %s: %s", out.Seq, c.ClientIP(), out.Status)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleClear(c *gin.Context) {
	s.form.Clear()
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) view() PageView {
	snap := s.form.Snapshot()
	v := PageView{
		Endpoint:    s.cfg.Endpoint,
		Payload:     snap.Payload,
		Results:     snap.Result.Results,
		AST:         snap.Result.AST,
		Status:      snap.Outcome.Message(),
		StatusClass: "idle",
	}
	switch snap.Outcome.Status {
	case form.StatusPending:
		v.StatusClass = "pending"
	case form.StatusSuccess:
		v.StatusClass = "success"
	case form.StatusError:
		v.StatusClass = "error"
		v.Status = "Error"
		if snap.Outcome.Cancelled() {
			v.Status = "Cancelled"
		} else {
			v.Error = snap.Outcome.Message()
		}
	}
	return v
}

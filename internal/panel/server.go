package panel

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/awidmer/marquee/internal/engine"
	"github.com/awidmer/marquee/internal/fetch"
	"github.com/awidmer/marquee/internal/metrics"
	"github.com/awidmer/marquee/internal/surface"
)

//go:embed templates/*.html
var templateFS embed.FS

// loadingRefresh is the self-refresh period of the loading page in seconds.
// It is the polling rate at which a fresh activation picks up its terminal
// state.
const loadingRefresh = 1

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"score": func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
}).ParseFS(templateFS, "templates/*.html"))

// page is the data handed to every template.
type page struct {
	Title   string
	Refresh int
	Rows    []fetch.Entry
	Message string
	Detail  string
	Address string
}

// Status supplies the rotation snapshot for the root redirect and healthz.
type Status interface {
	Snapshot() engine.Snapshot
}

// Options configures the panel server.
type Options struct {
	Listen  string // listen address, for example 127.0.0.1:8089
	Metrics bool   // expose the scrape endpoint
}

// Server is the HTTP face of the rotation. It serves one page per view from
// the store, a root redirect to the active view, a health document, and
// optionally the metrics endpoint.
type Server struct {
	store  *Store
	status Status
	logger *slog.Logger
	opts   Options
	mux    *gin.Engine

	mu   sync.Mutex
	srv  *http.Server
	addr string
}

// New builds the server and its routes.
func New(store *Store, status Status, m *metrics.Metrics, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	// The panel runs inside a daemon; gin's debug chatter does not belong in
	// its logs. Tests set their own mode first.
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		store:  store,
		status: status,
		logger: logger.With("component", "panel"),
		opts:   opts,
	}

	mux := gin.New()
	mux.Use(gin.Recovery(), s.accessLog())
	mux.SetHTMLTemplate(pages)

	mux.GET("/", s.handleRoot)
	mux.GET("/view/:id", s.handleView)
	mux.GET("/healthz", s.handleHealthz)
	if opts.Metrics && m.Enabled() {
		mux.GET("/metrics", gin.WrapH(m.Handler()))
	}

	s.mux = mux
	return s
}

// Handler exposes the route tree, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins serving in the background. With a :0 listen address the
// chosen port is available through Addr afterwards.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("listen panel: %w", err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.srv = &http.Server{Handler: s.mux}
	srv := s.srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("panel server failed", "error", err)
		}
	}()

	s.logger.Info("panel listening", "addr", s.Addr())
	return nil
}

// Addr returns the bound listen address after Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// BaseURL returns the http root of the running server.
func (s *Server) BaseURL() string {
	return "http://" + s.Addr()
}

// Shutdown stops the listener and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("panel request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// handleRoot sends the browser to the active view's page.
func (s *Server) handleRoot(c *gin.Context) {
	snap := s.status.Snapshot()
	if snap.Current.ID == "" {
		c.HTML(http.StatusOK, "idle.html", page{Message: "marquee", Detail: "no view is active"})
		return
	}
	c.Redirect(http.StatusFound, "/view/"+url.PathEscape(snap.Current.ID))
}

// handleView renders a view's latest content.
func (s *Server) handleView(c *gin.Context) {
	id := c.Param("id")
	content, ok := s.store.Get(id)
	if !ok {
		c.HTML(http.StatusNotFound, "idle.html", page{Message: "unknown view", Detail: id})
		return
	}

	data := page{Title: content.Title}
	switch content.Kind {
	case surface.ContentLoading:
		data.Refresh = loadingRefresh
		c.HTML(http.StatusOK, "loading.html", data)
	case surface.ContentLeaderboard:
		data.Rows = content.Rows
		c.HTML(http.StatusOK, "board.html", data)
	case surface.ContentEmpty:
		c.HTML(http.StatusOK, "empty.html", data)
	case surface.ContentError:
		data.Message = "Feed unavailable"
		data.Detail = errorDetail(content.Err)
		c.HTML(http.StatusOK, "error.html", data)
	case surface.ContentEmbed:
		data.Address = content.Address
		c.HTML(http.StatusOK, "embed.html", data)
	default:
		c.HTML(http.StatusInternalServerError, "idle.html", page{Message: "unknown content", Detail: content.Kind.String()})
	}
}

// errorDetail flattens a classified fetch failure into screen-friendly text.
func errorDetail(err *fetch.Error) string {
	if err == nil {
		return ""
	}
	detail := strings.ReplaceAll(string(err.Kind), "_", " ")
	if err.Attempts > 1 {
		detail += fmt.Sprintf(" after %d attempts", err.Attempts)
	}
	return detail
}

// handleHealthz reports the rotation snapshot as JSON.
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "marquee",
		"rotation": s.status.Snapshot(),
	})
}

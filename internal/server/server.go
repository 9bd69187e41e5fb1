// Package server is the composition root: it turns a config.Config into the
// store, the optional backends, the services, the handlers and the router,
// and runs the HTTP server until its context ends.
//
// DEPENDENCY FLOW:
//
//	config → sqlstore.DB ─┬→ services → handlers → chi router
//	         blob.Store  ─┤
//	         llm client  ─┤   (llm.Disabled when unset)
//	         rate limit  ─┤   (ratelimit.Noop when unset)
//	         sandbox     ─┘   (executor.Unavailable when disabled or down)
//
// Only the store is mandatory. Every other backend degrades to a stand-in
// that makes its routes fail cleanly, so a laptop without Docker or Redis
// still runs the app.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/codevault/codevault/internal/auth"
	"github.com/codevault/codevault/internal/blob"
	"github.com/codevault/codevault/internal/config"
	"github.com/codevault/codevault/internal/executor"
	"github.com/codevault/codevault/internal/executor/docker"
	"github.com/codevault/codevault/internal/handler"
	"github.com/codevault/codevault/internal/llm"
	"github.com/codevault/codevault/internal/middleware"
	"github.com/codevault/codevault/internal/ratelimit"
	"github.com/codevault/codevault/internal/repository/sqlstore"
	"github.com/codevault/codevault/internal/service"
)

// shutdownTimeout bounds how long in-flight requests get after a stop signal.
const shutdownTimeout = 30 * time.Second

// Server owns the store and every backend client; Close releases them.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	router *chi.Mux
	db     *sqlstore.DB

	// localBlobs is set for the local backend; its directory is served
	// under the blob public URL.
	localBlobs *blob.Local

	// closers run in reverse order on Close.
	closers []func() error
}

// New opens the store and connects the configured backends. Optional
// backends that fail to start are logged and replaced by stand-ins; only a
// store or blob failure is fatal.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	db, err := sqlstore.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db
	s.closers = append(s.closers, db.Close)

	blobs, err := s.openBlobs(ctx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("opening blob store: %w", err)
	}

	tokens, err := auth.NewTokenServiceWithTTL(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	completer, err := s.openCompleter()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating assistant client: %w", err)
	}

	limiter := s.openLimiter(ctx)
	exec := s.openSandbox(ctx)

	var github *auth.GitHubProvider
	if cfg.Auth.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.Auth.GitHubClientID, cfg.Auth.GitHubClientSecret, cfg.Auth.GitHubCallbackURL)
	}

	authSvc := service.NewAuthService(db, tokens, auth.NewPasswordService(), cfg.Auth.OwnerOpenID, logger)
	s.router = s.routes(tokens, routeHandlers{
		auth:     handler.NewAuthHandler(authSvc, github, cfg.CookieSecure, logger),
		projects: handler.NewProjectHandler(service.NewProjectService(db, logger)),
		snippets: handler.NewSnippetHandler(service.NewSnippetService(db, exec, logger)),
		notes:    handler.NewNoteHandler(service.NewNoteService(db, logger)),
		files:    handler.NewFileHandler(service.NewFileService(db, db, blobs, cfg.MaxUploadBytes, logger), cfg.MaxUploadBytes),
		chats:    handler.NewChatHandler(service.NewChatService(db, db, completer, limiter, logger)),
		health:   handler.NewHealthHandler(db),
	})

	return s, nil
}

func (s *Server) openBlobs(ctx context.Context) (blob.Store, error) {
	bc := s.cfg.Blob
	switch bc.Backend {
	case "gcs":
		g, err := blob.NewGCS(ctx, blob.GCSConfig{
			Bucket:          bc.GCSBucket,
			CredentialsFile: bc.GCSCredentialsFile,
			Endpoint:        bc.GCSEndpoint,
			PublicURL:       bc.PublicURL,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, g.Close)
		return g, nil
	case "memory":
		s.logger.Warn("using in-memory blob store; uploads are lost on restart")
		return blob.NewMemory(), nil
	default:
		l, err := blob.NewLocal(bc.Dir, bc.PublicURL)
		if err != nil {
			return nil, err
		}
		s.localBlobs = l
		return l, nil
	}
}

func (s *Server) openCompleter() (llm.Completer, error) {
	lc := s.cfg.LLM
	if lc.BaseURL == "" {
		s.logger.Warn("LLM_BASE_URL not set; the assistant is disabled")
		return llm.Disabled{}, nil
	}
	return llm.NewClient(llm.Config{
		BaseURL: lc.BaseURL,
		APIKey:  lc.APIKey,
		Model:   lc.Model,
		Timeout: lc.Timeout,
	})
}

func (s *Server) openLimiter(ctx context.Context) ratelimit.Limiter {
	rc := s.cfg.Redis
	if rc.Addr == "" {
		return ratelimit.Noop{}
	}
	rl, err := ratelimit.NewRedis(ctx, rc.Addr, "codevault:chat", rc.ChatRateLimit, rc.ChatRateWindow)
	if err != nil {
		s.logger.Warn("redis unavailable; chat is not rate limited",
			slog.String("addr", rc.Addr),
			slog.String("error", err.Error()),
		)
		return ratelimit.Noop{}
	}
	s.closers = append(s.closers, rl.Close)
	return rl
}

func (s *Server) openSandbox(ctx context.Context) executor.Executor {
	sc := s.cfg.Sandbox
	if !sc.Enabled {
		return executor.Unavailable{Reason: errors.New("sandbox disabled by configuration")}
	}

	dcfg := docker.DefaultConfig()
	dcfg.Timeout = sc.Timeout
	dcfg.PoolSize = sc.PoolSize

	exec, err := docker.New(ctx, dcfg, s.logger)
	if err != nil {
		s.logger.Warn("docker sandbox unavailable; snippet runs will fail",
			slog.String("error", err.Error()),
		)
		return executor.Unavailable{Reason: err}
	}
	s.closers = append(s.closers, exec.Close)
	return exec
}

type routeHandlers struct {
	auth     *handler.AuthHandler
	projects *handler.ProjectHandler
	snippets *handler.SnippetHandler
	notes    *handler.NoteHandler
	files    *handler.FileHandler
	chats    *handler.ChatHandler
	health   *handler.HealthHandler
}

// routes builds the router.
//
// MIDDLEWARE ORDER:
// RequestID first so the logger can print it, Recoverer inside the logger
// so a panic is still logged as a 500.
func (s *Server) routes(tokens *auth.TokenService, h routeHandlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.health.HandleHealth)
	h.auth.BrowserRoutes(r)

	if s.localBlobs != nil {
		if prefix, ok := localMountPath(s.cfg.Blob.PublicURL); ok {
			r.Handle(prefix+"/*", http.StripPrefix(prefix+"/", blobFileServer(s.localBlobs.Root())))
		}
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			h.auth.APIRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			h.projects.Routes(r)
			h.snippets.Routes(r)
			h.notes.Routes(r)
			h.files.Routes(r)
			h.chats.Routes(r)
		})
	})

	return r
}

// localMountPath returns the router path for a same-origin public URL such
// as "/files". Absolute URLs point at some other server and mount nothing.
func localMountPath(publicURL string) (string, bool) {
	p := strings.TrimRight(publicURL, "/")
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return "", false
	}
	return p, true
}

// blobFileServer serves uploaded files without directory listings. The CSP
// sandbox keeps an uploaded HTML file from running script on our origin.
func blobFileServer(root string) http.Handler {
	fs := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "sandbox")
		fs.ServeHTTP(w, r)
	})
}

// Handler is the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured port until ctx ends, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.cfg.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve answers requests on ln until ctx ends.
//
// GRACEFUL SHUTDOWN:
// One goroutine serves, the other waits for ctx. On cancel, Shutdown stops
// accepting connections and waits up to shutdownTimeout for in-flight
// requests, which makes Serve return http.ErrServerClosed. A serve failure
// cancels the group context, which ends the waiting goroutine too.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,  // base64 uploads
		WriteTimeout:      120 * time.Second, // assistant replies
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting",
			slog.String("addr", ln.Addr().String()),
			slog.String("db_driver", s.cfg.DB.Driver),
			slog.String("blob_backend", s.cfg.Blob.Backend),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}

// Close releases the store and backend clients, newest first.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

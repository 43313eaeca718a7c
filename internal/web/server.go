// Package web serves the browser UI. Each browser gets its own workflow
// controller, found through a signed session cookie; handlers translate form
// posts into controller operations and render the resulting snapshot.
package web

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/eightd/eightd/internal/config"
	"github.com/eightd/eightd/internal/constants"
	"github.com/eightd/eightd/internal/events"
	"github.com/eightd/eightd/internal/logging"
	"github.com/eightd/eightd/internal/result"
	"github.com/eightd/eightd/internal/workflow"
)

// sessionIDKey is the cookie value holding the controller's session ID.
const sessionIDKey = "sid"

// Options configures a Server.
type Options struct {
	Config   *config.Config
	Uploader workflow.Uploader
	Results  *result.Store
	Bus      *events.EventBus
	Logger   *logging.Logger
}

// Server is the UI HTTP server.
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	results  *result.Store
	cookies  *sessions.CookieStore
	registry *Registry
	handler  nethttp.Handler

	// baseCtx outlives individual requests; submissions started from a
	// request run under it so they survive the redirect.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer builds a Server from opts.
func NewServer(opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if opts.Uploader == nil {
		return nil, errors.New("web: uploader is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	results := opts.Results
	if results == nil {
		results = result.NewStore()
	}

	cookies, err := newCookieStore(cfg.SessionKey)
	if err != nil {
		return nil, err
	}
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionTTL / time.Second),
		HttpOnly: true,
		SameSite: nethttp.SameSiteLaxMode,
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		results:    results,
		cookies:    cookies,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}

	s.registry = NewRegistry(cfg.SessionTTL, func(id string) *workflow.Controller {
		logger.Debug().Str("session", id).Msg("New session")
		return workflow.New(workflow.Options{
			SessionID: id,
			Uploader:  opts.Uploader,
			Results:   results,
			Bus:       opts.Bus,
			Logger:    logger,
			Timeout:   cfg.RequestTimeout,
		})
	})
	s.handler = s.routes()
	return s, nil
}

// newCookieStore signs (and, with a generated key, encrypts) the session cookie.
// A configured key is hex; without one, keys are random per process so
// sessions do not survive a restart.
func newCookieStore(hexKey string) (*sessions.CookieStore, error) {
	if hexKey != "" {
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid session_key: %w", err)
		}
		if len(key) < 32 {
			return nil, errors.New("invalid session_key: need at least 32 bytes")
		}
		return sessions.NewCookieStore(key), nil
	}

	auth := securecookie.GenerateRandomKey(64)
	enc := securecookie.GenerateRandomKey(32)
	if auth == nil || enc == nil {
		return nil, errors.New("failed to generate session keys")
	}
	return sessions.NewCookieStore(auth, enc), nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() nethttp.Handler {
	return s.handler
}

// Registry exposes the session registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// controllerFor returns the caller's controller, issuing a session cookie
// on first contact or when the old cookie can no longer be decoded. The
// cookie is re-saved on every request so its Max-Age slides with the
// registry's idle TTL.
func (s *Server) controllerFor(w nethttp.ResponseWriter, r *nethttp.Request) *workflow.Controller {
	sess, err := s.cookies.Get(r, constants.SessionCookieName)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Discarding unreadable session cookie")
	}

	id, _ := sess.Values[sessionIDKey].(string)
	if id == "" {
		id = uuid.NewString()
		sess.Values[sessionIDKey] = id
	}
	if err := sess.Save(r, w); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save session cookie")
	}
	return s.registry.Get(id)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &nethttp.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: constants.ServerReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Str("service", s.cfg.ServiceURL).Msg("UI server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down UI server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close cancels in-flight submissions and drops every session.
func (s *Server) Close() {
	s.cancelBase()
	s.registry.Close()
}

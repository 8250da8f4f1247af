// Package ssocallback receives the SSO redirect on a loopback address.
//
// The backend finishes an SSO login by redirecting the browser to
// <frontend>/sso-success?token=... or <frontend>/login?error=.... Running
// this server on the frontend address lets the CLI collect that token. The
// first valid callback wins; the token is then dropped from the URL and any
// later hit is answered 410 Gone.
package ssocallback

import (
	"context"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/logger"
)

// DefaultListen matches the frontend address the backend redirects to.
const DefaultListen = "127.0.0.1:5173"

const (
	pathSuccess = "/sso-success"
	pathLogin   = "/login"
	pathDone    = "/done"
)

// errorMessages maps the backend's ?error= codes to readable text.
var errorMessages = map[string]string{
	"sso_not_configured": "SSO is not configured on the server",
	"sso_failed":         "The identity provider rejected the login",
	"user_disabled":      "Your account has been disabled",
}

var page = template.Must(template.New("page").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>proxmon</title></head>
<body style="font-family:sans-serif;margin:4em">
<h2>{{.Title}}</h2><p>{{.Body}}</p>
</body></html>
`))

type result struct {
	token string
	err   error
}

// Server serves the callback routes until one callback arrives.
type Server struct {
	router chi.Router
	log    logger.Logger

	mu       sync.Mutex
	consumed bool
	final    result

	results chan result
	srv     *http.Server
	ln      net.Listener
}

// New creates a callback server.
func New(log logger.Logger) *Server {
	if log == nil {
		log = logger.New("sso")
	}
	s := &Server{
		log:     log,
		results: make(chan result, 1),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Get(pathSuccess, s.handleSuccess)
	r.Get(pathLogin, s.handleLogin)
	r.Get(pathDone, s.handleDone)
	s.router = r
	return s
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Listen binds addr and serves in the background. It returns the bound
// address, which differs from addr when addr uses port 0.
func (s *Server) Listen(addr string) (string, error) {
	if addr == "" {
		addr = DefaultListen
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Cannot listen on %s for the SSO callback", addr),
			"Free the port or set sso.listen in the config")
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Warn("sso callback server stopped: %v", err)
		}
	}()
	s.log.Debug("sso callback listening on %s", ln.Addr())
	return ln.Addr().String(), nil
}

// Wait blocks until a callback arrives or ctx is done.
func (s *Server) Wait(ctx context.Context) (string, error) {
	select {
	case r := <-s.results:
		return r.token, r.err
	case <-ctx.Done():
		return "", errors.WrapWithCode(ctx.Err(), errors.ErrAuth,
			"Timed out waiting for the SSO login to finish", "Run 'proxmon login --sso' again")
	}
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// deliver records r as the outcome unless one was already recorded.
func (s *Server) deliver(r result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed {
		return false
	}
	s.consumed = true
	s.final = r
	s.results <- r
	return true
}

func (s *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	s.mu.Lock()
	consumed := s.consumed
	s.mu.Unlock()
	if consumed {
		render(w, http.StatusGone, "Already used", "This login link has already been used. Return to the terminal.")
		return
	}
	if token == "" {
		render(w, http.StatusBadRequest, "Missing token", "The SSO redirect did not include a token.")
		return
	}
	if !s.deliver(result{token: token}) {
		render(w, http.StatusGone, "Already used", "This login link has already been used. Return to the terminal.")
		return
	}
	s.log.Info("sso callback received")
	// Drop the token from the address bar.
	http.Redirect(w, r, pathDone, http.StatusSeeOther)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("error")
	if code == "" {
		render(w, http.StatusBadRequest, "Nothing to do", "Log in from the terminal with 'proxmon login --sso'.")
		return
	}
	msg, ok := errorMessages[code]
	if !ok {
		msg = "SSO login failed: " + code
	}
	if !s.deliver(result{err: errors.New(errors.ErrAuth, msg, "Log in with email and password instead")}) {
		render(w, http.StatusGone, "Already used", "This login link has already been used. Return to the terminal.")
		return
	}
	s.log.Warn("sso callback reported %s", code)
	render(w, http.StatusOK, "Login failed", msg)
}

func (s *Server) handleDone(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	final, consumed := s.final, s.consumed
	s.mu.Unlock()

	if !consumed || final.err != nil {
		render(w, http.StatusNotFound, "Nothing here", "No SSO login has completed.")
		return
	}
	render(w, http.StatusOK, "Logged in", "You can close this window and return to the terminal.")
}

func render(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = page.Execute(w, struct{ Title, Body string }{title, body})
}

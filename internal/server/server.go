// Package server exposes the scan service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/redactyl/promptscan/internal/types"
)

// Scanner is the service behind POST /scan.
type Scanner interface {
	Scan(ctx context.Context, prompt string) types.Outcome
}

// Config holds listener and HTTP settings.
type Config struct {
	Addr            string
	TLSCertFile     string
	TLSKeyFile      string
	CORSOrigins     []string
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Build           string
}

// DefaultConfig mirrors the values used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Addr:            "0.0.0.0:8000",
		CORSOrigins:     []string{"*"},
		MaxBodyBytes:    2 << 20,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 20 * time.Second,
		Build:           "develop",
	}
}

// Server wires the HTTP routes to a Scanner.
type Server struct {
	cfg      Config
	scanner  Scanner
	log      zerolog.Logger
	validate *validator.Validate
	handler  http.Handler
}

// New builds a Server. Zero-valued Config fields take their DefaultConfig
// value.
func New(cfg Config, scanner Scanner, log zerolog.Logger) *Server {
	cfg = withDefaults(cfg)
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	s := &Server{cfg: cfg, scanner: scanner, log: log, validate: v}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /scan", s.scan)
	mux.HandleFunc("GET /healthz", s.health)

	s.handler = requestID(accessLog(log, recoverer(log, cors(cfg.CORSOrigins, mux))))
	return s
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = def.CORSOrigins
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.Build == "" {
		cfg.Build = def.Build
	}
	return cfg
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler { return s.handler }

// Run listens on cfg.Addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	tls := s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != ""

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info().Str("addr", ln.Addr().String()).Bool("tls", tls).Str("build", s.cfg.Build).Msg("API server started")
		var err error
		if tls {
			err = srv.ServeTLS(ln, s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info().Msg("Shutdown started")
		sctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		s.log.Info().Msg("Shutdown complete")
		return nil
	})
	return g.Wait()
}

type scanRequest struct {
	Prompt *string `json:"prompt" validate:"required"`
}

type healthResponse struct {
	Status string `json:"status"`
	Build  string `json:"build"`
}

func (s *Server) scan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, types.Failure(fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit)))
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, types.Failure("invalid request body: "+err.Error()))
		return
	}
	if err := s.check(req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, types.Failure(err.Error()))
		return
	}

	out := s.scanner.Scan(r.Context(), *req.Prompt)
	if !out.OK() {
		zerolog.Ctx(r.Context()).Warn().Str("message", out.Message).Msg("Scan failed")
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) check(req scanRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			msgs = append(msgs, fe.Field()+" is required")
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Build: s.cfg.Build})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

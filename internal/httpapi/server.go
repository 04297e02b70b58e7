// Package httpapi exposes the orchestrator over HTTP with JSend envelopes.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ZaguanLabs/potlai"
	"github.com/ZaguanLabs/potlai/catalog"
)

// Translator is the part of *potlai.Orchestrator the server uses.
type Translator interface {
	Model() string
	TargetLang() string
	TranslateText(ctx context.Context, text string) (string, potlai.Telemetry, error)
	TranslateCatalog(ctx context.Context, f *catalog.File) (*catalog.File, potlai.Telemetry, error)
	EstimateUsage(text string) (int, error)
	EstimateCatalog(f *catalog.File) (int, error)
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	BodyLimit       string
}

type Server struct {
	translator Translator
	logger     zerolog.Logger
	opts       Options
}

type textRequest struct {
	Text string `json:"text"`
}

type catalogRequest struct {
	Catalog string `json:"catalog"`
}

type estimateRequest struct {
	Text    string `json:"text"`
	Catalog string `json:"catalog"`
}

type textResponse struct {
	Translation string           `json:"translation"`
	Usage       potlai.Telemetry `json:"usage"`
}

type catalogResponse struct {
	Catalog string           `json:"catalog"`
	Failed  int              `json:"failed"`
	Usage   potlai.Telemetry `json:"usage"`
}

type estimateResponse struct {
	Model           string `json:"model"`
	EstimatedTokens int    `json:"estimated_tokens"`
}

func NewServer(translator Translator, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8080
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	// Catalog requests run a whole batch, cooldowns included.
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Minute
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	bodyLimit := opts.BodyLimit
	if bodyLimit == "" {
		bodyLimit = "10M"
	}

	return &Server{
		translator: translator,
		logger:     logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			BodyLimit:       bodyLimit,
		},
	}
}

// Handler builds the echo instance with every route registered.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(s.opts.BodyLimit))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := s.logger.Info()
			if v.Error != nil {
				ev = s.logger.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)

	api := e.Group("/v1")
	api.POST("/translate/text", s.handleTranslateText)
	api.POST("/translate/catalog", s.handleTranslateCatalog)
	api.POST("/estimate", s.handleEstimate)
	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.translator == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Str("model", s.translator.Model()).Msg("potlai server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("potlai server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if v, ok := he.Message.(string); ok && strings.TrimSpace(v) != "" {
			message = v
		} else if text := http.StatusText(status); text != "" {
			message = text
		}
	}

	if status >= 500 {
		_ = internalError(c, message)
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": potlai.Name,
		"version": potlai.Version,
		"model":   s.translator.Model(),
		"target":  s.translator.TargetLang(),
		"time":    time.Now().UTC(),
	})
}

func (s *Server) handleTranslateText(c echo.Context) error {
	var req textRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}
	if req.Text == "" {
		return failValidation(c, map[string]string{"text": "is required"})
	}

	out, tel, err := s.translator.TranslateText(c.Request().Context(), req.Text)
	if err != nil {
		return translationFailed(c, err, tel)
	}
	return success(c, textResponse{Translation: out, Usage: tel})
}

func (s *Server) handleTranslateCatalog(c echo.Context) error {
	var req catalogRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}
	f, err := parseCatalog(req.Catalog)
	if err != nil {
		return failValidation(c, map[string]string{"catalog": err.Error()})
	}

	out, tel, err := s.translator.TranslateCatalog(c.Request().Context(), f)
	if err != nil {
		return internalError(c, err.Error())
	}
	data, err := catalog.Encode(out)
	if err != nil {
		return internalError(c, err.Error())
	}
	return success(c, catalogResponse{Catalog: string(data), Failed: tel.Failed, Usage: tel})
}

func (s *Server) handleEstimate(c echo.Context) error {
	var req estimateRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}

	var (
		n   int
		err error
	)
	switch {
	case req.Catalog != "":
		f, perr := parseCatalog(req.Catalog)
		if perr != nil {
			return failValidation(c, map[string]string{"catalog": perr.Error()})
		}
		n, err = s.translator.EstimateCatalog(f)
	case req.Text != "":
		n, err = s.translator.EstimateUsage(req.Text)
	default:
		return failValidation(c, map[string]string{"catalog": "catalog or text is required"})
	}
	if err != nil {
		return internalError(c, err.Error())
	}
	return success(c, estimateResponse{Model: s.translator.Model(), EstimatedTokens: n})
}

func parseCatalog(text string) (*catalog.File, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("is required")
	}
	return catalog.Parse(strings.NewReader(text))
}

// Package httpapi exposes ingestion and search over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"docrag/internal/domain"
	"docrag/internal/service"
)

// MaxUploadSize bounds a request body.
const MaxUploadSize = "32M"

// Server provides HTTP endpoints for docrag.
type Server struct {
	echo     *echo.Echo
	svc      *service.Service
	defaults service.SearchOptions
	logger   *zap.Logger
	addr     string
}

// Config holds HTTP server configuration.
type Config struct {
	Addr string
	// SearchDefaults fill fields a search request leaves out.
	SearchDefaults service.SearchOptions
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewServer creates a new HTTP server.
func NewServer(svc *service.Service, logger *zap.Logger, cfg Config) (*Server, error) {
	if svc == nil {
		return nil, errors.New("service cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(MaxUploadSize))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{echo: e, svc: svc, defaults: cfg.SearchDefaults, logger: logger, addr: cfg.Addr}
	s.registerRoutes(cfg.Gatherer)
	return s, nil
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.echo.GET("/health", s.handleHealth)
	if gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.echo.Group("/api/v1")
	v1.GET("/documents", s.handleListDocuments)
	v1.POST("/documents", s.handleUpload)
	v1.DELETE("/documents/:id", s.handleDeleteDocument)
	v1.POST("/documents/:id/reindex", s.handleReindex)
	v1.GET("/stats", s.handleStats)
	v1.POST("/search", s.handleSearch)
	v1.POST("/expand", s.handleExpand)
}

// ServeHTTP lets the server be mounted or tested directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// DocumentsResponse is the response body for GET /api/v1/documents.
type DocumentsResponse struct {
	Documents []domain.Document `json:"documents"`
}

func (s *Server) handleListDocuments(c echo.Context) error {
	docs, err := s.svc.ListDocuments(c.Request().Context())
	if err != nil {
		return s.internalError("list documents", err)
	}
	out := make([]domain.Document, len(docs))
	for i, d := range docs {
		d.Content = ""
		out[i] = d
	}
	return c.JSON(http.StatusOK, DocumentsResponse{Documents: out})
}

// UploadResult reports one uploaded file.
type UploadResult struct {
	Name     string           `json:"name"`
	Document *domain.Document `json:"document,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// UploadResponse is the response body for POST /api/v1/documents.
type UploadResponse struct {
	Results []UploadResult `json:"results"`
}

// handleUpload ingests the multipart "files" field. Each file succeeds or
// fails on its own; the status is 201 only when all succeed.
func (s *Server) handleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expected a multipart form")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, `no files in field "files"`)
	}

	inputs := make([]service.FileInput, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("reading %s", h.Filename))
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("reading %s", h.Filename))
		}
		inputs = append(inputs, service.FileInput{
			Name:        h.Filename,
			ContentType: h.Header.Get(echo.HeaderContentType),
			Content:     data,
		})
	}

	status := http.StatusCreated
	var resp UploadResponse
	for _, r := range s.svc.Ingest(c.Request().Context(), inputs) {
		res := UploadResult{Name: r.Name}
		if r.Err != nil {
			res.Error = r.Err.Error()
			status = http.StatusMultiStatus
		} else {
			doc := r.Document
			doc.Content = ""
			res.Document = &doc
		}
		resp.Results = append(resp.Results, res)
	}
	return c.JSON(status, resp)
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	err := s.svc.DeleteDocument(c.Request().Context(), c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	if err != nil {
		return s.internalError("delete document", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReindex(c echo.Context) error {
	doc, err := s.svc.Reindex(c.Request().Context(), c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	if err != nil {
		return s.internalError("reindex document", err)
	}
	doc.Content = ""
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleStats(c echo.Context) error {
	st, err := s.svc.Stats(c.Request().Context())
	if err != nil {
		return s.internalError("stats", err)
	}
	return c.JSON(http.StatusOK, st)
}

// SearchRequest is the request body for POST /api/v1/search. Omitted
// fields take the server defaults.
type SearchRequest struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	Strict *bool  `json:"strict"`
	UseLLM *bool  `json:"use_llm"`
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	opts := s.defaults
	if req.Limit > 0 {
		opts.Limit = req.Limit
	}
	if req.Strict != nil {
		opts.Strict = *req.Strict
	}
	if req.UseLLM != nil {
		opts.UseLLM = *req.UseLLM
	}

	res, err := s.svc.Search(c.Request().Context(), req.Query, opts)
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	case err != nil:
		return s.internalError("search", err)
	}
	return c.JSON(http.StatusOK, res)
}

// ExpandRequest is the request body for POST /api/v1/expand.
type ExpandRequest struct {
	domain.Snippet
	ContextSize int `json:"context_size"`
}

// ExpandResponse is the response body for POST /api/v1/expand.
type ExpandResponse struct {
	Text string `json:"text"`
}

func (s *Server) handleExpand(c echo.Context) error {
	var req ExpandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ChunkID == "" && req.DocumentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chunk_id or document_id is required")
	}
	text := s.svc.ExpandSnippet(c.Request().Context(), req.Snippet, req.ContextSize)
	return c.JSON(http.StatusOK, ExpandResponse{Text: text})
}

func (s *Server) internalError(op string, err error) error {
	s.logger.Error(op+" failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, op+" failed")
}

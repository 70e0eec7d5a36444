// Package server exposes extraction, signature verification, the field
// schema and the archive over HTTP.
package server

import (
	"context"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
	"github.com/joseph-ayodele/invoice-extractor/internal/signature"
)

// Narrow views of the core components; handler tests stub these.
type (
	// FieldExtractor resolves schema fields from raw text.
	FieldExtractor interface {
		Extract(ctx context.Context, text string, fieldNames []string) *extract.Result
	}

	// DocumentProcessor runs one uploaded document through the pipeline.
	DocumentProcessor interface {
		ProcessFile(ctx context.Context, path, kind string) (*entity.ExtractionRecord, error)
	}

	// RegionDetector locates the title block on a drawing.
	RegionDetector interface {
		Detect(ctx context.Context, img image.Image) (signature.Rect, string)
	}

	// SignatureMatcher ranks a crop against the gallery.
	SignatureMatcher interface {
		Match(ctx context.Context, img image.Image) ([]signature.Candidate, error)
		MatchOrEnroll(ctx context.Context, img image.Image, printedName string) (signature.MatchResult, error)
	}

	// SignerDirectory lists enrolled signers.
	SignerDirectory interface {
		Signers(ctx context.Context) ([]entity.Signer, error)
	}

	// Exporter renders the archive window as a workbook.
	Exporter interface {
		ExportXLSX(ctx context.Context, from, to *time.Time) ([]byte, error)
	}
)

// Deps wires the HTTP surface. Matcher, Signers, Queue and Exporter may
// be nil; their routes then answer 503.
type Deps struct {
	Extractor  FieldExtractor
	Fields     *schema.Store
	FieldsPath string
	Pipeline   DocumentProcessor
	Queue      async.Queue
	Detector   RegionDetector
	Matcher    SignatureMatcher
	Signers    SignerDirectory
	Archive    repository.Archive
	Exporter   Exporter
	Probe      *ocr.Detector
	OCRURL     string
	Logger     *slog.Logger
}

type Server struct {
	deps   Deps
	logger *slog.Logger
	engine *gin.Engine
}

func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{deps: deps, logger: deps.Logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(s.logger))

	r.GET("/healthz", s.health)
	v1 := r.Group("/v1")
	{
		v1.POST("/extract", s.extractText)
		v1.POST("/documents", s.processDocument)
		v1.POST("/batch", s.enqueueBatch)

		v1.GET("/fields", s.listFields)
		v1.POST("/fields", s.addField)
		v1.DELETE("/fields/:name", s.removeField)
		v1.POST("/fields/save", s.saveFields)

		v1.POST("/signature/region", s.detectRegion)
		v1.POST("/signature/match", s.matchSignature)
		v1.GET("/signers", s.listSigners)

		v1.GET("/export.xlsx", s.exportXLSX)
	}
	s.engine = r
	return s
}

// Handler returns the routed http.Handler for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok"}

	if s.deps.Archive != nil {
		if err := s.deps.Archive.Ping(ctx); err != nil {
			body["status"] = "down"
			body["archive"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			body["archive"] = "ok"
		}
	}
	if s.deps.Probe != nil && s.deps.OCRURL != "" {
		if s.deps.Probe.Healthy(ctx, s.deps.OCRURL) {
			body["ocr"] = "ok"
		} else {
			// Raw-text extraction still works without the OCR service.
			body["ocr"] = "unreachable"
			if status == http.StatusOK {
				body["status"] = "degraded"
			}
		}
	}
	c.JSON(status, body)
}

// fail maps application errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("http.request.error",
			"path", c.FullPath(), "request_id", common.RequestIDFromContext(c.Request.Context()),
			"error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": common.ErrorCode(err)})
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", common.RequestIDFromContext(c.Request.Context()),
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("http.request", fields...)
		case status >= 400:
			logger.Warn("http.request", fields...)
		default:
			logger.Info("http.request", fields...)
		}
	}
}

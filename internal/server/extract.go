package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

type extractRequest struct {
	Text       string   `json:"text"`
	FieldNames []string `json:"field_names"`
}

type extractResponse struct {
	Fields     map[string]*string `json:"fields"`
	Confidence *float64           `json:"confidence,omitempty"`
	Method     constants.Method   `json:"method"`
}

func (s *Server) extractText(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.InvalidInputError(err.Error()))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.fail(c, common.InvalidInputError("text is required"))
		return
	}

	res := s.deps.Extractor.Extract(c.Request.Context(), ocr.Normalize(req.Text), req.FieldNames)
	c.JSON(http.StatusOK, extractResponse{
		Fields:     res.Fields,
		Confidence: res.Confidence,
		Method:     res.Method,
	})
}

func (s *Server) processDocument(c *gin.Context) {
	if s.deps.Pipeline == nil {
		s.fail(c, common.WrapError(common.ErrUnavailable, "document pipeline"))
		return
	}
	upload, err := c.FormFile("file")
	if err != nil {
		s.fail(c, common.InvalidInputError("file is required"))
		return
	}
	kind := c.DefaultPostForm("kind", entity.KindInvoice)
	if ext := filepath.Ext(upload.Filename); !ingest.AllowedExt(ext) {
		s.fail(c, common.InvalidInputErrorf("unsupported file type %q", ext))
		return
	}

	// Keep the original base name so the archive row reads naturally.
	dir, err := os.MkdirTemp("", "upload-*")
	if err != nil {
		s.fail(c, common.InternalError("stage upload"))
		return
	}
	defer os.RemoveAll(dir)
	staged := filepath.Join(dir, filepath.Base(upload.Filename))
	if err := c.SaveUploadedFile(upload, staged); err != nil {
		s.fail(c, common.InternalError("stage upload"))
		return
	}

	rec, err := s.deps.Pipeline.ProcessFile(c.Request.Context(), staged, kind)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type batchRequest struct {
	Root       string   `json:"root"`
	Kind       string   `json:"kind"`
	Extensions []string `json:"extensions"`
	SkipHidden bool     `json:"skip_hidden"`
}

func (s *Server) enqueueBatch(c *gin.Context) {
	if s.deps.Queue == nil {
		s.fail(c, common.WrapError(common.ErrUnavailable, "batch queue"))
		return
	}
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.InvalidInputError(err.Error()))
		return
	}
	if strings.TrimSpace(req.Root) == "" {
		s.fail(c, common.InvalidInputError("root is required"))
		return
	}

	files, stats, err := ingest.DiscoverFiles(req.Root, req.Extensions, req.SkipHidden)
	if err != nil {
		s.fail(c, common.InvalidInputError(err.Error()))
		return
	}

	trace := common.RequestIDFromContext(c.Request.Context())
	queued := 0
	for _, path := range files {
		job := async.Job{Path: path, Kind: req.Kind, SubmittedAt: time.Now(), TraceID: trace}
		if err := s.deps.Queue.Enqueue(c.Request.Context(), job); err != nil {
			s.fail(c, err)
			return
		}
		queued++
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": queued, "stats": stats})
}

package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) exportXLSX(c *gin.Context) {
	if s.deps.Exporter == nil {
		s.fail(c, common.WrapError(common.ErrUnavailable, "export"))
		return
	}

	from, err := parseDateQuery(c.Query("from"))
	if err != nil {
		s.fail(c, common.InvalidInputError("from must be YYYY-MM-DD"))
		return
	}
	to, err := parseDateQuery(c.Query("to"))
	if err != nil {
		s.fail(c, common.InvalidInputError("to must be YYYY-MM-DD"))
		return
	}

	data, err := s.deps.Exporter.ExportXLSX(c.Request.Context(), from, to)
	if err != nil {
		s.fail(c, err)
		return
	}

	filename := fmt.Sprintf("extractions_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func parseDateQuery(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

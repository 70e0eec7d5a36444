package server

import (
	"image"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/signature"
)

func decodeUpload(c *gin.Context) (image.Image, error) {
	upload, err := c.FormFile("file")
	if err != nil {
		return nil, common.InvalidInputError("file is required")
	}
	f, err := upload.Open()
	if err != nil {
		return nil, common.InternalError("open upload")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, common.InvalidInputErrorf("decode image: %v", err)
	}
	return img, nil
}

func (s *Server) detectRegion(c *gin.Context) {
	img, err := decodeUpload(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	rect, strategy := s.deps.Detector.Detect(c.Request.Context(), img)
	if c.Query("preview") == "1" || c.PostForm("preview") == "1" {
		png, err := signature.RenderPreview(img, rect, strategy)
		if err != nil {
			s.fail(c, common.InternalError("render preview"))
			return
		}
		c.Data(http.StatusOK, "image/png", png)
		return
	}
	c.JSON(http.StatusOK, gin.H{"region": rect, "strategy": strategy})
}

// matchSignature ranks the crop against the gallery. With printed_name
// set it verifies instead: an unknown hand is enrolled under that name.
func (s *Server) matchSignature(c *gin.Context) {
	if s.deps.Matcher == nil {
		s.fail(c, common.WrapError(common.ErrUnavailable, "signature matching"))
		return
	}
	img, err := decodeUpload(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	if printedName := c.PostForm("printed_name"); printedName != "" {
		result, err := s.deps.Matcher.MatchOrEnroll(c.Request.Context(), img, printedName)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	candidates, err := s.deps.Matcher.Match(c.Request.Context(), img)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates, "count": len(candidates)})
}

func (s *Server) listSigners(c *gin.Context) {
	if s.deps.Signers == nil {
		s.fail(c, common.WrapError(common.ErrUnavailable, "signature gallery"))
		return
	}
	signers, err := s.deps.Signers.Signers(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signers": signers, "count": len(signers)})
}
